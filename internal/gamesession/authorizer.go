// Package gamesession grants a bounded pre-authorization for one game: a
// fixed number of actions inside a fixed window, persisted so an app restart
// does not force the player back through the wallet prompt mid-game.
package gamesession

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/securestore"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/walleterr"
)

// StoreKey is where the serialized session lives in the secure store.
const StoreKey = "game-session"

const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxActions = 6
)

// Session is the persisted grant. Timestamps are unix milliseconds on the
// wire.
type Session struct {
	GameID       uint64 `json:"gameId"`
	AuthorizedAt int64  `json:"authorizedAt"`
	ExpiresAt    int64  `json:"expiresAt"`
	MaxShots     int    `json:"maxShots"`
	ShotsTaken   int    `json:"shotsTaken"`
}

func (s Session) Remaining() int {
	if s.ShotsTaken >= s.MaxShots {
		return 0
	}
	return s.MaxShots - s.ShotsTaken
}

func (s Session) ExpiredAt(now time.Time) bool {
	return now.UnixMilli() >= s.ExpiresAt
}

// Authorizer owns the single active game session. PreAuthorize for a new game
// replaces whatever grant existed before; the runtime never tracks two games
// at once.
type Authorizer struct {
	mu     sync.Mutex
	store  *securestore.Store
	logger *slog.Logger
	now    func() time.Time
	ttl    time.Duration

	session *Session
	loaded  bool
}

type Option func(*Authorizer)

func WithTTL(ttl time.Duration) Option {
	return func(a *Authorizer) { a.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(a *Authorizer) { a.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) { a.logger = logger }
}

func New(store *securestore.Store, opts ...Option) *Authorizer {
	a := &Authorizer{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PreAuthorize issues a fresh grant for gameID, overwriting any existing one.
// maxActions <= 0 selects the default budget.
func (a *Authorizer) PreAuthorize(gameID uint64, maxActions int) (Session, error) {
	if maxActions <= 0 {
		maxActions = DefaultMaxActions
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	session := Session{
		GameID:       gameID,
		AuthorizedAt: now.UnixMilli(),
		ExpiresAt:    now.Add(a.ttl).UnixMilli(),
		MaxShots:     maxActions,
		ShotsTaken:   0,
	}
	if err := a.persistLocked(session); err != nil {
		return Session{}, walleterr.Wrap(walleterr.CodeInternal, err)
	}
	a.logger.Info("game session authorized",
		"game_id", gameID,
		"max_actions", maxActions,
		"expires_at", session.ExpiresAt)
	return session, nil
}

// Active reports the current grant if one exists and has not expired. An
// expired grant is purged on sight.
func (a *Authorizer) Active() (Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.currentLocked()
	if !ok {
		return Session{}, false
	}
	if session.ExpiredAt(a.now()) {
		a.purgeLocked("expired")
		return Session{}, false
	}
	return session, true
}

// ConsumeAction spends one action from the grant for gameID and returns the
// remaining budget. The count is decremented before the action executes, so a
// failed action still costs its slot.
func (a *Authorizer) ConsumeAction(gameID uint64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.currentLocked()
	if !ok || session.GameID != gameID {
		return 0, walleterr.New(walleterr.CodeGameSessionInvalid)
	}
	if session.ExpiredAt(a.now()) {
		a.purgeLocked("expired")
		return 0, walleterr.New(walleterr.CodeGameSessionExpired)
	}
	if session.ShotsTaken >= session.MaxShots {
		return 0, walleterr.New(walleterr.CodeMaxActionsReached)
	}

	session.ShotsTaken++
	if err := a.persistLocked(session); err != nil {
		return 0, walleterr.Wrap(walleterr.CodeInternal, err)
	}
	remaining := session.Remaining()
	a.logger.Debug("game action consumed",
		"game_id", gameID,
		"shots_taken", session.ShotsTaken,
		"remaining", remaining)
	return remaining, nil
}

// Clear drops the grant. Called on wallet disconnect and game end.
func (a *Authorizer) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.purgeLocked("cleared")
	return nil
}

func (a *Authorizer) currentLocked() (Session, bool) {
	if !a.loaded {
		a.loaded = true
		raw, ok := a.store.Get(StoreKey)
		if ok {
			var session Session
			if err := json.Unmarshal([]byte(raw), &session); err != nil {
				a.logger.Warn("discarding unreadable game session", "error", err)
				a.purgeLocked("unreadable")
			} else {
				a.session = &session
			}
		}
	}
	if a.session == nil {
		return Session{}, false
	}
	return *a.session, true
}

func (a *Authorizer) persistLocked(session Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := a.store.Set(StoreKey, string(payload)); err != nil {
		return err
	}
	a.session = &session
	a.loaded = true
	return nil
}

func (a *Authorizer) purgeLocked(reason string) {
	if err := a.store.Delete(StoreKey); err != nil {
		a.logger.Warn("failed to delete game session", "reason", reason, "error", err)
	}
	a.session = nil
	a.loaded = true
}

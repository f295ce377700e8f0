// Package walletsession owns the wallet connection lifecycle: the authorize
// handshake, the persisted session that survives restarts, lazy expiry, and
// automatic reconnection when the app returns to the foreground.
package walletsession

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/retry"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/securestore"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/signer"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/walleterr"
)

// Persisted session keys in the secure store.
const (
	KeyCredential    = "credential"
	KeySignerAddress = "signer-address"
	KeySessionExpiry = "session-expiry"
)

// DefaultTTL is how long a wallet authorization stays valid without a fresh
// handshake.
const DefaultTTL = time.Hour

// DefaultReconnectPolicy yields three handshake attempts with 1s and 2s
// pauses between them, delays doubling up to the 4s cap.
func DefaultReconnectPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:   2,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     4 * time.Second,
	}
}

// Manager drives a single wallet session. All exported methods are safe for
// concurrent use; the lifecycle table in state.go is the only way state
// moves.
type Manager struct {
	signer    signer.Signer
	store     *securestore.Store
	identity  signer.Identity
	logger    *slog.Logger
	now       func() time.Time
	ttl       time.Duration
	reconnect retry.Policy

	mu           sync.Mutex
	state        State
	address      ledger.Pubkey
	credential   string
	expiresAt    time.Time
	onDisconnect []func()
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithReconnectPolicy(policy retry.Policy) Option {
	return func(m *Manager) { m.reconnect = policy }
}

func New(s signer.Signer, store *securestore.Store, identity signer.Identity, opts ...Option) *Manager {
	m := &Manager{
		signer:    s,
		store:     store,
		identity:  identity,
		logger:    slog.Default(),
		now:       time.Now,
		ttl:       DefaultTTL,
		reconnect: DefaultReconnectPolicy(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnDisconnect registers a hook run whenever the session is torn down, both
// explicit disconnects and lazy expiry. Used to cascade the game session
// clear.
func (m *Manager) OnDisconnect(hook func()) {
	m.mu.Lock()
	m.onDisconnect = append(m.onDisconnect, hook)
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool { return m.State() == StateConnected }

// Address returns the authorized signer address. Zero value when not
// connected.
func (m *Manager) Address() ledger.Pubkey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address
}

// Connect runs the authorize handshake and persists the resulting session.
// Connecting while already connected re-runs the handshake and replaces the
// stored credential.
func (m *Manager) Connect(ctx context.Context) error {
	auth, err := m.signer.Authorize(ctx, m.identity)
	if err != nil {
		return classifyHandshake(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.adoptLocked(auth); err != nil {
		return err
	}
	m.applyLocked(eventConnected)
	m.logger.Info("wallet connected", "address", auth.Address, "expires_at", m.expiresAt)
	return nil
}

// RestoreSession loads the persisted session without touching the signer.
// Returns false when nothing usable is stored; an expired session is purged
// and reported as absent.
func (m *Manager) RestoreSession() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	credential, okCred := m.store.Get(KeyCredential)
	rawAddr, okAddr := m.store.Get(KeySignerAddress)
	rawExpiry, okExp := m.store.Get(KeySessionExpiry)
	if !okCred || !okAddr || !okExp {
		return false, nil
	}

	expiryMillis, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		m.logger.Warn("discarding unreadable session expiry", "error", err)
		m.teardownLocked(false)
		return false, nil
	}
	if m.now().UnixMilli() >= expiryMillis {
		m.logger.Info("persisted session expired, purging")
		m.teardownLocked(true)
		return false, nil
	}
	address, err := ledger.PubkeyFromBase58(rawAddr)
	if err != nil {
		m.logger.Warn("discarding unreadable signer address", "error", err)
		m.teardownLocked(false)
		return false, nil
	}

	m.credential = credential
	m.address = address
	m.expiresAt = time.UnixMilli(expiryMillis)
	m.applyLocked(eventConnected)
	m.logger.Info("session restored", "address", address, "expires_at", m.expiresAt)
	return true, nil
}

// Reauthorize refreshes the session using the stored credential. The signer
// may rotate the credential; the rotated value is persisted.
func (m *Manager) Reauthorize(ctx context.Context) error {
	m.mu.Lock()
	credential := m.credential
	m.mu.Unlock()
	if credential == "" {
		return walleterr.New(walleterr.CodeSessionInvalid)
	}

	auth, err := m.signer.Reauthorize(ctx, credential, m.identity)
	if err != nil {
		return walleterr.Wrap(walleterr.CodeReauthorizationFailed, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.adoptLocked(auth); err != nil {
		return err
	}
	m.applyLocked(eventConnected)
	return nil
}

// Sign signs every transaction in place through the wallet. The stored
// credential is re-presented (and its rotation persisted) before the signer
// sees the transactions.
func (m *Manager) Sign(ctx context.Context, txs []*ledger.Transaction) error {
	if err := m.requireSession(); err != nil {
		return err
	}
	if err := m.Reauthorize(ctx); err != nil {
		return err
	}
	if err := m.signer.SignTransactions(ctx, txs); err != nil {
		return walleterr.Wrap(walleterr.CodeSigningFailed, err)
	}
	return nil
}

// SignAndSend signs and submits, returning one signature per transaction.
// Like Sign, it re-presents the credential first.
func (m *Manager) SignAndSend(ctx context.Context, txs []*ledger.Transaction) ([]string, error) {
	if err := m.requireSession(); err != nil {
		return nil, err
	}
	if err := m.Reauthorize(ctx); err != nil {
		return nil, err
	}
	sigs, err := m.signer.SignAndSendTransactions(ctx, txs)
	if err != nil {
		if errors.Is(err, signer.ErrDeclined) {
			return sigs, walleterr.Wrap(walleterr.CodeTransactionRejected, err)
		}
		if errors.Is(err, signer.ErrSigningFailure) {
			return sigs, walleterr.Wrap(walleterr.CodeSigningFailed, err)
		}
		return sigs, walleterr.Wrap(walleterr.CodeTransactionFailed, err)
	}
	return sigs, nil
}

// Disconnect invalidates the wallet credential (best effort), wipes the
// persisted session, and fires the disconnect hooks.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	credential := m.credential
	m.mu.Unlock()

	if credential != "" {
		if err := m.signer.Deauthorize(ctx, credential); err != nil {
			m.logger.Warn("deauthorize failed, clearing locally anyway", "error", err)
		}
	}
	m.mu.Lock()
	m.teardownLocked(true)
	m.applyLocked(eventDisconnected)
	m.mu.Unlock()
	m.logger.Info("wallet disconnected")
	return nil
}

// HandleForeground reacts to the app returning to the foreground. With a live
// non-expired persisted session and no active connection it enters the
// reconnecting state and retries the handshake; exhaustion reports
// RECONNECTION_FAILED and the state falls back to disconnected.
func (m *Manager) HandleForeground(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	rawExpiry, ok := m.store.Get(KeySessionExpiry)
	if !ok {
		m.mu.Unlock()
		return nil
	}
	expiryMillis, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil || m.now().UnixMilli() >= expiryMillis {
		m.teardownLocked(true)
		m.mu.Unlock()
		return nil
	}
	if !m.applyLocked(eventForeground) {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	m.logger.Info("foreground reconnection started")
	allRetryable := func(error) retry.Class { return retry.Retryable }
	auth, attempts, err := retry.Do(ctx, m.reconnect, allRetryable,
		func(ctx context.Context) (signer.Authorization, error) {
			return m.signer.Authorize(ctx, m.identity)
		})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.applyLocked(eventReconnectFailed)
		m.logger.Warn("foreground reconnection failed", "attempts", attempts, "error", err)
		return walleterr.Wrap(walleterr.CodeReconnectionFailed, err)
	}
	if err := m.adoptLocked(auth); err != nil {
		m.applyLocked(eventReconnectFailed)
		return err
	}
	m.applyLocked(eventReconnectSucceeded)
	m.logger.Info("foreground reconnection succeeded", "attempts", attempts)
	return nil
}

// requireSession checks connection and lazy expiry. An expired session is
// torn down on sight.
func (m *Manager) requireSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected {
		return walleterr.New(walleterr.CodeSessionInvalid)
	}
	if !m.now().Before(m.expiresAt) {
		m.teardownLocked(true)
		m.applyLocked(eventDisconnected)
		return walleterr.New(walleterr.CodeSessionExpired)
	}
	return nil
}

func (m *Manager) adoptLocked(auth signer.Authorization) error {
	expiresAt := m.now().Add(m.ttl)
	if err := m.store.Set(KeyCredential, auth.Credential); err != nil {
		return walleterr.Wrap(walleterr.CodeInternal, err)
	}
	if err := m.store.Set(KeySignerAddress, auth.Address.String()); err != nil {
		return walleterr.Wrap(walleterr.CodeInternal, err)
	}
	if err := m.store.Set(KeySessionExpiry, strconv.FormatInt(expiresAt.UnixMilli(), 10)); err != nil {
		return walleterr.Wrap(walleterr.CodeInternal, err)
	}
	m.credential = auth.Credential
	m.address = auth.Address
	m.expiresAt = expiresAt
	return nil
}

// teardownLocked wipes session state. fireHooks distinguishes a real session
// ending from discarding unreadable leftovers.
func (m *Manager) teardownLocked(fireHooks bool) {
	if err := m.store.Delete(KeyCredential, KeySignerAddress, KeySessionExpiry); err != nil {
		m.logger.Warn("failed to delete session keys", "error", err)
	}
	m.credential = ""
	m.address = ledger.Pubkey{}
	m.expiresAt = time.Time{}
	if fireHooks {
		for _, hook := range m.onDisconnect {
			hook()
		}
	}
}

func (m *Manager) applyLocked(ev event) bool {
	next, ok := m.state.next(ev)
	if !ok {
		return false
	}
	if next != m.state {
		m.logger.Debug("session state change", "from", m.state, "to", next)
	}
	m.state = next
	return true
}

// classifyHandshake maps raw signer and transport failures from the connect
// handshake onto the error taxonomy.
func classifyHandshake(err error) error {
	switch {
	case errors.Is(err, signer.ErrDeclined):
		return walleterr.Wrap(walleterr.CodeUserDeclined, err)
	case errors.Is(err, signer.ErrWalletNotFound):
		return walleterr.Wrap(walleterr.CodeWalletNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		return walleterr.Wrap(walleterr.CodeConnectionTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return walleterr.Wrap(walleterr.CodeNetworkError, err)
	}
	return walleterr.Wrap(walleterr.CodeAuthorizationFailed, err)
}

// Package delegation moves game accounts between the base layer and the
// rollup and executes game actions wherever the account currently lives.
// Delegation state is never cached: every decision starts from a fresh
// account read, because another participant can delegate or undelegate the
// game at any time.
package delegation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/gamesession"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/program"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/walleterr"
)

// Delegation propagation polling: the base layer needs a moment before the
// ownership flip becomes visible.
const (
	DefaultPollInterval = time.Second
	DefaultPollAttempts = 10
)

var shotLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "roulette",
	Subsystem: "delegation",
	Name:      "shot_latency_seconds",
	Help:      "End to end latency of a rollup shot: sign, submit, confirm, read back.",
	Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
})

// Signing is the slice of the wallet session the controller needs.
type Signing interface {
	Address() ledger.Pubkey
	Sign(ctx context.Context, txs []*ledger.Transaction) error
}

// ShotResult reports one executed game action.
type ShotResult struct {
	Signature string
	BulletHit bool
	GameOver  bool
	Winner    *ledger.Pubkey
	Remaining int
	Latency   time.Duration
}

// Controller routes game operations to the right execution environment.
type Controller struct {
	base      ledger.Client
	rollup    ledger.Client
	wallet    Signing
	sessions  *gamesession.Authorizer
	validator ledger.Pubkey
	logger    *slog.Logger

	pollInterval time.Duration
	pollAttempts int
}

type Option func(*Controller)

func WithValidator(validator ledger.Pubkey) Option {
	return func(c *Controller) { c.validator = validator }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithPollPolicy(interval time.Duration, attempts int) Option {
	return func(c *Controller) {
		c.pollInterval = interval
		c.pollAttempts = attempts
	}
}

func New(base, rollup ledger.Client, wallet Signing, sessions *gamesession.Authorizer, opts ...Option) *Controller {
	c := &Controller{
		base:         base,
		rollup:       rollup,
		wallet:       wallet,
		sessions:     sessions,
		validator:    ledger.DefaultRollupValidator,
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
		pollAttempts: DefaultPollAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsDelegated reads the game account on the base layer and checks its owner.
func (c *Controller) IsDelegated(ctx context.Context, gameID uint64) (bool, error) {
	info, err := c.base.AccountInfo(ctx, program.GameAddress(gameID))
	if err != nil {
		return false, walleterr.Wrap(walleterr.CodeRPCError, err)
	}
	return info != nil && info.Owner.Equal(ledger.DelegationProgramID), nil
}

// Delegate hands the game account to the delegation program and waits for the
// ownership flip to propagate. Delegating an already-delegated game is a
// no-op.
func (c *Controller) Delegate(ctx context.Context, gameID uint64) error {
	delegated, err := c.IsDelegated(ctx, gameID)
	if err != nil {
		return err
	}
	if delegated {
		c.logger.Debug("game already delegated", "game_id", gameID)
		return nil
	}

	sig, err := c.submit(ctx, c.base,
		program.DelegateGame(gameID, c.wallet.Address(), c.validator))
	if err != nil {
		return err
	}
	c.logger.Info("delegation submitted", "game_id", gameID, "signature", sig)
	return c.waitForDelegation(ctx, gameID)
}

func (c *Controller) waitForDelegation(ctx context.Context, gameID uint64) error {
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return walleterr.Wrap(walleterr.CodeTimeout, ctx.Err())
			case <-time.After(c.pollInterval):
			}
		}
		delegated, err := c.IsDelegated(ctx, gameID)
		if err != nil {
			// Transient read failures do not end the wait.
			c.logger.Debug("delegation poll failed", "game_id", gameID, "error", err)
			continue
		}
		if delegated {
			c.logger.Info("delegation propagated", "game_id", gameID, "polls", attempt+1)
			return nil
		}
	}
	return walleterr.New(walleterr.CodeDelegationTimeout)
}

// ExecuteAction spends one pre-authorized action and fires a shot on the
// rollup. The action budget is spent before submission, so a failed shot
// still costs its slot.
func (c *Controller) ExecuteAction(ctx context.Context, gameID uint64) (ShotResult, error) {
	delegated, err := c.IsDelegated(ctx, gameID)
	if err != nil {
		return ShotResult{}, err
	}
	if !delegated {
		return ShotResult{}, walleterr.New(walleterr.CodeNotDelegated)
	}

	remaining, err := c.sessions.ConsumeAction(gameID)
	if err != nil {
		return ShotResult{}, err
	}

	start := time.Now()
	sig, err := c.submit(ctx, c.rollup, program.TakeShot(gameID, c.wallet.Address()))
	if err != nil {
		return ShotResult{Remaining: remaining}, err
	}
	view, err := c.readGame(ctx, c.rollup, gameID)
	if err != nil {
		return ShotResult{Signature: sig, Remaining: remaining}, err
	}
	latency := time.Since(start)
	shotLatency.Observe(latency.Seconds())

	result := ShotResult{
		Signature: sig,
		BulletHit: view.BulletHit(),
		GameOver:  view.GameOver(),
		Winner:    view.Winner,
		Remaining: remaining,
		Latency:   latency,
	}
	c.logger.Info("shot executed",
		"game_id", gameID,
		"signature", sig,
		"bullet_hit", result.BulletHit,
		"game_over", result.GameOver,
		"remaining_actions", remaining,
		"latency_ms", latency.Milliseconds())
	return result, nil
}

// Commit flushes the rollup's view of the game back to the base layer
// without ending the delegation. There is nothing to commit for a game the
// base layer still owns.
func (c *Controller) Commit(ctx context.Context, gameID uint64) (string, error) {
	delegated, err := c.IsDelegated(ctx, gameID)
	if err != nil {
		return "", err
	}
	if !delegated {
		return "", walleterr.New(walleterr.CodeNotDelegated)
	}
	return c.submit(ctx, c.rollup, program.CommitGame(gameID, c.wallet.Address()))
}

// Undelegate commits and returns ownership to the game program. Undelegating
// a non-delegated game is a no-op.
func (c *Controller) Undelegate(ctx context.Context, gameID uint64) error {
	delegated, err := c.IsDelegated(ctx, gameID)
	if err != nil {
		return err
	}
	if !delegated {
		c.logger.Debug("game not delegated, nothing to undelegate", "game_id", gameID)
		return nil
	}
	sig, err := c.submit(ctx, c.rollup, program.UndelegateGame(gameID, c.wallet.Address()))
	if err != nil {
		return err
	}
	c.logger.Info("undelegation submitted", "game_id", gameID, "signature", sig)
	return nil
}

// GameState reads and decodes the game account from whichever environment
// currently owns it.
func (c *Controller) GameState(ctx context.Context, gameID uint64) (program.GameAccountView, error) {
	client, err := c.ConnectionFor(ctx, gameID)
	if err != nil {
		return program.GameAccountView{}, err
	}
	return c.readGame(ctx, client, gameID)
}

// ConnectionFor picks the execution environment for a game: the rollup while
// delegated, the base layer otherwise.
func (c *Controller) ConnectionFor(ctx context.Context, gameID uint64) (ledger.Client, error) {
	delegated, err := c.IsDelegated(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if delegated {
		return c.rollup, nil
	}
	return c.base, nil
}

func (c *Controller) readGame(ctx context.Context, client ledger.Client, gameID uint64) (program.GameAccountView, error) {
	info, err := client.AccountInfo(ctx, program.GameAddress(gameID))
	if err != nil {
		return program.GameAccountView{}, walleterr.Wrap(walleterr.CodeRPCError, err)
	}
	if info == nil {
		return program.GameAccountView{}, walleterr.New(walleterr.CodeInvalidAccount)
	}
	view, err := program.DecodeGameAccount(info.Data)
	if err != nil {
		return program.GameAccountView{}, walleterr.Wrap(walleterr.CodeInvalidAccount, err)
	}
	return view, nil
}

// submit builds, signs, sends and confirms a single-instruction transaction
// against the given environment.
func (c *Controller) submit(ctx context.Context, client ledger.Client, ixs ...ledger.Instruction) (string, error) {
	hash, err := client.LatestBlockhash(ctx)
	if err != nil {
		return "", walleterr.Wrap(walleterr.CodeRPCError, err)
	}
	tx := &ledger.Transaction{
		FeePayer:        c.wallet.Address(),
		RecentBlockhash: hash,
		Instructions:    ixs,
	}
	if err := c.wallet.Sign(ctx, []*ledger.Transaction{tx}); err != nil {
		return "", err
	}
	sig, err := client.SendTransaction(ctx, tx)
	if err != nil {
		return "", walleterr.Wrap(walleterr.CodeTransactionFailed, err)
	}
	if err := client.ConfirmTransaction(ctx, sig); err != nil {
		if errors.Is(err, ledger.ErrConfirmTimeout) {
			return sig, walleterr.Wrap(walleterr.CodeTransactionTimeout, err)
		}
		return sig, walleterr.Wrap(walleterr.CodeTransactionFailed, err)
	}
	return sig, nil
}

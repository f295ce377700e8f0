// Package token executes mint and transfer operations over two
// interchangeable paths: compressed state-tree balances and classic token
// accounts. The service owns classification, retry and the automatic
// fallback from the compressed path to the classic one.
package token

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/retry"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/walleterr"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roulette",
		Subsystem: "token",
		Name:      "operations_total",
		Help:      "Token operations by operation, path and outcome.",
	}, []string{"operation", "path", "outcome"})

	fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roulette",
		Subsystem: "token",
		Name:      "fallbacks_total",
		Help:      "Operations that fell back from the compressed path.",
	})
)

// Result is the uniform outcome every operation returns, success or failure.
type Result struct {
	Signature      string `json:"signature,omitempty"`
	UsedCompressed bool   `json:"usedCompressed"`
	FallbackUsed   bool   `json:"fallbackUsed"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// Service routes token operations. PreferCompressed false sends everything
// straight to the classic path and never sets the fallback flag.
type Service struct {
	compressed CompressedBackend
	standard   Backend
	policy     retry.Policy
	prefer     bool
	logger     *slog.Logger
}

type Option func(*Service)

func WithRetryPolicy(policy retry.Policy) Option {
	return func(s *Service) { s.policy = policy }
}

func WithPreferCompressed(prefer bool) Option {
	return func(s *Service) { s.prefer = prefer }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(compressed CompressedBackend, standard Backend, opts ...Option) *Service {
	s := &Service{
		compressed: compressed,
		standard:   standard,
		policy:     retry.DefaultPolicy(),
		prefer:     true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateMint(ctx context.Context, authority ledger.Pubkey, decimals uint8) (Result, error) {
	return s.runWithFallback(ctx, "create_mint",
		func(ctx context.Context) (string, error) {
			return s.compressed.CreateMint(ctx, authority, decimals)
		},
		func(ctx context.Context) (string, error) {
			return s.standard.CreateMint(ctx, authority, decimals)
		})
}

func (s *Service) MintTo(ctx context.Context, mint, recipient ledger.Pubkey, amount uint64) (Result, error) {
	return s.runWithFallback(ctx, "mint_to",
		func(ctx context.Context) (string, error) {
			return s.compressed.MintTo(ctx, mint, recipient, amount)
		},
		func(ctx context.Context) (string, error) {
			return s.standard.MintTo(ctx, mint, recipient, amount)
		})
}

func (s *Service) Transfer(ctx context.Context, mint, from, to ledger.Pubkey, amount uint64) (Result, error) {
	return s.runWithFallback(ctx, "transfer",
		func(ctx context.Context) (string, error) {
			return s.compressed.Transfer(ctx, mint, from, to, amount)
		},
		func(ctx context.Context) (string, error) {
			return s.standard.Transfer(ctx, mint, from, to, amount)
		})
}

// Compress moves a classic balance into the state tree. Compressed-only:
// there is nothing to fall back to.
func (s *Service) Compress(ctx context.Context, mint, owner ledger.Pubkey, amount uint64) (Result, error) {
	return s.runCompressedOnly(ctx, "compress",
		func(ctx context.Context) (string, error) {
			return s.compressed.Compress(ctx, mint, owner, amount)
		})
}

// Decompress moves a state-tree balance back into a classic account.
func (s *Service) Decompress(ctx context.Context, mint, owner ledger.Pubkey, amount uint64) (Result, error) {
	return s.runCompressedOnly(ctx, "decompress",
		func(ctx context.Context) (string, error) {
			return s.compressed.Decompress(ctx, mint, owner, amount)
		})
}

func (s *Service) runWithFallback(ctx context.Context, operation string, compressed, standard func(context.Context) (string, error)) (Result, error) {
	if !s.prefer {
		sig, attempts, err := s.attempt(ctx, standard)
		return s.finish(operation, "standard", Result{Signature: sig}, attempts, err)
	}

	sig, attempts, err := s.attempt(ctx, compressed)
	if err == nil {
		return s.finish(operation, "compressed", Result{Signature: sig, UsedCompressed: true}, attempts, nil)
	}
	s.logger.Warn("compressed path failed, falling back",
		"operation", operation,
		"attempts", attempts,
		"error", err)
	opsTotal.WithLabelValues(operation, "compressed", "error").Inc()
	fallbacksTotal.Inc()

	sig, attempts, err = s.attempt(ctx, standard)
	return s.finish(operation, "standard", Result{Signature: sig, FallbackUsed: true}, attempts, err)
}

func (s *Service) runCompressedOnly(ctx context.Context, operation string, op func(context.Context) (string, error)) (Result, error) {
	sig, attempts, err := s.attempt(ctx, op)
	return s.finish(operation, "compressed", Result{Signature: sig, UsedCompressed: true}, attempts, err)
}

func (s *Service) attempt(ctx context.Context, op func(context.Context) (string, error)) (string, int, error) {
	return retry.Do(ctx, s.policy, func(err error) retry.Class {
		if IsRetryable(err) {
			return retry.Retryable
		}
		return retry.Terminal
	}, op)
}

func (s *Service) finish(operation, path string, result Result, attempts int, err error) (Result, error) {
	if err != nil {
		classified := Classify(err)
		result.Signature = ""
		result.ErrorMessage = classified.Error()
		opsTotal.WithLabelValues(operation, path, "error").Inc()
		s.logger.Error("token operation failed",
			"operation", operation,
			"path", path,
			"attempts", attempts,
			"error", classified)
		return result, classified
	}
	opsTotal.WithLabelValues(operation, path, "ok").Inc()
	s.logger.Info("token operation succeeded",
		"operation", operation,
		"path", path,
		"attempts", attempts,
		"signature", result.Signature)
	return result, nil
}

// Classify maps a raw operation failure onto the token error taxonomy. An
// already-classified error passes through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var classified *walleterr.Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ledger.ErrConfirmTimeout) {
		return walleterr.Wrap(walleterr.CodeTimeout, err)
	}
	var rpcErr *ledger.RPCError
	if errors.As(err, &rpcErr) {
		return walleterr.Wrap(walleterr.CodeRPCError, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return walleterr.Wrap(walleterr.CodeNetworkError, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient"):
		return walleterr.Wrap(walleterr.CodeInsufficientBalance, err)
	case strings.Contains(msg, "invalid account") || strings.Contains(msg, "could not find account"):
		return walleterr.Wrap(walleterr.CodeInvalidAccount, err)
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection"):
		return walleterr.Wrap(walleterr.CodeNetworkError, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return walleterr.Wrap(walleterr.CodeTimeout, err)
	}
	return walleterr.Wrap(walleterr.CodeUnknown, err)
}

// IsRetryable reports whether another attempt can plausibly succeed.
// Transport flakes are retryable; balance and account problems are not, and
// neither is anything unrecognized.
func IsRetryable(err error) bool {
	switch walleterr.CodeOf(Classify(err)) {
	case walleterr.CodeNetworkError, walleterr.CodeRPCError, walleterr.CodeTimeout:
		return true
	default:
		return false
	}
}

package token

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/retry"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/walleterr"
)

// scriptedBackend fails a fixed number of times per operation before
// succeeding, or always fails with a fixed error.
type scriptedBackend struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func (b *scriptedBackend) do() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	if b.calls <= b.failures {
		return "", &ledger.RPCError{Code: -32005, Message: "node is behind"}
	}
	return fmt.Sprintf("sig-%d", b.calls), nil
}

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *scriptedBackend) CreateMint(context.Context, ledger.Pubkey, uint8) (string, error) {
	return b.do()
}
func (b *scriptedBackend) MintTo(context.Context, ledger.Pubkey, ledger.Pubkey, uint64) (string, error) {
	return b.do()
}
func (b *scriptedBackend) Transfer(context.Context, ledger.Pubkey, ledger.Pubkey, ledger.Pubkey, uint64) (string, error) {
	return b.do()
}
func (b *scriptedBackend) Compress(context.Context, ledger.Pubkey, ledger.Pubkey, uint64) (string, error) {
	return b.do()
}
func (b *scriptedBackend) Decompress(context.Context, ledger.Pubkey, ledger.Pubkey, uint64) (string, error) {
	return b.do()
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 4 * time.Millisecond}
}

func testKeys() (ledger.Pubkey, ledger.Pubkey) {
	return ledger.Pubkey(sha256.Sum256([]byte("mint"))),
		ledger.Pubkey(sha256.Sum256([]byte("owner")))
}

func TestCompressedPathSucceeds(t *testing.T) {
	t.Parallel()

	compressed := &scriptedBackend{}
	standard := &scriptedBackend{}
	s := NewService(compressed, standard, WithRetryPolicy(fastPolicy()))
	mint, owner := testKeys()

	result, err := s.MintTo(context.Background(), mint, owner, 100)
	if err != nil {
		t.Fatalf("mint to: %v", err)
	}
	if !result.UsedCompressed || result.FallbackUsed {
		t.Fatalf("healthy compressed path: %+v", result)
	}
	if standard.callCount() != 0 {
		t.Fatalf("standard path must stay untouched")
	}
}

func TestTransientFailuresRetried(t *testing.T) {
	t.Parallel()

	compressed := &scriptedBackend{failures: 2}
	s := NewService(compressed, &scriptedBackend{}, WithRetryPolicy(fastPolicy()))
	mint, owner := testKeys()

	result, err := s.Transfer(context.Background(), mint, owner, owner, 5)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if compressed.callCount() != 3 {
		t.Fatalf("two transient failures need three attempts, got %d", compressed.callCount())
	}
	if result.FallbackUsed {
		t.Fatalf("retried success is not a fallback")
	}
}

func TestExhaustedCompressedPathFallsBack(t *testing.T) {
	t.Parallel()

	compressed := &scriptedBackend{err: &ledger.RPCError{Code: -32005, Message: "node is behind"}}
	standard := &scriptedBackend{}
	s := NewService(compressed, standard, WithRetryPolicy(fastPolicy()))
	_, owner := testKeys()

	result, err := s.CreateMint(context.Background(), owner, 9)
	if err != nil {
		t.Fatalf("create mint must succeed via fallback: %v", err)
	}
	if !result.FallbackUsed || result.UsedCompressed {
		t.Fatalf("fallback result mismatch: %+v", result)
	}
	if compressed.callCount() != 4 {
		t.Fatalf("retryable failure must exhaust all 4 attempts first, got %d", compressed.callCount())
	}
	if standard.callCount() != 1 {
		t.Fatalf("fallback must run once, got %d", standard.callCount())
	}
}

func TestTerminalFailureSkipsRetries(t *testing.T) {
	t.Parallel()

	compressed := &scriptedBackend{err: errors.New("insufficient balance for rent")}
	standard := &scriptedBackend{err: errors.New("insufficient balance for rent")}
	s := NewService(compressed, standard, WithRetryPolicy(fastPolicy()))
	mint, owner := testKeys()

	result, err := s.Transfer(context.Background(), mint, owner, owner, 5)
	if walleterr.CodeOf(err) != walleterr.CodeInsufficientBalance {
		t.Fatalf("want INSUFFICIENT_BALANCE, got %v", err)
	}
	if compressed.callCount() != 1 || standard.callCount() != 1 {
		t.Fatalf("terminal failures must not retry: compressed=%d standard=%d",
			compressed.callCount(), standard.callCount())
	}
	if result.ErrorMessage == "" {
		t.Fatalf("failure result must carry the error message")
	}
}

func TestPreferStandardRoutesDirectly(t *testing.T) {
	t.Parallel()

	compressed := &scriptedBackend{}
	standard := &scriptedBackend{}
	s := NewService(compressed, standard,
		WithRetryPolicy(fastPolicy()), WithPreferCompressed(false))
	mint, owner := testKeys()

	result, err := s.MintTo(context.Background(), mint, owner, 1)
	if err != nil {
		t.Fatalf("mint to: %v", err)
	}
	if result.UsedCompressed || result.FallbackUsed {
		t.Fatalf("direct standard routing must not flag compression or fallback: %+v", result)
	}
	if compressed.callCount() != 0 {
		t.Fatalf("compressed path must stay untouched")
	}
}

func TestCompressHasNoFallback(t *testing.T) {
	t.Parallel()

	compressed := &scriptedBackend{err: &ledger.RPCError{Code: -32005, Message: "node is behind"}}
	standard := &scriptedBackend{}
	s := NewService(compressed, standard, WithRetryPolicy(fastPolicy()))
	mint, owner := testKeys()

	result, err := s.Compress(context.Background(), mint, owner, 10)
	if walleterr.CodeOf(err) != walleterr.CodeRPCError {
		t.Fatalf("want RPC_ERROR, got %v", err)
	}
	if result.FallbackUsed {
		t.Fatalf("compress must never fall back")
	}
	if standard.callCount() != 0 {
		t.Fatalf("compress must not touch the standard path")
	}
}

func TestDecompressSucceeds(t *testing.T) {
	t.Parallel()

	s := NewService(&scriptedBackend{}, &scriptedBackend{}, WithRetryPolicy(fastPolicy()))
	mint, owner := testKeys()

	result, err := s.Decompress(context.Background(), mint, owner, 10)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !result.UsedCompressed || result.Signature == "" {
		t.Fatalf("decompress result mismatch: %+v", result)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want walleterr.Code
	}{
		{"rpc", &ledger.RPCError{Code: -32000, Message: "busy"}, walleterr.CodeRPCError},
		{"deadline", context.DeadlineExceeded, walleterr.CodeTimeout},
		{"confirm timeout", ledger.ErrConfirmTimeout, walleterr.CodeTimeout},
		{"balance", errors.New("Insufficient lamports"), walleterr.CodeInsufficientBalance},
		{"account", errors.New("could not find account xyz"), walleterr.CodeInvalidAccount},
		{"network", errors.New("connection reset by peer"), walleterr.CodeNetworkError},
		{"unknown", errors.New("something else"), walleterr.CodeUnknown},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := walleterr.CodeOf(Classify(tc.err)); got != tc.want {
				t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	if !IsRetryable(&ledger.RPCError{Code: -32000, Message: "busy"}) {
		t.Fatalf("rpc errors are retryable")
	}
	if IsRetryable(errors.New("insufficient balance")) {
		t.Fatalf("balance errors are terminal")
	}
	if IsRetryable(errors.New("completely novel failure")) {
		t.Fatalf("unknown errors are terminal")
	}
}

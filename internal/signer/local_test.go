package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

func newTestSigner(t *testing.T) *LocalSigner {
	t.Helper()
	s, err := NewLocalSigner(testMnemonic, nil)
	if err != nil {
		t.Fatalf("new local signer: %v", err)
	}
	return s
}

func testTx() *ledger.Transaction {
	return &ledger.Transaction{
		FeePayer:        ledger.Pubkey(sha256.Sum256([]byte("payer"))),
		RecentBlockhash: ledger.Blockhash(sha256.Sum256([]byte("hash"))),
		Instructions: []ledger.Instruction{{
			ProgramID: ledger.Pubkey(sha256.Sum256([]byte("program"))),
			Data:      []byte("data"),
		}},
	}
}

func TestNewLocalSignerRejectsBadMnemonic(t *testing.T) {
	t.Parallel()

	if _, err := NewLocalSigner("not a mnemonic", nil); err == nil {
		t.Fatalf("bad mnemonic must be rejected")
	}
}

func TestDerivedAddressStable(t *testing.T) {
	t.Parallel()

	a := newTestSigner(t)
	b := newTestSigner(t)
	if !a.Address().Equal(b.Address()) {
		t.Fatalf("same mnemonic must derive same address")
	}
}

func TestAuthorizeIssuesCredential(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	auth, err := s.Authorize(context.Background(), Identity{Name: "test"})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if auth.Credential == "" {
		t.Fatalf("credential must not be empty")
	}
	if !auth.Address.Equal(s.Address()) {
		t.Fatalf("address mismatch")
	}
}

func TestReauthorizeRotatesCredential(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	ctx := context.Background()
	auth, err := s.Authorize(ctx, Identity{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	rotated, err := s.Reauthorize(ctx, auth.Credential, Identity{})
	if err != nil {
		t.Fatalf("reauthorize: %v", err)
	}
	if rotated.Credential == auth.Credential {
		t.Fatalf("credential must rotate")
	}

	// The old credential is spent.
	if _, err := s.Reauthorize(ctx, auth.Credential, Identity{}); err == nil {
		t.Fatalf("spent credential must be rejected")
	}
}

func TestDeauthorizeInvalidatesCredential(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	ctx := context.Background()
	auth, _ := s.Authorize(ctx, Identity{})
	if err := s.Deauthorize(ctx, auth.Credential); err != nil {
		t.Fatalf("deauthorize: %v", err)
	}
	if _, err := s.Reauthorize(ctx, auth.Credential, Identity{}); err == nil {
		t.Fatalf("deauthorized credential must be rejected")
	}
}

func TestSignTransactionsProducesValidSignature(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	tx := testTx()
	if err := s.SignTransactions(context.Background(), []*ledger.Transaction{tx}); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(tx.Signatures) != 1 {
		t.Fatalf("expected one signature, got %d", len(tx.Signatures))
	}
	if !ed25519.Verify(s.key.Public().(ed25519.PublicKey), tx.Message(), tx.Signatures[0]) {
		t.Fatalf("signature must verify against the signer's public key")
	}
}

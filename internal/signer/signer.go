// Package signer defines the wallet boundary: the external credential holder
// that authorizes the client and signs outgoing transactions. The runtime
// only ever talks to the Signer interface; a wallet-app adapter and the local
// seed-derived signer both satisfy it.
package signer

import (
	"context"
	"errors"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
)

var (
	ErrDeclined       = errors.New("signer declined the request")
	ErrWalletNotFound = errors.New("no compatible wallet found")
	ErrBadCredential  = errors.New("credential rejected by signer")
	ErrNotAuthorized  = errors.New("signer session not authorized")
	ErrSigningFailure = errors.New("signer failed to sign")
)

// Identity describes the requesting application, shown by wallet apps during
// the authorization prompt.
type Identity struct {
	Name string
	URI  string
	Icon string
}

// Authorization is the outcome of a successful handshake. Credential is an
// opaque token permitting repeated signing without re-prompting until expiry
// or rotation.
type Authorization struct {
	Address    ledger.Pubkey
	Credential string
}

type Signer interface {
	// Authorize runs the full handshake, prompting the credential holder.
	Authorize(ctx context.Context, identity Identity) (Authorization, error)
	// Reauthorize presents a stored credential; the signer may rotate it.
	Reauthorize(ctx context.Context, credential string, identity Identity) (Authorization, error)
	// SignTransactions fills in signatures on every transaction, in place.
	SignTransactions(ctx context.Context, txs []*ledger.Transaction) error
	// SignAndSendTransactions signs and submits, returning one signature per
	// transaction.
	SignAndSendTransactions(ctx context.Context, txs []*ledger.Transaction) ([]string, error)
	// Deauthorize invalidates a credential. Best effort.
	Deauthorize(ctx context.Context, credential string) error
}

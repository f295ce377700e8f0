package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
)

const hkdfInfoSigning = "magicroulette/signer/signing/v1"

// LocalSigner holds an ed25519 key derived from a bip39 mnemonic and answers
// the signer protocol in-process. It is the development and test stand-in for
// a wallet app: no prompts, every request approved.
type LocalSigner struct {
	key     ed25519.PrivateKey
	address ledger.Pubkey
	submit  ledger.Client

	mu          sync.Mutex
	credentials map[string]bool
}

// NewLocalSigner derives the signing key from a mnemonic. submit may be nil
// when only Sign (not SignAndSend) is needed.
func NewLocalSigner(mnemonic string, submit ledger.Client) (*LocalSigner, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	reader := hkdf.New(sha256.New, seed, nil, []byte(hkdfInfoSigning))
	keySeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, keySeed); err != nil {
		return nil, err
	}
	key := ed25519.NewKeyFromSeed(keySeed)
	var address ledger.Pubkey
	copy(address[:], key.Public().(ed25519.PublicKey))
	return &LocalSigner{
		key:         key,
		address:     address,
		submit:      submit,
		credentials: make(map[string]bool),
	}, nil
}

// GenerateMnemonic produces a fresh 24-word mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func (s *LocalSigner) Address() ledger.Pubkey { return s.address }

func (s *LocalSigner) Authorize(_ context.Context, _ Identity) (Authorization, error) {
	credential, err := newCredential()
	if err != nil {
		return Authorization{}, err
	}
	s.mu.Lock()
	s.credentials[credential] = true
	s.mu.Unlock()
	return Authorization{Address: s.address, Credential: credential}, nil
}

// Reauthorize validates the stored credential and rotates it.
func (s *LocalSigner) Reauthorize(_ context.Context, credential string, _ Identity) (Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.credentials[credential] {
		return Authorization{}, ErrBadCredential
	}
	rotated, err := newCredential()
	if err != nil {
		return Authorization{}, err
	}
	delete(s.credentials, credential)
	s.credentials[rotated] = true
	return Authorization{Address: s.address, Credential: rotated}, nil
}

func (s *LocalSigner) SignTransactions(_ context.Context, txs []*ledger.Transaction) error {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrSigningFailure, err)
		}
		sig := ed25519.Sign(s.key, tx.Message())
		tx.Signatures = [][]byte{sig}
	}
	return nil
}

func (s *LocalSigner) SignAndSendTransactions(ctx context.Context, txs []*ledger.Transaction) ([]string, error) {
	if err := s.SignTransactions(ctx, txs); err != nil {
		return nil, err
	}
	if s.submit == nil {
		// No submit capability; report the local signature as the identifier.
		out := make([]string, len(txs))
		for i, tx := range txs {
			out[i] = base58.Encode(tx.Signatures[0])
		}
		return out, nil
	}
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		sig, err := s.submit.SendTransaction(ctx, tx)
		if err != nil {
			return out, err
		}
		out = append(out, sig)
	}
	return out, nil
}

func (s *LocalSigner) Deauthorize(_ context.Context, credential string) error {
	s.mu.Lock()
	delete(s.credentials, credential)
	s.mu.Unlock()
	return nil
}

func newCredential() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "mwa_" + hex.EncodeToString(buf), nil
}

package token

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/program"
)

// methodTag derives the 8-byte anchor-style method tag used by the
// compressed-token program.
func methodTag(name string) []byte {
	h := sha256.Sum256([]byte("global:" + name))
	return h[:8]
}

// TokenProgramID is the standard token program.
var TokenProgramID = ledger.MustPubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

// CompressedTokenProgramID is the compressed-token program, which stores
// balances in a state tree instead of one account per holder.
var CompressedTokenProgramID = ledger.MustPubkey("cTokenmWW8bLPjZEBAUgYy3zKxQZW6VKi7bqNFEVv3m")

// Backend executes the three operations both paths support.
type Backend interface {
	CreateMint(ctx context.Context, authority ledger.Pubkey, decimals uint8) (string, error)
	MintTo(ctx context.Context, mint, recipient ledger.Pubkey, amount uint64) (string, error)
	Transfer(ctx context.Context, mint, from, to ledger.Pubkey, amount uint64) (string, error)
}

// CompressedBackend additionally moves balances between the two
// representations.
type CompressedBackend interface {
	Backend
	Compress(ctx context.Context, mint, owner ledger.Pubkey, amount uint64) (string, error)
	Decompress(ctx context.Context, mint, owner ledger.Pubkey, amount uint64) (string, error)
}

// Signing is the wallet slice the backends need.
type Signing interface {
	Address() ledger.Pubkey
	Sign(ctx context.Context, txs []*ledger.Transaction) error
}

// Standard token instruction tags.
const (
	tagInitializeMint uint8 = 0
	tagTransfer       uint8 = 3
	tagMintTo         uint8 = 7
)

// StandardBackend builds classic token instructions and submits them through
// one ledger client.
type StandardBackend struct {
	client ledger.Client
	wallet Signing
}

func NewStandardBackend(client ledger.Client, wallet Signing) *StandardBackend {
	return &StandardBackend{client: client, wallet: wallet}
}

func (b *StandardBackend) CreateMint(ctx context.Context, authority ledger.Pubkey, decimals uint8) (string, error) {
	mint := program.DeriveAddress(TokenProgramID, []byte("mint"), authority[:])
	data := []byte{tagInitializeMint, decimals}
	data = append(data, authority[:]...)
	return submit(ctx, b.client, b.wallet, ledger.Instruction{
		ProgramID: TokenProgramID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: mint, IsWritable: true},
			{Pubkey: authority, IsSigner: true, IsWritable: true},
		},
		Data: data,
	})
}

func (b *StandardBackend) MintTo(ctx context.Context, mint, recipient ledger.Pubkey, amount uint64) (string, error) {
	data := make([]byte, 9)
	data[0] = tagMintTo
	binary.LittleEndian.PutUint64(data[1:], amount)
	return submit(ctx, b.client, b.wallet, ledger.Instruction{
		ProgramID: TokenProgramID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: mint, IsWritable: true},
			{Pubkey: recipient, IsWritable: true},
			{Pubkey: b.wallet.Address(), IsSigner: true},
		},
		Data: data,
	})
}

func (b *StandardBackend) Transfer(ctx context.Context, _ ledger.Pubkey, from, to ledger.Pubkey, amount uint64) (string, error) {
	data := make([]byte, 9)
	data[0] = tagTransfer
	binary.LittleEndian.PutUint64(data[1:], amount)
	return submit(ctx, b.client, b.wallet, ledger.Instruction{
		ProgramID: TokenProgramID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: from, IsWritable: true},
			{Pubkey: to, IsWritable: true},
			{Pubkey: b.wallet.Address(), IsSigner: true},
		},
		Data: data,
	})
}

// LightBackend targets the compressed-token program. Its instructions carry
// anchor-style method tags and route through the shared state tree.
type LightBackend struct {
	client    ledger.Client
	wallet    Signing
	stateTree ledger.Pubkey
}

func NewLightBackend(client ledger.Client, wallet Signing) *LightBackend {
	return &LightBackend{
		client:    client,
		wallet:    wallet,
		stateTree: program.DeriveAddress(CompressedTokenProgramID, []byte("state_tree")),
	}
}

func (b *LightBackend) instruction(method string, mint ledger.Pubkey, amount uint64, extra ...ledger.AccountMeta) ledger.Instruction {
	data := methodTag(method)
	data = binary.LittleEndian.AppendUint64(data, amount)
	accounts := []ledger.AccountMeta{
		{Pubkey: mint, IsWritable: true},
		{Pubkey: b.stateTree, IsWritable: true},
		{Pubkey: b.wallet.Address(), IsSigner: true, IsWritable: true},
	}
	accounts = append(accounts, extra...)
	return ledger.Instruction{ProgramID: CompressedTokenProgramID, Accounts: accounts, Data: data}
}

func (b *LightBackend) CreateMint(ctx context.Context, authority ledger.Pubkey, decimals uint8) (string, error) {
	data := methodTag("create_compressed_mint")
	data = append(data, decimals)
	data = append(data, authority[:]...)
	mint := program.DeriveAddress(CompressedTokenProgramID, []byte("mint"), authority[:])
	return submit(ctx, b.client, b.wallet, ledger.Instruction{
		ProgramID: CompressedTokenProgramID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: mint, IsWritable: true},
			{Pubkey: b.stateTree, IsWritable: true},
			{Pubkey: authority, IsSigner: true, IsWritable: true},
		},
		Data: data,
	})
}

func (b *LightBackend) MintTo(ctx context.Context, mint, recipient ledger.Pubkey, amount uint64) (string, error) {
	return submit(ctx, b.client, b.wallet,
		b.instruction("mint_to_compressed", mint, amount,
			ledger.AccountMeta{Pubkey: recipient}))
}

func (b *LightBackend) Transfer(ctx context.Context, mint, from, to ledger.Pubkey, amount uint64) (string, error) {
	return submit(ctx, b.client, b.wallet,
		b.instruction("transfer_compressed", mint, amount,
			ledger.AccountMeta{Pubkey: from, IsWritable: true},
			ledger.AccountMeta{Pubkey: to, IsWritable: true}))
}

func (b *LightBackend) Compress(ctx context.Context, mint, owner ledger.Pubkey, amount uint64) (string, error) {
	return submit(ctx, b.client, b.wallet,
		b.instruction("compress", mint, amount,
			ledger.AccountMeta{Pubkey: owner, IsWritable: true}))
}

func (b *LightBackend) Decompress(ctx context.Context, mint, owner ledger.Pubkey, amount uint64) (string, error) {
	return submit(ctx, b.client, b.wallet,
		b.instruction("decompress", mint, amount,
			ledger.AccountMeta{Pubkey: owner, IsWritable: true}))
}

func submit(ctx context.Context, client ledger.Client, wallet Signing, ixs ...ledger.Instruction) (string, error) {
	hash, err := client.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	tx := &ledger.Transaction{
		FeePayer:        wallet.Address(),
		RecentBlockhash: hash,
		Instructions:    ixs,
	}
	if err := wallet.Sign(ctx, []*ledger.Transaction{tx}); err != nil {
		return "", err
	}
	sig, err := client.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}
	if err := client.ConfirmTransaction(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

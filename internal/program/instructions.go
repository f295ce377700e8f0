// Package program composes typed instructions for the on-chain roulette
// program and decodes its account state. The program's internal logic lives
// on chain; this package only builds the wire forms the runtime submits.
package program

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
)

// ID is the deployed roulette program address.
var ID = ledger.MustPubkey("JE2fDdXcYEprUR2yPmWdLGDSJ7Y7HD8qsJ52eD6qUavq")

// SystemProgramID is the native transfer program.
var SystemProgramID = ledger.Pubkey{}

type GameMode uint8

const (
	ModeOneVsOne GameMode = iota
	ModeTwoVsTwo
)

// discriminator derives the 8-byte method tag for a global instruction.
func discriminator(name string) []byte {
	h := sha256.Sum256([]byte("global:" + name))
	return h[:8]
}

// DeriveAddress computes the deterministic program-owned address for a seed
// set.
func DeriveAddress(programID ledger.Pubkey, seeds ...[]byte) ledger.Pubkey {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte("ProgramDerivedAddress"))
	var out ledger.Pubkey
	copy(out[:], h.Sum(nil))
	return out
}

// GameAddress derives the game account address for a game id.
func GameAddress(gameID uint64) ledger.Pubkey {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], gameID)
	return DeriveAddress(ID, []byte("game"), id[:])
}

// VaultAddress derives the escrow vault for a game account.
func VaultAddress(game ledger.Pubkey) ledger.Pubkey {
	return DeriveAddress(ID, []byte("vault"), game[:])
}

// PlatformConfigAddress derives the singleton platform config account.
func PlatformConfigAddress() ledger.Pubkey {
	return DeriveAddress(ID, []byte("platform_config"))
}

func encodeU64(v uint64) []byte {
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], v)
	return out[:]
}

// DelegateGame transfers game account ownership to the delegation program so
// the rollup can execute actions against it.
func DelegateGame(gameID uint64, payer ledger.Pubkey, validator ledger.Pubkey) ledger.Instruction {
	data := append(discriminator("delegate_game"), validator[:]...)
	return ledger.Instruction{
		ProgramID: ID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: GameAddress(gameID), IsWritable: true},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: ledger.DelegationProgramID},
		},
		Data: data,
	}
}

// CommitGame persists the rollup's view of the game back to the base layer.
func CommitGame(gameID uint64, payer ledger.Pubkey) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: ID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: GameAddress(gameID), IsWritable: true},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
		},
		Data: discriminator("commit_game"),
	}
}

// UndelegateGame returns game account ownership to the roulette program.
func UndelegateGame(gameID uint64, payer ledger.Pubkey) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: ID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: GameAddress(gameID), IsWritable: true},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
		},
		Data: discriminator("undelegate_game"),
	}
}

// TakeShot advances the cylinder by one chamber for the acting player.
func TakeShot(gameID uint64, player ledger.Pubkey) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: ID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: GameAddress(gameID), IsWritable: true},
			{Pubkey: player, IsSigner: true},
		},
		Data: discriminator("take_shot"),
	}
}

// CreateGameSol opens a new game funded with native balance.
func CreateGameSol(gameID uint64, mode GameMode, entryFeeLamports uint64, vrfSeed [32]byte, creator ledger.Pubkey) ledger.Instruction {
	data := discriminator("create_game_sol")
	data = append(data, byte(mode))
	data = append(data, encodeU64(entryFeeLamports)...)
	data = append(data, vrfSeed[:]...)
	game := GameAddress(gameID)
	return ledger.Instruction{
		ProgramID: ID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: game, IsWritable: true},
			{Pubkey: PlatformConfigAddress(), IsWritable: true},
			{Pubkey: creator, IsSigner: true, IsWritable: true},
			{Pubkey: VaultAddress(game), IsWritable: true},
			{Pubkey: SystemProgramID},
		},
		Data: data,
	}
}

// JoinGameSol adds a player to a waiting game, escrowing the entry fee.
func JoinGameSol(gameID uint64, player ledger.Pubkey) ledger.Instruction {
	game := GameAddress(gameID)
	return ledger.Instruction{
		ProgramID: ID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: game, IsWritable: true},
			{Pubkey: player, IsSigner: true, IsWritable: true},
			{Pubkey: VaultAddress(game), IsWritable: true},
			{Pubkey: SystemProgramID},
		},
		Data: discriminator("join_game_sol"),
	}
}

// FinalizeGameSol settles a finished game: pays winners, collects fees.
func FinalizeGameSol(gameID uint64, payer, treasury, winner1, winner2 ledger.Pubkey) ledger.Instruction {
	game := GameAddress(gameID)
	return ledger.Instruction{
		ProgramID: ID,
		Accounts: []ledger.AccountMeta{
			{Pubkey: game, IsWritable: true},
			{Pubkey: PlatformConfigAddress()},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: VaultAddress(game), IsWritable: true},
			{Pubkey: treasury, IsWritable: true},
			{Pubkey: winner1, IsWritable: true},
			{Pubkey: winner2, IsWritable: true},
			{Pubkey: SystemProgramID},
		},
		Data: discriminator("finalize_game_sol"),
	}
}

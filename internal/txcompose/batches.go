package txcompose

import (
	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/program"
)

// BatchCreateGame prepares the instruction groups that open a game and seat
// its creator, one approval round for both.
func BatchCreateGame(gameID uint64, mode program.GameMode, entryFeeLamports uint64, vrfSeed [32]byte, creator ledger.Pubkey) [][]ledger.Instruction {
	return [][]ledger.Instruction{
		{program.CreateGameSol(gameID, mode, entryFeeLamports, vrfSeed, creator)},
		{program.JoinGameSol(gameID, creator)},
	}
}

// BatchFinalizeAndWithdraw prepares the settlement groups for a finished
// game: bring the account home from the rollup, then pay out.
func BatchFinalizeAndWithdraw(gameID uint64, payer, treasury, winner1, winner2 ledger.Pubkey) [][]ledger.Instruction {
	return [][]ledger.Instruction{
		{program.UndelegateGame(gameID, payer)},
		{program.FinalizeGameSol(gameID, payer, treasury, winner1, winner2)},
	}
}

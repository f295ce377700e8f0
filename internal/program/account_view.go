package program

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
)

var (
	ErrNotGameAccount = errors.New("account data is not a game account")
	ErrTruncatedData  = errors.New("game account data is truncated")
)

type GameStatus uint8

const (
	StatusWaitingForPlayers GameStatus = iota
	StatusDelegated
	StatusInProgress
	StatusFinished
	StatusCancelled
)

func (s GameStatus) String() string {
	switch s {
	case StatusWaitingForPlayers:
		return "waiting_for_players"
	case StatusDelegated:
		return "delegated"
	case StatusInProgress:
		return "in_progress"
	case StatusFinished:
		return "finished"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// GameAccountView is the closed decoded form of an on-chain game account.
// The raw account bytes are decoded exactly once, at this boundary; the rest
// of the runtime only ever sees this struct.
type GameAccountView struct {
	GameID         uint64
	Creator        ledger.Pubkey
	Mode           GameMode
	Status         GameStatus
	EntryFee       uint64
	TotalPot       uint64
	Players        []ledger.Pubkey
	BulletChamber  uint8
	CurrentChamber uint8
	CurrentTurn    uint8
	Winner         *ledger.Pubkey
}

// accountTag is the 8-byte discriminator prefixing game account data.
var accountTag = func() [8]byte {
	h := sha256.Sum256([]byte("account:Game"))
	var tag [8]byte
	copy(tag[:], h[:8])
	return tag
}()

const gameAccountMinLen = 8 + 8 + 32 + 1 + 1 + 8 + 8 + 1 + 1 + 1 + 1

// EncodeGameAccount renders a view back into account bytes. Tests and the
// local signer's in-memory ledger rely on the encode/decode pair agreeing.
func EncodeGameAccount(view GameAccountView) []byte {
	out := make([]byte, 0, gameAccountMinLen+len(view.Players)*32+33)
	out = append(out, accountTag[:]...)
	out = binary.LittleEndian.AppendUint64(out, view.GameID)
	out = append(out, view.Creator[:]...)
	out = append(out, byte(view.Mode), byte(view.Status))
	out = binary.LittleEndian.AppendUint64(out, view.EntryFee)
	out = binary.LittleEndian.AppendUint64(out, view.TotalPot)
	out = append(out, view.BulletChamber, view.CurrentChamber, view.CurrentTurn)
	out = append(out, byte(len(view.Players)))
	for _, p := range view.Players {
		out = append(out, p[:]...)
	}
	if view.Winner != nil {
		out = append(out, 1)
		out = append(out, view.Winner[:]...)
	} else {
		out = append(out, 0)
	}
	return out
}

// DecodeGameAccount decodes raw account bytes into the closed view form.
func DecodeGameAccount(data []byte) (GameAccountView, error) {
	if len(data) < gameAccountMinLen {
		return GameAccountView{}, ErrTruncatedData
	}
	if [8]byte(data[:8]) != accountTag {
		return GameAccountView{}, ErrNotGameAccount
	}
	view := GameAccountView{}
	off := 8
	view.GameID = binary.LittleEndian.Uint64(data[off:])
	off += 8
	copy(view.Creator[:], data[off:off+32])
	off += 32
	view.Mode = GameMode(data[off])
	off++
	status := GameStatus(data[off])
	if status > StatusCancelled {
		return GameAccountView{}, fmt.Errorf("%w: status %d", ErrNotGameAccount, status)
	}
	view.Status = status
	off++
	view.EntryFee = binary.LittleEndian.Uint64(data[off:])
	off += 8
	view.TotalPot = binary.LittleEndian.Uint64(data[off:])
	off += 8
	view.BulletChamber = data[off]
	view.CurrentChamber = data[off+1]
	view.CurrentTurn = data[off+2]
	playerCount := int(data[off+3])
	off += 4
	if len(data) < off+playerCount*32+1 {
		return GameAccountView{}, ErrTruncatedData
	}
	for i := 0; i < playerCount; i++ {
		var p ledger.Pubkey
		copy(p[:], data[off:off+32])
		view.Players = append(view.Players, p)
		off += 32
	}
	if data[off] == 1 {
		if len(data) < off+33 {
			return GameAccountView{}, ErrTruncatedData
		}
		var w ledger.Pubkey
		copy(w[:], data[off+1:off+33])
		view.Winner = &w
	}
	return view, nil
}

// GameOver reports whether the game reached a terminal status.
func (v GameAccountView) GameOver() bool {
	return v.Status == StatusFinished || v.Status == StatusCancelled
}

// BulletHit reports whether the current chamber holds the bullet.
func (v GameAccountView) BulletHit() bool {
	return v.CurrentChamber == v.BulletChamber
}

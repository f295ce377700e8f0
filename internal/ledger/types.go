// Package ledger is the client's boundary to the two ledger execution
// environments: the canonical base layer and the rollup. It defines the wire
// types composed by the rest of the runtime and a JSON-RPC client used to
// read accounts, fetch recency tokens and submit transactions.
package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

var (
	ErrBadPubkey     = errors.New("invalid public key")
	ErrNoFeePayer    = errors.New("transaction has no fee payer")
	ErrNoRecentHash  = errors.New("transaction has no recent blockhash")
	ErrNoInstruction = errors.New("transaction has no instructions")
)

type Pubkey [32]byte

func PubkeyFromBase58(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != 32 {
		return Pubkey{}, fmt.Errorf("%w: %q", ErrBadPubkey, s)
	}
	var pk Pubkey
	copy(pk[:], raw)
	return pk, nil
}

// MustPubkey panics on a malformed key. Reserved for package-level constants.
func MustPubkey(s string) Pubkey {
	pk, err := PubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (p Pubkey) String() string      { return base58.Encode(p[:]) }
func (p Pubkey) Equal(o Pubkey) bool { return p == o }
func (p Pubkey) IsZero() bool        { return p == Pubkey{} }

type Blockhash [32]byte

func BlockhashFromBase58(s string) (Blockhash, error) {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != 32 {
		return Blockhash{}, fmt.Errorf("invalid blockhash %q", s)
	}
	var bh Blockhash
	copy(bh[:], raw)
	return bh, nil
}

func (b Blockhash) String() string { return base58.Encode(b[:]) }
func (b Blockhash) IsZero() bool   { return b == Blockhash{} }

type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

type Version uint8

const (
	// VersionLegacy embeds full account metas in every instruction.
	VersionLegacy Version = iota
	// VersionV0 references a shared account table by index, producing a
	// smaller message when accounts repeat.
	VersionV0
)

const v0Marker = 0x80

// Transaction is an ordered instruction set sharing one recency token and one
// fee payer. Signatures are filled by the signer boundary.
type Transaction struct {
	FeePayer        Pubkey
	RecentBlockhash Blockhash
	Instructions    []Instruction
	Signatures      [][]byte
	Version         Version
}

func (tx *Transaction) Validate() error {
	if tx.FeePayer.IsZero() {
		return ErrNoFeePayer
	}
	if tx.RecentBlockhash.IsZero() {
		return ErrNoRecentHash
	}
	if len(tx.Instructions) == 0 {
		return ErrNoInstruction
	}
	return nil
}

// UniqueAccounts lists every account referenced by the transaction, fee payer
// first, in order of first appearance. Signer and writable flags are merged
// across references.
func (tx *Transaction) UniqueAccounts() []AccountMeta {
	index := map[Pubkey]int{}
	ordered := []AccountMeta{{Pubkey: tx.FeePayer, IsSigner: true, IsWritable: true}}
	index[tx.FeePayer] = 0
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if i, ok := index[meta.Pubkey]; ok {
				ordered[i].IsSigner = ordered[i].IsSigner || meta.IsSigner
				ordered[i].IsWritable = ordered[i].IsWritable || meta.IsWritable
				continue
			}
			index[meta.Pubkey] = len(ordered)
			ordered = append(ordered, meta)
		}
		if _, ok := index[ix.ProgramID]; !ok {
			index[ix.ProgramID] = len(ordered)
			ordered = append(ordered, AccountMeta{Pubkey: ix.ProgramID})
		}
	}
	return ordered
}

// SignerCount reports how many distinct signatures the transaction needs.
func (tx *Transaction) SignerCount() int {
	n := 0
	for _, meta := range tx.UniqueAccounts() {
		if meta.IsSigner {
			n++
		}
	}
	return n
}

// Message renders the signable message bytes for the transaction's version.
func (tx *Transaction) Message() []byte {
	var buf bytes.Buffer
	if tx.Version == VersionV0 {
		buf.WriteByte(v0Marker)
		tx.writeV0Message(&buf)
	} else {
		tx.writeLegacyMessage(&buf)
	}
	return buf.Bytes()
}

func (tx *Transaction) writeLegacyMessage(buf *bytes.Buffer) {
	buf.Write(tx.FeePayer[:])
	buf.Write(tx.RecentBlockhash[:])
	writeUvarint(buf, uint64(len(tx.Instructions)))
	for _, ix := range tx.Instructions {
		buf.Write(ix.ProgramID[:])
		writeUvarint(buf, uint64(len(ix.Accounts)))
		for _, meta := range ix.Accounts {
			buf.Write(meta.Pubkey[:])
			buf.WriteByte(metaFlags(meta))
		}
		writeUvarint(buf, uint64(len(ix.Data)))
		buf.Write(ix.Data)
	}
}

func (tx *Transaction) writeV0Message(buf *bytes.Buffer) {
	accounts := tx.UniqueAccounts()
	index := make(map[Pubkey]int, len(accounts))
	for i, meta := range accounts {
		index[meta.Pubkey] = i
	}

	buf.Write(tx.RecentBlockhash[:])
	writeUvarint(buf, uint64(len(accounts)))
	for _, meta := range accounts {
		buf.Write(meta.Pubkey[:])
		buf.WriteByte(metaFlags(meta))
	}
	writeUvarint(buf, uint64(len(tx.Instructions)))
	for _, ix := range tx.Instructions {
		buf.WriteByte(byte(index[ix.ProgramID]))
		writeUvarint(buf, uint64(len(ix.Accounts)))
		for _, meta := range ix.Accounts {
			buf.WriteByte(byte(index[meta.Pubkey]))
		}
		writeUvarint(buf, uint64(len(ix.Data)))
		buf.Write(ix.Data)
	}
}

// Serialize renders the full wire form: signature list followed by message.
func (tx *Transaction) Serialize() []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(tx.Signatures)))
	for _, sig := range tx.Signatures {
		buf.Write(sig)
	}
	buf.Write(tx.Message())
	return buf.Bytes()
}

// Size reports the serialized byte size.
func (tx *Transaction) Size() int { return len(tx.Serialize()) }

func metaFlags(meta AccountMeta) byte {
	var flags byte
	if meta.IsSigner {
		flags |= 0x01
	}
	if meta.IsWritable {
		flags |= 0x02
	}
	return flags
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

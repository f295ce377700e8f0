// Package txcompose prepares transactions for cheap, fast submission:
// instruction deduplication, compute-budget collapsing, version selection,
// and batch execution with a single wallet approval for many transactions.
package txcompose

import (
	"bytes"
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/walleterr"
)

// ComputeBudgetProgramID prices and caps transaction execution.
var ComputeBudgetProgramID = ledger.MustPubkey("ComputeBudget111111111111111111111111111111")

const (
	tagSetComputeUnitLimit uint8 = 2
	tagSetComputeUnitPrice uint8 = 3

	// DefaultComputeUnitLimit covers one instruction plus account
	// bookkeeping; the prelude scales it with the instruction count up to
	// the network cap.
	DefaultComputeUnitLimit uint32 = 200_000
	perInstructionUnits     uint32 = 50_000
	maxComputeUnits         uint32 = 1_400_000

	// SigningTarget is the budget for one wallet approval round.
	SigningTarget = 200 * time.Millisecond

	// MaxBatchSize caps one approval round. Wallet apps reject oversized
	// signAll requests.
	MaxBatchSize = 10

	// v0AccountThreshold is the unique-account count past which the compact
	// table-referenced format pays off.
	v0AccountThreshold = 20

	lamportsPerSignature uint64 = 5_000
)

var (
	signingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roulette",
		Subsystem: "txcompose",
		Name:      "signing_duration_seconds",
		Help:      "Wall time of one batch approval round.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	batchTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roulette",
		Subsystem: "txcompose",
		Name:      "batch_transactions_total",
		Help:      "Batched transactions by outcome.",
	}, []string{"outcome"})
)

// SetComputeUnitLimit caps the compute a transaction may burn.
func SetComputeUnitLimit(units uint32) ledger.Instruction {
	data := make([]byte, 5)
	data[0] = tagSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return ledger.Instruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// SetComputeUnitPrice sets the priority fee in micro-lamports per unit.
func SetComputeUnitPrice(microLamports uint64) ledger.Instruction {
	data := make([]byte, 9)
	data[0] = tagSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return ledger.Instruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// Signing is the wallet slice the composer needs: one address, one signAll.
type Signing interface {
	Address() ledger.Pubkey
	Sign(ctx context.Context, txs []*ledger.Transaction) error
}

// OptimizeReport describes what Optimize did to one instruction list,
// including the message-byte savings against the unoptimized legacy form.
type OptimizeReport struct {
	OriginalCount   int
	Deduplicated    int
	BudgetCollapsed int
	UniqueAccounts  int
	Version         ledger.Version
	OriginalBytes   int
	OptimizedBytes  int
	BytesSaved      int
	PercentSaved    float64
}

// Batch is a prepared set of transactions sharing one recency token and fee
// payer, ready for a single approval round.
type Batch struct {
	Transactions        []*ledger.Transaction
	Reports             []OptimizeReport
	FeeEstimateLamports uint64
}

// BatchResult carries per-transaction outcomes. A failed submission does not
// stop the rest of the batch.
type BatchResult struct {
	Signatures  []string
	Errors      []error
	Succeeded   int
	SigningTime time.Duration
}

// SigningStats aggregates approval rounds against the target, plus what was
// actually signed across them.
type SigningStats struct {
	Rounds       int
	WithinTarget int
	Total        time.Duration
	Transactions int
	Bytes        int
	Instructions int
	Signatures   int
}

func (s SigningStats) Average() time.Duration {
	if s.Rounds == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Rounds)
}

// ComplianceRate is the share of rounds that met the target, in [0, 1].
func (s SigningStats) ComplianceRate() float64 {
	if s.Rounds == 0 {
		return 1
	}
	return float64(s.WithinTarget) / float64(s.Rounds)
}

type Composer struct {
	client ledger.Client
	wallet Signing
	logger *slog.Logger

	unitLimit uint32
	unitPrice uint64

	statsMu sync.Mutex
	stats   SigningStats
}

type Option func(*Composer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) { c.logger = logger }
}

func WithComputeBudget(unitLimit uint32, unitPriceMicroLamports uint64) Option {
	return func(c *Composer) {
		c.unitLimit = unitLimit
		c.unitPrice = unitPriceMicroLamports
	}
}

func New(client ledger.Client, wallet Signing, opts ...Option) *Composer {
	c := &Composer{
		client:    client,
		wallet:    wallet,
		logger:    slog.Default(),
		unitLimit: DefaultComputeUnitLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanBatch reports whether n transactions fit one approval round.
func CanBatch(n int) bool { return n > 0 && n <= MaxBatchSize }

// Optimize removes byte-identical duplicate instructions, collapses every
// compute-budget instruction into at most one limit and one price (last value
// wins), and picks the transaction version from the unique-account count.
// Optimize is idempotent: running it on its own output changes nothing.
func (c *Composer) Optimize(ixs []ledger.Instruction) ([]ledger.Instruction, OptimizeReport) {
	report := OptimizeReport{OriginalCount: len(ixs), Version: ledger.VersionLegacy}

	var limit, price *ledger.Instruction
	seen := make(map[string]bool)
	out := make([]ledger.Instruction, 0, len(ixs))
	for i := range ixs {
		ix := ixs[i]
		if ix.ProgramID.Equal(ComputeBudgetProgramID) && len(ix.Data) > 0 {
			switch ix.Data[0] {
			case tagSetComputeUnitLimit:
				if limit != nil {
					report.BudgetCollapsed++
				}
				limit = &ixs[i]
				continue
			case tagSetComputeUnitPrice:
				if price != nil {
					report.BudgetCollapsed++
				}
				price = &ixs[i]
				continue
			}
		}
		key := instructionKey(ix)
		if seen[key] {
			report.Deduplicated++
			continue
		}
		seen[key] = true
		out = append(out, ix)
	}

	// The budget prelude always leads the transaction.
	prelude := make([]ledger.Instruction, 0, 2)
	if limit != nil {
		prelude = append(prelude, *limit)
	}
	if price != nil {
		prelude = append(prelude, *price)
	}
	out = append(prelude, out...)

	report.UniqueAccounts = uniqueAccountCount(out)
	if report.UniqueAccounts > v0AccountThreshold {
		report.Version = ledger.VersionV0
	}
	report.OriginalBytes = messageSize(ixs, ledger.VersionLegacy)
	report.OptimizedBytes = messageSize(out, report.Version)
	report.BytesSaved = report.OriginalBytes - report.OptimizedBytes
	if report.OriginalBytes > 0 {
		report.PercentSaved = float64(report.BytesSaved) / float64(report.OriginalBytes) * 100
	}
	return out, report
}

// messageSize measures the message bytes an instruction list would occupy,
// independent of fee payer and recency token.
func messageSize(ixs []ledger.Instruction, version ledger.Version) int {
	tx := &ledger.Transaction{Instructions: ixs, Version: version}
	return len(tx.Message())
}

// Compose builds one transaction from an instruction list: optimize, attach
// the compute-budget prelude if absent, stamp fee payer, recency token and
// version.
func (c *Composer) Compose(ixs []ledger.Instruction, hash ledger.Blockhash) (*ledger.Transaction, OptimizeReport) {
	optimized, report := c.Optimize(ixs)
	if !hasBudgetLimit(optimized) {
		prelude := []ledger.Instruction{SetComputeUnitLimit(c.scaledLimit(len(optimized)))}
		if c.unitPrice > 0 {
			prelude = append(prelude, SetComputeUnitPrice(c.unitPrice))
		}
		optimized = append(prelude, optimized...)
	}
	return &ledger.Transaction{
		FeePayer:        c.wallet.Address(),
		RecentBlockhash: hash,
		Instructions:    optimized,
		Version:         report.Version,
	}, report
}

// Batch prepares one transaction per instruction group. All transactions
// share a single recency token fetch and the wallet's fee payer.
func (c *Composer) Batch(ctx context.Context, groups [][]ledger.Instruction) (*Batch, error) {
	if !CanBatch(len(groups)) {
		return nil, walleterr.New(walleterr.CodeTransactionFailed)
	}
	hash, err := c.client.LatestBlockhash(ctx)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.CodeRPCError, err)
	}

	batch := &Batch{
		Transactions: make([]*ledger.Transaction, 0, len(groups)),
		Reports:      make([]OptimizeReport, 0, len(groups)),
	}
	for _, group := range groups {
		tx, report := c.Compose(group, hash)
		batch.Transactions = append(batch.Transactions, tx)
		batch.Reports = append(batch.Reports, report)
		batch.FeeEstimateLamports += uint64(tx.SignerCount()) * lamportsPerSignature
	}
	c.logger.Debug("batch prepared",
		"transactions", len(batch.Transactions),
		"fee_estimate_lamports", batch.FeeEstimateLamports)
	return batch, nil
}

// ExecuteBatch signs every transaction in one approval round and submits them
// in order. Submission failures are recorded per transaction; one bad
// transaction does not abandon the rest.
func (c *Composer) ExecuteBatch(ctx context.Context, batch *Batch) (*BatchResult, error) {
	start := time.Now()
	if err := c.wallet.Sign(ctx, batch.Transactions); err != nil {
		return nil, walleterr.Wrap(walleterr.CodeSigningFailed, err)
	}
	signingTime := time.Since(start)
	c.TrackSigningPerformance(signingTime, batch.Transactions)

	result := &BatchResult{
		Signatures:  make([]string, len(batch.Transactions)),
		Errors:      make([]error, len(batch.Transactions)),
		SigningTime: signingTime,
	}
	for i, tx := range batch.Transactions {
		sig, err := c.client.SendTransaction(ctx, tx)
		if err == nil {
			err = c.client.ConfirmTransaction(ctx, sig)
		}
		if err != nil {
			result.Errors[i] = walleterr.Wrap(walleterr.CodeTransactionFailed, err)
			batchTransactions.WithLabelValues("error").Inc()
			c.logger.Warn("batch transaction failed", "index", i, "error", err)
			continue
		}
		result.Signatures[i] = sig
		result.Succeeded++
		batchTransactions.WithLabelValues("ok").Inc()
	}
	c.logger.Info("batch executed",
		"transactions", len(batch.Transactions),
		"succeeded", result.Succeeded,
		"signing_ms", signingTime.Milliseconds())
	return result, nil
}

// TrackSigningPerformance records one approval round in the histogram and
// the running aggregates: duration against the target plus byte size and
// instruction/signature counts of what was signed.
func (c *Composer) TrackSigningPerformance(d time.Duration, txs []*ledger.Transaction) {
	signingDuration.Observe(d.Seconds())
	var bytes, instructions, signatures int
	for _, tx := range txs {
		bytes += tx.Size()
		instructions += len(tx.Instructions)
		signatures += len(tx.Signatures)
	}
	c.statsMu.Lock()
	c.stats.Rounds++
	c.stats.Total += d
	if d <= SigningTarget {
		c.stats.WithinTarget++
	}
	c.stats.Transactions += len(txs)
	c.stats.Bytes += bytes
	c.stats.Instructions += instructions
	c.stats.Signatures += signatures
	c.statsMu.Unlock()
	if d > SigningTarget {
		c.logger.Warn("signing exceeded target",
			"duration_ms", d.Milliseconds(),
			"target_ms", SigningTarget.Milliseconds(),
			"transactions", len(txs),
			"bytes", bytes)
	}
}

// SigningStats returns a snapshot of the approval-round aggregates.
func (c *Composer) SigningStats() SigningStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Composer) scaledLimit(instructionCount int) uint32 {
	limit := c.unitLimit
	if instructionCount > 1 {
		limit += perInstructionUnits * uint32(instructionCount-1)
	}
	if limit > maxComputeUnits {
		limit = maxComputeUnits
	}
	return limit
}

func hasBudgetLimit(ixs []ledger.Instruction) bool {
	for _, ix := range ixs {
		if ix.ProgramID.Equal(ComputeBudgetProgramID) && len(ix.Data) > 0 && ix.Data[0] == tagSetComputeUnitLimit {
			return true
		}
	}
	return false
}

// instructionKey serializes an instruction for duplicate detection. Two
// instructions with the same key produce identical on-wire bytes.
func instructionKey(ix ledger.Instruction) string {
	var buf bytes.Buffer
	buf.Write(ix.ProgramID[:])
	for _, meta := range ix.Accounts {
		buf.Write(meta.Pubkey[:])
		flags := byte(0)
		if meta.IsSigner {
			flags |= 1
		}
		if meta.IsWritable {
			flags |= 2
		}
		buf.WriteByte(flags)
	}
	buf.WriteByte(0xff)
	buf.Write(ix.Data)
	return buf.String()
}

func uniqueAccountCount(ixs []ledger.Instruction) int {
	seen := make(map[ledger.Pubkey]bool)
	for _, ix := range ixs {
		seen[ix.ProgramID] = true
		for _, meta := range ix.Accounts {
			seen[meta.Pubkey] = true
		}
	}
	return len(seen)
}

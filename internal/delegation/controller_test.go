package delegation

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/gamesession"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/program"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/securestore"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/walleterr"
)

// fakeClient serves scripted account state and records submissions.
type fakeClient struct {
	mu       sync.Mutex
	accounts map[ledger.Pubkey]*ledger.AccountInfo
	sent     []*ledger.Transaction
	sendErr  error
	sigSeq   int

	// onRead runs under the lock on every account read, letting tests flip
	// ownership mid-poll.
	onRead func(reads int)
	reads  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{accounts: make(map[ledger.Pubkey]*ledger.AccountInfo)}
}

func (f *fakeClient) setAccount(account ledger.Pubkey, owner ledger.Pubkey, data []byte) {
	f.mu.Lock()
	f.accounts[account] = &ledger.AccountInfo{Owner: owner, Data: data}
	f.mu.Unlock()
}

func (f *fakeClient) LatestBlockhash(context.Context) (ledger.Blockhash, error) {
	return ledger.Blockhash(sha256.Sum256([]byte("recent"))), nil
}

func (f *fakeClient) AccountInfo(_ context.Context, account ledger.Pubkey) (*ledger.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.onRead != nil {
		f.onRead(f.reads)
	}
	return f.accounts[account], nil
}

func (f *fakeClient) SendTransaction(_ context.Context, tx *ledger.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.sigSeq++
	return fmt.Sprintf("sig-%d", f.sigSeq), nil
}

func (f *fakeClient) ConfirmTransaction(context.Context, string) error { return nil }
func (f *fakeClient) Endpoint() string                                 { return "fake" }

func (f *fakeClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeWallet struct{ address ledger.Pubkey }

func (f *fakeWallet) Address() ledger.Pubkey { return f.address }

func (f *fakeWallet) Sign(_ context.Context, txs []*ledger.Transaction) error {
	for _, tx := range txs {
		tx.Signatures = [][]byte{make([]byte, 64)}
	}
	return nil
}

func inProgressGame(gameID uint64, players int) []byte {
	view := program.GameAccountView{
		GameID:         gameID,
		Creator:        ledger.Pubkey(sha256.Sum256([]byte("creator"))),
		Status:         program.StatusInProgress,
		BulletChamber:  4,
		CurrentChamber: 1,
	}
	for i := 0; i < players; i++ {
		view.Players = append(view.Players,
			ledger.Pubkey(sha256.Sum256([]byte(fmt.Sprintf("p%d", i)))))
	}
	return program.EncodeGameAccount(view)
}

func newTestController(t *testing.T) (*Controller, *fakeClient, *fakeClient, *gamesession.Authorizer) {
	t.Helper()
	base := newFakeClient()
	rollup := newFakeClient()
	sessions := gamesession.New(securestore.NewMemory())
	wallet := &fakeWallet{address: ledger.Pubkey(sha256.Sum256([]byte("player")))}
	c := New(base, rollup, wallet, sessions,
		WithPollPolicy(time.Millisecond, 3))
	return c, base, rollup, sessions
}

func TestIsDelegatedChecksOwner(t *testing.T) {
	t.Parallel()

	c, base, _, _ := newTestController(t)
	ctx := context.Background()

	delegated, err := c.IsDelegated(ctx, 1)
	if err != nil || delegated {
		t.Fatalf("missing account: delegated = %v, err = %v", delegated, err)
	}

	base.setAccount(program.GameAddress(1), program.ID, nil)
	if delegated, _ = c.IsDelegated(ctx, 1); delegated {
		t.Fatalf("program-owned account is not delegated")
	}

	base.setAccount(program.GameAddress(1), ledger.DelegationProgramID, nil)
	if delegated, _ = c.IsDelegated(ctx, 1); !delegated {
		t.Fatalf("delegation-owned account must report delegated")
	}
}

func TestDelegateIdempotent(t *testing.T) {
	t.Parallel()

	c, base, _, _ := newTestController(t)
	base.setAccount(program.GameAddress(5), ledger.DelegationProgramID, nil)

	if err := c.Delegate(context.Background(), 5); err != nil {
		t.Fatalf("re-delegating must be a no-op: %v", err)
	}
	if base.sentCount() != 0 {
		t.Fatalf("re-delegating must not submit a transaction")
	}
}

func TestDelegateWaitsForPropagation(t *testing.T) {
	t.Parallel()

	c, base, _, _ := newTestController(t)
	game := program.GameAddress(5)
	base.setAccount(game, program.ID, nil)

	// The ownership flip becomes visible on the third read (first check,
	// then two polls).
	base.onRead = func(reads int) {
		if reads >= 3 {
			base.accounts[game] = &ledger.AccountInfo{Owner: ledger.DelegationProgramID}
		}
	}

	if err := c.Delegate(context.Background(), 5); err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if base.sentCount() != 1 {
		t.Fatalf("delegate must submit exactly one transaction, got %d", base.sentCount())
	}
}

func TestDelegateTimesOut(t *testing.T) {
	t.Parallel()

	c, base, _, _ := newTestController(t)
	base.setAccount(program.GameAddress(5), program.ID, nil)

	err := c.Delegate(context.Background(), 5)
	if walleterr.CodeOf(err) != walleterr.CodeDelegationTimeout {
		t.Fatalf("propagation that never lands must time out, got %v", err)
	}
}

func TestExecuteActionRequiresDelegation(t *testing.T) {
	t.Parallel()

	c, base, _, sessions := newTestController(t)
	base.setAccount(program.GameAddress(7), program.ID, nil)
	if _, err := sessions.PreAuthorize(7, 6); err != nil {
		t.Fatalf("preauthorize: %v", err)
	}

	_, err := c.ExecuteAction(context.Background(), 7)
	if walleterr.CodeOf(err) != walleterr.CodeNotDelegated {
		t.Fatalf("undelegated game must refuse actions, got %v", err)
	}
	if session, _ := sessions.Active(); session.ShotsTaken != 0 {
		t.Fatalf("refused action must not spend the budget")
	}
}

func TestExecuteActionRunsOnRollup(t *testing.T) {
	t.Parallel()

	c, base, rollup, sessions := newTestController(t)
	game := program.GameAddress(7)
	base.setAccount(game, ledger.DelegationProgramID, nil)
	rollup.setAccount(game, ledger.DelegationProgramID, inProgressGame(7, 2))
	if _, err := sessions.PreAuthorize(7, 6); err != nil {
		t.Fatalf("preauthorize: %v", err)
	}

	result, err := c.ExecuteAction(context.Background(), 7)
	if err != nil {
		t.Fatalf("execute action: %v", err)
	}
	if result.Signature == "" {
		t.Fatalf("result must carry the submitted signature")
	}
	if result.Remaining != 5 {
		t.Fatalf("remaining = %d, want 5", result.Remaining)
	}
	if result.BulletHit || result.GameOver {
		t.Fatalf("chamber 1 of 4 must not be a hit: %+v", result)
	}
	if rollup.sentCount() != 1 || base.sentCount() != 0 {
		t.Fatalf("the shot must go to the rollup only")
	}
	tx := rollup.sent[0]
	if !tx.Instructions[0].ProgramID.Equal(program.ID) {
		t.Fatalf("shot must target the game program")
	}
}

func TestExecuteActionFailureStillSpendsBudget(t *testing.T) {
	t.Parallel()

	c, base, rollup, sessions := newTestController(t)
	game := program.GameAddress(7)
	base.setAccount(game, ledger.DelegationProgramID, nil)
	rollup.sendErr = fmt.Errorf("rollup down")
	if _, err := sessions.PreAuthorize(7, 6); err != nil {
		t.Fatalf("preauthorize: %v", err)
	}

	if _, err := c.ExecuteAction(context.Background(), 7); err == nil {
		t.Fatalf("failed submission must surface")
	}
	if session, _ := sessions.Active(); session.ShotsTaken != 1 {
		t.Fatalf("failed shot must still spend its slot, taken = %d", session.ShotsTaken)
	}
}

func TestCommitRequiresDelegation(t *testing.T) {
	t.Parallel()

	c, base, rollup, _ := newTestController(t)
	base.setAccount(program.GameAddress(9), program.ID, nil)

	_, err := c.Commit(context.Background(), 9)
	if walleterr.CodeOf(err) != walleterr.CodeNotDelegated {
		t.Fatalf("committing a base-owned game must refuse, got %v", err)
	}
	if rollup.sentCount() != 0 {
		t.Fatalf("refused commit must not submit")
	}
}

func TestCommitSubmitsOnRollup(t *testing.T) {
	t.Parallel()

	c, base, rollup, _ := newTestController(t)
	base.setAccount(program.GameAddress(9), ledger.DelegationProgramID, nil)

	sig, err := c.Commit(context.Background(), 9)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if sig == "" || rollup.sentCount() != 1 {
		t.Fatalf("commit must submit one rollup transaction")
	}
}

func TestUndelegateIdempotent(t *testing.T) {
	t.Parallel()

	c, base, rollup, _ := newTestController(t)
	base.setAccount(program.GameAddress(9), program.ID, nil)

	if err := c.Undelegate(context.Background(), 9); err != nil {
		t.Fatalf("undelegating a base-owned game must be a no-op: %v", err)
	}
	if rollup.sentCount() != 0 {
		t.Fatalf("no-op undelegate must not submit")
	}
}

func TestUndelegateSubmitsOnRollup(t *testing.T) {
	t.Parallel()

	c, base, rollup, _ := newTestController(t)
	base.setAccount(program.GameAddress(9), ledger.DelegationProgramID, nil)

	if err := c.Undelegate(context.Background(), 9); err != nil {
		t.Fatalf("undelegate: %v", err)
	}
	if rollup.sentCount() != 1 {
		t.Fatalf("undelegate must submit through the rollup")
	}
}

func TestGameStateFollowsDelegation(t *testing.T) {
	t.Parallel()

	c, base, rollup, _ := newTestController(t)
	game := program.GameAddress(3)

	// Base-owned: state comes from the base layer.
	base.setAccount(game, program.ID, inProgressGame(3, 2))
	view, err := c.GameState(context.Background(), 3)
	if err != nil {
		t.Fatalf("game state (base): %v", err)
	}
	if view.GameID != 3 {
		t.Fatalf("game id mismatch: %d", view.GameID)
	}

	// Delegated: the rollup view wins.
	base.setAccount(game, ledger.DelegationProgramID, nil)
	rollupView := program.GameAccountView{
		GameID:         3,
		Creator:        ledger.Pubkey(sha256.Sum256([]byte("creator"))),
		Status:         program.StatusInProgress,
		BulletChamber:  2,
		CurrentChamber: 2,
		CurrentTurn:    1,
		Players: []ledger.Pubkey{
			ledger.Pubkey(sha256.Sum256([]byte("p0"))),
			ledger.Pubkey(sha256.Sum256([]byte("p1"))),
		},
	}
	rollup.setAccount(game, ledger.DelegationProgramID, program.EncodeGameAccount(rollupView))

	view, err = c.GameState(context.Background(), 3)
	if err != nil {
		t.Fatalf("game state (rollup): %v", err)
	}
	if view.CurrentTurn != 1 || !view.BulletHit() {
		t.Fatalf("rollup view must win while delegated: %+v", view)
	}
}

func TestGameStateMissingAccount(t *testing.T) {
	t.Parallel()

	c, _, _, _ := newTestController(t)
	_, err := c.GameState(context.Background(), 404)
	if walleterr.CodeOf(err) != walleterr.CodeInvalidAccount {
		t.Fatalf("missing game must report INVALID_ACCOUNT, got %v", err)
	}
}

package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nikhil/taskfi/internal/derive"
	"github.com/nikhil/taskfi/internal/ledger"
	"github.com/nikhil/taskfi/internal/models"
)

func addr(fill byte) models.Address {
	var a models.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

type fixture struct {
	engine    *Engine
	mem       *ledger.Memory
	authority models.Address
	worker    models.Address
	depositor models.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := ledger.NewMemory()
	f := &fixture{
		engine:    NewEngine(mem),
		mem:       mem,
		authority: addr(0xA1),
		worker:    addr(0xB2),
		depositor: addr(0xC3),
	}
	ctx := context.Background()
	for _, a := range []models.Address{f.authority, f.worker, f.depositor} {
		if err := mem.Credit(ctx, a, 10_000); err != nil {
			t.Fatalf("fund %s: %v", a, err)
		}
	}
	return f
}

func (f *fixture) balance(t *testing.T, a models.Address) uint64 {
	t.Helper()
	balance, err := f.mem.Balance(context.Background(), a)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return balance
}

func (f *fixture) initTeam(t *testing.T, teamID uint64) (team, vault models.Address) {
	t.Helper()
	team, vault, err := f.engine.InitializeTeam(context.Background(), f.authority, teamID)
	if err != nil {
		t.Fatalf("InitializeTeam: %v", err)
	}
	return team, vault
}

func TestInitializeTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	team, vault := f.initTeam(t, 1)

	teamRec, gotVault, balance, err := f.engine.TeamInfo(ctx, team)
	if err != nil {
		t.Fatalf("TeamInfo: %v", err)
	}
	if teamRec.Authority != f.authority || teamRec.TeamID != 1 {
		t.Fatalf("unexpected team record %+v", teamRec)
	}
	if gotVault != vault || balance != 0 {
		t.Fatalf("vault %s balance %d, want %s balance 0", gotVault, balance, vault)
	}

	// The recorded capability byte must re-derive the vault.
	derived, err := derive.WithBump(teamRec.VaultCapability, derive.VaultSeeds(team)...)
	if err != nil || derived != vault {
		t.Fatalf("capability byte does not re-derive vault: %v", err)
	}
}

func TestInitializeTeamTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.initTeam(t, 1)
	_, _, err := f.engine.InitializeTeam(ctx, f.authority, 1)
	if !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("second init: got %v, want ErrAlreadyExists", err)
	}

	// A different team id or authority is a fresh pair and must succeed.
	if _, _, err := f.engine.InitializeTeam(ctx, f.authority, 2); err != nil {
		t.Fatalf("init with new id: %v", err)
	}
	if _, _, err := f.engine.InitializeTeam(ctx, f.worker, 1); err != nil {
		t.Fatalf("init with new authority: %v", err)
	}
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, vault := f.initTeam(t, 1)

	if err := f.engine.Deposit(ctx, f.depositor, team, 1000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if got := f.balance(t, vault); got != 1000 {
		t.Fatalf("vault balance %d, want 1000", got)
	}
	if got := f.balance(t, f.depositor); got != 9000 {
		t.Fatalf("depositor balance %d, want 9000", got)
	}
}

func TestDepositZeroAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, vault := f.initTeam(t, 1)

	err := f.engine.Deposit(ctx, f.depositor, team, 0)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero deposit: got %v, want ErrInvalidAmount", err)
	}
	if got := f.balance(t, vault); got != 0 {
		t.Fatalf("vault balance changed on rejected deposit: %d", got)
	}
	if got := f.balance(t, f.depositor); got != 10_000 {
		t.Fatalf("depositor balance changed on rejected deposit: %d", got)
	}
}

func TestDepositUnknownTeam(t *testing.T) {
	f := newFixture(t)
	err := f.engine.Deposit(context.Background(), f.depositor, addr(0xEE), 100)
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("deposit to unknown team: got %v, want ErrNotFound", err)
	}
}

func TestDepositInsufficientDepositorFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, vault := f.initTeam(t, 1)

	err := f.engine.Deposit(ctx, f.depositor, team, 10_001)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("overdraw deposit: got %v, want ErrInsufficientFunds", err)
	}
	if got := f.balance(t, vault); got != 0 {
		t.Fatalf("vault credited on failed deposit: %d", got)
	}
}

func TestPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, vault := f.initTeam(t, 1)
	f.engine.Deposit(ctx, f.depositor, team, 1000)

	recipient := addr(0xD4)
	if err := f.engine.Payout(ctx, f.authority, team, recipient, 250); err != nil {
		t.Fatalf("Payout: %v", err)
	}
	if got := f.balance(t, vault); got != 750 {
		t.Fatalf("vault balance %d, want 750", got)
	}
	if got := f.balance(t, recipient); got != 250 {
		t.Fatalf("recipient balance %d, want 250", got)
	}
}

func TestPayoutGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, vault := f.initTeam(t, 1)
	f.engine.Deposit(ctx, f.depositor, team, 500)

	recipient := addr(0xD4)
	tests := []struct {
		name    string
		caller  models.Address
		to      models.Address
		amount  uint64
		wantErr error
	}{
		{"not authority", f.worker, recipient, 100, ErrNotAuthority},
		{"zero amount", f.authority, recipient, 0, ErrInvalidAmount},
		{"zero recipient", f.authority, models.ZeroAddress, 100, ledger.ErrZeroAddress},
		{"insufficient vault", f.authority, recipient, 501, ErrInsufficientVaultFunds},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := f.engine.Payout(ctx, tc.caller, team, tc.to, tc.amount)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
			if got := f.balance(t, vault); got != 500 {
				t.Fatalf("vault balance changed on rejected payout: %d", got)
			}
		})
	}
}

func TestCreateTaskGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, _ := f.initTeam(t, 1)

	if _, err := f.engine.CreateTask(ctx, f.authority, team, 1, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero reward: got %v, want ErrInvalidAmount", err)
	}
	if _, err := f.engine.CreateTask(ctx, f.worker, team, 1, 100); !errors.Is(err, ErrNotAuthority) {
		t.Fatalf("non-authority creator: got %v, want ErrNotAuthority", err)
	}

	taskAddr, err := f.engine.CreateTask(ctx, f.authority, team, 1, 100)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := f.engine.CreateTask(ctx, f.authority, team, 1, 100); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("duplicate task: got %v, want ErrAlreadyExists", err)
	}

	task, err := f.engine.TaskInfo(ctx, team, taskAddr)
	if err != nil {
		t.Fatalf("TaskInfo: %v", err)
	}
	if task.Status != models.TaskOpen || !task.Assignee.IsZero() || task.Reward != 100 || task.Creator != f.authority {
		t.Fatalf("unexpected new task %+v", task)
	}
}

func TestTaskLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, vault := f.initTeam(t, 1)

	if err := f.engine.Deposit(ctx, f.depositor, team, 1000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	taskAddr, err := f.engine.CreateTask(ctx, f.authority, team, 1, 400)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := f.engine.AssignTask(ctx, f.authority, team, taskAddr, f.worker); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if err := f.engine.MarkComplete(ctx, f.worker, team, taskAddr); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}

	workerBefore := f.balance(t, f.worker)
	if err := f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.worker); err != nil {
		t.Fatalf("PayoutTask: %v", err)
	}

	if got := f.balance(t, vault); got != 600 {
		t.Fatalf("vault balance %d, want 600", got)
	}
	if got := f.balance(t, f.worker); got != workerBefore+400 {
		t.Fatalf("worker balance %d, want %d", got, workerBefore+400)
	}
	task, err := f.engine.TaskInfo(ctx, team, taskAddr)
	if err != nil {
		t.Fatalf("TaskInfo: %v", err)
	}
	if task.Status != models.TaskPaid {
		t.Fatalf("task status %s, want paid", task.Status)
	}

	// Paid is terminal: a second payout must fail and move nothing.
	err = f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.worker)
	if !errors.Is(err, ErrInvalidTaskState) {
		t.Fatalf("double payout: got %v, want ErrInvalidTaskState", err)
	}
	if got := f.balance(t, vault); got != 600 {
		t.Fatalf("vault balance changed on rejected double payout: %d", got)
	}
}

func TestTaskTransitionsRejectWrongSourceState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, _ := f.initTeam(t, 1)
	f.engine.Deposit(ctx, f.depositor, team, 1000)

	taskAddr, err := f.engine.CreateTask(ctx, f.authority, team, 1, 100)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// Open: completing or paying out skips states.
	if err := f.engine.MarkComplete(ctx, f.worker, team, taskAddr); !errors.Is(err, ErrInvalidTaskState) {
		t.Fatalf("complete from open: got %v", err)
	}
	if err := f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.worker); !errors.Is(err, ErrInvalidTaskState) {
		t.Fatalf("payout from open: got %v", err)
	}

	// Assigned: re-assigning regresses, paying out skips.
	if err := f.engine.AssignTask(ctx, f.authority, team, taskAddr, f.worker); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if err := f.engine.AssignTask(ctx, f.authority, team, taskAddr, f.depositor); !errors.Is(err, ErrInvalidTaskState) {
		t.Fatalf("re-assign: got %v", err)
	}
	if err := f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.worker); !errors.Is(err, ErrInvalidTaskState) {
		t.Fatalf("payout from assigned: got %v", err)
	}

	// Completed: assigning or completing again regresses.
	if err := f.engine.MarkComplete(ctx, f.worker, team, taskAddr); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if err := f.engine.AssignTask(ctx, f.authority, team, taskAddr, f.depositor); !errors.Is(err, ErrInvalidTaskState) {
		t.Fatalf("assign from completed: got %v", err)
	}
	if err := f.engine.MarkComplete(ctx, f.worker, team, taskAddr); !errors.Is(err, ErrInvalidTaskState) {
		t.Fatalf("re-complete: got %v", err)
	}

	// The guard failures above must not have mutated the record.
	task, err := f.engine.TaskInfo(ctx, team, taskAddr)
	if err != nil {
		t.Fatalf("TaskInfo: %v", err)
	}
	if task.Status != models.TaskCompleted || task.Assignee != f.worker {
		t.Fatalf("rejected transitions mutated task: %+v", task)
	}
}

func TestAssignTaskGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, _ := f.initTeam(t, 1)
	taskAddr, _ := f.engine.CreateTask(ctx, f.authority, team, 1, 100)

	if err := f.engine.AssignTask(ctx, f.worker, team, taskAddr, f.worker); !errors.Is(err, ErrNotAuthority) {
		t.Fatalf("non-authority assign: got %v, want ErrNotAuthority", err)
	}
	if err := f.engine.AssignTask(ctx, f.authority, team, taskAddr, models.ZeroAddress); !errors.Is(err, ErrInvalidAssignee) {
		t.Fatalf("zero assignee: got %v, want ErrInvalidAssignee", err)
	}
}

func TestMarkCompleteNotAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, _ := f.initTeam(t, 1)
	taskAddr, _ := f.engine.CreateTask(ctx, f.authority, team, 1, 100)
	f.engine.AssignTask(ctx, f.authority, team, taskAddr, f.worker)

	// Even the authority cannot complete on the assignee's behalf.
	for _, caller := range []models.Address{f.authority, f.depositor} {
		if err := f.engine.MarkComplete(ctx, caller, team, taskAddr); !errors.Is(err, ErrNotAssignee) {
			t.Fatalf("caller %s: got %v, want ErrNotAssignee", caller, err)
		}
	}

	task, _ := f.engine.TaskInfo(ctx, team, taskAddr)
	if task.Status != models.TaskAssigned {
		t.Fatalf("status mutated by rejected completion: %s", task.Status)
	}
}

func TestPayoutTaskRecipientMustBeAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, vault := f.initTeam(t, 1)
	f.engine.Deposit(ctx, f.depositor, team, 1000)
	taskAddr, _ := f.engine.CreateTask(ctx, f.authority, team, 1, 400)
	f.engine.AssignTask(ctx, f.authority, team, taskAddr, f.worker)
	f.engine.MarkComplete(ctx, f.worker, team, taskAddr)

	err := f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.depositor)
	if !errors.Is(err, ErrRecipientNotAssignee) {
		t.Fatalf("redirected payout: got %v, want ErrRecipientNotAssignee", err)
	}
	if got := f.balance(t, vault); got != 1000 {
		t.Fatalf("vault balance changed on rejected payout: %d", got)
	}

	task, _ := f.engine.TaskInfo(ctx, team, taskAddr)
	if task.Status != models.TaskCompleted {
		t.Fatalf("status mutated by rejected payout: %s", task.Status)
	}
}

func TestPayoutTaskGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, vault := f.initTeam(t, 1)
	f.engine.Deposit(ctx, f.depositor, team, 300)
	taskAddr, _ := f.engine.CreateTask(ctx, f.authority, team, 1, 400)
	f.engine.AssignTask(ctx, f.authority, team, taskAddr, f.worker)
	f.engine.MarkComplete(ctx, f.worker, team, taskAddr)

	if err := f.engine.PayoutTask(ctx, f.worker, team, taskAddr, f.worker); !errors.Is(err, ErrNotAuthority) {
		t.Fatalf("non-authority payout: got %v, want ErrNotAuthority", err)
	}

	// Reward 400 against a 300 vault: solvency is re-checked at payout time.
	err := f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.worker)
	if !errors.Is(err, ErrInsufficientVaultFunds) {
		t.Fatalf("insolvent payout: got %v, want ErrInsufficientVaultFunds", err)
	}
	if got := f.balance(t, vault); got != 300 {
		t.Fatalf("vault balance changed on rejected payout: %d", got)
	}

	// Topping up makes the same call succeed.
	f.engine.Deposit(ctx, f.depositor, team, 100)
	if err := f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.worker); err != nil {
		t.Fatalf("PayoutTask after top-up: %v", err)
	}
}

func TestTaskTeamMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teamA, _ := f.initTeam(t, 1)

	teamB, _, err := f.engine.InitializeTeam(ctx, f.worker, 2)
	if err != nil {
		t.Fatalf("InitializeTeam: %v", err)
	}
	taskAddr, _ := f.engine.CreateTask(ctx, f.authority, teamA, 1, 100)

	if err := f.engine.AssignTask(ctx, f.worker, teamB, taskAddr, f.worker); !errors.Is(err, ErrTaskTeamMismatch) {
		t.Fatalf("cross-team assign: got %v, want ErrTaskTeamMismatch", err)
	}
	if _, err := f.engine.TaskInfo(ctx, teamB, taskAddr); !errors.Is(err, ErrTaskTeamMismatch) {
		t.Fatalf("cross-team read: got %v, want ErrTaskTeamMismatch", err)
	}
}

func TestAddressMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A wallet account is not an escrow record at all.
	if _, _, _, err := f.engine.TeamInfo(ctx, f.worker); !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("wallet as team: got %v, want ErrAddressMismatch", err)
	}

	// An escrow-owned blob stored at an address its fields do not derive
	// is rejected even though it decodes cleanly.
	forged := addr(0xF0)
	record := models.Team{Authority: f.authority, TeamID: 99, VaultCapability: 255}
	if err := f.mem.CreateAccount(ctx, forged, ledger.OwnerEscrow, record.Encode()); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, _, _, err := f.engine.TeamInfo(ctx, forged); !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("forged team record: got %v, want ErrAddressMismatch", err)
	}
	if err := f.engine.Deposit(ctx, f.depositor, forged, 100); !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("deposit to forged team: got %v, want ErrAddressMismatch", err)
	}
}

// payoutBarrier holds every TransferAndUpdate call until two callers have
// arrived, so both payouts evaluate their guards against the same record
// before either commit runs.
type payoutBarrier struct {
	ledger.Ledger
	mu       sync.Mutex
	arrivals int
	released chan struct{}
}

func newPayoutBarrier(l ledger.Ledger) *payoutBarrier {
	return &payoutBarrier{Ledger: l, released: make(chan struct{})}
}

func (b *payoutBarrier) TransferAndUpdate(ctx context.Context, from, to models.Address, amount uint64, record models.Address, owner string, prev, next []byte) error {
	b.mu.Lock()
	b.arrivals++
	if b.arrivals == 2 {
		close(b.released)
	}
	b.mu.Unlock()
	<-b.released
	return b.Ledger.TransferAndUpdate(ctx, from, to, amount, record, owner, prev, next)
}

// Two payouts racing on the same completed task both see Completed, but the
// commit is conditional on the record bytes the guards saw, so exactly one
// wins; the loser re-runs and is rejected by the state guard. The reward
// leaves the vault once.
func TestConcurrentTaskPayoutPaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, vault := f.initTeam(t, 1)
	f.engine.Deposit(ctx, f.depositor, team, 800)
	taskAddr, _ := f.engine.CreateTask(ctx, f.authority, team, 1, 400)
	f.engine.AssignTask(ctx, f.authority, team, taskAddr, f.worker)
	f.engine.MarkComplete(ctx, f.worker, team, taskAddr)

	workerBefore := f.balance(t, f.worker)
	f.engine.Ledger = newPayoutBarrier(f.mem)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.worker)
		}()
	}

	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInvalidTaskState):
			rejected++
		default:
			t.Fatalf("unexpected payout error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("got %d successes and %d state rejections, want 1 and 1", succeeded, rejected)
	}

	if got := f.balance(t, vault); got != 400 {
		t.Fatalf("vault balance %d, want 400", got)
	}
	if got := f.balance(t, f.worker); got != workerBefore+400 {
		t.Fatalf("worker balance %d, want %d", got, workerBefore+400)
	}
	task, err := f.engine.TaskInfo(ctx, team, taskAddr)
	if err != nil {
		t.Fatalf("TaskInfo: %v", err)
	}
	if task.Status != models.TaskPaid {
		t.Fatalf("task status %s, want paid", task.Status)
	}
}

// brokenCommitLedger fails a number of TransferAndUpdate calls before
// passing them through.
type brokenCommitLedger struct {
	ledger.Ledger
	failures  int
	errCommit error
}

func (l *brokenCommitLedger) TransferAndUpdate(ctx context.Context, from, to models.Address, amount uint64, record models.Address, owner string, prev, next []byte) error {
	if l.failures > 0 {
		l.failures--
		return l.errCommit
	}
	return l.Ledger.TransferAndUpdate(ctx, from, to, amount, record, owner, prev, next)
}

// A payout whose commit fails must leave no trace: the funds stay in the
// vault and the task stays Completed, so retrying pays exactly once instead
// of twice.
func TestPayoutTaskFailedCommitLeavesNoPartialEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, vault := f.initTeam(t, 1)
	f.engine.Deposit(ctx, f.depositor, team, 800)
	taskAddr, _ := f.engine.CreateTask(ctx, f.authority, team, 1, 400)
	f.engine.AssignTask(ctx, f.authority, team, taskAddr, f.worker)
	f.engine.MarkComplete(ctx, f.worker, team, taskAddr)

	workerBefore := f.balance(t, f.worker)
	errCommit := errors.New("ledger unavailable")
	f.engine.Ledger = &brokenCommitLedger{Ledger: f.mem, failures: 1, errCommit: errCommit}

	if err := f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.worker); !errors.Is(err, errCommit) {
		t.Fatalf("failed commit: got %v, want %v", err, errCommit)
	}
	if got := f.balance(t, vault); got != 800 {
		t.Fatalf("vault balance %d after failed commit, want 800", got)
	}
	if got := f.balance(t, f.worker); got != workerBefore {
		t.Fatalf("worker balance %d after failed commit, want %d", got, workerBefore)
	}
	task, _ := f.engine.TaskInfo(ctx, team, taskAddr)
	if task.Status != models.TaskCompleted {
		t.Fatalf("task status %s after failed commit, want completed", task.Status)
	}

	// The caller retries and the reward moves exactly once.
	if err := f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.worker); err != nil {
		t.Fatalf("retry after failed commit: %v", err)
	}
	if got := f.balance(t, vault); got != 400 {
		t.Fatalf("vault balance %d after retry, want 400", got)
	}
	if got := f.balance(t, f.worker); got != workerBefore+400 {
		t.Fatalf("worker balance %d after retry, want %d", got, workerBefore+400)
	}
}

// Direct payout deliberately bypasses the task lifecycle: the authority can
// drain the vault even while a completed task is still owed its reward. The
// only coupling between the two payout paths is vault solvency.
func TestDirectPayoutDrainsRewardFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team, _ := f.initTeam(t, 1)
	f.engine.Deposit(ctx, f.depositor, team, 400)
	taskAddr, _ := f.engine.CreateTask(ctx, f.authority, team, 1, 400)
	f.engine.AssignTask(ctx, f.authority, team, taskAddr, f.worker)
	f.engine.MarkComplete(ctx, f.worker, team, taskAddr)

	if err := f.engine.Payout(ctx, f.authority, team, f.authority, 400); err != nil {
		t.Fatalf("direct payout: %v", err)
	}

	err := f.engine.PayoutTask(ctx, f.authority, team, taskAddr, f.worker)
	if !errors.Is(err, ErrInsufficientVaultFunds) {
		t.Fatalf("task payout after drain: got %v, want ErrInsufficientVaultFunds", err)
	}
	task, _ := f.engine.TaskInfo(ctx, team, taskAddr)
	if task.Status != models.TaskCompleted {
		t.Fatalf("task status %s after failed payout, want completed", task.Status)
	}
}

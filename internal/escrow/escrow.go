// Package escrow implements the custody engine: team vaults whose funds
// move only under re-derived program authority, and the task lifecycle that
// gates reward payouts. Every operation validates all of its guards before
// touching the ledger, so a failed operation leaves no observable change.
package escrow

import (
	"context"
	"errors"

	"github.com/nikhil/taskfi/internal/derive"
	"github.com/nikhil/taskfi/internal/ledger"
	"github.com/nikhil/taskfi/internal/logger"
	"github.com/nikhil/taskfi/internal/models"
)

// Engine executes escrow operations against a ledger.
//
// Mutating a task record is committed conditionally on the record bytes the
// guards were evaluated against, so two operations racing on the same task
// cannot both pass the same guard: the loser's commit fails and the whole
// operation re-runs against the fresh record, where the guards produce the
// correct rejection.
type Engine struct {
	Ledger ledger.Ledger
	Log    *logger.Logger
}

// maxCommitRetries bounds the re-validation loop when a task record commit
// loses a race. Retries re-run every guard, so a retried operation can only
// succeed if it would also have succeeded sequentially.
const maxCommitRetries = 3

// NewEngine wraps a ledger backend.
func NewEngine(l ledger.Ledger) *Engine {
	return &Engine{
		Ledger: l,
		Log:    logger.NewLogger("escrow-engine"),
	}
}

// InitializeTeam creates the team record for (caller, teamID) and records
// the vault's capability byte. The vault account itself is not created;
// its address becomes derivable and is funded by the first deposit.
func (e *Engine) InitializeTeam(ctx context.Context, caller models.Address, teamID uint64) (team, vault models.Address, err error) {
	team, _, err = derive.Derive(derive.TeamSeeds(caller, teamID)...)
	if err != nil {
		return models.ZeroAddress, models.ZeroAddress, err
	}
	vault, bump, err := derive.Derive(derive.VaultSeeds(team)...)
	if err != nil {
		return models.ZeroAddress, models.ZeroAddress, err
	}

	record := models.Team{
		Authority:       caller,
		TeamID:          teamID,
		VaultCapability: bump,
	}
	if err := e.Ledger.CreateAccount(ctx, team, ledger.OwnerEscrow, record.Encode()); err != nil {
		return models.ZeroAddress, models.ZeroAddress, err
	}

	e.Log.Info("Team initialized", "team", team.String(), "vault", vault.String(), "team_id", teamID)
	return team, vault, nil
}

// Deposit moves amount from the caller's account into the team's vault.
// Any funded account may deposit; only withdrawal is restricted.
func (e *Engine) Deposit(ctx context.Context, caller, teamAddr models.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	teamRec, err := e.loadTeam(ctx, teamAddr)
	if err != nil {
		return err
	}
	vault, err := e.vaultFor(teamRec, teamAddr)
	if err != nil {
		return err
	}

	if err := e.Ledger.Transfer(ctx, caller, vault, amount); err != nil {
		return err
	}
	e.Log.Audit("Deposit", "team", teamAddr.String(), "depositor", caller.String(), "amount", amount)
	return nil
}

// Payout releases amount from the vault to an arbitrary recipient. Only the
// team authority may trigger it; the transfer itself is authorized by
// re-deriving the vault under the recorded capability byte, not by any key
// the caller holds. It bypasses the task lifecycle entirely.
func (e *Engine) Payout(ctx context.Context, caller, teamAddr, recipient models.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if recipient.IsZero() {
		return ledger.ErrZeroAddress
	}
	teamRec, err := e.loadTeam(ctx, teamAddr)
	if err != nil {
		return err
	}
	if teamRec.Authority != caller {
		return ErrNotAuthority
	}
	vault, err := e.vaultFor(teamRec, teamAddr)
	if err != nil {
		return err
	}
	balance, err := e.Ledger.Balance(ctx, vault)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientVaultFunds
	}

	if err := e.Ledger.Transfer(ctx, vault, recipient, amount); err != nil {
		// The transfer re-checks the balance atomically; a concurrent
		// release can still drain the vault between the check above and
		// here.
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return ErrInsufficientVaultFunds
		}
		return err
	}
	e.Log.Audit("Payout", "team", teamAddr.String(), "recipient", recipient.String(), "amount", amount)
	return nil
}

// CreateTask creates a task record in the Open state with no assignee.
func (e *Engine) CreateTask(ctx context.Context, caller, teamAddr models.Address, taskID, reward uint64) (models.Address, error) {
	if reward == 0 {
		return models.ZeroAddress, ErrInvalidAmount
	}
	teamRec, err := e.loadTeam(ctx, teamAddr)
	if err != nil {
		return models.ZeroAddress, err
	}
	if teamRec.Authority != caller {
		return models.ZeroAddress, ErrNotAuthority
	}
	taskAddr, _, err := derive.Derive(derive.TaskSeeds(teamAddr, taskID)...)
	if err != nil {
		return models.ZeroAddress, err
	}

	record := models.Task{
		Team:     teamAddr,
		TaskID:   taskID,
		Creator:  caller,
		Assignee: models.ZeroAddress,
		Reward:   reward,
		Status:   models.TaskOpen,
	}
	if err := e.Ledger.CreateAccount(ctx, taskAddr, ledger.OwnerEscrow, record.Encode()); err != nil {
		return models.ZeroAddress, err
	}

	e.Log.Info("Task created", "team", teamAddr.String(), "task", taskAddr.String(), "task_id", taskID, "reward", reward)
	return taskAddr, nil
}

// AssignTask designates the assignee of an Open task. The assignee is set
// exactly once; there is no unassign.
func (e *Engine) AssignTask(ctx context.Context, caller, teamAddr, taskAddr, assignee models.Address) error {
	return e.withCommitRetry(func() error {
		return e.assignTask(ctx, caller, teamAddr, taskAddr, assignee)
	})
}

func (e *Engine) assignTask(ctx context.Context, caller, teamAddr, taskAddr, assignee models.Address) error {
	teamRec, err := e.loadTeam(ctx, teamAddr)
	if err != nil {
		return err
	}
	if teamRec.Authority != caller {
		return ErrNotAuthority
	}
	task, err := e.loadTask(ctx, teamAddr, taskAddr)
	if err != nil {
		return err
	}
	if task.Status != models.TaskOpen {
		return ErrInvalidTaskState
	}
	if assignee.IsZero() {
		return ErrInvalidAssignee
	}

	prev := task.Encode()
	task.Assignee = assignee
	task.Status = models.TaskAssigned
	if err := e.Ledger.UpdateData(ctx, taskAddr, ledger.OwnerEscrow, prev, task.Encode()); err != nil {
		return err
	}

	e.Log.Info("Task assigned", "task", taskAddr.String(), "assignee", assignee.String())
	return nil
}

// MarkComplete moves an Assigned task to Completed. Only the recorded
// assignee may call it; no funds move.
func (e *Engine) MarkComplete(ctx context.Context, caller, teamAddr, taskAddr models.Address) error {
	return e.withCommitRetry(func() error {
		return e.markComplete(ctx, caller, teamAddr, taskAddr)
	})
}

func (e *Engine) markComplete(ctx context.Context, caller, teamAddr, taskAddr models.Address) error {
	if _, err := e.loadTeam(ctx, teamAddr); err != nil {
		return err
	}
	task, err := e.loadTask(ctx, teamAddr, taskAddr)
	if err != nil {
		return err
	}
	if task.Status != models.TaskAssigned {
		return ErrInvalidTaskState
	}
	if task.Assignee != caller {
		return ErrNotAssignee
	}

	prev := task.Encode()
	task.Status = models.TaskCompleted
	if err := e.Ledger.UpdateData(ctx, taskAddr, ledger.OwnerEscrow, prev, task.Encode()); err != nil {
		return err
	}

	e.Log.Info("Task completed", "task", taskAddr.String(), "assignee", caller.String())
	return nil
}

// PayoutTask releases a Completed task's reward from the vault to the
// recorded assignee and marks the task Paid. The recipient argument must
// equal the stored assignee; the payout cannot be redirected. The transfer
// and the status write commit as one ledger operation, conditional on the
// record still being the one the guards saw, so the reward cannot be paid
// twice and cannot leave the vault without the task becoming Paid.
func (e *Engine) PayoutTask(ctx context.Context, caller, teamAddr, taskAddr, recipient models.Address) error {
	return e.withCommitRetry(func() error {
		return e.payoutTask(ctx, caller, teamAddr, taskAddr, recipient)
	})
}

func (e *Engine) payoutTask(ctx context.Context, caller, teamAddr, taskAddr, recipient models.Address) error {
	teamRec, err := e.loadTeam(ctx, teamAddr)
	if err != nil {
		return err
	}
	if teamRec.Authority != caller {
		return ErrNotAuthority
	}
	task, err := e.loadTask(ctx, teamAddr, taskAddr)
	if err != nil {
		return err
	}
	if task.Status != models.TaskCompleted {
		return ErrInvalidTaskState
	}
	if task.Assignee.IsZero() {
		return ErrNoAssignee
	}
	if recipient != task.Assignee {
		return ErrRecipientNotAssignee
	}
	vault, err := e.vaultFor(teamRec, teamAddr)
	if err != nil {
		return err
	}
	balance, err := e.Ledger.Balance(ctx, vault)
	if err != nil {
		return err
	}
	if balance < task.Reward {
		return ErrInsufficientVaultFunds
	}

	prev := task.Encode()
	task.Status = models.TaskPaid
	err = e.Ledger.TransferAndUpdate(ctx, vault, task.Assignee, task.Reward,
		taskAddr, ledger.OwnerEscrow, prev, task.Encode())
	if err != nil {
		// Solvency is re-checked inside the commit; a concurrent direct
		// payout can drain the vault after the check above.
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return ErrInsufficientVaultFunds
		}
		return err
	}

	e.Log.Audit("Task payout", "team", teamAddr.String(), "task", taskAddr.String(),
		"assignee", task.Assignee.String(), "amount", task.Reward)
	return nil
}

// withCommitRetry re-runs an operation whose conditional commit lost a
// race. The operation re-reads its records and re-evaluates every guard on
// each attempt.
func (e *Engine) withCommitRetry(op func() error) error {
	var err error
	for attempt := 0; attempt <= maxCommitRetries; attempt++ {
		err = op()
		if !errors.Is(err, ledger.ErrRecordModified) {
			return err
		}
	}
	return err
}

// TeamInfo returns the team record, its vault address, and the vault
// balance.
func (e *Engine) TeamInfo(ctx context.Context, teamAddr models.Address) (models.Team, models.Address, uint64, error) {
	teamRec, err := e.loadTeam(ctx, teamAddr)
	if err != nil {
		return models.Team{}, models.ZeroAddress, 0, err
	}
	vault, err := e.vaultFor(teamRec, teamAddr)
	if err != nil {
		return models.Team{}, models.ZeroAddress, 0, err
	}
	balance, err := e.Ledger.Balance(ctx, vault)
	if err != nil {
		return models.Team{}, models.ZeroAddress, 0, err
	}
	return teamRec, vault, balance, nil
}

// TaskInfo returns a task record after verifying it belongs to the team.
func (e *Engine) TaskInfo(ctx context.Context, teamAddr, taskAddr models.Address) (models.Task, error) {
	if _, err := e.loadTeam(ctx, teamAddr); err != nil {
		return models.Task{}, err
	}
	return e.loadTask(ctx, teamAddr, taskAddr)
}

// loadTeam fetches and decodes a team record, then proves the supplied
// address by re-deriving it from the record's own fields.
func (e *Engine) loadTeam(ctx context.Context, teamAddr models.Address) (models.Team, error) {
	acc, err := e.Ledger.Account(ctx, teamAddr)
	if err != nil {
		return models.Team{}, err
	}
	if acc.Owner != ledger.OwnerEscrow {
		return models.Team{}, ErrAddressMismatch
	}
	teamRec, err := models.DecodeTeam(acc.Data)
	if err != nil {
		return models.Team{}, err
	}
	derived, _, err := derive.Derive(derive.TeamSeeds(teamRec.Authority, teamRec.TeamID)...)
	if err != nil {
		return models.Team{}, err
	}
	if derived != teamAddr {
		return models.Team{}, ErrAddressMismatch
	}
	return teamRec, nil
}

// loadTask fetches and decodes a task record, verifying team linkage and
// re-derivation.
func (e *Engine) loadTask(ctx context.Context, teamAddr, taskAddr models.Address) (models.Task, error) {
	acc, err := e.Ledger.Account(ctx, taskAddr)
	if err != nil {
		return models.Task{}, err
	}
	if acc.Owner != ledger.OwnerEscrow {
		return models.Task{}, ErrAddressMismatch
	}
	task, err := models.DecodeTask(acc.Data)
	if err != nil {
		return models.Task{}, err
	}
	if task.Team != teamAddr {
		return models.Task{}, ErrTaskTeamMismatch
	}
	derived, _, err := derive.Derive(derive.TaskSeeds(task.Team, task.TaskID)...)
	if err != nil {
		return models.Task{}, err
	}
	if derived != taskAddr {
		return models.Task{}, ErrAddressMismatch
	}
	return task, nil
}

// vaultFor re-derives the vault address under the team's recorded
// capability byte. A byte that no longer re-derives is an authorization
// failure, not a lookup failure.
func (e *Engine) vaultFor(teamRec models.Team, teamAddr models.Address) (models.Address, error) {
	vault, err := derive.WithBump(teamRec.VaultCapability, derive.VaultSeeds(teamAddr)...)
	if err != nil {
		if errors.Is(err, derive.ErrOnCurve) {
			return models.ZeroAddress, ErrAddressMismatch
		}
		return models.ZeroAddress, err
	}
	return vault, nil
}

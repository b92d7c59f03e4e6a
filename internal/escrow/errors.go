package escrow

import "errors"

// Business-rule failures. Each aborts the operation before any mutation, so
// a caller sees either the full effect of an operation or none of it. None
// of these are transient: the caller must fix inputs or state and resubmit.
var (
	ErrInvalidAmount          = errors.New("escrow: amount must be greater than zero")
	ErrInsufficientVaultFunds = errors.New("escrow: vault does not have enough funds")
	ErrInvalidTaskState       = errors.New("escrow: task is not in the expected state for this action")
	ErrNotAuthority           = errors.New("escrow: caller is not the team authority")
	ErrNotAssignee            = errors.New("escrow: only the assignee can mark this task complete")
	ErrNoAssignee             = errors.New("escrow: task has no assignee")
	ErrInvalidAssignee        = errors.New("escrow: assignee must be a non-zero account")
	ErrTaskTeamMismatch       = errors.New("escrow: task does not belong to this team")
	ErrRecipientNotAssignee   = errors.New("escrow: recipient must be the task assignee")
	ErrAddressMismatch        = errors.New("escrow: account does not re-derive from its seeds")
)

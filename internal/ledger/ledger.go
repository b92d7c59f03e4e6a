// Package ledger is the account substrate underneath the escrow engine. It
// tracks balances and opaque record blobs keyed by address, enforces record
// ownership, and applies each transfer atomically. It knows nothing about
// teams or tasks; the engine layers those semantics on top.
package ledger

import (
	"context"
	"errors"

	"github.com/nikhil/taskfi/internal/models"
)

// Owner labels for accounts. Records created by the escrow engine carry
// OwnerEscrow and only the engine may rewrite their data; plain balance
// accounts (wallets, vaults, recipients) carry OwnerSystem.
const (
	OwnerSystem = "system"
	OwnerEscrow = "taskfi/escrow"
)

var (
	ErrAlreadyExists     = errors.New("ledger: account already exists")
	ErrNotFound          = errors.New("ledger: account not found")
	ErrNotOwner          = errors.New("ledger: caller does not own account")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrZeroAddress       = errors.New("ledger: zero address is not an account")
	ErrRecordModified    = errors.New("ledger: record changed since it was read")
)

// Account is one ledger entry. Data is nil for pure balance accounts.
type Account struct {
	Address models.Address
	Owner   string
	Balance uint64
	Data    []byte
}

// Ledger is the storage substrate contract. Every method is atomic: it
// either fully applies or returns an error having changed nothing.
type Ledger interface {
	// CreateAccount creates a record account with the given owner and
	// data. Fails with ErrAlreadyExists if the address is taken.
	CreateAccount(ctx context.Context, addr models.Address, owner string, data []byte) error

	// Account returns the full entry for addr, or ErrNotFound.
	Account(ctx context.Context, addr models.Address) (Account, error)

	// Balance returns the balance of addr. An address with no entry reads
	// as zero; funding it later creates it implicitly.
	Balance(ctx context.Context, addr models.Address) (uint64, error)

	// Transfer moves amount from one account to another, creating the
	// destination implicitly if needed. Fails with ErrInsufficientFunds
	// if the source balance is short.
	Transfer(ctx context.Context, from, to models.Address, amount uint64) error

	// Credit mints amount onto addr, creating it implicitly. Used by the
	// registration faucet.
	Credit(ctx context.Context, addr models.Address, amount uint64) error

	// UpdateData rewrites the record blob of an account the caller owns,
	// but only if the current blob still equals prev. A stale prev fails
	// with ErrRecordModified and writes nothing, so a record read outside
	// this call can be committed against without losing a concurrent
	// update.
	UpdateData(ctx context.Context, addr models.Address, owner string, prev, next []byte) error

	// TransferAndUpdate moves amount from one account to another and
	// rewrites an owned record blob, all in one commit: if the record no
	// longer equals prev (ErrRecordModified) or the source balance is
	// short (ErrInsufficientFunds), neither effect applies.
	TransferAndUpdate(ctx context.Context, from, to models.Address, amount uint64, record models.Address, owner string, prev, next []byte) error
}

package ledger

import (
	"bytes"
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/nikhil/taskfi/internal/models"
)

// MySQL stores accounts in a single table keyed by hex address. Transfers
// run inside a transaction with the source row locked, so conflicting
// operations on the same account serialize at the database.
type MySQL struct {
	DB *sql.DB
}

// NewMySQL wraps an open pool. The accounts table must exist; see
// database.InitDB.
func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{DB: db}
}

const mysqlDupEntry = 1062

func (m *MySQL) CreateAccount(ctx context.Context, addr models.Address, owner string, data []byte) error {
	if addr.IsZero() {
		return ErrZeroAddress
	}
	query := `INSERT INTO accounts (address, owner, balance, data) VALUES (?, ?, 0, ?)`
	_, err := m.DB.ExecContext(ctx, query, addr.String(), owner, data)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDupEntry {
		return ErrAlreadyExists
	}
	return err
}

func (m *MySQL) Account(ctx context.Context, addr models.Address) (Account, error) {
	query := `SELECT owner, balance, data FROM accounts WHERE address = ?`
	acc := Account{Address: addr}
	err := m.DB.QueryRowContext(ctx, query, addr.String()).Scan(&acc.Owner, &acc.Balance, &acc.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return acc, nil
}

func (m *MySQL) Balance(ctx context.Context, addr models.Address) (uint64, error) {
	var balance uint64
	query := `SELECT balance FROM accounts WHERE address = ?`
	err := m.DB.QueryRowContext(ctx, query, addr.String()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (m *MySQL) Transfer(ctx context.Context, from, to models.Address, amount uint64) error {
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Ignored once committed

	var balance uint64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE address = ? FOR UPDATE`,
		from.String()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE address = ?`,
		amount, from.String())
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (address, owner, balance, data) VALUES (?, ?, ?, NULL)
		 ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance)`,
		to.String(), OwnerSystem, amount)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQL) Credit(ctx context.Context, addr models.Address, amount uint64) error {
	if addr.IsZero() {
		return ErrZeroAddress
	}
	query := `INSERT INTO accounts (address, owner, balance, data) VALUES (?, ?, ?, NULL)
	          ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance)`
	_, err := m.DB.ExecContext(ctx, query, addr.String(), OwnerSystem, amount)
	return err
}

func (m *MySQL) UpdateData(ctx context.Context, addr models.Address, owner string, prev, next []byte) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockRecord(ctx, tx, addr, owner, prev); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET data = ? WHERE address = ?`, next, addr.String())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQL) TransferAndUpdate(ctx context.Context, from, to models.Address, amount uint64, record models.Address, owner string, prev, next []byte) error {
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockRecord(ctx, tx, record, owner, prev); err != nil {
		return err
	}

	var balance uint64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE address = ? FOR UPDATE`,
		from.String()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE address = ?`,
		amount, from.String())
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (address, owner, balance, data) VALUES (?, ?, ?, NULL)
		 ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance)`,
		to.String(), OwnerSystem, amount)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET data = ? WHERE address = ?`, next, record.String())
	if err != nil {
		return err
	}
	return tx.Commit()
}

// lockRecord row-locks a record account inside tx and verifies ownership
// and that the blob still matches what the caller read.
func lockRecord(ctx context.Context, tx *sql.Tx, addr models.Address, owner string, prev []byte) error {
	var recordedOwner string
	var data []byte
	err := tx.QueryRowContext(ctx,
		`SELECT owner, data FROM accounts WHERE address = ? FOR UPDATE`,
		addr.String()).Scan(&recordedOwner, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if recordedOwner != owner {
		return ErrNotOwner
	}
	if !bytes.Equal(data, prev) {
		return ErrRecordModified
	}
	return nil
}

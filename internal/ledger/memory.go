package ledger

import (
	"bytes"
	"context"
	"sync"

	"github.com/nikhil/taskfi/internal/models"
)

// Memory is an in-process Ledger. It backs tests and LEDGER_BACKEND=memory
// dev runs where no MySQL instance is available. A single mutex makes each
// call atomic; cross-call consistency comes from the conditional commits
// (UpdateData, TransferAndUpdate), not from this lock.
type Memory struct {
	mu       sync.Mutex
	accounts map[models.Address]*Account
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[models.Address]*Account)}
}

func (m *Memory) CreateAccount(_ context.Context, addr models.Address, owner string, data []byte) error {
	if addr.IsZero() {
		return ErrZeroAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[addr]; ok {
		return ErrAlreadyExists
	}
	m.accounts[addr] = &Account{
		Address: addr,
		Owner:   owner,
		Data:    append([]byte(nil), data...),
	}
	return nil
}

func (m *Memory) Account(_ context.Context, addr models.Address) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[addr]
	if !ok {
		return Account{}, ErrNotFound
	}
	out := *acc
	out.Data = append([]byte(nil), acc.Data...)
	return out, nil
}

func (m *Memory) Balance(_ context.Context, addr models.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[addr]; ok {
		return acc.Balance, nil
	}
	return 0, nil
}

func (m *Memory) Transfer(_ context.Context, from, to models.Address, amount uint64) error {
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.accounts[from]
	if !ok || src.Balance < amount {
		return ErrInsufficientFunds
	}
	dst, ok := m.accounts[to]
	if !ok {
		dst = &Account{Address: to, Owner: OwnerSystem}
		m.accounts[to] = dst
	}
	src.Balance -= amount
	dst.Balance += amount
	return nil
}

func (m *Memory) Credit(_ context.Context, addr models.Address, amount uint64) error {
	if addr.IsZero() {
		return ErrZeroAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[addr]
	if !ok {
		acc = &Account{Address: addr, Owner: OwnerSystem}
		m.accounts[addr] = acc
	}
	acc.Balance += amount
	return nil
}

func (m *Memory) UpdateData(_ context.Context, addr models.Address, owner string, prev, next []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[addr]
	if !ok {
		return ErrNotFound
	}
	if acc.Owner != owner {
		return ErrNotOwner
	}
	if !bytes.Equal(acc.Data, prev) {
		return ErrRecordModified
	}
	acc.Data = append([]byte(nil), next...)
	return nil
}

func (m *Memory) TransferAndUpdate(_ context.Context, from, to models.Address, amount uint64, record models.Address, owner string, prev, next []byte) error {
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.accounts[record]
	if !ok {
		return ErrNotFound
	}
	if rec.Owner != owner {
		return ErrNotOwner
	}
	if !bytes.Equal(rec.Data, prev) {
		return ErrRecordModified
	}
	src, ok := m.accounts[from]
	if !ok || src.Balance < amount {
		return ErrInsufficientFunds
	}
	dst, ok := m.accounts[to]
	if !ok {
		dst = &Account{Address: to, Owner: OwnerSystem}
		m.accounts[to] = dst
	}
	src.Balance -= amount
	dst.Balance += amount
	rec.Data = append([]byte(nil), next...)
	return nil
}

// Package memory is an in-process ledger store with the same contract as the
// SQLite repository. Multi-row writes are all-or-nothing under one mutex.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"qarzhy/internal/core"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	txs    []core.Transaction
	debts  []core.Debt
}

func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...), nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.txIndex(id); i >= 0 {
		return s.txs[i], nil
	}
	return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
}

func (s *Store) AppendTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(tx), nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	s.txs = append(s.txs[:i], s.txs[i+1:]...)
	return nil
}

func (s *Store) ListDebts(_ context.Context) ([]core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Debt(nil), s.debts...), nil
}

func (s *Store) GetDebt(_ context.Context, id string) (core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.debtIndex(id); i >= 0 {
		return s.debts[i], nil
	}
	return core.Debt{}, fmt.Errorf("debt %s: %w", id, core.ErrNotFound)
}

func (s *Store) AppendDebtAndMirror(_ context.Context, d core.Debt, mirror core.Transaction) (core.Transaction, error) {
	mirror.DebtID = d.ID
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := mirror.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debtIndex(d.ID) >= 0 {
		return core.Transaction{}, fmt.Errorf("debt %s already exists: %w", d.ID, core.ErrStoreUnavailable)
	}
	s.debts = append(s.debts, d)
	return s.appendLocked(mirror), nil
}

func (s *Store) CloseDebtAndMirror(_ context.Context, debtID string, closedAt time.Time, mirror core.Transaction) (core.Transaction, error) {
	mirror.DebtID = debtID
	if err := mirror.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.debtIndex(debtID)
	if i < 0 || !s.debts[i].IsOpen() {
		return core.Transaction{}, fmt.Errorf("open debt %s: %w", debtID, core.ErrNotFound)
	}
	s.debts[i].Status = core.StatusClosed
	s.debts[i].ClosedAt = closedAt.UTC()
	return s.appendLocked(mirror), nil
}

func (s *Store) appendLocked(tx core.Transaction) core.Transaction {
	tx.ID = s.nextID
	s.nextID++
	s.txs = append(s.txs, tx)
	return tx
}

func (s *Store) txIndex(id int64) int {
	for i, tx := range s.txs {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) debtIndex(id string) int {
	for i, d := range s.debts {
		if d.ID == id {
			return i
		}
	}
	return -1
}

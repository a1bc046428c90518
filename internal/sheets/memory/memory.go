// Package memory is an in-process LedgerExporter used by tests and the
// worker's dry-run mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"qarzhy/internal/core"
	ports "qarzhy/internal/sheets"
)

type Exporter struct {
	mu    sync.Mutex
	txs   map[int64]core.Transaction
	debts map[string]core.Debt
}

var _ ports.LedgerExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{
		txs:   make(map[int64]core.Transaction),
		debts: make(map[string]core.Debt),
	}
}

func (e *Exporter) UpsertTransaction(_ context.Context, tx core.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.txs[tx.ID] = tx
	return nil
}

func (e *Exporter) RemoveTransaction(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.txs, id)
	return nil
}

func (e *Exporter) UpsertDebt(_ context.Context, d core.Debt) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.debts[d.ID] = d
	return nil
}

func (e *Exporter) TransactionIDs(_ context.Context) ([]int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int64, 0, len(e.txs))
	for id := range e.txs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Transactions returns the exported rows ordered by id.
func (e *Exporter) Transactions() []core.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Transaction, 0, len(e.txs))
	for _, tx := range e.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Exporter) Debt(id string) (core.Debt, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.debts[id]
	return d, ok
}

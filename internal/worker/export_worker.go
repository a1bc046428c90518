package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"qarzhy/internal/amqp"
	"qarzhy/internal/core"
	"qarzhy/internal/metrics"
	"qarzhy/internal/sheets"
)

// LedgerReader is the read side of the store the worker needs.
type LedgerReader interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListDebts(ctx context.Context) ([]core.Debt, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	GetDebt(ctx context.Context, id string) (core.Debt, error)
}

// ExportWorker mirrors committed ledger changes into a spreadsheet. Events
// only carry ids; row contents are always read back from the store.
type ExportWorker struct {
	store    LedgerReader
	exporter sheets.LedgerExporter
}

func NewExportWorker(store LedgerReader, exporter sheets.LedgerExporter) *ExportWorker {
	return &ExportWorker{store: store, exporter: exporter}
}

// HandleEvent processes a single ledger event from AMQP. A returned error
// makes the consumer requeue the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_type", ev.Type,
		"transaction_id", ev.TransactionID,
		"debt_id", ev.DebtID)

	var err error
	switch ev.Type {
	case amqp.TransactionAppended:
		err = w.exportTransaction(ctx, ev.TransactionID)
	case amqp.TransactionDeleted:
		err = w.exporter.RemoveTransaction(ctx, ev.TransactionID)
		if err != nil {
			err = fmt.Errorf("remove transaction %d: %w", ev.TransactionID, err)
		}
	case amqp.DebtOpened, amqp.DebtClosed:
		err = w.exportDebt(ctx, ev.DebtID)
		if err == nil && ev.TransactionID > 0 {
			err = w.exportTransaction(ctx, ev.TransactionID)
		}
	default:
		err = fmt.Errorf("unknown event type %q", ev.Type)
	}

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.EventsExported.WithLabelValues(string(ev.Type), outcome).Inc()
	return err
}

func (w *ExportWorker) exportTransaction(ctx context.Context, id int64) error {
	tx, err := w.store.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// deleted before we got here; the delete event removes the row
		slog.InfoContext(ctx, "Transaction no longer in store, skipping export", "transaction_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	if err := w.exporter.UpsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("export transaction %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Successfully exported transaction",
		"transaction_id", id,
		"segment", tx.Segment,
		"amount", tx.Amount.String())
	return nil
}

func (w *ExportWorker) exportDebt(ctx context.Context, id string) error {
	d, err := w.store.GetDebt(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Debt not in store, skipping export", "debt_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get debt from storage: %w", err)
	}
	if err := w.exporter.UpsertDebt(ctx, d); err != nil {
		return fmt.Errorf("export debt %s: %w", id, err)
	}
	return nil
}

// FullSync exports every row in the store and removes exported transactions
// the store no longer has. It runs at worker startup and on the resync ticker
// to recover from missed events. Individual failures are logged and counted;
// only a failed read aborts.
func (w *ExportWorker) FullSync(ctx context.Context) error {
	txs, err := w.store.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("list transactions for full sync: %w", err)
	}
	debts, err := w.store.ListDebts(ctx)
	if err != nil {
		return fmt.Errorf("list debts for full sync: %w", err)
	}

	exported, err := w.exporter.TransactionIDs(ctx)
	if err != nil {
		return fmt.Errorf("list exported transactions for full sync: %w", err)
	}

	successCount := 0
	errorCount := 0
	removed := 0

	inStore := make(map[int64]struct{}, len(txs))
	for _, tx := range txs {
		inStore[tx.ID] = struct{}{}
	}
	for _, id := range exported {
		if _, ok := inStore[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.exporter.RemoveTransaction(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to remove stale transaction during full sync",
				"transaction_id", id, "error", err)
			errorCount++
			continue
		}
		removed++
	}

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.exporter.UpsertTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during full sync",
				"transaction_id", tx.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}
	for _, d := range debts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.exporter.UpsertDebt(ctx, d); err != nil {
			slog.ErrorContext(ctx, "Failed to export debt during full sync",
				"debt_id", d.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Full sync completed",
		"transactions", len(txs),
		"debts", len(debts),
		"synced", successCount,
		"removed", removed,
		"errors", errorCount)
	return nil
}

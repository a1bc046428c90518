package sheets

import (
	"context"

	"qarzhy/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerExporter mirrors ledger rows into an external spreadsheet. Rows
	// are keyed by id so every call is idempotent.
	LedgerExporter interface {
		UpsertTransaction(ctx context.Context, tx core.Transaction) error
		// RemoveTransaction is a no-op when the row was never exported.
		RemoveTransaction(ctx context.Context, id int64) error
		UpsertDebt(ctx context.Context, d core.Debt) error
		// TransactionIDs lists the transaction ids currently in the sheet.
		TransactionIDs(ctx context.Context) ([]int64, error)
	}
)

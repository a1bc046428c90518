package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"qarzhy/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// foreign_keys is per connection in SQLite, so it goes in the DSN
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping database", err)
	}
	return nil
}

// withTx runs fn inside one SQL transaction. Any error returned by fn, or a
// panic, rolls back every write fn made.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return unavailable("commit transaction", err)
	}
	return nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, unavailable("list transactions", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := toTransaction(row)
		if err != nil {
			// A single bad historical row must not block reporting.
			slog.WarnContext(ctx, "Skipping unreadable transaction row", "id", row.ID, "error", err)
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, unavailable("get transaction", err)
	}
	return toTransaction(row)
}

func (r *SQLiteRepository) AppendTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	row, err := r.queries.CreateTransaction(ctx, transactionParams(tx))
	if err != nil {
		return core.Transaction{}, unavailable("create transaction", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"kind", row.Kind,
		"amount", row.Amount,
		"segment", row.Segment)

	return toTransaction(row)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return unavailable("delete transaction", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

func (r *SQLiteRepository) ListDebts(ctx context.Context) ([]core.Debt, error) {
	rows, err := r.queries.ListDebts(ctx)
	if err != nil {
		return nil, unavailable("list debts", err)
	}
	out := make([]core.Debt, 0, len(rows))
	for _, row := range rows {
		d, err := toDebt(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable debt row", "id", row.ID, "error", err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *SQLiteRepository) GetDebt(ctx context.Context, id string) (core.Debt, error) {
	row, err := r.queries.GetDebt(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Debt{}, fmt.Errorf("debt %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Debt{}, unavailable("get debt", err)
	}
	return toDebt(row)
}

// AppendDebtAndMirror persists a new debt and its mirror transaction in one
// SQL transaction.
func (r *SQLiteRepository) AppendDebtAndMirror(ctx context.Context, d core.Debt, mirror core.Transaction) (core.Transaction, error) {
	var saved core.Transaction
	err := r.withTx(ctx, func(q *Queries) error {
		if err := q.CreateDebt(ctx, CreateDebtParams{
			ID:        d.ID,
			Date:      d.Date.String(),
			Name:      d.Name,
			Direction: string(d.Direction),
			Account:   d.Account,
			Amount:    d.Amount.String(),
			Status:    string(d.Status),
			Segment:   string(d.Segment),
		}); err != nil {
			return unavailable("create debt", err)
		}

		mirror.DebtID = d.ID
		row, err := q.CreateTransaction(ctx, transactionParams(mirror))
		if err != nil {
			return unavailable("create debt mirror", err)
		}
		saved, err = toTransaction(row)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Debt saved to SQLite",
		"debt_id", d.ID,
		"direction", d.Direction,
		"amount", d.Amount.String(),
		"mirror_id", saved.ID)

	return saved, nil
}

// CloseDebtAndMirror marks an open debt closed and persists the closure mirror
// in one SQL transaction. A missing or already closed debt yields
// core.ErrNotFound and writes nothing.
func (r *SQLiteRepository) CloseDebtAndMirror(ctx context.Context, debtID string, closedAt time.Time, mirror core.Transaction) (core.Transaction, error) {
	var saved core.Transaction
	err := r.withTx(ctx, func(q *Queries) error {
		n, err := q.CloseOpenDebt(ctx, CloseOpenDebtParams{
			ClosedAt: sql.NullString{String: closedAt.UTC().Format(time.RFC3339), Valid: true},
			ID:       debtID,
		})
		if err != nil {
			return unavailable("close debt", err)
		}
		if n == 0 {
			return fmt.Errorf("open debt %s: %w", debtID, core.ErrNotFound)
		}

		mirror.DebtID = debtID
		row, err := q.CreateTransaction(ctx, transactionParams(mirror))
		if err != nil {
			return unavailable("create closure mirror", err)
		}
		saved, err = toTransaction(row)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Debt closed in SQLite", "debt_id", debtID, "mirror_id", saved.ID)
	return saved, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func transactionParams(tx core.Transaction) CreateTransactionParams {
	return CreateTransactionParams{
		Date:          tx.Date.String(),
		Kind:          string(tx.Kind),
		Category:      tx.Category,
		Account:       nullString(tx.Account),
		SourceAccount: nullString(tx.SourceAccount),
		DestAccount:   nullString(tx.DestAccount),
		Amount:        tx.Amount.String(),
		Description:   tx.Description,
		Segment:       string(tx.Segment),
		DebtID:        nullString(tx.DebtID),
	}
}

func toTransaction(row FinanceTransaction) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", row.ID, err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount %q: %w", row.ID, row.Amount, err)
	}
	return core.Transaction{
		ID:            row.ID,
		Date:          date,
		Kind:          core.Kind(row.Kind),
		Category:      row.Category,
		Account:       row.Account.String,
		SourceAccount: row.SourceAccount.String,
		DestAccount:   row.DestAccount.String,
		Amount:        amount,
		Description:   row.Description,
		Segment:       core.Segment(row.Segment),
		DebtID:        row.DebtID.String,
	}, nil
}

func toDebt(row FinanceDebt) (core.Debt, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Debt{}, fmt.Errorf("debt %s: %w", row.ID, err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Debt{}, fmt.Errorf("debt %s amount %q: %w", row.ID, row.Amount, err)
	}
	d := core.Debt{
		ID:        row.ID,
		Date:      date,
		Name:      row.Name,
		Direction: core.Direction(row.Direction),
		Account:   row.Account,
		Amount:    amount,
		Status:    core.Status(row.Status),
		Segment:   core.Segment(row.Segment),
	}
	if row.ClosedAt.Valid {
		if t, err := time.Parse(time.RFC3339, row.ClosedAt.String); err == nil {
			d.ClosedAt = t
		}
	}
	return d, nil
}

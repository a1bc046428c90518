package storage

import (
	"context"
	"database/sql"
)

const transactionColumns = `id, date, kind, category, account, source_account, dest_account, amount, description, segment, debt_id`

const debtColumns = `id, date, name, direction, account, amount, status, segment, closed_at`

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO finance_transactions (date, kind, category, account, source_account, dest_account, amount, description, segment, debt_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	Date          string
	Kind          string
	Category      string
	Account       sql.NullString
	SourceAccount sql.NullString
	DestAccount   sql.NullString
	Amount        string
	Description   string
	Segment       string
	DebtID        sql.NullString
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (FinanceTransaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.Date,
		arg.Kind,
		arg.Category,
		arg.Account,
		arg.SourceAccount,
		arg.DestAccount,
		arg.Amount,
		arg.Description,
		arg.Segment,
		arg.DebtID,
	)
	return scanTransaction(row)
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM finance_transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (FinanceTransaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	return scanTransaction(row)
}

const listTransactions = `-- name: ListTransactions :many
SELECT ` + transactionColumns + ` FROM finance_transactions ORDER BY id`

func (q *Queries) ListTransactions(ctx context.Context) ([]FinanceTransaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FinanceTransaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteTransaction = `-- name: DeleteTransaction :execrows
DELETE FROM finance_transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createDebt = `-- name: CreateDebt :exec
INSERT INTO finance_debts (id, date, name, direction, account, amount, status, segment)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

type CreateDebtParams struct {
	ID        string
	Date      string
	Name      string
	Direction string
	Account   string
	Amount    string
	Status    string
	Segment   string
}

func (q *Queries) CreateDebt(ctx context.Context, arg CreateDebtParams) error {
	_, err := q.db.ExecContext(ctx, createDebt,
		arg.ID,
		arg.Date,
		arg.Name,
		arg.Direction,
		arg.Account,
		arg.Amount,
		arg.Status,
		arg.Segment,
	)
	return err
}

const getDebt = `-- name: GetDebt :one
SELECT ` + debtColumns + ` FROM finance_debts WHERE id = ?`

func (q *Queries) GetDebt(ctx context.Context, id string) (FinanceDebt, error) {
	row := q.db.QueryRowContext(ctx, getDebt, id)
	return scanDebt(row)
}

const listDebts = `-- name: ListDebts :many
SELECT ` + debtColumns + ` FROM finance_debts ORDER BY date, created_at`

func (q *Queries) ListDebts(ctx context.Context) ([]FinanceDebt, error) {
	rows, err := q.db.QueryContext(ctx, listDebts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FinanceDebt
	for rows.Next() {
		i, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const closeOpenDebt = `-- name: CloseOpenDebt :execrows
UPDATE finance_debts SET status = 'closed', closed_at = ?
WHERE id = ? AND status = 'open'`

type CloseOpenDebtParams struct {
	ClosedAt sql.NullString
	ID       string
}

func (q *Queries) CloseOpenDebt(ctx context.Context, arg CloseOpenDebtParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, closeOpenDebt, arg.ClosedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (FinanceTransaction, error) {
	var i FinanceTransaction
	err := s.Scan(
		&i.ID,
		&i.Date,
		&i.Kind,
		&i.Category,
		&i.Account,
		&i.SourceAccount,
		&i.DestAccount,
		&i.Amount,
		&i.Description,
		&i.Segment,
		&i.DebtID,
	)
	return i, err
}

func scanDebt(s scanner) (FinanceDebt, error) {
	var i FinanceDebt
	err := s.Scan(
		&i.ID,
		&i.Date,
		&i.Name,
		&i.Direction,
		&i.Account,
		&i.Amount,
		&i.Status,
		&i.Segment,
		&i.ClosedAt,
	)
	return i, err
}

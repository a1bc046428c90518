package storage

import (
	"database/sql"
)

type FinanceDebt struct {
	ID        string
	Date      string
	Name      string
	Direction string
	Account   string
	Amount    string
	Status    string
	Segment   string
	ClosedAt  sql.NullString
}

type FinanceTransaction struct {
	ID            int64
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

// Package legacy imports CSV dumps of the old finance_transactions and
// finance_debts tables, whose columns carry Kazakh tag values and an
// encoded "src -> dst" transfer descriptor.
package legacy

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"qarzhy/internal/core"
)

// Legacy tag values.
const (
	tagExpense  = "Шығын"
	tagIncome   = "Кіріс"
	tagTransfer = "Аударым"

	tagLentByMe     = "Маған қарыз"
	tagBorrowedByMe = "Мен қарызбын"

	tagOpen   = "Ашық"
	tagClosed = "Жабылды"

	transferSeparator = " -> "
)

// legacySegments maps the old segment labels onto the current ones. Labels
// not listed here are kept as they are.
var legacySegments = map[string]core.Segment{
	"Бизнес": "Business",
	"Личное": "Personal",
}

var (
	transactionColumns = []string{"id", "date", "type", "category", "payment_method", "amount", "description", "segment"}
	debtColumns        = []string{"id", "date", "name", "type", "bank", "amount", "status", "segment"}
)

// TransactionRow is one parsed finance_transactions record.
type TransactionRow struct {
	Line     int
	LegacyID int64
	core.Transaction
}

// RowError reports a record that could not be mapped.
type RowError struct {
	Table string
	Line  int
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.Table, e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ReadTransactions parses a finance_transactions dump. Transfer descriptors
// are resolved against accounts. Records that cannot be mapped are returned
// as RowErrors; only a broken CSV stream fails the whole read.
func ReadTransactions(r io.Reader, accounts []string) ([]TransactionRow, []RowError, error) {
	records, err := readTable(r, "finance_transactions", transactionColumns)
	if err != nil {
		return nil, nil, err
	}

	var rows []TransactionRow
	var bad []RowError
	for _, rec := range records {
		row, err := parseTransaction(rec, accounts)
		if err != nil {
			bad = append(bad, RowError{Table: "finance_transactions", Line: rec.line, Err: err})
			continue
		}
		rows = append(rows, row)
	}
	return rows, bad, nil
}

// ReadDebts parses a finance_debts dump. The legacy id is kept as the debt id.
func ReadDebts(r io.Reader) ([]core.Debt, []RowError, error) {
	records, err := readTable(r, "finance_debts", debtColumns)
	if err != nil {
		return nil, nil, err
	}

	var debts []core.Debt
	var bad []RowError
	for _, rec := range records {
		d, err := parseDebt(rec)
		if err != nil {
			bad = append(bad, RowError{Table: "finance_debts", Line: rec.line, Err: err})
			continue
		}
		debts = append(debts, d)
	}
	return debts, bad, nil
}

// SplitTransfer resolves a "src -> dst" descriptor. Both sides must equal an
// account exactly, so "Халық -> Халық Инвест" never matches "Халық" as the
// destination. With no accounts the descriptor must contain one separator.
func SplitTransfer(descriptor string, accounts []string) (src, dst string, err error) {
	descriptor = strings.TrimSpace(descriptor)
	if len(accounts) == 0 {
		if strings.Count(descriptor, transferSeparator) != 1 {
			return "", "", fmt.Errorf("%w: ambiguous transfer descriptor %q", core.ErrValidation, descriptor)
		}
		src, dst, _ = strings.Cut(descriptor, transferSeparator)
		return strings.TrimSpace(src), strings.TrimSpace(dst), nil
	}

	for _, s := range accounts {
		rest, ok := strings.CutPrefix(descriptor, s+transferSeparator)
		if !ok {
			continue
		}
		for _, d := range accounts {
			if rest == d {
				if s == d {
					return "", "", core.ErrSameAccount
				}
				return s, d, nil
			}
		}
	}
	return "", "", fmt.Errorf("%w: transfer descriptor %q does not name two known accounts", core.ErrUnknownAccount, descriptor)
}

type record struct {
	line   int
	values map[string]string
}

func (r record) get(col string) string {
	return strings.TrimSpace(r.values[col])
}

func readTable(r io.Reader, table string, columns []string) ([]record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", table, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("reading %s CSV: missing column %q", table, col)
		}
	}

	out := make([]record, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		values := make(map[string]string, len(columns))
		for _, col := range columns {
			if idx := index[col]; idx < len(rec) {
				values[col] = rec[idx]
			}
		}
		out = append(out, record{line: i + 2, values: values})
	}
	return out, nil
}

func parseTransaction(rec record, accounts []string) (TransactionRow, error) {
	id, err := strconv.ParseInt(rec.get("id"), 10, 64)
	if err != nil {
		return TransactionRow{}, fmt.Errorf("parsing id %q: %w", rec.get("id"), err)
	}
	date, err := parseLegacyDate(rec.get("date"))
	if err != nil {
		return TransactionRow{}, err
	}
	amount, err := core.ParseAmount(rec.get("amount"))
	if err != nil {
		return TransactionRow{}, err
	}

	tx := core.Transaction{
		Date:        date,
		Category:    rec.get("category"),
		Amount:      amount,
		Description: rec.get("description"),
		Segment:     mapSegment(rec.get("segment")),
	}

	switch tag := rec.get("type"); tag {
	case tagExpense:
		tx.Kind = core.KindExpense
		tx.Account = rec.get("payment_method")
	case tagIncome:
		tx.Kind = core.KindIncome
		tx.Account = rec.get("payment_method")
	case tagTransfer:
		tx.Kind = core.KindTransfer
		tx.Category = core.CategoryTransfer
		tx.SourceAccount, tx.DestAccount, err = SplitTransfer(rec.get("payment_method"), accounts)
		if err != nil {
			return TransactionRow{}, err
		}
	default:
		return TransactionRow{}, fmt.Errorf("%w: unknown transaction type %q", core.ErrValidation, tag)
	}

	if err := tx.Validate(); err != nil {
		return TransactionRow{}, err
	}
	return TransactionRow{Line: rec.line, LegacyID: id, Transaction: tx}, nil
}

func parseDebt(rec record) (core.Debt, error) {
	date, err := parseLegacyDate(rec.get("date"))
	if err != nil {
		return core.Debt{}, err
	}
	amount, err := core.ParseAmount(rec.get("amount"))
	if err != nil {
		return core.Debt{}, err
	}

	d := core.Debt{
		ID:      rec.get("id"),
		Date:    date,
		Name:    rec.get("name"),
		Account: rec.get("bank"),
		Amount:  amount,
		Segment: mapSegment(rec.get("segment")),
	}
	if d.ID == "" {
		return core.Debt{}, fmt.Errorf("%w: empty debt id", core.ErrValidation)
	}

	switch tag := rec.get("type"); tag {
	case tagLentByMe:
		d.Direction = core.LentByMe
	case tagBorrowedByMe:
		d.Direction = core.BorrowedByMe
	default:
		return core.Debt{}, fmt.Errorf("%w: unknown debt type %q", core.ErrValidation, tag)
	}

	switch tag := rec.get("status"); tag {
	case tagOpen, "":
		d.Status = core.StatusOpen
	case tagClosed:
		d.Status = core.StatusClosed
	default:
		return core.Debt{}, fmt.Errorf("%w: unknown debt status %q", core.ErrValidation, tag)
	}

	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	return d, nil
}

// parseLegacyDate accepts plain dates and the timestamps the old app wrote
// for repayments.
func parseLegacyDate(s string) (core.Date, error) {
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	return core.ParseDate(s)
}

func mapSegment(label string) core.Segment {
	if seg, ok := legacySegments[label]; ok {
		return seg
	}
	return core.Segment(label)
}

package legacy

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"qarzhy/internal/config"
	"qarzhy/internal/core"
	"qarzhy/internal/ledger"
	"qarzhy/internal/log"
)

// Store is the write side the importer needs.
type Store interface {
	AppendTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	AppendDebtAndMirror(ctx context.Context, d core.Debt, mirror core.Transaction) (core.Transaction, error)
	CloseDebtAndMirror(ctx context.Context, debtID string, closedAt time.Time, mirror core.Transaction) (core.Transaction, error)
}

// Report summarizes a planned or finished import.
type Report struct {
	Transactions int
	Debts        int
	ClosedDebts  int
	// MatchedMirrors counts legacy debt and repayment rows linked to a debt.
	MatchedMirrors int
	// DroppedDuplicates counts extra mirror rows the old app wrote twice.
	DroppedDuplicates int
	// SynthesizedMirrors counts mirrors created because no legacy row matched.
	SynthesizedMirrors int
	// UnlinkedDebtRows counts debt-category rows kept as plain entries.
	UnlinkedDebtRows int
	Skipped          []RowError
}

// The old app wrote a debt's opening row twice: once while storing the debt
// and once more from the form.
const maxOpenMirrors = 2

type opKind int

const (
	opTransaction opKind = iota
	opOpenDebt
	opCloseDebt
)

type op struct {
	kind     opKind
	seq      int64
	tx       core.Transaction
	debt     core.Debt
	closedAt time.Time
}

// Plan is the ordered list of writes an import performs.
type Plan struct {
	ops    []op
	Report Report
}

type Importer struct {
	store  Store
	chart  config.Chart
	logger *log.Logger
}

func NewImporter(store Store, chart config.Chart, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Importer{store: store, chart: chart, logger: logger.WithComponent(log.ComponentImport)}
}

// Plan links every debt to its legacy mirror rows and orders the writes by
// legacy id, so the newest legacy row stays the newest row after import.
func (im *Importer) Plan(rows []TransactionRow, debts []core.Debt) Plan {
	var p Plan
	used := make([]bool, len(rows))

	for i, row := range rows {
		if err := im.checkChart(row.Segment, transactionAccounts(row.Transaction)...); err != nil {
			p.Report.Skipped = append(p.Report.Skipped, RowError{Table: "finance_transactions", Line: row.Line, Err: err})
			used[i] = true
		}
	}

	for _, legacyDebt := range debts {
		if err := im.checkChart(legacyDebt.Segment, legacyDebt.Account); err != nil {
			p.Report.Skipped = append(p.Report.Skipped, RowError{Table: "finance_debts", Err: fmt.Errorf("debt %s: %w", legacyDebt.ID, err)})
			continue
		}

		debt, mirror, err := ledger.BuildDebtCreation(ledger.DebtDraft{
			Date:      legacyDebt.Date,
			Name:      legacyDebt.Name,
			Direction: legacyDebt.Direction,
			Account:   legacyDebt.Account,
			Amount:    legacyDebt.Amount,
			Segment:   legacyDebt.Segment,
		})
		if err != nil {
			p.Report.Skipped = append(p.Report.Skipped, RowError{Table: "finance_debts", Err: fmt.Errorf("debt %s: %w", legacyDebt.ID, err)})
			continue
		}
		debt.ID = legacyDebt.ID
		mirror.DebtID = debt.ID

		openSeq := int64(0)
		matches := matchRows(rows, used, maxOpenMirrors, func(tx core.Transaction) bool {
			return tx.Category == core.CategoryDebt && tx.Kind == mirror.Kind &&
				tx.Date.Equal(debt.Date.Time) && sameCash(tx, debt) &&
				strings.HasSuffix(strings.TrimSpace(tx.Description), ": "+debt.Name)
		})
		if len(matches) > 0 {
			first := rows[matches[0]]
			openSeq = first.LegacyID
			mirror.Description = first.Description
			p.Report.MatchedMirrors++
			p.Report.DroppedDuplicates += len(matches) - 1
		} else {
			p.Report.SynthesizedMirrors++
		}
		p.ops = append(p.ops, op{kind: opOpenDebt, seq: openSeq, debt: debt, tx: mirror})
		p.Report.Debts++

		if legacyDebt.Status != core.StatusClosed {
			continue
		}
		closedAt := debt.Date.Time
		closeSeq := int64(math.MaxInt64)
		repayment, _ := ledger.BuildDebtClosure(debt, closedAt)
		wantDesc := repayment.Description
		matches = matchRows(rows, used, 1, func(tx core.Transaction) bool {
			return tx.Category == core.CategoryDebtRepayment && tx.Kind == repayment.Kind &&
				sameCash(tx, debt) && strings.TrimSpace(tx.Description) == wantDesc
		})
		if len(matches) > 0 {
			first := rows[matches[0]]
			closedAt = first.Date.Time
			closeSeq = first.LegacyID
			p.Report.MatchedMirrors++
		} else {
			p.Report.SynthesizedMirrors++
		}
		p.ops = append(p.ops, op{kind: opCloseDebt, seq: closeSeq, debt: debt, closedAt: closedAt})
		p.Report.ClosedDebts++
	}

	for i, row := range rows {
		if used[i] {
			continue
		}
		if row.Category == core.CategoryDebt || row.Category == core.CategoryDebtRepayment {
			p.Report.UnlinkedDebtRows++
		}
		p.ops = append(p.ops, op{kind: opTransaction, seq: row.LegacyID, tx: row.Transaction})
		p.Report.Transactions++
	}

	slices.SortStableFunc(p.ops, func(a, b op) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return p
}

// Import writes the plan. It stops at the first store failure; rows already
// written stay written.
func (im *Importer) Import(ctx context.Context, p Plan) (Report, error) {
	for _, o := range p.ops {
		var err error
		switch o.kind {
		case opTransaction:
			_, err = im.store.AppendTransaction(ctx, o.tx)
		case opOpenDebt:
			_, err = im.store.AppendDebtAndMirror(ctx, o.debt, o.tx)
		case opCloseDebt:
			var closure core.Transaction
			closure, err = ledger.BuildDebtClosure(o.debt, o.closedAt)
			if err == nil {
				_, err = im.store.CloseDebtAndMirror(ctx, o.debt.ID, o.closedAt, closure)
			}
		}
		if err != nil {
			im.logger.ErrorContext(ctx, "Legacy import stopped", log.FieldError, err)
			return p.Report, fmt.Errorf("import legacy rows: %w", err)
		}
	}

	for _, rowErr := range p.Report.Skipped {
		im.logger.WarnContext(ctx, "Skipped legacy row", "table", rowErr.Table, "line", rowErr.Line, log.FieldError, rowErr.Err)
	}
	im.logger.InfoContext(ctx, "Legacy import finished",
		"transactions", p.Report.Transactions,
		"debts", p.Report.Debts,
		"closed_debts", p.Report.ClosedDebts,
		"synthesized_mirrors", p.Report.SynthesizedMirrors,
		"skipped", len(p.Report.Skipped))
	return p.Report, nil
}

func (im *Importer) checkChart(segment core.Segment, accounts ...string) error {
	if !im.chart.HasSegment(segment) {
		return fmt.Errorf("%w: %q", core.ErrUnknownSegment, segment)
	}
	for _, a := range accounts {
		if !im.chart.HasAccount(a) {
			return fmt.Errorf("%w: %q", core.ErrUnknownAccount, a)
		}
	}
	return nil
}

func transactionAccounts(tx core.Transaction) []string {
	if tx.Kind == core.KindTransfer {
		return []string{tx.SourceAccount, tx.DestAccount}
	}
	return []string{tx.Account}
}

func sameCash(tx core.Transaction, d core.Debt) bool {
	return tx.Segment == d.Segment && tx.Account == d.Account && tx.Amount.Equal(d.Amount)
}

// matchRows marks and returns up to limit unused rows accepted by match.
func matchRows(rows []TransactionRow, used []bool, limit int, match func(core.Transaction) bool) []int {
	var idx []int
	for i, row := range rows {
		if len(idx) == limit {
			break
		}
		if used[i] || !match(row.Transaction) {
			continue
		}
		used[i] = true
		idx = append(idx, i)
	}
	return idx
}

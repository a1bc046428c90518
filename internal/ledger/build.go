package ledger

import (
	"fmt"
	"strings"
	"time"

	"qarzhy/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtDraft is the user input for a new debt.
type DebtDraft struct {
	Date      core.Date
	Name      string
	Direction core.Direction
	Account   string
	Amount    decimal.Decimal
	Segment   core.Segment
}

// TransferDraft is the user input for moving money between two accounts.
type TransferDraft struct {
	Date        core.Date
	Source      string
	Destination string
	Amount      decimal.Decimal
	Segment     core.Segment
}

// newDebtID is swapped in tests.
var newDebtID = func() string { return uuid.NewString() }

// BuildDebtCreation expands a new debt into the open debt row and its mirror
// transaction. Lending is money leaving the account, borrowing is money
// arriving.
func BuildDebtCreation(d DebtDraft) (core.Debt, core.Transaction, error) {
	debt := core.Debt{
		ID:        newDebtID(),
		Date:      d.Date,
		Name:      strings.TrimSpace(d.Name),
		Direction: d.Direction,
		Account:   d.Account,
		Amount:    d.Amount,
		Status:    core.StatusOpen,
		Segment:   d.Segment,
	}
	if err := debt.Validate(); err != nil {
		return core.Debt{}, core.Transaction{}, err
	}

	mirror := core.Transaction{
		Date:     debt.Date,
		Category: core.CategoryDebt,
		Account:  debt.Account,
		Amount:   debt.Amount,
		Segment:  debt.Segment,
		DebtID:   debt.ID,
	}
	switch debt.Direction {
	case core.LentByMe:
		mirror.Kind = core.KindExpense
		mirror.Description = fmt.Sprintf("💸 Қарыз берілді: %s", debt.Name)
	case core.BorrowedByMe:
		mirror.Kind = core.KindIncome
		mirror.Description = fmt.Sprintf("💰 Қарыз алынды: %s", debt.Name)
	}
	return debt, mirror, nil
}

// BuildDebtClosure produces the mirror that cancels an open debt's cash
// effect. The row is dated at closedAt, not at the original debt date.
func BuildDebtClosure(debt core.Debt, closedAt time.Time) (core.Transaction, error) {
	if !debt.IsOpen() {
		return core.Transaction{}, core.ErrDebtNotOpen
	}
	if err := debt.Validate(); err != nil {
		return core.Transaction{}, err
	}

	mirror := core.Transaction{
		Date:        core.DateOf(closedAt),
		Category:    core.CategoryDebtRepayment,
		Account:     debt.Account,
		Amount:      debt.Amount,
		Description: fmt.Sprintf("Қайтарылды: %s", debt.Name),
		Segment:     debt.Segment,
		DebtID:      debt.ID,
	}
	if debt.Direction == core.LentByMe {
		mirror.Kind = core.KindIncome
	} else {
		mirror.Kind = core.KindExpense
	}
	return mirror, nil
}

// BuildTransfer produces the single row that moves money between accounts.
func BuildTransfer(d TransferDraft) (core.Transaction, error) {
	tx := core.Transaction{
		Date:          d.Date,
		Kind:          core.KindTransfer,
		Category:      core.CategoryTransfer,
		SourceAccount: d.Source,
		DestAccount:   d.Destination,
		Amount:        d.Amount,
		Description:   core.CategoryTransfer,
		Segment:       d.Segment,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

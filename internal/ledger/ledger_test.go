package ledger

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"qarzhy/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	personal core.Segment = "Personal"
	business core.Segment = "Business"
)

var accounts = []string{"Каспи", "Халық", "Halyk", "Халық Инвест"}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func expense(id int64, account, amount string, seg core.Segment) core.Transaction {
	return core.Transaction{ID: id, Date: core.NewDate(2025, 1, 1), Kind: core.KindExpense,
		Category: "Тамақ", Account: account, Amount: dec(amount), Segment: seg}
}

func income(id int64, account, amount string, seg core.Segment) core.Transaction {
	return core.Transaction{ID: id, Date: core.NewDate(2025, 1, 1), Kind: core.KindIncome,
		Category: "Жалақы", Account: account, Amount: dec(amount), Segment: seg}
}

func transfer(t *testing.T, src, dst, amount string, seg core.Segment) core.Transaction {
	t.Helper()
	tx, err := BuildTransfer(TransferDraft{Date: core.NewDate(2025, 1, 2), Source: src,
		Destination: dst, Amount: dec(amount), Segment: seg})
	require.NoError(t, err)
	return tx
}

func total(txs []core.Transaction, seg core.Segment) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range Balances(txs, accounts, seg) {
		sum = sum.Add(b.Balance)
	}
	return sum
}

func TestBalanceIncomeMinusExpense(t *testing.T) {
	log := []core.Transaction{
		income(1, "Каспи", "5000", personal),
		expense(2, "Каспи", "2000", personal),
	}
	assert.True(t, Balance(log, "Каспи", personal).Equal(dec("3000")))
	assert.True(t, Balance(log, "Каспи", business).IsZero(), "no cross-segment netting")
	assert.True(t, Balance(log, "Халық", personal).IsZero())
}

func TestBalanceEmptyLog(t *testing.T) {
	assert.True(t, Balance(nil, "Каспи", personal).IsZero())
	for _, b := range Balances(nil, accounts, personal) {
		assert.True(t, b.Balance.IsZero())
	}
	assert.Empty(t, CategoryBreakdown(nil, personal))
	assert.Empty(t, CategoryShares(nil))
}

func TestBalanceOrderIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	var log []core.Transaction
	want := decimal.Zero
	for i := 0; i < 200; i++ {
		amt := decimal.NewFromInt(r.Int63n(100000)).Shift(-2)
		if r.Intn(2) == 0 {
			log = append(log, income(int64(i), "Каспи", amt.String(), personal))
			want = want.Add(amt)
		} else {
			log = append(log, expense(int64(i), "Каспи", amt.String(), personal))
			want = want.Sub(amt)
		}
	}
	require.True(t, Balance(log, "Каспи", personal).Equal(want))

	for n := 0; n < 5; n++ {
		r.Shuffle(len(log), func(i, j int) { log[i], log[j] = log[j], log[i] })
		assert.True(t, Balance(log, "Каспи", personal).Equal(want))
	}
}

func TestTransferMovesMoney(t *testing.T) {
	for _, amount := range []string{"0", "1", "1000", "12.34", "999999.99"} {
		t.Run(amount, func(t *testing.T) {
			log := []core.Transaction{
				income(1, "Каспи", "500", personal),
				income(2, "Халық Инвест", "70", personal),
			}
			before := Balances(log, accounts, personal)
			sumBefore := total(log, personal)

			log = append(log, transfer(t, "Каспи", "Halyk", amount, personal))
			after := Balances(log, accounts, personal)

			a := dec(amount)
			assert.True(t, after[0].Balance.Equal(before[0].Balance.Sub(a)), "source decreases")
			assert.True(t, after[2].Balance.Equal(before[2].Balance.Add(a)), "destination increases")
			assert.True(t, after[1].Balance.Equal(before[1].Balance))
			assert.True(t, after[3].Balance.Equal(before[3].Balance))
			assert.True(t, total(log, personal).Equal(sumBefore), "sum unchanged")
		})
	}
}

func TestTransferExample(t *testing.T) {
	log := []core.Transaction{transfer(t, "Каспи", "Halyk", "1000", personal)}
	assert.Equal(t, "-1000", Balance(log, "Каспи", personal).String())
	assert.Equal(t, "1000", Balance(log, "Halyk", personal).String())
}

func TestTransferSharedPrefixAccounts(t *testing.T) {
	log := []core.Transaction{transfer(t, "Халық", "Халық Инвест", "300", personal)}
	assert.Equal(t, "-300", Balance(log, "Халық", personal).String())
	assert.Equal(t, "300", Balance(log, "Халық Инвест", personal).String())
}

func TestBuildTransferRejectsSameAccount(t *testing.T) {
	for _, acct := range append(accounts, "x", "Қолма-қол") {
		_, err := BuildTransfer(TransferDraft{Date: core.NewDate(2025, 1, 1), Source: acct,
			Destination: acct, Amount: dec("10"), Segment: personal})
		assert.ErrorIs(t, err, core.ErrSameAccount, acct)
		assert.ErrorIs(t, err, core.ErrValidation, acct)
	}
}

func TestBuildTransferFields(t *testing.T) {
	tx := transfer(t, "Каспи", "Freedom", "10", business)
	assert.Equal(t, core.KindTransfer, tx.Kind)
	assert.Equal(t, core.CategoryTransfer, tx.Category)
	assert.Equal(t, core.CategoryTransfer, tx.Description)
	assert.Empty(t, tx.Account)
	assert.Equal(t, business, tx.Segment)

	_, err := BuildTransfer(TransferDraft{Date: core.NewDate(2025, 1, 1), Source: "Каспи",
		Destination: "Freedom", Amount: dec("-1"), Segment: business})
	assert.ErrorIs(t, err, core.ErrNegativeAmount)
}

func TestMalformedRowsContributeZero(t *testing.T) {
	log := []core.Transaction{
		income(1, "Каспи", "100", personal),
		{ID: 2, Kind: core.KindTransfer, SourceAccount: "Каспи", Amount: dec("50"), Segment: personal},
		{ID: 3, Kind: core.KindTransfer, SourceAccount: "Каспи", DestAccount: "Каспи", Amount: dec("50"), Segment: personal},
		{ID: 4, Kind: "unknown", Account: "Каспи", Amount: dec("50"), Segment: personal},
		{ID: 5, Kind: core.KindExpense, Account: "Каспи", Amount: dec("-50"), Segment: personal},
	}
	assert.Equal(t, "100", Balance(log, "Каспи", personal).String())
}

func TestCategoryBreakdown(t *testing.T) {
	log := []core.Transaction{
		expense(1, "Каспи", "100", personal),
		expense(2, "Халық", "50", personal),
		{ID: 3, Kind: core.KindExpense, Category: "Көлік", Account: "Каспи", Amount: dec("30"), Segment: personal},
		{ID: 4, Kind: core.KindExpense, Category: "Көлік", Account: "Каспи", Amount: dec("999"), Segment: business},
		{ID: 5, Kind: core.KindExpense, Category: core.CategoryTransfer, Account: "Каспи", Amount: dec("5"), Segment: personal},
		income(6, "Каспи", "1000", personal),
		transfer(t, "Каспи", "Халық", "200", personal),
	}
	got := CategoryBreakdown(log, personal)
	require.Len(t, got, 2)
	assert.Equal(t, "150", got["Тамақ"].String())
	assert.Equal(t, "30", got["Көлік"].String())
	_, ok := got["Жалақы"]
	assert.False(t, ok, "categories without expense rows are absent")

	shares := CategoryShares(got)
	require.Len(t, shares, 2)
	assert.Equal(t, "Тамақ", shares[0].Category)
	assert.InDelta(t, 83.33, shares[0].Percent, 0.001)
	assert.InDelta(t, 16.67, shares[1].Percent, 0.001)
}

func TestDebtRoundTripIsNetZero(t *testing.T) {
	for _, dir := range []core.Direction{core.LentByMe, core.BorrowedByMe} {
		t.Run(string(dir), func(t *testing.T) {
			log := []core.Transaction{income(1, "Каспи", "1000", personal)}
			before := Balances(log, accounts, personal)

			debt, mirror, err := BuildDebtCreation(DebtDraft{Date: core.NewDate(2025, 1, 5),
				Name: "Aman", Direction: dir, Account: "Каспи", Amount: dec("500"), Segment: personal})
			require.NoError(t, err)
			log = append(log, mirror)
			debts := []core.Debt{debt}

			closure, err := BuildDebtClosure(debt, time.Date(2025, 2, 1, 15, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			log = append(log, closure)
			debt.Status = core.StatusClosed
			debts[0] = debt

			after := Balances(log, accounts, personal)
			for i := range before {
				assert.True(t, after[i].Balance.Equal(before[i].Balance), after[i].Account)
			}
			assert.Equal(t, core.StatusClosed, debts[0].Status)
			p := DebtPosition(debts, personal)
			assert.True(t, p.OthersOweMe.IsZero())
			assert.True(t, p.IOwe.IsZero())
		})
	}
}

func TestDebtMirrorExample(t *testing.T) {
	debt, mirror, err := BuildDebtCreation(DebtDraft{Date: core.NewDate(2025, 1, 5),
		Name: " Aman ", Direction: core.LentByMe, Account: "Каспи", Amount: dec("500"), Segment: personal})
	require.NoError(t, err)

	assert.Equal(t, core.StatusOpen, debt.Status)
	assert.Equal(t, "Aman", debt.Name)
	assert.NotEmpty(t, debt.ID)
	assert.Equal(t, core.KindExpense, mirror.Kind)
	assert.Equal(t, core.CategoryDebt, mirror.Category)
	assert.Equal(t, "Каспи", mirror.Account)
	assert.Equal(t, "500", mirror.Amount.String())
	assert.Equal(t, debt.Date, mirror.Date)
	assert.Equal(t, debt.ID, mirror.DebtID)
	assert.Contains(t, mirror.Description, "Aman")
	assert.Equal(t, "-500", Balance([]core.Transaction{mirror}, "Каспи", personal).String())

	closedAt := time.Date(2025, 3, 9, 20, 30, 0, 0, time.UTC)
	closure, err := BuildDebtClosure(debt, closedAt)
	require.NoError(t, err)
	assert.Equal(t, core.KindIncome, closure.Kind)
	assert.Equal(t, core.CategoryDebtRepayment, closure.Category)
	assert.Equal(t, core.NewDate(2025, 3, 9), closure.Date, "closure is dated at closing time")
	assert.Equal(t, "500", closure.Amount.String())
	assert.Equal(t, "0", Balance([]core.Transaction{mirror, closure}, "Каспи", personal).String())
}

func TestBorrowedDebtMirrors(t *testing.T) {
	debt, mirror, err := BuildDebtCreation(DebtDraft{Date: core.NewDate(2025, 1, 5),
		Name: "Bank", Direction: core.BorrowedByMe, Account: "Freedom", Amount: dec("800"), Segment: business})
	require.NoError(t, err)
	assert.Equal(t, core.KindIncome, mirror.Kind)

	closure, err := BuildDebtClosure(debt, time.Now())
	require.NoError(t, err)
	assert.Equal(t, core.KindExpense, closure.Kind)
}

func TestBuildDebtClosureRejectsClosed(t *testing.T) {
	debt, _, err := BuildDebtCreation(DebtDraft{Date: core.NewDate(2025, 1, 5),
		Name: "Aman", Direction: core.LentByMe, Account: "Каспи", Amount: dec("1"), Segment: personal})
	require.NoError(t, err)
	debt.Status = core.StatusClosed

	_, err = BuildDebtClosure(debt, time.Now())
	assert.ErrorIs(t, err, core.ErrDebtNotOpen)
}

func TestBuildDebtCreationValidation(t *testing.T) {
	base := DebtDraft{Date: core.NewDate(2025, 1, 5), Name: "Aman", Direction: core.LentByMe,
		Account: "Каспи", Amount: dec("1"), Segment: personal}

	tests := []struct {
		name   string
		mutate func(*DebtDraft)
		want   error
	}{
		{"empty name", func(d *DebtDraft) { d.Name = "" }, core.ErrEmptyCounterparty},
		{"negative", func(d *DebtDraft) { d.Amount = dec("-3") }, core.ErrNegativeAmount},
		{"no account", func(d *DebtDraft) { d.Account = "" }, core.ErrEmptyAccount},
		{"no date", func(d *DebtDraft) { d.Date = core.Date{} }, core.ErrZeroDate},
		{"bad direction", func(d *DebtDraft) { d.Direction = "x" }, core.ErrValidation},
		{"long name", func(d *DebtDraft) { d.Name = strings.Repeat("Ә", 101) }, core.ErrNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.mutate(&d)
			_, _, err := BuildDebtCreation(d)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLongestNameFitsMirrorLabels(t *testing.T) {
	name := strings.Repeat("Ә", 100)
	for _, dir := range []core.Direction{core.LentByMe, core.BorrowedByMe} {
		debt, mirror, err := BuildDebtCreation(DebtDraft{Date: core.NewDate(2025, 1, 5), Name: name,
			Direction: dir, Account: "Каспи", Amount: dec("1"), Segment: personal})
		require.NoError(t, err)
		assert.NoError(t, mirror.Validate(), "opening mirror for %s", dir)

		closure, err := BuildDebtClosure(debt, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.NoError(t, closure.Validate(), "closing mirror for %s", dir)
	}
}

func TestBuildDebtCreationUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		d, _, err := BuildDebtCreation(DebtDraft{Date: core.NewDate(2025, 1, 5), Name: fmt.Sprint(i),
			Direction: core.LentByMe, Account: "Каспи", Amount: dec("1"), Segment: personal})
		require.NoError(t, err)
		require.False(t, seen[d.ID], "duplicate id %s", d.ID)
		seen[d.ID] = true
	}
}

func TestDebtPosition(t *testing.T) {
	debts := []core.Debt{
		{Direction: core.LentByMe, Status: core.StatusOpen, Amount: dec("100"), Segment: personal},
		{Direction: core.LentByMe, Status: core.StatusOpen, Amount: dec("50"), Segment: personal},
		{Direction: core.LentByMe, Status: core.StatusClosed, Amount: dec("1000"), Segment: personal},
		{Direction: core.BorrowedByMe, Status: core.StatusOpen, Amount: dec("70"), Segment: personal},
		{Direction: core.BorrowedByMe, Status: core.StatusOpen, Amount: dec("9"), Segment: business},
	}
	p := DebtPosition(debts, personal)
	assert.Equal(t, "150", p.OthersOweMe.String())
	assert.Equal(t, "70", p.IOwe.String())

	b := DebtPosition(debts, business)
	assert.True(t, b.OthersOweMe.IsZero())
	assert.Equal(t, "9", b.IOwe.String())

	assert.Len(t, OpenDebts(debts), 4)
}

func TestHistoryAndLatest(t *testing.T) {
	a := expense(1, "Каспи", "1", personal)
	b := expense(2, "Каспи", "2", personal)
	b.Date = core.NewDate(2025, 2, 1)
	c := expense(3, "Каспи", "3", personal)
	d := expense(4, "Каспи", "4", business)

	h := History([]core.Transaction{a, b, c, d}, personal)
	require.Len(t, h, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{h[0].ID, h[1].ID, h[2].ID})

	latest, ok := Latest([]core.Transaction{a, b, c, d}, personal)
	require.True(t, ok)
	assert.Equal(t, int64(3), latest.ID)

	_, ok = Latest(nil, personal)
	assert.False(t, ok)
}

package google

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"qarzhy/internal/core"

	"github.com/shopspring/decimal"
)

// fakeValues emulates a spreadsheet as rows per sheet name.
type fakeValues struct {
	sheets map[string][][]any
	calls  []string
	err    error
}

func newFakeValues() *fakeValues {
	return &fakeValues{sheets: map[string][][]any{}}
}

func splitRange(rng string) (sheet string, row int) {
	sheet, cells, _ := strings.Cut(rng, "!")
	start, _, _ := strings.Cut(cells, ":")
	row, _ = strconv.Atoi(strings.TrimLeft(start, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	return sheet, row
}

func (f *fakeValues) get(_ context.Context, rng string) ([][]any, error) {
	f.calls = append(f.calls, "get "+rng)
	if f.err != nil {
		return nil, f.err
	}
	sheet, _ := splitRange(rng)
	return f.sheets[sheet], nil
}

func (f *fakeValues) update(_ context.Context, rng string, rows [][]any) error {
	f.calls = append(f.calls, "update "+rng)
	sheet, row := splitRange(rng)
	for len(f.sheets[sheet]) < row {
		f.sheets[sheet] = append(f.sheets[sheet], []any{})
	}
	f.sheets[sheet][row-1] = rows[0]
	return nil
}

// append follows the API's table rule: rows go in right after the last
// non-empty row, pushing any cleared rows below them down.
func (f *fakeValues) append(_ context.Context, rng string, rows [][]any) (string, error) {
	f.calls = append(f.calls, "append "+rng)
	sheet, _ := splitRange(rng)
	at := 0
	for i, row := range f.sheets[sheet] {
		if len(row) > 0 {
			at = i + 1
		}
	}
	f.sheets[sheet] = slices.Insert(f.sheets[sheet], at, rows...)
	return fmt.Sprintf("%s!A%d:K%d", sheet, at+1, at+len(rows)), nil
}

func idRows(rows [][]any, id string) int {
	n := 0
	for _, row := range rows {
		if len(row) > 0 && row[0] == id {
			n++
		}
	}
	return n
}

func (f *fakeValues) clear(_ context.Context, rng string) error {
	f.calls = append(f.calls, "clear "+rng)
	sheet, row := splitRange(rng)
	f.sheets[sheet][row-1] = []any{}
	return nil
}

func sampleTx(id int64, amount string) core.Transaction {
	return core.Transaction{
		ID:       id,
		Date:     core.NewDate(2024, 3, 1),
		Kind:     core.KindExpense,
		Category: "Тамақ",
		Account:  "Каспи",
		Amount:   decimal.RequireFromString(amount),
		Segment:  "Business",
	}
}

func TestNewClient_MissingSpreadsheetID(t *testing.T) {
	_, err := NewClient(context.Background(), Options{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_UpsertTransaction(t *testing.T) {
	ctx := context.Background()
	fv := newFakeValues()
	c := newClient(fv, Options{})

	if err := c.UpsertTransaction(ctx, sampleTx(1, "100")); err != nil {
		t.Fatalf("UpsertTransaction: %v", err)
	}
	if err := c.UpsertTransaction(ctx, sampleTx(2, "200")); err != nil {
		t.Fatalf("UpsertTransaction: %v", err)
	}
	// same id again rewrites in place
	if err := c.UpsertTransaction(ctx, sampleTx(1, "150")); err != nil {
		t.Fatalf("UpsertTransaction: %v", err)
	}

	rows := fv.sheets["Transactions"]
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "ID" {
		t.Errorf("missing header, got %v", rows[0])
	}
	if rows[1][0] != "1" || rows[1][8] != 150.0 {
		t.Errorf("row 2 = %v, want id 1 amount 150", rows[1])
	}
	if last := fv.calls[len(fv.calls)-1]; last != "update Transactions!A2:K2" {
		t.Errorf("last call = %q", last)
	}
}

func TestClient_RemoveTransaction(t *testing.T) {
	ctx := context.Background()
	fv := newFakeValues()
	c := newClient(fv, Options{TransactionsSheet: "Ledger"})

	if err := c.UpsertTransaction(ctx, sampleTx(7, "1")); err != nil {
		t.Fatalf("UpsertTransaction: %v", err)
	}
	if err := c.RemoveTransaction(ctx, 7); err != nil {
		t.Fatalf("RemoveTransaction: %v", err)
	}
	if got := fv.sheets["Ledger"][1]; len(got) != 0 {
		t.Errorf("row not cleared: %v", got)
	}

	before := len(fv.calls)
	if err := c.RemoveTransaction(ctx, 99); err != nil {
		t.Fatalf("RemoveTransaction unknown: %v", err)
	}
	for _, call := range fv.calls[before:] {
		if strings.HasPrefix(call, "clear") {
			t.Errorf("unknown id should not clear anything, got %q", call)
		}
	}
}

func TestClient_UpsertDebt(t *testing.T) {
	ctx := context.Background()
	fv := newFakeValues()
	c := newClient(fv, Options{})
	d := core.Debt{
		ID:        "d-1",
		Date:      core.NewDate(2024, 3, 1),
		Name:      "Асқар",
		Direction: core.LentByMe,
		Account:   "Каспи",
		Amount:    decimal.NewFromInt(2000),
		Status:    core.StatusOpen,
		Segment:   "Business",
	}
	if err := c.UpsertDebt(ctx, d); err != nil {
		t.Fatalf("UpsertDebt: %v", err)
	}
	d.Status = core.StatusClosed
	d.ClosedAt = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := c.UpsertDebt(ctx, d); err != nil {
		t.Fatalf("UpsertDebt closed: %v", err)
	}

	rows := fv.sheets["Debts"]
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[1][7] != "closed" || rows[1][8] != "2024-03-10T12:00:00Z" {
		t.Errorf("debt row = %v", rows[1])
	}
}

func TestClient_ReadError(t *testing.T) {
	fv := newFakeValues()
	fv.err = errors.New("quota exceeded")
	c := newClient(fv, Options{})
	err := c.UpsertTransaction(context.Background(), sampleTx(1, "1"))
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_RejectsMissingIDs(t *testing.T) {
	c := newClient(newFakeValues(), Options{})
	if err := c.UpsertTransaction(context.Background(), sampleTx(0, "1")); err == nil {
		t.Error("expected error for transaction without id")
	}
	if err := c.UpsertDebt(context.Background(), core.Debt{}); err == nil {
		t.Error("expected error for debt without id")
	}
}

func TestLastColumn(t *testing.T) {
	if got := lastColumn(transactionHeader); got != "K" {
		t.Errorf("transactions last column = %q", got)
	}
	if got := lastColumn(debtHeader); got != "I" {
		t.Errorf("debts last column = %q", got)
	}
}

func TestClient_IndexCacheSavesReads(t *testing.T) {
	ctx := context.Background()
	fv := newFakeValues()
	c := newClient(fv, Options{})

	for _, tx := range []core.Transaction{sampleTx(1, "1"), sampleTx(2, "2"), sampleTx(1, "3")} {
		if err := c.UpsertTransaction(ctx, tx); err != nil {
			t.Fatalf("UpsertTransaction: %v", err)
		}
	}
	if err := c.RemoveTransaction(ctx, 2); err != nil {
		t.Fatalf("RemoveTransaction: %v", err)
	}

	gets := 0
	for _, call := range fv.calls {
		if strings.HasPrefix(call, "get ") {
			gets++
		}
	}
	if gets != 1 {
		t.Errorf("id column read %d times, want 1 (calls: %v)", gets, fv.calls)
	}
	if got := fv.sheets["Transactions"][2]; len(got) != 0 {
		t.Errorf("row of id 2 not cleared: %v", got)
	}
	if got := fv.sheets["Transactions"][1]; got[0] != "1" || got[8] != 3.0 {
		t.Errorf("row of id 1 = %v", got)
	}
}

func TestClient_IndexCacheExpires(t *testing.T) {
	ctx := context.Background()
	fv := newFakeValues()
	c := newClient(fv, Options{IndexTTL: time.Nanosecond})

	if err := c.UpsertTransaction(ctx, sampleTx(1, "1")); err != nil {
		t.Fatalf("UpsertTransaction: %v", err)
	}
	// someone edits the sheet by hand
	fv.sheets["Transactions"] = append(fv.sheets["Transactions"], []any{"5"})
	time.Sleep(time.Millisecond)

	if err := c.UpsertTransaction(ctx, sampleTx(5, "9")); err != nil {
		t.Fatalf("UpsertTransaction: %v", err)
	}
	if rows := fv.sheets["Transactions"]; len(rows) != 3 {
		t.Errorf("rows = %d, want the hand-added row rewritten in place", len(rows))
	}
}

func TestClient_AppendAfterClearedLastRow(t *testing.T) {
	ctx := context.Background()
	fv := newFakeValues()
	c := newClient(fv, Options{})

	steps := []func() error{
		func() error { return c.UpsertTransaction(ctx, sampleTx(1, "10")) },
		func() error { return c.UpsertTransaction(ctx, sampleTx(2, "20")) },
		func() error { return c.RemoveTransaction(ctx, 2) },
		func() error { return c.UpsertTransaction(ctx, sampleTx(3, "30")) },
		func() error { return c.UpsertTransaction(ctx, sampleTx(3, "35")) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}

	rows := fv.sheets["Transactions"]
	if n := idRows(rows, "3"); n != 1 {
		t.Fatalf("id 3 appears in %d rows, want 1: %v", n, rows)
	}
	if rows[2][0] != "3" || rows[2][8] != 35.0 {
		t.Errorf("row 3 = %v, want id 3 amount 35", rows[2])
	}
	ids, err := c.TransactionIDs(ctx)
	if err != nil || len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("TransactionIDs = %v, %v", ids, err)
	}
}

func TestClient_ConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	fv := newFakeValues()
	c := newClient(fv, Options{})

	// the event consumer and the resync ticker export the same rows
	var wg sync.WaitGroup
	errs := make(chan error, 2*10)
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := int64(1); id <= 10; id++ {
				errs <- c.UpsertTransaction(ctx, sampleTx(id, "1"))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("UpsertTransaction: %v", err)
		}
	}

	rows := fv.sheets["Transactions"]
	if len(rows) != 11 {
		t.Fatalf("rows = %d, want header + 10", len(rows))
	}
	for id := 1; id <= 10; id++ {
		if n := idRows(rows, strconv.Itoa(id)); n != 1 {
			t.Errorf("id %d appears in %d rows, want 1", id, n)
		}
	}
}

func TestClient_TextCellsAreLiteral(t *testing.T) {
	ctx := context.Background()
	fv := newFakeValues()
	c := newClient(fv, Options{})

	tx := sampleTx(1, "5")
	tx.Description = "=HYPERLINK(\"http://x\")"
	if err := c.UpsertTransaction(ctx, tx); err != nil {
		t.Fatalf("UpsertTransaction: %v", err)
	}
	if got := fv.sheets["Transactions"][1][9]; got != "'=HYPERLINK(\"http://x\")" {
		t.Errorf("description cell = %v", got)
	}
	if got := fv.sheets["Transactions"][1][4]; got != "Тамақ" {
		t.Errorf("plain text changed: %v", got)
	}
}

func TestRangeStartRow(t *testing.T) {
	tests := map[string]int{
		"Transactions!A7:K7": 7,
		"'My Sheet'!A12:K12": 12,
		"Debts!$A$3":         3,
		"":                   0,
		"Transactions!A:K":   0,
	}
	for rng, want := range tests {
		if got := rangeStartRow(rng); got != want {
			t.Errorf("rangeStartRow(%q) = %d, want %d", rng, got, want)
		}
	}
}

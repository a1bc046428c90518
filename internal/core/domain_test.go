package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2025, 3, 8))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2025-03-08"` {
		t.Fatalf("unexpected json %s", b)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2024-12-31"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2024, 12, 31).Time) {
		t.Fatalf("unexpected date %v", d)
	}
	if err := json.Unmarshal([]byte(`"31.12.2024"`), &d); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:     NewDate(2025, 1, 1),
		Kind:     KindExpense,
		Category: "Тамақ",
		Account:  "Каспи",
		Amount:   decimal.NewFromInt(100),
		Segment:  "Personal",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	transfer := Transaction{
		Date:          NewDate(2025, 1, 1),
		Kind:          KindTransfer,
		SourceAccount: "Каспи",
		DestAccount:   "Халық",
		Amount:        decimal.NewFromInt(1),
		Segment:       "Personal",
	}
	if err := transfer.Validate(); err != nil {
		t.Fatalf("expected ok transfer, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"zero date", func(tx *Transaction) { tx.Date = Date{} }, ErrZeroDate},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-1) }, ErrNegativeAmount},
		{"missing account", func(tx *Transaction) { tx.Account = "" }, ErrEmptyAccount},
		{"missing segment", func(tx *Transaction) { tx.Segment = "" }, ErrEmptySegment},
		{"unknown kind", func(tx *Transaction) { tx.Kind = "gift" }, ErrValidation},
		{"legs on income", func(tx *Transaction) { tx.Kind = KindIncome; tx.DestAccount = "Халық" }, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := good
			tt.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	same := transfer
	same.DestAccount = same.SourceAccount
	if err := same.Validate(); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	if same.IsTransferLeg() {
		t.Fatal("same-account transfer must not count as a transfer leg")
	}
}

func TestDebtValidate(t *testing.T) {
	d := Debt{
		ID:        "x",
		Date:      NewDate(2025, 2, 1),
		Name:      "Aman",
		Direction: LentByMe,
		Account:   "Каспи",
		Amount:    decimal.NewFromInt(500),
		Status:    StatusOpen,
		Segment:   "Personal",
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	d.Name = "  "
	if err := d.Validate(); !errors.Is(err, ErrEmptyCounterparty) {
		t.Fatalf("expected ErrEmptyCounterparty, got %v", err)
	}
	d.Name = "Aman"
	d.Direction = "sideways"
	if err := d.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

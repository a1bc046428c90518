package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	KindExpense  Kind = "expense"
	KindIncome   Kind = "income"
	KindTransfer Kind = "transfer"
)

const (
	LentByMe     Direction = "lent_by_me"
	BorrowedByMe Direction = "borrowed_by_me"
)

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Fixed category markers. Transfers and debt mirrors never carry a user category.
const (
	CategoryTransfer      = "Аударым"
	CategoryDebt          = "Қарыз"
	CategoryDebtRepayment = "Қарыз қайтару"
)

const DateLayout = "2006-01-02"

const maxDescriptionLen = 200

// maxNameLen leaves room for the mirror labels built around the name.
const maxNameLen = 100

type (
	Kind      string
	Direction string
	Status    string

	// Segment is a business-unit partition such as "Business" or "Personal".
	Segment string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID       int64  `json:"id"`
		Date     Date   `json:"date"`
		Kind     Kind   `json:"kind"`
		Category string `json:"category"`
		// Account is set for expense and income rows only.
		Account string `json:"account,omitempty"`
		// SourceAccount and DestAccount are set for transfer rows only.
		SourceAccount string          `json:"source_account,omitempty"`
		DestAccount   string          `json:"dest_account,omitempty"`
		Amount        decimal.Decimal `json:"amount"`
		Description   string          `json:"description"`
		Segment       Segment         `json:"segment"`
		// DebtID links a mirror row to the debt it mirrors.
		DebtID string `json:"debt_id,omitempty"`
	}

	Debt struct {
		ID        string          `json:"id"`
		Date      Date            `json:"date"`
		Name      string          `json:"name"` // counterparty
		Direction Direction       `json:"direction"`
		Account   string          `json:"account"`
		Amount    decimal.Decimal `json:"amount"`
		Status    Status          `json:"status"`
		Segment   Segment         `json:"segment"`
		ClosedAt  time.Time       `json:"closed_at"`
	}
)

func (k Kind) IsValid() bool {
	switch k {
	case KindExpense, KindIncome, KindTransfer:
		return true
	}
	return false
}

func (d Direction) IsValid() bool {
	return d == LentByMe || d == BorrowedByMe
}

func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusClosed
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsTransferLeg reports whether the row is a well-formed transfer.
func (t Transaction) IsTransferLeg() bool {
	return t.Kind == KindTransfer &&
		t.SourceAccount != "" && t.DestAccount != "" &&
		t.SourceAccount != t.DestAccount
}

// IsMirror reports whether the row was generated for a debt.
func (t Transaction) IsMirror() bool {
	return t.DebtID != ""
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, t.Kind)
	}
	if err := validateAmount(t.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(string(t.Segment)) == "" {
		return ErrEmptySegment
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}

	switch t.Kind {
	case KindTransfer:
		if strings.TrimSpace(t.SourceAccount) == "" || strings.TrimSpace(t.DestAccount) == "" {
			return ErrEmptyAccount
		}
		if t.SourceAccount == t.DestAccount {
			return ErrSameAccount
		}
		if t.Account != "" {
			return fmt.Errorf("%w: transfer must not set a single account", ErrValidation)
		}
	default:
		if strings.TrimSpace(t.Account) == "" {
			return ErrEmptyAccount
		}
		if t.SourceAccount != "" || t.DestAccount != "" {
			return fmt.Errorf("%w: %s must not set transfer legs", ErrValidation, t.Kind)
		}
	}
	return nil
}

func (d Debt) IsOpen() bool {
	return d.Status == StatusOpen
}

func (d Debt) Validate() error {
	if err := d.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyCounterparty
	}
	if utf8.RuneCountInString(d.Name) > maxNameLen {
		return ErrNameTooLong
	}
	if !d.Direction.IsValid() {
		return fmt.Errorf("%w: unknown debt direction %q", ErrValidation, d.Direction)
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("%w: unknown debt status %q", ErrValidation, d.Status)
	}
	if strings.TrimSpace(d.Account) == "" {
		return ErrEmptyAccount
	}
	if strings.TrimSpace(string(d.Segment)) == "" {
		return ErrEmptySegment
	}
	return validateAmount(d.Amount)
}

func validateAmount(a decimal.Decimal) error {
	if a.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the store, the service and the transports.
var (
	ErrValidation       = errors.New("validation rejected")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Validation failures. All of them match ErrValidation with errors.Is.
var (
	ErrZeroDate           = fmt.Errorf("%w: date cannot be zero", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrNegativeAmount     = fmt.Errorf("%w: amount must not be negative", ErrValidation)
	ErrEmptyAccount       = fmt.Errorf("%w: empty account", ErrValidation)
	ErrSameAccount        = fmt.Errorf("%w: source and destination accounts are the same", ErrValidation)
	ErrUnknownAccount     = fmt.Errorf("%w: unknown account", ErrValidation)
	ErrEmptySegment       = fmt.Errorf("%w: empty segment", ErrValidation)
	ErrUnknownSegment     = fmt.Errorf("%w: unknown segment", ErrValidation)
	ErrEmptyCategory      = fmt.Errorf("%w: empty category", ErrValidation)
	ErrReservedCategory   = fmt.Errorf("%w: category is reserved for transfers and debts", ErrValidation)
	ErrEmptyCounterparty  = fmt.Errorf("%w: empty counterparty name", ErrValidation)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	ErrNameTooLong        = fmt.Errorf("%w: counterparty name too long (max 100 characters)", ErrValidation)
	ErrDebtNotOpen        = fmt.Errorf("%w: debt is not open", ErrValidation)
)

// IsValidation reports whether err was rejected before reaching the store.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

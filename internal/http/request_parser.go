package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"qarzhy/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 64 << 10

// errBadRequest marks bodies that are not well-formed JSON requests.
var errBadRequest = errors.New("bad request")

// Amount accepts both "1 500,50" strings and bare JSON numbers.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return core.ErrInvalidAmount
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = s
	}
	d, err := core.ParseAmount(raw)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

type entryRequest struct {
	Date        core.Date `json:"date"`
	Category    string    `json:"category"`
	Account     string    `json:"account"`
	Amount      *Amount   `json:"amount"`
	Description string    `json:"description"`
}

type transferRequest struct {
	Date        core.Date `json:"date"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Amount      *Amount   `json:"amount"`
}

type debtRequest struct {
	Date      core.Date      `json:"date"`
	Name      string         `json:"name"`
	Direction core.Direction `json:"direction"`
	Account   string         `json:"account"`
	Amount    *Amount        `json:"amount"`
}

// decodeJSON reads one JSON object into v. Unknown fields are rejected.
// Validation errors raised while decoding (amount, date) are passed
// through so they map to 422.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errBadRequest)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if core.IsValidation(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

func requireAmount(a *Amount) (decimal.Decimal, error) {
	if a == nil {
		return decimal.Zero, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}
	return a.Decimal, nil
}

func segmentParam(r *http.Request) core.Segment {
	return core.Segment(strings.TrimSpace(chi.URLParam(r, "segment")))
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: transaction id must be a positive integer", errBadRequest)
	}
	return id, nil
}

func debtIDParam(r *http.Request) string {
	return sanitizeInput(chi.URLParam(r, "id"))
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qarzhy/internal/config"
	"qarzhy/internal/core"
	"qarzhy/internal/log"
	"qarzhy/internal/services"
	"qarzhy/internal/storage/memory"
)

type downStore struct{ *memory.Store }

func (downStore) Ping(context.Context) error {
	return fmt.Errorf("ping: %w: database is locked", core.ErrStoreUnavailable)
}

func (downStore) ListTransactions(context.Context) ([]core.Transaction, error) {
	return nil, fmt.Errorf("list: %w: database is locked", core.ErrStoreUnavailable)
}

func newTestServer(t *testing.T, store services.Store, rateLimit int) *Server {
	t.Helper()
	svc := services.NewLedgerService(store, nil, config.DefaultChart())
	logger := log.New(log.Config{Output: io.Discard})
	srv := NewServer(":0", svc, Options{WriteRateLimit: rateLimit, Logger: logger})
	t.Cleanup(func() { srv.rateLimiter.Stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, memory.New(), 60)
	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/api/chart"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	down := newTestServer(t, downStore{memory.New()}, 60)
	if rr := do(t, down, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with a down store status=%d", rr.Code)
	}
}

func TestCreateExpenseAndOverview(t *testing.T) {
	srv := newTestServer(t, memory.New(), 60)

	rr := do(t, srv, http.MethodPost, "/api/segments/Business/incomes",
		`{"date":"2024-03-01","category":"Жалақы","account":"Каспи","amount":"1 000"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("income status=%d body=%s", rr.Code, rr.Body)
	}

	rr = do(t, srv, http.MethodPost, "/api/segments/Business/expenses",
		`{"date":"2024-03-02","category":"Тамақ","account":"Каспи","amount":250.5,"description":"обед"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expense status=%d body=%s", rr.Code, rr.Body)
	}
	tx := decode[core.Transaction](t, rr)
	if tx.ID == 0 || tx.Kind != core.KindExpense || tx.Date.String() != "2024-03-02" {
		t.Errorf("unexpected transaction %+v", tx)
	}

	rr = do(t, srv, http.MethodGet, "/api/segments/Business/overview", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("overview status=%d", rr.Code)
	}
	o := decode[services.Overview](t, rr)
	if o.Total.String() != "749.5" {
		t.Errorf("total = %s, want 749.5", o.Total)
	}
	if len(o.History) != 2 || o.History[0].ID != tx.ID {
		t.Errorf("history = %+v", o.History)
	}
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t, memory.New(), 60)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown segment", "/api/segments/Other/expenses", `{"category":"Тамақ","account":"Каспи","amount":"1"}`, http.StatusUnprocessableEntity},
		{"unknown account", "/api/segments/Business/expenses", `{"category":"Тамақ","account":"Jusan","amount":"1"}`, http.StatusUnprocessableEntity},
		{"negative amount", "/api/segments/Business/expenses", `{"category":"Тамақ","account":"Каспи","amount":"-5"}`, http.StatusUnprocessableEntity},
		{"garbage amount", "/api/segments/Business/expenses", `{"category":"Тамақ","account":"Каспи","amount":"abc"}`, http.StatusUnprocessableEntity},
		{"missing amount", "/api/segments/Business/expenses", `{"category":"Тамақ","account":"Каспи"}`, http.StatusUnprocessableEntity},
		{"bad date", "/api/segments/Business/expenses", `{"date":"01.03.2024","category":"Тамақ","account":"Каспи","amount":"1"}`, http.StatusUnprocessableEntity},
		{"same account transfer", "/api/segments/Business/transfers", `{"source":"Каспи","destination":"Каспи","amount":"100"}`, http.StatusUnprocessableEntity},
		{"bad debt direction", "/api/segments/Business/debts", `{"name":"A","direction":"sideways","account":"Каспи","amount":"1"}`, http.StatusUnprocessableEntity},
		{"malformed json", "/api/segments/Business/expenses", `{"category":`, http.StatusBadRequest},
		{"unknown field", "/api/segments/Business/expenses", `{"category":"Тамақ","account":"Каспи","amount":"1","tip":2}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
			body := decode[errorBody](t, rr)
			if body.Error.Message == "" {
				t.Error("error message should not be empty")
			}
		})
	}
}

func TestWrongContentType(t *testing.T) {
	srv := newTestServer(t, memory.New(), 60)
	req := httptest.NewRequest(http.MethodPost, "/api/segments/Business/expenses", strings.NewReader("amount=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d, want 415", rr.Code)
	}
}

func TestDebtOpenAndClose(t *testing.T) {
	srv := newTestServer(t, memory.New(), 60)

	rr := do(t, srv, http.MethodPost, "/api/segments/Personal/debts",
		`{"date":"2024-03-01","name":"Асқар","direction":"lent_by_me","account":"Халық","amount":"2000"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("open status=%d body=%s", rr.Code, rr.Body)
	}
	opened := decode[services.DebtResult](t, rr)
	if opened.Debt.ID == "" || opened.Mirror.DebtID != opened.Debt.ID {
		t.Fatalf("unexpected open result %+v", opened)
	}

	closePath := "/api/debts/" + opened.Debt.ID + "/close"
	rr = do(t, srv, http.MethodPost, closePath, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("close status=%d body=%s", rr.Code, rr.Body)
	}
	if res := decode[services.CloseResult](t, rr); !res.Closed {
		t.Fatalf("debt not closed: %+v", res)
	}

	rr = do(t, srv, http.MethodPost, closePath, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("second close status=%d", rr.Code)
	}
	if res := decode[services.CloseResult](t, rr); res.Closed {
		t.Fatal("second close must be a no-op")
	}

	rr = do(t, srv, http.MethodGet, "/api/dashboard", "")
	d := decode[services.Dashboard](t, rr)
	if len(d.OpenDebts) != 0 {
		t.Errorf("open debts = %+v", d.OpenDebts)
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv := newTestServer(t, memory.New(), 60)
	rr := do(t, srv, http.MethodPost, "/api/segments/Business/transfers",
		`{"source":"Халық","destination":"Халық Инвест","amount":"100"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("transfer status=%d body=%s", rr.Code, rr.Body)
	}
	tx := decode[core.Transaction](t, rr)

	path := fmt.Sprintf("/api/transactions/%d", tx.ID)
	rr = do(t, srv, http.MethodDelete, path, "")
	if rr.Code != http.StatusOK || !decode[services.DeleteResult](t, rr).Deleted {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body)
	}
	rr = do(t, srv, http.MethodDelete, path, "")
	if rr.Code != http.StatusOK || decode[services.DeleteResult](t, rr).Deleted {
		t.Fatalf("second delete status=%d body=%s", rr.Code, rr.Body)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/transactions/abc", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", rr.Code)
	}
}

func TestStoreUnavailable(t *testing.T) {
	srv := newTestServer(t, downStore{memory.New()}, 60)
	rr := do(t, srv, http.MethodGet, "/api/segments/Business/overview", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "database is locked") {
		t.Error("store details must not leak to clients")
	}
}

func TestWriteRateLimit(t *testing.T) {
	srv := newTestServer(t, memory.New(), 2)
	body := `{"category":"Тамақ","account":"Каспи","amount":"1"}`
	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/api/segments/Business/expenses", body); rr.Code != http.StatusCreated {
			t.Fatalf("request %d status=%d", i+1, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/api/segments/Business/expenses", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}
	// reads are not limited
	if rr := do(t, srv, http.MethodGet, "/api/segments/Business/overview", ""); rr.Code != http.StatusOK {
		t.Fatalf("overview status=%d", rr.Code)
	}
}

func TestAmountUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{`"1 500,50"`, "1500.5", nil},
		{`42`, "42", nil},
		{`"0"`, "0", nil},
		{`"-1"`, "", core.ErrNegativeAmount},
		{`null`, "", core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		var a Amount
		err := a.UnmarshalJSON([]byte(tt.in))
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s: err = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || a.String() != tt.want {
			t.Errorf("%s: got %s, %v", tt.in, a.String(), err)
		}
	}
}

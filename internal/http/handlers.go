package http

import (
	"context"
	"net/http"
	"time"

	"qarzhy/internal/core"
	"qarzhy/internal/log"
	"qarzhy/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks that the store answers
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients()},
	}
	status, code := "ready", http.StatusOK
	if err := s.ledger.Ready(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Chart())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.ledger.Dashboard(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.ledger.Overview(r.Context(), segmentParam(r))
	if err != nil {
		s.writeServiceError(w, r, "overview", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleEntry(kind core.Kind) http.HandlerFunc {
	op := log.OpAddExpense
	add := s.ledger.AddExpense
	if kind == core.KindIncome {
		op = log.OpAddIncome
		add = s.ledger.AddIncome
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req entryRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeServiceError(w, r, op, err)
			return
		}
		amount, err := requireAmount(req.Amount)
		if err != nil {
			s.writeServiceError(w, r, op, err)
			return
		}

		tx, err := add(r.Context(), segmentParam(r), services.EntryInput{
			Date:        req.Date,
			Category:    sanitizeInput(req.Category),
			Account:     sanitizeInput(req.Account),
			Amount:      amount,
			Description: sanitizeInput(req.Description),
		})
		if err != nil {
			s.writeServiceError(w, r, op, err)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, log.OpAddTransfer, err)
		return
	}
	amount, err := requireAmount(req.Amount)
	if err != nil {
		s.writeServiceError(w, r, log.OpAddTransfer, err)
		return
	}

	tx, err := s.ledger.AddTransfer(r.Context(), segmentParam(r), services.TransferInput{
		Date:        req.Date,
		Source:      sanitizeInput(req.Source),
		Destination: sanitizeInput(req.Destination),
		Amount:      amount,
	})
	if err != nil {
		s.writeServiceError(w, r, log.OpAddTransfer, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleOpenDebt(w http.ResponseWriter, r *http.Request) {
	var req debtRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, log.OpOpenDebt, err)
		return
	}
	amount, err := requireAmount(req.Amount)
	if err != nil {
		s.writeServiceError(w, r, log.OpOpenDebt, err)
		return
	}

	res, err := s.ledger.OpenDebt(r.Context(), segmentParam(r), services.DebtInput{
		Date:      req.Date,
		Name:      sanitizeInput(req.Name),
		Direction: req.Direction,
		Account:   sanitizeInput(req.Account),
		Amount:    amount,
	})
	if err != nil {
		s.writeServiceError(w, r, log.OpOpenDebt, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleCloseDebt answers 200 whether or not anything changed; the body's
// "closed" field tells the two apart.
func (s *Server) handleCloseDebt(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.CloseDebt(r.Context(), debtIDParam(r))
	if err != nil {
		s.writeServiceError(w, r, log.OpCloseDebt, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeServiceError(w, r, log.OpDelete, err)
		return
	}
	res, err := s.ledger.DeleteTransaction(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

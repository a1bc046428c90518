package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"qarzhy/internal/core"
	"qarzhy/internal/log"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: msg, Type: errorType(status)}})
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnprocessableEntity:
		return "validation"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return "store_unavailable"
	default:
		return "error"
	}
}

// writeServiceError maps the error taxonomy onto status codes. Store
// failures are logged with detail and reported without it.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case core.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrStoreUnavailable):
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Ledger store unavailable",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		writeError(w, http.StatusServiceUnavailable, "ledger store unavailable, try again later")
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Unexpected ledger error",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

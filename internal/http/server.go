// Package http exposes the ledger as a JSON API over chi.
package http

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"qarzhy/internal/config"
	"qarzhy/internal/core"
	"qarzhy/internal/log"
	"qarzhy/internal/metrics"
	"qarzhy/internal/middleware/ratelimit"
	"qarzhy/internal/middleware/security"
	"qarzhy/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ledger is what the handlers need from the service layer.
type Ledger interface {
	AddExpense(ctx context.Context, segment core.Segment, in services.EntryInput) (core.Transaction, error)
	AddIncome(ctx context.Context, segment core.Segment, in services.EntryInput) (core.Transaction, error)
	AddTransfer(ctx context.Context, segment core.Segment, in services.TransferInput) (core.Transaction, error)
	OpenDebt(ctx context.Context, segment core.Segment, in services.DebtInput) (services.DebtResult, error)
	CloseDebt(ctx context.Context, debtID string) (services.CloseResult, error)
	DeleteTransaction(ctx context.Context, id int64) (services.DeleteResult, error)
	Overview(ctx context.Context, segment core.Segment) (services.Overview, error)
	Dashboard(ctx context.Context) (services.Dashboard, error)
	Chart() config.Chart
	Ready(ctx context.Context) error
}

type Options struct {
	WriteRateLimit int
	Logger         *log.Logger
}

type Server struct {
	http.Server
	ledger      Ledger
	rateLimiter *ratelimit.Limiter
	logger      *log.Logger
	startedAt   time.Time
}

// NewServer wires the router. Write routes share one per-client rate limiter.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		ledger:      ledger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.WriteRateLimit}),
		logger:      logger.WithComponent(log.ComponentHTTP),
		startedAt:   time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/chart", s.handleChart)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/segments/{segment}/overview", s.handleOverview)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimiter.Middleware(clientIP, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			}))
			r.Use(middleware.AllowContentType("application/json"))

			r.Post("/segments/{segment}/expenses", s.handleEntry(core.KindExpense))
			r.Post("/segments/{segment}/incomes", s.handleEntry(core.KindIncome))
			r.Post("/segments/{segment}/transfers", s.handleTransfer)
			r.Post("/segments/{segment}/debts", s.handleOpenDebt)
			r.Post("/debts/{id}/close", s.handleCloseDebt)
			r.Delete("/transactions/{id}", s.handleDelete)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the listener and the rate limiter cleanup
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}

// requestMetrics counts requests by route pattern so path ids do not
// explode the label set.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	})
}

// clientIP returns the address middleware.RealIP left in RemoteAddr
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

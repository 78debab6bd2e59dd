package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budget/internal/ledger"
	applog "budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
)

type Server struct {
	http.Server
	ledger      *ledger.Ledger
	logger      *applog.Logger
	ready       func(context.Context) error
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithReadiness sets the check behind /readyz, typically the backend's
// Ready function.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) {
		if check != nil {
			s.ready = check
		}
	}
}

func WithLogger(logger *applog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRateLimit overrides the per-client limit on mutating requests.
func WithRateLimit(requestsPerMinute int) Option {
	return func(s *Server) {
		cfg := ratelimit.DefaultConfig()
		cfg.RequestsPerMinute = requestsPerMinute
		s.rateLimiter.Stop()
		s.rateLimiter = ratelimit.NewLimiter(cfg)
	}
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Call Shutdown to stop it and its background routines.
func NewServer(addr string, l *ledger.Ledger, opts ...Option) *Server {
	s := &Server{
		ledger:      l,
		logger:      applog.New(applog.DefaultConfig()),
		ready:       func(context.Context) error { return nil },
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:    security.NewDetector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleAddExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("POST /api/ledger/save", s.handleSave)
	mux.HandleFunc("POST /api/ledger/reload", s.handleReload)
	mux.HandleFunc("GET /api/export.xlsx", s.handleExportXLSX)

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r))
		TooManyRequestsError().Write(w)
	})(mux)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(s.detector.Middleware(headers.Middleware(limited))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

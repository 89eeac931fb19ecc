package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gagyebu/internal/auth"
	"gagyebu/internal/log"
	"gagyebu/internal/services"
)

type requestIDKey struct{}

// appMetrics are process-lifetime counters exposed on /metrics.
type appMetrics struct {
	requests int64
	writes   int64
	uptime   time.Time
}

type Server struct {
	http.Server
	ledger   *services.LedgerService
	accounts *services.AccountService
	issuer   *auth.Issuer
	logger   *log.Logger
	ready    func(context.Context) error
	now      func() time.Time
	limiter  *rateLimiter

	securityMetrics securityMetrics
	appMetrics      appMetrics

	shutdownOnce sync.Once
}

// Option configures optional server behaviour.
type Option func(*Server)

// WithReadiness sets the dependency check behind /readyz.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

// WithWriteLimit sets how many POST/DELETE requests a client IP may make per minute.
func WithWriteLimit(perMinute int) Option {
	return func(s *Server) {
		s.limiter.stop()
		s.limiter = newRateLimiter(perMinute)
	}
}

// WithAccounts enables POST /api/signup and POST /api/login.
func WithAccounts(a *services.AccountService) Option {
	return func(s *Server) { s.accounts = a }
}

// WithClock replaces the clock used for default periods.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, ledger *services.LedgerService, issuer *auth.Issuer, logger *log.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:     ledger,
		issuer:     issuer,
		logger:     logger.WithComponent(log.ComponentHTTP),
		now:        time.Now,
		limiter:    newRateLimiter(defaultWritesPerMinute),
		appMetrics: appMetrics{uptime: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	if s.accounts != nil {
		mux.Handle("POST /api/signup", s.withSecurityHeaders(http.HandlerFunc(s.handleSignup)))
		mux.Handle("POST /api/login", s.withSecurityHeaders(http.HandlerFunc(s.handleLogin)))
	}

	mux.Handle("GET /api/categories", s.api(s.handleCategories))
	mux.Handle("GET /api/transactions", s.api(s.handleListTransactions))
	mux.Handle("POST /api/transactions", s.api(s.handleCreateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", s.api(s.handleDeleteTransaction))
	mux.Handle("GET /api/summary/monthly", s.api(s.handleMonthlySummary))
	mux.Handle("GET /api/summary/categories", s.api(s.handleCategorySummary))
	mux.Handle("GET /api/summary/yearly", s.api(s.handleYearlySummary))
	mux.Handle("GET /api/calendar", s.api(s.handleCalendar))
	mux.Handle("GET /api/overview", s.api(s.handleOverview))
	mux.Handle("GET /api/goals", s.api(s.handleListGoals))
	mux.Handle("POST /api/goals", s.api(s.handleCreateGoal))
	mux.Handle("GET /api/export.xlsx", s.api(s.handleExportXLSX))

	s.Handler = log.Middleware(s.logger)(withRequestID(log.RequestIDMiddleware(requestIDOf)(mux)))
	return s
}

// api wraps an authenticated API handler with the security and bearer-token
// layers.
func (s *Server) api(next http.HandlerFunc) http.Handler {
	return s.withSecurityHeaders(s.requireUser(next))
}

// withRequestID tags every request with an id, echoed in X-Request-ID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := generateRequestID()
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))
	})
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&s.appMetrics.requests, 1)

		ctx := r.Context()
		clientIP := extractClientIP(r)
		requestID := requestIDOf(r)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		if reason := screenRequest(r, &s.securityMetrics); reason != "" {
			s.logger.WarnContext(ctx, "Suspicious request", log.NewFields().
				WithReason(reason).
				WithRequestID(requestID).
				WithClientIP(clientIP).
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
				ToSlice()...)
		}

		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			atomic.AddInt64(&s.appMetrics.writes, 1)
			if !s.limiter.allow(clientIP, &s.securityMetrics) {
				s.logger.WarnContext(ctx, "Rate limit exceeded",
					log.FieldClientIP, clientIP,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path)
				ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").
					Header("Retry-After", "60").
					Write(w)
				return
			}
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		log.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// requireUser resolves the bearer token to a user id and stores it in the
// request context. Handlers never take the user from the request body.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			UnauthorizedError("missing bearer token").Write(w)
			return
		}
		userID, err := s.issuer.Parse(token)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Token rejected",
				log.FieldError, err.Error(),
				log.FieldErrorType, log.ErrorTypeAuth)
			ErrorFor(err).Write(w)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func requestIDOf(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"gagyebu/internal/auth"
	"gagyebu/internal/core"
	"gagyebu/internal/log"
	"gagyebu/internal/services"
	"gagyebu/internal/sheets/xlsx"
)

// userID is set by requireUser; every /api handler runs behind it.
func userID(r *http.Request) int64 {
	id, _ := auth.UserFrom(r.Context())
	return id
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.limiter.activeClients()},
	}
	if s.ready == nil {
		checks["store"] = "not_configured"
	} else if err := s.ready(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of API requests", "counter", atomic.LoadInt64(&s.appMetrics.requests))
	metric("http_writes_total", "Total number of POST and DELETE API requests", "counter", atomic.LoadInt64(&s.appMetrics.writes))
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", atomic.LoadInt64(&s.securityMetrics.rateLimitHits))
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", atomic.LoadInt64(&s.securityMetrics.suspiciousRequests))
	metric("malformed_auth_total", "Total requests with an unusable Authorization header", "counter", atomic.LoadInt64(&s.securityMetrics.malformedAuth))
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", s.limiter.activeClients())
	metric("uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	vocab := s.ledger.Vocabulary()
	NewResponse().JSON(map[string][]string{
		string(core.Income):  nonNil(vocab.Categories(core.Income)),
		string(core.Expense): nonNil(vocab.Categories(core.Expense)),
	}).Write(w)
}

// handleListTransactions serves either one day (?date=) or one month.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if v := query.Get("date"); v != "" {
		date, err := core.ParseDate(v)
		if err != nil {
			ErrorFor(&ParamError{Name: "date", Value: v}).Write(w)
			return
		}
		txs := s.ledger.TransactionsOn(r.Context(), userID(r), date)
		NewResponse().JSON(map[string]any{
			"date":         date,
			"transactions": nonNil(txs),
		}).Write(w)
		return
	}

	p, err := ParseMonthParams(query, s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	txs := s.ledger.Transactions(r.Context(), userID(r), p.Year, p.Month)
	NewResponse().JSON(map[string]any{
		"year":         p.Year,
		"month":        p.Month,
		"transactions": nonNil(txs),
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	date, err := body.Date("date")
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	tt, err := body.Type("type")
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	t, err := s.ledger.AddTransaction(r.Context(), services.NewTransaction{
		UserID:   userID(r),
		Date:     date,
		Type:     tt,
		Amount:   body.Get("amount"),
		Category: body.Get("category"),
		Content:  body.Get("content"),
	})
	if err != nil {
		s.failed(r, log.OpCreate, err)
		ErrorFor(err).Write(w)
		return
	}

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+strconv.FormatInt(t.ID, 10)).
		JSON(t).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), userID(r), id); err != nil {
		s.failed(r, log.OpDelete, err)
		ErrorFor(err).Write(w)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	totals := s.ledger.MonthlySummary(r.Context(), userID(r), p.Year, p.Month)
	NewResponse().JSON(map[string]any{
		"year":    p.Year,
		"month":   p.Month,
		"income":  totals.Income,
		"expense": totals.Expense,
	}).Write(w)
}

func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	p, err := ParseMonthParams(query, s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	tt, err := ParseTypeParam(query)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	cats := s.ledger.CategorySummary(r.Context(), userID(r), p.Year, p.Month, tt)
	NewResponse().JSON(map[string]any{
		"year":       p.Year,
		"month":      p.Month,
		"type":       tt,
		"total":      cats.Sum(),
		"categories": cats.Sorted(),
	}).Write(w)
}

func (s *Server) handleYearlySummary(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYearParam(r.URL.Query(), s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	series := s.ledger.YearlySummary(r.Context(), userID(r), year)
	NewResponse().JSON(map[string]any{
		"year":    year,
		"income":  series.Income,
		"expense": series.Expense,
	}).Write(w)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	bins := s.ledger.DailyBins(r.Context(), userID(r), p.Year, p.Month)
	NewResponse().JSON(map[string]any{
		"year":  p.Year,
		"month": p.Month,
		"days":  bins,
	}).Write(w)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewResponse().JSON(s.ledger.Overview(r.Context(), userID(r), p.Year, p.Month)).Write(w)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewResponse().JSON(map[string]any{
		"year":  p.Year,
		"month": p.Month,
		"goals": nonNil(s.ledger.GoalProgress(r.Context(), userID(r), p.Year, p.Month)),
	}).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	now := s.now()
	tt, err := body.Type("type")
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	year, err := body.Int("year", now.Year())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	month, err := body.Int("month", int(now.Month()))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	g, err := s.ledger.SetGoal(r.Context(), services.NewGoal{
		UserID:   userID(r),
		Type:     tt,
		Category: body.Get("category"),
		Year:     year,
		Month:    month,
		Target:   body.Get("target"),
	})
	if err != nil {
		s.failed(r, log.OpCreate, err)
		ErrorFor(err).Write(w)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(g).Write(w)
}

// handleExportXLSX renders the month as a workbook download. The file is
// built in memory first so a failure still yields a JSON error.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	txs := s.ledger.Transactions(r.Context(), userID(r), p.Year, p.Month)

	var buf bytes.Buffer
	if err := xlsx.Write(&buf, p.Year, p.Month, txs); err != nil {
		s.failed(r, log.OpExport, err)
		InternalServerError("export failed").Write(w)
		return
	}

	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, xlsx.FileName(p.Year, p.Month)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// failed logs a rejected write. Validation problems are the caller's fault
// and stay at warn.
func (s *Server) failed(r *http.Request, op string, err error) {
	ctx := r.Context()
	fields := log.NewFields().WithOperation(op).WithError(err)
	if code := statusOf(err); code < http.StatusInternalServerError {
		log.FromContext(ctx).WarnContext(ctx, "Request rejected", fields.ToSlice()...)
		return
	}
	log.FromContext(ctx).ErrorContext(ctx, "Request failed", fields.WithErrorType(log.ErrorTypeInternal).ToSlice()...)
}

func statusOf(err error) int {
	return ErrorFor(err).statusCode
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

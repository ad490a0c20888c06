package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"travelx/internal/auth"
)

var errTemplatesNotLoaded = errors.New("templates not loaded")

// appMetrics counts domain events for /metrics.
type appMetrics struct {
	started         time.Time
	entriesCreated  int64
	expensesCreated int64
	loginFailures   int64
	dashboardErrors int64
}

// pageData is shared by every full page template.
type pageData struct {
	Title string
	User  *auth.User
	Error string
}

func (s *Server) page(r *http.Request, title string) pageData {
	p := pageData{Title: title}
	if sess := auth.FromContext(r.Context()); sess != nil {
		u := sess.User
		p.User = &u
	}
	return p
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: " + errTemplatesNotLoaded.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["backend"] = "not_configured"
	default:
		if err := s.ready(ctx); err != nil {
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	sec := s.detector.GetMetrics()
	rl := s.limiter.GetMetrics()
	tr := s.tracer.GetMetrics()

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", tr.TotalRequests)
	gauge("http_request_duration_avg_microseconds", "Mean request latency", tr.AverageResponseTime)
	counter("entries_created_total", "Client and payment entries created", atomic.LoadInt64(&s.metrics.entriesCreated))
	counter("expenses_created_total", "Expenses created", atomic.LoadInt64(&s.metrics.expensesCreated))
	counter("login_failures_total", "Rejected login attempts", atomic.LoadInt64(&s.metrics.loginFailures))
	counter("dashboard_errors_total", "Dashboard summaries that failed to load", atomic.LoadInt64(&s.metrics.dashboardErrors))
	counter("rate_limit_hits_total", "Total rate limit hits", rl.TotalHits)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", rl.ClientCount)
	counter("suspicious_requests_total", "Total suspicious requests detected", sec.SuspiciousRequests)
	counter("blocked_requests_total", "Probe requests answered with 404", sec.BlockedRequests)
	gauge("uptime_seconds", "Application uptime in seconds", int64(time.Since(s.metrics.started).Seconds()))
}

package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"travelx/internal/core"
	"travelx/internal/log"
)

type dashboardPage struct {
	pageData
	Summary core.DashboardSummary
	Loaded  bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}

	data := dashboardPage{pageData: s.page(r, "Dashboard")}
	sum, err := s.dashboard.Summary(r.Context(), s.now())
	if err != nil {
		status, msg := s.dashboardFailure(r, err)
		data.Error = msg
		s.render(w, r, status, "dashboard.html", data)
		return
	}
	data.Summary = sum
	data.Loaded = true
	s.render(w, r, http.StatusOK, "dashboard.html", data)
}

func (s *Server) handleDashboardAPI(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	sum, err := s.dashboard.Summary(r.Context(), s.now())
	if err != nil {
		status, msg := s.dashboardFailure(r, err)
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, status, map[string]interface{}{
				"error":  msg,
				"record": verr.Record,
				"index":  verr.Index,
				"field":  verr.Field,
			})
			return
		}
		writeJSONError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	now := s.now()
	// Summary first so a failure can still produce a proper status code.
	if _, err := s.dashboard.Summary(r.Context(), now); err != nil {
		status, msg := s.dashboardFailure(r, err)
		http.Error(w, msg, status)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dashboard-`+now.In(s.loc).Format("2006-01")+`.csv"`)
	if err := s.dashboard.ExportCSV(r.Context(), w, now); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "CSV export failed",
			log.FieldError, err,
			log.FieldOperation, log.OpExport)
	}
}

// dashboardFailure logs err and maps it to a status and an operator-facing message.
func (s *Server) dashboardFailure(r *http.Request, err error) (int, string) {
	atomic.AddInt64(&s.metrics.dashboardErrors, 1)
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentDashboard)

	var verr *core.ValidationError
	var ferr *core.FetchError
	switch {
	case errors.As(err, &verr):
		logger.WarnContext(r.Context(), "Dashboard data rejected", log.FieldError, err, "error_type", log.ErrorTypeValidation)
		return http.StatusUnprocessableEntity, "Ledger data is incomplete: " + verr.Error()
	case errors.As(err, &ferr):
		logger.ErrorContext(r.Context(), "Dashboard data unavailable", log.FieldError, err, "error_type", log.ErrorTypeDatabase)
		return http.StatusServiceUnavailable, "Could not load " + ferr.Op + ". Try again shortly."
	default:
		logger.ErrorContext(r.Context(), "Dashboard failed", log.FieldError, err)
		return http.StatusInternalServerError, "Dashboard is unavailable."
	}
}

package http

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"travelx/internal/auth"
	"travelx/internal/core"
	"travelx/internal/log"
	"travelx/internal/middleware/ratelimit"
	"travelx/internal/middleware/security"
	"travelx/internal/middleware/trace"
	"travelx/internal/services"
	appweb "travelx/web"
)

// LedgerWriter stores new entries and expenses.
type LedgerWriter interface {
	CreateEntry(ctx context.Context, ci services.ClientInput, pi services.PaymentInput) (services.Entry, error)
	CreateExpense(ctx context.Context, in services.ExpenseInput) (core.Expense, error)
}

// DashboardProvider computes and exports the dashboard summary.
type DashboardProvider interface {
	Summary(ctx context.Context, now time.Time) (core.DashboardSummary, error)
	ExportCSV(ctx context.Context, w io.Writer, now time.Time) error
}

// Authenticator checks operator credentials.
type Authenticator interface {
	Login(ctx context.Context, username, password string, rememberMe bool) (*auth.Session, error)
}

// Options configures the server. Zero values fall back to sensible defaults
// except SessionSecret, which the caller must provide.
type Options struct {
	Addr          string
	SessionSecret string
	// SecureCookies marks the session cookie Secure. Enable behind TLS.
	SecureCookies bool
	RateLimit     ratelimit.Config
	Logger        *log.Logger
	// Ready reports backend health for /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
	// Location decides "today" for the form defaults.
	Location *time.Location
}

type Server struct {
	http.Server
	templates *template.Template

	ledger    LedgerWriter
	dashboard DashboardProvider
	authn     Authenticator
	codec     *auth.Codec

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	logger        *log.Logger
	ready         func(ctx context.Context) error
	loc           *time.Location
	now           func() time.Time
	secureCookies bool

	metrics      appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options, ledger LedgerWriter, dashboard DashboardProvider, authn Authenticator) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:        ledger,
		dashboard:     dashboard,
		authn:         authn,
		codec:         auth.NewCodec(opts.SessionSecret),
		limiter:       ratelimit.NewLimiter(opts.RateLimit),
		detector:      security.NewDetector(logger),
		logger:        logger,
		ready:         opts.Ready,
		loc:           opts.Location,
		now:           time.Now,
		secureCookies: opts.SecureCookies,
		metrics:       appMetrics{started: time.Now()},
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	t, err := parseTemplates()
	if err != nil {
		logger.Warn("Failed parsing templates",
			log.FieldError, err,
			log.FieldComponent, log.ComponentTemplate)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.HandleFunc("/", s.requireSession(s.handleIndex))
	mux.HandleFunc("/api/dashboard", s.requireSession(s.handleDashboardAPI))
	mux.HandleFunc("/dashboard/export.csv", s.requireSession(s.handleExportCSV))
	mux.HandleFunc("/entries", s.requireSession(s.handleEntries))
	mux.HandleFunc("/expenses", s.requireSession(s.handleExpenses))
	mux.HandleFunc("/api/gst", s.requireSession(s.handleGST))
	// UI partials
	mux.HandleFunc("/ui/gst-preview", s.requireSession(s.handleGSTPreview))

	s.Handler = s.chain(mux)
	return s
}

// chain wraps the mux, outermost first: logger, tracing, request-scoped
// logger, security headers, probe detection, POST rate limiting.
func (s *Server) chain(h http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError("Rate limit exceeded. Please try again later.").Write(w)
	}

	h = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(h)
	h = s.tracer.Middleware(h)
	return log.Middleware(s.logger)(h)
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"rupees": core.FormatRupees,
		"upper":  strings.ToUpper,
	}
	return template.New("").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// render executes a named template into a buffer first so a template
// failure never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	body, err := s.renderString(name, data)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name,
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (s *Server) renderString(name string, data interface{}) (string, error) {
	if s.templates == nil {
		return "", errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// today is the civil date in the configured location.
func (s *Server) today() core.Date {
	return core.DateOf(s.now().In(s.loc))
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// isHTMX reports whether the request came from htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

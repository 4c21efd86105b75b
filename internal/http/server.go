package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"txview/internal/diagnostics"
	"txview/internal/log"
	"txview/internal/middleware/ratelimit"
	"txview/internal/middleware/security"
	"txview/internal/middleware/trace"
	"txview/internal/session"
	"txview/internal/store"
	appweb "txview/web"
)

const (
	readyTimeout    = 5 * time.Second
	staticMaxAgeSec = 3600
)

// Deps are the collaborators the server is built from. Journal and Limiter
// are optional.
type Deps struct {
	Sessions   *session.Manager
	Store      store.TransactionLister
	Dispatcher *diagnostics.Dispatcher
	Journal    diagnostics.Reader
	Limiter    *ratelimit.Limiter
	Detector   *security.Detector
	Logger     *log.Logger
}

// Server wraps http.Server with the transaction UI routes.
type Server struct {
	http.Server

	templates  *template.Template
	sessions   *session.Manager
	store      store.TransactionLister
	dispatcher *diagnostics.Dispatcher
	journal    diagnostics.Reader
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	tracer     *trace.Middleware
	logger     *log.Logger
	startedAt  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := deps.Detector
	if detector == nil {
		// Loopback-only trust list never fails to parse.
		detector, _ = security.NewDetector(nil, logger)
	}

	s := &Server{
		sessions:   deps.Sessions,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		journal:    deps.Journal,
		limiter:    deps.Limiter,
		detector:   detector,
		tracer:     trace.NewMiddleware(detector.ExtractClientIP, logger),
		logger:     logger,
		startedAt:  time.Now(),
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err.Error())
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAgeSec)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/transactions", s.handleTransactionsTable)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /transactions/{id}/delete", s.handleDeleteTransaction)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /diagnostics", s.handleDiagnostics)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// chain wraps h with the middleware stack, outermost first: logger context,
// request tracing, probe detection, security headers, write rate limiting.
func (s *Server) chain(h http.Handler) http.Handler {
	if s.limiter != nil {
		h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().Write(w)
		})(h)
	}
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	return log.Middleware(s.logger)(h)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"occupancy/internal/core"
	"occupancy/internal/log"
	"occupancy/internal/metrics"
	appweb "occupancy/web"
)

const (
	headerRequestID = "X-Request-ID"

	rateLimitRequests = 120
	rateLimitWindow   = time.Minute
)

// ReportProvider is the report service as seen by the dashboard.
type ReportProvider interface {
	Assemble(ctx context.Context, loc core.Location, rng core.DateRange) (core.Report, error)
	Bounds(loc core.Location) (core.DateRange, error)
	Ready() bool
}

type Server struct {
	http.Server
	templates   *template.Template
	reports     ReportProvider
	logger      *log.Logger
	structured  *log.StructuredLogger
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, reports ReportProvider, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           log.RequestIDMiddleware(logger, requestID)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		reports:     reports,
		logger:      logger,
		structured:  log.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(rateLimitRequests, rateLimitWindow),
	}
	go s.rateLimiter.startCleanup(5 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders("index", s.handleIndex))
	mux.HandleFunc("GET /ui/report", s.withSecurityHeaders("ui_report", s.handleReportPartial))
	mux.HandleFunc("GET /api/report", s.withSecurityHeaders("api_report", s.handleReportAPI))
	mux.HandleFunc("GET /api/bounds", s.withSecurityHeaders("api_bounds", s.handleBoundsAPI))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// requestID returns the caller's request ID or assigns a new one.
func requestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(headerRequestID))
	if id == "" || len(id) > 64 {
		id = uuid.NewString()
		r.Header.Set(headerRequestID, id)
	}
	return id
}

// withSecurityHeaders adds security headers, rate limiting, request logging
// and metrics to a dashboard route.
func (s *Server) withSecurityHeaders(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r)
		w.Header().Set(headerRequestID, r.Header.Get(headerRequestID))

		if detectSuspiciousRequest(r) {
			metrics.HTTPFlaggedTotal.WithLabelValues("suspicious").Inc()
			log.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP, log.FieldPath, r.URL.Path, log.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		if route != "index" && !s.rateLimiter.allow(clientIP) {
			metrics.HTTPFlaggedTotal.WithLabelValues("rate_limited").Inc()
			log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded", log.FieldClientIP, clientIP, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Terlalu banyak permintaan. Coba lagi nanti.", http.StatusTooManyRequests)
			metrics.RecordHTTP(route, http.StatusTooManyRequests, time.Since(start))
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		metrics.RecordHTTP(route, rw.statusCode, duration)
		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	}
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

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

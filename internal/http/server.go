// Package http exposes the cost book over a small JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"costbook/internal/core"
	appweb "costbook/web"
)

// Ports the API serves from.
type (
	// CostStore is the persistence surface the handlers drive.
	CostStore interface {
		Add(ctx context.Context, d core.Draft) (core.Record, error)
		Get(ctx context.Context, id int64) (core.Record, error)
		Update(ctx context.Context, id int64, p core.Patch) (core.Record, error)
		Delete(ctx context.Context, id int64) error
		ListByPeriod(ctx context.Context, year int, month int) ([]core.Record, error)
		Clear(ctx context.Context) error
		Setting(ctx context.Context, key string) (string, error)
		PutSetting(ctx context.Context, key string, value string) error
		Ping(ctx context.Context) error
	}

	// ReportBuilder assembles the monthly report in a display currency.
	ReportBuilder interface {
		Build(ctx context.Context, p core.Period, display core.Currency) (core.Report, error)
	}
)

type Server struct {
	http.Server
	store    CostStore
	reports  ReportBuilder
	ratesDoc []byte
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, store CostStore, reports ReportBuilder) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:   store,
		reports: reports,
	}

	// The same-origin default rate feed is embedded at build time.
	doc, err := appweb.StaticFS.ReadFile("static/rates.json")
	if err != nil {
		slog.Warn("Failed to load embedded rates document", "error", err)
	}
	s.ratesDoc = doc

	// Static documents (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/api/costs", s.withTrace(s.handleCosts))
	mux.HandleFunc("/api/costs/", s.withTrace(s.handleCostByID))
	mux.HandleFunc("/api/report", s.withTrace(s.handleReport))
	mux.HandleFunc("/api/settings/rate-url", s.withTrace(s.handleRateURL))
	mux.HandleFunc("/rates.json", s.withTrace(s.handleRatesDocument))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	return s
}

// withTrace adds request IDs and request logging to responses.
func (s *Server) withTrace(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		// Generate request ID for tracing
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), "request_id", requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Capture the status code for the completion log
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		logFn := slog.InfoContext
		if rw.statusCode >= 500 {
			logFn = slog.ErrorContext
		} else if rw.statusCode >= 400 {
			logFn = slog.WarnContext
		}
		logFn(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
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

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready only once the database opens and answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		slog.ErrorContext(ctx, "Readiness check failed", "error", err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleRatesDocument serves the embedded default rate feed, the document
// the provider's same-origin default locator points at.
func (s *Server) handleRatesDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.ratesDoc == nil {
		slog.ErrorContext(r.Context(), "Embedded rates document missing", "url", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "rates document not loaded"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.ratesDoc)
}

package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bijbelzoek/api/internal/export"
	"bijbelzoek/api/internal/logging"
)

const (
	brand        = "Bijbelzoek.nl"
	exportTitle  = "Studie-export"
	usageInfo    = "Gebruik POST /api/export/pdf of /api/export/docx met { generalNotes, favoritesTexts, favoritesCharts, aiResults }"
	readyTimeout = 5 * time.Second
)

type HTTPServer struct {
	service      *Service
	corsOrigin   string
	maxBodyBytes int64
	logger       *log.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, maxBodyBytes int64, logger *log.Logger) *HTTPServer {
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, maxBodyBytes: maxBodyBytes, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withMiddleware, recoverer, middleware.GetHead)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, domainError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil))
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/api/ready", s.handleReady)

	r.Route("/api/export", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "info": usageInfo, "version": "exporter-v3"})
		})
		r.Get("/_version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"exporter": export.Exporter, "ok": true, "brand": brand, "title": exportTitle})
		})
		r.Get("/queue", s.handleQueue)
		r.Delete("/queue/{id}", s.handleCancelJob)
		r.Get("/history", s.handleHistory)
		r.Post("/{format}", s.handleExport)
	})

	return r
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}

	for name, err := range s.service.Ping(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if _, err := export.ParseFormat(format); err != nil {
		writeError(w, mapError(err))
		return
	}

	var req export.Request
	if err := decodeBody(w, r, s.maxBodyBytes, &req); err != nil {
		writeError(w, mapError(err))
		return
	}

	result, err := s.service.Export(r.Context(), format, req)
	if err != nil {
		writeError(w, mapError(err))
		return
	}

	header := w.Header()
	for key, values := range result.Header() {
		header[key] = values
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.service.Queue()
	if !ok {
		writeError(w, domainError(http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF-export is niet geconfigureerd", nil))
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *HTTPServer) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.CancelJob(id); err != nil {
		writeError(w, mapError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, domainError(http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", nil))
			return
		}
		limit = n
	}

	items, err := s.service.History(r.Context(), limit)
	if err != nil {
		var domainErr *DomainError
		if !errors.As(err, &domainErr) {
			logging.FromContext(r.Context()).Error("list export history", "err", err)
			domainErr = domainError(http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		}
		writeError(w, domainErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		logger := s.logger.With("request_id", requestID)
		ctx := logging.WithLogger(context.WithValue(r.Context(), requestIDKey{}, requestID), logger)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

// recoverer turns a handler panic into the usual JSON error body.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logging.FromContext(r.Context()).Error("handler panic", "panic", rec, "stack", string(debug.Stack()))
			writeError(w, domainError(http.StatusInternalServerError, "EXPORT_FAILED", "Export mislukt", fmt.Sprint(rec)))
		}()
		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

// RequestID returns the id the middleware assigned to the request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Exporter, X-Export-Archive-Key, X-Request-ID")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, e *DomainError) {
	response := map[string]any{
		"code":  e.Code,
		"error": e.Message,
	}
	if e.Details != nil {
		response["message"] = e.Details
	}
	if e.Hint != "" {
		response["hint"] = e.Hint
	}
	writeJSON(w, e.Status, response)
}

// decodeBody reads a JSON body of at most limit bytes. An empty body
// leaves target untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	body := io.Reader(r.Body)
	if limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := json.NewDecoder(body).Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &tooLarge):
			return err
		}
		return domainError(http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
	}
	return nil
}

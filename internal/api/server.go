package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Anilcodes01/proto-book/internal/domain"
	"github.com/Anilcodes01/proto-book/internal/pipeline"
)

const (
	// multipartSlack covers form boundaries and the other fields on top of
	// the file itself.
	multipartSlack = 1 << 20
	maxMemory      = 32 << 20
)

type bookProcessor interface {
	Process(ctx context.Context, sub domain.Submission) (pipeline.Result, error)
}

type bookReader interface {
	Get(ctx context.Context, id string) (domain.Book, bool, error)
}

// Check reports whether a dependency is ready to serve traffic.
type Check func(ctx context.Context) error

type Options struct {
	Logger    zerolog.Logger
	Processor bookProcessor
	Books     bookReader
	Registry  *prometheus.Registry
	Checks    map[string]Check
	// RequestTimeout bounds read-only endpoints; uploads are not bounded.
	RequestTimeout time.Duration
}

type Server struct {
	logger    zerolog.Logger
	processor bookProcessor
	books     bookReader
	checks    map[string]Check
	metrics   *metrics
	tracer    trace.Tracer
	router    chi.Router
	timeout   time.Duration
}

func NewServer(opts Options) *Server {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &Server{
		logger:    opts.Logger.With().Str("component", "api").Logger(),
		processor: opts.Processor,
		books:     opts.Books,
		checks:    opts.Checks,
		metrics:   newMetrics(registry),
		tracer:    otel.Tracer("proto-book/api"),
		router:    chi.NewRouter(),
		timeout:   timeout,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.withTracing)
	r.Use(s.metrics.withHTTPMetrics)
	r.Use(s.withRequestLog)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", s.metrics.metricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/process-book", s.handleProcessBook)
		r.With(chimiddleware.Timeout(s.timeout)).Get("/books/{id}", s.handleGetBook)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", name).Msg("readiness check failed")
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": results})
}

type processResponse struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	BookID      *string `json:"bookId"`
	OriginalURL string  `json:"originalUrl,omitempty"`
	PDFURL      string  `json:"pdfUrl,omitempty"`
}

func (s *Server) handleProcessBook(w http.ResponseWriter, r *http.Request) {
	sub, err := readSubmission(w, r)
	if err != nil {
		writeProcessFailure(w, pipeline.Result{Message: pipeline.UserMessage(err)}, err)
		return
	}

	result, err := s.processor.Process(r.Context(), sub)
	if err != nil {
		writeProcessFailure(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		Success:     true,
		Message:     result.Message,
		BookID:      &result.BookID,
		OriginalURL: result.OriginalURL,
		PDFURL:      result.PDFURL,
	})
}

// readSubmission decodes the multipart upload. Only a body too large to
// parse or a file part that cannot be read is an error here; every other
// problem is left to the pipeline's validation so the rules live in one place.
func readSubmission(w http.ResponseWriter, r *http.Request) (domain.Submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxUploadBytes+multipartSlack)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Submission{}, domain.ErrFileTooLarge
		}
		return domain.Submission{}, nil
	}

	sub := domain.Submission{TemplateName: strings.TrimSpace(r.FormValue("templateName"))}

	file, header, err := r.FormFile("file")
	if err != nil {
		return sub, nil
	}
	defer file.Close()

	return withFilePart(sub, header, file)
}

func withFilePart(sub domain.Submission, header *multipart.FileHeader, file io.Reader) (domain.Submission, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("%w: %v", domain.ErrUnreadableFile, err)
	}

	sub.Present = true
	sub.Filename = header.Filename
	sub.ContentType = header.Header.Get("Content-Type")
	sub.Size = header.Size
	sub.Data = data
	return sub, nil
}

func writeProcessFailure(w http.ResponseWriter, result pipeline.Result, err error) {
	status := http.StatusInternalServerError
	if pipeline.IsValidation(err) {
		status = http.StatusBadRequest
	}

	resp := processResponse{Success: false, Message: result.Message}
	if result.BookID != "" {
		resp.BookID = &result.BookID
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.books == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "book not found"})
		return
	}

	book, ok, err := s.books.Get(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Str("book_id", id).Msg("fetch book failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load book"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "book not found"})
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Package server exposes the batch pipeline over HTTP, with a gRPC health endpoint alongside.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/traveler-renamer/internal/batch"
	"github.com/joseph-ayodele/traveler-renamer/internal/credentials"
	"github.com/joseph-ayodele/traveler-renamer/internal/metrics"
	"github.com/joseph-ayodele/traveler-renamer/internal/repository"
)

// BatchProcessor runs one batch.
type BatchProcessor interface {
	Process(ctx context.Context, credential string, files []batch.Upload, progress batch.ProgressFunc) (*batch.Result, error)
}

// CredentialResolver picks the API key for a request.
type CredentialResolver interface {
	Resolve(manual string) (string, credentials.Source, bool)
}

// ArchiveSink keeps a copy of each archive.
type ArchiveSink interface {
	PutArchive(ctx context.Context, batchID uuid.UUID, data []byte) (string, error)
}

// ReportExporter renders a stored batch as XLSX.
type ReportExporter interface {
	ExportBatchXLSX(ctx context.Context, id uuid.UUID) ([]byte, error)
}

type Options struct {
	Processor      BatchProcessor
	Credentials    CredentialResolver
	Batches        repository.BatchRepository // optional
	Reports        ReportExporter             // optional
	Archives       ArchiveSink                // optional
	Metrics        *metrics.Metrics           // optional
	Health         func(ctx context.Context) error
	MaxUploadBytes int64
	AllowedOrigins []string
	Logger         *slog.Logger
}

type Server struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 200 << 20
	}
	return &Server{opts: opts, log: opts.Logger}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Api-Key"},
			ExposedHeaders: []string{"Content-Disposition", "X-Batch-ID", "X-Archive-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	r.Route("/v1/batches", func(r chi.Router) {
		r.Post("/", s.handleCreateBatch)
		r.Get("/", s.handleListBatches)
		r.Get("/{id}", s.handleGetBatch)
		r.Get("/{id}/report.xlsx", s.handleBatchReport)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http.request",
			"req_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

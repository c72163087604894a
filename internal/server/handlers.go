package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/traveler-renamer/constants"
	"github.com/joseph-ayodele/traveler-renamer/internal/batch"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
)

const multipartMemory = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health(r.Context()); err != nil {
			s.log.Warn("http.health.failed", "err", err)
			respondError(w, http.StatusServiceUnavailable, "unhealthy")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateBatch accepts multipart "files" parts and an optional "api_key" field, and
// answers with the ZIP of renamed PDFs.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := common.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
	log := common.LoggerFrom(ctx, s.log)

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.opts.MaxUploadBytes))
			return
		}
		respondError(w, http.StatusBadRequest, "expected multipart/form-data with one or more files parts")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	uploads := make([]batch.Upload, 0, len(headers))
	for _, fh := range headers {
		if !constants.IsAllowedExt(filepath.Ext(fh.Filename)) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("only PDF files are accepted: %s", fh.Filename))
			return
		}
		uploads = append(uploads, partUpload(fh))
	}

	manual := r.FormValue("api_key")
	if manual == "" {
		manual = r.Header.Get("X-Api-Key")
	}
	credential := ""
	if s.opts.Credentials != nil {
		if key, src, ok := s.opts.Credentials.Resolve(manual); ok {
			credential = key
			log.Debug("http.batch.credential", "source", string(src))
		}
	}

	res, err := s.opts.Processor.Process(ctx, credential, uploads, func(p batch.Progress) {
		log.Debug("http.batch.progress", "done", p.Done, "total", p.Total, "message", p.Message)
	})
	if err != nil {
		status := common.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error("http.batch.failed", "files", len(uploads), "err", err)
		} else {
			log.Warn("http.batch.rejected", "files", len(uploads), "err", err)
		}
		respondError(w, status, common.PublicMessage(err))
		return
	}

	if s.opts.Batches != nil {
		if err := s.opts.Batches.Save(ctx, res); err != nil {
			log.Error("http.batch.save_failed", "batch_id", res.BatchID, "err", err)
		}
	}
	if s.opts.Archives != nil {
		if key, err := s.opts.Archives.PutArchive(ctx, res.BatchID, res.Archive); err != nil {
			log.Error("http.batch.archive_store_failed", "batch_id", res.BatchID, "err", err)
		} else {
			w.Header().Set("X-Archive-Key", key)
		}
	}

	w.Header().Set("Content-Type", constants.ArchiveMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", constants.ArchiveName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Archive)))
	w.Header().Set("X-Batch-ID", res.BatchID.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Archive); err != nil {
		log.Warn("http.batch.write_failed", "batch_id", res.BatchID, "err", err)
	}
}

func partUpload(fh *multipart.FileHeader) batch.Upload {
	return batch.Upload{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	if s.opts.Batches == nil {
		respondError(w, http.StatusNotFound, "batch history is disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := s.opts.Batches.List(r.Context(), limit)
	if err != nil {
		s.fail(w, r, "list", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"batches": runs})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.batchID(w, r)
	if !ok {
		return
	}
	rec, err := s.opts.Batches.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, "get", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":          rec.ID,
		"started_at":  rec.StartedAt,
		"finished_at": rec.FinishedAt,
		"summary":     rec.Summary,
		"results":     rec.Rows(),
	})
}

func (s *Server) handleBatchReport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.batchID(w, r)
	if !ok {
		return
	}
	if s.opts.Reports == nil {
		respondError(w, http.StatusNotFound, "reports are disabled")
		return
	}
	data, err := s.opts.Reports.ExportBatchXLSX(r.Context(), id)
	if err != nil {
		s.fail(w, r, "report", err)
		return
	}
	w.Header().Set("Content-Type", constants.ReportMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", constants.ReportName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) batchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if s.opts.Batches == nil {
		respondError(w, http.StatusNotFound, "batch history is disabled")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("http.batches."+op+".failed", "req_id", middleware.GetReqID(r.Context()), "err", err)
	}
	respondError(w, status, common.PublicMessage(err))
}

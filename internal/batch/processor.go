// Package batch turns a set of uploaded job travelers into renamed PDFs packed in one ZIP.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/traveler-renamer/constants"
	"github.com/joseph-ayodele/traveler-renamer/internal/archive"
	"github.com/joseph-ayodele/traveler-renamer/internal/cache"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
	"github.com/joseph-ayodele/traveler-renamer/internal/metrics"
	"github.com/joseph-ayodele/traveler-renamer/internal/naming"
	"github.com/joseph-ayodele/traveler-renamer/internal/ratelimit"
)

var (
	// ErrNoFiles is returned when a batch has nothing to process.
	ErrNoFiles = common.NewAppError("NO_FILES", "Please upload at least one PDF file.", common.ErrInvalidInput)
	// ErrMissingCredential is returned when the provider needs an API key and none was resolved.
	ErrMissingCredential = common.NewAppError("NO_CREDENTIAL", "No API key found. Please enter an API key or configure it in secrets.", common.ErrInvalidInput)
)

const completeMessage = "Processing complete!"

// errPacing marks a limiter failure; the batch cannot continue without pacing.
var errPacing = errors.New("rate limit wait")

// Processor runs batches strictly sequentially. One Processor (and its limiter) may be shared
// by concurrent callers; extraction calls stay spaced by the limiter interval.
type Processor struct {
	logger            *slog.Logger
	extractor         llm.FieldExtractor
	limiter           ratelimit.Limiter
	cache             cache.ExtractionCache
	metrics           *metrics.Metrics
	tempRoot          string
	requireCredential bool
	now               func() time.Time
}

type Option func(*Processor)

func WithLimiter(l ratelimit.Limiter) Option { return func(p *Processor) { p.limiter = l } }

func WithCache(c cache.ExtractionCache) Option { return func(p *Processor) { p.cache = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Processor) { p.metrics = m } }

// WithTempRoot sets the parent of per-batch temp dirs ("" = os.TempDir()).
func WithTempRoot(dir string) Option { return func(p *Processor) { p.tempRoot = dir } }

// WithCredentialRequired controls whether Process rejects an empty credential.
func WithCredentialRequired(required bool) Option {
	return func(p *Processor) { p.requireCredential = required }
}

func NewProcessor(logger *slog.Logger, extractor llm.FieldExtractor, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:            logger,
		extractor:         extractor,
		limiter:           ratelimit.Unlimited(),
		requireCredential: true,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process extracts, renames and archives every file in input order.
// Per-file failures are reported in the results; any other failure aborts the batch and no
// archive is returned.
func (p *Processor) Process(ctx context.Context, credential string, files []Upload, progress ProgressFunc) (*Result, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if p.requireCredential && strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	res := &Result{
		BatchID:   uuid.New(),
		Results:   make([]ProcessingResult, 0, len(files)),
		StartedAt: p.now(),
	}
	ctx = common.WithBatchID(ctx, res.BatchID.String())
	log := common.LoggerFrom(ctx, p.logger)

	work, err := newWorkspace(p.tempRoot)
	if err != nil {
		return nil, fmt.Errorf("create batch temp dir: %w", err)
	}
	defer func() {
		if rmErr := work.remove(); rmErr != nil {
			log.Warn("batch.tempdir.cleanup_failed", "dir", work.root, "err", rmErr)
		}
	}()

	log.Info("batch.start", "files", len(files), "temp_dir", work.root)
	zw := archive.NewWriter()
	names := naming.NewDeduper()
	total := len(files)

	for i, up := range files {
		progress(Progress{
			Done:     i,
			Total:    total,
			Fraction: float64(i) / float64(total),
			Message:  fmt.Sprintf("Processing %s... (%d/%d)", up.Name, i+1, total),
		})

		pr, err := p.processOne(ctx, log, credential, up, work, zw, names)
		if err != nil {
			log.Error("batch.aborted", "file", up.Name, "index", i, "err", err)
			return nil, err
		}
		if pr.Kind() == constants.KindReadError {
			progress(Progress{
				Done:     i,
				Total:    total,
				Fraction: float64(i) / float64(total),
				Message:  fmt.Sprintf("Error reading %s: %s", up.Name, pr.Error),
			})
		}
		p.metrics.ObserveFile(pr.Kind())
		res.Results = append(res.Results, pr)
	}

	data, err := zw.Close()
	if err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	res.Archive = data
	res.FinishedAt = p.now()
	p.metrics.ObserveBatch()

	progress(Progress{Done: total, Total: total, Fraction: 1.0, Message: completeMessage})

	s := res.Summary()
	log.Info("batch.complete",
		"files", s.Total, "succeeded", s.Succeeded, "partial", s.Partial, "failed", s.Failed,
		"archive_bytes", len(data),
		"elapsed_ms", res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	)
	return res, nil
}

// processOne handles one upload. A returned error aborts the batch.
func (p *Processor) processOne(
	ctx context.Context,
	log *slog.Logger,
	credential string,
	up Upload,
	work *workspace,
	zw *archive.Writer,
	names *naming.Deduper,
) (ProcessingResult, error) {
	pr := ProcessingResult{OriginalName: up.Name}

	// 1) read
	data, err := readUpload(up)
	if err != nil {
		log.Error("batch.file.read_failed", "file", up.Name, "err", err)
		pr.Status = string(constants.StatusReadFailure)
		pr.Error = err.Error()
		return pr, nil
	}

	// 2) persist under the original base name
	srcPath := filepath.Join(work.in, baseName(up.Name))
	if err := os.WriteFile(srcPath, data, 0o600); err != nil {
		return pr, fmt.Errorf("store %s: %w", up.Name, err)
	}

	// 3) extract
	fields, err := p.extract(ctx, log, credential, up.Name, data)
	if err != nil {
		if errors.Is(err, errPacing) {
			return pr, fmt.Errorf("extract %s: %w", up.Name, err)
		}
		if ctx.Err() != nil {
			return pr, fmt.Errorf("extract %s: %w", up.Name, ctx.Err())
		}
		pr.Status = string(constants.StatusNoData)
		pr.Error = err.Error()
		return pr, nil
	}
	pr.Fields = fields

	// 4) empty record
	if fields.IsEmpty() {
		log.Warn("batch.file.no_data", "file", up.Name)
		pr.Status = string(constants.StatusNoData)
		return pr, nil
	}

	// 5) + 6) name
	composed, missing := naming.Compose(fields)
	if len(missing) > 0 {
		log.Warn("batch.file.missing_fields", "file", up.Name, "missing", missing)
	}
	newName := names.Unique(composed)
	dstPath := filepath.Join(work.out, newName)
	if err := os.Rename(srcPath, dstPath); err != nil {
		return pr, fmt.Errorf("rename %s: %w", up.Name, err)
	}

	// 7) archive
	renamed, err := os.ReadFile(dstPath)
	if err != nil {
		return pr, fmt.Errorf("read renamed %s: %w", newName, err)
	}
	if err := zw.Add(newName, renamed); err != nil {
		return pr, fmt.Errorf("archive %s: %w", newName, err)
	}
	log.Info("batch.file.renamed", "file", up.Name, "new_name", newName)

	// 8) status
	pr.NewName = newName
	pr.Missing = missing
	pr.Status = PartialStatus(missing)
	return pr, nil
}

// extract consults the cache, then waits for the limiter and calls the extractor.
func (p *Processor) extract(ctx context.Context, log *slog.Logger, credential, name string, data []byte) (llm.TravelerFields, error) {
	if p.cache != nil {
		if fields, ok := p.cache.Get(ctx, data); ok {
			log.Info("batch.file.cache_hit", "file", name)
			return fields, nil
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return llm.TravelerFields{}, fmt.Errorf("%w: %w", errPacing, err)
	}

	start := time.Now()
	fields, _, err := p.extractor.ExtractFields(ctx, llm.ExtractRequest{
		Filename: name,
		Data:     data,
		APIKey:   credential,
	})
	elapsed := time.Since(start)
	switch {
	case err != nil:
		p.metrics.ObserveExtract("error", elapsed)
		log.Error("batch.file.extract_failed", "file", name, "err", err, "elapsed_ms", elapsed.Milliseconds())
		return llm.TravelerFields{}, err
	case fields.IsEmpty():
		p.metrics.ObserveExtract("empty", elapsed)
	default:
		p.metrics.ObserveExtract("ok", elapsed)
		if p.cache != nil {
			p.cache.Put(ctx, data, fields)
		}
	}
	return fields, nil
}

func readUpload(up Upload) ([]byte, error) {
	if up.Open == nil {
		return nil, errors.New("no content")
	}
	rc, err := up.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// baseName strips any client-side directory (either separator) from an upload name.
func baseName(name string) string {
	b := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if b == "." || b == "/" || b == ".." {
		return "upload.pdf"
	}
	return b
}

// workspace is the per-batch temp dir. Originals land in in/, renamed files in out/, so a
// new name can never overwrite an original that is still waiting.
type workspace struct {
	root string
	in   string
	out  string
}

func newWorkspace(parent string) (*workspace, error) {
	root, err := os.MkdirTemp(parent, "traveler-batch-*")
	if err != nil {
		return nil, err
	}
	w := &workspace{root: root, in: filepath.Join(root, "in"), out: filepath.Join(root, "out")}
	for _, d := range []string{w.in, w.out} {
		if err := os.Mkdir(d, 0o700); err != nil {
			_ = os.RemoveAll(root)
			return nil, err
		}
	}
	return w, nil
}

func (w *workspace) remove() error {
	return os.RemoveAll(w.root)
}

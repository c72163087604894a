package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/traveler-renamer/constants"
	"github.com/joseph-ayodele/traveler-renamer/internal/batch"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
)

const (
	tableRun  = "batch_run"
	tableFile = "batch_file"
)

// BatchRecord is a stored batch. Files is empty for List results.
type BatchRecord struct {
	ID         uuid.UUID     `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Summary    batch.Summary `json:"summary"`
	Files      []FileRecord  `json:"files,omitempty"`
}

type FileRecord struct {
	Position     int    `json:"position"`
	OriginalName string `json:"original_name"`
	NewName      string `json:"new_name"`
	Status       string `json:"status"`
	Customer     string `json:"customer"`
	PartNumber   string `json:"part_number"`
	Description  string `json:"description"`
	ErrorMessage string `json:"error,omitempty"`
}

// Row renders the stored file the same way a live result renders.
func (f FileRecord) Row() batch.Row {
	newName := f.NewName
	if newName == "" {
		newName = constants.NotRenamed
	}
	return batch.Row{
		OriginalFilename: f.OriginalName,
		NewFilename:      newName,
		Status:           f.Status,
		Customer:         f.Customer,
		PartNumber:       f.PartNumber,
		Description:      f.Description,
	}
}

func (r *BatchRecord) Rows() []batch.Row {
	rows := make([]batch.Row, len(r.Files))
	for i, f := range r.Files {
		rows[i] = f.Row()
	}
	return rows
}

type BatchRepository interface {
	Save(ctx context.Context, res *batch.Result) error
	Get(ctx context.Context, id uuid.UUID) (*BatchRecord, error)
	List(ctx context.Context, limit int) ([]BatchRecord, error)
}

type batchRepo struct {
	db  *DB
	log *slog.Logger
}

func NewBatchRepository(db *DB, log *slog.Logger) BatchRepository {
	if log == nil {
		log = slog.Default()
	}
	return &batchRepo{db: db, log: log}
}

func (r *batchRepo) Save(ctx context.Context, res *batch.Result) error {
	b := r.db.builder()
	s := res.Summary()

	runQ, runArgs := b.Insert(tableRun).
		Columns("id", "started_at", "finished_at", "total", "succeeded", "partial", "failed").
		Values(res.BatchID.String(), res.StartedAt.UnixMilli(), res.FinishedAt.UnixMilli(),
			s.Total, s.Succeeded, s.Partial, s.Failed).
		Query()

	tx, err := r.db.drv.DB().BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("DB_ERROR", "begin batch save", errors.Join(common.ErrDatabase, err))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, runQ, runArgs...); err != nil {
		r.log.Error("batch_run insert failed", "batch_id", res.BatchID, "err", err)
		return common.NewAppError("DB_ERROR", "insert batch_run", errors.Join(common.ErrDatabase, err))
	}

	if len(res.Results) > 0 {
		ins := b.Insert(tableFile).Columns("batch_id", "position", "original_name", "new_name", "status",
			"customer", "part_number", "description", "error_message")
		for i, pr := range res.Results {
			ins.Values(res.BatchID.String(), i, pr.OriginalName, pr.NewName, pr.Status,
				pr.Fields.Value(llm.FieldCustomer), pr.Fields.Value(llm.FieldPartNumber),
				pr.Fields.Value(llm.FieldDescription), pr.Error)
		}
		q, args := ins.Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			r.log.Error("batch_file insert failed", "batch_id", res.BatchID, "files", len(res.Results), "err", err)
			return common.NewAppError("DB_ERROR", "insert batch_file", errors.Join(common.ErrDatabase, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return common.NewAppError("DB_ERROR", "commit batch save", errors.Join(common.ErrDatabase, err))
	}
	r.log.Info("batch saved", "batch_id", res.BatchID, "files", len(res.Results))
	return nil
}

func (r *batchRepo) Get(ctx context.Context, id uuid.UUID) (*BatchRecord, error) {
	b := r.db.builder()
	q, args := b.Select(runColumns...).
		From(b.Table(tableRun)).
		Where(entsql.EQ("id", id.String())).
		Query()

	runs, err := r.queryRuns(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("batch %s not found", id), common.ErrNotFound)
	}
	rec := runs[0]

	fq, fargs := b.Select("position", "original_name", "new_name", "status",
		"customer", "part_number", "description", "error_message").
		From(b.Table(tableFile)).
		Where(entsql.EQ("batch_id", id.String())).
		OrderBy("position").
		Query()
	rows, err := r.db.drv.DB().QueryContext(ctx, fq, fargs...)
	if err != nil {
		r.log.Error("batch_file query failed", "batch_id", id, "err", err)
		return nil, common.NewAppError("DB_ERROR", "query batch_file", errors.Join(common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.Position, &f.OriginalName, &f.NewName, &f.Status,
			&f.Customer, &f.PartNumber, &f.Description, &f.ErrorMessage); err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan batch_file", errors.Join(common.ErrDatabase, err))
		}
		rec.Files = append(rec.Files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "iterate batch_file", errors.Join(common.ErrDatabase, err))
	}
	return &rec, nil
}

// List returns the most recent batches first. limit <= 0 means 50.
func (r *batchRepo) List(ctx context.Context, limit int) ([]BatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	b := r.db.builder()
	q, args := b.Select(runColumns...).
		From(b.Table(tableRun)).
		OrderBy(entsql.Desc("started_at")).
		Limit(limit).
		Query()
	return r.queryRuns(ctx, q, args)
}

var runColumns = []string{"id", "started_at", "finished_at", "total", "succeeded", "partial", "failed"}

func (r *batchRepo) queryRuns(ctx context.Context, q string, args []any) ([]BatchRecord, error) {
	rows, err := r.db.drv.DB().QueryContext(ctx, q, args...)
	if err != nil {
		r.log.Error("batch_run query failed", "err", err)
		return nil, common.NewAppError("DB_ERROR", "query batch_run", errors.Join(common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()

	var out []BatchRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan batch_run", errors.Join(common.ErrDatabase, err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "iterate batch_run", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}

func scanRun(rows *sql.Rows) (BatchRecord, error) {
	var (
		rec                 BatchRecord
		id                  string
		startedMs, finished int64
	)
	if err := rows.Scan(&id, &startedMs, &finished,
		&rec.Summary.Total, &rec.Summary.Succeeded, &rec.Summary.Partial, &rec.Summary.Failed); err != nil {
		return rec, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return rec, fmt.Errorf("batch id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.StartedAt = time.UnixMilli(startedMs).UTC()
	rec.FinishedAt = time.UnixMilli(finished).UTC()
	return rec, nil
}

package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/traveler-renamer/internal/batch"
	"github.com/joseph-ayodele/traveler-renamer/internal/repository"
)

const sheet = "Results"

var headers = []string{
	"Original Filename",
	"New Filename",
	"Status",
	"Customer",
	"Part Number",
	"Description",
}

// Service is a tiny façade over the batch repository that produces XLSX bytes for reports.
type Service struct {
	batches repository.BatchRepository
	logger  *slog.Logger
}

func NewService(batches repository.BatchRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{batches: batches, logger: logger}
}

// ExportBatchXLSX returns the results table of a stored batch as an XLSX workbook.
func (s *Service) ExportBatchXLSX(ctx context.Context, id uuid.UUID) ([]byte, error) {
	start := time.Now()
	rec, err := s.batches.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	out, err := WriteResultsXLSX(rec.Rows())
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"batch_id", id.String(),
		"rows", len(rec.Files),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// WriteResultsXLSX renders rows on a single "Results" sheet, header first.
func WriteResultsXLSX(rows []batch.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", "F1", style)
	}

	for i, r := range rows {
		values := []any{r.OriginalFilename, r.NewFilename, r.Status, r.Customer, r.PartNumber, r.Description}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "B", 40) // file names
	_ = f.SetColWidth(sheet, "C", "C", 36) // status
	_ = f.SetColWidth(sheet, "D", "E", 20)
	_ = f.SetColWidth(sheet, "F", "F", 48)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

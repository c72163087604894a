package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/traveler-renamer/internal/batch"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/repository"
)

type stubRepo struct {
	rec *repository.BatchRecord
}

func (s stubRepo) Save(context.Context, *batch.Result) error { return nil }

func (s stubRepo) Get(_ context.Context, id uuid.UUID) (*repository.BatchRecord, error) {
	if s.rec == nil || s.rec.ID != id {
		return nil, common.NewAppError("NOT_FOUND", "batch not found", common.ErrNotFound)
	}
	return s.rec, nil
}

func (s stubRepo) List(context.Context, int) ([]repository.BatchRecord, error) { return nil, nil }

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, []string{"Results"}, f.GetSheetList())
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	return rows
}

func TestWriteResultsXLSX(t *testing.T) {
	data, err := WriteResultsXLSX([]batch.Row{
		{OriginalFilename: "job1.pdf", NewFilename: "PN-100 Acme Bracket.pdf", Status: "Success",
			Customer: "Acme", PartNumber: "PN-100", Description: "Bracket"},
		{OriginalFilename: "job2.pdf", NewFilename: "N/A", Status: "Error: No data extracted"},
	})
	require.NoError(t, err)

	rows := readRows(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Original Filename", "New Filename", "Status", "Customer", "Part Number", "Description"}, rows[0])
	assert.Equal(t, []string{"job1.pdf", "PN-100 Acme Bracket.pdf", "Success", "Acme", "PN-100", "Bracket"}, rows[1])
	assert.Equal(t, "N/A", rows[2][1])
	assert.Equal(t, "Error: No data extracted", rows[2][2])
}

func TestExportBatchXLSX(t *testing.T) {
	id := uuid.New()
	svc := NewService(stubRepo{rec: &repository.BatchRecord{
		ID: id,
		Files: []repository.FileRecord{
			{OriginalName: "a.pdf", NewName: "P C D.pdf", Status: "Success", Customer: "C", PartNumber: "P", Description: "D"},
			{OriginalName: "b.pdf", Status: "Error: Could not read file"},
		},
	}}, nil)

	data, err := svc.ExportBatchXLSX(context.Background(), id)
	require.NoError(t, err)
	rows := readRows(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, "P C D.pdf", rows[1][1])
	assert.Equal(t, "N/A", rows[2][1])

	_, err = svc.ExportBatchXLSX(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

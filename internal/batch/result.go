package batch

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/traveler-renamer/constants"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
)

// Upload is one submitted document. Open is called once, in input order.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// BytesUpload wraps in-memory content as an Upload.
func BytesUpload(name string, data []byte) Upload {
	return Upload{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}}
}

// Progress is reported before each file and once more when the batch is done.
type Progress struct {
	Done     int
	Total    int
	Fraction float64
	Message  string
}

type ProgressFunc func(Progress)

// ProcessingResult is the outcome for one input file.
type ProcessingResult struct {
	OriginalName string
	// Fields holds the values as extracted, before "Unknown" is filled in.
	Fields  llm.TravelerFields
	NewName string
	Status  string
	Missing []string
	Error   string
}

// Archived reports whether the file made it into the archive.
func (r ProcessingResult) Archived() bool {
	return r.Kind() == constants.KindSuccess || r.Kind() == constants.KindPartial
}

// Kind buckets the status.
func (r ProcessingResult) Kind() constants.StatusKind {
	return KindOf(r.Status)
}

// KindOf buckets a stored status string.
func KindOf(status string) constants.StatusKind {
	switch {
	case status == string(constants.StatusSuccess):
		return constants.KindSuccess
	case strings.HasPrefix(status, constants.PartialPrefix):
		return constants.KindPartial
	case status == string(constants.StatusReadFailure):
		return constants.KindReadError
	default:
		return constants.KindError
	}
}

// PartialStatus formats the status for a renamed file with missing fields.
func PartialStatus(missing []string) string {
	if len(missing) == 0 {
		return string(constants.StatusSuccess)
	}
	return fmt.Sprintf("%s (missing: %s)", constants.PartialPrefix, strings.Join(missing, ", "))
}

// Row is one line of the results table.
type Row struct {
	OriginalFilename string `json:"original_filename"`
	NewFilename      string `json:"new_filename"`
	Status           string `json:"status"`
	Customer         string `json:"customer"`
	PartNumber       string `json:"part_number"`
	Description      string `json:"description"`
}

func (r ProcessingResult) Row() Row {
	newName := r.NewName
	if newName == "" {
		newName = constants.NotRenamed
	}
	return Row{
		OriginalFilename: r.OriginalName,
		NewFilename:      newName,
		Status:           r.Status,
		Customer:         r.Fields.Value(llm.FieldCustomer),
		PartNumber:       r.Fields.Value(llm.FieldPartNumber),
		Description:      r.Fields.Value(llm.FieldDescription),
	}
}

// Result is a finished batch. Archive is nil only when the batch was aborted.
type Result struct {
	BatchID    uuid.UUID
	Archive    []byte
	Results    []ProcessingResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Rows returns the results table in input order.
func (r *Result) Rows() []Row {
	rows := make([]Row, len(r.Results))
	for i, pr := range r.Results {
		rows[i] = pr.Row()
	}
	return rows
}

// Summary counts results by kind.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Partial   int `json:"partial"`
	Failed    int `json:"failed"`
}

func (r *Result) Summary() Summary {
	s := Summary{Total: len(r.Results)}
	for _, pr := range r.Results {
		switch pr.Kind() {
		case constants.KindSuccess:
			s.Succeeded++
		case constants.KindPartial:
			s.Partial++
		default:
			s.Failed++
		}
	}
	return s
}

package batch

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/traveler-renamer/constants"
	"github.com/joseph-ayodele/traveler-renamer/internal/archive"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
	"github.com/joseph-ayodele/traveler-renamer/internal/metrics"
)

type answer struct {
	fields llm.TravelerFields
	err    error
}

// fakeExtractor answers by filename and records every call.
type fakeExtractor struct {
	mu      sync.Mutex
	answers map[string]answer
	calls   []llm.ExtractRequest
}

func (f *fakeExtractor) ExtractFields(_ context.Context, req llm.ExtractRequest) (llm.TravelerFields, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	a, ok := f.answers[req.Filename]
	if !ok {
		return llm.TravelerFields{}, nil, nil
	}
	return a.fields, nil, a.err
}

type countingLimiter struct{ waits int }

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return ctx.Err()
}

type failingLimiter struct{}

func (failingLimiter) Wait(context.Context) error { return errors.New("would exceed deadline") }

type memCache struct {
	entries map[string]llm.TravelerFields
	puts    int
}

func (c *memCache) Get(_ context.Context, data []byte) (llm.TravelerFields, bool) {
	f, ok := c.entries[string(data)]
	return f, ok
}

func (c *memCache) Put(_ context.Context, data []byte, fields llm.TravelerFields) {
	c.puts++
	c.entries[string(data)] = fields
}

func failingUpload(name string) Upload {
	return Upload{Name: name, Open: func() (io.ReadCloser, error) { return nil, errors.New("disk gone") }}
}

func newTestProcessor(t *testing.T, ex llm.FieldExtractor, opts ...Option) (*Processor, string) {
	t.Helper()
	root := t.TempDir()
	opts = append([]Option{WithTempRoot(root)}, opts...)
	return NewProcessor(nil, ex, opts...), root
}

func archiveNames(t *testing.T, data []byte) []string {
	t.Helper()
	entries, err := archive.Read(data)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

func TestProcessMixedBatch(t *testing.T) {
	ex := &fakeExtractor{answers: map[string]answer{
		"job1.pdf": {fields: llm.Fields("Acme", "PN-100", "Bracket")},
		"job2.pdf": {fields: llm.Fields("Beta", "PN-200", "")},
		"job3.pdf": {fields: llm.TravelerFields{}},
		"job4.pdf": {err: errors.New("service overloaded")},
		"job5.pdf": {fields: llm.Fields("A/C:Unit", "PN-5", "Cover")},
	}}
	m := metrics.New()
	p, root := newTestProcessor(t, ex, WithMetrics(m))

	files := []Upload{
		BytesUpload("job1.pdf", []byte("one")),
		BytesUpload("job2.pdf", []byte("two")),
		BytesUpload("job3.pdf", []byte("three")),
		BytesUpload("job4.pdf", []byte("four")),
		failingUpload("job6.pdf"),
		BytesUpload("job5.pdf", []byte("five")),
	}
	res, err := p.Process(context.Background(), "sk-test", files, nil)
	require.NoError(t, err)
	require.Len(t, res.Results, len(files))

	for i, f := range files {
		assert.Equal(t, f.Name, res.Results[i].OriginalName)
	}

	r := res.Results
	assert.Equal(t, "PN-100 Acme Bracket.pdf", r[0].NewName)
	assert.Equal(t, "Success", r[0].Status)

	assert.Equal(t, "PN-200 Beta Unknown.pdf", r[1].NewName)
	assert.Equal(t, "Partial success (missing: Description)", r[1].Status)
	assert.Equal(t, []string{llm.FieldDescription}, r[1].Missing)
	assert.Equal(t, "", r[1].Row().Description, "row shows the extracted value, not the placeholder")

	assert.Equal(t, "Error: No data extracted", r[2].Status)
	assert.Empty(t, r[2].NewName)
	assert.Equal(t, constants.NotRenamed, r[2].Row().NewFilename)

	assert.Equal(t, "Error: No data extracted", r[3].Status)
	assert.Contains(t, r[3].Error, "service overloaded")

	assert.Equal(t, "Error: Could not read file", r[4].Status)
	assert.Contains(t, r[4].Error, "disk gone")

	assert.Equal(t, "PN-5 A_C_Unit Cover.pdf", r[5].NewName)

	assert.Equal(t, []string{"PN-100 Acme Bracket.pdf", "PN-200 Beta Unknown.pdf", "PN-5 A_C_Unit Cover.pdf"},
		archiveNames(t, res.Archive))
	for _, pr := range r {
		assert.Equal(t, pr.Archived(), pr.NewName != "", pr.OriginalName)
	}

	assert.Len(t, ex.calls, 5, "unreadable file is never sent")
	assert.Equal(t, "sk-test", ex.calls[0].APIKey)

	s := res.Summary()
	assert.Equal(t, Summary{Total: 6, Succeeded: 2, Partial: 1, Failed: 3}, s)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Files.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Files.WithLabelValues("read_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "batch temp dir is removed")
}

func TestProcessArchivesOriginalBytes(t *testing.T) {
	ex := &fakeExtractor{answers: map[string]answer{
		"a.pdf": {fields: llm.Fields("C", "P", "D")},
	}}
	p, _ := newTestProcessor(t, ex)

	res, err := p.Process(context.Background(), "k", []Upload{BytesUpload("a.pdf", []byte("%PDF-1.7 body"))}, nil)
	require.NoError(t, err)

	entries, err := archive.Read(res.Archive)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "P C D.pdf", entries[0].Name)
	assert.Equal(t, []byte("%PDF-1.7 body"), entries[0].Data)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestProcessDeduplicatesCollidingNames(t *testing.T) {
	same := llm.Fields("Acme", "PN-1", "Plate")
	ex := &fakeExtractor{answers: map[string]answer{
		"x.pdf": {fields: same},
		"y.pdf": {fields: same},
		"z.pdf": {fields: same},
	}}
	p, _ := newTestProcessor(t, ex)

	res, err := p.Process(context.Background(), "k", []Upload{
		BytesUpload("x.pdf", []byte("x")),
		BytesUpload("y.pdf", []byte("y")),
		BytesUpload("z.pdf", []byte("z")),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"PN-1 Acme Plate.pdf", "PN-1 Acme Plate (2).pdf", "PN-1 Acme Plate (3).pdf"},
		archiveNames(t, res.Archive))
}

func TestProcessRenameCannotClobberPendingOriginal(t *testing.T) {
	// The first file renames to the second file's original name.
	ex := &fakeExtractor{answers: map[string]answer{
		"first.pdf": {fields: llm.Fields("B", "A", "C")},
		"A B C.pdf": {fields: llm.Fields("Other", "Z", "Q")},
	}}
	p, _ := newTestProcessor(t, ex)

	res, err := p.Process(context.Background(), "k", []Upload{
		BytesUpload("first.pdf", []byte("first")),
		BytesUpload("A B C.pdf", []byte("second")),
	}, nil)
	require.NoError(t, err)

	entries, err := archive.Read(res.Archive)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("first"), entries[0].Data)
	assert.Equal(t, []byte("second"), entries[1].Data)
}

func TestProcessPreconditions(t *testing.T) {
	ex := &fakeExtractor{}
	p, _ := newTestProcessor(t, ex)

	_, err := p.Process(context.Background(), "k", nil, nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = p.Process(context.Background(), "  ", []Upload{BytesUpload("a.pdf", nil)}, nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Empty(t, ex.calls)

	keyless, _ := newTestProcessor(t, ex, WithCredentialRequired(false))
	res, err := keyless.Process(context.Background(), "", []Upload{BytesUpload("a.pdf", nil)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Error: No data extracted", res.Results[0].Status)
}

func TestProcessReportsProgress(t *testing.T) {
	ex := &fakeExtractor{answers: map[string]answer{"a.pdf": {fields: llm.Fields("C", "P", "D")}}}
	p, _ := newTestProcessor(t, ex)

	var got []Progress
	_, err := p.Process(context.Background(), "k", []Upload{
		BytesUpload("a.pdf", []byte("a")),
		failingUpload("b.pdf"),
	}, func(pr Progress) { got = append(got, pr) })
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, "Processing a.pdf... (1/2)", got[0].Message)
	assert.Equal(t, 0.0, got[0].Fraction)
	assert.Equal(t, "Processing b.pdf... (2/2)", got[1].Message)
	assert.Equal(t, 0.5, got[1].Fraction)
	assert.Contains(t, got[2].Message, "Error reading b.pdf")

	last := got[len(got)-1]
	assert.Equal(t, "Processing complete!", last.Message)
	assert.Equal(t, 1.0, last.Fraction)
	assert.Equal(t, 2, last.Done)
	assert.Equal(t, 2, last.Total)
}

func TestProcessPacesAndCaches(t *testing.T) {
	ex := &fakeExtractor{answers: map[string]answer{
		"a.pdf": {fields: llm.Fields("C", "P", "D")},
		"b.pdf": {fields: llm.TravelerFields{}},
	}}
	lim := &countingLimiter{}
	c := &memCache{entries: map[string]llm.TravelerFields{
		"cached": llm.Fields("Cached", "PN-C", "Hit"),
	}}
	p, _ := newTestProcessor(t, ex, WithLimiter(lim), WithCache(c))

	res, err := p.Process(context.Background(), "k", []Upload{
		BytesUpload("a.pdf", []byte("a")),
		BytesUpload("hit.pdf", []byte("cached")),
		BytesUpload("b.pdf", []byte("b")),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, lim.waits, "cache hits skip the limiter")
	assert.Len(t, ex.calls, 2)
	assert.Equal(t, 1, c.puts, "only non-empty extractions are cached")
	assert.Equal(t, "PN-C Cached Hit.pdf", res.Results[1].NewName)
}

func TestProcessAbortsOnCancelAndPacingFailure(t *testing.T) {
	ex := &fakeExtractor{}
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProcessor(nil, ex, WithTempRoot(root), WithLimiter(&countingLimiter{}))
	res, err := p.Process(ctx, "k", []Upload{BytesUpload("a.pdf", []byte("a"))}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)

	p = NewProcessor(nil, ex, WithTempRoot(root), WithLimiter(failingLimiter{}))
	res, err = p.Process(context.Background(), "k", []Upload{BytesUpload("a.pdf", []byte("a"))}, nil)
	require.Error(t, err)
	assert.Nil(t, res)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "job.pdf", baseName("job.pdf"))
	assert.Equal(t, "job.pdf", baseName("../../job.pdf"))
	assert.Equal(t, "job.pdf", baseName(`C:\Users\me\job.pdf`))
	assert.Equal(t, "upload.pdf", baseName(""))
}

func TestPartialStatus(t *testing.T) {
	assert.Equal(t, "Success", PartialStatus(nil))
	assert.Equal(t, "Partial success (missing: Customer, Part Number)",
		PartialStatus([]string{llm.FieldCustomer, llm.FieldPartNumber}))
	assert.Equal(t, constants.KindPartial, KindOf("Partial success (missing: Description)"))
	assert.Equal(t, constants.KindError, KindOf("Error: No data extracted"))
}

func TestProcessAwkwardFieldValues(t *testing.T) {
	ex := &fakeExtractor{answers: map[string]answer{
		"a.pdf": {fields: llm.Fields("Acme", "PN-1", "Bracket")},
		"b.pdf": {fields: llm.Fields("Acme", "PN-2", strings.Repeat("部品説明", 30))},
		"c.pdf": {fields: llm.Fields("Nul\x00Byte", "PN-3", "Pin")},
		"d.pdf": {fields: llm.TravelerFields{Unrecognized: []string{"customer_id"}}},
	}}
	p, _ := newTestProcessor(t, ex)

	files := []Upload{
		BytesUpload("a.pdf", []byte("a")),
		BytesUpload("b.pdf", []byte("b")),
		BytesUpload("c.pdf", []byte("c")),
		BytesUpload("d.pdf", []byte("d")),
	}
	res, err := p.Process(context.Background(), "sk-test", files, nil)
	require.NoError(t, err)
	require.Len(t, res.Results, 4)

	long := res.Results[1]
	assert.True(t, long.Archived(), long.Status)
	assert.LessOrEqual(t, len(long.NewName), constants.MaxNameBytes)
	assert.True(t, utf8.ValidString(long.NewName))

	assert.Equal(t, "PN-3 Nul_Byte Pin.pdf", res.Results[2].NewName)

	assert.Equal(t, "Unknown Unknown Unknown.pdf", res.Results[3].NewName)
	assert.Equal(t, "Partial success (missing: Customer, Part Number, Description)", res.Results[3].Status)

	assert.Len(t, archiveNames(t, res.Archive), 4)
}

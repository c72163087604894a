package archive

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterKeepsOrderAndDeflates(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.Add("b.pdf", []byte("second?")))
	require.NoError(t, w.Add("a.pdf", bytes.Repeat([]byte("A"), 4096)))
	assert.Equal(t, []string{"b.pdf", "a.pdf"}, w.Names())

	data, err := w.Close()
	require.NoError(t, err)

	entries, err := Read(data)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b.pdf", entries[0].Name)
	assert.Equal(t, []byte("second?"), entries[0].Data)
	assert.Equal(t, "a.pdf", entries[1].Name)
	assert.Len(t, entries[1].Data, 4096)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method)
	}
}

func TestWriterRejectsDuplicatesAndWritesAfterClose(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.Add("a.pdf", []byte("1")))
	assert.ErrorIs(t, w.Add("a.pdf", []byte("2")), ErrDuplicateName)

	_, err := w.Close()
	require.NoError(t, err)
	assert.ErrorIs(t, w.Add("c.pdf", nil), ErrClosed)
	_, err = w.Close()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEmptyArchiveIsValid(t *testing.T) {
	data, err := NewWriter().Close()
	require.NoError(t, err)
	entries, err := Read(data)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

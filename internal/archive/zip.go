// Package archive assembles the renamed documents into a single ZIP download.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"
)

var (
	ErrClosed        = errors.New("archive: already sealed")
	ErrDuplicateName = errors.New("archive: duplicate entry name")
)

// Writer collects (name, bytes) entries in insertion order with DEFLATE compression.
type Writer struct {
	buf      bytes.Buffer
	zw       *zip.Writer
	names    map[string]struct{}
	order    []string
	modified time.Time
	sealed   bool
}

func NewWriter() *Writer {
	w := &Writer{names: make(map[string]struct{}), modified: time.Now()}
	w.zw = zip.NewWriter(&w.buf)
	return w
}

// Add appends one entry.
func (w *Writer) Add(name string, data []byte) error {
	if w.sealed {
		return ErrClosed
	}
	if _, dup := w.names[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	f, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.modified,
	})
	if err != nil {
		return fmt.Errorf("create entry %q: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write entry %q: %w", name, err)
	}
	w.names[name] = struct{}{}
	w.order = append(w.order, name)
	return nil
}

// Names lists entries in the order they were added.
func (w *Writer) Names() []string {
	return append([]string(nil), w.order...)
}

// Len is the number of entries written so far.
func (w *Writer) Len() int { return len(w.order) }

// Close seals the archive and returns its bytes. Further Adds fail.
func (w *Writer) Close() ([]byte, error) {
	if w.sealed {
		return nil, ErrClosed
	}
	w.sealed = true
	if err := w.zw.Close(); err != nil {
		return nil, fmt.Errorf("seal archive: %w", err)
	}
	return w.buf.Bytes(), nil
}

// Entry is one file read back from an archive.
type Entry struct {
	Name string
	Data []byte
}

// Read lists the entries of a ZIP archive in stored order.
func Read(data []byte) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	out := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %q: %w", f.Name, err)
		}
		var b bytes.Buffer
		_, err = b.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read entry %q: %w", f.Name, err)
		}
		out = append(out, Entry{Name: f.Name, Data: b.Bytes()})
	}
	return out, nil
}

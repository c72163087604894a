// Package ingest finds PDF job travelers on disk and hands them to the batch processor.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/traveler-renamer/internal/batch"
)

type CollectOptions struct {
	Recursive  bool
	SkipHidden bool
}

type Stats struct {
	Scanned int
	Matched int
	Skipped int
}

// Collect expands paths (files or directories) into uploads in a stable order: arguments in
// the order given, directory contents in lexical order. Explicit file arguments are kept
// even when their extension is not pdf; directory entries are filtered.
func Collect(paths []string, opts CollectOptions) ([]batch.Upload, Stats, error) {
	if len(paths) == 0 {
		return nil, Stats{}, errors.New("at least one path is required")
	}

	var uploads []batch.Upload
	var stats Stats
	for _, root := range paths {
		root = strings.TrimSpace(root)
		info, err := os.Stat(root)
		if err != nil {
			return nil, stats, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			stats.Scanned++
			stats.Matched++
			uploads = append(uploads, FileUpload(root))
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if path != root && opts.SkipHidden && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				stats.Skipped++
				return nil
			}
			if d.IsDir() {
				if path != root && !opts.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			stats.Scanned++
			if !allowedPath(path) {
				stats.Skipped++
				return nil
			}
			stats.Matched++
			uploads = append(uploads, FileUpload(path))
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return uploads, stats, nil
}

// FileUpload names the upload after the file's base name and opens it lazily.
func FileUpload(path string) batch.Upload {
	return batch.Upload{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

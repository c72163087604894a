package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/traveler-renamer/constants"
)

// AllowedExt checks if a file extension is in the allowed set (pdf).
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}

func allowedPath(path string) bool {
	return AllowedExt(filepath.Ext(path))
}

// Package naming derives archive-safe file names from extracted traveler fields.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/traveler-renamer/constants"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
)

var invalidChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

const pdfExt = ".pdf"

// Sanitize replaces characters that are not allowed in file names, and control characters,
// with '_' and truncates the result to constants.MaxNameLen characters. The cut also keeps the
// UTF-8 encoding within constants.MaxNameBytes and always falls on a rune boundary.
func Sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
	return clip(invalidChars.Replace(name), constants.MaxNameLen, constants.MaxNameBytes)
}

// Compose builds "{Part Number} {Customer} {Description}.pdf" from fields, substituting the
// placeholder for any missing value, and sanitizes it. It also returns the fields that were
// defaulted.
func Compose(fields llm.TravelerFields) (string, []string) {
	missing := fields.Missing()
	value := func(name string) string {
		for _, m := range missing {
			if m == name {
				return constants.Placeholder
			}
		}
		return fields.Value(name)
	}
	name := fmt.Sprintf("%s %s %s.pdf",
		value(llm.FieldPartNumber),
		value(llm.FieldCustomer),
		value(llm.FieldDescription),
	)
	return Sanitize(name), missing
}

// Deduper hands out unique names within one batch: the second "a.pdf" becomes "a (2).pdf".
// Comparison is case-insensitive so archives extract cleanly on Windows and macOS.
type Deduper struct {
	seen map[string]struct{}
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Unique returns name, or name with the lowest free " (n)" suffix.
func (d *Deduper) Unique(name string) string {
	if d.claim(name) {
		return name
	}
	// only a real ".pdf" counts as the extension; a truncated name may end in any tail
	base, ext := name, ""
	if strings.EqualFold(filepath.Ext(name), pdfExt) {
		base, ext = name[:len(name)-len(pdfExt)], name[len(name)-len(pdfExt):]
	}
	for n := 2; ; n++ {
		suffix := fmt.Sprintf(" (%d)%s", n, ext)
		candidate := clip(base,
			constants.MaxNameLen-utf8.RuneCountInString(suffix),
			constants.MaxNameBytes-len(suffix),
		) + suffix
		if d.claim(candidate) {
			return candidate
		}
	}
}

func (d *Deduper) claim(name string) bool {
	key := strings.ToLower(name)
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// clip cuts s to at most maxRunes runes and maxBytes bytes.
func clip(s string, maxRunes, maxBytes int) string {
	n := 0
	for i, r := range s {
		if n >= maxRunes || i+utf8.RuneLen(r) > maxBytes {
			return s[:i]
		}
		n++
	}
	return s
}

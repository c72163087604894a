package constants

import "strings"

const (
	// ArchiveName is the download name of the renamed archive.
	ArchiveName = "renamed_pdfs.zip"
	// ArchiveMIME is the content type of the archive.
	ArchiveMIME = "application/zip"
	// PDFMediaType is sent with every document block.
	PDFMediaType = "application/pdf"
	// ReportName is the download name of the XLSX results report.
	ReportName = "processing_results.xlsx"
	// ReportMIME is the content type of the XLSX report.
	ReportMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// MaxNameLen keeps names under the common 255 character limit.
	MaxNameLen = 240
	// MaxNameBytes keeps encoded names under the 255 byte limit of most Linux filesystems.
	MaxNameBytes = 240
	// Placeholder replaces a field the extractor did not find.
	Placeholder = "Unknown"
	// NotRenamed is shown in the results table when a file kept its name.
	NotRenamed = "N/A"
)

// AllowedExtensions holds the file extensions accepted for processing.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without dot) is accepted.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

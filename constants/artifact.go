package constants

import "strings"

// ArtifactKind classifies an inbound artifact before fan-out.
type ArtifactKind string

const (
	ArtifactImage ArtifactKind = "image"
	ArtifactPDF   ArtifactKind = "pdf"
	ArtifactText  ArtifactKind = "text"
)

// UnitKind classifies one extraction unit. A PDF artifact fans out into
// pdf_page units; image and text artifacts map 1:1.
type UnitKind string

const (
	UnitImage   UnitKind = "image"
	UnitPDFPage UnitKind = "pdf_page"
	UnitText    UnitKind = "text"
)

// AllowedImageExtensions holds the image formats we accept from the transport.
var AllowedImageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtAllowed reports whether a file extension names a format we ingest:
// the allowed image formats, PDF, or plain text.
func ExtAllowed(ext string) bool {
	ext = NormalizeExt(ext)
	if _, ok := AllowedImageExtensions[ext]; ok {
		return true
	}
	return ext == "pdf" || ext == "txt"
}

// KindForMIME maps a sniffed mime type to an artifact kind.
// Returns false for anything we do not ingest.
func KindForMIME(mime string) (ArtifactKind, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case mime == "application/pdf":
		return ArtifactPDF, true
	case strings.HasPrefix(mime, "image/"):
		return ArtifactImage, true
	case strings.HasPrefix(mime, "text/"):
		return ArtifactText, true
	default:
		return "", false
	}
}

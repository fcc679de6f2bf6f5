package constants

import "strings"

// MIMEPDF is the only content type the pipeline accepts.
const MIMEPDF = "application/pdf"

// AllowedExtensions holds the file extensions the registrar accepts from a folder listing.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDF reports whether a listing entry looks like a PDF by MIME type or name.
func IsPDF(mimeType, name string) bool {
	if strings.EqualFold(strings.TrimSpace(mimeType), MIMEPDF) {
		return true
	}
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	_, ok := AllowedExtensions[NormalizeExt(name[i:])]
	return ok
}

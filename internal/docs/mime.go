package docs

import (
	"mime"
	"path/filepath"
	"strings"
)

const (
	// MIMETypeDirectory is the fixed type reported for directory nodes.
	MIMETypeDirectory = "inode/directory"

	// MIMETypeDefault is reported when the extension maps to nothing.
	MIMETypeDefault = "application/octet-stream"

	// MIMETypeAny is the root-level supported-type filter.
	MIMETypeAny = "*/*"
)

// MIMETypeFor derives a file's MIME type from its name's extension against
// the standard extension table, without media parameters.
func MIMETypeFor(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return MIMETypeDefault
	}
	mt := mime.TypeByExtension(ext)
	if mt == "" {
		return MIMETypeDefault
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// IsDirectoryMIME reports whether a MIME type denotes a directory node.
func IsDirectoryMIME(mt string) bool {
	return mt == MIMETypeDirectory
}

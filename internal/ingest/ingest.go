// Package ingest feeds PDFs found on disk into the extraction lifecycle,
// either once over a directory tree or continuously from a watched inbox.
package ingest

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/nfse-reader/constants"
)

// Submitter accepts one document and returns the id of the task created for it.
type Submitter interface {
	Submit(ctx context.Context, name string, r io.Reader) (int64, error)
}

// Allowed reports whether path has an accepted document extension.
func Allowed(path string) bool {
	return constants.IsAllowedFile(path)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

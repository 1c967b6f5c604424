// Package fileid provides canonical file identities keyed by resolved path.
package fileid

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"go.lsp.dev/uri"
)

// ErrNotLocal is returned when a URI does not address a file on the local
// filesystem.
var ErrNotLocal = errors.New("not a local file URI")

// ID is a canonicalized absolute path together with its file URI.
//
// The URI is always derived from the canonical path, so two IDs compare equal
// (and hash equally as map keys) exactly when their canonical paths match.
// Canonical paths contain no "." or ".." segments, no repeated separators and
// no symbolic links.
type ID struct {
	path string
	uri  uri.URI
}

// FromPath canonicalizes path and returns its identity. It fails if the
// path does not exist or cannot be resolved.
func FromPath(path string) (ID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ID{}, fmt.Errorf("canonicalizing %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return ID{}, fmt.Errorf("canonicalizing %s: %w", path, err)
	}
	return ID{path: resolved, uri: uri.File(resolved)}, nil
}

// FromURI converts a file URI to a path and canonicalizes it.
func FromURI(u uri.URI) (ID, error) {
	parsed, err := url.Parse(string(u))
	if err != nil {
		return ID{}, fmt.Errorf("parsing URI %s: %w", u, err)
	}
	if parsed.Scheme != uri.FileScheme {
		return ID{}, fmt.Errorf("%s: %w", u, ErrNotLocal)
	}
	return FromPath(u.Filename())
}

// Path returns the canonical filesystem path.
func (id ID) Path() string { return id.path }

// URI returns the file URI of the canonical path.
func (id ID) URI() uri.URI { return id.uri }

// IsZero reports whether id was never constructed.
func (id ID) IsZero() bool { return id.path == "" }

// Name returns the last element of the canonical path.
func (id ID) Name() string { return filepath.Base(id.path) }

// Dir returns the directory containing the file.
func (id ID) Dir() string { return filepath.Dir(id.path) }

func (id ID) String() string { return id.path }

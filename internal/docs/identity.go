package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DocumentID names a node in the document tree. An identifier in use is
// always the canonical absolute path of the node it was minted for; once the
// node is renamed or deleted the identifier is never repointed at anything
// else.
type DocumentID string

// Identity maps between document identifiers and filesystem locations for a
// fixed set of roots. Pure and stateless: it never touches the filesystem.
type Identity struct {
	roots []string
}

// NewIdentity builds an identity over the given root directories.
func NewIdentity(roots ...string) *Identity {
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(r))
	}
	return &Identity{roots: cleaned}
}

// IDFor returns the identifier for a filesystem path.
func (i *Identity) IDFor(path string) DocumentID {
	return DocumentID(filepath.Clean(path))
}

// PathFor resolves an identifier back to its filesystem path. It fails with
// ErrInvalidArgument when the identifier is not a canonical absolute path
// under a configured root; existence is not checked here.
func (i *Identity) PathFor(id DocumentID) (string, error) {
	p := string(id)
	if p == "" || !filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: identifier %q is not an absolute path", ErrInvalidArgument, p)
	}
	if filepath.Clean(p) != p {
		return "", fmt.Errorf("%w: identifier %q is not canonical", ErrInvalidArgument, p)
	}
	if !i.Contains(p) {
		return "", fmt.Errorf("%w: identifier %q is outside the configured roots", ErrInvalidArgument, p)
	}
	return p, nil
}

// Contains reports whether path falls under one of the configured roots.
func (i *Identity) Contains(path string) bool {
	for _, r := range i.roots {
		if path == r || strings.HasPrefix(path, r+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// Roots returns the configured root paths.
func (i *Identity) Roots() []string {
	out := make([]string, len(i.roots))
	copy(out, i.roots)
	return out
}

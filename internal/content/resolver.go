package content

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Scheme is the prefix every externally-chosen resource identifier carries.
const Scheme = "content://"

var (
	ErrNotFound = errors.New("content not found")
	ErrDenied   = errors.New("permission denied")
)

// IsContentRef reports whether an identifier looks like a content reference.
// Operations on externally-chosen resources must check this before touching
// any external system.
func IsContentRef(uri string) bool {
	return strings.HasPrefix(uri, Scheme) && len(uri) > len(Scheme)
}

// Info is the metadata a resolver reports for one content reference.
type Info struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
}

// Resolver opens, creates, inspects and removes externally-chosen resources
// by content reference. It stands in for the platform resolver that owns
// resources outside the sandbox.
type Resolver interface {
	Open(uri string) (io.ReadCloser, error)
	Create(uri string) (io.WriteCloser, error)
	Stat(uri string) (*Info, error)
	Remove(uri string) error
}

// GrantChecker answers whether a persistent grant currently covers a uri.
type GrantChecker interface {
	Has(uri string) (bool, error)
}

// Local resolves content references under one authority against a local
// directory. When a grant checker is attached, access to ungranted
// references is denied.
type Local struct {
	authority string
	root      string
	grants    GrantChecker
}

// NewLocal creates a resolver for content://<authority>/... references
// rooted at dir. A nil checker disables grant enforcement.
func NewLocal(authority, dir string, checker GrantChecker) *Local {
	return &Local{
		authority: authority,
		root:      filepath.Clean(dir),
		grants:    checker,
	}
}

// URIFor builds the content reference for a path relative to the resolver root.
func (l *Local) URIFor(rel string) string {
	return Scheme + l.authority + "/" + strings.TrimPrefix(rel, "/")
}

// Open opens a resource for reading.
func (l *Local) Open(uri string) (io.ReadCloser, error) {
	path, err := l.path(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, err
	}
	return f, nil
}

// Create opens a resource for writing, creating or truncating it.
func (l *Local) Create(uri string) (io.WriteCloser, error) {
	path, err := l.path(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", uri, err)
	}
	return f, nil
}

// Stat reports metadata for a resource. The MIME type is derived from the
// name's extension and may be empty when the extension is unknown.
func (l *Local) Stat(uri string) (*Info, error) {
	path, err := l.path(uri)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}

	mt := mime.TypeByExtension(filepath.Ext(info.Name()))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	return &Info{
		Name:     info.Name(),
		Size:     info.Size(),
		MIMEType: mt,
	}, nil
}

// Remove deletes a resource.
func (l *Local) Remove(uri string) error {
	path, err := l.path(uri)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return fmt.Errorf("remove %s: %w", uri, err)
	}
	return nil
}

func (l *Local) path(uri string) (string, error) {
	prefix := Scheme + l.authority + "/"
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("%w: unresolvable reference %q", ErrNotFound, uri)
	}
	if err := l.checkGrant(uri); err != nil {
		return "", err
	}
	rel := strings.TrimPrefix(uri, prefix)
	// Clean against the virtual root so ".." cannot escape.
	rel = filepath.Clean("/" + rel)
	return filepath.Join(l.root, rel), nil
}

func (l *Local) checkGrant(uri string) error {
	if l.grants == nil {
		return nil
	}
	ok, err := l.grants.Has(uri)
	if err != nil {
		return fmt.Errorf("%w: grant lookup failed for %s", ErrDenied, uri)
	}
	if !ok {
		return fmt.Errorf("%w: no grant for %s", ErrDenied, uri)
	}
	return nil
}

package docs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/safgate/safgate/internal/logging"
)

// Well-known root identifiers.
const (
	RootIDInternal = "internal"
	RootIDExternal = "external"
)

// Mode selects how a document is opened.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	ModeReadWrite
	ModeTruncate
)

// ParseMode parses the external open-mode string.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "r":
		return ModeRead, nil
	case "w":
		return ModeWrite, nil
	case "rw":
		return ModeReadWrite, nil
	case "wt":
		return ModeTruncate, nil
	default:
		return 0, fmt.Errorf("%w: unsupported open mode %q", ErrInvalidArgument, s)
	}
}

func (m Mode) osFlags() int {
	switch m {
	case ModeWrite:
		return os.O_WRONLY
	case ModeReadWrite:
		return os.O_RDWR
	case ModeTruncate:
		return os.O_WRONLY | os.O_TRUNC
	default:
		return os.O_RDONLY
	}
}

type rootDir struct {
	id       string
	title    string
	summary  string
	path     string
	optional bool // omitted from listings when unreachable
}

// Tree answers structural and mutating queries over the configured sandbox
// roots. Every answer is derived from live filesystem state; nothing is
// cached between calls, so concurrent callers see last-writer-wins semantics
// with no cross-call atomicity beyond single syscalls.
type Tree struct {
	identity *Identity
	roots    []rootDir
	log      *logging.Logger
}

// NewTree builds a tree over the internal sandbox directory and, when
// configured, the external one. The internal directory is created if absent.
func NewTree(internalPath, externalPath string, log *logging.Logger) (*Tree, error) {
	if internalPath == "" {
		return nil, fmt.Errorf("%w: internal root path is required", ErrInvalidArgument)
	}
	internalPath = filepath.Clean(internalPath)
	if err := os.MkdirAll(internalPath, 0o755); err != nil {
		return nil, fmt.Errorf("prepare internal root: %w", err)
	}

	roots := []rootDir{{
		id:      RootIDInternal,
		title:   "Internal Storage",
		summary: "Application internal storage",
		path:    internalPath,
	}}

	paths := []string{internalPath}
	if externalPath != "" {
		externalPath = filepath.Clean(externalPath)
		roots = append(roots, rootDir{
			id:       RootIDExternal,
			title:    "External Storage",
			summary:  "Application external storage",
			path:     externalPath,
			optional: true,
		})
		paths = append(paths, externalPath)
	}

	return &Tree{
		identity: NewIdentity(paths...),
		roots:    roots,
		log:      log.Named("docs"),
	}, nil
}

// Identity returns the identifier mapping for this tree.
func (t *Tree) Identity() *Identity {
	return t.identity
}

// ListRoots returns the fixed root set. It never fails; an unreachable
// external root is simply omitted. Available bytes reflect live free space
// at call time.
func (t *Tree) ListRoots() []Root {
	out := make([]Root, 0, len(t.roots))
	for _, r := range t.roots {
		if _, err := os.Stat(r.path); err != nil {
			if r.optional {
				continue
			}
			t.log.Warn("root unreachable", zap.String("root", r.id), zap.Error(err))
		}
		out = append(out, Root{
			ID:             r.id,
			Title:          r.title,
			Summary:        r.summary,
			Icon:           "drive",
			Flags:          RootFlagLocalOnly | RootFlagSupportsCreate,
			MIMETypes:      MIMETypeAny,
			DocumentID:     t.identity.IDFor(r.path),
			AvailableBytes: freeBytes(r.path),
		})
	}
	return out
}

// Root resolves a single root by id.
func (t *Tree) Root(rootID string) (*Root, error) {
	for _, r := range t.ListRoots() {
		if r.ID == rootID {
			root := r
			return &root, nil
		}
	}
	return nil, fmt.Errorf("%w: root %q", ErrNotFound, rootID)
}

// Describe resolves an identifier to a point-in-time document record.
func (t *Tree) Describe(id DocumentID) (*Document, error) {
	path, err := t.identity.PathFor(id)
	if err != nil {
		return nil, err
	}
	return t.record(path)
}

// ListChildren enumerates the immediate children of a directory in
// filesystem-enumeration order. Entries that vanish between enumeration and
// inspection are skipped rather than failing the whole listing.
func (t *Tree) ListChildren(parentID DocumentID) ([]Document, error) {
	parent, err := t.identity.PathFor(parentID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(parent)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, parentID)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, parentID)
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, parentID)
	}

	children := make([]Document, 0, len(entries))
	for _, entry := range entries {
		doc, err := t.record(filepath.Join(parent, entry.Name()))
		if err != nil {
			t.log.Debug("skipping child that vanished during enumeration",
				zap.String("parent", string(parentID)), zap.String("name", entry.Name()))
			continue
		}
		children = append(children, *doc)
	}
	return children, nil
}

// Open opens a document for streaming. The mode maps directly onto the
// underlying filesystem open mode; no buffering or transformation is done.
func (t *Tree) Open(id DocumentID, mode Mode) (*os.File, error) {
	path, err := t.identity.PathFor(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	f, err := os.OpenFile(path, mode.osFlags(), 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return f, nil
}

// Create makes a new child node under a directory. A directory MIME type
// creates a directory node, anything else an empty file. The new node's
// identifier is its canonical path.
func (t *Tree) Create(parentID DocumentID, mimeType, displayName string) (DocumentID, error) {
	parent, err := t.identity.PathFor(parentID)
	if err != nil {
		return "", err
	}
	if err := validateName(displayName); err != nil {
		return "", err
	}

	info, err := os.Stat(parent)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, parentID)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotADirectory, parentID)
	}

	target := filepath.Join(parent, displayName)
	if _, err := os.Lstat(target); err == nil {
		return "", fmt.Errorf("%w: %q already exists", ErrCreateFailed, displayName)
	}

	if IsDirectoryMIME(mimeType) {
		if err := os.Mkdir(target, 0o755); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
		}
	} else {
		f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
		}
		f.Close()
	}

	return t.identity.IDFor(target), nil
}

// Delete removes exactly the named node. Deleting a non-empty directory
// fails, matching underlying filesystem semantics.
func (t *Tree) Delete(id DocumentID) error {
	path, err := t.identity.PathFor(id)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// Rename moves a node within its parent directory and returns the new
// identifier. The old identifier is invalid the instant the move lands.
func (t *Tree) Rename(id DocumentID, newDisplayName string) (DocumentID, error) {
	path, err := t.identity.PathFor(id)
	if err != nil {
		return "", err
	}
	if err := validateName(newDisplayName); err != nil {
		return "", err
	}
	if _, err := os.Lstat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	target := filepath.Join(filepath.Dir(path), newDisplayName)
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenameFailed, err)
	}
	return t.identity.IDFor(target), nil
}

// RootUsage walks a root and totals the bytes and file count beneath it.
func (t *Tree) RootUsage(rootID string) (*Usage, error) {
	var base string
	for _, r := range t.roots {
		if r.id == rootID {
			base = r.path
		}
	}
	if base == "" {
		return nil, fmt.Errorf("%w: root %q", ErrNotFound, rootID)
	}

	usage := &Usage{RootID: rootID}
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, base, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		usage.Bytes += info.Size()
		usage.Files++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: root %q", ErrNotFound, rootID)
	}
	return usage, nil
}

// record derives a document record from the live filesystem entry.
func (t *Tree) record(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	mimeType := MIMETypeDirectory
	if !info.IsDir() {
		mimeType = MIMETypeFor(info.Name())
	}

	return &Document{
		ID:           t.identity.IDFor(path),
		DisplayName:  info.Name(),
		MIMEType:     mimeType,
		LastModified: info.ModTime().UnixMilli(),
		Flags:        FlagsFor(path, info),
		Size:         info.Size(),
	}, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%w: display name %q", ErrInvalidArgument, name)
	}
	return nil
}

func freeBytes(path string) uint64 {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0
	}
	return st.Bavail * uint64(st.Bsize)
}

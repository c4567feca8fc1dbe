package docs

import (
	"os"

	"golang.org/x/sys/unix"
)

// Flags describes which mutating operations a document currently supports.
type Flags uint32

const (
	FlagSupportsWrite Flags = 1 << iota
	FlagSupportsDelete
	FlagSupportsRename
	FlagDirSupportsCreate
)

// Has reports whether all bits in f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Strings returns the flag names for listing columns.
func (f Flags) Strings() []string {
	names := []string{}
	if f.Has(FlagSupportsWrite) {
		names = append(names, "supports-write")
	}
	if f.Has(FlagSupportsDelete) {
		names = append(names, "supports-delete")
	}
	if f.Has(FlagSupportsRename) {
		names = append(names, "supports-rename")
	}
	if f.Has(FlagDirSupportsCreate) {
		names = append(names, "supports-create")
	}
	return names
}

// RootFlags describes capabilities of a root.
type RootFlags uint32

const (
	RootFlagLocalOnly RootFlags = 1 << iota
	RootFlagSupportsCreate
)

// FlagsFor computes the access flags for a resolved node from live metadata.
// Writable directories support child creation; writable files support write;
// anything writable also supports delete and rename. Read-only nodes expose
// no mutating flags.
func FlagsFor(path string, info os.FileInfo) Flags {
	if unix.Access(path, unix.W_OK) != nil {
		return 0
	}

	var flags Flags
	if info.IsDir() {
		flags |= FlagDirSupportsCreate
	} else {
		flags |= FlagSupportsWrite
	}
	flags |= FlagSupportsDelete | FlagSupportsRename
	return flags
}

package docs

import "errors"

// Operation failure taxonomy. Callers match with errors.Is; messages carry
// the offending identifier.
var (
	ErrNotFound        = errors.New("document not found")
	ErrNotADirectory   = errors.New("not a directory")
	ErrCreateFailed    = errors.New("create failed")
	ErrDeleteFailed    = errors.New("delete failed")
	ErrRenameFailed    = errors.New("rename failed")
	ErrInvalidArgument = errors.New("invalid argument")
)

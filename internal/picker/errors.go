package picker

import "errors"

var (
	// ErrUserCancelled reports a picker dismissed without a selection.
	ErrUserCancelled = errors.New("user cancelled")

	// ErrNoResult reports a successful picker outcome with an empty payload.
	ErrNoResult = errors.New("no result")

	// ErrUnknownRequest reports a result for an unrecognized request kind.
	ErrUnknownRequest = errors.New("unknown request")

	// ErrInvalidArgument reports malformed dispatch parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

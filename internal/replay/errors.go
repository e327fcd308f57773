package replay

import "errors"

var (
	// ErrBadMagic reports a file that is not a replay container.
	ErrBadMagic = errors.New("replay: bad magic")
	// ErrVersionMismatch reports a replay older than the minimum compatible version.
	ErrVersionMismatch = errors.New("replay: version too old")
	// ErrVersionUnsupported reports a replay written by a newer format than this build reads.
	ErrVersionUnsupported = errors.New("replay: version too new")
	// ErrCorrupt reports a payload whose size or structure does not match its header.
	ErrCorrupt = errors.New("replay: corrupt payload")
	// ErrBusy reports an operation that conflicts with the current manager mode.
	ErrBusy = errors.New("replay: manager busy")
)

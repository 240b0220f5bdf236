// ABOUTME: Sentinel errors for the favorites engine
// ABOUTME: Index bounds, closed model, empty tags and failed remote pushes

package favorites

import "errors"

var (
	// ErrIndexOutOfRange is returned when an index is outside [0, Count).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrEmptyTag is returned when saving a search without a tag
	ErrEmptyTag = errors.New("tag must not be empty")

	// ErrClosed is returned by Model methods after Close
	ErrClosed = errors.New("model closed")

	// ErrRemotePush wraps failures to push a local change. The local change
	// itself has already been persisted when this is returned.
	ErrRemotePush = errors.New("remote push failed")
)

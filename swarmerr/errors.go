// Package swarmerr collects the sentinel error values of §7, following the
// teacher's chain/errors.go convention of one flat var block of plain
// errors.New sentinels per concern, checked with errors.Is rather than an
// error-code enum.
package swarmerr

import "errors"

var (
	// ErrInvalidMessage: codec failure, unknown tag, bad signature,
	// unexpected reply variant.
	ErrInvalidMessage = errors.New("swarm: invalid message")

	// ErrIOError: transport send/receive/connect failure.
	ErrIOError = errors.New("swarm: io error")

	// ErrUnreachable: all URLs of a peer failed to dial.
	ErrUnreachable = errors.New("swarm: peer unreachable")

	// ErrPeerNotFound: no client endpoint for the peer a handler needs.
	ErrPeerNotFound = errors.New("swarm: peer not found")

	// ErrAlreadyRunning: Start called while already running.
	ErrAlreadyRunning = errors.New("swarm: already running")

	// ErrNotStarted: operation requires a bound server endpoint.
	ErrNotStarted = errors.New("swarm: not started")

	// ErrNullArg: a required collection argument was nil.
	ErrNullArg = errors.New("swarm: null argument")

	// ErrRangeError: a numeric argument (e.g. offset) was out of range.
	ErrRangeError = errors.New("swarm: argument out of range")

	// ErrArgError: an argument's shape was otherwise invalid (e.g. a
	// destination slice too short to hold the copy).
	ErrArgError = errors.New("swarm: invalid argument")
)

// PeerError wraps ErrUnreachable/ErrPeerNotFound/ErrIOError with the peer
// address the failure concerns, so callers that need that context can
// extract it while errors.Is(err, swarmerr.ErrUnreachable) still works via
// Unwrap — mirroring the teacher's plain-sentinel style without introducing
// a parallel error-code type.
type PeerError struct {
	Peer string
	Err  error
}

func (e *PeerError) Error() string {
	return e.Err.Error() + ": " + e.Peer
}

func (e *PeerError) Unwrap() error {
	return e.Err
}

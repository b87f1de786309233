package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound means the site has no such room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomOffline means the room exists but is not broadcasting publicly.
	// It is expected and drives the monitor's re-arm.
	ErrRoomOffline = errors.New("room offline")

	// ErrDiscoveryParse means the room page loaded but did not have the expected shape.
	ErrDiscoveryParse = errors.New("discovery parse error")

	// ErrPlaylistFetch means a playlist could not be fetched or decoded.
	ErrPlaylistFetch = errors.New("playlist fetch failed")

	// ErrSegmentFetch means a segment could not be downloaded within the retry budget.
	ErrSegmentFetch = errors.New("segment fetch failed")

	// ErrIO means writing the output file failed.
	ErrIO = errors.New("output write failed")
)

// DiscoveryError is returned by the Playlist Resolver. Kind is one of
// ErrRoomNotFound, ErrRoomOffline, ErrDiscoveryParse or ErrPlaylistFetch.
type DiscoveryError struct {
	Room   string
	Kind   error
	Reason string
	Err    error
}

func (e *DiscoveryError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Room, e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DiscoveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// SegmentFetchError reports a segment dropped after all attempts failed.
type SegmentFetchError struct {
	Sequence int64
	URI      string
	Attempts int
	Err      error
}

func (e *SegmentFetchError) Error() string {
	return fmt.Sprintf("segment %d failed after %d attempts: %v", e.Sequence, e.Attempts, e.Err)
}

func (e *SegmentFetchError) Unwrap() []error {
	return []error{ErrSegmentFetch, e.Err}
}

// IOError reports a failed operation on an output file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

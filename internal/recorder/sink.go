package recorder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	segmentExt = ".ts"

	// suffixWidth digits keep split suffixes in lexical order up to maxNameAttempts files.
	suffixWidth = 4

	// maxNameAttempts bounds the suffix search when output names collide.
	maxNameAttempts = 10000
)

// FormatFilename expands the filename pattern for room at t. index > 0 adds
// a zero-padded "_NNN" suffix so split files sort in write order. The result
// carries the .ts extension.
func FormatFilename(pattern, room string, t time.Time, index int) string {
	r := strings.NewReplacer(
		"{{.Username}}", room,
		"{{.Year}}", fmt.Sprintf("%04d", t.Year()),
		"{{.Month}}", fmt.Sprintf("%02d", int(t.Month())),
		"{{.Day}}", fmt.Sprintf("%02d", t.Day()),
		"{{.Hour}}", fmt.Sprintf("%02d", t.Hour()),
		"{{.Minute}}", fmt.Sprintf("%02d", t.Minute()),
		"{{.Second}}", fmt.Sprintf("%02d", t.Second()),
	)
	name := r.Replace(pattern)
	if index > 0 {
		name = fmt.Sprintf("%s_%0*d", name, suffixWidth, index)
	}
	return name + segmentExt
}

// SinkOptions configures a Sink.
type SinkOptions struct {
	Room        string
	Directory   string
	Pattern     string
	MaxDuration time.Duration
	MaxBytes    int64
	Now         func() time.Time
}

// Session is one open output file.
type Session struct {
	ID        string
	Path      string
	StartedAt time.Time
	Bytes     int64
	Duration  time.Duration
	Segments  int

	file *os.File
}

// Sink appends whole segments to a room's output files, splitting on the
// configured thresholds. A Sink belongs to one room loop.
type Sink struct {
	opts   SinkOptions
	events EventSink

	session *Session
	index   int
	totals  Stats
	paths   []string
}

// NewSink returns a Sink; no file is created until the first Write.
func NewSink(opts SinkOptions, events EventSink) *Sink {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Pattern == "" {
		opts.Pattern = DefaultOptions().FilenamePattern
	}
	if events == nil {
		events = discardSink{}
	}
	return &Sink{opts: opts, events: events}
}

// Write appends data as one segment. split reports that the file was closed
// after this segment because a threshold was reached; the next Write opens a
// new file. Errors are *IOError.
func (s *Sink) Write(ref SegmentRef, data []byte) (split bool, err error) {
	if s.session == nil {
		if err := s.open(); err != nil {
			return false, err
		}
	}
	sess := s.session

	if _, err := sess.file.Write(data); err != nil {
		// Drop the partial segment so the file still ends on a boundary.
		_ = sess.file.Truncate(sess.Bytes)
		return false, &IOError{Op: "write", Path: sess.Path, Err: err}
	}

	n := int64(len(data))
	sess.Bytes += n
	sess.Duration += ref.Duration
	sess.Segments++
	s.totals.Bytes += n
	s.totals.Duration += ref.Duration
	s.totals.Segments++

	s.events.Emit(Event{
		Room:     s.opts.Room,
		Kind:     EventSegment,
		Time:     s.opts.Now(),
		Session:  sess.ID,
		Path:     sess.Path,
		Sequence: ref.Sequence,
		Bytes:    n,
	})

	if !s.thresholdReached(sess) {
		return false, nil
	}
	if err := s.closeSession(); err != nil {
		return false, err
	}
	s.events.Emit(Event{
		Room:    s.opts.Room,
		Kind:    EventSplit,
		Time:    s.opts.Now(),
		Session: sess.ID,
		Path:    sess.Path,
		Bytes:   sess.Bytes,
	})
	return true, nil
}

func (s *Sink) thresholdReached(sess *Session) bool {
	if s.opts.MaxDuration > 0 && sess.Duration >= s.opts.MaxDuration {
		return true
	}
	return s.opts.MaxBytes > 0 && sess.Bytes >= s.opts.MaxBytes
}

// Close closes the current file, if any. It is safe to call more than once.
func (s *Sink) Close() error {
	if s.session == nil {
		return nil
	}
	return s.closeSession()
}

// Session returns the open session, or nil between files.
func (s *Sink) Session() *Session {
	return s.session
}

// Totals returns counters across every file this sink wrote.
func (s *Sink) Totals() Stats {
	return s.totals
}

// Paths returns the files created so far, in creation order.
func (s *Sink) Paths() []string {
	return append([]string(nil), s.paths...)
}

func (s *Sink) open() error {
	if err := os.MkdirAll(s.opts.Directory, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: s.opts.Directory, Err: err}
	}

	now := s.opts.Now()
	var (
		f    *os.File
		path string
		err  error
	)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		path = filepath.Join(s.opts.Directory, FormatFilename(s.opts.Pattern, s.opts.Room, now, s.index))
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return &IOError{Op: "create", Path: path, Err: err}
		}
		s.index++
	}
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	s.index++

	s.session = &Session{
		ID:        uuid.NewString(),
		Path:      path,
		StartedAt: now,
		file:      f,
	}
	s.paths = append(s.paths, path)
	s.totals.Files++

	s.events.Emit(Event{
		Room:    s.opts.Room,
		Kind:    EventFileOpened,
		Time:    now,
		Session: s.session.ID,
		Path:    path,
	})
	return nil
}

func (s *Sink) closeSession() error {
	sess := s.session
	s.session = nil

	syncErr := sess.file.Sync()
	closeErr := sess.file.Close()
	s.events.Emit(Event{
		Room:    s.opts.Room,
		Kind:    EventFileClosed,
		Time:    s.opts.Now(),
		Session: sess.ID,
		Path:    sess.Path,
		Bytes:   sess.Bytes,
	})
	if syncErr != nil {
		return &IOError{Op: "sync", Path: sess.Path, Err: syncErr}
	}
	if closeErr != nil {
		return &IOError{Op: "close", Path: sess.Path, Err: closeErr}
	}
	return nil
}

package recorder

import (
	"context"
	"time"
)

// State is a room's lifecycle state.
type State string

const (
	StateUnknown   State = "unknown"
	StateOffline   State = "offline"
	StateOnline    State = "online"
	StateResolving State = "resolving"
	StateRecording State = "recording"
	StateEnded     State = "ended"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether s ends a Room Recording Loop.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed || s == StateCancelled
}

// Fetcher is the HTTP capability the recorder depends on.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// PlaylistVariant is one quality of a room's stream, selected from the master playlist.
type PlaylistVariant struct {
	URL        string
	Resolution int // frame height
	Framerate  int
	Bandwidth  int64
}

// SegmentRef identifies one media segment.
type SegmentRef struct {
	Sequence int64
	URI      string
	Duration time.Duration
	Size     int64
}

// Stats are the per-room recording counters.
type Stats struct {
	Segments   int64
	Bytes      int64
	Duration   time.Duration
	Files      int
	Gaps       int
	Recordings int
}

func (s *Stats) add(o Stats) {
	s.Segments += o.Segments
	s.Bytes += o.Bytes
	s.Duration += o.Duration
	s.Files += o.Files
	s.Gaps += o.Gaps
	s.Recordings += o.Recordings
}

// Result is the outcome of a room's recording (or monitoring) run.
type Result struct {
	Room  string
	State State
	// Offline is set when discovery found the room offline.
	Offline bool
	Err     error
	Stats   Stats
}

// Options is the resolved configuration the recorder core runs with.
type Options struct {
	Domain          string
	OutputDirectory string
	FilenamePattern string
	MaxDuration     time.Duration // zero means unlimited
	MaxFileBytes    int64         // zero means unlimited
	Resolution      int
	Framerate       int

	PollInterval    time.Duration
	SeedBacklog     int
	SegmentAttempts int
	RetryDelay      time.Duration
	MaxPollFailures int

	Monitor       bool
	CheckInterval time.Duration

	// RequestsPerSecond limits each room's request rate; zero disables the limit.
	RequestsPerSecond float64
}

const (
	DefaultPollInterval    = time.Second
	DefaultSeedBacklog     = 3
	DefaultSegmentAttempts = 3
	DefaultRetryDelay      = 600 * time.Millisecond
	DefaultMaxPollFailures = 3
	DefaultCheckInterval   = 60 * time.Second
)

// DefaultOptions returns Options with the recorder's defaults.
func DefaultOptions() Options {
	return Options{
		OutputDirectory: ".",
		FilenamePattern: "{{.Username}}_{{.Year}}-{{.Month}}-{{.Day}}_{{.Hour}}-{{.Minute}}-{{.Second}}",
		Resolution:      1080,
		Framerate:       30,
		PollInterval:    DefaultPollInterval,
		SeedBacklog:     DefaultSeedBacklog,
		SegmentAttempts: DefaultSegmentAttempts,
		RetryDelay:      DefaultRetryDelay,
		MaxPollFailures: DefaultMaxPollFailures,
		CheckInterval:   DefaultCheckInterval,
	}
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.SeedBacklog < 0 {
		o.SeedBacklog = 0
	}
	if o.SegmentAttempts <= 0 {
		o.SegmentAttempts = DefaultSegmentAttempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.MaxPollFailures <= 0 {
		o.MaxPollFailures = DefaultMaxPollFailures
	}
	if o.CheckInterval <= 0 {
		o.CheckInterval = DefaultCheckInterval
	}
	return o
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package recorder

import (
	"log/slog"
	"time"
)

// EventKind classifies an Event.
type EventKind string

const (
	EventState       EventKind = "state"
	EventFileOpened  EventKind = "file_opened"
	EventSegment     EventKind = "segment"
	EventSplit       EventKind = "split"
	EventFileClosed  EventKind = "file_closed"
	EventGap         EventKind = "gap"
	EventPollFailure EventKind = "poll_failure"
)

// Event is a room lifecycle notification. Fields not relevant to Kind are zero.
type Event struct {
	Room string
	Kind EventKind
	Time time.Time

	// EventState
	State   State
	Prev    State
	Variant *PlaylistVariant

	// file events carry the session; EventSegment and EventGap carry Sequence.
	Session  string
	Path     string
	Sequence int64
	Bytes    int64

	Err error
}

// EventSink receives events from every room. Implementations must be safe
// for concurrent use and must not block.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(e Event) { f(e) }

// Fanout forwards each event to every sink in order.
type Fanout []EventSink

// Emit implements EventSink.
func (f Fanout) Emit(e Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(e)
		}
	}
}

type discardSink struct{}

func (discardSink) Emit(Event) {}

// LogSink logs events with slog.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink returns an EventSink that logs to log.
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Emit implements EventSink.
func (s *LogSink) Emit(e Event) {
	room := slog.String("room", e.Room)
	switch e.Kind {
	case EventState:
		attrs := []any{room, slog.String("state", string(e.State)), slog.String("prev", string(e.Prev))}
		if e.Variant != nil {
			attrs = append(attrs,
				slog.Int("resolution", e.Variant.Resolution),
				slog.Int("framerate", e.Variant.Framerate),
				slog.Int64("bandwidth", e.Variant.Bandwidth))
		}
		if e.Err != nil {
			attrs = append(attrs, slog.Any("error", e.Err))
		}
		if e.State == StateFailed {
			s.log.Error("room state changed", attrs...)
			return
		}
		s.log.Info("room state changed", attrs...)
	case EventFileOpened:
		s.log.Info("recording file opened", room, slog.String("session", e.Session), slog.String("path", e.Path))
	case EventSegment:
		s.log.Debug("segment written", room, slog.Int64("sequence", e.Sequence), slog.Int64("bytes", e.Bytes))
	case EventSplit:
		s.log.Info("recording split", room, slog.String("path", e.Path), slog.Int64("bytes", e.Bytes))
	case EventFileClosed:
		s.log.Info("recording file closed", room, slog.String("path", e.Path), slog.Int64("bytes", e.Bytes))
	case EventGap:
		s.log.Warn("segment dropped", room, slog.Int64("sequence", e.Sequence), slog.Any("error", e.Err))
	case EventPollFailure:
		s.log.Warn("playlist poll failed", room, slog.Any("error", e.Err))
	}
}

// MetricsRecorder is the subset of the metrics registry fed by MetricsSink.
type MetricsRecorder interface {
	AddSegment(room string, n int64)
	IncGaps(room string)
	IncSplits(room string)
	IncPollFailures(room string)
	RecordingStarted(room string)
	RecordingFinished(room, state string)
}

// MetricsSink turns events into counter updates.
type MetricsSink struct {
	m MetricsRecorder
}

// NewMetricsSink returns an EventSink feeding m.
func NewMetricsSink(m MetricsRecorder) *MetricsSink {
	return &MetricsSink{m: m}
}

// Emit implements EventSink.
func (s *MetricsSink) Emit(e Event) {
	switch e.Kind {
	case EventSegment:
		s.m.AddSegment(e.Room, e.Bytes)
	case EventGap:
		s.m.IncGaps(e.Room)
	case EventSplit:
		s.m.IncSplits(e.Room)
	case EventPollFailure:
		s.m.IncPollFailures(e.Room)
	case EventState:
		if e.State == StateRecording {
			s.m.RecordingStarted(e.Room)
		} else if e.Prev == StateRecording && e.State.Terminal() {
			s.m.RecordingFinished(e.Room, string(e.State))
		}
	}
}

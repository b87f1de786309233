package recorder

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Room runs the recording loop for one room. Its state is owned by the
// goroutine running Run, RecordLive or a Monitor wrapping it.
type Room struct {
	id       string
	opts     Options
	fetcher  Fetcher
	resolver *Resolver
	events   EventSink
	log      *slog.Logger
	now      func() time.Time

	state State
}

// NewRoom returns a Room for id. Requests made on its behalf share one
// rate limiter built from opts.RequestsPerSecond.
func NewRoom(id string, fetcher Fetcher, opts Options, events EventSink, log *slog.Logger) *Room {
	opts = opts.withDefaults()
	if events == nil {
		events = discardSink{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fetcher = newLimitedFetcher(fetcher, opts.RequestsPerSecond)
	return &Room{
		id:       id,
		opts:     opts,
		fetcher:  fetcher,
		resolver: NewResolver(fetcher, opts.Domain, opts.Resolution, opts.Framerate),
		events:   events,
		log:      log.With(slog.String("room", id)),
		now:      time.Now,
		state:    StateUnknown,
	}
}

// State returns the room's current state.
func (r *Room) State() State { return r.state }

// Run resolves the room and records it until the stream ends, fails or ctx
// is cancelled. An offline room ends immediately without creating a file.
func (r *Room) Run(ctx context.Context) Result {
	if ctx.Err() != nil {
		return r.finish(Result{Room: r.id, State: StateCancelled})
	}
	r.setState(StateResolving, nil, nil)

	variant, err := r.resolver.Resolve(ctx, r.id)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return r.finish(Result{Room: r.id, State: StateCancelled})
		case errors.Is(err, ErrRoomOffline):
			r.setState(StateOffline, nil, err)
			return r.finish(Result{Room: r.id, State: StateEnded, Offline: true})
		default:
			return r.finish(Result{Room: r.id, State: StateFailed, Err: err})
		}
	}
	return r.RecordLive(ctx, variant)
}

// RecordLive records an already resolved variant. Each call starts a fresh
// tracker and sink.
func (r *Room) RecordLive(ctx context.Context, variant PlaylistVariant) Result {
	r.setState(StateRecording, &variant, nil)
	r.log.Info("recording started",
		slog.String("playlist", variant.URL),
		slog.Int("resolution", variant.Resolution),
		slog.Int("framerate", variant.Framerate))

	tracker := NewTracker(r.fetcher, variant.URL, r.opts.SeedBacklog)
	downloader := NewDownloader(r.fetcher, r.opts.SegmentAttempts, r.opts.RetryDelay)
	sink := NewSink(SinkOptions{
		Room:        r.id,
		Directory:   r.opts.OutputDirectory,
		Pattern:     r.opts.FilenamePattern,
		MaxDuration: r.opts.MaxDuration,
		MaxBytes:    r.opts.MaxFileBytes,
		Now:         r.now,
	}, r.events)

	res := Result{Room: r.id}
	res.State, res.Err = r.record(ctx, tracker, downloader, sink, &res.Stats)
	if err := sink.Close(); err != nil && res.State != StateFailed {
		res.State, res.Err = StateFailed, err
	}

	totals := sink.Totals()
	totals.Gaps = res.Stats.Gaps
	totals.Recordings = 1
	res.Stats = totals
	return r.finish(res)
}

// record is the poll, download, write cycle. Cancellation is checked before
// each poll and each segment; a started write always completes.
func (r *Room) record(ctx context.Context, tracker *Tracker, dl *Downloader, sink *Sink, stats *Stats) (State, error) {
	for {
		if ctx.Err() != nil {
			return StateCancelled, nil
		}

		poll, err := tracker.Poll(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return StateCancelled, nil
		case err != nil:
			r.emit(Event{Kind: EventPollFailure, Err: err})
			if tracker.Failures() >= r.opts.MaxPollFailures {
				return StateFailed, err
			}
		default:
			for _, ref := range poll.Segments {
				if ctx.Err() != nil {
					return StateCancelled, nil
				}
				data, err := dl.Download(ctx, ref)
				if err != nil {
					if ctx.Err() != nil {
						return StateCancelled, nil
					}
					stats.Gaps++
					r.emit(Event{Kind: EventGap, Sequence: ref.Sequence, Err: err})
					continue
				}
				if _, err := sink.Write(ref, data); err != nil {
					return StateFailed, err
				}
			}
			if poll.Ended {
				return StateEnded, nil
			}
		}

		if err := sleep(ctx, r.opts.PollInterval); err != nil {
			return StateCancelled, nil
		}
	}
}

func (r *Room) finish(res Result) Result {
	r.setState(res.State, nil, res.Err)
	attrs := []any{
		slog.String("state", string(res.State)),
		slog.Int64("segments", res.Stats.Segments),
		slog.Int64("bytes", res.Stats.Bytes),
		slog.Duration("duration", res.Stats.Duration),
		slog.Int("files", res.Stats.Files),
		slog.Int("gaps", res.Stats.Gaps),
	}
	if res.Err != nil {
		attrs = append(attrs, slog.Any("error", res.Err))
	}
	r.log.Info("recording finished", attrs...)
	return res
}

func (r *Room) setState(s State, variant *PlaylistVariant, err error) {
	prev := r.state
	r.state = s
	r.emit(Event{Kind: EventState, State: s, Prev: prev, Variant: variant, Err: err})
}

func (r *Room) emit(e Event) {
	e.Room = r.id
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	r.events.Emit(e)
}

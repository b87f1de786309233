package recorder

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Process exit codes reported by Summary.ExitCode. ExitConfig is used by the
// command before any room starts.
const (
	ExitOK     = 0
	ExitConfig = 1
	ExitFailed = 3
)

// Summary collects the results of every room in a supervisor run.
type Summary struct {
	Results []Result
}

// Failed returns the results whose state is Failed.
func (s Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.State == StateFailed {
			out = append(out, r)
		}
	}
	return out
}

// Totals sums the stats of every room.
func (s Summary) Totals() Stats {
	var t Stats
	for _, r := range s.Results {
		t.add(r.Stats)
	}
	return t
}

// ExitCode is ExitFailed if any room failed, else ExitOK.
func (s Summary) ExitCode() int {
	if len(s.Failed()) > 0 {
		return ExitFailed
	}
	return ExitOK
}

// Supervisor runs one loop per room and waits for all of them.
type Supervisor struct {
	rooms   []string
	fetcher Fetcher
	opts    Options
	events  EventSink
	log     *slog.Logger
}

// NewSupervisor returns a Supervisor for rooms. With opts.Monitor set each
// room runs under a Monitor.
func NewSupervisor(rooms []string, fetcher Fetcher, opts Options, events EventSink, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{
		rooms:   rooms,
		fetcher: fetcher,
		opts:    opts.withDefaults(),
		events:  events,
		log:     log,
	}
}

// Run blocks until every room loop has returned. Cancelling ctx stops all
// rooms; one room failing never affects another.
func (s *Supervisor) Run(ctx context.Context) Summary {
	results := make([]Result, len(s.rooms))

	var g errgroup.Group
	for i, id := range s.rooms {
		g.Go(func() error {
			results[i] = s.runRoom(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Results: results}
	totals := summary.Totals()
	s.log.Info("session summary",
		slog.Int("rooms", len(results)),
		slog.Int("failed", len(summary.Failed())),
		slog.Int64("segments", totals.Segments),
		slog.Int64("bytes", totals.Bytes),
		slog.Int("files", totals.Files),
		slog.Int("gaps", totals.Gaps))
	return summary
}

func (s *Supervisor) runRoom(ctx context.Context, id string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("room loop panicked", slog.String("room", id), slog.Any("panic", p))
			res = Result{Room: id, State: StateFailed, Err: fmt.Errorf("room loop panic: %v", p)}
		}
	}()

	room := NewRoom(id, s.fetcher, s.opts, s.events, s.log)
	if s.opts.Monitor {
		return NewMonitor(room, s.opts.CheckInterval).Run(ctx)
	}
	return room.Run(ctx)
}

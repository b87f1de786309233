package recorder

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// MonitorEntry is the liveness-check bookkeeping for one room.
type MonitorEntry struct {
	Room          string
	CheckInterval time.Duration
	LastChecked   time.Time
}

// Monitor waits for a room to go live, records it, and re-arms after every
// recording until its context is cancelled.
type Monitor struct {
	room  *Room
	entry MonitorEntry
}

// NewMonitor returns a Monitor checking room every interval.
func NewMonitor(room *Room, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Monitor{
		room:  room,
		entry: MonitorEntry{Room: room.id, CheckInterval: interval},
	}
}

// Entry returns the monitor's bookkeeping.
func (m *Monitor) Entry() MonitorEntry {
	return m.entry
}

// Run monitors until ctx is done. The returned Result is Cancelled and
// carries stats summed over every recording; Err is the last recording
// failure, if any.
func (m *Monitor) Run(ctx context.Context) Result {
	r := m.room
	total := Result{Room: r.id, State: StateCancelled}

	for {
		if ctx.Err() != nil {
			break
		}
		m.entry.LastChecked = r.now()

		variant, err := r.resolver.Resolve(ctx, r.id)
		switch {
		case err == nil:
			r.setState(StateOnline, &variant, nil)
			res := r.RecordLive(ctx, variant)
			total.Stats.add(res.Stats)
			if res.State == StateFailed {
				total.Err = res.Err
			}
		case ctx.Err() != nil:
		case errors.Is(err, ErrRoomOffline):
			if r.state != StateOffline {
				r.setState(StateOffline, nil, nil)
				r.log.Info("room offline, waiting", slog.Duration("check_interval", m.entry.CheckInterval))
			}
		default:
			r.log.Warn("room check failed", slog.Any("error", err))
		}

		if sleep(ctx, m.entry.CheckInterval) != nil {
			break
		}
	}

	if r.state != StateCancelled {
		r.setState(StateCancelled, nil, nil)
	}
	r.log.Info("monitor stopped",
		slog.Int("recordings", total.Stats.Recordings),
		slog.Int64("bytes", total.Stats.Bytes),
		slog.Int("gaps", total.Stats.Gaps))
	return total
}

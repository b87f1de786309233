package status

import (
	"sort"
	"sync"
	"time"

	"hls-recorder/internal/recorder"
)

// Repository is the concurrency-safe contract for room status. Rooms emit
// from their own goroutines while HTTP handlers read.
type Repository interface {
	// Apply folds one recorder event into the room's status, creating the room
	// on first sight.
	Apply(e recorder.Event)

	// Snapshot returns a copy of the room's status. ok is false for unknown rooms.
	Snapshot(room string) (snap RoomSnapshot, ok bool)

	// List returns snapshots of every room sorted by name.
	List() []RoomSnapshot

	// ActiveCount returns the number of rooms currently recording.
	ActiveCount() int
}

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// Register creates an entry for room in the unknown state so it is listed
// before its first event.
func (r *InMemoryRepository) Register(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreateLocked(room)
}

// Apply implements Repository.Apply.
func (r *InMemoryRepository) Apply(e recorder.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.getOrCreateLocked(e.Room)
	st.UpdatedAt = e.Time
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	switch e.Kind {
	case recorder.EventState:
		st.State = e.State
		if e.Variant != nil {
			v := *e.Variant
			st.Variant = &v
		}
		if e.Err != nil {
			st.LastError = e.Err.Error()
		}
		if e.State == recorder.StateRecording {
			st.LastError = ""
			st.PollFailures = 0
		}
	case recorder.EventFileOpened:
		st.Session = e.Session
		st.Path = e.Path
		st.FileBytes = 0
		st.Files++
	case recorder.EventSegment:
		st.Segments++
		st.Bytes += e.Bytes
		st.FileBytes += e.Bytes
		st.LastSequence = e.Sequence
	case recorder.EventSplit:
		st.Splits++
	case recorder.EventFileClosed:
		st.Session = ""
		st.Path = ""
		st.FileBytes = 0
	case recorder.EventGap:
		st.Gaps++
		if e.Err != nil {
			st.LastError = e.Err.Error()
		}
	case recorder.EventPollFailure:
		st.PollFailures++
		if e.Err != nil {
			st.LastError = e.Err.Error()
		}
	}
}

// Snapshot implements Repository.Snapshot.
func (r *InMemoryRepository) Snapshot(room string) (RoomSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.store.GetRoom(room)
	if !ok {
		return RoomSnapshot{}, false
	}
	return st.snapshot(), true
}

// List implements Repository.List.
func (r *InMemoryRepository) List() []RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.store.ListRoomNames()
	sort.Strings(names)

	out := make([]RoomSnapshot, 0, len(names))
	for _, name := range names {
		if st, ok := r.store.GetRoom(name); ok {
			out = append(out, st.snapshot())
		}
	}
	return out
}

// ActiveCount implements Repository.ActiveCount.
func (r *InMemoryRepository) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, name := range r.store.ListRoomNames() {
		if st, ok := r.store.GetRoom(name); ok && st.State == recorder.StateRecording {
			n++
		}
	}
	return n
}

// getOrCreateLocked returns an existing room or creates a new one.
// Caller must hold r.mu in write mode.
func (r *InMemoryRepository) getOrCreateLocked(room string) *RoomState {
	if st, ok := r.store.GetRoom(room); ok {
		return st
	}
	st := &RoomState{Name: room, State: recorder.StateUnknown}
	r.store.SetRoom(st)
	return st
}

package status

// Store is the persistence abstraction for room status.
// The Repository uses Store for all reads and writes and does its own locking.
type Store interface {
	GetRoom(name string) (*RoomState, bool)
	SetRoom(st *RoomState)
	ListRoomNames() []string
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	rooms map[string]*RoomState
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rooms: make(map[string]*RoomState),
	}
}

// GetRoom implements Store.GetRoom.
func (s *InMemoryStore) GetRoom(name string) (*RoomState, bool) {
	st, ok := s.rooms[name]
	return st, ok
}

// SetRoom implements Store.SetRoom.
func (s *InMemoryStore) SetRoom(st *RoomState) {
	s.rooms[st.Name] = st
}

// ListRoomNames implements Store.ListRoomNames.
func (s *InMemoryStore) ListRoomNames() []string {
	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	return names
}

package status

import (
	"hls-recorder/internal/recorder"
)

// Service is the recorder.EventSink behind the status endpoints.
type Service struct {
	repo Repository
}

// NewService returns a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Emit implements recorder.EventSink.
func (s *Service) Emit(e recorder.Event) {
	if e.Room == "" {
		return
	}
	s.repo.Apply(e)
}

// Room returns the status of one room.
func (s *Service) Room(name string) (RoomSnapshot, bool) {
	return s.repo.Snapshot(name)
}

// Rooms returns the status of every known room.
func (s *Service) Rooms() []RoomSnapshot {
	return s.repo.List()
}

// ActiveRecordings returns how many rooms are recording right now.
func (s *Service) ActiveRecordings() int {
	return s.repo.ActiveCount()
}

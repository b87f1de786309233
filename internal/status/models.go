package status

import (
	"time"

	"hls-recorder/internal/recorder"
)

// RoomState is the status view of one room, built from recorder events.
type RoomState struct {
	Name         string
	State        recorder.State
	Variant      *recorder.PlaylistVariant
	Session      string
	Path         string
	FileBytes    int64
	Segments     int64
	Bytes        int64
	Files        int
	Splits       int
	Gaps         int
	PollFailures int
	LastSequence int64
	LastError    string
	UpdatedAt    time.Time
}

// Variant is the JSON form of the recorded variant.
type Variant struct {
	Resolution int    `json:"resolution"`
	Framerate  int    `json:"framerate"`
	Bandwidth  int64  `json:"bandwidth"`
	URL        string `json:"url"`
}

// RoomSnapshot is the response body for a single room.
type RoomSnapshot struct {
	Room         string    `json:"room"`
	State        string    `json:"state"`
	Variant      *Variant  `json:"variant,omitempty"`
	Session      string    `json:"session,omitempty"`
	CurrentFile  string    `json:"current_file,omitempty"`
	FileBytes    int64     `json:"current_file_bytes"`
	Segments     int64     `json:"segments"`
	Bytes        int64     `json:"bytes"`
	Files        int       `json:"files"`
	Splits       int       `json:"splits"`
	Gaps         int       `json:"gaps"`
	PollFailures int       `json:"poll_failures"`
	LastSequence int64     `json:"last_sequence,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (st *RoomState) snapshot() RoomSnapshot {
	s := RoomSnapshot{
		Room:         st.Name,
		State:        string(st.State),
		Session:      st.Session,
		CurrentFile:  st.Path,
		FileBytes:    st.FileBytes,
		Segments:     st.Segments,
		Bytes:        st.Bytes,
		Files:        st.Files,
		Splits:       st.Splits,
		Gaps:         st.Gaps,
		PollFailures: st.PollFailures,
		LastSequence: st.LastSequence,
		LastError:    st.LastError,
		UpdatedAt:    st.UpdatedAt,
	}
	if v := st.Variant; v != nil {
		s.Variant = &Variant{Resolution: v.Resolution, Framerate: v.Framerate, Bandwidth: v.Bandwidth, URL: v.URL}
	}
	return s
}

package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes recorder status endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type roomsResponse struct {
	Rooms            []RoomSnapshot `json:"rooms"`
	ActiveRecordings int            `json:"active_recordings"`
}

// ListRooms handles GET /rooms.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, roomsResponse{
		Rooms:            h.svc.Rooms(),
		ActiveRecordings: h.svc.ActiveRecordings(),
	})
}

// GetRoom handles GET /rooms/{room}.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	room := chi.URLParam(r, "room")
	if room == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	snap, ok := h.svc.Room(room)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode status response failed", slog.String("error", err.Error()))
	}
}

package status

import (
	"sort"
	"testing"
)

func TestInMemoryStore_GetSetRoom(t *testing.T) {
	store := NewInMemoryStore()

	if _, ok := store.GetRoom("alice"); ok {
		t.Error("expected not found for empty store")
	}

	st := &RoomState{Name: "alice"}
	store.SetRoom(st)

	got, ok := store.GetRoom("alice")
	if !ok || got != st {
		t.Errorf("GetRoom: ok=%v, got %p want %p", ok, got, st)
	}
}

func TestInMemoryStore_ListRoomNames(t *testing.T) {
	store := NewInMemoryStore()
	store.SetRoom(&RoomState{Name: "bob"})
	store.SetRoom(&RoomState{Name: "alice"})
	store.SetRoom(&RoomState{Name: "bob"})

	names := store.ListRoomNames()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Errorf("ListRoomNames: got %v", names)
	}
}

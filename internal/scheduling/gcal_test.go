package scheduling

import (
	"context"
	"testing"
	"time"
)

func TestFreeSlots(t *testing.T) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)
	end := day.Add(17 * time.Hour)

	busy := []Slot{
		{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
	}

	slots := freeSlots(start, end, time.Hour, busy)

	if len(slots) != 7 {
		t.Fatalf("got %d slots, want 7", len(slots))
	}
	if !slots[0].Start.Equal(start) {
		t.Errorf("first slot starts at %v, want %v", slots[0].Start, start)
	}
	// The 10:00 hour is busy, so the second slot starts at 11:00.
	if want := day.Add(11 * time.Hour); !slots[1].Start.Equal(want) {
		t.Errorf("second slot starts at %v, want %v", slots[1].Start, want)
	}
}

func TestFreeSlotsFullyBooked(t *testing.T) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)
	end := day.Add(17 * time.Hour)

	busy := []Slot{{Start: start, End: end}}

	if slots := freeSlots(start, end, 30*time.Minute, busy); len(slots) != 0 {
		t.Errorf("got %d slots on a fully booked day, want 0", len(slots))
	}
}

func TestFreeSlotsEmptyCalendar(t *testing.T) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)
	end := day.Add(17 * time.Hour)

	slots := freeSlots(start, end, 30*time.Minute, nil)

	// Eight working hours in 30-minute steps.
	if len(slots) != 16 {
		t.Fatalf("got %d slots, want 16", len(slots))
	}
	if !slots[len(slots)-1].End.Equal(end) {
		t.Errorf("last slot ends at %v, want %v", slots[len(slots)-1].End, end)
	}
}

func TestAvailableSlotsSkipsWeekends(t *testing.T) {
	g := &GoogleCalendar{calendarID: "primary", defaultDurationMin: 30}

	saturday := time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC)
	slots, err := g.AvailableSlots(context.Background(), saturday, 30)
	if err != nil {
		t.Fatalf("AvailableSlots() error = %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("got %d slots on a Saturday, want 0", len(slots))
	}
}

func TestMockEventCreator(t *testing.T) {
	m := NewMockEventCreator()

	id, err := m.CreateEvent(context.Background(), Event{
		Summary: "Interview",
		Start:   time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if id == "" {
		t.Error("mock creator returned empty event ID")
	}
}

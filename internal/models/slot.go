package models

import "time"

type AvailabilitySlot struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
}

// SlotSet is one availability lookup result. It is replaced wholesale, never patched.
type SlotSet struct {
	Generation    int64              `json:"generation"`
	YachtID       string             `json:"yachtId"`
	Date          time.Time          `json:"date"`
	TotalDuration float64            `json:"totalDuration"`
	Slots         []AvailabilitySlot `json:"slots"`
	FetchedAt     time.Time          `json:"fetchedAt"`
}

func (s *SlotSet) Empty() bool {
	return s == nil || len(s.Slots) == 0
}

// Slot returns the slot at index, if present.
func (s *SlotSet) Slot(index int) (AvailabilitySlot, bool) {
	if s == nil || index < 0 || index >= len(s.Slots) {
		return AvailabilitySlot{}, false
	}
	return s.Slots[index], true
}

// SlotRef points at a slot inside a specific slot set generation.
type SlotRef struct {
	Generation int64 `json:"generation"`
	Index      int   `json:"index"`
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// BookingDraft is the client-side booking being assembled before it is created on the backend.
type BookingDraft struct {
	ID             string    `json:"id"`
	YachtID        string    `json:"yachtId"`
	Yacht          *Yacht    `json:"yacht,omitempty"`
	StartDate      time.Time `json:"startDate"`
	Location       string    `json:"location"`
	YachtType      string    `json:"yachtType"`
	Capacity       int       `json:"capacity"`
	PeopleCount    int       `json:"peopleCount"`
	AddonServices  []string  `json:"addonServices"`
	Package        string    `json:"package"`
	SpecialRequest string    `json:"specialRequest"`
	Timezone       string    `json:"timezone,omitempty"`
	Slots          *SlotSet  `json:"slots,omitempty"`
	SlotRef        *SlotRef  `json:"slotRef,omitempty"`
	Submitted      bool      `json:"submitted"`
	BookingID      string    `json:"bookingId,omitempty"`
	SessionID      string    `json:"sessionId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ReplaceSlots swaps in a freshly fetched slot set and drops the old selection.
func (d *BookingDraft) ReplaceSlots(set *SlotSet) {
	d.Slots = set
	d.SlotRef = nil
}

// SelectSlot references a slot of the current set. Returns false if the index is out of range.
func (d *BookingDraft) SelectSlot(index int) bool {
	if _, ok := d.Slots.Slot(index); !ok {
		return false
	}
	d.SlotRef = &SlotRef{Generation: d.Slots.Generation, Index: index}
	return true
}

// SelectedSlot resolves the slot reference against the current slot set.
func (d *BookingDraft) SelectedSlot() (AvailabilitySlot, bool) {
	if d.SlotRef == nil || d.Slots == nil || d.SlotRef.Generation != d.Slots.Generation {
		return AvailabilitySlot{}, false
	}
	return d.Slots.Slot(d.SlotRef.Index)
}

// StartTime is the start of the selected slot, if any.
func (d *BookingDraft) StartTime() (time.Time, bool) {
	slot, ok := d.SelectedSlot()
	if !ok {
		return time.Time{}, false
	}
	return slot.StartTime, true
}

func (d *BookingDraft) HasAddon(name string) bool {
	for _, a := range d.AddonServices {
		if a == name {
			return true
		}
	}
	return false
}

// BookingRequest is the create-booking body sent to the backend.
type BookingRequest struct {
	StartDate      string   `json:"startDate"`
	StartTime      string   `json:"startTime"`
	Location       string   `json:"location"`
	YachtType      string   `json:"YachtType"`
	Capacity       int      `json:"capacity"`
	PeopleNo       int      `json:"PeopleNo"`
	AddonServices  []string `json:"addonServices"`
	Packages       string   `json:"packages"`
	SpecialRequest string   `json:"specialRequest"`
	Yacht          string   `json:"yacht"`
	TotalPrice     float64  `json:"totalPrice"`
}

// Booking is the server-owned booking record.
type Booking struct {
	ID            string    `json:"_id" validate:"required"`
	Name          string    `json:"name,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	RideStatus    string    `json:"rideStatus"`
	TotalAmount   float64   `json:"totalAmount"`
	Packages      string    `json:"packages"`
	AddonServices []string  `json:"addonServices"`
	PeopleNo      FlexInt   `json:"PeopleNo"`
	Location      string    `json:"location"`
	Capacity      FlexInt   `json:"capacity"`
	Images        []string  `json:"images,omitempty"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PriceBreakdown is the server-computed price of a created booking.
type PriceBreakdown struct {
	PackageAmount float64 `json:"packageAmount" validate:"gte=0"`
	AddonCost     float64 `json:"addonCost" validate:"gte=0"`
	GSTAmount     float64 `json:"gstAmount" validate:"gte=0"`
	TotalAmount   float64 `json:"totalAmount" validate:"gte=0"`
}

// Final applies a local discount to the total, never going below zero.
func (p PriceBreakdown) Final(discount float64) float64 {
	total := p.TotalAmount - discount
	if total < 0 {
		return 0
	}
	return total
}

// CreatedBooking is the backend response to create-booking.
type CreatedBooking struct {
	Booking Booking `json:"booking"`
	OrderID string  `json:"orderId" validate:"required"`
	PriceBreakdown
}

// FlexInt accepts both JSON numbers and numeric strings.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("flexint: %w", err)
		}
		*f = FlexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

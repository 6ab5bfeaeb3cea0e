package availability

import (
	"time"

	"github.com/google/uuid"
)

// RecurringSchedule is one provider/venue/weekday row of calendar-style
// availability. Read-only to patients.
type RecurringSchedule struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	VenueID    uuid.UUID
	DayOfWeek  time.Weekday
	Windows    []TimeWindow
	ValidFrom  time.Time
	ValidUntil time.Time
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SerialPolicy is fixed-capacity daily availability: the day's time range is
// cut into TotalSlotsPerDay numbered sessions. Odd serials are reserved for
// walk-in assignment; only even serials are bookable online.
type SerialPolicy struct {
	ID               uuid.UUID
	ProviderID       uuid.UUID
	FacilityID       *uuid.UUID
	TotalSlotsPerDay int
	Window           TimeWindow
	UnitPrice        int64
	AvailableDays    []time.Weekday // empty means every day
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DayAllowed reports whether the policy offers serials on the weekday.
func (p *SerialPolicy) DayAllowed(day time.Weekday) bool {
	if len(p.AvailableDays) == 0 {
		return true
	}
	for _, d := range p.AvailableDays {
		if d == day {
			return true
		}
	}
	return false
}

type SlotKind string

const (
	SlotSchedule SlotKind = "schedule"
	SlotSerial   SlotKind = "serial"
)

// Slot is one bookable window. SerialNumber is zero for schedule slots.
type Slot struct {
	Start        MinuteOfDay `json:"start"`
	End          MinuteOfDay `json:"end"`
	Kind         SlotKind    `json:"kind"`
	SerialNumber int         `json:"serial_number,omitempty"`
}

// DayClaims are the starts and serials already held by non-terminal
// appointments on a given provider/date.
type DayClaims struct {
	Starts  map[MinuteOfDay]bool
	Serials map[int]bool
}

package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caresync/booking-engine/internal/approval"
)

var (
	ErrProviderNotApproved = errors.New("provider is not approved")
	ErrNoAvailability      = errors.New("no schedule or serial policy configured for provider")
	ErrOddSerial           = errors.New("odd serials are reserved for walk-in assignment")
	ErrSerialOutOfRange    = errors.New("serial number out of range")
	ErrSerialDayNotOffered = errors.New("policy does not offer serials on this day")
)

// ProviderDirectory answers whether a provider exists and has been admitted.
type ProviderDirectory interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*approval.Provider, error)
}

// Calculator derives a day's bookable windows from either a recurring weekly
// schedule or a fixed-capacity serial policy. The two paths are mutually
// exclusive per provider; the recurring schedule wins when both exist.
type Calculator struct {
	repo         Repository
	providers    ProviderDirectory
	slotDuration time.Duration
}

func NewCalculator(repo Repository, providers ProviderDirectory, slotDuration time.Duration) *Calculator {
	if slotDuration <= 0 {
		slotDuration = 15 * time.Minute
	}
	return &Calculator{
		repo:         repo,
		providers:    providers,
		slotDuration: slotDuration,
	}
}

// DayAvailability produces the ordered bookable windows for the date.
// Windows whose start is already claimed by a non-terminal appointment are
// excluded, and no two returned windows share a start time.
func (c *Calculator) DayAvailability(ctx context.Context, providerID uuid.UUID, venueID *uuid.UUID, date time.Time) ([]Slot, error) {
	prov, err := c.providers.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if prov.Status != approval.ProviderApproved {
		return nil, ErrProviderNotApproved
	}

	claims, err := c.repo.GetDayClaims(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("load day claims: %w", err)
	}

	sched, err := c.repo.GetScheduleForWeekday(ctx, providerID, venueID, date.Weekday())
	if err == nil {
		if !scheduleCovers(sched, date) {
			return []Slot{}, nil
		}
		return c.scheduleSlots(sched, claims), nil
	}
	if !errors.Is(err, ErrScheduleNotFound) {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	policy, err := c.repo.GetActiveSerialPolicy(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrPolicyNotFound) {
			return nil, ErrNoAvailability
		}
		return nil, fmt.Errorf("load serial policy: %w", err)
	}

	if !policy.DayAllowed(date.Weekday()) {
		return []Slot{}, nil
	}

	return onlineSerialSlots(policy, claims), nil
}

func scheduleCovers(s *RecurringSchedule, date time.Time) bool {
	if !s.Active {
		return false
	}
	day := date.Truncate(24 * time.Hour)
	return !day.Before(s.ValidFrom) && !day.After(s.ValidUntil)
}

func (c *Calculator) scheduleSlots(s *RecurringSchedule, claims DayClaims) []Slot {
	dur := MinuteOfDay(c.slotDuration / time.Minute)

	slots := []Slot{}
	for _, w := range s.Windows {
		for start := w.Start; start+dur <= w.End; start += dur {
			if claims.Starts[start] {
				continue
			}
			slots = append(slots, Slot{
				Start: start,
				End:   start + dur,
				Kind:  SlotSchedule,
			})
		}
	}
	return slots
}

// onlineSerialSlots exposes only the even-numbered sessions. Online serial k
// is the (k/2)-th unit from the start of the range, so serial 2 opens the day
// for self-service booking while the odd walk-in queue runs alongside it.
func onlineSerialSlots(p *SerialPolicy, claims DayClaims) []Slot {
	unit := serialUnit(p)
	if unit <= 0 {
		return []Slot{}
	}

	slots := []Slot{}
	for k := 2; k <= p.TotalSlotsPerDay; k += 2 {
		if claims.Serials[k] {
			continue
		}
		w := serialWindowAt(p, k, unit)
		if claims.Starts[w.Start] {
			continue
		}
		slots = append(slots, Slot{
			Start:        w.Start,
			End:          w.End,
			Kind:         SlotSerial,
			SerialNumber: k,
		})
	}
	return slots
}

// serialUnit is the session length in minutes. The division truncates; any
// remainder at the end of the range is discarded rather than stretched onto
// the last session.
func serialUnit(p *SerialPolicy) MinuteOfDay {
	if p.TotalSlotsPerDay <= 0 {
		return 0
	}
	return MinuteOfDay(p.Window.Minutes() / p.TotalSlotsPerDay)
}

func serialWindowAt(p *SerialPolicy, serial int, unit MinuteOfDay) TimeWindow {
	pos := MinuteOfDay(serial / 2) // 1-based position in the online queue
	start := p.Window.Start + (pos-1)*unit
	return TimeWindow{Start: start, End: start + unit}
}

// SerialWindow resolves the time window an online serial occupies, after
// validating the number against the policy.
func SerialWindow(p *SerialPolicy, serial int) (TimeWindow, error) {
	if err := ValidateSerialNumber(p, serial); err != nil {
		return TimeWindow{}, err
	}
	return serialWindowAt(p, serial, serialUnit(p)), nil
}

// ValidateSerialNumber enforces the online-booking serial rules: in range
// and even. Session 1 is never bookable online; session 2 is.
func ValidateSerialNumber(p *SerialPolicy, serial int) error {
	if serial < 1 || serial > p.TotalSlotsPerDay {
		return ErrSerialOutOfRange
	}
	if serial%2 != 0 {
		return ErrOddSerial
	}
	return nil
}

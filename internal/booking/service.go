package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caresync/booking-engine/internal/approval"
	"github.com/caresync/booking-engine/internal/availability"
	redisclient "github.com/caresync/booking-engine/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventStatusChanged        = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

var (
	ErrSlotUnavailable   = errors.New("slot is not available")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotProvider       = errors.New("only the provider may make this transition")
	ErrNotPatient        = errors.New("only the patient may cancel")
	ErrReasonRequired    = errors.New("a cancellation reason is required")
	ErrRecordLinkRefused = errors.New("records can only be attached to completed appointments")
	ErrReservationOrphan = errors.New("reservation released after failed appointment creation")
)

// Notifier receives best-effort counterparty notifications for appointment
// transitions. Failures never unwind the transition.
type Notifier interface {
	AppointmentChanged(recipientID, appointmentID uuid.UUID, eventType, title, body string)
}

type Service struct {
	repo      Repository
	schedules availability.Repository
	calc      *availability.Calculator
	providers availability.ProviderDirectory
	locker    redisclient.Locker
	notifier  Notifier
	log       zerolog.Logger
}

func NewService(
	repo Repository,
	schedules availability.Repository,
	calc *availability.Calculator,
	providers availability.ProviderDirectory,
	locker redisclient.Locker,
	notifier Notifier,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		schedules: schedules,
		calc:      calc,
		providers: providers,
		locker:    locker,
		notifier:  notifier,
		log:       log.With().Str("component", "booking").Logger(),
	}
}

type BookAppointmentParams struct {
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	VenueID    uuid.UUID
	Date       time.Time
	Start      availability.MinuteOfDay
	Kind       ConsultationKind
}

// BookAppointment reserves a recurring-schedule slot and creates the pending
// appointment behind the reservation lock. The fee is fixed here, from the
// venue's price for the consultation kind, and never recomputed.
func (s *Service) BookAppointment(ctx context.Context, p BookAppointmentParams) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, p.PatientID); err != nil {
		return nil, err
	}

	venueID := p.VenueID
	slots, err := s.calc.DayAvailability(ctx, p.ProviderID, &venueID, p.Date)
	if err != nil {
		return nil, err
	}

	var slot *availability.Slot
	for i := range slots {
		if slots[i].Start == p.Start {
			slot = &slots[i]
			break
		}
	}
	if slot == nil {
		return nil, ErrSlotUnavailable
	}

	venue, err := s.repo.GetVenueByID(ctx, venueID)
	if err != nil {
		return nil, err
	}

	kind := p.Kind
	if kind == "" {
		kind = KindNewPatient
	}

	appt := &Appointment{
		ID:         uuid.New(),
		PatientID:  p.PatientID,
		ProviderID: p.ProviderID,
		VenueID:    &venueID,
		Date:       p.Date,
		Start:      slot.Start,
		End:        slot.End,
		Kind:       kind,
		Fee:        venue.FeeFor(kind),
		Status:     StatusPending,
	}

	key := slotReservationKey(p.ProviderID, p.Date, slot.Start)
	if err := s.reserveAndCreate(ctx, key, appt, func(lockCtx context.Context) (bool, error) {
		return s.repo.SlotClaimed(lockCtx, p.ProviderID, p.Date, slot.Start)
	}); err != nil {
		return nil, err
	}

	s.notifyParties(appt, EventAppointmentBooked, "Appointment requested",
		fmt.Sprintf("Booking %s for %s at %s is awaiting confirmation", appt.BookingNumber, p.Date.Format("2006-01-02"), slot.Start))
	return appt, nil
}

type BookSerialParams struct {
	PatientID    uuid.UUID
	ProviderID   uuid.UUID
	Date         time.Time
	SerialNumber int
}

// BookSerial claims a numbered session under the provider's serial policy.
// Odd and out-of-range serials are refused before any reservation work.
func (s *Service) BookSerial(ctx context.Context, p BookSerialParams) (*Appointment, error) {
	prov, err := s.providers.GetProvider(ctx, p.ProviderID)
	if err != nil {
		return nil, err
	}
	if prov.Status != approval.ProviderApproved {
		return nil, availability.ErrProviderNotApproved
	}

	if _, err := s.repo.GetPatientByID(ctx, p.PatientID); err != nil {
		return nil, err
	}

	policy, err := s.schedules.GetActiveSerialPolicy(ctx, p.ProviderID)
	if err != nil {
		if errors.Is(err, availability.ErrPolicyNotFound) {
			return nil, availability.ErrNoAvailability
		}
		return nil, fmt.Errorf("load serial policy: %w", err)
	}

	if !policy.DayAllowed(p.Date.Weekday()) {
		return nil, availability.ErrSerialDayNotOffered
	}

	window, err := availability.SerialWindow(policy, p.SerialNumber)
	if err != nil {
		return nil, err
	}

	serial := p.SerialNumber
	appt := &Appointment{
		ID:           uuid.New(),
		PatientID:    p.PatientID,
		ProviderID:   p.ProviderID,
		Date:         p.Date,
		Start:        window.Start,
		End:          window.End,
		SerialNumber: &serial,
		Kind:         KindSerial,
		Fee:          policy.UnitPrice,
		Status:       StatusPending,
	}

	key := serialReservationKey(p.ProviderID, p.Date, serial)
	if err := s.reserveAndCreate(ctx, key, appt, func(lockCtx context.Context) (bool, error) {
		return s.repo.SerialClaimed(lockCtx, p.ProviderID, p.Date, serial)
	}); err != nil {
		return nil, err
	}

	s.notifyParties(appt, EventAppointmentBooked, "Serial booked",
		fmt.Sprintf("Serial %d (%s) booked for %s", serial, window.Start, p.Date.Format("2006-01-02")))
	return appt, nil
}

// reserveAndCreate is the conflict guard. Inside the per-key lock it
// re-checks the claim, inserts the appointment (the partial unique index is
// the backstop), and writes the booked event. If the event write fails after
// the row landed, the row is deleted so the slot does not leak; a failed
// compensation is the one genuinely bad outcome and is logged as such.
func (s *Service) reserveAndCreate(ctx context.Context, key string, appt *Appointment, claimed func(context.Context) (bool, error)) error {
	number, err := NewBookingNumber(appt.Date)
	if err != nil {
		return err
	}
	appt.BookingNumber = number

	err = s.locker.WithReservationLock(ctx, key, func(lockCtx context.Context) error {
		taken, err := claimed(lockCtx)
		if err != nil {
			return fmt.Errorf("check claim: %w", err)
		}
		if taken {
			return ErrSlotUnavailable
		}

		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotUnavailable
			}
			return err
		}

		payload, _ := json.Marshal(map[string]any{
			"booking_number": appt.BookingNumber,
			"patient_id":     appt.PatientID.String(),
			"provider_id":    appt.ProviderID.String(),
			"date":           appt.Date.Format("2006-01-02"),
			"start":          appt.Start.String(),
		})
		ev := EventLog{
			EventType:     EventAppointmentBooked,
			AppointmentID: &appt.ID,
			Payload:       payload,
			CreatedAt:     time.Now(),
		}
		if err := s.repo.InsertEvent(lockCtx, ev); err != nil {
			if delErr := s.repo.DeleteAppointment(lockCtx, appt.ID); delErr != nil {
				s.log.Error().Err(delErr).
					Stringer("appointment_id", appt.ID).
					Str("reservation_key", key).
					Msg("compensation failed, slot may leak")
				return fmt.Errorf("release reservation: %w", delErr)
			}
			s.log.Warn().Err(err).
				Stringer("appointment_id", appt.ID).
				Msg("reservation released after failed creation")
			return fmt.Errorf("%w: %v", ErrReservationOrphan, err)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return ErrSlotBeingBooked
		}
		return err
	}
	return nil
}

// UpdateStatus applies a provider-side transition: accept, reject, complete
// or no-show. The caller must be the appointment's provider.
func (s *Service) UpdateStatus(ctx context.Context, callerID uuid.UUID, callerRole approval.Role, id uuid.UUID, to Status, notes *string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if callerRole != approval.RoleProvider || callerID != appt.ProviderID {
		return nil, ErrNotProvider
	}
	if appt.Status.Terminal() || !ProviderCanTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
		"from":  string(appt.Status),
		"to":    string(to),
		"notes": notes,
	})

	s.notify(updated.PatientID, updated.ID, EventStatusChanged, "Appointment "+string(to),
		fmt.Sprintf("Booking %s is now %s", updated.BookingNumber, to))
	return updated, nil
}

// Cancel is the patient-side transition. A reason is mandatory and only
// non-terminal appointments can be cancelled.
func (s *Service) Cancel(ctx context.Context, callerID uuid.UUID, id uuid.UUID, reason string) (*Appointment, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if callerID != appt.PatientID {
		return nil, ErrNotPatient
	}
	if !PatientCanCancel(appt.Status) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.CancelAppointment(ctx, id, appt.Status, reason, time.Now())
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"from":   string(appt.Status),
		"reason": reason,
	})

	s.notify(updated.ProviderID, updated.ID, EventAppointmentCancelled, "Appointment cancelled",
		fmt.Sprintf("Booking %s was cancelled by the patient: %s", updated.BookingNumber, reason))
	return updated, nil
}

// AttachRecord links a visit summary to a completed appointment. This is the
// one write allowed on a terminal appointment.
func (s *Service) AttachRecord(ctx context.Context, id, recordID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusCompleted {
		return nil, ErrRecordLinkRefused
	}
	return s.repo.AttachRecord(ctx, id, recordID)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Stringer("appointment_id", appointmentID).
			Msg("insert event log")
	}
}

func (s *Service) notifyParties(appt *Appointment, eventType, title, body string) {
	s.notify(appt.PatientID, appt.ID, eventType, title, body)
	s.notify(appt.ProviderID, appt.ID, eventType, title, body)
}

func (s *Service) notify(recipientID, appointmentID uuid.UUID, eventType, title, body string) {
	if s.notifier == nil {
		return
	}
	s.notifier.AppointmentChanged(recipientID, appointmentID, eventType, title, body)
}

func slotReservationKey(providerID uuid.UUID, date time.Time, start availability.MinuteOfDay) string {
	return fmt.Sprintf("slot:%s:%s:%s", providerID, date.Format("2006-01-02"), start)
}

func serialReservationKey(providerID uuid.UUID, date time.Time, serial int) string {
	return fmt.Sprintf("serial:%s:%s:%d", providerID, date.Format("2006-01-02"), serial)
}

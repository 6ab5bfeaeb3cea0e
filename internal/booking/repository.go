package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/caresync/booking-engine/internal/availability"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrVenueNotFound       = errors.New("venue not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is the repository-level conflict signal: the partial
	// unique index refused the insert.
	ErrSlotTaken = errors.New("slot already claimed")
)

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetVenueByID(ctx context.Context, id uuid.UUID) (*Venue, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Conflict checks inside the reservation critical section
	SlotClaimed(ctx context.Context, providerID uuid.UUID, date time.Time, start availability.MinuteOfDay) (bool, error)
	SerialClaimed(ctx context.Context, providerID uuid.UUID, date time.Time, serial int) (bool, error)

	// Creation, compensation and updates
	CreateAppointment(ctx context.Context, a *Appointment) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, from Status, reason string, at time.Time) (*Appointment, error)
	AttachRecord(ctx context.Context, id, recordID uuid.UUID) (*Appointment, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/caresync/booking-engine/internal/availability"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// providerTransitions are the moves only the provider may make.
var providerTransitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusCompleted, StatusNoShow},
}

// ProviderCanTransition checks the provider-side edges of the state machine.
func ProviderCanTransition(from, to Status) bool {
	for _, t := range providerTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// PatientCanCancel checks the patient-side edge; cancellation is the only
// move a patient makes, and only out of non-terminal states.
func PatientCanCancel(from Status) bool {
	return from == StatusPending || from == StatusAccepted
}

type ConsultationKind string

const (
	KindNewPatient ConsultationKind = "new_patient"
	KindFollowUp   ConsultationKind = "follow_up"
	KindSerial     ConsultationKind = "serial"
)

type CancelledBy string

const (
	CancelledByPatient CancelledBy = "patient"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Venue is a consultation location with its per-kind pricing.
type Venue struct {
	ID            uuid.UUID
	ProviderID    uuid.UUID
	FacilityID    *uuid.UUID
	Name          string
	Address       *string
	NewPatientFee int64
	FollowUpFee   int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FeeFor resolves the venue price for a consultation kind.
func (v *Venue) FeeFor(kind ConsultationKind) int64 {
	if kind == KindFollowUp {
		return v.FollowUpFee
	}
	return v.NewPatientFee
}

type Appointment struct {
	ID            uuid.UUID
	BookingNumber string
	PatientID     uuid.UUID
	ProviderID    uuid.UUID
	VenueID       *uuid.UUID
	Date          time.Time
	Start         availability.MinuteOfDay
	End           availability.MinuteOfDay
	SerialNumber  *int
	Kind          ConsultationKind
	Fee           int64
	Status        Status
	CancelledBy   *CancelledBy
	CancelReason  *string
	CancelledAt   *time.Time
	RecordID      *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

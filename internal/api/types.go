package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/caresync/booking-engine/internal/availability"
	"github.com/caresync/booking-engine/internal/booking"
)

type BookAppointmentRequest struct {
	PatientID  string `json:"patient_id"`
	ProviderID string `json:"provider_id"`
	VenueID    string `json:"venue_id"`
	Date       string `json:"date"`  // YYYY-MM-DD
	Start      string `json:"start"` // HH:MM
	Kind       string `json:"kind,omitempty"`
}

type BookSerialRequest struct {
	PatientID    string `json:"patient_id"`
	ProviderID   string `json:"provider_id"`
	Date         string `json:"date"`
	SerialNumber int    `json:"serial_number"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type AttachRecordRequest struct {
	RecordID string `json:"record_id"`
}

type RegisterFacilityRequest struct {
	Name               string   `json:"name"`
	Address            string   `json:"address"`
	RegistrationNumber string   `json:"registration_number"`
	Departments        []string `json:"departments,omitempty"`
	AdminIDs           []string `json:"admin_ids,omitempty"`
}

type UpdateFacilityRequest struct {
	Name               *string   `json:"name,omitempty"`
	Address            *string   `json:"address,omitempty"`
	RegistrationNumber *string   `json:"registration_number,omitempty"`
	Departments        *[]string `json:"departments,omitempty"`
	AdminIDs           *[]string `json:"admin_ids,omitempty"`
}

type RegisterProviderRequest struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Specialty     *string `json:"specialty,omitempty"`
	LicenseNumber string  `json:"license_number"`
	FacilityID    *string `json:"facility_id,omitempty"`
}

type AddProviderRequest struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Specialty     *string `json:"specialty,omitempty"`
	LicenseNumber string  `json:"license_number"`
	Department    *string `json:"department,omitempty"`
	Title         *string `json:"title,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	BookingNumber string     `json:"booking_number"`
	PatientID     uuid.UUID  `json:"patient_id"`
	ProviderID    uuid.UUID  `json:"provider_id"`
	VenueID       *uuid.UUID `json:"venue_id,omitempty"`
	Date          string     `json:"date"`
	Start         string     `json:"start"`
	End           string     `json:"end"`
	SerialNumber  *int       `json:"serial_number,omitempty"`
	Kind          string     `json:"kind"`
	Fee           int64      `json:"fee"`
	Status        string     `json:"status"`
	CancelledBy   *string    `json:"cancelled_by,omitempty"`
	CancelReason  *string    `json:"cancel_reason,omitempty"`
	RecordID      *uuid.UUID `json:"record_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:            a.ID,
		BookingNumber: a.BookingNumber,
		PatientID:     a.PatientID,
		ProviderID:    a.ProviderID,
		VenueID:       a.VenueID,
		Date:          a.Date.Format("2006-01-02"),
		Start:         a.Start.String(),
		End:           a.End.String(),
		SerialNumber:  a.SerialNumber,
		Kind:          string(a.Kind),
		Fee:           a.Fee,
		Status:        string(a.Status),
		CancelReason:  a.CancelReason,
		RecordID:      a.RecordID,
		CreatedAt:     a.CreatedAt,
	}
	if a.CancelledBy != nil {
		by := string(*a.CancelledBy)
		resp.CancelledBy = &by
	}
	return resp
}

type AvailabilityResponse struct {
	ProviderID uuid.UUID           `json:"provider_id"`
	Date       string              `json:"date"`
	Slots      []availability.Slot `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

package api

import (
	"errors"
	"net/http"

	"github.com/caresync/booking-engine/internal/approval"
	"github.com/caresync/booking-engine/internal/availability"
	"github.com/caresync/booking-engine/internal/booking"
	redisclient "github.com/caresync/booking-engine/internal/redis"
)

// writeDomainError maps the domain error taxonomy onto HTTP statuses:
// not-found 404, conflict-guard denials and illegal transitions 409,
// precondition failures 412, domain validation 422, actor mismatches 403.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	// NotFound
	case errors.Is(err, approval.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, approval.ErrFacilityNotFound):
		writeError(w, http.StatusNotFound, "facility_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrVenueNotFound):
		writeError(w, http.StatusNotFound, "venue_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, availability.ErrNoAvailability):
		writeError(w, http.StatusNotFound, "no_availability_configured", err.Error())

	// SlotUnavailable
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")

	// InvalidTransition
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, approval.ErrStaleStatus):
		writeError(w, http.StatusConflict, "status_changed_concurrently", err.Error())

	// PreconditionFailed
	case errors.Is(err, availability.ErrProviderNotApproved):
		writeError(w, http.StatusPreconditionFailed, "provider_not_approved", err.Error())
	case errors.Is(err, approval.ErrFacilityNotApproved):
		writeError(w, http.StatusPreconditionFailed, "facility_not_approved", err.Error())
	case errors.Is(err, approval.ErrFacilityNotPending),
		errors.Is(err, approval.ErrProviderNotPending),
		errors.Is(err, approval.ErrProviderTerminal):
		writeError(w, http.StatusPreconditionFailed, "approval_precondition_failed", err.Error())
	case errors.Is(err, approval.ErrCriticalFieldLocked):
		writeError(w, http.StatusPreconditionFailed, "critical_fields_locked", err.Error())

	// ValidationError
	case errors.Is(err, availability.ErrOddSerial):
		writeError(w, http.StatusUnprocessableEntity, "odd_serial_not_bookable", err.Error())
	case errors.Is(err, availability.ErrSerialOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, "serial_out_of_range", err.Error())
	case errors.Is(err, availability.ErrSerialDayNotOffered):
		writeError(w, http.StatusUnprocessableEntity, "day_not_offered", err.Error())
	case errors.Is(err, booking.ErrReasonRequired),
		errors.Is(err, approval.ErrReasonRequired):
		writeError(w, http.StatusUnprocessableEntity, "reason_required", err.Error())
	case errors.Is(err, booking.ErrRecordLinkRefused):
		writeError(w, http.StatusUnprocessableEntity, "record_link_refused", err.Error())

	// Actor mismatches
	case errors.Is(err, booking.ErrNotProvider),
		errors.Is(err, booking.ErrNotPatient),
		errors.Is(err, approval.ErrNotFacilityAdmin),
		errors.Is(err, approval.ErrNotSuperAdmin):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

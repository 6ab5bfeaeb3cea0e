package notification

import (
	"github.com/google/uuid"

	"github.com/caresync/booking-engine/internal/approval"
)

// AppointmentNotifier adapts the gateway to the booking service's notifier.
type AppointmentNotifier struct {
	gw Gateway
}

func NewAppointmentNotifier(gw Gateway) *AppointmentNotifier {
	return &AppointmentNotifier{gw: gw}
}

func (a *AppointmentNotifier) AppointmentChanged(recipientID, appointmentID uuid.UUID, eventType, title, body string) {
	subject := appointmentID
	a.gw.Notify(Notification{
		RecipientID: recipientID,
		EventType:   eventType,
		Title:       title,
		Body:        body,
		SubjectID:   &subject,
		SubjectKind: "appointment",
	})
}

// ApprovalNotifier adapts the gateway to the approval service's notifier.
// Admission updates go to the subject itself.
type ApprovalNotifier struct {
	gw Gateway
}

func NewApprovalNotifier(gw Gateway) *ApprovalNotifier {
	return &ApprovalNotifier{gw: gw}
}

func (a *ApprovalNotifier) ApprovalChanged(targetType approval.TargetType, targetID uuid.UUID, action approval.Action, newStatus string) {
	subject := targetID
	a.gw.Notify(Notification{
		RecipientID: targetID,
		EventType:   "APPROVAL_" + string(action),
		Title:       string(targetType) + " " + newStatus,
		Body:        "Your " + string(targetType) + " admission status is now " + newStatus,
		SubjectID:   &subject,
		SubjectKind: string(targetType),
	})
}

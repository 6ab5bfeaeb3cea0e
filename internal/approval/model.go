package approval

import (
	"time"

	"github.com/google/uuid"
)

type ProviderStatus string

const (
	ProviderPendingHospital   ProviderStatus = "pending_hospital"
	ProviderPendingSuperAdmin ProviderStatus = "pending_super_admin"
	ProviderPendingBoth       ProviderStatus = "pending_hospital_and_super_admin"
	ProviderApproved          ProviderStatus = "approved"
	ProviderRejected          ProviderStatus = "rejected"
)

type FacilityStatus string

const (
	FacilityPendingSuperAdmin FacilityStatus = "pending_super_admin"
	FacilityApproved          FacilityStatus = "approved"
	FacilityRejected          FacilityStatus = "rejected"
)

type Role string

const (
	RolePatient       Role = "patient"
	RoleProvider      Role = "provider"
	RoleFacilityAdmin Role = "facility_admin"
	RoleSuperAdmin    Role = "super_admin"
)

type Action string

const (
	ActionRegister Action = "register"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
)

type TargetType string

const (
	TargetProvider TargetType = "provider"
	TargetFacility TargetType = "facility"
)

type Provider struct {
	ID            uuid.UUID
	Name          string
	Email         string
	Specialty     *string
	LicenseNumber string
	FacilityID    *uuid.UUID // nil for independent practice
	Status        ProviderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Facility struct {
	ID                 uuid.UUID
	Name               string
	Address            string
	RegistrationNumber string
	Departments        []string
	AdminIDs           []uuid.UUID
	Status             FacilityStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (f *Facility) HasAdmin(id uuid.UUID) bool {
	for _, a := range f.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

type RosterEntry struct {
	FacilityID uuid.UUID
	ProviderID uuid.UUID
	Department *string
	Title      *string
	JoinedAt   time.Time
}

// AuditEntry is append-only. Every provider or facility status transition
// writes exactly one entry, in the same transaction as the transition.
type AuditEntry struct {
	ID             int64
	ActorID        *uuid.UUID
	ActorRole      Role
	TargetType     TargetType
	TargetID       uuid.UUID
	Action         Action
	Reason         *string
	PreviousStatus *string
	NewStatus      string
	CreatedAt      time.Time
}

func (p ProviderStatus) Terminal() bool {
	return p == ProviderApproved || p == ProviderRejected
}

// PendingOnHospital reports whether the hospital's sign-off is still
// outstanding for the status.
func (p ProviderStatus) PendingOnHospital() bool {
	return p == ProviderPendingHospital || p == ProviderPendingBoth
}

// PendingOnSuperAdmin reports whether the platform's sign-off is still
// outstanding for the status.
func (p ProviderStatus) PendingOnSuperAdmin() bool {
	return p == ProviderPendingSuperAdmin || p == ProviderPendingBoth
}

// afterHospitalApproval resolves the next status once the hospital signs off.
func afterHospitalApproval(cur ProviderStatus) ProviderStatus {
	if cur == ProviderPendingBoth {
		return ProviderPendingSuperAdmin
	}
	return ProviderApproved
}

// afterSuperAdminApproval resolves the next status once the platform signs off.
func afterSuperAdminApproval(cur ProviderStatus) ProviderStatus {
	if cur == ProviderPendingBoth {
		return ProviderPendingHospital
	}
	return ProviderApproved
}

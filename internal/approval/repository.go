package approval

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrFacilityNotFound = errors.New("facility not found")

	// ErrStaleStatus is returned when a compare-and-swap status update
	// finds the row no longer in the expected status.
	ErrStaleStatus = errors.New("status changed concurrently")
)

// FacilityProfileChanges carries the mutable subset of a facility profile.
// Nil fields are left untouched.
type FacilityProfileChanges struct {
	Name               *string
	Address            *string
	RegistrationNumber *string
	Departments        *[]string
	AdminIDs           *[]uuid.UUID
}

// Critical reports whether the change touches identity fields that are
// write-once after approval.
func (c FacilityProfileChanges) Critical() bool {
	return c.Name != nil || c.Address != nil || c.RegistrationNumber != nil
}

// Repository contains all DB interactions needed by the approval service.
// Status writes take the audit entry so both land in one transaction.
type Repository interface {
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetFacilityByID(ctx context.Context, id uuid.UUID) (*Facility, error)

	CreateProvider(ctx context.Context, p *Provider, audit AuditEntry) error
	CreateFacility(ctx context.Context, f *Facility, audit AuditEntry) error

	UpdateProviderStatus(ctx context.Context, id uuid.UUID, from, to ProviderStatus, audit AuditEntry) (*Provider, error)
	UpdateFacilityStatus(ctx context.Context, id uuid.UUID, from, to FacilityStatus, audit AuditEntry) (*Facility, error)

	UpdateFacilityProfile(ctx context.Context, id uuid.UUID, changes FacilityProfileChanges) (*Facility, error)

	AddRosterEntry(ctx context.Context, entry RosterEntry) error

	ListAuditEntries(ctx context.Context, targetType TargetType, targetID uuid.UUID) ([]AuditEntry, error)
}

package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrFacilityNotApproved = errors.New("facility is not approved")
	ErrFacilityNotPending  = errors.New("facility is not awaiting platform review")
	ErrProviderNotPending  = errors.New("provider is not awaiting this approval")
	ErrProviderTerminal    = errors.New("provider status is terminal")
	ErrCriticalFieldLocked = errors.New("critical facility fields are read-only after approval")
	ErrNotFacilityAdmin    = errors.New("caller is not an administrator of this facility")
	ErrNotSuperAdmin       = errors.New("caller is not a platform administrator")
	ErrReasonRequired      = errors.New("a rejection reason is required")
)

// Notifier receives best-effort admission notifications. Failures are the
// notifier's problem, never the caller's.
type Notifier interface {
	ApprovalChanged(targetType TargetType, targetID uuid.UUID, action Action, newStatus string)
}

type Service struct {
	repo     Repository
	notifier Notifier
	log      zerolog.Logger
}

func NewService(repo Repository, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log.With().Str("component", "approval").Logger(),
	}
}

type RegisterFacilityParams struct {
	Name               string
	Address            string
	RegistrationNumber string
	Departments        []string
	AdminIDs           []uuid.UUID
}

// RegisterFacility creates a facility awaiting platform review.
func (s *Service) RegisterFacility(ctx context.Context, actorID uuid.UUID, p RegisterFacilityParams) (*Facility, error) {
	f := &Facility{
		ID:                 uuid.New(),
		Name:               p.Name,
		Address:            p.Address,
		RegistrationNumber: p.RegistrationNumber,
		Departments:        p.Departments,
		AdminIDs:           p.AdminIDs,
		Status:             FacilityPendingSuperAdmin,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	audit := newAudit(&actorID, RoleFacilityAdmin, TargetFacility, f.ID, ActionRegister, nil, nil, string(f.Status))
	if err := s.repo.CreateFacility(ctx, f, audit); err != nil {
		return nil, fmt.Errorf("create facility: %w", err)
	}

	s.notify(TargetFacility, f.ID, ActionRegister, string(f.Status))
	return f, nil
}

// ApproveFacility moves a facility from platform review to approved.
// Only a platform administrator may call it.
func (s *Service) ApproveFacility(ctx context.Context, actorID uuid.UUID, actorRole Role, facilityID uuid.UUID) (*Facility, error) {
	if actorRole != RoleSuperAdmin {
		return nil, ErrNotSuperAdmin
	}

	f, err := s.repo.GetFacilityByID(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if f.Status != FacilityPendingSuperAdmin {
		return nil, ErrFacilityNotPending
	}

	audit := newAudit(&actorID, actorRole, TargetFacility, f.ID, ActionApprove, nil,
		statusPtr(string(f.Status)), string(FacilityApproved))
	updated, err := s.repo.UpdateFacilityStatus(ctx, f.ID, f.Status, FacilityApproved, audit)
	if err != nil {
		return nil, fmt.Errorf("approve facility: %w", err)
	}

	s.notify(TargetFacility, f.ID, ActionApprove, string(FacilityApproved))
	return updated, nil
}

// RejectFacility is terminal for the registration; the facility must
// re-register to try again.
func (s *Service) RejectFacility(ctx context.Context, actorID uuid.UUID, actorRole Role, facilityID uuid.UUID, reason string) (*Facility, error) {
	if actorRole != RoleSuperAdmin {
		return nil, ErrNotSuperAdmin
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}

	f, err := s.repo.GetFacilityByID(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if f.Status != FacilityPendingSuperAdmin {
		return nil, ErrFacilityNotPending
	}

	audit := newAudit(&actorID, actorRole, TargetFacility, f.ID, ActionReject, &reason,
		statusPtr(string(f.Status)), string(FacilityRejected))
	updated, err := s.repo.UpdateFacilityStatus(ctx, f.ID, f.Status, FacilityRejected, audit)
	if err != nil {
		return nil, fmt.Errorf("reject facility: %w", err)
	}

	s.notify(TargetFacility, f.ID, ActionReject, string(FacilityRejected))
	return updated, nil
}

// UpdateFacilityProfile edits a facility. Name, address and registration
// number are write-once after approval; everything else stays editable.
func (s *Service) UpdateFacilityProfile(ctx context.Context, facilityID uuid.UUID, changes FacilityProfileChanges) (*Facility, error) {
	f, err := s.repo.GetFacilityByID(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	if f.Status == FacilityApproved && changes.Critical() {
		return nil, ErrCriticalFieldLocked
	}

	updated, err := s.repo.UpdateFacilityProfile(ctx, facilityID, changes)
	if err != nil {
		return nil, fmt.Errorf("update facility profile: %w", err)
	}
	return updated, nil
}

type RegisterProviderParams struct {
	Name          string
	Email         string
	Specialty     *string
	LicenseNumber string
	FacilityID    *uuid.UUID
}

// RegisterProvider handles self-registration. The entry status depends on
// who still has to sign off: the platform always does, the hospital does
// whenever the provider names one, and an unapproved hospital means both
// reviews are outstanding.
func (s *Service) RegisterProvider(ctx context.Context, p RegisterProviderParams) (*Provider, error) {
	status := ProviderPendingSuperAdmin
	if p.FacilityID != nil {
		f, err := s.repo.GetFacilityByID(ctx, *p.FacilityID)
		if err != nil {
			return nil, err
		}
		if f.Status == FacilityApproved {
			status = ProviderPendingHospital
		} else {
			status = ProviderPendingBoth
		}
	}

	prov := &Provider{
		ID:            uuid.New(),
		Name:          p.Name,
		Email:         p.Email,
		Specialty:     p.Specialty,
		LicenseNumber: p.LicenseNumber,
		FacilityID:    p.FacilityID,
		Status:        status,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	audit := newAudit(&prov.ID, RoleProvider, TargetProvider, prov.ID, ActionRegister, nil, nil, string(status))
	if err := s.repo.CreateProvider(ctx, prov, audit); err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	s.notify(TargetProvider, prov.ID, ActionRegister, string(status))
	return prov, nil
}

type AddProviderParams struct {
	Name          string
	Email         string
	Specialty     *string
	LicenseNumber string
	Department    *string
	Title         *string
}

// AddProviderByFacility is the trusted path: an administrator of an already
// approved facility adds a provider, which is created approved. The
// auto-approval still writes its audit entry, with no previous status.
func (s *Service) AddProviderByFacility(ctx context.Context, actorID, facilityID uuid.UUID, p AddProviderParams) (*Provider, error) {
	f, err := s.repo.GetFacilityByID(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if f.Status != FacilityApproved {
		return nil, ErrFacilityNotApproved
	}
	if !f.HasAdmin(actorID) {
		return nil, ErrNotFacilityAdmin
	}

	prov := &Provider{
		ID:            uuid.New(),
		Name:          p.Name,
		Email:         p.Email,
		Specialty:     p.Specialty,
		LicenseNumber: p.LicenseNumber,
		FacilityID:    &facilityID,
		Status:        ProviderApproved,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	audit := newAudit(&actorID, RoleFacilityAdmin, TargetProvider, prov.ID, ActionApprove, nil, nil, string(ProviderApproved))
	if err := s.repo.CreateProvider(ctx, prov, audit); err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	entry := RosterEntry{
		FacilityID: facilityID,
		ProviderID: prov.ID,
		Department: p.Department,
		Title:      p.Title,
		JoinedAt:   time.Now(),
	}
	if err := s.repo.AddRosterEntry(ctx, entry); err != nil {
		s.log.Error().Err(err).
			Stringer("facility_id", facilityID).
			Stringer("provider_id", prov.ID).
			Msg("roster entry insert failed")
	}

	s.notify(TargetProvider, prov.ID, ActionApprove, string(ProviderApproved))
	return prov, nil
}

// ApproveProviderByFacility records the hospital's sign-off. It is only
// valid while the provider is pending on the hospital and the facility
// itself is approved.
func (s *Service) ApproveProviderByFacility(ctx context.Context, actorID, facilityID, providerID uuid.UUID) (*Provider, error) {
	f, err := s.repo.GetFacilityByID(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if f.Status != FacilityApproved {
		return nil, ErrFacilityNotApproved
	}
	if !f.HasAdmin(actorID) {
		return nil, ErrNotFacilityAdmin
	}

	prov, err := s.repo.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if prov.FacilityID == nil || *prov.FacilityID != facilityID {
		return nil, ErrProviderNotPending
	}
	if !prov.Status.PendingOnHospital() {
		return nil, ErrProviderNotPending
	}

	next := afterHospitalApproval(prov.Status)
	audit := newAudit(&actorID, RoleFacilityAdmin, TargetProvider, prov.ID, ActionApprove, nil,
		statusPtr(string(prov.Status)), string(next))
	updated, err := s.repo.UpdateProviderStatus(ctx, prov.ID, prov.Status, next, audit)
	if err != nil {
		return nil, fmt.Errorf("facility approve provider: %w", err)
	}

	if next == ProviderApproved {
		entry := RosterEntry{FacilityID: facilityID, ProviderID: prov.ID, JoinedAt: time.Now()}
		if err := s.repo.AddRosterEntry(ctx, entry); err != nil {
			s.log.Error().Err(err).
				Stringer("provider_id", prov.ID).
				Msg("roster entry insert failed")
		}
	}

	s.notify(TargetProvider, prov.ID, ActionApprove, string(next))
	return updated, nil
}

// ApproveProviderByAdmin records the platform's sign-off.
func (s *Service) ApproveProviderByAdmin(ctx context.Context, actorID uuid.UUID, actorRole Role, providerID uuid.UUID) (*Provider, error) {
	if actorRole != RoleSuperAdmin {
		return nil, ErrNotSuperAdmin
	}

	prov, err := s.repo.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !prov.Status.PendingOnSuperAdmin() {
		return nil, ErrProviderNotPending
	}

	next := afterSuperAdminApproval(prov.Status)
	audit := newAudit(&actorID, actorRole, TargetProvider, prov.ID, ActionApprove, nil,
		statusPtr(string(prov.Status)), string(next))
	updated, err := s.repo.UpdateProviderStatus(ctx, prov.ID, prov.Status, next, audit)
	if err != nil {
		return nil, fmt.Errorf("admin approve provider: %w", err)
	}

	s.notify(TargetProvider, prov.ID, ActionApprove, string(next))
	return updated, nil
}

// RejectProvider moves a provider to rejected from any non-terminal status.
// An approved provider can never be rejected; re-registration is the only
// path back for a rejected one.
func (s *Service) RejectProvider(ctx context.Context, actorID uuid.UUID, actorRole Role, providerID uuid.UUID, reason string) (*Provider, error) {
	if actorRole != RoleSuperAdmin && actorRole != RoleFacilityAdmin {
		return nil, ErrNotSuperAdmin
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}

	prov, err := s.repo.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if prov.Status.Terminal() {
		return nil, ErrProviderTerminal
	}

	audit := newAudit(&actorID, actorRole, TargetProvider, prov.ID, ActionReject, &reason,
		statusPtr(string(prov.Status)), string(ProviderRejected))
	updated, err := s.repo.UpdateProviderStatus(ctx, prov.ID, prov.Status, ProviderRejected, audit)
	if err != nil {
		return nil, fmt.Errorf("reject provider: %w", err)
	}

	s.notify(TargetProvider, prov.ID, ActionReject, string(ProviderRejected))
	return updated, nil
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.repo.GetProviderByID(ctx, id)
}

func (s *Service) GetFacility(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return s.repo.GetFacilityByID(ctx, id)
}

func (s *Service) AuditTrail(ctx context.Context, targetType TargetType, targetID uuid.UUID) ([]AuditEntry, error) {
	return s.repo.ListAuditEntries(ctx, targetType, targetID)
}

func (s *Service) notify(targetType TargetType, targetID uuid.UUID, action Action, newStatus string) {
	if s.notifier == nil {
		return
	}
	s.notifier.ApprovalChanged(targetType, targetID, action, newStatus)
}

func newAudit(actorID *uuid.UUID, role Role, targetType TargetType, targetID uuid.UUID, action Action, reason, prev *string, next string) AuditEntry {
	return AuditEntry{
		ActorID:        actorID,
		ActorRole:      role,
		TargetType:     targetType,
		TargetID:       targetID,
		Action:         action,
		Reason:         reason,
		PreviousStatus: prev,
		NewStatus:      next,
		CreatedAt:      time.Now(),
	}
}

func statusPtr(s string) *string {
	return &s
}

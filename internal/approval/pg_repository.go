package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var specialty *string
	var facilityID *uuid.UUID

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&specialty,
		&p.LicenseNumber,
		&facilityID,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	p.FacilityID = facilityID
	return &p, nil
}

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility

	err := row.Scan(
		&f.ID,
		&f.Name,
		&f.Address,
		&f.RegistrationNumber,
		&f.Departments,
		&f.AdminIDs,
		&f.Status,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFacilityNotFound
		}
		return nil, err
	}

	return &f, nil
}

const providerColumns = `id, name, email, specialty, license_number, facility_id, status, created_at, updated_at`
const facilityColumns = `id, name, address, registration_number, departments, admin_ids, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetFacilityByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+facilityColumns+`
		FROM facilities
		WHERE id = $1
	`, id)
	return scanFacility(row)
}

func (r *PgRepository) CreateProvider(ctx context.Context, p *Provider, audit AuditEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO providers (id, name, email, specialty, license_number, facility_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, p.ID, p.Name, p.Email, p.Specialty, p.LicenseNumber, p.FacilityID, p.Status)
	if err != nil {
		return fmt.Errorf("insert provider: %w", err)
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) CreateFacility(ctx context.Context, f *Facility, audit AuditEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO facilities (id, name, address, registration_number, departments, admin_ids, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, f.ID, f.Name, f.Address, f.RegistrationNumber, f.Departments, f.AdminIDs, f.Status)
	if err != nil {
		return fmt.Errorf("insert facility: %w", err)
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) UpdateProviderStatus(ctx context.Context, id uuid.UUID, from, to ProviderStatus, audit AuditEntry) (*Provider, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE providers
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+providerColumns+`
	`, id, to, from)

	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, ErrStaleStatus
		}
		return nil, err
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PgRepository) UpdateFacilityStatus(ctx context.Context, id uuid.UUID, from, to FacilityStatus, audit AuditEntry) (*Facility, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE facilities
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+facilityColumns+`
	`, id, to, from)

	f, err := scanFacility(row)
	if err != nil {
		if errors.Is(err, ErrFacilityNotFound) {
			return nil, ErrStaleStatus
		}
		return nil, err
	}

	if err := insertAudit(ctx, tx, audit); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *PgRepository) UpdateFacilityProfile(ctx context.Context, id uuid.UUID, changes FacilityProfileChanges) (*Facility, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE facilities
		SET name = COALESCE($2, name),
		    address = COALESCE($3, address),
		    registration_number = COALESCE($4, registration_number),
		    departments = COALESCE($5, departments),
		    admin_ids = COALESCE($6, admin_ids),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+facilityColumns+`
	`, id, changes.Name, changes.Address, changes.RegistrationNumber, changes.Departments, changes.AdminIDs)

	return scanFacility(row)
}

func (r *PgRepository) AddRosterEntry(ctx context.Context, entry RosterEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO facility_roster (facility_id, provider_id, department, title, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (facility_id, provider_id) DO NOTHING
	`, entry.FacilityID, entry.ProviderID, entry.Department, entry.Title, entry.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert roster entry: %w", err)
	}
	return nil
}

func (r *PgRepository) ListAuditEntries(ctx context.Context, targetType TargetType, targetID uuid.UUID) ([]AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, actor_role, target_type, target_id, action, reason, previous_status, new_status, created_at
		FROM approval_audit_entries
		WHERE target_type = $1 AND target_id = $2
		ORDER BY id
	`, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID,
			&e.ActorID,
			&e.ActorRole,
			&e.TargetType,
			&e.TargetID,
			&e.Action,
			&e.Reason,
			&e.PreviousStatus,
			&e.NewStatus,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func insertAudit(ctx context.Context, tx pgx.Tx, audit AuditEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO approval_audit_entries
			(actor_id, actor_role, target_type, target_id, action, reason, previous_status, new_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, audit.ActorID, audit.ActorRole, audit.TargetType, audit.TargetID, audit.Action,
		audit.Reason, audit.PreviousStatus, audit.NewStatus, audit.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

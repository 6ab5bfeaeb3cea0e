package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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

func (r *PgRepository) GetScheduleForWeekday(ctx context.Context, providerID uuid.UUID, venueID *uuid.UUID, day time.Weekday) (*RecurringSchedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, venue_id, day_of_week, windows, valid_from, valid_until, is_active, created_at, updated_at
		FROM recurring_schedules
		WHERE provider_id = $1
		  AND day_of_week = $2
		  AND is_active
		  AND ($3::uuid IS NULL OR venue_id = $3)
		LIMIT 1
	`, providerID, int(day), venueID)

	var s RecurringSchedule
	var dayOfWeek int16
	var windowsJSON []byte

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.VenueID,
		&dayOfWeek,
		&windowsJSON,
		&s.ValidFrom,
		&s.ValidUntil,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	s.DayOfWeek = time.Weekday(dayOfWeek)
	if err := json.Unmarshal(windowsJSON, &s.Windows); err != nil {
		return nil, fmt.Errorf("decode schedule windows: %w", err)
	}

	return &s, nil
}

func (r *PgRepository) GetActiveSerialPolicy(ctx context.Context, providerID uuid.UUID) (*SerialPolicy, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, facility_id, total_slots_per_day, start_minute, end_minute,
		       unit_price, available_days, is_active, created_at, updated_at
		FROM serial_policies
		WHERE provider_id = $1
		  AND is_active
		LIMIT 1
	`, providerID)

	var p SerialPolicy
	var startMinute, endMinute int
	var days []int16

	err := row.Scan(
		&p.ID,
		&p.ProviderID,
		&p.FacilityID,
		&p.TotalSlotsPerDay,
		&startMinute,
		&endMinute,
		&p.UnitPrice,
		&days,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}

	p.Window = TimeWindow{Start: MinuteOfDay(startMinute), End: MinuteOfDay(endMinute)}
	for _, d := range days {
		p.AvailableDays = append(p.AvailableDays, time.Weekday(d))
	}

	return &p, nil
}

func (r *PgRepository) GetDayClaims(ctx context.Context, providerID uuid.UUID, date time.Time) (DayClaims, error) {
	claims := DayClaims{
		Starts:  make(map[MinuteOfDay]bool),
		Serials: make(map[int]bool),
	}

	rows, err := r.pool.Query(ctx, `
		SELECT start_minute, serial_number
		FROM appointments
		WHERE provider_id = $1
		  AND date = $2
		  AND status IN ('pending', 'accepted')
	`, providerID, date)
	if err != nil {
		return claims, err
	}
	defer rows.Close()

	for rows.Next() {
		var start int
		var serial *int
		if err := rows.Scan(&start, &serial); err != nil {
			return claims, err
		}
		claims.Starts[MinuteOfDay(start)] = true
		if serial != nil {
			claims.Serials[*serial] = true
		}
	}

	return claims, rows.Err()
}

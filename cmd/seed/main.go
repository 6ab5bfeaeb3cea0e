package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caresync/booking-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	bg := context.Background()

	facilityIDs, err := seedFacilities(bg, pool, 10)
	if err != nil {
		log.Fatalf("seed facilities: %v", err)
	}
	if err := seedProviders(bg, pool, facilityIDs, 100); err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedPatients(bg, pool, 9000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedFacilities(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d facilities", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		admin := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO facilities (id, name, address, registration_number, departments, admin_ids, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'approved', now(), now())
		`, id, gofakeit.Company()+" Hospital", gofakeit.Address().Address,
			gofakeit.Numerify("REG-######"),
			[]string{"Medicine", "Surgery", "Pediatrics"},
			[]uuid.UUID{admin})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("facilities seeded")
	return ids, nil
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, facilityIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		// Every third provider runs an independent practice.
		var facilityID *uuid.UUID
		if i%3 != 0 && len(facilityIDs) > 0 {
			f := facilityIDs[gofakeit.Number(0, len(facilityIDs)-1)]
			facilityID = &f
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, email, specialty, license_number, facility_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'approved', now(), now())
		`, id, name, gofakeit.Email(), spec, gofakeit.Numerify("LIC-######"), facilityID)
		if err != nil {
			return err
		}

		if err := seedAvailability(ctx, tx, id, facilityID, i); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("providers seeded")
	return nil
}

// seedAvailability gives even-indexed providers a recurring weekday schedule
// at a venue and odd-indexed ones a serial policy.
func seedAvailability(ctx context.Context, tx pgx.Tx, providerID uuid.UUID, facilityID *uuid.UUID, i int) error {
	if i%2 == 0 {
		venueID := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO venues (id, provider_id, facility_id, name, address, new_patient_fee, follow_up_fee, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		`, venueID, providerID, facilityID, gofakeit.Company()+" Chamber", gofakeit.Address().Address,
			int64(gofakeit.Number(500, 2000)), int64(gofakeit.Number(200, 800)))
		if err != nil {
			return err
		}

		windows, _ := json.Marshal([]map[string]string{
			{"start": "09:00", "end": "13:00"},
			{"start": "17:00", "end": "21:00"},
		})

		for day := 1; day <= 5; day++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO recurring_schedules
					(id, provider_id, venue_id, day_of_week, windows, valid_from, valid_until, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now()::date, (now() + interval '1 year')::date, TRUE, now(), now())
			`, uuid.New(), providerID, venueID, day, windows)
			if err != nil {
				return err
			}
		}
		return nil
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO serial_policies
			(id, provider_id, facility_id, total_slots_per_day, start_minute, end_minute, unit_price, available_days, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, now(), now())
	`, uuid.New(), providerID, facilityID, 20, 9*60, 17*60,
		int64(gofakeit.Number(300, 1000)), []int16{0, 1, 2, 3, 4, 5, 6})
	return err
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

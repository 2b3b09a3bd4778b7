package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/giahuylhoang/dental-api/internal/db"
)

var logg = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	logg.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logg.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logg.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	bg := context.Background()
	if err := createSchema(bg, pool); err != nil {
		logg.Fatal().Err(err).Msg("create schema")
	}
	doctorIDs, err := seedDoctors(bg, pool, 12)
	if err != nil {
		logg.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedServices(bg, pool); err != nil {
		logg.Fatal().Err(err).Msg("seed services")
	}
	if err := seedPatients(bg, pool, 2000); err != nil {
		logg.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedLeads(bg, pool, 200); err != nil {
		logg.Fatal().Err(err).Msg("seed leads")
	}
	if err := seedTimeOff(bg, pool, doctorIDs); err != nil {
		logg.Fatal().Err(err).Msg("seed time off")
	}

	logg.Info().Msg("seed complete")
}

func createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS doctors (
			id            bigserial PRIMARY KEY,
			name          text NOT NULL,
			specialty     text,
			calendar_ref  text NOT NULL DEFAULT '',
			active        boolean NOT NULL DEFAULT true
		)`,
		`CREATE TABLE IF NOT EXISTS doctor_hours (
			doctor_id  bigint NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
			weekday    int NOT NULL CHECK (weekday BETWEEN 0 AND 6),
			start_min  int NOT NULL CHECK (start_min >= 0 AND start_min < 1440),
			end_min    int NOT NULL CHECK (end_min > 0 AND end_min <= 1440),
			CHECK (start_min < end_min)
		)`,
		`CREATE TABLE IF NOT EXISTS doctor_time_off (
			id         bigserial PRIMARY KEY,
			doctor_id  bigint NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
			start_ts   timestamptz NOT NULL,
			end_ts     timestamptz NOT NULL,
			reason     text
		)`,
		`CREATE TABLE IF NOT EXISTS patients (
			id                  uuid PRIMARY KEY,
			first_name          text,
			last_name           text,
			dob                 date,
			phone               text,
			email               text,
			insurance_provider  text,
			is_minor            boolean NOT NULL DEFAULT false,
			guardian_name       text,
			guardian_contact    text,
			consent_approved    boolean NOT NULL DEFAULT false,
			created_at          timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patients_phone ON patients (phone)`,
		`CREATE TABLE IF NOT EXISTS services (
			id            bigserial PRIMARY KEY,
			name          text NOT NULL,
			description   text,
			duration_min  int NOT NULL CHECK (duration_min > 0),
			base_price    double precision
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id                  uuid PRIMARY KEY,
			doctor_id           bigint NOT NULL REFERENCES doctors(id),
			patient_id          uuid NOT NULL REFERENCES patients(id),
			service_id          bigint NOT NULL REFERENCES services(id),
			start_ts            timestamptz NOT NULL,
			end_ts              timestamptz NOT NULL,
			status              text NOT NULL DEFAULT 'scheduled',
			reason_note         text,
			calendar_event_ref  text,
			idempotency_key     text,
			created_at          timestamptz NOT NULL DEFAULT now(),
			updated_at          timestamptz NOT NULL DEFAULT now(),
			CHECK (start_ts < end_ts)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_doctor_time ON appointments (doctor_id, start_ts)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_idem_key
			ON appointments (idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS calendar_sync_tasks (
			id              bigserial PRIMARY KEY,
			appointment_id  uuid NOT NULL,
			action          text NOT NULL,
			calendar_ref    text,
			event_ref       text,
			attempts        int NOT NULL DEFAULT 0,
			last_error      text,
			created_at      timestamptz NOT NULL DEFAULT now(),
			done_at         timestamptz
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_tasks_pending ON calendar_sync_tasks (created_at) WHERE done_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS leads (
			id          uuid PRIMARY KEY,
			name        text,
			phone       text,
			email       text,
			source      text,
			status      text NOT NULL DEFAULT 'new',
			notes       text,
			created_at  timestamptz NOT NULL DEFAULT now(),
			updated_at  timestamptz NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	logg.Info().Msg("schema ready")
	return nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]int64, error) {
	logg.Info().Int("count", count).Msg("seeding doctors")

	specialties := []string{
		"General Dentistry",
		"Orthodontics",
		"Endodontics",
		"Periodontics",
		"Pediatric Dentistry",
		"Oral Surgery",
		"Prosthodontics",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO doctors (name, specialty, calendar_ref, active)
			VALUES ($1, $2, '', true)
			RETURNING id
		`, name, spec).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)

		// Mon-Fri 9-17 with a noon hour off; every third doctor also works
		// Saturday mornings.
		for wd := 1; wd <= 5; wd++ {
			if _, err := tx.Exec(ctx, `
				INSERT INTO doctor_hours (doctor_id, weekday, start_min, end_min)
				VALUES ($1, $2, 540, 720), ($1, $2, 780, 1020)
			`, id, wd); err != nil {
				return nil, err
			}
		}
		if i%3 == 0 {
			if _, err := tx.Exec(ctx, `
				INSERT INTO doctor_hours (doctor_id, weekday, start_min, end_min)
				VALUES ($1, 6, 540, 780)
			`, id); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logg.Info().Msg("doctors seeded")
	return ids, nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) error {
	services := []struct {
		name     string
		duration int
		price    float64
	}{
		{"Checkup & Cleaning", 30, 120},
		{"Comprehensive Exam", 60, 180},
		{"Filling", 60, 250},
		{"Root Canal", 90, 900},
		{"Crown Preparation", 90, 1100},
		{"Tooth Extraction", 60, 300},
		{"Teeth Whitening", 60, 350},
		{"Emergency Visit", 30, 150},
	}

	logg.Info().Int("count", len(services)).Msg("seeding services")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range services {
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (name, duration_min, base_price)
			VALUES ($1, $2, $3)
		`, s.name, s.duration, s.price); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logg.Info().Int("count", count).Msg("seeding patients")

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
			dob := gofakeit.DateRange(
				time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2012, 12, 31, 0, 0, 0, 0, time.UTC),
			)
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, first_name, last_name, dob, phone, email,
					insurance_provider, consent_approved, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, true, now())
			`, uuid.New(), gofakeit.FirstName(), gofakeit.LastName(), dob,
				gofakeit.Phone(), gofakeit.Email(), gofakeit.Company())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logg.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

func seedLeads(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logg.Info().Int("count", count).Msg("seeding leads")

	sources := []string{"website", "referral", "google", "walk-in", "phone"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		source := sources[gofakeit.Number(0, len(sources)-1)]
		if _, err := tx.Exec(ctx, `
			INSERT INTO leads (id, name, phone, email, source, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'new', now(), now())
		`, uuid.New(), gofakeit.Name(), gofakeit.Phone(), gofakeit.Email(), source); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedTimeOff(ctx context.Context, pool *pgxpool.Pool, doctorIDs []int64) error {
	logg.Info().Msg("seeding time off")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, id := range doctorIDs {
		if gofakeit.Number(0, 2) != 0 {
			continue
		}
		start := time.Now().AddDate(0, 0, gofakeit.Number(7, 60)).Truncate(24 * time.Hour)
		end := start.AddDate(0, 0, gofakeit.Number(1, 5))
		if _, err := tx.Exec(ctx, `
			INSERT INTO doctor_time_off (doctor_id, start_ts, end_ts, reason)
			VALUES ($1, $2, $3, 'vacation')
		`, id, start, end); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

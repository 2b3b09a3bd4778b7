package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giahuylhoang/dental-api/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, doctor_id, patient_id, service_id, start_ts, end_ts, status,
	reason_note, calendar_event_ref, idempotency_key, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.ServiceID,
		&a.Start,
		&a.End,
		&a.Status,
		&a.ReasonNote,
		&a.CalendarEventRef,
		&a.IdempotencyKey,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.DOB,
		&p.Phone,
		&p.Email,
		&p.InsuranceProvider,
		&p.IsMinor,
		&p.GuardianName,
		&p.GuardianContact,
		&p.ConsentApproved,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.DurationMin, &s.BasePrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Phone,
		&l.Email,
		&l.Source,
		&l.Status,
		&l.Notes,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Doctors

func (r *PgRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, calendar_ref, active
		FROM doctors
		WHERE id = $1
	`, id)

	var d Doctor
	if err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.CalendarRef, &d.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	hours, err := r.loadDoctorHours(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("load doctor hours: %w", err)
	}
	d.Hours = hours

	return &d, nil
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, calendar_ref, active
		FROM doctors
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialty, &d.CalendarRef, &d.Active); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		hours, err := r.loadDoctorHours(ctx, result[i].ID)
		if err != nil {
			return nil, fmt.Errorf("load doctor hours: %w", err)
		}
		result[i].Hours = hours
	}

	return result, nil
}

func (r *PgRepository) loadDoctorHours(ctx context.Context, doctorID int64) (schedule.WeeklyHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_min, end_min
		FROM doctor_hours
		WHERE doctor_id = $1
		ORDER BY weekday, start_min
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hours := schedule.WeeklyHours{}
	for rows.Next() {
		var weekday int
		var block schedule.DayHours
		if err := rows.Scan(&weekday, &block.StartMin, &block.EndMin); err != nil {
			return nil, err
		}
		wd := time.Weekday(weekday)
		hours[wd] = append(hours[wd], block)
	}
	return hours, rows.Err()
}

func (r *PgRepository) ListTimeOff(ctx context.Context, doctorID int64, window schedule.Interval) ([]TimeOff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT doctor_id, start_ts, end_ts, reason
		FROM doctor_time_off
		WHERE doctor_id = $1
		  AND start_ts < $3
		  AND end_ts > $2
	`, doctorID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeOff
	for rows.Next() {
		var t TimeOff
		if err := rows.Scan(&t.DoctorID, &t.Start, &t.End, &t.Reason); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Patients

const patientColumns = `id, first_name, last_name, dob, phone, email, insurance_provider,
	is_minor, guardian_name, guardian_contact, consent_approved, created_at`

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context, limit, offset int) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatients(rows)
}

func (r *PgRepository) FindPatientsByPhone(ctx context.Context, phone string) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE phone = $1
		ORDER BY created_at
	`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatients(rows)
}

func collectPatients(rows pgx.Rows) ([]Patient, error) {
	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, dob, phone, email, insurance_provider,
			is_minor, guardian_name, guardian_contact, consent_approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING `+patientColumns+`
	`, id, p.FirstName, p.LastName, p.DOB, p.Phone, p.Email, p.InsuranceProvider,
		p.IsMinor, p.GuardianName, p.GuardianContact, p.ConsentApproved)
	return scanPatient(row)
}

func (r *PgRepository) UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET first_name         = COALESCE($2, first_name),
		    last_name          = COALESCE($3, last_name),
		    dob                = COALESCE($4, dob),
		    phone              = COALESCE($5, phone),
		    email              = COALESCE($6, email),
		    insurance_provider = COALESCE($7, insurance_provider),
		    guardian_name      = COALESCE($8, guardian_name),
		    guardian_contact   = COALESCE($9, guardian_contact),
		    consent_approved   = COALESCE($10, consent_approved)
		WHERE id = $1
		RETURNING `+patientColumns+`
	`, id, upd.FirstName, upd.LastName, upd.DOB, upd.Phone, upd.Email,
		upd.InsuranceProvider, upd.GuardianName, upd.GuardianContact, upd.ConsentApproved)
	return scanPatient(row)
}

// Services

func (r *PgRepository) GetServiceByID(ctx context.Context, id int64) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, duration_min, base_price
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) ListServices(ctx context.Context, limit, offset int) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, duration_min, base_price
		FROM services
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// Appointments

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE 1=1`
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.DoctorID != nil {
		query += ` AND doctor_id = ` + arg(*f.DoctorID)
	}
	if f.PatientID != nil {
		query += ` AND patient_id = ` + arg(*f.PatientID)
	}
	if f.Status != nil {
		query += ` AND status = ` + arg(*f.Status)
	}
	if f.From != nil {
		query += ` AND end_ts > ` + arg(*f.From)
	}
	if f.To != nil {
		query += ` AND start_ts < ` + arg(*f.To)
	}

	query += ` ORDER BY start_ts`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ` + arg(f.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListActiveAppointments(ctx context.Context, doctorID int64, window schedule.Interval) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status IN ('scheduled', 'confirmed')
		  AND start_ts < $3
		  AND end_ts > $2
		ORDER BY start_ts
	`, doctorID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// BookAppointment inserts a scheduled appointment after re-checking, under an
// exclusive lock on the doctor row, that no active appointment overlaps the
// requested interval. The lock is what serializes concurrent bookings for the
// same doctor across service instances.
func (r *PgRepository) BookAppointment(ctx context.Context, params BookingParams) (*BookingResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var doctorID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM doctors WHERE id = $1 AND active FOR UPDATE
	`, params.DoctorID).Scan(&doctorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("lock doctor row: %w", err)
	}

	// Idempotency-key replay returns the prior booking unchanged.
	if params.IdempotencyKey != nil {
		row := tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE idempotency_key = $1
		`, *params.IdempotencyKey)
		existing, err := scanAppointment(row)
		if err == nil {
			if err := tx.Commit(ctx); err != nil {
				return nil, fmt.Errorf("commit booking tx: %w", err)
			}
			return &BookingResult{Appointment: existing, Replayed: true}, nil
		}
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
	}

	// Mandatory re-check inside the critical section: a booking may have landed
	// since the caller computed slots.
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status IN ('scheduled', 'confirmed')
		  AND start_ts < $3
		  AND end_ts > $2
		ORDER BY start_ts
		LIMIT 1
	`, params.DoctorID, params.Start, params.End)
	conflicting, err := scanAppointment(row)
	if err == nil {
		return nil, &ConflictError{
			AppointmentID: conflicting.ID,
			Start:         conflicting.Start,
			End:           conflicting.End,
		}
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("overlap check: %w", err)
	}

	id := uuid.New()
	row = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, service_id, start_ts, end_ts,
			status, reason_note, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, params.DoctorID, params.PatientID, params.ServiceID, params.Start, params.End,
		params.ReasonNote, params.IdempotencyKey)
	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return &BookingResult{Appointment: created}, nil
}

// RescheduleAppointment moves an appointment to a new interval, or leaves it
// untouched when the new interval is taken. Same locking discipline as
// BookAppointment.
func (r *PgRepository) RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reschedule tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusScheduled && appt.Status != StatusConfirmed {
		return nil, ErrNotReschedulable
	}

	var doctorID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM doctors WHERE id = $1 FOR UPDATE
	`, appt.DoctorID).Scan(&doctorID)
	if err != nil {
		return nil, fmt.Errorf("lock doctor row: %w", err)
	}

	row = tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND id <> $2
		  AND status IN ('scheduled', 'confirmed')
		  AND start_ts < $4
		  AND end_ts > $3
		ORDER BY start_ts
		LIMIT 1
	`, appt.DoctorID, id, newStart, newEnd)
	conflicting, err := scanAppointment(row)
	if err == nil {
		return nil, &ConflictError{
			AppointmentID: conflicting.ID,
			Start:         conflicting.Start,
			End:           conflicting.End,
		}
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("overlap check: %w", err)
	}

	// The mirrored event belongs to the old interval; clearing the ref here
	// lets the re-mirror (or its retry task) create a fresh one.
	row = tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_ts = $2,
		    end_ts = $3,
		    calendar_event_ref = NULL,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, newStart, newEnd)
	updated, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("update appointment interval: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reschedule tx: %w", err)
	}

	return updated, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) SetCalendarEventRef(ctx context.Context, id uuid.UUID, eventRef string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET calendar_event_ref = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, eventRef)
	if err != nil {
		return fmt.Errorf("set calendar event ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Sync tasks

func (r *PgRepository) EnqueueSyncTask(ctx context.Context, task SyncTask) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO calendar_sync_tasks (appointment_id, action, calendar_ref, event_ref, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, now())
	`, task.AppointmentID, task.Action, task.CalendarRef, task.EventRef, task.LastError)
	if err != nil {
		return fmt.Errorf("enqueue sync task: %w", err)
	}
	return nil
}

// DueSyncTasks returns undone tasks whose backoff window has elapsed. Backoff
// doubles per attempt starting at one minute, capped at one hour.
func (r *PgRepository) DueSyncTasks(ctx context.Context, now time.Time, limit int) ([]SyncTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, action, calendar_ref, event_ref, attempts, last_error, created_at, done_at
		FROM calendar_sync_tasks
		WHERE done_at IS NULL
		  AND created_at + interval '1 minute' * LEAST(pow(2, attempts), 60) <= $1
		ORDER BY created_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SyncTask
	for rows.Next() {
		var t SyncTask
		if err := rows.Scan(&t.ID, &t.AppointmentID, &t.Action, &t.CalendarRef, &t.EventRef,
			&t.Attempts, &t.LastError, &t.CreatedAt, &t.DoneAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *PgRepository) MarkSyncTaskDone(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE calendar_sync_tasks
		SET done_at = now()
		WHERE id = $1
	`, id)
	return err
}

func (r *PgRepository) MarkSyncTaskFailed(ctx context.Context, id int64, taskErr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE calendar_sync_tasks
		SET attempts = attempts + 1,
		    last_error = $2
		WHERE id = $1
	`, id, taskErr)
	return err
}

// Leads

const leadColumns = `id, name, phone, email, source, status, notes, created_at, updated_at`

func (r *PgRepository) CreateLead(ctx context.Context, l Lead) (*Lead, error) {
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := l.Status
	if status == "" {
		status = LeadNew
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (id, name, phone, email, source, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+leadColumns+`
	`, id, l.Name, l.Phone, l.Email, l.Source, status, l.Notes)
	return scanLead(row)
}

func (r *PgRepository) GetLeadByID(ctx context.Context, id uuid.UUID) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1
	`, id)
	return scanLead(row)
}

func (r *PgRepository) ListLeads(ctx context.Context, status *LeadStatus, limit, offset int) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []any{}
	if status != nil {
		args = append(args, *status)
		query += ` WHERE status = $1`
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpdateLead(ctx context.Context, id uuid.UUID, upd LeadUpdate) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET name       = COALESCE($2, name),
		    phone      = COALESCE($3, phone),
		    email      = COALESCE($4, email),
		    source     = COALESCE($5, source),
		    notes      = COALESCE($6, notes),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns+`
	`, id, upd.Name, upd.Phone, upd.Email, upd.Source, upd.Notes)
	return scanLead(row)
}

func (r *PgRepository) UpdateLeadStatus(ctx context.Context, id uuid.UUID, from, to LeadStatus) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+leadColumns+`
	`, id, to, from)
	return scanLead(row)
}

package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/giahuylhoang/dental-api/internal/calendar"
	"github.com/giahuylhoang/dental-api/internal/metrics"
	"github.com/giahuylhoang/dental-api/internal/schedule"
)

// SlotCache caches computed slot results per doctor. Implementations are
// best-effort: misses and failures just mean recomputation.
type SlotCache interface {
	Get(ctx context.Context, doctorID, serviceID int64, window schedule.Interval) (*SlotResult, bool)
	Set(ctx context.Context, doctorID, serviceID int64, window schedule.Interval, result *SlotResult)
	InvalidateDoctor(ctx context.Context, doctorID int64)
}

// EngineConfig carries the tunables of the availability engine. Zero values
// fall back to sensible defaults.
type EngineConfig struct {
	Granularity     time.Duration // slot grid step
	Horizon         time.Duration // longest window ComputeSlots accepts
	CalendarTimeout time.Duration // per-call budget for the external calendar
	Location        *time.Location
}

// Engine computes bookable slots and owns the appointment lifecycle. The
// appointment table is the source of truth; the external calendar is an
// eventually consistent mirror maintained best-effort.
type Engine struct {
	repo    Repository
	cal     calendar.Client // nil disables mirroring and busy-interval checks
	cache   SlotCache       // nil disables caching
	metrics *metrics.Metrics
	log     zerolog.Logger

	granularity time.Duration
	horizon     time.Duration
	calTimeout  time.Duration
	loc         *time.Location

	// Read-path reference data caches. Booking always revalidates against the
	// repository, so short staleness here is harmless.
	doctors  *expirable.LRU[int64, *Doctor]
	services *expirable.LRU[int64, *Service]
}

func NewEngine(repo Repository, cal calendar.Client, cache SlotCache, m *metrics.Metrics, log zerolog.Logger, cfg EngineConfig) *Engine {
	if cfg.Granularity <= 0 {
		cfg.Granularity = 30 * time.Minute
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 90 * 24 * time.Hour
	}
	if cfg.CalendarTimeout <= 0 {
		cfg.CalendarTimeout = 3 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Engine{
		repo:        repo,
		cal:         cal,
		cache:       cache,
		metrics:     m,
		log:         log.With().Str("component", "engine").Logger(),
		granularity: cfg.Granularity,
		horizon:     cfg.Horizon,
		calTimeout:  cfg.CalendarTimeout,
		loc:         cfg.Location,
		doctors:     expirable.NewLRU[int64, *Doctor](256, nil, time.Minute),
		services:    expirable.NewLRU[int64, *Service](256, nil, time.Minute),
	}
}

// ComputeSlots returns the bookable slots for a doctor and service inside the
// window. Read-only: working hours minus time off, active appointments and
// external busy intervals, quantized to the slot grid. A calendar failure
// degrades the result (CalendarUnverified) instead of failing the request.
func (e *Engine) ComputeSlots(ctx context.Context, doctorID, serviceID int64, window schedule.Interval) (*SlotResult, error) {
	if !window.Start.Before(window.End) {
		return nil, ErrInvalidWindow
	}
	if window.Duration() > e.horizon {
		return nil, ErrWindowTooLarge
	}

	doctor, err := e.doctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	service, err := e.serviceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, doctorID, serviceID, window); ok {
			return cached, nil
		}
	}

	working := schedule.WorkingIntervals(window, doctor.Hours, e.loc)

	var busy []schedule.Interval

	timeOff, err := e.repo.ListTimeOff(ctx, doctorID, window)
	if err != nil {
		return nil, fmt.Errorf("list time off: %w", err)
	}
	for _, t := range timeOff {
		busy = append(busy, schedule.Interval{Start: t.Start, End: t.End})
	}

	appts, err := e.repo.ListActiveAppointments(ctx, doctorID, window)
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}
	for _, a := range appts {
		busy = append(busy, a.Interval())
	}

	unverified := true
	if e.cal != nil {
		calCtx, cancel := context.WithTimeout(ctx, e.calTimeout)
		external, calErr := e.cal.ListBusyIntervals(calCtx, e.calendarRef(doctor), window.Start, window.End)
		cancel()
		if calErr != nil {
			// Degraded, not failed: internal records still produce a correct
			// if possibly stale answer.
			e.log.Warn().Err(calErr).Int64("doctor_id", doctorID).Msg("calendar fetch failed, returning unverified slots")
			e.metrics.DegradedSlotResult()
		} else {
			unverified = false
			for _, b := range external {
				busy = append(busy, schedule.Interval{Start: b.Start, End: b.End})
			}
		}
	}

	free := schedule.Subtract(working, busy)
	quantized := schedule.Quantize(free, service.Duration(), e.granularity)

	slots := make([]Slot, 0, len(quantized))
	for _, iv := range quantized {
		slots = append(slots, Slot{DoctorID: doctorID, Start: iv.Start, End: iv.End})
	}

	result := &SlotResult{Slots: slots, CalendarUnverified: unverified}

	// Degraded results are not cached; the next request should try the
	// calendar again.
	if e.cache != nil && !unverified {
		e.cache.Set(ctx, doctorID, serviceID, window, result)
	}

	return result, nil
}

// BookSlot books an aligned slot for a patient. The overlap re-check happens
// inside the repository's per-doctor critical section; of two concurrent
// bookings for overlapping intervals exactly one succeeds and the other gets
// a ConflictError.
func (e *Engine) BookSlot(ctx context.Context, params BookingParams) (*BookingResult, error) {
	service, err := e.repo.GetServiceByID(ctx, params.ServiceID)
	if err != nil {
		return nil, err
	}
	patient, err := e.repo.GetPatientByID(ctx, params.PatientID)
	if err != nil {
		return nil, err
	}
	doctor, err := e.repo.GetDoctorByID(ctx, params.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, ErrDoctorNotFound
	}

	localStart := params.Start.In(e.loc)
	if !schedule.AlignUp(localStart, e.granularity).Equal(localStart) {
		return nil, ErrUnalignedSlot
	}
	if !params.End.Equal(params.Start.Add(service.Duration())) {
		return nil, ErrBadSlotDuration
	}

	result, err := e.repo.BookAppointment(ctx, params)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			e.metrics.BookingOutcome("conflict")
		} else {
			e.metrics.BookingOutcome("error")
		}
		return nil, err
	}

	if result.Replayed {
		// Replay of an idempotency key; the mirror was handled by the
		// original call.
		e.metrics.BookingOutcome("replayed")
		return result, nil
	}
	e.metrics.BookingOutcome("booked")

	e.mirrorCreate(ctx, result.Appointment, doctor, patient, service)
	e.invalidateSlots(ctx, params.DoctorID)

	return result, nil
}

// CancelAppointment transitions an active appointment to cancelled and
// removes its mirrored event best-effort.
func (e *Engine) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.UpdateAppointmentStatus(ctx, id, StatusCancelled)
}

// UpdateAppointmentStatus applies one step of the appointment state machine.
func (e *Engine) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := e.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := e.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The compare-and-swap missed: someone changed the status between
			// our read and the update.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	if to == StatusCancelled {
		e.mirrorDelete(ctx, updated)
		e.invalidateSlots(ctx, updated.DoctorID)
	}

	return updated, nil
}

// RescheduleAppointment atomically moves an appointment to a new interval.
// When the new interval is taken the original appointment is left untouched.
func (e *Engine) RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (*Appointment, error) {
	appt, err := e.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	service, err := e.repo.GetServiceByID(ctx, appt.ServiceID)
	if err != nil {
		return nil, err
	}

	localStart := newStart.In(e.loc)
	if !schedule.AlignUp(localStart, e.granularity).Equal(localStart) {
		return nil, ErrUnalignedSlot
	}
	if !newEnd.Equal(newStart.Add(service.Duration())) {
		return nil, ErrBadSlotDuration
	}

	oldEventRef := appt.CalendarEventRef

	updated, err := e.repo.RescheduleAppointment(ctx, id, newStart, newEnd)
	if err != nil {
		return nil, err
	}

	// Re-mirror: drop the event at the old time, create one at the new time.
	if e.cal != nil {
		doctor, derr := e.repo.GetDoctorByID(ctx, updated.DoctorID)
		if derr != nil {
			e.log.Error().Err(derr).Str("appointment_id", id.String()).Msg("load doctor for re-mirror")
		} else {
			if oldEventRef != nil {
				e.deleteEvent(ctx, e.calendarRef(doctor), updated.ID, *oldEventRef)
			}
			patient, perr := e.repo.GetPatientByID(ctx, updated.PatientID)
			if perr != nil {
				e.log.Error().Err(perr).Str("appointment_id", id.String()).Msg("load patient for re-mirror")
			} else {
				e.mirrorCreate(ctx, updated, doctor, patient, service)
			}
		}
	}

	e.invalidateSlots(ctx, updated.DoctorID)
	return updated, nil
}

// DeleteAppointment hard-deletes an appointment row. This is an explicit
// admin operation; normal flow cancels instead.
func (e *Engine) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	deleted, err := e.repo.DeleteAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mirrorDelete(ctx, deleted)
	e.invalidateSlots(ctx, deleted.DoctorID)
	return deleted, nil
}

func (e *Engine) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.repo.GetAppointmentByID(ctx, id)
}

func (e *Engine) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return e.repo.ListAppointments(ctx, f)
}

// Mirroring

func (e *Engine) calendarRef(doctor *Doctor) string {
	return calendar.RefForDoctor(doctor.Name, doctor.CalendarRef)
}

// mirrorCreate pushes a booked appointment into the external calendar. A
// failure never affects the booking; it is recorded as a sync task for the
// out-of-band worker.
func (e *Engine) mirrorCreate(ctx context.Context, appt *Appointment, doctor *Doctor, patient *Patient, service *Service) {
	if e.cal == nil {
		return
	}

	reason := ""
	if appt.ReasonNote != nil {
		reason = *appt.ReasonNote
	}

	ev := calendar.Event{
		Summary: calendar.FormatSummary(patient.FullName(), service.Name),
		Description: calendar.FormatDescription(calendar.EventInfo{
			AppointmentID: appt.ID,
			PatientID:     patient.ID,
			DoctorID:      doctor.ID,
			ServiceID:     service.ID,
			PatientName:   patient.FullName(),
			ServiceName:   service.Name,
			Reason:        reason,
		}),
		Start: appt.Start,
		End:   appt.End,
	}

	ref := e.calendarRef(doctor)

	calCtx, cancel := context.WithTimeout(ctx, e.calTimeout)
	eventRef, err := e.cal.CreateEvent(calCtx, ref, ev)
	cancel()
	if err != nil {
		e.log.Warn().Err(err).
			Str("appointment_id", appt.ID.String()).
			Msg("calendar mirror failed, queued for retry")
		errMsg := err.Error()
		if qerr := e.repo.EnqueueSyncTask(ctx, SyncTask{
			AppointmentID: appt.ID,
			Action:        SyncCreate,
			CalendarRef:   &ref,
			LastError:     &errMsg,
		}); qerr != nil {
			e.log.Error().Err(qerr).Str("appointment_id", appt.ID.String()).Msg("enqueue sync task failed")
		}
		return
	}

	if err := e.repo.SetCalendarEventRef(ctx, appt.ID, eventRef); err != nil {
		e.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("persist calendar event ref failed")
	}
	appt.CalendarEventRef = &eventRef
}

// mirrorDelete removes a mirrored event best-effort, deferring to the sync
// worker on failure.
func (e *Engine) mirrorDelete(ctx context.Context, appt *Appointment) {
	if e.cal == nil || appt.CalendarEventRef == nil {
		return
	}

	ref := calendar.DefaultRef
	if doctor, err := e.repo.GetDoctorByID(ctx, appt.DoctorID); err == nil {
		ref = e.calendarRef(doctor)
	} else {
		e.log.Warn().Err(err).Int64("doctor_id", appt.DoctorID).Msg("load doctor for event deletion, using default calendar")
	}
	e.deleteEvent(ctx, ref, appt.ID, *appt.CalendarEventRef)
}

func (e *Engine) deleteEvent(ctx context.Context, calendarRef string, appointmentID uuid.UUID, eventRef string) {
	calCtx, cancel := context.WithTimeout(ctx, e.calTimeout)
	err := e.cal.DeleteEvent(calCtx, calendarRef, eventRef)
	cancel()
	if err == nil || errors.Is(err, calendar.ErrEventNotFound) {
		return
	}

	e.log.Warn().Err(err).
		Str("appointment_id", appointmentID.String()).
		Str("event_ref", eventRef).
		Msg("calendar event deletion failed, queued for retry")
	errMsg := err.Error()
	if qerr := e.repo.EnqueueSyncTask(ctx, SyncTask{
		AppointmentID: appointmentID,
		Action:        SyncDelete,
		CalendarRef:   &calendarRef,
		EventRef:      &eventRef,
		LastError:     &errMsg,
	}); qerr != nil {
		e.log.Error().Err(qerr).Str("appointment_id", appointmentID.String()).Msg("enqueue sync task failed")
	}
}

func (e *Engine) invalidateSlots(ctx context.Context, doctorID int64) {
	if e.cache != nil {
		e.cache.InvalidateDoctor(ctx, doctorID)
	}
}

// Reference data lookups with a small expiring LRU in front.

func (e *Engine) doctorByID(ctx context.Context, id int64) (*Doctor, error) {
	if d, ok := e.doctors.Get(id); ok {
		if !d.Active {
			return nil, ErrDoctorNotFound
		}
		return d, nil
	}

	d, err := e.repo.GetDoctorByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e.doctors.Add(id, d)

	if !d.Active {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (e *Engine) serviceByID(ctx context.Context, id int64) (*Service, error) {
	if s, ok := e.services.Get(id); ok {
		return s, nil
	}

	s, err := e.repo.GetServiceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e.services.Add(id, s)
	return s, nil
}

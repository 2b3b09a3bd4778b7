package clinic

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/giahuylhoang/dental-api/internal/schedule"
)

// BookingParams is everything the repository needs to attempt a booking inside
// one transaction.
type BookingParams struct {
	DoctorID       int64
	PatientID      uuid.UUID
	ServiceID      int64
	Start          time.Time
	End            time.Time
	ReasonNote     *string
	IdempotencyKey *string
}

// BookingResult distinguishes a fresh insert from an idempotency-key replay so
// the engine does not mirror the same appointment to the calendar twice.
type BookingResult struct {
	Appointment *Appointment
	Replayed    bool
}

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	DoctorID  *int64
	PatientID *uuid.UUID
	Status    *AppointmentStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// PatientUpdate carries the mutable patient fields; nil means leave unchanged.
type PatientUpdate struct {
	FirstName         *string
	LastName          *string
	DOB               *time.Time
	Phone             *string
	Email             *string
	InsuranceProvider *string
	GuardianName      *string
	GuardianContact   *string
	ConsentApproved   *bool
}

// LeadUpdate carries the mutable lead fields; nil means leave unchanged.
type LeadUpdate struct {
	Name   *string
	Phone  *string
	Email  *string
	Source *string
	Notes  *string
}

// Repository contains all DB interactions needed by the engine.
//
// BookAppointment and RescheduleAppointment must serialize per doctor: the
// implementation takes an exclusive lock on the doctor row for the duration of
// the overlap re-check and the write, so two concurrent calls for the same
// doctor cannot both succeed against overlapping intervals.
type Repository interface {
	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	ListTimeOff(ctx context.Context, doctorID int64, window schedule.Interval) ([]TimeOff, error)

	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context, limit, offset int) ([]Patient, error)
	FindPatientsByPhone(ctx context.Context, phone string) ([]Patient, error)
	CreatePatient(ctx context.Context, p Patient) (*Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*Patient, error)

	GetServiceByID(ctx context.Context, id int64) (*Service, error)
	ListServices(ctx context.Context, limit, offset int) ([]Service, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)
	// ListActiveAppointments returns {scheduled, confirmed} appointments for a
	// doctor whose interval intersects the window.
	ListActiveAppointments(ctx context.Context, doctorID int64, window schedule.Interval) ([]Appointment, error)

	BookAppointment(ctx context.Context, params BookingParams) (*BookingResult, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	SetCalendarEventRef(ctx context.Context, id uuid.UUID, eventRef string) error

	// Calendar mirror retry queue.
	EnqueueSyncTask(ctx context.Context, task SyncTask) error
	DueSyncTasks(ctx context.Context, now time.Time, limit int) ([]SyncTask, error)
	MarkSyncTaskDone(ctx context.Context, id int64) error
	MarkSyncTaskFailed(ctx context.Context, id int64, taskErr string) error

	CreateLead(ctx context.Context, l Lead) (*Lead, error)
	GetLeadByID(ctx context.Context, id uuid.UUID) (*Lead, error)
	ListLeads(ctx context.Context, status *LeadStatus, limit, offset int) ([]Lead, error)
	UpdateLead(ctx context.Context, id uuid.UUID, upd LeadUpdate) (*Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, from, to LeadStatus) (*Lead, error)
}

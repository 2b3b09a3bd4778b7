package clinic

import (
	"time"

	"github.com/google/uuid"

	"github.com/giahuylhoang/dental-api/internal/schedule"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// validTransitions is the appointment state machine. Cancelled, completed and
// no_show are terminal.
var validTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to AppointmentStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ActiveStatuses are the statuses that occupy a doctor's time. Only these
// participate in overlap checks and slot subtraction.
var ActiveStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed}

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadConverted LeadStatus = "converted"
	LeadLost      LeadStatus = "lost"
)

var validLeadTransitions = map[LeadStatus][]LeadStatus{
	LeadNew:       {LeadContacted, LeadQualified, LeadLost},
	LeadContacted: {LeadQualified, LeadConverted, LeadLost},
	LeadQualified: {LeadConverted, LeadLost},
}

// CanTransitionLead reports whether from -> to is an allowed lead status change.
func CanTransitionLead(from, to LeadStatus) bool {
	for _, allowed := range validLeadTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Doctor struct {
	ID          int64
	Name        string
	Specialty   *string
	CalendarRef string
	Active      bool
	Hours       schedule.WeeklyHours
}

type TimeOff struct {
	DoctorID int64
	Start    time.Time
	End      time.Time
	Reason   *string
}

type Patient struct {
	ID                uuid.UUID
	FirstName         *string
	LastName          *string
	DOB               *time.Time
	Phone             *string
	Email             *string
	InsuranceProvider *string
	IsMinor           bool
	GuardianName      *string
	GuardianContact   *string
	ConsentApproved   bool
	CreatedAt         time.Time
}

// FullName joins first and last name for calendar event titles.
func (p *Patient) FullName() string {
	name := ""
	if p.FirstName != nil {
		name = *p.FirstName
	}
	if p.LastName != nil && *p.LastName != "" {
		if name != "" {
			name += " "
		}
		name += *p.LastName
	}
	return name
}

type Service struct {
	ID          int64
	Name        string
	Description *string
	DurationMin int
	BasePrice   *float64
}

func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMin) * time.Minute
}

type Appointment struct {
	ID               uuid.UUID
	DoctorID         int64
	PatientID        uuid.UUID
	ServiceID        int64
	Start            time.Time
	End              time.Time
	Status           AppointmentStatus
	ReasonNote       *string
	CalendarEventRef *string
	IdempotencyKey   *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a *Appointment) Interval() schedule.Interval {
	return schedule.Interval{Start: a.Start, End: a.End}
}

type Lead struct {
	ID        uuid.UUID
	Name      *string
	Phone     *string
	Email     *string
	Source    *string
	Status    LeadStatus
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is a computed, unpersisted candidate booking interval.
type Slot struct {
	DoctorID int64
	Start    time.Time
	End      time.Time
}

// SlotResult is the outcome of a slot computation. CalendarUnverified is set
// when the external calendar could not be reached and the slots were derived
// from internal records alone.
type SlotResult struct {
	Slots              []Slot
	CalendarUnverified bool
}

type SyncAction string

const (
	SyncCreate SyncAction = "create"
	SyncDelete SyncAction = "delete"
)

// SyncTask is a durable record of a calendar mirror operation that has not
// succeeded yet. The sync worker retries these out of band.
type SyncTask struct {
	ID            int64
	AppointmentID uuid.UUID
	Action        SyncAction
	CalendarRef   *string
	EventRef      *string
	Attempts      int
	LastError     *string
	CreatedAt     time.Time
	DoneAt        *time.Time
}

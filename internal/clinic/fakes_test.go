package clinic

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giahuylhoang/dental-api/internal/calendar"
	"github.com/giahuylhoang/dental-api/internal/schedule"
)

// fakeRepo is an in-memory Repository. A single mutex serializes the booking
// critical section, mirroring the per-doctor row lock of the real thing.
type fakeRepo struct {
	mu           sync.Mutex
	doctors      map[int64]*Doctor
	services     map[int64]*Service
	patients     map[uuid.UUID]*Patient
	appointments map[uuid.UUID]*Appointment
	timeOff      []TimeOff
	leads        map[uuid.UUID]*Lead
	tasks        []*SyncTask
	nextTaskID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		doctors:      map[int64]*Doctor{},
		services:     map[int64]*Service{},
		patients:     map[uuid.UUID]*Patient{},
		appointments: map[uuid.UUID]*Appointment{},
		leads:        map[uuid.UUID]*Lead{},
	}
}

func (r *fakeRepo) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeRepo) ListDoctors(ctx context.Context) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Doctor
	for _, d := range r.doctors {
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeRepo) ListTimeOff(ctx context.Context, doctorID int64, window schedule.Interval) ([]TimeOff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TimeOff
	for _, t := range r.timeOff {
		if t.DoctorID == doctorID && t.Start.Before(window.End) && t.End.After(window.Start) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) ListPatients(ctx context.Context, limit, offset int) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Patient
	for _, p := range r.patients {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeRepo) FindPatientsByPhone(ctx context.Context, phone string) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Patient
	for _, p := range r.patients {
		if p.Phone != nil && *p.Phone == phone {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	r.patients[p.ID] = &p
	cp := p
	return &cp, nil
}

func (r *fakeRepo) UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	if upd.FirstName != nil {
		p.FirstName = upd.FirstName
	}
	if upd.LastName != nil {
		p.LastName = upd.LastName
	}
	if upd.Phone != nil {
		p.Phone = upd.Phone
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) GetServiceByID(ctx context.Context, id int64) (*Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) ListServices(ctx context.Context, limit, offset int) ([]Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Service
	for _, s := range r.services {
		out = append(out, *s)
	}
	return out, nil
}

func (r *fakeRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeRepo) ListActiveAppointments(ctx context.Context, doctorID int64, window schedule.Interval) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		if a.Status != StatusScheduled && a.Status != StatusConfirmed {
			continue
		}
		if a.Start.Before(window.End) && a.End.After(window.Start) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) BookAppointment(ctx context.Context, params BookingParams) (*BookingResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[params.DoctorID]
	if !ok || !d.Active {
		return nil, ErrDoctorNotFound
	}

	if params.IdempotencyKey != nil {
		for _, a := range r.appointments {
			if a.IdempotencyKey != nil && *a.IdempotencyKey == *params.IdempotencyKey {
				cp := *a
				return &BookingResult{Appointment: &cp, Replayed: true}, nil
			}
		}
	}

	for _, a := range r.appointments {
		if a.DoctorID != params.DoctorID {
			continue
		}
		if a.Status != StatusScheduled && a.Status != StatusConfirmed {
			continue
		}
		if a.Start.Before(params.End) && a.End.After(params.Start) {
			return nil, &ConflictError{AppointmentID: a.ID, Start: a.Start, End: a.End}
		}
	}

	now := time.Now()
	appt := &Appointment{
		ID:             uuid.New(),
		DoctorID:       params.DoctorID,
		PatientID:      params.PatientID,
		ServiceID:      params.ServiceID,
		Start:          params.Start,
		End:            params.End,
		Status:         StatusScheduled,
		ReasonNote:     params.ReasonNote,
		IdempotencyKey: params.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.appointments[appt.ID] = appt
	cp := *appt
	return &BookingResult{Appointment: &cp}, nil
}

func (r *fakeRepo) RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if appt.Status != StatusScheduled && appt.Status != StatusConfirmed {
		return nil, ErrNotReschedulable
	}

	for _, a := range r.appointments {
		if a.ID == id || a.DoctorID != appt.DoctorID {
			continue
		}
		if a.Status != StatusScheduled && a.Status != StatusConfirmed {
			continue
		}
		if a.Start.Before(newEnd) && a.End.After(newStart) {
			return nil, &ConflictError{AppointmentID: a.ID, Start: a.Start, End: a.End}
		}
	}

	appt.Start = newStart
	appt.End = newEnd
	appt.CalendarEventRef = nil
	appt.UpdatedAt = time.Now()
	cp := *appt
	return &cp, nil
}

func (r *fakeRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok || appt.Status != from {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = to
	appt.UpdatedAt = time.Now()
	cp := *appt
	return &cp, nil
}

func (r *fakeRepo) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	cp := *appt
	return &cp, nil
}

func (r *fakeRepo) SetCalendarEventRef(ctx context.Context, id uuid.UUID, eventRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	appt.CalendarEventRef = &eventRef
	return nil
}

func (r *fakeRepo) EnqueueSyncTask(ctx context.Context, task SyncTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextTaskID++
	task.ID = r.nextTaskID
	task.CreatedAt = time.Now()
	r.tasks = append(r.tasks, &task)
	return nil
}

func (r *fakeRepo) DueSyncTasks(ctx context.Context, now time.Time, limit int) ([]SyncTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SyncTask
	for _, t := range r.tasks {
		if t.DoneAt != nil {
			continue
		}
		backoff := time.Duration(1<<uint(t.Attempts)) * time.Minute
		if backoff > time.Hour {
			backoff = time.Hour
		}
		if t.CreatedAt.Add(backoff).After(now) {
			continue
		}
		out = append(out, *t)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeRepo) MarkSyncTaskDone(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == id {
			now := time.Now()
			t.DoneAt = &now
			return nil
		}
	}
	return fmt.Errorf("task %d not found", id)
}

func (r *fakeRepo) MarkSyncTaskFailed(ctx context.Context, id int64, taskErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == id {
			t.Attempts++
			t.LastError = &taskErr
			return nil
		}
	}
	return fmt.Errorf("task %d not found", id)
}

func (r *fakeRepo) CreateLead(ctx context.Context, l Lead) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = LeadNew
	}
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now
	r.leads[l.ID] = &l
	cp := l
	return &cp, nil
}

func (r *fakeRepo) GetLeadByID(ctx context.Context, id uuid.UUID) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeRepo) ListLeads(ctx context.Context, status *LeadStatus, limit, offset int) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Lead
	for _, l := range r.leads {
		if status != nil && l.Status != *status {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

func (r *fakeRepo) UpdateLead(ctx context.Context, id uuid.UUID, upd LeadUpdate) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	if upd.Name != nil {
		l.Name = upd.Name
	}
	if upd.Notes != nil {
		l.Notes = upd.Notes
	}
	l.UpdatedAt = time.Now()
	cp := *l
	return &cp, nil
}

func (r *fakeRepo) UpdateLeadStatus(ctx context.Context, id uuid.UUID, from, to LeadStatus) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.Status != from {
		return nil, ErrLeadNotFound
	}
	l.Status = to
	l.UpdatedAt = time.Now()
	cp := *l
	return &cp, nil
}

// fakeCalendar records mirrored events and can be flipped into failure modes.
type fakeCalendar struct {
	mu         sync.Mutex
	busy       []calendar.BusyInterval
	failReads  bool
	failWrites bool
	events     map[string]calendar.Event
	nextID     int
	deleted    []string
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]calendar.Event{}}
}

func (c *fakeCalendar) ListBusyIntervals(ctx context.Context, calendarRef string, from, to time.Time) ([]calendar.BusyInterval, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failReads {
		return nil, calendar.ErrUnavailable
	}
	var out []calendar.BusyInterval
	for _, b := range c.busy {
		if b.Start.Before(to) && b.End.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (c *fakeCalendar) CreateEvent(ctx context.Context, calendarRef string, ev calendar.Event) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return "", calendar.ErrUnavailable
	}
	c.nextID++
	ref := "evt-" + strconv.Itoa(c.nextID)
	c.events[ref] = ev
	return ref, nil
}

func (c *fakeCalendar) DeleteEvent(ctx context.Context, calendarRef, eventRef string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return calendar.ErrUnavailable
	}
	if _, ok := c.events[eventRef]; !ok {
		return calendar.ErrEventNotFound
	}
	delete(c.events, eventRef)
	c.deleted = append(c.deleted, eventRef)
	return nil
}

func (c *fakeCalendar) eventCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

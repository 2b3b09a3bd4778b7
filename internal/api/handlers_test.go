package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giahuylhoang/dental-api/internal/clinic"
	"github.com/giahuylhoang/dental-api/internal/schedule"
)

// stubRepo backs handler tests with one doctor, one service, one patient and
// an in-memory appointment map. Everything else answers not-found.
type stubRepo struct {
	doctor       clinic.Doctor
	service      clinic.Service
	patient      clinic.Patient
	appointments map[uuid.UUID]*clinic.Appointment
}

func newStubRepo() *stubRepo {
	first, last := "Ada", "Kowalski"
	return &stubRepo{
		doctor: clinic.Doctor{
			ID:     1,
			Name:   "Erin Woods",
			Active: true,
			Hours: schedule.WeeklyHours{
				time.Monday: {{StartMin: 9 * 60, EndMin: 17 * 60}},
			},
		},
		service: clinic.Service{ID: 10, Name: "Checkup", DurationMin: 30},
		patient: clinic.Patient{
			ID:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			FirstName: &first,
			LastName:  &last,
		},
		appointments: map[uuid.UUID]*clinic.Appointment{},
	}
}

func (r *stubRepo) GetDoctorByID(_ context.Context, id int64) (*clinic.Doctor, error) {
	if id != r.doctor.ID {
		return nil, clinic.ErrDoctorNotFound
	}
	d := r.doctor
	return &d, nil
}

func (r *stubRepo) ListDoctors(context.Context) ([]clinic.Doctor, error) {
	return []clinic.Doctor{r.doctor}, nil
}

func (r *stubRepo) ListTimeOff(context.Context, int64, schedule.Interval) ([]clinic.TimeOff, error) {
	return nil, nil
}

func (r *stubRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*clinic.Patient, error) {
	if id != r.patient.ID {
		return nil, clinic.ErrPatientNotFound
	}
	p := r.patient
	return &p, nil
}

func (r *stubRepo) ListPatients(context.Context, int, int) ([]clinic.Patient, error) {
	return []clinic.Patient{r.patient}, nil
}

func (r *stubRepo) FindPatientsByPhone(context.Context, string) ([]clinic.Patient, error) {
	return nil, nil
}

func (r *stubRepo) CreatePatient(_ context.Context, p clinic.Patient) (*clinic.Patient, error) {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	return &p, nil
}

func (r *stubRepo) UpdatePatient(context.Context, uuid.UUID, clinic.PatientUpdate) (*clinic.Patient, error) {
	return nil, clinic.ErrPatientNotFound
}

func (r *stubRepo) GetServiceByID(_ context.Context, id int64) (*clinic.Service, error) {
	if id != r.service.ID {
		return nil, clinic.ErrServiceNotFound
	}
	s := r.service
	return &s, nil
}

func (r *stubRepo) ListServices(context.Context, int, int) ([]clinic.Service, error) {
	return []clinic.Service{r.service}, nil
}

func (r *stubRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	a, ok := r.appointments[id]
	if !ok {
		return nil, clinic.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *stubRepo) ListAppointments(context.Context, clinic.AppointmentFilter) ([]clinic.Appointment, error) {
	var out []clinic.Appointment
	for _, a := range r.appointments {
		out = append(out, *a)
	}
	return out, nil
}

func (r *stubRepo) ListActiveAppointments(context.Context, int64, schedule.Interval) ([]clinic.Appointment, error) {
	return nil, nil
}

func (r *stubRepo) BookAppointment(_ context.Context, params clinic.BookingParams) (*clinic.BookingResult, error) {
	for _, a := range r.appointments {
		if a.Status == clinic.StatusScheduled && a.Start.Before(params.End) && a.End.After(params.Start) {
			return nil, &clinic.ConflictError{AppointmentID: a.ID, Start: a.Start, End: a.End}
		}
	}
	now := time.Now()
	appt := &clinic.Appointment{
		ID:        uuid.New(),
		DoctorID:  params.DoctorID,
		PatientID: params.PatientID,
		ServiceID: params.ServiceID,
		Start:     params.Start,
		End:       params.End,
		Status:    clinic.StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.appointments[appt.ID] = appt
	cp := *appt
	return &clinic.BookingResult{Appointment: &cp}, nil
}

func (r *stubRepo) RescheduleAppointment(context.Context, uuid.UUID, time.Time, time.Time) (*clinic.Appointment, error) {
	return nil, clinic.ErrAppointmentNotFound
}

func (r *stubRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to clinic.AppointmentStatus) (*clinic.Appointment, error) {
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, clinic.ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (r *stubRepo) DeleteAppointment(_ context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	a, ok := r.appointments[id]
	if !ok {
		return nil, clinic.ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return a, nil
}

func (r *stubRepo) SetCalendarEventRef(context.Context, uuid.UUID, string) error { return nil }

func (r *stubRepo) EnqueueSyncTask(context.Context, clinic.SyncTask) error { return nil }

func (r *stubRepo) DueSyncTasks(context.Context, time.Time, int) ([]clinic.SyncTask, error) {
	return nil, nil
}

func (r *stubRepo) MarkSyncTaskDone(context.Context, int64) error { return nil }

func (r *stubRepo) MarkSyncTaskFailed(context.Context, int64, string) error { return nil }

func (r *stubRepo) CreateLead(_ context.Context, l clinic.Lead) (*clinic.Lead, error) {
	l.ID = uuid.New()
	if l.Status == "" {
		l.Status = clinic.LeadNew
	}
	return &l, nil
}

func (r *stubRepo) GetLeadByID(context.Context, uuid.UUID) (*clinic.Lead, error) {
	return nil, clinic.ErrLeadNotFound
}

func (r *stubRepo) ListLeads(context.Context, *clinic.LeadStatus, int, int) ([]clinic.Lead, error) {
	return nil, nil
}

func (r *stubRepo) UpdateLead(context.Context, uuid.UUID, clinic.LeadUpdate) (*clinic.Lead, error) {
	return nil, clinic.ErrLeadNotFound
}

func (r *stubRepo) UpdateLeadStatus(context.Context, uuid.UUID, clinic.LeadStatus, clinic.LeadStatus) (*clinic.Lead, error) {
	return nil, clinic.ErrLeadNotFound
}

func newTestServer(t *testing.T) (*httptest.Server, *stubRepo) {
	t.Helper()

	repo := newStubRepo()
	engine := clinic.NewEngine(repo, nil, nil, nil, zerolog.Nop(), clinic.EngineConfig{
		Granularity: 30 * time.Minute,
		Location:    time.UTC,
	})

	router := NewRouter(RouterConfig{
		Engine: engine,
		Logger: zerolog.Nop(),
		Env:    "test",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, repo
}

func TestGetSlots(t *testing.T) {
	srv, _ := newTestServer(t)

	// monday 2025-06-02, doctor works 9-17
	resp, err := http.Get(srv.URL + "/api/calendar/slots?doctor_id=1&service_id=10" +
		"&start=2025-06-02T09:00:00Z&end=2025-06-02T11:00:00Z")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body SlotsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Slots, 4)
	assert.True(t, body.CalendarUnverified) // no calendar configured
}

func TestGetSlotsBadParams(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/calendar/slots?doctor_id=abc&service_id=10" +
		"&start=2025-06-02&end=2025-06-03")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/calendar/slots?doctor_id=1&service_id=10" +
		"&start=yesterday&end=tomorrow")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSlotsUnknownDoctor(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/calendar/slots?doctor_id=99&service_id=10" +
		"&start=2025-06-02&end=2025-06-03")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "doctor_not_found", body.Error)
}

func postJSON(t *testing.T, url string, payload string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestBookAppointment(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/appointments", `{
		"doctor_id": 1,
		"patient_id": "11111111-1111-1111-1111-111111111111",
		"service_id": 10,
		"start_time": "2025-06-02T10:00:00Z",
		"end_time": "2025-06-02T10:30:00Z"
	}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body AppointmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "scheduled", body.Status)
	assert.NotEqual(t, uuid.Nil, body.ID)
}

func TestBookAppointmentConflict(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := `{
		"doctor_id": 1,
		"patient_id": "11111111-1111-1111-1111-111111111111",
		"service_id": 10,
		"start_time": "2025-06-02T10:00:00Z",
		"end_time": "2025-06-02T10:30:00Z"
	}`

	resp := postJSON(t, srv.URL+"/api/appointments", payload)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/appointments", payload)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "slot_conflict", body.Error)
	require.NotNil(t, body.Conflict)
	assert.NotEmpty(t, body.Conflict.AppointmentID)
}

func TestBookAppointmentValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/appointments", `{not json`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// unaligned start
	resp = postJSON(t, srv.URL+"/api/appointments", `{
		"doctor_id": 1,
		"patient_id": "11111111-1111-1111-1111-111111111111",
		"service_id": 10,
		"start_time": "2025-06-02T10:10:00Z",
		"end_time": "2025-06-02T10:40:00Z"
	}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// unknown patient
	resp = postJSON(t, srv.URL+"/api/appointments", `{
		"doctor_id": 1,
		"patient_id": "22222222-2222-2222-2222-222222222222",
		"service_id": 10,
		"start_time": "2025-06-02T10:00:00Z",
		"end_time": "2025-06-02T10:30:00Z"
	}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAppointmentLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	client := srv.Client()

	resp := postJSON(t, srv.URL+"/api/appointments", `{
		"doctor_id": 1,
		"patient_id": "11111111-1111-1111-1111-111111111111",
		"service_id": 10,
		"start_time": "2025-06-02T10:00:00Z",
		"end_time": "2025-06-02T10:30:00Z"
	}`)
	var created AppointmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	// read it back
	resp, err := client.Get(srv.URL + "/api/appointments/" + created.ID.String())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// invalid transition: scheduled -> completed
	req, _ := http.NewRequest(http.MethodPut,
		srv.URL+"/api/appointments/"+created.ID.String()+"/status",
		strings.NewReader(`{"status": "completed"}`))
	resp, err = client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errBody ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	assert.Equal(t, "invalid_state", errBody.Error)

	// cancel
	req, _ = http.NewRequest(http.MethodPut,
		srv.URL+"/api/appointments/"+created.ID.String()+"/cancel", nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetUnknownAppointment(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/appointments/" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/appointments/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListDoctors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/doctors")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body []DoctorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, "Erin Woods", body[0].Name)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/doctors")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/doctors", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-me", resp.Header.Get("X-Request-ID"))
}

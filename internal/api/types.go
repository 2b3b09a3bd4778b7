package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/giahuylhoang/dental-api/internal/clinic"
)

type SlotResponse struct {
	DoctorID  int64     `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type SlotsResponse struct {
	DoctorID           int64          `json:"doctor_id"`
	ServiceID          int64          `json:"service_id"`
	CalendarUnverified bool           `json:"calendar_unverified"`
	Slots              []SlotResponse `json:"slots"`
}

type BookAppointmentRequest struct {
	DoctorID       int64     `json:"doctor_id"`
	PatientID      string    `json:"patient_id"`
	ServiceID      int64     `json:"service_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Reason         *string   `json:"reason,omitempty"`
	IdempotencyKey *string   `json:"idempotency_key,omitempty"`
}

type RescheduleRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID               uuid.UUID `json:"id"`
	DoctorID         int64     `json:"doctor_id"`
	PatientID        uuid.UUID `json:"patient_id"`
	ServiceID        int64     `json:"service_id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Status           string    `json:"status"`
	ReasonNote       *string   `json:"reason_note,omitempty"`
	CalendarEventRef *string   `json:"calendar_event_ref,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *clinic.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		DoctorID:         a.DoctorID,
		PatientID:        a.PatientID,
		ServiceID:        a.ServiceID,
		StartTime:        a.Start,
		EndTime:          a.End,
		Status:           string(a.Status),
		ReasonNote:       a.ReasonNote,
		CalendarEventRef: a.CalendarEventRef,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type DoctorResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Specialty *string `json:"specialty,omitempty"`
	Active    bool    `json:"active"`
}

func toDoctorResponse(d *clinic.Doctor) DoctorResponse {
	return DoctorResponse{ID: d.ID, Name: d.Name, Specialty: d.Specialty, Active: d.Active}
}

type ServiceResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	DurationMin int      `json:"duration_min"`
	BasePrice   *float64 `json:"base_price,omitempty"`
}

func toServiceResponse(s *clinic.Service) ServiceResponse {
	return ServiceResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		DurationMin: s.DurationMin,
		BasePrice:   s.BasePrice,
	}
}

type PatientRequest struct {
	FirstName         *string `json:"first_name,omitempty"`
	LastName          *string `json:"last_name,omitempty"`
	DOB               *string `json:"dob,omitempty"` // YYYY-MM-DD
	Phone             *string `json:"phone,omitempty"`
	Email             *string `json:"email,omitempty"`
	InsuranceProvider *string `json:"insurance_provider,omitempty"`
	IsMinor           *bool   `json:"is_minor,omitempty"`
	GuardianName      *string `json:"guardian_name,omitempty"`
	GuardianContact   *string `json:"guardian_contact,omitempty"`
	ConsentApproved   *bool   `json:"consent_approved,omitempty"`
}

type PatientResponse struct {
	ID                uuid.UUID `json:"id"`
	FirstName         *string   `json:"first_name,omitempty"`
	LastName          *string   `json:"last_name,omitempty"`
	DOB               *string   `json:"dob,omitempty"`
	Phone             *string   `json:"phone,omitempty"`
	Email             *string   `json:"email,omitempty"`
	InsuranceProvider *string   `json:"insurance_provider,omitempty"`
	IsMinor           bool      `json:"is_minor"`
	GuardianName      *string   `json:"guardian_name,omitempty"`
	GuardianContact   *string   `json:"guardian_contact,omitempty"`
	ConsentApproved   bool      `json:"consent_approved"`
	CreatedAt         time.Time `json:"created_at"`
}

func toPatientResponse(p *clinic.Patient) PatientResponse {
	resp := PatientResponse{
		ID:                p.ID,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		Phone:             p.Phone,
		Email:             p.Email,
		InsuranceProvider: p.InsuranceProvider,
		IsMinor:           p.IsMinor,
		GuardianName:      p.GuardianName,
		GuardianContact:   p.GuardianContact,
		ConsentApproved:   p.ConsentApproved,
		CreatedAt:         p.CreatedAt,
	}
	if p.DOB != nil {
		dob := p.DOB.Format("2006-01-02")
		resp.DOB = &dob
	}
	return resp
}

type VerifyPatientRequest struct {
	Phone string  `json:"phone"`
	Name  *string `json:"name,omitempty"`
	DOB   *string `json:"dob,omitempty"` // YYYY-MM-DD
}

type VerifyPatientResponse struct {
	Verified bool              `json:"verified"`
	Matches  []PatientResponse `json:"matches"`
}

type LeadRequest struct {
	Name   *string `json:"name,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Email  *string `json:"email,omitempty"`
	Source *string `json:"source,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type LeadResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      *string   `json:"name,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Source    *string   `json:"source,omitempty"`
	Status    string    `json:"status"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toLeadResponse(l *clinic.Lead) LeadResponse {
	return LeadResponse{
		ID:        l.ID,
		Name:      l.Name,
		Phone:     l.Phone,
		Email:     l.Email,
		Source:    l.Source,
		Status:    string(l.Status),
		Notes:     l.Notes,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

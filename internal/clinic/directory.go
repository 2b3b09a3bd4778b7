package clinic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Directory operations: CRUD around the entities the booking flow references.
// Thin on purpose; validation beyond referential checks lives at the HTTP
// boundary.

func (e *Engine) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	return e.repo.GetDoctorByID(ctx, id)
}

func (e *Engine) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return e.repo.ListDoctors(ctx)
}

func (e *Engine) GetService(ctx context.Context, id int64) (*Service, error) {
	return e.repo.GetServiceByID(ctx, id)
}

func (e *Engine) ListServices(ctx context.Context, limit, offset int) ([]Service, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.repo.ListServices(ctx, limit, offset)
}

func (e *Engine) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return e.repo.GetPatientByID(ctx, id)
}

func (e *Engine) ListPatients(ctx context.Context, limit, offset int) ([]Patient, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return e.repo.ListPatients(ctx, limit, offset)
}

func (e *Engine) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	return e.repo.CreatePatient(ctx, p)
}

func (e *Engine) UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*Patient, error) {
	return e.repo.UpdatePatient(ctx, id, upd)
}

// VerifyPatient matches existing patients by phone, optionally narrowed by
// name and date of birth. Used by the front desk to find a returning patient
// before booking.
func (e *Engine) VerifyPatient(ctx context.Context, phone string, name *string, dob *time.Time) ([]Patient, error) {
	candidates, err := e.repo.FindPatientsByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	matches := make([]Patient, 0, len(candidates))
	for _, p := range candidates {
		if name != nil && !strings.EqualFold(strings.TrimSpace(*name), p.FullName()) {
			continue
		}
		if dob != nil {
			if p.DOB == nil {
				continue
			}
			dy, dm, dd := p.DOB.Date()
			wy, wm, wd := dob.Date()
			if dy != wy || dm != wm || dd != wd {
				continue
			}
		}
		matches = append(matches, p)
	}
	return matches, nil
}

// Leads

func (e *Engine) CreateLead(ctx context.Context, l Lead) (*Lead, error) {
	if l.Status == "" {
		l.Status = LeadNew
	}
	return e.repo.CreateLead(ctx, l)
}

func (e *Engine) GetLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	return e.repo.GetLeadByID(ctx, id)
}

func (e *Engine) ListLeads(ctx context.Context, status *LeadStatus, limit, offset int) ([]Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.repo.ListLeads(ctx, status, limit, offset)
}

func (e *Engine) UpdateLead(ctx context.Context, id uuid.UUID, upd LeadUpdate) (*Lead, error) {
	return e.repo.UpdateLead(ctx, id, upd)
}

// UpdateLeadStatus applies one step of the lead funnel state machine.
func (e *Engine) UpdateLeadStatus(ctx context.Context, id uuid.UUID, to LeadStatus) (*Lead, error) {
	lead, err := e.repo.GetLeadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransitionLead(lead.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := e.repo.UpdateLeadStatus(ctx, id, lead.Status, to)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return updated, nil
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/giahuylhoang/dental-api/internal/clinic"
)

// createLeadHandler handles POST /api/leads
func createLeadHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LeadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body")
			return
		}
		if req.Phone == nil && req.Email == nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "a phone or email is required")
			return
		}

		lead, err := engine.CreateLead(r.Context(), clinic.Lead{
			Name:   req.Name,
			Phone:  req.Phone,
			Email:  req.Email,
			Source: req.Source,
			Notes:  req.Notes,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLeadResponse(lead))
	}
}

// listLeadsHandler handles GET /api/leads
func listLeadsHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var status *clinic.LeadStatus
		if v := q.Get("status"); v != "" {
			s := clinic.LeadStatus(v)
			status = &s
		}
		limit, offset := parsePagination(q.Get("limit"), q.Get("offset"))

		leads, err := engine.ListLeads(r.Context(), status, limit, offset)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		resp := make([]LeadResponse, 0, len(leads))
		for i := range leads {
			resp = append(resp, toLeadResponse(&leads[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// getLeadHandler handles GET /api/leads/{id}
func getLeadHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		lead, err := engine.GetLead(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeadResponse(lead))
	}
}

// updateLeadHandler handles PUT /api/leads/{id}
func updateLeadHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		var req LeadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body")
			return
		}

		lead, err := engine.UpdateLead(r.Context(), id, clinic.LeadUpdate{
			Name:   req.Name,
			Phone:  req.Phone,
			Email:  req.Email,
			Source: req.Source,
			Notes:  req.Notes,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeadResponse(lead))
	}
}

// updateLeadStatusHandler handles PUT /api/leads/{id}/status
func updateLeadStatusHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		var req StatusUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
			writeError(w, http.StatusBadRequest, "invalid_argument", "status is required")
			return
		}

		lead, err := engine.UpdateLeadStatus(r.Context(), id, clinic.LeadStatus(req.Status))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeadResponse(lead))
	}
}

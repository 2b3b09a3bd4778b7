package api

import (
	"encoding/json"
	"net/http"

	"github.com/giahuylhoang/dental-api/internal/clinic"
)

// listPatientsHandler handles GET /api/patients
func listPatientsHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := parsePagination(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
		patients, err := engine.ListPatients(r.Context(), limit, offset)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		resp := make([]PatientResponse, 0, len(patients))
		for i := range patients {
			resp = append(resp, toPatientResponse(&patients[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// getPatientHandler handles GET /api/patients/{id}
func getPatientHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		patient, err := engine.GetPatient(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(patient))
	}
}

// createPatientHandler handles POST /api/patients
func createPatientHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body")
			return
		}
		if req.FirstName == nil && req.LastName == nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "a name is required")
			return
		}

		dob, err := parseOptionalDate(req.DOB)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "dob must be YYYY-MM-DD")
			return
		}

		p := clinic.Patient{
			FirstName:         req.FirstName,
			LastName:          req.LastName,
			DOB:               dob,
			Phone:             req.Phone,
			Email:             req.Email,
			InsuranceProvider: req.InsuranceProvider,
			GuardianName:      req.GuardianName,
			GuardianContact:   req.GuardianContact,
		}
		if req.IsMinor != nil {
			p.IsMinor = *req.IsMinor
		}
		if req.ConsentApproved != nil {
			p.ConsentApproved = *req.ConsentApproved
		}

		created, err := engine.CreatePatient(r.Context(), p)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPatientResponse(created))
	}
}

// updatePatientHandler handles PUT /api/patients/{id}
func updatePatientHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		var req PatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body")
			return
		}

		dob, err := parseOptionalDate(req.DOB)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "dob must be YYYY-MM-DD")
			return
		}

		updated, err := engine.UpdatePatient(r.Context(), id, clinic.PatientUpdate{
			FirstName:         req.FirstName,
			LastName:          req.LastName,
			DOB:               dob,
			Phone:             req.Phone,
			Email:             req.Email,
			InsuranceProvider: req.InsuranceProvider,
			GuardianName:      req.GuardianName,
			GuardianContact:   req.GuardianContact,
			ConsentApproved:   req.ConsentApproved,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(updated))
	}
}

// verifyPatientHandler handles POST /api/patients/verify
func verifyPatientHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
			writeError(w, http.StatusBadRequest, "invalid_argument", "phone is required")
			return
		}

		dob, err := parseOptionalDate(req.DOB)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "dob must be YYYY-MM-DD")
			return
		}

		matches, err := engine.VerifyPatient(r.Context(), req.Phone, req.Name, dob)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		resp := VerifyPatientResponse{
			Verified: len(matches) > 0,
			Matches:  make([]PatientResponse, 0, len(matches)),
		}
		for i := range matches {
			resp.Matches = append(resp.Matches, toPatientResponse(&matches[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

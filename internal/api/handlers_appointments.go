package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/giahuylhoang/dental-api/internal/clinic"
)

// bookAppointmentHandler handles POST /api/appointments
func bookAppointmentHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "patient_id must be a UUID")
			return
		}
		if req.DoctorID == 0 || req.ServiceID == 0 {
			writeError(w, http.StatusBadRequest, "invalid_argument", "doctor_id and service_id are required")
			return
		}
		if req.StartTime.IsZero() || req.EndTime.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_argument", "start_time and end_time are required")
			return
		}

		// The header wins over the body field when both are present.
		idemKey := req.IdempotencyKey
		if h := r.Header.Get("Idempotency-Key"); h != "" {
			idemKey = &h
		}

		result, err := engine.BookSlot(r.Context(), clinic.BookingParams{
			DoctorID:       req.DoctorID,
			PatientID:      patientID,
			ServiceID:      req.ServiceID,
			Start:          req.StartTime,
			End:            req.EndTime,
			ReasonNote:     req.Reason,
			IdempotencyKey: idemKey,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		writeJSON(w, status, toAppointmentResponse(result.Appointment))
	}
}

// listAppointmentsHandler handles GET /api/appointments
func listAppointmentsHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f clinic.AppointmentFilter

		if v := q.Get("doctor_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_argument", "doctor_id must be an integer")
				return
			}
			f.DoctorID = &id
		}
		if v := q.Get("patient_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_argument", "patient_id must be a UUID")
				return
			}
			f.PatientID = &id
		}
		if v := q.Get("status"); v != "" {
			status := clinic.AppointmentStatus(v)
			f.Status = &status
		}
		if v := q.Get("from"); v != "" {
			t, err := parseTimeParam(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_argument", "from must be RFC 3339 or YYYY-MM-DD")
				return
			}
			f.From = &t
		}
		if v := q.Get("to"); v != "" {
			t, err := parseTimeParam(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_argument", "to must be RFC 3339 or YYYY-MM-DD")
				return
			}
			f.To = &t
		}
		f.Limit, f.Offset = parsePagination(q.Get("limit"), q.Get("offset"))

		appts, err := engine.ListAppointments(r.Context(), f)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// getAppointmentHandler handles GET /api/appointments/{id}
func getAppointmentHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		appt, err := engine.GetAppointment(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// cancelAppointmentHandler handles PUT /api/appointments/{id}/cancel
func cancelAppointmentHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		appt, err := engine.CancelAppointment(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// updateAppointmentStatusHandler handles PUT /api/appointments/{id}/status
func updateAppointmentStatusHandler(engine *clinic.Engine) http.HandlerFunc {
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

		appt, err := engine.UpdateAppointmentStatus(r.Context(), id, clinic.AppointmentStatus(req.Status))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// rescheduleAppointmentHandler handles PUT /api/appointments/{id}/reschedule
func rescheduleAppointmentHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body")
			return
		}
		if req.StartTime.IsZero() || req.EndTime.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_argument", "start_time and end_time are required")
			return
		}

		appt, err := engine.RescheduleAppointment(r.Context(), id, req.StartTime, req.EndTime)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// deleteAppointmentHandler handles DELETE /api/appointments/{id}
func deleteAppointmentHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		appt, err := engine.DeleteAppointment(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"deleted":        true,
			"appointment_id": appt.ID,
		})
	}
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(limitStr, offsetStr string) (limit, offset int) {
	if v, err := strconv.Atoi(limitStr); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(offsetStr); err == nil {
		offset = v
	}
	return limit, offset
}

func parseOptionalDate(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/giahuylhoang/dental-api/internal/clinic"
)

type ErrorResponse struct {
	Error    string            `json:"error"`
	Details  string            `json:"details,omitempty"`
	Conflict *ConflictResponse `json:"conflict,omitempty"`
}

type ConflictResponse struct {
	AppointmentID string    `json:"appointment_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeEngineError maps engine errors onto the HTTP taxonomy: caller mistakes
// are 4xx, conflicts 409, and anything unexpected is 503 since every engine
// operation is transactional or read-only and therefore safe to retry whole.
func writeEngineError(w http.ResponseWriter, err error) {
	var conflict *clinic.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "slot_conflict",
			Details: "the requested interval overlaps an existing appointment",
			Conflict: &ConflictResponse{
				AppointmentID: conflict.AppointmentID.String(),
				StartTime:     conflict.Start,
				EndTime:       conflict.End,
			},
		})
		return
	}

	switch {
	case errors.Is(err, clinic.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, clinic.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, clinic.ErrLeadNotFound):
		writeError(w, http.StatusNotFound, "lead_not_found", err.Error())
	case errors.Is(err, clinic.ErrInvalidWindow),
		errors.Is(err, clinic.ErrWindowTooLarge),
		errors.Is(err, clinic.ErrUnalignedSlot),
		errors.Is(err, clinic.ErrBadSlotDuration):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, clinic.ErrInvalidTransition),
		errors.Is(err, clinic.ErrNotReschedulable):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, "unavailable", "operation failed, safe to retry")
	}
}

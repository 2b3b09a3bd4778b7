package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/giahuylhoang/dental-api/internal/clinic"
	"github.com/giahuylhoang/dental-api/internal/schedule"
)

// getSlotsHandler handles GET /api/calendar/slots
func getSlotsHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		doctorID, err := strconv.ParseInt(q.Get("doctor_id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "doctor_id must be an integer")
			return
		}
		serviceID, err := strconv.ParseInt(q.Get("service_id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "service_id must be an integer")
			return
		}

		start, err := parseTimeParam(q.Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "start must be RFC 3339 or YYYY-MM-DD")
			return
		}
		end, err := parseTimeParam(q.Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "end must be RFC 3339 or YYYY-MM-DD")
			return
		}

		result, err := engine.ComputeSlots(r.Context(), doctorID, serviceID, schedule.Interval{Start: start, End: end})
		if err != nil {
			writeEngineError(w, err)
			return
		}

		resp := SlotsResponse{
			DoctorID:           doctorID,
			ServiceID:          serviceID,
			CalendarUnverified: result.CalendarUnverified,
			Slots:              make([]SlotResponse, 0, len(result.Slots)),
		}
		for _, s := range result.Slots {
			resp.Slots = append(resp.Slots, SlotResponse{DoctorID: s.DoctorID, StartTime: s.Start, EndTime: s.End})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// parseTimeParam accepts RFC 3339 timestamps or bare dates. A bare date means
// local midnight in UTC; callers wanting clinic-local windows send full
// timestamps with offsets.
func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

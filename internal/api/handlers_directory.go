package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/giahuylhoang/dental-api/internal/clinic"
)

// listDoctorsHandler handles GET /api/doctors
func listDoctorsHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := engine.ListDoctors(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		resp := make([]DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// getDoctorHandler handles GET /api/doctors/{id}
func getDoctorHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseInt64Param(w, r, "id")
		if !ok {
			return
		}
		doctor, err := engine.GetDoctor(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(doctor))
	}
}

// listServicesHandler handles GET /api/services
func listServicesHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := parsePagination(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
		services, err := engine.ListServices(r.Context(), limit, offset)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		resp := make([]ServiceResponse, 0, len(services))
		for i := range services {
			resp = append(resp, toServiceResponse(&services[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// getServiceHandler handles GET /api/services/{id}
func getServiceHandler(engine *clinic.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseInt64Param(w, r, "id")
		if !ok {
			return
		}
		service, err := engine.GetService(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toServiceResponse(service))
	}
}

func parseInt64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", name+" must be an integer")
		return 0, false
	}
	return id, true
}

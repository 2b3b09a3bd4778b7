package clinic

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrLeadNotFound        = errors.New("lead not found")

	ErrInvalidWindow     = errors.New("window end must be after window start")
	ErrWindowTooLarge    = errors.New("window exceeds the booking horizon")
	ErrUnalignedSlot     = errors.New("slot start is not aligned to the booking granularity")
	ErrBadSlotDuration   = errors.New("slot duration does not match the service duration")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotReschedulable  = errors.New("appointment can no longer be rescheduled")
)

// ConflictError reports a booking attempt against time a doctor already has
// committed. It carries the conflicting appointment's interval so callers can
// surface it.
type ConflictError struct {
	AppointmentID uuid.UUID
	Start         time.Time
	End           time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflicts with appointment %s (%s - %s)",
		e.AppointmentID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

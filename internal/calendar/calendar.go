// Package calendar is the narrow capability interface over the external
// calendar provider. The engine treats every operation here as best-effort:
// reads degrade slot computation, writes are retried out of band.
package calendar

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEventNotFound = errors.New("calendar event not found")
	ErrUnavailable   = errors.New("calendar provider unavailable")
)

// BusyInterval is externally reported unavailability, not backed by an
// internal appointment row (personal events, holds).
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Event is the payload mirrored into the provider for a booked appointment.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

type Client interface {
	ListBusyIntervals(ctx context.Context, calendarRef string, from, to time.Time) ([]BusyInterval, error)
	CreateEvent(ctx context.Context, calendarRef string, ev Event) (eventRef string, err error)
	DeleteEvent(ctx context.Context, calendarRef, eventRef string) error
}

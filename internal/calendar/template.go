package calendar

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// EventInfo is the structured content carried in a mirrored event so the
// appointment can be recovered from the calendar alone.
type EventInfo struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	DoctorID      int64
	ServiceID     int64
	PatientName   string
	ServiceName   string
	Reason        string
}

var (
	nonAlnum     = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	separators   = regexp.MustCompile(`[\s_&()]+`)
	extraHyphens = regexp.MustCompile(`-+`)
)

func cleanName(s string) string {
	return strings.Join(strings.Fields(nonAlnum.ReplaceAllString(s, "")), " ")
}

func cleanService(s string) string {
	cleaned := separators.ReplaceAllString(s, "-")
	cleaned = regexp.MustCompile(`[^a-zA-Z0-9\-]`).ReplaceAllString(cleaned, "")
	cleaned = extraHyphens.ReplaceAllString(cleaned, "-")
	return strings.Trim(cleaned, "-")
}

// FormatSummary builds the event title: APT_<First>-<Last>_<Service-name>.
func FormatSummary(patientName, serviceName string) string {
	parts := strings.Fields(patientName)
	first := "Unknown"
	last := ""
	if len(parts) > 0 {
		first = cleanName(parts[0])
	}
	if len(parts) > 1 {
		last = cleanName(strings.Join(parts[1:], " "))
	}

	service := cleanService(serviceName)
	if last != "" {
		return fmt.Sprintf("APT_%s-%s_%s", first, last, service)
	}
	return fmt.Sprintf("APT_%s_%s", first, service)
}

// FormatDescription builds the parseable KEY:VALUE description block.
func FormatDescription(info EventInfo) string {
	return fmt.Sprintf(
		"APPOINTMENT_ID:%s\nPATIENT_ID:%s\nPATIENT_NAME:%s\nDOCTOR_ID:%d\nSERVICE_ID:%d\nSERVICE_NAME:%s\nREASON:%s",
		info.AppointmentID, info.PatientID, info.PatientName,
		info.DoctorID, info.ServiceID, info.ServiceName, info.Reason,
	)
}

// ParseDescription recovers the appointment id from an event description
// written by FormatDescription.
func ParseDescription(description string) (uuid.UUID, error) {
	for _, line := range strings.Split(description, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(key) != "APPOINTMENT_ID" {
			continue
		}
		id, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			return uuid.Nil, fmt.Errorf("parse appointment id: %w", err)
		}
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("description has no APPOINTMENT_ID line")
}

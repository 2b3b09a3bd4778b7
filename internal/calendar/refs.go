package calendar

import (
	"os"
	"strings"
)

// DefaultRef is used when a doctor has no calendar of their own.
const DefaultRef = "primary"

// RefForDoctor resolves the calendar a doctor's events live on. An environment
// override DOCTOR_<NAME>_CALENDAR_REF wins over the stored ref, which wins
// over the shared default.
func RefForDoctor(doctorName, storedRef string) string {
	if doctorName != "" {
		key := strings.ToUpper(doctorName)
		key = strings.ReplaceAll(key, " ", "_")
		key = strings.ReplaceAll(key, ".", "")
		key = strings.ReplaceAll(key, "-", "_")
		if ref := os.Getenv("DOCTOR_" + key + "_CALENDAR_REF"); ref != "" {
			return ref
		}
	}
	if storedRef != "" {
		return storedRef
	}
	return DefaultRef
}

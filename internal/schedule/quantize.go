package schedule

import "time"

// AlignUp returns the first instant at or after t that falls on a granularity
// boundary of the local day (e.g. :00/:30 for 30m granularity). Alignment is
// computed against local midnight so grid positions match wall-clock times.
func AlignUp(t time.Time, granularity time.Duration) time.Time {
	if granularity <= 0 {
		return t
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := t.Sub(midnight)
	rem := offset % granularity
	if rem == 0 {
		return t
	}
	return t.Add(granularity - rem)
}

// Quantize cuts the open intervals into back-to-back slots of the given
// duration. Slot starts are aligned to the granularity grid even when an open
// interval starts off-grid; any remainder shorter than the duration is
// discarded. The result is ascending by start time.
func Quantize(open []Interval, duration, granularity time.Duration) []Interval {
	if duration <= 0 {
		return nil
	}
	if granularity <= 0 {
		granularity = duration
	}

	var slots []Interval
	for _, iv := range Merge(open) {
		start := AlignUp(iv.Start, granularity)
		for {
			end := start.Add(duration)
			if end.After(iv.End) {
				break
			}
			slots = append(slots, Interval{Start: start, End: end})
			start = end
		}
	}
	return slots
}

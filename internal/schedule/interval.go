package schedule

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) IsZero() bool {
	return iv.Start.IsZero() && iv.End.IsZero()
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any time.
// Touching boundaries (one ends exactly where the other starts) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Clamp truncates iv to the bounds of window. Returns a zero Interval when
// nothing remains.
func (iv Interval) Clamp(window Interval) Interval {
	start := iv.Start
	if start.Before(window.Start) {
		start = window.Start
	}
	end := iv.End
	if end.After(window.End) {
		end = window.End
	}
	if !start.Before(end) {
		return Interval{}
	}
	return Interval{Start: start, End: end}
}

// Merge sorts intervals by start time and coalesces overlapping or touching
// ones. Zero-length intervals are dropped. The input slice is not modified.
func Merge(ivs []Interval) []Interval {
	valid := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.Start.Before(iv.End) {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})

	merged := []Interval{valid[0]}
	for _, iv := range valid[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes the busy intervals from the open ones. A busy interval that
// partially overlaps an open interval truncates it; one that falls in the
// middle splits it in two. Both inputs may be unsorted; the result is sorted
// and non-overlapping, and nil when busy covers all of open.
func Subtract(open, busy []Interval) []Interval {
	remaining := Merge(open)
	if len(remaining) == 0 {
		return nil
	}

	for _, b := range Merge(busy) {
		next := make([]Interval, 0, len(remaining)+1)
		for _, o := range remaining {
			if !o.Overlaps(b) {
				next = append(next, o)
				continue
			}
			if o.Start.Before(b.Start) {
				next = append(next, Interval{Start: o.Start, End: b.Start})
			}
			if b.End.Before(o.End) {
				next = append(next, Interval{Start: b.End, End: o.End})
			}
		}
		if len(next) == 0 {
			return nil
		}
		remaining = next
	}
	return remaining
}

package schedule

import "time"

// DayHours is one working block within a day, expressed as minutes from local
// midnight. A doctor may have more than one block per weekday (split shifts).
type DayHours struct {
	StartMin int
	EndMin   int
}

// WeeklyHours maps weekdays to working blocks. A missing weekday means closed.
type WeeklyHours map[time.Weekday][]DayHours

// WorkingIntervals expands weekly hours into concrete intervals for every day
// touched by the window, clamped to the window. Hours are interpreted in loc,
// the clinic's timezone; the returned intervals keep that location.
func WorkingIntervals(window Interval, hours WeeklyHours, loc *time.Location) []Interval {
	if loc == nil {
		loc = time.UTC
	}

	var out []Interval

	day := window.Start.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := window.End.In(loc)

	for !day.After(end) {
		for _, block := range hours[day.Weekday()] {
			if block.EndMin <= block.StartMin {
				continue
			}
			iv := Interval{
				Start: day.Add(time.Duration(block.StartMin) * time.Minute),
				End:   day.Add(time.Duration(block.EndMin) * time.Minute),
			}
			if clamped := iv.Clamp(window); !clamped.IsZero() {
				out = append(out, clamped)
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return Merge(out)
}

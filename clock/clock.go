package clock

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Zone is a named entry in the zone registry
type Zone struct {
	Code        string
	TZ          string
	Label       string
	Location    string
	ObservesDST bool

	loc *time.Location
}

// NewZone loads the IANA location for a registry entry
func NewZone(code, tz, label, location string) (*Zone, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone '%s': %w", tz, err)
	}

	return &Zone{
		Code:        NormalizeCode(code),
		TZ:          tz,
		Label:       label,
		Location:    location,
		ObservesDST: observesDST(loc, time.Now().Year()),
		loc:         loc,
	}, nil
}

// Local returns the viewer's own zone
func Local() *Zone {
	name := time.Local.String()
	return &Zone{
		Code:        "LOCAL",
		TZ:          name,
		Label:       "Local Time",
		Location:    name,
		ObservesDST: observesDST(time.Local, time.Now().Year()),
		loc:         time.Local,
	}
}

// Loc returns the zone's time.Location
func (z *Zone) Loc() *time.Location {
	return z.loc
}

// In returns t as seen on the zone's wall clock
func (z *Zone) In(t time.Time) time.Time {
	return t.In(z.loc)
}

// IsDST reports whether daylight saving is in effect in the zone at t
func (z *Zone) IsDST(t time.Time) bool {
	return z.In(t).IsDST()
}

// FormatTime returns the time in 24-hour format (HH:MM:SS)
func FormatTime(z *Zone, t time.Time) string {
	return z.In(t).Format("15:04:05")
}

// FormatHM returns the time truncated to the minute (HH:MM)
func FormatHM(z *Zone, t time.Time) string {
	return z.In(t).Format("15:04")
}

// FormatDate returns the full weekday, month, day and year
func FormatDate(z *Zone, t time.Time) string {
	return z.In(t).Format("Monday, January 2, 2006")
}

// UTCOffsetHours returns the zone's offset from UTC at t in hours
func UTCOffsetHours(z *Zone, t time.Time) float64 {
	_, offset := z.In(t).Zone()
	return float64(offset) / 3600
}

// FormatUTCOffset returns the UTC offset as "UTC ±H", with fractional
// hours for zones on 30 or 45 minute boundaries.
func FormatUTCOffset(z *Zone, t time.Time) string {
	hours := UTCOffsetHours(z, t)

	sign := "+"
	if hours < 0 {
		sign = "-"
		hours = -hours
	}

	return fmt.Sprintf("UTC %s%s", sign, strconv.FormatFloat(hours, 'f', -1, 64))
}

// Delta returns the wall-clock difference b - a at the instant t.
// Positive means b is ahead of a.
func Delta(a, b *Zone, t time.Time) time.Duration {
	return wallClock(b.In(t)).Sub(wallClock(a.In(t)))
}

// FormatDelta renders a delta as "+9h 30m"
func FormatDelta(d time.Duration) string {
	sign := "+"
	if d < 0 {
		sign = "-"
		d = -d
	}

	total := int(d / time.Minute)
	return fmt.Sprintf("%s%dh %dm", sign, total/60, total%60)
}

// SortByUTCOffset sorts zones by their UTC offset at t (west to east)
func SortByUTCOffset(zones []*Zone, t time.Time) {
	sort.SliceStable(zones, func(i, j int) bool {
		return UTCOffsetHours(zones[i], t) < UTCOffsetHours(zones[j], t)
	})
}

// wallClock re-reads the local date and time fields as if they were UTC
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func observesDST(loc *time.Location, year int) bool {
	_, jan := time.Date(year, time.January, 1, 12, 0, 0, 0, loc).Zone()
	_, jul := time.Date(year, time.July, 1, 12, 0, 0, 0, loc).Zone()
	return jan != jul
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// winter is 10:00 in New York, 20:30 in Kolkata and 15:00 in London.
var winter = time.Date(2026, time.January, 15, 15, 0, 0, 0, time.UTC)

func mustZone(t *testing.T, code, tz string) *Zone {
	t.Helper()
	z, err := NewZone(code, tz, code, code)
	require.NoError(t, err)
	return z
}

func TestNewZone_InvalidTimezone(t *testing.T) {
	_, err := NewZone("XXX", "Invalid/Zone", "", "")
	assert.Error(t, err)
}

func TestNewZone_ObservesDST(t *testing.T) {
	assert.True(t, mustZone(t, "EST", "America/New_York").ObservesDST)
	assert.False(t, mustZone(t, "IST", "Asia/Kolkata").ObservesDST)
	assert.False(t, mustZone(t, "JST", "Asia/Tokyo").ObservesDST)
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		tz   string
		want string
	}{
		{"America/New_York", "10:00:00"},
		{"Asia/Kolkata", "20:30:00"},
		{"Europe/London", "15:00:00"},
		{"Asia/Tokyo", "00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.tz, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTime(mustZone(t, "Z", tt.tz), winter))
		})
	}
}

func TestFormatHM(t *testing.T) {
	z := mustZone(t, "IST", "Asia/Kolkata")
	assert.Equal(t, "20:30", FormatHM(z, winter.Add(59*time.Second)))
}

func TestFormatDate(t *testing.T) {
	tokyo := mustZone(t, "JST", "Asia/Tokyo")
	assert.Equal(t, "Friday, January 16, 2026", FormatDate(tokyo, winter))

	ny := mustZone(t, "EST", "America/New_York")
	assert.Equal(t, "Thursday, January 15, 2026", FormatDate(ny, winter))
}

func TestFormatUTCOffset(t *testing.T) {
	summer := time.Date(2026, time.July, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		tz   string
		at   time.Time
		want string
	}{
		{"utc", "UTC", winter, "UTC +0"},
		{"london winter", "Europe/London", winter, "UTC +0"},
		{"london summer", "Europe/London", summer, "UTC +1"},
		{"new york winter", "America/New_York", winter, "UTC -5"},
		{"new york summer", "America/New_York", summer, "UTC -4"},
		{"kolkata", "Asia/Kolkata", winter, "UTC +5.5"},
		{"kathmandu", "Asia/Kathmandu", winter, "UTC +5.75"},
		{"st johns", "America/St_Johns", winter, "UTC -3.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUTCOffset(mustZone(t, "Z", tt.tz), tt.at))
		})
	}
}

func TestDelta(t *testing.T) {
	est := mustZone(t, "EST", "America/New_York")
	ist := mustZone(t, "IST", "Asia/Kolkata")
	jst := mustZone(t, "JST", "Asia/Tokyo")

	require.Equal(t, "10:00:00", FormatTime(est, winter))

	assert.Equal(t, "+10h 30m", FormatDelta(Delta(est, ist, winter)))
	assert.Equal(t, "-10h 30m", FormatDelta(Delta(ist, est, winter)))
	// Tokyo has crossed midnight; the date must count.
	assert.Equal(t, "+14h 0m", FormatDelta(Delta(est, jst, winter)))
}

func TestDelta_SameZoneIsZero(t *testing.T) {
	instants := []time.Time{
		winter,
		time.Date(2026, time.March, 8, 7, 0, 0, 0, time.UTC), // US spring-forward
		time.Date(2026, time.November, 1, 6, 0, 0, 0, time.UTC),
	}
	for _, z := range ReferenceRegistry().Zones() {
		for _, at := range instants {
			assert.Equal(t, "+0h 0m", FormatDelta(Delta(z, z, at)), "%s at %v", z.Code, at)
		}
	}
}

func TestDelta_FollowsDaylightSaving(t *testing.T) {
	est := mustZone(t, "EST", "America/New_York")
	gmt := mustZone(t, "GMT", "Europe/London")

	// Between the US and UK transitions the gap is 4 hours, not 5.
	gap := time.Date(2026, time.March, 20, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "+4h 0m", FormatDelta(Delta(est, gmt, gap)))
	assert.Equal(t, "+5h 0m", FormatDelta(Delta(est, gmt, winter)))
}

func TestFormatDelta(t *testing.T) {
	assert.Equal(t, "+0h 0m", FormatDelta(0))
	assert.Equal(t, "+9h 30m", FormatDelta(9*time.Hour+30*time.Minute))
	assert.Equal(t, "-0h 45m", FormatDelta(-45*time.Minute))
}

func TestSortByUTCOffset(t *testing.T) {
	zones := ReferenceRegistry().Zones()
	SortByUTCOffset(zones, winter)

	var codes []string
	for _, z := range zones {
		codes = append(codes, z.Code)
	}
	assert.Equal(t, []string{"PST", "EST", "GMT", "IST", "JST"}, codes)
}

package clock

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceRegistry(t *testing.T) {
	r := ReferenceRegistry()
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, "EST", r.Default().Code)
}

func TestResolve_CaseInsensitiveAndIdempotent(t *testing.T) {
	r := ReferenceRegistry()
	for _, z := range r.Zones() {
		for _, id := range []string{z.Code, strings.ToLower(z.Code), " " + z.Code + " "} {
			got := r.Resolve(id)
			assert.Same(t, z, got, id)
			assert.Same(t, got, r.Resolve(got.Code), id)
		}
	}
}

func TestResolve_URLForms(t *testing.T) {
	r := ReferenceRegistry()
	assert.Equal(t, "IST", r.Resolve("#ist").Code)
	assert.Equal(t, "JST", r.Resolve("/jst").Code)
}

func TestResolve_UnknownFallsBackToDefault(t *testing.T) {
	r := ReferenceRegistry()
	for _, id := range []string{"", "   ", "XYZ", "America/New_York", "#", "cet"} {
		assert.Equal(t, "EST", r.Resolve(id).Code, id)
	}
}

func TestLookup(t *testing.T) {
	r := ReferenceRegistry()
	z, ok := r.Lookup("gmt")
	require.True(t, ok)
	assert.Equal(t, "Europe/London", z.TZ)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)
}

func TestNewRegistry_Errors(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		def     string
	}{
		{"empty", nil, "EST"},
		{"missing code", []Entry{{TZ: "UTC"}}, "UTC"},
		{"bad timezone", []Entry{{Code: "BAD", TZ: "Mars/Olympus"}}, "BAD"},
		{"duplicate", []Entry{{Code: "A", TZ: "UTC"}, {Code: "a", TZ: "UTC"}}, "A"},
		{"unknown default", []Entry{{Code: "A", TZ: "UTC"}}, "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.entries, tt.def)
			assert.Error(t, err)
		})
	}
}

func TestNewRegistry_ArbitrarySize(t *testing.T) {
	entries := append(ReferenceEntries(),
		Entry{Code: "NPT", TZ: "Asia/Kathmandu", Label: "Nepal Time", Location: "Kathmandu, Nepal"},
		Entry{Code: "UTC", TZ: "UTC", Label: "Coordinated Universal Time"},
	)
	r, err := NewRegistry(entries, "utc")
	require.NoError(t, err)
	assert.Equal(t, 7, r.Len())
	assert.Equal(t, "UTC", r.Resolve("unknown").Code)
	assert.Equal(t, "UTC +5.75", FormatUTCOffset(r.Resolve("npt"), winter))
}

func TestManual_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var fired []string
	m.AfterFunc(2*time.Second, func() { fired = append(fired, "a") })
	stopped := m.AfterFunc(3*time.Second, func() { fired = append(fired, "b") })
	m.AfterFunc(10*time.Second, func() { fired = append(fired, "c") })

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	assert.Equal(t, 0, m.Advance(time.Second))
	assert.Equal(t, 1, m.Advance(4*time.Second))
	assert.Equal(t, []string{"a"}, fired)
	assert.Equal(t, start.Add(5*time.Second), m.Now())

	assert.Equal(t, 1, m.Advance(5*time.Second))
	assert.Equal(t, []string{"a", "c"}, fired)
}

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/events"
)

func scrape(t *testing.T, m *Service) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveTick(t *testing.T) {
	m := New()
	m.ObserveTick(time.Millisecond, false)
	m.ObserveTick(2*time.Millisecond, true)
	m.ObserveAlarmState(alarm.Ringing)

	body := scrape(t, m)
	assert.Contains(t, body, "timearchitect_ticks_total 2")
	assert.Contains(t, body, "timearchitect_tick_failures_total 1")
	assert.Contains(t, body, "timearchitect_alarm_state 2")
	assert.Contains(t, body, "timearchitect_tick_duration_seconds_count 2")
}

func TestSubscribe_CountsEvents(t *testing.T) {
	m := New()
	bus := events.NewBus()
	m.Subscribe(bus)

	bus.Publish(events.Event{Type: events.AlarmArmed})
	bus.Publish(events.Event{Type: events.AlarmFired})
	bus.Publish(events.Event{Type: events.AlarmFired})

	body := scrape(t, m)
	assert.Contains(t, body, `timearchitect_alarm_events_total{type="alarm_armed"} 1`)
	assert.Contains(t, body, `timearchitect_alarm_events_total{type="alarm_fired"} 2`)
}

func TestNew_Independent(t *testing.T) {
	a, b := New(), New()
	a.ObserveTick(0, false)
	assert.Contains(t, scrape(t, a), "timearchitect_ticks_total 1")
	assert.Contains(t, scrape(t, b), "timearchitect_ticks_total 0")
}

// Package events dispatches clock and alarm notifications to subscribers.
package events

import (
	"sync"
	"time"

	"github.com/philtim/timearchitect/logger"
)

// Type identifies what happened.
type Type string

const (
	ZoneChanged    Type = "zone_changed"
	KeyPressed     Type = "key_pressed"
	AlarmArmed     Type = "alarm_armed"
	AlarmFired     Type = "alarm_fired"
	AlarmStopped   Type = "alarm_stopped"
	AlarmSnoozed   Type = "alarm_snoozed"
	AlarmCancelled Type = "alarm_cancelled"
	AlarmMissed    Type = "alarm_missed"
	PlaybackFailed Type = "playback_failed"
)

// Event is a single notification. Fields not relevant to Type are empty.
type Event struct {
	Type    Type      `json:"type"`
	At      time.Time `json:"at"`
	Zone    string    `json:"zone,omitempty"`
	Time    string    `json:"time,omitempty"`
	Target  string    `json:"target,omitempty"`
	AlarmID string    `json:"alarm_id,omitempty"`
	Key     string    `json:"key,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Handler receives events.
type Handler func(Event)

// Bus delivers events synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	all      []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish calls every matching handler. A panicking handler is logged and
// does not stop delivery to the rest.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[e.Type])+len(b.all))
	hs = append(hs, b.handlers[e.Type]...)
	hs = append(hs, b.all...)
	b.mu.RUnlock()

	for _, h := range hs {
		deliver(h, e)
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("event handler for %s panicked: %v", e.Type, r)
		}
	}()
	h(e)
}

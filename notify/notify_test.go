package notify

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/philtim/timearchitect/events"
)

type sent struct {
	url     string
	message string
}

func newTestNotifier(urls []string, err error) (*Notifier, *[]sent) {
	var mu sync.Mutex
	var out []sent
	n := New(urls)
	n.send = func(url, message string) error {
		mu.Lock()
		defer mu.Unlock()
		out = append(out, sent{url, message})
		return err
	}
	return n, &out
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "⏰ Alarm! 07:30 (IST)", FormatMessage(events.Event{Type: events.AlarmFired, Target: "07:30", Zone: "IST"}))
	assert.Equal(t, "Missed alarm 06:00 (EST)", FormatMessage(events.Event{Type: events.AlarmMissed, Target: "06:00", Zone: "EST"}))
}

func TestNotifier_SendsToEveryURL(t *testing.T) {
	n, out := newTestNotifier([]string{"ntfy://a", "discord://b@c"}, nil)
	bus := events.NewBus()
	n.Start(bus)

	bus.Publish(events.Event{Type: events.AlarmArmed, Target: "07:30", Zone: "IST"})
	bus.Publish(events.Event{Type: events.AlarmFired, Target: "07:30", Zone: "IST"})
	n.Wait()

	got := *out
	sort.Slice(got, func(i, j int) bool { return got[i].url < got[j].url })
	assert.Equal(t, []sent{
		{"discord://b@c", "⏰ Alarm! 07:30 (IST)"},
		{"ntfy://a", "⏰ Alarm! 07:30 (IST)"},
	}, got)
}

func TestNotifier_FailureIsLogged(t *testing.T) {
	n, out := newTestNotifier([]string{"ntfy://a"}, errors.New("unreachable"))
	bus := events.NewBus()
	n.Start(bus)

	bus.Publish(events.Event{Type: events.AlarmMissed, Target: "06:00", Zone: "EST"})
	n.Wait()
	assert.Len(t, *out, 1)
}

func TestNotifier_NoURLs(t *testing.T) {
	n, out := newTestNotifier(nil, nil)
	bus := events.NewBus()
	n.Start(bus)
	bus.Publish(events.Event{Type: events.AlarmFired})
	n.Wait()
	assert.Empty(t, *out)
}

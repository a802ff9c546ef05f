// Package notify forwards fired and missed alarms to external services
// through shoutrrr.
package notify

import (
	"fmt"
	"sync"

	"github.com/containrrr/shoutrrr"

	"github.com/philtim/timearchitect/events"
	"github.com/philtim/timearchitect/logger"
)

// Notifier sends a message to every configured shoutrrr URL when an alarm
// fires or is missed.
type Notifier struct {
	urls []string
	send func(url, message string) error

	wg sync.WaitGroup
}

// New creates a notifier for urls.
func New(urls []string) *Notifier {
	return &Notifier{urls: urls, send: sendShoutrrr}
}

// Start subscribes to alarm events. With no URLs configured it does nothing.
func (n *Notifier) Start(bus *events.Bus) {
	if len(n.urls) == 0 {
		return
	}
	bus.Subscribe(events.AlarmFired, n.handleEvent)
	bus.Subscribe(events.AlarmMissed, n.handleEvent)
	logger.Infof("Notifier started with %d services", len(n.urls))
}

// Wait blocks until in-flight notifications have been sent.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// FormatMessage returns the text sent for e.
func FormatMessage(e events.Event) string {
	switch e.Type {
	case events.AlarmMissed:
		return fmt.Sprintf("Missed alarm %s (%s)", e.Target, e.Zone)
	default:
		return fmt.Sprintf("⏰ Alarm! %s (%s)", e.Target, e.Zone)
	}
}

// handleEvent sends in the background; the bus delivers on the tick path.
func (n *Notifier) handleEvent(e events.Event) {
	message := FormatMessage(e)
	for _, url := range n.urls {
		n.wg.Add(1)
		go func(url string) {
			defer n.wg.Done()
			if err := n.send(url, message); err != nil {
				logger.Errorf("Failed to send %s notification: %v", e.Type, err)
				return
			}
			logger.Debugf("Sent %s notification", e.Type)
		}(url)
	}
}

func sendShoutrrr(url, message string) error {
	return shoutrrr.Send(url, message)
}

// Package session ties the zone registry, the alarm scheduler and the
// preference store together behind one lock. Every surface (TUI, daemon,
// CLI) drives the same Session.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/clock"
	"github.com/philtim/timearchitect/events"
	"github.com/philtim/timearchitect/logger"
	"github.com/philtim/timearchitect/prefs"
)

// Observer is told about every tick. The metrics package implements it.
type Observer interface {
	ObserveTick(elapsed time.Duration, failed bool)
	ObserveAlarmState(state alarm.State)
}

// ZoneView is a zone rendered at one instant.
type ZoneView struct {
	Code     string `json:"code"`
	TZ       string `json:"tz"`
	Label    string `json:"label"`
	Location string `json:"location"`
	Time     string `json:"time"`
	Date     string `json:"date"`
	Offset   string `json:"offset"`
	DST      bool   `json:"dst"`
	Delta    string `json:"delta,omitempty"`
}

// AlarmView describes the alarm for display.
type AlarmView struct {
	State       string            `json:"state"`
	Pending     *alarm.Request    `json:"pending,omitempty"`
	Ringing     *alarm.Request    `json:"ringing,omitempty"`
	Preferences alarm.Preferences `json:"preferences"`
}

// Snapshot is what a tick produces for the display.
type Snapshot struct {
	At    time.Time `json:"at"`
	Zone  ZoneView  `json:"zone"`
	Alarm AlarmView `json:"alarm"`
	Fired bool      `json:"fired"`
}

// Session is safe for concurrent use.
type Session struct {
	store  *prefs.Store
	bus    *events.Bus
	source clock.Source
	local  *clock.Zone

	mu        sync.Mutex
	registry  *clock.Registry
	scheduler *alarm.Scheduler
	active    *clock.Zone
	observer  Observer
	preview   clock.Timer
}

// New restores the saved zone selection and any saved alarm.
func New(reg *clock.Registry, store *prefs.Store, player alarm.Player, bus *events.Bus, src clock.Source) *Session {
	if bus == nil {
		bus = events.NewBus()
	}
	if src == nil {
		src = clock.System{}
	}
	s := &Session{
		registry:  reg,
		store:     store,
		bus:       bus,
		source:    src,
		local:     clock.Local(),
		scheduler: alarm.New(store, player),
	}
	s.active = reg.Resolve(store.Get(prefs.KeyZone, ""))
	s.scheduler.Restore(s.active, src.Now())
	return s
}

// SetObserver installs o. Pass nil to remove it.
func (s *Session) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

// Bus returns the event bus the session publishes on.
func (s *Session) Bus() *events.Bus {
	return s.bus
}

// Registry returns the zone registry.
func (s *Session) Registry() *clock.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}

// ReplaceRegistry swaps in reg after zones were added or removed. The
// active zone is looked up again by code and falls back to reg's default.
func (s *Session) ReplaceRegistry(reg *clock.Registry) {
	s.mu.Lock()
	prev := s.active
	s.registry = reg
	next := reg.Resolve(prev.Code)
	s.active = next
	s.mu.Unlock()

	if next.Code != prev.Code {
		logger.Infof("Active zone %s was removed, now %s", prev.Code, next.Code)
		s.bus.Publish(events.Event{Type: events.ZoneChanged, At: s.source.Now(), Zone: next.Code})
	}
}

// Now reads the session's time source.
func (s *Session) Now() time.Time {
	return s.source.Now()
}

// Active returns the zone currently selected.
func (s *Session) Active() *clock.Zone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SelectZone makes the zone named by id active. Unknown identifiers select
// the registry default.
func (s *Session) SelectZone(id string) (*clock.Zone, error) {
	s.mu.Lock()
	zone := s.registry.Resolve(id)
	changed := zone != s.active
	s.active = zone
	err := s.store.Set(prefs.KeyZone, zone.Code)
	s.mu.Unlock()

	if err != nil {
		return zone, fmt.Errorf("failed to save zone selection: %w", err)
	}
	if changed {
		logger.Infof("Active zone changed to %s", zone.Code)
		s.bus.Publish(events.Event{Type: events.ZoneChanged, At: s.source.Now(), Zone: zone.Code})
	}
	return zone, nil
}

// Tick refreshes the display for now and runs the alarm check. A panic
// inside the tick is logged and an empty snapshot returned, so the driver
// keeps ticking.
func (s *Session) Tick(now time.Time) (snap Snapshot) {
	start := time.Now()
	var queued []events.Event
	failed := false

	s.mu.Lock()
	observer := s.observer
	func() {
		defer func() {
			if r := recover(); r != nil {
				failed = true
				logger.Errorf("Tick at %s panicked: %v", now.Format(time.RFC3339), r)
				snap = Snapshot{At: now}
			}
		}()
		fired := s.scheduler.Check(s.active, now)
		snap = s.snapshot(now)
		snap.Fired = fired
	}()
	queued = s.scheduler.Drain()
	state := s.scheduler.State()
	s.mu.Unlock()

	s.publish(queued)
	if observer != nil {
		observer.ObserveTick(time.Since(start), failed)
		observer.ObserveAlarmState(state)
	}
	return snap
}

// Snapshot renders the active zone and alarm without running the check.
func (s *Session) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(now)
}

// Dashboard renders every registered zone with its delta from the zone
// named by from. An empty from measures deltas from the viewer's local zone.
func (s *Session) Dashboard(from string, now time.Time) []ZoneView {
	reg := s.Registry()
	base := s.local
	if from != "" {
		base = reg.Resolve(from)
	}
	zones := reg.Zones()
	views := make([]ZoneView, len(zones))
	for i, z := range zones {
		views[i] = View(z, now)
		views[i].Delta = clock.FormatDelta(clock.Delta(base, z, now))
	}
	return views
}

// SetAlarm arms the alarm for target in the active zone.
func (s *Session) SetAlarm(target string) (alarm.Request, error) {
	return withScheduler(s, func(sc *alarm.Scheduler, now time.Time) (alarm.Request, error) {
		return sc.Set(target, s.active, now)
	})
}

// StopAlarm silences a ringing alarm.
func (s *Session) StopAlarm() bool {
	ok, _ := withScheduler(s, func(sc *alarm.Scheduler, now time.Time) (bool, error) {
		return sc.Stop(now), nil
	})
	return ok
}

// Snooze re-arms a ringing alarm minutes from now in the active zone.
func (s *Session) Snooze(minutes int) (alarm.Request, error) {
	return withScheduler(s, func(sc *alarm.Scheduler, now time.Time) (alarm.Request, error) {
		return sc.Snooze(minutes, s.active, now)
	})
}

// CancelAlarm discards the pending alarm.
func (s *Session) CancelAlarm() bool {
	ok, _ := withScheduler(s, func(sc *alarm.Scheduler, now time.Time) (bool, error) {
		return sc.Cancel(now), nil
	})
	return ok
}

// KeyPressed reports a key press and stops a ringing alarm on the stop key.
func (s *Session) KeyPressed(key string) bool {
	ok, _ := withScheduler(s, func(sc *alarm.Scheduler, now time.Time) (bool, error) {
		return sc.KeyPressed(key, now), nil
	})
	return ok
}

// Preview plays the selected sound briefly. The preview ends by itself.
func (s *Session) Preview() (time.Duration, error) {
	return withScheduler(s, func(sc *alarm.Scheduler, now time.Time) (time.Duration, error) {
		d, err := sc.Preview(now)
		if err != nil {
			return 0, err
		}
		if s.preview != nil {
			s.preview.Stop()
		}
		s.preview = s.source.AfterFunc(d, s.endPreview)
		return d, nil
	})
}

// Preferences returns the alarm playback settings.
func (s *Session) Preferences() alarm.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.Preferences()
}

// SavePreferences normalizes and saves p.
func (s *Session) SavePreferences(p alarm.Preferences) (alarm.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.SavePreferences(p)
}

// Alarm returns the alarm view.
func (s *Session) Alarm() AlarmView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alarmView()
}

// View renders z at t.
func View(z *clock.Zone, t time.Time) ZoneView {
	return ZoneView{
		Code:     z.Code,
		TZ:       z.TZ,
		Label:    z.Label,
		Location: z.Location,
		Time:     clock.FormatTime(z, t),
		Date:     clock.FormatDate(z, t),
		Offset:   clock.FormatUTCOffset(z, t),
		DST:      z.IsDST(t),
	}
}

func (s *Session) endPreview() {
	s.mu.Lock()
	s.scheduler.EndPreview()
	s.preview = nil
	s.mu.Unlock()
}

func (s *Session) snapshot(now time.Time) Snapshot {
	view := View(s.active, now)
	view.Delta = clock.FormatDelta(clock.Delta(s.local, s.active, now))
	return Snapshot{At: now, Zone: view, Alarm: s.alarmView()}
}

func (s *Session) alarmView() AlarmView {
	v := AlarmView{
		State:       s.scheduler.State().String(),
		Preferences: s.scheduler.Preferences(),
	}
	if req, ok := s.scheduler.Pending(); ok {
		v.Pending = &req
	}
	if req, ok := s.scheduler.Ringing(); ok {
		v.Ringing = &req
	}
	return v
}

func (s *Session) publish(queued []events.Event) {
	for _, e := range queued {
		s.bus.Publish(e)
	}
}

// withScheduler runs f under the lock and publishes whatever it queued once
// the lock is released.
func withScheduler[T any](s *Session, f func(*alarm.Scheduler, time.Time) (T, error)) (T, error) {
	now := s.source.Now()
	s.mu.Lock()
	v, err := f(s.scheduler, now)
	queued := s.scheduler.Drain()
	s.mu.Unlock()

	s.publish(queued)
	return v, err
}

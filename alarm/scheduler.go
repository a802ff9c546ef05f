// Package alarm implements the single one-shot alarm: arming a wall-clock
// target, matching it once per tick, ringing, stopping and snoozing.
package alarm

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/philtim/timearchitect/clock"
	"github.com/philtim/timearchitect/events"
	"github.com/philtim/timearchitect/logger"
	"github.com/philtim/timearchitect/prefs"
)

// State of the scheduler
type State int

const (
	Idle State = iota
	Armed
	Ringing
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Ringing:
		return "ringing"
	default:
		return "idle"
	}
}

// PreviewDuration is how long a settings preview plays
const PreviewDuration = 2500 * time.Millisecond

// MaxSnoozeMinutes is the exclusive upper bound for Snooze. A snooze of a
// whole day would land back on the minute that is ringing.
const MaxSnoozeMinutes = 24 * 60

// Player is the audio collaborator. Play must not block for the length of
// the sound; Stop halts whatever is playing.
type Player interface {
	// Unlock primes playback. It is called once, from the first Set.
	Unlock() error
	Play(sound Sound, volume float64, loop bool) error
	Stop() error
}

// Request is a pending (or just fired) alarm.
type Request struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Zone      string    `json:"zone"`
	Triggered bool      `json:"triggered"`
	SetAt     time.Time `json:"set_at"`
	FiredAt   time.Time `json:"fired_at,omitempty"`
}

// Scheduler is not safe for concurrent use; callers serialize access.
type Scheduler struct {
	store  *prefs.Store
	player Player
	prefs  Preferences
	newID  func() string

	state      State
	pending    *Request
	fired      *Request
	unlocked   bool
	previewing bool
	lastCheck  time.Time

	outbox []events.Event
}

// New creates an idle scheduler using the preferences saved in store.
func New(store *prefs.Store, player Player) *Scheduler {
	return &Scheduler{
		store:  store,
		player: player,
		prefs:  LoadPreferences(store),
		newID:  uuid.NewString,
	}
}

// ParseTarget validates an "HH:MM" (or "H:MM") 24-hour time and returns it
// in canonical "HH:MM" form.
func ParseTarget(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", Errorf(ErrInvalid, "please select a time")
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", Errorf(ErrInvalid, "%q is not a valid HH:MM time", s)
	}
	return t.Format("15:04"), nil
}

// NormalizeKey maps key names from different front ends onto StopKeys names.
func NormalizeKey(key string) string {
	if key == " " {
		return "space"
	}
	switch k := strings.ToLower(strings.TrimSpace(key)); k {
	case "escape":
		return "esc"
	case "return":
		return "enter"
	default:
		return k
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	return s.state
}

// Pending returns the armed request, if any.
func (s *Scheduler) Pending() (Request, bool) {
	if s.pending == nil {
		return Request{}, false
	}
	return *s.pending, true
}

// Ringing returns the request that is currently ringing, if any.
func (s *Scheduler) Ringing() (Request, bool) {
	if s.state != Ringing || s.fired == nil {
		return Request{}, false
	}
	return *s.fired, true
}

// Preferences returns the active playback settings.
func (s *Scheduler) Preferences() Preferences {
	return s.prefs
}

// SavePreferences normalizes and persists p. The new settings apply to the
// next playback.
func (s *Scheduler) SavePreferences(p Preferences) (Preferences, error) {
	saved, err := SavePreferences(s.store, p)
	if err != nil {
		return s.prefs, err
	}
	s.prefs = saved
	return saved, nil
}

// Restore re-arms an alarm persisted by an earlier session. Invalid stored
// values are discarded.
func (s *Scheduler) Restore(zone *clock.Zone, now time.Time) bool {
	stored := s.store.Get(prefs.KeyAlarmTime, "")
	if stored == "" {
		return false
	}
	target, err := ParseTarget(stored)
	if err != nil {
		logger.Warnf("Discarding stored alarm %q: %v", stored, err)
		if err := s.store.Delete(prefs.KeyAlarmTime); err != nil {
			logger.Errorf("Failed to delete stored alarm: %v", err)
		}
		return false
	}
	s.pending = &Request{ID: s.newID(), Target: target, Zone: zone.Code, SetAt: now}
	s.state = Armed
	s.lastCheck = now
	logger.Infof("Restored alarm for %s (%s)", target, zone.Code)
	return true
}

// Set arms the alarm for target, interpreted on the active zone's wall
// clock. Any pending alarm is replaced and a ringing one is silenced.
func (s *Scheduler) Set(target string, zone *clock.Zone, now time.Time) (Request, error) {
	canon, err := ParseTarget(target)
	if err != nil {
		return Request{}, err
	}
	if err := s.store.Set(prefs.KeyAlarmTime, canon); err != nil {
		return Request{}, fmt.Errorf("failed to persist alarm: %w", err)
	}

	s.unlockAudio()
	if s.state == Ringing {
		s.halt()
		s.emit(events.Event{Type: events.AlarmStopped, At: now, AlarmID: s.fired.ID})
	}

	req := s.arm(canon, zone, now)
	s.emit(events.Event{Type: events.AlarmArmed, At: now, Zone: zone.Code, Target: canon, AlarmID: req.ID})
	logger.Infof("Alarm set for %s (%s)", canon, zone.Code)
	return req, nil
}

// Check compares the active zone's current minute with the armed target
// and fires on an exact match. It reports whether the alarm fired.
//
// A tick that skips the target minute entirely does not fire; the miss is
// logged and the alarm stays armed for the next time that minute comes round.
func (s *Scheduler) Check(zone *clock.Zone, now time.Time) bool {
	last := s.lastCheck
	s.lastCheck = now

	if s.state != Armed || s.pending == nil {
		return false
	}
	req := s.pending

	if clock.FormatHM(zone, now) != req.Target {
		if missedTarget(zone, last, now, req.Target) {
			logger.Warnf("Alarm %s (%s) missed: no tick between %s and %s",
				req.Target, zone.Code, clock.FormatTime(zone, last), clock.FormatTime(zone, now))
			s.emit(events.Event{Type: events.AlarmMissed, At: now, Zone: zone.Code, Target: req.Target, AlarmID: req.ID})
		}
		return false
	}

	// Clearing pending is what keeps a request from firing twice.
	req.Triggered = true
	req.FiredAt = now
	s.pending = nil
	s.fired = req
	if err := s.store.Delete(prefs.KeyAlarmTime); err != nil {
		logger.Errorf("Failed to clear stored alarm: %v", err)
	}

	s.emit(events.Event{
		Type:    events.AlarmFired,
		At:      now,
		Zone:    zone.Code,
		Time:    clock.FormatTime(zone, now),
		Target:  req.Target,
		AlarmID: req.ID,
	})
	logger.Infof("Alarm %s fired in %s", req.Target, zone.Code)

	s.previewing = false
	if err := s.player.Play(SoundByID(s.prefs.Sound), s.prefs.Volume, true); err != nil {
		logger.Errorf("Alarm playback failed: %v", err)
		s.emit(events.Event{Type: events.PlaybackFailed, At: now, AlarmID: req.ID, Error: err.Error()})
		s.state = Idle
		return true
	}
	s.state = Ringing
	return true
}

// Stop silences a ringing alarm. It reports whether anything was ringing.
func (s *Scheduler) Stop(now time.Time) bool {
	if s.state != Ringing {
		return false
	}
	s.halt()
	s.state = Idle
	s.emit(events.Event{Type: events.AlarmStopped, At: now, AlarmID: s.fired.ID})
	logger.Infof("Alarm stopped")
	return true
}

// KeyPressed stops a ringing alarm when key is the configured stop key.
func (s *Scheduler) KeyPressed(key string, now time.Time) bool {
	key = NormalizeKey(key)
	s.emit(events.Event{Type: events.KeyPressed, At: now, Key: key})
	if s.state != Ringing || key != s.prefs.StopKey {
		return false
	}
	return s.Stop(now)
}

// Snooze silences a ringing alarm and re-arms it the given number of
// wall-clock minutes after now in zone.
func (s *Scheduler) Snooze(minutes int, zone *clock.Zone, now time.Time) (Request, error) {
	if s.state != Ringing {
		return Request{}, Errorf(ErrState, "no alarm is ringing")
	}
	if minutes <= 0 {
		return Request{}, Errorf(ErrInvalid, "snooze must be at least one minute")
	}
	if minutes >= MaxSnoozeMinutes {
		return Request{}, Errorf(ErrInvalid, "snooze must be shorter than %d minutes", MaxSnoozeMinutes)
	}

	target := AddWallMinutes(zone, now, minutes)
	if err := s.store.Set(prefs.KeyAlarmTime, target); err != nil {
		return Request{}, fmt.Errorf("failed to persist snoozed alarm: %w", err)
	}

	s.halt()
	req := s.arm(target, zone, now)
	s.emit(events.Event{Type: events.AlarmSnoozed, At: now, Zone: zone.Code, Target: target, AlarmID: req.ID})
	logger.Infof("Alarm snoozed %d minutes until %s (%s)", minutes, target, zone.Code)
	return req, nil
}

// Cancel discards the pending alarm. It reports whether one was pending.
func (s *Scheduler) Cancel(now time.Time) bool {
	if s.pending == nil {
		return false
	}
	if err := s.store.Delete(prefs.KeyAlarmTime); err != nil {
		logger.Errorf("Failed to clear stored alarm: %v", err)
	}
	id := s.pending.ID
	s.pending = nil
	if s.state == Armed {
		s.state = Idle
	}
	s.emit(events.Event{Type: events.AlarmCancelled, At: now, AlarmID: id})
	logger.Infof("Alarm cancelled")
	return true
}

// Preview starts a one-off playback of the selected sound and returns how
// long it should last. The caller ends it with EndPreview.
func (s *Scheduler) Preview(now time.Time) (time.Duration, error) {
	if s.state == Ringing {
		return 0, Errorf(ErrState, "cannot preview while the alarm is ringing")
	}
	if err := s.player.Play(SoundByID(s.prefs.Sound), s.prefs.Volume, false); err != nil {
		s.emit(events.Event{Type: events.PlaybackFailed, At: now, Error: err.Error()})
		return 0, fmt.Errorf("failed to preview sound: %w", err)
	}
	s.previewing = true
	return PreviewDuration, nil
}

// EndPreview stops a preview unless an alarm has started ringing since.
func (s *Scheduler) EndPreview() {
	if !s.previewing {
		return
	}
	s.previewing = false
	if s.state != Ringing {
		if err := s.player.Stop(); err != nil {
			logger.Warnf("Failed to stop preview: %v", err)
		}
	}
}

// Drain returns the events queued since the last call.
func (s *Scheduler) Drain() []events.Event {
	out := s.outbox
	s.outbox = nil
	return out
}

// AddWallMinutes returns the HH:MM reached by moving the wall clock of zone
// forward from now, wrapping at midnight.
func AddWallMinutes(zone *clock.Zone, now time.Time, minutes int) string {
	local := zone.In(now)
	total := (local.Hour()*60 + local.Minute() + minutes) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func (s *Scheduler) arm(target string, zone *clock.Zone, now time.Time) Request {
	req := &Request{ID: s.newID(), Target: target, Zone: zone.Code, SetAt: now}
	s.pending = req
	s.state = Armed
	s.lastCheck = now
	return *req
}

func (s *Scheduler) unlockAudio() {
	if s.unlocked {
		return
	}
	if err := s.player.Unlock(); err != nil {
		logger.Warnf("Audio unlock failed: %v", err)
		return
	}
	s.unlocked = true
}

func (s *Scheduler) halt() {
	s.previewing = false
	if err := s.player.Stop(); err != nil {
		logger.Warnf("Failed to stop playback: %v", err)
	}
}

func (s *Scheduler) emit(e events.Event) {
	s.outbox = append(s.outbox, e)
}

// missedTarget reports whether target was a wall-clock minute strictly
// between two checks that were more than a minute apart.
func missedTarget(zone *clock.Zone, last, now time.Time, target string) bool {
	gap := now.Sub(last)
	if last.IsZero() || gap <= time.Minute {
		return false
	}
	if gap >= 24*time.Hour {
		return true
	}
	end := now.Truncate(time.Minute)
	for t := last.Truncate(time.Minute).Add(time.Minute); t.Before(end); t = t.Add(time.Minute) {
		if clock.FormatHM(zone, t) == target {
			return true
		}
	}
	return false
}

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/clock"
	"github.com/philtim/timearchitect/events"
	"github.com/philtim/timearchitect/prefs"
)

type fakePlayer struct {
	mu    sync.Mutex
	plays int
	stops int
}

func (p *fakePlayer) Unlock() error { return nil }

func (p *fakePlayer) Play(alarm.Sound, float64, bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

func (p *fakePlayer) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays, p.stops
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Type
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeObserver struct {
	ticks  int
	failed int
	state  alarm.State
}

func (o *fakeObserver) ObserveTick(_ time.Duration, failed bool) {
	o.ticks++
	if failed {
		o.failed++
	}
}

func (o *fakeObserver) ObserveAlarmState(s alarm.State) { o.state = s }

// 07:29:00 in IST on 2026-01-15
var start = time.Date(2026, time.January, 15, 1, 59, 0, 0, time.UTC)

type fixture struct {
	session *Session
	clock   *clock.Manual
	store   *prefs.Store
	player  *fakePlayer
	events  *recorder
}

func newFixture(t *testing.T, initial map[string]string) *fixture {
	t.Helper()
	store, err := prefs.Open(context.Background(), prefs.NewMemory(initial))
	require.NoError(t, err)
	f := &fixture{
		clock:  clock.NewManual(start),
		store:  store,
		player: &fakePlayer{},
		events: &recorder{},
	}
	bus := events.NewBus()
	bus.SubscribeAll(f.events.handle)
	f.session = New(clock.ReferenceRegistry(), store, f.player, bus, f.clock)
	return f
}

func (f *fixture) tick(d time.Duration) Snapshot {
	f.clock.Advance(d)
	return f.session.Tick(f.clock.Now())
}

func TestNew_DefaultsToRegistryDefault(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, "EST", f.session.Active().Code)

	f = newFixture(t, map[string]string{prefs.KeyZone: "nowhere"})
	assert.Equal(t, "EST", f.session.Active().Code)

	f = newFixture(t, map[string]string{prefs.KeyZone: "JST"})
	assert.Equal(t, "JST", f.session.Active().Code)
}

func TestSelectZone(t *testing.T) {
	f := newFixture(t, nil)

	z, err := f.session.SelectZone("#/ist")
	require.NoError(t, err)
	assert.Equal(t, "IST", z.Code)
	assert.Equal(t, "IST", f.store.Get(prefs.KeyZone, ""))
	assert.Equal(t, []events.Type{events.ZoneChanged}, f.events.types())

	// same zone again is not a change
	_, err = f.session.SelectZone("IST")
	require.NoError(t, err)
	assert.Len(t, f.events.types(), 1)

	z, err = f.session.SelectZone("ATLANTIS")
	require.NoError(t, err)
	assert.Equal(t, "EST", z.Code)
}

func TestReplaceRegistry(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.session.SelectZone("JST")
	require.NoError(t, err)

	entries := clock.ReferenceEntries()
	reg, err := clock.NewRegistry(entries[:4], "GMT")
	require.NoError(t, err)
	f.session.ReplaceRegistry(reg)
	assert.Equal(t, "GMT", f.session.Active().Code, "removed zone falls back to the new default")
	assert.Len(t, f.session.Dashboard("", start), 4)
	assert.Equal(t, []events.Type{events.ZoneChanged, events.ZoneChanged}, f.events.types())

	reg, err = clock.NewRegistry(entries, "EST")
	require.NoError(t, err)
	f.session.ReplaceRegistry(reg)
	assert.Equal(t, "GMT", f.session.Active().Code, "kept zone stays active")
	assert.Len(t, f.events.types(), 2)
}

func TestReplaceRegistry_PublishesResolvedZone(t *testing.T) {
	f := newFixture(t, nil)
	entries := clock.ReferenceEntries()
	withoutJST, err := clock.NewRegistry(entries[:4], "GMT")
	require.NoError(t, err)
	all, err := clock.NewRegistry(entries, "EST")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			f.session.SelectZone("JST")
			f.session.SelectZone("IST")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			f.session.ReplaceRegistry(withoutJST)
			f.session.ReplaceRegistry(all)
		}
	}()
	wg.Wait()

	_, err = f.session.SelectZone("JST")
	require.NoError(t, err)
	f.session.ReplaceRegistry(withoutJST)

	f.events.mu.Lock()
	last := f.events.events[len(f.events.events)-1]
	f.events.mu.Unlock()
	assert.Equal(t, events.ZoneChanged, last.Type)
	assert.Equal(t, "GMT", last.Zone)
}

func TestTick_AlarmRingsOnceInActiveZone(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.session.SelectZone("IST")
	require.NoError(t, err)

	req, err := f.session.SetAlarm("07:30")
	require.NoError(t, err)
	assert.Equal(t, "IST", req.Zone)

	snap := f.tick(30 * time.Second)
	assert.False(t, snap.Fired)
	assert.Equal(t, "armed", snap.Alarm.State)
	assert.Equal(t, "07:29:30", snap.Zone.Time)

	snap = f.tick(30 * time.Second)
	assert.True(t, snap.Fired)
	assert.Equal(t, "ringing", snap.Alarm.State)
	require.NotNil(t, snap.Alarm.Ringing)
	assert.Equal(t, "07:30", snap.Alarm.Ringing.Target)
	assert.Nil(t, snap.Alarm.Pending)

	for i := 0; i < 5; i++ {
		assert.False(t, f.tick(time.Second).Fired)
	}
	plays, _ := f.player.counts()
	assert.Equal(t, 1, plays)
	assert.Contains(t, f.events.types(), events.AlarmFired)
	assert.Equal(t, "", f.store.Get(prefs.KeyAlarmTime, ""))
}

func TestStopKeyAndSnooze(t *testing.T) {
	f := newFixture(t, map[string]string{prefs.KeyZone: "IST", prefs.KeyStopKey: "x"})
	_, err := f.session.SetAlarm("07:29")
	require.NoError(t, err)
	require.True(t, f.tick(time.Second).Fired)

	assert.False(t, f.session.KeyPressed(" "))
	assert.Equal(t, "ringing", f.session.Alarm().State)

	req, err := f.session.Snooze(10)
	require.NoError(t, err)
	assert.Equal(t, "07:39", req.Target)
	assert.Equal(t, "armed", f.session.Alarm().State)

	_, err = f.session.Snooze(10)
	assert.Equal(t, alarm.ErrState, alarm.ErrorCode(err))

	f.clock.Set(start.Add(10 * time.Minute))
	require.True(t, f.session.Tick(f.clock.Now()).Fired)
	assert.True(t, f.session.KeyPressed("X"))
	assert.Equal(t, "idle", f.session.Alarm().State)
}

func TestCancelAlarm(t *testing.T) {
	f := newFixture(t, nil)
	assert.False(t, f.session.CancelAlarm())

	_, err := f.session.SetAlarm("23:59")
	require.NoError(t, err)
	assert.True(t, f.session.CancelAlarm())
	assert.Equal(t, "idle", f.session.Alarm().State)
	assert.False(t, f.session.StopAlarm())
}

func TestSetAlarm_Invalid(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.session.SetAlarm("")
	require.Error(t, err)
	assert.Equal(t, alarm.ErrInvalid, alarm.ErrorCode(err))
	assert.Empty(t, f.events.types())
}

func TestNew_RestoresAlarm(t *testing.T) {
	f := newFixture(t, map[string]string{prefs.KeyZone: "IST", prefs.KeyAlarmTime: "07:30"})
	assert.Equal(t, "armed", f.session.Alarm().State)
	assert.True(t, f.tick(time.Minute).Fired)
}

func TestPreview_EndsAfterDuration(t *testing.T) {
	f := newFixture(t, nil)

	d, err := f.session.Preview()
	require.NoError(t, err)
	assert.Equal(t, alarm.PreviewDuration, d)

	_, stops := f.player.counts()
	assert.Equal(t, 0, stops)

	assert.Equal(t, 1, f.clock.Advance(alarm.PreviewDuration))
	_, stops = f.player.counts()
	assert.Equal(t, 1, stops)
}

func TestPreferences(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, alarm.DefaultPreferences(), f.session.Preferences())

	saved, err := f.session.SavePreferences(alarm.Preferences{Sound: "bell", Volume: 3, StopKey: "tab"})
	require.NoError(t, err)
	assert.Equal(t, alarm.Preferences{Sound: "bell", Volume: 1, StopKey: "space"}, saved)
	assert.Equal(t, "bell", f.store.Get(prefs.KeyAlarmSound, ""))
	assert.Equal(t, saved, f.session.Preferences())
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, nil)
	now := time.Date(2026, time.January, 15, 15, 0, 0, 0, time.UTC)

	views := f.session.Dashboard("EST", now)
	require.Len(t, views, 5)
	byCode := map[string]ZoneView{}
	for _, v := range views {
		byCode[v.Code] = v
	}
	assert.Equal(t, "+0h 0m", byCode["EST"].Delta)
	assert.Equal(t, "+10h 30m", byCode["IST"].Delta)
	assert.Equal(t, "-3h 0m", byCode["PST"].Delta)
	assert.Equal(t, "10:00:00", byCode["EST"].Time)
	assert.Equal(t, "UTC +5.5", byCode["IST"].Offset)
}

func TestTick_ObserverAndPanicRecovery(t *testing.T) {
	f := newFixture(t, nil)
	o := &fakeObserver{}
	f.session.SetObserver(o)

	f.tick(time.Second)
	assert.Equal(t, 1, o.ticks)
	assert.Equal(t, alarm.Idle, o.state)

	// a zone without a location makes the tick panic
	f.session.mu.Lock()
	f.session.active = &clock.Zone{Code: "BROKEN"}
	f.session.mu.Unlock()

	snap := f.tick(time.Second)
	assert.Equal(t, f.clock.Now(), snap.At)
	assert.Equal(t, 1, o.failed)

	f.session.mu.Lock()
	f.session.active = f.session.registry.Default()
	f.session.mu.Unlock()
	f.tick(time.Second)
	assert.Equal(t, 3, o.ticks)
	assert.Equal(t, 1, o.failed)
}

func TestDriver_TickCallsBack(t *testing.T) {
	f := newFixture(t, nil)
	var got []Snapshot
	d := NewDriver(f.session, time.Second, func(s Snapshot) { got = append(got, s) })
	d.Tick()
	d.Tick()
	require.Len(t, got, 2)
	assert.Equal(t, "EST", got[0].Zone.Code)
}

func TestDriver_StartStop(t *testing.T) {
	f := newFixture(t, nil)
	ticks := make(chan Snapshot, 10)
	d := NewDriver(f.session, time.Second, func(s Snapshot) {
		select {
		case ticks <- s:
		default:
		}
	})
	d.Start()
	d.Start()
	select {
	case <-ticks:
	case <-time.After(3 * time.Second):
		t.Fatal("driver did not tick")
	}
	d.Stop()
	d.Stop()
}

// Package tui is the terminal front end: a dashboard of every configured
// zone, the alarm and its settings, and GeoNames-backed zone management.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/config"
	"github.com/philtim/timearchitect/events"
	"github.com/philtim/timearchitect/geonames"
	"github.com/philtim/timearchitect/notify"
	"github.com/philtim/timearchitect/session"
)

// viewState represents the current view state
type viewState int

const (
	viewMain viewState = iota
	viewAlarm
	viewSettings
	viewAdd
	viewDelete
	viewConfirm
)

const (
	bannerDuration = 4 * time.Second
	snoozeMinutes  = 10
)

// tickMsg is sent every interval to run the session tick
type tickMsg time.Time

// spinnerTickMsg is sent to update the spinner animation
type spinnerTickMsg time.Time

// geonamesReadyMsg is sent when GeoNames database is ready
type geonamesReadyMsg struct{}

// geonamesErrorMsg is sent when GeoNames fails to load
type geonamesErrorMsg struct{ err error }

// eventMsg carries a bus event into the update loop
type eventMsg events.Event

// Options configures the terminal UI.
type Options struct {
	Session *session.Session
	// Config is saved when zones are added or deleted. Nil disables both.
	Config *config.Config
	// Cities backs the add-zone search. Nil disables adding.
	Cities   *geonames.Database
	Interval time.Duration
}

// model represents the application state
type model struct {
	// Core data
	session  *session.Session
	cfg      *config.Config
	cities   *geonames.Database
	interval time.Duration
	events   chan events.Event

	snap      session.Snapshot
	dashboard []session.ZoneView

	// View state
	state    viewState
	viewport viewport.Model
	ready    bool
	err      error
	width    int
	height   int
	quitting bool

	banner      string
	bannerUntil time.Time

	// Spinner state
	spinnerFrame  int
	geonamesReady bool

	// Alarm mode state
	alarmInput textinput.Model

	// Settings mode state
	settings       alarm.Preferences
	settingsCursor int

	// Add mode state
	searchInput    textinput.Model
	searchResults  []geonames.City
	selectedResult int

	// Delete mode state
	deleteList     []string // zone codes
	deleteSelected map[int]bool
	deleteCursor   int

	// Confirm mode state
	confirmMsg    string
	confirmAction func() error
}

// New builds the model. The caller runs it with tea.NewProgram or Run.
func New(opts Options) tea.Model {
	if opts.Interval <= 0 {
		opts.Interval = session.DefaultInterval
	}

	ai := textinput.New()
	ai.Placeholder = "HH:MM"
	ai.CharLimit = 5
	ai.Width = 10

	si := textinput.New()
	si.Placeholder = "Search city..."
	si.CharLimit = 50
	si.Width = 50

	m := model{
		session:        opts.Session,
		cfg:            opts.Config,
		cities:         opts.Cities,
		interval:       opts.Interval,
		events:         make(chan events.Event, 16),
		state:          viewMain,
		alarmInput:     ai,
		searchInput:    si,
		searchResults:  []geonames.City{},
		deleteSelected: make(map[int]bool),
		geonamesReady:  opts.Cities == nil,
	}

	ch := m.events
	opts.Session.Bus().SubscribeAll(func(e events.Event) {
		switch e.Type {
		case events.AlarmFired, events.AlarmMissed, events.AlarmStopped, events.AlarmSnoozed, events.PlaybackFailed:
			select {
			case ch <- e:
			default:
			}
		}
	})

	m.refresh()
	return m
}

// Run starts the program on the alternate screen and blocks until the user
// quits.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// Init initializes the model
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.interval), waitForEvent(m.events)}
	if m.cities != nil {
		cmds = append(cmds, spinnerTickCmd(), checkGeoNamesCmd(m.cities))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd
	prev := m.state

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd = m.handleKeyPress(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-2) // command bar
			m.viewport.YPosition = 0
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 2
		}

	case tickMsg:
		m.snap = m.session.Tick(m.session.Now())
		m.dashboard = m.session.Dashboard("", m.snap.At)
		if m.ringing() {
			m.state = viewMain
		}
		cmds = append(cmds, tickCmd(m.interval))

	case eventMsg:
		m.showEvent(events.Event(msg))
		cmds = append(cmds, waitForEvent(m.events))

	case spinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		if !m.geonamesReady {
			cmds = append(cmds, spinnerTickCmd())
		}

	case geonamesReadyMsg:
		m.geonamesReady = true

	case geonamesErrorMsg:
		m.setBanner(fmt.Sprintf("GeoNames unavailable: %v", msg.err))
		m.geonamesReady = true // Stop spinner on error too

	case error:
		m.err = msg
		return m, tea.Quit
	}

	// Inputs only see messages once their view is open, so the key that
	// opened the view never lands in the field.
	if m.state == prev {
		switch m.state {
		case viewAlarm:
			m.alarmInput, cmd = m.alarmInput.Update(msg)
			cmds = append(cmds, cmd)
		case viewAdd:
			m.searchInput, cmd = m.searchInput.Update(msg)
			cmds = append(cmds, cmd)
			if m.cities.IsReady() {
				m.searchResults = m.cities.Search(m.searchInput.Value(), 50)
				if m.selectedResult >= len(m.searchResults) {
					m.selectedResult = 0
				}
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKeyPress handles keyboard input based on current view state
func (m *model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return tea.Quit
	}

	switch m.state {
	case viewMain:
		return m.handleMainKeys(msg)
	case viewAlarm:
		return m.handleAlarmKeys(msg)
	case viewSettings:
		return m.handleSettingsKeys(msg)
	case viewAdd:
		return m.handleAddKeys(msg)
	case viewDelete:
		return m.handleDeleteKeys(msg)
	case viewConfirm:
		return m.handleConfirmKeys(msg)
	}
	return nil
}

// handleMainKeys handles keys in main view. Every key is reported to the
// alarm first; while it rings only the stop key and snooze do anything.
func (m *model) handleMainKeys(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()

	if m.ringing() {
		if key == "z" {
			if _, err := m.session.Snooze(snoozeMinutes); err != nil {
				m.setBanner(alarm.ErrorDescription(err))
			}
		} else {
			m.session.KeyPressed(key)
		}
		m.refresh()
		return nil
	}
	m.session.KeyPressed(key)

	switch key {
	case "q":
		m.quitting = true
		return tea.Quit

	case "right", "tab":
		m.cycleZone(1)

	case "left", "shift+tab":
		m.cycleZone(-1)

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		zones := m.session.Registry().Zones()
		if i := int(key[0] - '1'); i < len(zones) {
			m.selectZone(zones[i].Code)
		}

	case "t":
		m.state = viewAlarm
		m.alarmInput.Reset()
		if m.snap.Alarm.Pending != nil {
			m.alarmInput.SetValue(m.snap.Alarm.Pending.Target)
		}
		m.alarmInput.Focus()
		return textinput.Blink

	case "c":
		if m.session.CancelAlarm() {
			m.setBanner("Alarm cancelled")
		}

	case "s":
		m.state = viewSettings
		m.settings = m.session.Preferences()
		m.settingsCursor = 0

	case "a":
		if m.cfg != nil && m.cities != nil && m.cities.IsReady() {
			m.state = viewAdd
			m.searchInput.Reset()
			m.searchResults = []geonames.City{}
			m.selectedResult = 0
			m.searchInput.Focus()
			return textinput.Blink
		}

	case "d":
		if m.cfg == nil {
			return nil
		}
		m.state = viewDelete
		m.deleteList = []string{}
		for _, z := range m.cfg.Zones {
			m.deleteList = append(m.deleteList, z.Code)
		}
		m.deleteSelected = make(map[int]bool)
		m.deleteCursor = 0
	}

	m.refresh()
	return nil
}

// handleAlarmKeys handles keys in the alarm entry view
func (m *model) handleAlarmKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.state = viewMain
		m.alarmInput.Blur()

	case "enter":
		req, err := m.session.SetAlarm(m.alarmInput.Value())
		if err != nil {
			m.setBanner(alarm.ErrorDescription(err))
			return nil
		}
		m.setBanner(fmt.Sprintf("Alarm set for %s (%s)", req.Target, req.Zone))
		m.state = viewMain
		m.alarmInput.Blur()
		m.refresh()
	}
	return nil
}

// handleSettingsKeys handles keys in the settings view
func (m *model) handleSettingsKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.state = viewMain

	case "up":
		if m.settingsCursor > 0 {
			m.settingsCursor--
		}

	case "down":
		if m.settingsCursor < 2 {
			m.settingsCursor++
		}

	case "left":
		m.adjustSetting(-1)

	case "right":
		m.adjustSetting(1)

	case "p":
		// preview plays what is saved, so save the selection first
		if !m.saveSettings() {
			return nil
		}
		if _, err := m.session.Preview(); err != nil {
			m.setBanner(fmt.Sprintf("Preview failed: %s", alarm.ErrorDescription(err)))
		}

	case "enter":
		if m.saveSettings() {
			m.setBanner("Settings saved")
			m.state = viewMain
		}
	}
	return nil
}

func (m *model) adjustSetting(dir int) {
	switch m.settingsCursor {
	case 0:
		m.settings.Sound = step(alarm.SoundIDs(), m.settings.Sound, dir)
	case 1:
		v := m.settings.Volume + float64(dir)*0.1
		m.settings.Volume = float64(int(v*10+0.5)) / 10
		if m.settings.Volume < 0 {
			m.settings.Volume = 0
		}
		if m.settings.Volume > 1 {
			m.settings.Volume = 1
		}
	case 2:
		m.settings.StopKey = step(alarm.StopKeys, m.settings.StopKey, dir)
	}
}

func (m *model) saveSettings() bool {
	p, err := m.session.SavePreferences(m.settings)
	if err != nil {
		m.setBanner(fmt.Sprintf("Failed to save settings: %v", err))
		return false
	}
	m.settings = p
	m.refresh()
	return true
}

// handleAddKeys handles keys in add view
func (m *model) handleAddKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.state = viewMain
		return nil

	case "up":
		if m.selectedResult > 0 {
			m.selectedResult--
		}

	case "down":
		if m.selectedResult < len(m.searchResults)-1 {
			m.selectedResult++
		}

	case "enter":
		if len(m.searchResults) > 0 && m.selectedResult < len(m.searchResults) {
			city := m.searchResults[m.selectedResult]
			code := m.cfg.UniqueCode(geonames.SuggestCode(city, m.session.Now()))
			e := city.Entry(code)
			if err := m.cfg.AddZone(config.Zone{Code: e.Code, Timezone: e.TZ, Label: e.Label, Location: e.Location}); err != nil {
				m.setBanner(err.Error())
				return nil
			}
			if err := m.cfg.Save(); err != nil {
				m.setBanner(err.Error())
				return nil
			}
			m.setBanner(fmt.Sprintf("Added %s as %s", city.Name, code))
			m.reloadZones()
		}
	}

	return nil
}

// handleDeleteKeys handles keys in delete view
func (m *model) handleDeleteKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.state = viewMain
		return nil

	case "up":
		if m.deleteCursor > 0 {
			m.deleteCursor--
		}

	case "down":
		if m.deleteCursor < len(m.deleteList)-1 {
			m.deleteCursor++
		}

	case " ":
		m.deleteSelected[m.deleteCursor] = !m.deleteSelected[m.deleteCursor]

	case "enter":
		var toDelete []string
		for idx, selected := range m.deleteSelected {
			if selected {
				toDelete = append(toDelete, m.deleteList[idx])
			}
		}
		if len(toDelete) == 0 {
			m.setBanner("No zones selected")
			return nil
		}
		sort.Strings(toDelete)

		m.state = viewConfirm
		if len(toDelete) == 1 {
			m.confirmMsg = fmt.Sprintf("Delete '%s'? (y/n)", toDelete[0])
		} else {
			m.confirmMsg = fmt.Sprintf("Delete %d selected zones? (y/n)", len(toDelete))
		}
		cfg := m.cfg
		m.confirmAction = func() error {
			if err := cfg.DeleteZones(toDelete); err != nil {
				return err
			}
			return cfg.Save()
		}
	}

	return nil
}

// handleConfirmKeys handles keys in confirm view
func (m *model) handleConfirmKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y":
		if err := m.confirmAction(); err != nil {
			m.setBanner(err.Error())
			m.state = viewMain
			return nil
		}
		m.reloadZones()

	case "n", "esc":
		m.state = viewMain
	}

	return nil
}

// reloadZones rebuilds the registry from the configuration and returns to
// the main view
func (m *model) reloadZones() {
	m.state = viewMain
	reg, err := m.cfg.Registry()
	if err != nil {
		m.setBanner(err.Error())
		return
	}
	m.session.ReplaceRegistry(reg)
	m.refresh()
}

func (m *model) cycleZone(dir int) {
	zones := m.session.Registry().Zones()
	active := m.session.Active().Code
	for i, z := range zones {
		if z.Code == active {
			next := (i + dir + len(zones)) % len(zones)
			m.selectZone(zones[next].Code)
			return
		}
	}
}

func (m *model) selectZone(code string) {
	if _, err := m.session.SelectZone(code); err != nil {
		m.setBanner(err.Error())
	}
}

// refresh re-renders the snapshot without running the alarm check
func (m *model) refresh() {
	now := m.session.Now()
	m.snap = m.session.Snapshot(now)
	m.dashboard = m.session.Dashboard("", now)
}

func (m *model) ringing() bool {
	return m.snap.Alarm.Ringing != nil && m.snap.Alarm.State == alarm.Ringing.String()
}

func (m *model) setBanner(text string) {
	m.banner = text
	m.bannerUntil = m.session.Now().Add(bannerDuration)
}

func (m *model) showEvent(e events.Event) {
	switch e.Type {
	case events.AlarmFired, events.AlarmMissed:
		m.setBanner(notify.FormatMessage(e))
	case events.AlarmStopped:
		m.setBanner("Alarm stopped")
	case events.AlarmSnoozed:
		m.setBanner(fmt.Sprintf("Snoozed until %s (%s)", e.Target, e.Zone))
	case events.PlaybackFailed:
		m.setBanner("Could not play the alarm sound")
	}
	m.refresh()
}

// bannerText returns the banner while it is still showing
func (m model) bannerText() string {
	if m.banner == "" || !m.session.Now().Before(m.bannerUntil) {
		return ""
	}
	return m.banner
}

// step moves dir places through values from current, wrapping around.
func step(values []string, current string, dir int) string {
	for i, v := range values {
		if v == current {
			return values[(i+dir+len(values))%len(values)]
		}
	}
	return values[0]
}

// spinnerFrames are the characters used for the loading animation
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickCmd returns a command that sends a tick message after d
func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// spinnerTickCmd returns a command that sends a spinner tick message
func spinnerTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

// waitForEvent blocks until the bus delivers the next alarm event
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// checkGeoNamesCmd checks if GeoNames database is ready
func checkGeoNamesCmd(db *geonames.Database) tea.Cmd {
	return func() tea.Msg {
		for i := 0; i < 3000; i++ { // up to five minutes
			time.Sleep(100 * time.Millisecond)
			if db.IsReady() {
				return geonamesReadyMsg{}
			}
			if err := db.Err(); err != nil {
				return geonamesErrorMsg{err: err}
			}
		}
		return geonamesErrorMsg{err: fmt.Errorf("timeout waiting for GeoNames database")}
	}
}

func keyHint(key string) string {
	if key == "" {
		return ""
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

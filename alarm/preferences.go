package alarm

import (
	"fmt"

	"github.com/philtim/timearchitect/prefs"
)

// Sound is a selectable alarm tone.
type Sound struct {
	ID    string
	Name  string
	Asset string
}

// Sounds is the fixed set of alarm tones
var Sounds = []Sound{
	{ID: "classic", Name: "Classic Beep", Asset: "classic.mp3"},
	{ID: "digital", Name: "Digital", Asset: "digital.mp3"},
	{ID: "chime", Name: "Soft Chime", Asset: "chime.mp3"},
	{ID: "bell", Name: "Bell", Asset: "bell.mp3"},
}

// StopKeys are the keys that may be configured to stop a ringing alarm
var StopKeys = []string{"space", "enter", "esc", "x"}

const (
	DefaultSound   = "classic"
	DefaultVolume  = 0.7
	DefaultStopKey = "space"
)

// SoundByID returns the tone with id, falling back to the default tone.
func SoundByID(id string) Sound {
	for _, s := range Sounds {
		if s.ID == id {
			return s
		}
	}
	return Sounds[0]
}

// SoundIDs lists the identifiers of Sounds in order
func SoundIDs() []string {
	ids := make([]string, len(Sounds))
	for i, s := range Sounds {
		ids[i] = s.ID
	}
	return ids
}

// Preferences are the user's alarm playback settings.
type Preferences struct {
	Sound   string  `json:"sound"`
	Volume  float64 `json:"volume"`
	StopKey string  `json:"stop_key"`
}

// DefaultPreferences returns the settings used when nothing was saved.
func DefaultPreferences() Preferences {
	return Preferences{Sound: DefaultSound, Volume: DefaultVolume, StopKey: DefaultStopKey}
}

// Normalize clamps the volume and replaces unknown enum values with defaults.
func (p Preferences) Normalize() Preferences {
	return Preferences{
		Sound:   prefs.OneOf(p.Sound, SoundIDs(), DefaultSound),
		Volume:  prefs.ClampVolume(p.Volume),
		StopKey: prefs.OneOf(p.StopKey, StopKeys, DefaultStopKey),
	}
}

// LoadPreferences reads the saved settings, applying defaults to anything
// missing or invalid.
func LoadPreferences(s *prefs.Store) Preferences {
	return Preferences{
		Sound:   s.Enum(prefs.KeyAlarmSound, SoundIDs(), DefaultSound),
		Volume:  s.Volume(prefs.KeyAlarmVolume, DefaultVolume),
		StopKey: s.Enum(prefs.KeyStopKey, StopKeys, DefaultStopKey),
	}
}

// SavePreferences normalizes p and writes it to s.
func SavePreferences(s *prefs.Store, p Preferences) (Preferences, error) {
	p = p.Normalize()
	if err := s.Set(prefs.KeyAlarmSound, p.Sound); err != nil {
		return p, fmt.Errorf("failed to save sound: %w", err)
	}
	if err := s.SetVolume(prefs.KeyAlarmVolume, p.Volume); err != nil {
		return p, fmt.Errorf("failed to save volume: %w", err)
	}
	if err := s.Set(prefs.KeyStopKey, p.StopKey); err != nil {
		return p, fmt.Errorf("failed to save stop key: %w", err)
	}
	return p, nil
}

package clock

import (
	"fmt"
	"strings"
)

// Entry describes a zone before its location is loaded
type Entry struct {
	Code     string
	TZ       string
	Label    string
	Location string
}

// DefaultCode is the fallback zone of the reference registry
const DefaultCode = "EST"

// ReferenceEntries returns the built-in zone set
func ReferenceEntries() []Entry {
	return []Entry{
		{Code: "EST", TZ: "America/New_York", Label: "Eastern Standard Time", Location: "New York, USA"},
		{Code: "IST", TZ: "Asia/Kolkata", Label: "India Standard Time", Location: "India"},
		{Code: "GMT", TZ: "Europe/London", Label: "Greenwich Mean Time", Location: "London, UK"},
		{Code: "PST", TZ: "America/Los_Angeles", Label: "Pacific Standard Time", Location: "California, USA"},
		{Code: "JST", TZ: "Asia/Tokyo", Label: "Japan Standard Time", Location: "Tokyo, Japan"},
	}
}

// Registry is an ordered, immutable set of zones with a designated default
type Registry struct {
	zones  []*Zone
	byCode map[string]*Zone
	def    *Zone
}

// NewRegistry builds a registry. Codes must be unique and the default must
// be one of the entries.
func NewRegistry(entries []Entry, defaultCode string) (*Registry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no zones configured")
	}

	r := &Registry{byCode: make(map[string]*Zone, len(entries))}
	for i, e := range entries {
		if NormalizeCode(e.Code) == "" {
			return nil, fmt.Errorf("zone at index %d has no code", i)
		}
		z, err := NewZone(e.Code, e.TZ, e.Label, e.Location)
		if err != nil {
			return nil, fmt.Errorf("zone '%s': %w", e.Code, err)
		}
		if _, dup := r.byCode[z.Code]; dup {
			return nil, fmt.Errorf("duplicate zone code '%s'", z.Code)
		}
		r.zones = append(r.zones, z)
		r.byCode[z.Code] = z
	}

	def, ok := r.byCode[NormalizeCode(defaultCode)]
	if !ok {
		return nil, fmt.Errorf("default zone '%s' is not in the registry", defaultCode)
	}
	r.def = def

	return r, nil
}

// ReferenceRegistry returns the built-in registry with EST as default
func ReferenceRegistry() *Registry {
	r, err := NewRegistry(ReferenceEntries(), DefaultCode)
	if err != nil {
		// host tzdata is missing the reference zones
		panic(err)
	}
	return r
}

// NormalizeCode trims an identifier taken from a URL path, fragment or
// selection and upper-cases it
func NormalizeCode(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimLeft(id, "#/")
	return strings.ToUpper(strings.TrimSpace(id))
}

// Lookup finds a zone by identifier, case-insensitively
func (r *Registry) Lookup(id string) (*Zone, bool) {
	z, ok := r.byCode[NormalizeCode(id)]
	return z, ok
}

// Resolve returns the zone for id, or the default zone when id is unknown
func (r *Registry) Resolve(id string) *Zone {
	if z, ok := r.Lookup(id); ok {
		return z
	}
	return r.def
}

// Default returns the fallback zone
func (r *Registry) Default() *Zone {
	return r.def
}

// Zones returns the zones in registry order
func (r *Registry) Zones() []*Zone {
	out := make([]*Zone, len(r.zones))
	copy(out, r.zones)
	return out
}

// Len returns the number of zones
func (r *Registry) Len() int {
	return len(r.zones)
}

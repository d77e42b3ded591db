// Package settings persists user preferences between dashboard sessions.
package settings

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"

	"github.com/polyinsider/pulse/internal/store"
)

// AppName is the gdata application name.
const AppName = "pulse"

const (
	settingsObject   = "settings"
	settingsProperty = "preferences"
)

// Preferences are the user-adjustable dashboard settings.
type Preferences struct {
	EffectsEnabled bool        `yaml:"effectsEnabled"`
	AmbientSnow    bool        `yaml:"ambientSnow"`
	Category       string      `yaml:"category"`
	Trend          store.Trend `yaml:"trend"`
	Watchlist      []string    `yaml:"watchlist"`
}

// Defaults returns the default preferences.
func Defaults() Preferences {
	return Preferences{
		EffectsEnabled: true,
		Trend:          store.TrendAny,
	}
}

// Manager loads and saves preferences. A Manager without a gdata manager
// keeps preferences in memory only.
type Manager struct {
	mu    sync.RWMutex
	data  *gdata.Manager
	prefs Preferences
}

// Open opens the platform data directory for AppName.
func Open() (*gdata.Manager, error) {
	m, err := gdata.Open(gdata.Config{AppName: AppName})
	if err != nil {
		return nil, fmt.Errorf("open settings storage: %w", err)
	}
	return m, nil
}

// NewManager creates a Manager and loads saved preferences. A load failure
// is logged and defaults are used.
func NewManager(data *gdata.Manager) *Manager {
	m := &Manager{
		data:  data,
		prefs: Defaults(),
	}
	if err := m.Load(); err != nil {
		slog.Warn("settings_load_failed", "error", err)
	}
	return m
}

// Load reads saved preferences. Missing storage or a missing object yields
// the defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prefs = Defaults()
	if m.data == nil || !m.data.ObjectPropExists(settingsObject, settingsProperty) {
		return nil
	}

	raw, err := m.data.LoadObjectProp(settingsObject, settingsProperty)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	prefs := Defaults()
	if err := yaml.Unmarshal(raw, &prefs); err != nil {
		return fmt.Errorf("unmarshal settings: %w", err)
	}
	if !prefs.Trend.Valid() {
		prefs.Trend = store.TrendAny
	}
	m.prefs = prefs
	return nil
}

// Save writes the current preferences. It is a no-op without storage.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil
	}

	raw, err := yaml.Marshal(m.prefs)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := m.data.SaveObjectProp(settingsObject, settingsProperty, raw); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Get returns a copy of the current preferences.
func (m *Manager) Get() Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := m.prefs
	p.Watchlist = append([]string(nil), m.prefs.Watchlist...)
	return p
}

// Update applies fn to the preferences and saves them.
func (m *Manager) Update(fn func(*Preferences)) error {
	m.mu.Lock()
	fn(&m.prefs)
	m.mu.Unlock()
	return m.Save()
}

// ToggleWatch adds or removes a market from the watchlist and reports
// whether it is now watched.
func (m *Manager) ToggleWatch(marketID string) (bool, error) {
	var watched bool
	err := m.Update(func(p *Preferences) {
		for i, id := range p.Watchlist {
			if id == marketID {
				p.Watchlist = append(p.Watchlist[:i], p.Watchlist[i+1:]...)
				return
			}
		}
		p.Watchlist = append(p.Watchlist, marketID)
		watched = true
	})
	return watched, err
}

// Watching reports whether a market is on the watchlist.
func (m *Manager) Watching(marketID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.prefs.Watchlist {
		if id == marketID {
			return true
		}
	}
	return false
}

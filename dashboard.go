package main

import (
	"fmt"
	"image"
	"log"
	"sync"
	"time"
)

// ScreenID identifies one of the four screen slots. Each slot is bound
// to exactly one button and one Provider, fixed at startup.
type ScreenID int

const (
	ScreenArtwork ScreenID = iota
	ScreenWeather
	ScreenStarmap
	ScreenSystem
	NumScreens
)

func (id ScreenID) String() string {
	switch id {
	case ScreenArtwork:
		return "artwork"
	case ScreenWeather:
		return "weather"
	case ScreenStarmap:
		return "starmap"
	case ScreenSystem:
		return "system"
	default:
		return "unknown"
	}
}

func screenByName(name string) (ScreenID, error) {
	for id := ScreenID(0); id < NumScreens; id++ {
		if id.String() == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown screen: %s", name)
}

// Provider renders the full frame for one screen. Implementations may
// hit the network and draw for seconds, but must bound their own
// latency and return an error instead of panicking.
type Provider interface {
	Name() string
	Render(cfg *Config) (*image.RGBA, error)
}

// screenState is the cache entry for a single screen: the last good
// frame, when it was rendered, and the last render error if any.
// The mutex also serializes renders, so at most one regeneration per
// screen is ever in flight.
type screenState struct {
	mu         sync.Mutex
	provider   Provider
	interval   time.Duration
	img        *image.RGBA
	renderedAt time.Time
	lastErr    error
}

// Dashboard owns the per-screen cache entries and the active-screen
// pointer. All access goes through EnsureFresh / SelectScreen / Run so
// the mutual-exclusion rules hold.
type Dashboard struct {
	cfg  *Config
	sink *DisplaySink

	mu     sync.Mutex // guards active
	active ScreenID

	// presentMu orders the active-screen check against the hardware
	// write, so a background refresh that lost the race to a button
	// switch can never overwrite the newly selected screen.
	presentMu sync.Mutex

	screens [NumScreens]*screenState

	pollInterval time.Duration
}

// NewDashboard builds the process-wide dashboard state with all cache
// entries empty. providers must cover every ScreenID.
func NewDashboard(cfg *Config, sink *DisplaySink, providers map[ScreenID]Provider) *Dashboard {
	d := &Dashboard{
		cfg:          cfg,
		sink:         sink,
		active:       cfg.defaultScreenID(),
		pollInterval: 5 * time.Second,
	}
	for id := ScreenID(0); id < NumScreens; id++ {
		d.screens[id] = &screenState{
			provider: providers[id],
			interval: time.Duration(cfg.screenRefresh(id)) * time.Second,
		}
	}
	return d
}

// Active returns the currently selected screen.
func (d *Dashboard) Active() ScreenID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// EnsureFresh returns the best available frame for the screen. A cached
// frame younger than the screen's refresh interval is returned as-is
// with no provider call. Otherwise the provider is invoked from the
// caller's goroutine; on failure the previous frame is retained and
// returned, or a placeholder when the screen has never rendered.
func (d *Dashboard) EnsureFresh(id ScreenID, now time.Time) *image.RGBA {
	s := d.screens[id]
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.renderedAt.IsZero() && now.Sub(s.renderedAt) < s.interval {
		return s.img
	}

	img, err := s.provider.Render(d.cfg)
	if err != nil {
		s.lastErr = err
		log.Printf("%s: render failed: %v", s.provider.Name(), err)
		if s.img != nil {
			// Stale but displayable beats a blank panel.
			return s.img
		}
		return placeholderFrame(d.cfg, s.provider.Name(), err)
	}

	s.img = img
	s.renderedAt = now
	s.lastErr = nil
	return img
}

// SelectScreen handles a debounced button intent. Selecting the screen
// that is already active is a no-op; otherwise the new screen is
// refreshed immediately regardless of its timer state. No other screen
// is ever touched.
func (d *Dashboard) SelectScreen(id ScreenID) {
	d.mu.Lock()
	if id == d.active {
		d.mu.Unlock()
		return
	}
	d.active = id
	d.mu.Unlock()

	log.Printf("switching to %s screen", id)
	img := d.EnsureFresh(id, time.Now())
	d.present(id, img)
}

// present pushes a frame to the panel, unless the screen it belongs to
// is no longer the active one by the time the render finished.
func (d *Dashboard) present(id ScreenID, img *image.RGBA) {
	d.presentMu.Lock()
	defer d.presentMu.Unlock()

	if d.Active() != id {
		return
	}
	if err := d.sink.Present(img); err != nil {
		log.Printf("display: %v", err)
	}
}

// Run shows the startup screen, then periodically re-evaluates the
// freshness of whichever screen is active. Only the active screen is
// refreshed by this loop; switching screens is the button path's job.
func (d *Dashboard) Run(stop <-chan struct{}) {
	id := d.Active()
	d.present(id, d.EnsureFresh(id, time.Now()))

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			id := d.Active()
			d.present(id, d.EnsureFresh(id, now))
		}
	}
}

// ScreenStatus is a point-in-time snapshot of one cache entry, exposed
// by the debug HTTP server.
type ScreenStatus struct {
	Screen     string    `json:"screen"`
	Active     bool      `json:"active"`
	RefreshSec int       `json:"refresh_sec"`
	RenderedAt *time.Time `json:"rendered_at,omitempty"`
	Fresh      bool      `json:"fresh"`
	LastError  string    `json:"last_error,omitempty"`
}

// Status reports the state of every screen's cache entry.
func (d *Dashboard) Status() []ScreenStatus {
	active := d.Active()
	now := time.Now()

	out := make([]ScreenStatus, 0, NumScreens)
	for id := ScreenID(0); id < NumScreens; id++ {
		s := d.screens[id]
		s.mu.Lock()
		st := ScreenStatus{
			Screen:     id.String(),
			Active:     id == active,
			RefreshSec: int(s.interval / time.Second),
			Fresh:      !s.renderedAt.IsZero() && now.Sub(s.renderedAt) < s.interval,
		}
		if !s.renderedAt.IsZero() {
			at := s.renderedAt
			st.RenderedAt = &at
		}
		if s.lastErr != nil {
			st.LastError = s.lastErr.Error()
		}
		s.mu.Unlock()
		out = append(out, st)
	}
	return out
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// ScreenConfig holds the per-screen settings: how often the screen's
// content is regenerated and which physical button selects it.
type ScreenConfig struct {
	RefreshSec int    `json:"refresh_sec"`
	ButtonPin  string `json:"button_pin"`
}

// Config represents the overall config JSON. Read once at startup,
// immutable afterwards.
type Config struct {
	Latitude      float64                 `json:"latitude"`
	Longitude     float64                 `json:"longitude"`
	City          string                  `json:"city"`
	Timezone      string                  `json:"timezone"`
	PanelWidth    int                     `json:"panel_width"`
	PanelHeight   int                     `json:"panel_height"`
	DefaultScreen string                  `json:"default_screen"`
	HTTPAddr      string                  `json:"http_addr"`
	PingSite      string                  `json:"ping_site"`
	FontDir       string                  `json:"font_dir"`
	Screens       map[string]ScreenConfig `json:"screens"`
}

// loadConfig reads, unmarshals and validates the config file. Any
// problem here aborts startup; nothing is drawn with a bad config.
func loadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %v", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %v", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PanelWidth <= 0 || c.PanelHeight <= 0 {
		return fmt.Errorf("panel dimensions must be positive, got %dx%d", c.PanelWidth, c.PanelHeight)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %v", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %v", c.Longitude)
	}
	if c.City == "" {
		return fmt.Errorf("missing required key: city")
	}
	if c.Timezone == "" {
		return fmt.Errorf("missing required key: timezone")
	}
	if len(c.Screens) == 0 {
		return fmt.Errorf("missing required key: screens")
	}

	seenPins := make(map[string]string)
	for id := ScreenID(0); id < NumScreens; id++ {
		name := id.String()
		sc, ok := c.Screens[name]
		if !ok {
			return fmt.Errorf("missing screen block: %s", name)
		}
		if sc.RefreshSec <= 0 {
			return fmt.Errorf("screen %s: refresh_sec must be positive, got %d", name, sc.RefreshSec)
		}
		if sc.ButtonPin == "" {
			return fmt.Errorf("screen %s: missing button_pin", name)
		}
		if other, dup := seenPins[sc.ButtonPin]; dup {
			return fmt.Errorf("screen %s: button_pin %s already assigned to %s", name, sc.ButtonPin, other)
		}
		seenPins[sc.ButtonPin] = name
	}
	for name := range c.Screens {
		if _, err := screenByName(name); err != nil {
			return fmt.Errorf("unknown screen block: %s", name)
		}
	}

	if c.DefaultScreen != "" {
		if _, err := screenByName(c.DefaultScreen); err != nil {
			return fmt.Errorf("default_screen: %v", err)
		}
	}
	return nil
}

// defaultScreenID resolves the startup screen, falling back to the
// artwork screen when the key is absent.
func (c *Config) defaultScreenID() ScreenID {
	if c.DefaultScreen == "" {
		return ScreenArtwork
	}
	id, _ := screenByName(c.DefaultScreen)
	return id
}

// screenRefresh returns the configured refresh interval for a screen.
func (c *Config) screenRefresh(id ScreenID) int {
	return c.Screens[id.String()].RefreshSec
}

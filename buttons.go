package main

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

const BUTTON_DEBOUNCE_TIME = 300 * time.Millisecond

type buttonEvent struct {
	screen ScreenID
	at     time.Time
}

// debouncer absorbs mechanical bounce: repeated signals from the same
// button inside the window collapse into a single intent. Buttons are
// debounced independently of one another.
type debouncer struct {
	window time.Duration
	mu     sync.Mutex
	last   [NumScreens]time.Time
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window}
}

func (b *debouncer) allow(id ScreenID, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.last[id].IsZero() && now.Sub(b.last[id]) < b.window {
		return false
	}
	b.last[id] = now
	return true
}

// runButtons wires the physical buttons to screen selection and blocks
// forever dispatching intents. Hosts without GPIO lines (development
// machines) fall back to reading a keyboard via evdev.
func runButtons(cfg *Config, d *Dashboard) {
	presses := make(chan buttonEvent, 8)

	if len(gpioreg.All()) == 0 {
		log.Println("no GPIO lines on this host, using keyboard input")
		go watchKeyboard(presses)
	} else if err := watchButtons(cfg, presses); err != nil {
		// a bad pin assignment is a configuration error
		log.Fatalf("button setup: %v", err)
	}

	deb := newDebouncer(BUTTON_DEBOUNCE_TIME)
	for ev := range presses {
		if !deb.allow(ev.screen, ev.at) {
			continue
		}
		d.SelectScreen(ev.screen)
	}
}

// watchButtons configures every screen's button pin for falling-edge
// detection and spawns one watcher goroutine per pin. The Inky buttons
// pull the line to ground when pressed.
func watchButtons(cfg *Config, presses chan<- buttonEvent) error {
	for id := ScreenID(0); id < NumScreens; id++ {
		name := cfg.Screens[id.String()].ButtonPin
		p := gpioreg.ByName(name)
		if p == nil {
			return fmt.Errorf("screen %s: no such GPIO pin: %s", id, name)
		}
		if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return fmt.Errorf("screen %s: pin %s: %v", id, name, err)
		}
		log.Printf("button %s -> %s screen", name, id)

		go func(id ScreenID, p gpio.PinIn) {
			for {
				if !p.WaitForEdge(-1) {
					continue
				}
				presses <- buttonEvent{screen: id, at: time.Now()}
			}
		}(id, p)
	}
	return nil
}

// watchKeyboard reads the first keyboard-like evdev device and maps
// the 1..4 keys to the four screens.
func watchKeyboard(presses chan<- buttonEvent) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		log.Printf("ListDevicePaths error: %v", err)
		return
	}

	var devPath string
	for _, ip := range paths {
		if strings.Contains(strings.ToLower(ip.Name), "keyboard") {
			devPath = ip.Path
			break
		}
	}
	if devPath == "" {
		log.Println("no keyboard device found, buttons disabled")
		return
	}

	keyboard, err := evdev.Open(devPath)
	if err != nil {
		log.Printf("Open(%s) error: %v", devPath, err)
		return
	}

	name, _ := keyboard.Name()
	log.Printf("using input device: %s (%s)", devPath, name)

	keys := map[evdev.EvCode]ScreenID{
		evdev.KEY_1: ScreenArtwork,
		evdev.KEY_2: ScreenWeather,
		evdev.KEY_3: ScreenStarmap,
		evdev.KEY_4: ScreenSystem,
	}

	for {
		ev, err := keyboard.ReadOne()
		if err != nil {
			log.Printf("read error: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if ev.Type != evdev.EV_KEY || ev.Value != 1 {
			continue
		}
		if id, ok := keys[ev.Code]; ok {
			presses <- buttonEvent{screen: id, at: time.Now()}
		}
	}
}

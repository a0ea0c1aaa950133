package main

import (
	"bytes"
	"fmt"
	"image"
	"log"
	"sync"

	uc8159 "github.com/Glowstick0017/inky/periph.io-uc8159"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Inky Impression control pins.
const (
	DC_PIN    = "GPIO22"
	RESET_PIN = "GPIO27"
	BUSY_PIN  = "GPIO17"
)

// FramePusher is the minimal surface of a physical panel: a blocking
// full-frame transfer and its fixed bounds.
type FramePusher interface {
	Push(img *image.RGBA) error
	Bounds() image.Rectangle
}

// DisplaySink serializes all writes to the one physical panel. Two
// regenerations can never interleave their hardware writes, and a
// frame identical to what is already shown is skipped entirely; e-ink
// refresh cycles are slow, visually disruptive and limited in number.
type DisplaySink struct {
	mu    sync.Mutex
	panel FramePusher
	last  *image.RGBA
}

func newDisplaySink(panel FramePusher) *DisplaySink {
	return &DisplaySink{panel: panel}
}

// Present blocks until the hardware transfer completes. Passing a
// frame whose bounds do not match the panel is a programming error,
// not a runtime condition, hence the panic.
func (s *DisplaySink) Present(img *image.RGBA) error {
	if img == nil {
		return fmt.Errorf("display: nil frame")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if img.Bounds() != s.panel.Bounds() {
		panic(fmt.Sprintf("display: frame is %v, panel is %v", img.Bounds(), s.panel.Bounds()))
	}
	if s.last == img || (s.last != nil && bytes.Equal(s.last.Pix, img.Pix)) {
		return nil
	}
	if err := s.panel.Push(img); err != nil {
		// keep last as-is so the next attempt retries the transfer
		return err
	}
	s.last = img
	return nil
}

// Last returns the most recently shown frame, or nil before the first
// successful Present. Shown frames are never mutated afterwards.
func (s *DisplaySink) Last() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// inkyPanel adapts the uc8159 driver to the FramePusher surface.
type inkyPanel struct {
	dev *uc8159.Device
}

func (p *inkyPanel) Push(img *image.RGBA) error { return p.dev.DrawImage(img) }
func (p *inkyPanel) Bounds() image.Rectangle    { return p.dev.Bounds() }

// openPanel initializes the board and brings up the e-ink panel over
// SPI. The caller decides what to do when no hardware is present.
func openPanel(cfg *Config) (FramePusher, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	spiPort, err := spireg.Open("SPI0.0")
	if err != nil {
		return nil, err
	}

	conn, err := spiPort.Connect(3*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		spiPort.Close()
		return nil, err
	}

	dc := gpioreg.ByName(DC_PIN)
	rst := gpioreg.ByName(RESET_PIN)
	busy := gpioreg.ByName(BUSY_PIN)
	if dc == nil || rst == nil || busy == nil {
		spiPort.Close()
		return nil, fmt.Errorf("display control pins not found")
	}

	dev := uc8159.New(conn, dc, rst, busy)
	if err := dev.Configure(uc8159.Config{
		Width:       cfg.PanelWidth,
		Height:      cfg.PanelHeight,
		BorderColor: uc8159.WHITE,
	}); err != nil {
		spiPort.Close()
		return nil, err
	}
	return &inkyPanel{dev: dev}, nil
}

// nullPanel stands in for the hardware on development machines. Frames
// are still visible through the HTTP preview.
type nullPanel struct {
	width, height int
}

func (p *nullPanel) Push(img *image.RGBA) error {
	log.Println("null display: frame received")
	return nil
}

func (p *nullPanel) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.width, p.height)
}

// Package uc8159 drives the UC8159-based 7-colour ACeP e-paper panels
// (Pimoroni Inky Impression) over SPI using periph.io.
package uc8159

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// UC8159 command set.
const (
	PSR   = 0x00 // panel setting
	PWR   = 0x01 // power setting
	POF   = 0x02 // power off
	PFS   = 0x03 // power off sequence
	PON   = 0x04 // power on
	BTST  = 0x06 // booster soft start
	DSLP  = 0x07 // deep sleep
	DTM1  = 0x10 // data start transmission
	DRF   = 0x12 // display refresh
	IPC   = 0x13 // image process command
	PLL   = 0x30 // PLL control
	TSE   = 0x41 // temperature sensor enable
	CDI   = 0x50 // vcom and data interval
	TCON  = 0x60 // gate/source non-overlap period
	TRES  = 0x61 // resolution setting
	DAM   = 0x65 // spi flash control
	PWS   = 0xE3 // power saving
	TSSET = 0xE5 // force temperature
)

// Color is a palette index as understood by the panel.
type Color byte

const (
	BLACK  Color = 0
	WHITE  Color = 1
	GREEN  Color = 2
	BLUE   Color = 3
	RED    Color = 4
	YELLOW Color = 5
	ORANGE Color = 6
	CLEAN  Color = 7 // panel clear colour, not usable in images
)

// Palette holds the displayable colours, indexed by Color.
var Palette = color.Palette{
	color.RGBA{0, 0, 0, 255},       // BLACK
	color.RGBA{255, 255, 255, 255}, // WHITE
	color.RGBA{0, 255, 0, 255},     // GREEN
	color.RGBA{0, 0, 255, 255},     // BLUE
	color.RGBA{255, 0, 0, 255},     // RED
	color.RGBA{255, 255, 0, 255},   // YELLOW
	color.RGBA{255, 140, 0, 255},   // ORANGE
}

// Config holds the panel geometry and border colour.
type Config struct {
	Width       int
	Height      int
	BorderColor Color
}

// Device is a handle to a configured UC8159 panel.
type Device struct {
	c      conn.Conn
	dc     gpio.PinOut
	rst    gpio.PinOut
	busy   gpio.PinIn
	width  int
	height int
	border Color
}

// maxTxSize keeps each SPI transfer under the kernel's default 4K
// spidev buffer.
const maxTxSize = 4096

// New creates a device from an SPI connection and the control pins.
// Configure must be called before the first DrawImage.
func New(c conn.Conn, dc, rst gpio.PinOut, busy gpio.PinIn) *Device {
	return &Device{c: c, dc: dc, rst: rst, busy: busy}
}

// Configure resets the panel and sends the init sequence.
func (d *Device) Configure(cfg Config) error {
	d.width = cfg.Width
	d.height = cfg.Height
	d.border = cfg.BorderColor

	if err := d.busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return fmt.Errorf("busy pin: %v", err)
	}
	if err := d.reset(); err != nil {
		return err
	}

	w, h := uint16(d.width), uint16(d.height)
	// resolution setting register is 10 bits per axis
	if err := d.sendCommand(TRES, byte(w>>8), byte(w), byte(h>>8), byte(h)); err != nil {
		return err
	}

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{PSR, []byte{0xAF, 0x08}}, // 640x400, UC8159_7C
		{PWR, []byte{0x37, 0x00, 0x23, 0x23}},
		{PLL, []byte{0x3C}}, // 50 Hz
		{TSE, []byte{0x00}},
		{CDI, []byte{byte(d.border)<<5 | 0x17}},
		{TCON, []byte{0x22}},
		{DAM, []byte{0x00}},
		{PWS, []byte{0xAA}},
		{PFS, []byte{0x00}},
	}
	for _, s := range steps {
		if err := d.sendCommand(s.cmd, s.data...); err != nil {
			return err
		}
	}
	return nil
}

// Bounds returns the panel's pixel rectangle.
func (d *Device) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.width, d.height)
}

// DrawImage quantizes the image to the panel palette and performs a
// full refresh. This blocks for the whole e-ink update cycle, which
// takes many seconds.
func (d *Device) DrawImage(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != d.width || b.Dy() != d.height {
		return fmt.Errorf("uc8159: image is %dx%d, panel is %dx%d", b.Dx(), b.Dy(), d.width, d.height)
	}

	if err := d.sendCommand(DTM1, PackFrame(img)...); err != nil {
		return err
	}
	if err := d.sendCommand(PON); err != nil {
		return err
	}
	if err := d.waitBusy(200 * time.Millisecond); err != nil {
		return err
	}
	if err := d.sendCommand(DRF); err != nil {
		return err
	}
	// a full ACeP refresh takes ~30 s
	if err := d.waitBusy(40 * time.Second); err != nil {
		return err
	}
	if err := d.sendCommand(POF); err != nil {
		return err
	}
	return d.waitBusy(200 * time.Millisecond)
}

// Sleep puts the panel into deep sleep. A hardware reset (Configure)
// is required to wake it again.
func (d *Device) Sleep() error {
	return d.sendCommand(DSLP, 0xA5)
}

// PackFrame converts an image into the panel's wire format: one
// 3-bit palette index per pixel, two pixels per byte, high nibble
// first.
func PackFrame(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, (w*h+1)/2)

	var cur byte
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			idx := byte(Palette.Index(img.At(x, y))) & 0x07
			if n%2 == 0 {
				cur = idx << 4
			} else {
				out = append(out, cur|idx)
			}
			n++
		}
	}
	if n%2 != 0 {
		out = append(out, cur)
	}
	return out
}

func (d *Device) reset() error {
	if err := d.rst.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return err
	}
	return d.waitBusy(time.Second)
}

// waitBusy polls the busy line until the controller is idle. The line
// is held low while the panel is working.
func (d *Device) waitBusy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for d.busy.Read() == gpio.Low {
		if time.Now().After(deadline) {
			return fmt.Errorf("uc8159: busy timeout after %v", timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// sendCommand writes a command byte followed by its data, honouring
// the DC line and the SPI transfer size limit.
func (d *Device) sendCommand(cmd byte, data ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("uc8159: command %#02x: %v", cmd, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(data) > 0 {
		chunk := data
		if len(chunk) > maxTxSize {
			chunk = chunk[:maxTxSize]
		}
		if err := d.c.Tx(chunk, nil); err != nil {
			return fmt.Errorf("uc8159: data for %#02x: %v", cmd, err)
		}
		data = data[len(chunk):]
	}
	return nil
}

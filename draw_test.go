package main

import (
	"fmt"
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/font/basicfont"

	uc8159 "github.com/Glowstick0017/inky/periph.io-uc8159"
)

func paletteHas(c color.RGBA) bool {
	for _, p := range uc8159.Palette {
		if p.(color.RGBA) == c {
			return true
		}
	}
	return false
}

func TestQuantizeFrameSnapsToPalette(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.SetRGBA(0, 0, color.RGBA{10, 10, 10, 255})    // near black
	img.SetRGBA(1, 0, color.RGBA{250, 250, 250, 255}) // near white
	img.SetRGBA(2, 0, color.RGBA{200, 30, 30, 255})   // near red
	img.SetRGBA(3, 0, color.RGBA{120, 200, 90, 255})  // greenish

	out := quantizeFrame(img)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if c := out.RGBAAt(x, y); !paletteHas(c) {
				t.Fatalf("pixel (%d,%d) = %v not in the panel palette", x, y, c)
			}
		}
	}

	if out.RGBAAt(0, 0) != uc8159.Palette[uc8159.BLACK].(color.RGBA) {
		t.Errorf("near-black pixel quantized to %v", out.RGBAAt(0, 0))
	}
	if out.RGBAAt(1, 0) != uc8159.Palette[uc8159.WHITE].(color.RGBA) {
		t.Errorf("near-white pixel quantized to %v", out.RGBAAt(1, 0))
	}
}

func TestPlaceholderFrame(t *testing.T) {
	cfg := testConfig()
	cfg.PanelWidth, cfg.PanelHeight = 640, 400

	frame := placeholderFrame(cfg, "weather", fmt.Errorf("dial tcp: connection refused"))
	if frame == nil {
		t.Fatal("nil placeholder")
	}
	if frame.Bounds() != image.Rect(0, 0, 640, 400) {
		t.Errorf("placeholder bounds = %v", frame.Bounds())
	}
	// the header band is red
	if c := frame.RGBAAt(10, 10); c != INKY_RED.(color.RGBA) {
		t.Errorf("header pixel = %v, want red", c)
	}
}

func TestWrapText(t *testing.T) {
	face := basicfont.Face7x13 // 7px advance per glyph

	tests := []struct {
		text     string
		maxWidth int
		want     int // lines
	}{
		{"hello", 200, 1},
		{"one two three four", 60, 3}, // ~8 chars per line
		{"", 100, 0},
		{"single", 1, 1}, // too narrow still yields the word
	}
	for _, tt := range tests {
		lines := wrapText(face, tt.text, tt.maxWidth)
		if len(lines) != tt.want {
			t.Errorf("wrapText(%q, %d) = %d lines %v, want %d", tt.text, tt.maxWidth, len(lines), lines, tt.want)
		}
	}
}

func TestWrapTextLinesFit(t *testing.T) {
	face := basicfont.Face7x13
	for _, line := range wrapText(face, "the quick brown fox jumps over the lazy dog", 80) {
		if w := measureText(face, line); w > 80 {
			t.Errorf("line %q is %dpx wide, max 80", line, w)
		}
	}
}

func TestLetterboxPreservesAspect(t *testing.T) {
	// a 100x50 source into a 40x40 box scales to 40x20, centered
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			src.SetRGBA(x, y, color.RGBA{0, 0, 255, 255})
		}
	}

	dst := letterbox(src, 40, 40, color.RGBA{255, 255, 255, 255})
	if dst.Bounds() != image.Rect(0, 0, 40, 40) {
		t.Fatalf("bounds = %v", dst.Bounds())
	}

	if c := dst.RGBAAt(20, 20); c.B != 255 || c.R == 255 {
		t.Errorf("center should be covered by the scaled image, got %v", c)
	}
	if c := dst.RGBAAt(20, 2); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("top band should stay background, got %v", c)
	}
	if c := dst.RGBAAt(20, 38); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("bottom band should stay background, got %v", c)
	}
}

func TestRenderSVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20" viewBox="0 0 20 20"><rect x="0" y="0" width="20" height="20" fill="#ff0000"/></svg>`)

	img, err := renderSVG(svg, 20, 20, "")
	if err != nil {
		t.Fatalf("renderSVG: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 20, 20) {
		t.Errorf("bounds = %v", img.Bounds())
	}
	if c := img.RGBAAt(10, 10); c.R < 200 || c.A == 0 {
		t.Errorf("center pixel = %v, want red fill", c)
	}
}

func TestRenderSVGCache(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10" viewBox="0 0 10 10"><circle cx="5" cy="5" r="4" fill="#000"/></svg>`)

	a, err := renderSVG(svg, 10, 10, "test_circle_10")
	if err != nil {
		t.Fatal(err)
	}
	b, err := renderSVG(svg, 10, 10, "test_circle_10")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("cached render should return the same image")
	}
}

func TestCopyImageToImageAt(t *testing.T) {
	frame := newFrame(&Config{PanelWidth: 10, PanelHeight: 10}, color.RGBA{255, 255, 255, 255})
	spot := image.NewRGBA(image.Rect(0, 0, 2, 2))
	spot.SetRGBA(0, 0, color.RGBA{0, 0, 0, 255})

	if err := copyImageToImageAt(frame, spot, 4, 4); err != nil {
		t.Fatal(err)
	}
	if c := frame.RGBAAt(4, 4); c != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("copied pixel = %v", c)
	}

	if err := copyImageToImageAt(frame, spot, -1, 0); err == nil {
		t.Error("negative offset should error")
	}
	if err := copyImageToImageAt(nil, spot, 0, 0); err == nil {
		t.Error("nil frame should error")
	}
}

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	xdraw "golang.org/x/image/draw"

	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	uc8159 "github.com/Glowstick0017/inky/periph.io-uc8159"
)

// Panel colours, aliased from the driver palette.
var (
	INKY_BLACK  = uc8159.Palette[uc8159.BLACK]
	INKY_WHITE  = uc8159.Palette[uc8159.WHITE]
	INKY_GREEN  = uc8159.Palette[uc8159.GREEN]
	INKY_BLUE   = uc8159.Palette[uc8159.BLUE]
	INKY_RED    = uc8159.Palette[uc8159.RED]
	INKY_YELLOW = uc8159.Palette[uc8159.YELLOW]
	INKY_ORANGE = uc8159.Palette[uc8159.ORANGE]
)

var (
	svgCacheMu sync.Mutex
	svgCache   = make(map[string]*image.RGBA)

	fontCacheMu sync.Mutex
	fontCache   = make(map[string]font.Face)
)

//---------------- Fonts ----------------

// FontConfig holds parameters for a font.
type FontConfig struct {
	FontFile string  // file name under the configured font dir
	FontSize float64 // in points
}

var fonts = map[string]FontConfig{
	"header": {FontFile: "DejaVuSans-Bold.ttf", FontSize: 28},
	"large":  {FontFile: "DejaVuSans-Bold.ttf", FontSize: 48},
	"medium": {FontFile: "DejaVuSans.ttf", FontSize: 22},
	"small":  {FontFile: "DejaVuSans.ttf", FontSize: 16},
	"tiny":   {FontFile: "DejaVuSans.ttf", FontSize: 12},
}

const DEFAULT_FONT_DIR = "/usr/share/fonts/truetype/dejavu"

// getFontFace loads the named font face, caching parsed faces. When
// the TTF file is unavailable the fixed 7x13 face is substituted so
// rendering still produces a legible frame.
func getFontFace(cfg *Config, fontName string) font.Face {
	fc, ok := fonts[fontName]
	if !ok {
		log.Printf("font %s not found in mapping, using fallback", fontName)
		return basicfont.Face7x13
	}

	dir := cfg.FontDir
	if dir == "" {
		dir = DEFAULT_FONT_DIR
	}
	path := filepath.Join(dir, fc.FontFile)
	key := fmt.Sprintf("%s_%g", path, fc.FontSize)

	fontCacheMu.Lock()
	defer fontCacheMu.Unlock()
	if face, ok := fontCache[key]; ok {
		return face
	}

	face, err := loadFace(path, fc.FontSize)
	if err != nil {
		log.Printf("font %s: %v, using fallback", path, err)
		face = basicfont.Face7x13
	}
	fontCache[key] = face
	return face
}

func loadFace(path string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ttfFont, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing font: %v", err)
	}
	return opentype.NewFace(ttfFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

//---------------- Drawing Functions ----------------

// drawText draws a string onto an *image.RGBA at (x,y) using the specified font face and color.
func drawText(img *image.RGBA, text string, posX, posY int, face font.Face, clr color.Color, center bool) (finishX, finishY int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: face,
	}

	metrics := face.Metrics()

	var x, y int
	if center {
		textWidth := d.MeasureString(text).Round()
		x = posX - textWidth/2
	} else {
		x = posX
	}
	y = posY + metrics.Ascent.Round()

	d.Dot = fixed.P(x, y)
	d.DrawString(text)

	textWidth := d.MeasureString(text).Round()
	textHeight := metrics.Ascent.Round() + metrics.Descent.Round()

	finishX = x + textWidth
	if center {
		finishY = (y - metrics.Ascent.Round()) + textHeight
	} else {
		finishY = posY + textHeight
	}

	return
}

// measureText returns the pixel width of text in the given face.
func measureText(face font.Face, text string) int {
	d := &font.Drawer{Face: face}
	return d.MeasureString(text).Round()
}

// wrapText splits text into lines that each fit within maxWidth.
func wrapText(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		candidate := line + " " + word
		if measureText(face, candidate) > maxWidth {
			lines = append(lines, line)
			line = word
		} else {
			line = candidate
		}
	}
	return append(lines, line)
}

// decodeImage decodes PNG/JPEG/GIF payloads into RGBA.
func decodeImage(r io.Reader, contentType string) (*image.RGBA, error) {
	var img image.Image
	var err error

	switch {
	case strings.Contains(contentType, "png"):
		img, err = png.Decode(r)
	case strings.Contains(contentType, "gif"):
		img, err = gif.Decode(r)
	default:
		img, err = jpeg.Decode(r)
	}
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba, nil
}

// renderSVG rasterizes in-memory SVG data at the target size. Rendered
// results are cached under cacheKey; pass "" to skip caching.
func renderSVG(svgData []byte, targetWidth, targetHeight int, cacheKey string) (*image.RGBA, error) {
	if cacheKey != "" {
		svgCacheMu.Lock()
		cached, ok := svgCache[cacheKey]
		svgCacheMu.Unlock()
		if ok {
			return cached, nil
		}
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, err
	}
	if targetWidth == 0 {
		targetWidth = int(icon.ViewBox.W)
	}
	if targetHeight == 0 {
		targetHeight = int(icon.ViewBox.H)
	}

	icon.SetTarget(0, 0, float64(targetWidth), float64(targetHeight))

	img := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	scanner := rasterx.NewScannerGV(targetWidth, targetHeight, img, img.Bounds())
	dasher := rasterx.NewDasher(targetWidth, targetHeight, scanner)
	icon.Draw(dasher, 1.0)

	if cacheKey != "" {
		svgCacheMu.Lock()
		svgCache[cacheKey] = img
		svgCacheMu.Unlock()
	}
	return img, nil
}

// copyImageToImageAt copies an image to an image at a specified offset,
// alpha-blending partially transparent pixels.
func copyImageToImageAt(frame *image.RGBA, img *image.RGBA, x0, y0 int) error {
	if frame == nil || img == nil {
		return fmt.Errorf("nil image provided")
	}
	if x0 < 0 || y0 < 0 {
		return fmt.Errorf("x, y is negative: %d,%d", x0, y0)
	}

	targetWidth := img.Bounds().Dx()
	targetHeight := img.Bounds().Dy()

	for y := 0; y < targetHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			sample := img.RGBAAt(x, y)
			if sample.A == 0 {
				continue
			}

			dst := frame.RGBAAt(x0+x, y0+y)
			if sample.A == 255 {
				frame.SetRGBA(x0+x, y0+y, sample)
			} else {
				a := uint16(sample.A)
				invA := uint16(255 - sample.A)
				outR := (uint16(sample.R)*a + uint16(dst.R)*invA) / 255
				outG := (uint16(sample.G)*a + uint16(dst.G)*invA) / 255
				outB := (uint16(sample.B)*a + uint16(dst.B)*invA) / 255
				outA := uint8(uint16(sample.A) + (uint16(dst.A)*invA)/255)
				frame.SetRGBA(x0+x, y0+y, color.RGBA{
					R: uint8(outR),
					G: uint8(outG),
					B: uint8(outB),
					A: outA,
				})
			}
		}
	}

	return nil
}

func drawRect(img *image.RGBA, x0, y0, width, height int, c color.Color) {
	r, g, b, a := c.RGBA()
	col := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}

	for x := x0; x < x0+width; x++ {
		for y := y0; y < y0+height; y++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// fillRoundedRect fills a rounded rectangle, optionally stroked.
func fillRoundedRect(img *image.RGBA, x, y, w, h, r float64, fill, stroke color.Color) {
	gc := draw2dimg.NewGraphicContext(img)
	gc.SetFillColor(fill)
	if stroke != nil {
		gc.SetStrokeColor(stroke)
		gc.SetLineWidth(2)
	}
	drawRoundedRect(gc, x, y, w, h, r)
	if stroke != nil {
		gc.FillStroke()
	} else {
		gc.Fill()
	}
}

func drawRoundedRect(gc *draw2dimg.GraphicContext, x, y, w, h, r float64) {
	gc.MoveTo(x+r, y)
	gc.LineTo(x+w-r, y)
	gc.ArcTo(x+w-r, y+r, r, r, -90, 90)
	gc.LineTo(x+w, y+h-r)
	gc.ArcTo(x+w-r, y+h-r, r, r, 0, 90)
	gc.LineTo(x+r, y+h)
	gc.ArcTo(x+r, y+h-r, r, r, 90, 90)
	gc.LineTo(x, y+r)
	gc.ArcTo(x+r, y+r, r, r, 180, 90)
	gc.Close()
}

// letterbox scales src to fit within w x h preserving aspect ratio and
// centers it on a background of the given colour.
func letterbox(src image.Image, w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return dst
	}

	scale := float64(w) / float64(sb.Dx())
	if s := float64(h) / float64(sb.Dy()); s < scale {
		scale = s
	}
	tw := int(float64(sb.Dx()) * scale)
	th := int(float64(sb.Dy()) * scale)
	x0 := (w - tw) / 2
	y0 := (h - th) / 2

	xdraw.ApproxBiLinear.Scale(dst, image.Rect(x0, y0, x0+tw, y0+th), src, sb, xdraw.Over, nil)
	return dst
}

// newFrame allocates a panel-sized frame cleared to the given colour.
func newFrame(cfg *Config, bg color.Color) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, cfg.PanelWidth, cfg.PanelHeight))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	return frame
}

// quantizeFrame snaps every pixel to the nearest panel palette colour.
// Providers run this as their final step so the sink only ever sees
// displayable frames.
func quantizeFrame(img *image.RGBA) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := uc8159.Palette.Convert(img.RGBAAt(x, y))
			out.SetRGBA(x, y, c.(color.RGBA))
		}
	}
	return out
}

// placeholderFrame is what a screen shows when it has never rendered
// successfully and its latest attempt failed too.
func placeholderFrame(cfg *Config, screenName string, renderErr error) *image.RGBA {
	frame := newFrame(cfg, INKY_WHITE)

	headerFace := getFontFace(cfg, "header")
	smallFace := getFontFace(cfg, "small")

	drawRect(frame, 0, 0, cfg.PanelWidth, 60, INKY_RED)
	drawText(frame, "Screen unavailable", cfg.PanelWidth/2, 14, headerFace, INKY_WHITE, true)

	drawText(frame, screenName+" screen", cfg.PanelWidth/2, 100, smallFace, INKY_BLACK, true)

	reason := "no data"
	if renderErr != nil {
		reason = renderErr.Error()
	}
	y := 150
	for _, line := range wrapText(smallFace, reason, cfg.PanelWidth-80) {
		_, y = drawText(frame, line, cfg.PanelWidth/2, y, smallFace, INKY_BLACK, true)
		y += 4
	}

	drawText(frame, "will retry on the next refresh", cfg.PanelWidth/2, cfg.PanelHeight-40, smallFace, INKY_BLACK, true)
	return frame
}

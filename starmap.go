package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	svg "github.com/ajstarks/svgo"
)

const SUNRISE_SUNSET_URL = "https://api.sunrise-sunset.org/json"

// point is a normalized star position within the sky viewport.
type point struct{ X, Y float64 }

// A handful of recognizable constellations, positions normalized to
// the sky viewport. Lines connect consecutive stars.
var constellations = map[string][]point{
	"Ursa Major": {
		{0.10, 0.25}, {0.16, 0.22}, {0.22, 0.24}, {0.28, 0.28},
		{0.34, 0.26}, {0.33, 0.36}, {0.27, 0.37},
	},
	"Cassiopeia": {
		{0.62, 0.12}, {0.67, 0.20}, {0.72, 0.13}, {0.77, 0.22}, {0.82, 0.16},
	},
	"Orion": {
		{0.48, 0.55}, {0.56, 0.58}, {0.50, 0.70}, {0.52, 0.71},
		{0.54, 0.72}, {0.47, 0.85}, {0.58, 0.83},
	},
}

var moonPhaseNames = []string{
	"New Moon", "Waxing Crescent", "First Quarter", "Waxing Gibbous",
	"Full Moon", "Waning Gibbous", "Last Quarter", "Waning Crescent",
}

// StarmapScreen renders tonight's sky: stars, constellations, the moon
// phase, visible planets and sun times for the configured location.
type StarmapScreen struct {
	SunAPIURL string
	client    *http.Client
}

func NewStarmapScreen() *StarmapScreen {
	return &StarmapScreen{
		SunAPIURL: SUNRISE_SUNSET_URL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *StarmapScreen) Name() string { return "starmap" }

//---------------- Astronomy math ----------------

// julianDay converts a time to its Julian day number.
func julianDay(t time.Time) float64 {
	return float64(t.UnixMilli())/86400000.0 + 2440587.5
}

// siderealTime returns the local sidereal time in degrees [0, 360).
func siderealTime(t time.Time, longitude float64) float64 {
	jd := julianDay(t)
	gmst := 280.46061837 + 360.98564736629*(jd-2451545.0)
	lst := math.Mod(gmst+longitude, 360)
	if lst < 0 {
		lst += 360
	}
	return lst
}

// sunEclipticLongitude returns the sun's geocentric ecliptic longitude
// in degrees.
func sunEclipticLongitude(t time.Time) float64 {
	n := julianDay(t) - 2451545.0
	l := math.Mod(280.460+0.9856474*n, 360)
	g := (357.528 + 0.9856003*n) * math.Pi / 180
	lambda := l + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)
	lambda = math.Mod(lambda, 360)
	if lambda < 0 {
		lambda += 360
	}
	return lambda
}

// sunDeclination returns the sun's declination in degrees.
func sunDeclination(t time.Time) float64 {
	n := julianDay(t) - 2451545.0
	eps := (23.439 - 0.0000004*n) * math.Pi / 180
	lambda := sunEclipticLongitude(t) * math.Pi / 180
	return math.Asin(math.Sin(eps)*math.Sin(lambda)) * 180 / math.Pi
}

// sunriseSunset computes approximate local sunrise and sunset for the
// given day using the standard hour-angle formula. The boolean is
// false during polar day or night when the sun never crosses the
// horizon.
func sunriseSunset(t time.Time, latitude, longitude float64) (sunrise, sunset time.Time, ok bool) {
	dec := sunDeclination(t) * math.Pi / 180
	lat := latitude * math.Pi / 180

	cosH := (math.Cos(90.833*math.Pi/180) - math.Sin(lat)*math.Sin(dec)) /
		(math.Cos(lat) * math.Cos(dec))
	if cosH < -1 || cosH > 1 {
		return time.Time{}, time.Time{}, false
	}
	h := math.Acos(cosH) * 180 / math.Pi // degrees of hour angle

	// solar noon in UTC hours
	noonUTC := 12 - longitude/15
	riseUTC := noonUTC - h/15
	setUTC := noonUTC + h/15

	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	sunrise = midnight.Add(time.Duration(riseUTC * float64(time.Hour))).In(t.Location())
	sunset = midnight.Add(time.Duration(setUTC * float64(time.Hour))).In(t.Location())
	return sunrise, sunset, true
}

const synodicMonth = 29.53058867

// moonPhase returns the phase fraction [0, 1) where 0 is new moon and
// 0.5 is full, plus the illuminated fraction [0, 1].
func moonPhase(t time.Time) (phase, illumination float64) {
	// reference new moon: 2000-01-06 18:14 UTC
	ref := time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)
	days := t.Sub(ref).Hours() / 24
	phase = math.Mod(days/synodicMonth, 1)
	if phase < 0 {
		phase += 1
	}
	illumination = (1 - math.Cos(2*math.Pi*phase)) / 2
	return phase, illumination
}

func moonPhaseName(phase float64) string {
	idx := int(math.Mod(phase+1.0/16, 1) * 8)
	if idx > 7 {
		idx = 7
	}
	return moonPhaseNames[idx]
}

// planetMeanLongitudes returns rough mean ecliptic longitudes for the
// naked-eye planets, good enough to decide evening/morning visibility.
func planetMeanLongitudes(t time.Time) map[string]float64 {
	n := julianDay(t) - 2451545.0
	mean := func(l0, rate float64) float64 {
		l := math.Mod(l0+rate*n, 360)
		if l < 0 {
			l += 360
		}
		return l
	}
	return map[string]float64{
		"Mercury": mean(252.25, 4.092339),
		"Venus":   mean(181.98, 1.602130),
		"Mars":    mean(355.43, 0.524039),
		"Jupiter": mean(34.35, 0.083056),
		"Saturn":  mean(50.08, 0.033371),
	}
}

// visiblePlanets lists planets far enough from the sun to be seen.
func visiblePlanets(t time.Time) []string {
	sun := sunEclipticLongitude(t)
	var out []string
	for _, name := range []string{"Mercury", "Venus", "Mars", "Jupiter", "Saturn"} {
		lon := planetMeanLongitudes(t)[name]
		elong := math.Abs(math.Mod(lon-sun+540, 360) - 180)
		if elong > 30 {
			out = append(out, name)
		}
	}
	return out
}

//---------------- Remote cross-check ----------------

type sunAPIResponse struct {
	Results struct {
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	} `json:"results"`
	Status string `json:"status"`
}

// fetchSunTimes asks sunrise-sunset.org for precise times; the local
// approximation is used when the API is unreachable.
func (s *StarmapScreen) fetchSunTimes(cfg *Config, t time.Time) (sunrise, sunset time.Time, err error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%g", cfg.Latitude))
	params.Set("lng", fmt.Sprintf("%g", cfg.Longitude))
	params.Set("formatted", "0")
	params.Set("date", t.Format("2006-01-02"))

	resp, err := s.client.Get(s.SunAPIURL + "?" + params.Encode())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	defer resp.Body.Close()

	var payload sunAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if payload.Status != "OK" {
		return time.Time{}, time.Time{}, fmt.Errorf("sunrise-sunset API status %q", payload.Status)
	}

	sunrise, err = time.Parse(time.RFC3339, payload.Results.Sunrise)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	sunset, err = time.Parse(time.RFC3339, payload.Results.Sunset)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return sunrise.In(t.Location()), sunset.In(t.Location()), nil
}

//---------------- Rendering ----------------

func (s *StarmapScreen) Render(cfg *Config) (*image.RGBA, error) {
	now := time.Now()
	if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
		now = now.In(loc)
	}

	frame := newFrame(cfg, INKY_WHITE)

	headerFace := getFontFace(cfg, "header")
	smallFace := getFontFace(cfg, "small")
	tinyFace := getFontFace(cfg, "tiny")

	drawRect(frame, 0, 0, cfg.PanelWidth, 50, INKY_BLACK)
	drawText(frame, "Night Sky", 20, 8, headerFace, INKY_WHITE, false)
	stamp := cfg.City + "  " + now.Format("Jan 2")
	drawText(frame, stamp, cfg.PanelWidth-20-measureText(smallFace, stamp), 16, smallFace, INKY_WHITE, false)

	skyH := cfg.PanelHeight - 50 - 70
	phase, illum := moonPhase(now)
	sky, err := s.renderSky(cfg.PanelWidth, skyH, now, phase)
	if err != nil {
		return nil, fmt.Errorf("rendering sky: %v", err)
	}
	copyImageToImageAt(frame, sky, 0, 50)

	// constellation labels over the rasterized sky
	for name, stars := range constellations {
		last := stars[len(stars)-1]
		x := int(last.X * float64(cfg.PanelWidth))
		y := 50 + int(last.Y*float64(skyH))
		drawText(frame, name, x+8, y+4, tinyFace, INKY_WHITE, false)
	}

	// info row
	sunrise, sunset, err := s.fetchSunTimes(cfg, now)
	if err != nil {
		var ok bool
		sunrise, sunset, ok = sunriseSunset(now, cfg.Latitude, cfg.Longitude)
		if !ok {
			return nil, fmt.Errorf("no sunrise/sunset at this latitude today")
		}
	}

	infoY := cfg.PanelHeight - 62
	drawText(frame, fmt.Sprintf("Sunrise %s   Sunset %s", sunrise.Format("15:04"), sunset.Format("15:04")),
		20, infoY, smallFace, INKY_BLACK, false)
	drawText(frame, fmt.Sprintf("%s (%.0f%% lit)", moonPhaseName(phase), illum*100),
		20, infoY+26, smallFace, INKY_BLACK, false)

	planets := visiblePlanets(now)
	planetText := "Planets: none visible"
	if len(planets) > 0 {
		planetText = "Planets: " + strings.Join(planets, ", ")
	}
	drawText(frame, planetText, cfg.PanelWidth-20-measureText(smallFace, planetText), infoY+26, smallFace, INKY_BLACK, false)

	return quantizeFrame(frame), nil
}

// renderSky draws the star field as SVG and rasterizes it. The star
// field is seeded from the date so it stays stable across refreshes
// within a day.
func (s *StarmapScreen) renderSky(w, h int, now time.Time, phase float64) (*image.RGBA, error) {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(w, h)
	canvas.Rect(0, 0, w, h, "fill:midnightblue")

	rng := rand.New(rand.NewSource(int64(now.YearDay())))
	for i := 0; i < 120; i++ {
		x := rng.Intn(w)
		y := rng.Intn(h)
		r := 1 + rng.Intn(2)
		canvas.Circle(x, y, r, "fill:white")
	}

	for _, stars := range constellations {
		for i := 1; i < len(stars); i++ {
			x1, y1 := int(stars[i-1].X*float64(w)), int(stars[i-1].Y*float64(h))
			x2, y2 := int(stars[i].X*float64(w)), int(stars[i].Y*float64(h))
			canvas.Line(x1, y1, x2, y2, "stroke:white;stroke-width:1;stroke-opacity:0.6")
		}
		for _, p := range stars {
			canvas.Circle(int(p.X*float64(w)), int(p.Y*float64(h)), 3, "fill:yellow")
		}
	}

	// moon with its phase shadow
	mx, my, mr := w-70, 50, 28
	canvas.Circle(mx, my, mr, "fill:white")
	// offset a dark disc to carve out the unlit side
	offset := int(float64(mr) * 2 * (0.5 - math.Abs(phase-0.5)) * 2)
	if phase < 0.5 {
		canvas.Circle(mx-offset, my, mr, "fill:midnightblue")
	} else {
		canvas.Circle(mx+offset, my, mr, "fill:midnightblue")
	}

	canvas.End()
	return renderSVG(buf.Bytes(), w, h, "")
}

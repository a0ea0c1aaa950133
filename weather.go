package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"net/http"
	"net/url"
	"time"

	svg "github.com/ajstarks/svgo"
)

const OPEN_METEO_URL = "https://api.open-meteo.com/v1/forecast"

// weatherDescriptions maps Open-Meteo WMO weather codes to text.
var weatherDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

func weatherDescription(code int) string {
	if desc, ok := weatherDescriptions[code]; ok {
		return desc
	}
	return "Unknown"
}

type weatherResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		Windspeed   float64 `json:"windspeed"`
		Weathercode int     `json:"weathercode"`
		Time        string  `json:"time"`
	} `json:"current_weather"`
	Daily struct {
		Time           []string  `json:"time"`
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
		Weathercode    []int     `json:"weathercode"`
	} `json:"daily"`
}

// WeatherScreen renders current conditions and a five day forecast
// from Open-Meteo (free, no API key required).
type WeatherScreen struct {
	BaseURL string
	client  *http.Client
}

func NewWeatherScreen() *WeatherScreen {
	return &WeatherScreen{
		BaseURL: OPEN_METEO_URL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *WeatherScreen) Name() string { return "weather" }

func (w *WeatherScreen) fetch(cfg *Config) (*weatherResponse, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%g", cfg.Latitude))
	params.Set("longitude", fmt.Sprintf("%g", cfg.Longitude))
	params.Set("current_weather", "true")
	params.Set("daily", "temperature_2m_max,temperature_2m_min,weathercode")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("windspeed_unit", "mph")
	params.Set("timezone", cfg.Timezone)
	params.Set("forecast_days", "5")

	resp, err := w.client.Get(w.BaseURL + "?" + params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo returned %s", resp.Status)
	}

	var data weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding forecast: %v", err)
	}
	if len(data.Daily.Time) == 0 {
		return nil, fmt.Errorf("forecast contains no days")
	}
	if len(data.Daily.TemperatureMax) != len(data.Daily.Time) ||
		len(data.Daily.TemperatureMin) != len(data.Daily.Time) ||
		len(data.Daily.Weathercode) != len(data.Daily.Time) {
		return nil, fmt.Errorf("forecast daily arrays disagree in length")
	}
	return &data, nil
}

func (w *WeatherScreen) Render(cfg *Config) (*image.RGBA, error) {
	data, err := w.fetch(cfg)
	if err != nil {
		return nil, err
	}

	frame := newFrame(cfg, INKY_WHITE)

	headerFace := getFontFace(cfg, "header")
	largeFace := getFontFace(cfg, "large")
	mediumFace := getFontFace(cfg, "medium")
	smallFace := getFontFace(cfg, "small")

	// header band
	drawRect(frame, 0, 0, cfg.PanelWidth, 50, INKY_BLUE)
	drawText(frame, "Weather", 20, 8, headerFace, INKY_WHITE, false)
	stamp := time.Now().Format("Mon 15:04")
	drawText(frame, cfg.City+"  "+stamp,
		cfg.PanelWidth-20-measureText(smallFace, cfg.City+"  "+stamp), 16, smallFace, INKY_WHITE, false)

	// current conditions
	cur := data.CurrentWeather
	drawText(frame, fmt.Sprintf("%.0f°F", cur.Temperature), 30, 80, largeFace, INKY_BLACK, false)
	drawText(frame, weatherDescription(cur.Weathercode), 30, 150, mediumFace, INKY_BLACK, false)
	drawText(frame, fmt.Sprintf("Wind %.0f mph", cur.Windspeed), 30, 185, smallFace, INKY_BLACK, false)

	if icon, err := weatherIcon(cur.Weathercode, 120); err == nil {
		copyImageToImageAt(frame, icon, cfg.PanelWidth-160, 70)
	}

	// five day forecast row
	days := len(data.Daily.Time)
	if days > 5 {
		days = 5
	}
	colW := cfg.PanelWidth / days
	rowY := 235
	for i := 0; i < days; i++ {
		x := i * colW

		day := data.Daily.Time[i]
		if t, err := time.Parse("2006-01-02", day); err == nil {
			day = t.Format("Mon")
		}
		drawText(frame, day, x+colW/2, rowY, smallFace, INKY_BLACK, true)

		if icon, err := weatherIcon(data.Daily.Weathercode[i], 50); err == nil {
			copyImageToImageAt(frame, icon, x+colW/2-25, rowY+25)
		}

		hi := fmt.Sprintf("%.0f°", data.Daily.TemperatureMax[i])
		lo := fmt.Sprintf("%.0f°", data.Daily.TemperatureMin[i])
		drawText(frame, hi, x+colW/2, rowY+85, mediumFace, INKY_RED, true)
		drawText(frame, lo, x+colW/2, rowY+115, smallFace, INKY_BLUE, true)
	}

	return quantizeFrame(frame), nil
}

// weatherIcon draws a simple condition icon as SVG and rasterizes it.
// Icons are cached by code and size.
func weatherIcon(code, size int) (*image.RGBA, error) {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(100, 100)

	switch {
	case code == 0, code == 1:
		drawSunSVG(canvas, 50, 50, 28)
	case code == 2:
		drawSunSVG(canvas, 38, 40, 20)
		drawCloudSVG(canvas, 55, 62, "fill:dimgray")
	case code == 3, code == 45, code == 48:
		drawCloudSVG(canvas, 50, 52, "fill:dimgray")
	case code >= 51 && code <= 67, code >= 80 && code <= 82:
		drawCloudSVG(canvas, 50, 45, "fill:dimgray")
		for i := 0; i < 3; i++ {
			x := 32 + i*18
			canvas.Line(x, 68, x-6, 88, "stroke:blue;stroke-width:5;stroke-linecap:round")
		}
	case code >= 71 && code <= 77, code == 85, code == 86:
		drawCloudSVG(canvas, 50, 45, "fill:dimgray")
		for i := 0; i < 3; i++ {
			canvas.Circle(32+i*18, 80, 5, "fill:lightblue")
		}
	case code >= 95:
		drawCloudSVG(canvas, 50, 42, "fill:dimgray")
		canvas.Polygon([]int{55, 40, 50, 38}, []int{58, 74, 74, 92}, "fill:orange")
	default:
		drawCloudSVG(canvas, 50, 52, "fill:dimgray")
	}

	canvas.End()
	return renderSVG(buf.Bytes(), size, size, fmt.Sprintf("weather_%d_%d", code, size))
}

func drawSunSVG(canvas *svg.SVG, cx, cy, r int) {
	canvas.Circle(cx, cy, r, "fill:orange")
	for i := 0; i < 8; i++ {
		angle := float64(i) * 45
		x1, y1 := rayPoint(cx, cy, r+4, angle)
		x2, y2 := rayPoint(cx, cy, r+14, angle)
		canvas.Line(x1, y1, x2, y2, "stroke:orange;stroke-width:5;stroke-linecap:round")
	}
}

func rayPoint(cx, cy, r int, angleDeg float64) (int, int) {
	rad := angleDeg * math.Pi / 180
	return cx + int(float64(r)*math.Cos(rad)), cy + int(float64(r)*math.Sin(rad))
}

func drawCloudSVG(canvas *svg.SVG, cx, cy int, style string) {
	canvas.Circle(cx-18, cy, 14, style)
	canvas.Circle(cx, cy-10, 18, style)
	canvas.Circle(cx+18, cy, 14, style)
	canvas.Roundrect(cx-30, cy-4, 60, 18, 8, 8, style)
}

package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const weatherFixture = `{
  "current_weather": {
    "temperature": 101.3,
    "windspeed": 7.2,
    "weathercode": 2,
    "time": "2026-06-15T14:00"
  },
  "daily": {
    "time": ["2026-06-15", "2026-06-16", "2026-06-17", "2026-06-18", "2026-06-19"],
    "temperature_2m_max": [104.1, 102.5, 99.8, 101.0, 103.2],
    "temperature_2m_min": [78.3, 77.1, 75.0, 76.4, 79.0],
    "weathercode": [0, 1, 2, 61, 95]
  }
}`

func TestWeatherFetch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		rw.Write([]byte(weatherFixture))
	}))
	defer srv.Close()

	w := NewWeatherScreen()
	w.BaseURL = srv.URL

	cfg := testConfig()
	data, err := w.fetch(cfg)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if data.CurrentWeather.Temperature != 101.3 {
		t.Errorf("temperature = %v", data.CurrentWeather.Temperature)
	}
	if data.CurrentWeather.Weathercode != 2 {
		t.Errorf("weathercode = %v", data.CurrentWeather.Weathercode)
	}
	if len(data.Daily.Time) != 5 {
		t.Errorf("daily days = %d", len(data.Daily.Time))
	}
	if data.Daily.TemperatureMax[0] != 104.1 || data.Daily.TemperatureMin[4] != 79.0 {
		t.Error("daily temperatures not decoded")
	}

	for _, want := range []string{
		"current_weather=true",
		"temperature_unit=fahrenheit",
		"windspeed_unit=mph",
		"forecast_days=5",
		"timezone=America%2FPhoenix",
	} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestWeatherFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "garbage body",
			handler: func(rw http.ResponseWriter, r *http.Request) {
				rw.Write([]byte("not json"))
			},
		},
		{
			name: "empty forecast",
			handler: func(rw http.ResponseWriter, r *http.Request) {
				rw.Write([]byte(`{"current_weather":{},"daily":{"time":[]}}`))
			},
		},
		{
			name: "mismatched daily arrays",
			handler: func(rw http.ResponseWriter, r *http.Request) {
				rw.Write([]byte(`{
					"current_weather": {"temperature": 70, "weathercode": 0},
					"daily": {
						"time": ["2026-06-15", "2026-06-16", "2026-06-17", "2026-06-18", "2026-06-19"],
						"temperature_2m_max": [104.1],
						"temperature_2m_min": [78.3],
						"weathercode": [0]
					}
				}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			w := NewWeatherScreen()
			w.BaseURL = srv.URL
			if _, err := w.fetch(testConfig()); err == nil {
				t.Error("expected fetch to fail")
			}
		})
	}
}

func TestWeatherRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(weatherFixture))
	}))
	defer srv.Close()

	w := NewWeatherScreen()
	w.BaseURL = srv.URL

	cfg := testConfig()
	cfg.PanelWidth, cfg.PanelHeight = 640, 400

	frame, err := w.Render(cfg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if frame.Bounds().Dx() != 640 || frame.Bounds().Dy() != 400 {
		t.Errorf("frame bounds = %v", frame.Bounds())
	}
	for y := 0; y < 400; y++ {
		for x := 0; x < 640; x++ {
			if !paletteHas(frame.RGBAAt(x, y)) {
				t.Fatalf("pixel (%d,%d) outside the panel palette", x, y)
			}
		}
	}
}

func TestWeatherRenderMismatchedDailyArrays(t *testing.T) {
	// a valid JSON body whose sibling arrays are shorter than daily.time
	// must surface as a render failure, never a crash
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`{
			"current_weather": {"temperature": 70, "weathercode": 0},
			"daily": {
				"time": ["2026-06-15", "2026-06-16", "2026-06-17", "2026-06-18", "2026-06-19"],
				"temperature_2m_max": [104.1],
				"temperature_2m_min": [78.3],
				"weathercode": [0]
			}
		}`))
	}))
	defer srv.Close()

	w := NewWeatherScreen()
	w.BaseURL = srv.URL

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Render panicked on malformed upstream payload: %v", r)
		}
	}()
	if _, err := w.Render(testConfig()); err == nil {
		t.Error("mismatched daily arrays should fail the render")
	}
}

func TestWeatherRenderFailsWhenUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(nil))
	srv.Close() // refuse connections

	w := NewWeatherScreen()
	w.BaseURL = srv.URL

	if _, err := w.Render(testConfig()); err == nil {
		t.Error("render should surface the fetch error")
	}
}

func TestWeatherDescription(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "Clear sky"},
		{3, "Overcast"},
		{95, "Thunderstorm"},
		{42, "Unknown"},
	}
	for _, tt := range tests {
		if got := weatherDescription(tt.code); got != tt.want {
			t.Errorf("weatherDescription(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestWeatherIcon(t *testing.T) {
	for _, code := range []int{0, 2, 3, 61, 75, 95, 123} {
		icon, err := weatherIcon(code, 50)
		if err != nil {
			t.Fatalf("weatherIcon(%d): %v", code, err)
		}
		if icon.Bounds().Dx() != 50 || icon.Bounds().Dy() != 50 {
			t.Errorf("weatherIcon(%d) bounds = %v", code, icon.Bounds())
		}
	}
}

package main

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJulianDay(t *testing.T) {
	// the J2000.0 epoch is JD 2451545.0
	epoch := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := julianDay(epoch); math.Abs(got-2451545.0) > 1e-6 {
		t.Errorf("julianDay(J2000) = %v, want 2451545.0", got)
	}

	// one day later is exactly +1
	if got := julianDay(epoch.Add(24 * time.Hour)); math.Abs(got-2451546.0) > 1e-6 {
		t.Errorf("julianDay(J2000+1d) = %v, want 2451546.0", got)
	}
}

func TestSiderealTimeRange(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 15, 12, 30, 0, 0, time.UTC),
		time.Date(1980, 3, 21, 18, 0, 0, 0, time.UTC),
	}
	for _, tm := range times {
		for _, lon := range []float64{-112.074, 0, 139.69} {
			lst := siderealTime(tm, lon)
			if lst < 0 || lst >= 360 {
				t.Errorf("siderealTime(%v, %v) = %v out of [0,360)", tm, lon, lst)
			}
		}
	}
}

func TestSunEclipticLongitudeAtEquinox(t *testing.T) {
	// at the March equinox the sun's ecliptic longitude crosses 0
	equinox := time.Date(2026, 3, 20, 14, 46, 0, 0, time.UTC)
	lon := sunEclipticLongitude(equinox)
	if lon > 2 && lon < 358 {
		t.Errorf("ecliptic longitude at equinox = %v, want near 0", lon)
	}
	if dec := sunDeclination(equinox); math.Abs(dec) > 1 {
		t.Errorf("declination at equinox = %v, want near 0", dec)
	}
}

func TestSunriseSunset(t *testing.T) {
	day := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	sunrise, sunset, ok := sunriseSunset(day, 33.4484, -112.074)
	if !ok {
		t.Fatal("Phoenix should have a sunrise in June")
	}
	if !sunrise.Before(sunset) {
		t.Errorf("sunrise %v not before sunset %v", sunrise, sunset)
	}
	daylight := sunset.Sub(sunrise)
	if daylight < 13*time.Hour || daylight > 15*time.Hour {
		t.Errorf("June daylight in Phoenix = %v, want roughly 14h", daylight)
	}
}

func TestSunriseSunsetPolar(t *testing.T) {
	// midsummer above the arctic circle: the sun never sets
	day := time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)
	if _, _, ok := sunriseSunset(day, 78.22, 15.64); ok {
		t.Error("Svalbard in June should report no sunrise/sunset")
	}
	// and never rises in midwinter
	day = time.Date(2026, 12, 21, 12, 0, 0, 0, time.UTC)
	if _, _, ok := sunriseSunset(day, 78.22, 15.64); ok {
		t.Error("Svalbard in December should report no sunrise/sunset")
	}
}

func TestMoonPhase(t *testing.T) {
	// the reference new moon itself
	ref := time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)
	phase, illum := moonPhase(ref)
	if phase > 0.01 && phase < 0.99 {
		t.Errorf("phase at reference new moon = %v, want near 0", phase)
	}
	if illum > 0.01 {
		t.Errorf("illumination at new moon = %v, want near 0", illum)
	}

	// half a synodic month later is a full moon
	full := ref.Add(time.Duration(synodicMonth / 2 * 24 * float64(time.Hour)))
	phase, illum = moonPhase(full)
	if math.Abs(phase-0.5) > 0.01 {
		t.Errorf("phase at full moon = %v, want 0.5", phase)
	}
	if illum < 0.99 {
		t.Errorf("illumination at full moon = %v, want near 1", illum)
	}
}

func TestMoonPhaseName(t *testing.T) {
	tests := []struct {
		phase float64
		want  string
	}{
		{0, "New Moon"},
		{0.25, "First Quarter"},
		{0.5, "Full Moon"},
		{0.75, "Last Quarter"},
		{0.97, "New Moon"}, // wraps around
	}
	for _, tt := range tests {
		if got := moonPhaseName(tt.phase); got != tt.want {
			t.Errorf("moonPhaseName(%v) = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestVisiblePlanets(t *testing.T) {
	// sanity only: the rough longitudes should never report all five
	// planets hidden for years on end, and never invent a sixth
	now := time.Date(2026, 8, 29, 22, 0, 0, 0, time.UTC)
	planets := visiblePlanets(now)
	if len(planets) > 5 {
		t.Fatalf("too many planets: %v", planets)
	}
	known := map[string]bool{"Mercury": true, "Venus": true, "Mars": true, "Jupiter": true, "Saturn": true}
	for _, p := range planets {
		if !known[p] {
			t.Errorf("unknown planet %q", p)
		}
	}
}

func TestFetchSunTimes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("formatted") != "0" {
			t.Errorf("formatted = %q, want 0", r.URL.Query().Get("formatted"))
		}
		rw.Write([]byte(`{"results":{"sunrise":"2026-06-15T12:17:31+00:00","sunset":"2026-06-16T02:41:02+00:00"},"status":"OK"}`))
	}))
	defer srv.Close()

	s := NewStarmapScreen()
	s.SunAPIURL = srv.URL

	sunrise, sunset, err := s.fetchSunTimes(testConfig(), time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetchSunTimes: %v", err)
	}
	if sunrise.UTC().Hour() != 12 || sunrise.UTC().Minute() != 17 {
		t.Errorf("sunrise = %v", sunrise)
	}
	if !sunrise.Before(sunset) {
		t.Errorf("sunrise %v not before sunset %v", sunrise, sunset)
	}
}

func TestFetchSunTimesBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`{"results":{},"status":"INVALID_REQUEST"}`))
	}))
	defer srv.Close()

	s := NewStarmapScreen()
	s.SunAPIURL = srv.URL
	if _, _, err := s.fetchSunTimes(testConfig(), time.Now()); err == nil {
		t.Error("bad status should be an error")
	}
}

func TestStarmapRenderOffline(t *testing.T) {
	// with the API unreachable the local approximation takes over
	srv := httptest.NewServer(http.HandlerFunc(nil))
	srv.Close()

	s := NewStarmapScreen()
	s.SunAPIURL = srv.URL

	cfg := testConfig()
	cfg.PanelWidth, cfg.PanelHeight = 640, 400

	frame, err := s.Render(cfg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if frame.Bounds().Dx() != 640 || frame.Bounds().Dy() != 400 {
		t.Errorf("frame bounds = %v", frame.Bounds())
	}
}

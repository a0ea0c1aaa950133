package main

import (
	"image"
	"image/color"
	"math"
	"sync"
	"time"
)

const (
	DEFAULT_HISTORY_WINDOW = 30 * time.Minute
	MAX_HISTORY_SAMPLES    = 180 // 30 minutes at 10 second intervals
)

// StatSample represents a single measurement.
type StatSample struct {
	Timestamp time.Time
	Value     float64
}

// StatHistory holds a rolling window of samples for one system metric.
type StatHistory struct {
	mu      sync.RWMutex
	samples []StatSample
	window  time.Duration
	max     int
}

func newStatHistory(window time.Duration, max int) *StatHistory {
	return &StatHistory{
		samples: make([]StatSample, 0, max),
		window:  window,
		max:     max,
	}
}

// Record appends a sample and drops anything outside the window.
func (h *StatHistory) Record(value float64, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, StatSample{Timestamp: now, Value: value})

	cutoff := now.Add(-h.window)
	cleanIndex := 0
	for i, s := range h.samples {
		if s.Timestamp.After(cutoff) {
			cleanIndex = i
			break
		}
	}
	if cleanIndex > 0 {
		h.samples = h.samples[cleanIndex:]
	}
	if len(h.samples) > h.max {
		h.samples = h.samples[len(h.samples)-h.max:]
	}
}

// Snapshot returns a copy of the current samples.
func (h *StatHistory) Snapshot() []StatSample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]StatSample, len(h.samples))
	copy(out, h.samples)
	return out
}

// drawHistoryGraph draws a metric history as a line graph in the given
// rectangle. Values are expected in [0, maxValue].
func drawHistoryGraph(img *image.RGBA, x, y, width, height int, samples []StatSample, maxValue float64, lineColor color.RGBA) {
	if width <= 0 || height <= 0 {
		return
	}

	// frame and midline
	axisColor := color.RGBA{100, 100, 100, 255}
	for dx := 0; dx < width; dx++ {
		img.Set(x+dx, y, axisColor)
		img.Set(x+dx, y+height-1, axisColor)
		img.Set(x+dx, y+height/2, axisColor)
	}
	for dy := 0; dy < height; dy++ {
		img.Set(x, y+dy, axisColor)
		img.Set(x+width-1, y+dy, axisColor)
	}

	if len(samples) < 2 {
		return
	}
	if maxValue <= 0 {
		maxValue = 100
	}

	timeRange := samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp)
	if timeRange == 0 {
		timeRange = time.Second
	}

	for i := 1; i < len(samples); i++ {
		t1 := samples[i-1].Timestamp.Sub(samples[0].Timestamp)
		t2 := samples[i].Timestamp.Sub(samples[0].Timestamp)

		x1 := x + int(float64(width-1)*float64(t1)/float64(timeRange))
		x2 := x + int(float64(width-1)*float64(t2)/float64(timeRange))

		v1 := math.Min(samples[i-1].Value, maxValue)
		v2 := math.Min(samples[i].Value, maxValue)
		y1 := y + height - 1 - int(float64(height-1)*v1/maxValue)
		y2 := y + height - 1 - int(float64(height-1)*v2/maxValue)

		drawLine(img, x1, y1, x2, y2, lineColor)
	}
}

// drawLine draws a line between two points using Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, clr color.RGBA) {
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		if x0 >= 0 && y0 >= 0 && x0 < img.Bounds().Max.X && y0 < img.Bounds().Max.Y {
			img.Set(x0, y0, clr)
		}

		if x0 == x1 && y0 == y1 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// abs returns absolute value of an integer.
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

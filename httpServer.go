package main

import (
	"bytes"
	"image/png"
	"log"

	"github.com/gofiber/fiber/v2"
)

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>inky dashboard</title></head>
<body style="background:#222;color:#eee;font-family:sans-serif;text-align:center">
<h2>inky dashboard</h2>
<img src="/frame" style="border:8px solid #555" width="640" height="400">
<p><a href="/status" style="color:#8cf">screen status</a></p>
<script>setInterval(function(){
  document.querySelector("img").src = "/frame?" + Date.now();
}, 5000);</script>
</body>
</html>`

// newHTTPApp builds the read-only debug view of the panel: the frame
// currently shown and the per-screen cache state. It never mutates
// dashboard state.
func newHTTPApp(d *Dashboard, sink *DisplaySink) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html")
		return c.SendString(indexHTML)
	})

	app.Get("/frame", func(c *fiber.Ctx) error {
		frame := sink.Last()
		if frame == nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("No frame presented yet")
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, frame); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Failed to encode image")
		}
		c.Set("Content-Type", "image/png")
		return c.Send(buf.Bytes())
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"active":  d.Active().String(),
			"screens": d.Status(),
		})
	})

	return app
}

func httpServer(d *Dashboard, sink *DisplaySink, addr string) {
	log.Println("Starting Fiber server on", addr)
	if err := newHTTPApp(d, sink).Listen(addr); err != nil {
		log.Printf("http server: %v", err)
	}
}

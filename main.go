package main

import (
	"flag"
	"log"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	panel, err := openPanel(&cfg)
	if err != nil {
		log.Printf("no e-ink panel available (%v), frames go to the web preview only", err)
		panel = &nullPanel{width: cfg.PanelWidth, height: cfg.PanelHeight}
	}
	sink := newDisplaySink(panel)

	providers := map[ScreenID]Provider{
		ScreenArtwork: NewArtworkScreen(),
		ScreenWeather: NewWeatherScreen(),
		ScreenStarmap: NewStarmapScreen(),
		ScreenSystem:  &SystemScreen{},
	}
	dashboard := NewDashboard(&cfg, sink, providers)

	stop := make(chan struct{})
	defer close(stop)

	go systemSampler(stop)
	if cfg.HTTPAddr != "" {
		go httpServer(dashboard, sink, cfg.HTTPAddr)
	}
	go dashboard.Run(stop)

	log.Printf("dashboard started, default screen: %s", dashboard.Active())

	// blocks forever dispatching button presses
	runButtons(&cfg, dashboard)
}

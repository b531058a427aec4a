package main

import (
	"flag"
	"log"

	"MarketPulse/internal/di"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML configuration")
	flag.Parse()

	app, err := di.InitializeApp(*cfgPath)
	if err != nil {
		// configuration and wiring failures are the only fatal errors
		log.Fatalf("startup: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}

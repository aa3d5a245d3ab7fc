package main

import (
	"flag"
	"log"

	"github.com/STMARobotics/QuestNav/internal/app"
	"github.com/STMARobotics/QuestNav/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (optional)")
	broker := flag.String("broker", "", "MQTT broker URL, overrides the configured one")
	sessionLog := flag.String("log", "", "also write the session log to this file")
	flag.Parse()

	log.Println("starting questnav console viewer")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunViewer(*broker, *sessionLog); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

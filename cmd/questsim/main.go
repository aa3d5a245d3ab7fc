// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


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
	flag.Parse()

	log.Println("starting questnav headset simulator (sim → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunQuestSim(*broker); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

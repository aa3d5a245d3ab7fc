package app

import (
	"github.com/STMARobotics/QuestNav/internal/config"
	"github.com/STMARobotics/QuestNav/internal/questnav"
)

// topicsFromConfig maps the flat config keys onto the client's topic set.
func topicsFromConfig(cfg *config.Config) questnav.Topics {
	return questnav.Topics{
		Frames:          cfg.TopicFrames,
		Connected:       cfg.TopicConnected,
		Tracking:        cfg.TopicTracking,
		Battery:         cfg.TopicBattery,
		Latency:         cfg.TopicLatency,
		FrameCount:      cfg.TopicFrameCount,
		TrackingLost:    cfg.TopicTrackingLost,
		CommandRequest:  cfg.TopicCommandRequest,
		CommandResponse: cfg.TopicCommandResponse,
	}
}

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDViewer  string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string
	MQTTClientIDSim     string

	// Topics
	TopicFrames          string
	TopicConnected       string
	TopicTracking        string
	TopicBattery         string
	TopicLatency         string
	TopicFrameCount      string
	TopicTrackingLost    string
	TopicCommandRequest  string
	TopicCommandResponse string

	// Timing
	TickInterval       int // milliseconds
	ConsoleLogInterval int // milliseconds
	CommandTimeout     int // milliseconds

	// Alerts
	LowBatteryThreshold int // percent

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string // i2creg bus name, empty selects the first one
	DisplayUpdateInterval int    // milliseconds

	// Simulator
	SimFrameInterval        int // milliseconds
	SimDropInterval         int // skip a sequence number every N frames, 0 disables
	SimTrackingLossInterval int // seconds between simulated loss episodes, 0 disables
	SimBatteryStart         int // percent
}

// Default returns the configuration used when no config file is given. A
// config file only needs to override the keys it cares about.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDViewer:  "questnav-viewer",
		MQTTClientIDWeb:     "questnav-web",
		MQTTClientIDDisplay: "questnav-display",
		MQTTClientIDSim:     "questnav-sim",

		TopicFrames:          "questnav/frames",
		TopicConnected:       "questnav/status/connected",
		TopicTracking:        "questnav/status/tracking",
		TopicBattery:         "questnav/status/battery",
		TopicLatency:         "questnav/status/latency",
		TopicFrameCount:      "questnav/status/frame_count",
		TopicTrackingLost:    "questnav/status/tracking_lost",
		TopicCommandRequest:  "questnav/command/request",
		TopicCommandResponse: "questnav/command/response",

		TickInterval:       50,
		ConsoleLogInterval: 1000,
		CommandTimeout:     2000,

		LowBatteryThreshold: 20,

		WebServerPort: 8080,

		DisplayI2CBus:         "",
		DisplayUpdateInterval: 250,

		SimFrameInterval:        10,
		SimDropInterval:         0,
		SimTrackingLossInterval: 0,
		SimBatteryStart:         100,
	}
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot modify it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock for initialization,
//     read lock for Get() allows multiple concurrent readers.
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file, applies it on top of the defaults and
// returns the result.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_VIEWER":
		c.MQTTClientIDViewer = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_SIM":
		c.MQTTClientIDSim = value

	// Topics
	case "TOPIC_FRAMES":
		c.TopicFrames = value
	case "TOPIC_CONNECTED":
		c.TopicConnected = value
	case "TOPIC_TRACKING":
		c.TopicTracking = value
	case "TOPIC_BATTERY":
		c.TopicBattery = value
	case "TOPIC_LATENCY":
		c.TopicLatency = value
	case "TOPIC_FRAME_COUNT":
		c.TopicFrameCount = value
	case "TOPIC_TRACKING_LOST":
		c.TopicTrackingLost = value
	case "TOPIC_COMMAND_REQUEST":
		c.TopicCommandRequest = value
	case "TOPIC_COMMAND_RESPONSE":
		c.TopicCommandResponse = value

	// Timing
	case "TICK_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TICK_INTERVAL %q: %w", value, err)
		}
		c.TickInterval = interval
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval
	case "COMMAND_TIMEOUT":
		timeout, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid COMMAND_TIMEOUT %q: %w", value, err)
		}
		c.CommandTimeout = timeout

	// Alerts
	case "LOW_BATTERY_THRESHOLD":
		threshold, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOW_BATTERY_THRESHOLD %q: %w", value, err)
		}
		if threshold < 0 || threshold > 100 {
			return fmt.Errorf("LOW_BATTERY_THRESHOLD must be 0-100, got %d", threshold)
		}
		c.LowBatteryThreshold = threshold

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	// Simulator
	case "SIM_FRAME_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_FRAME_INTERVAL %q: %w", value, err)
		}
		c.SimFrameInterval = interval
	case "SIM_DROP_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_DROP_INTERVAL %q: %w", value, err)
		}
		if interval < 0 {
			return fmt.Errorf("SIM_DROP_INTERVAL must not be negative, got %d", interval)
		}
		c.SimDropInterval = interval
	case "SIM_TRACKING_LOSS_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_TRACKING_LOSS_INTERVAL %q: %w", value, err)
		}
		if interval < 0 {
			return fmt.Errorf("SIM_TRACKING_LOSS_INTERVAL must not be negative, got %d", interval)
		}
		c.SimTrackingLossInterval = interval
	case "SIM_BATTERY_START":
		level, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_BATTERY_START %q: %w", value, err)
		}
		if level < 0 || level > 100 {
			return fmt.Errorf("SIM_BATTERY_START must be 0-100, got %d", level)
		}
		c.SimBatteryStart = level

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("COMMAND_TIMEOUT must be positive")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	if c.SimFrameInterval <= 0 {
		return fmt.Errorf("SIM_FRAME_INTERVAL must be positive")
	}
	// The simulated loss episode lasts 2s; a cycle that short or shorter
	// would never leave the episode and tracking could not recover.
	if c.SimTrackingLossInterval > 0 && c.SimTrackingLossInterval <= 2 {
		return fmt.Errorf("SIM_TRACKING_LOSS_INTERVAL must be greater than the 2s loss episode")
	}
	return nil
}

// InitGlobal initializes the global configuration, from file when
// configPath is non-empty and from the built-in defaults otherwise.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		if configPath == "" {
			globalConfig = Default()
			return
		}
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Package config provides configuration for the cinepath commands.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file, then environment variables. Command-line flags are
// applied on top by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default daemon configuration.
const (
	DefaultPort      = "8787"
	DefaultLogLevel  = "info"
	DefaultFPS       = 60
	DefaultStorePath = "cinepath.json"

	CameraSim    = "sim"
	CameraRemote = "remote"
)

// Config holds everything pathd needs.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Debug    bool   `yaml:"debug"`
	FPS      int    `yaml:"fps"`

	// Camera is "sim" for the in-process viewer or "remote" for a viewer
	// connected over /ws/viewer.
	Camera string `yaml:"camera"`

	// StorePath is where keyframes and settings are persisted. Empty
	// disables persistence.
	StorePath string `yaml:"store_path"`

	Playback  Playback  `yaml:"playback"`
	Orbit     Orbit     `yaml:"orbit"`
	Countdown Countdown `yaml:"countdown"`
	Viewport  Viewport  `yaml:"viewport"`
}

// Playback tunes path playback.
type Playback struct {
	Speed          float64       `yaml:"speed"`           // progress per tick
	SettleDuration time.Duration `yaml:"settle_duration"` // fly to first keyframe
	SettleDelay    time.Duration `yaml:"settle_delay"`    // wait before first tick
	RevisitFlight  time.Duration `yaml:"revisit_flight"`
}

// Orbit tunes the spin.
type Orbit struct {
	Rate float64 `yaml:"rate"` // radians per frame
}

// Countdown tunes the clapperboard.
type Countdown struct {
	Steps    int           `yaml:"steps"`
	Interval time.Duration `yaml:"interval"`
	Flash    time.Duration `yaml:"flash"`
}

// Viewport sizes the simulated viewer.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:      DefaultPort,
		LogLevel:  DefaultLogLevel,
		FPS:       DefaultFPS,
		Camera:    CameraSim,
		StorePath: DefaultStorePath,
		Playback: Playback{
			Speed:          0.005,
			SettleDuration: 2 * time.Second,
			SettleDelay:    time.Second,
			RevisitFlight:  1500 * time.Millisecond,
		},
		Orbit: Orbit{Rate: 0.002},
		Countdown: Countdown{
			Steps:    3,
			Interval: time.Second,
			Flash:    time.Second / 30,
		},
		Viewport: Viewport{Width: 1280, Height: 720},
	}
}

// Load reads defaults, then the YAML file at path (if path is non-empty),
// then the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from PORT, LOG_LEVEL, CINEPATH_STORE,
// CINEPATH_CAMERA and CINEPATH_FPS.
func (c *Config) ApplyEnv() {
	c.Port = Port(c.Port)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv("CINEPATH_STORE"); ok {
		c.StorePath = v
	}
	if v := os.Getenv("CINEPATH_CAMERA"); v != "" {
		c.Camera = v
	}
	if v := os.Getenv("CINEPATH_FPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FPS = n
		}
	}
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.Playback.Speed <= 0 {
		errs = append(errs, fmt.Errorf("playback.speed must be positive, got %v", c.Playback.Speed))
	}
	if c.Playback.SettleDuration < 0 || c.Playback.SettleDelay < 0 {
		errs = append(errs, errors.New("playback settle times must not be negative"))
	}
	if c.Orbit.Rate <= 0 {
		errs = append(errs, fmt.Errorf("orbit.rate must be positive, got %v", c.Orbit.Rate))
	}
	if c.Camera != CameraSim && c.Camera != CameraRemote {
		errs = append(errs, fmt.Errorf("camera must be %q or %q, got %q", CameraSim, CameraRemote, c.Camera))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	return errors.Join(errs...)
}

// Port returns the listen port from the PORT env var.
// Falls back to the provided default if not set.
func Port(defaultPort string) string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return defaultPort
}

// DaemonURL returns the base URL of a pathd instance from CINEPATH_ADDR.
// Falls back to localhost on the default port.
func DaemonURL() string {
	if addr := os.Getenv("CINEPATH_ADDR"); addr != "" {
		return addr
	}
	return "http://localhost:" + DefaultPort
}

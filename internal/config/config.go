package config

import (
	_ "embed"
	"fmt"
	"image/color"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed overlay.yaml
var overlayYAML []byte

type Config struct {
	Storage    StorageConfig
	Camera     CameraConfig
	Recognizer RecognizerConfig
	Database   DatabaseConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Overlay    OverlayConfig
}

type StorageConfig struct {
	DataDir string `env:"FACEGATE_DATA_DIR" envDefault:"face_data"`
}

type CameraConfig struct {
	Device      int           `env:"FACEGATE_CAMERA_DEVICE" envDefault:"0"`
	Countdown   int           `env:"FACEGATE_COUNTDOWN" envDefault:"5"`
	ScanTimeout time.Duration `env:"FACEGATE_SCAN_TIMEOUT" envDefault:"0s"` // 0 scans until aborted
}

type RecognizerConfig struct {
	URL     string        `env:"FACE_SERVICE_URL" envDefault:"http://localhost:8000"`
	Timeout time.Duration `env:"FACE_SERVICE_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	URL          string `env:"DATABASE_URL"` // PostgreSQL connection URL, empty keeps everything in DataDir
	MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"5"`
	MaxIdleConns int    `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"2"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	JSON  bool   `env:"LOG_JSON" envDefault:"false"`
}

type MetricsConfig struct {
	Textfile string `env:"METRICS_TEXTFILE"` // node_exporter textfile collector target, optional
}

// OverlayConfig holds window titles, captions and colours drawn on camera frames.
// Defaults come from the embedded overlay.yaml.
type OverlayConfig struct {
	Windows     WindowTitles `yaml:"windows"`
	Captions    Captions     `yaml:"captions"`
	Colors      Colors       `yaml:"colors"`
	BannedImage string       `yaml:"banned_image" env:"FACEGATE_BANNED_IMAGE"`
	CaptureKey  string       `yaml:"capture_key"`
	QuitKey     string       `yaml:"quit_key"`
}

type WindowTitles struct {
	Countdown string `yaml:"countdown"`
	Register  string `yaml:"register"`
	Login     string `yaml:"login"`
	Banned    string `yaml:"banned"`
}

type Captions struct {
	Countdown string `yaml:"countdown"` // printf format, %d is the remaining seconds
	Register  string `yaml:"register"`
	Login     string `yaml:"login"`
	User      string `yaml:"user"` // printf format, %s is the username
	Banned    string `yaml:"banned"`
}

type Colors struct {
	Box    RGB `yaml:"box"`
	Text   RGB `yaml:"text"`
	Banned RGB `yaml:"banned"`
}

// RGB is a colour written as [r, g, b] in YAML.
type RGB [3]uint8

// RGBA returns the colour as an opaque color.RGBA.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: 255}
}

// DefaultOverlay returns the embedded overlay defaults.
func DefaultOverlay() OverlayConfig {
	var o OverlayConfig
	if err := yaml.Unmarshal(overlayYAML, &o); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded overlay.yaml: " + err.Error())
	}
	return o
}

// Load reads configuration from the environment on top of the embedded defaults.
func Load() (*Config, error) {
	cfg := Config{Overlay: DefaultOverlay()}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Camera.Countdown < 0 {
		cfg.Camera.Countdown = 0
	}
	return &cfg, nil
}

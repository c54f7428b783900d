package config

import (
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type BackendType string

const (
	BackendLocal  BackendType = "local"
	BackendRemote BackendType = "remote"
)

type DisplayBackend string

const (
	DisplayAuto    DisplayBackend = "auto"
	DisplayX11     DisplayBackend = "x11"
	DisplayWayland DisplayBackend = "wayland"
)

const (
	DefaultConfigPath   string = "visors.yaml"
	DefaultRemoteHost   string = "localhost:8080"
	DefaultTickInterval        = 30 * time.Millisecond
	DefaultModel        string = "yolo11n-seg"
)

// ModelsList is the set of pretrained weights offered in the model selector.
var ModelsList = [...]string{
	"yolo11n-seg",
	"yolo11s-seg",
	"yolo11m-seg",
	"yolo11l-seg",
	"yolo11x-seg",
}

// VideoExtensions are the container formats accepted by the file picker.
var VideoExtensions = [...]string{".mp4", ".avi", ".mkv", ".mov", ".webm"}

type DisplayConfig struct {
	Backend DisplayBackend `yaml:"backend"`
	Width   int            `yaml:"width"`
	Height  int            `yaml:"height"`
}

type CameraConfig struct {
	DeviceID int `yaml:"device_id"`
}

type VideoConfig struct {
	Path string `yaml:"path"`
	Loop bool   `yaml:"loop"`
}

type DetectorConfig struct {
	Backend       BackendType `yaml:"backend"`
	Model         string      `yaml:"model"`
	ModelsDir     string      `yaml:"models_dir"`
	RemoteHost    string      `yaml:"remote_host"`
	InputSize     int         `yaml:"input_size"`
	Confidence    float32     `yaml:"confidence"`
	NMS           float32     `yaml:"nms"`
	MaskThreshold float32     `yaml:"mask_threshold"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type Config struct {
	mu sync.RWMutex

	TickIntervalMs int `yaml:"tick_interval_ms"`

	Display  DisplayConfig  `yaml:"display"`
	Camera   CameraConfig   `yaml:"camera"`
	Video    VideoConfig    `yaml:"video"`
	Detector DetectorConfig `yaml:"detector"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

func (c *Config) GetTickInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.TickIntervalMs <= 0 {
		return DefaultTickInterval
	}
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c *Config) SetTickInterval(ms int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TickIntervalMs = ms
}

func (c *Config) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detector.Model
}

func (c *Config) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Detector.Model = model
}

func (c *Config) GetVideoPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Video.Path
}

func (c *Config) SetVideoPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Video.Path = path
}

// DetectorSettings returns a copy of the detector section.
func (c *Config) DetectorSettings() DetectorConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detector
}

func (c *Config) Save(path string) error {
	c.mu.RLock()
	data, err := yaml.Marshal(c)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadConfigFile reads path over the defaults. A missing or unreadable file
// yields the defaults together with the error so callers can log it.
func LoadConfigFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return NewDefaultConfig(), fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	def := NewDefaultConfig()

	if !slices.Contains(ModelsList[:], c.Detector.Model) {
		c.Detector.Model = def.Detector.Model
	}
	switch c.Detector.Backend {
	case BackendLocal, BackendRemote:
	default:
		c.Detector.Backend = def.Detector.Backend
	}
	switch c.Display.Backend {
	case DisplayAuto, DisplayX11, DisplayWayland:
	default:
		c.Display.Backend = def.Display.Backend
	}
	if c.Detector.InputSize <= 0 {
		c.Detector.InputSize = def.Detector.InputSize
	}
	if c.Detector.Confidence <= 0 || c.Detector.Confidence >= 1 {
		c.Detector.Confidence = def.Detector.Confidence
	}
	if c.Detector.NMS <= 0 || c.Detector.NMS >= 1 {
		c.Detector.NMS = def.Detector.NMS
	}
	if c.Detector.MaskThreshold <= 0 || c.Detector.MaskThreshold >= 1 {
		c.Detector.MaskThreshold = def.Detector.MaskThreshold
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		c.Display.Width, c.Display.Height = def.Display.Width, def.Display.Height
	}
}

func NewDefaultConfig() *Config {
	return &Config{
		TickIntervalMs: int(DefaultTickInterval / time.Millisecond),
		Display:        DisplayConfig{Backend: DisplayAuto, Width: 800, Height: 600},
		Camera:         CameraConfig{DeviceID: 0},
		Video:          VideoConfig{Loop: true},
		Detector: DetectorConfig{
			Backend:       BackendLocal,
			Model:         DefaultModel,
			ModelsDir:     "models",
			RemoteHost:    DefaultRemoteHost,
			InputSize:     640,
			Confidence:    0.25,
			NMS:           0.45,
			MaskThreshold: 0.5,
		},
		Log: LogConfig{Level: "info"},
	}
}

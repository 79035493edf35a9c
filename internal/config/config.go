// Package config loads handcontrol settings from an optional JSON file,
// HANDCONTROL_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/handcontrol/internal/gesture"
)

// FileName is the config file looked up in the config directory.
const FileName = "handcontrol.json"

// EnvPrefix prefixes environment overrides, e.g. HANDCONTROL_SERVER_ADDR.
const EnvPrefix = "HANDCONTROL"

// ControlConfig holds the gesture engine thresholds.
type ControlConfig struct {
	MoveThreshold   float64       `json:"moveThreshold" mapstructure:"moveThreshold"`
	ForwardDistance float64       `json:"forwardDistance" mapstructure:"forwardDistance"`
	PreFixTime      time.Duration `json:"preFixTime" mapstructure:"preFixTime"`
	FixTime         time.Duration `json:"fixTime" mapstructure:"fixTime"`
	InvokeTime      time.Duration `json:"invokeTime" mapstructure:"invokeTime"`
	PressDepth      float64       `json:"pressDepth" mapstructure:"pressDepth"`
	BufferSize      int           `json:"bufferSize" mapstructure:"bufferSize"`
	TargetOffsetX   float64       `json:"targetOffsetX" mapstructure:"targetOffsetX"`
	TargetOffsetY   float64       `json:"targetOffsetY" mapstructure:"targetOffsetY"`
	Retreat         string        `json:"retreat" mapstructure:"retreat"`
	ReleaseOnExit   bool          `json:"releaseOnExit" mapstructure:"releaseOnExit"`
	ExitGrace       time.Duration `json:"exitGrace" mapstructure:"exitGrace"`
}

// SensorConfig holds camera, detector and tick settings.
type SensorConfig struct {
	JointConfidence float64       `json:"jointConfidence" mapstructure:"jointConfidence"`
	Resolution      string        `json:"resolution" mapstructure:"resolution"`
	CameraID        int           `json:"cameraId" mapstructure:"cameraId"`
	TickInterval    time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	IdleInterval    time.Duration `json:"idleInterval" mapstructure:"idleInterval"`
	MotionThreshold float64       `json:"motionThreshold" mapstructure:"motionThreshold"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr      string `json:"addr" mapstructure:"addr"`
	StaticDir string `json:"staticDir" mapstructure:"staticDir"`
}

// StorageConfig holds the SQLite location.
type StorageConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PluginsConfig holds plugin discovery and execution settings.
type PluginsConfig struct {
	Dir       string        `json:"dir" mapstructure:"dir"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	QueueSize int           `json:"queueSize" mapstructure:"queueSize"`
}

// Config is the full application configuration.
type Config struct {
	LogLevel string        `json:"logLevel" mapstructure:"logLevel"`
	Control  ControlConfig `json:"control" mapstructure:"control"`
	Sensor   SensorConfig  `json:"sensor" mapstructure:"sensor"`
	Server   ServerConfig  `json:"server" mapstructure:"server"`
	Storage  StorageConfig `json:"storage" mapstructure:"storage"`
	Plugins  PluginsConfig `json:"plugins" mapstructure:"plugins"`
}

// SetDefaults registers every default with viper.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")

	viper.SetDefault("control.moveThreshold", 25.0)
	viper.SetDefault("control.forwardDistance", 250.0)
	viper.SetDefault("control.preFixTime", "100ms")
	viper.SetDefault("control.fixTime", "500ms")
	viper.SetDefault("control.invokeTime", "200ms")
	viper.SetDefault("control.pressDepth", 50.0)
	viper.SetDefault("control.bufferSize", gesture.DefaultTrajectoryCapacity)
	viper.SetDefault("control.targetOffsetX", 0.0)
	viper.SetDefault("control.targetOffsetY", 0.0)
	viper.SetDefault("control.retreat", "ignore")
	viper.SetDefault("control.releaseOnExit", true)
	viper.SetDefault("control.exitGrace", "0s")

	viper.SetDefault("sensor.jointConfidence", 0.5)
	viper.SetDefault("sensor.resolution", "640/480")
	viper.SetDefault("sensor.cameraId", 0)
	viper.SetDefault("sensor.tickInterval", "33ms")
	viper.SetDefault("sensor.idleInterval", "200ms")
	viper.SetDefault("sensor.motionThreshold", 1.0)

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.staticDir", "")

	viper.SetDefault("storage.path", "~/.handcontrol/handcontrol.db")

	viper.SetDefault("plugins.dir", "~/.handcontrol/plugins")
	viper.SetDefault("plugins.timeout", "5s")
	viper.SetDefault("plugins.queueSize", 16)
}

// Load reads configuration from configDir and returns the decoded result.
// A missing config file is not an error; defaults and environment
// overrides still apply.
func Load(configDir string) (*Config, error) {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.SetConfigType("json")
	if configDir != "" {
		viper.AddConfigPath(configDir)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Plugins.Dir = expandHome(cfg.Plugins.Dir)
	cfg.Server.StaticDir = expandHome(cfg.Server.StaticDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the engine does not validate itself.
func (c *Config) Validate() error {
	if _, _, err := ParseResolution(c.Sensor.Resolution); err != nil {
		return err
	}
	if c.Sensor.TickInterval <= 0 {
		return fmt.Errorf("sensor.tickInterval must be positive, got %v", c.Sensor.TickInterval)
	}
	if c.Sensor.IdleInterval < c.Sensor.TickInterval {
		return fmt.Errorf("sensor.idleInterval %v is shorter than sensor.tickInterval %v", c.Sensor.IdleInterval, c.Sensor.TickInterval)
	}
	if c.Control.InvokeTime <= 0 {
		return fmt.Errorf("control.invokeTime must be positive, got %v", c.Control.InvokeTime)
	}
	if c.Control.PressDepth <= 0 {
		return fmt.Errorf("control.pressDepth must be positive, got %v", c.Control.PressDepth)
	}
	if c.Plugins.QueueSize <= 0 {
		return fmt.Errorf("plugins.queueSize must be positive, got %d", c.Plugins.QueueSize)
	}
	if _, err := c.Engine(); err != nil {
		return err
	}
	return nil
}

// Engine converts the control section into an engine configuration.
func (c *Config) Engine() (gesture.Config, error) {
	retreat, err := gesture.ParseRetreatPolicy(c.Control.Retreat)
	if err != nil {
		return gesture.Config{}, fmt.Errorf("control.retreat: %w", err)
	}

	ec := gesture.Config{
		BufferSize:      c.Control.BufferSize,
		MoveThreshold:   c.Control.MoveThreshold,
		ForwardDistance: c.Control.ForwardDistance,
		PreFixDuration:  c.Control.PreFixTime,
		FixDuration:     c.Control.FixTime,
		TargetOffset:    gesture.Point{X: c.Control.TargetOffsetX, Y: c.Control.TargetOffsetY},
		Retreat:         retreat,
		ReleaseOnExit:   c.Control.ReleaseOnExit,
		ExitGrace:       c.Control.ExitGrace,
	}
	if err := ec.Validate(); err != nil {
		return gesture.Config{}, err
	}
	return ec, nil
}

// Resolution returns the parsed sensor resolution. It assumes Validate
// has passed.
func (c *Config) Resolution() (width, height float64) {
	w, h, _ := ParseResolution(c.Sensor.Resolution)
	return w, h
}

// DataDir returns the directory holding the database and helper scripts.
func (c *Config) DataDir() string {
	return filepath.Dir(c.Storage.Path)
}

// ParseResolution parses a "width/height" string such as "640/480".
func ParseResolution(s string) (width, height float64, err error) {
	ws, hs, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("resolution %q: want width/height", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("resolution %q: bad width", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("resolution %q: bad height", s)
	}
	return float64(w), float64(h), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

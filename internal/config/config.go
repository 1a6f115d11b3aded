package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/vlasim/internal/sim"
)

const (
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 8000
	DefaultActions       = 8
	DefaultImageSize     = 224
	DefaultRetryInterval = 5 * time.Second
	DefaultLoopMod       = 40
	DefaultCameraWidth   = 1280
	DefaultCameraHeight  = 720
	DefaultCameraFOV     = 57.0
)

type Config struct {
	Policy PolicyConfig `yaml:"policy"`
	Loop   LoopConfig   `yaml:"loop"`
	Sim    SimConfig    `yaml:"sim"`
	Camera CameraConfig `yaml:"camera"`
	Data   DataConfig   `yaml:"data"`
	Log    LogConfig    `yaml:"log"`
}

type PolicyConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Offline replaces the policy server with a hold-position policy.
	Offline       bool          `yaml:"offline"`
	Actions       int           `yaml:"actions"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	ImageSize     int           `yaml:"image_size"`
}

type LoopConfig struct {
	RestartLoopMod    int           `yaml:"restart_loop_mod"`
	MaxIterations     int           `yaml:"max_iterations"`
	ResetAfter        time.Duration `yaml:"reset_after"`
	MaxPolicyTimeouts int           `yaml:"max_policy_timeouts"`
}

type SimConfig struct {
	Integrator string  `yaml:"integrator"`
	Substeps   int     `yaml:"substeps"`
	Gravity    float64 `yaml:"gravity"`
	Floor      float64 `yaml:"floor"`
}

type CameraConfig struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	FOV    float64 `yaml:"fov"`
}

type DataConfig struct {
	Runs       string `yaml:"runs"`
	ReplicaCAD string `yaml:"replicacad"`
	Assets     string `yaml:"assets"`
	Videos     string `yaml:"videos"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func DefaultConfig() *Config {
	simCfg := sim.DefaultConfig()
	return &Config{
		Policy: PolicyConfig{
			Host:          DefaultHost,
			Port:          DefaultPort,
			Actions:       DefaultActions,
			RetryInterval: DefaultRetryInterval,
			ImageSize:     DefaultImageSize,
		},
		Loop: LoopConfig{
			RestartLoopMod:    DefaultLoopMod,
			MaxPolicyTimeouts: 3,
		},
		Sim: SimConfig{
			Integrator: "rk4",
			Substeps:   simCfg.Substeps,
			Gravity:    simCfg.Gravity,
			Floor:      simCfg.Floor,
		},
		Camera: CameraConfig{
			Width:  DefaultCameraWidth,
			Height: DefaultCameraHeight,
			FOV:    DefaultCameraFOV,
		},
		Data: DataConfig{
			Runs:   "runs",
			Videos: "videos",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional loads path if it exists and falls back to the defaults.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch {
	case c.Policy.Port <= 0 || c.Policy.Port > 65535:
		return fmt.Errorf("policy.port out of range: %d", c.Policy.Port)
	case c.Policy.Actions < 1:
		return fmt.Errorf("policy.actions must be positive, got %d", c.Policy.Actions)
	case c.Policy.ImageSize < 1:
		return fmt.Errorf("policy.image_size must be positive, got %d", c.Policy.ImageSize)
	case c.Loop.RestartLoopMod < 1:
		return fmt.Errorf("loop.restart_loop_mod must be positive, got %d", c.Loop.RestartLoopMod)
	case c.Sim.Substeps < 1:
		return fmt.Errorf("sim.substeps must be positive, got %d", c.Sim.Substeps)
	case c.Camera.Width < 1 || c.Camera.Height < 1:
		return fmt.Errorf("camera size must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	case c.Camera.FOV <= 0 || c.Camera.FOV >= 180:
		return fmt.Errorf("camera.fov out of range: %f", c.Camera.FOV)
	}
	return nil
}

// PolicyURL is the websocket address of the policy server.
func (c *Config) PolicyURL() string {
	return "ws://" + net.JoinHostPort(c.Policy.Host, strconv.Itoa(c.Policy.Port))
}

// SimConfig returns the world configuration for a scene with timestep dt.
func (c *Config) SimConfig(dt float64) sim.Config {
	return sim.Config{
		Dt:       dt,
		Substeps: c.Sim.Substeps,
		Gravity:  c.Sim.Gravity,
		Floor:    c.Sim.Floor,
	}
}

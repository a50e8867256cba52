package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// RigConfig describes one control process: its HTTP surface and the
// cameras it owns.
type RigConfig struct {
	Name        string         `toml:"name"`
	Addr        string         `toml:"addr"`
	CorsOrigins []string       `toml:"cors_origins"`
	Cameras     []CameraConfig `toml:"camera"`
}

// CameraConfig selects and parameterizes one device driver. Driver is a
// registry id; TimeBase defaults to the camera's own name for masters.
type CameraConfig struct {
	Name     string `toml:"name"`
	Driver   string `toml:"driver"`
	Master   bool   `toml:"master"`
	TimeBase string `toml:"time_base"`
	FPS      int    `toml:"fps"`
	Width    int    `toml:"width"`
	Height   int    `toml:"height"`
}

// LoadRigConfig reads, defaults, and validates a rig config.
func LoadRigConfig(path string) (RigConfig, error) {
	var cfg RigConfig
	if err := loadToml(path, &cfg); err != nil {
		return RigConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "camctl"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9000"
	}
	for i := range cfg.Cameras {
		applyCameraDefaults(&cfg.Cameras[i])
	}
	if err := ValidateRigConfig(cfg); err != nil {
		return RigConfig{}, err
	}
	return cfg, nil
}

func applyCameraDefaults(cam *CameraConfig) {
	if cam.Driver == "" {
		cam.Driver = "sim"
	}
	if cam.FPS == 0 {
		cam.FPS = 30
	}
	if cam.Width == 0 {
		cam.Width = 512
	}
	if cam.Height == 0 {
		cam.Height = 512
	}
	if cam.TimeBase == "" && cam.Master {
		cam.TimeBase = cam.Name
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ValidateRigConfig enforces the invariants the wiring code relies on.
func ValidateRigConfig(cfg RigConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("rig config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("rig config missing addr")
	}
	if len(cfg.Cameras) == 0 {
		return fmt.Errorf("rig config has no cameras")
	}
	seen := make(map[string]bool, len(cfg.Cameras))
	for i, cam := range cfg.Cameras {
		if err := ValidateCameraEntry(cam); err != nil {
			return fmt.Errorf("camera[%d] invalid: %w", i, err)
		}
		if seen[cam.Name] {
			return fmt.Errorf("camera[%d] invalid: duplicate name %q", i, cam.Name)
		}
		seen[cam.Name] = true
	}
	return nil
}

// ValidateCameraEntry checks one camera block.
func ValidateCameraEntry(cam CameraConfig) error {
	if strings.TrimSpace(cam.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(cam.Driver) == "" {
		return fmt.Errorf("driver is required")
	}
	if cam.FPS < 0 || cam.Width < 0 || cam.Height < 0 {
		return fmt.Errorf("fps, width, and height must be non-negative")
	}
	return nil
}

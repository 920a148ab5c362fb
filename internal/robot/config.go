package robot

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPort is the controller's TCP command port.
const DefaultPort = "40001"

// Pose is an arm position in meters and orientation in radians.
type Pose struct {
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Z     float64 `yaml:"z" json:"z"`
	Roll  float64 `yaml:"roll" json:"roll"`
	Pitch float64 `yaml:"pitch" json:"pitch"`
	Yaw   float64 `yaml:"yaw" json:"yaw"`
}

func (p Pose) String() string {
	return fmt.Sprintf("(x=%.3f y=%.3f z=%.3f roll=%.3f pitch=%.3f yaw=%.3f)", p.X, p.Y, p.Z, p.Roll, p.Pitch, p.Yaw)
}

func (p Pose) params() []any {
	return []any{p.X, p.Y, p.Z, p.Roll, p.Pitch, p.Yaw}
}

// Config describes the installation around the arm.
type Config struct {
	Address         string  `yaml:"address"`
	Workspace       string  `yaml:"workspace"`
	Tool            string  `yaml:"tool"`
	HeightOffset    float64 `yaml:"height_offset"`
	ObservationPose Pose    `yaml:"observation_pose"`
	PlacePose       Pose    `yaml:"place_pose"`
}

// DefaultConfig returns the values of the reference installation.
func DefaultConfig() Config {
	return Config{
		Address:         "10.10.10.10:" + DefaultPort,
		Workspace:       "automation_workspace",
		Tool:            "gripper",
		ObservationPose: Pose{X: -0.003, Y: -0.224, Z: 0.201, Roll: -1.087, Pitch: 1.313, Yaw: 1.583},
		PlacePose:       Pose{X: -0.184, Y: -0.298, Z: 0.112, Roll: 1.519, Pitch: 1.409, Yaw: -2.506},
	}
}

// LoadConfig overlays the YAML file at path on DefaultConfig. An empty path
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read robot config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse robot config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("robot config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields a session cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return errors.New("address is required")
	}
	if strings.TrimSpace(c.Workspace) == "" {
		return errors.New("workspace is required")
	}
	return nil
}

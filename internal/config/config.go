// Package config loads the schedtrace run configuration.
//
// The configuration drives the run command only: where the external
// build/flash/monitor tool lives, where capture output goes, and which
// defaults the analysis uses. parse and analyze take everything from
// flags and never touch the config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default file name looked up in the working directory.
const DefaultPath = "schedtrace.yaml"

// envPrefix is stripped from an environment name when resolving its
// expected timeline file, so "test_scheduler_rr" maps to
// expected_timeline_rr.csv.
const envPrefix = "test_scheduler_"

// Config holds run-command settings.
type Config struct {
	// Tool is the external build/flash/monitor executable.
	Tool string `yaml:"tool"`

	// ProjectDir is the firmware project root the tool runs in.
	ProjectDir string `yaml:"project_dir"`

	// OutputDir receives capture logs and parsed CSVs.
	OutputDir string `yaml:"output_dir"`

	// TimelineDir holds the expected timeline CSVs, one per environment.
	TimelineDir string `yaml:"timeline_dir"`

	// DurationSec caps a serial capture. The capture may stop earlier
	// when the firmware signals test completion.
	DurationSec int `yaml:"duration_sec"`

	// ToleranceMS is the default matching tolerance.
	ToleranceMS int64 `yaml:"tolerance_ms"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Tool:        "pio",
		ProjectDir:  ".",
		OutputDir:   "logs",
		TimelineDir: filepath.Join("tools", "test"),
		DurationSec: 10,
		ToleranceMS: 50,
	}
}

// Load reads the YAML file at path, layering it over the defaults. A
// missing file is not an error: the defaults apply unchanged. Zero-valued
// fields in the file keep their defaults as well.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if file.Tool != "" {
		cfg.Tool = file.Tool
	}
	if file.ProjectDir != "" {
		cfg.ProjectDir = file.ProjectDir
	}
	if file.OutputDir != "" {
		cfg.OutputDir = file.OutputDir
	}
	if file.TimelineDir != "" {
		cfg.TimelineDir = file.TimelineDir
	}
	if file.DurationSec != 0 {
		cfg.DurationSec = file.DurationSec
	}
	if file.ToleranceMS != 0 {
		cfg.ToleranceMS = file.ToleranceMS
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if c.Tool == "" {
		return fmt.Errorf("tool must not be empty")
	}
	if c.DurationSec <= 0 {
		return fmt.Errorf("duration_sec must be positive, got %d", c.DurationSec)
	}
	if c.ToleranceMS < 0 {
		return fmt.Errorf("tolerance_ms must be non-negative, got %d", c.ToleranceMS)
	}
	return nil
}

// ExpectedTimelinePath resolves the reference CSV for an environment name.
// The file may legitimately not exist; that means no expectations are
// configured for the environment.
func (c Config) ExpectedTimelinePath(env string) string {
	name := strings.TrimPrefix(env, envPrefix)
	return filepath.Join(c.TimelineDir, "expected_timeline_"+name+".csv")
}

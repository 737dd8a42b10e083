// Package config provides TOML configuration parsing and XDG path helpers.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Languages the sample service supports.
var Languages = []string{"en", "de", "hi", "mr"}

func ValidLanguage(code string) bool {
	for _, l := range Languages {
		if l == code {
			return true
		}
	}
	return false
}

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Backend  BackendConfig  `toml:"backend"`
	Practice PracticeConfig `toml:"practice"`
	Audio    AudioConfig    `toml:"audio"`
}

// BackendConfig maps the remote service settings.
type BackendConfig struct {
	SampleURL *string `toml:"sample-url"`
	ScoreURL  *string `toml:"score-url"`
	APIKey    *string `toml:"api-key"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	Lang       *string `toml:"lang"`
	Difficulty *int    `toml:"difficulty"`
}

// AudioConfig maps capture and archive settings.
type AudioConfig struct {
	Device     *string `toml:"device"`
	ArchiveDir *string `toml:"archive-dir"`
	Archive    *bool   `toml:"archive"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Practice.Lang != nil {
		t.Errorf("cfg = %+v, want zero value", cfg)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[backend]
sample-url = "https://example.test/getSample"
score-url = "https://example.test/GetAccuracyFromRecordedAudio"
api-key = "k"

[practice]
lang = "de"
difficulty = 2

[audio]
archive = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.APIKey == nil || *cfg.Backend.APIKey != "k" {
		t.Errorf("api key = %v", cfg.Backend.APIKey)
	}
	if cfg.Practice.Lang == nil || *cfg.Practice.Lang != "de" {
		t.Errorf("lang = %v", cfg.Practice.Lang)
	}
	if cfg.Practice.Difficulty == nil || *cfg.Practice.Difficulty != 2 {
		t.Errorf("difficulty = %v", cfg.Practice.Difficulty)
	}
	if cfg.Audio.Archive == nil || !*cfg.Audio.Archive {
		t.Errorf("archive = %v", cfg.Audio.Archive)
	}
}

func TestValidLanguage(t *testing.T) {
	for _, code := range Languages {
		if !ValidLanguage(code) {
			t.Errorf("ValidLanguage(%q) = false", code)
		}
	}
	if ValidLanguage("fr") {
		t.Error("ValidLanguage(fr) = true")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kanade.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := Default()
	if cfg.Window.Width != def.Window.Width || cfg.Window.Height != def.Window.Height {
		t.Errorf("window defaults not applied: %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if len(cfg.Game.LaneKeys) != 4 {
		t.Errorf("expected 4 default lane keys, got %d", len(cfg.Game.LaneKeys))
	}
}

func TestLoadOverridesLayerOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[window]
width = 1920
height = 1080

[game]
lane_keys = ["a", "s", "d"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Window.Width != 1920 || cfg.Window.Height != 1080 {
		t.Errorf("window override not applied: %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.Title != "Kanade" {
		t.Errorf("default title lost: %q", cfg.Window.Title)
	}
	if len(cfg.Game.LaneKeys) != 3 {
		t.Errorf("lane keys override not applied: %v", cfg.Game.LaneKeys)
	}
	if cfg.Game.ScrollSpeed != 8.0 {
		t.Errorf("default scroll speed lost: %f", cfg.Game.ScrollSpeed)
	}
}

func TestLoadRejectsZeroWindow(t *testing.T) {
	path := writeConfig(t, `
[window]
width = 0
height = 720
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for zero width")
	}
}

func TestLoadRejectsMultiLetterLaneKey(t *testing.T) {
	path := writeConfig(t, `
[game]
lane_keys = ["d", "space"]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for multi-letter lane key")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeConfig(t, `[window`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMemoryBudgetBytes(t *testing.T) {
	cfg := Default()
	cfg.Renderer.MemoryBudgetMB = 2
	if got := cfg.MemoryBudgetBytes(); got != 2*1024*1024 {
		t.Errorf("expected 2 MiB in bytes, got %d", got)
	}
}

package game

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigRepositoryReadsAndCaches(t *testing.T) {
	root := t.TempDir()
	gameDir := filepath.Join(root, "manul_puzzle")
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfig(t, gameDir, "random_levels: true\nchange_level_step: 3\nallow_to_get_answer: true\nintro_message: hi\nversion: \"2\"\n")

	repo := NewConfigRepository(root, time.Minute)
	cfg, err := repo.Get("manul_puzzle")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !cfg.RandomLevels || cfg.ChangeLevelStep != 3 || !cfg.AllowGetAnswer || cfg.Version != "2" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	// Rewrites inside the TTL are not observed.
	writeConfig(t, gameDir, "change_level_step: 9\n")
	cfg, err = repo.Get("manul_puzzle")
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if cfg.ChangeLevelStep != 3 {
		t.Fatalf("expected cached config, got %+v", cfg)
	}
}

func TestConfigRepositoryUnknownGame(t *testing.T) {
	repo := NewConfigRepository(t.TempDir(), time.Minute)
	if _, err := repo.Get("missing"); err == nil {
		t.Fatalf("expected error for missing game")
	}
}

func writeConfig(t *testing.T, gameDir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(gameDir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

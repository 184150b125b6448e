package config

import (
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"
)

func TestLoadDefaults(t *testing.T) {
    cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
    if err != nil {
        t.Fatalf("load: %v", err)
    }
    if cfg.Addr != "127.0.0.1:5175" || cfg.LogLevel != "info" || cfg.LogFormat != "console" {
        t.Fatalf("unexpected defaults %+v", cfg)
    }
    if cfg.OpponentDelay != 500*time.Millisecond || cfg.MatchDelay != 500*time.Millisecond || cfg.MismatchDelay != time.Second {
        t.Fatalf("unexpected delays %+v", cfg)
    }
    if !cfg.Sound || !cfg.Vibration || cfg.DBPath != "" {
        t.Fatalf("unexpected toggles %+v", cfg)
    }
}

func TestLoadDotenvAndOverride(t *testing.T) {
    path := filepath.Join(t.TempDir(), "arcade.env")
    body := "ARCADE_DB_PATH=/tmp/scores.db\nARCADE_MATCH_DELAY=250ms\nARCADE_SOUND=false\n"
    if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
        t.Fatalf("write env file: %v", err)
    }
    t.Setenv("ARCADE_SOUND", "true")
    // Registered with t.Setenv so cleanup clears what the file sets.
    t.Setenv("ARCADE_DB_PATH", "")
    os.Unsetenv("ARCADE_DB_PATH")
    t.Setenv("ARCADE_MATCH_DELAY", "")
    os.Unsetenv("ARCADE_MATCH_DELAY")

    cfg, err := Load(path)
    if err != nil {
        t.Fatalf("load: %v", err)
    }
    if cfg.DBPath != "/tmp/scores.db" || cfg.MatchDelay != 250*time.Millisecond {
        t.Fatalf("dotenv values not applied: %+v", cfg)
    }
    if !cfg.Sound {
        t.Fatalf("environment should win over the file")
    }
}

func TestLoadRejectsBadValues(t *testing.T) {
    missing := filepath.Join(t.TempDir(), "missing.env")

    t.Setenv("ARCADE_OPPONENT_DELAY", "soon")
    _, err := Load(missing)
    if err == nil || !strings.Contains(err.Error(), "parse env:") {
        t.Fatalf("expected parse env error, got %v", err)
    }

    t.Setenv("ARCADE_OPPONENT_DELAY", "500ms")
    t.Setenv("ARCADE_LOG_FORMAT", "xml")
    if _, err := Load(missing); err == nil {
        t.Fatal("expected log format error")
    }

    t.Setenv("ARCADE_LOG_FORMAT", "json")
    t.Setenv("ARCADE_MISMATCH_DELAY", "-1s")
    if _, err := Load(missing); err == nil {
        t.Fatal("expected negative delay error")
    }
}

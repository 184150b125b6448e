// Package config loads arcade settings from the environment and an
// optional .env file.
package config

import (
    "errors"
    "fmt"
    "io/fs"
    "time"

    "github.com/caarlos0/env/v11"
    "github.com/joho/godotenv"
)

// Config holds every tunable of the arcade server.
type Config struct {
    Addr      string `env:"ARCADE_ADDR" envDefault:"127.0.0.1:5175"`
    LogLevel  string `env:"ARCADE_LOG_LEVEL" envDefault:"info"`
    LogFormat string `env:"ARCADE_LOG_FORMAT" envDefault:"console"`
    // DBPath selects the SQLite score store; empty keeps scores in memory.
    DBPath string `env:"ARCADE_DB_PATH"`

    OpponentDelay time.Duration `env:"ARCADE_OPPONENT_DELAY" envDefault:"500ms"`
    MatchDelay    time.Duration `env:"ARCADE_MATCH_DELAY" envDefault:"500ms"`
    MismatchDelay time.Duration `env:"ARCADE_MISMATCH_DELAY" envDefault:"1s"`

    Sound     bool `env:"ARCADE_SOUND" envDefault:"true"`
    Vibration bool `env:"ARCADE_VIBRATION" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
    if err := env.Parse(target); err != nil {
        return fmt.Errorf("parse env: %w", err)
    }
    return nil
}

// Load reads the dotenv files (a missing file is fine) and then parses the
// environment. Variables already set win over file values.
func Load(files ...string) (Config, error) {
    if len(files) == 0 {
        files = []string{".env"}
    }
    for _, f := range files {
        if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
            return Config{}, fmt.Errorf("load %s: %w", f, err)
        }
    }
    var cfg Config
    if err := ParseEnv(&cfg); err != nil {
        return Config{}, err
    }
    if err := cfg.Validate(); err != nil {
        return Config{}, err
    }
    return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
    switch c.LogFormat {
    case "console", "json":
    default:
        return fmt.Errorf("log format %q: want console or json", c.LogFormat)
    }
    if c.Addr == "" {
        return errors.New("empty listen address")
    }
    for name, d := range map[string]time.Duration{
        "opponent delay": c.OpponentDelay,
        "match delay":    c.MatchDelay,
        "mismatch delay": c.MismatchDelay,
    } {
        if d < 0 {
            return fmt.Errorf("%s %v is negative", name, d)
        }
    }
    return nil
}

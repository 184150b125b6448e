// Package logging configures the global zerolog logger.
package logging

import (
    "fmt"
    "io"
    "os"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
)

// Setup parses level, picks console or JSON output on w (stderr when nil)
// and installs the result as the global logger.
func Setup(level, format string, w io.Writer) (zerolog.Logger, error) {
    lvl, err := zerolog.ParseLevel(level)
    if err != nil {
        return zerolog.Logger{}, fmt.Errorf("log level %q: %w", level, err)
    }
    if w == nil {
        w = os.Stderr
    }
    switch format {
    case "", "console":
        w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
    case "json":
    default:
        return zerolog.Logger{}, fmt.Errorf("log format %q: want console or json", format)
    }
    zerolog.SetGlobalLevel(lvl)
    logger := zerolog.New(w).With().Timestamp().Str("service", "arcade").Logger()
    log.Logger = logger
    return logger, nil
}

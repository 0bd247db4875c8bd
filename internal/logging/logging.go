// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lazypower/nudge/internal/config"
)

// Setup points the global logger at stderr using cfg.
func Setup(cfg config.LoggingConfig) error {
	return SetupWriter(cfg, os.Stderr)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(cfg config.LoggingConfig, w io.Writer) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = zerolog.ParseLevel(strings.ToLower(cfg.Level)); err != nil {
			return fmt.Errorf("logging level %q: %w", cfg.Level, err)
		}
	}
	zerolog.SetGlobalLevel(level)

	out := w
	switch cfg.Format {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case "json":
	default:
		return fmt.Errorf("logging format %q: want console or json", cfg.Format)
	}

	log.Logger = zerolog.New(out).With().Timestamp().Str("app", "nudge").Logger()
	return nil
}

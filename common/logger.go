package common

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"media-vault/conf"
)

// NewLogger builds the process logger from the log section. An unknown
// level falls back to info.
func NewLogger(cfg conf.LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "uploader").Logger()
}

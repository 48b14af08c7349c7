// Package logger builds the process logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, encoding and destination.
type Config struct {
	Level    string `env:"LOG_LEVEL" envDefault:"info"`
	Format   string `env:"LOG_FORMAT" envDefault:"json"`
	Output   string `env:"LOG_OUTPUT" envDefault:"stdout"`
	FilePath string `env:"LOG_FILE" envDefault:"logs/waypoints.log"`
}

// New returns a logger configured by cfg.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	case "file":
		if dir := filepath.Dir(cfg.FilePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return zerolog.Nop(), fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to open log file '%s': %w", cfg.FilePath, err)
		}
		output = file
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log output '%s'", cfg.Output)
	}

	if strings.ToLower(cfg.Format) == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}

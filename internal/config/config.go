// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/holocons/waypoints/internal/logger"
)

// Config is the full server configuration.
type Config struct {
	Addr         string        `env:"WAYPOINTS_ADDR" envDefault:":8081"`
	SaveInterval time.Duration `env:"WAYPOINTS_SAVE_INTERVAL" envDefault:"0s"`
	QueueSize    int           `env:"WAYPOINTS_QUEUE_SIZE" envDefault:"1024"`

	Log       logger.Config
	Store     Store
	Economy   Economy
	Worlds    Worlds
	Relay     Relay
	Discovery Discovery
}

// Store selects where traveler records live.
type Store struct {
	Driver      string `env:"WAYPOINTS_STORE" envDefault:"bolt"`
	Path        string `env:"WAYPOINTS_STORE_PATH" envDefault:"data/travelers.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	RedisKey    string `env:"WAYPOINTS_REDIS_KEY" envDefault:"waypoints:travelers"`
}

// Economy tunes tokens and tasks. Only the starting balance has a default.
type Economy struct {
	TokenRequirement int           `env:"WAYPOINTS_TOKEN_REQUIREMENT,required"`
	StartingTokens   int           `env:"WAYPOINTS_STARTING_TOKENS" envDefault:"1"`
	MaxTokens        int           `env:"WAYPOINTS_MAX_TOKENS,required"`
	RegenInterval    time.Duration `env:"WAYPOINTS_REGEN_INTERVAL,required"`
	RegenAmount      int           `env:"WAYPOINTS_REGEN_AMOUNT,required"`
	TaskTimeout      time.Duration `env:"WAYPOINTS_TASK_TIMEOUT" envDefault:"0s"`
}

// Worlds lists where each kind of marker may be placed.
type Worlds struct {
	File     string   `env:"WAYPOINTS_WORLDS_FILE" yaml:"-"`
	Waypoint []string `env:"WAYPOINTS_WORLDS_WAYPOINT" envSeparator:"," yaml:"waypoint"`
	Home     []string `env:"WAYPOINTS_WORLDS_HOME" envSeparator:"," yaml:"home"`
	Camp     []string `env:"WAYPOINTS_WORLDS_CAMP" envSeparator:"," yaml:"camp"`
}

// Relay enables cross-server announcements over Redis pub/sub.
type Relay struct {
	RedisURL string `env:"WAYPOINTS_RELAY_REDIS_URL"`
	Origin   string `env:"WAYPOINTS_RELAY_ORIGIN"`
}

// Discovery enables the mDNS announcement.
type Discovery struct {
	Enabled bool   `env:"WAYPOINTS_MDNS" envDefault:"false"`
	Service string `env:"WAYPOINTS_MDNS_SERVICE" envDefault:"_waypoints._tcp"`
}

// Load reads .env when present, then the environment, then the worlds file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Worlds.File != "" {
		if err := cfg.Worlds.loadFile(); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (w *Worlds) loadFile() error {
	data, err := os.ReadFile(w.File)
	if err != nil {
		return fmt.Errorf("read worlds file: %w", err)
	}
	var fromFile Worlds
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("parse worlds file: %w", err)
	}
	if len(fromFile.Waypoint) > 0 {
		w.Waypoint = fromFile.Waypoint
	}
	if len(fromFile.Home) > 0 {
		w.Home = fromFile.Home
	}
	if len(fromFile.Camp) > 0 {
		w.Camp = fromFile.Camp
	}
	return nil
}

// Validate checks values the tags cannot express.
func (c Config) Validate() error {
	e := c.Economy
	switch {
	case e.TokenRequirement < 1:
		return fmt.Errorf("token requirement must be at least 1, got %d", e.TokenRequirement)
	case e.MaxTokens < 1:
		return fmt.Errorf("max tokens must be at least 1, got %d", e.MaxTokens)
	case e.StartingTokens < 0 || e.StartingTokens > e.MaxTokens:
		return fmt.Errorf("starting tokens must be within [0, %d], got %d", e.MaxTokens, e.StartingTokens)
	case e.RegenAmount < 0:
		return fmt.Errorf("regen amount must not be negative, got %d", e.RegenAmount)
	case e.RegenInterval <= 0:
		return fmt.Errorf("regen interval must be positive, got %s", e.RegenInterval)
	}
	switch c.Store.Driver {
	case "bolt", "sqlite", "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case "redis":
		if c.Store.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// Package config loads server settings from defaults, the environment (and
// an optional .env file), then command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// DevSecret is the fallback signing secret. Dev mode only.
const DevSecret = "dev-only-insecure-secret"

// Config holds everything cmd/server needs.
type Config struct {
	Port           int
	DBPath         string
	DevMode        bool
	Seed           string // scenario to load at startup, dev only
	JWTSecret      string
	SessionTTL     time.Duration
	AllowedOrigins []string

	DefaultAnnualDays decimal.Decimal
	DefaultRate       decimal.Decimal
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:              8080,
		DBPath:            "vacation.db",
		SessionTTL:        72 * time.Hour,
		AllowedOrigins:    []string{"http://localhost:5173", "http://localhost:8080"},
		DefaultAnnualDays: decimal.NewFromInt(20),
		DefaultRate:       decimal.NewFromInt(100),
	}
}

// Load reads .env (if present), the environment, then args.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] ignoring .env: %v", err)
	}

	cfg := Defaults()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.applyFlags(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("VACATION_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VACATION_PORT: %w", err)
		}
		c.Port = port
	}
	if v := getenv("VACATION_DB"); v != "" {
		c.DBPath = v
	}
	if v := getenv("VACATION_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VACATION_DEV: %w", err)
		}
		c.DevMode = dev
	}
	if v := getenv("VACATION_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := getenv("VACATION_SESSION_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VACATION_SESSION_TTL: %w", err)
		}
		c.SessionTTL = ttl
	}
	if v := getenv("VACATION_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}
	if v := getenv("VACATION_DEFAULT_ANNUAL_DAYS"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("VACATION_DEFAULT_ANNUAL_DAYS: %w", err)
		}
		c.DefaultAnnualDays = d
	}
	if v := getenv("VACATION_DEFAULT_RATE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("VACATION_DEFAULT_RATE: %w", err)
		}
		c.DefaultRate = d
	}
	return nil
}

func (c *Config) applyFlags(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&c.Port, "port", c.Port, "HTTP server port")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	fs.BoolVar(&c.DevMode, "dev", c.DevMode, "enable demo scenarios and the fallback JWT secret")
	fs.StringVar(&c.Seed, "seed", c.Seed, "scenario to load at startup (requires -dev)")
	return fs.Parse(args)
}

// Validate checks cross-field rules and fills the dev secret.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.JWTSecret == "" {
		if !c.DevMode {
			return errors.New("VACATION_JWT_SECRET must be set outside -dev mode")
		}
		c.JWTSecret = DevSecret
	}
	if c.Seed != "" && !c.DevMode {
		return errors.New("-seed requires -dev")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid session TTL %s", c.SessionTTL)
	}
	if c.DefaultAnnualDays.IsNegative() || c.DefaultRate.IsNegative() {
		return errors.New("profile defaults cannot be negative")
	}
	return nil
}

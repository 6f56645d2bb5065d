// Package config loads server configuration from an optional YAML file
// with THEME_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "15m" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type RateLimit struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
	Burst    int      `yaml:"burst"`
}

type Razorpay struct {
	BaseURL   string `yaml:"base_url"`
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
}

type Config struct {
	Addr          string    `yaml:"addr"`
	DBPath        string    `yaml:"db_path"`
	ClientURL     string    `yaml:"client_url"`
	JWTSecret     string    `yaml:"jwt_secret"`
	RateLimit     RateLimit `yaml:"rate_limit"`
	Razorpay      Razorpay  `yaml:"razorpay"`
	SweepInterval Duration  `yaml:"sweep_interval"`
}

func Default() Config {
	return Config{
		Addr:      ":8080",
		DBPath:    "./theme.db",
		ClientURL: "*",
		JWTSecret: "dev-secret-change-me",
		RateLimit: RateLimit{
			// Mirrors the storefront's historical limit of 100
			// requests per 15 minutes.
			Requests: 100,
			Window:   Duration(15 * time.Minute),
			Burst:    20,
		},
		SweepInterval: Duration(5 * time.Second),
	}
}

// Load reads path (if non-empty) over the defaults, then applies env
// overrides. A missing file at an explicitly given path is an error;
// an empty path means env-and-defaults only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0 {
		return Config{}, fmt.Errorf("rate_limit requests and window must be positive")
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = Duration(5 * time.Second)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setStr(&cfg.Addr, "THEME_ADDR")
	setStr(&cfg.DBPath, "THEME_DB")
	setStr(&cfg.ClientURL, "THEME_CLIENT_URL")
	setStr(&cfg.JWTSecret, "THEME_JWT_SECRET")
	setStr(&cfg.Razorpay.BaseURL, "THEME_RAZORPAY_URL")
	setStr(&cfg.Razorpay.KeyID, "THEME_RAZORPAY_KEY_ID")
	setStr(&cfg.Razorpay.KeySecret, "THEME_RAZORPAY_KEY_SECRET")

	if v := os.Getenv("THEME_RATE_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Requests = n
		}
	}
	if v := os.Getenv("THEME_RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.Window = Duration(d)
		}
	}
	if v := os.Getenv("THEME_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SweepInterval = Duration(d)
		}
	}
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

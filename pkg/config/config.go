// Package config loads the constellation description shared by the server,
// the agents and the orbit propagator.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"vce/pkg/model"
)

// Config is the whole constellation file.
type Config struct {
	System     SystemConfig      `toml:"system"`
	Logging    LoggingConfig     `toml:"logging"`
	Satellites []model.Satellite `toml:"satellites"`
	Stations   []model.Station   `toml:"stations"`
}

// SystemConfig groups the control-plane settings.
type SystemConfig struct {
	Server        ServerConfig `toml:"server"`
	Orbits        OrbitsConfig `toml:"orbits"`
	Store         StoreConfig  `toml:"store"`
	Auth          AuthConfig   `toml:"auth"`
	AgentInterval float64      `toml:"agent_interval"` // seconds between agent polls
}

// ServerConfig locates the parameter server.
type ServerConfig struct {
	Hostname      string  `toml:"hostname"` // as seen by agents, alias-resolved
	Listen        string  `toml:"listen"`
	Port          int     `toml:"port"`
	TLSCert       string  `toml:"tls_cert"`
	TLSKey        string  `toml:"tls_key"`
	ClientCA      string  `toml:"client_ca"`
	RateLimit     float64 `toml:"rate_limit"` // requests per second, 0 disables
	RateBurst     int     `toml:"rate_burst"`
	WatchInterval float64 `toml:"watch_interval"` // seconds between websocket pushes
}

// OrbitsConfig is the simulated time window. Step and duration are minutes.
type OrbitsConfig struct {
	Start    time.Time `toml:"start"`
	Step     float64   `toml:"step"`
	Duration float64   `toml:"duration"`
	Workers  int       `toml:"workers"`
}

// StoreConfig selects the position store backend.
type StoreConfig struct {
	Driver     string `toml:"driver"` // memory|sqlite|mysql|consul
	DSN        string `toml:"dsn"`
	ConsulAddr string `toml:"consul_addr"`
	Prefix     string `toml:"prefix"`
}

// AuthConfig enables bearer tokens on the parameter API when Secret is set.
type AuthConfig struct {
	Secret       string  `toml:"secret"`
	PasswordHash string  `toml:"password_hash"` // bcrypt, for /api/v1/auth/login
	TokenTTL     float64 `toml:"token_ttl"`     // hours
}

// LoggingConfig controls log level and optional rotated file output.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// DefaultConfig returns the settings used when the file leaves them out.
func DefaultConfig() Config {
	return Config{
		System: SystemConfig{
			Server: ServerConfig{
				Hostname:      "127.0.0.1",
				Listen:        "0.0.0.0",
				Port:          8888,
				RateBurst:     50,
				WatchInterval: 1,
			},
			Orbits: OrbitsConfig{
				Step:     1,
				Duration: 90,
			},
			Store: StoreConfig{
				Driver: "memory",
				Prefix: "vce/pos/",
			},
			Auth: AuthConfig{
				TokenTTL: 24,
			},
			AgentInterval: 1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
		},
	}
}

// Load reads a TOML file over the defaults, then applies a local .env and
// VCE_* environment overrides.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(string(b))
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults and validates the result.
func Parse(data string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode: %w", err)
	}
	_ = loadDotEnv()
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VCE_STORE_DRIVER"); v != "" {
		cfg.System.Store.Driver = v
	}
	if v := os.Getenv("VCE_STORE_DSN"); v != "" {
		cfg.System.Store.DSN = v
	}
	if v := os.Getenv("VCE_CONSUL_ADDR"); v != "" {
		cfg.System.Store.ConsulAddr = v
	}
	if v := os.Getenv("VCE_AUTH_SECRET"); v != "" {
		cfg.System.Auth.Secret = v
	}
	if v := os.Getenv("VCE_SERVER_HOSTNAME"); v != "" {
		cfg.System.Server.Hostname = v
	}
	if v := os.Getenv("VCE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the invariants the rest of the system relies on.
func (c Config) Validate() error {
	var errs []error
	o := c.System.Orbits
	if o.Start.IsZero() {
		errs = append(errs, errors.New("system.orbits.start is required"))
	}
	if o.Step <= 0 {
		errs = append(errs, fmt.Errorf("system.orbits.step must be positive, got %v", o.Step))
	}
	if o.Duration < 0 {
		errs = append(errs, fmt.Errorf("system.orbits.duration must not be negative, got %v", o.Duration))
	}
	if c.System.AgentInterval <= 0 {
		errs = append(errs, fmt.Errorf("system.agent_interval must be positive, got %v", c.System.AgentInterval))
	}
	if c.System.Server.Port <= 0 || c.System.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("system.server.port out of range: %d", c.System.Server.Port))
	}
	switch c.System.Store.Driver {
	case "memory", "sqlite", "mysql", "consul":
	default:
		errs = append(errs, fmt.Errorf("unsupported store driver %q", c.System.Store.Driver))
	}
	seen := map[string]bool{}
	for _, h := range c.Hostnames() {
		if h == "" {
			errs = append(errs, errors.New("node with empty hostname"))
			continue
		}
		if seen[h] {
			errs = append(errs, fmt.Errorf("duplicate hostname %q", h))
		}
		seen[h] = true
	}
	return errors.Join(errs...)
}

// Hostnames lists satellites then stations.
func (c Config) Hostnames() []string {
	out := make([]string, 0, len(c.Satellites)+len(c.Stations))
	for _, s := range c.Satellites {
		out = append(out, s.Hostname)
	}
	for _, s := range c.Stations {
		out = append(out, s.Hostname)
	}
	return out
}

// Nodes lists every constellation member with its kind.
func (c Config) Nodes() []model.Node {
	out := make([]model.Node, 0, len(c.Satellites)+len(c.Stations))
	for _, s := range c.Satellites {
		out = append(out, model.Node{Hostname: s.Hostname, Kind: model.KindSatellite})
	}
	for _, s := range c.Stations {
		out = append(out, model.Node{Hostname: s.Hostname, Kind: model.KindStation})
	}
	return out
}

// OrbitsEnd is the last simulated instant.
func (c Config) OrbitsEnd() time.Time {
	return c.System.Orbits.Start.Add(minutes(c.System.Orbits.Duration))
}

// OrbitsStep is the propagation step.
func (c Config) OrbitsStep() time.Duration {
	return minutes(c.System.Orbits.Step)
}

// PollInterval is the agent sleep between cycles.
func (c Config) PollInterval() time.Duration {
	return seconds(c.System.AgentInterval)
}

// WatchInterval is the websocket push period.
func (c Config) WatchInterval() time.Duration {
	return seconds(c.System.Server.WatchInterval)
}

// TokenTTL is the lifetime of issued bearer tokens.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.System.Auth.TokenTTL * float64(time.Hour))
}

func minutes(v float64) time.Duration { return time.Duration(v * float64(time.Minute)) }
func seconds(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

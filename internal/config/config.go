package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Draft backends.
const (
	DraftsNone   = "none"
	DraftsRedis  = "redis"
	DraftsSQLite = "sqlite"
)

const (
	defaultSystemOwner   = "system"
	defaultDraftTTL      = 7 * 24 * time.Hour
	defaultDraftDebounce = 400 * time.Millisecond
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Drafts    DraftsConfig    `yaml:"drafts"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey    string   `yaml:"api_key"`
	ProLogins []string `yaml:"pro_logins"`
}

// CatalogConfig names the owner of the built-in exercises.
type CatalogConfig struct {
	SystemOwnerID string `yaml:"system_owner_id"`
	SeedBuiltins  bool   `yaml:"seed_builtins"`
}

// DraftsConfig selects where in-progress workout drafts are kept.
type DraftsConfig struct {
	Backend   string        `yaml:"backend"`
	RedisURL  string        `yaml:"redis_url"`
	SQLiteDir string        `yaml:"sqlite_dir"`
	TTL       time.Duration `yaml:"ttl"`
	Debounce  time.Duration `yaml:"debounce"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix LIFTLOG_ and underscore-separated paths:
//
//	LIFTLOG_SERVER_HOST, LIFTLOG_SERVER_PORT,
//	LIFTLOG_DB_HOST, LIFTLOG_DB_PORT, LIFTLOG_DB_NAME,
//	LIFTLOG_DB_USER, LIFTLOG_DB_PASSWORD, LIFTLOG_DB_SSLMODE,
//	LIFTLOG_AUTH_API_KEY, LIFTLOG_AUTH_PRO_LOGINS (comma-separated),
//	LIFTLOG_CATALOG_SYSTEM_OWNER_ID,
//	LIFTLOG_DRAFTS_BACKEND, LIFTLOG_DRAFTS_REDIS_URL, LIFTLOG_DRAFTS_SQLITE_DIR,
//	LIFTLOG_DRAFTS_TTL, LIFTLOG_DRAFTS_DEBOUNCE,
//	LIFTLOG_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIFTLOG_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LIFTLOG_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LIFTLOG_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("LIFTLOG_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("LIFTLOG_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("LIFTLOG_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("LIFTLOG_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("LIFTLOG_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("LIFTLOG_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("LIFTLOG_AUTH_PRO_LOGINS"); v != "" {
		cfg.Auth.ProLogins = splitList(v)
	}
	if v := os.Getenv("LIFTLOG_CATALOG_SYSTEM_OWNER_ID"); v != "" {
		cfg.Catalog.SystemOwnerID = v
	}
	if v := os.Getenv("LIFTLOG_DRAFTS_BACKEND"); v != "" {
		cfg.Drafts.Backend = v
	}
	if v := os.Getenv("LIFTLOG_DRAFTS_REDIS_URL"); v != "" {
		cfg.Drafts.RedisURL = v
	}
	if v := os.Getenv("LIFTLOG_DRAFTS_SQLITE_DIR"); v != "" {
		cfg.Drafts.SQLiteDir = v
	}
	if v := os.Getenv("LIFTLOG_DRAFTS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Drafts.TTL = d
		}
	}
	if v := os.Getenv("LIFTLOG_DRAFTS_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Drafts.Debounce = d
		}
	}
	if v := os.Getenv("LIFTLOG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Catalog.SystemOwnerID == "" {
		c.Catalog.SystemOwnerID = defaultSystemOwner
	}
	if c.Drafts.Backend == "" {
		c.Drafts.Backend = DraftsNone
	}
	if c.Drafts.TTL == 0 {
		c.Drafts.TTL = defaultDraftTTL
	}
	if c.Drafts.Debounce == 0 {
		c.Drafts.Debounce = defaultDraftDebounce
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	switch c.Drafts.Backend {
	case DraftsNone:
	case DraftsRedis:
		if c.Drafts.RedisURL == "" {
			return fmt.Errorf("drafts.redis_url is required for the redis backend")
		}
	case DraftsSQLite:
		if c.Drafts.SQLiteDir == "" {
			return fmt.Errorf("drafts.sqlite_dir is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("drafts.backend %q is not one of none, redis, sqlite", c.Drafts.Backend)
	}
	if c.Drafts.TTL < 0 || c.Drafts.Debounce < 0 {
		return fmt.Errorf("drafts.ttl and drafts.debounce must not be negative")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// Package config loads application settings from defaults, an optional
// YAML file, LINGOSRS_ environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/lingosrs/internal/fsrs"
)

// EnvPrefix marks the environment variables read as configuration.
// A double underscore separates nested keys: LINGOSRS_SERVER__ADDRESS.
const EnvPrefix = "LINGOSRS_"

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig   `koanf:"server"`
	Database  DatabaseConfig `koanf:"database"`
	Log       LogConfig      `koanf:"log"`
	Auth      AuthConfig     `koanf:"auth"`
	Scheduler fsrs.Config    `koanf:"scheduler"`
	Sync      SyncConfig     `koanf:"sync"`
}

type ServerConfig struct {
	Address         string        `koanf:"address" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type LogConfig struct {
	Level       string `koanf:"level" validate:"oneof=debug info warn error"`
	Development bool   `koanf:"development"`
}

// AuthConfig configures bearer token verification. The secret is only
// required by the HTTP server.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret" validate:"omitempty,min=16"`
	Issuer    string `koanf:"issuer"`
}

type SyncConfig struct {
	ReposDir string        `koanf:"repos_dir" validate:"required"`
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
	Watch    bool          `koanf:"watch"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "lingosrs.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Scheduler: fsrs.DefaultConfig(),
		Sync: SyncConfig{
			ReposDir: "repos",
			Interval: time.Hour,
			Watch:    true,
		},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":      "server.address",
	"db-driver": "database.driver",
	"db":        "database.dsn",
	"log-level": "log.level",
	"log-dev":   "log.development",
	"repos-dir": "sync.repos_dir",
}

// RegisterFlags adds the flags that override configuration keys.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("config", "", "path to a YAML configuration file")
	flags.String("addr", d.Server.Address, "HTTP listen address")
	flags.String("db-driver", d.Database.Driver, "database driver: sqlite or postgres")
	flags.String("db", d.Database.DSN, "database DSN or SQLite file path")
	flags.String("log-level", d.Log.Level, "log level: debug, info, warn, error")
	flags.Bool("log-dev", d.Log.Development, "human-readable development logging")
	flags.String("repos-dir", d.Sync.ReposDir, "directory git deck sources are cloned into")
}

// Load builds the configuration. path may be empty; a missing file at an
// explicit path is an error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if _, err := os.Stat("lingosrs.yaml"); err == nil {
		if err := k.Load(file.Provider("lingosrs.yaml"), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file lingosrs.yaml: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat lingosrs.yaml: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("invalid scheduler config: %w", err)
	}
	// Credentialed CORS must name its origins.
	for _, origin := range c.Server.CORSOrigins {
		if strings.TrimSpace(origin) == "*" {
			return errors.New("invalid config: server.cors_origins must list explicit origins, not *")
		}
	}
	return nil
}

// envKey turns LINGOSRS_SERVER__READ_TIMEOUT into server.read_timeout.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Backend struct {
	URL string `yaml:"url" env:"HAWY_BACKEND_URL" env-default:"https://hawy-backend.onrender.com"`
	// URLParam, when set, names an SSM parameter that overrides URL.
	URLParam string        `yaml:"url_param" env:"HAWY_BACKEND_URL_PARAM"`
	Timeout  time.Duration `yaml:"timeout" env:"HAWY_BACKEND_TIMEOUT" env-default:"30s"`
}

type Storage struct {
	Driver        string `yaml:"driver" env:"HAWY_STORAGE_DRIVER" env-default:"sqlite"`
	KeyPrefix     string `yaml:"key_prefix" env:"HAWY_KEY_PREFIX"`
	SQLitePath    string `yaml:"sqlite_path" env:"HAWY_SQLITE_PATH" env-default:".hawy/hawy.db"`
	RedisAddr     string `yaml:"redis_addr" env:"HAWY_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"HAWY_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"HAWY_REDIS_DB" env-default:"0"`
	DynamoTable   string `yaml:"dynamodb_table" env:"HAWY_DYNAMODB_TABLE"`
}

type Log struct {
	Level  string `yaml:"level" env:"HAWY_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"HAWY_LOG_FORMAT" env-default:"text"`
}

type Config struct {
	Backend  Backend `yaml:"backend"`
	Storage  Storage `yaml:"storage"`
	Log      Log     `yaml:"log"`
	Language string  `yaml:"language" env:"HAWY_LANGUAGE" env-default:"en"`
}

const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

// LoadConfig reads the optional .env file and config file, then the
// environment, which wins over both.
func LoadConfig(cfgPath, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", dotenvPath, err)
		}
	}

	var cfg Config
	if cfgPath != "" {
		if err := cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfgPath, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("config: sqlite driver requires HAWY_SQLITE_PATH")
		}
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("config: redis driver requires HAWY_REDIS_ADDR")
		}
	case DriverDynamoDB:
		if c.Storage.DynamoTable == "" {
			return errors.New("config: dynamodb driver requires HAWY_DYNAMODB_TABLE")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("config: backend timeout must be positive")
	}
	if c.Backend.URL == "" && c.Backend.URLParam == "" {
		return errors.New("config: one of HAWY_BACKEND_URL or HAWY_BACKEND_URL_PARAM is required")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds the process logger. Output goes to w, normally stderr, so
// it does not interleave with the chat transcript.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}

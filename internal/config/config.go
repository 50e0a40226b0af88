package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Root      string          `mapstructure:"root"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	Log       LogConfig       `mapstructure:"log"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

type TranscodeConfig struct {
	Workers     int `mapstructure:"workers"`
	QueueSize   int `mapstructure:"queue_size"`
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", "./data")
	v.SetDefault("http.address", ":3000")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.url", "")
	v.SetDefault("database.pool_size", 0)
	v.SetDefault("transcode.workers", runtime.NumCPU())
	v.SetDefault("transcode.queue_size", 100)
	v.SetDefault("transcode.jpeg_quality", 85)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads defaults, then the config file, then FOTOS_* environment
// variables, then any flags bound from flags. configFile overrides the
// search path when set.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("fotos")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("fotos")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.fotos")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		log.Debug().Msg("config file not found, using environment variables and defaults")
	} else {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("using config file")
	}

	if flags != nil {
		for key, name := range map[string]string{
			"root":         "root",
			"http.address": "address",
			"log.level":    "log-level",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyFallbacks() {
	if c.Database.URL != "" {
		return
	}
	switch c.Database.Driver {
	case DriverPostgres:
		c.Database.URL = os.Getenv("DATABASE_URL")
	case DriverSQLite:
		c.Database.URL = "./fotos.db"
	}
}

func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root cannot be empty")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http.address cannot be empty")
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required for driver %s", c.Database.Driver)
	}
	if c.Transcode.JPEGQuality < 1 || c.Transcode.JPEGQuality > 100 {
		return fmt.Errorf("transcode.jpeg_quality must be between 1 and 100, got %d", c.Transcode.JPEGQuality)
	}
	if c.Transcode.Workers < 1 {
		return fmt.Errorf("transcode.workers must be positive, got %d", c.Transcode.Workers)
	}
	if c.Transcode.QueueSize < 0 {
		return fmt.Errorf("transcode.queue_size cannot be negative, got %d", c.Transcode.QueueSize)
	}
	return nil
}

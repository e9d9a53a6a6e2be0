// Package config loads pixconv settings from flags, PIXCONV_* environment
// variables and an optional pixconv.{toml,yaml,json} file.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PIXCONV_SERVER_ADDR.
const EnvPrefix = "PIXCONV"

// Config is the resolved configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Blob    BlobConfig    `mapstructure:"blob"`
	S3      S3Config      `mapstructure:"s3"`
	Convert ConvertConfig `mapstructure:"convert"`
	Log     LogConfig     `mapstructure:"log"`
	Presets PresetsConfig `mapstructure:"presets"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	BodyLimitMB int    `mapstructure:"body_limit_mb"`
}

type FetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

type BlobConfig struct {
	Backend string        `mapstructure:"backend"` // memory, local or s3
	TTL     time.Duration `mapstructure:"ttl"`
	Sweep   string        `mapstructure:"sweep"` // cron spec
	Dir     string        `mapstructure:"dir"`
	BaseURL string        `mapstructure:"base_url"`
}

type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Prefix   string `mapstructure:"prefix"`
}

type ConvertConfig struct {
	DefaultFactor float64 `mapstructure:"default_factor"`
	Quality       int     `mapstructure:"quality"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type PresetsConfig struct {
	File string `mapstructure:"file"`
}

// SetDefaults registers every key with its default value so that
// environment overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.body_limit_mb", 32)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_bytes", int64(64<<20))
	v.SetDefault("blob.backend", "memory")
	v.SetDefault("blob.ttl", 10*time.Minute)
	v.SetDefault("blob.sweep", "@every 1m")
	v.SetDefault("blob.dir", "./pixconv_blobs")
	v.SetDefault("blob.base_url", "http://localhost:8080")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "pixconv")
	v.SetDefault("convert.default_factor", 0.8)
	v.SetDefault("convert.quality", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("presets.file", "")
}

// Load reads file, or pixconv.* from the working directory when file is
// empty. A missing default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("pixconv")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("loaded config file")
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	switch c.Blob.Backend {
	case "memory", "local":
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the s3 blob backend")
		}
	default:
		return fmt.Errorf("blob.backend must be memory, local or s3, got %q", c.Blob.Backend)
	}
	if c.Convert.DefaultFactor < 0 || c.Convert.DefaultFactor > 1 {
		return fmt.Errorf("convert.default_factor must be within [0, 1]")
	}
	if c.Server.BodyLimitMB <= 0 {
		return fmt.Errorf("server.body_limit_mb must be positive")
	}
	return nil
}

// Watch reloads the config file on change and passes valid results to
// onChange. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("ignoring config change")
			return
		}
		log.Info().Str("file", e.Name).Msg("config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
}

// LogLevel maps log.level to a zerolog level, defaulting to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// HTTPClient returns the client used for URL inputs.
func (c *Config) HTTPClient() *http.Client {
	return &http.Client{Timeout: c.Fetch.Timeout}
}

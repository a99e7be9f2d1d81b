package console

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	BackendHTTP     = "http"
	BackendEmbedded = "embedded"

	SessionStoreFile   = "file"
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

type SessionConfig struct {
	Store         string `mapstructure:"store"`
	File          string `mapstructure:"file"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Key           string `mapstructure:"key"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config selects and tunes the identity backend used by clubctl.
type Config struct {
	Backend string `mapstructure:"backend"`
	BaseURL string `mapstructure:"base_url"`

	// Embedded backend only.
	DatabaseFile string `mapstructure:"database_file"`
	PepperFile   string `mapstructure:"pepper_file"`
	TokenSecret  string `mapstructure:"token_secret"`

	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	MinPassword int           `mapstructure:"min_password"`

	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
}

// LoadConfig reads clubctl.yaml from path, or from the working directory and
// $HOME/.config/clubctl when path is empty. CLUBCTL_* environment variables
// override the file, with dots replaced by underscores
// (CLUBCTL_SESSION_STORE for session.store).
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("clubctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "clubctl"))
		}
	}

	v.SetEnvPrefix("CLUBCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields Open relies on.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendHTTP:
		if c.BaseURL == "" {
			return errors.New("base_url is required for the http backend")
		}
	case BackendEmbedded:
		if c.DatabaseFile == "" {
			return errors.New("database_file is required for the embedded backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendHTTP, BackendEmbedded)
	}

	switch c.Session.Store {
	case SessionStoreFile:
		if c.Session.File == "" {
			return errors.New("session.file is required for the file session store")
		}
	case SessionStoreRedis:
		if c.Session.RedisAddr == "" {
			return errors.New("session.redis_addr is required for the redis session store")
		}
	case SessionStoreMemory:
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}

	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendHTTP)
	v.SetDefault("base_url", "http://localhost:8080")

	v.SetDefault("database_file", "identity.db")
	v.SetDefault("pepper_file", "pepper")
	v.SetDefault("token_secret", "")

	v.SetDefault("timeout", "15s")
	v.SetDefault("max_attempts", 2)
	v.SetDefault("retry_delay", "500ms")
	v.SetDefault("min_password", 8)

	v.SetDefault("session.store", SessionStoreFile)
	v.SetDefault("session.file", defaultSessionFile())
	v.SetDefault("session.redis_addr", "127.0.0.1:6379")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.key", "clubctl:session")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".clubctl-session.json"
	}
	return filepath.Join(dir, "clubctl", "session.json")
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Addr          string        `mapstructure:"addr"`
		PageSize      int           `mapstructure:"page_size"`
		IndexCacheTTL time.Duration `mapstructure:"index_cache_ttl"`
		MediaDir      string        `mapstructure:"media_dir"`
	} `mapstructure:"app"`
	Database struct {
		URL      string `mapstructure:"url"`
		MaxConns int32  `mapstructure:"max_conns"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	RabbitMQ struct {
		URL   string `mapstructure:"url"`
		Queue string `mapstructure:"queue"`
	} `mapstructure:"rabbitmq"`
	Session struct {
		Lifetime time.Duration `mapstructure:"lifetime"`
		Secure   bool          `mapstructure:"secure"`
	} `mapstructure:"session"`
}

// Load reads settings from defaults, an optional config file and the
// environment, in increasing order of precedence. An empty path looks for
// config.yml in the working directory and ./config.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("postbook")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the well-known unprefixed names win over the prefixed ones
	_ = v.BindEnv("database.url", "DATABASE_URL", "POSTBOOK_DATABASE_URL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR", "POSTBOOK_REDIS_ADDR")
	_ = v.BindEnv("rabbitmq.url", "RABBITMQ_URL", "POSTBOOK_RABBITMQ_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.App.PageSize < 1 {
		return nil, fmt.Errorf("app.page_size must be positive, got %d", cfg.App.PageSize)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.addr", ":8080")
	v.SetDefault("app.page_size", 10)
	v.SetDefault("app.index_cache_ttl", 20*time.Second)
	v.SetDefault("app.media_dir", "media")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.queue", "notifications")
	v.SetDefault("session.lifetime", 24*time.Hour)
	v.SetDefault("session.secure", false)
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Search  SearchConfig  `mapstructure:"search"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// RedisConfig points at the cache backend. An empty Addr selects the
// in-memory cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SearchConfig controls the embedded search index. An empty Path selects a
// memory-only index.
type SearchConfig struct {
	Path string `mapstructure:"path"`
}

// CrawlerConfig governs the browsing session and pagination behavior.
type CrawlerConfig struct {
	StartURL           string        `mapstructure:"start_url"`
	UserAgent          string        `mapstructure:"user_agent"`
	NavTimeout         time.Duration `mapstructure:"nav_timeout"`
	SettleInterval     time.Duration `mapstructure:"settle_interval"`
	SettlePolls        int           `mapstructure:"settle_polls"`
	MaxPages           int           `mapstructure:"max_pages"`
	CommentConcurrency int           `mapstructure:"comment_concurrency"`
	DomainQPS          float64       `mapstructure:"domain_qps"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("db.migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("search.path", "data/articles.bleve")
	v.SetDefault("crawler.start_url", "https://news.ycombinator.com/")
	v.SetDefault("crawler.user_agent", "newsloom/1.0 (+https://github.com/newsloom/newsloom)")
	v.SetDefault("crawler.nav_timeout", "25s")
	v.SetDefault("crawler.settle_interval", "500ms")
	v.SetDefault("crawler.settle_polls", 6)
	v.SetDefault("crawler.max_pages", 3)
	v.SetDefault("crawler.comment_concurrency", 4)
	v.SetDefault("crawler.domain_qps", 2)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("server.timeout_seconds must be > 0")
	}
	if c.Crawler.StartURL == "" {
		return fmt.Errorf("crawler.start_url is required")
	}
	if c.Crawler.NavTimeout <= 0 {
		return fmt.Errorf("crawler.nav_timeout must be > 0")
	}
	if c.Crawler.SettlePolls <= 0 {
		return fmt.Errorf("crawler.settle_polls must be > 0")
	}
	if c.Crawler.CommentConcurrency <= 0 {
		return fmt.Errorf("crawler.comment_concurrency must be > 0")
	}
	return nil
}

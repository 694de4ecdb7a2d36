package config

import (
	"time"

	"github.com/vietddude/pricewatch/internal/core/domain"
	redisclient "github.com/vietddude/pricewatch/internal/infra/redis"
	"github.com/vietddude/pricewatch/internal/infra/storage/postgres"
)

const (
	DefaultPort        = 8080
	DefaultInterval    = 60 * time.Second
	DefaultHistorySize = 10
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Storage backends.
const (
	StorageAuto     = "auto"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig                       `yaml:"server"`
	Logging      LoggingConfig                      `yaml:"logging"`
	Capabilities domain.ServiceCapabilityDescriptor `yaml:"capabilities"`
	Feeds        []FeedConfig                       `yaml:"feeds"`
	Storage      StorageConfig                      `yaml:"storage"`
	Alerts       AlertsConfig                       `yaml:"alerts"`
	Redis        redisclient.Config                 `yaml:"redis"`
	Database     postgres.Config                    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// StorageConfig selects where error reports are kept.
type StorageConfig struct {
	Backend   string        `yaml:"backend"`   // auto, memory, redis, postgres
	Retention int           `yaml:"retention"` // per feed, memory and redis only
	MaxAge    time.Duration `yaml:"max_age"`   // 0 keeps reports forever
}

// AlertsConfig controls alert dispatch.
type AlertsConfig struct {
	RedisChannel string `yaml:"redis_channel"` // empty disables redis publishing
	QueueSize    int    `yaml:"queue_size"`
	Log          *bool  `yaml:"log"` // nil means enabled
}

// LogEnabled reports whether the log sink is on.
func (a AlertsConfig) LogEnabled() bool {
	return a.Log == nil || *a.Log
}

// FeedConfig holds settings for one price feed.
type FeedConfig struct {
	ID          string           `yaml:"id"`
	Service     string           `yaml:"service"` // stamped on reports, defaults to id
	Interval    time.Duration    `yaml:"interval"`
	Simulated   bool             `yaml:"simulated"` // polled, never alerted
	HistorySize int              `yaml:"history_size"`
	Endpoints   []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig holds settings for a price endpoint, in priority order.
type EndpointConfig struct {
	Name       string        `yaml:"name"`
	URL        string        `yaml:"url"`
	Path       string        `yaml:"path"`  // gjson path to the price
	Asset      string        `yaml:"asset"` // used in validation reasons, e.g. XRP
	Timeout    time.Duration `yaml:"timeout"`
	RateLimit  float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst      int           `yaml:"burst"`
	DailyQuota int           `yaml:"daily_quota"` // 0 = unlimited
}

// Feed returns the feed with id.
func (c *AppConfig) Feed(id string) (FeedConfig, bool) {
	for _, f := range c.Feeds {
		if f.ID == id {
			return f, true
		}
	}
	return FeedConfig{}, false
}

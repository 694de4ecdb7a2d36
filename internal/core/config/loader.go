package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/pricewatch/internal/core/domain"
)

// ErrNoFeeds is returned when the configuration declares no feeds.
var ErrNoFeeds = errors.New("no feeds configured")

// Load reads configuration from a YAML file on disk.
func Load(path string) (*AppConfig, error) {
	return LoadFS(afero.NewOsFs(), path)
}

// LoadFS reads configuration from a YAML file on fs.
func LoadFS(fs afero.Fs, path string) (*AppConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageAuto
	}

	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.Service == "" {
			f.Service = f.ID
		}
		if f.Interval == 0 {
			f.Interval = DefaultInterval
		}
		if f.HistorySize == 0 {
			f.HistorySize = DefaultHistorySize
		}
		for j := range f.Endpoints {
			e := &f.Endpoints[j]
			if e.Timeout == 0 {
				e.Timeout = domain.DefaultEndpointTimeout
			}
			if e.RateLimit > 0 && e.Burst == 0 {
				e.Burst = 1
			}
		}
	}
}

// Validate rejects configurations the service cannot run.
func (c *AppConfig) Validate() error {
	if len(c.Feeds) == 0 {
		return ErrNoFeeds
	}

	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	if c.Storage.MaxAge < 0 || c.Storage.Retention < 0 {
		return errors.New("storage: negative retention")
	}

	switch c.Storage.Backend {
	case StorageAuto, StorageMemory:
	case StorageRedis:
		if c.Redis.URL == "" {
			return errors.New("storage backend redis requires redis.url")
		}
	case StoragePostgres:
		if c.Database.URL == "" {
			return errors.New("storage backend postgres requires database.url")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	feedIDs := make(map[string]bool, len(c.Feeds))
	for _, f := range c.Feeds {
		if strings.TrimSpace(f.ID) == "" {
			return errors.New("feed with empty id")
		}
		if feedIDs[f.ID] {
			return fmt.Errorf("duplicate feed id %q", f.ID)
		}
		feedIDs[f.ID] = true

		if f.Interval < 0 {
			return fmt.Errorf("feed %s: negative interval", f.ID)
		}
		if len(f.Endpoints) == 0 {
			return fmt.Errorf("feed %s: no endpoints configured", f.ID)
		}

		names := make(map[string]bool, len(f.Endpoints))
		for _, e := range f.Endpoints {
			if e.Name == "" {
				return fmt.Errorf("feed %s: endpoint with empty name", f.ID)
			}
			if names[e.Name] {
				return fmt.Errorf("feed %s: duplicate endpoint name %q", f.ID, e.Name)
			}
			names[e.Name] = true

			u, err := url.Parse(e.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("feed %s: endpoint %s: invalid url %q", f.ID, e.Name, e.URL)
			}
			if e.Path == "" {
				return fmt.Errorf("feed %s: endpoint %s: path is required", f.ID, e.Name)
			}
			if e.Timeout < 0 || e.RateLimit < 0 || e.Burst < 0 || e.DailyQuota < 0 {
				return fmt.Errorf("feed %s: endpoint %s: negative limit", f.ID, e.Name)
			}
		}
	}
	return nil
}

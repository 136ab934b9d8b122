// Package config loads and validates exporter configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all exporter configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SiteConfig identifies the site being exported.
type SiteConfig struct {
	// Hostname is the declared site host sent in the Host header.
	Hostname string `mapstructure:"hostname"`
	// OriginIP is the address the TCP connection actually dials,
	// bypassing any CDN in front of the hostname.
	OriginIP string `mapstructure:"origin_ip"`
	// ContactURL is linked from blocks that replace flagged elements.
	ContactURL string `mapstructure:"contact_url"`
}

// CrawlConfig governs traversal limits and pacing.
type CrawlConfig struct {
	DelayMs     int    `mapstructure:"delay_ms"`
	MaxDepth    int    `mapstructure:"max_depth"`
	MaxPages    int    `mapstructure:"max_pages"`
	MaxRetries  int    `mapstructure:"max_retries"`
	MarkerToken string `mapstructure:"marker_token"`
}

// HTTPConfig configures the fetch client.
type HTTPConfig struct {
	ConnectTimeoutSeconds int      `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int      `mapstructure:"read_timeout_seconds"`
	UserAgents            []string `mapstructure:"user_agents"`
}

// OutputConfig sets where snapshot trees are written.
type OutputConfig struct {
	Root string `mapstructure:"root"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. An empty path searches the
// working directory, /etc/sitesnap and $HOME/.sitesnap for sitesnap.yaml;
// a missing file is tolerated there but an explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITESNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("sitesnap")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sitesnap/")
		v.AddConfigPath("$HOME/.sitesnap")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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
	v.SetDefault("site.contact_url", "/contact")
	v.SetDefault("crawl.delay_ms", 250)
	v.SetDefault("crawl.max_depth", 0)
	v.SetDefault("crawl.max_pages", 500)
	v.SetDefault("crawl.max_retries", 2)
	v.SetDefault("crawl.marker_token", "")
	v.SetDefault("http.connect_timeout_seconds", 10)
	v.SetDefault("http.read_timeout_seconds", 30)
	v.SetDefault("output.root", "./snapshots")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values before any network activity happens.
func (c Config) Validate() error {
	host := strings.TrimSpace(c.Site.Hostname)
	if host == "" {
		return fmt.Errorf("site.hostname must be set")
	}
	if strings.Contains(host, "/") {
		return fmt.Errorf("site.hostname must be a bare host, not a URL")
	}
	if strings.TrimSpace(c.Site.OriginIP) == "" {
		return fmt.Errorf("site.origin_ip must be set")
	}
	if net.ParseIP(c.Site.OriginIP) == nil {
		return fmt.Errorf("site.origin_ip must be a valid IP address")
	}
	if c.Crawl.DelayMs < 0 {
		return fmt.Errorf("crawl.delay_ms must be >= 0")
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.MaxRetries < 0 {
		return fmt.Errorf("crawl.max_retries must be >= 0")
	}
	if c.HTTP.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("http.connect_timeout_seconds must be > 0")
	}
	if c.HTTP.ReadTimeoutSeconds <= 0 {
		return fmt.Errorf("http.read_timeout_seconds must be > 0")
	}
	if strings.TrimSpace(c.Output.Root) == "" {
		return fmt.Errorf("output.root must be set")
	}
	return nil
}

// Delay converts the inter-request delay into a duration; zero disables pacing.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawl.DelayMs) * time.Millisecond
}

// ConnectTimeout returns the dial timeout for the fetch client.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutSeconds) * time.Second
}

// ReadTimeout returns the full-request timeout for the fetch client.
func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.HTTP.ReadTimeoutSeconds) * time.Second
}

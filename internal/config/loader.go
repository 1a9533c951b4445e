package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment over the defaults.
// Priority (highest to lowest): env vars > config file > defaults. CLI flags
// are not read here; the caller applies flag overrides to the returned Config.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support
	v.SetEnvPrefix("SCRAPEGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("scrapegoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".scrapegoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawler.request_handler_timeout_secs", cfg.Crawler.RequestHandlerTimeoutSecs)
	v.SetDefault("crawler.max_request_retries", cfg.Crawler.MaxRequestRetries)
	v.SetDefault("crawler.max_session_rotations", cfg.Crawler.MaxSessionRotations)
	v.SetDefault("crawler.same_domain_delay_secs", cfg.Crawler.SameDomainDelaySecs)
	v.SetDefault("crawler.max_requests_per_crawl", cfg.Crawler.MaxRequestsPerCrawl)
	v.SetDefault("crawler.max_crawl_depth", cfg.Crawler.MaxCrawlDepth)
	v.SetDefault("crawler.max_requests_per_minute", cfg.Crawler.MaxRequestsPerMinute)
	v.SetDefault("crawler.min_concurrency", cfg.Crawler.MinConcurrency)
	v.SetDefault("crawler.max_concurrency", cfg.Crawler.MaxConcurrency)
	v.SetDefault("crawler.keep_alive", cfg.Crawler.KeepAlive)
	v.SetDefault("crawler.use_session_pool", cfg.Crawler.UseSessionPool)
	v.SetDefault("crawler.retry_on_blocked", cfg.Crawler.RetryOnBlocked)
	v.SetDefault("crawler.respect_robots_txt_file", cfg.Crawler.RespectRobotsTxtFile)
	v.SetDefault("crawler.robots_txt_file_user_agent", cfg.Crawler.RobotsTxtFileUserAgent)
	v.SetDefault("crawler.status_message_logging_interval", cfg.Crawler.StatusMessageLoggingInterval)
	v.SetDefault("crawler.purge_request_queue", cfg.Crawler.PurgeRequestQueue)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)
	v.SetDefault("proxy.health_check", cfg.Proxy.HealthCheck)
	v.SetDefault("proxy.rotate_on_fail", cfg.Proxy.RotateOnFail)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.batch_size", cfg.Storage.BatchSize)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

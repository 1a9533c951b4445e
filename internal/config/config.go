package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for WebStalk.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"  yaml:"crawler"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Proxy    ProxyConfig    `mapstructure:"proxy"    yaml:"proxy"`
	Parser   ParserConfig   `mapstructure:"parser"   yaml:"parser"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	AI       AIConfig       `mapstructure:"ai"       yaml:"ai"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// CrawlerConfig is the YAML/env-bound form of spec §6's enumerated
// CrawlerOptions — everything a deploy would want to set without touching
// Go code. internal/crawler.OptionsFromConfig converts this into the
// Crawler's own Options struct (handlers, which are Go values, stay out of
// this config layer entirely).
type CrawlerConfig struct {
	RequestHandlerTimeoutSecs    int           `mapstructure:"request_handler_timeout_secs"    yaml:"request_handler_timeout_secs"`
	MaxRequestRetries            int           `mapstructure:"max_request_retries"             yaml:"max_request_retries"`
	MaxSessionRotations          int           `mapstructure:"max_session_rotations"           yaml:"max_session_rotations"`
	SameDomainDelaySecs          int           `mapstructure:"same_domain_delay_secs"          yaml:"same_domain_delay_secs"`
	MaxRequestsPerCrawl          int           `mapstructure:"max_requests_per_crawl"          yaml:"max_requests_per_crawl"`
	MaxCrawlDepth                int           `mapstructure:"max_crawl_depth"                 yaml:"max_crawl_depth"`
	MaxRequestsPerMinute         int           `mapstructure:"max_requests_per_minute"         yaml:"max_requests_per_minute"`
	MinConcurrency               int           `mapstructure:"min_concurrency"                 yaml:"min_concurrency"`
	MaxConcurrency               int           `mapstructure:"max_concurrency"                 yaml:"max_concurrency"`
	KeepAlive                    bool          `mapstructure:"keep_alive"                      yaml:"keep_alive"`
	UseSessionPool               bool          `mapstructure:"use_session_pool"                yaml:"use_session_pool"`
	RetryOnBlocked               bool          `mapstructure:"retry_on_blocked"                yaml:"retry_on_blocked"`
	RespectRobotsTxtFile         bool          `mapstructure:"respect_robots_txt_file"         yaml:"respect_robots_txt_file"`
	RobotsTxtFileUserAgent       string        `mapstructure:"robots_txt_file_user_agent"      yaml:"robots_txt_file_user_agent"`
	StatusMessageLoggingInterval time.Duration `mapstructure:"status_message_logging_interval" yaml:"status_message_logging_interval"`
	PurgeRequestQueue            bool          `mapstructure:"purge_request_queue"             yaml:"purge_request_queue"`
}

// FetcherConfig controls the request fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled      bool     `mapstructure:"enabled"       yaml:"enabled"`
	Rotation     string   `mapstructure:"rotation"      yaml:"rotation"`
	URLs         []string `mapstructure:"urls"           yaml:"urls"`
	HealthCheck  bool     `mapstructure:"health_check"   yaml:"health_check"`
	RotateOnFail bool     `mapstructure:"rotate_on_fail" yaml:"rotate_on_fail"`
}

// ParserConfig controls the parser.
type ParserConfig struct {
	AutoDetect bool        `mapstructure:"auto_detect" yaml:"auto_detect"`
	Rules      []ParseRule `mapstructure:"rules"       yaml:"rules"`
}

// ParseRule defines a single extraction rule.
type ParseRule struct {
	Name      string `mapstructure:"name"      yaml:"name"`
	Selector  string `mapstructure:"selector"  yaml:"selector"`
	Type      string `mapstructure:"type"      yaml:"type"` // css, xpath, regex
	Attribute string `mapstructure:"attribute" yaml:"attribute"`
	Pattern   string `mapstructure:"pattern"   yaml:"pattern"`
}

// PipelineConfig controls the processing pipeline.
type PipelineConfig struct {
	Middlewares []MiddlewareConfig `mapstructure:"middlewares" yaml:"middlewares"`
}

// MiddlewareConfig defines a single pipeline middleware.
type MiddlewareConfig struct {
	Name    string         `mapstructure:"name"    yaml:"name"`
	Type    string         `mapstructure:"type"    yaml:"type"`
	Options map[string]any `mapstructure:"options" yaml:"options"`
}

// StorageConfig controls output/storage.
type StorageConfig struct {
	Type       string `mapstructure:"type"        yaml:"type"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	BatchSize  int    `mapstructure:"batch_size"  yaml:"batch_size"`
}

// AIConfig controls LLM integration.
type AIConfig struct {
	Enabled  bool   `mapstructure:"enabled"   yaml:"enabled"`
	Provider string `mapstructure:"provider"  yaml:"provider"`
	Model    string `mapstructure:"model"     yaml:"model"`
	Endpoint string `mapstructure:"endpoint"  yaml:"endpoint"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			RequestHandlerTimeoutSecs:    60,
			MaxRequestRetries:            3,
			MaxSessionRotations:          10,
			MinConcurrency:               1,
			MaxConcurrency:               50,
			UseSessionPool:               true,
			RobotsTxtFileUserAgent:       "*",
			StatusMessageLoggingInterval: 10 * time.Second,
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Proxy: ProxyConfig{
			Enabled:      false,
			Rotation:     "round_robin",
			HealthCheck:  true,
			RotateOnFail: true,
		},
		Parser: ParserConfig{
			AutoDetect: true,
		},
		Storage: StorageConfig{
			Type:       "json",
			OutputPath: "./output",
			BatchSize:  100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

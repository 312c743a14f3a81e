package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// EnvPostgresDSN names the environment variable holding the PostgreSQL DSN
const EnvPostgresDSN = "POSTGRES_DSN"

// SourceConfig holds configuration specific to a single review site crawl
type SourceConfig struct {
	IndexURL           string        `yaml:"index_url"`                      // A-Z index page listing every airline
	AllowedDomain      string        `yaml:"allowed_domain,omitempty"`       // Defaults to the index URL's host
	IndexLinkSelector  string        `yaml:"index_link_selector,omitempty"`  // Anchors scanned for airline entries
	EntryMarker        string        `yaml:"entry_marker,omitempty"`         // Href substring identifying an airline entry
	UserAgent          string        `yaml:"user_agent,omitempty"`
	DelayPerHost       time.Duration `yaml:"delay_per_host,omitempty"`
	MaxPagesPerAirline int           `yaml:"max_pages_per_airline,omitempty"` // 0 = follow pagination to the end
	MaxAirlines        int           `yaml:"max_airlines,omitempty"`          // 0 = every discovered airline
	RespectRobots      *bool         `yaml:"respect_robots,omitempty"`
}

// PostgresConfig configures the PostgreSQL record sink
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn,omitempty"` // Overridden by POSTGRES_DSN when set
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
	CreateSchema    bool          `yaml:"create_schema,omitempty"` // Run CREATE TABLE IF NOT EXISTS at startup
}

// JSONLConfig configures the JSON Lines record sink
type JSONLConfig struct {
	Enabled      bool   `yaml:"enabled"`
	AirlinesFile string `yaml:"airlines_file,omitempty"`
	ReviewsFile  string `yaml:"reviews_file,omitempty"`
}

// SinkConfig selects where parsed records are written
type SinkConfig struct {
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
	JSONL    JSONLConfig    `yaml:"jsonl,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DefaultUserAgent        string                  `yaml:"default_user_agent"`
	DefaultDelayPerHost     time.Duration           `yaml:"default_delay_per_host"`
	NumWorkers              int                     `yaml:"num_workers"`
	MaxRequests             int                     `yaml:"max_requests"`
	MaxRequestsPerHost      int                     `yaml:"max_requests_per_host"`
	OutputBaseDir           string                  `yaml:"output_base_dir"`
	StateDir                string                  `yaml:"state_dir"`
	MaxRetries              int                     `yaml:"max_retries,omitempty"`
	InitialRetryDelay       time.Duration           `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay           time.Duration           `yaml:"max_retry_delay,omitempty"`
	SemaphoreAcquireTimeout time.Duration           `yaml:"semaphore_acquire_timeout,omitempty"`
	GlobalCrawlTimeout      time.Duration           `yaml:"global_crawl_timeout,omitempty"`
	PerPageTimeout          time.Duration           `yaml:"per_page_timeout,omitempty"` // Timeout for fetching a single page (0 = no timeout)
	MetricsAddr             string                  `yaml:"metrics_addr,omitempty"`     // Empty disables the /metrics endpoint
	RespectRobots           bool                    `yaml:"respect_robots,omitempty"`
	HTTPClientSettings      HTTPClientConfig        `yaml:"http_client_settings,omitempty"`
	Sinks                   SinkConfig              `yaml:"sinks"`
	Sources                 map[string]SourceConfig `yaml:"sources"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// Load reads a YAML config file. Environment overrides are applied separately by ApplyEnv.
func Load(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config file '%s': %w", utils.ErrFilesystem, path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config file '%s': %w", utils.ErrConfigValidation, path, err)
	}
	return &cfg, nil
}

// LoadEnvFiles loads ENV_FILE (when set), then .env.local, then .env into the
// process environment. Missing files are skipped; variables already set win.
func LoadEnvFiles() error {
	files := []string{".env.local", ".env"}
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		files = append([]string{envFile}, files...)
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values from environment variables
func (c *AppConfig) ApplyEnv() {
	if dsn := os.Getenv(EnvPostgresDSN); dsn != "" {
		c.Sinks.Postgres.DSN = dsn
	}
}

// GetEffectiveUserAgent returns the source's user agent, falling back to the global default
func GetEffectiveUserAgent(src SourceConfig, appCfg AppConfig) string {
	if src.UserAgent != "" {
		return src.UserAgent
	}
	return appCfg.DefaultUserAgent
}

// GetEffectiveDelay returns the per-host politeness delay for a source
func GetEffectiveDelay(src SourceConfig, appCfg AppConfig) time.Duration {
	if src.DelayPerHost > 0 {
		return src.DelayPerHost
	}
	return appCfg.DefaultDelayPerHost
}

// GetEffectiveRespectRobots determines whether robots.txt is consulted for a source
func GetEffectiveRespectRobots(src SourceConfig, appCfg AppConfig) bool {
	if src.RespectRobots != nil {
		return *src.RespectRobots
	}
	return appCfg.RespectRobots
}

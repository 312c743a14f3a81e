package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

const (
	defaultUserAgent    = "review-scraper/1.0 (+https://github.com/Sriram-PR/review-scraper)"
	defaultAirlinesFile = "airlines.jsonl"
	defaultReviewsFile  = "reviews.jsonl"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.DefaultUserAgent == "" {
		c.DefaultUserAgent = defaultUserAgent
	}

	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 4")
		c.NumWorkers = 4
	}

	if c.MaxRequests <= 0 {
		warnings = append(warnings, "max_requests should be > 0, defaulting to 10")
		c.MaxRequests = 10
	}

	if c.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, "max_requests_per_host should be > 0, defaulting to 2")
		c.MaxRequestsPerHost = 2
	}

	if c.OutputBaseDir == "" {
		warnings = append(warnings, "output_base_dir is empty, defaulting to './crawled_reviews'")
		c.OutputBaseDir = "./crawled_reviews"
	}

	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './crawler_state'")
		c.StateDir = "./crawler_state"
	}

	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}

	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = 30 * time.Second
	}

	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}

	if c.PerPageTimeout < 0 {
		warnings = append(warnings, "per_page_timeout cannot be negative, disabling timeout")
		c.PerPageTimeout = 0
	}

	c.validateHTTPClientSettings()

	sinkWarnings, err := c.Sinks.validate()
	warnings = append(warnings, sinkWarnings...)
	if err != nil {
		return warnings, err
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// validate applies sink defaults. A run with no sink enabled falls back to JSONL
// so parsed records are never silently discarded.
func (s *SinkConfig) validate() (warnings []string, err error) {
	if !s.Postgres.Enabled && !s.JSONL.Enabled {
		warnings = append(warnings, "no sink enabled, defaulting to JSONL output")
		s.JSONL.Enabled = true
	}

	if s.JSONL.Enabled {
		if s.JSONL.AirlinesFile == "" {
			s.JSONL.AirlinesFile = defaultAirlinesFile
		}
		if s.JSONL.ReviewsFile == "" {
			s.JSONL.ReviewsFile = defaultReviewsFile
		}
		if s.JSONL.AirlinesFile == s.JSONL.ReviewsFile {
			return warnings, fmt.Errorf("%w: jsonl airlines_file and reviews_file must differ", utils.ErrConfigValidation)
		}
	}

	if s.Postgres.Enabled {
		if s.Postgres.DSN == "" {
			return warnings, fmt.Errorf("%w: postgres sink enabled but no dsn (set %s)", utils.ErrConfigValidation, EnvPostgresDSN)
		}
		if s.Postgres.MaxOpenConns <= 0 {
			s.Postgres.MaxOpenConns = 25
		}
		if s.Postgres.MaxIdleConns <= 0 {
			s.Postgres.MaxIdleConns = 5
		}
		if s.Postgres.ConnMaxLifetime <= 0 {
			s.Postgres.ConnMaxLifetime = 5 * time.Minute
		}
	}
	return warnings, nil
}

// Validate checks SourceConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place (e.g., allowed domain derived from the index URL).
func (c *SourceConfig) Validate() (warnings []string, err error) {
	if c.IndexURL == "" {
		return nil, fmt.Errorf("%w: source has no index_url", utils.ErrConfigValidation)
	}
	parsed, parseErr := url.ParseRequestURI(c.IndexURL)
	if parseErr != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: index_url '%s' is not an absolute http(s) URL", utils.ErrConfigValidation, c.IndexURL)
	}

	if c.AllowedDomain == "" {
		c.AllowedDomain = parsed.Hostname()
	} else if c.AllowedDomain != parsed.Hostname() {
		warnings = append(warnings, fmt.Sprintf(
			"allowed_domain '%s' differs from index_url host '%s'; entries outside allowed_domain will be skipped",
			c.AllowedDomain, parsed.Hostname()))
	}

	if c.MaxPagesPerAirline < 0 {
		warnings = append(warnings, "max_pages_per_airline cannot be negative, setting to 0 (unlimited)")
		c.MaxPagesPerAirline = 0
	}

	if c.MaxAirlines < 0 {
		warnings = append(warnings, "max_airlines cannot be negative, setting to 0 (unlimited)")
		c.MaxAirlines = 0
	}

	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, using global default")
		c.DelayPerHost = 0
	}

	return warnings, nil
}

// Package fetch retrieves pages over HTTP politely: robots.txt, per-host delay,
// per-host and global concurrency limits, and retry with backoff.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/review-scraper/pkg/parse"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// DefaultMaxBodyBytes caps how much of a response body is read
const DefaultMaxBodyBytes = 16 << 20

// Page is a fetched HTML document
type Page struct {
	URL        string // Final URL after redirects
	StatusCode int
	Body       []byte
}

// PageClientOptions configures a PageClient
type PageClientOptions struct {
	UserAgent        string
	DelayPerHost     time.Duration
	SemaphoreTimeout time.Duration
	MaxBodyBytes     int64
	Robots           *RobotsGate // nil disables robots.txt checks
}

// PageClient fetches pages under the crawl's politeness constraints
type PageClient struct {
	fetcher *Fetcher
	limiter *RateLimiter
	hosts   *HostSemaphorePool
	global  *semaphore.Weighted
	opts    PageClientOptions
	log     *logrus.Entry
}

// NewPageClient wires the shared fetch components into a PageClient
func NewPageClient(
	fetcher *Fetcher,
	limiter *RateLimiter,
	hosts *HostSemaphorePool,
	global *semaphore.Weighted,
	opts PageClientOptions,
	log *logrus.Entry,
) *PageClient {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &PageClient{
		fetcher: fetcher,
		limiter: limiter,
		hosts:   hosts,
		global:  global,
		opts:    opts,
		log:     log.WithField("component", "page_client"),
	}
}

// Fetch retrieves rawURL. Any returned error means the page is unavailable.
func (c *PageClient) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	_, target, err := parse.ParseAndNormalize(rawURL)
	if err != nil {
		return nil, err
	}
	host := target.Host
	pageLog := c.log.WithField("url", target.String())

	if c.opts.Robots != nil && !c.opts.Robots.Allowed(ctx, target, c.opts.UserAgent) {
		return nil, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, target.String())
	}

	acquireCtx := ctx
	if c.opts.SemaphoreTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, c.opts.SemaphoreTimeout)
		defer cancel()
	}
	if err := c.global.Acquire(acquireCtx, 1); err != nil {
		return nil, fmt.Errorf("%w: global: %w", utils.ErrSemaphoreTimeout, err)
	}
	defer c.global.Release(1)

	release, err := c.hosts.Acquire(acquireCtx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: host %s: %w", utils.ErrSemaphoreTimeout, host, err)
	}
	defer release()

	if err := c.limiter.Wait(ctx, host, c.opts.DelayPerHost); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.fetcher.Do(ctx, req)
	c.limiter.Touch(host)
	if err != nil {
		drain(resp)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}

	finalURL := target.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	pageLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "bytes": len(body)}).Debug("Fetched page")

	return &Page{URL: finalURL, StatusCode: resp.StatusCode, Body: body}, nil
}

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsGate fetches, caches and evaluates robots.txt per host.
// A host whose robots.txt cannot be obtained is treated as allowing everything.
type RobotsGate struct {
	fetcher   *Fetcher
	userAgent string

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData // host -> parsed rules, nil = allow all
	group singleflight.Group

	log *logrus.Entry
}

// NewRobotsGate creates a RobotsGate. userAgent is sent when fetching robots.txt.
func NewRobotsGate(fetcher *Fetcher, userAgent string, log *logrus.Entry) *RobotsGate {
	return &RobotsGate{
		fetcher:   fetcher,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log.WithField("component", "robots"),
	}
}

// Allowed reports whether userAgent may fetch target
func (g *RobotsGate) Allowed(ctx context.Context, target *url.URL, userAgent string) bool {
	data := g.rules(ctx, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.RequestURI(), userAgent)
}

func (g *RobotsGate) rules(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Host

	g.mu.RLock()
	data, ok := g.cache[host]
	g.mu.RUnlock()
	if ok {
		return data
	}

	v, _, _ := g.group.Do(host, func() (interface{}, error) {
		data, err := g.fetchRules(ctx, target)
		if err != nil {
			g.log.WithField("host", host).Warnf("robots.txt unavailable, allowing all: %v", err)
			data = nil
		}
		// A cancelled context says nothing about the host; leave it uncached.
		if ctx.Err() == nil {
			g.mu.Lock()
			g.cache[host] = data
			g.mu.Unlock()
		}
		return data, nil
	})
	data, _ = v.(*robotstxt.RobotsData)
	return data
}

func (g *RobotsGate) fetchRules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	scheme := target.Scheme
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	robotsURL := (&url.URL{Scheme: scheme, Host: target.Host, Path: "/robots.txt"}).String()
	g.log.WithField("robots_url", robotsURL).Info("Fetching robots.txt...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.fetcher.Do(ctx, req)
	if resp == nil {
		if err == nil {
			err = errors.New("no response")
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("read robots.txt: %w", readErr)
	}
	// Non-2xx statuses carry a response here; robotstxt maps 4xx to allow-all.
	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}

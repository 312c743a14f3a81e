// Package orchestrate runs the crawls of one or more configured sources in
// parallel over a shared HTTP stack.
package orchestrate

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/crawler"
	"github.com/Sriram-PR/review-scraper/pkg/fetch"
	"github.com/Sriram-PR/review-scraper/pkg/metrics"
	"github.com/Sriram-PR/review-scraper/pkg/storage"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

const (
	storeGCInterval   = 10 * time.Minute
	hostEvictInterval = time.Minute
)

// SourceResult contains the result of crawling a single source
type SourceResult struct {
	SourceKey string
	Success   bool
	Error     error
	Summary   *crawler.Summary // nil when the crawl never started
	Duration  time.Duration
}

// Options tunes an Orchestrator
type Options struct {
	Resume          bool
	WriteVisitedLog bool             // Write <source>-visited.txt after a complete crawl
	Metrics         *metrics.Metrics // nil creates a private instance
}

// Orchestrator manages parallel crawling of multiple sources
type Orchestrator struct {
	appCfg     *config.AppConfig
	log        *logrus.Entry
	sourceKeys []string
	opts       Options
	metrics    *metrics.Metrics

	// Shared across sources
	fetcher         *fetch.Fetcher
	rateLimiter     *fetch.RateLimiter
	hostPool        *fetch.HostSemaphorePool
	globalSemaphore *semaphore.Weighted

	results   []SourceResult
	resultsMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewOrchestrator creates an orchestrator for the given sources. appCfg must
// already be validated.
func NewOrchestrator(ctx context.Context, appCfg *config.AppConfig, sourceKeys []string, opts Options, log *logrus.Entry) *Orchestrator {
	runCtx, cancel := context.WithCancel(ctx)

	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, log)
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	return &Orchestrator{
		appCfg:          appCfg,
		log:             log,
		sourceKeys:      sourceKeys,
		opts:            opts,
		metrics:         m,
		fetcher:         fetch.NewFetcher(httpClient, fetch.RetryPolicyFromConfig(appCfg), log),
		rateLimiter:     fetch.NewRateLimiter(appCfg.DefaultDelayPerHost, log),
		hostPool:        fetch.NewHostSemaphorePool(appCfg.MaxRequestsPerHost, log),
		globalSemaphore: semaphore.NewWeighted(int64(appCfg.MaxRequests)),
		results:         make([]SourceResult, 0, len(sourceKeys)),
		ctx:             runCtx,
		cancel:          cancel,
	}
}

// Run crawls every source in parallel and waits for completion.
// Results are ordered by source key.
func (o *Orchestrator) Run() []SourceResult {
	startTime := time.Now()
	o.log.Infof("Starting crawl of %d source(s): %v", len(o.sourceKeys), o.sourceKeys)

	evictCtx, stopEviction := context.WithCancel(o.ctx)
	defer stopEviction()
	go o.hostPool.RunEviction(evictCtx, hostEvictInterval)

	var wg sync.WaitGroup
	for _, key := range o.sourceKeys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			result := o.crawlSource(key)
			o.resultsMu.Lock()
			o.results = append(o.results, result)
			o.resultsMu.Unlock()
		}(key)
	}
	wg.Wait()

	sort.Slice(o.results, func(i, j int) bool { return o.results[i].SourceKey < o.results[j].SourceKey })
	o.logSummary(time.Since(startTime))
	return o.results
}

// Cancel cancels all running crawls
func (o *Orchestrator) Cancel() {
	o.log.Info("Cancelling all crawls...")
	o.cancel()
}

// SourceOutputDir is where a source's records and summary are written
func SourceOutputDir(appCfg *config.AppConfig, sourceKey string) string {
	return filepath.Join(appCfg.OutputBaseDir, utils.SanitizeFilename(sourceKey))
}

// crawlSource builds the per-source store, sink and crawler and runs it
func (o *Orchestrator) crawlSource(key string) SourceResult {
	startTime := time.Now()
	result := SourceResult{SourceKey: key}
	srcLog := o.log.WithField("source", key)

	fail := func(err error) SourceResult {
		result.Error = err
		result.Duration = time.Since(startTime)
		srcLog.Errorf("Crawl failed: %v", err)
		return result
	}

	srcCfg, exists := o.appCfg.Sources[key]
	if !exists {
		return fail(fmt.Errorf("source '%s' not found in configuration", key))
	}

	store, err := storage.NewBadgerStore(o.appCfg.StateDir, key, o.opts.Resume, srcLog)
	if err != nil {
		return fail(fmt.Errorf("create state store: %w", err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			srcLog.Errorf("Failed to close state store: %v", err)
		}
	}()
	gcCtx, stopGC := context.WithCancel(o.ctx)
	defer stopGC()
	go store.RunGC(gcCtx, storeGCInterval)

	outputDir := SourceOutputDir(o.appCfg, key)
	sink, err := storage.OpenSink(o.ctx, o.appCfg.Sinks, outputDir, o.opts.Resume, srcLog)
	if err != nil {
		return fail(fmt.Errorf("open sink: %w", err))
	}
	defer func() {
		if err := sink.Close(); err != nil {
			srcLog.Errorf("Failed to close sink: %v", err)
		}
	}()

	c, err := crawler.New(o.appCfg, &srcCfg, key, crawler.Options{
		Store:   store,
		Fetcher: o.pageClient(srcCfg, srcLog),
		Sink:    sink,
		Metrics: o.metrics,
		Resume:  o.opts.Resume,
	}, srcLog)
	if err != nil {
		return fail(fmt.Errorf("create crawler: %w", err))
	}

	summary, err := c.Run(o.ctx)
	result.Summary = summary
	result.Duration = time.Since(startTime)

	if summary != nil {
		summaryPath := filepath.Join(outputDir, crawler.SummaryFileName)
		if writeErr := summary.WriteYAML(summaryPath); writeErr != nil {
			srcLog.Errorf("Failed to write crawl summary: %v", writeErr)
		} else {
			srcLog.Infof("Wrote crawl summary to %s", summaryPath)
		}
	}

	if err != nil {
		return fail(err)
	}

	if o.opts.WriteVisitedLog {
		visitedPath := filepath.Join(o.appCfg.OutputBaseDir, utils.SanitizeFilename(key)+"-visited.txt")
		if writeErr := store.WriteVisitedLog(o.ctx, visitedPath); writeErr != nil {
			srcLog.Errorf("Error writing visited log: %v", writeErr)
		}
	}

	result.Success = true
	srcLog.Info("Crawl completed")
	return result
}

// pageClient builds the polite fetcher for one source over the shared components
func (o *Orchestrator) pageClient(srcCfg config.SourceConfig, log *logrus.Entry) *fetch.PageClient {
	userAgent := config.GetEffectiveUserAgent(srcCfg, *o.appCfg)
	var robots *fetch.RobotsGate
	if config.GetEffectiveRespectRobots(srcCfg, *o.appCfg) {
		robots = fetch.NewRobotsGate(o.fetcher, userAgent, log)
	} else {
		log.Info("robots.txt checks disabled for this source")
	}
	return fetch.NewPageClient(o.fetcher, o.rateLimiter, o.hostPool, o.globalSemaphore, fetch.PageClientOptions{
		UserAgent:        userAgent,
		DelayPerHost:     config.GetEffectiveDelay(srcCfg, *o.appCfg),
		SemaphoreTimeout: o.appCfg.SemaphoreAcquireTimeout,
		Robots:           robots,
	}, log)
}

// logSummary logs a summary of all crawl results
func (o *Orchestrator) logSummary(totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("Crawl of %d source(s) completed in %v", len(o.results), totalDuration)

	var totalReviews int64
	successCount := 0
	for _, r := range o.results {
		status := "FAILED"
		if r.Success {
			status = "SUCCESS"
			successCount++
		}
		var reviews, pages int64
		if r.Summary != nil {
			reviews, pages = r.Summary.Reviews, r.Summary.Pages
		}
		totalReviews += reviews

		o.log.Infof("  %s: %s - %d reviews from %d pages in %v", r.SourceKey, status, reviews, pages, r.Duration)
		if r.Error != nil {
			o.log.Infof("    Error: %v", r.Error)
		}
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d sources (%d success, %d failed), %d reviews",
		len(o.results), successCount, len(o.results)-successCount, totalReviews)
	o.log.Info("============================================")
}

// ValidateSourceKeys checks that all provided source keys exist in the config
func ValidateSourceKeys(appCfg *config.AppConfig, sourceKeys []string) error {
	for _, key := range sourceKeys {
		if _, exists := appCfg.Sources[key]; !exists {
			return fmt.Errorf("source '%s' not found. Available sources: %v", key, GetAllSourceKeys(appCfg))
		}
	}
	return nil
}

// GetAllSourceKeys returns all source keys from the config, sorted
func GetAllSourceKeys(appCfg *config.AppConfig) []string {
	keys := make([]string, 0, len(appCfg.Sources))
	for k := range appCfg.Sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

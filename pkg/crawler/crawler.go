// Package crawler drives a review crawl: it discovers airline entry pages from
// an index, walks each airline's pagination chain and hands the parsed records
// to a sink.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/fetch"
	"github.com/Sriram-PR/review-scraper/pkg/metrics"
	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/parse"
	"github.com/Sriram-PR/review-scraper/pkg/queue"
	"github.com/Sriram-PR/review-scraper/pkg/storage"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// DefaultProgressInterval is how often crawl progress is logged
const DefaultProgressInterval = 30 * time.Second

var errFrontierClosed = errors.New("frontier closed")

// PageFetcher retrieves a single page. Retries belong to the implementation;
// the crawler treats any error as the end of that page's chain.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Options carries the collaborators of a Crawler
type Options struct {
	Store   storage.CrawlStateStore
	Fetcher PageFetcher
	Sink    storage.Sink
	Metrics *metrics.Metrics // nil creates a private instance
	Resume  bool             // Requeue pages left pending or failed by a previous run
}

// Crawler orchestrates the crawl of a single configured source
type Crawler struct {
	log        *logrus.Entry // Contextualized with source and run_id
	appCfg     *config.AppConfig
	srcCfg     *config.SourceConfig
	sourceName string
	runID      string
	resume     bool

	store    storage.CrawlStateStore
	frontier *queue.Frontier
	fetcher  PageFetcher
	parser   *parse.Parser
	sink     storage.Sink
	metrics  *metrics.Metrics

	wg               sync.WaitGroup // Outstanding work items
	progressInterval time.Duration
	stats            crawlStats
}

// crawlStats are the live counters behind Summary
type crawlStats struct {
	processed  atomic.Int64
	failed     atomic.Int64
	airlines   atomic.Int64
	reviews    atomic.Int64
	sinkErrors atomic.Int64
	discovered atomic.Int64

	mu           sync.Mutex
	terminations map[models.TerminationReason]int64
}

func (s *crawlStats) recordTermination(reason models.TerminationReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminations == nil {
		s.terminations = make(map[models.TerminationReason]int64)
	}
	s.terminations[reason]++
}

// New creates a Crawler for one source
func New(appCfg *config.AppConfig, srcCfg *config.SourceConfig, sourceName string, opts Options, baseLogger *logrus.Entry) (*Crawler, error) {
	if opts.Store == nil || opts.Fetcher == nil || opts.Sink == nil {
		return nil, fmt.Errorf("crawler for source '%s' needs a store, a fetcher and a sink", sourceName)
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	runID := uuid.NewString()
	logger := baseLogger.WithFields(logrus.Fields{"source": sourceName, "run_id": runID})

	sel := parse.DefaultSelectors().WithDiscovery(srcCfg.IndexLinkSelector, srcCfg.EntryMarker)

	return &Crawler{
		log:              logger,
		appCfg:           appCfg,
		srcCfg:           srcCfg,
		sourceName:       sourceName,
		runID:            runID,
		resume:           opts.Resume,
		store:            opts.Store,
		frontier:         queue.NewFrontier(logger),
		fetcher:          opts.Fetcher,
		parser:           parse.NewParser(sel, logger),
		sink:             opts.Sink,
		metrics:          m,
		progressInterval: DefaultProgressInterval,
	}, nil
}

// RunID identifies this crawl in logs and the summary
func (c *Crawler) RunID() string {
	return c.runID
}

// Run crawls the source until every chain has terminated or ctx ends.
// Only an unreachable index (or an index without airline entries) is fatal;
// the returned error is otherwise the context's error, nil on a complete crawl.
func (c *Crawler) Run(ctx context.Context) (*Summary, error) {
	startedAt := time.Now()
	runLog := c.log.WithFields(logrus.Fields{"index_url": c.srcCfg.IndexURL, "resume": c.resume})
	runLog.Infof("Crawl starting with %d worker(s)...", c.appCfg.NumWorkers)

	var crawlCtx context.Context
	var cancel context.CancelFunc
	if c.appCfg.GlobalCrawlTimeout > 0 {
		crawlCtx, cancel = context.WithTimeout(ctx, c.appCfg.GlobalCrawlTimeout)
	} else {
		crawlCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Requeue before seeding so freshly seeded entries are not picked up twice
	requeued, err := c.requeueIncomplete(crawlCtx, runLog)
	if err != nil {
		c.frontier.Close()
		return c.summary(startedAt), err
	}

	discovered, seeded, err := c.seedFromIndex(crawlCtx, runLog)
	if err != nil {
		c.frontier.Close()
		runLog.Errorf("Cannot start crawl: %v", err)
		return c.summary(startedAt), err
	}
	if discovered == 0 && requeued == 0 {
		c.frontier.Close()
		return c.summary(startedAt), fmt.Errorf("%w: index %s", utils.ErrNoEntryPoints, c.srcCfg.IndexURL)
	}
	if seeded+requeued == 0 {
		runLog.Info("No airline entry needed crawling (already visited or out of scope). Nothing to do.")
		c.frontier.Close()
		return c.summary(startedAt), nil
	}
	runLog.Infof("Seeded %d airline entry page(s), requeued %d page(s).", seeded, requeued)

	var workers errgroup.Group
	for i := 1; i <= c.appCfg.NumWorkers; i++ {
		workerLog := c.log.WithField("worker_id", i)
		workers.Go(func() error {
			c.worker(crawlCtx, workerLog)
			return nil
		})
	}

	stopProgress := make(chan struct{})
	go c.reportProgress(crawlCtx, stopProgress)

	allDone := make(chan struct{})
	go func() { c.wg.Wait(); close(allDone) }()
	select {
	case <-allDone:
		runLog.Info("All work items processed.")
	case <-crawlCtx.Done():
		runLog.Warnf("Crawl context done (%v) with work outstanding. Shutting down.", crawlCtx.Err())
	}

	c.frontier.Close()
	_ = workers.Wait()
	close(stopProgress)

	// Items still queued after a cancellation stay pending in the state store
	for {
		item, ok := c.frontier.Pop()
		if !ok {
			break
		}
		c.endChain(models.TerminatedCancelled, c.log.WithField("url", item.URL))
		c.wg.Done()
	}
	<-allDone

	summary := c.summary(startedAt)
	summary.Log(c.log)
	return summary, crawlCtx.Err()
}

// requeueIncomplete loads pages a previous run left pending or failed
func (c *Crawler) requeueIncomplete(ctx context.Context, log *logrus.Entry) (int, error) {
	if !c.resume {
		return 0, nil
	}
	log.Info("Resume mode: scanning crawl state for incomplete pages...")
	requeued, scanErrors, err := c.store.RequeueIncomplete(ctx, func(item models.WorkItem) error {
		if !c.enqueue(item) {
			return errFrontierClosed
		}
		return nil
	})
	if scanErrors > 0 {
		log.Warnf("%d crawl state entries could not be decoded and were skipped.", scanErrors)
	}
	if err != nil {
		if ctx.Err() != nil {
			return requeued, ctx.Err()
		}
		log.Errorf("Error during resume scan, continuing with %d requeued page(s): %v", requeued, err)
	}
	log.Infof("Resume scan complete. Requeued %d page(s).", requeued)
	return requeued, nil
}

// seedFromIndex fetches the index page and enqueues every airline entry it links to
func (c *Crawler) seedFromIndex(ctx context.Context, log *logrus.Entry) (discovered, seeded int, err error) {
	fetchStart := time.Now()
	page, err := c.fetcher.Fetch(ctx, c.srcCfg.IndexURL)
	if err != nil {
		c.metrics.ObservePage(metrics.OutcomeFailure, models.PageKindIndex.String(), time.Since(fetchStart))
		return 0, 0, fmt.Errorf("fetching index %s: %w", c.srcCfg.IndexURL, err)
	}
	c.metrics.ObservePage(metrics.OutcomeSuccess, models.PageKindIndex.String(), time.Since(fetchStart))

	doc, err := parse.NewDocument(page.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing index %s: %w", c.srcCfg.IndexURL, err)
	}
	indexURL, err := url.Parse(page.URL)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: index URL %q: %w", utils.ErrParsing, page.URL, err)
	}

	entries := c.parser.DiscoverAirlineURLs(doc, indexURL)
	log.Infof("Discovered %d airline entry page(s) on the index.", len(entries))
	if limit := c.srcCfg.MaxAirlines; limit > 0 && len(entries) > limit {
		log.Infof("Limiting crawl to the first %d airline(s).", limit)
		entries = entries[:limit]
	}
	c.stats.discovered.Store(int64(len(entries)))

	for _, entry := range entries {
		item := models.WorkItem{URL: entry, Kind: models.PageKindFirst, Page: 1}
		reason, queued := c.schedule(item, log)
		if queued {
			seeded++
			continue
		}
		if reason == models.TerminatedCancelled {
			return len(entries), seeded, ctx.Err()
		}
		log.WithFields(logrus.Fields{"url": entry, "reason": reason}).Debug("Airline entry not queued")
	}
	return len(entries), seeded, nil
}

// schedule marks item visited and enqueues it. When the item is not queued
// the returned reason says why.
func (c *Crawler) schedule(item models.WorkItem, log *logrus.Entry) (models.TerminationReason, bool) {
	key, parsed, err := parse.ParseAndNormalize(item.URL)
	if err != nil {
		log.Warnf("Not queueing unusable URL: %v", err)
		return models.TerminatedPageError, false
	}
	if domain := c.srcCfg.AllowedDomain; domain != "" && !strings.EqualFold(parsed.Hostname(), domain) {
		log.WithField("url", item.URL).Debugf("Not queueing: %v", utils.ErrScopeViolation)
		return models.TerminatedOutOfScope, false
	}
	added, err := c.store.MarkPageVisited(key, item)
	if err != nil {
		log.WithField("url", key).Errorf("Failed to mark page visited: %v", err)
		return models.TerminatedStateError, false
	}
	if !added {
		return models.TerminatedAlreadySeen, false
	}
	if !c.enqueue(item) {
		return models.TerminatedCancelled, false
	}
	return "", true
}

// enqueue adds item to the frontier and counts it as outstanding work
func (c *Crawler) enqueue(item models.WorkItem) bool {
	c.wg.Add(1)
	if !c.frontier.Add(item) {
		c.wg.Done()
		return false
	}
	return true
}

// worker runs the loop for a single worker goroutine, processing items from the frontier
func (c *Crawler) worker(ctx context.Context, workerLog *logrus.Entry) {
	workerLog.Debug("Worker starting")
	defer workerLog.Debug("Worker finished")

	for {
		if ctx.Err() != nil {
			return
		}
		item, ok := c.frontier.Pop()
		if !ok {
			return
		}
		c.processPage(ctx, item, workerLog)
	}
}

// reportProgress logs crawl counters every progressInterval until stop is closed
func (c *Crawler) reportProgress(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(c.progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			visited, err := c.store.GetVisitedCount()
			if err != nil {
				visited = -1
			}
			c.log.WithFields(logrus.Fields{
				"visited_db":      visited,
				"queue_len":       c.frontier.Len(),
				"processed_pages": c.stats.processed.Load(),
				"failed_pages":    c.stats.failed.Load(),
				"airlines":        c.stats.airlines.Load(),
				"reviews":         c.stats.reviews.Load(),
			}).Info("Crawl Progress")
		}
	}
}

// processPage fetches one page of an airline chain, emits its records and
// schedules the next page
func (c *Crawler) processPage(ctx context.Context, item models.WorkItem, workerLog *logrus.Entry) {
	taskLog := workerLog.WithFields(logrus.Fields{"url": item.URL, "kind": item.Kind.String(), "page": item.Page})
	if item.Airline != "" {
		taskLog = taskLog.WithField("airline", item.Airline)
	}
	startTime := time.Now()

	taskCtx := ctx
	if c.appCfg.PerPageTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, c.appCfg.PerPageTimeout)
		defer cancel()
	}

	var (
		taskErr      error
		key          string
		airline      = item.Airline
		reviewCount  int
		chainSettled bool // next page queued or chain end recorded
	)
	settle := func(reason models.TerminationReason) {
		chainSettled = true
		if reason != "" {
			c.endChain(reason, taskLog)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			taskErr = fmt.Errorf("panic: %v", r)
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in processPage")
			if !chainSettled {
				settle(models.TerminatedPageError)
			}
		}

		entry := &models.PageDBEntry{
			LastAttempt: time.Now(),
			Kind:        item.Kind,
			Airline:     airline,
			Page:        item.Page,
		}
		logFields := logrus.Fields{"duration": time.Since(startTime).String()}
		if taskErr != nil {
			entry.Status = models.PageStatusFailure
			entry.ErrorType = utils.CategorizeError(taskErr)
			c.stats.failed.Add(1)
			c.metrics.ObservePageError(entry.ErrorType)
			logFields["category"] = entry.ErrorType
			taskLog.WithFields(logFields).Warnf("Page failed: %v", taskErr)
		} else {
			entry.Status = models.PageStatusSuccess
			entry.ProcessedAt = entry.LastAttempt
			entry.Reviews = reviewCount
			logFields["reviews"] = reviewCount
			taskLog.WithFields(logFields).Info("Page processed")
		}

		if key != "" {
			if err := c.store.UpdatePageStatus(key, entry); err != nil {
				taskLog.Errorf("Failed to update page status to '%s': %v", entry.Status, err)
			}
		}
		c.stats.processed.Add(1)
		c.wg.Done()
	}()

	var err error
	key, _, err = parse.ParseAndNormalize(item.URL)
	if err != nil {
		taskErr = err
		settle(models.TerminatedPageError)
		return
	}

	fetchStart := time.Now()
	page, err := c.fetcher.Fetch(taskCtx, item.URL)
	if err != nil {
		outcome := metrics.OutcomeFailure
		if errors.Is(err, utils.ErrRobotsDisallowed) {
			outcome = metrics.OutcomeSkipped
		}
		c.metrics.ObservePage(outcome, item.Kind.String(), time.Since(fetchStart))
		taskErr = err
		if ctx.Err() != nil {
			settle(models.TerminatedCancelled)
		} else {
			settle(models.TerminatedFetchFailure)
		}
		return
	}
	c.metrics.ObservePage(metrics.OutcomeSuccess, item.Kind.String(), time.Since(fetchStart))

	doc, err := parse.NewDocument(page.Body)
	if err != nil {
		taskErr = err
		settle(models.TerminatedPageError)
		return
	}
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		taskErr = fmt.Errorf("%w: final URL %q: %w", utils.ErrParsing, page.URL, err)
		settle(models.TerminatedPageError)
		return
	}

	airline = c.resolveAirline(taskCtx, doc, item, taskLog)
	reviews := c.parser.ParseReviews(doc, airline)
	for _, rec := range reviews {
		c.emitReview(taskCtx, rec, taskLog)
	}
	reviewCount = len(reviews)

	// An interrupted page is recorded as failed so a resumed crawl visits it again
	if err := taskCtx.Err(); err != nil {
		taskErr = err
		settle(models.TerminatedCancelled)
		return
	}

	settle(c.advanceChain(item, airline, doc, pageURL, taskLog))
}

// resolveAirline returns the airline name for the page's reviews. On a first
// page it also emits the airline profile.
func (c *Crawler) resolveAirline(ctx context.Context, doc *goquery.Document, item models.WorkItem, log *logrus.Entry) string {
	if item.Kind.IsFirstPage() {
		rec, ok := c.parser.ParseAirline(doc)
		if !ok {
			log.Warn("First page has no airline heading. No airline record emitted.")
			return item.Airline
		}
		c.emitAirline(ctx, rec, log)
		return rec.Name
	}
	if name := c.parser.AirlineName(doc); name != "" {
		return name
	}
	log.Debug("Page has no airline heading, using the chain's airline name")
	return item.Airline
}

func (c *Crawler) emitAirline(ctx context.Context, rec models.AirlineRecord, log *logrus.Entry) {
	first, err := c.store.MarkAirlineEmitted(rec.Name)
	if err != nil {
		log.Warnf("Could not record airline '%s' as emitted, writing it anyway: %v", rec.Name, err)
	} else if !first {
		log.Debugf("Airline '%s' already emitted, skipping profile", rec.Name)
		return
	}

	if err := c.sink.UpsertAirline(ctx, rec); err != nil {
		c.sinkFailure(metrics.RecordAirline, err, log)
		// The mark claims the profile was written; drop it so a resumed run retries
		if first {
			if fErr := c.store.ForgetAirline(rec.Name); fErr != nil {
				log.Warnf("Could not clear emitted mark for airline '%s': %v", rec.Name, fErr)
			}
		}
		return
	}
	c.stats.airlines.Add(1)
	c.metrics.ObserveRecord(metrics.RecordAirline)
}

func (c *Crawler) emitReview(ctx context.Context, rec models.ReviewRecord, log *logrus.Entry) {
	if err := c.sink.InsertReview(ctx, rec); err != nil {
		c.sinkFailure(metrics.RecordReview, err, log.WithField("review_id", rec.ReviewID))
		return
	}
	c.stats.reviews.Add(1)
	c.metrics.ObserveRecord(metrics.RecordReview)
}

// sinkFailure counts a rejected record. The crawl carries on.
func (c *Crawler) sinkFailure(recordType string, err error, log *logrus.Entry) {
	c.stats.sinkErrors.Add(1)
	c.metrics.ObserveSinkError(c.sink.Name(), recordType)
	log.WithField("category", utils.CategorizeError(err)).Errorf("Sink rejected %s record: %v", recordType, err)
}

// advanceChain locates the next page and queues it. Returns the termination
// reason, or "" when the chain continues.
func (c *Crawler) advanceChain(item models.WorkItem, airline string, doc *goquery.Document, pageURL *url.URL, log *logrus.Entry) models.TerminationReason {
	state := models.ChainSubsequentPage
	if item.Kind.IsFirstPage() {
		state = models.ChainFirstPage
	}

	next, ok := c.parser.FindNextPage(doc, pageURL)
	log.Debugf("Chain %s -> %s", state, state.Next(ok))
	if !ok {
		return models.TerminatedNoNextPage
	}
	if limit := c.srcCfg.MaxPagesPerAirline; limit > 0 && item.Page >= limit {
		return models.TerminatedPageLimit
	}

	nextItem := models.WorkItem{
		URL:     next,
		Kind:    models.PageKindSubsequent,
		Airline: airline,
		Page:    item.Page + 1,
	}
	reason, queued := c.schedule(nextItem, log)
	if !queued {
		return reason
	}
	log.WithField("next_url", next).Debug("Queued next page")
	return ""
}

func (c *Crawler) endChain(reason models.TerminationReason, log *logrus.Entry) {
	c.stats.recordTermination(reason)
	c.metrics.ObserveChainEnd(string(reason))
	log.WithField("reason", reason).Info("Airline chain terminated")
}

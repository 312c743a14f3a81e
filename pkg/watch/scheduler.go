// Package watch re-crawls review sources on a fixed interval so the exported
// records keep up with newly published reviews.
package watch

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/orchestrate"
)

const (
	minTick = time.Minute
	maxTick = 10 * time.Minute
)

// CrawlFunc crawls the given sources and reports one result per source
type CrawlFunc func(ctx context.Context, sourceKeys []string) []orchestrate.SourceResult

// OrchestratorCrawl returns a CrawlFunc running fresh crawls through an Orchestrator
func OrchestratorCrawl(appCfg *config.AppConfig, opts orchestrate.Options, log *logrus.Entry) CrawlFunc {
	opts.Resume = false
	return func(ctx context.Context, sourceKeys []string) []orchestrate.SourceResult {
		return orchestrate.NewOrchestrator(ctx, appCfg, sourceKeys, opts, log).Run()
	}
}

// Scheduler runs due sources every tick until its context is cancelled
type Scheduler struct {
	sourceKeys []string
	interval   time.Duration
	tick       time.Duration
	crawl      CrawlFunc
	state      *StateStore
	log        *logrus.Entry
	now        func() time.Time
}

// NewScheduler creates a scheduler whose run history lives in stateDir
func NewScheduler(stateDir string, sourceKeys []string, interval time.Duration, crawl CrawlFunc, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		sourceKeys: sourceKeys,
		interval:   interval,
		tick:       tickInterval(interval),
		crawl:      crawl,
		state:      NewStateStore(stateDir),
		log:        log,
		now:        time.Now,
	}
}

// Run blocks until ctx is done. Sources that are due run immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.state.Load(); err != nil {
		s.log.Warnf("Failed to load watch state, starting fresh: %v", err)
	}

	s.log.Infof("Watching %d source(s) every %s", len(s.sourceKeys), FormatInterval(s.interval))
	s.logSchedule()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		s.runDue(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("Watch scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := s.now()
	var due []string
	for _, key := range s.sourceKeys {
		if s.state.Due(key, s.interval, now) {
			due = append(due, key)
		}
	}
	if len(due) == 0 {
		s.logNextRun()
		return
	}

	s.log.Infof("Crawling %d due source(s): %v", len(due), due)
	results := s.crawl(ctx, due)

	finished := s.now()
	for _, r := range results {
		if ctx.Err() != nil && !r.Success {
			// Interrupted runs stay due
			continue
		}
		s.state.Record(r, finished)
	}
	if err := s.state.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}
	s.logNextRun()
}

func (s *Scheduler) logSchedule() {
	now := s.now()
	for _, key := range s.sourceKeys {
		st, ok := s.state.Get(key)
		if !ok {
			s.log.Infof("  %s: never crawled, due now", key)
			continue
		}
		status := "ok"
		if !st.LastRunSuccess {
			status = "failed"
		}
		s.log.Infof("  %s: last run %s (%s, %d reviews), next run %s",
			key, st.LastRunTime.Format(time.RFC3339), status, st.Reviews,
			s.state.NextRun(key, s.interval, now).Format(time.RFC3339))
	}
}

func (s *Scheduler) logNextRun() {
	now := s.now()
	var (
		nextKey string
		nextAt  time.Time
	)
	for _, key := range s.sourceKeys {
		at := s.state.NextRun(key, s.interval, now)
		if nextKey == "" || at.Before(nextAt) {
			nextKey, nextAt = key, at
		}
	}
	if nextKey == "" {
		return
	}
	until := max(nextAt.Sub(now), 0)
	s.log.Infof("Next crawl: %s in %v", nextKey, until.Round(time.Second))
}

// tickInterval checks for due sources ten times per interval, within [1m, 10m]
func tickInterval(interval time.Duration) time.Duration {
	return min(max(interval/10, minTick), maxTick)
}

var dayInterval = regexp.MustCompile(`^(\d+)d(.*)$`)

// ParseInterval parses a Go duration, also accepting a leading day count
// such as "7d" or "1d12h".
func ParseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("interval must be positive: %s", s)
		}
		return d, nil
	}
	m := dayInterval.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
	}
	days, _ := strconv.Atoi(m[1])
	d := time.Duration(days) * 24 * time.Hour
	if m[2] != "" {
		extra, err := time.ParseDuration(m[2])
		if err != nil {
			return 0, fmt.Errorf("invalid interval format: %s", s)
		}
		d += extra
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive: %s", s)
	}
	return d, nil
}

// FormatInterval renders a duration the way ParseInterval accepts it
func FormatInterval(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	rest := d % (24 * time.Hour)
	hours := int(rest / time.Hour)
	mins := int(rest%time.Hour) / int(time.Minute)

	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case days > 0:
		return fmt.Sprintf("%dd", days)
	case hours > 0 && mins > 0:
		return fmt.Sprintf("%dh%dm", hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case mins > 0:
		return fmt.Sprintf("%dm", mins)
	default:
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
}

package crawler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// SummaryFileName is the file Summary.WriteYAML is conventionally written to
const SummaryFileName = "crawl_summary.yaml"

// Summary describes the outcome of one Run
type Summary struct {
	RunID      string        `yaml:"run_id"`
	Source     string        `yaml:"source"`
	IndexURL   string        `yaml:"index_url"`
	Sink       string        `yaml:"sink"`
	Resumed    bool          `yaml:"resumed"`
	StartedAt  time.Time     `yaml:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at"`
	Duration   time.Duration `yaml:"-"`

	AirlinesDiscovered int64 `yaml:"airlines_discovered"`
	Airlines           int64 `yaml:"airlines"`
	Reviews            int64 `yaml:"reviews"`
	Pages              int64 `yaml:"pages"`
	FailedPages        int64 `yaml:"failed_pages"`
	SinkErrors         int64 `yaml:"sink_errors"`
	ChainsTerminated   int64 `yaml:"chains_terminated"`

	// Terminations counts ended chains by reason
	Terminations map[string]int64 `yaml:"terminations,omitempty"`
}

func (c *Crawler) summary(startedAt time.Time) *Summary {
	finished := time.Now()
	s := &Summary{
		RunID:              c.runID,
		Source:             c.sourceName,
		IndexURL:           c.srcCfg.IndexURL,
		Sink:               c.sink.Name(),
		Resumed:            c.resume,
		StartedAt:          startedAt,
		FinishedAt:         finished,
		Duration:           finished.Sub(startedAt),
		AirlinesDiscovered: c.stats.discovered.Load(),
		Airlines:           c.stats.airlines.Load(),
		Reviews:            c.stats.reviews.Load(),
		Pages:              c.stats.processed.Load(),
		FailedPages:        c.stats.failed.Load(),
		SinkErrors:         c.stats.sinkErrors.Load(),
		Terminations:       make(map[string]int64),
	}

	c.stats.mu.Lock()
	for reason, n := range c.stats.terminations {
		s.Terminations[string(reason)] = n
		s.ChainsTerminated += n
	}
	c.stats.mu.Unlock()
	return s
}

// Log writes the summary as a block of log lines
func (s *Summary) Log(log *logrus.Entry) {
	log.Info("========================================================================")
	log.Info("CRAWL FINISHED")
	log.Infof("Duration:  %v", s.Duration.Round(time.Millisecond))
	log.Infof("Records:   %d airline(s), %d review(s), %d sink error(s)", s.Airlines, s.Reviews, s.SinkErrors)
	log.Infof("Pages:     %d processed, %d failed", s.Pages, s.FailedPages)

	reasons := make([]string, 0, len(s.Terminations))
	for reason := range s.Terminations {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		log.Infof("Chains %-16s %d", reason+":", s.Terminations[reason])
	}
	log.Info("========================================================================")
}

// WriteYAML writes the summary to path, creating its directory
func (s *Summary) WriteYAML(path string) error {
	out := struct {
		Summary  `yaml:",inline"`
		Duration string `yaml:"duration"`
	}{Summary: *s, Duration: s.Duration.String()}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal crawl summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create summary directory: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write crawl summary '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}

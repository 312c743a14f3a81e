package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// jsonlFile is one append-only JSON Lines file guarded by its own mutex
type jsonlFile struct {
	mu   sync.Mutex
	path string
	file *os.File
	enc  *json.Encoder
}

// openJSONLFile appends when resuming and truncates otherwise
func openJSONLFile(path string, resume bool) (*jsonlFile, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open '%s': %w", utils.ErrFilesystem, path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &jsonlFile{path: path, file: f, enc: enc}, nil
}

func (j *jsonlFile) write(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return fmt.Errorf("%w: '%s' is closed", utils.ErrSink, j.path)
	}
	if err := j.enc.Encode(v); err != nil {
		return fmt.Errorf("%w: write '%s': %w", utils.ErrSink, j.path, err)
	}
	return nil
}

func (j *jsonlFile) close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	syncErr := j.file.Sync()
	closeErr := j.file.Close()
	j.file = nil
	if syncErr != nil {
		return fmt.Errorf("%w: sync '%s': %w", utils.ErrFilesystem, j.path, syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close '%s': %w", utils.ErrFilesystem, j.path, closeErr)
	}
	return nil
}

// JSONLSink writes airlines and reviews to two JSON Lines files
type JSONLSink struct {
	airlines *jsonlFile
	reviews  *jsonlFile
	log      *logrus.Entry
}

// NewJSONLSink creates outputDir if needed and opens both files
func NewJSONLSink(outputDir string, cfg config.JSONLConfig, resume bool, log *logrus.Entry) (*JSONLSink, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir '%s': %w", utils.ErrFilesystem, outputDir, err)
	}
	airlines, err := openJSONLFile(filepath.Join(outputDir, cfg.AirlinesFile), resume)
	if err != nil {
		return nil, err
	}
	reviews, err := openJSONLFile(filepath.Join(outputDir, cfg.ReviewsFile), resume)
	if err != nil {
		airlines.close()
		return nil, err
	}

	sinkLog := log.WithField("sink", "jsonl")
	sinkLog.WithFields(logrus.Fields{"airlines": airlines.path, "reviews": reviews.path, "resume": resume}).Info("JSONL output opened")
	return &JSONLSink{airlines: airlines, reviews: reviews, log: sinkLog}, nil
}

// Name implements Sink
func (s *JSONLSink) Name() string { return "jsonl" }

// UpsertAirline implements Sink. The file is append-only; deduplication by name
// happens upstream in the crawl-state store.
func (s *JSONLSink) UpsertAirline(_ context.Context, rec models.AirlineRecord) error {
	return s.airlines.write(rec)
}

// InsertReview implements Sink
func (s *JSONLSink) InsertReview(_ context.Context, rec models.ReviewRecord) error {
	return s.reviews.write(rec)
}

// Close implements Sink
func (s *JSONLSink) Close() error {
	return errors.Join(s.airlines.close(), s.reviews.close())
}

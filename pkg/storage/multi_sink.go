package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/review-scraper/pkg/models"
)

// MultiSink fans every record out to several sinks concurrently. A failure in
// one sink does not stop the others; all errors are joined.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. With a single sink it is returned unwrapped.
func NewMultiSink(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &MultiSink{sinks: sinks}
}

// Name implements Sink
func (m *MultiSink) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m *MultiSink) fanOut(ctx context.Context, fn func(context.Context, Sink) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range m.sinks {
		s := s
		g.Go(func() error {
			if err := fn(ctx, s); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// UpsertAirline implements Sink
func (m *MultiSink) UpsertAirline(ctx context.Context, rec models.AirlineRecord) error {
	return m.fanOut(ctx, func(ctx context.Context, s Sink) error { return s.UpsertAirline(ctx, rec) })
}

// InsertReview implements Sink
func (m *MultiSink) InsertReview(ctx context.Context, rec models.ReviewRecord) error {
	return m.fanOut(ctx, func(ctx context.Context, s Sink) error { return s.InsertReview(ctx, rec) })
}

// Close implements Sink
func (m *MultiSink) Close() error {
	errs := make([]error, 0, len(m.sinks))
	for _, s := range m.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

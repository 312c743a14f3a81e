package storage

import (
	"context"

	"github.com/Sriram-PR/review-scraper/pkg/models"
)

// Sink persists parsed records. Implementations serialize their own writes and
// are safe for concurrent use by crawl workers.
type Sink interface {
	// UpsertAirline writes an airline profile, replacing image and review count
	// of an existing airline with the same name
	UpsertAirline(ctx context.Context, rec models.AirlineRecord) error

	// InsertReview appends one review
	InsertReview(ctx context.Context, rec models.ReviewRecord) error

	// Name identifies the sink in logs and metrics
	Name() string

	Close() error
}

package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/review-scraper/pkg/models"
)

// PageStore tracks which page URLs a crawl has visited and how they ended
type PageStore interface {
	// MarkPageVisited records item as pending under its normalized URL.
	// Returns true if the URL was newly added, false if it was already known.
	MarkPageVisited(normalizedPageURL string, item models.WorkItem) (bool, error)

	// CheckPageStatus returns the recorded status and entry for a page URL.
	// Unknown URLs report PageStatusNotFound with a nil entry.
	CheckPageStatus(normalizedPageURL string) (models.PageStatus, *models.PageDBEntry, error)

	// UpdatePageStatus overwrites the entry for a page URL
	UpdatePageStatus(normalizedPageURL string, entry *models.PageDBEntry) error
}

// AirlineStore remembers which airline profiles were already emitted, so a
// resumed crawl does not write them twice
type AirlineStore interface {
	MarkAirlineEmitted(name string) (bool, error)

	// ForgetAirline drops the emitted mark, so a later run writes the
	// profile again. Unknown names are not an error.
	ForgetAirline(name string) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// GetVisitedCount returns the number of keys written by this store
	GetVisitedCount() (int, error)

	// RequeueIncomplete calls yield for every page left pending or failed by a
	// previous run. Stops early if yield returns an error or ctx is done.
	RequeueIncomplete(ctx context.Context, yield func(models.WorkItem) error) (requeued int, scanErrors int, err error)

	// WriteVisitedLog writes every visited page URL with its status to filePath
	WriteVisitedLog(ctx context.Context, filePath string) error

	// RunGC runs periodic value-log garbage collection until ctx is done
	RunGC(ctx context.Context, interval time.Duration)

	Close() error
}

// CrawlStateStore combines all store interfaces for the crawl driver
type CrawlStateStore interface {
	PageStore
	AirlineStore
	StoreAdmin
}

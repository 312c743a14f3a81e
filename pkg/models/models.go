package models

import "time"

// PageKind tells the crawler whether a page opens an airline's review chain
type PageKind string

const (
	PageKindFirst      PageKind = "first"      // Entry page of an airline; carries the profile
	PageKindSubsequent PageKind = "subsequent" // Paginated continuation of an airline's reviews
	PageKindIndex      PageKind = "index"      // The A-Z index page used for discovery
)

// String implements fmt.Stringer for logging
func (k PageKind) String() string {
	if k == "" {
		return "unset"
	}
	return string(k)
}

// IsFirstPage reports whether an AirlineRecord should be extracted from this page
func (k PageKind) IsFirstPage() bool {
	return k == PageKindFirst
}

// WorkItem is a single frontier entry: one page of one airline's chain
type WorkItem struct {
	URL     string
	Kind    PageKind
	Airline string // Airline name known so far; empty until the first page is parsed
	Page    int    // 1-based position in the airline's pagination chain
}

// PageDBEntry stores the result of processing a page URL in the crawl-state store
type PageDBEntry struct {
	Status      PageStatus `json:"status"`                 // "pending", "success" or "failure"
	ErrorType   string     `json:"error_type,omitempty"`   // Error category (on failure)
	ProcessedAt time.Time  `json:"processed_at,omitempty"` // Timestamp of successful processing
	LastAttempt time.Time  `json:"last_attempt"`           // Timestamp of the last processing attempt
	Kind        PageKind   `json:"kind"`
	Airline     string     `json:"airline,omitempty"`
	Page        int        `json:"page"`
	Reviews     int        `json:"reviews,omitempty"` // Review fragments extracted on success
}

// WorkItem rebuilds the frontier entry this record was created for
func (e *PageDBEntry) WorkItem(url string) WorkItem {
	kind := e.Kind
	if kind == "" {
		kind = PageKindFirst
	}
	page := e.Page
	if page <= 0 {
		page = 1
	}
	return WorkItem{URL: url, Kind: kind, Airline: e.Airline, Page: page}
}

package models

// PageStatus represents the processing status of a page in the crawl-state store
type PageStatus string

const (
	PageStatusUnset    PageStatus = ""          // Zero value = unset/unknown
	PageStatusPending  PageStatus = "pending"   // Page queued but not processed
	PageStatusSuccess  PageStatus = "success"   // Page processed successfully
	PageStatusFailure  PageStatus = "failure"   // Page processing failed
	PageStatusNotFound PageStatus = "not_found" // Page not in database
	PageStatusDBError  PageStatus = "db_error"  // Database error occurred
)

// String implements fmt.Stringer for logging
func (s PageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s PageStatus) IsValid() bool {
	switch s {
	case PageStatusPending, PageStatusSuccess, PageStatusFailure:
		return true
	}
	return false
}

// NeedsRequeue reports whether a resumed crawl should visit the page again
func (s PageStatus) NeedsRequeue() bool {
	return s == PageStatusPending || s == PageStatusFailure || s == PageStatusUnset
}

// ChainState is the position of an airline's crawl chain in its state machine:
// FirstPage -> SubsequentPage* -> Terminal
type ChainState int

const (
	ChainFirstPage ChainState = iota
	ChainSubsequentPage
	ChainTerminal
)

// String implements fmt.Stringer for logging
func (s ChainState) String() string {
	switch s {
	case ChainFirstPage:
		return "first_page"
	case ChainSubsequentPage:
		return "subsequent_page"
	case ChainTerminal:
		return "terminal"
	}
	return "unknown"
}

// Next returns the state after a page completes; hasNext reports whether a
// further page was located and enqueued
func (s ChainState) Next(hasNext bool) ChainState {
	if s == ChainTerminal || !hasNext {
		return ChainTerminal
	}
	return ChainSubsequentPage
}

// TerminationReason labels why an airline chain stopped
type TerminationReason string

const (
	TerminatedNoNextPage   TerminationReason = "no_next_page"
	TerminatedFetchFailure TerminationReason = "fetch_failure"
	TerminatedPageLimit    TerminationReason = "page_limit"
	TerminatedAlreadySeen  TerminationReason = "already_visited"
	TerminatedCancelled    TerminationReason = "cancelled"
	TerminatedPageError    TerminationReason = "page_error"   // Page fetched but could not be processed
	TerminatedStateError   TerminationReason = "state_error"  // Crawl-state store rejected the next page
	TerminatedOutOfScope   TerminationReason = "out_of_scope" // Link leaves the source's allowed domain
)

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObservePage(OutcomeSuccess, "first", 120*time.Millisecond)
	m.ObservePage(OutcomeSuccess, "first", 0)
	m.ObservePage(OutcomeFailure, "subsequent", 0)
	m.ObserveRecord(RecordAirline)
	m.ObserveRecord(RecordReview)
	m.ObserveRecord(RecordReview)
	m.ObserveSinkError("postgres", RecordReview)
	m.ObserveChainEnd("no_next_page")
	m.ObservePageError("HTTP_404")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetched.WithLabelValues(OutcomeSuccess, "first")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesFetched.WithLabelValues(OutcomeFailure, "subsequent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsEmitted.WithLabelValues(RecordAirline)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsEmitted.WithLabelValues(RecordReview)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrors.WithLabelValues("postgres", RecordReview)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChainsTerminated.WithLabelValues("no_next_page")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PageErrors.WithLabelValues("HTTP_404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchDuration))
}

func TestMetrics_HandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRecord(RecordReview)

	server := httptest.NewServer(m.Handler())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `review_scraper_records_emitted_total{type="review"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveRecord(RecordAirline)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.RecordsEmitted.WithLabelValues(RecordAirline)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RecordsEmitted.WithLabelValues(RecordAirline)))
}

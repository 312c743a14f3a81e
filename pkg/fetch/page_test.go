package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

const testAgent = "review-scraper-test/1.0"

func newTestPageClient(t *testing.T, server *httptest.Server, robots bool) *PageClient {
	t.Helper()
	log := testLogger()
	f := NewFetcher(server.Client(), fastPolicy(1), log)
	opts := PageClientOptions{UserAgent: testAgent, SemaphoreTimeout: time.Second}
	if robots {
		opts.Robots = NewRobotsGate(f, testAgent, log)
	}
	return NewPageClient(f, NewRateLimiter(0, log), NewHostSemaphorePool(2, log), semaphore.NewWeighted(4), opts, log)
}

func TestPageClient_FetchFollowsRedirects(t *testing.T) {
	var gotAgent atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/airline-reviews/air-test/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/airline-reviews/air-test/", func(w http.ResponseWriter, r *http.Request) {
		gotAgent.Store(r.UserAgent())
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><h1>Air Test</h1></html>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	page, err := newTestPageClient(t, server, false).Fetch(context.Background(), server.URL+"/old")

	require.NoError(t, err)
	assert.Equal(t, server.URL+"/airline-reviews/air-test/", page.URL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "Air Test")
	assert.Equal(t, testAgent, gotAgent.Load())
}

func TestPageClient_FetchNotFound(t *testing.T) {
	server, hits := sequenceServer(t, http.StatusNotFound)

	page, err := newTestPageClient(t, server, false).Fetch(context.Background(), server.URL+"/missing")

	assert.Nil(t, page)
	assert.ErrorIs(t, err, utils.ErrClientHTTPError)
	assert.Equal(t, int32(1), hits.Load())
}

func TestPageClient_FetchRejectsBadURL(t *testing.T) {
	server, _ := sequenceServer(t, 200)

	_, err := newTestPageClient(t, server, false).Fetch(context.Background(), "mailto:someone@example.com")

	assert.ErrorIs(t, err, utils.ErrParsing)
}

func TestPageClient_RobotsDisallow(t *testing.T) {
	var pageHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		_, _ = w.Write([]byte("<html></html>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := newTestPageClient(t, server, true)

	_, err := client.Fetch(context.Background(), server.URL+"/private/page")
	assert.ErrorIs(t, err, utils.ErrRobotsDisallowed)

	_, err = client.Fetch(context.Background(), server.URL+"/airline-reviews/air-test/")
	assert.NoError(t, err)
	assert.Equal(t, int32(1), pageHits.Load())
}

func TestRobotsGate_MissingRobotsAllowsAll(t *testing.T) {
	var robotsHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		robotsHits.Add(1)
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	log := testLogger()
	gate := NewRobotsGate(NewFetcher(server.Client(), fastPolicy(0), log), testAgent, log)
	target, err := url.Parse(server.URL + "/anything")
	require.NoError(t, err)

	assert.True(t, gate.Allowed(context.Background(), target, testAgent))
	assert.True(t, gate.Allowed(context.Background(), target, testAgent))
	assert.Equal(t, int32(1), robotsHits.Load(), "robots.txt should be cached per host")
}

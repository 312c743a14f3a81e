package queue

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/review-scraper/pkg/models"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func page(url string, n int) models.WorkItem {
	kind := models.PageKindSubsequent
	if n == 1 {
		kind = models.PageKindFirst
	}
	return models.WorkItem{URL: url, Kind: kind, Airline: "Air Test", Page: n}
}

func TestFrontier_AddAndPop(t *testing.T) {
	f := NewFrontier(testLogger())
	assert.Equal(t, 0, f.Len())

	require.True(t, f.Add(page("https://example.com/a", 1)))
	assert.Equal(t, 1, f.Len())

	item, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", item.URL)
	assert.Equal(t, "Air Test", item.Airline)
	assert.Equal(t, 0, f.Len())
}

func TestFrontier_LowerPageFirst(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Add(page("air-a/page/3", 3))
	f.Add(page("air-b", 1))
	f.Add(page("air-a/page/2", 2))
	f.Add(page("air-c", 1))

	var got []string
	for i := 0; i < 4; i++ {
		item, ok := f.Pop()
		require.True(t, ok)
		got = append(got, item.URL)
	}

	// Equal page numbers keep insertion order
	assert.Equal(t, []string{"air-b", "air-c", "air-a/page/2", "air-a/page/3"}, got)
}

func TestFrontier_CloseDrainsThenStops(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Add(page("a", 1))
	f.Add(page("b", 2))
	f.Close()
	f.Close() // idempotent

	assert.False(t, f.Add(page("late", 1)), "closed frontier must reject items")

	_, ok := f.Pop()
	assert.True(t, ok)
	_, ok = f.Pop()
	assert.True(t, ok)
	item, ok := f.Pop()
	assert.False(t, ok)
	assert.Equal(t, models.WorkItem{}, item)
}

func TestFrontier_PopBlocksUntilAdd(t *testing.T) {
	f := NewFrontier(testLogger())
	result := make(chan models.WorkItem, 1)
	go func() {
		item, _ := f.Pop()
		result <- item
	}()

	select {
	case <-result:
		t.Fatal("Pop returned before Add")
	case <-time.After(50 * time.Millisecond):
	}

	f.Add(page("unblock", 1))

	select {
	case item := <-result:
		assert.Equal(t, "unblock", item.URL)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Add")
	}
}

func TestFrontier_CloseUnblocksWaiters(t *testing.T) {
	f := NewFrontier(testLogger())
	var wg sync.WaitGroup
	var gotItem atomic.Int32

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := f.Pop(); ok {
				gotItem.Add(1)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	f.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock waiting Pop calls")
	}
	assert.Equal(t, int32(0), gotItem.Load())
}

func TestFrontier_ConcurrentProducersConsumers(t *testing.T) {
	f := NewFrontier(testLogger())
	const producers, perProducer, consumers = 5, 20, 3

	var popped atomic.Int64
	var consumerWg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for {
				if _, ok := f.Pop(); !ok {
					return
				}
				popped.Add(1)
			}
		}()
	}

	var producerWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		producerWg.Add(1)
		go func(p int) {
			defer producerWg.Done()
			for j := 0; j < perProducer; j++ {
				f.Add(page("url", p+1))
			}
		}(p)
	}
	producerWg.Wait()
	f.Close()

	done := make(chan struct{})
	go func() {
		consumerWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumers did not finish in time")
	}
	assert.Equal(t, int64(producers*perProducer), popped.Load())
}

// Package queue holds the crawl frontier: a blocking priority queue of pages to visit.
package queue

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/models"
)

type entry struct {
	item models.WorkItem
	seq  uint64 // insertion order, breaks ties between equal page numbers
}

// pageHeap orders entries by page number, then insertion order.
// Page 1 of every airline is therefore served before deeper pagination.
type pageHeap []entry

func (h pageHeap) Len() int { return len(h) }

func (h pageHeap) Less(i, j int) bool {
	if h[i].item.Page != h[j].item.Page {
		return h[i].item.Page < h[j].item.Page
	}
	return h[i].seq < h[j].seq
}

func (h pageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pageHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *pageHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Frontier is a thread-safe priority queue of WorkItems. Pop blocks until an
// item is available or the frontier is closed and drained.
type Frontier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	heap   pageHeap
	seq    uint64
	closed bool
	log    *logrus.Entry
}

// NewFrontier creates an empty Frontier
func NewFrontier(log *logrus.Entry) *Frontier {
	f := &Frontier{log: log}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.heap)
	return f
}

// Add enqueues item. Returns false if the frontier is already closed.
func (f *Frontier) Add(item models.WorkItem) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.log.Warnf("Attempted to add item to closed frontier: %s", item.URL)
		return false
	}
	f.seq++
	heap.Push(&f.heap, entry{item: item, seq: f.seq})
	f.cond.Signal()
	return true
}

// Pop removes the lowest page-number item. ok is false once the frontier is closed and empty.
func (f *Frontier) Pop() (item models.WorkItem, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.heap) == 0 {
		if f.closed {
			return models.WorkItem{}, false
		}
		f.cond.Wait()
	}
	return heap.Pop(&f.heap).(entry).item, true
}

// Close stops accepting items and wakes every waiting Pop. Items already queued are still served.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.cond.Broadcast()
}

// Len returns the number of queued items
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heap)
}

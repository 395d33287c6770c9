package poller

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rowmark/rowmark/pkg/cdc"
)

// fakeTable is an in-memory RowSource. Rows are watermark values; FetchSince
// behaves like the real range query: strictly greater-than, ascending.
type fakeTable struct {
	mu         sync.Mutex
	rows       []int64
	maxErr     error
	fetchErr   error // returned once, then cleared
	maxCalls   int
	fetchCalls int
}

func newFakeTable(rows ...int64) *fakeTable {
	t := &fakeTable{}
	t.insert(rows...)
	return t
}

func (f *fakeTable) insert(rows ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, rows...)
	sort.Slice(f.rows, func(i, j int) bool { return f.rows[i] < f.rows[j] })
}

func (f *fakeTable) MaxWatermark(ctx context.Context) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxCalls++
	if f.maxErr != nil {
		return 0, false, f.maxErr
	}
	if len(f.rows) == 0 {
		return 0, false, nil
	}
	return f.rows[len(f.rows)-1], true, nil
}

func (f *fakeTable) FetchSince(ctx context.Context, watermark int64, limit int) (*cdc.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		err := f.fetchErr
		f.fetchErr = nil
		return nil, err
	}
	batch := &cdc.Batch{Columns: []string{"ID", "Payload"}}
	for _, v := range f.rows {
		if v <= watermark {
			continue
		}
		if limit > 0 && len(batch.Rows) >= limit {
			break
		}
		batch.Rows = append(batch.Rows, []any{v, fmt.Sprintf("row-%d", v)})
	}
	return batch, nil
}

func (f *fakeTable) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func (f *fakeTable) maxCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxCalls
}

// captureSink records published events.
type captureSink struct {
	mu     sync.Mutex
	events []cdc.RowEvent

	// failures holds watermarks whose first Publish should fail.
	failures map[int64]bool
}

func newCaptureSink() *captureSink {
	return &captureSink{failures: map[int64]bool{}}
}

func (s *captureSink) failOnce(watermark int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[watermark] = true
}

func (s *captureSink) Publish(ctx context.Context, event cdc.RowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[event.Watermark] {
		delete(s.failures, event.Watermark)
		return fmt.Errorf("sink unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) watermarks() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.events))
	for i, e := range s.events {
		out[i] = e.Watermark
	}
	return out
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// recordingSaver records checkpointed watermarks.
type recordingSaver struct {
	mu    sync.Mutex
	saved []int64
}

func (r *recordingSaver) Save(ctx context.Context, watermark int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, watermark)
	return nil
}

func (r *recordingSaver) last() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return 0, false
	}
	return r.saved[len(r.saved)-1], true
}

// Package stats keeps a 24-hour sliding window of translation outcomes in
// minute-resolution buckets. Everything lives in memory; a restart starts
// the window fresh.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"
)

// minuteKey is the bucket key layout, YYYYMMDDHHMM in UTC.
const minuteKey = "200601021504"

// window is how far back buckets are kept.
const window = 24 * time.Hour

type bucket struct {
	total       int64
	success     int64
	totalTimeMS int64
}

// Window aggregates translation outcomes over the last 24 hours. All
// methods are safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// New creates an empty Window using the real clock.
func New() *Window {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Window with an injected clock for tests.
func NewWithClock(now func() time.Time) *Window {
	return &Window{buckets: make(map[string]*bucket), now: now}
}

// Record adds one finished translation to the current minute bucket and
// evicts buckets that have left the window.
func (w *Window) Record(success bool, elapsed time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UTC()
	key := now.Format(minuteKey)
	b, ok := w.buckets[key]
	if !ok {
		b = &bucket{}
		w.buckets[key] = b
	}
	b.total++
	if success {
		b.success++
	}
	b.totalTimeMS += elapsed.Milliseconds()

	cutoff := now.Add(-window).Format(minuteKey)
	for k := range w.buckets {
		if k < cutoff {
			delete(w.buckets, k)
		}
	}
}

// Summary is the aggregate view over the window.
type Summary struct {
	TotalRequests   int64   `json:"total_requests"`
	SuccessRequests int64   `json:"success_requests"`
	FailedRequests  int64   `json:"failed_requests"`
	SuccessRate     float64 `json:"success_rate"`
	AvgProcessingMS float64 `json:"avg_processing_time_ms"`
}

// HourEntry is one row of the hourly breakdown.
type HourEntry struct {
	Hour            string  `json:"hour"`
	Requests        int64   `json:"requests"`
	SuccessRate     float64 `json:"success_rate"`
	AvgProcessingMS float64 `json:"avg_processing_time_ms"`
}

// Snapshot returns the aggregate summary for the current window.
func (w *Window) Snapshot() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().UTC().Add(-window).Format(minuteKey)
	var s Summary
	var totalTime int64
	for k, b := range w.buckets {
		if k < cutoff {
			continue
		}
		s.TotalRequests += b.total
		s.SuccessRequests += b.success
		totalTime += b.totalTimeMS
	}
	s.FailedRequests = s.TotalRequests - s.SuccessRequests
	if s.TotalRequests > 0 {
		s.SuccessRate = round2(float64(s.SuccessRequests) / float64(s.TotalRequests) * 100)
		s.AvgProcessingMS = round2(float64(totalTime) / float64(s.TotalRequests))
	}
	return s
}

// HourlyBreakdown folds minute buckets into hours, newest first, at most 24
// entries. Hours with no traffic are omitted.
func (w *Window) HourlyBreakdown() []HourEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().UTC().Add(-window).Format(minuteKey)
	type hourAgg struct {
		total, success, timeMS int64
	}
	hours := make(map[string]*hourAgg)
	for k, b := range w.buckets {
		if k < cutoff {
			continue
		}
		hk := k[:10] // YYYYMMDDHH
		h, ok := hours[hk]
		if !ok {
			h = &hourAgg{}
			hours[hk] = h
		}
		h.total += b.total
		h.success += b.success
		h.timeMS += b.totalTimeMS
	}

	keys := make([]string, 0, len(hours))
	for k := range hours {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if len(keys) > 24 {
		keys = keys[:24]
	}

	out := make([]HourEntry, 0, len(keys))
	for _, k := range keys {
		h := hours[k]
		ts, err := time.ParseInLocation("2006010215", k, time.UTC)
		if err != nil {
			continue
		}
		e := HourEntry{
			Hour:     ts.Format("2006-01-02T15:04:05Z"),
			Requests: h.total,
		}
		if h.total > 0 {
			e.SuccessRate = round2(float64(h.success) / float64(h.total) * 100)
			e.AvgProcessingMS = round2(float64(h.timeMS) / float64(h.total))
		}
		out = append(out, e)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

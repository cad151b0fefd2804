package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func static(name string, s Status) Checker {
	return Checker{Name: name, Check: func(ctx context.Context) Result {
		return Result{Status: s}
	}}
}

func do(t *testing.T, fn http.HandlerFunc, path string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body response
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, body
}

func TestHealthAggregation(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus Status
	}{
		{
			"all healthy",
			[]Checker{static("a", StatusHealthy), static("b", StatusHealthy)},
			http.StatusOK, StatusHealthy,
		},
		{
			"degraded stays 200",
			[]Checker{static("a", StatusHealthy), static("b", StatusDegraded)},
			http.StatusOK, StatusDegraded,
		},
		{
			"unhealthy wins",
			[]Checker{static("a", StatusDegraded), static("b", StatusUnhealthy)},
			http.StatusServiceUnavailable, StatusUnhealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(tt.checkers...)
			rec, body := do(t, h.Health, "/api/health/")
			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", body.Status, tt.wantStatus)
			}
			if len(body.Checks) != len(tt.checkers) {
				t.Errorf("checks = %d entries, want %d", len(body.Checks), len(tt.checkers))
			}
		})
	}
}

func TestReadyRejectsDegraded(t *testing.T) {
	h := New(static("a", StatusHealthy)).
		WithReadiness(static("model", StatusDegraded))
	rec, _ := do(t, h.Ready, "/api/ready/")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503 for degraded readiness", rec.Code)
	}
}

func TestLiveToleratesDegraded(t *testing.T) {
	h := New(static("a", StatusHealthy)).
		WithLiveness(static("memory", StatusDegraded))
	rec, _ := do(t, h.Live, "/api/live/")
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200 for degraded liveness", rec.Code)
	}
}

func TestModelChecker(t *testing.T) {
	flag := func(v bool) func() bool { return func() bool { return v } }
	tests := []struct {
		name      string
		loaded    bool
		switching bool
		want      Status
	}{
		{"loaded", true, false, StatusHealthy},
		{"switching", true, true, StatusDegraded},
		{"not loaded", false, false, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ModelChecker(flag(tt.loaded), flag(tt.switching))
			if got := c.Check(context.Background()); got.Status != tt.want {
				t.Errorf("ModelChecker = %s, want %s", got.Status, tt.want)
			}
		})
	}
}

func TestQueueChecker(t *testing.T) {
	counts := func(active, waiting int) func() (int, int) {
		return func() (int, int) { return active, waiting }
	}
	if got := QueueChecker(counts(1, 0), 2, 10).Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("idle queue = %s, want healthy", got.Status)
	}
	if got := QueueChecker(counts(2, 10), 2, 10).Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("saturated queue = %s, want degraded", got.Status)
	}
}

func TestMemoryChecker(t *testing.T) {
	pct := func(v float64, err error) func(context.Context) (float64, error) {
		return func(context.Context) (float64, error) { return v, err }
	}
	tests := []struct {
		name string
		v    float64
		want Status
	}{
		{"low", 50, StatusHealthy},
		{"elevated", 85, StatusDegraded},
		{"critical", 92, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MemoryChecker(pct(tt.v, nil)).Check(context.Background())
			if got.Status != tt.want {
				t.Errorf("MemoryChecker(%.0f%%) = %s, want %s", tt.v, got.Status, tt.want)
			}
		})
	}
	if got := MemoryChecker(pct(0, errors.New("boom"))).Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("probe failure = %s, want degraded", got.Status)
	}
}

func TestMemoryLivenessChecker(t *testing.T) {
	pct := func(v float64) func(context.Context) (float64, error) {
		return func(context.Context) (float64, error) { return v, nil }
	}
	if got := MemoryLivenessChecker(pct(93)).Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("93%% = %s, want healthy for liveness", got.Status)
	}
	if got := MemoryLivenessChecker(pct(96)).Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("96%% = %s, want unhealthy", got.Status)
	}
}

func TestShutdownChecker(t *testing.T) {
	stopping := false
	c := ShutdownChecker(func() bool { return stopping })
	if got := c.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("running = %s, want healthy", got.Status)
	}
	stopping = true
	if got := c.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("stopping = %s, want unhealthy", got.Status)
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New(static("a", StatusHealthy)).Register(mux)
	for _, path := range []string{"/api/health/", "/api/ready/", "/api/live/"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

package health

import (
	"context"
	"fmt"
)

// Memory thresholds in percent of physical memory used.
const (
	memoryDegradedPct  = 80
	memoryUnhealthyPct = 90
	memoryLivenessPct  = 95
)

// APIChecker reports the HTTP surface itself. Reaching the handler is the
// check.
func APIChecker() Checker {
	return Checker{
		Name: "api",
		Check: func(ctx context.Context) Result {
			return Result{Status: StatusHealthy}
		},
	}
}

// ModelChecker reports whether the translation model can serve. A switch in
// progress is degraded; no loaded model is unhealthy.
func ModelChecker(loaded func() bool, switching func() bool) Checker {
	return Checker{
		Name: "translation_model",
		Check: func(ctx context.Context) Result {
			switch {
			case switching():
				return Result{Status: StatusDegraded, Detail: "model switch in progress"}
			case !loaded():
				return Result{Status: StatusUnhealthy, Detail: "no model loaded"}
			}
			return Result{Status: StatusHealthy}
		},
	}
}

// QueueChecker reports admission queue saturation. A full waiting queue is
// degraded, not unhealthy: requests already admitted still complete.
func QueueChecker(counts func() (active, waiting int), maxConcurrent, maxQueueSize int) Checker {
	return Checker{
		Name: "queue",
		Check: func(ctx context.Context) Result {
			active, waiting := counts()
			detail := fmt.Sprintf("%d active, %d waiting", active, waiting)
			if active >= maxConcurrent && waiting >= maxQueueSize {
				return Result{Status: StatusDegraded, Detail: detail + " (saturated)"}
			}
			return Result{Status: StatusHealthy, Detail: detail}
		},
	}
}

// MemoryChecker reports physical memory pressure: below 80% healthy, below
// 90% degraded, above that unhealthy.
func MemoryChecker(percent func(ctx context.Context) (float64, error)) Checker {
	return Checker{
		Name: "memory",
		Check: func(ctx context.Context) Result {
			pct, err := percent(ctx)
			if err != nil {
				return Result{Status: StatusDegraded, Detail: "probe failed: " + err.Error()}
			}
			detail := fmt.Sprintf("%.1f%% used", pct)
			switch {
			case pct < memoryDegradedPct:
				return Result{Status: StatusHealthy, Detail: detail}
			case pct < memoryUnhealthyPct:
				return Result{Status: StatusDegraded, Detail: detail}
			}
			return Result{Status: StatusUnhealthy, Detail: detail}
		},
	}
}

// MemoryLivenessChecker is the laxer liveness variant: only above 95% is the
// process considered beyond recovery.
func MemoryLivenessChecker(percent func(ctx context.Context) (float64, error)) Checker {
	return Checker{
		Name: "memory",
		Check: func(ctx context.Context) Result {
			pct, err := percent(ctx)
			if err != nil {
				return Result{Status: StatusHealthy, Detail: "probe failed: " + err.Error()}
			}
			if pct > memoryLivenessPct {
				return Result{Status: StatusUnhealthy, Detail: fmt.Sprintf("%.1f%% used", pct)}
			}
			return Result{Status: StatusHealthy, Detail: fmt.Sprintf("%.1f%% used", pct)}
		},
	}
}

// ShutdownChecker gates readiness while the service drains.
func ShutdownChecker(stopping func() bool) Checker {
	return Checker{
		Name: "shutdown",
		Check: func(ctx context.Context) Result {
			if stopping() {
				return Result{Status: StatusUnhealthy, Detail: "shutting down"}
			}
			return Result{Status: StatusHealthy}
		},
	}
}

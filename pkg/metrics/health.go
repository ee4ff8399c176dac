package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// HealthStatus represents the health status of the system.
type HealthStatus struct {
	Healthy   bool             `json:"healthy"`
	Ready     bool             `json:"ready"`
	Message   string           `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Uptime    time.Duration    `json:"uptime"`
}

// Check represents an individual health check result.
type Check struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency,omitempty"`
}

// HealthCheckFunc is a function that performs a health check.
type HealthCheckFunc func(ctx context.Context) Check

// HealthChecker runs registered checks periodically and keeps the latest
// status for the health and readiness endpoints.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheckFunc
	status    atomic.Pointer[HealthStatus]
	startTime time.Time
	interval  time.Duration
	running   atomic.Bool
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// HealthCheckerOption is a function that configures a HealthChecker.
type HealthCheckerOption func(*HealthChecker)

// WithHealthCheckInterval sets the health check interval.
func WithHealthCheckInterval(d time.Duration) HealthCheckerOption {
	return func(h *HealthChecker) {
		h.interval = d
	}
}

// NewHealthChecker creates a new health checker. It reports not ready until
// SetReady is called or a check run passes.
func NewHealthChecker(opts ...HealthCheckerOption) *HealthChecker {
	h := &HealthChecker{
		checks:    make(map[string]HealthCheckFunc),
		startTime: time.Now(),
		interval:  10 * time.Second,
		stopCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.status.Store(&HealthStatus{
		Healthy:   true,
		Ready:     false,
		Timestamp: time.Now(),
	})
	return h
}

// RegisterCheck registers a health check.
func (h *HealthChecker) RegisterCheck(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// UnregisterCheck removes a health check.
func (h *HealthChecker) UnregisterCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.checks, name)
}

// IsHealthy returns true if the system is healthy.
func (h *HealthChecker) IsHealthy() bool {
	return h.GetStatus().Healthy
}

// IsReady returns true if the system is ready to serve.
func (h *HealthChecker) IsReady() bool {
	return h.GetStatus().Ready
}

// GetStatus returns the current health status.
func (h *HealthChecker) GetStatus() *HealthStatus {
	return h.status.Load()
}

// SetReady sets the ready state.
func (h *HealthChecker) SetReady(ready bool) {
	newStatus := *h.status.Load()
	newStatus.Ready = ready
	newStatus.Timestamp = time.Now()
	h.status.Store(&newStatus)
}

// Check runs all health checks and updates the status.
func (h *HealthChecker) Check(ctx context.Context) *HealthStatus {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	checks := make(map[string]HealthCheckFunc, len(h.checks))
	for name, fn := range h.checks {
		names = append(names, name)
		checks[name] = fn
	}
	h.mu.RUnlock()
	sort.Strings(names)

	status := &HealthStatus{
		Healthy:   true,
		Ready:     true,
		Timestamp: time.Now(),
		Checks:    make(map[string]Check, len(checks)),
		Uptime:    time.Since(h.startTime),
	}

	var messages []string
	for _, name := range names {
		start := time.Now()
		result := checks[name](ctx)
		result.Name = name
		if result.Latency == 0 {
			result.Latency = time.Since(start)
		}
		status.Checks[name] = result

		if !result.Healthy {
			status.Healthy = false
			status.Ready = false
			if result.Message != "" {
				messages = append(messages, name+": "+result.Message)
			}
		}
	}

	if len(messages) > 0 {
		status.Message = messages[0]
		if len(messages) > 1 {
			status.Message += " (and more)"
		}
	}

	h.status.Store(status)
	return status
}

// Start starts the periodic health checks.
func (h *HealthChecker) Start(ctx context.Context) {
	if h.running.Swap(true) {
		return
	}

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		h.Check(ctx)

		for {
			select {
			case <-ctx.Done():
				h.running.Store(false)
				return
			case <-h.stopCh:
				h.running.Store(false)
				return
			case <-ticker.C:
				h.Check(ctx)
			}
		}
	}()
}

// Stop stops the health checker.
func (h *HealthChecker) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// ErrorCheck adapts a function returning an error into a HealthCheckFunc.
func ErrorCheck(fn func(ctx context.Context) error) HealthCheckFunc {
	return func(ctx context.Context) Check {
		if err := fn(ctx); err != nil {
			return Check{Healthy: false, Message: err.Error()}
		}
		return Check{Healthy: true}
	}
}

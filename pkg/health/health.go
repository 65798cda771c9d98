// Package health provides Kubernetes-style liveness and readiness probe
// support.
//
// Each registered check runs in its own background goroutine at a fixed
// interval. Checks carry failure/success thresholds so a single blip never
// flips the reported state: a check must fail consecutively several times
// before being marked unhealthy, and recover before being marked healthy.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one component. It returns nil when the component is
// healthy.
type CheckFunc func(ctx context.Context) error

// probe is one registered check plus its runtime state.
//
// run() executes from a single goroutine, so the consecutive counters need
// no synchronization. healthy and lastErr are also read by HTTP handlers,
// hence atomic.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: 3,
		successThreshold: 1,
	}
	// Assume healthy until proven otherwise.
	p.healthy.Store(true)
	return p
}

func (p *probe) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.consecutiveOK = 0
		p.consecutiveFails++
		if p.consecutiveFails >= p.failureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.consecutiveFails = 0
	p.consecutiveOK++
	if p.consecutiveOK >= p.successThreshold {
		p.healthy.Store(true)
	}
}

func (p *probe) failure() (string, bool) {
	if p.healthy.Load() {
		return "", false
	}
	if errp := p.lastErr.Load(); errp != nil && *errp != nil {
		return (*errp).Error(), true
	}
	return "check is unhealthy", true
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	ready atomic.Bool

	// mu protects the probe slices and cancel. Handlers snapshot the slices
	// under RLock and release immediately.
	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New creates a Health in the not-ready state; call SetReady(true) once
// initialization completes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check for whether the process itself is
// functioning (goroutine leaks, GC stalls).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a check for whether the service can accept
// traffic (database connectivity, dependent services).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches one goroutine per registered probe, each executing at the
// given interval until the context is cancelled or Stop is called. Register
// all checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go func(p *probe) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			p.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.run(ctx)
				}
			}
		}(p)
	}
}

// SetReady flips the manual readiness flag. Graceful shutdown sets it to
// false so load balancers drain the instance before the listener closes.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is manually marked ready and all
// readiness probes currently pass.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	for _, p := range probes {
		if _, failed := p.failure(); failed {
			return false
		}
	}
	return true
}

// Stop cancels all probe goroutines. Safe to call multiple times.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 when all liveness probes pass, 503 with
// per-check failure details otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := make([]*probe, len(h.liveness))
	copy(probes, h.liveness)
	h.mu.RUnlock()

	writeStatus(w, collectFailures(probes))
}

// ReadyEndpoint serves /readyz: 200 when the service is marked ready and all
// readiness probes pass, 503 with details otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	probes := make([]*probe, len(h.readiness))
	copy(probes, h.readiness)
	h.mu.RUnlock()

	failures := collectFailures(probes)
	if !ready {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func collectFailures(probes []*probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		if msg, failed := p.failure(); failed {
			failures[p.name] = msg
		}
	}
	return failures
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Package health provides liveness and readiness probe endpoints. Checks run
// on demand when a probe is hit, each bounded by its own timeout.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc is a health check. It returns nil when the checked component is
// healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Service evaluates registered checks and serves probe endpoints.
type Service struct {
	mu        sync.Mutex
	liveness  []check
	readiness []check

	// ready gates the readiness endpoint independently of the checks so the
	// server can drain before shutdown.
	ready atomic.Bool
}

// New creates an empty health Service. It reports not-ready until SetReady.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a check evaluated by the liveness endpoint.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check evaluated by the readiness endpoint.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness = append(s.readiness, check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the readiness gate.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// LiveEndpoint serves the liveness probe.
func (s *Service) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	checks := append([]check(nil), s.liveness...)
	s.mu.Unlock()
	s.respond(w, r, checks, true)
}

// ReadyEndpoint serves the readiness probe. It fails immediately while the
// readiness gate is down.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	checks := append([]check(nil), s.readiness...)
	s.mu.Unlock()
	s.respond(w, r, checks, s.ready.Load())
}

func (s *Service) respond(w http.ResponseWriter, r *http.Request, checks []check, gate bool) {
	status := "ok"
	results := make(map[string]string, len(checks))
	healthy := gate
	if !gate {
		status = "unavailable"
	}

	for _, c := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		err := c.fn(ctx)
		cancel()
		if err != nil {
			healthy = false
			status = "unavailable"
			results[c.name] = err.Error()
		} else {
			results[c.name] = "ok"
		}
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": results,
	})
}

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/phrazzld/scry-forge/internal/api/shared"
	"golang.org/x/sync/errgroup"
)

// Pinger is a dependency whose reachability is reported by /health.
type Pinger func(ctx context.Context) error

// HealthHandler reports the reachability of the service's dependencies.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a HealthHandler for the named checks.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// ServeHTTP runs the checks concurrently and answers 200 when every check
// passes and 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var (
		mu      sync.Mutex
		g       errgroup.Group
		status  = http.StatusOK
		results = make(map[string]string, len(h.checks))
	)
	for name, ping := range h.checks {
		g.Go(func() error {
			result := "ok"
			if err := ping(ctx); err != nil {
				result = "unavailable"
			}
			mu.Lock()
			defer mu.Unlock()
			results[name] = result
			if result != "ok" {
				status = http.StatusServiceUnavailable
			}
			return nil
		})
	}
	_ = g.Wait()

	shared.RespondWithJSON(w, r, status, map[string]any{"status": http.StatusText(status), "checks": results})
}

package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/taskhub/taskhub/cache"
	"github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/logger"
)

const (
	healthyStatus   = "healthy"
	unhealthyStatus = "unhealthy"
	degradedStatus  = "degraded"
	disabledStatus  = "disabled"
)

// HealthStatus captures the outcome of a readiness probe.
type HealthStatus struct {
	Name     string
	Status   string
	Details  map[string]any
	Err      error
	Critical bool
}

// HealthProbe exposes a uniform interface for readiness probes.
type HealthProbe interface {
	Run(ctx context.Context) HealthStatus
}

type healthProbeFunc struct {
	name     string
	critical bool
	fn       func(ctx context.Context) (string, map[string]any, error)
}

func (h healthProbeFunc) Run(ctx context.Context) HealthStatus {
	status, details, err := h.fn(ctx)
	if details == nil {
		details = map[string]any{}
	}
	return HealthStatus{
		Name:     h.name,
		Status:   status,
		Details:  details,
		Err:      err,
		Critical: h.critical,
	}
}

// createHealthProbes builds the readiness probes for the connected resources.
// The database probe is critical: its failure makes the service not ready.
// The cache probe never is, because the repositories serve reads from the
// database while the cache is degraded.
func createHealthProbes(db database.Interface, cacheSvc cache.Service, cacheConfigured bool, log logger.Logger) []HealthProbe {
	return []HealthProbe{
		databaseHealthProbe(db, log),
		cacheHealthProbe(cacheSvc, cacheConfigured),
	}
}

// databaseHealthProbe pings the database and reports pool statistics.
func databaseHealthProbe(db database.Interface, log logger.Logger) HealthProbe {
	if db == nil {
		return healthProbeFunc{
			name: "database",
			fn: func(context.Context) (string, map[string]any, error) {
				return disabledStatus, map[string]any{"status": disabledStatus}, nil
			},
		}
	}

	return healthProbeFunc{
		name:     "database",
		critical: true,
		fn: func(ctx context.Context) (string, map[string]any, error) {
			if err := db.Health(ctx); err != nil {
				return unhealthyStatus, nil, err
			}

			stats, err := db.Stats()
			if err != nil {
				log.Warn().Err(err).Msg("Failed to collect database stats")
				stats = map[string]any{"error": err.Error()}
			}
			return healthyStatus, stats, nil
		},
	}
}

// cacheHealthProbe pings the cache backend. The probe's Ping doubles as the
// recovery path: a degraded service that answers flips back to healthy.
func cacheHealthProbe(svc cache.Service, configured bool) HealthProbe {
	if !configured {
		return healthProbeFunc{
			name: "cache",
			fn: func(context.Context) (string, map[string]any, error) {
				return disabledStatus, nil, nil
			},
		}
	}

	return healthProbeFunc{
		name: "cache",
		fn: func(ctx context.Context) (string, map[string]any, error) {
			if err := svc.Ping(ctx); err != nil {
				return degradedStatus, map[string]any{"healthy": false}, err
			}
			return healthyStatus, map[string]any{"healthy": svc.Healthy()}, nil
		},
	}
}

// runHealthProbes executes every probe concurrently and returns the results
// keyed by probe name. A failing probe never cancels its siblings; failures
// travel in the HealthStatus, not as errors.
func runHealthProbes(ctx context.Context, probes []HealthProbe) map[string]HealthStatus {
	results := make([]HealthStatus, len(probes))

	g, gctx := errgroup.WithContext(ctx)
	for i, probe := range probes {
		g.Go(func() error {
			results[i] = probe.Run(gctx)
			return nil
		})
	}
	_ = g.Wait()

	byName := make(map[string]HealthStatus, len(results))
	for _, result := range results {
		byName[result.Name] = result
	}
	return byName
}

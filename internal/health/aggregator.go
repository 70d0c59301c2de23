package health

import (
	"context"
	"sync"
	"time"

	"infracopilot/internal/types"

	"go.uber.org/zap"
)

// LocalSource checks the local machine
type LocalSource interface {
	Check(ctx context.Context) *types.LocalHealth
}

// AzureSource checks the configured cloud scope
type AzureSource interface {
	Check(ctx context.Context) *types.AzureHealth
}

// EndpointSource checks the configured custom endpoints
type EndpointSource interface {
	Check(ctx context.Context) *types.CustomHealth
}

// Aggregator fans out to all configured sources and merges their snapshots
// into one unified report
type Aggregator struct {
	local     LocalSource
	azure     AzureSource
	endpoints EndpointSource
	logger    *zap.Logger
}

// NewAggregator creates a new health aggregator
func NewAggregator(local LocalSource, azure AzureSource, endpoints EndpointSource, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		local:     local,
		azure:     azure,
		endpoints: endpoints,
		logger:    logger,
	}
}

// Aggregate runs the local check synchronously and the cloud and endpoint
// branches concurrently, waits for all to settle, then merges. A failing
// branch degrades only its own portion of the report.
func (a *Aggregator) Aggregate(ctx context.Context) *types.HealthReport {
	started := time.Now()

	local := a.local.Check(ctx)

	var (
		azure  *types.AzureHealth
		custom *types.CustomHealth
		wg     sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		azure = a.azure.Check(ctx)
	}()
	go func() {
		defer wg.Done()
		custom = a.endpoints.Check(ctx)
	}()
	wg.Wait()

	report := merge(local, azure, custom)

	a.logger.Debug("health aggregation completed",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("total", report.Summary.Total),
		zap.Int("healthy", report.Summary.Healthy),
		zap.Int("warnings", report.Summary.Warnings))

	return report
}

// merge combines the three source snapshots. Warnings are ordered local,
// cloud, then endpoints, keeping each adapter's internal order; the summary
// is recomputed from scratch.
func merge(local *types.LocalHealth, azure *types.AzureHealth, custom *types.CustomHealth) *types.HealthReport {
	warnings := make([]string, 0, len(local.Warnings)+len(azure.Warnings)+len(custom.Warnings))
	warnings = append(warnings, local.Warnings...)
	warnings = append(warnings, azure.Warnings...)
	warnings = append(warnings, custom.Warnings...)

	resources := azure.Resources()

	// One local check, one check per cloud resource, one per endpoint
	total := 1 + len(resources) + len(custom.Results)

	unhealthy := 0
	if !local.Healthy() {
		unhealthy++
	}
	for _, resource := range resources {
		if !resource.Healthy {
			unhealthy++
		}
	}
	for _, result := range custom.Results {
		if result.Status != types.EndpointUp {
			unhealthy++
		}
	}

	return &types.HealthReport{
		Timestamp: time.Now().UTC(),
		Summary: types.HealthSummary{
			Total:    total,
			Healthy:  total - unhealthy,
			Warnings: len(warnings),
		},
		Warnings: warnings,
		Local:    local,
		Azure:    azure,
		Custom:   custom,
	}
}

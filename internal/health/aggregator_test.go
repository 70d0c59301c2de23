package health

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"infracopilot/internal/types"
)

type stubLocal struct{ snapshot *types.LocalHealth }

func (s *stubLocal) Check(context.Context) *types.LocalHealth { return s.snapshot }

type stubAzure struct{ snapshot *types.AzureHealth }

func (s *stubAzure) Check(context.Context) *types.AzureHealth { return s.snapshot }

type stubEndpoints struct{ snapshot *types.CustomHealth }

func (s *stubEndpoints) Check(context.Context) *types.CustomHealth { return s.snapshot }

func nominalLocal() *types.LocalHealth {
	return &types.LocalHealth{CPUPercent: 10, MemoryPercent: 20, DiskPercent: 30, UptimeSeconds: 60, Warnings: []string{}}
}

func notConfiguredAzure() *types.AzureHealth {
	return &types.AzureHealth{
		Configured:      false,
		Status:          types.AzureStatusNotConfigured,
		VMs:             []types.AzureResource{},
		AppServices:     []types.AzureResource{},
		StorageAccounts: []types.AzureResource{},
		Warnings:        []string{},
	}
}

func TestAggregateLocalOnly(t *testing.T) {
	agg := NewAggregator(
		&stubLocal{snapshot: nominalLocal()},
		&stubAzure{snapshot: notConfiguredAzure()},
		&stubEndpoints{snapshot: &types.CustomHealth{Results: []types.EndpointResult{}, Warnings: []string{}}},
		zaptest.NewLogger(t))

	report := agg.Aggregate(context.Background())
	require.NotNil(t, report)

	assert.Equal(t, 1, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Healthy)
	assert.Equal(t, 0, report.Summary.Warnings)
	assert.False(t, report.Azure.Configured)
	assert.Empty(t, report.Custom.Results)
}

func TestAggregateCloudAuthFailureIsIsolated(t *testing.T) {
	azure := &types.AzureHealth{
		Configured:      true,
		Status:          types.AzureStatusAuthFailed,
		VMs:             []types.AzureResource{},
		AppServices:     []types.AzureResource{},
		StorageAccounts: []types.AzureResource{},
		Warnings:        []string{"AZURE: auth_failed - no credentials"},
	}
	up := types.EndpointResult{Name: "svc", Status: types.EndpointUp}
	custom := &types.CustomHealth{
		Configured: true,
		Results:    []types.EndpointResult{up, up},
		Warnings:   []string{},
	}

	agg := NewAggregator(
		&stubLocal{snapshot: nominalLocal()},
		&stubAzure{snapshot: azure},
		&stubEndpoints{snapshot: custom},
		zaptest.NewLogger(t))

	report := agg.Aggregate(context.Background())

	// Auth failed before listing, so cloud contributes zero resources
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 3, report.Summary.Healthy)
	assert.Equal(t, 1, report.Summary.Warnings)
	assert.Equal(t, types.AzureStatusAuthFailed, report.Azure.Status)
	require.Len(t, report.Custom.Results, 2)
}

func TestAggregateWarningOrdering(t *testing.T) {
	local := nominalLocal()
	local.Warnings = []string{"LOCAL: High CPU 99.0% (> 85.0%)"}

	azure := notConfiguredAzure()
	azure.Configured = true
	azure.Status = types.AzureStatusWarnings
	azure.VMs = []types.AzureResource{{Name: "vm-1", State: "starting", Healthy: false}}
	azure.Warnings = []string{"AZURE: VM vm-1 state=starting"}

	custom := &types.CustomHealth{
		Configured: true,
		Results: []types.EndpointResult{
			{Name: "api", Status: types.EndpointDown, Error: "bad status 500"},
		},
		Warnings: []string{"CUSTOM: api DOWN (bad status 500)"},
	}

	agg := NewAggregator(&stubLocal{snapshot: local}, &stubAzure{snapshot: azure}, &stubEndpoints{snapshot: custom}, zaptest.NewLogger(t))
	report := agg.Aggregate(context.Background())

	require.Len(t, report.Warnings, 3)
	assert.Contains(t, report.Warnings[0], "LOCAL:")
	assert.Contains(t, report.Warnings[1], "AZURE:")
	assert.Contains(t, report.Warnings[2], "CUSTOM:")

	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 0, report.Summary.Healthy)
	assert.Equal(t, 3, report.Summary.Warnings)
}

// TestAggregateSummaryInvariant exercises randomized source shapes and checks
// total == healthy + unhealthy for every generated report.
func TestAggregateSummaryInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		local := nominalLocal()
		if rng.Intn(2) == 0 {
			local.Warnings = []string{"LOCAL: High CPU"}
		}

		azure := notConfiguredAzure()
		if rng.Intn(2) == 0 {
			azure.Configured = true
			azure.Status = types.AzureStatusOK
			for v := 0; v < rng.Intn(4); v++ {
				healthy := rng.Intn(2) == 0
				azure.VMs = append(azure.VMs, types.AzureResource{Name: "vm", State: "x", Healthy: healthy})
				if !healthy {
					azure.Warnings = append(azure.Warnings, "AZURE: VM vm state=x")
				}
			}
		}

		custom := &types.CustomHealth{Results: []types.EndpointResult{}, Warnings: []string{}}
		for e := 0; e < rng.Intn(4); e++ {
			status := types.EndpointUp
			if rng.Intn(2) == 0 {
				status = types.EndpointDown
				custom.Warnings = append(custom.Warnings, "CUSTOM: ep DOWN")
			}
			custom.Results = append(custom.Results, types.EndpointResult{Name: "ep", Status: status})
		}

		report := merge(local, azure, custom)

		unhealthy := 0
		if len(local.Warnings) > 0 {
			unhealthy++
		}
		for _, r := range azure.Resources() {
			if !r.Healthy {
				unhealthy++
			}
		}
		for _, r := range custom.Results {
			if r.Status != types.EndpointUp {
				unhealthy++
			}
		}

		wantTotal := 1 + len(azure.Resources()) + len(custom.Results)
		assert.Equal(t, wantTotal, report.Summary.Total)
		assert.Equal(t, report.Summary.Total, report.Summary.Healthy+unhealthy)
	}
}

package metrics

import (
	"context"
	"time"

	"infracopilot/internal/types"
)

// BaseSource supplies the live readings a synthesized series is anchored on
type BaseSource interface {
	BaseReadings(ctx context.Context) (cpuPercent, memPercent float64)
}

// Provider produces trailing metrics series anchored on live host readings
type Provider struct {
	base BaseSource
}

// NewProvider creates a new metrics provider
func NewProvider(base BaseSource) *Provider {
	return &Provider{base: base}
}

// Series returns a synthesized 24h series ending at the current readings
func (p *Provider) Series(ctx context.Context) *types.MetricsSeries {
	cpu, mem := p.base.BaseReadings(ctx)
	return Synthesize(cpu, mem, time.Now())
}

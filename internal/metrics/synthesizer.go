// Package metrics derives a bounded, reproducible 24h trend from a live
// instantaneous base reading. Nothing here is persisted; the series is a
// deterministic function of its inputs.
package metrics

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"infracopilot/internal/types"
)

const (
	seriesPoints = 24
	cpuJitter    = 18.0
	memJitter    = 14.0
)

// Synthesize produces hourly cpu and memory series ending at now. Two calls
// with identical (baseCPU, baseMem, now) yield bit-identical series; every
// value stays within [0,100] and the final point equals the base reading.
func Synthesize(baseCPU, baseMem float64, now time.Time) *types.MetricsSeries {
	return &types.MetricsSeries{
		Timestamp: now.UTC(),
		Range:     "24h",
		Synthetic: true,
		CPU:       series("cpu", baseCPU, cpuJitter, now),
		Memory:    series("memory", baseMem, memJitter, now),
	}
}

// series walks backwards from the base so the trend converges on the live
// reading, then emits points in ascending timestamp order.
func series(name string, base, jitter float64, now time.Time) []types.MetricPoint {
	rng := rand.New(rand.NewSource(seed(name, base, now)))

	values := make([]float64, seriesPoints)
	values[seriesPoints-1] = clamp(round2(base))
	for i := seriesPoints - 2; i >= 0; i-- {
		step := (rng.Float64() - 0.5) * jitter
		values[i] = clamp(round2(values[i+1] + step))
	}

	points := make([]types.MetricPoint, seriesPoints)
	for i := range points {
		points[i] = types.MetricPoint{
			Timestamp: now.Add(-time.Duration(seriesPoints-1-i) * time.Hour).UTC(),
			Value:     values[i],
		}
	}
	return points
}

// seed derives a reproducible source from the series identity and inputs
func seed(name string, base float64, now time.Time) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))

	bits := math.Float64bits(base)
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
	ts := uint64(now.UnixNano())
	for i := 0; i < 8; i++ {
		buf[8+i] = byte(ts >> (8 * i))
	}
	_, _ = h.Write(buf[:])

	return int64(h.Sum64())
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

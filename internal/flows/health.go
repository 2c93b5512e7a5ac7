package flows

import (
	"context"
	"time"
)

// HealthResult reports backend reachability.
type HealthResult struct {
	StoreOK bool
	CacheOK bool
	Latency time.Duration
}

// HealthDeps captures health probe dependencies. A nil probe reads as
// healthy so deployments without that backend do not fail their checks.
type HealthDeps struct {
	PingStore func(ctx context.Context) error
	PingCache func(ctx context.Context) error
}

// RunHealth pings both backends and reports per-backend status with the
// combined probe latency.
func RunHealth(ctx context.Context, deps HealthDeps) HealthResult {
	start := time.Now()
	res := HealthResult{StoreOK: true, CacheOK: true}

	if deps.PingStore != nil {
		if err := deps.PingStore(ctx); err != nil {
			res.StoreOK = false
		}
	}
	if deps.PingCache != nil {
		if err := deps.PingCache(ctx); err != nil {
			res.CacheOK = false
		}
	}
	res.Latency = time.Since(start)
	return res
}

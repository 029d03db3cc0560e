package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// BatchItem is one entity in a batch enrichment request.
type BatchItem struct {
	TenantID string
	EntityID string
	Opts     RunOptions
}

// BatchLimits caps how hard one batch call can hit external providers.
type BatchLimits struct {
	// Global caps entities per batch invocation; zero means 100.
	Global int
	// PerTenant caps entities per tenant per invocation; zero means 25.
	PerTenant int
	// Delay is the minimum spacing between entity runs; zero means 500ms.
	Delay time.Duration
}

func (l BatchLimits) withDefaults() BatchLimits {
	if l.Global <= 0 {
		l.Global = 100
	}
	if l.PerTenant <= 0 {
		l.PerTenant = 25
	}
	if l.Delay <= 0 {
		l.Delay = 500 * time.Millisecond
	}
	return l
}

// BatchResult tallies one batch invocation.
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
}

// RunBatch enriches items sequentially under the configured caps. Items past
// the global or per-tenant cap are skipped, not queued; a failed item is
// counted and the batch continues.
func (r *Runner) RunBatch(ctx context.Context, items []BatchItem, limits BatchLimits) BatchResult {
	limits = limits.withDefaults()
	limiter := rate.NewLimiter(rate.Every(limits.Delay), 1)

	var result BatchResult
	perTenant := make(map[string]int)
	for _, item := range items {
		if result.Processed+result.Failed >= limits.Global {
			result.Skipped++
			continue
		}
		if perTenant[item.TenantID] >= limits.PerTenant {
			result.Skipped++
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			result.Skipped++
			continue
		}
		perTenant[item.TenantID]++

		res, err := r.Run(ctx, item.TenantID, item.EntityID, item.Opts)
		if err != nil {
			zap.L().Warn("pipeline: batch item failed",
				zap.String("tenant", item.TenantID),
				zap.String("entity", item.EntityID),
				zap.Error(err),
			)
			result.Failed++
			continue
		}
		if res.Skipped {
			result.Skipped++
			continue
		}
		result.Processed++
	}

	zap.L().Info("pipeline: batch finished",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result
}

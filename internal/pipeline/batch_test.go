package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/crm-enrich/internal/model"
)

func batchItems(tenant string, n int) []BatchItem {
	items := make([]BatchItem, n)
	for i := range items {
		items[i] = BatchItem{
			TenantID: tenant,
			EntityID: fmt.Sprintf("entity-%d", i),
			Opts:     RunOptions{Mode: model.ModeMetadataOnly},
		}
	}
	return items
}

func TestRunBatchProcessesAll(t *testing.T) {
	h := newHarness(t)

	result := h.runner.RunBatch(context.Background(), batchItems("t1", 3), BatchLimits{
		Delay: time.Millisecond,
	})

	assert.Equal(t, 3, result.Processed)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Failed)
}

func TestRunBatchGlobalCap(t *testing.T) {
	h := newHarness(t)

	result := h.runner.RunBatch(context.Background(), batchItems("t1", 5), BatchLimits{
		Global:    2,
		PerTenant: 10,
		Delay:     time.Millisecond,
	})

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 3, result.Skipped)
}

func TestRunBatchPerTenantCap(t *testing.T) {
	h := newHarness(t)

	items := append(batchItems("t1", 3), batchItems("t2", 2)...)
	result := h.runner.RunBatch(context.Background(), items, BatchLimits{
		Global:    10,
		PerTenant: 2,
		Delay:     time.Millisecond,
	})

	assert.Equal(t, 4, result.Processed)
	assert.Equal(t, 1, result.Skipped)
}

func TestRunBatchCountsFailures(t *testing.T) {
	h := newHarness(t)

	items := batchItems("t1", 2)
	items[1].EntityID = "" // invalid, fails validation

	result := h.runner.RunBatch(context.Background(), items, BatchLimits{
		Delay: time.Millisecond,
	})

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
}

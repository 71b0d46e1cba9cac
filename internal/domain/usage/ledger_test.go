package usage

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-server/internal/config"
	"agent-server/internal/domain/model"
)

func testRegistry(t *testing.T) *model.Registry {
	t.Helper()
	registry, err := model.NewRegistry(&config.Config{
		ChatDeployment:          "chat",
		VisionDeployment:        "vision",
		AudioDeployment:         "audio",
		ReasoningDeployment:     "o1",
		FastReasoningDeployment: "o3-mini",
		EmbeddingsDeployment:    "embed",
	})
	require.NoError(t, err)
	return registry
}

func TestRecordSuccessConcurrent(t *testing.T) {
	registry := testRegistry(t)
	ledger := NewLedger(registry)
	profile, err := registry.ProfileFor(model.TypeChat)
	require.NoError(t, err)

	const workers = 64
	const callsPerWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < callsPerWorker; i++ {
				ledger.RecordSuccess(profile, 100, 40, 200*time.Millisecond)
			}
		}()
	}
	wg.Wait()

	stats, ok := ledger.Snapshot(model.TypeChat)
	require.True(t, ok)

	const total = workers * callsPerWorker
	assert.Equal(t, int64(total), stats.TotalRequests)
	assert.Equal(t, int64(total*100), stats.TotalTokensInput)
	assert.Equal(t, int64(total*40), stats.TotalTokensOutput)
	assert.InDelta(t, 200.0, stats.AverageLatencyMS, 0.001)

	wantCost := profile.Cost(100, 40).Mul(decimal.NewFromInt(total))
	assert.True(t, stats.TotalCostUSD.Equal(wantCost),
		"cost %s != expected %s", stats.TotalCostUSD, wantCost)
}

func TestRecordFailureDoesNotTouchTokensOrCost(t *testing.T) {
	registry := testRegistry(t)
	ledger := NewLedger(registry)

	ledger.RecordFailure(model.TypeChat)

	stats, ok := ledger.Snapshot(model.TypeChat)
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.ErrorCount)
	assert.Equal(t, int64(0), stats.TotalRequests)
	assert.Equal(t, int64(0), stats.TotalTokensInput)
	assert.Equal(t, int64(0), stats.TotalTokensOutput)
	assert.True(t, stats.TotalCostUSD.IsZero())
}

func TestAverageLatencyIsArithmeticMean(t *testing.T) {
	registry := testRegistry(t)
	ledger := NewLedger(registry)
	profile, err := registry.ProfileFor(model.TypeChat)
	require.NoError(t, err)

	ledger.RecordSuccess(profile, 1, 1, 100*time.Millisecond)
	ledger.RecordSuccess(profile, 1, 1, 300*time.Millisecond)
	ledger.RecordSuccess(profile, 1, 1, 200*time.Millisecond)

	stats, _ := ledger.Snapshot(model.TypeChat)
	assert.InDelta(t, 200.0, stats.AverageLatencyMS, 0.001)
}

func TestErrorRate(t *testing.T) {
	registry := testRegistry(t)
	ledger := NewLedger(registry)
	profile, err := registry.ProfileFor(model.TypeChat)
	require.NoError(t, err)

	// No completed requests: errors divide by max(requests, 1).
	ledger.RecordFailure(model.TypeChat)
	stats, _ := ledger.Snapshot(model.TypeChat)
	assert.Equal(t, 1.0, stats.ErrorRate())

	ledger.RecordSuccess(profile, 1, 1, time.Millisecond)
	ledger.RecordSuccess(profile, 1, 1, time.Millisecond)
	stats, _ = ledger.Snapshot(model.TypeChat)
	assert.Equal(t, 0.5, stats.ErrorRate())
}

func TestSnapshotIsACopy(t *testing.T) {
	registry := testRegistry(t)
	ledger := NewLedger(registry)
	profile, err := registry.ProfileFor(model.TypeChat)
	require.NoError(t, err)

	ledger.RecordSuccess(profile, 10, 5, time.Millisecond)
	before, _ := ledger.Snapshot(model.TypeChat)

	ledger.RecordSuccess(profile, 10, 5, time.Millisecond)
	assert.Equal(t, int64(1), before.TotalRequests, "snapshot must not track later updates")

	_, ok := ledger.Snapshot("nonexistent")
	assert.False(t, ok)
}

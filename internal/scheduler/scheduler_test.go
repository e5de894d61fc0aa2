package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"post-purge/internal/models/entities"
)

func workItems(n int) []entities.WorkItem {
	items := make([]entities.WorkItem, n)
	for i := range items {
		items[i] = entities.WorkItem{ID: fmt.Sprintf("%d", 1000+i)}
	}
	return items
}

func newTestScheduler(t *testing.T, cfg entities.BatchConfig, gw *fakeGateway, clock *fakeClock) *Scheduler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	handler := NewRateLimitHandler(gw, entities.DefaultRateLimitPolicy(), clock, logger)
	s, err := NewScheduler(cfg, handler, clock, logger)
	require.NoError(t, err)
	return s
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{12, 5, []int{5, 5, 2}},
		{10, 5, []int{5, 5}},
		{1, 5, []int{1}},
		{7, 1, []int{1, 1, 1, 1, 1, 1, 1}},
		{3, 10, []int{3}},
		{0, 5, nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_by_%d", tt.n, tt.size), func(t *testing.T) {
			items := workItems(tt.n)
			batches := Partition(items, tt.size)

			var sizes []int
			var flat []entities.WorkItem
			for _, b := range batches {
				sizes = append(sizes, len(b))
				flat = append(flat, b...)
			}
			assert.Equal(t, tt.want, sizes)
			if tt.n > 0 {
				assert.Equal(t, items, flat, "partition must keep order")
				assert.Len(t, batches, (tt.n+tt.size-1)/tt.size)
			}
		})
	}
}

func TestNewScheduler_InvalidConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)
	clock := newFakeClock()
	handler := NewRateLimitHandler(newFakeGateway(), entities.DefaultRateLimitPolicy(), clock, logger)

	_, err := NewScheduler(entities.BatchConfig{ItemsPerBatch: 0}, handler, clock, logger)
	assert.ErrorIs(t, err, entities.ErrInvalidBatchSize)

	_, err = NewScheduler(entities.BatchConfig{ItemsPerBatch: 1, InterBatchDelay: -time.Second}, handler, clock, logger)
	assert.ErrorIs(t, err, entities.ErrInvalidDelay)
}

func TestScheduler_TwelveItemsInBatchesOfFive(t *testing.T) {
	gw := newFakeGateway()
	clock := newFakeClock()
	cfg := entities.BatchConfig{
		ItemsPerBatch:   5,
		InterBatchDelay: 90 * time.Minute,
		InterItemDelay:  3 * time.Second,
	}
	s := newTestScheduler(t, cfg, gw, clock)
	tracker := NewTracker()
	items := workItems(12)
	tracker.Reset(len(items))

	outcomes, err := s.Run(context.Background(), items, tracker)
	require.NoError(t, err)

	require.Len(t, outcomes, 12)
	for i, o := range outcomes {
		assert.Equal(t, items[i].ID, o.ItemID)
		assert.Equal(t, entities.OutcomeDeleted, o.Status)
	}

	// two inter-batch pauses, none after the last chunk
	assert.Equal(t, 2, clock.count(90*time.Minute))
	// (5-1) + (5-1) + (2-1) item pauses
	assert.Equal(t, 9, clock.count(3*time.Second))
	assert.Equal(t, 90*time.Minute, clock.recorded()[len(clock.recorded())-2],
		"last inter-batch pause comes before the final chunk")

	assert.Equal(t, entities.ProgressSnapshot{Deleted: 12, Failed: 0, Total: 12}, tracker.Snapshot())
	assert.Equal(t, 100, tracker.Percent())
}

func TestScheduler_NoDelayAfterFinalChunk(t *testing.T) {
	gw := newFakeGateway()
	clock := newFakeClock()
	s := newTestScheduler(t, entities.BatchConfig{ItemsPerBatch: 5, InterBatchDelay: time.Hour}, gw, clock)

	tracker := NewTracker()
	tracker.Reset(5)

	_, err := s.Run(context.Background(), workItems(5), tracker)
	require.NoError(t, err)
	assert.Empty(t, clock.recorded())
	assert.Equal(t, 100, tracker.Percent())
}

func TestScheduler_FailureAdvancesExactlyOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.script("1001", errors.New("status not found"))
	clock := newFakeClock()
	s := newTestScheduler(t, entities.BatchConfig{ItemsPerBatch: 5}, gw, clock)
	tracker := NewTracker()
	tracker.Reset(3)

	outcomes, err := s.Run(context.Background(), workItems(3), tracker)
	require.NoError(t, err)

	assert.Equal(t, []string{"1000", "1001", "1002"}, gw.attempted())
	require.Len(t, outcomes, 3)
	assert.Equal(t, entities.OutcomeFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Reason, "status not found")
	assert.Equal(t, entities.ProgressSnapshot{Deleted: 2, Failed: 1, Total: 3}, tracker.Snapshot())
}

func TestScheduler_ThrottleRetriesSameItem(t *testing.T) {
	gw := newFakeGateway()
	clock := newFakeClock()
	reset := clock.Now().Add(600 * time.Second).Unix()
	gw.script("1000", entities.NewThrottleError(&reset, "Rate limit exceeded"))

	s := newTestScheduler(t, entities.BatchConfig{ItemsPerBatch: 5}, gw, clock)
	tracker := NewTracker()
	tracker.Reset(1)

	outcomes, err := s.Run(context.Background(), workItems(1), tracker)
	require.NoError(t, err)

	assert.Equal(t, []string{"1000", "1000"}, gw.attempted())
	assert.Equal(t, []time.Duration{11 * time.Minute}, clock.recorded())
	require.Len(t, outcomes, 1)
	assert.Equal(t, entities.OutcomeDeleted, outcomes[0].Status)
	assert.Equal(t, entities.ProgressSnapshot{Deleted: 1, Failed: 0, Total: 1}, tracker.Snapshot())
}

func TestScheduler_ProgressNeverExceedsTotal(t *testing.T) {
	gw := newFakeGateway()
	gw.script("1003", errors.New("forbidden"))
	gw.script("1006", entities.NewThrottleError(nil, "slow down"), entities.NewThrottleError(nil, "slow down"))
	clock := newFakeClock()
	s := newTestScheduler(t, entities.BatchConfig{ItemsPerBatch: 3, InterBatchDelay: time.Minute, InterItemDelay: time.Second}, gw, clock)

	items := workItems(8)
	tracker := NewTracker()
	tracker.Reset(len(items))

	check := func() {
		snap := tracker.Snapshot()
		assert.LessOrEqual(t, snap.Deleted+snap.Failed, snap.Total)
	}
	clock.onSleep = func(time.Duration) { check() }
	gw.onCall = func(string) { check() }

	_, err := s.Run(context.Background(), items, tracker)
	require.NoError(t, err)
	assert.Equal(t, entities.ProgressSnapshot{Deleted: 7, Failed: 1, Total: 8}, tracker.Snapshot())
	assert.Equal(t, 2, clock.count(entities.DefaultRateLimitPolicy().FallbackWait))
}

func TestScheduler_CancelDuringBatchPause(t *testing.T) {
	gw := newFakeGateway()
	clock := newFakeClock()
	s := newTestScheduler(t, entities.BatchConfig{ItemsPerBatch: 2, InterBatchDelay: time.Hour}, gw, clock)

	ctx, cancel := context.WithCancel(context.Background())
	clock.onSleep = func(d time.Duration) {
		if d == time.Hour {
			cancel()
		}
	}

	tracker := NewTracker()
	tracker.Reset(5)

	outcomes, err := s.Run(ctx, workItems(5), tracker)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, outcomes, 2)
	assert.Equal(t, entities.ProgressSnapshot{Deleted: 2, Total: 5}, tracker.Snapshot())
	assert.Equal(t, []string{"1000", "1001"}, gw.attempted())
}

func TestScheduler_CancelDuringThrottleWait(t *testing.T) {
	gw := newFakeGateway()
	gw.script("1000", entities.NewThrottleError(nil, "slow down"))
	clock := newFakeClock()
	s := newTestScheduler(t, entities.BatchConfig{ItemsPerBatch: 2}, gw, clock)

	ctx, cancel := context.WithCancel(context.Background())
	clock.onSleep = func(time.Duration) { cancel() }
	tracker := NewTracker()
	tracker.Reset(2)

	outcomes, err := s.Run(ctx, workItems(2), tracker)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outcomes)
	assert.Equal(t, entities.ProgressSnapshot{Total: 2}, tracker.Snapshot(),
		"a throttled item is never recorded as failed")
}

func TestScheduler_RejectsConcurrentRun(t *testing.T) {
	gw := newFakeGateway()
	clock := newFakeClock()
	s := newTestScheduler(t, entities.BatchConfig{ItemsPerBatch: 1}, gw, clock)

	var inner error
	gw.onCall = func(id string) {
		if id == "1000" {
			_, inner = s.Run(context.Background(), workItems(1), nil)
		}
	}

	_, err := s.Run(context.Background(), workItems(1), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, inner, entities.ErrAlreadyInProgress)
}

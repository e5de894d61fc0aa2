package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"post-purge/internal/models/entities"
)

func TestTracker_RecordAndPercent(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, 0, tr.Percent(), "zero total reports zero percent")

	tr.Reset(3)
	now := time.Now()
	tr.Record(entities.Deleted("a", now))
	assert.Equal(t, 33, tr.Percent())

	tr.Record(entities.Failed("b", "forbidden", now))
	assert.Equal(t, 67, tr.Percent())

	tr.Record(entities.Deleted("c", now))
	assert.Equal(t, 100, tr.Percent())
	assert.Equal(t, entities.ProgressSnapshot{Deleted: 2, Failed: 1, Total: 3}, tr.Snapshot())
}

func TestTracker_IgnoresUnknownStatus(t *testing.T) {
	tr := NewTracker()
	tr.Reset(1)
	assert.False(t, tr.Record(entities.DeletionOutcome{ItemID: "x", Status: "throttled"}))
	assert.Equal(t, entities.ProgressSnapshot{Total: 1}, tr.Snapshot())
}

func TestTracker_RecordBeyondTotalIsRejected(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	assert.False(t, tr.Record(entities.Deleted("a", now)), "no Reset means a zero total")
	assert.Equal(t, entities.ProgressSnapshot{}, tr.Snapshot())

	tr.Reset(1)
	assert.True(t, tr.Record(entities.Deleted("a", now)))
	assert.False(t, tr.Record(entities.Failed("b", "forbidden", now)))
	assert.Equal(t, entities.ProgressSnapshot{Deleted: 1, Total: 1}, tr.Snapshot())
	assert.Equal(t, 100, tr.Percent())
}

func TestTracker_SnapshotIsIdempotent(t *testing.T) {
	tr := NewTracker()
	tr.Reset(4)
	tr.Record(entities.Deleted("a", time.Now()))

	first := tr.Snapshot()
	second := tr.Snapshot()
	assert.Equal(t, first, second)

	// mutating a returned copy must not leak into the tracker
	first.Deleted = 99
	assert.Equal(t, second, tr.Snapshot())
}

func TestTracker_ConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	const total = 500
	tr := NewTracker()
	tr.Reset(total)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for j := 0; j < 4; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := tr.Snapshot()
				if snap.Done() > snap.Total || snap.Done() < last {
					t.Errorf("inconsistent snapshot %+v after %d", snap, last)
					return
				}
				last = snap.Done()
			}
		}()
	}

	now := time.Now()
	for i := 0; i < total; i++ {
		if i%7 == 0 {
			tr.Record(entities.Failed("x", "boom", now))
		} else {
			tr.Record(entities.Deleted("x", now))
		}
	}
	close(stop)
	wg.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, total, snap.Done())
}

func TestRateLimitHandler_WaitFor(t *testing.T) {
	policy := entities.RateLimitPolicy{Buffer: time.Minute, FallbackWait: 15 * time.Minute}
	h := NewRateLimitHandler(newFakeGateway(), policy, newFakeClock(), zaptest.NewLogger(t))
	now := time.Unix(1_700_000_000, 0)

	at := func(offset int64) entities.RateLimitSignal {
		reset := now.Unix() + offset
		return entities.RateLimitSignal{ResetEpochSeconds: &reset}
	}

	assert.Equal(t, 11*time.Minute, h.WaitFor(at(600), now))
	assert.Equal(t, 12*time.Minute, h.WaitFor(at(601), now), "partial minutes round up")
	assert.Equal(t, 2*time.Minute, h.WaitFor(at(1), now))
	assert.Equal(t, time.Minute, h.WaitFor(at(-120), now), "reset in the past waits only the buffer")
	assert.Equal(t, 15*time.Minute, h.WaitFor(entities.RateLimitSignal{}, now))
}

func TestRateLimitHandler_AttemptOutcomes(t *testing.T) {
	gw := newFakeGateway()
	gw.script("gone", assert.AnError)
	clock := newFakeClock()
	h := NewRateLimitHandler(gw, entities.DefaultRateLimitPolicy(), clock, zaptest.NewLogger(t))

	ok, err := h.Attempt(context.Background(), entities.WorkItem{ID: "fine"})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeDeleted, ok.Status)
	assert.Equal(t, clock.Now(), ok.Timestamp)

	failed, err := h.Attempt(context.Background(), entities.WorkItem{ID: "gone"})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeFailed, failed.Status)
	assert.Equal(t, assert.AnError.Error(), failed.Reason)
	assert.Equal(t, []string{"fine", "gone"}, gw.attempted())
}

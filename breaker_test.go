package llmroute_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/opsmend/llmroute"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	bs := llmroute.NewBreakerSet(3, time.Minute, time.Minute)

	assert.Equal(t, llmroute.BreakerClosed, bs.State("m1"))

	bs.RecordFailure("m1")
	bs.RecordFailure("m1")
	assert.Equal(t, llmroute.BreakerClosed, bs.State("m1"))

	bs.RecordFailure("m1")
	assert.Equal(t, llmroute.BreakerOpen, bs.State("m1"))
	assert.False(t, bs.Allow("m1"))
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	bs := llmroute.NewBreakerSet(3, time.Minute, time.Minute)

	bs.RecordFailure("m1")
	bs.RecordFailure("m1")
	bs.RecordSuccess("m1")

	// The two earlier failures no longer count.
	bs.RecordFailure("m1")
	bs.RecordFailure("m1")
	assert.Equal(t, llmroute.BreakerClosed, bs.State("m1"))

	bs.RecordFailure("m1")
	assert.Equal(t, llmroute.BreakerOpen, bs.State("m1"))
}

func TestBreaker_HalfOpenSingleProbe(t *testing.T) {
	bs := llmroute.NewBreakerSet(1, time.Minute, 20*time.Millisecond)

	bs.RecordFailure("m1")
	assert.False(t, bs.Allow("m1"))

	time.Sleep(40 * time.Millisecond)

	// Cooldown elapsed: exactly one probe admitted.
	assert.True(t, bs.Allow("m1"))
	assert.False(t, bs.Allow("m1"))

	// With a probe in flight the breaker reports open to observers.
	assert.Equal(t, llmroute.BreakerOpen, bs.State("m1"))

	bs.RecordSuccess("m1")
	assert.Equal(t, llmroute.BreakerClosed, bs.State("m1"))
	assert.True(t, bs.Allow("m1"))
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	bs := llmroute.NewBreakerSet(1, time.Minute, 20*time.Millisecond)

	bs.RecordFailure("m1")
	time.Sleep(40 * time.Millisecond)

	assert.True(t, bs.Allow("m1"))
	bs.RecordFailure("m1")

	assert.Equal(t, llmroute.BreakerOpen, bs.State("m1"))
	assert.False(t, bs.Allow("m1"))
}

func TestBreaker_ReleaseFreesProbeSlot(t *testing.T) {
	bs := llmroute.NewBreakerSet(1, time.Minute, 20*time.Millisecond)

	bs.RecordFailure("m1")
	time.Sleep(40 * time.Millisecond)

	assert.True(t, bs.Allow("m1"))
	bs.Release("m1")

	// The slot is free again for the next caller.
	assert.True(t, bs.Allow("m1"))
}

func TestBreaker_IndependentIDs(t *testing.T) {
	bs := llmroute.NewBreakerSet(1, time.Minute, time.Minute)

	bs.RecordFailure("m1")
	assert.Equal(t, llmroute.BreakerOpen, bs.State("m1"))
	assert.Equal(t, llmroute.BreakerClosed, bs.State("m2"))
	assert.True(t, bs.Allow("m2"))
}

func TestBreaker_ConcurrentRecording(t *testing.T) {
	bs := llmroute.NewBreakerSet(1000, time.Minute, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				bs.RecordFailure("m1")
				bs.RecordSuccess("m2")
				_ = bs.State("m1")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, llmroute.BreakerClosed, bs.State("m1"))
	assert.Equal(t, llmroute.BreakerClosed, bs.State("m2"))
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", llmroute.BreakerClosed.String())
	assert.Equal(t, "open", llmroute.BreakerOpen.String())
	assert.Equal(t, "half-open", llmroute.BreakerHalfOpen.String())
}

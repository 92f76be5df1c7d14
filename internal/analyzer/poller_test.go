package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/cortex-analyzer/internal/cortex"
)

func newTestPoller(eng *fakeEngine, maxTicks int) (*Poller, *countingSleeper) {
	logger, _ := test.NewNullLogger()
	sl := &countingSleeper{}
	return NewPoller(eng, logger, WithInterval(time.Second), WithMaxTicks(maxTicks), WithSleeper(sl.sleep)), sl
}

func TestPollAlreadySucceededSkipsStatusFetch(t *testing.T) {
	eng := newFakeEngine()
	p, sl := newTestPoller(eng, 5)

	res, err := p.Poll(context.Background(), &cortex.Job{ID: "J1", Status: cortex.StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, res.State)
	assert.Zero(t, res.Ticks)
	assert.Zero(t, eng.jobCalls)
	assert.Empty(t, sl.waits)
	assert.Equal(t, 1, eng.reportCalls)
	require.NotNil(t, res.Report)
	assert.JSONEq(t, eng.full, string(res.Report.Full))
}

func TestPollNeverExceedsTickCeiling(t *testing.T) {
	for _, max := range []int{1, 3, 10} {
		eng := newFakeEngine(cortex.StatusInProgress)
		p, _ := newTestPoller(eng, max)

		res, err := p.Poll(context.Background(), &cortex.Job{ID: "J1", Status: cortex.StatusWaiting})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPollTimeout))
		assert.Equal(t, StateTimedOut, res.State)
		assert.Equal(t, max, eng.jobCalls, "max=%d", max)
		assert.Zero(t, eng.reportCalls)
	}
}

func TestPollSuccessOnLastTick(t *testing.T) {
	eng := newFakeEngine(cortex.StatusWaiting, cortex.StatusWaiting, cortex.StatusSuccess)
	p, _ := newTestPoller(eng, 3)

	res, err := p.Poll(context.Background(), &cortex.Job{ID: "J1", Status: cortex.StatusWaiting})
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, 3, res.Ticks)
	assert.Equal(t, 1, eng.reportCalls)
}

func TestPollUnknownStatusKeepsWaiting(t *testing.T) {
	eng := newFakeEngine(cortex.StatusUnknown, cortex.StatusSuccess)
	logger, hook := test.NewNullLogger()
	sl := &countingSleeper{}
	p := NewPoller(eng, logger, WithMaxTicks(5), WithSleeper(sl.sleep))

	res, err := p.Poll(context.Background(), &cortex.Job{ID: "J1", Status: cortex.StatusWaiting})
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, 2, eng.jobCalls)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Unrecognized job status, still waiting" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestPollStatusFetchError(t *testing.T) {
	eng := newFakeEngine()
	eng.jobErr = errBoom
	p, _ := newTestPoller(eng, 5)

	_, err := p.Poll(context.Background(), &cortex.Job{ID: "J1", Status: cortex.StatusWaiting})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEngine))
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, 1, eng.jobCalls)
}

func TestPollReportFetchError(t *testing.T) {
	eng := newFakeEngine(cortex.StatusSuccess)
	eng.reportErr = errBoom
	p, _ := newTestPoller(eng, 5)

	_, err := p.Poll(context.Background(), &cortex.Job{ID: "J1", Status: cortex.StatusWaiting})
	assert.True(t, errors.Is(err, ErrEngine))
	assert.Equal(t, 1, eng.reportCalls)
}

func TestPollDefaults(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := NewPoller(newFakeEngine(), logger, WithInterval(0), WithMaxTicks(-1), WithSleeper(nil))
	assert.Equal(t, 5*time.Second, p.interval)
	assert.Equal(t, 60, p.maxTicks)
	assert.NotNil(t, p.sleep)
}

func TestSleepContextHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "InProgress", StateInProgress.String())
	assert.Equal(t, "TimedOut", StateTimedOut.String())
	assert.True(t, StateTimedOut.Terminal())
	assert.False(t, StateWaiting.Terminal())
	assert.Equal(t, StateUnknown, stateOf(cortex.JobStatus(99)))
}

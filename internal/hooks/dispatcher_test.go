package hooks

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/cortex-analyzer/internal/analyzer"
	"github.com/Ashfaaq98/cortex-analyzer/internal/bus"
	"github.com/Ashfaaq98/cortex-analyzer/internal/config"
)

func TestParseHook(t *testing.T) {
	for _, h := range AllHooks {
		got, err := ParseHook(string(h))
		require.NoError(t, err)
		assert.Equal(t, h, got)
	}
	_, err := ParseHook("on_preload_ioc_create")
	assert.True(t, errors.Is(err, ErrUnknownHook))
}

func TestHookToggles(t *testing.T) {
	cfg := config.ModuleConfig{ManualHookEnabled: true}
	assert.True(t, HookManual.Enabled(cfg))
	assert.False(t, HookOnCreate.Enabled(cfg))
	assert.False(t, HookOnUpdate.Enabled(cfg))
	cfg.OnUpdateHookEnabled = true
	assert.True(t, HookOnUpdate.Enabled(cfg))
}

func TestHandleDisabledHook(t *testing.T) {
	eng := newStubEngine()
	d, _, _ := newTestDispatcher(t, testModuleConfig(), eng)

	out, err := d.Handle(context.Background(), HookOnCreate, []IOC{{ID: "1", Value: "evil.example", Type: "domain"}})
	assert.True(t, errors.Is(err, ErrHookDisabled))
	assert.Nil(t, out)
	assert.Zero(t, eng.runs)
}

func TestHandleBatchKeepsOrderAndBound(t *testing.T) {
	eng := newStubEngine()
	eng.fail["bad.example"] = "analyzer crashed"
	d, st, rb := newTestDispatcher(t, testModuleConfig(), eng)

	iocs := []IOC{
		{ID: "1", Value: "evil.example", Type: "domain"},
		{ID: "2", Value: "10.0.0.1", Type: "ip-src"},
		{ID: "3", Value: "bad.example", Type: "hostname"},
		{ID: "4", Value: "someone@example.org", Type: "email-src"},
		{ID: "5", Value: "d41d8cd98f00b204e9800998ecf8427e", Type: "md5"},
	}
	out, err := d.Handle(context.Background(), HookManual, iocs)
	require.NoError(t, err)
	require.Len(t, out, len(iocs))

	for i, o := range out {
		assert.Equal(t, iocs[i], o.IOC)
		assert.Equal(t, HookManual, o.Hook)
	}
	assert.Equal(t, string(analyzer.OutcomePublished), out[0].Outcome)
	assert.Equal(t, string(analyzer.OutcomePublished), out[1].Outcome)
	assert.Equal(t, string(analyzer.OutcomeFailed), out[2].Outcome)
	assert.Equal(t, analyzer.KindRemoteJobFailure.String(), out[2].ErrorKind)
	assert.Contains(t, out[2].Error, "analyzer crashed")
	assert.Equal(t, OutcomeSkipped, out[3].Outcome)
	assert.Equal(t, string(analyzer.OutcomePublished), out[4].Outcome)

	assert.Equal(t, 4, eng.runs)
	assert.LessOrEqual(t, eng.peak, 2)

	ctx := context.Background()
	attrs, err := st.GetAttributes(ctx, "1")
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, analyzer.ReportTab, attrs[0].Tab)
	assert.Contains(t, attrs[0].Value, "evil.example")

	runs, err := st.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 4)

	assert.Len(t, rb.results, 5)
}

func TestHandleAttributeDisabled(t *testing.T) {
	cfg := testModuleConfig()
	cfg.ReportAsAttribute = false
	d, st, _ := newTestDispatcher(t, cfg, newStubEngine())

	out, err := d.Handle(context.Background(), HookManual, []IOC{{ID: "1", Value: "evil.example", Type: "domain"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, string(analyzer.OutcomeRendered), out[0].Outcome)
	assert.False(t, out[0].Attached)

	attrs, err := st.GetAttributes(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestHandleUsesLatestSnapshot(t *testing.T) {
	live := config.NewLive(testModuleConfig())
	d, _, _ := newTestDispatcher(t, testModuleConfig(), newStubEngine())
	d.live = live

	live.Update(func(c *config.ModuleConfig) { c.ManualHookEnabled = false })
	_, err := d.Handle(context.Background(), HookManual, []IOC{{ID: "1", Value: "x.example", Type: "domain"}})
	assert.True(t, errors.Is(err, ErrHookDisabled))

	live.Update(func(c *config.ModuleConfig) { c.ManualHookEnabled = true })
	_, err = d.Handle(context.Background(), HookManual, []IOC{{ID: "1", Value: "x.example", Type: "domain"}})
	assert.NoError(t, err)
}

func TestHandleCanceledContext(t *testing.T) {
	cfg := testModuleConfig()
	cfg.MaxConcurrent = 1
	d, _, _ := newTestDispatcher(t, cfg, newStubEngine())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	iocs := make([]IOC, 3)
	for i := range iocs {
		iocs[i] = IOC{ID: fmt.Sprint(i), Value: fmt.Sprintf("h%d.example", i), Type: "domain"}
	}
	out, err := d.Handle(ctx, HookManual, iocs)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, o := range out {
		assert.Equal(t, string(analyzer.OutcomeFailed), o.Outcome)
	}
}

func TestHandleRecordsRunCanceledMidPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := &cancelingEngine{stubEngine: newStubEngine(), cancel: cancel}
	d, st, rb := newTestDispatcher(t, testModuleConfig(), eng)

	out, err := d.Handle(ctx, HookManual, []IOC{{ID: "1", Value: "evil.example", Type: "domain"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, string(analyzer.OutcomeFailed), out[0].Outcome)
	assert.Equal(t, analyzer.KindCanceled.String(), out[0].ErrorKind)

	runs, err := st.ListRuns(context.Background(), "1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, analyzer.KindCanceled.String(), runs[0].ErrorKind)
	assert.Equal(t, "job-evil.example", runs[0].JobID)

	require.Len(t, rb.results, 1)
	assert.Equal(t, string(analyzer.OutcomeFailed), rb.results[0].Outcome)
	assert.Equal(t, analyzer.KindCanceled.String(), rb.results[0].ErrorKind)
}

type scriptedBus struct {
	recordingBus
	msgs []bus.HookMessage
}

func (b *scriptedBus) ReadHooks(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg bus.HookMessage) error) error {
	for _, m := range b.msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func TestConsume(t *testing.T) {
	eng := newStubEngine()
	d, st, _ := newTestDispatcher(t, testModuleConfig(), eng)
	logger, _ := test.NewNullLogger()
	sb := &scriptedBus{recordingBus: recordingBus{NullBus: *bus.NewNullBus(logger)}, msgs: []bus.HookMessage{
		{ID: "1-0", Hook: string(HookManual), IOCID: "9", IOCValue: "evil.example", IOCType: "domain"},
		{ID: "2-0", Hook: "bogus", IOCID: "10", IOCValue: "x", IOCType: "domain"},
		{ID: "3-0", Hook: string(HookOnCreate), IOCID: "11", IOCValue: "y.example", IOCType: "domain"},
		{ID: "4-0", Hook: string(HookManual), IOCValue: "noid.example", IOCType: "domain"},
	}}

	require.NoError(t, d.Consume(context.Background(), sb, "c1"))
	assert.Equal(t, 2, eng.runs)

	runs, err := st.ListRuns(context.Background(), "9", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, string(analyzer.OutcomePublished), runs[0].Outcome)
}

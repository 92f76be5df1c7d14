package hooks

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/cortex-analyzer/internal/analyzer"
	"github.com/Ashfaaq98/cortex-analyzer/internal/bus"
	"github.com/Ashfaaq98/cortex-analyzer/internal/config"
	"github.com/Ashfaaq98/cortex-analyzer/internal/cortex"
	"github.com/Ashfaaq98/cortex-analyzer/internal/store"
)

// stubEngine completes every job on the first status fetch, except values listed in fail.
type stubEngine struct {
	mu       sync.Mutex
	fail     map[string]string
	jobs     map[string]string
	inFlight int
	peak     int
	runs     int
}

func newStubEngine() *stubEngine {
	return &stubEngine{fail: map[string]string{}, jobs: map[string]string{}}
}

func (e *stubEngine) ListAnalyzers(ctx context.Context) ([]cortex.Analyzer, error) {
	return []cortex.Analyzer{{ID: "vt", Name: config.DefaultAnalyzer}}, nil
}

func (e *stubEngine) RunAnalyzer(ctx context.Context, analyzerID string, req cortex.AnalyzerRequest) (*cortex.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs++
	e.inFlight++
	if e.inFlight > e.peak {
		e.peak = e.inFlight
	}
	id := "job-" + req.Data
	e.jobs[id] = req.Data
	return &cortex.Job{ID: id, Status: cortex.StatusWaiting}, nil
}

func (e *stubEngine) GetJob(ctx context.Context, jobID string) (*cortex.Job, error) {
	// give concurrent pipelines a chance to overlap
	time.Sleep(5 * time.Millisecond)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight--
	if msg, ok := e.fail[e.jobs[jobID]]; ok {
		return &cortex.Job{ID: jobID, Status: cortex.StatusFailure, ErrorMessage: msg}, nil
	}
	return &cortex.Job{ID: jobID, Status: cortex.StatusSuccess}, nil
}

func (e *stubEngine) GetReport(ctx context.Context, jobID string) (*cortex.Report, error) {
	e.mu.Lock()
	data := e.jobs[jobID]
	e.mu.Unlock()
	full, _ := json.Marshal(map[string]string{"data": data, "verdict": "malicious"})
	return &cortex.Report{JobID: jobID, Success: true, Full: full}, nil
}

type recordingBus struct {
	bus.NullBus
	mu      sync.Mutex
	results []bus.ResultMessage
}

// PublishResult fails on a done context, like a real network call would.
func (b *recordingBus) PublishResult(ctx context.Context, msg bus.ResultMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = append(b.results, msg)
	return nil
}

// cancelingEngine cancels the run's context on the first status fetch.
type cancelingEngine struct {
	*stubEngine
	cancel context.CancelFunc
}

func (e *cancelingEngine) GetJob(ctx context.Context, jobID string) (*cortex.Job, error) {
	e.cancel()
	return nil, context.Canceled
}

func testModuleConfig() config.ModuleConfig {
	return config.ModuleConfig{
		URL:               "https://cortex.local:9001",
		APIKey:            "k",
		Analyzer:          config.DefaultAnalyzer,
		ManualHookEnabled: true,
		ReportAsAttribute: true,
		PollInterval:      time.Millisecond,
		PollMaxTicks:      5,
		MaxConcurrent:     2,
	}
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestDispatcher(t *testing.T, cfg config.ModuleConfig, eng analyzer.Engine) (*Dispatcher, *store.Store, *recordingBus) {
	t.Helper()
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger, _ := test.NewNullLogger()
	rb := &recordingBus{NullBus: *bus.NewNullBus(logger)}
	d := NewDispatcher(config.NewLive(cfg), eng, st, logger,
		WithBus(rb),
		WithPollerOptions(analyzer.WithSleeper(noSleep)),
	)
	return d, st, rb
}

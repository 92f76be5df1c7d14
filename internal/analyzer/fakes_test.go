package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Ashfaaq98/cortex-analyzer/internal/cortex"
)

// fakeEngine scripts the engine side of a run and counts every call.
type fakeEngine struct {
	mu sync.Mutex

	analyzers []cortex.Analyzer
	listErr   error

	submitted *cortex.Job
	runErr    error
	requests  []cortex.AnalyzerRequest

	// statuses are returned by successive GetJob calls; the last one repeats.
	statuses []cortex.JobStatus
	errMsg   string
	jobErr   error

	full      string
	reportErr error

	listCalls, runCalls, jobCalls, reportCalls int
}

func newFakeEngine(statuses ...cortex.JobStatus) *fakeEngine {
	return &fakeEngine{
		analyzers: []cortex.Analyzer{{ID: "vt-3", Name: "VirusTotal_GetReport_3_0", DataTypeList: []string{"domain", "ip", "hash"}}},
		submitted: &cortex.Job{ID: "J1", Status: cortex.StatusWaiting},
		statuses:  statuses,
		full:      `{"verdict":"malicious","score":97}`,
	}
}

func (f *fakeEngine) ListAnalyzers(ctx context.Context) ([]cortex.Analyzer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.analyzers, f.listErr
}

func (f *fakeEngine) RunAnalyzer(ctx context.Context, analyzerID string, req cortex.AnalyzerRequest) (*cortex.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runCalls++
	f.requests = append(f.requests, req)
	if f.runErr != nil {
		return nil, f.runErr
	}
	job := *f.submitted
	job.AnalyzerID = analyzerID
	return &job, nil
}

func (f *fakeEngine) GetJob(ctx context.Context, jobID string) (*cortex.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobCalls++
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	status := cortex.StatusWaiting
	if len(f.statuses) > 0 {
		i := f.jobCalls - 1
		if i >= len(f.statuses) {
			i = len(f.statuses) - 1
		}
		status = f.statuses[i]
	}
	job := &cortex.Job{ID: jobID, Status: status}
	if status == cortex.StatusFailure {
		job.ErrorMessage = f.errMsg
	}
	return job, nil
}

func (f *fakeEngine) GetReport(ctx context.Context, jobID string) (*cortex.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportCalls++
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return &cortex.Report{JobID: jobID, Success: true, Full: json.RawMessage(f.full)}, nil
}

type attributeCall struct {
	iocID, tab, field, fieldType, value string
}

type fakeStore struct {
	mu    sync.Mutex
	calls []attributeCall
	err   error
}

func (s *fakeStore) AddTabAttributeField(ctx context.Context, iocID, tab, field, fieldType, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, attributeCall{iocID, tab, field, fieldType, value})
	return s.err
}

// countingSleeper records waits without sleeping.
type countingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *countingSleeper) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	return nil
}

var errBoom = errors.New("boom")

package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/cortex-analyzer/internal/cortex"
)

// State of the poll loop. TimedOut is synthesized locally; the others mirror the engine.
type State int

const (
	StateUnknown State = iota
	StateWaiting
	StateInProgress
	StateSuccess
	StateFailure
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "Waiting"
	case StateInProgress:
		return "InProgress"
	case StateSuccess:
		return "Success"
	case StateFailure:
		return "Failure"
	case StateTimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the poll loop stops in this state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure || s == StateTimedOut
}

func stateOf(s cortex.JobStatus) State {
	switch s {
	case cortex.StatusWaiting:
		return StateWaiting
	case cortex.StatusInProgress:
		return StateInProgress
	case cortex.StatusSuccess:
		return StateSuccess
	case cortex.StatusFailure:
		return StateFailure
	default:
		return StateUnknown
	}
}

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PollResult is the terminal outcome of a poll loop.
type PollResult struct {
	State  State
	Ticks  int
	Report *cortex.Report
}

// Poller drives a submitted job to a terminal state.
type Poller struct {
	engine   JobWatcher
	interval time.Duration
	maxTicks int
	sleep    Sleeper
	logger   logrus.FieldLogger
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithInterval sets the delay between status fetches.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxTicks sets the maximum number of status fetches.
func WithMaxTicks(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxTicks = n
		}
	}
}

// WithSleeper replaces the timer-based wait, mainly for tests.
func WithSleeper(s Sleeper) PollerOption {
	return func(p *Poller) {
		if s != nil {
			p.sleep = s
		}
	}
}

// NewPoller returns a poller with a 5s interval and a 60 tick ceiling unless overridden.
func NewPoller(engine JobWatcher, logger logrus.FieldLogger, opts ...PollerOption) *Poller {
	p := &Poller{
		engine:   engine,
		interval: 5 * time.Second,
		maxTicks: 60,
		sleep:    sleepContext,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll waits for job to finish. The job's submission status is the initial state.
//
// Each iteration honours Failure first, then Success, then the tick ceiling; only then
// does it wait and fetch the status again. At most maxTicks status fetches are made and
// the report is fetched exactly once, on Success.
func (p *Poller) Poll(ctx context.Context, job *cortex.Job) (PollResult, error) {
	log := p.logger.WithField("job_id", job.ID)
	status, errMsg := job.Status, job.ErrorMessage
	ticks := 0

	for {
		state := stateOf(status)
		switch state {
		case StateFailure:
			if errMsg == "" {
				errMsg = "job failed without an error message"
			}
			log.WithField("ticks", ticks).Warn("Job failed on the engine")
			return PollResult{State: StateFailure, Ticks: ticks},
				newError(KindRemoteJobFailure, job.AnalyzerName, job.ID, errMsg, nil)

		case StateSuccess:
			report, err := p.engine.GetReport(ctx, job.ID)
			if err != nil {
				return PollResult{State: StateSuccess, Ticks: ticks}, p.fetchError(ctx, job, "get report", err)
			}
			log.WithField("ticks", ticks).Info("Job succeeded")
			return PollResult{State: StateSuccess, Ticks: ticks, Report: report}, nil

		case StateUnknown:
			log.WithField("status", status.String()).Warn("Unrecognized job status, still waiting")
		}

		if ticks >= p.maxTicks {
			log.WithFields(logrus.Fields{
				"ticks":  ticks,
				"budget": p.interval * time.Duration(p.maxTicks),
			}).Warn("Job did not complete within the time budget")
			return PollResult{State: StateTimedOut, Ticks: ticks},
				newError(KindPollTimeout, job.AnalyzerName, job.ID, "job did not complete within the time budget", nil)
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return PollResult{State: state, Ticks: ticks},
				newError(KindCanceled, job.AnalyzerName, job.ID, "poll interrupted", err)
		}
		ticks++

		current, err := p.engine.GetJob(ctx, job.ID)
		if err != nil {
			return PollResult{State: state, Ticks: ticks}, p.fetchError(ctx, job, "get job status", err)
		}
		status, errMsg = current.Status, current.ErrorMessage
		log.WithFields(logrus.Fields{"tick": ticks, "status": status.String()}).Debug("Polled job")
	}
}

func (p *Poller) fetchError(ctx context.Context, job *cortex.Job, what string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindCanceled, job.AnalyzerName, job.ID, what, err)
	}
	return newError(KindEngine, job.AnalyzerName, job.ID, what, err)
}

package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/cortex-analyzer/internal/config"
)

// Outcome summarizes a pipeline run for the caller.
type Outcome string

const (
	// OutcomePublished: report rendered and attached to the indicator.
	OutcomePublished Outcome = "published"
	// OutcomeRendered: report rendered, attaching disabled by configuration.
	OutcomeRendered Outcome = "rendered"
	// OutcomeIncomplete: the job did not finish in time; nothing was rendered.
	OutcomeIncomplete Outcome = "incomplete"
	// OutcomeFailed: a fatal error stopped the run.
	OutcomeFailed Outcome = "failed"
)

// Result describes one pipeline run. It is returned for every outcome.
type Result struct {
	Indicator Indicator
	Analyzer  string
	JobID     string
	State     State
	Ticks     int
	Outcome   Outcome
	HTML      string
	Attached  bool
	Started   time.Time
	Duration  time.Duration
}

// Pipeline runs indicators through one configured analyzer.
type Pipeline struct {
	cfg       config.ModuleConfig
	catalog   *Catalog
	submitter *Submitter
	poller    *Poller
	renderer  *Renderer
	publisher *Publisher
	logger    logrus.FieldLogger
}

// NewPipeline wires the stages for cfg. cfg is copied; later changes to the caller's value are not seen.
func NewPipeline(cfg config.ModuleConfig, engine Engine, store AttributeStore, logger logrus.FieldLogger, opts ...PollerOption) *Pipeline {
	logger = logger.WithField("analyzer", cfg.Analyzer)
	pollOpts := append([]PollerOption{WithInterval(cfg.PollInterval), WithMaxTicks(cfg.PollMaxTicks)}, opts...)
	return &Pipeline{
		cfg:       cfg,
		catalog:   NewCatalog(engine, logger),
		submitter: NewSubmitter(engine, logger),
		poller:    NewPoller(engine, logger, pollOpts...),
		renderer:  NewRenderer(),
		publisher: NewPublisher(store, cfg.ReportAsAttribute, logger),
		logger:    logger,
	}
}

// Run executes Catalog -> Submit -> Poll -> Render -> Publish for ind.
//
// The returned Result is never nil. err is nil only for published and rendered outcomes.
// A poll timeout yields OutcomeIncomplete together with a non-fatal KindPollTimeout error;
// every other error is fatal and yields OutcomeFailed.
func (p *Pipeline) Run(ctx context.Context, ind Indicator) (*Result, error) {
	res := &Result{Indicator: ind, Analyzer: p.cfg.Analyzer, Started: time.Now()}
	log := p.logger.WithField("ioc", ind.String())
	defer func() { res.Duration = time.Since(res.Started) }()

	fail := func(err error) (*Result, error) {
		var perr *Error
		if errors.As(err, &perr) && !perr.Fatal() {
			res.Outcome = OutcomeIncomplete
			log.WithError(err).Warn("Analysis incomplete")
		} else {
			res.Outcome = OutcomeFailed
			log.WithError(err).Error("Analysis failed")
		}
		return res, err
	}

	if err := ind.validate(); err != nil {
		return fail(newError(KindSubmission, p.cfg.Analyzer, "", "invalid indicator", err))
	}

	log.Info("Getting Cortex report")

	analyzer, err := p.catalog.EnsureEnabled(ctx, p.cfg.Analyzer)
	if err != nil {
		return fail(err)
	}

	job, err := p.submitter.Submit(ctx, analyzer, ind)
	if err != nil {
		return fail(err)
	}
	if job.AnalyzerName == "" {
		job.AnalyzerName = analyzer.Name
	}
	res.JobID = job.ID

	polled, err := p.poller.Poll(ctx, job)
	res.State, res.Ticks = polled.State, polled.Ticks
	if err != nil {
		return fail(err)
	}

	full, err := polled.Report.FullValue()
	if err != nil {
		return fail(newError(KindRender, analyzer.Name, job.ID, "decode full report", err))
	}
	html, err := p.renderer.Render(p.cfg.Template(), full)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.Analyzer, perr.JobID = analyzer.Name, job.ID
		}
		return fail(err)
	}
	res.HTML = html

	attached, err := p.publisher.Publish(ctx, ind, html)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.Analyzer, perr.JobID = analyzer.Name, job.ID
		}
		return fail(err)
	}
	res.Attached = attached
	if attached {
		res.Outcome = OutcomePublished
	} else {
		res.Outcome = OutcomeRendered
	}
	log.WithFields(logrus.Fields{"job_id": job.ID, "outcome": res.Outcome}).Info("Analysis complete")
	return res, nil
}

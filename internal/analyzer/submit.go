package analyzer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/cortex-analyzer/internal/cortex"
)

const (
	// SubmissionTLP is the Traffic Light Protocol level sent with every job (TLP:GREEN).
	SubmissionTLP = 1
	// SubmissionMessage annotates jobs created by this module on the engine.
	SubmissionMessage = "Submitted by the IRIS Cortex analyzer module"
)

// NewRequest builds the run request for ind. Force is always set so the engine re-runs the analyzer.
func NewRequest(ind Indicator) cortex.AnalyzerRequest {
	return cortex.AnalyzerRequest{
		Data:     ind.Value,
		DataType: string(ind.Kind),
		TLP:      SubmissionTLP,
		Message:  SubmissionMessage,
		Force:    true,
	}
}

// Submitter creates one job per call.
type Submitter struct {
	engine JobRunner
	logger logrus.FieldLogger
}

// NewSubmitter returns a submitter backed by engine.
func NewSubmitter(engine JobRunner, logger logrus.FieldLogger) *Submitter {
	return &Submitter{engine: engine, logger: logger}
}

// Submit runs the analyzer against ind. Failures are not retried.
func (s *Submitter) Submit(ctx context.Context, a cortex.Analyzer, ind Indicator) (*cortex.Job, error) {
	req := NewRequest(ind)
	if !a.Supports(req.DataType) {
		s.logger.WithFields(logrus.Fields{
			"analyzer":  a.Name,
			"data_type": req.DataType,
		}).Warn("Analyzer does not declare this data type, submitting anyway")
	}

	job, err := s.engine.RunAnalyzer(ctx, a.ID, req)
	if err != nil {
		return nil, newError(KindSubmission, a.Name, "", "run analyzer for "+ind.String(), err)
	}
	s.logger.WithFields(logrus.Fields{
		"analyzer": a.Name,
		"job_id":   job.ID,
		"status":   job.Status.String(),
	}).Info("Job submitted")
	return job, nil
}

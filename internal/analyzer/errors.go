package analyzer

import (
	"fmt"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	// KindAnalyzerNotEnabled: the configured analyzer is missing from the engine catalog.
	KindAnalyzerNotEnabled
	// KindSubmission: the job could not be created.
	KindSubmission
	// KindRemoteJobFailure: the engine reported the job as failed.
	KindRemoteJobFailure
	// KindPollTimeout: the job did not finish within the poll budget. Not fatal.
	KindPollTimeout
	// KindRender: the report template could not be parsed or executed.
	KindRender
	// KindPublish: the attribute store rejected the rendered report.
	KindPublish
	// KindEngine: listing analyzers, fetching job status or the report failed in transport.
	KindEngine
	// KindCanceled: the caller's context ended the run.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindAnalyzerNotEnabled:
		return "analyzer_not_enabled"
	case KindSubmission:
		return "submission_error"
	case KindRemoteJobFailure:
		return "remote_job_failure"
	case KindPollTimeout:
		return "poll_timeout"
	case KindRender:
		return "render_error"
	case KindPublish:
		return "publish_error"
	case KindEngine:
		return "engine_error"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every pipeline stage.
type Error struct {
	Kind     ErrorKind
	Analyzer string
	JobID    string
	Msg      string
	Err      error

	sentinel bool
}

// Sentinels for errors.Is matching on kind.
var (
	ErrAnalyzerNotEnabled = &Error{Kind: KindAnalyzerNotEnabled, Msg: "analyzer not enabled", sentinel: true}
	ErrSubmission         = &Error{Kind: KindSubmission, Msg: "submission failed", sentinel: true}
	ErrRemoteJobFailure   = &Error{Kind: KindRemoteJobFailure, Msg: "remote job failed", sentinel: true}
	ErrPollTimeout        = &Error{Kind: KindPollTimeout, Msg: "job did not complete within the time budget", sentinel: true}
	ErrRender             = &Error{Kind: KindRender, Msg: "render failed", sentinel: true}
	ErrPublish            = &Error{Kind: KindPublish, Msg: "publish failed", sentinel: true}
	ErrEngine             = &Error{Kind: KindEngine, Msg: "engine request failed", sentinel: true}
	ErrCanceled           = &Error{Kind: KindCanceled, Msg: "canceled", sentinel: true}
)

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	if e.Analyzer != "" {
		msg += fmt.Sprintf(" (analyzer=%s", e.Analyzer)
		if e.JobID != "" {
			msg += fmt.Sprintf(" job=%s", e.JobID)
		}
		msg += ")"
	} else if e.JobID != "" {
		msg += fmt.Sprintf(" (job=%s)", e.JobID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind, so errors.Is(err, ErrPollTimeout) works on any poll timeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.sentinel {
		return false
	}
	return e.Kind == t.Kind
}

// Fatal reports whether the pipeline short-circuits on this error.
func (e *Error) Fatal() bool {
	return e.Kind != KindPollTimeout
}

func newError(kind ErrorKind, analyzer, jobID, msg string, cause error) *Error {
	return &Error{Kind: kind, Analyzer: analyzer, JobID: jobID, Msg: msg, Err: cause}
}

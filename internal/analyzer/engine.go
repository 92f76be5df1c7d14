package analyzer

import (
	"context"

	"github.com/Ashfaaq98/cortex-analyzer/internal/cortex"
)

// CatalogLister lists the analyzers enabled on the engine.
type CatalogLister interface {
	ListAnalyzers(ctx context.Context) ([]cortex.Analyzer, error)
}

// JobRunner creates jobs.
type JobRunner interface {
	RunAnalyzer(ctx context.Context, analyzerID string, req cortex.AnalyzerRequest) (*cortex.Job, error)
}

// JobWatcher follows a job to completion.
type JobWatcher interface {
	GetJob(ctx context.Context, jobID string) (*cortex.Job, error)
	GetReport(ctx context.Context, jobID string) (*cortex.Report, error)
}

// Engine is everything the pipeline needs from Cortex. *cortex.Client satisfies it.
type Engine interface {
	CatalogLister
	JobRunner
	JobWatcher
}

// AttributeStore is the host operation used to attach the rendered report.
type AttributeStore interface {
	AddTabAttributeField(ctx context.Context, iocID, tab, field, fieldType, value string) error
}

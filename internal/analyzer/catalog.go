package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/cortex-analyzer/internal/cortex"
)

// Catalog checks that an analyzer is enabled before anything is submitted.
type Catalog struct {
	engine CatalogLister
	logger logrus.FieldLogger
}

// NewCatalog returns a catalog check backed by engine.
func NewCatalog(engine CatalogLister, logger logrus.FieldLogger) *Catalog {
	return &Catalog{engine: engine, logger: logger}
}

// EnsureEnabled returns the enabled analyzer called name.
func (c *Catalog) EnsureEnabled(ctx context.Context, name string) (cortex.Analyzer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return cortex.Analyzer{}, newError(KindAnalyzerNotEnabled, name, "", "no analyzer configured", nil)
	}

	analyzers, err := c.engine.ListAnalyzers(ctx)
	if err != nil {
		return cortex.Analyzer{}, newError(KindEngine, name, "", "list analyzers", err)
	}
	for _, a := range analyzers {
		if a.Name == name {
			c.logger.WithFields(logrus.Fields{"analyzer": name, "analyzer_id": a.ID}).Debug("Analyzer is enabled")
			return a, nil
		}
	}
	return cortex.Analyzer{}, newError(KindAnalyzerNotEnabled, name, "",
		fmt.Sprintf("analyzer %s is not enabled on the engine (%d enabled)", name, len(analyzers)), nil)
}

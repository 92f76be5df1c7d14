package analyzer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Where the rendered report lands on the indicator.
const (
	ReportTab       = "CORTEX Report"
	ReportField     = "HTML report"
	ReportFieldType = "html"
)

// Publisher attaches rendered reports to indicators when enabled.
type Publisher struct {
	store   AttributeStore
	enabled bool
	logger  logrus.FieldLogger
}

// NewPublisher returns a publisher. With enabled false, Publish never touches store.
func NewPublisher(store AttributeStore, enabled bool, logger logrus.FieldLogger) *Publisher {
	return &Publisher{store: store, enabled: enabled, logger: logger}
}

// Publish adds html as the report attribute of ind. It reports whether an attribute was written.
func (p *Publisher) Publish(ctx context.Context, ind Indicator, html string) (bool, error) {
	log := p.logger.WithField("ioc", ind.String())
	if !p.enabled {
		log.Info("Skipped adding attribute report. Option disabled")
		return false, nil
	}
	if p.store == nil {
		return false, newError(KindPublish, "", "", "no attribute store configured", nil)
	}

	log.Info("Adding new attribute Cortex Report to IOC")
	if err := p.store.AddTabAttributeField(ctx, ind.ID, ReportTab, ReportField, ReportFieldType, html); err != nil {
		return false, newError(KindPublish, "", "", "add attribute to ioc "+ind.ID, err)
	}
	return true, nil
}

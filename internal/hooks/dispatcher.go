// Package hooks turns host IOC hook notifications into pipeline runs.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/cortex-analyzer/internal/analyzer"
	"github.com/Ashfaaq98/cortex-analyzer/internal/bus"
	"github.com/Ashfaaq98/cortex-analyzer/internal/config"
	"github.com/Ashfaaq98/cortex-analyzer/internal/store"
)

// Hook names a host trigger.
type Hook string

const (
	HookManual   Hook = "on_manual_trigger_ioc"
	HookOnCreate Hook = "on_postload_ioc_create"
	HookOnUpdate Hook = "on_postload_ioc_update"
)

// AllHooks lists the hooks the module registers for.
var AllHooks = []Hook{HookManual, HookOnCreate, HookOnUpdate}

var (
	// ErrUnknownHook is returned for hook names the module does not register.
	ErrUnknownHook = errors.New("unknown hook")
	// ErrHookDisabled is returned when the hook's trigger toggle is off.
	ErrHookDisabled = errors.New("hook disabled")
)

// OutcomeSkipped marks IOCs whose type has no Cortex data type.
const OutcomeSkipped = "skipped"

// ParseHook validates a hook name.
func ParseHook(name string) (Hook, error) {
	h := Hook(strings.TrimSpace(name))
	for _, known := range AllHooks {
		if h == known {
			return h, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHook, name)
}

// Enabled reports whether cfg turns this hook on.
func (h Hook) Enabled(cfg config.ModuleConfig) bool {
	switch h {
	case HookManual:
		return cfg.ManualHookEnabled
	case HookOnCreate:
		return cfg.OnCreateHookEnabled
	case HookOnUpdate:
		return cfg.OnUpdateHookEnabled
	default:
		return false
	}
}

// IOC is an indicator as the host hands it over.
type IOC struct {
	ID    string `json:"id" validate:"required,max=128"`
	Value string `json:"value" validate:"required,max=2048"`
	Type  string `json:"type" validate:"required,max=64"`
}

// Outcome reports what happened to one IOC of a hook call.
type Outcome struct {
	IOC       IOC           `json:"ioc"`
	Hook      Hook          `json:"hook"`
	Analyzer  string        `json:"analyzer"`
	JobID     string        `json:"job_id,omitempty"`
	State     string        `json:"state,omitempty"`
	Outcome   string        `json:"outcome"`
	Attached  bool          `json:"attached"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	// HTML is the rendered report; it stays out of API responses.
	HTML string `json:"-"`
}

// Store is the persistence the dispatcher needs. *store.Store satisfies it.
type Store interface {
	analyzer.AttributeStore
	UpsertIOC(ctx context.Context, ioc store.IOC) error
	RecordRun(ctx context.Context, run store.Run) (string, error)
}

// Dispatcher runs one pipeline per IOC with bounded concurrency.
type Dispatcher struct {
	live     *config.Live
	engine   analyzer.Engine
	store    Store
	bus      bus.Bus
	logger   logrus.FieldLogger
	pollOpts []analyzer.PollerOption
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithPollerOptions forwards options to every pipeline's poller.
func WithPollerOptions(opts ...analyzer.PollerOption) Option {
	return func(d *Dispatcher) { d.pollOpts = append(d.pollOpts, opts...) }
}

// WithBus publishes every outcome on b.
func WithBus(b bus.Bus) Option {
	return func(d *Dispatcher) { d.bus = b }
}

// NewDispatcher builds a dispatcher. The configuration is read from live at every Handle call.
func NewDispatcher(live *config.Live, engine analyzer.Engine, st Store, logger logrus.FieldLogger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		live:   live,
		engine: engine,
		store:  st,
		logger: logger.WithField("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle runs every IOC through the pipeline. Outcomes are returned in input order.
// The returned error is only set when the hook itself is rejected; per-IOC failures live in the outcomes.
func (d *Dispatcher) Handle(ctx context.Context, hook Hook, iocs []IOC) ([]Outcome, error) {
	if _, err := ParseHook(string(hook)); err != nil {
		return nil, err
	}
	cfg := d.live.Snapshot()
	log := d.logger.WithFields(logrus.Fields{"hook": hook, "iocs": len(iocs)})
	if !hook.Enabled(cfg) {
		log.Info("Hook disabled, ignoring")
		return nil, fmt.Errorf("%w: %s", ErrHookDisabled, hook)
	}

	pipeline := analyzer.NewPipeline(cfg, d.engine, d.store, d.logger, d.pollOpts...)

	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	outcomes := make([]Outcome, len(iocs))
	var wg sync.WaitGroup

	log.Info("Dispatching hook")
	for i, ioc := range iocs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < len(iocs); j++ {
				outcomes[j] = Outcome{IOC: iocs[j], Hook: hook, Analyzer: cfg.Analyzer,
					Outcome: string(analyzer.OutcomeFailed), ErrorKind: analyzer.KindCanceled.String(), Error: ctx.Err().Error()}
			}
			wg.Wait()
			return outcomes, nil
		}
		wg.Add(1)
		go func(i int, ioc IOC) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = d.runOne(ctx, pipeline, cfg, hook, ioc)
		}(i, ioc)
	}
	wg.Wait()
	return outcomes, nil
}

func (d *Dispatcher) runOne(ctx context.Context, p *analyzer.Pipeline, cfg config.ModuleConfig, hook Hook, ioc IOC) Outcome {
	out := Outcome{IOC: ioc, Hook: hook, Analyzer: cfg.Analyzer}
	log := d.logger.WithFields(logrus.Fields{"hook": hook, "ioc_id": ioc.ID, "ioc_type": ioc.Type})

	kind, err := analyzer.ParseKind(ioc.Type)
	if err != nil {
		log.Info("IOC type not supported, skipping")
		out.Outcome = OutcomeSkipped
		out.Error = err.Error()
		d.publish(ctx, out)
		return out
	}

	if err := d.store.UpsertIOC(ctx, store.IOC{ID: ioc.ID, Value: ioc.Value, Type: ioc.Type}); err != nil {
		log.WithError(err).Error("Failed to record IOC")
		out.Outcome = string(analyzer.OutcomeFailed)
		out.ErrorKind = analyzer.KindPublish.String()
		out.Error = err.Error()
		d.publish(ctx, out)
		return out
	}

	res, err := p.Run(ctx, analyzer.Indicator{ID: ioc.ID, Value: ioc.Value, Kind: kind})
	out.JobID = res.JobID
	out.State = res.State.String()
	out.Outcome = string(res.Outcome)
	out.Attached = res.Attached
	out.Duration = res.Duration
	out.HTML = res.HTML
	if err != nil {
		out.Error = err.Error()
		out.ErrorKind = analyzer.KindUnknown.String()
		var perr *analyzer.Error
		if errors.As(err, &perr) {
			out.ErrorKind = perr.Kind.String()
		}
	}

	// Bookkeeping outlives a canceled run so shutdowns still leave a record.
	bctx, cancel := bookkeepingContext(ctx)
	defer cancel()
	if _, rerr := d.store.RecordRun(bctx, store.Run{
		IOCID:     ioc.ID,
		IOCValue:  ioc.Value,
		IOCKind:   string(kind),
		Hook:      string(hook),
		Analyzer:  cfg.Analyzer,
		JobID:     out.JobID,
		State:     out.State,
		Outcome:   out.Outcome,
		ErrorKind: out.ErrorKind,
		Error:     out.Error,
		Ticks:     res.Ticks,
		StartedAt: res.Started,
		Duration:  res.Duration,
	}); rerr != nil {
		log.WithError(rerr).Warn("Failed to record analysis run")
	}
	d.publish(ctx, out)
	return out
}

// bookkeepingTimeout bounds the store and bus writes made after a run.
const bookkeepingTimeout = 5 * time.Second

func bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func (d *Dispatcher) publish(ctx context.Context, out Outcome) {
	if d.bus == nil {
		return
	}
	ctx, cancel := bookkeepingContext(ctx)
	defer cancel()
	err := d.bus.PublishResult(ctx, bus.ResultMessage{
		IOCID:     out.IOC.ID,
		Hook:      string(out.Hook),
		Analyzer:  out.Analyzer,
		JobID:     out.JobID,
		Outcome:   out.Outcome,
		ErrorKind: out.ErrorKind,
		Error:     out.Error,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		d.logger.WithError(err).WithField("ioc_id", out.IOC.ID).Warn("Failed to publish result")
	}
}

// Consume reads hook messages from b until ctx is done. Each message is dispatched as a batch of one.
func (d *Dispatcher) Consume(ctx context.Context, b bus.Bus, consumer string) error {
	return b.ReadHooks(ctx, bus.ConsumerGroup, consumer, func(ctx context.Context, msg bus.HookMessage) error {
		hook, err := ParseHook(msg.Hook)
		if err != nil {
			d.logger.WithError(err).WithField("message_id", msg.ID).Warn("Ignoring hook message")
			return nil
		}
		id := msg.IOCID
		if id == "" {
			id = uuid.NewString()
		}
		_, err = d.Handle(ctx, hook, []IOC{{ID: id, Value: msg.IOCValue, Type: msg.IOCType}})
		if errors.Is(err, ErrHookDisabled) {
			return nil
		}
		return err
	})
}

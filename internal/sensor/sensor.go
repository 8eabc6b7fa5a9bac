package sensor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"seqwatch/internal/config"
	"seqwatch/internal/events"
	"seqwatch/internal/logging"
	"seqwatch/internal/registry"
	"seqwatch/internal/rundir"
	"seqwatch/internal/services"
)

// Sensor is the run and analysis reconciler.
type Sensor struct {
	roots             []config.WatchedRoot
	emails            []string
	targetDirectory   string
	analysisPlatforms []string

	registry   registry.Reader
	parser     *rundir.Parser
	dispatcher events.Dispatcher
	dedup      *events.Deduplicator
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a Sensor.
type Option func(*Sensor)

// WithClock overrides the time source for reports and dedup windows.
func WithClock(now func() time.Time) Option {
	return func(s *Sensor) {
		if now != nil {
			s.now = now
		}
	}
}

// WithParser replaces the metadata parser.
func WithParser(parser *rundir.Parser) Option {
	return func(s *Sensor) {
		if parser != nil {
			s.parser = parser
		}
	}
}

// New builds a sensor. dispatcher receives every event; history answers the
// dedup lookups for the warning triggers and may be nil.
func New(cfg *config.Config, reader registry.Reader, dispatcher events.Dispatcher, history events.History, logger *slog.Logger, opts ...Option) *Sensor {
	if dispatcher == nil {
		dispatcher = events.Discard
	}
	s := &Sensor{
		roots:             cfg.WatchedRoots(),
		emails:            append([]string{}, cfg.Sensor.NotificationEmail...),
		targetDirectory:   cfg.Sensor.TargetDirectory,
		analysisPlatforms: append([]string(nil), cfg.Sensor.AnalysisPlatforms...),
		registry:          reader,
		parser:            rundir.NewParser(rundir.PlatformsFromConfig(cfg)),
		dispatcher:        dispatcher,
		logger:            logging.NewComponentLogger(logger, "sensor"),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dedup = events.NewDeduplicator(history, dispatcher, cfg.DedupWindow(), logger, events.WithClock(s.now))
	return s
}

// cycle carries the state of one poll.
type cycle struct {
	report *Report
	moved  map[string]struct{}
	logger *slog.Logger
}

// Poll runs one reconciliation cycle. It fails only when a bulk registry
// read fails; per-directory problems become events and dispatch failures
// are logged and counted.
func (s *Sensor) Poll(ctx context.Context) (Report, error) {
	pollID, ok := services.PollIDFromContext(ctx)
	if !ok {
		pollID = uuid.NewString()
		ctx = services.WithPollID(ctx, pollID)
	}
	started := s.now()
	c := &cycle{
		report: newReport(pollID, started),
		moved:  make(map[string]struct{}),
		logger: logging.WithContext(ctx, s.logger),
	}
	finish := func() Report {
		c.report.Duration = s.now().Sub(started)
		return *c.report
	}

	registered, err := s.registry.GetRuns(ctx, registry.RunFilter{Brief: true})
	if err != nil {
		return finish(), services.Wrap(services.ErrRegistry, "sensor", "poll", "list registered runs", err)
	}
	c.report.RegisteredRuns = len(registered)

	s.checkNewRuns(ctx, c, registered)
	s.checkExistingRuns(ctx, c, registered)
	if err := s.checkReadyRuns(ctx, c); err != nil {
		return finish(), err
	}

	report := finish()
	c.logger.Info("poll complete",
		logging.String("summary", report.Summary()),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

// emit dispatches a non-deduplicated event.
func (s *Sensor) emit(ctx context.Context, c *cycle, event events.Event) {
	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		s.dispatchFailed(c, event, err)
		return
	}
	c.report.Emitted[event.Trigger]++
	c.logger.Debug("event emitted",
		logging.String(logging.FieldTrigger, event.Trigger),
		logging.String(logging.FieldRunID, event.Payload.String(events.KeyRunID)),
		logging.String(logging.FieldPath, event.Payload.String(events.KeyPath)),
	)
}

// emitOnce routes an event through the deduplicator.
func (s *Sensor) emitOnce(ctx context.Context, c *cycle, event events.Event) {
	sent, err := s.dedup.Emit(ctx, event)
	if err != nil {
		s.dispatchFailed(c, event, err)
		return
	}
	if !sent {
		c.report.Suppressed++
		return
	}
	c.report.Emitted[event.Trigger]++
}

func (s *Sensor) dispatchFailed(c *cycle, event events.Event, err error) {
	c.report.DispatchFailures++
	logging.WarnWithContext(c.logger, "event dispatch failed", "event_dispatch_failed",
		logging.String(logging.FieldTrigger, event.Trigger),
		logging.String(logging.FieldPath, event.Payload.String(events.KeyPath)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the event bus and journal configuration"),
		logging.String(logging.FieldImpact, "the change will be detected again on the next poll"),
	)
}

func (s *Sensor) nullableTarget() any {
	return events.Nullable(s.targetDirectory)
}

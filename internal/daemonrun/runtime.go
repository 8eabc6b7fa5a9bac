package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"seqwatch/internal/actions"
	"seqwatch/internal/config"
	"seqwatch/internal/eventlog"
	"seqwatch/internal/events"
	"seqwatch/internal/logging"
	"seqwatch/internal/notifications"
	"seqwatch/internal/registry"
	"seqwatch/internal/sensor"
)

// Runtime bundles the collaborators a poll needs.
type Runtime struct {
	Config   *config.Config
	Registry *registry.HTTPClient
	Journal  *eventlog.Journal
	Notifier notifications.Service
	Sensor   *sensor.Sensor
	// Sinks lists the dispatch targets in fan-out order, for diagnostics.
	Sinks []string
}

// RuntimeOption customizes NewRuntime.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	registry  *registry.HTTPClient
	notifier  notifications.Service
	sensorOps []sensor.Option
}

// WithRegistryClient replaces the registry client built from config.
func WithRegistryClient(client *registry.HTTPClient) RuntimeOption {
	return func(o *runtimeOptions) { o.registry = client }
}

// WithNotifier replaces the ntfy service built from config.
func WithNotifier(svc notifications.Service) RuntimeOption {
	return func(o *runtimeOptions) { o.notifier = svc }
}

// WithSensorOptions forwards options to sensor.New.
func WithSensorOptions(opts ...sensor.Option) RuntimeOption {
	return func(o *runtimeOptions) { o.sensorOps = append(o.sensorOps, opts...) }
}

// NewRuntime wires the registry client, event sinks and dedup history from
// cfg. Each event goes to the event bus and the in-process applier, is then
// journaled with their outcome, and finally reaches operator alerts. Close
// releases the journal.
func NewRuntime(cfg *config.Config, logger *slog.Logger, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	options := runtimeOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	rt := &Runtime{Config: cfg, Registry: options.registry, Notifier: options.notifier}
	if rt.Registry == nil {
		rt.Registry = registry.NewFromConfig(cfg)
	}
	if rt.Notifier == nil {
		rt.Notifier = notifications.NewService(cfg)
	}

	var delivering events.Fanout
	if cfg.Events.Journal {
		journal, err := eventlog.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open event journal: %w", err)
		}
		rt.Journal = journal
		rt.Sinks = append(rt.Sinks, "journal")
	}

	timeout := time.Duration(cfg.Events.RequestTimeout) * time.Second
	if cfg.Events.BusURL != "" {
		delivering = append(delivering, events.NewHTTPBus(cfg.Events.BusURL, cfg.Events.APIKey, cfg.Events.TriggerPrefix, events.WithTimeout(timeout)))
		rt.Sinks = append(rt.Sinks, "bus")
	}
	if cfg.Actions.Apply {
		delivering = append(delivering, actions.NewApplier(actions.New(rt.Registry, cfg, logger)))
		rt.Sinks = append(rt.Sinks, "applier")
	}

	var primary events.Dispatcher = delivering
	if rt.Journal != nil {
		primary = rt.Journal.Tracking(delivering)
	}
	fanout := events.Fanout{primary, notifications.NewSink(rt.Notifier)}
	rt.Sinks = append(rt.Sinks, "alerts")

	history, err := rt.history(timeout)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Sensor = sensor.New(cfg, rt.Registry, fanout, history, logger, options.sensorOps...)
	logging.NewComponentLogger(logger, "runtime").Debug("runtime wired",
		logging.String("registry", rt.Registry.BaseURL()),
		logging.Any("sinks", rt.Sinks),
		logging.String("history", cfg.Events.History),
	)
	return rt, nil
}

func (rt *Runtime) history(timeout time.Duration) (events.History, error) {
	cfg := rt.Config
	switch cfg.Events.History {
	case config.HistoryJournal:
		if rt.Journal == nil {
			return nil, errors.New("events.history = \"journal\" requires events.journal = true")
		}
		return rt.Journal, nil
	case config.HistoryRemote:
		return events.NewHTTPHistory(cfg.Events.APIURL, cfg.Events.APIKey, cfg.Events.TriggerPrefix, events.WithTimeout(timeout)), nil
	default:
		return events.NoHistory{}, nil
	}
}

// Close releases resources held by the runtime.
func (rt *Runtime) Close() error {
	if rt == nil || rt.Journal == nil {
		return nil
	}
	return rt.Journal.Close()
}

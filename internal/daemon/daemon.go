package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"seqwatch/internal/config"
	"seqwatch/internal/logging"
	"seqwatch/internal/notifications"
	"seqwatch/internal/sensor"
	"seqwatch/internal/services"
)

const pruneEvery = 24 * time.Hour

// Poller runs one reconciliation cycle.
type Poller interface {
	Poll(ctx context.Context) (sensor.Report, error)
}

// Pruner removes journal entries older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// Daemon schedules polls and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	poller   Poller
	pruner   Pruner
	notifier notifications.Service
	logger   *slog.Logger

	interval  time.Duration
	debounce  time.Duration
	retention time.Duration
	now       func() time.Time

	lockPath string
	lock     *flock.Flock

	nudges  chan struct{}
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	watcher *rootWatcher

	mu        sync.RWMutex
	status    Status
	lastPrune time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool
	Polls       int
	LastPoll    time.Time
	LastReport  *sensor.Report
	LastError   string
	LockPath    string
	Watching    bool
	NextPollDue time.Time
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithInterval overrides the configured poll interval.
func WithInterval(interval time.Duration) Option {
	return func(d *Daemon) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithClock overrides the time source used for status and pruning.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) {
		if now != nil {
			d.now = now
		}
	}
}

// WithPruner enables journal retention pruning.
func WithPruner(pruner Pruner) Option {
	return func(d *Daemon) {
		d.pruner = pruner
	}
}

// New constructs a daemon around poller.
func New(cfg *config.Config, poller Poller, notifier notifications.Service, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || poller == nil {
		return nil, errors.New("daemon requires config and poller")
	}
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	lockPath := filepath.Join(cfg.Paths.StateDir, "seqwatch.lock")
	d := &Daemon{
		cfg:       cfg,
		poller:    poller,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		interval:  cfg.PollInterval(),
		debounce:  time.Duration(cfg.Sensor.NudgeDebounceMS) * time.Millisecond,
		retention: time.Duration(cfg.Events.JournalRetentionDays) * 24 * time.Hour,
		now:       time.Now,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
		nudges:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.interval <= 0 {
		d.interval = time.Minute
	}
	return d, nil
}

// Start acquires the instance lock and launches the poll loop. The first
// poll runs immediately.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another seqwatch daemon instance is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	if d.cfg.Sensor.WatchEvents {
		watcher, err := newRootWatcher(d.cfg.WatchedRoots(), d.debounce, d.Nudge, d.logger)
		if err != nil {
			logging.WarnWithContext(d.logger, "filesystem watch unavailable; relying on interval polling", "watch_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check inotify limits or set sensor.watch_events = false"),
				logging.String(logging.FieldImpact, "new directories are detected on the next interval only"),
			)
		} else {
			d.watcher = watcher
			go watcher.run(loopCtx)
		}
	}

	d.running.Store(true)
	d.mu.Lock()
	d.status.Watching = d.watcher != nil
	d.mu.Unlock()
	go d.loop(loopCtx)

	d.logger.Info("seqwatch daemon started",
		logging.String("lock", d.lockPath),
		logging.Duration("poll_interval", d.interval),
		logging.Bool("watch_events", d.watcher != nil),
	)
	return nil
}

// Stop ends the poll loop, waiting for an in-flight poll to observe
// cancellation, and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
	}
	if d.watcher != nil {
		if err := d.watcher.close(); err != nil {
			d.logger.Debug("close watcher", logging.Error(err))
		}
		d.watcher = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
			logging.String(logging.FieldImpact, "the next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.mu.Lock()
	d.status.Watching = false
	d.mu.Unlock()
	d.logger.Info("seqwatch daemon stopped")
}

// Done is closed when the poll loop exits. It is nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Nudge requests a poll ahead of the interval. Requests made while a poll
// is already pending collapse into one.
func (d *Daemon) Nudge() {
	select {
	case d.nudges <- struct{}{}:
	default:
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	status := d.status
	status.Running = d.running.Load()
	status.LockPath = d.lockPath
	if status.LastReport != nil {
		report := *status.LastReport
		status.LastReport = &report
	}
	return status
}

func (d *Daemon) loop(ctx context.Context) {
	defer close(d.done)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-d.nudges:
			timer.Stop()
		}
		d.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		d.maybePrune(ctx)
		timer.Reset(d.interval)
		d.mu.Lock()
		d.status.NextPollDue = d.now().Add(d.interval)
		d.mu.Unlock()
	}
}

func (d *Daemon) runOnce(ctx context.Context) {
	pollID := uuid.NewString()
	ctx = services.WithPollID(ctx, pollID)
	logger := logging.WithContext(ctx, d.logger)

	report, err := d.poller.Poll(ctx)
	if err != nil && ctx.Err() != nil {
		logger.Debug("poll interrupted by shutdown", logging.Error(err))
		return
	}

	d.mu.Lock()
	previousError := d.status.LastError
	d.status.Polls++
	d.status.LastPoll = d.now()
	d.status.LastReport = &report
	if err != nil {
		d.status.LastError = err.Error()
	} else {
		d.status.LastError = ""
	}
	d.mu.Unlock()

	if err == nil {
		if previousError != "" {
			logger.Info("poll recovered", logging.String(logging.FieldEventType, "poll_recovered"))
		}
		return
	}

	logging.ErrorWithContext(logger, "poll failed", "poll_failed",
		logging.Error(err),
		logging.String("error_kind", services.Kind(err)),
		logging.String(logging.FieldErrorHint, "check registry availability and watched root permissions"),
		logging.String(logging.FieldImpact, "no events were emitted for the unfinished phases of this poll"),
	)
	if previousError != "" {
		return
	}
	if notifyErr := d.notifier.Publish(ctx, notifications.EventPollFailed, notifications.Payload{
		"error":   err.Error(),
		"poll_id": pollID,
	}); notifyErr != nil {
		logging.WarnWithContext(logger, "poll failure notification failed", "notification_failed",
			logging.Error(notifyErr),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "operators were not alerted about the failed poll"),
		)
	}
}

func (d *Daemon) maybePrune(ctx context.Context) {
	if d.pruner == nil || d.retention <= 0 {
		return
	}
	now := d.now()
	if !d.lastPrune.IsZero() && now.Sub(d.lastPrune) < pruneEvery {
		return
	}
	d.lastPrune = now
	removed, err := d.pruner.Prune(ctx, now.Add(-d.retention))
	if err != nil {
		logging.WarnWithContext(d.logger, "journal prune failed", "journal_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"),
			logging.String(logging.FieldImpact, "old journal entries remain until the next attempt"),
		)
		return
	}
	if removed > 0 {
		d.logger.Info("journal pruned",
			logging.Int64("removed", removed),
			logging.String(logging.FieldEventType, "journal_pruned"),
		)
	}
}

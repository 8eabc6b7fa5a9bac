package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"seqwatch/internal/config"
	"seqwatch/internal/events"
	"seqwatch/internal/services"
)

// Journal persists emitted events in SQLite.
type Journal struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// timestampLayout is fixed width so lexical order matches time order.
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)

// Entry is one journaled event.
type Entry struct {
	ID        string
	Trigger   string
	Payload   events.Payload
	PollID    string
	EmittedAt time.Time
	// DeliveryError is set when a wrapped downstream dispatcher rejected the
	// event. Such entries are not offered as dedup history.
	DeliveryError string
}

// ListFilter narrows List results.
type ListFilter struct {
	Trigger string
	Limit   int
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the journal under the configured state directory.
func Open(cfg *config.Config) (*Journal, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JournalPath())
}

// OpenPath initializes or connects to the journal at path.
func OpenPath(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	journal := &Journal{db: db, path: path, now: time.Now}
	if err := journal.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return journal, nil
}

// Path returns the database file location.
func (j *Journal) Path() string { return j.path }

// SetClock overrides the time source used for new entries.
func (j *Journal) SetClock(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Dispatch records event as delivered.
func (j *Journal) Dispatch(ctx context.Context, event events.Event) error {
	return j.record(ctx, event, nil)
}

// Tracking returns a dispatcher that hands each event to next and then
// records it together with the delivery outcome. Events next rejected stay
// visible in List but are skipped by Query, so a failed delivery is retried
// on the next poll instead of being deduplicated away.
func (j *Journal) Tracking(next events.Dispatcher) events.Dispatcher {
	return events.DispatcherFunc(func(ctx context.Context, event events.Event) error {
		var deliverErr error
		if next != nil {
			deliverErr = next.Dispatch(ctx, event)
		}
		if err := j.record(ctx, event, deliverErr); err != nil {
			return errors.Join(deliverErr, err)
		}
		return deliverErr
	})
}

func (j *Journal) record(ctx context.Context, event events.Event, deliverErr error) error {
	ctx = ensureContext(ctx)
	payload, err := events.Canonical(event.Payload)
	if err != nil {
		return services.Wrap(services.ErrDispatch, "eventlog", "record", "encode payload", err)
	}
	pollID, _ := services.PollIDFromContext(ctx)
	emitted := j.now().UTC().Format(timestampLayout)
	id := uuid.NewString()
	var failure string
	if deliverErr != nil {
		failure = deliverErr.Error()
	}

	err = retryOnBusy(ctx, func() error {
		_, execErr := j.db.ExecContext(ctx,
			`INSERT INTO events (id, trigger_name, payload_json, poll_id, emitted_at, delivery_error) VALUES (?, ?, ?, ?, ?, ?)`,
			id, event.Trigger, string(payload), nullable(pollID), emitted, nullable(failure),
		)
		return execErr
	})
	if err != nil {
		return services.Wrap(services.ErrDispatch, "eventlog", "record", event.Trigger, err)
	}
	return nil
}

// Query returns payloads delivered for trigger after since, newest first.
func (j *Journal) Query(ctx context.Context, trigger string, since time.Time) ([]events.Payload, error) {
	ctx = ensureContext(ctx)
	var out []events.Payload
	err := retryOnBusy(ctx, func() error {
		out = out[:0]
		rows, err := j.db.QueryContext(ctx,
			`SELECT payload_json FROM events WHERE trigger_name = ? AND emitted_at > ? AND delivery_error IS NULL ORDER BY emitted_at DESC`,
			trigger, since.UTC().Format(timestampLayout),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			payload, err := events.DecodePayload([]byte(raw))
			if err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}
			out = append(out, payload)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return out, nil
}

// List returns journaled entries, newest first.
func (j *Journal) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, trigger_name, payload_json, poll_id, emitted_at, delivery_error FROM events`
	var args []any
	if filter.Trigger != "" {
		query += ` WHERE trigger_name = ?`
		args = append(args, filter.Trigger)
	}
	query += ` ORDER BY emitted_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats returns the number of journaled events per trigger.
func (j *Journal) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ensureContext(ctx), `SELECT trigger_name, COUNT(1) FROM events GROUP BY trigger_name`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var trigger string
		var count int
		if err := rows.Scan(&trigger, &count); err != nil {
			return nil, err
		}
		stats[trigger] = count
	}
	return stats, rows.Err()
}

// Prune deletes entries emitted before olderThan and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := j.db.ExecContext(ctx, `DELETE FROM events WHERE emitted_at < ?`, olderThan.UTC().Format(timestampLayout))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return removed, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry   Entry
		payload string
		pollID  sql.NullString
		emitted string
		failure sql.NullString
	)
	if err := scanner.Scan(&entry.ID, &entry.Trigger, &payload, &pollID, &emitted, &failure); err != nil {
		return Entry{}, err
	}
	decoded, err := events.DecodePayload([]byte(payload))
	if err != nil {
		return Entry{}, fmt.Errorf("decode payload for %s: %w", entry.ID, err)
	}
	entry.Payload = decoded
	entry.PollID = pollID.String
	entry.DeliveryError = failure.String
	if ts, err := time.Parse(timestampLayout, emitted); err == nil {
		entry.EmittedAt = ts
	}
	return entry, nil
}

func nullable(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

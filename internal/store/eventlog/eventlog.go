// Package eventlog keeps an append-only sqlite log of operational outcomes:
// provider results, fallbacks, engagement decisions, fetch and render
// failures. Identities and earnings are never stored.
package eventlog

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"earnframe/internal/logging"
)

const (
	TypeProviderOK     = "provider_ok"
	TypeProviderFailed = "provider_failed"
	TypeFallback       = "fallback"
	TypeEngaged        = "engaged"
	TypeNotEngaged     = "not_engaged"
	TypeEarningsOK     = "earnings_ok"
	TypeEarningsError  = "earnings_error"
	TypeRenderError    = "render_error"
)

// queueSize bounds events waiting for the writer; more are dropped.
const queueSize = 1024

// DB wraps the sqlite event log. Observer calls enqueue and return at once;
// a single writer goroutine inserts rows.
type DB struct {
	sql *sql.DB
	now func() time.Time

	mu      sync.RWMutex
	closed  bool
	queue   chan item
	done    chan struct{}
	dropped atomic.Int64
}

type item struct {
	ev    Event
	flush chan struct{}
}

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{
		sql:   d,
		now:   func() time.Time { return time.Now().UTC() },
		queue: make(chan item, queueSize),
		done:  make(chan struct{}),
	}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	go db.drain()
	return db, nil
}

// Close stops accepting events, writes what is queued and closes the database.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
	return d.sql.Close()
}

// Dropped reports how many events were discarded because the queue was full.
func (d *DB) Dropped() int64 { return d.dropped.Load() }

// Flush waits until every event queued before the call is written.
func (d *DB) Flush(ctx context.Context) error {
	it := item{flush: make(chan struct{})}
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil
	}
	select {
	case d.queue <- it:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-it.flush:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DB) drain() {
	defer close(d.done)
	for it := range d.queue {
		if it.flush != nil {
			close(it.flush)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := d.PutEvent(ctx, it.ev.TS, it.ev.Type, it.ev.Provider); err != nil {
			logging.Warn("eventlog_write_failed", map[string]any{"type": it.ev.Type, "error": err})
		}
		cancel()
	}
}

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS events (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts INTEGER NOT NULL,
	  type TEXT NOT NULL,
	  provider TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
	`)
	return err
}

// Event is one stored outcome.
type Event struct {
	TS       time.Time
	Type     string
	Provider string
}

// PutEvent appends an outcome. provider may be empty.
func (d *DB) PutEvent(ctx context.Context, ts time.Time, typ, provider string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO events(ts, type, provider) VALUES(?,?,?)`, ts.Unix(), typ, provider)
	return err
}

// LoadEventsRange returns events in [start, end), optionally of one type.
func (d *DB) LoadEventsRange(ctx context.Context, start, end time.Time, typ string) ([]Event, error) {
	q := `SELECT ts, type, provider FROM events WHERE ts>=? AND ts<?`
	args := []any{start.Unix(), end.Unix()}
	if typ != "" {
		q += ` AND type=?`
		args = append(args, typ)
	}
	rows, err := d.sql.QueryContext(ctx, q+` ORDER BY ts, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ts int64
		var e Event
		if err := rows.Scan(&ts, &e.Type, &e.Provider); err != nil {
			return nil, err
		}
		e.TS = time.Unix(ts, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountWithin counts events of typ in [start, end).
func (d *DB) CountWithin(ctx context.Context, start, end time.Time, typ string) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE ts>=? AND ts<? AND type=?`, start.Unix(), end.Unix(), typ).Scan(&n)
	return n, err
}

// Prune deletes events older than before and returns how many were removed.
func (d *DB) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM events WHERE ts<?`, before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunRetention prunes events older than keep now and then every interval
// until ctx is done.
func (d *DB) RunRetention(ctx context.Context, keep, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		n, err := d.Prune(ctx, d.now().Add(-keep))
		if err != nil && ctx.Err() == nil {
			logging.Warn("eventlog_prune_failed", map[string]any{"error": err})
		} else if n > 0 {
			logging.Info("eventlog_pruned", map[string]any{"removed": n})
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// record is the observer write path. It never blocks: when the writer falls
// behind the event is dropped.
func (d *DB) record(typ, provider string) {
	it := item{ev: Event{TS: d.now(), Type: typ, Provider: provider}}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- it:
	default:
		if d.dropped.Add(1)%100 == 1 {
			logging.Warn("eventlog_queue_full", map[string]any{"dropped": d.dropped.Load()})
		}
	}
}

// The DB records outcomes as an observe.Observer.

func (d *DB) ProviderResult(provider string, ok bool) {
	if ok {
		d.record(TypeProviderOK, provider)
		return
	}
	d.record(TypeProviderFailed, provider)
}

func (d *DB) FallbackInvoked() { d.record(TypeFallback, "") }

func (d *DB) EngagementChecked(engaged bool) {
	if engaged {
		d.record(TypeEngaged, "")
		return
	}
	d.record(TypeNotEngaged, "")
}

func (d *DB) EarningsFetched(err error) {
	if err != nil {
		d.record(TypeEarningsError, "")
		return
	}
	d.record(TypeEarningsOK, "")
}

func (d *DB) RenderFailed() { d.record(TypeRenderError, "") }

// Package audit is an off-hot-path, best-effort request log: it batches
// completed translation requests and writes them to SQLite asynchronously,
// the way this codebase's ancestry batches workflow event logs before
// persisting them.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Entry is one completed request's audit record.
type Entry struct {
	RequestID     string    `db:"request_id"`
	ModelID       string    `db:"model_id"`
	NumSentences  int       `db:"num_sentences"`
	CacheHits     int       `db:"cache_hits"`
	CacheMisses   int       `db:"cache_misses"`
	DurationMicros int64    `db:"duration_micros"`
	Failed        bool      `db:"failed"`
	CompletedAt   time.Time `db:"completed_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS request_log (
	request_id TEXT PRIMARY KEY,
	model_id TEXT NOT NULL,
	num_sentences INTEGER NOT NULL,
	cache_hits INTEGER NOT NULL,
	cache_misses INTEGER NOT NULL,
	duration_micros INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	completed_at DATETIME NOT NULL
)`

// Sink accepts completed-request Entries off dispatch's hot path and
// persists them in batches. A full buffer drops the entry being recorded
// rather than blocking the caller; Record is meant to be called from a
// Request's completion callback, never awaited.
type Sink struct {
	db         *sqlx.DB
	logger     *zap.Logger
	entries    chan Entry
	batchSize  int
	flushEvery time.Duration
	shutdown   chan struct{}
	done       chan struct{}
}

// Open creates (if needed) the SQLite database at path and starts the
// background flush worker. batchSize and flushEvery bound how long a
// written record can sit unflushed.
func Open(path string, batchSize int, flushEvery time.Duration, logger *zap.Logger) (*Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushEvery <= 0 {
		flushEvery = 100 * time.Millisecond
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	s := &Sink{
		db:         db,
		logger:     logger,
		entries:    make(chan Entry, batchSize*4),
		batchSize:  batchSize,
		flushEvery: flushEvery,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.worker()
	return s, nil
}

// Record enqueues e for persistence. If the buffer is full the entry is
// dropped and a warning is logged; audit logging must never apply
// backpressure to the translation pipeline.
func (s *Sink) Record(e Entry) {
	select {
	case s.entries <- e:
	default:
		s.logger.Warn("audit sink buffer full, dropping entry", zap.String("request_id", e.RequestID))
	}
}

func (s *Sink) worker() {
	defer close(s.done)
	batch := make([]Entry, 0, s.batchSize)
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		for i := range batch {
			if err := s.insert(ctx, &batch[i]); err != nil {
				s.logger.Warn("audit insert failed", zap.String("request_id", batch[i].RequestID), zap.Error(err))
			}
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-s.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.shutdown:
			for {
				select {
				case e := <-s.entries:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *Sink) insert(ctx context.Context, e *Entry) error {
	const stmt = `INSERT OR REPLACE INTO request_log
		(request_id, model_id, num_sentences, cache_hits, cache_misses, duration_micros, failed, completed_at)
		VALUES (:request_id, :model_id, :num_sentences, :cache_hits, :cache_misses, :duration_micros, :failed, :completed_at)`
	_, err := s.db.NamedExecContext(ctx, stmt, e)
	return err
}

// Close stops the flush worker, draining any buffered entries first, and
// closes the underlying database handle.
func (s *Sink) Close() error {
	close(s.shutdown)
	<-s.done
	return s.db.Close()
}

// Recent returns up to limit of the most recently completed entries,
// newest first. Intended for debugging and tests, not the hot path.
func (s *Sink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	err := s.db.SelectContext(ctx, &out,
		`SELECT request_id, model_id, num_sentences, cache_hits, cache_misses, duration_micros, failed, completed_at
		 FROM request_log ORDER BY completed_at DESC LIMIT ?`, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return out, err
}

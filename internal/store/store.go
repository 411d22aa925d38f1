// Package store persists run and attempt history in an embedded sqlite
// database so operators can audit what the sniper did each morning.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	date        TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	status      TEXT,
	booked      INTEGER NOT NULL DEFAULT 0,
	periods     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS attempts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	period     TEXT NOT NULL,
	seat       TEXT NOT NULL,
	status     INTEGER NOT NULL,
	message    TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id);
`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY on concurrent notifier/engine writes
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// StartRun opens a run row and returns its id.
func (s *Store) StartRun(ctx context.Context, date string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, date, started_at) VALUES (?, ?, ?)`,
		id, date, s.now().UTC())
	return id, err
}

// FinishRun closes a run row with its terminal status and tallies.
func (s *Store) FinishRun(ctx context.Context, id, status string, booked, periods int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at=?, status=?, booked=?, periods=? WHERE id=?`,
		s.now().UTC(), status, booked, periods, id)
	return err
}

// RunRecorder binds a store to one run id, satisfying the engine's
// AttemptRecorder without the engine knowing about run rows.
type RunRecorder struct {
	store *Store
	runID string
}

func (s *Store) RecorderFor(runID string) *RunRecorder {
	return &RunRecorder{store: s, runID: runID}
}

// RecordAttempt inserts one attempt row. Errors are deliberately dropped:
// history is best effort and must never disturb a booking pass.
func (r *RunRecorder) RecordAttempt(ctx context.Context, periodLabel, seat string, status int, message, outcome string) {
	_, _ = r.store.db.ExecContext(ctx,
		`INSERT INTO attempts(run_id, period, seat, status, message, outcome, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.runID, periodLabel, seat, status, message, outcome, r.store.now().UTC())
}

// AttemptRecord is one row of the history listing.
type AttemptRecord struct {
	RunID     string
	Date      string
	Period    string
	Seat      string
	Status    int
	Message   string
	Outcome   string
	CreatedAt time.Time
}

// RecentAttempts lists the newest attempts first.
func (s *Store) RecentAttempts(ctx context.Context, limit int) ([]AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.run_id, r.date, a.period, a.seat, a.status, a.message, a.outcome, a.created_at
FROM attempts a
JOIN runs r ON r.id = a.run_id
ORDER BY a.created_at DESC, a.id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		var rec AttemptRecord
		if err := rows.Scan(&rec.RunID, &rec.Date, &rec.Period, &rec.Seat, &rec.Status, &rec.Message, &rec.Outcome, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

package history

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/teranos/vidmask/errors"
)

// ErrDatabaseClosed is returned when the store is used after Close
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err means the connection is gone. The
// driver's own error is only recognizable by its message.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// Run is one recorded `vidmask run`
type Run struct {
	ID          int64         `json:"id"`
	SessionID   string        `json:"session_id"`
	Pipeline    string        `json:"pipeline"`
	Runtime     string        `json:"runtime"`
	MaskType    string        `json:"mask_type"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Format      string        `json:"format"`
	ModelWidth  int           `json:"model_width"`
	ModelHeight int           `json:"model_height"`
	Frames      int           `json:"frames"`
	NewMasks    int           `json:"new_masks"`
	Mean        time.Duration `json:"mean"`
	Max         time.Duration `json:"max"`
	TuningFile  string        `json:"tuning_file,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// Store reads and writes runs
type Store struct {
	db *sql.DB
}

// NewStore wraps an open, migrated database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const insertRun = `INSERT INTO runs (
	session_id, pipeline, runtime, mask_type, width, height, format,
	model_width, model_height, frames, new_masks, mean_us, max_us,
	tuning_file, started_at, finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Record stores r and returns its row id
func (s *Store) Record(ctx context.Context, r Run) (int64, error) {
	if r.SessionID == "" {
		return 0, errors.NewInvalidRequestError("run has no session id")
	}
	res, err := s.db.ExecContext(ctx, insertRun,
		r.SessionID, r.Pipeline, r.Runtime, r.MaskType, r.Width, r.Height, r.Format,
		r.ModelWidth, r.ModelHeight, r.Frames, r.NewMasks,
		r.Mean.Microseconds(), r.Max.Microseconds(),
		r.TuningFile, r.StartedAt.UTC(), r.FinishedAt.UTC(),
	)
	if err != nil {
		if IsDatabaseClosed(err) {
			return 0, errors.Wrap(ErrDatabaseClosed, "record run")
		}
		return 0, errors.Wrapf(err, "record run %s", r.SessionID)
	}
	return res.LastInsertId()
}

const selectRuns = `SELECT
	id, session_id, pipeline, runtime, mask_type, width, height, format,
	model_width, model_height, frames, new_masks, mean_us, max_us,
	tuning_file, started_at, finished_at
FROM runs`

// Recent returns up to limit runs, newest first. An empty pipeline
// matches every run.
func (s *Store) Recent(ctx context.Context, pipeline string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := selectRuns
	args := []interface{}{}
	if pipeline != "" {
		query += " WHERE pipeline = ?"
		args = append(args, pipeline)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var meanUS, maxUS int64
		if err := rows.Scan(
			&r.ID, &r.SessionID, &r.Pipeline, &r.Runtime, &r.MaskType, &r.Width, &r.Height, &r.Format,
			&r.ModelWidth, &r.ModelHeight, &r.Frames, &r.NewMasks, &meanUS, &maxUS,
			&r.TuningFile, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		r.Mean = time.Duration(meanUS) * time.Microsecond
		r.Max = time.Duration(maxUS) * time.Microsecond
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}

// Prune deletes runs that started before cutoff and returns how many
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "prune runs")
	}
	return res.RowsAffected()
}

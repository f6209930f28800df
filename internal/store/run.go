package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Run summarizes one finished practice session.
type Run struct {
	ID        string    `json:"id"`
	Sign      string    `json:"sign"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Frames    int       `json:"frames"`
	Average   float64   `json:"average"`
	Best      int       `json:"best"`
}

// RunRepository stores practice runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the practice run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts a run, assigning an ID when it has none.
func (r *RunRepository) Create(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := r.db.Exec(
		`INSERT INTO practice_runs (id, sign, started_at, ended_at, frames, average, best)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Sign, run.StartedAt, run.EndedAt, run.Frames, run.Average, run.Best,
	)
	return err
}

// List returns the most recent runs first, limited to limit rows when
// limit > 0. An empty sign lists runs for every sign.
func (r *RunRepository) List(sign string, limit int) ([]*Run, error) {
	query := `SELECT id, sign, started_at, ended_at, frames, average, best FROM practice_runs`
	var args []any
	if sign != "" {
		query += ` WHERE sign = ?`
		args = append(args, sign)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.Sign, &run.StartedAt, &run.EndedAt, &run.Frames, &run.Average, &run.Best); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

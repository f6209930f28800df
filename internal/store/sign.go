package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	lm "github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/timeline"
)

// Sign is a stored target sign without its frames.
type Sign struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FrameRate  float64   `json:"fps"`
	Duration   float64   `json:"duration"`
	FrameCount int       `json:"frame_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SignRepository stores sign timelines.
type SignRepository struct {
	db *sql.DB
}

// Signs returns the sign repository for this store.
func (s *Store) Signs() *SignRepository {
	return &SignRepository{db: s.db}
}

// Put validates tl and stores it under its canonical sign name, replacing
// any frames previously stored for that sign.
func (r *SignRepository) Put(tl *timeline.Timeline) (*Sign, error) {
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	name, err := timeline.CanonicalSign(tl.Sign)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	sg := &Sign{
		Name:       name,
		FrameRate:  tl.FrameRate,
		Duration:   tl.Span(),
		FrameCount: len(tl.Frames),
		UpdatedAt:  now,
	}

	err = tx.QueryRow(`SELECT id, created_at FROM signs WHERE name = ?`, name).Scan(&sg.ID, &sg.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		sg.ID = uuid.NewString()
		sg.CreatedAt = now
		_, err = tx.Exec(
			`INSERT INTO signs (id, name, frame_rate, duration, frame_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sg.ID, sg.Name, sg.FrameRate, sg.Duration, sg.FrameCount, sg.CreatedAt, sg.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		_, err = tx.Exec(
			`UPDATE signs SET frame_rate = ?, duration = ?, frame_count = ?, updated_at = ? WHERE id = ?`,
			sg.FrameRate, sg.Duration, sg.FrameCount, sg.UpdatedAt, sg.ID,
		)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`DELETE FROM sign_frames WHERE sign_id = ?`, sg.ID); err != nil {
			return nil, err
		}
	}

	stmt, err := tx.Prepare(
		`INSERT INTO sign_frames (sign_id, seq, frame_index, timestamp, hand, pose) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for i, f := range tl.Frames {
		hand, err := encodeSet(f.Hand)
		if err != nil {
			return nil, fmt.Errorf("frame %d hand: %w", i, err)
		}
		pose, err := encodeSet(f.Pose)
		if err != nil {
			return nil, fmt.Errorf("frame %d pose: %w", i, err)
		}
		if _, err := stmt.Exec(sg.ID, i, f.Index, f.Timestamp, hand, pose); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sg, nil
}

// Get retrieves a sign by name.
func (r *SignRepository) Get(name string) (*Sign, error) {
	key, err := timeline.CanonicalSign(name)
	if err != nil {
		return nil, err
	}

	sg := &Sign{}
	err = r.db.QueryRow(
		`SELECT id, name, frame_rate, duration, frame_count, created_at, updated_at
		 FROM signs WHERE name = ?`,
		key,
	).Scan(&sg.ID, &sg.Name, &sg.FrameRate, &sg.Duration, &sg.FrameCount, &sg.CreatedAt, &sg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sg, nil
}

// List retrieves all signs ordered by name.
func (r *SignRepository) List() ([]*Sign, error) {
	rows, err := r.db.Query(
		`SELECT id, name, frame_rate, duration, frame_count, created_at, updated_at
		 FROM signs ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signs []*Sign
	for rows.Next() {
		sg := &Sign{}
		if err := rows.Scan(&sg.ID, &sg.Name, &sg.FrameRate, &sg.Duration, &sg.FrameCount, &sg.CreatedAt, &sg.UpdatedAt); err != nil {
			return nil, err
		}
		signs = append(signs, sg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return signs, nil
}

// Delete removes a sign and its frames.
func (r *SignRepository) Delete(name string) error {
	key, err := timeline.CanonicalSign(name)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(`DELETE FROM signs WHERE name = ?`, key)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// LoadTimeline reads the stored frames for sign and returns a validated
// timeline. A missing sign yields an error wrapping timeline.ErrNotFound.
func (r *SignRepository) LoadTimeline(ctx context.Context, sign string) (*timeline.Timeline, error) {
	key, err := timeline.CanonicalSign(sign)
	if err != nil {
		return nil, err
	}

	tl := &timeline.Timeline{Sign: key}
	var id string
	err = r.db.QueryRowContext(ctx,
		`SELECT id, frame_rate, duration FROM signs WHERE name = ?`, key,
	).Scan(&id, &tl.FrameRate, &tl.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", key, timeline.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT frame_index, timestamp, hand, pose FROM sign_frames WHERE sign_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("load %s frames: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var f timeline.Frame
		var hand, pose sql.NullString
		if err := rows.Scan(&f.Index, &f.Timestamp, &hand, &pose); err != nil {
			return nil, err
		}
		if f.Hand, err = decodeSet(hand); err != nil {
			return nil, fmt.Errorf("load %s frame %d: %w", key, f.Index, err)
		}
		if f.Pose, err = decodeSet(pose); err != nil {
			return nil, fmt.Errorf("load %s frame %d: %w", key, f.Index, err)
		}
		tl.Frames = append(tl.Frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tl.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return tl, nil
}

func encodeSet(s lm.Set) (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeSet(v sql.NullString) (lm.Set, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var s lm.Set
	if err := json.Unmarshal([]byte(v.String), &s); err != nil {
		return nil, err
	}
	return s, nil
}

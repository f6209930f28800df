package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Signs table - one row per recorded target sign
		`CREATE TABLE IF NOT EXISTS signs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			frame_rate REAL NOT NULL CHECK(frame_rate > 0),
			duration REAL NOT NULL DEFAULT 0,
			frame_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Sign frames table - target landmarks per frame, stored as JSON point lists
		`CREATE TABLE IF NOT EXISTS sign_frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sign_id TEXT NOT NULL REFERENCES signs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			frame_index INTEGER NOT NULL,
			timestamp REAL NOT NULL,
			hand TEXT,
			pose TEXT
		)`,

		// Practice runs table - summary of finished practice sessions
		`CREATE TABLE IF NOT EXISTS practice_runs (
			id TEXT PRIMARY KEY,
			sign TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL,
			frames INTEGER NOT NULL DEFAULT 0,
			average REAL NOT NULL DEFAULT 0,
			best INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sign_frames_sign_id ON sign_frames(sign_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_practice_runs_sign ON practice_runs(sign, started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

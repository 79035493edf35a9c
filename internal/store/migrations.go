package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Targets table - the on-screen virtual buttons and their bound actions
		`CREATE TABLE IF NOT EXISTS targets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			shape TEXT NOT NULL CHECK(shape IN ('circle', 'rect')),
			x REAL NOT NULL DEFAULT 0,
			y REAL NOT NULL DEFAULT 0,
			radius REAL NOT NULL DEFAULT 0,
			width REAL NOT NULL DEFAULT 0,
			height REAL NOT NULL DEFAULT 0,
			policy TEXT NOT NULL CHECK(policy IN ('time', 'depth')),
			hold_ms INTEGER NOT NULL DEFAULT 0,
			press_depth REAL NOT NULL DEFAULT 0,
			plugin_name TEXT NOT NULL DEFAULT '',
			action_name TEXT NOT NULL DEFAULT '',
			config TEXT NOT NULL DEFAULT '{}',
			position INTEGER NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Activations table - one row per confirmed target
		`CREATE TABLE IF NOT EXISTS activations (
			id TEXT PRIMARY KEY,
			target_id TEXT NOT NULL,
			target_name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'queued',
			error TEXT NOT NULL DEFAULT '',
			confirmed_at DATETIME NOT NULL
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_targets_position ON targets(position)`,
		`CREATE INDEX IF NOT EXISTS idx_activations_confirmed_at ON activations(confirmed_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

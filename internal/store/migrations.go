package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Settings table - UI preferences as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Artworks table - generated and edited card art, newest row wins
		`CREATE TABLE IF NOT EXISTS artworks (
			id TEXT PRIMARY KEY,
			card_id INTEGER NOT NULL,
			reversed INTEGER NOT NULL DEFAULT 0,
			ref TEXT NOT NULL,
			instruction TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_artworks_card ON artworks(card_id, reversed, created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

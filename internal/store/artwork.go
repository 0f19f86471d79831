package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Artwork is one generated or edited image for a card orientation.
type Artwork struct {
	ID          string
	CardID      int
	Reversed    bool
	Ref         string
	Instruction string // empty for a fresh generation
	CreatedAt   time.Time
}

// ArtworkRepository caches generated artwork references.
type ArtworkRepository struct {
	db *sql.DB
}

// Artworks returns the artwork repository for this store.
func (s *Store) Artworks() *ArtworkRepository {
	return &ArtworkRepository{db: s.db}
}

// Add records a new artwork. ID and CreatedAt are filled in when empty.
func (r *ArtworkRepository) Add(ctx context.Context, a *Artwork) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO artworks (id, card_id, reversed, ref, instruction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.CardID, a.Reversed, a.Ref, a.Instruction, a.CreatedAt,
	)
	return err
}

// Latest returns the newest artwork for a card orientation.
func (r *ArtworkRepository) Latest(ctx context.Context, cardID int, reversed bool) (*Artwork, error) {
	a := &Artwork{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, card_id, reversed, ref, instruction, created_at
		 FROM artworks WHERE card_id = ? AND reversed = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		cardID, reversed,
	).Scan(&a.ID, &a.CardID, &a.Reversed, &a.Ref, &a.Instruction, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListByCard returns every artwork for a card, newest first.
func (r *ArtworkRepository) ListByCard(ctx context.Context, cardID int) ([]*Artwork, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, card_id, reversed, ref, instruction, created_at
		 FROM artworks WHERE card_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		cardID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Artwork
	for rows.Next() {
		a := &Artwork{}
		if err := rows.Scan(&a.ID, &a.CardID, &a.Reversed, &a.Ref, &a.Instruction, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByCard removes every artwork for a card.
func (r *ArtworkRepository) DeleteByCard(ctx context.Context, cardID int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM artworks WHERE card_id = ?`, cardID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

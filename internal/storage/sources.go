package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/lingosrs/internal/domain"
)

const sourceColumns = `id, user_id, type, path, language, last_scanned, created_at`

// InsertSource stores a new deck source. The caller assigns the ID.
func (db *DB) InsertSource(ctx context.Context, src *domain.Source) error {
	_, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), src.ID, src.UserID, src.Type, src.Path, src.Language, utcPtr(src.LastScanned), src.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert source %s: %w", src.Path, err)
	}
	return nil
}

// FindSource retrieves a source owned by userID.
// It returns nil, nil when there is no such source.
func (db *DB) FindSource(ctx context.Context, userID, id string) (*domain.Source, error) {
	var s domain.Source
	err := db.conn.GetContext(ctx, &s, db.q(`
		SELECT `+sourceColumns+` FROM sources WHERE id = ? AND user_id = ?
	`), id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find source %s: %w", id, err)
	}
	return &s, nil
}

// FindSourceByPath retrieves a user's source by its path.
// It returns nil, nil when there is no such source.
func (db *DB) FindSourceByPath(ctx context.Context, userID, path string) (*domain.Source, error) {
	var s domain.Source
	err := db.conn.GetContext(ctx, &s, db.q(`
		SELECT `+sourceColumns+` FROM sources WHERE user_id = ? AND path = ?
	`), userID, path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// ListSources retrieves the sources registered by one user.
func (db *DB) ListSources(ctx context.Context, userID string) ([]domain.Source, error) {
	sources := []domain.Source{}
	err := db.conn.SelectContext(ctx, &sources, db.q(`
		SELECT `+sourceColumns+` FROM sources WHERE user_id = ? ORDER BY created_at ASC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources for user %s: %w", userID, err)
	}
	return sources, nil
}

// GetAllSources retrieves all stored sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]domain.Source, error) {
	sources := []domain.Source{}
	if err := db.conn.SelectContext(ctx, &sources, `SELECT `+sourceColumns+` FROM sources ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	return sources, nil
}

// DeleteSource removes a user's source and returns the number of rows
// affected. Cards imported from it are kept and lose their provenance.
func (db *DB) DeleteSource(ctx context.Context, userID, id string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM sources WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete source %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows for source %s: %w", id, err)
	}
	return n, nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, id string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, db.q(`UPDATE sources SET last_scanned = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source %s: %w", id, err)
	}
	return nil
}

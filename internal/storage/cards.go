package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/conorfennell/lingosrs/internal/domain"
)

const cardColumns = `id, user_id, content_id, language, front_text, back_text, details,
	source_id, source_hash, stability, difficulty, state, learning_steps, reps, lapses,
	due_date, last_reviewed_at, created_at, updated_at, version`

// CardQuery filters a paginated card listing.
type CardQuery struct {
	UserID   string
	Language domain.Language
	Search   string
	Limit    int
	Offset   int
}

// InsertCard stores a new card. The caller assigns the ID and timestamps.
func (db *DB) InsertCard(ctx context.Context, card *domain.Card) error {
	_, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		card.ID,
		card.UserID,
		card.ContentID,
		card.Language,
		card.FrontText,
		card.BackText,
		card.Details,
		card.SourceID,
		card.SourceHash,
		card.Stability,
		card.Difficulty,
		card.State,
		card.LearningSteps,
		card.Reps,
		card.Lapses,
		card.DueDate.UTC(),
		utcPtr(card.LastReviewedAt),
		card.CreatedAt.UTC(),
		card.UpdatedAt.UTC(),
		card.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// FindCard retrieves a card by id regardless of its owner.
// It returns nil, nil when the card does not exist.
func (db *DB) FindCard(ctx context.Context, id string) (*domain.Card, error) {
	var c domain.Card
	err := db.conn.GetContext(ctx, &c, db.q(`SELECT `+cardColumns+` FROM cards WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return &c, nil
}

// FindUserCard retrieves a card owned by userID.
// It returns nil, nil when no such card exists for that user.
func (db *DB) FindUserCard(ctx context.Context, userID, id string) (*domain.Card, error) {
	var c domain.Card
	err := db.conn.GetContext(ctx, &c, db.q(`
		SELECT `+cardColumns+` FROM cards WHERE id = ? AND user_id = ?
	`), id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return &c, nil
}

// ListDueCards returns the user's cards due at or before now, earliest first.
func (db *DB) ListDueCards(ctx context.Context, userID string, now time.Time) ([]domain.Card, error) {
	cards := []domain.Card{}
	err := db.conn.SelectContext(ctx, &cards, db.q(`
		SELECT `+cardColumns+` FROM cards
		WHERE user_id = ? AND due_date <= ?
		ORDER BY due_date ASC, id ASC
	`), userID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list due cards for user %s: %w", userID, err)
	}
	return cards, nil
}

// ListCards returns one page of the user's cards, newest first, together
// with the total number of matching cards.
func (db *DB) ListCards(ctx context.Context, query CardQuery) ([]domain.Card, int, error) {
	where := []string{"user_id = ?"}
	args := []any{query.UserID}
	if query.Language != "" {
		where = append(where, "language = ?")
		args = append(args, query.Language)
	}
	if query.Search != "" {
		where = append(where, `(LOWER(front_text) LIKE ? ESCAPE '\' OR LOWER(back_text) LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(strings.ToLower(query.Search)) + "%"
		args = append(args, pattern, pattern)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := db.conn.GetContext(ctx, &total, db.q(`SELECT COUNT(*) FROM cards WHERE `+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count cards for user %s: %w", query.UserID, err)
	}

	cards := []domain.Card{}
	err := db.conn.SelectContext(ctx, &cards, db.q(`
		SELECT `+cardColumns+` FROM cards WHERE `+clause+`
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?
	`), append(args, query.Limit, query.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cards for user %s: %w", query.UserID, err)
	}
	return cards, total, nil
}

// UpdateCardContent writes the non-scheduling fields of a card. card.Version
// must hold the version that was read; it is incremented on success.
// ErrConflict is returned when the stored version has moved on.
func (db *DB) UpdateCardContent(ctx context.Context, card *domain.Card) error {
	res, err := db.conn.ExecContext(ctx, db.q(`
		UPDATE cards
		SET content_id = ?, language = ?, front_text = ?, back_text = ?, details = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?
	`),
		card.ContentID,
		card.Language,
		card.FrontText,
		card.BackText,
		card.Details,
		card.UpdatedAt.UTC(),
		card.ID,
		card.UserID,
		card.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", card.ID, err)
	}
	if err := expectOneRow(res, card.ID); err != nil {
		return err
	}
	card.Version++
	return nil
}

// SaveReview persists the scheduling outcome of a review and its log entry
// in one transaction. card.Version must hold the version the review was
// computed from; it is incremented on success. ErrConflict is returned,
// and nothing is written, when another review landed first.
func (db *DB) SaveReview(ctx context.Context, card *domain.Card, entry *domain.ReviewLog) error {
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, db.q(`
			UPDATE cards
			SET stability = ?, difficulty = ?, state = ?, learning_steps = ?, reps = ?, lapses = ?,
				due_date = ?, last_reviewed_at = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND user_id = ? AND version = ?
		`),
			card.Stability,
			card.Difficulty,
			card.State,
			card.LearningSteps,
			card.Reps,
			card.Lapses,
			card.DueDate.UTC(),
			utcPtr(card.LastReviewedAt),
			card.UpdatedAt.UTC(),
			card.ID,
			card.UserID,
			card.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to save review for card %s: %w", card.ID, err)
		}
		if err := expectOneRow(res, card.ID); err != nil {
			return err
		}
		return insertReviewLog(ctx, tx, db.q, entry)
	})
	if err != nil {
		return err
	}
	card.Version++
	return nil
}

// DeleteCard removes a card owned by userID and returns the number of
// rows affected. Its review logs are removed with it.
func (db *DB) DeleteCard(ctx context.Context, userID, id string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM cards WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows for card %s: %w", id, err)
	}
	return n, nil
}

// FindCardBySourceHash looks up an imported card by its content hash.
// It returns nil, nil when the source has no such card.
func (db *DB) FindCardBySourceHash(ctx context.Context, sourceID, hash string) (*domain.Card, error) {
	var c domain.Card
	err := db.conn.GetContext(ctx, &c, db.q(`
		SELECT `+cardColumns+` FROM cards WHERE source_id = ? AND source_hash = ?
	`), sourceID, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return &c, nil
}

// ListCardsBySource retrieves all cards imported from a source.
func (db *DB) ListCardsBySource(ctx context.Context, sourceID string) ([]domain.Card, error) {
	cards := []domain.Card{}
	err := db.conn.SelectContext(ctx, &cards, db.q(`
		SELECT `+cardColumns+` FROM cards WHERE source_id = ?
	`), sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source %s: %w", sourceID, err)
	}
	return cards, nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for card %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("card %s: %w", id, domain.ErrConflict)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

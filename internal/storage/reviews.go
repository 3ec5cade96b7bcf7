package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/conorfennell/lingosrs/internal/domain"
)

func insertReviewLog(ctx context.Context, tx *sqlx.Tx, rebind func(string) string, entry *domain.ReviewLog) error {
	_, err := tx.ExecContext(ctx, rebind(`
		INSERT INTO review_logs (id, card_id, user_id, rating, state_before, state_after,
			elapsed_days, scheduled_days, reps, due_date, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		entry.ID,
		entry.CardID,
		entry.UserID,
		int(entry.Rating),
		entry.StateBefore,
		entry.StateAfter,
		entry.ElapsedDays,
		entry.ScheduledDays,
		entry.Reps,
		entry.DueDate.UTC(),
		entry.ReviewedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert review log for card %s: %w", entry.CardID, err)
	}
	return nil
}

// ListReviewLogs returns the review history of a card owned by userID,
// most recent first. limit <= 0 returns every entry.
func (db *DB) ListReviewLogs(ctx context.Context, userID, cardID string, limit int) ([]domain.ReviewLog, error) {
	query := `
		SELECT id, card_id, user_id, rating, state_before, state_after,
			elapsed_days, scheduled_days, reps, due_date, reviewed_at
		FROM review_logs
		WHERE card_id = ? AND user_id = ?
		ORDER BY reviewed_at DESC, reps DESC`
	args := []any{cardID, userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	logs := []domain.ReviewLog{}
	if err := db.conn.SelectContext(ctx, &logs, db.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list review logs for card %s: %w", cardID, err)
	}
	return logs, nil
}

package srs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conorfennell/lingosrs/internal/domain"
)

// maxReviewAttempts bounds how often a review is recomputed after losing
// a race with a concurrent review of the same card.
const maxReviewAttempts = 3

// ReviewResult is returned after a review is accepted.
type ReviewResult struct {
	CardID      string       `json:"flashcardId"`
	NextDueDate time.Time    `json:"nextDueDate"`
	State       domain.State `json:"state"`
}

// PreviewOption is the outcome one rating would produce.
type PreviewOption struct {
	Rating   domain.Rating `json:"rating"`
	State    domain.State  `json:"state"`
	DueDate  time.Time     `json:"dueDate"`
	Interval string        `json:"interval"`
}

// Preview lists the outcome of every rating for a card.
type Preview struct {
	CardID         string          `json:"flashcardId"`
	Retrievability float64         `json:"retrievability"`
	Options        []PreviewOption `json:"options"`
}

// ListDueCards returns the user's cards with a due date at or before now,
// earliest first. It does not modify anything.
func (s *Service) ListDueCards(ctx context.Context, userID string) ([]domain.Card, error) {
	return s.repo.ListDueCards(ctx, userID, s.clock.Now())
}

// SubmitReview applies a rating to one of the user's cards and persists
// the scheduler's output together with a review log entry.
//
// The write is conditional on the card's version. When a concurrent
// review wins, the outcome is recomputed from the card as it now is, so
// every accepted review is applied to the state left by the previous one.
func (s *Service) SubmitReview(ctx context.Context, userID, cardID string, rating domain.Rating) (*ReviewResult, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: rating must be one of Again, Hard, Good, Easy", domain.ErrValidation)
	}

	for attempt := 1; attempt <= maxReviewAttempts; attempt++ {
		card, err := s.ownedCard(ctx, userID, cardID)
		if err != nil {
			return nil, err
		}

		now := s.clock.Now()
		updated, entry, err := s.applyRating(card, rating, now)
		if err != nil {
			return nil, err
		}

		err = s.repo.SaveReview(ctx, updated, entry)
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.conflicts.Inc()
			s.logger.Info("review conflict, recomputing",
				zap.String("card_id", cardID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.metrics.observeReview(rating, entry.StateBefore, entry.StateAfter)
		s.logger.Debug("review accepted",
			zap.String("card_id", cardID),
			zap.String("rating", rating.String()),
			zap.String("from", entry.StateBefore.String()),
			zap.String("to", entry.StateAfter.String()),
			zap.Time("due", updated.DueDate),
		)
		return &ReviewResult{CardID: cardID, NextDueDate: updated.DueDate, State: updated.State}, nil
	}

	return nil, fmt.Errorf("card %s after %d attempts: %w", cardID, maxReviewAttempts, domain.ErrConflict)
}

// applyRating computes the reviewed card and its log entry without
// writing anything.
func (s *Service) applyRating(card *domain.Card, rating domain.Rating, now time.Time) (*domain.Card, *domain.ReviewLog, error) {
	last := now
	if card.LastReviewedAt != nil {
		last = *card.LastReviewedAt
	}

	out, err := s.scheduler.Next(card.Schedule, last, now, rating)
	if err != nil {
		if errors.Is(err, domain.ErrInvariant) {
			s.logger.Error("scheduler rejected stored card state",
				zap.String("card_id", card.ID),
				zap.String("state", card.State.String()),
				zap.Float64("stability", card.Stability),
				zap.Float64("difficulty", card.Difficulty),
				zap.Error(err),
			)
		}
		return nil, nil, err
	}

	updated := *card
	updated.Schedule = out.Schedule
	updated.LastReviewedAt = &now
	updated.UpdatedAt = now

	entry := &domain.ReviewLog{
		ID:            uuid.NewString(),
		CardID:        card.ID,
		UserID:        card.UserID,
		Rating:        rating,
		StateBefore:   card.State,
		StateAfter:    out.State,
		ElapsedDays:   out.ElapsedDays,
		ScheduledDays: out.ScheduledDays,
		Reps:          out.Reps,
		DueDate:       out.DueDate,
		ReviewedAt:    now,
	}
	return &updated, entry, nil
}

// PreviewReview shows what each rating would do to a card, without
// recording a review.
func (s *Service) PreviewReview(ctx context.Context, userID, cardID string) (*Preview, error) {
	card, err := s.ownedCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	last := now
	if card.LastReviewedAt != nil {
		last = *card.LastReviewedAt
	}
	outcomes, err := s.scheduler.Preview(card.Schedule, last, now)
	if err != nil {
		return nil, err
	}

	p := &Preview{
		CardID:         card.ID,
		Retrievability: s.scheduler.Retrievability(card.Schedule, last, now),
		Options:        make([]PreviewOption, 0, len(domain.Ratings)),
	}
	for _, r := range domain.Ratings {
		o := outcomes[r]
		p.Options = append(p.Options, PreviewOption{
			Rating:   r,
			State:    o.State,
			DueDate:  o.DueDate,
			Interval: formatInterval(o.DueDate.Sub(now)),
		})
	}
	return p, nil
}

// ReviewHistory returns the review log of one of the user's cards, most
// recent first.
func (s *Service) ReviewHistory(ctx context.Context, userID, cardID string, limit int) ([]domain.ReviewLog, error) {
	if _, err := s.ownedCard(ctx, userID, cardID); err != nil {
		return nil, err
	}
	return s.repo.ListReviewLogs(ctx, userID, cardID, limit)
}

// formatInterval renders a duration the way review buttons label it:
// "10m", "3h", "12d".
func formatInterval(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}

// Package srs owns the card lifecycle: creating and editing cards,
// selecting the review queue and applying reviews through the scheduler.
package srs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conorfennell/lingosrs/internal/domain"
	"github.com/conorfennell/lingosrs/internal/fsrs"
	"github.com/conorfennell/lingosrs/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Repository is the persistence the service needs. *storage.DB satisfies it.
type Repository interface {
	InsertCard(ctx context.Context, card *domain.Card) error
	FindUserCard(ctx context.Context, userID, id string) (*domain.Card, error)
	ListDueCards(ctx context.Context, userID string, now time.Time) ([]domain.Card, error)
	ListCards(ctx context.Context, query storage.CardQuery) ([]domain.Card, int, error)
	UpdateCardContent(ctx context.Context, card *domain.Card) error
	SaveReview(ctx context.Context, card *domain.Card, entry *domain.ReviewLog) error
	DeleteCard(ctx context.Context, userID, id string) (int64, error)
	ListReviewLogs(ctx context.Context, userID, cardID string, limit int) ([]domain.ReviewLog, error)
	FindCardBySourceHash(ctx context.Context, sourceID, hash string) (*domain.Card, error)
}

// Service implements the card operations for authenticated users.
type Service struct {
	repo      Repository
	scheduler *fsrs.Scheduler
	clock     Clock
	logger    *zap.Logger
	metrics   *Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the collectors reviews are counted in.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires a Service. Without options it uses the system clock,
// a no-op logger and unregistered metrics.
func NewService(repo Repository, scheduler *fsrs.Scheduler, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		scheduler: scheduler,
		clock:     SystemClock{},
		logger:    zap.NewNop(),
		metrics:   NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCardInput is the payload for a new card.
type CreateCardInput struct {
	ContentID *string         `json:"contentId" validate:"omitempty,max=128"`
	Language  domain.Language `json:"language" validate:"required,oneof=eng jpn chi_sim"`
	FrontText string          `json:"frontText" validate:"required,max=1000"`
	BackText  string          `json:"backText" validate:"required,max=4000"`
	Details   *domain.Details `json:"details"`
}

// UpdateCardInput carries the content fields to change. Nil fields are
// left as they are. Scheduling fields cannot be edited.
type UpdateCardInput struct {
	ContentID *string          `json:"contentId" validate:"omitempty,max=128"`
	Language  *domain.Language `json:"language" validate:"omitempty,oneof=eng jpn chi_sim"`
	FrontText *string          `json:"frontText" validate:"omitempty,max=1000"`
	BackText  *string          `json:"backText" validate:"omitempty,max=4000"`
	Details   *domain.Details  `json:"details"`
}

// ListQuery selects one page of a user's cards.
type ListQuery struct {
	Page     int
	Limit    int
	Search   string
	Language domain.Language
}

// CardPage is one page of a card listing.
type CardPage struct {
	Items      []domain.Card `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
}

// CreateCard stores a new card for userID. It starts in state New and is
// due immediately.
func (s *Service) CreateCard(ctx context.Context, userID string, in CreateCardInput) (*domain.Card, error) {
	in.FrontText = strings.TrimSpace(in.FrontText)
	in.BackText = strings.TrimSpace(in.BackText)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	card := &domain.Card{
		ID:        uuid.NewString(),
		UserID:    userID,
		ContentID: in.ContentID,
		Language:  in.Language,
		FrontText: in.FrontText,
		BackText:  in.BackText,
		Details:   in.Details,
		Schedule:  domain.NewSchedule(now),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if err := s.repo.InsertCard(ctx, card); err != nil {
		return nil, err
	}
	s.metrics.cardsCreated.WithLabelValues("api").Inc()
	s.logger.Debug("card created", zap.String("card_id", card.ID), zap.String("user_id", userID))
	return card, nil
}

// GetCard returns one of the user's cards.
func (s *Service) GetCard(ctx context.Context, userID, cardID string) (*domain.Card, error) {
	return s.ownedCard(ctx, userID, cardID)
}

// ListCards returns a page of the user's cards, newest first.
func (s *Service) ListCards(ctx context.Context, userID string, q ListQuery) (*CardPage, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}
	if q.Page < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1", domain.ErrValidation)
	}
	if q.Limit < 1 || q.Limit > maxPageSize {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}
	if q.Language != "" && !q.Language.IsValid() {
		return nil, fmt.Errorf("%w: unknown language %q", domain.ErrValidation, q.Language)
	}

	cards, total, err := s.repo.ListCards(ctx, storage.CardQuery{
		UserID:   userID,
		Language: q.Language,
		Search:   strings.TrimSpace(q.Search),
		Limit:    q.Limit,
		Offset:   (q.Page - 1) * q.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &CardPage{
		Items:      cards,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: (total + q.Limit - 1) / q.Limit,
	}, nil
}

// UpdateCard changes the content of one of the user's cards.
func (s *Service) UpdateCard(ctx context.Context, userID, cardID string, in UpdateCardInput) (*domain.Card, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	for name, v := range map[string]*string{"frontText": in.FrontText, "backText": in.BackText} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return nil, fmt.Errorf("%w: %s must not be empty", domain.ErrValidation, name)
		}
	}

	card, err := s.ownedCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if in.ContentID != nil {
		card.ContentID = in.ContentID
	}
	if in.Language != nil {
		card.Language = *in.Language
	}
	if in.FrontText != nil {
		card.FrontText = strings.TrimSpace(*in.FrontText)
	}
	if in.BackText != nil {
		card.BackText = strings.TrimSpace(*in.BackText)
	}
	if in.Details != nil {
		card.Details = in.Details
	}
	card.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateCardContent(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

// DeleteCard removes one of the user's cards.
func (s *Service) DeleteCard(ctx context.Context, userID, cardID string) error {
	n, err := s.repo.DeleteCard(ctx, userID, cardID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	s.logger.Debug("card deleted", zap.String("card_id", cardID), zap.String("user_id", userID))
	return nil
}

// ownedCard loads a card and reports foreign and missing cards alike.
func (s *Service) ownedCard(ctx context.Context, userID, cardID string) (*domain.Card, error) {
	card, err := s.repo.FindUserCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	return card, nil
}

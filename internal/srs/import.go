package srs

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/conorfennell/lingosrs/internal/domain"
)

// ImportDraft stores a card parsed from a deck source unless the source
// already holds a card with the same hash. It reports whether a card
// was created.
func (s *Service) ImportDraft(ctx context.Context, src domain.Source, draft domain.CardDraft) (bool, error) {
	if draft.Hash == "" {
		return false, fmt.Errorf("%w: draft has no hash", domain.ErrValidation)
	}
	existing, err := s.repo.FindCardBySourceHash(ctx, src.ID, draft.Hash)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	in := CreateCardInput{
		Language:  src.Language,
		FrontText: strings.TrimSpace(draft.Front),
		BackText:  strings.TrimSpace(draft.Back),
	}
	if c := strings.TrimSpace(draft.Context); c != "" {
		in.Details = &domain.Details{Notes: c}
	}
	if err := validateStruct(in); err != nil {
		return false, err
	}

	now := s.clock.Now()
	sourceID, hash := src.ID, draft.Hash
	card := &domain.Card{
		ID:         uuid.NewString(),
		UserID:     src.UserID,
		Language:   in.Language,
		FrontText:  in.FrontText,
		BackText:   in.BackText,
		Details:    in.Details,
		SourceID:   &sourceID,
		SourceHash: &hash,
		Schedule:   domain.NewSchedule(now),
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}
	if err := s.repo.InsertCard(ctx, card); err != nil {
		return false, err
	}
	s.metrics.cardsCreated.WithLabelValues("import").Inc()
	return true, nil
}

package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haggle-hub/haggle-hub/internal/domain/history"
)

// Service records offer history entries.
type Service struct {
	repo   history.Repository
	logger zerolog.Logger
}

// NewService creates a new history service
func NewService(repo history.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("service", "history").Logger(),
	}
}

// LogHistory appends an entry synchronously.
func (s *Service) LogHistory(ctx context.Context, entry *history.Entry) error {
	if entry == nil {
		return fmt.Errorf("history entry is nil")
	}
	if err := s.repo.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}

	evt := s.logger.Debug().
		Str("historyId", entry.ID.String()).
		Str("offerId", entry.OfferID.String()).
		Str("action", string(entry.Action)).
		Str("actor", entry.ActorID.String())
	if entry.Amount != nil {
		evt = evt.Str("amount", entry.Amount.String())
	}
	evt.Msg("history entry recorded")
	return nil
}

// List returns an offer's history, oldest first.
func (s *Service) List(ctx context.Context, offerID uuid.UUID) ([]*history.Entry, error) {
	entries, err := s.repo.ListHistory(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	if entries == nil {
		entries = []*history.Entry{}
	}
	return entries, nil
}

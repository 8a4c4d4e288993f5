package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
)

// Service persists offer system messages and pushes live events to every publisher.
type Service struct {
	repo       notification.MessageRepository
	publishers []notification.Publisher
	logger     zerolog.Logger
}

// NewService creates a new notification service
func NewService(repo notification.MessageRepository, publishers []notification.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		publishers: publishers,
		logger:     logger.With().Str("service", "notification").Logger(),
	}
}

type eventPayload struct {
	MessageID uuid.UUID `json:"messageId"`
	notification.Notice
}

// Notify stores the notice as a system message on the offer channel and publishes it to the
// offer, item and recipient channels. Every step is attempted; failures are joined.
func (s *Service) Notify(ctx context.Context, notice notification.Notice) error {
	var errs []error

	msg := notification.NewSystemMessage(notice)
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		errs = append(errs, fmt.Errorf("failed to save system message: %w", err))
	}

	payload, err := json.Marshal(eventPayload{MessageID: msg.ID, Notice: notice})
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("failed to encode notice: %w", err))...)
	}

	for _, channel := range channelsFor(notice) {
		for _, p := range s.publishers {
			if err := p.Publish(ctx, channel, notice.Event, payload); err != nil {
				errs = append(errs, fmt.Errorf("publish %s on %s: %w", notice.Event, channel, err))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.logger.Debug().
		Str("offerId", notice.OfferID.String()).
		Str("event", notice.Event).
		Int("recipients", len(notice.RecipientIDs)).
		Msg("notice delivered")
	return nil
}

// ListMessages returns the system messages of an offer channel, oldest first.
func (s *Service) ListMessages(ctx context.Context, offerID uuid.UUID) ([]*notification.SystemMessage, error) {
	msgs, err := s.repo.ListMessages(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if msgs == nil {
		msgs = []*notification.SystemMessage{}
	}
	return msgs, nil
}

func channelsFor(notice notification.Notice) []string {
	channels := []string{
		notification.OfferChannel(notice.OfferID),
		notification.ItemChannel(notice.ItemID),
	}
	seen := make(map[uuid.UUID]bool, len(notice.RecipientIDs))
	for _, id := range notice.RecipientIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		channels = append(channels, notification.UserChannel(id))
	}
	return channels
}

package negotiation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haggle-hub/haggle-hub/internal/domain/history"
	"github.com/haggle-hub/haggle-hub/internal/domain/item"
	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
)

var historyActions = map[offer.Action]history.Action{
	offer.ActionCreate:         history.ActionCreated,
	offer.ActionCounter:        history.ActionCountered,
	offer.ActionAccept:         history.ActionAccepted,
	offer.ActionReject:         history.ActionRejected,
	offer.ActionCancel:         history.ActionCancelled,
	offer.ActionConfirmReceipt: history.ActionCompleted,
	offer.ActionExpire:         history.ActionExpired,
}

var events = map[offer.Action]string{
	offer.ActionCreate:         notification.EventOfferCreated,
	offer.ActionCounter:        notification.EventOfferCountered,
	offer.ActionAccept:         notification.EventOfferAccepted,
	offer.ActionReject:         notification.EventOfferRejected,
	offer.ActionCancel:         notification.EventOfferCancelled,
	offer.ActionConfirmReceipt: notification.EventOfferCompleted,
	offer.ActionExpire:         notification.EventOfferExpired,
}

// afterCommit records history and notifies participants. Failures are logged only.
func (s *Service) afterCommit(ctx context.Context, actor offer.Actor, action offer.Action, role offer.Role, o *offer.Offer, it *item.Item, rejected []*offer.Offer) {
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	s.recordHistory(ctx, history.NewEntry(o.ID, historyActions[action], historyAmount(action, o), actor.ID, now))
	s.notify(ctx, notification.Notice{
		OfferID:      o.ID,
		ItemID:       o.ItemID,
		Event:        events[action],
		Status:       string(o.Status),
		Message:      describe(action, role, o),
		ActorID:      actor.ID,
		RecipientIDs: participants(o, it),
		OccurredAt:   now,
	})

	for _, r := range rejected {
		s.recordHistory(ctx, history.NewEntry(r.ID, history.ActionRejected, nil, actor.ID, now))
		s.notify(ctx, notification.Notice{
			OfferID:      r.ID,
			ItemID:       r.ItemID,
			Event:        notification.EventOfferRejected,
			Status:       string(r.Status),
			Message:      "Offer closed: the seller accepted another offer on this item",
			ActorID:      actor.ID,
			RecipientIDs: participants(r, it),
			OccurredAt:   now,
		})
	}
}

func (s *Service) recordHistory(ctx context.Context, entry *history.Entry) {
	if s.history == nil {
		return
	}
	if err := s.history.LogHistory(ctx, entry); err != nil {
		s.logger.Warn().Err(err).
			Str("offerId", entry.OfferID.String()).
			Str("action", string(entry.Action)).
			Msg("failed to record offer history")
	}
}

func (s *Service) notify(ctx context.Context, notice notification.Notice) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notice); err != nil {
		s.logger.Warn().Err(err).
			Str("offerId", notice.OfferID.String()).
			Str("event", notice.Event).
			Msg("failed to notify participants")
	}
}

func historyAmount(action offer.Action, o *offer.Offer) *decimal.Decimal {
	var amount decimal.Decimal
	switch action {
	case offer.ActionCreate:
		amount = o.OfferAmount
	case offer.ActionCounter:
		amount = o.CurrentAmount()
	case offer.ActionAccept, offer.ActionConfirmReceipt:
		amount = o.FinalPrice()
	default:
		return nil
	}
	return &amount
}

func participants(o *offer.Offer, it *item.Item) []uuid.UUID {
	ids := []uuid.UUID{o.BuyerID}
	if it != nil {
		ids = append(ids, it.SellerID)
	}
	return ids
}

func describe(action offer.Action, role offer.Role, o *offer.Offer) string {
	who := "Buyer"
	if role == offer.RoleSeller {
		who = "Seller"
	}
	switch action {
	case offer.ActionCreate:
		return fmt.Sprintf("Buyer offered %s", o.OfferAmount.String())
	case offer.ActionCounter:
		return fmt.Sprintf("%s countered with %s", who, o.CurrentAmount().String())
	case offer.ActionAccept:
		return fmt.Sprintf("%s accepted the offer at %s; the item is reserved", who, o.FinalPrice().String())
	case offer.ActionReject:
		return fmt.Sprintf("%s rejected the offer", who)
	case offer.ActionCancel:
		return fmt.Sprintf("%s cancelled the offer", who)
	case offer.ActionConfirmReceipt:
		return fmt.Sprintf("Buyer confirmed receipt; sale completed at %s", o.FinalPrice().String())
	case offer.ActionExpire:
		return "Offer expired without a response"
	}
	return string(action)
}

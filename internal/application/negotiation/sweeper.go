package negotiation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/haggle-hub/haggle-hub/internal/domain/item"
	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
)

// SweepReport summarises one sweep over an item.
type SweepReport struct {
	ItemID    uuid.UUID   `json:"itemId"`
	Expired   []uuid.UUID `json:"expired"`
	Failed    int         `json:"failed"`
	Remaining int         `json:"remainingLive"`
	Item      *item.Item  `json:"item,omitempty"`
}

// SweepExpired rejects every live offer of the item whose deadline has passed. Each offer is
// expired in its own transaction so one failure does not block the rest; a concurrent sweep
// over the same item finds nothing left to do.
func (s *Service) SweepExpired(ctx context.Context, itemID uuid.UUID) (*SweepReport, error) {
	now := s.now()
	report := &SweepReport{ItemID: itemID, Expired: []uuid.UUID{}}

	candidates, err := s.store.ListExpiredOffers(ctx, itemID, now)
	if err != nil {
		return nil, offer.AsDependencyFailure(err)
	}

	var expired []*offer.Offer
	for _, candidate := range candidates {
		var next *offer.Offer
		err := s.store.WithinTx(ctx, func(tx offer.Tx) error {
			cur, err := tx.GetOffer(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if cur == nil || !cur.IsExpired(now) {
				return nil
			}
			n, err := cur.Apply(offer.ActionExpire, offer.RoleSystem, offer.Params{Now: now})
			if err != nil {
				return err
			}
			ok, err := tx.UpdateOfferConditional(ctx, n, cur.Status, cur.Version)
			if err != nil {
				return err
			}
			if ok {
				next = n
			}
			return nil
		})
		if err != nil {
			report.Failed++
			s.logger.Warn().Err(err).
				Str("offerId", candidate.ID.String()).
				Str("itemId", itemID.String()).
				Msg("failed to expire offer")
			continue
		}
		if next != nil {
			expired = append(expired, next)
			report.Expired = append(report.Expired, next.ID)
		}
	}

	if len(expired) > 0 {
		err := s.store.WithinTx(ctx, func(tx offer.Tx) error {
			it, err := tx.GetItemForUpdate(ctx, itemID)
			if err != nil {
				return err
			}
			if it == nil {
				return fmt.Errorf("%w: item %s", offer.ErrNotFound, itemID)
			}
			report.Item, err = s.reconcileItem(ctx, tx, it, now)
			return err
		})
		if err != nil && !errors.Is(err, offer.ErrNotFound) {
			s.logger.Warn().Err(err).Str("itemId", itemID.String()).Msg("failed to re-derive item status after sweep")
		}
	}

	if report.Item == nil {
		it, err := s.store.GetItem(ctx, itemID)
		if err != nil {
			return nil, offer.AsDependencyFailure(err)
		}
		if it == nil {
			return nil, fmt.Errorf("%w: item %s", offer.ErrNotFound, itemID)
		}
		report.Item = it
	}
	for _, o := range expired {
		s.afterCommit(ctx, offer.SystemActor, offer.ActionExpire, offer.RoleSystem, o, report.Item, nil)
	}

	report.Remaining, err = s.store.CountLiveOffers(ctx, itemID, nil)
	if err != nil {
		return report, offer.AsDependencyFailure(err)
	}

	s.telemetry.RecordSweep(ctx, itemID, len(report.Expired), report.Failed)
	if len(report.Expired) > 0 || report.Failed > 0 {
		s.logger.Info().
			Str("itemId", itemID.String()).
			Int("expired", len(report.Expired)).
			Int("failed", report.Failed).
			Int("remaining", report.Remaining).
			Msg("expiry sweep finished")
	}
	return report, nil
}

package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/haggle-hub/haggle-hub/internal/domain/history"
	"github.com/haggle-hub/haggle-hub/internal/domain/item"
	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
	"github.com/haggle-hub/haggle-hub/internal/domain/policy"
	"github.com/haggle-hub/haggle-hub/internal/domain/transaction"
	"github.com/haggle-hub/haggle-hub/internal/infrastructure/telemetry"
)

// Service is the negotiation engine. Every action runs in one store transaction;
// history and notifications follow the commit and never change the result.
type Service struct {
	store     offer.Store
	notifier  notification.Notifier
	history   history.Logger
	amounts   *policy.AmountRule
	expiry    offer.ExpiryPolicy
	telemetry *telemetry.Telemetry
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAmountRule sets the amount admission rule.
func WithAmountRule(rule *policy.AmountRule) Option {
	return func(s *Service) { s.amounts = rule }
}

// WithExpiryPolicy sets the live offer TTL bounds.
func WithExpiryPolicy(p offer.ExpiryPolicy) Option {
	return func(s *Service) { s.expiry = p }
}

// WithTelemetry enables metrics and spans.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(s *Service) { s.telemetry = t }
}

// NewService creates a new negotiation service
func NewService(store offer.Store, notifier notification.Notifier, historyLogger history.Logger, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		history:  historyLogger,
		amounts:  policy.MustAmountRule(policy.DefaultAmountRule),
		expiry:   offer.DefaultExpiryPolicy(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("service", "negotiation").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOfferInput is a buyer's opening offer.
type CreateOfferInput struct {
	ItemID        uuid.UUID
	Amount        decimal.Decimal
	ExpiryMinutes *int
}

// Command is one actor action against an existing offer.
type Command struct {
	OfferID       uuid.UUID
	Action        offer.Action
	Actor         offer.Actor
	Amount        *decimal.Decimal
	ExpiryMinutes *int
}

// Result is the committed outcome of an action.
type Result struct {
	Offer    *offer.Offer
	Item     *item.Item
	Rejected []*offer.Offer
}

// CreateItem lists a new ACTIVE item for the actor.
func (s *Service) CreateItem(ctx context.Context, actor offer.Actor, title string, askingPrice decimal.Decimal) (*item.Item, error) {
	if actor.IsSystem() {
		return nil, offer.ErrUnauthorized
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", offer.ErrInvalidInput)
	}
	if err := offer.ValidateAmount(askingPrice); err != nil {
		return nil, fmt.Errorf("asking price: %w", err)
	}
	it := item.New(actor.ID, title, askingPrice, s.now())
	if err := s.store.CreateItem(ctx, it); err != nil {
		return nil, offer.AsDependencyFailure(err)
	}
	s.logger.Info().Str("itemId", it.ID.String()).Str("sellerId", actor.ID.String()).Msg("item listed")
	return it, nil
}

// CreateOffer opens a PENDING offer for the actor as buyer.
func (s *Service) CreateOffer(ctx context.Context, actor offer.Actor, in CreateOfferInput) (o *offer.Offer, err error) {
	ctx, done := s.telemetry.StartTransition(ctx, offer.ActionCreate, uuid.Nil)
	defer func() { done(err) }()

	if actor.IsSystem() {
		return nil, offer.ErrUnauthorized
	}
	now := s.now()
	expiresAt, err := s.expiry.Deadline(now, in.ExpiryMinutes)
	if err != nil {
		return nil, err
	}

	// An expired offer of the same buyer must not block a fresh one.
	s.sweepQuietly(ctx, in.ItemID)

	var it *item.Item
	err = s.store.WithinTx(ctx, func(tx offer.Tx) error {
		var err error
		it, err = tx.GetItemForUpdate(ctx, in.ItemID)
		if err != nil {
			return err
		}
		if it == nil {
			return fmt.Errorf("%w: item %s", offer.ErrNotFound, in.ItemID)
		}
		if it.SellerID == actor.ID {
			return fmt.Errorf("%w: sellers cannot offer on their own item", offer.ErrUnauthorized)
		}
		if !it.IsAvailable() {
			return offer.ErrItemUnavailable
		}
		if err := s.admit(in.Amount, it, offer.RoleBuyer); err != nil {
			return err
		}

		existing, err := tx.FindActiveOfferByBuyer(ctx, it.ID, actor.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return offer.ErrDuplicateActiveOffer
		}

		o = offer.New(it.ID, actor.ID, in.Amount, expiresAt, now)
		if err := tx.CreateOffer(ctx, o); err != nil {
			return err
		}
		it, err = s.reconcileItem(ctx, tx, it, now)
		return err
	})
	if err != nil {
		return nil, offer.AsDependencyFailure(err)
	}

	s.logger.Info().
		Str("offerId", o.ID.String()).
		Str("itemId", it.ID.String()).
		Str("buyerId", actor.ID.String()).
		Str("amount", o.OfferAmount.String()).
		Msg("offer created")

	s.afterCommit(ctx, actor, offer.ActionCreate, offer.RoleBuyer, o, it, nil)
	return o, nil
}

// Counter proposes a new amount. Sellers counter PENDING offers, buyers answer counters.
func (s *Service) Counter(ctx context.Context, actor offer.Actor, offerID uuid.UUID, amount decimal.Decimal, expiryMinutes *int) (*offer.Offer, error) {
	res, err := s.Apply(ctx, Command{OfferID: offerID, Action: offer.ActionCounter, Actor: actor, Amount: &amount, ExpiryMinutes: expiryMinutes})
	if err != nil {
		return nil, err
	}
	return res.Offer, nil
}

// Accept locks in the current amount and reserves the item.
func (s *Service) Accept(ctx context.Context, actor offer.Actor, offerID uuid.UUID) (*offer.Offer, error) {
	return s.applySimple(ctx, actor, offerID, offer.ActionAccept)
}

// Reject closes a live offer on the receiving side.
func (s *Service) Reject(ctx context.Context, actor offer.Actor, offerID uuid.UUID) (*offer.Offer, error) {
	return s.applySimple(ctx, actor, offerID, offer.ActionReject)
}

// Cancel withdraws a live offer on the proposing side.
func (s *Service) Cancel(ctx context.Context, actor offer.Actor, offerID uuid.UUID) (*offer.Offer, error) {
	return s.applySimple(ctx, actor, offerID, offer.ActionCancel)
}

// ConfirmReceipt completes an accepted offer and records the transaction.
func (s *Service) ConfirmReceipt(ctx context.Context, actor offer.Actor, offerID uuid.UUID) (*offer.Offer, error) {
	return s.applySimple(ctx, actor, offerID, offer.ActionConfirmReceipt)
}

func (s *Service) applySimple(ctx context.Context, actor offer.Actor, offerID uuid.UUID, action offer.Action) (*offer.Offer, error) {
	res, err := s.Apply(ctx, Command{OfferID: offerID, Action: action, Actor: actor})
	if err != nil {
		return nil, err
	}
	return res.Offer, nil
}

// Apply performs one actor action on an existing offer.
func (s *Service) Apply(ctx context.Context, cmd Command) (res *Result, err error) {
	ctx, done := s.telemetry.StartTransition(ctx, cmd.Action, cmd.OfferID)
	defer func() { done(err) }()

	switch cmd.Action {
	case offer.ActionCounter, offer.ActionAccept, offer.ActionReject, offer.ActionCancel, offer.ActionConfirmReceipt:
	default:
		return nil, fmt.Errorf("%w: unsupported action %q", offer.ErrInvalidInput, cmd.Action)
	}

	now := s.now()

	var (
		before   *offer.Offer
		next     *offer.Offer
		it       *item.Item
		role     offer.Role
		rejected []*offer.Offer
	)
	err = s.store.WithinTx(ctx, func(tx offer.Tx) error {
		var err error
		before, err = tx.GetOffer(ctx, cmd.OfferID)
		if err != nil {
			return err
		}
		if before == nil {
			return fmt.Errorf("%w: offer %s", offer.ErrNotFound, cmd.OfferID)
		}
		it, err = tx.GetItemForUpdate(ctx, before.ItemID)
		if err != nil {
			return err
		}
		if it == nil {
			return fmt.Errorf("%w: item %s", offer.ErrNotFound, before.ItemID)
		}

		role = offer.ResolveRole(cmd.Actor, it.SellerID, before.BuyerID)
		if _, err := offer.Next(before.Status, cmd.Action, role); err != nil {
			if cmd.Action == offer.ActionAccept && errors.Is(err, offer.ErrInvalidTransition) && lostToAccept(before, it) {
				return offer.ErrConflictAlreadyResolved
			}
			return err
		}

		params := offer.Params{Amount: cmd.Amount, Now: now}
		if cmd.Action == offer.ActionCounter {
			expiresAt, err := s.expiry.Deadline(now, cmd.ExpiryMinutes)
			if err != nil {
				return err
			}
			params.ExpiresAt = &expiresAt
		}
		next, err = before.Apply(cmd.Action, role, params)
		if err != nil {
			return err
		}
		if cmd.Action == offer.ActionCounter {
			if err := s.admit(*cmd.Amount, it, role); err != nil {
				return err
			}
		}
		if cmd.Action == offer.ActionAccept && !it.IsAvailable() {
			return offer.ErrConflictAlreadyResolved
		}

		ok, err := tx.UpdateOfferConditional(ctx, next, before.Status, before.Version)
		if err != nil {
			return err
		}
		if !ok {
			return offer.ErrConflictAlreadyResolved
		}

		switch cmd.Action {
		case offer.ActionAccept:
			rejected, err = tx.BulkRejectOtherOffers(ctx, it.ID, next.ID, offer.LiveStatuses, now)
			if err != nil {
				return err
			}
		case offer.ActionConfirmReceipt:
			err = tx.CreateTransaction(ctx, &transaction.Transaction{
				ID:         uuid.New(),
				OfferID:    next.ID,
				ItemID:     it.ID,
				BuyerID:    next.BuyerID,
				SellerID:   it.SellerID,
				FinalPrice: next.FinalPrice(),
				CreatedAt:  now,
			})
			if err != nil {
				return err
			}
		}

		it, err = s.reconcileItem(ctx, tx, it, now)
		return err
	})
	if err != nil {
		return nil, offer.AsDependencyFailure(err)
	}

	s.logger.Info().
		Str("offerId", next.ID.String()).
		Str("itemId", it.ID.String()).
		Str("action", string(cmd.Action)).
		Str("role", string(role)).
		Str("from", string(before.Status)).
		Str("to", string(next.Status)).
		Str("itemStatus", string(it.Status)).
		Int("autoRejected", len(rejected)).
		Msg("offer transition committed")

	s.afterCommit(ctx, cmd.Actor, cmd.Action, role, next, it, rejected)
	return &Result{Offer: next, Item: it, Rejected: rejected}, nil
}

// reconcileItem re-derives the item status from its offers and writes it if it changed.
// Must run inside the transaction that changed the offers.
func (s *Service) reconcileItem(ctx context.Context, tx offer.Tx, it *item.Item, now time.Time) (*item.Item, error) {
	counts, err := tx.CountOffersByStatus(ctx, it.ID)
	if err != nil {
		return nil, err
	}
	target := offer.DeriveItemStatus(it.Status, counts)
	if target == it.Status {
		return it, nil
	}
	ok, err := tx.UpdateItemStatus(ctx, it.ID, target, now, it.Status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, offer.ErrConflictAlreadyResolved
	}
	updated := *it
	updated.Status = target
	updated.UpdatedAt = now
	return &updated, nil
}

// lostToAccept reports whether an accept on another call already decided o: either o itself
// was accepted, or it was rejected while the item went to a winner.
func lostToAccept(o *offer.Offer, it *item.Item) bool {
	if o.Status.IsAccepted() {
		return true
	}
	return o.Status == offer.StatusRejected && !it.IsAvailable()
}

func (s *Service) admit(amount decimal.Decimal, it *item.Item, role offer.Role) error {
	if err := offer.ValidateAmount(amount); err != nil {
		return err
	}
	ok, err := s.amounts.Admit(policy.AmountInput{Amount: amount, AskingPrice: it.AskingPrice, Role: string(role)})
	if err != nil {
		return fmt.Errorf("evaluate amount rule: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: amount %s is not acceptable", offer.ErrInvalidInput, amount.String())
	}
	return nil
}

// GetOffer returns an offer after resolving any expired offers of its item.
func (s *Service) GetOffer(ctx context.Context, offerID uuid.UUID) (*offer.Offer, error) {
	o, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, offer.AsDependencyFailure(err)
	}
	if o == nil {
		return nil, fmt.Errorf("%w: offer %s", offer.ErrNotFound, offerID)
	}
	if !o.IsExpired(s.now()) {
		return o, nil
	}
	s.sweepQuietly(ctx, o.ItemID)
	o, err = s.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, offer.AsDependencyFailure(err)
	}
	return o, nil
}

// ItemView returns an item and its offers after sweeping expired ones.
func (s *Service) ItemView(ctx context.Context, itemID uuid.UUID) (*item.Item, []*offer.Offer, error) {
	s.sweepQuietly(ctx, itemID)

	it, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, offer.AsDependencyFailure(err)
	}
	if it == nil {
		return nil, nil, fmt.Errorf("%w: item %s", offer.ErrNotFound, itemID)
	}
	offers, err := s.store.ListOffersByItem(ctx, itemID)
	if err != nil {
		return nil, nil, offer.AsDependencyFailure(err)
	}
	if offers == nil {
		offers = []*offer.Offer{}
	}
	return it, offers, nil
}

// GetTransaction returns the transaction recorded for a completed offer.
func (s *Service) GetTransaction(ctx context.Context, offerID uuid.UUID) (*transaction.Transaction, error) {
	t, err := s.store.GetTransactionByOffer(ctx, offerID)
	if err != nil {
		return nil, offer.AsDependencyFailure(err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: no transaction for offer %s", offer.ErrNotFound, offerID)
	}
	return t, nil
}

func (s *Service) sweepQuietly(ctx context.Context, itemID uuid.UUID) {
	if _, err := s.SweepExpired(ctx, itemID); err != nil && !errors.Is(err, offer.ErrNotFound) {
		s.logger.Warn().Err(err).Str("itemId", itemID.String()).Msg("expiry sweep failed")
	}
}

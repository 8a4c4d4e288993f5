package negotiation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	historyapp "github.com/haggle-hub/haggle-hub/internal/application/history"
	notificationapp "github.com/haggle-hub/haggle-hub/internal/application/notification"
	"github.com/haggle-hub/haggle-hub/internal/domain/history"
	historymocks "github.com/haggle-hub/haggle-hub/internal/domain/history/mocks"
	"github.com/haggle-hub/haggle-hub/internal/domain/item"
	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
	notificationmocks "github.com/haggle-hub/haggle-hub/internal/domain/notification/mocks"
	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
	"github.com/haggle-hub/haggle-hub/internal/domain/policy"
	"github.com/haggle-hub/haggle-hub/internal/infrastructure/sqlite"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc    *Service
	store  *sqlite.Store
	clock  *testClock
	seller offer.Actor
	item   *item.Item
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "negotiation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// newFixture wires the engine to a real store with real history and notification services.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := newStore(t)
	clock := &testClock{now: testStart}
	logger := zerolog.Nop()

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	svc := NewService(store,
		notificationapp.NewService(store, nil, logger),
		historyapp.NewService(store, logger),
		logger, opts...)

	f := &fixture{svc: svc, store: store, clock: clock, seller: offer.Actor{ID: uuid.New()}}
	var err error
	f.item, err = svc.CreateItem(context.Background(), f.seller, "Vintage camera", decimal.NewFromInt(100))
	require.NoError(t, err)
	return f
}

func newBuyer() offer.Actor { return offer.Actor{ID: uuid.New()} }

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func minutes(n int) *int { return &n }

func (f *fixture) offer(t *testing.T, buyer offer.Actor, amt int64) *offer.Offer {
	t.Helper()
	o, err := f.svc.CreateOffer(context.Background(), buyer, CreateOfferInput{ItemID: f.item.ID, Amount: amount(amt)})
	require.NoError(t, err)
	return o
}

func (f *fixture) itemStatus(t *testing.T) item.Status {
	t.Helper()
	it, err := f.store.GetItem(context.Background(), f.item.ID)
	require.NoError(t, err)
	require.NotNil(t, it)
	return it.Status
}

func (f *fixture) historyActions(t *testing.T, offerID uuid.UUID) []history.Action {
	t.Helper()
	entries, err := f.store.ListHistory(context.Background(), offerID)
	require.NoError(t, err)
	actions := make([]history.Action, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestCreateOffer_PendingKeepsItemActive(t *testing.T) {
	f := newFixture(t)
	buyer := newBuyer()

	o, err := f.svc.CreateOffer(context.Background(), buyer, CreateOfferInput{
		ItemID:        f.item.ID,
		Amount:        amount(80),
		ExpiryMinutes: minutes(60),
	})
	require.NoError(t, err)

	assert.Equal(t, offer.StatusPending, o.Status)
	assert.Equal(t, buyer.ID, o.BuyerID)
	require.NotNil(t, o.ExpiresAt)
	assert.True(t, testStart.Add(time.Hour).Equal(*o.ExpiresAt))
	assert.Equal(t, item.StatusActive, f.itemStatus(t))
	assert.Equal(t, []history.Action{history.ActionCreated}, f.historyActions(t, o.ID))

	msgs, err := f.store.ListMessages(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, notification.EventOfferCreated, msgs[0].Event)
	assert.Equal(t, notification.OfferChannel(o.ID), msgs[0].ChannelKey)
}

func TestCreateOffer_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := newBuyer()
	f.offer(t, buyer, 80)

	t.Run("duplicate live offer", func(t *testing.T) {
		_, err := f.svc.CreateOffer(ctx, buyer, CreateOfferInput{ItemID: f.item.ID, Amount: amount(85)})
		assert.ErrorIs(t, err, offer.ErrDuplicateActiveOffer)
	})

	t.Run("seller on own item", func(t *testing.T) {
		_, err := f.svc.CreateOffer(ctx, f.seller, CreateOfferInput{ItemID: f.item.ID, Amount: amount(85)})
		assert.ErrorIs(t, err, offer.ErrUnauthorized)
	})

	t.Run("system actor", func(t *testing.T) {
		_, err := f.svc.CreateOffer(ctx, offer.SystemActor, CreateOfferInput{ItemID: f.item.ID, Amount: amount(85)})
		assert.ErrorIs(t, err, offer.ErrUnauthorized)
	})

	t.Run("missing item", func(t *testing.T) {
		_, err := f.svc.CreateOffer(ctx, newBuyer(), CreateOfferInput{ItemID: uuid.New(), Amount: amount(85)})
		assert.ErrorIs(t, err, offer.ErrNotFound)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := f.svc.CreateOffer(ctx, newBuyer(), CreateOfferInput{ItemID: f.item.ID, Amount: amount(0)})
		assert.ErrorIs(t, err, offer.ErrInvalidInput)
	})

	t.Run("expiry out of bounds", func(t *testing.T) {
		_, err := f.svc.CreateOffer(ctx, newBuyer(), CreateOfferInput{ItemID: f.item.ID, Amount: amount(85), ExpiryMinutes: minutes(25 * 60)})
		assert.ErrorIs(t, err, offer.ErrInvalidInput)
	})
}

func TestCreateOffer_AmountRule(t *testing.T) {
	rule, err := policy.NewAmountRule("amount >= asking_price * 0.5")
	require.NoError(t, err)
	f := newFixture(t, WithAmountRule(rule))

	_, err = f.svc.CreateOffer(context.Background(), newBuyer(), CreateOfferInput{ItemID: f.item.ID, Amount: amount(40)})
	assert.ErrorIs(t, err, offer.ErrInvalidInput)

	o := f.offer(t, newBuyer(), 50)
	assert.Equal(t, offer.StatusPending, o.Status)
}

func TestAmountPrecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, raw := range []string{"80.005", "0.001", "1000000000000"} {
		_, err := f.svc.CreateOffer(ctx, newBuyer(), CreateOfferInput{ItemID: f.item.ID, Amount: decimal.RequireFromString(raw)})
		assert.ErrorIs(t, err, offer.ErrInvalidInput, raw)
	}
	all, err := f.store.ListOffersByItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Empty(t, all)

	o := f.offer(t, newBuyer(), 80)
	_, err = f.svc.Counter(ctx, f.seller, o.ID, decimal.RequireFromString("90.125"), nil)
	assert.ErrorIs(t, err, offer.ErrInvalidInput)
	got, err := f.store.GetOffer(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusPending, got.Status)

	countered, err := f.svc.Counter(ctx, f.seller, o.ID, decimal.RequireFromString("90.12"), nil)
	require.NoError(t, err)
	assert.Equal(t, "90.12", countered.CounterOfferAmount.String())

	_, err = f.svc.CreateItem(ctx, f.seller, "Lamp", decimal.RequireFromString("10.001"))
	assert.ErrorIs(t, err, offer.ErrInvalidInput)
}

func TestNegotiation_AcceptAndComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	winner := newBuyer()
	other := newBuyer()

	won := f.offer(t, winner, 80)
	lost := f.offer(t, other, 70)

	res, err := f.svc.Apply(ctx, Command{OfferID: won.ID, Action: offer.ActionAccept, Actor: f.seller})
	require.NoError(t, err)
	assert.Equal(t, offer.StatusAwaitingCompletion, res.Offer.Status)
	assert.Equal(t, item.StatusReserved, res.Item.Status)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, lost.ID, res.Rejected[0].ID)
	require.NotNil(t, res.Offer.AgreedAmount)
	assert.True(t, res.Offer.AgreedAmount.Equal(amount(80)))

	closed, err := f.store.GetOffer(ctx, lost.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusRejected, closed.Status)
	assert.Equal(t, []history.Action{history.ActionCreated, history.ActionRejected}, f.historyActions(t, lost.ID))

	msgs, err := f.store.ListMessages(ctx, lost.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, notification.EventOfferRejected, msgs[1].Event)

	// The other buyer cannot open a new offer on a reserved item.
	_, err = f.svc.CreateOffer(ctx, other, CreateOfferInput{ItemID: f.item.ID, Amount: amount(90)})
	assert.ErrorIs(t, err, offer.ErrItemUnavailable)
	assert.ErrorIs(t, err, offer.ErrInvalidTransition)

	_, err = f.svc.ConfirmReceipt(ctx, f.seller, won.ID)
	assert.ErrorIs(t, err, offer.ErrUnauthorized)

	done, err := f.svc.ConfirmReceipt(ctx, winner, won.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusCompleted, done.Status)
	assert.Equal(t, item.StatusSold, f.itemStatus(t))

	tx, err := f.svc.GetTransaction(ctx, won.ID)
	require.NoError(t, err)
	assert.True(t, tx.FinalPrice.Equal(amount(80)))
	assert.Equal(t, winner.ID, tx.BuyerID)
	assert.Equal(t, f.seller.ID, tx.SellerID)

	assert.Equal(t,
		[]history.Action{history.ActionCreated, history.ActionAccepted, history.ActionCompleted},
		f.historyActions(t, won.ID))
}

func TestNegotiation_CounterRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := newBuyer()
	o := f.offer(t, buyer, 400)

	countered, err := f.svc.Counter(ctx, f.seller, o.ID, amount(500), nil)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusCounterOfferPending, countered.Status)
	require.NotNil(t, countered.CounterOfferAmount)
	assert.True(t, countered.CounterOfferAmount.Equal(amount(500)))

	_, err = f.svc.Accept(ctx, f.seller, o.ID)
	assert.ErrorIs(t, err, offer.ErrUnauthorized)

	answered, err := f.svc.Counter(ctx, buyer, o.ID, amount(450), minutes(30))
	require.NoError(t, err)
	assert.Equal(t, offer.StatusPending, answered.Status)
	assert.Nil(t, answered.CounterOfferAmount)
	assert.True(t, answered.OfferAmount.Equal(amount(450)))
	assert.True(t, testStart.Add(30*time.Minute).Equal(*answered.ExpiresAt))

	_, err = f.svc.Accept(ctx, f.seller, o.ID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmReceipt(ctx, buyer, o.ID)
	require.NoError(t, err)

	tx, err := f.svc.GetTransaction(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, tx.FinalPrice.Equal(amount(450)))
}

func TestNegotiation_BuyerAcceptsCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := newBuyer()
	o := f.offer(t, buyer, 400)

	_, err := f.svc.Counter(ctx, f.seller, o.ID, amount(450), nil)
	require.NoError(t, err)

	accepted, err := f.svc.Accept(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusAwaitingCompletion, accepted.Status)
	assert.Nil(t, accepted.CounterOfferAmount)

	_, err = f.svc.ConfirmReceipt(ctx, buyer, o.ID)
	require.NoError(t, err)

	tx, err := f.svc.GetTransaction(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, tx.FinalPrice.Equal(amount(450)))
}

func TestNegotiation_ActiveReversibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := newBuyer()
	second := newBuyer()

	a := f.offer(t, first, 80)
	b := f.offer(t, second, 75)

	_, err := f.svc.Reject(ctx, f.seller, a.ID)
	require.NoError(t, err)
	assert.Equal(t, item.StatusActive, f.itemStatus(t))

	_, err = f.svc.Cancel(ctx, second, b.ID)
	require.NoError(t, err)
	assert.Equal(t, item.StatusActive, f.itemStatus(t))

	// A closed offer frees the buyer to try again.
	again := f.offer(t, first, 85)
	assert.Equal(t, offer.StatusPending, again.Status)
}

func TestApply_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := newBuyer()
	o := f.offer(t, buyer, 80)

	rejected := f.offer(t, newBuyer(), 70)
	_, err := f.svc.Reject(ctx, f.seller, rejected.ID)
	require.NoError(t, err)
	cancelledBuyer := newBuyer()
	cancelled := f.offer(t, cancelledBuyer, 60)
	_, err = f.svc.Cancel(ctx, cancelledBuyer, cancelled.ID)
	require.NoError(t, err)

	counter := amount(90)
	tooLong := minutes(100000)

	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"stranger accepts", Command{OfferID: o.ID, Action: offer.ActionAccept, Actor: newBuyer()}, offer.ErrUnauthorized},
		{"buyer accepts own offer", Command{OfferID: o.ID, Action: offer.ActionAccept, Actor: buyer}, offer.ErrUnauthorized},
		{"seller cancels", Command{OfferID: o.ID, Action: offer.ActionCancel, Actor: f.seller}, offer.ErrUnauthorized},
		{"confirm pending", Command{OfferID: o.ID, Action: offer.ActionConfirmReceipt, Actor: buyer}, offer.ErrInvalidTransition},
		{"counter without amount", Command{OfferID: o.ID, Action: offer.ActionCounter, Actor: f.seller}, offer.ErrInvalidInput},
		{"expire is internal", Command{OfferID: o.ID, Action: offer.ActionExpire, Actor: f.seller}, offer.ErrInvalidInput},
		{"missing offer", Command{OfferID: uuid.New(), Action: offer.ActionAccept, Actor: f.seller}, offer.ErrNotFound},
		{"accept rejected", Command{OfferID: rejected.ID, Action: offer.ActionAccept, Actor: f.seller}, offer.ErrInvalidTransition},
		{"accept cancelled", Command{OfferID: cancelled.ID, Action: offer.ActionAccept, Actor: f.seller}, offer.ErrInvalidTransition},
		{"stranger counters with bad expiry", Command{OfferID: o.ID, Action: offer.ActionCounter, Actor: newBuyer(), Amount: &counter, ExpiryMinutes: tooLong}, offer.ErrUnauthorized},
		{"missing offer counter with bad expiry", Command{OfferID: uuid.New(), Action: offer.ActionCounter, Actor: f.seller, Amount: &counter, ExpiryMinutes: tooLong}, offer.ErrNotFound},
		{"seller counters with bad expiry", Command{OfferID: o.ID, Action: offer.ActionCounter, Actor: f.seller, Amount: &counter, ExpiryMinutes: tooLong}, offer.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Apply(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
			if tt.want == offer.ErrInvalidTransition {
				assert.NotErrorIs(t, err, offer.ErrConflictAlreadyResolved)
			}
		})
	}

	got, err := f.store.GetOffer(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusPending, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestApply_SecondAcceptConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.offer(t, newBuyer(), 80)

	_, err := f.svc.Accept(ctx, f.seller, o.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, f.seller, o.ID)
	assert.ErrorIs(t, err, offer.ErrConflictAlreadyResolved)
	assert.Equal(t, item.StatusReserved, f.itemStatus(t))
	assert.Equal(t, []history.Action{history.ActionCreated, history.ActionAccepted}, f.historyActions(t, o.ID))
}

func TestApply_AcceptAfterOtherOfferWon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	winner := f.offer(t, newBuyer(), 80)
	loser := f.offer(t, newBuyer(), 75)

	_, err := f.svc.Accept(ctx, f.seller, winner.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, f.seller, loser.ID)
	assert.ErrorIs(t, err, offer.ErrConflictAlreadyResolved)
	assert.Equal(t, item.StatusReserved, f.itemStatus(t))
}

func TestApply_ConcurrentAcceptHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 6
	offers := make([]*offer.Offer, n)
	for i := range offers {
		offers[i] = f.offer(t, newBuyer(), int64(50+i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []uuid.UUID
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for _, o := range offers {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := f.svc.Accept(ctx, f.seller, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, id)
			case errors.Is(err, offer.ErrConflictAlreadyResolved):
				conflicts++
			default:
				others = append(others, err)
			}
		}(o.ID)
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	require.Len(t, winners, 1)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, item.StatusReserved, f.itemStatus(t))

	all, err := f.store.ListOffersByItem(ctx, f.item.ID)
	require.NoError(t, err)
	awaiting := 0
	for _, o := range all {
		switch o.Status {
		case offer.StatusAwaitingCompletion:
			awaiting++
			assert.Equal(t, winners[0], o.ID)
		default:
			assert.Equal(t, offer.StatusRejected, o.Status)
		}
	}
	assert.Equal(t, 1, awaiting)
}

func TestApply_ExpiredOfferRefusesActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.svc.CreateOffer(ctx, newBuyer(), CreateOfferInput{ItemID: f.item.ID, Amount: amount(80), ExpiryMinutes: minutes(1)})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	_, err = f.svc.Accept(ctx, f.seller, o.ID)
	assert.ErrorIs(t, err, offer.ErrOfferExpired)
	assert.ErrorIs(t, err, offer.ErrInvalidTransition)

	got, err := f.store.GetOffer(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusPending, got.Status)
	assert.Equal(t, item.StatusActive, f.itemStatus(t))
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.svc.CreateOffer(ctx, newBuyer(), CreateOfferInput{ItemID: f.item.ID, Amount: amount(80), ExpiryMinutes: minutes(1)})
	require.NoError(t, err)
	fresh, err := f.svc.CreateOffer(ctx, newBuyer(), CreateOfferInput{ItemID: f.item.ID, Amount: amount(75), ExpiryMinutes: minutes(60)})
	require.NoError(t, err)

	f.clock.Advance(61 * time.Second)

	report, err := f.svc.SweepExpired(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{o.ID}, report.Expired)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.Remaining)
	assert.Equal(t, item.StatusActive, report.Item.Status)

	got, err := f.store.GetOffer(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusRejected, got.Status)
	assert.Nil(t, got.CounterOfferAmount)

	entries, err := f.store.ListHistory(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, history.ActionExpired, entries[1].Action)
	assert.Equal(t, uuid.Nil, entries[1].ActorID)

	// Sweeping again changes nothing.
	again, err := f.svc.SweepExpired(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Expired)
	assert.Equal(t, []history.Action{history.ActionCreated, history.ActionExpired}, f.historyActions(t, o.ID))

	live, err := f.store.GetOffer(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusPending, live.Status)
}

func TestSweepExpired_MissingItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SweepExpired(context.Background(), uuid.New())
	assert.ErrorIs(t, err, offer.ErrNotFound)
}

func TestReads_SweepFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := newBuyer()
	o, err := f.svc.CreateOffer(ctx, buyer, CreateOfferInput{ItemID: f.item.ID, Amount: amount(80), ExpiryMinutes: minutes(1)})
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)

	got, err := f.svc.GetOffer(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusRejected, got.Status)

	it, offers, err := f.svc.ItemView(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.StatusActive, it.Status)
	require.Len(t, offers, 1)
	assert.Equal(t, offer.StatusRejected, offers[0].Status)

	// The expired offer no longer blocks the buyer.
	next := f.offer(t, buyer, 90)
	assert.Equal(t, offer.StatusPending, next.Status)

	_, err = f.svc.GetOffer(ctx, uuid.New())
	assert.ErrorIs(t, err, offer.ErrNotFound)
	_, _, err = f.svc.ItemView(ctx, uuid.New())
	assert.ErrorIs(t, err, offer.ErrNotFound)
	_, err = f.svc.GetTransaction(ctx, o.ID)
	assert.ErrorIs(t, err, offer.ErrNotFound)
}

func TestCreateItem_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateItem(ctx, f.seller, "  ", amount(10))
	assert.ErrorIs(t, err, offer.ErrInvalidInput)
	_, err = f.svc.CreateItem(ctx, f.seller, "Lamp", amount(-1))
	assert.ErrorIs(t, err, offer.ErrInvalidInput)
	_, err = f.svc.CreateItem(ctx, offer.SystemActor, "Lamp", amount(10))
	assert.ErrorIs(t, err, offer.ErrUnauthorized)
}

func TestSideEffectFailuresDoNotChangeResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := notificationmocks.NewMockNotifier(ctrl)
	logger := historymocks.NewMockLogger(ctrl)

	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).AnyTimes()
	logger.EXPECT().LogHistory(gomock.Any(), gomock.Any()).Return(errors.New("disk full")).AnyTimes()

	store := newStore(t)
	clock := &testClock{now: testStart}
	svc := NewService(store, notifier, logger, zerolog.Nop(), WithClock(clock.Now))
	ctx := context.Background()

	seller := offer.Actor{ID: uuid.New()}
	it, err := svc.CreateItem(ctx, seller, "Desk", amount(200))
	require.NoError(t, err)

	o, err := svc.CreateOffer(ctx, newBuyer(), CreateOfferInput{ItemID: it.ID, Amount: amount(150)})
	require.NoError(t, err)

	accepted, err := svc.Accept(ctx, seller, o.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.StatusAwaitingCompletion, accepted.Status)
}

func TestSideEffects_NoticeContents(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := notificationmocks.NewMockNotifier(ctrl)
	logger := historymocks.NewMockLogger(ctrl)

	store := newStore(t)
	svc := NewService(store, notifier, logger, zerolog.Nop(), WithClock(func() time.Time { return testStart }))
	ctx := context.Background()

	seller := offer.Actor{ID: uuid.New()}
	buyer := newBuyer()
	it, err := svc.CreateItem(ctx, seller, "Desk", amount(200))
	require.NoError(t, err)

	var notice notification.Notice
	logger.EXPECT().LogHistory(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *history.Entry) error {
			assert.Equal(t, history.ActionCreated, e.Action)
			assert.Equal(t, buyer.ID, e.ActorID)
			require.NotNil(t, e.Amount)
			assert.True(t, e.Amount.Equal(amount(150)))
			return nil
		})
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, n notification.Notice) error {
			notice = n
			return nil
		})

	o, err := svc.CreateOffer(ctx, buyer, CreateOfferInput{ItemID: it.ID, Amount: amount(150)})
	require.NoError(t, err)

	assert.Equal(t, o.ID, notice.OfferID)
	assert.Equal(t, notification.EventOfferCreated, notice.Event)
	assert.Equal(t, string(offer.StatusPending), notice.Status)
	assert.ElementsMatch(t, []uuid.UUID{buyer.ID, seller.ID}, notice.RecipientIDs)
	assert.Equal(t, "Buyer offered 150", notice.Message)
}

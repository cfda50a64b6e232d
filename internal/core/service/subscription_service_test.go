package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comings/prepaid-api/internal/adapter/storage/memory"
	"github.com/comings/prepaid-api/internal/core/domain"
)

type subscriptionFixture struct {
	svc     *SubscriptionService
	store   *memory.Store
	billing *fakeBilling
	events  *recordingPublisher
	clock   time.Time
}

func newSubscriptionFixture(t *testing.T) *subscriptionFixture {
	t.Helper()
	f := &subscriptionFixture{
		store:   memory.New(),
		billing: &fakeBilling{},
		events:  &recordingPublisher{},
		clock:   fixedNow,
	}
	now := func() time.Time { return f.clock }
	f.store.SetClock(now)
	f.svc = NewSubscriptionService(f.store, f.store, f.store, f.billing, f.events,
		SubscriptionConfig{MonthlyPrice: 9900, TrialDays: 14, GraceDays: 7}, discardLogger())
	f.svc.now = now
	return f
}

func (f *subscriptionFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *subscriptionFixture) seed(t *testing.T, sub domain.Subscription) {
	t.Helper()
	sub.MonthlyAmount = 9900
	sub.CreatedAt = f.clock
	require.NoError(t, f.store.CreateSubscription(context.Background(), sub))
}

func timePtr(t time.Time) *time.Time { return &t }

func TestSubscriptionService_TrialLifecycle(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Current(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionTrial, sub.Status)
	assert.Equal(t, fixedNow.AddDate(0, 0, 14), *sub.TrialEndsAt)
	assert.Equal(t, int64(9900), sub.MonthlyAmount)

	again, err := f.svc.GetOrCreate(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)

	require.NoError(t, f.svc.RequireActive(ctx, "shop-1"))

	f.advance(15 * 24 * time.Hour)
	err = f.svc.RequireActive(ctx, "shop-1")
	assert.ErrorIs(t, err, ErrSubscriptionSuspended)

	stored, err := f.store.GetSubscription(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionSuspended, stored.Status)
	assert.Equal(t, []domain.EventType{domain.EventSuspended}, f.events.types())
}

func TestSubscriptionService_ExpiredTrialWithCardWaitsForSweep(t *testing.T) {
	f := newSubscriptionFixture(t)
	f.seed(t, domain.Subscription{
		ID: "sub-1", ShopID: "shop-1", Status: domain.SubscriptionTrial,
		TrialEndsAt: timePtr(fixedNow.Add(-time.Hour)), BillingKey: "bk",
	})

	sub, err := f.svc.Current(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionTrial, sub.Status)
}

func TestSubscriptionService_RegisterBillingKey(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	f.billing.issue = domain.BillingKeyResult{ErrorCode: "INVALID_CARD", ErrorMessage: "카드 정보가 올바르지 않습니다"}
	_, err := f.svc.RegisterBillingKey(ctx, "shop-1", "auth-key", "shop-1")
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "INVALID_CARD", upstream.Code)
	assert.Equal(t, "카드 정보가 올바르지 않습니다", upstream.Message)

	f.billing.issue = domain.BillingKeyResult{Success: true, BillingKey: "bk-1", CardCompany: "신한", CardNumber: "4330****1234"}
	sub, err := f.svc.RegisterBillingKey(ctx, "shop-1", "auth-key", "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "bk-1", sub.BillingKey)
	assert.Equal(t, "신한", sub.CardCompany)

	removed, err := f.svc.RemoveBillingKey(ctx, "shop-1")
	require.NoError(t, err)
	assert.False(t, removed.HasBillingKey())

	_, err = f.svc.RemoveBillingKey(ctx, "shop-unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubscriptionService_Subscribe(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetOrCreate(ctx, "shop-1")
	require.NoError(t, err)
	_, err = f.svc.Subscribe(ctx, "shop-1")
	assert.ErrorIs(t, err, ErrBillingKeyRequired)

	f.billing.issue = domain.BillingKeyResult{Success: true, BillingKey: "bk-1"}
	_, err = f.svc.RegisterBillingKey(ctx, "shop-1", "auth-key", "shop-1")
	require.NoError(t, err)

	f.billing.charge = domain.ChargeResult{ErrorCode: "REJECT_CARD_PAYMENT", ErrorMessage: "한도초과"}
	_, err = f.svc.Subscribe(ctx, "shop-1")
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "REJECT_CARD_PAYMENT", upstream.Code)

	f.advance(time.Minute)
	f.billing.charge = domain.ChargeResult{Success: true, PaymentKey: "pk-1"}
	sub, err := f.svc.Subscribe(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, f.clock.Add(domain.BillingPeriod), *sub.CurrentPeriodEnd)

	payments, total, err := f.svc.Payments(ctx, "shop-1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, domain.PaymentSuccess, payments[0].Status)
	assert.Equal(t, "pk-1", payments[0].PaymentKey)
	assert.Equal(t, domain.PaymentFailed, payments[1].Status)

	types := f.events.types()
	require.Len(t, types, 1)
	assert.Equal(t, domain.EventActivated, types[0])
	assert.Equal(t, "2025년 04월 09일", f.events.events[0].Attrs["next_payment_date"])
}

func TestSubscriptionService_CancelAndReactivate(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetOrCreate(ctx, "shop-1")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, "shop-1", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Reactivate(ctx, "shop-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	f.seed(t, domain.Subscription{
		ID: "sub-2", ShopID: "shop-2", Status: domain.SubscriptionActive,
		CurrentPeriodEnd: timePtr(fixedNow.AddDate(0, 0, 10)),
	})
	cancelled, err := f.svc.Cancel(ctx, "shop-2", "비용 부담")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCancelled, cancelled.Status)
	assert.Equal(t, "비용 부담", cancelled.CancelReason)

	// still usable until the paid period ends
	require.NoError(t, f.svc.RequireActive(ctx, "shop-2"))

	reactivated, err := f.svc.Reactivate(ctx, "shop-2")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, reactivated.Status)
	assert.Empty(t, reactivated.CancelReason)
}

func TestSubscriptionService_Sweep(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()
	f.billing.charge = domain.ChargeResult{Success: true}

	f.seed(t, domain.Subscription{
		ID: "sub-a", ShopID: "shop-a", Status: domain.SubscriptionTrial,
		TrialEndsAt: timePtr(fixedNow.Add(2*24*time.Hour + time.Hour)),
	})
	f.seed(t, domain.Subscription{
		ID: "sub-b", ShopID: "shop-b", Status: domain.SubscriptionTrial,
		TrialEndsAt: timePtr(fixedNow.Add(-time.Hour)),
	})
	f.seed(t, domain.Subscription{
		ID: "sub-c", ShopID: "shop-c", Status: domain.SubscriptionActive, BillingKey: "bk-c",
		CurrentPeriodEnd: timePtr(fixedNow.Add(-time.Minute)),
	})
	f.seed(t, domain.Subscription{
		ID: "sub-d", ShopID: "shop-d", Status: domain.SubscriptionGrace,
		GraceEndsAt: timePtr(fixedNow.Add(-time.Minute)),
	})

	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 4, Renewed: 1, Suspended: 2, Reminded: 1}, report)
	assert.Equal(t, 1, f.billing.charges)

	reminder := f.events.events[0]
	assert.Equal(t, domain.EventTrialExpiring, reminder.Type)
	assert.Equal(t, "2", reminder.Attrs["days_remaining"])

	report, err = f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 2}, report)
}

func TestSubscriptionService_SweepStartsGrace(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()
	f.billing.charge = domain.ChargeResult{ErrorCode: "REJECT_CARD_PAYMENT"}

	f.seed(t, domain.Subscription{
		ID: "sub-1", ShopID: "shop-1", Status: domain.SubscriptionActive, BillingKey: "bk",
		CurrentPeriodEnd: timePtr(fixedNow.Add(-time.Minute)),
	})
	f.seed(t, domain.Subscription{
		ID: "sub-2", ShopID: "shop-2", Status: domain.SubscriptionActive,
		CurrentPeriodEnd: timePtr(fixedNow.Add(-time.Minute)),
	})

	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)

	sub, err := f.store.GetSubscription(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionGrace, sub.Status)
	assert.Equal(t, fixedNow.AddDate(0, 0, 7), *sub.GraceEndsAt)
	assert.Equal(t, []domain.EventType{domain.EventPaymentFailed, domain.EventPaymentFailed}, f.events.types())
	assert.Equal(t, "7", f.events.events[0].Attrs["grace_days"])
}

func TestSubscriptionService_HandleWebhook(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreatePayment(ctx, domain.Payment{
		ID: "pay-1", ShopID: "shop-1", OrderID: "SUB_shop-1_1", Status: domain.PaymentPending, CreatedAt: fixedNow,
	}))

	require.NoError(t, f.svc.HandleWebhook(ctx, "PAYMENT_STATUS_CHANGED", "SUB_shop-1_1", "DONE"))
	payment, err := f.store.GetPaymentByOrderID(ctx, "SUB_shop-1_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, payment.Status)
	require.NotNil(t, payment.PaidAt)

	require.NoError(t, f.svc.HandleWebhook(ctx, "PAYMENT_STATUS_CHANGED", "SUB_shop-1_1", "CANCELED"))
	payment, err = f.store.GetPaymentByOrderID(ctx, "SUB_shop-1_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCancelled, payment.Status)

	assert.NoError(t, f.svc.HandleWebhook(ctx, "PAYMENT_STATUS_CHANGED", "missing", "DONE"))
	assert.NoError(t, f.svc.HandleWebhook(ctx, "DEPOSIT_CALLBACK", "SUB_shop-1_1", "ABORTED"))

	payment, err = f.store.GetPaymentByOrderID(ctx, "SUB_shop-1_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCancelled, payment.Status)
}

func TestSubscriptionService_UpdatePhone(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateShop(ctx, domain.Shop{ID: "shop-1", Name: "카페"}))

	assert.ErrorIs(t, f.svc.UpdatePhone(ctx, "shop-1", "123"), domain.ErrInvalidInput)
	require.NoError(t, f.svc.UpdatePhone(ctx, "shop-1", "010-1234-5678"))

	shop, err := f.store.GetShop(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "01012345678", shop.Phone)
}

package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comings/prepaid-api/internal/core/domain"
)

func TestNotificationHandler(t *testing.T) {
	store := newMemoryStore()
	notifier := &fakeNotifier{}
	handler := NewNotificationHandler(store, notifier, discardLogger())
	ctx := context.Background()

	require.NoError(t, store.CreateShop(ctx, domain.Shop{ID: "shop-1", Name: "커밍스", Phone: "01012345678"}))
	require.NoError(t, store.CreateShop(ctx, domain.Shop{ID: "shop-2", Name: "무전화"}))

	require.NoError(t, handler.Handle(ctx, domain.Event{
		Type:   domain.EventActivated,
		ShopID: "shop-1",
		Amount: 9900,
		Attrs:  map[string]string{"next_payment_date": "2025년 04월 09일"},
	}))
	require.NoError(t, handler.Handle(ctx, domain.Event{
		Type:   domain.EventTrialExpiring,
		ShopID: "shop-1",
		Attrs:  map[string]string{"days_remaining": "3"},
	}))
	require.NoError(t, handler.Handle(ctx, domain.Event{Type: domain.EventPaymentFailed, ShopID: "shop-1"}))

	// skipped: no phone, unknown shop, ledger event
	require.NoError(t, handler.Handle(ctx, domain.Event{Type: domain.EventSuspended, ShopID: "shop-2"}))
	require.NoError(t, handler.Handle(ctx, domain.Event{Type: domain.EventSuspended, ShopID: "missing"}))
	require.NoError(t, handler.Handle(ctx, domain.Event{Type: domain.EventCharged, ShopID: "shop-1"}))

	require.Len(t, notifier.sent, 3)
	assert.Equal(t, []string{"01012345678", "01012345678", "01012345678"}, notifier.to)

	assert.True(t, strings.HasPrefix(notifier.sent[0], "[카페 선결제 관리]\n커밍스님, 구독 결제가 완료되었습니다."))
	assert.Contains(t, notifier.sent[0], "결제 금액: 9,900원")
	assert.Contains(t, notifier.sent[0], "다음 결제일: 2025년 04월 09일")
	assert.Contains(t, notifier.sent[1], "무료 체험 기간이 3일 남았습니다.")
	assert.Contains(t, notifier.sent[2], "7일 이내에 결제 수단을 확인해 주세요.")
}

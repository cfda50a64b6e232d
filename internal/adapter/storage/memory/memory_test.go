package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comings/prepaid-api/internal/core/domain"
)

func seedCustomer(t *testing.T, s *Store, id string, balance int64) {
	t.Helper()
	require.NoError(t, s.CreateCustomer(context.Background(), domain.Customer{
		ID:             id,
		ShopID:         "shop-1",
		Name:           "고객" + id,
		PhoneSuffix:    "1234",
		CurrentBalance: balance,
	}))
}

func TestApplyEntry_ConcurrentDeductsNeverOverdraw(t *testing.T) {
	s := New()
	seedCustomer(t, s, "c1", 10000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ApplyEntry(context.Background(), domain.Transaction{
				ID:         fmt.Sprintf("tx-%d", i),
				ShopID:     "shop-1",
				CustomerID: "c1",
				Type:       domain.TransactionDeduct,
				Amount:     1000,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	c, err := s.GetCustomer(context.Background(), "shop-1", "c1")
	require.NoError(t, err)
	assert.Zero(t, c.CurrentBalance)
}

func TestCancelEntry_MarksOriginal(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedCustomer(t, s, "c1", 0)

	_, err := s.ApplyEntry(ctx, domain.Transaction{ID: "t1", ShopID: "shop-1", CustomerID: "c1", Type: domain.TransactionCharge, Amount: 5000})
	require.NoError(t, err)

	cancel, err := s.CancelEntry(ctx, "t1", domain.Transaction{ID: "x1", ShopID: "shop-1", Type: domain.TransactionCancel})
	require.NoError(t, err)
	assert.Zero(t, cancel.BalanceAfter)
	assert.Equal(t, int64(5000), cancel.Amount)

	original, err := s.GetTransaction(ctx, "shop-1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "x1", original.CancelledByID)

	_, err = s.CancelEntry(ctx, "t1", domain.Transaction{ID: "x2", ShopID: "shop-1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	_, err = s.CancelEntry(ctx, "x1", domain.Transaction{ID: "x3", ShopID: "shop-1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	_, err = s.CancelEntry(ctx, "t1", domain.Transaction{ID: "x4", ShopID: "shop-2"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPinToken_ExpiresAndSingleUse(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.StorePinToken(ctx, "shop-1", "tok", time.Minute))
	ok, _ := s.ConsumePinToken(ctx, "shop-2", "tok")
	assert.False(t, ok)
	ok, _ = s.ConsumePinToken(ctx, "shop-1", "tok")
	assert.True(t, ok)
	ok, _ = s.ConsumePinToken(ctx, "shop-1", "tok")
	assert.False(t, ok)

	require.NoError(t, s.StorePinToken(ctx, "shop-1", "late", time.Minute))
	now = now.Add(2 * time.Minute)
	ok, _ = s.ConsumePinToken(ctx, "shop-1", "late")
	assert.False(t, ok)
}

func TestRecordPinFailure(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateShop(ctx, domain.Shop{ID: "shop-1", Name: "카페"}))
	lock := time.Now().Add(time.Minute)

	for i := 1; i < 5; i++ {
		count, locked, err := s.RecordPinFailure(ctx, "shop-1", 5, lock)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.Nil(t, locked)
	}
	count, locked, err := s.RecordPinFailure(ctx, "shop-1", 5, lock)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	require.NotNil(t, locked)

	require.NoError(t, s.ResetPinFailures(ctx, "shop-1"))
	shop, _ := s.GetShop(ctx, "shop-1")
	assert.Zero(t, shop.PinFailedCount)
	assert.Nil(t, shop.PinLockedUntil)
}

func TestListCustomers_Paging(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		seedCustomer(t, s, fmt.Sprintf("c%02d", i), int64(i*100))
	}

	page, total, err := s.ListCustomers(ctx, domain.CustomerQuery{
		ShopID: "shop-1", SortBy: domain.SortByBalance, Desc: true, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, page, 10)
	assert.Equal(t, int64(2400), page[0].CurrentBalance)

	page, _, _ = s.ListCustomers(ctx, domain.CustomerQuery{ShopID: "shop-1", Page: 3, PageSize: 10})
	assert.Len(t, page, 5)
}

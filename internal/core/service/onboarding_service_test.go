package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comings/prepaid-api/internal/adapter/storage/memory"
	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/port"
)

func newOnboardingFixture(t *testing.T, registry port.BusinessRegistry) (*OnboardingService, *memory.Store) {
	t.Helper()
	store := newMemoryStore()
	customers := NewCustomerService(store, discardLogger())
	svc := NewOnboardingService(store, store, store, customers, registry, discardLogger())

	ctx := context.Background()
	require.NoError(t, store.CreateShop(ctx, domain.Shop{ID: "shop-1", Username: "cafe01", Name: "첫 카페"}))
	require.NoError(t, store.CreateShop(ctx, domain.Shop{ID: "shop-2", Username: "latte", Name: "둘째 카페"}))
	return svc, store
}

func TestOnboardingService_VerifyBusinessNumber(t *testing.T) {
	cases := []struct {
		name     string
		registry port.BusinessRegistry
		input    string
		valid    bool
		message  string
		status   string
	}{
		{"too short", nil, "12345", false, "사업자등록번호는 10자리 숫자여야 합니다", ""},
		{"bad checksum", nil, "123-45-67890", false, "사업자등록번호 형식이 올바르지 않습니다", ""},
		{"offline", nil, "124-81-00998", true, "사업자등록번호 형식이 유효합니다 (API 미연동)", "형식 검증 완료"},
		{"active", fakeRegistry{code: "01"}, "1248100998", true, "유효한 사업자등록번호입니다", "계속사업자"},
		{"suspended", fakeRegistry{code: "02"}, "1248100998", false, "휴업 상태인 사업자입니다", "휴업자"},
		{"closed", fakeRegistry{code: "03"}, "1248100998", false, "폐업한 사업자입니다", "폐업자"},
		{"unregistered", fakeRegistry{code: ""}, "1248100998", false, "국세청에 등록되지 않은 사업자등록번호입니다", ""},
		{"lookup error", fakeRegistry{err: errors.New("boom")}, "1248100998", false, "사업자등록번호 조회 중 오류가 발생했습니다", ""},
		{"timeout", fakeRegistry{err: fmt.Errorf("status: %w", context.DeadlineExceeded)}, "1248100998", false, "사업자등록번호 조회 중 시간이 초과되었습니다", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newOnboardingFixture(t, tc.registry)
			result := svc.VerifyBusinessNumber(context.Background(), tc.input)
			assert.Equal(t, tc.valid, result.IsValid)
			assert.Equal(t, tc.message, result.Message)
			assert.Equal(t, tc.status, result.Status)
		})
	}
}

func TestOnboardingService_SaveShopInfo(t *testing.T) {
	svc, store := newOnboardingFixture(t, nil)
	ctx := context.Background()

	formatted, err := svc.SaveShopInfo(ctx, "shop-1", "커밍스", "1248100998")
	require.NoError(t, err)
	assert.Equal(t, "124-81-00998", formatted)

	shop, err := store.GetShop(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "커밍스", shop.Name)

	// saving again for the same shop is not a duplicate
	_, err = svc.SaveShopInfo(ctx, "shop-1", "커밍스", "124-81-00998")
	require.NoError(t, err)

	dup, err := svc.CheckBusinessNumber(ctx, "shop-2", "124-81-00998")
	require.NoError(t, err)
	assert.True(t, dup.IsDuplicate)
	assert.Equal(t, "ca****", dup.ExistingUsername)
	assert.Equal(t, "커밍스", dup.ExistingShopName)

	_, err = svc.SaveShopInfo(ctx, "shop-2", "라떼", "1248100998")
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = svc.SaveShopInfo(ctx, "shop-2", "라떼", "12-34")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOnboardingService_Flow(t *testing.T) {
	svc, store := newOnboardingFixture(t, nil)
	ctx := context.Background()

	n, err := svc.SaveMenus(ctx, "shop-1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.SaveMenus(ctx, "shop-1", []MenuItem{{Name: "아메리카노", Price: 4500}, {Name: "카페라떼", Price: 5000}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.SaveMenus(ctx, "shop-1", []MenuItem{{Name: "에스프레소", Price: 4000}, {Name: "바닐라라떼", Price: 5500}, {Name: "녹차", Price: 5000}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	menus, err := store.ListMenus(ctx, "shop-1", true)
	require.NoError(t, err)
	require.Len(t, menus, 3)
	assert.Equal(t, "에스프레소", menus[0].Name)
	assert.Equal(t, 2, menus[2].DisplayOrder)

	_, err = svc.SaveMenus(ctx, "shop-1", []MenuItem{{Name: "x", Price: -1}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	result, err := svc.ImportCustomers(ctx, "shop-1", []domain.ImportRow{{Name: "홍길동", Phone: "01012341234", Balance: 50000}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	status, err := svc.Status(ctx, "shop-1")
	require.NoError(t, err)
	assert.False(t, status.Completed)
	assert.Equal(t, 3, status.MenuCount)
	assert.Equal(t, 1, status.CustomerCount)

	require.NoError(t, svc.Complete(ctx, "shop-1"))
	status, err = svc.Status(ctx, "shop-1")
	require.NoError(t, err)
	assert.True(t, status.Completed)

	_, err = svc.Status(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

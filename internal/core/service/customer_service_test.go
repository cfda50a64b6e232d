package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comings/prepaid-api/internal/core/domain"
)

func strPtr(s string) *string { return &s }

func TestCustomerService_Create(t *testing.T) {
	store := newMemoryStore()
	svc := NewCustomerService(store, discardLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, "shop-1", CustomerInput{Name: "홍길동", Phone: "010-1234-5678"})
	require.NoError(t, err)
	assert.Equal(t, "01012345678", created.Phone)
	assert.Equal(t, "5678", created.PhoneSuffix)

	_, err = svc.Create(ctx, "shop-1", CustomerInput{Name: "홍길동", PhoneSuffix: "5678"})
	assert.ErrorIs(t, err, ErrRejected)

	// same name and suffix is fine in another shop
	_, err = svc.Create(ctx, "shop-2", CustomerInput{Name: "홍길동", PhoneSuffix: "5678"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "shop-1", CustomerInput{Name: "김철수", Phone: "0101234"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Create(ctx, "shop-1", CustomerInput{Name: "김철수", PhoneSuffix: "12"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCustomerService_GetAndUpdate(t *testing.T) {
	store := newMemoryStore()
	svc := NewCustomerService(store, discardLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, "shop-1", CustomerInput{Name: "홍길동", PhoneSuffix: "1111"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "shop-1", CustomerInput{Name: "김철수", PhoneSuffix: "2222"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "shop-1", created.ID, CustomerUpdate{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	updated, err := svc.Update(ctx, "shop-1", created.ID, CustomerUpdate{Name: strPtr("홍길순"), Phone: strPtr("01099998888")})
	require.NoError(t, err)
	assert.Equal(t, "홍길순", updated.Name)
	assert.Equal(t, "8888", updated.PhoneSuffix)

	_, err = svc.Update(ctx, "shop-1", created.ID, CustomerUpdate{Name: strPtr("김철수"), PhoneSuffix: strPtr("2222")})
	assert.ErrorIs(t, err, ErrRejected)

	detail, err := svc.Get(ctx, "shop-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "홍길순", detail.Name)
	assert.Zero(t, detail.Stats.TransactionCount)

	_, err = svc.Get(ctx, "shop-2", created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCustomerService_List(t *testing.T) {
	store := newMemoryStore()
	svc := NewCustomerService(store, discardLogger())
	ctx := context.Background()

	for _, name := range []string{"다현", "가은", "나래"} {
		_, err := svc.Create(ctx, "shop-1", CustomerInput{Name: name, PhoneSuffix: "1234"})
		require.NoError(t, err)
	}

	list, total, err := svc.List(ctx, domain.CustomerQuery{ShopID: "shop-1", PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "가은", list[0].Name)
	assert.Equal(t, "나래", list[1].Name)

	list, total, err = svc.List(ctx, domain.CustomerQuery{ShopID: "shop-1", Search: "다"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "다현", list[0].Name)
}

func TestCustomerService_DeleteRequiresZeroBalance(t *testing.T) {
	store := newMemoryStore()
	svc := NewCustomerService(store, discardLogger())
	ledger := NewLedgerService(store, store, store, nil, discardLogger())
	ctx := context.Background()

	seedCustomer(t, store, "shop-1", "cust-1", "홍길동")
	_, err := ledger.Charge(ctx, ChargeInput{ShopID: "shop-1", CustomerID: "cust-1", ActualPayment: 5000, PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "shop-1", "cust-1"), domain.ErrBalanceRemaining)

	_, err = ledger.Deduct(ctx, DeductInput{ShopID: "shop-1", CustomerID: "cust-1", Amount: 5000})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "shop-1", "cust-1"))

	assert.ErrorIs(t, svc.Delete(ctx, "shop-1", "cust-1"), domain.ErrNotFound)
}

func TestCustomerService_Import(t *testing.T) {
	store := newMemoryStore()
	svc := NewCustomerService(store, discardLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, "shop-1", CustomerInput{Name: "홍길동", Phone: "01012341234"})
	require.NoError(t, err)

	result, err := svc.Import(ctx, "shop-1", []domain.ImportRow{
		{Name: "홍길동", Phone: "010-1234-1234", Balance: 100},
		{Name: "김철수", Phone: "01056785678", Balance: 30000},
		{Name: "김철수", Phone: "010 5678 5678"},
		{Name: "이영희", Phone: "01090129012"},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, result.Errors)
	require.Len(t, result.SkippedDetails, 2)
	assert.Equal(t, "기존 고객과 중복", result.SkippedDetails[0].Reason)
	assert.Equal(t, "파일 내 중복", result.SkippedDetails[1].Reason)

	all, err := svc.Export(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "김철수", all[0].Name)
	assert.Equal(t, int64(30000), all[0].CurrentBalance)

	balance, err := store.TotalBalance(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), balance)

	empty, err := svc.Import(ctx, "shop-1", nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

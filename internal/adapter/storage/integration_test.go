package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/core/service"
)

type integrationEnv struct {
	db    *MySQLAdapter
	cache *RedisAdapter
}

func setupIntegration(t *testing.T) *integrationEnv {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}
	dsn, err := NormalizeDSN(dsn)
	require.NoError(t, err)
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(db.DB))

	rdb := getRedisClient(t)
	t.Cleanup(func() { rdb.Close() })

	return &integrationEnv{db: NewMySQLAdapter(db), cache: NewRedisAdapter(rdb)}
}

func (e *integrationEnv) seedShop(t *testing.T) (shopID, customerID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	shop := domain.Shop{
		ID:        uuid.NewString(),
		Username:  "it" + uuid.NewString()[:8],
		Name:      "통합 테스트 카페",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.db.CreateShop(ctx, shop))

	customer := domain.Customer{
		ID:          uuid.NewString(),
		ShopID:      shop.ID,
		Name:        "김철수",
		PhoneSuffix: "5678",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.db.CreateCustomer(ctx, customer))
	return shop.ID, customer.ID
}

func TestIntegration_ConcurrentDeductsNeverOverdraw(t *testing.T) {
	env := setupIntegration(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := service.NewLedgerService(env.db, env.db, env.cache, nil, logger)

	ctx := context.Background()
	shopID, customerID := env.seedShop(t)

	_, err := ledger.Charge(ctx, service.ChargeInput{
		ShopID:        shopID,
		CustomerID:    customerID,
		ActualPayment: 10000,
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)

	var successCount, rejectCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Deduct(ctx, service.DeductInput{ShopID: shopID, CustomerID: customerID, Amount: 1000})
			var insufficient *domain.InsufficientBalanceError
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.As(err, &insufficient):
				rejectCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), successCount.Load())
	assert.Equal(t, int32(10), rejectCount.Load())

	customer, err := env.db.GetCustomer(ctx, shopID, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), customer.CurrentBalance)
}

func TestIntegration_CancelRestoresBalance(t *testing.T) {
	env := setupIntegration(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := service.NewLedgerService(env.db, env.db, env.cache, nil, logger)

	ctx := context.Background()
	shopID, customerID := env.seedShop(t)

	charge, err := ledger.Charge(ctx, service.ChargeInput{
		ShopID:        shopID,
		CustomerID:    customerID,
		ActualPayment: 5000,
		ServiceAmount: 500,
		PaymentMethod: domain.PaymentCard,
	})
	require.NoError(t, err)
	deduct, err := ledger.Deduct(ctx, service.DeductInput{ShopID: shopID, CustomerID: customerID, Amount: 2000})
	require.NoError(t, err)

	cancel, err := ledger.Cancel(ctx, shopID, deduct.ID, "잘못 입력")
	require.NoError(t, err)
	assert.Equal(t, int64(5500), cancel.BalanceAfter)

	_, err = ledger.Cancel(ctx, shopID, deduct.ID, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	cancel, err = ledger.Cancel(ctx, shopID, charge.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cancel.BalanceAfter)
}

func TestIntegration_IdempotencyKeyBlocksReplay(t *testing.T) {
	env := setupIntegration(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := service.NewLedgerService(env.db, env.db, env.cache, nil, logger)

	ctx := context.Background()
	shopID, customerID := env.seedShop(t)

	in := service.ChargeInput{
		ShopID:         shopID,
		CustomerID:     customerID,
		ActualPayment:  3000,
		PaymentMethod:  domain.PaymentTransfer,
		IdempotencyKey: uuid.NewString(),
	}
	_, err := ledger.Charge(ctx, in)
	require.NoError(t, err)

	_, err = ledger.Charge(ctx, in)
	assert.ErrorIs(t, err, service.ErrDuplicateRequest)

	customer, err := env.db.GetCustomer(ctx, shopID, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), customer.CurrentBalance)
}

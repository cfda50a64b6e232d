package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comings/prepaid-api/internal/core/domain"
)

func newMockAdapter(t *testing.T) (*MySQLAdapter, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	adapter := NewMySQLAdapter(sqlx.NewDb(db, "mysql"))
	adapter.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return adapter, mock
}

var transactionRowColumns = []string{
	"id", "shop_id", "customer_id", "type", "amount", "actual_payment", "service_amount",
	"payment_method", "note", "balance_after", "original_id", "cancelled_by_id", "created_at",
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := NormalizeDSN("app:secret@tcp(db:3306)/comings?charset=utf8mb4")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)
	assert.Equal(t, "comings", cfg.DBName)
	assert.Equal(t, "db:3306", cfg.Addr)

	dsn, err = NormalizeDSN("app:secret@tcp(db:3306)/comings?parseTime=false")
	require.NoError(t, err)
	cfg, err = mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)

	_, err = NormalizeDSN("not a dsn")
	assert.Error(t, err)
}

func TestApplyEntry_Charge(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE customers").
		WithArgs(int64(10000), sqlmock.AnyArg(), "cust-1", "shop-1", int64(10000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT current_balance FROM customers").
		WithArgs("cust-1", "shop-1").
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}).AddRow(int64(15000)))
	mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry, err := adapter.ApplyEntry(context.Background(), domain.Transaction{
		ID:            "tx-1",
		ShopID:        "shop-1",
		CustomerID:    "cust-1",
		Type:          domain.TransactionCharge,
		Amount:        10000,
		ActualPayment: 9000,
		ServiceAmount: 1000,
		PaymentMethod: domain.PaymentCard,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), entry.BalanceAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEntry_InsufficientBalance(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE customers").
		WithArgs(int64(-5000), sqlmock.AnyArg(), "cust-1", "shop-1", int64(-5000)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT current_balance FROM customers").
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}).AddRow(int64(3000)))
	mock.ExpectRollback()

	_, err := adapter.ApplyEntry(context.Background(), domain.Transaction{
		ID:         "tx-2",
		ShopID:     "shop-1",
		CustomerID: "cust-1",
		Type:       domain.TransactionDeduct,
		Amount:     5000,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	var ibe *domain.InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	assert.Equal(t, int64(3000), ibe.Current)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEntry_CustomerNotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE customers").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT current_balance FROM customers").
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}))
	mock.ExpectRollback()

	_, err := adapter.ApplyEntry(context.Background(), domain.Transaction{
		ID:         "tx-3",
		ShopID:     "shop-1",
		CustomerID: "missing",
		Type:       domain.TransactionDeduct,
		Amount:     100,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelEntry_ReversesDeduct(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	created := time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions t")).
		WithArgs("tx-1", "shop-1").
		WillReturnRows(sqlmock.NewRows(transactionRowColumns).AddRow(
			"tx-1", "shop-1", "cust-1", "DEDUCT", int64(4000), nil, nil,
			nil, "아메리카노", int64(6000), nil, nil, created,
		))
	mock.ExpectExec("UPDATE customers").
		WithArgs(int64(4000), sqlmock.AnyArg(), "cust-1", "shop-1", int64(4000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT current_balance FROM customers").
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}).AddRow(int64(10000)))
	mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE transactions SET cancelled_by_id").
		WithArgs("cancel-1", "tx-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cancel, err := adapter.CancelEntry(context.Background(), "tx-1", domain.Transaction{
		ID:     "cancel-1",
		ShopID: "shop-1",
		Type:   domain.TransactionCancel,
		Note:   "거래 취소: tx-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", cancel.CustomerID)
	assert.Equal(t, int64(4000), cancel.Amount)
	assert.Equal(t, "tx-1", cancel.OriginalID)
	assert.Equal(t, int64(10000), cancel.BalanceAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelEntry_AlreadyCancelled(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions t")).
		WillReturnRows(sqlmock.NewRows(transactionRowColumns).AddRow(
			"tx-1", "shop-1", "cust-1", "CHARGE", int64(4000), int64(4000), int64(0),
			"CASH", nil, int64(4000), nil, "cancel-0", time.Now(),
		))
	mock.ExpectRollback()

	_, err := adapter.CancelEntry(context.Background(), "tx-1", domain.Transaction{ID: "cancel-1", ShopID: "shop-1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCustomer_BalanceRemaining(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec("DELETE FROM customers").
		WithArgs("cust-1", "shop-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT current_balance FROM customers").
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}).AddRow(int64(500)))

	err := adapter.DeleteCustomer(context.Background(), "shop-1", "cust-1")
	assert.ErrorIs(t, err, domain.ErrBalanceRemaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCustomer_Success(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec("DELETE FROM customers").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.DeleteCustomer(context.Background(), "shop-1", "cust-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPinFailure_LocksAtLimit(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	lockUntil := time.Date(2025, 3, 1, 0, 1, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE shops").
		WithArgs(5, lockUntil, sqlmock.AnyArg(), "shop-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT pin_failed_count, pin_locked_until FROM shops").
		WillReturnRows(sqlmock.NewRows([]string{"pin_failed_count", "pin_locked_until"}).AddRow(5, lockUntil))
	mock.ExpectCommit()

	count, locked, err := adapter.RecordPinFailure(context.Background(), "shop-1", 5, lockUntil)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	require.NotNil(t, locked)
	assert.True(t, locked.Equal(lockUntil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateShop_Duplicate(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec("INSERT INTO shops").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := adapter.CreateShop(context.Background(), domain.Shop{ID: "shop-1", Username: "cafe01", Name: "카페"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestGetCustomer_NotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("FROM customers").
		WithArgs("cust-1", "shop-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := adapter.GetCustomer(context.Background(), "shop-1", "cust-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCustomers_SearchAndSort(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM customers WHERE shop_id = ? AND (name LIKE ?")).
		WithArgs("shop-1", "%김%", "%김%", "%김%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY current_balance DESC, id LIMIT ? OFFSET ?")).
		WithArgs("shop-1", "%김%", "%김%", "%김%", 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "shop_id", "name", "phone", "phone_suffix", "current_balance", "created_at", "updated_at",
		}).AddRow("cust-1", "shop-1", "김철수", "01012345678", "5678", int64(3000), now, now))

	customers, total, err := adapter.ListCustomers(context.Background(), domain.CustomerQuery{
		ShopID:   "shop-1",
		Search:   "김",
		SortBy:   domain.SortByBalance,
		Desc:     true,
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, customers, 1)
	assert.Equal(t, "01012345678", customers[0].Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMenu_AppendsDisplayOrder(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(display_order), -1) + 1")).
		WithArgs("shop-1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec("INSERT INTO menus").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	menu, err := adapter.CreateMenu(context.Background(), domain.Menu{ID: "menu-1", ShopID: "shop-1", Name: "라떼", Price: 4500, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, 3, menu.DisplayOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSubscriptionsByStatus_ExpandsIn(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN (?, ?)")).
		WithArgs("TRIAL", "GRACE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "status", "monthly_amount", "created_at", "updated_at"}).
			AddRow("sub-1", "shop-1", "TRIAL", int64(9900), time.Now(), time.Now()))

	subs, err := adapter.ListSubscriptionsByStatus(context.Background(), domain.SubscriptionTrial, domain.SubscriptionGrace)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, domain.SubscriptionTrial, subs[0].Status)
	assert.Nil(t, subs[0].TrialEndsAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

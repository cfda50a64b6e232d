package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comings/prepaid-api/internal/core/domain"
)

const subscriptionColumns = `id, shop_id, status, trial_started_at, trial_ends_at, current_period_start,
	current_period_end, billing_key, card_company, card_number, monthly_amount, grace_period_ends_at,
	suspended_at, cancelled_at, cancel_reason, created_at, updated_at`

type subscriptionRow struct {
	ID                 string         `db:"id"`
	ShopID             string         `db:"shop_id"`
	Status             string         `db:"status"`
	TrialStartedAt     sql.NullTime   `db:"trial_started_at"`
	TrialEndsAt        sql.NullTime   `db:"trial_ends_at"`
	CurrentPeriodStart sql.NullTime   `db:"current_period_start"`
	CurrentPeriodEnd   sql.NullTime   `db:"current_period_end"`
	BillingKey         sql.NullString `db:"billing_key"`
	CardCompany        sql.NullString `db:"card_company"`
	CardNumber         sql.NullString `db:"card_number"`
	MonthlyAmount      int64          `db:"monthly_amount"`
	GraceEndsAt        sql.NullTime   `db:"grace_period_ends_at"`
	SuspendedAt        sql.NullTime   `db:"suspended_at"`
	CancelledAt        sql.NullTime   `db:"cancelled_at"`
	CancelReason       sql.NullString `db:"cancel_reason"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r subscriptionRow) toDomain() domain.Subscription {
	return domain.Subscription{
		ID:                 r.ID,
		ShopID:             r.ShopID,
		Status:             domain.SubscriptionStatus(r.Status),
		TrialStartedAt:     timePtr(r.TrialStartedAt),
		TrialEndsAt:        timePtr(r.TrialEndsAt),
		CurrentPeriodStart: timePtr(r.CurrentPeriodStart),
		CurrentPeriodEnd:   timePtr(r.CurrentPeriodEnd),
		BillingKey:         r.BillingKey.String,
		CardCompany:        r.CardCompany.String,
		CardNumber:         r.CardNumber.String,
		MonthlyAmount:      r.MonthlyAmount,
		GraceEndsAt:        timePtr(r.GraceEndsAt),
		SuspendedAt:        timePtr(r.SuspendedAt),
		CancelledAt:        timePtr(r.CancelledAt),
		CancelReason:       r.CancelReason.String,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func newSubscriptionRow(s domain.Subscription) subscriptionRow {
	return subscriptionRow{
		ID:                 s.ID,
		ShopID:             s.ShopID,
		Status:             string(s.Status),
		TrialStartedAt:     nullTime(s.TrialStartedAt),
		TrialEndsAt:        nullTime(s.TrialEndsAt),
		CurrentPeriodStart: nullTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   nullTime(s.CurrentPeriodEnd),
		BillingKey:         nullString(s.BillingKey),
		CardCompany:        nullString(s.CardCompany),
		CardNumber:         nullString(s.CardNumber),
		MonthlyAmount:      s.MonthlyAmount,
		GraceEndsAt:        nullTime(s.GraceEndsAt),
		SuspendedAt:        nullTime(s.SuspendedAt),
		CancelledAt:        nullTime(s.CancelledAt),
		CancelReason:       nullString(s.CancelReason),
		CreatedAt:          s.CreatedAt.UTC(),
		UpdatedAt:          s.UpdatedAt.UTC(),
	}
}

func (m *MySQLAdapter) GetSubscription(ctx context.Context, shopID string) (*domain.Subscription, error) {
	var row subscriptionRow
	if err := m.db.GetContext(ctx, &row, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE shop_id = ?`, shopID); err != nil {
		return nil, notFound(err)
	}
	sub := row.toDomain()
	return &sub, nil
}

func (m *MySQLAdapter) CreateSubscription(ctx context.Context, sub domain.Subscription) error {
	_, err := m.db.NamedExecContext(ctx, `
		INSERT INTO subscriptions (id, shop_id, status, trial_started_at, trial_ends_at, current_period_start,
			current_period_end, billing_key, card_company, card_number, monthly_amount, grace_period_ends_at,
			suspended_at, cancelled_at, cancel_reason, created_at, updated_at)
		VALUES (:id, :shop_id, :status, :trial_started_at, :trial_ends_at, :current_period_start,
			:current_period_end, :billing_key, :card_company, :card_number, :monthly_amount, :grace_period_ends_at,
			:suspended_at, :cancelled_at, :cancel_reason, :created_at, :updated_at)`,
		newSubscriptionRow(sub))
	if isDuplicate(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) SaveSubscription(ctx context.Context, sub domain.Subscription) error {
	res, err := m.db.NamedExecContext(ctx, `
		UPDATE subscriptions SET
			status = :status, trial_started_at = :trial_started_at, trial_ends_at = :trial_ends_at,
			current_period_start = :current_period_start, current_period_end = :current_period_end,
			billing_key = :billing_key, card_company = :card_company, card_number = :card_number,
			monthly_amount = :monthly_amount, grace_period_ends_at = :grace_period_ends_at,
			suspended_at = :suspended_at, cancelled_at = :cancelled_at, cancel_reason = :cancel_reason,
			updated_at = :updated_at
		WHERE id = :id`, newSubscriptionRow(sub))
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if affected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) ListSubscriptionsByStatus(ctx context.Context, statuses ...domain.SubscriptionStatus) ([]domain.Subscription, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	query, args, err := sqlx.In(`SELECT `+subscriptionColumns+` FROM subscriptions WHERE status IN (?)`, values)
	if err != nil {
		return nil, fmt.Errorf("expand subscription query: %w", err)
	}

	var rows []subscriptionRow
	if err := m.db.SelectContext(ctx, &rows, m.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	subs := make([]domain.Subscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toDomain())
	}
	return subs, nil
}

const paymentColumns = `id, subscription_id, shop_id, amount, payment_key, order_id, status, card_company,
	card_number, failure_code, failure_message, paid_at, created_at`

type paymentRow struct {
	ID             string         `db:"id"`
	SubscriptionID string         `db:"subscription_id"`
	ShopID         string         `db:"shop_id"`
	Amount         int64          `db:"amount"`
	PaymentKey     sql.NullString `db:"payment_key"`
	OrderID        string         `db:"order_id"`
	Status         string         `db:"status"`
	CardCompany    sql.NullString `db:"card_company"`
	CardNumber     sql.NullString `db:"card_number"`
	FailureCode    sql.NullString `db:"failure_code"`
	FailureMessage sql.NullString `db:"failure_message"`
	PaidAt         sql.NullTime   `db:"paid_at"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r paymentRow) toDomain() domain.Payment {
	return domain.Payment{
		ID:             r.ID,
		SubscriptionID: r.SubscriptionID,
		ShopID:         r.ShopID,
		Amount:         r.Amount,
		PaymentKey:     r.PaymentKey.String,
		OrderID:        r.OrderID,
		Status:         domain.PaymentStatus(r.Status),
		CardCompany:    r.CardCompany.String,
		CardNumber:     r.CardNumber.String,
		FailureCode:    r.FailureCode.String,
		FailureMessage: r.FailureMessage.String,
		PaidAt:         timePtr(r.PaidAt),
		CreatedAt:      r.CreatedAt,
	}
}

func newPaymentRow(p domain.Payment) paymentRow {
	return paymentRow{
		ID:             p.ID,
		SubscriptionID: p.SubscriptionID,
		ShopID:         p.ShopID,
		Amount:         p.Amount,
		PaymentKey:     nullString(p.PaymentKey),
		OrderID:        p.OrderID,
		Status:         string(p.Status),
		CardCompany:    nullString(p.CardCompany),
		CardNumber:     nullString(p.CardNumber),
		FailureCode:    nullString(p.FailureCode),
		FailureMessage: nullString(p.FailureMessage),
		PaidAt:         nullTime(p.PaidAt),
		CreatedAt:      p.CreatedAt.UTC(),
	}
}

func (m *MySQLAdapter) CreatePayment(ctx context.Context, payment domain.Payment) error {
	_, err := m.db.NamedExecContext(ctx, `
		INSERT INTO payment_history (id, subscription_id, shop_id, amount, payment_key, order_id, status,
			card_company, card_number, failure_code, failure_message, paid_at, created_at)
		VALUES (:id, :subscription_id, :shop_id, :amount, :payment_key, :order_id, :status,
			:card_company, :card_number, :failure_code, :failure_message, :paid_at, :created_at)`,
		newPaymentRow(payment))
	if isDuplicate(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) SavePayment(ctx context.Context, payment domain.Payment) error {
	res, err := m.db.NamedExecContext(ctx, `
		UPDATE payment_history SET
			payment_key = :payment_key, status = :status, card_company = :card_company,
			card_number = :card_number, failure_code = :failure_code,
			failure_message = :failure_message, paid_at = :paid_at
		WHERE id = :id`, newPaymentRow(payment))
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if affected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) GetPaymentByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	var row paymentRow
	if err := m.db.GetContext(ctx, &row, `SELECT `+paymentColumns+` FROM payment_history
		WHERE order_id = ?`, orderID); err != nil {
		return nil, notFound(err)
	}
	p := row.toDomain()
	return &p, nil
}

func (m *MySQLAdapter) ListPayments(ctx context.Context, shopID string, page, pageSize int) ([]domain.Payment, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	if err := m.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM payment_history WHERE shop_id = ?`,
		shopID); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	var rows []paymentRow
	if err := m.db.SelectContext(ctx, &rows, `SELECT `+paymentColumns+` FROM payment_history
		WHERE shop_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		shopID, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	payments := make([]domain.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.toDomain())
	}
	return payments, total, nil
}

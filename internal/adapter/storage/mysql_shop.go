package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comings/prepaid-api/internal/core/domain"
)

const shopColumns = `id, username, password_hash, email, name, phone, business_number, ci,
	pin_hash, pin_failed_count, pin_locked_until, onboarding_completed, created_at, updated_at`

type shopRow struct {
	ID                  string         `db:"id"`
	Username            sql.NullString `db:"username"`
	PasswordHash        string         `db:"password_hash"`
	Email               sql.NullString `db:"email"`
	Name                string         `db:"name"`
	Phone               sql.NullString `db:"phone"`
	BusinessNumber      sql.NullString `db:"business_number"`
	CI                  sql.NullString `db:"ci"`
	PinHash             string         `db:"pin_hash"`
	PinFailedCount      int            `db:"pin_failed_count"`
	PinLockedUntil      sql.NullTime   `db:"pin_locked_until"`
	OnboardingCompleted bool           `db:"onboarding_completed"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r shopRow) toDomain() *domain.Shop {
	return &domain.Shop{
		ID:                  r.ID,
		Username:            r.Username.String,
		PasswordHash:        r.PasswordHash,
		Email:               r.Email.String,
		Name:                r.Name,
		Phone:               r.Phone.String,
		BusinessNumber:      r.BusinessNumber.String,
		CI:                  r.CI.String,
		PinHash:             r.PinHash,
		PinFailedCount:      r.PinFailedCount,
		PinLockedUntil:      timePtr(r.PinLockedUntil),
		OnboardingCompleted: r.OnboardingCompleted,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func (m *MySQLAdapter) CreateShop(ctx context.Context, shop domain.Shop) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO shops (id, username, password_hash, email, name, phone, business_number, ci,
			pin_hash, onboarding_completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shop.ID, nullString(shop.Username), shop.PasswordHash, nullString(shop.Email), shop.Name,
		nullString(shop.Phone), nullString(shop.BusinessNumber), nullString(shop.CI),
		shop.PinHash, shop.OnboardingCompleted, shop.CreatedAt.UTC(), shop.UpdatedAt.UTC(),
	)
	if isDuplicate(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert shop: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) getShop(ctx context.Context, where string, args ...any) (*domain.Shop, error) {
	var row shopRow
	err := m.db.GetContext(ctx, &row, `SELECT `+shopColumns+` FROM shops WHERE `+where, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toDomain(), nil
}

func (m *MySQLAdapter) GetShop(ctx context.Context, id string) (*domain.Shop, error) {
	return m.getShop(ctx, `id = ?`, id)
}

func (m *MySQLAdapter) GetShopByUsername(ctx context.Context, username string) (*domain.Shop, error) {
	return m.getShop(ctx, `username = ?`, username)
}

func (m *MySQLAdapter) GetShopByCI(ctx context.Context, ci string) (*domain.Shop, error) {
	return m.getShop(ctx, `ci = ?`, ci)
}

func (m *MySQLAdapter) FindShopByBusinessNumber(ctx context.Context, businessNumber, excludeShopID string) (*domain.Shop, error) {
	return m.getShop(ctx, `business_number = ? AND id <> ? LIMIT 1`, businessNumber, excludeShopID)
}

func (m *MySQLAdapter) execShop(ctx context.Context, query string, args ...any) error {
	res, err := m.db.ExecContext(ctx, query, args...)
	if isDuplicate(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update shop: %w", err)
	}
	if affected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) UpdateShopProfile(ctx context.Context, id, name, businessNumber string) error {
	return m.execShop(ctx, `UPDATE shops SET name = ?, business_number = ?, updated_at = ? WHERE id = ?`,
		name, nullString(businessNumber), m.now(), id)
}

func (m *MySQLAdapter) UpdateShopPhone(ctx context.Context, id, phone string) error {
	return m.execShop(ctx, `UPDATE shops SET phone = ?, updated_at = ? WHERE id = ?`,
		nullString(phone), m.now(), id)
}

func (m *MySQLAdapter) CompleteOnboarding(ctx context.Context, id string) error {
	return m.execShop(ctx, `UPDATE shops SET onboarding_completed = 1, updated_at = ? WHERE id = ?`,
		m.now(), id)
}

func (m *MySQLAdapter) UpdatePinHash(ctx context.Context, id, pinHash string) error {
	return m.execShop(ctx, `
		UPDATE shops SET pin_hash = ?, pin_failed_count = 0, pin_locked_until = NULL, updated_at = ?
		WHERE id = ?`, pinHash, m.now(), id)
}

func (m *MySQLAdapter) ResetPinFailures(ctx context.Context, id string) error {
	return m.execShop(ctx, `
		UPDATE shops SET pin_failed_count = 0, pin_locked_until = NULL, updated_at = ?
		WHERE id = ?`, m.now(), id)
}

func (m *MySQLAdapter) RecordPinFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	var state struct {
		Count       int          `db:"pin_failed_count"`
		LockedUntil sql.NullTime `db:"pin_locked_until"`
	}

	err := m.inTx(ctx, func(tx *sqlx.Tx) error {
		// MySQL applies SET assignments left to right, so the IF sees the incremented counter.
		res, err := tx.ExecContext(ctx, `
			UPDATE shops
			SET pin_failed_count = pin_failed_count + 1,
				pin_locked_until = IF(pin_failed_count >= ?, ?, pin_locked_until),
				updated_at = ?
			WHERE id = ?`,
			maxAttempts, lockUntil.UTC(), m.now(), id,
		)
		if err != nil {
			return fmt.Errorf("record pin failure: %w", err)
		}
		if affected(res) == 0 {
			return domain.ErrNotFound
		}

		return tx.GetContext(ctx, &state, `SELECT pin_failed_count, pin_locked_until FROM shops WHERE id = ?`, id)
	})
	if err != nil {
		return 0, nil, err
	}
	return state.Count, timePtr(state.LockedUntil), nil
}

type socialRow struct {
	ID             string         `db:"id"`
	ShopID         string         `db:"shop_id"`
	Provider       string         `db:"provider"`
	ProviderUserID string         `db:"provider_user_id"`
	Email          sql.NullString `db:"email"`
	IsPrimary      bool           `db:"is_primary"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r socialRow) toDomain() domain.SocialAccount {
	return domain.SocialAccount{
		ID:             r.ID,
		ShopID:         r.ShopID,
		Provider:       domain.SocialProvider(r.Provider),
		ProviderUserID: r.ProviderUserID,
		Email:          r.Email.String,
		IsPrimary:      r.IsPrimary,
		CreatedAt:      r.CreatedAt,
	}
}

const socialColumns = `id, shop_id, provider, provider_user_id, email, is_primary, created_at`

func (m *MySQLAdapter) GetSocialAccount(ctx context.Context, provider domain.SocialProvider, providerUserID string) (*domain.SocialAccount, error) {
	var row socialRow
	err := m.db.GetContext(ctx, &row, `SELECT `+socialColumns+` FROM social_accounts
		WHERE provider = ? AND provider_user_id = ?`, string(provider), providerUserID)
	if err != nil {
		return nil, notFound(err)
	}
	acc := row.toDomain()
	return &acc, nil
}

func (m *MySQLAdapter) CreateSocialAccount(ctx context.Context, account domain.SocialAccount) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO social_accounts (id, shop_id, provider, provider_user_id, email, is_primary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.ShopID, string(account.Provider), account.ProviderUserID,
		nullString(account.Email), account.IsPrimary, account.CreatedAt.UTC(),
	)
	if isDuplicate(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert social account: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListSocialAccounts(ctx context.Context, shopID string) ([]domain.SocialAccount, error) {
	var rows []socialRow
	if err := m.db.SelectContext(ctx, &rows, `SELECT `+socialColumns+` FROM social_accounts
		WHERE shop_id = ? ORDER BY created_at`, shopID); err != nil {
		return nil, fmt.Errorf("list social accounts: %w", err)
	}

	accounts := make([]domain.SocialAccount, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, r.toDomain())
	}
	return accounts, nil
}

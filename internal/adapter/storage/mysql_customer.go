package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comings/prepaid-api/internal/core/domain"
)

const customerColumns = `id, shop_id, name, phone, phone_suffix, current_balance, created_at, updated_at`

type customerRow struct {
	ID             string         `db:"id"`
	ShopID         string         `db:"shop_id"`
	Name           string         `db:"name"`
	Phone          sql.NullString `db:"phone"`
	PhoneSuffix    string         `db:"phone_suffix"`
	CurrentBalance int64          `db:"current_balance"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r customerRow) toDomain() domain.Customer {
	return domain.Customer{
		ID:             r.ID,
		ShopID:         r.ShopID,
		Name:           r.Name,
		Phone:          r.Phone.String,
		PhoneSuffix:    r.PhoneSuffix,
		CurrentBalance: r.CurrentBalance,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func newCustomerRow(c domain.Customer) customerRow {
	return customerRow{
		ID:             c.ID,
		ShopID:         c.ShopID,
		Name:           c.Name,
		Phone:          nullString(c.Phone),
		PhoneSuffix:    c.PhoneSuffix,
		CurrentBalance: c.CurrentBalance,
		CreatedAt:      c.CreatedAt.UTC(),
		UpdatedAt:      c.UpdatedAt.UTC(),
	}
}

const insertCustomer = `
	INSERT INTO customers (id, shop_id, name, phone, phone_suffix, current_balance, created_at, updated_at)
	VALUES (:id, :shop_id, :name, :phone, :phone_suffix, :current_balance, :created_at, :updated_at)`

func (m *MySQLAdapter) CreateCustomer(ctx context.Context, customer domain.Customer) error {
	if _, err := m.db.NamedExecContext(ctx, insertCustomer, newCustomerRow(customer)); err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) BulkCreateCustomers(ctx context.Context, customers []domain.Customer) error {
	if len(customers) == 0 {
		return nil
	}

	rows := make([]customerRow, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, newCustomerRow(c))
	}

	return m.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertCustomer, rows); err != nil {
			return fmt.Errorf("bulk insert customers: %w", err)
		}
		return nil
	})
}

func (m *MySQLAdapter) GetCustomer(ctx context.Context, shopID, id string) (*domain.Customer, error) {
	var row customerRow
	err := m.db.GetContext(ctx, &row, `SELECT `+customerColumns+` FROM customers
		WHERE id = ? AND shop_id = ?`, id, shopID)
	if err != nil {
		return nil, notFound(err)
	}
	c := row.toDomain()
	return &c, nil
}

var customerOrder = map[domain.CustomerSort]string{
	domain.SortByName:      "name",
	domain.SortByCreatedAt: "created_at",
	domain.SortByBalance:   "current_balance",
}

func (m *MySQLAdapter) ListCustomers(ctx context.Context, q domain.CustomerQuery) ([]domain.Customer, int, error) {
	q.Normalize()

	where := []string{"shop_id = ?"}
	args := []any{q.ShopID}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + s + "%"
		where = append(where, "(name LIKE ? OR phone_suffix LIKE ? OR phone LIKE ?)")
		args = append(args, like, like, like)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := m.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM customers WHERE `+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY %s %s, id LIMIT ? OFFSET ?`,
		customerColumns, clause, customerOrder[q.SortBy], dir)

	var rows []customerRow
	if err := m.db.SelectContext(ctx, &rows, query, append(args, q.PageSize, q.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	return toCustomers(rows), total, nil
}

func (m *MySQLAdapter) ListAllCustomers(ctx context.Context, shopID string) ([]domain.Customer, error) {
	var rows []customerRow
	if err := m.db.SelectContext(ctx, &rows, `SELECT `+customerColumns+` FROM customers
		WHERE shop_id = ? ORDER BY name, id`, shopID); err != nil {
		return nil, fmt.Errorf("list all customers: %w", err)
	}
	return toCustomers(rows), nil
}

func toCustomers(rows []customerRow) []domain.Customer {
	out := make([]domain.Customer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func (m *MySQLAdapter) CustomerExists(ctx context.Context, shopID, name, phoneSuffix, excludeID string) (bool, error) {
	var n int
	err := m.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM customers
		WHERE shop_id = ? AND name = ? AND phone_suffix = ? AND id <> ?`,
		shopID, name, phoneSuffix, excludeID)
	if err != nil {
		return false, fmt.Errorf("check customer: %w", err)
	}
	return n > 0, nil
}

func (m *MySQLAdapter) UpdateCustomer(ctx context.Context, customer domain.Customer) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE customers SET name = ?, phone = ?, phone_suffix = ?, updated_at = ?
		WHERE id = ? AND shop_id = ?`,
		customer.Name, nullString(customer.Phone), customer.PhoneSuffix, m.now(),
		customer.ID, customer.ShopID,
	)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if affected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) DeleteCustomer(ctx context.Context, shopID, id string) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM customers
		WHERE id = ? AND shop_id = ? AND current_balance = 0`, id, shopID)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if affected(res) > 0 {
		return nil
	}

	var balance int64
	err = m.db.GetContext(ctx, &balance, `SELECT current_balance FROM customers
		WHERE id = ? AND shop_id = ?`, id, shopID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check customer balance: %w", err)
	}
	return domain.ErrBalanceRemaining
}

func (m *MySQLAdapter) CustomerStats(ctx context.Context, shopID, id string) (domain.CustomerStats, error) {
	var row struct {
		TotalCharged     int64 `db:"total_charged"`
		TotalUsed        int64 `db:"total_used"`
		TransactionCount int   `db:"transaction_count"`
	}
	err := m.db.GetContext(ctx, &row, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'CHARGE' AND cancelled_by_id IS NULL THEN amount END), 0) AS total_charged,
			COALESCE(SUM(CASE WHEN type = 'DEDUCT' AND cancelled_by_id IS NULL THEN amount END), 0) AS total_used,
			COUNT(*) AS transaction_count
		FROM transactions WHERE shop_id = ? AND customer_id = ?`, shopID, id)
	if err != nil {
		return domain.CustomerStats{}, fmt.Errorf("customer stats: %w", err)
	}
	return domain.CustomerStats{
		TotalCharged:     row.TotalCharged,
		TotalUsed:        row.TotalUsed,
		TransactionCount: row.TransactionCount,
	}, nil
}

func (m *MySQLAdapter) CountCustomers(ctx context.Context, shopID string) (int, error) {
	var n int
	if err := m.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM customers WHERE shop_id = ?`, shopID); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

func (m *MySQLAdapter) TotalBalance(ctx context.Context, shopID string) (int64, error) {
	var total int64
	if err := m.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(current_balance), 0) FROM customers
		WHERE shop_id = ?`, shopID); err != nil {
		return 0, fmt.Errorf("sum balances: %w", err)
	}
	return total, nil
}

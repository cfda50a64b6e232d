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

const transactionColumns = `t.id, t.shop_id, t.customer_id, t.type, t.amount, t.actual_payment,
	t.service_amount, t.payment_method, t.note, t.balance_after, t.original_id, t.cancelled_by_id, t.created_at`

type transactionRow struct {
	ID            string         `db:"id"`
	ShopID        string         `db:"shop_id"`
	CustomerID    string         `db:"customer_id"`
	CustomerName  string         `db:"customer_name"`
	Type          string         `db:"type"`
	Amount        int64          `db:"amount"`
	ActualPayment sql.NullInt64  `db:"actual_payment"`
	ServiceAmount sql.NullInt64  `db:"service_amount"`
	PaymentMethod sql.NullString `db:"payment_method"`
	Note          sql.NullString `db:"note"`
	BalanceAfter  int64          `db:"balance_after"`
	OriginalID    sql.NullString `db:"original_id"`
	CancelledByID sql.NullString `db:"cancelled_by_id"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:            r.ID,
		ShopID:        r.ShopID,
		CustomerID:    r.CustomerID,
		CustomerName:  r.CustomerName,
		Type:          domain.TransactionType(r.Type),
		Amount:        r.Amount,
		ActualPayment: r.ActualPayment.Int64,
		ServiceAmount: r.ServiceAmount.Int64,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod.String),
		Note:          r.Note.String,
		BalanceAfter:  r.BalanceAfter,
		OriginalID:    r.OriginalID.String,
		CancelledByID: r.CancelledByID.String,
		CreatedAt:     r.CreatedAt,
	}
}

func (m *MySQLAdapter) ApplyEntry(ctx context.Context, entry domain.Transaction) (domain.Transaction, error) {
	err := m.inTx(ctx, func(tx *sqlx.Tx) error {
		balance, err := m.moveBalance(ctx, tx, entry.ShopID, entry.CustomerID, entry.Delta())
		if err != nil {
			return err
		}
		entry.BalanceAfter = balance
		return insertTransaction(ctx, tx, entry)
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return entry, nil
}

func (m *MySQLAdapter) CancelEntry(ctx context.Context, originalID string, cancel domain.Transaction) (domain.Transaction, error) {
	err := m.inTx(ctx, func(tx *sqlx.Tx) error {
		var row transactionRow
		err := tx.GetContext(ctx, &row, `SELECT `+transactionColumns+` FROM transactions t
			WHERE t.id = ? AND t.shop_id = ? FOR UPDATE`, originalID, cancel.ShopID)
		if err != nil {
			return notFound(err)
		}

		original := row.toDomain()
		if original.Type == domain.TransactionCancel || original.IsCancelled() {
			return domain.ErrAlreadyCancelled
		}

		balance, err := m.moveBalance(ctx, tx, original.ShopID, original.CustomerID, original.ReversalDelta())
		if err != nil {
			return err
		}

		cancel.CustomerID = original.CustomerID
		cancel.Amount = original.Amount
		cancel.OriginalID = original.ID
		cancel.BalanceAfter = balance
		if err := insertTransaction(ctx, tx, cancel); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET cancelled_by_id = ? WHERE id = ?`,
			cancel.ID, original.ID); err != nil {
			return fmt.Errorf("mark cancelled: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return cancel, nil
}

// moveBalance applies delta unless the result would be negative and returns the new balance.
func (m *MySQLAdapter) moveBalance(ctx context.Context, tx *sqlx.Tx, shopID, customerID string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE customers
		SET current_balance = current_balance + ?, updated_at = ?
		WHERE id = ? AND shop_id = ? AND current_balance + ? >= 0`,
		delta, m.now(), customerID, shopID, delta,
	)
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	rows := affected(res)

	var balance int64
	err = tx.GetContext(ctx, &balance, `SELECT current_balance FROM customers WHERE id = ? AND shop_id = ?`,
		customerID, shopID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	if rows == 0 {
		return 0, &domain.InsufficientBalanceError{Current: balance}
	}
	return balance, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, t domain.Transaction) error {
	isCharge := t.Type == domain.TransactionCharge
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, shop_id, customer_id, type, amount, actual_payment, service_amount,
			payment_method, note, balance_after, original_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ShopID, t.CustomerID, string(t.Type), t.Amount,
		sql.NullInt64{Int64: t.ActualPayment, Valid: isCharge},
		sql.NullInt64{Int64: t.ServiceAmount, Valid: isCharge},
		nullString(string(t.PaymentMethod)), nullString(t.Note), t.BalanceAfter,
		nullString(t.OriginalID), t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetTransaction(ctx context.Context, shopID, id string) (*domain.Transaction, error) {
	var row transactionRow
	err := m.db.GetContext(ctx, &row, `SELECT `+transactionColumns+`, COALESCE(c.name, '') AS customer_name
		FROM transactions t LEFT JOIN customers c ON c.id = t.customer_id
		WHERE t.id = ? AND t.shop_id = ?`, id, shopID)
	if err != nil {
		return nil, notFound(err)
	}
	t := row.toDomain()
	return &t, nil
}

func transactionFilter(q domain.TransactionQuery) (string, []any) {
	where := []string{"t.shop_id = ?"}
	args := []any{q.ShopID}
	if q.CustomerID != "" {
		where = append(where, "t.customer_id = ?")
		args = append(args, q.CustomerID)
	}
	if q.Type != "" {
		where = append(where, "t.type = ?")
		args = append(args, string(q.Type))
	}
	if q.From != nil {
		where = append(where, "t.created_at >= ?")
		args = append(args, q.From.UTC())
	}
	if q.To != nil {
		where = append(where, "t.created_at < ?")
		args = append(args, q.To.UTC())
	}
	return strings.Join(where, " AND "), args
}

func (m *MySQLAdapter) ListTransactions(ctx context.Context, q domain.TransactionQuery) (domain.TransactionPage, error) {
	q.Normalize()
	clause, args := transactionFilter(q)

	var sums struct {
		Total       int   `db:"total"`
		TotalCharge int64 `db:"total_charge"`
		TotalDeduct int64 `db:"total_deduct"`
	}
	err := m.db.GetContext(ctx, &sums, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN t.type = 'CHARGE' AND t.cancelled_by_id IS NULL THEN t.amount END), 0) AS total_charge,
			COALESCE(SUM(CASE WHEN t.type = 'DEDUCT' AND t.cancelled_by_id IS NULL THEN t.amount END), 0) AS total_deduct
		FROM transactions t WHERE `+clause, args...)
	if err != nil {
		return domain.TransactionPage{}, fmt.Errorf("sum transactions: %w", err)
	}

	var rows []transactionRow
	err = m.db.SelectContext(ctx, &rows, `SELECT `+transactionColumns+`, COALESCE(c.name, '') AS customer_name
		FROM transactions t LEFT JOIN customers c ON c.id = t.customer_id
		WHERE `+clause+` ORDER BY t.created_at DESC, t.id LIMIT ? OFFSET ?`,
		append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return domain.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}

	return domain.TransactionPage{
		Transactions: toTransactions(rows),
		Total:        sums.Total,
		TotalCharge:  sums.TotalCharge,
		TotalDeduct:  sums.TotalDeduct,
	}, nil
}

func (m *MySQLAdapter) ListForAnalytics(ctx context.Context, shopID string, f domain.AnalyticsFilter) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `, COALESCE(c.name, '') AS customer_name
		FROM transactions t LEFT JOIN customers c ON c.id = t.customer_id
		WHERE t.shop_id = ? AND t.cancelled_by_id IS NULL`
	args := []any{shopID}

	if len(f.Types) > 0 {
		types := make([]string, 0, len(f.Types))
		for _, t := range f.Types {
			types = append(types, string(t))
		}
		query += ` AND t.type IN (?)`
		args = append(args, types)
	}
	if !f.From.IsZero() {
		query += ` AND t.created_at >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += ` AND t.created_at < ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY t.created_at`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand analytics query: %w", err)
	}

	var rows []transactionRow
	if err := m.db.SelectContext(ctx, &rows, m.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("analytics transactions: %w", err)
	}
	return toTransactions(rows), nil
}

func toTransactions(rows []transactionRow) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

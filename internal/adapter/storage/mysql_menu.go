package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comings/prepaid-api/internal/core/domain"
)

const menuColumns = `id, shop_id, name, price, is_active, display_order, created_at, updated_at`

type menuRow struct {
	ID           string    `db:"id"`
	ShopID       string    `db:"shop_id"`
	Name         string    `db:"name"`
	Price        int64     `db:"price"`
	IsActive     bool      `db:"is_active"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r menuRow) toDomain() domain.Menu {
	return domain.Menu{
		ID:           r.ID,
		ShopID:       r.ShopID,
		Name:         r.Name,
		Price:        r.Price,
		IsActive:     r.IsActive,
		DisplayOrder: r.DisplayOrder,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (m *MySQLAdapter) ListMenus(ctx context.Context, shopID string, includeInactive bool) ([]domain.Menu, error) {
	query := `SELECT ` + menuColumns + ` FROM menus WHERE shop_id = ?`
	if !includeInactive {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY display_order, created_at`

	var rows []menuRow
	if err := m.db.SelectContext(ctx, &rows, query, shopID); err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}

	menus := make([]domain.Menu, 0, len(rows))
	for _, r := range rows {
		menus = append(menus, r.toDomain())
	}
	return menus, nil
}

func insertMenu(ctx context.Context, tx *sqlx.Tx, menu domain.Menu) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO menus (id, shop_id, name, price, is_active, display_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		menu.ID, menu.ShopID, menu.Name, menu.Price, menu.IsActive, menu.DisplayOrder,
		menu.CreatedAt.UTC(), menu.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert menu: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) CreateMenu(ctx context.Context, menu domain.Menu) (domain.Menu, error) {
	err := m.inTx(ctx, func(tx *sqlx.Tx) error {
		var next int
		if err := tx.GetContext(ctx, &next, `SELECT COALESCE(MAX(display_order), -1) + 1 FROM menus
			WHERE shop_id = ?`, menu.ShopID); err != nil {
			return fmt.Errorf("next display order: %w", err)
		}
		menu.DisplayOrder = next
		return insertMenu(ctx, tx, menu)
	})
	if err != nil {
		return domain.Menu{}, err
	}
	return menu, nil
}

func (m *MySQLAdapter) GetMenu(ctx context.Context, shopID, id string) (*domain.Menu, error) {
	var row menuRow
	if err := m.db.GetContext(ctx, &row, `SELECT `+menuColumns+` FROM menus WHERE id = ? AND shop_id = ?`,
		id, shopID); err != nil {
		return nil, notFound(err)
	}
	menu := row.toDomain()
	return &menu, nil
}

func (m *MySQLAdapter) UpdateMenu(ctx context.Context, menu domain.Menu) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE menus SET name = ?, price = ?, is_active = ?, display_order = ?, updated_at = ?
		WHERE id = ? AND shop_id = ?`,
		menu.Name, menu.Price, menu.IsActive, menu.DisplayOrder, m.now(), menu.ID, menu.ShopID,
	)
	if err != nil {
		return fmt.Errorf("update menu: %w", err)
	}
	if affected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) DeleteMenu(ctx context.Context, shopID, id string) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM menus WHERE id = ? AND shop_id = ?`, id, shopID)
	if err != nil {
		return fmt.Errorf("delete menu: %w", err)
	}
	if affected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) ReorderMenus(ctx context.Context, shopID string, ids []string) error {
	now := m.now()
	return m.inTx(ctx, func(tx *sqlx.Tx) error {
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx, `UPDATE menus SET display_order = ?, updated_at = ?
				WHERE id = ? AND shop_id = ?`, i, now, id, shopID); err != nil {
				return fmt.Errorf("reorder menu %s: %w", id, err)
			}
		}
		return nil
	})
}

func (m *MySQLAdapter) ReplaceMenus(ctx context.Context, shopID string, menus []domain.Menu) error {
	return m.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM menus WHERE shop_id = ?`, shopID); err != nil {
			return fmt.Errorf("clear menus: %w", err)
		}
		for _, menu := range menus {
			if err := insertMenu(ctx, tx, menu); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *MySQLAdapter) CountMenus(ctx context.Context, shopID string) (int, error) {
	var n int
	if err := m.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM menus WHERE shop_id = ?`, shopID); err != nil {
		return 0, fmt.Errorf("count menus: %w", err)
	}
	return n, nil
}

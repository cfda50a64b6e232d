package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/port"
)

type MenuService struct {
	menus port.MenuRepository
	now   func() time.Time
}

func NewMenuService(menus port.MenuRepository) *MenuService {
	return &MenuService{menus: menus, now: time.Now}
}

func (s *MenuService) List(ctx context.Context, shopID string, includeInactive bool) ([]domain.Menu, error) {
	return s.menus.ListMenus(ctx, shopID, includeInactive)
}

func (s *MenuService) Create(ctx context.Context, shopID, name string, price int64) (domain.Menu, error) {
	if price < 0 {
		return domain.Menu{}, domain.Invalid("price", "가격은 0 이상이어야 합니다")
	}
	now := s.now()
	return s.menus.CreateMenu(ctx, domain.Menu{
		ID:        uuid.NewString(),
		ShopID:    shopID,
		Name:      name,
		Price:     price,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *MenuService) Get(ctx context.Context, shopID, id string) (domain.Menu, error) {
	menu, err := s.menus.GetMenu(ctx, shopID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Menu{}, withMessage(domain.ErrNotFound, "메뉴를 찾을 수 없습니다")
	}
	if err != nil {
		return domain.Menu{}, err
	}
	return *menu, nil
}

func (s *MenuService) Update(ctx context.Context, shopID, id string, upd domain.MenuUpdate) (domain.Menu, error) {
	if upd.Empty() {
		return domain.Menu{}, withMessage(ErrNothingToUpdate, "수정할 내용이 없습니다")
	}
	if upd.Price != nil && *upd.Price < 0 {
		return domain.Menu{}, domain.Invalid("price", "가격은 0 이상이어야 합니다")
	}

	menu, err := s.Get(ctx, shopID, id)
	if err != nil {
		return domain.Menu{}, err
	}
	upd.Apply(&menu)
	menu.UpdatedAt = s.now()

	if err := s.menus.UpdateMenu(ctx, menu); err != nil {
		return domain.Menu{}, err
	}
	return menu, nil
}

func (s *MenuService) Delete(ctx context.Context, shopID, id string) error {
	err := s.menus.DeleteMenu(ctx, shopID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return withMessage(domain.ErrNotFound, "메뉴를 찾을 수 없습니다")
	}
	return err
}

// Reorder sets each menu's display order to its position in ids.
// Ids of other shops are ignored.
func (s *MenuService) Reorder(ctx context.Context, shopID string, ids []string) error {
	return s.menus.ReorderMenus(ctx, shopID, ids)
}

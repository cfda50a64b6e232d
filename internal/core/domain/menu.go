package domain

import "time"

type Menu struct {
	ID           string
	ShopID       string
	Name         string
	Price        int64
	IsActive     bool
	DisplayOrder int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type MenuUpdate struct {
	Name         *string
	Price        *int64
	IsActive     *bool
	DisplayOrder *int
}

func (u MenuUpdate) Empty() bool {
	return u.Name == nil && u.Price == nil && u.IsActive == nil && u.DisplayOrder == nil
}

func (u MenuUpdate) Apply(m *Menu) {
	if u.Name != nil {
		m.Name = *u.Name
	}
	if u.Price != nil {
		m.Price = *u.Price
	}
	if u.IsActive != nil {
		m.IsActive = *u.IsActive
	}
	if u.DisplayOrder != nil {
		m.DisplayOrder = *u.DisplayOrder
	}
}

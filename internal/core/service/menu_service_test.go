package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comings/prepaid-api/internal/core/domain"
)

func TestMenuService(t *testing.T) {
	store := newMemoryStore()
	svc := NewMenuService(store)
	ctx := context.Background()

	americano, err := svc.Create(ctx, "shop-1", "아메리카노", 4500)
	require.NoError(t, err)
	latte, err := svc.Create(ctx, "shop-1", "카페라떼", 5000)
	require.NoError(t, err)
	assert.Equal(t, 1, latte.DisplayOrder)

	_, err = svc.Create(ctx, "shop-1", "이상한 메뉴", -100)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Update(ctx, "shop-1", americano.ID, domain.MenuUpdate{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	inactive := false
	updated, err := svc.Update(ctx, "shop-1", americano.ID, domain.MenuUpdate{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	active, err := svc.List(ctx, "shop-1", false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "카페라떼", active[0].Name)

	require.NoError(t, svc.Reorder(ctx, "shop-1", []string{latte.ID, americano.ID, "unknown"}))
	all, err := svc.List(ctx, "shop-1", true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, latte.ID, all[0].ID)

	_, err = svc.Get(ctx, "shop-2", latte.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "shop-1", latte.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "shop-1", latte.ID), domain.ErrNotFound)
}

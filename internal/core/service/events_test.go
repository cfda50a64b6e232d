package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comings/prepaid-api/internal/core/domain"
)

type handlerFunc func(context.Context, domain.Event) error

func (f handlerFunc) Handle(ctx context.Context, e domain.Event) error { return f(ctx, e) }

func TestEventDispatcher_PublishAndHandle(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []domain.EventType
	)
	failing := handlerFunc(func(context.Context, domain.Event) error { return errors.New("down") })
	recording := handlerFunc(func(_ context.Context, e domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Type)
		return nil
	})

	d := NewEventDispatcher(4, discardLogger(), failing, recording)
	d.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	require.NoError(t, d.Publish(ctx, domain.Event{Type: domain.EventCharged, ShopID: "shop-1"}))
	require.NoError(t, d.Publish(ctx, domain.Event{Type: domain.EventDeducted, ShopID: "shop-1", ID: "fixed"}))
	d.Close()

	var queued []domain.Event
	for e := range d.Queue() {
		queued = append(queued, e)
		d.Handle(ctx, e)
	}

	require.Len(t, queued, 2)
	assert.NotEmpty(t, queued[0].ID)
	assert.Equal(t, fixedNow, queued[0].OccurredAt)
	assert.Equal(t, "fixed", queued[1].ID)
	assert.Equal(t, []domain.EventType{domain.EventCharged, domain.EventDeducted}, seen)

	assert.ErrorIs(t, d.Publish(ctx, domain.Event{Type: domain.EventCharged}), ErrDispatcherClosed)
	d.Close()
}

func TestEventDispatcher_PublishRespectsContext(t *testing.T) {
	d := NewEventDispatcher(1, discardLogger())
	require.NoError(t, d.Publish(context.Background(), domain.Event{Type: domain.EventCharged}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Publish(ctx, domain.Event{Type: domain.EventCharged})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

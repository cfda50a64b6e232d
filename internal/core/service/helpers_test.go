package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comings/prepaid-api/internal/adapter/storage/memory"
	"github.com/comings/prepaid-api/internal/core/domain"
)

// Monday 2025-03-10 12:00 in Seoul
var fixedNow = time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemoryStore() *memory.Store {
	store := memory.New()
	store.SetClock(func() time.Time { return fixedNow })
	return store
}

func seedCustomer(t *testing.T, store *memory.Store, shopID, id, name string) {
	t.Helper()
	require.NoError(t, store.CreateCustomer(context.Background(), domain.Customer{
		ID:          id,
		ShopID:      shopID,
		Name:        name,
		PhoneSuffix: "1234",
		CreatedAt:   fixedNow,
		UpdatedAt:   fixedNow,
	}))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeBilling struct {
	issue     domain.BillingKeyResult
	charge    domain.ChargeResult
	chargeErr error
	charges   int
}

func (f *fakeBilling) IssueBillingKey(context.Context, string, string) (domain.BillingKeyResult, error) {
	return f.issue, nil
}

func (f *fakeBilling) ChargeBillingKey(_ context.Context, _, _ string, _ int64, orderID, _ string) (domain.ChargeResult, error) {
	f.charges++
	result := f.charge
	result.OrderID = orderID
	return result, f.chargeErr
}

type fakeOAuth struct {
	name     domain.SocialProvider
	identity domain.SocialIdentity
}

func (f *fakeOAuth) Name() domain.SocialProvider { return f.name }

func (f *fakeOAuth) AuthorizeURL(state string) string {
	return "https://oauth.example/" + string(f.name) + "?state=" + state
}

func (f *fakeOAuth) Exchange(_ context.Context, code, _ string) (domain.SocialIdentity, error) {
	if code == "bad" {
		return domain.SocialIdentity{}, errors.New("invalid grant")
	}
	id := f.identity
	id.Provider = f.name
	if id.ProviderUserID == "" {
		id.ProviderUserID = code
	}
	return id, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	to   []string
}

func (n *fakeNotifier) SendSMS(_ context.Context, to, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.to = append(n.to, to)
	n.sent = append(n.sent, text)
	return nil
}

type fakeRegistry struct {
	code string
	err  error
}

func (r fakeRegistry) Status(context.Context, string) (string, error) {
	return r.code, r.err
}

package port

import (
	"context"
	"errors"

	"github.com/comings/prepaid-api/internal/core/domain"
)

// BillingGateway registers cards and charges them without user interaction.
type BillingGateway interface {
	IssueBillingKey(ctx context.Context, authKey, customerKey string) (domain.BillingKeyResult, error)
	ChargeBillingKey(ctx context.Context, billingKey, customerKey string, amount int64, orderID, orderName string) (domain.ChargeResult, error)
}

// BusinessRegistry looks up the tax office status of a business number.
// It returns the raw status code ("01", "02", "03", or "" when unknown).
type BusinessRegistry interface {
	Status(ctx context.Context, digits string) (string, error)
}

type Notifier interface {
	SendSMS(ctx context.Context, to, text string) error
}

type OAuthProvider interface {
	Name() domain.SocialProvider
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code, state string) (domain.SocialIdentity, error)
}

// ErrNotContracted is returned by providers that exist only in mock form here.
var ErrNotContracted = errors.New("provider not contracted")

// IdentityVerifier runs the phone identity check used at sign-up.
type IdentityVerifier interface {
	Start(ctx context.Context) (requestID, encData string, err error)
	Complete(ctx context.Context, requestID, encData string) (ci, name string, err error)
	MockMode() bool
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type EventHandler interface {
	Handle(ctx context.Context, event domain.Event) error
}

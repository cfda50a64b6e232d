package port

import (
	"context"
	"time"

	"github.com/comings/prepaid-api/internal/core/domain"
)

// Lookups return domain.ErrNotFound when the row does not exist or belongs
// to another shop.

type ShopRepository interface {
	CreateShop(ctx context.Context, shop domain.Shop) error
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	GetShopByUsername(ctx context.Context, username string) (*domain.Shop, error)
	GetShopByCI(ctx context.Context, ci string) (*domain.Shop, error)

	// FindShopByBusinessNumber ignores the shop given in excludeShopID
	FindShopByBusinessNumber(ctx context.Context, businessNumber, excludeShopID string) (*domain.Shop, error)

	UpdateShopProfile(ctx context.Context, id, name, businessNumber string) error
	UpdateShopPhone(ctx context.Context, id, phone string) error
	CompleteOnboarding(ctx context.Context, id string) error

	// UpdatePinHash stores a new PIN and clears the failure counter and lock
	UpdatePinHash(ctx context.Context, id, pinHash string) error

	// RecordPinFailure atomically increments the failure counter and sets the
	// lock once maxAttempts is reached. Returns the new count and lock.
	RecordPinFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error)

	ResetPinFailures(ctx context.Context, id string) error

	GetSocialAccount(ctx context.Context, provider domain.SocialProvider, providerUserID string) (*domain.SocialAccount, error)
	CreateSocialAccount(ctx context.Context, account domain.SocialAccount) error
	ListSocialAccounts(ctx context.Context, shopID string) ([]domain.SocialAccount, error)
}

type CustomerRepository interface {
	CreateCustomer(ctx context.Context, customer domain.Customer) error
	GetCustomer(ctx context.Context, shopID, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, q domain.CustomerQuery) ([]domain.Customer, int, error)

	// ListAllCustomers returns every customer of the shop ordered by name
	ListAllCustomers(ctx context.Context, shopID string) ([]domain.Customer, error)

	// CustomerExists matches on name and phone suffix within the shop
	CustomerExists(ctx context.Context, shopID, name, phoneSuffix, excludeID string) (bool, error)

	UpdateCustomer(ctx context.Context, customer domain.Customer) error

	// DeleteCustomer removes a customer only when its balance is zero,
	// otherwise it returns domain.ErrBalanceRemaining
	DeleteCustomer(ctx context.Context, shopID, id string) error

	// BulkCreateCustomers inserts all rows in one transaction
	BulkCreateCustomers(ctx context.Context, customers []domain.Customer) error

	CustomerStats(ctx context.Context, shopID, id string) (domain.CustomerStats, error)
	CountCustomers(ctx context.Context, shopID string) (int, error)
	TotalBalance(ctx context.Context, shopID string) (int64, error)
}

type LedgerRepository interface {
	// ApplyEntry writes a charge or deduct row and moves the balance in one
	// transaction. A debit that would go negative returns
	// *domain.InsufficientBalanceError. The returned row has BalanceAfter set.
	ApplyEntry(ctx context.Context, entry domain.Transaction) (domain.Transaction, error)

	// CancelEntry reverses originalID with the given cancel row and marks the
	// original as cancelled.
	CancelEntry(ctx context.Context, originalID string, cancel domain.Transaction) (domain.Transaction, error)

	GetTransaction(ctx context.Context, shopID, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, q domain.TransactionQuery) (domain.TransactionPage, error)

	// ListForAnalytics returns non-cancelled rows matching the filter
	ListForAnalytics(ctx context.Context, shopID string, f domain.AnalyticsFilter) ([]domain.Transaction, error)
}

type MenuRepository interface {
	ListMenus(ctx context.Context, shopID string, includeInactive bool) ([]domain.Menu, error)

	// CreateMenu appends the menu after the current last display position
	CreateMenu(ctx context.Context, menu domain.Menu) (domain.Menu, error)

	GetMenu(ctx context.Context, shopID, id string) (*domain.Menu, error)
	UpdateMenu(ctx context.Context, menu domain.Menu) error
	DeleteMenu(ctx context.Context, shopID, id string) error

	// ReorderMenus sets display_order to the index of each id
	ReorderMenus(ctx context.Context, shopID string, ids []string) error

	// ReplaceMenus drops every menu of the shop and inserts the given ones
	ReplaceMenus(ctx context.Context, shopID string, menus []domain.Menu) error

	CountMenus(ctx context.Context, shopID string) (int, error)
}

type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, shopID string) (*domain.Subscription, error)
	CreateSubscription(ctx context.Context, sub domain.Subscription) error
	SaveSubscription(ctx context.Context, sub domain.Subscription) error

	// ListSubscriptionsByStatus feeds the background sweeper
	ListSubscriptionsByStatus(ctx context.Context, statuses ...domain.SubscriptionStatus) ([]domain.Subscription, error)

	CreatePayment(ctx context.Context, payment domain.Payment) error
	SavePayment(ctx context.Context, payment domain.Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	ListPayments(ctx context.Context, shopID string, page, pageSize int) ([]domain.Payment, int, error)
}

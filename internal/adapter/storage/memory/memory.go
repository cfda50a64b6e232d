package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/port"
)

// Store is an in-memory implementation of the repository and cache ports. It
// is safe for concurrent use and backs tests and STORAGE_DRIVER=memory runs.
type Store struct {
	mu            sync.RWMutex
	shops         map[string]domain.Shop
	social        map[string]domain.SocialAccount
	customers     map[string]domain.Customer
	transactions  map[string]domain.Transaction
	menus         map[string]domain.Menu
	subscriptions map[string]domain.Subscription
	payments      map[string]domain.Payment
	keys          map[string]entry
	now           func() time.Time
}

type entry struct {
	value   string
	expires time.Time
}

var (
	_ port.ShopRepository         = (*Store)(nil)
	_ port.CustomerRepository     = (*Store)(nil)
	_ port.LedgerRepository       = (*Store)(nil)
	_ port.MenuRepository         = (*Store)(nil)
	_ port.SubscriptionRepository = (*Store)(nil)
	_ port.CacheRepository        = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		shops:         make(map[string]domain.Shop),
		social:        make(map[string]domain.SocialAccount),
		customers:     make(map[string]domain.Customer),
		transactions:  make(map[string]domain.Transaction),
		menus:         make(map[string]domain.Menu),
		subscriptions: make(map[string]domain.Subscription),
		payments:      make(map[string]domain.Payment),
		keys:          make(map[string]entry),
		now:           time.Now,
	}
}

// Shops -----------------------------------------------------------------------

func (s *Store) CreateShop(_ context.Context, shop domain.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shops {
		if existing.ID == shop.ID ||
			(shop.Username != "" && existing.Username == shop.Username) ||
			(shop.CI != "" && existing.CI == shop.CI) ||
			(shop.BusinessNumber != "" && existing.BusinessNumber == shop.BusinessNumber) {
			return domain.ErrDuplicate
		}
	}
	s.shops[shop.ID] = shop
	return nil
}

func (s *Store) GetShop(_ context.Context, id string) (*domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shop, ok := s.shops[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &shop, nil
}

func (s *Store) findShop(match func(domain.Shop) bool) (*domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, shop := range s.shops {
		if match(shop) {
			return &shop, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) GetShopByUsername(_ context.Context, username string) (*domain.Shop, error) {
	return s.findShop(func(shop domain.Shop) bool { return username != "" && shop.Username == username })
}

func (s *Store) GetShopByCI(_ context.Context, ci string) (*domain.Shop, error) {
	return s.findShop(func(shop domain.Shop) bool { return ci != "" && shop.CI == ci })
}

func (s *Store) FindShopByBusinessNumber(_ context.Context, businessNumber, excludeShopID string) (*domain.Shop, error) {
	return s.findShop(func(shop domain.Shop) bool {
		return shop.BusinessNumber == businessNumber && shop.ID != excludeShopID
	})
}

func (s *Store) updateShop(id string, fn func(*domain.Shop) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shop, ok := s.shops[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := fn(&shop); err != nil {
		return err
	}
	shop.UpdatedAt = s.now()
	s.shops[id] = shop
	return nil
}

func (s *Store) UpdateShopProfile(_ context.Context, id, name, businessNumber string) error {
	return s.updateShop(id, func(shop *domain.Shop) error {
		if businessNumber != "" {
			for _, other := range s.shops {
				if other.ID != id && other.BusinessNumber == businessNumber {
					return domain.ErrDuplicate
				}
			}
		}
		shop.Name = name
		shop.BusinessNumber = businessNumber
		return nil
	})
}

func (s *Store) UpdateShopPhone(_ context.Context, id, phone string) error {
	return s.updateShop(id, func(shop *domain.Shop) error {
		shop.Phone = phone
		return nil
	})
}

func (s *Store) CompleteOnboarding(_ context.Context, id string) error {
	return s.updateShop(id, func(shop *domain.Shop) error {
		shop.OnboardingCompleted = true
		return nil
	})
}

func (s *Store) UpdatePinHash(_ context.Context, id, pinHash string) error {
	return s.updateShop(id, func(shop *domain.Shop) error {
		shop.PinHash = pinHash
		shop.PinFailedCount = 0
		shop.PinLockedUntil = nil
		return nil
	})
}

func (s *Store) ResetPinFailures(_ context.Context, id string) error {
	return s.updateShop(id, func(shop *domain.Shop) error {
		shop.PinFailedCount = 0
		shop.PinLockedUntil = nil
		return nil
	})
}

func (s *Store) RecordPinFailure(_ context.Context, id string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	var (
		count  int
		locked *time.Time
	)
	err := s.updateShop(id, func(shop *domain.Shop) error {
		shop.PinFailedCount++
		if shop.PinFailedCount >= maxAttempts {
			until := lockUntil
			shop.PinLockedUntil = &until
		}
		count = shop.PinFailedCount
		locked = shop.PinLockedUntil
		return nil
	})
	return count, locked, err
}

func socialKey(provider domain.SocialProvider, providerUserID string) string {
	return string(provider) + ":" + providerUserID
}

func (s *Store) GetSocialAccount(_ context.Context, provider domain.SocialProvider, providerUserID string) (*domain.SocialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.social[socialKey(provider, providerUserID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &acc, nil
}

func (s *Store) CreateSocialAccount(_ context.Context, account domain.SocialAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := socialKey(account.Provider, account.ProviderUserID)
	if _, exists := s.social[key]; exists {
		return domain.ErrDuplicate
	}
	s.social[key] = account
	return nil
}

func (s *Store) ListSocialAccounts(_ context.Context, shopID string) ([]domain.SocialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.SocialAccount{}
	for _, acc := range s.social {
		if acc.ShopID == shopID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Customers -------------------------------------------------------------------

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[customer.ID]; exists {
		return domain.ErrDuplicate
	}
	s.customers[customer.ID] = customer
	return nil
}

func (s *Store) BulkCreateCustomers(_ context.Context, customers []domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range customers {
		if _, exists := s.customers[c.ID]; exists {
			return domain.ErrDuplicate
		}
	}
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	return nil
}

func (s *Store) GetCustomer(_ context.Context, shopID, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok || c.ShopID != shopID {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *Store) shopCustomers(shopID string) []domain.Customer {
	out := []domain.Customer{}
	for _, c := range s.customers {
		if c.ShopID == shopID {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) ListCustomers(_ context.Context, q domain.CustomerQuery) ([]domain.Customer, int, error) {
	q.Normalize()

	s.mu.RLock()
	all := s.shopCustomers(q.ShopID)
	s.mu.RUnlock()

	search := strings.TrimSpace(q.Search)
	matched := all[:0]
	for _, c := range all {
		if search == "" || strings.Contains(c.Name, search) ||
			strings.Contains(c.PhoneSuffix, search) || strings.Contains(c.Phone, search) {
			matched = append(matched, c)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less, equal bool
		switch q.SortBy {
		case domain.SortByCreatedAt:
			less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		case domain.SortByBalance:
			less, equal = a.CurrentBalance < b.CurrentBalance, a.CurrentBalance == b.CurrentBalance
		default:
			less, equal = a.Name < b.Name, a.Name == b.Name
		}
		if equal {
			return a.ID < b.ID
		}
		if q.Desc {
			return !less
		}
		return less
	})

	total := len(matched)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return append([]domain.Customer(nil), matched[start:end]...), total, nil
}

func (s *Store) ListAllCustomers(_ context.Context, shopID string) ([]domain.Customer, error) {
	s.mu.RLock()
	out := s.shopCustomers(shopID)
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CustomerExists(_ context.Context, shopID, name, phoneSuffix, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.ShopID == shopID && c.Name == name && c.PhoneSuffix == phoneSuffix && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customer.ID]
	if !ok || c.ShopID != customer.ShopID {
		return domain.ErrNotFound
	}
	c.Name = customer.Name
	c.Phone = customer.Phone
	c.PhoneSuffix = customer.PhoneSuffix
	c.UpdatedAt = s.now()
	s.customers[c.ID] = c
	return nil
}

func (s *Store) DeleteCustomer(_ context.Context, shopID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok || c.ShopID != shopID {
		return domain.ErrNotFound
	}
	if c.CurrentBalance != 0 {
		return domain.ErrBalanceRemaining
	}
	delete(s.customers, id)
	for txID, t := range s.transactions {
		if t.CustomerID == id {
			delete(s.transactions, txID)
		}
	}
	return nil
}

func (s *Store) CustomerStats(_ context.Context, shopID, id string) (domain.CustomerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.CustomerStats
	for _, t := range s.transactions {
		if t.ShopID != shopID || t.CustomerID != id {
			continue
		}
		stats.TransactionCount++
		if t.IsCancelled() {
			continue
		}
		switch t.Type {
		case domain.TransactionCharge:
			stats.TotalCharged += t.Amount
		case domain.TransactionDeduct:
			stats.TotalUsed += t.Amount
		}
	}
	return stats, nil
}

func (s *Store) CountCustomers(_ context.Context, shopID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shopCustomers(shopID)), nil
}

func (s *Store) TotalBalance(_ context.Context, shopID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, c := range s.shopCustomers(shopID) {
		total += c.CurrentBalance
	}
	return total, nil
}

// Ledger ----------------------------------------------------------------------

// moveBalanceLocked mirrors the guarded UPDATE of the SQL store.
func (s *Store) moveBalanceLocked(shopID, customerID string, delta int64) (int64, error) {
	c, ok := s.customers[customerID]
	if !ok || c.ShopID != shopID {
		return 0, domain.ErrNotFound
	}
	if c.CurrentBalance+delta < 0 {
		return 0, &domain.InsufficientBalanceError{Current: c.CurrentBalance}
	}
	c.CurrentBalance += delta
	c.UpdatedAt = s.now()
	s.customers[customerID] = c
	return c.CurrentBalance, nil
}

func (s *Store) ApplyEntry(_ context.Context, e domain.Transaction) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.moveBalanceLocked(e.ShopID, e.CustomerID, e.Delta())
	if err != nil {
		return domain.Transaction{}, err
	}
	e.BalanceAfter = balance
	s.transactions[e.ID] = e
	return e, nil
}

func (s *Store) CancelEntry(_ context.Context, originalID string, cancel domain.Transaction) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.transactions[originalID]
	if !ok || original.ShopID != cancel.ShopID {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if original.Type == domain.TransactionCancel || original.IsCancelled() {
		return domain.Transaction{}, domain.ErrAlreadyCancelled
	}

	balance, err := s.moveBalanceLocked(original.ShopID, original.CustomerID, original.ReversalDelta())
	if err != nil {
		return domain.Transaction{}, err
	}

	cancel.CustomerID = original.CustomerID
	cancel.Amount = original.Amount
	cancel.OriginalID = original.ID
	cancel.BalanceAfter = balance
	s.transactions[cancel.ID] = cancel

	original.CancelledByID = cancel.ID
	s.transactions[original.ID] = original
	return cancel, nil
}

func (s *Store) withName(t domain.Transaction) domain.Transaction {
	if c, ok := s.customers[t.CustomerID]; ok {
		t.CustomerName = c.Name
	}
	return t
}

func (s *Store) GetTransaction(_ context.Context, shopID, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok || t.ShopID != shopID {
		return nil, domain.ErrNotFound
	}
	t = s.withName(t)
	return &t, nil
}

func inWindow(ts time.Time, from, to *time.Time) bool {
	if from != nil && ts.Before(*from) {
		return false
	}
	if to != nil && !ts.Before(*to) {
		return false
	}
	return true
}

func (s *Store) ListTransactions(_ context.Context, q domain.TransactionQuery) (domain.TransactionPage, error) {
	q.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var page domain.TransactionPage
	matched := []domain.Transaction{}
	for _, t := range s.transactions {
		if t.ShopID != q.ShopID ||
			(q.CustomerID != "" && t.CustomerID != q.CustomerID) ||
			(q.Type != "" && t.Type != q.Type) ||
			!inWindow(t.CreatedAt, q.From, q.To) {
			continue
		}
		matched = append(matched, s.withName(t))
		if t.IsCancelled() {
			continue
		}
		switch t.Type {
		case domain.TransactionCharge:
			page.TotalCharge += t.Amount
		case domain.TransactionDeduct:
			page.TotalDeduct += t.Amount
		}
	}
	sortNewestFirst(matched)

	page.Total = len(matched)
	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	page.Transactions = matched[start:end]
	return page, nil
}

func sortNewestFirst(ts []domain.Transaction) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].CreatedAt.After(ts[j].CreatedAt)
	})
}

func (s *Store) ListForAnalytics(_ context.Context, shopID string, f domain.AnalyticsFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var from, to *time.Time
	if !f.From.IsZero() {
		from = &f.From
	}
	if !f.To.IsZero() {
		to = &f.To
	}

	out := []domain.Transaction{}
	for _, t := range s.transactions {
		if t.ShopID != shopID || t.IsCancelled() || !inWindow(t.CreatedAt, from, to) {
			continue
		}
		if len(f.Types) > 0 && !hasType(f.Types, t.Type) {
			continue
		}
		out = append(out, s.withName(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func hasType(types []domain.TransactionType, t domain.TransactionType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

// Menus -----------------------------------------------------------------------

func (s *Store) shopMenus(shopID string) []domain.Menu {
	out := []domain.Menu{}
	for _, m := range s.menus {
		if m.ShopID == shopID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder == out[j].DisplayOrder {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out
}

func (s *Store) ListMenus(_ context.Context, shopID string, includeInactive bool) ([]domain.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Menu{}
	for _, m := range s.shopMenus(shopID) {
		if includeInactive || m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) CreateMenu(_ context.Context, menu domain.Menu) (domain.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := 0
	for _, m := range s.menus {
		if m.ShopID == menu.ShopID && m.DisplayOrder >= next {
			next = m.DisplayOrder + 1
		}
	}
	menu.DisplayOrder = next
	s.menus[menu.ID] = menu
	return menu, nil
}

func (s *Store) GetMenu(_ context.Context, shopID, id string) (*domain.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.menus[id]
	if !ok || m.ShopID != shopID {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (s *Store) UpdateMenu(_ context.Context, menu domain.Menu) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.menus[menu.ID]
	if !ok || m.ShopID != menu.ShopID {
		return domain.ErrNotFound
	}
	menu.CreatedAt = m.CreatedAt
	menu.UpdatedAt = s.now()
	s.menus[menu.ID] = menu
	return nil
}

func (s *Store) DeleteMenu(_ context.Context, shopID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.menus[id]
	if !ok || m.ShopID != shopID {
		return domain.ErrNotFound
	}
	delete(s.menus, id)
	return nil
}

func (s *Store) ReorderMenus(_ context.Context, shopID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range ids {
		if m, ok := s.menus[id]; ok && m.ShopID == shopID {
			m.DisplayOrder = i
			m.UpdatedAt = s.now()
			s.menus[id] = m
		}
	}
	return nil
}

func (s *Store) ReplaceMenus(_ context.Context, shopID string, menus []domain.Menu) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, m := range s.menus {
		if m.ShopID == shopID {
			delete(s.menus, id)
		}
	}
	for _, m := range menus {
		s.menus[m.ID] = m
	}
	return nil
}

func (s *Store) CountMenus(_ context.Context, shopID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shopMenus(shopID)), nil
}

// Subscriptions ---------------------------------------------------------------

func (s *Store) GetSubscription(_ context.Context, shopID string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.ShopID == shopID {
			return &sub, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) CreateSubscription(_ context.Context, sub domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.ShopID == sub.ShopID {
			return domain.ErrDuplicate
		}
	}
	s.subscriptions[sub.ID] = sub
	return nil
}

func (s *Store) SaveSubscription(_ context.Context, sub domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[sub.ID]; !ok {
		return domain.ErrNotFound
	}
	s.subscriptions[sub.ID] = sub
	return nil
}

func (s *Store) ListSubscriptionsByStatus(_ context.Context, statuses ...domain.SubscriptionStatus) ([]domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Subscription{}
	for _, sub := range s.subscriptions {
		for _, st := range statuses {
			if sub.Status == st {
				out = append(out, sub)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.OrderID == payment.OrderID {
			return domain.ErrDuplicate
		}
	}
	s.payments[payment.ID] = payment
	return nil
}

func (s *Store) SavePayment(_ context.Context, payment domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[payment.ID]; !ok {
		return domain.ErrNotFound
	}
	s.payments[payment.ID] = payment
	return nil
}

func (s *Store) GetPaymentByOrderID(_ context.Context, orderID string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListPayments(_ context.Context, shopID string, page, pageSize int) ([]domain.Payment, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	s.mu.RLock()
	out := []domain.Payment{}
	for _, p := range s.payments {
		if p.ShopID == shopID {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

// Cache -----------------------------------------------------------------------

func (s *Store) liveLocked(key string) (entry, bool) {
	e, ok := s.keys[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.keys, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) setLocked(key, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.keys[key] = e
}

func (s *Store) SetIdempotency(ctx context.Context, key string) (bool, error) {
	return s.MarkOnce(ctx, "idem:"+key, 24*time.Hour)
}

func (s *Store) ReleaseIdempotency(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, "idem:"+key)
	return nil
}

func (s *Store) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.liveLocked(key); ok {
		return false, nil
	}
	s.setLocked(key, "1", ttl)
	return true, nil
}

func (s *Store) StorePinToken(_ context.Context, shopID, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked("pin-token:"+token, shopID, ttl)
	return nil
}

func (s *Store) ConsumePinToken(_ context.Context, shopID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := "pin-token:" + token
	e, ok := s.liveLocked(key)
	if !ok || e.value != shopID {
		return false, nil
	}
	delete(s.keys, key)
	return true, nil
}

func (s *Store) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked("revoked:"+jti, "1", ttl)
	return nil
}

func (s *Store) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.liveLocked("revoked:" + jti)
	return ok, nil
}

func (s *Store) ClaimToken(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	return s.MarkOnce(ctx, "revoked:"+jti, max(ttl, time.Second))
}

// SetClock replaces the time source used for expiry and update stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

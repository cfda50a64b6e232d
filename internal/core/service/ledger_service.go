package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/logging"
	"github.com/comings/prepaid-api/internal/metrics"
	"github.com/comings/prepaid-api/internal/port"
)

const maxNoteLength = 200

type ChargeInput struct {
	ShopID         string
	CustomerID     string
	ActualPayment  int64
	ServiceAmount  int64
	PaymentMethod  domain.PaymentMethod
	Note           string
	IdempotencyKey string
}

type DeductInput struct {
	ShopID         string
	CustomerID     string
	Amount         int64
	Note           string
	IdempotencyKey string
}

// LedgerService moves customer balances. Every change is one ledger row
// written together with the balance update.
type LedgerService struct {
	ledger    port.LedgerRepository
	customers port.CustomerRepository
	cache     port.CacheRepository
	events    port.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewLedgerService(
	ledger port.LedgerRepository,
	customers port.CustomerRepository,
	cache port.CacheRepository,
	events port.EventPublisher,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		ledger:    ledger,
		customers: customers,
		cache:     cache,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *LedgerService) Charge(ctx context.Context, in ChargeInput) (domain.Transaction, error) {
	switch {
	case in.ActualPayment <= 0:
		return domain.Transaction{}, domain.Invalid("actual_payment", "결제 금액은 0보다 커야 합니다")
	case in.ActualPayment > domain.MaxAmount:
		return domain.Transaction{}, domain.Invalid("actual_payment", "결제 금액은 1억원 이하여야 합니다")
	case in.ServiceAmount < 0:
		return domain.Transaction{}, domain.Invalid("service_amount", "서비스 금액은 0 이상이어야 합니다")
	case in.ServiceAmount > domain.MaxAmount:
		return domain.Transaction{}, domain.Invalid("service_amount", "서비스 금액은 1억원 이하여야 합니다")
	case !in.PaymentMethod.Valid():
		return domain.Transaction{}, domain.Invalid("payment_method", "결제 수단이 올바르지 않습니다")
	case len([]rune(in.Note)) > maxNoteLength:
		return domain.Transaction{}, domain.Invalid("note", "메모는 200자 이하여야 합니다")
	}

	entry := domain.Transaction{
		ID:            uuid.NewString(),
		ShopID:        in.ShopID,
		CustomerID:    in.CustomerID,
		Type:          domain.TransactionCharge,
		Amount:        in.ActualPayment + in.ServiceAmount,
		ActualPayment: in.ActualPayment,
		ServiceAmount: in.ServiceAmount,
		PaymentMethod: in.PaymentMethod,
		Note:          in.Note,
		CreatedAt:     s.now(),
	}
	return s.apply(ctx, entry, in.IdempotencyKey, domain.EventCharged)
}

func (s *LedgerService) Deduct(ctx context.Context, in DeductInput) (domain.Transaction, error) {
	switch {
	case in.Amount <= 0:
		return domain.Transaction{}, domain.Invalid("amount", "차감 금액은 0보다 커야 합니다")
	case in.Amount > domain.MaxAmount:
		return domain.Transaction{}, domain.Invalid("amount", "차감 금액은 1억원 이하여야 합니다")
	case len([]rune(in.Note)) > maxNoteLength:
		return domain.Transaction{}, domain.Invalid("note", "메모는 200자 이하여야 합니다")
	}

	entry := domain.Transaction{
		ID:         uuid.NewString(),
		ShopID:     in.ShopID,
		CustomerID: in.CustomerID,
		Type:       domain.TransactionDeduct,
		Amount:     in.Amount,
		Note:       in.Note,
		CreatedAt:  s.now(),
	}
	return s.apply(ctx, entry, in.IdempotencyKey, domain.EventDeducted)
}

func (s *LedgerService) apply(ctx context.Context, entry domain.Transaction, idempotencyKey string, eventType domain.EventType) (domain.Transaction, error) {
	kind := string(entry.Type)

	release, err := s.claim(ctx, entry.ShopID, idempotencyKey)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx, err := s.ledger.ApplyEntry(ctx, entry)
	metrics.RecordLedger(kind, entry.Amount, err)
	if err != nil {
		release()
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Transaction{}, withMessage(domain.ErrNotFound, "고객을 찾을 수 없습니다")
		}
		return domain.Transaction{}, err
	}

	s.logger.Info("ledger entry",
		"type", kind,
		"shop_id", logging.ShortID(tx.ShopID),
		"customer_id", logging.ShortID(tx.CustomerID),
		"amount", tx.Amount,
		"balance_after", tx.BalanceAfter,
	)
	s.emit(ctx, eventType, tx)
	return tx, nil
}

// claim reserves an idempotency key for 24h. The returned func frees it
// again so a failed request can be retried with the same key.
func (s *LedgerService) claim(ctx context.Context, shopID, key string) (func(), error) {
	if key == "" {
		return func() {}, nil
	}

	cacheKey := fmt.Sprintf("ledger:%s:%s", shopID, key)
	ok, err := s.cache.SetIdempotency(ctx, cacheKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, withMessage(ErrDuplicateRequest, "중복된 요청입니다")
	}

	return func() {
		if err := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), cacheKey); err != nil {
			s.logger.Error("idempotency release failed", "key", cacheKey, "error", err)
		}
	}, nil
}

func (s *LedgerService) emit(ctx context.Context, eventType domain.EventType, tx domain.Transaction) {
	publish(ctx, s.events, s.logger, domain.Event{
		Type:          eventType,
		ShopID:        tx.ShopID,
		CustomerID:    tx.CustomerID,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Balance:       tx.BalanceAfter,
		OccurredAt:    tx.CreatedAt,
	})
}

// Cancel reverses a charge or deduct. A charge can only be cancelled while
// the customer still holds enough balance to give it back.
func (s *LedgerService) Cancel(ctx context.Context, shopID, transactionID, reason string) (domain.Transaction, error) {
	original, err := s.ledger.GetTransaction(ctx, shopID, transactionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Transaction{}, withMessage(domain.ErrNotFound, "거래를 찾을 수 없습니다")
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	if original.Type == domain.TransactionCancel || original.IsCancelled() {
		return domain.Transaction{}, withMessage(domain.ErrAlreadyCancelled, "이미 취소된 거래입니다")
	}

	note := "거래 취소: " + original.ID
	if reason != "" {
		note += " - " + reason
	}
	cancel := domain.Transaction{
		ID:         uuid.NewString(),
		ShopID:     shopID,
		CustomerID: original.CustomerID,
		Type:       domain.TransactionCancel,
		Amount:     original.Amount,
		Note:       note,
		OriginalID: original.ID,
		CreatedAt:  s.now(),
	}

	tx, err := s.ledger.CancelEntry(ctx, original.ID, cancel)
	metrics.RecordLedger(string(domain.TransactionCancel), original.Amount, err)
	if errors.Is(err, domain.ErrAlreadyCancelled) {
		return domain.Transaction{}, withMessage(domain.ErrAlreadyCancelled, "이미 취소된 거래입니다")
	}
	if err != nil {
		return domain.Transaction{}, err
	}

	s.logger.Info("ledger entry cancelled",
		"shop_id", logging.ShortID(shopID),
		"original_id", logging.ShortID(original.ID),
		"original_type", original.Type,
		"amount", original.Amount,
		"balance_after", tx.BalanceAfter,
	)
	s.emit(ctx, domain.EventCancelled, tx)
	return tx, nil
}

// List pages the shop's ledger. Filtering by a customer of another shop is forbidden.
func (s *LedgerService) List(ctx context.Context, q domain.TransactionQuery) (domain.TransactionPage, error) {
	q.Normalize()
	if q.CustomerID != "" {
		if _, err := s.customers.GetCustomer(ctx, q.ShopID, q.CustomerID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.TransactionPage{}, withMessage(ErrForbidden, "접근 권한이 없습니다")
			}
			return domain.TransactionPage{}, err
		}
	}
	return s.ledger.ListTransactions(ctx, q)
}

func (s *LedgerService) Balance(ctx context.Context, shopID, customerID string) (domain.Customer, error) {
	customer, err := s.customers.GetCustomer(ctx, shopID, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Customer{}, withMessage(domain.ErrNotFound, "고객을 찾을 수 없습니다")
	}
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

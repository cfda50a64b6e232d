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

const (
	subscriptionOrderName = "카페 선결제 관리 서비스 구독"
	trialReminderDays     = 3
	nextPaymentLayout     = "2006년 01월 02일"

	suspendedMessage = "구독이 정지되었습니다. 결제 후 이용해 주세요."
)

type SubscriptionConfig struct {
	MonthlyPrice  int64
	TrialDays     int
	GraceDays     int
	TossClientKey string
}

type SubscriptionService struct {
	subs    port.SubscriptionRepository
	shops   port.ShopRepository
	cache   port.CacheRepository
	billing port.BillingGateway
	events  port.EventPublisher
	cfg     SubscriptionConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewSubscriptionService(
	subs port.SubscriptionRepository,
	shops port.ShopRepository,
	cache port.CacheRepository,
	billing port.BillingGateway,
	events port.EventPublisher,
	cfg SubscriptionConfig,
	logger *slog.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subs:    subs,
		shops:   shops,
		cache:   cache,
		billing: billing,
		events:  events,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *SubscriptionService) Config() SubscriptionConfig {
	return s.cfg
}

// GetOrCreate returns the shop's subscription, starting a trial if it has none.
func (s *SubscriptionService) GetOrCreate(ctx context.Context, shopID string) (domain.Subscription, error) {
	sub, err := s.subs.GetSubscription(ctx, shopID)
	if err == nil {
		return *sub, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Subscription{}, err
	}

	trial := domain.NewTrialSubscription(uuid.NewString(), shopID, s.cfg.MonthlyPrice, s.cfg.TrialDays, s.now())
	if err := s.subs.CreateSubscription(ctx, trial); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// created concurrently
			sub, err := s.subs.GetSubscription(ctx, shopID)
			if err != nil {
				return domain.Subscription{}, err
			}
			return *sub, nil
		}
		return domain.Subscription{}, fmt.Errorf("create trial: %w", err)
	}

	metrics.RecordSubscriptionTransition(string(domain.SubscriptionTrial))
	s.logger.Info("trial started", "shop_id", logging.ShortID(shopID), "ends_at", trial.TrialEndsAt)
	return trial, nil
}

// Current returns the subscription after applying any transition that is due.
func (s *SubscriptionService) Current(ctx context.Context, shopID string) (domain.Subscription, error) {
	sub, err := s.GetOrCreate(ctx, shopID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if err := s.checkStatus(ctx, &sub); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

// checkStatus suspends expired trials without a card and lapsed grace or
// cancelled periods. Trials with a card are left for the renewal sweep.
func (s *SubscriptionService) checkStatus(ctx context.Context, sub *domain.Subscription) error {
	now := s.now()
	if !sub.PeriodEnded(now) {
		return nil
	}

	switch sub.Status {
	case domain.SubscriptionTrial:
		if sub.HasBillingKey() {
			return nil
		}
	case domain.SubscriptionGrace, domain.SubscriptionCancelled:
	default:
		return nil
	}
	return s.suspend(ctx, sub)
}

func (s *SubscriptionService) suspend(ctx context.Context, sub *domain.Subscription) error {
	sub.Suspend(s.now())
	if err := s.save(ctx, *sub); err != nil {
		return err
	}
	publish(ctx, s.events, s.logger, domain.Event{Type: domain.EventSuspended, ShopID: sub.ShopID})
	return nil
}

func (s *SubscriptionService) save(ctx context.Context, sub domain.Subscription) error {
	if err := s.subs.SaveSubscription(ctx, sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	metrics.RecordSubscriptionTransition(string(sub.Status))
	s.logger.Info("subscription updated", "shop_id", logging.ShortID(sub.ShopID), "status", sub.Status)
	return nil
}

// RequireActive fails with ErrSubscriptionSuspended when the shop is read only.
func (s *SubscriptionService) RequireActive(ctx context.Context, shopID string) error {
	sub, err := s.Current(ctx, shopID)
	if err != nil {
		return err
	}
	if sub.IsReadOnly() {
		return withMessage(ErrSubscriptionSuspended, suspendedMessage)
	}
	return nil
}

func (s *SubscriptionService) existing(ctx context.Context, shopID string) (domain.Subscription, error) {
	sub, err := s.subs.GetSubscription(ctx, shopID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Subscription{}, withMessage(domain.ErrNotFound, "구독 정보를 찾을 수 없습니다")
	}
	if err != nil {
		return domain.Subscription{}, err
	}
	return *sub, nil
}

// RegisterBillingKey exchanges the card widget's authKey for a billing key.
func (s *SubscriptionService) RegisterBillingKey(ctx context.Context, shopID, authKey, customerKey string) (domain.Subscription, error) {
	sub, err := s.GetOrCreate(ctx, shopID)
	if err != nil {
		return domain.Subscription{}, err
	}

	result, err := s.billing.IssueBillingKey(ctx, authKey, customerKey)
	if err != nil || !result.Success {
		message := result.ErrorMessage
		if message == "" {
			message = "빌링키 발급에 실패했습니다"
		}
		s.logger.Warn("billing key issue failed",
			"shop_id", logging.ShortID(shopID),
			"code", result.ErrorCode,
			"error", err,
		)
		return domain.Subscription{}, &UpstreamError{Provider: "toss", Code: result.ErrorCode, Message: message}
	}

	sub.BillingKey = result.BillingKey
	sub.CardCompany = result.CardCompany
	sub.CardNumber = result.CardNumber
	sub.UpdatedAt = s.now()
	if err := s.subs.SaveSubscription(ctx, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("save billing key: %w", err)
	}

	s.logger.Info("billing key registered", "shop_id", logging.ShortID(shopID), "card", result.CardNumber)
	return sub, nil
}

func (s *SubscriptionService) RemoveBillingKey(ctx context.Context, shopID string) (domain.Subscription, error) {
	sub, err := s.existing(ctx, shopID)
	if err != nil {
		return domain.Subscription{}, err
	}

	sub.BillingKey = ""
	sub.CardCompany = ""
	sub.CardNumber = ""
	sub.UpdatedAt = s.now()
	if err := s.subs.SaveSubscription(ctx, sub); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

// Subscribe charges the registered card for the first period.
func (s *SubscriptionService) Subscribe(ctx context.Context, shopID string) (domain.Subscription, error) {
	sub, err := s.existing(ctx, shopID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if !sub.HasBillingKey() {
		return domain.Subscription{}, withMessage(ErrBillingKeyRequired, "등록된 결제 수단이 없습니다")
	}

	payment, err := s.charge(ctx, sub)
	if err != nil {
		return domain.Subscription{}, err
	}
	if payment.Status != domain.PaymentSuccess {
		return domain.Subscription{}, &UpstreamError{Provider: "toss", Code: payment.FailureCode, Message: payment.FailureMessage}
	}

	if err := s.activate(ctx, &sub); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

func (s *SubscriptionService) activate(ctx context.Context, sub *domain.Subscription) error {
	sub.Activate(s.now())
	if err := s.save(ctx, *sub); err != nil {
		return err
	}
	publish(ctx, s.events, s.logger, domain.Event{
		Type:   domain.EventActivated,
		ShopID: sub.ShopID,
		Amount: sub.MonthlyAmount,
		Attrs: map[string]string{
			"next_payment_date": sub.CurrentPeriodEnd.In(domain.Seoul).Format(nextPaymentLayout),
		},
	})
	return nil
}

// charge runs one billing-key payment and records its outcome. Gateway
// failures end up in the returned payment, not in the error.
func (s *SubscriptionService) charge(ctx context.Context, sub domain.Subscription) (domain.Payment, error) {
	now := s.now()
	payment := domain.Payment{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		ShopID:         sub.ShopID,
		Amount:         sub.MonthlyAmount,
		OrderID:        domain.SubscriptionOrderID(sub.ShopID, now),
		Status:         domain.PaymentPending,
		CreatedAt:      now,
	}
	if err := s.subs.CreatePayment(ctx, payment); err != nil {
		return domain.Payment{}, fmt.Errorf("create payment: %w", err)
	}

	result, err := s.billing.ChargeBillingKey(ctx, sub.BillingKey, sub.ShopID, sub.MonthlyAmount, payment.OrderID, subscriptionOrderName)
	if err != nil && result.ErrorCode == "" {
		result.ErrorCode = "NETWORK_ERROR"
		result.ErrorMessage = err.Error()
	}

	if result.Success {
		paidAt := s.now()
		if result.ApprovedAt != nil {
			paidAt = *result.ApprovedAt
		}
		payment.Status = domain.PaymentSuccess
		payment.PaymentKey = result.PaymentKey
		payment.CardCompany = result.CardCompany
		payment.CardNumber = result.CardNumber
		payment.PaidAt = &paidAt
	} else {
		payment.Status = domain.PaymentFailed
		payment.FailureCode = result.ErrorCode
		payment.FailureMessage = result.ErrorMessage
		if payment.FailureCode == "" {
			payment.FailureCode = "UNKNOWN"
		}
		if payment.FailureMessage == "" {
			payment.FailureMessage = "결제에 실패했습니다"
		}
	}

	if err := s.subs.SavePayment(ctx, payment); err != nil {
		return domain.Payment{}, fmt.Errorf("save payment: %w", err)
	}

	s.logger.Info("subscription charge",
		"shop_id", logging.ShortID(sub.ShopID),
		"order_id", payment.OrderID,
		"status", payment.Status,
		"code", payment.FailureCode,
	)
	return payment, nil
}

func (s *SubscriptionService) Cancel(ctx context.Context, shopID, reason string) (domain.Subscription, error) {
	sub, err := s.existing(ctx, shopID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if sub.Status != domain.SubscriptionActive && sub.Status != domain.SubscriptionGrace {
		return domain.Subscription{}, withMessage(ErrInvalidTransition, "취소할 수 있는 구독 상태가 아닙니다")
	}

	sub.Cancel(s.now(), reason)
	if err := s.save(ctx, sub); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

func (s *SubscriptionService) Reactivate(ctx context.Context, shopID string) (domain.Subscription, error) {
	sub, err := s.existing(ctx, shopID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if sub.Status != domain.SubscriptionCancelled {
		return domain.Subscription{}, withMessage(ErrInvalidTransition, "취소된 구독만 재활성화할 수 있습니다")
	}

	sub.Reactivate(s.now())
	if err := s.save(ctx, sub); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

func (s *SubscriptionService) Payments(ctx context.Context, shopID string, page, pageSize int) ([]domain.Payment, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return s.subs.ListPayments(ctx, shopID, page, pageSize)
}

// UpdatePhone sets the number that receives billing notifications.
func (s *SubscriptionService) UpdatePhone(ctx context.Context, shopID, phone string) error {
	digits := domain.DigitsOnly(phone)
	if len(digits) < 10 || len(digits) > 15 {
		return domain.Invalid("phone", "연락처 형식이 올바르지 않습니다")
	}
	return s.shops.UpdateShopPhone(ctx, shopID, digits)
}

const webhookPaymentStatusChanged = "PAYMENT_STATUS_CHANGED"

// HandleWebhook applies a payment status change pushed by Toss. Unknown
// events and orders are acknowledged and ignored.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, eventType, orderID, status string) error {
	if eventType != webhookPaymentStatusChanged || orderID == "" {
		s.logger.Debug("webhook ignored", "event_type", eventType)
		return nil
	}

	payment, err := s.subs.GetPaymentByOrderID(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("webhook for unknown order", "order_id", orderID)
		return nil
	}
	if err != nil {
		return err
	}

	switch status {
	case "DONE":
		payment.Status = domain.PaymentSuccess
		if payment.PaidAt == nil {
			now := s.now()
			payment.PaidAt = &now
		}
	case "CANCELED":
		payment.Status = domain.PaymentCancelled
	case "ABORTED", "EXPIRED":
		payment.Status = domain.PaymentFailed
		payment.FailureCode = status
	default:
		return nil
	}

	if err := s.subs.SavePayment(ctx, *payment); err != nil {
		return err
	}
	s.logger.Info("webhook applied", "order_id", orderID, "status", payment.Status)
	return nil
}

type SweepReport struct {
	Checked   int
	Renewed   int
	Failed    int
	Suspended int
	Reminded  int
}

// Sweep renews, downgrades and reminds every subscription that is not
// suspended yet. One shop failing does not stop the others.
func (s *SubscriptionService) Sweep(ctx context.Context) (SweepReport, error) {
	subs, err := s.subs.ListSubscriptionsByStatus(ctx,
		domain.SubscriptionTrial,
		domain.SubscriptionActive,
		domain.SubscriptionGrace,
		domain.SubscriptionCancelled,
	)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list subscriptions: %w", err)
	}

	var report SweepReport
	for i := range subs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++
		if err := s.sweepOne(ctx, &subs[i], &report); err != nil {
			s.logger.Error("subscription sweep failed", "shop_id", logging.ShortID(subs[i].ShopID), "error", err)
		}
	}

	s.logger.Info("subscription sweep done",
		"checked", report.Checked,
		"renewed", report.Renewed,
		"failed", report.Failed,
		"suspended", report.Suspended,
		"reminded", report.Reminded,
	)
	return report, nil
}

func (s *SubscriptionService) sweepOne(ctx context.Context, sub *domain.Subscription, report *SweepReport) error {
	now := s.now()

	if !sub.PeriodEnded(now) {
		if sub.Status == domain.SubscriptionTrial {
			return s.remindTrial(ctx, *sub, report)
		}
		return nil
	}

	switch sub.Status {
	case domain.SubscriptionTrial, domain.SubscriptionActive:
		if !sub.HasBillingKey() {
			if sub.Status == domain.SubscriptionTrial {
				report.Suspended++
				return s.suspend(ctx, sub)
			}
			report.Failed++
			return s.startGrace(ctx, sub)
		}

		payment, err := s.charge(ctx, *sub)
		if err != nil {
			return err
		}
		if payment.Status == domain.PaymentSuccess {
			report.Renewed++
			return s.activate(ctx, sub)
		}
		report.Failed++
		return s.startGrace(ctx, sub)

	case domain.SubscriptionGrace, domain.SubscriptionCancelled:
		report.Suspended++
		return s.suspend(ctx, sub)
	}
	return nil
}

func (s *SubscriptionService) startGrace(ctx context.Context, sub *domain.Subscription) error {
	sub.StartGrace(s.now(), s.cfg.GraceDays)
	if err := s.save(ctx, *sub); err != nil {
		return err
	}
	publish(ctx, s.events, s.logger, domain.Event{
		Type:   domain.EventPaymentFailed,
		ShopID: sub.ShopID,
		Attrs:  map[string]string{"grace_days": fmt.Sprint(s.cfg.GraceDays)},
	})
	return nil
}

func (s *SubscriptionService) remindTrial(ctx context.Context, sub domain.Subscription, report *SweepReport) error {
	days := sub.DaysRemaining(s.now())
	if days == nil || *days > trialReminderDays {
		return nil
	}

	ttl := sub.TrialEndsAt.Sub(s.now()) + 24*time.Hour
	first, err := s.cache.MarkOnce(ctx, "trial-expiring:"+sub.ShopID, ttl)
	if err != nil {
		return fmt.Errorf("mark reminder: %w", err)
	}
	if !first {
		return nil
	}

	report.Reminded++
	publish(ctx, s.events, s.logger, domain.Event{
		Type:   domain.EventTrialExpiring,
		ShopID: sub.ShopID,
		Attrs:  map[string]string{"days_remaining": fmt.Sprint(*days)},
	})
	return nil
}

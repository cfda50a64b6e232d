package domain

import (
	"fmt"
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "TRIAL"
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionGrace     SubscriptionStatus = "GRACE"
	SubscriptionSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

const BillingPeriod = 30 * 24 * time.Hour

type Subscription struct {
	ID                 string
	ShopID             string
	Status             SubscriptionStatus
	TrialStartedAt     *time.Time
	TrialEndsAt        *time.Time
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	BillingKey         string
	CardCompany        string
	CardNumber         string
	MonthlyAmount      int64
	GraceEndsAt        *time.Time
	SuspendedAt        *time.Time
	CancelledAt        *time.Time
	CancelReason       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func NewTrialSubscription(id, shopID string, amount int64, trialDays int, now time.Time) Subscription {
	end := now.AddDate(0, 0, trialDays)
	return Subscription{
		ID:             id,
		ShopID:         shopID,
		Status:         SubscriptionTrial,
		TrialStartedAt: &now,
		TrialEndsAt:    &end,
		MonthlyAmount:  amount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s Subscription) HasBillingKey() bool {
	return s.BillingKey != ""
}

// IsActive reports whether the shop may use the service. Cancelled
// subscriptions stay usable until the paid period ends.
func (s Subscription) IsActive() bool {
	return s.Status != SubscriptionSuspended
}

func (s Subscription) IsReadOnly() bool {
	return s.Status == SubscriptionSuspended
}

// DaysRemaining counts whole days left in the trial or grace window.
func (s Subscription) DaysRemaining(now time.Time) *int {
	var end *time.Time
	switch s.Status {
	case SubscriptionTrial:
		end = s.TrialEndsAt
	case SubscriptionGrace:
		end = s.GraceEndsAt
	}
	if end == nil {
		return nil
	}
	days := int(end.Sub(now) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	return &days
}

// PeriodEnded reports whether the window governing the current status has passed.
func (s Subscription) PeriodEnded(now time.Time) bool {
	var end *time.Time
	switch s.Status {
	case SubscriptionTrial:
		end = s.TrialEndsAt
	case SubscriptionActive, SubscriptionCancelled:
		end = s.CurrentPeriodEnd
	case SubscriptionGrace:
		end = s.GraceEndsAt
	}
	return end != nil && now.After(*end)
}

func (s *Subscription) Activate(now time.Time) {
	end := now.Add(BillingPeriod)
	s.Status = SubscriptionActive
	s.CurrentPeriodStart = &now
	s.CurrentPeriodEnd = &end
	s.GraceEndsAt = nil
	s.SuspendedAt = nil
	s.UpdatedAt = now
}

func (s *Subscription) StartGrace(now time.Time, graceDays int) {
	end := now.AddDate(0, 0, graceDays)
	s.Status = SubscriptionGrace
	s.GraceEndsAt = &end
	s.UpdatedAt = now
}

func (s *Subscription) Suspend(now time.Time) {
	s.Status = SubscriptionSuspended
	s.SuspendedAt = &now
	s.UpdatedAt = now
}

func (s *Subscription) Cancel(now time.Time, reason string) {
	s.Status = SubscriptionCancelled
	s.CancelledAt = &now
	s.CancelReason = reason
	s.UpdatedAt = now
}

func (s *Subscription) Reactivate(now time.Time) {
	s.Status = SubscriptionActive
	s.CancelledAt = nil
	s.CancelReason = ""
	s.UpdatedAt = now
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

type Payment struct {
	ID             string
	SubscriptionID string
	ShopID         string
	Amount         int64
	PaymentKey     string
	OrderID        string
	Status         PaymentStatus
	CardCompany    string
	CardNumber     string
	FailureCode    string
	FailureMessage string
	PaidAt         *time.Time
	CreatedAt      time.Time
}

// SubscriptionOrderID builds the merchant order id sent to the payment gateway.
func SubscriptionOrderID(shopID string, now time.Time) string {
	prefix := shopID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("SUB_%s_%s", prefix, now.In(Seoul).Format("20060102150405"))
}

// BillingKeyResult is the outcome of registering a card for automatic billing.
type BillingKeyResult struct {
	Success      bool
	BillingKey   string
	CardCompany  string
	CardNumber   string
	ErrorCode    string
	ErrorMessage string
}

// ChargeResult is the outcome of a billing-key charge.
type ChargeResult struct {
	Success      bool
	PaymentKey   string
	OrderID      string
	Amount       int64
	Status       string
	ApprovedAt   *time.Time
	CardCompany  string
	CardNumber   string
	ErrorCode    string
	ErrorMessage string
}

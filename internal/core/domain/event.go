package domain

import "time"

type EventType string

const (
	EventCharged       EventType = "transaction.charged"
	EventDeducted      EventType = "transaction.deducted"
	EventCancelled     EventType = "transaction.cancelled"
	EventActivated     EventType = "subscription.activated"
	EventPaymentFailed EventType = "subscription.payment_failed"
	EventSuspended     EventType = "subscription.suspended"
	EventTrialExpiring EventType = "subscription.trial_expiring"
)

// Event is a fact emitted after a state change commits.
type Event struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	ShopID        string            `json:"shop_id"`
	CustomerID    string            `json:"customer_id,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Amount        int64             `json:"amount,omitempty"`
	Balance       int64             `json:"balance,omitempty"`
	Attrs         map[string]string `json:"attrs,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

package domain

import "time"

type TransactionType string

const (
	TransactionCharge TransactionType = "CHARGE"
	TransactionDeduct TransactionType = "DEDUCT"
	TransactionCancel TransactionType = "CANCEL"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionCharge, TransactionDeduct, TransactionCancel:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCard     PaymentMethod = "CARD"
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
)

// MaxAmount caps every single charge, service or deduct amount (1억원).
const MaxAmount int64 = 100_000_000

var PaymentMethods = []PaymentMethod{PaymentCard, PaymentCash, PaymentTransfer}

func (m PaymentMethod) Valid() bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

// Transaction is one immutable ledger row. Amount is always positive; the
// type decides the direction of the balance change.
type Transaction struct {
	ID            string
	ShopID        string
	CustomerID    string
	CustomerName  string
	Type          TransactionType
	Amount        int64
	ActualPayment int64
	ServiceAmount int64
	PaymentMethod PaymentMethod
	Note          string
	BalanceAfter  int64
	OriginalID    string
	CancelledByID string
	CreatedAt     time.Time
}

func (t Transaction) IsCancelled() bool {
	return t.CancelledByID != ""
}

// Delta is the signed balance change applied by a charge or deduct.
func (t Transaction) Delta() int64 {
	switch t.Type {
	case TransactionCharge:
		return t.Amount
	case TransactionDeduct:
		return -t.Amount
	}
	return 0
}

// ReversalDelta is the balance change applied when t is cancelled.
func (t Transaction) ReversalDelta() int64 {
	return -t.Delta()
}

// TransactionQuery pages a shop's ledger newest first. From is inclusive, To exclusive.
type TransactionQuery struct {
	ShopID     string
	CustomerID string
	Type       TransactionType
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

func (q *TransactionQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
}

func (q TransactionQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

type TransactionPage struct {
	Transactions []Transaction
	Total        int
	TotalCharge  int64
	TotalDeduct  int64
}

// AnalyticsFilter selects ledger rows for aggregation. From is inclusive, To
// exclusive, zero times are open bounds.
type AnalyticsFilter struct {
	Types []TransactionType
	From  time.Time
	To    time.Time
}

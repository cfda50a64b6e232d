package handler

import (
	"net/http"
	"strings"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/core/service"
)

type chargeRequest struct {
	CustomerID    string `json:"customer_id" validate:"required"`
	ActualPayment int64  `json:"actual_payment" validate:"gt=0,lte=100000000"`
	ServiceAmount int64  `json:"service_amount" validate:"gte=0,lte=100000000"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=CARD CASH TRANSFER"`
	Note          string `json:"note" validate:"max=200"`
}

type deductRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Amount     int64  `json:"amount" validate:"gt=0,lte=100000000"`
	Note       string `json:"note" validate:"max=200"`
}

type cancelRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	Reason        string `json:"reason" validate:"max=200"`
}

type transactionResponse struct {
	ID            string  `json:"id"`
	CustomerID    string  `json:"customer_id"`
	CustomerName  *string `json:"customer_name,omitempty"`
	Type          string  `json:"type"`
	Amount        int64   `json:"amount"`
	ActualPayment int64   `json:"actual_payment"`
	ServiceAmount int64   `json:"service_amount"`
	PaymentMethod *string `json:"payment_method"`
	Note          *string `json:"note"`
	CreatedAt     string  `json:"created_at"`
	IsCancelled   bool    `json:"is_cancelled"`
	CancelledByID *string `json:"cancelled_by_id"`
	NewBalance    *int64  `json:"new_balance,omitempty"`
}

func newTransactionResponse(t domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		CustomerID:    t.CustomerID,
		CustomerName:  optional(t.CustomerName),
		Type:          string(t.Type),
		Amount:        t.Amount,
		ActualPayment: t.ActualPayment,
		ServiceAmount: t.ServiceAmount,
		PaymentMethod: optional(string(t.PaymentMethod)),
		Note:          optional(t.Note),
		CreatedAt:     seoulTime(t.CreatedAt),
		IsCancelled:   t.IsCancelled(),
		CancelledByID: optional(t.CancelledByID),
	}
}

// newMutationResponse adds the customer's balance after the change.
func newMutationResponse(t domain.Transaction) transactionResponse {
	out := newTransactionResponse(t)
	balance := t.BalanceAfter
	out.NewBalance = &balance
	return out
}

type transactionListResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
	TotalCharge  int64                 `json:"total_charge"`
	TotalDeduct  int64                 `json:"total_deduct"`
}

func (h *HTTPHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := transactionQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q.Normalize()

	page, err := h.svc.Ledger.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := transactionListResponse{
		Transactions: make([]transactionResponse, 0, len(page.Transactions)),
		Total:        page.Total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalCharge:  page.TotalCharge,
		TotalDeduct:  page.TotalDeduct,
	}
	for _, t := range page.Transactions {
		out.Transactions = append(out.Transactions, newTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func transactionQuery(r *http.Request) (domain.TransactionQuery, error) {
	q := domain.TransactionQuery{
		ShopID:     ShopID(r.Context()),
		CustomerID: strings.TrimSpace(r.URL.Query().Get("customer_id")),
	}
	if t := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type"))); t != "" {
		q.Type = domain.TransactionType(t)
		if !q.Type.Valid() {
			return q, domain.Invalid("type", "CHARGE, DEDUCT, CANCEL 중 하나여야 합니다")
		}
	}

	var err error
	if q.Page, err = queryInt(r, "page", 1); err != nil {
		return q, err
	}
	if q.PageSize, err = queryInt(r, "page_size", 20); err != nil {
		return q, err
	}
	if q.From, err = queryDate(r, "start_date"); err != nil {
		return q, err
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		return q, err
	}
	if end != nil {
		// end_date is inclusive
		next := end.AddDate(0, 0, 1)
		q.To = &next
	}
	return q, nil
}

func (h *HTTPHandler) Charge(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.svc.Ledger.Charge(r.Context(), service.ChargeInput{
		ShopID:         ShopID(r.Context()),
		CustomerID:     req.CustomerID,
		ActualPayment:  req.ActualPayment,
		ServiceAmount:  req.ServiceAmount,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		Note:           strings.TrimSpace(req.Note),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMutationResponse(tx))
}

func (h *HTTPHandler) Deduct(w http.ResponseWriter, r *http.Request) {
	var req deductRequest
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.svc.Ledger.Deduct(r.Context(), service.DeductInput{
		ShopID:         ShopID(r.Context()),
		CustomerID:     req.CustomerID,
		Amount:         req.Amount,
		Note:           strings.TrimSpace(req.Note),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMutationResponse(tx))
}

func (h *HTTPHandler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.svc.Ledger.Cancel(r.Context(), ShopID(r.Context()), req.TransactionID, strings.TrimSpace(req.Reason))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMutationResponse(tx))
}

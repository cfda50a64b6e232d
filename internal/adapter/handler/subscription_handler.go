package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/comings/prepaid-api/internal/core/domain"
)

type billingKeyRequest struct {
	AuthKey     string `json:"auth_key" validate:"required"`
	CustomerKey string `json:"customer_key" validate:"required"`
}

type subscriptionCancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type phoneRequest struct {
	Phone string `json:"phone" validate:"required,min=10,max=20"`
}

type subscriptionResponse struct {
	ID                 string  `json:"id"`
	ShopID             string  `json:"shop_id"`
	Status             string  `json:"status"`
	TrialStartedAt     *string `json:"trial_started_at"`
	TrialEndsAt        *string `json:"trial_ends_at"`
	CurrentPeriodStart *string `json:"current_period_start"`
	CurrentPeriodEnd   *string `json:"current_period_end"`
	HasBillingKey      bool    `json:"has_billing_key"`
	CardCompany        *string `json:"card_company"`
	CardNumber         *string `json:"card_number"`
	MonthlyAmount      int64   `json:"monthly_amount"`
	GracePeriodEndsAt  *string `json:"grace_period_ends_at"`
	SuspendedAt        *string `json:"suspended_at"`
	CancelledAt        *string `json:"cancelled_at"`
	DaysRemaining      *int    `json:"days_remaining"`
	IsActive           bool    `json:"is_active"`
	IsReadOnly         bool    `json:"is_read_only"`
	CreatedAt          string  `json:"created_at"`
}

func newSubscriptionResponse(s domain.Subscription, now time.Time) subscriptionResponse {
	return subscriptionResponse{
		ID:                 s.ID,
		ShopID:             s.ShopID,
		Status:             string(s.Status),
		TrialStartedAt:     timeString(s.TrialStartedAt),
		TrialEndsAt:        timeString(s.TrialEndsAt),
		CurrentPeriodStart: timeString(s.CurrentPeriodStart),
		CurrentPeriodEnd:   timeString(s.CurrentPeriodEnd),
		HasBillingKey:      s.HasBillingKey(),
		CardCompany:        optional(s.CardCompany),
		CardNumber:         optional(s.CardNumber),
		MonthlyAmount:      s.MonthlyAmount,
		GracePeriodEndsAt:  timeString(s.GraceEndsAt),
		SuspendedAt:        timeString(s.SuspendedAt),
		CancelledAt:        timeString(s.CancelledAt),
		DaysRemaining:      s.DaysRemaining(now),
		IsActive:           s.IsActive(),
		IsReadOnly:         s.IsReadOnly(),
		CreatedAt:          seoulTime(s.CreatedAt),
	}
}

type subscriptionActionResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Subscription subscriptionResponse `json:"subscription"`
}

func (h *HTTPHandler) subscriptionAction(w http.ResponseWriter, r *http.Request, sub domain.Subscription, err error, message string) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionActionResponse{
		Success:      true,
		Message:      message,
		Subscription: newSubscriptionResponse(sub, time.Now()),
	})
}

type paymentResponse struct {
	ID             string  `json:"id"`
	Amount         int64   `json:"amount"`
	OrderID        string  `json:"order_id"`
	Status         string  `json:"status"`
	CardCompany    *string `json:"card_company"`
	CardNumber     *string `json:"card_number"`
	FailureMessage *string `json:"failure_message"`
	PaidAt         *string `json:"paid_at"`
	CreatedAt      string  `json:"created_at"`
}

func (h *HTTPHandler) SubscriptionConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.svc.Subscription.Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"monthly_price":   cfg.MonthlyPrice,
		"trial_days":      cfg.TrialDays,
		"grace_days":      cfg.GraceDays,
		"toss_client_key": cfg.TossClientKey,
	})
}

func (h *HTTPHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Subscription.Current(r.Context(), ShopID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubscriptionResponse(sub, time.Now()))
}

func (h *HTTPHandler) RegisterBillingKey(w http.ResponseWriter, r *http.Request) {
	var req billingKeyRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.svc.Subscription.RegisterBillingKey(r.Context(), ShopID(r.Context()), req.AuthKey, req.CustomerKey)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"card_company": sub.CardCompany,
		"card_number":  sub.CardNumber,
		"message":      "카드가 등록되었습니다",
	})
}

func (h *HTTPHandler) RemoveBillingKey(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Subscription.RemoveBillingKey(r.Context(), ShopID(r.Context()))
	h.subscriptionAction(w, r, sub, err, "카드가 삭제되었습니다")
}

func (h *HTTPHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Subscription.Subscribe(r.Context(), ShopID(r.Context()))
	h.subscriptionAction(w, r, sub, err, "구독이 시작되었습니다")
}

func (h *HTTPHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionCancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.svc.Subscription.Cancel(r.Context(), ShopID(r.Context()), req.Reason)
	h.subscriptionAction(w, r, sub, err, "구독이 취소되었습니다. 현재 결제 기간까지 서비스를 이용할 수 있습니다.")
}

func (h *HTTPHandler) ReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Subscription.Reactivate(r.Context(), ShopID(r.Context()))
	h.subscriptionAction(w, r, sub, err, "구독이 재활성화되었습니다")
}

func (h *HTTPHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", 10)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payments, total, err := h.svc.Subscription.Payments(r.Context(), ShopID(r.Context()), page, pageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse{
			ID:             p.ID,
			Amount:         p.Amount,
			OrderID:        p.OrderID,
			Status:         string(p.Status),
			CardCompany:    optional(p.CardCompany),
			CardNumber:     optional(p.CardNumber),
			FailureMessage: optional(p.FailureMessage),
			PaidAt:         timeString(p.PaidAt),
			CreatedAt:      seoulTime(p.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": out, "total": total})
}

func (h *HTTPHandler) UpdateSubscriptionPhone(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Subscription.UpdatePhone(r.Context(), ShopID(r.Context()), req.Phone); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "연락처가 저장되었습니다"})
}

// PaymentWebhook accepts Toss payment notifications. The payload shape
// varies by event type, so only the fields in use are picked out.
func (h *HTTPHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || !gjson.ValidBytes(body) {
		h.fail(w, r, domain.Invalid("body", "요청 본문을 해석할 수 없습니다"))
		return
	}
	payload := gjson.ParseBytes(body)
	err = h.svc.Subscription.HandleWebhook(r.Context(),
		payload.Get("eventType").String(),
		payload.Get("data.orderId").String(),
		payload.Get("data.status").String(),
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

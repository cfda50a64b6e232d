package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/comings/prepaid-api/internal/core/domain"
)

const TossBaseURL = "https://api.tosspayments.com"

// TossClient talks to the Toss Payments billing API.
type TossClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewTossClient(baseURL, secretKey string, client *http.Client) *TossClient {
	if baseURL == "" {
		baseURL = TossBaseURL
	}
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &TossClient{baseURL: baseURL, secretKey: secretKey, http: client}
}

func (c *TossClient) headers() map[string]string {
	credentials := base64.StdEncoding.EncodeToString([]byte(c.secretKey + ":"))
	return map[string]string{"Authorization": "Basic " + credentials}
}

// IssueBillingKey exchanges the authKey from the card registration widget
// for a reusable billing key. Declines come back as an unsuccessful result.
func (c *TossClient) IssueBillingKey(ctx context.Context, authKey, customerKey string) (domain.BillingKeyResult, error) {
	status, body, err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/v1/billing/authorizations/issue",
		map[string]string{"authKey": authKey, "customerKey": customerKey}, c.headers())
	if err != nil {
		return domain.BillingKeyResult{ErrorCode: "NETWORK_ERROR", ErrorMessage: err.Error()}, err
	}

	if status != http.StatusOK {
		return domain.BillingKeyResult{
			ErrorCode:    gjson.GetBytes(body, "code").String(),
			ErrorMessage: gjson.GetBytes(body, "message").String(),
		}, nil
	}

	return domain.BillingKeyResult{
		Success:     true,
		BillingKey:  gjson.GetBytes(body, "billingKey").String(),
		CardCompany: firstNonEmpty(body, "card.issuerCode", "cardCompany"),
		CardNumber:  firstNonEmpty(body, "card.number", "cardNumber"),
	}, nil
}

func (c *TossClient) ChargeBillingKey(ctx context.Context, billingKey, customerKey string, amount int64, orderID, orderName string) (domain.ChargeResult, error) {
	status, body, err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/v1/billing/"+url.PathEscape(billingKey),
		map[string]any{
			"customerKey": customerKey,
			"amount":      amount,
			"orderId":     orderID,
			"orderName":   orderName,
		}, c.headers())
	if err != nil {
		return domain.ChargeResult{OrderID: orderID, ErrorCode: "NETWORK_ERROR", ErrorMessage: err.Error()}, err
	}

	if status != http.StatusOK {
		return domain.ChargeResult{
			OrderID:      orderID,
			ErrorCode:    gjson.GetBytes(body, "code").String(),
			ErrorMessage: gjson.GetBytes(body, "message").String(),
		}, nil
	}

	result := domain.ChargeResult{
		Success:     true,
		PaymentKey:  gjson.GetBytes(body, "paymentKey").String(),
		OrderID:     gjson.GetBytes(body, "orderId").String(),
		Amount:      gjson.GetBytes(body, "totalAmount").Int(),
		Status:      gjson.GetBytes(body, "status").String(),
		CardCompany: firstNonEmpty(body, "card.issuerCode", "card.company"),
		CardNumber:  gjson.GetBytes(body, "card.number").String(),
	}
	if approved, err := time.Parse(time.RFC3339, gjson.GetBytes(body, "approvedAt").String()); err == nil {
		result.ApprovedAt = &approved
	}
	return result, nil
}

func firstNonEmpty(body []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p).String(); v != "" {
			return v
		}
	}
	return ""
}

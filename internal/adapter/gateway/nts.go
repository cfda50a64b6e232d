package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

const NTSBaseURL = "https://api.odcloud.kr"

// NTSClient queries the National Tax Service business status API.
type NTSClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewNTSClient(baseURL, apiKey string, client *http.Client) *NTSClient {
	if baseURL == "" {
		baseURL = NTSBaseURL
	}
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &NTSClient{baseURL: baseURL, apiKey: apiKey, http: client}
}

// Status returns the b_stt_cd of the first result, "" when the number is unknown.
func (c *NTSClient) Status(ctx context.Context, digits string) (string, error) {
	endpoint := c.baseURL + "/api/nts-businessman/v1/status?serviceKey=" + url.QueryEscape(c.apiKey)

	status, body, err := doJSON(ctx, c.http, http.MethodPost, endpoint,
		map[string][]string{"b_no": {digits}}, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("nts status api: http %d", status)
	}

	return gjson.GetBytes(body, "data.0.b_stt_cd").String(), nil
}

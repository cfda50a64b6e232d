package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const SolapiBaseURL = "https://api.solapi.com"

// SolapiNotifier sends plain SMS through Solapi.
type SolapiNotifier struct {
	baseURL   string
	apiKey    string
	apiSecret string
	sender    string
	http      *http.Client
	now       func() time.Time
	salt      func() string
}

func NewSolapiNotifier(baseURL, apiKey, apiSecret, sender string, client *http.Client) *SolapiNotifier {
	if baseURL == "" {
		baseURL = SolapiBaseURL
	}
	if client == nil {
		client = NewHTTPClient(10 * time.Second)
	}
	return &SolapiNotifier{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		sender:    sender,
		http:      client,
		now:       time.Now,
		salt:      uuid.NewString,
	}
}

func (n *SolapiNotifier) authorization() string {
	date := n.now().UTC().Format("2006-01-02T15:04:05Z")
	salt := n.salt()

	mac := hmac.New(sha256.New, []byte(n.apiSecret))
	mac.Write([]byte(date + salt))
	signature := hex.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("HMAC-SHA256 apiKey=%s, date=%s, salt=%s, signature=%s", n.apiKey, date, salt, signature)
}

func (n *SolapiNotifier) SendSMS(ctx context.Context, to, text string) error {
	body := map[string]map[string]string{
		"message": {"to": to, "from": n.sender, "text": text},
	}
	status, _, err := doJSON(ctx, n.http, http.MethodPost, n.baseURL+"/messages/v4/send", body,
		map[string]string{"Authorization": n.authorization()})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("solapi send: http %d", status)
	}
	return nil
}

// LogNotifier stands in when no SMS provider is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendSMS(_ context.Context, to, text string) error {
	n.logger.Info("sms not configured, message logged", "to", to, "text", text)
	return nil
}

package gateway

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/comings/prepaid-api/internal/port"
)

const mockEncPrefix = "MOCK_ENC_DATA_"

// NiceVerifier runs the NICE phone identity check. Only the mock flow is
// available; it derives the CI from the request id so repeated runs match.
type NiceVerifier struct {
	mock bool
}

func NewNiceVerifier(mode string) *NiceVerifier {
	return &NiceVerifier{mock: mode != "production"}
}

func (v *NiceVerifier) MockMode() bool { return v.mock }

func (v *NiceVerifier) Start(context.Context) (string, string, error) {
	if !v.mock {
		return "", "", port.ErrNotContracted
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	requestID := base64.RawURLEncoding.EncodeToString(buf)
	return requestID, mockEncPrefix + requestID, nil
}

func (v *NiceVerifier) Complete(_ context.Context, requestID, encData string) (string, string, error) {
	if !v.mock {
		return "", "", port.ErrNotContracted
	}
	if requestID == "" || !strings.HasPrefix(encData, mockEncPrefix) {
		return "", "", errors.New("invalid verification data")
	}
	sum := sha256.Sum256([]byte("mock_ci_" + requestID))
	return hex.EncodeToString(sum[:]), "테스트사용자", nil
}

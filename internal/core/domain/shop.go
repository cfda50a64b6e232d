package domain

import "time"

type Shop struct {
	ID                  string
	Username            string
	PasswordHash        string
	Email               string
	Name                string
	Phone               string
	BusinessNumber      string
	CI                  string
	PinHash             string
	PinFailedCount      int
	PinLockedUntil      *time.Time
	OnboardingCompleted bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (s Shop) HasPin() bool {
	return s.PinHash != ""
}

func (s Shop) PinLocked(now time.Time) bool {
	return s.PinLockedUntil != nil && s.PinLockedUntil.After(now)
}

type SocialProvider string

const (
	ProviderNaver SocialProvider = "naver"
	ProviderKakao SocialProvider = "kakao"
)

func (p SocialProvider) Valid() bool {
	return p == ProviderNaver || p == ProviderKakao
}

type SocialAccount struct {
	ID             string
	ShopID         string
	Provider       SocialProvider
	ProviderUserID string
	Email          string
	IsPrimary      bool
	CreatedAt      time.Time
}

// SocialIdentity is the profile an OAuth provider returns after a code exchange.
type SocialIdentity struct {
	Provider       SocialProvider
	ProviderUserID string
	Email          string
	Name           string
}

// MaskUsername keeps the first two characters of a login id visible.
func MaskUsername(username string) string {
	r := []rune(username)
	switch {
	case len(r) == 0:
		return ""
	case len(r) > 2:
		return string(r[:2]) + stars(len(r)-2)
	default:
		return string(r[:1]) + stars(len(r)-1)
	}
}

func stars(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '*'
	}
	return string(b)
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/comings/prepaid-api/internal/logging"
	"github.com/comings/prepaid-api/internal/port"
)

const (
	MaxPinAttempts  = 5
	PinLockDuration = time.Minute
	PinTokenTTL     = 5 * time.Minute

	pinRequiredMessage = "PIN 인증이 필요합니다"
)

type PinVerification struct {
	Verified          bool
	RemainingAttempts int
	LockedUntil       *time.Time
	Token             string
}

// PinService guards sensitive actions behind the shop's 4 digit PIN.
// A successful verify hands out a one-time token that RequireToken consumes.
type PinService struct {
	shops    port.ShopRepository
	cache    port.CacheRepository
	enforced bool
	logger   *slog.Logger
	now      func() time.Time
	hashCost int
}

func NewPinService(shops port.ShopRepository, cache port.CacheRepository, enforced bool, logger *slog.Logger) *PinService {
	return &PinService{
		shops:    shops,
		cache:    cache,
		enforced: enforced,
		logger:   logger,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

func (s *PinService) Verify(ctx context.Context, shopID, pin string) (PinVerification, error) {
	result, err := s.check(ctx, shopID, pin)
	if err != nil || !result.Verified {
		return result, err
	}

	token := uuid.NewString()
	if err := s.cache.StorePinToken(ctx, shopID, token, PinTokenTTL); err != nil {
		return PinVerification{}, fmt.Errorf("store pin token: %w", err)
	}
	result.Token = token
	return result, nil
}

func (s *PinService) check(ctx context.Context, shopID, pin string) (PinVerification, error) {
	shop, err := s.shops.GetShop(ctx, shopID)
	if err != nil {
		return PinVerification{}, err
	}
	if !shop.HasPin() {
		return PinVerification{}, reject("PIN이 설정되지 않았습니다")
	}

	now := s.now()
	if shop.PinLocked(now) {
		return PinVerification{LockedUntil: shop.PinLockedUntil}, nil
	}
	if shop.PinLockedUntil != nil {
		// lock expired, start counting again
		if err := s.shops.ResetPinFailures(ctx, shopID); err != nil {
			return PinVerification{}, err
		}
		shop.PinFailedCount = 0
	}

	if secretMatches(shop.PinHash, pin) {
		if shop.PinFailedCount > 0 {
			if err := s.shops.ResetPinFailures(ctx, shopID); err != nil {
				return PinVerification{}, err
			}
		}
		return PinVerification{Verified: true, RemainingAttempts: MaxPinAttempts}, nil
	}

	count, lockedUntil, err := s.shops.RecordPinFailure(ctx, shopID, MaxPinAttempts, now.Add(PinLockDuration))
	if err != nil {
		return PinVerification{}, fmt.Errorf("record pin failure: %w", err)
	}

	s.logger.Warn("pin verification failed", "shop_id", logging.ShortID(shopID), "failed_count", count)

	if lockedUntil != nil && lockedUntil.After(now) {
		return PinVerification{LockedUntil: lockedUntil}, nil
	}
	remaining := MaxPinAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return PinVerification{RemainingAttempts: remaining}, nil
}

// Change replaces the PIN; the current PIN check counts as an attempt.
func (s *PinService) Change(ctx context.Context, shopID, currentPin, newPin string) error {
	result, err := s.check(ctx, shopID, currentPin)
	if err != nil {
		return err
	}
	if result.LockedUntil != nil {
		return withMessage(ErrPinLocked, "PIN 입력이 잠겼습니다. 잠시 후 다시 시도해 주세요")
	}
	if !result.Verified {
		return withMessage(ErrPinIncorrect, "현재 PIN이 일치하지 않습니다")
	}
	return s.store(ctx, shopID, newPin)
}

// Setup sets the first PIN of an account created through social login.
func (s *PinService) Setup(ctx context.Context, shopID, pin string) error {
	shop, err := s.shops.GetShop(ctx, shopID)
	if err != nil {
		return err
	}
	if shop.HasPin() {
		return withMessage(ErrPinAlreadySet, "이미 PIN이 설정되어 있습니다")
	}
	return s.store(ctx, shopID, pin)
}

// Reset sets a new PIN after re-checking the account password and clears any lock.
func (s *PinService) Reset(ctx context.Context, shopID, password, pin string) error {
	shop, err := s.shops.GetShop(ctx, shopID)
	if err != nil {
		return err
	}
	if !secretMatches(shop.PasswordHash, password) {
		return reject("비밀번호가 일치하지 않습니다")
	}
	return s.store(ctx, shopID, pin)
}

func (s *PinService) store(ctx context.Context, shopID, pin string) error {
	hash, err := hashSecret(pin, s.hashCost)
	if err != nil {
		return err
	}
	if err := s.shops.UpdatePinHash(ctx, shopID, hash); err != nil {
		return err
	}
	s.logger.Info("pin updated", "shop_id", logging.ShortID(shopID))
	return nil
}

// RequireToken consumes a PIN token issued to shopID.
func (s *PinService) RequireToken(ctx context.Context, shopID, token string) error {
	if !s.enforced {
		return nil
	}
	if token == "" {
		return withMessage(ErrPinRequired, pinRequiredMessage)
	}

	ok, err := s.cache.ConsumePinToken(ctx, shopID, token)
	if err != nil {
		return fmt.Errorf("consume pin token: %w", err)
	}
	if !ok {
		return withMessage(ErrPinRequired, pinRequiredMessage)
	}
	return nil
}

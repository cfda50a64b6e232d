package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/comings/prepaid-api/internal/auth"
	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/logging"
	"github.com/comings/prepaid-api/internal/port"
)

const (
	VerificationTokenTTL = 10 * time.Minute
	defaultSocialShop    = "내 카페"
)

type RegisterInput struct {
	Username          string
	Password          string
	Name              string
	Pin               string
	Email             string
	Phone             string
	VerificationToken string
}

// Session is the result of a successful sign-up or sign-in.
type Session struct {
	Tokens auth.TokenPair
	Shop   domain.Shop
	IsNew  bool
}

type IdentityStart struct {
	RequestID string
	EncData   string
	MockMode  bool
}

type IdentityResult struct {
	Token     string
	ExpiresAt time.Time
	Name      string
}

type AuthService struct {
	shops     port.ShopRepository
	cache     port.CacheRepository
	tokens    *auth.TokenManager
	subs      *SubscriptionService
	identity  port.IdentityVerifier
	providers map[domain.SocialProvider]port.OAuthProvider
	logger    *slog.Logger
	now       func() time.Time
	hashCost  int
}

func NewAuthService(
	shops port.ShopRepository,
	cache port.CacheRepository,
	tokens *auth.TokenManager,
	subs *SubscriptionService,
	identity port.IdentityVerifier,
	logger *slog.Logger,
	providers ...port.OAuthProvider,
) *AuthService {
	byName := make(map[domain.SocialProvider]port.OAuthProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &AuthService{
		shops:     shops,
		cache:     cache,
		tokens:    tokens,
		subs:      subs,
		identity:  identity,
		providers: byName,
		logger:    logger,
		now:       time.Now,
		hashCost:  bcrypt.DefaultCost,
	}
}

func (s *AuthService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	_, err := s.shops.GetShopByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	available, err := s.UsernameAvailable(ctx, in.Username)
	if err != nil {
		return Session{}, err
	}
	if !available {
		return Session{}, conflict("이미 사용 중인 아이디입니다")
	}

	now := s.now()
	shop := domain.Shop{
		ID:        uuid.NewString(),
		Username:  in.Username,
		Email:     in.Email,
		Name:      in.Name,
		Phone:     domain.DigitsOnly(in.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if in.VerificationToken != "" {
		claims, err := s.tokens.Validate(in.VerificationToken, auth.TokenVerification)
		if err != nil {
			return Session{}, reject("본인인증 정보가 만료되었거나 유효하지 않습니다")
		}
		if _, err := s.shops.GetShopByCI(ctx, claims.CI); err == nil {
			return Session{}, conflict("이미 가입된 사용자입니다")
		} else if !errors.Is(err, domain.ErrNotFound) {
			return Session{}, err
		}
		shop.CI = claims.CI
	}

	if shop.PasswordHash, err = hashSecret(in.Password, s.hashCost); err != nil {
		return Session{}, err
	}
	if shop.PinHash, err = hashSecret(in.Pin, s.hashCost); err != nil {
		return Session{}, err
	}

	if err := s.shops.CreateShop(ctx, shop); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return Session{}, conflict("이미 사용 중인 아이디입니다")
		}
		return Session{}, fmt.Errorf("create shop: %w", err)
	}
	if _, err := s.subs.GetOrCreate(ctx, shop.ID); err != nil {
		return Session{}, err
	}

	s.logger.Info("shop registered", "shop_id", logging.ShortID(shop.ID), "username", in.Username)
	return s.session(shop, true)
}

func (s *AuthService) session(shop domain.Shop, isNew bool) (Session, error) {
	pair, err := s.tokens.IssuePair(shop.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Tokens: pair, Shop: shop, IsNew: isNew}, nil
}

// Login checks username and password. Every failure looks the same to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (Session, error) {
	shop, err := s.shops.GetShopByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !secretMatches(shop.PasswordHash, password) {
		s.logger.Warn("login failed", "shop_id", logging.ShortID(shop.ID))
		return Session{}, ErrInvalidCredentials
	}

	s.logger.Info("login", "shop_id", logging.ShortID(shop.ID))
	return s.session(*shop, false)
}

// Authenticate validates an access token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.Validate(token, auth.TokenAccess)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *AuthService) checkRevoked(ctx context.Context, claims *auth.Claims) error {
	revoked, err := s.cache.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair issued.
// Only one caller can claim a given refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.tokens.Validate(refreshToken, auth.TokenRefresh)
	if err != nil {
		return Session{}, err
	}
	claimed, err := s.cache.ClaimToken(ctx, claims.ID, claims.Remaining(s.now()))
	if err != nil {
		return Session{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !claimed {
		return Session{}, ErrTokenRevoked
	}

	shop, err := s.shops.GetShop(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	return s.session(*shop, false)
}

// Logout revokes the access token and, when given and valid, the refresh token.
func (s *AuthService) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	now := s.now()
	if err := s.cache.RevokeToken(ctx, access.ID, access.Remaining(now)); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}

	if refreshToken != "" {
		claims, err := s.tokens.Validate(refreshToken, auth.TokenRefresh)
		if err == nil && claims.Subject == access.Subject {
			if err := s.cache.RevokeToken(ctx, claims.ID, claims.Remaining(now)); err != nil {
				return fmt.Errorf("revoke refresh token: %w", err)
			}
		}
	}

	s.logger.Info("logout", "shop_id", logging.ShortID(access.Subject))
	return nil
}

func (s *AuthService) Me(ctx context.Context, shopID string) (domain.Shop, error) {
	shop, err := s.shops.GetShop(ctx, shopID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Shop{}, withMessage(domain.ErrNotFound, "상점 정보를 찾을 수 없습니다")
	}
	if err != nil {
		return domain.Shop{}, err
	}
	return *shop, nil
}

func (s *AuthService) StartIdentity(ctx context.Context) (IdentityStart, error) {
	requestID, encData, err := s.identity.Start(ctx)
	if err != nil {
		return IdentityStart{}, err
	}
	return IdentityStart{RequestID: requestID, EncData: encData, MockMode: s.identity.MockMode()}, nil
}

// CompleteIdentity turns a finished identity check into a short-lived
// verification token carrying the CI, to be presented at sign-up.
func (s *AuthService) CompleteIdentity(ctx context.Context, requestID, encData string) (IdentityResult, error) {
	ci, name, err := s.identity.Complete(ctx, requestID, encData)
	if errors.Is(err, port.ErrNotContracted) {
		return IdentityResult{}, err
	}
	if err != nil {
		s.logger.Warn("identity verification failed", "error", err)
		return IdentityResult{}, reject("본인인증에 실패했습니다")
	}

	token, claims, err := s.tokens.Issue("", auth.TokenVerification, VerificationTokenTTL, func(c *auth.Claims) {
		c.CI = ci
		c.Name = name
	})
	if err != nil {
		return IdentityResult{}, err
	}
	return IdentityResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, Name: name}, nil
}

func (s *AuthService) provider(name domain.SocialProvider) (port.OAuthProvider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, withMessage(ErrUnsupportedProvider, "지원하지 않는 소셜 로그인입니다")
	}
	return p, nil
}

func (s *AuthService) SocialLoginURL(name domain.SocialProvider, state string) (string, error) {
	p, err := s.provider(name)
	if err != nil {
		return "", err
	}
	return p.AuthorizeURL(state), nil
}

func (s *AuthService) exchange(ctx context.Context, name domain.SocialProvider, code, state string) (domain.SocialIdentity, error) {
	p, err := s.provider(name)
	if err != nil {
		return domain.SocialIdentity{}, err
	}
	identity, err := p.Exchange(ctx, code, state)
	if err != nil {
		s.logger.Warn("social exchange failed", "provider", name, "error", err)
		return domain.SocialIdentity{}, withMessage(ErrInvalidCredentials,
			"소셜 로그인에 실패했습니다. 인증 코드가 만료되었거나 redirect_uri가 일치하지 않을 수 있습니다.")
	}
	return identity, nil
}

// SocialLogin signs in with a provider code. An identity seen for the first
// time gets a new shop with a trial and no PIN yet.
func (s *AuthService) SocialLogin(ctx context.Context, name domain.SocialProvider, code, state string) (Session, error) {
	identity, err := s.exchange(ctx, name, code, state)
	if err != nil {
		return Session{}, err
	}

	account, err := s.shops.GetSocialAccount(ctx, identity.Provider, identity.ProviderUserID)
	if err == nil {
		shop, err := s.shops.GetShop(ctx, account.ShopID)
		if err != nil {
			return Session{}, err
		}
		return s.session(*shop, false)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return Session{}, err
	}

	now := s.now()
	shopName := identity.Name
	if shopName == "" {
		shopName = defaultSocialShop
	}
	shop := domain.Shop{
		ID:        uuid.NewString(),
		Email:     identity.Email,
		Name:      shopName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.shops.CreateShop(ctx, shop); err != nil {
		return Session{}, fmt.Errorf("create shop: %w", err)
	}
	if err := s.shops.CreateSocialAccount(ctx, domain.SocialAccount{
		ID:             uuid.NewString(),
		ShopID:         shop.ID,
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		Email:          identity.Email,
		IsPrimary:      true,
		CreatedAt:      now,
	}); err != nil {
		return Session{}, fmt.Errorf("create social account: %w", err)
	}
	if _, err := s.subs.GetOrCreate(ctx, shop.ID); err != nil {
		return Session{}, err
	}

	s.logger.Info("shop registered via social login", "shop_id", logging.ShortID(shop.ID), "provider", name)
	return s.session(shop, true)
}

// LinkSocial binds another provider identity to an existing shop.
func (s *AuthService) LinkSocial(ctx context.Context, shopID string, name domain.SocialProvider, code, state string) (domain.SocialAccount, error) {
	identity, err := s.exchange(ctx, name, code, state)
	if err != nil {
		return domain.SocialAccount{}, err
	}

	existing, err := s.shops.GetSocialAccount(ctx, identity.Provider, identity.ProviderUserID)
	if err == nil {
		if existing.ShopID == shopID {
			return *existing, nil
		}
		return domain.SocialAccount{}, conflict("이미 다른 상점에 연동된 계정입니다")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.SocialAccount{}, err
	}

	account := domain.SocialAccount{
		ID:             uuid.NewString(),
		ShopID:         shopID,
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		Email:          identity.Email,
		CreatedAt:      s.now(),
	}
	if err := s.shops.CreateSocialAccount(ctx, account); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.SocialAccount{}, conflict("이미 다른 상점에 연동된 계정입니다")
		}
		return domain.SocialAccount{}, err
	}
	return account, nil
}

func (s *AuthService) SocialAccounts(ctx context.Context, shopID string) ([]domain.SocialAccount, error) {
	return s.shops.ListSocialAccounts(ctx, shopID)
}

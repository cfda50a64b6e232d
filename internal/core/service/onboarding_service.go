package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/logging"
	"github.com/comings/prepaid-api/internal/port"
)

type OnboardingStatus struct {
	Completed      bool
	ShopName       string
	BusinessNumber string
	MenuCount      int
	CustomerCount  int
}

type BusinessDuplicate struct {
	IsDuplicate      bool
	Message          string
	ExistingUsername string
	ExistingShopName string
}

type MenuItem struct {
	Name  string
	Price int64
}

// OnboardingService drives the first-run wizard: shop details, menus and
// the opening customer list.
type OnboardingService struct {
	shops     port.ShopRepository
	menus     port.MenuRepository
	customers *CustomerService
	counter   port.CustomerRepository
	registry  port.BusinessRegistry
	logger    *slog.Logger
	now       func() time.Time
}

// NewOnboardingService accepts a nil registry, in which case business
// numbers are only checked locally.
func NewOnboardingService(
	shops port.ShopRepository,
	menus port.MenuRepository,
	customerRepo port.CustomerRepository,
	customers *CustomerService,
	registry port.BusinessRegistry,
	logger *slog.Logger,
) *OnboardingService {
	return &OnboardingService{
		shops:     shops,
		menus:     menus,
		customers: customers,
		counter:   customerRepo,
		registry:  registry,
		logger:    logger,
		now:       time.Now,
	}
}

var businessStatusMessages = map[domain.BusinessStatus]string{
	domain.BusinessActive:    "유효한 사업자등록번호입니다",
	domain.BusinessSuspended: "휴업 상태인 사업자입니다",
	domain.BusinessClosed:    "폐업한 사업자입니다",
}

var businessStatusNames = map[domain.BusinessStatus]string{
	domain.BusinessActive:    "계속사업자",
	domain.BusinessSuspended: "휴업자",
	domain.BusinessClosed:    "폐업자",
}

// VerifyBusinessNumber checks format and checksum, then asks the tax office
// registry when one is configured.
func (s *OnboardingService) VerifyBusinessNumber(ctx context.Context, raw string) domain.BusinessVerification {
	digits := domain.DigitsOnly(raw)
	if len(digits) != 10 {
		return domain.BusinessVerification{Message: "사업자등록번호는 10자리 숫자여야 합니다"}
	}
	formatted, _ := domain.NormalizeBusinessNumber(digits)
	result := domain.BusinessVerification{BusinessNumber: formatted}

	if !domain.ValidBusinessNumberChecksum(digits) {
		result.Message = "사업자등록번호 형식이 올바르지 않습니다"
		return result
	}
	if s.registry == nil {
		result.IsValid = true
		result.Status = "형식 검증 완료"
		result.Message = "사업자등록번호 형식이 유효합니다 (API 미연동)"
		return result
	}

	code, err := s.registry.Status(ctx, digits)
	if err != nil {
		s.logger.Warn("business registry lookup failed", "error", err)
		result.Message = "사업자등록번호 조회 중 오류가 발생했습니다"
		if errors.Is(err, context.DeadlineExceeded) {
			result.Message = "사업자등록번호 조회 중 시간이 초과되었습니다"
		}
		return result
	}

	status := domain.BusinessStatus(code)
	result.StatusCode = code
	result.Status = businessStatusNames[status]
	if msg, ok := businessStatusMessages[status]; ok {
		result.IsValid = status == domain.BusinessActive
		result.Message = msg
		return result
	}
	result.Message = "국세청에 등록되지 않은 사업자등록번호입니다"
	return result
}

// CheckBusinessNumber reports whether another shop already uses the number.
func (s *OnboardingService) CheckBusinessNumber(ctx context.Context, shopID, raw string) (BusinessDuplicate, error) {
	formatted, err := domain.NormalizeBusinessNumber(raw)
	if err != nil {
		return BusinessDuplicate{}, err
	}

	other, err := s.shops.FindShopByBusinessNumber(ctx, formatted, shopID)
	if errors.Is(err, domain.ErrNotFound) {
		return BusinessDuplicate{Message: "사용 가능한 사업자등록번호입니다"}, nil
	}
	if err != nil {
		return BusinessDuplicate{}, err
	}
	return BusinessDuplicate{
		IsDuplicate:      true,
		Message:          "이미 등록된 사업자등록번호입니다",
		ExistingUsername: domain.MaskUsername(other.Username),
		ExistingShopName: other.Name,
	}, nil
}

func (s *OnboardingService) Status(ctx context.Context, shopID string) (OnboardingStatus, error) {
	shop, err := s.shops.GetShop(ctx, shopID)
	if err != nil {
		return OnboardingStatus{}, err
	}
	menuCount, err := s.menus.CountMenus(ctx, shopID)
	if err != nil {
		return OnboardingStatus{}, err
	}
	customerCount, err := s.counter.CountCustomers(ctx, shopID)
	if err != nil {
		return OnboardingStatus{}, err
	}
	return OnboardingStatus{
		Completed:      shop.OnboardingCompleted,
		ShopName:       shop.Name,
		BusinessNumber: shop.BusinessNumber,
		MenuCount:      menuCount,
		CustomerCount:  customerCount,
	}, nil
}

// SaveShopInfo stores the shop name and normalized business number.
func (s *OnboardingService) SaveShopInfo(ctx context.Context, shopID, name, businessNumber string) (string, error) {
	formatted, err := domain.NormalizeBusinessNumber(businessNumber)
	if err != nil {
		return "", err
	}

	dup, err := s.CheckBusinessNumber(ctx, shopID, formatted)
	if err != nil {
		return "", err
	}
	if dup.IsDuplicate {
		return "", conflict("이미 다른 계정에서 사용 중인 사업자등록번호입니다")
	}

	if err := s.shops.UpdateShopProfile(ctx, shopID, name, formatted); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return "", conflict("이미 다른 계정에서 사용 중인 사업자등록번호입니다")
		}
		return "", err
	}

	s.logger.Info("onboarding step 1", "shop_id", logging.ShortID(shopID))
	return formatted, nil
}

// SaveMenus replaces the shop's menus with items in the given order. An
// empty list leaves the menus untouched and returns 0.
func (s *OnboardingService) SaveMenus(ctx context.Context, shopID string, items []MenuItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	now := s.now()
	menus := make([]domain.Menu, 0, len(items))
	for i, item := range items {
		if item.Price < 0 {
			return 0, domain.Invalid("price", "가격은 0 이상이어야 합니다")
		}
		menus = append(menus, domain.Menu{
			ID:           uuid.NewString(),
			ShopID:       shopID,
			Name:         item.Name,
			Price:        item.Price,
			IsActive:     true,
			DisplayOrder: i,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := s.menus.ReplaceMenus(ctx, shopID, menus); err != nil {
		return 0, err
	}

	s.logger.Info("onboarding step 2", "shop_id", logging.ShortID(shopID), "menus", len(menus))
	return len(menus), nil
}

func (s *OnboardingService) ImportCustomers(ctx context.Context, shopID string, rows []domain.ImportRow) (domain.ImportResult, error) {
	return s.customers.Import(ctx, shopID, rows)
}

func (s *OnboardingService) Complete(ctx context.Context, shopID string) error {
	if err := s.shops.CompleteOnboarding(ctx, shopID); err != nil {
		return err
	}
	s.logger.Info("onboarding completed", "shop_id", logging.ShortID(shopID))
	return nil
}

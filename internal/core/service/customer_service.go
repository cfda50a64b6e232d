package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/logging"
	"github.com/comings/prepaid-api/internal/port"
)

const (
	skipExisting  = "기존 고객과 중복"
	skipDuplicate = "파일 내 중복"
)

type CustomerInput struct {
	Name        string
	Phone       string
	PhoneSuffix string
}

// CustomerUpdate holds the fields to change; nil means keep.
type CustomerUpdate struct {
	Name        *string
	Phone       *string
	PhoneSuffix *string
}

func (u CustomerUpdate) Empty() bool {
	return u.Name == nil && u.Phone == nil && u.PhoneSuffix == nil
}

type CustomerDetail struct {
	domain.Customer
	Stats domain.CustomerStats
}

type CustomerService struct {
	customers port.CustomerRepository
	logger    *slog.Logger
	now       func() time.Time
}

func NewCustomerService(customers port.CustomerRepository, logger *slog.Logger) *CustomerService {
	return &CustomerService{customers: customers, logger: logger, now: time.Now}
}

// contact derives the stored phone and suffix; a full phone number wins over
// an explicit suffix.
func contact(phone, suffix string) (string, string, error) {
	phone = domain.DigitsOnly(phone)
	if phone != "" {
		if len(phone) < 10 || len(phone) > 11 {
			return "", "", domain.Invalid("phone", "연락처는 10~11자리 숫자여야 합니다")
		}
		return phone, domain.PhoneSuffix(phone), nil
	}

	suffix = domain.DigitsOnly(suffix)
	if len(suffix) != 4 {
		return "", "", domain.Invalid("phone_suffix", "연락처 뒷자리 4자리를 입력해 주세요")
	}
	return "", suffix, nil
}

func (s *CustomerService) Create(ctx context.Context, shopID string, in CustomerInput) (domain.Customer, error) {
	phone, suffix, err := contact(in.Phone, in.PhoneSuffix)
	if err != nil {
		return domain.Customer{}, err
	}

	exists, err := s.customers.CustomerExists(ctx, shopID, in.Name, suffix, "")
	if err != nil {
		return domain.Customer{}, err
	}
	if exists {
		return domain.Customer{}, reject("이미 등록된 고객입니다")
	}

	now := s.now()
	customer := domain.Customer{
		ID:          uuid.NewString(),
		ShopID:      shopID,
		Name:        in.Name,
		Phone:       phone,
		PhoneSuffix: suffix,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.customers.CreateCustomer(ctx, customer); err != nil {
		return domain.Customer{}, fmt.Errorf("create customer: %w", err)
	}

	s.logger.Info("customer created", "shop_id", logging.ShortID(shopID), "customer_id", logging.ShortID(customer.ID))
	return customer, nil
}

func (s *CustomerService) List(ctx context.Context, q domain.CustomerQuery) ([]domain.Customer, int, error) {
	q.Normalize()
	return s.customers.ListCustomers(ctx, q)
}

func (s *CustomerService) Get(ctx context.Context, shopID, id string) (CustomerDetail, error) {
	customer, err := s.find(ctx, shopID, id)
	if err != nil {
		return CustomerDetail{}, err
	}
	stats, err := s.customers.CustomerStats(ctx, shopID, id)
	if err != nil {
		return CustomerDetail{}, err
	}
	return CustomerDetail{Customer: customer, Stats: stats}, nil
}

func (s *CustomerService) find(ctx context.Context, shopID, id string) (domain.Customer, error) {
	customer, err := s.customers.GetCustomer(ctx, shopID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Customer{}, withMessage(domain.ErrNotFound, "고객을 찾을 수 없습니다")
	}
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *CustomerService) Update(ctx context.Context, shopID, id string, upd CustomerUpdate) (domain.Customer, error) {
	if upd.Empty() {
		return domain.Customer{}, withMessage(ErrNothingToUpdate, "수정할 내용이 없습니다")
	}

	customer, err := s.find(ctx, shopID, id)
	if err != nil {
		return domain.Customer{}, err
	}

	if upd.Name != nil {
		customer.Name = *upd.Name
	}
	if upd.Phone != nil || upd.PhoneSuffix != nil {
		phone, suffix := customer.Phone, customer.PhoneSuffix
		if upd.Phone != nil {
			phone = *upd.Phone
		}
		if upd.PhoneSuffix != nil && upd.Phone == nil {
			phone, suffix = "", *upd.PhoneSuffix
		}
		if customer.Phone, customer.PhoneSuffix, err = contact(phone, suffix); err != nil {
			return domain.Customer{}, err
		}
	}

	exists, err := s.customers.CustomerExists(ctx, shopID, customer.Name, customer.PhoneSuffix, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if exists {
		return domain.Customer{}, reject("이미 등록된 고객입니다")
	}

	customer.UpdatedAt = s.now()
	if err := s.customers.UpdateCustomer(ctx, customer); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

// Delete removes a customer with a zero balance along with its ledger rows.
func (s *CustomerService) Delete(ctx context.Context, shopID, id string) error {
	err := s.customers.DeleteCustomer(ctx, shopID, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return withMessage(domain.ErrNotFound, "고객을 찾을 수 없습니다")
	case errors.Is(err, domain.ErrBalanceRemaining):
		return withMessage(domain.ErrBalanceRemaining, "잔액이 있는 고객은 삭제할 수 없습니다")
	case err != nil:
		return err
	}

	s.logger.Info("customer deleted", "shop_id", logging.ShortID(shopID), "customer_id", logging.ShortID(id))
	return nil
}

// Export returns every customer of the shop ordered by name.
func (s *CustomerService) Export(ctx context.Context, shopID string) ([]domain.Customer, error) {
	return s.customers.ListAllCustomers(ctx, shopID)
}

// Import registers customers in bulk with their opening balance. Rows that
// repeat an existing customer or an earlier row (same name and phone) are skipped.
func (s *CustomerService) Import(ctx context.Context, shopID string, rows []domain.ImportRow) (domain.ImportResult, error) {
	result := domain.ImportResult{
		Total:          len(rows),
		Errors:         []string{},
		SkippedDetails: []domain.SkippedRow{},
	}
	if len(rows) == 0 {
		return result, nil
	}

	existing, err := s.customers.ListAllCustomers(ctx, shopID)
	if err != nil {
		return domain.ImportResult{}, err
	}
	known := make(map[[2]string]bool, len(existing))
	for _, c := range existing {
		known[[2]string{c.Name, c.Phone}] = true
	}

	now := s.now()
	pending := make(map[[2]string]bool, len(rows))
	batch := make([]domain.Customer, 0, len(rows))
	for _, row := range rows {
		phone := domain.DigitsOnly(row.Phone)
		key := [2]string{row.Name, phone}

		var reason string
		switch {
		case known[key]:
			reason = skipExisting
		case pending[key]:
			reason = skipDuplicate
		}
		if reason != "" {
			result.SkippedDetails = append(result.SkippedDetails, domain.SkippedRow{Name: row.Name, Phone: row.Phone, Reason: reason})
			continue
		}

		pending[key] = true
		batch = append(batch, domain.Customer{
			ID:             uuid.NewString(),
			ShopID:         shopID,
			Name:           row.Name,
			Phone:          phone,
			PhoneSuffix:    domain.PhoneSuffix(phone),
			CurrentBalance: row.Balance,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	result.Skipped = len(result.SkippedDetails)

	if len(batch) > 0 {
		if err := s.customers.BulkCreateCustomers(ctx, batch); err != nil {
			s.logger.Error("customer import failed", "shop_id", logging.ShortID(shopID), "error", err)
			result.Errors = append(result.Errors, "일괄 등록 중 오류가 발생했습니다: "+err.Error())
		} else {
			result.Imported = len(batch)
		}
	}

	s.logger.Info("customers imported",
		"shop_id", logging.ShortID(shopID),
		"imported", result.Imported,
		"skipped", result.Skipped,
	)
	return result, nil
}

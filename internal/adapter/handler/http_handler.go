package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/core/service"
)

const maxBodyBytes = 1 << 20

// Services bundles the use cases served over HTTP.
type Services struct {
	Auth         *service.AuthService
	Pins         *service.PinService
	Customers    *service.CustomerService
	Ledger       *service.LedgerService
	Dashboard    *service.DashboardService
	Menus        *service.MenuService
	Onboarding   *service.OnboardingService
	Subscription *service.SubscriptionService
}

type HTTPHandler struct {
	svc      Services
	logger   *slog.Logger
	validate *validator.Validate
	errors   *errorMapper
}

func NewHTTPHandler(svc Services, logger *slog.Logger) *HTTPHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &HTTPHandler{
		svc:      svc,
		logger:   logger,
		validate: v,
		errors:   newErrorMapper(),
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *HTTPHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "선결제 관리 플랫폼 커밍스 API",
		"version": "1.0.0",
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// decode reads a JSON body into dst and runs its validate tags. It writes
// the error response itself and reports whether the handler may continue.
func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.fail(w, r, domain.Invalid("body", "요청 본문을 해석할 수 없습니다"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.fail(w, r, validationError(err))
		return false
	}
	return true
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.Invalid("", "요청 값이 올바르지 않습니다")
	}
	fe := fieldErrs[0]
	return domain.Invalid(fe.Field(), fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "필수 항목입니다"
	case "len":
		return fe.Param() + "자리여야 합니다"
	case "numeric":
		return "숫자만 입력할 수 있습니다"
	case "min", "gte":
		return fe.Param() + " 이상이어야 합니다"
	case "max", "lte":
		return fe.Param() + " 이하여야 합니다"
	case "gt":
		return fe.Param() + "보다 커야 합니다"
	case "oneof":
		return fe.Param() + " 중 하나여야 합니다"
	case "email":
		return "이메일 형식이 올바르지 않습니다"
	}
	return "값이 올바르지 않습니다"
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(key, "숫자여야 합니다")
	}
	return v, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter as a Seoul date.
func queryDate(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := domain.ParseSeoulDate(raw)
	if err != nil {
		return nil, domain.Invalid(key, "날짜 형식은 YYYY-MM-DD 입니다")
	}
	return &t, nil
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// timeString renders t in Seoul time, or nil when unset.
func timeString(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.In(domain.Seoul).Format(time.RFC3339)
	return &s
}

func seoulTime(t time.Time) string {
	return t.In(domain.Seoul).Format(time.RFC3339)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

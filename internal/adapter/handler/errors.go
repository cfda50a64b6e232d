package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/comings/prepaid-api/internal/auth"
	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/core/service"
	"github.com/comings/prepaid-api/internal/port"
)

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorMapper turns service errors into HTTP status codes and the message
// shown to the user. The first matching mapping wins.
type errorMapper struct {
	mappings       []errorMapping
	defaultStatus  int
	defaultMessage string
}

func newErrorMapper() *errorMapper {
	return (&errorMapper{
		defaultStatus:  http.StatusInternalServerError,
		defaultMessage: "서버 오류가 발생했습니다",
	}).
		with(auth.ErrMissingToken, http.StatusUnauthorized, "인증이 필요합니다").
		with(auth.ErrInvalidToken, http.StatusUnauthorized, "유효하지 않은 토큰입니다").
		with(service.ErrTokenRevoked, http.StatusUnauthorized, "만료되었거나 로그아웃된 토큰입니다").
		with(service.ErrInvalidCredentials, http.StatusUnauthorized, "아이디 또는 비밀번호가 올바르지 않습니다").
		with(service.ErrForbidden, http.StatusForbidden, "접근 권한이 없습니다").
		with(service.ErrPinRequired, http.StatusForbidden, "PIN 인증이 필요합니다").
		with(service.ErrSubscriptionSuspended, http.StatusForbidden, "구독이 정지되었습니다. 결제 후 이용해 주세요.").
		with(domain.ErrNotFound, http.StatusNotFound, "찾을 수 없습니다").
		with(service.ErrDuplicateRequest, http.StatusConflict, "중복된 요청입니다").
		with(service.ErrPinAlreadySet, http.StatusConflict, "이미 PIN이 설정되어 있습니다").
		with(domain.ErrDuplicate, http.StatusConflict, "이미 존재합니다").
		with(domain.ErrInvalidInput, http.StatusUnprocessableEntity, "요청 값이 올바르지 않습니다").
		with(port.ErrNotContracted, http.StatusNotImplemented, "아직 지원하지 않는 기능입니다").
		with(service.ErrRejected, http.StatusBadRequest, "요청을 처리할 수 없습니다").
		with(service.ErrNothingToUpdate, http.StatusBadRequest, "수정할 내용이 없습니다").
		with(service.ErrPinIncorrect, http.StatusBadRequest, "PIN이 일치하지 않습니다").
		with(service.ErrPinLocked, http.StatusBadRequest, "PIN 입력이 잠겼습니다").
		with(service.ErrUnsupportedProvider, http.StatusBadRequest, "지원하지 않는 소셜 로그인입니다").
		with(service.ErrBillingKeyRequired, http.StatusBadRequest, "등록된 결제 수단이 없습니다").
		with(service.ErrInvalidTransition, http.StatusBadRequest, "현재 구독 상태에서는 처리할 수 없습니다").
		with(domain.ErrAlreadyCancelled, http.StatusBadRequest, "이미 취소된 거래입니다").
		with(domain.ErrBalanceRemaining, http.StatusBadRequest, "잔액이 있는 고객은 삭제할 수 없습니다").
		with(domain.ErrInsufficientBalance, http.StatusBadRequest, "잔액이 부족합니다")
}

func (m *errorMapper) with(err error, status int, message string) *errorMapper {
	m.mappings = append(m.mappings, errorMapping{err: err, status: status, message: message})
	return m
}

// Map resolves the status and message for err. A message attached by the
// service layer overrides the mapping's default text.
func (m *errorMapper) Map(err error) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "요청 시간이 초과되었습니다"
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable, "요청이 취소되었습니다"
	}

	var upstream *service.UpstreamError
	if errors.As(err, &upstream) {
		return http.StatusBadRequest, upstream.Message
	}

	for _, mapping := range m.mappings {
		if !errors.Is(err, mapping.err) {
			continue
		}
		return mapping.status, userMessage(err, mapping.message)
	}
	return m.defaultStatus, m.defaultMessage
}

func userMessage(err error, fallback string) string {
	var msgErr *service.MessageError
	if errors.As(err, &msgErr) && msgErr.Message != "" {
		return msgErr.Message
	}
	var balanceErr *domain.InsufficientBalanceError
	if errors.As(err, &balanceErr) {
		return "잔액이 부족합니다. 현재 잔액: " + service.FormatWon(balanceErr.Current) + "원"
	}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) && validationErr.Message != "" {
		if validationErr.Field == "" {
			return validationErr.Message
		}
		return validationErr.Field + ": " + validationErr.Message
	}
	return fallback
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// fail writes err as {"detail": message}. Unmapped errors are logged with
// the request id and hidden from the client.
func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := h.errors.Map(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r),
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Detail: message})
}

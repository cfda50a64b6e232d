package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/logging"
	"github.com/comings/prepaid-api/internal/port"
)

const smsHeader = "[카페 선결제 관리]\n"

// NotificationHandler texts the shop owner about subscription events.
// Shops without a phone number are skipped.
type NotificationHandler struct {
	shops    port.ShopRepository
	notifier port.Notifier
	logger   *slog.Logger
}

func NewNotificationHandler(shops port.ShopRepository, notifier port.Notifier, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{shops: shops, notifier: notifier, logger: logger}
}

func (h *NotificationHandler) Handle(ctx context.Context, event domain.Event) error {
	switch event.Type {
	case domain.EventActivated, domain.EventPaymentFailed, domain.EventSuspended, domain.EventTrialExpiring:
	default:
		return nil
	}

	shop, err := h.shops.GetShop(ctx, event.ShopID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if shop.Phone == "" {
		h.logger.Debug("no phone for notification", "shop_id", logging.ShortID(shop.ID), "type", event.Type)
		return nil
	}

	text := subscriptionMessage(event, displayName(shop.Name))
	if err := h.notifier.SendSMS(ctx, shop.Phone, text); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "고객"
	}
	return name
}

func subscriptionMessage(event domain.Event, shopName string) string {
	switch event.Type {
	case domain.EventPaymentFailed:
		graceDays := event.Attrs["grace_days"]
		if _, err := strconv.Atoi(graceDays); err != nil {
			graceDays = "7"
		}
		return smsHeader + shopName + "님, 이번 달 구독 결제가 실패했습니다.\n" +
			graceDays + "일 이내에 결제 수단을 확인해 주세요.\n" +
			"유예 기간 후에는 서비스 이용이 제한됩니다.\n" +
			"설정 > 구독 관리에서 결제 수단을 변경할 수 있습니다."

	case domain.EventTrialExpiring:
		return smsHeader + shopName + "님, 무료 체험 기간이 " + event.Attrs["days_remaining"] + "일 남았습니다.\n" +
			"결제 수단을 등록하시면 서비스를 계속 이용할 수 있습니다.\n" +
			"설정 > 구독 관리에서 결제 수단을 등록해 주세요."

	case domain.EventSuspended:
		return smsHeader + shopName + "님, 구독이 정지되었습니다.\n" +
			"현재 데이터 조회만 가능하며, 새로운 충전/차감이 제한됩니다.\n" +
			"설정 > 구독 관리에서 결제하시면 바로 서비스를 이용할 수 있습니다."

	default:
		return smsHeader + shopName + "님, 구독 결제가 완료되었습니다.\n" +
			"결제 금액: " + FormatWon(event.Amount) + "원\n" +
			"다음 결제일: " + event.Attrs["next_payment_date"] + "\n" +
			"감사합니다."
	}
}

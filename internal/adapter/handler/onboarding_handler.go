package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/comings/prepaid-api/internal/adapter/export"
	"github.com/comings/prepaid-api/internal/core/service"
)

type businessNumberRequest struct {
	BusinessNumber string `json:"business_number" validate:"required"`
}

type shopInfoRequest struct {
	Name               string `json:"name" validate:"required,min=1,max=100"`
	BusinessNumber     string `json:"business_number" validate:"required"`
	IsBusinessVerified bool   `json:"is_business_verified"`
}

type menuItemRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Price int64  `json:"price" validate:"gte=0"`
}

type menusRequest struct {
	Menus []menuItemRequest `json:"menus" validate:"dive"`
}

type businessVerifyResponse struct {
	IsValid    bool   `json:"is_valid"`
	StatusCode string `json:"status_code"`
	StatusName string `json:"status_name"`
	TaxType    string `json:"tax_type"`
	Message    string `json:"message"`
}

type onboardingStatusResponse struct {
	Completed      bool    `json:"completed"`
	ShopName       string  `json:"shop_name"`
	BusinessNumber *string `json:"business_number"`
	MenuCount      int     `json:"menu_count"`
	CustomerCount  int     `json:"customer_count"`
}

func (h *HTTPHandler) VerifyBusinessNumber(w http.ResponseWriter, r *http.Request) {
	var req businessNumberRequest
	if !h.decode(w, r, &req) {
		return
	}
	v := h.svc.Onboarding.VerifyBusinessNumber(r.Context(), req.BusinessNumber)
	writeJSON(w, http.StatusOK, businessVerifyResponse{
		IsValid:    v.IsValid,
		StatusCode: v.StatusCode,
		StatusName: v.Status,
		Message:    v.Message,
	})
}

func (h *HTTPHandler) CheckBusinessNumber(w http.ResponseWriter, r *http.Request) {
	dup, err := h.svc.Onboarding.CheckBusinessNumber(r.Context(), ShopID(r.Context()), chi.URLParam(r, "businessNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_duplicate":       dup.IsDuplicate,
		"message":            dup.Message,
		"existing_username":  optional(dup.ExistingUsername),
		"existing_shop_name": optional(dup.ExistingShopName),
	})
}

func (h *HTTPHandler) OnboardingStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Onboarding.Status(r.Context(), ShopID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, onboardingStatusResponse{
		Completed:      st.Completed,
		ShopName:       st.ShopName,
		BusinessNumber: optional(st.BusinessNumber),
		MenuCount:      st.MenuCount,
		CustomerCount:  st.CustomerCount,
	})
}

func (h *HTTPHandler) SaveShopInfo(w http.ResponseWriter, r *http.Request) {
	var req shopInfoRequest
	if !h.decode(w, r, &req) {
		return
	}
	formatted, err := h.svc.Onboarding.SaveShopInfo(r.Context(), ShopID(r.Context()), strings.TrimSpace(req.Name), req.BusinessNumber)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "상점 정보가 저장되었습니다",
		"business_number": formatted,
	})
}

func (h *HTTPHandler) SaveMenus(w http.ResponseWriter, r *http.Request) {
	var req menusRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := make([]service.MenuItem, 0, len(req.Menus))
	for _, m := range req.Menus {
		items = append(items, service.MenuItem{Name: strings.TrimSpace(m.Name), Price: m.Price})
	}
	count, err := h.svc.Onboarding.SaveMenus(r.Context(), ShopID(r.Context()), items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	message := "메뉴 등록을 건너뛰었습니다"
	if count > 0 {
		message = fmt.Sprintf("%d개의 메뉴가 등록되었습니다", count)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": message, "count": count})
}

func (h *HTTPHandler) OnboardingImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.svc.Onboarding.ImportCustomers(r.Context(), ShopID(r.Context()), req.rows())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newImportResponse(result))
}

func (h *HTTPHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Onboarding.Complete(r.Context(), ShopID(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "온보딩이 완료되었습니다"})
}

func (h *HTTPHandler) OnboardingTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := export.CustomerTemplateCSV()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeFile(w, export.CSVContentType, "customer_template.csv", data)
}

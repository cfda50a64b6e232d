package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/comings/prepaid-api/internal/core/domain"
)

type menuCreateRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Price int64  `json:"price" validate:"gte=0"`
}

type menuUpdateRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=100"`
	Price        *int64  `json:"price" validate:"omitempty,gte=0"`
	IsActive     *bool   `json:"is_active"`
	DisplayOrder *int    `json:"display_order" validate:"omitempty,gte=0"`
}

type menuReorderRequest struct {
	MenuIDs []string `json:"menu_ids" validate:"required,dive,required"`
}

type menuResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	IsActive     bool   `json:"is_active"`
	DisplayOrder int    `json:"display_order"`
	CreatedAt    string `json:"created_at"`
}

func newMenuResponse(m domain.Menu) menuResponse {
	return menuResponse{
		ID:           m.ID,
		Name:         m.Name,
		Price:        m.Price,
		IsActive:     m.IsActive,
		DisplayOrder: m.DisplayOrder,
		CreatedAt:    seoulTime(m.CreatedAt),
	}
}

func (h *HTTPHandler) ListMenus(w http.ResponseWriter, r *http.Request) {
	menus, err := h.svc.Menus.List(r.Context(), ShopID(r.Context()), queryBool(r, "include_inactive"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]menuResponse, 0, len(menus))
	for _, m := range menus {
		out = append(out, newMenuResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"menus": out, "total": len(out)})
}

func (h *HTTPHandler) CreateMenu(w http.ResponseWriter, r *http.Request) {
	var req menuCreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	menu, err := h.svc.Menus.Create(r.Context(), ShopID(r.Context()), strings.TrimSpace(req.Name), req.Price)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMenuResponse(menu))
}

func (h *HTTPHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.svc.Menus.Get(r.Context(), ShopID(r.Context()), chi.URLParam(r, "menuID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMenuResponse(menu))
}

func (h *HTTPHandler) UpdateMenu(w http.ResponseWriter, r *http.Request) {
	var req menuUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	menu, err := h.svc.Menus.Update(r.Context(), ShopID(r.Context()), chi.URLParam(r, "menuID"), domain.MenuUpdate{
		Name:         req.Name,
		Price:        req.Price,
		IsActive:     req.IsActive,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMenuResponse(menu))
}

func (h *HTTPHandler) DeleteMenu(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Menus.Delete(r.Context(), ShopID(r.Context()), chi.URLParam(r, "menuID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ReorderMenus(w http.ResponseWriter, r *http.Request) {
	var req menuReorderRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Menus.Reorder(r.Context(), ShopID(r.Context()), req.MenuIDs); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "메뉴 순서가 변경되었습니다"})
}

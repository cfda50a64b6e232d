package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/core/service"
)

type registerRequest struct {
	Username          string `json:"username" validate:"required,min=4,max=20,alphanum,lowercase"`
	Password          string `json:"password" validate:"required,min=8,max=100"`
	Name              string `json:"name" validate:"required,min=1,max=100"`
	Pin               string `json:"pin" validate:"required,len=4,numeric"`
	Email             string `json:"email" validate:"omitempty,email"`
	Phone             string `json:"phone" validate:"omitempty,max=20"`
	VerificationToken string `json:"verification_token"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type identityCompleteRequest struct {
	RequestID string `json:"request_id" validate:"required"`
	EncData   string `json:"enc_data" validate:"required"`
}

type socialLoginRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state"`
}

type shopRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tokenResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
	ExpiresIn    int64   `json:"expires_in"`
	ShopID       string  `json:"shop_id"`
	IsNew        bool    `json:"is_new"`
	Shop         shopRef `json:"shop"`
}

func newTokenResponse(s service.Session) tokenResponse {
	return tokenResponse{
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.Tokens.ExpiresIn / time.Second),
		ShopID:       s.Shop.ID,
		IsNew:        s.IsNew,
		Shop:         shopRef{ID: s.Shop.ID, Name: s.Shop.Name},
	}
}

type meResponse struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Username            string `json:"username"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	BusinessNumber      string `json:"business_number"`
	CreatedAt           string `json:"created_at"`
	HasPin              bool   `json:"has_pin"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

type socialAccountResponse struct {
	Provider  domain.SocialProvider `json:"provider"`
	Email     *string               `json:"email"`
	IsPrimary bool                  `json:"is_primary"`
	LinkedAt  string                `json:"linked_at"`
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	session, err := h.svc.Auth.Register(r.Context(), service.RegisterInput{
		Username:          req.Username,
		Password:          req.Password,
		Name:              req.Name,
		Pin:               req.Pin,
		Email:             req.Email,
		Phone:             req.Phone,
		VerificationToken: req.VerificationToken,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTokenResponse(session))
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	session, err := h.svc.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(session))
}

func (h *HTTPHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	session, err := h.svc.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(session))
}

func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Auth.Logout(r.Context(), claimsFrom(r.Context()), req.RefreshToken); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "로그아웃되었습니다"})
}

func (h *HTTPHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	available, err := h.svc.Auth.UsernameAvailable(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	message := "사용 가능한 아이디입니다"
	if !available {
		message = "이미 사용 중인 아이디입니다"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"available": available, "message": message})
}

func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	shop, err := h.svc.Auth.Me(r.Context(), ShopID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:                  shop.ID,
		Name:                shop.Name,
		Username:            shop.Username,
		Email:               shop.Email,
		Phone:               shop.Phone,
		BusinessNumber:      shop.BusinessNumber,
		CreatedAt:           seoulTime(shop.CreatedAt),
		HasPin:              shop.HasPin(),
		OnboardingCompleted: shop.OnboardingCompleted,
	})
}

func (h *HTTPHandler) StartIdentity(w http.ResponseWriter, r *http.Request) {
	start, err := h.svc.Auth.StartIdentity(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": start.RequestID,
		"enc_data":   start.EncData,
		"mock_mode":  start.MockMode,
	})
}

func (h *HTTPHandler) CompleteIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityCompleteRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.svc.Auth.CompleteIdentity(r.Context(), req.RequestID, req.EncData)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verification_token": result.Token,
		"expires_at":         seoulTime(result.ExpiresAt),
		"name":               result.Name,
	})
}

func (h *HTTPHandler) SocialLoginURL(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		state = uuid.NewString()
	}
	url, err := h.svc.Auth.SocialLoginURL(domain.SocialProvider(chi.URLParam(r, "provider")), state)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url, "state": state})
}

func (h *HTTPHandler) SocialLogin(w http.ResponseWriter, r *http.Request) {
	var req socialLoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	provider := domain.SocialProvider(chi.URLParam(r, "provider"))
	session, err := h.svc.Auth.SocialLogin(r.Context(), provider, req.Code, req.State)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(session))
}

func (h *HTTPHandler) LinkSocial(w http.ResponseWriter, r *http.Request) {
	var req socialLoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	provider := domain.SocialProvider(chi.URLParam(r, "provider"))
	if _, err := h.svc.Auth.LinkSocial(r.Context(), ShopID(r.Context()), provider, req.Code, req.State); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "소셜 계정이 연동되었습니다"})
}

func (h *HTTPHandler) SocialAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.Auth.SocialAccounts(r.Context(), ShopID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]socialAccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, socialAccountResponse{
			Provider:  a.Provider,
			Email:     optional(a.Email),
			IsPrimary: a.IsPrimary,
			LinkedAt:  seoulTime(a.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

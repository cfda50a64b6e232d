package handler

import (
	"net/http"
)

type pinRequest struct {
	Pin string `json:"pin" validate:"required,len=4,numeric"`
}

type pinChangeRequest struct {
	CurrentPin string `json:"current_pin" validate:"required,len=4,numeric"`
	NewPin     string `json:"new_pin" validate:"required,len=4,numeric"`
}

type pinResetRequest struct {
	Password string `json:"password" validate:"required"`
	Pin      string `json:"pin" validate:"required,len=4,numeric"`
}

type pinVerifyResponse struct {
	Verified          bool    `json:"verified"`
	RemainingAttempts int     `json:"remaining_attempts"`
	LockedUntil       *string `json:"locked_until"`
	PinToken          *string `json:"pin_token"`
}

func (h *HTTPHandler) VerifyPin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.svc.Pins.Verify(r.Context(), ShopID(r.Context()), req.Pin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pinVerifyResponse{
		Verified:          result.Verified,
		RemainingAttempts: result.RemainingAttempts,
		LockedUntil:       timeString(result.LockedUntil),
		PinToken:          optional(result.Token),
	})
}

func (h *HTTPHandler) ChangePin(w http.ResponseWriter, r *http.Request) {
	var req pinChangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Pins.Change(r.Context(), ShopID(r.Context()), req.CurrentPin, req.NewPin); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "PIN이 변경되었습니다"})
}

func (h *HTTPHandler) SetupPin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Pins.Setup(r.Context(), ShopID(r.Context()), req.Pin); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "PIN이 설정되었습니다"})
}

func (h *HTTPHandler) ResetPin(w http.ResponseWriter, r *http.Request) {
	var req pinResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Pins.Reset(r.Context(), ShopID(r.Context()), req.Password, req.Pin); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "PIN이 재설정되었습니다"})
}

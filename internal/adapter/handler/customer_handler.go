package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/comings/prepaid-api/internal/adapter/export"
	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/core/service"
)

type customerCreateRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=50"`
	Phone       string `json:"phone" validate:"omitempty,max=20"`
	PhoneSuffix string `json:"phone_suffix" validate:"omitempty,len=4,numeric"`
}

type customerUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=50"`
	Phone       *string `json:"phone" validate:"omitempty,max=20"`
	PhoneSuffix *string `json:"phone_suffix" validate:"omitempty,len=4,numeric"`
}

type importRowRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=50"`
	Phone   string `json:"phone" validate:"required,len=11,numeric,startswith=010"`
	Balance int64  `json:"balance" validate:"gte=0"`
}

type importRequest struct {
	Customers []importRowRequest `json:"customers" validate:"dive"`
}

func (req importRequest) rows() []domain.ImportRow {
	rows := make([]domain.ImportRow, 0, len(req.Customers))
	for _, c := range req.Customers {
		rows = append(rows, domain.ImportRow{Name: strings.TrimSpace(c.Name), Phone: c.Phone, Balance: c.Balance})
	}
	return rows
}

type customerResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PhoneSuffix    string `json:"phone_suffix"`
	CurrentBalance int64  `json:"current_balance"`
	CreatedAt      string `json:"created_at"`
}

func newCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{
		ID:             c.ID,
		Name:           c.Name,
		PhoneSuffix:    c.PhoneSuffix,
		CurrentBalance: c.CurrentBalance,
		CreatedAt:      seoulTime(c.CreatedAt),
	}
}

type customerDetailResponse struct {
	customerResponse
	TotalCharged     int64 `json:"total_charged"`
	TotalUsed        int64 `json:"total_used"`
	TransactionCount int   `json:"transaction_count"`
}

type customerListResponse struct {
	Customers []customerResponse `json:"customers"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PageSize  int                `json:"page_size"`
}

type skippedRowResponse struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

type importResponse struct {
	Total          int                  `json:"total"`
	Imported       int                  `json:"imported"`
	Skipped        int                  `json:"skipped"`
	Errors         []string             `json:"errors"`
	SkippedDetails []skippedRowResponse `json:"skipped_details"`
}

func newImportResponse(r domain.ImportResult) importResponse {
	out := importResponse{
		Total:          r.Total,
		Imported:       r.Imported,
		Skipped:        r.Skipped,
		Errors:         r.Errors,
		SkippedDetails: make([]skippedRowResponse, 0, len(r.SkippedDetails)),
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	for _, s := range r.SkippedDetails {
		out.SkippedDetails = append(out.SkippedDetails, skippedRowResponse(s))
	}
	return out
}

func (h *HTTPHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", 20)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	q := domain.CustomerQuery{
		ShopID:   ShopID(r.Context()),
		Search:   strings.TrimSpace(r.URL.Query().Get("query")),
		SortBy:   domain.CustomerSort(r.URL.Query().Get("sort_by")),
		Desc:     strings.EqualFold(r.URL.Query().Get("sort_order"), "desc"),
		Page:     page,
		PageSize: pageSize,
	}
	q.Normalize()

	customers, total, err := h.svc.Customers.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := customerListResponse{
		Customers: make([]customerResponse, 0, len(customers)),
		Total:     total,
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
	for _, c := range customers {
		out.Customers = append(out.Customers, newCustomerResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerCreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	customer, err := h.svc.Customers.Create(r.Context(), ShopID(r.Context()), service.CustomerInput{
		Name:        strings.TrimSpace(req.Name),
		Phone:       req.Phone,
		PhoneSuffix: req.PhoneSuffix,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCustomerResponse(customer))
}

func (h *HTTPHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Customers.Get(r.Context(), ShopID(r.Context()), chi.URLParam(r, "customerID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customerDetailResponse{
		customerResponse: newCustomerResponse(detail.Customer),
		TotalCharged:     detail.Stats.TotalCharged,
		TotalUsed:        detail.Stats.TotalUsed,
		TransactionCount: detail.Stats.TransactionCount,
	})
}

func (h *HTTPHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	customer, err := h.svc.Customers.Update(r.Context(), ShopID(r.Context()), chi.URLParam(r, "customerID"), service.CustomerUpdate{
		Name:        req.Name,
		Phone:       req.Phone,
		PhoneSuffix: req.PhoneSuffix,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCustomerResponse(customer))
}

func (h *HTTPHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Customers.Delete(r.Context(), ShopID(r.Context()), chi.URLParam(r, "customerID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) CustomerTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := export.CustomerTemplate()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeFile(w, export.XLSXContentType, "customer_template.xlsx", data)
}

func (h *HTTPHandler) ExportCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.svc.Customers.Export(r.Context(), ShopID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := export.Customers(customers)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filename := "customers_" + time.Now().In(domain.Seoul).Format("20060102") + ".xlsx"
	writeFile(w, export.XLSXContentType, filename, data)
}

func (h *HTTPHandler) ImportCustomers(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.svc.Customers.Import(r.Context(), ShopID(r.Context()), req.rows())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newImportResponse(result))
}

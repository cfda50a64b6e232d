package handler

import (
	"net/http"

	"github.com/comings/prepaid-api/internal/core/service"
)

type summaryResponse struct {
	TodayTotalCharge int64 `json:"today_total_charge"`
	TodayTotalDeduct int64 `json:"today_total_deduct"`
	TotalBalance     int64 `json:"total_balance"`
	TotalCustomers   int   `json:"total_customers"`
}

type periodResponse struct {
	Period           string `json:"period"`
	ChargeAmount     int64  `json:"charge_amount"`
	DeductAmount     int64  `json:"deduct_amount"`
	TransactionCount int    `json:"transaction_count"`
}

type topCustomerResponse struct {
	CustomerID   string `json:"customer_id"`
	Name         string `json:"name"`
	TotalCharged int64  `json:"total_charged"`
	VisitCount   int    `json:"visit_count"`
}

type methodResponse struct {
	Method     string  `json:"method"`
	Count      int     `json:"count"`
	Amount     int64   `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type menuCountResponse struct {
	Menu  string `json:"menu"`
	Count int    `json:"count"`
}

func dateRange(r *http.Request) (service.DateRange, error) {
	start, err := queryDate(r, "start_date")
	if err != nil {
		return service.DateRange{}, err
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		return service.DateRange{}, err
	}
	return service.DateRange{Start: start, End: end}, nil
}

func (h *HTTPHandler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Dashboard.Summary(r.Context(), ShopID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		TodayTotalCharge: s.TodayCharge,
		TodayTotalDeduct: s.TodayDeduct,
		TotalBalance:     s.TotalBalance,
		TotalCustomers:   s.TotalCustomers,
	})
}

func (h *HTTPHandler) PeriodAnalytics(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	period := service.PeriodType(r.URL.Query().Get("period_type"))
	buckets, err := h.svc.Dashboard.Period(r.Context(), ShopID(r.Context()), period, rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]periodResponse, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, periodResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) TopCustomers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	top, err := h.svc.Dashboard.TopCustomers(r.Context(), ShopID(r.Context()), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]topCustomerResponse, 0, len(top))
	for _, c := range top {
		out = append(out, topCustomerResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) PaymentMethodStats(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.svc.Dashboard.PaymentMethods(r.Context(), ShopID(r.Context()), rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]methodResponse, 0, len(stats))
	for _, s := range stats {
		out = append(out, methodResponse{
			Method:     string(s.Method),
			Count:      s.Count,
			Amount:     s.Amount,
			Percentage: s.Percentage,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) PopularMenus(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	menus, err := h.svc.Dashboard.PopularMenus(r.Context(), ShopID(r.Context()), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]menuCountResponse, 0, len(menus))
	for _, m := range menus {
		out = append(out, menuCountResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/comings/prepaid-api/internal/metrics"
)

type RouterConfig struct {
	// CORSOrigins is ignored in development, where every origin is allowed.
	CORSOrigins []string
	Development bool
	// Limiter throttles login and PIN verification. Nil disables it.
	Limiter *RateLimiter
}

func (h *HTTPHandler) Routes(cfg RouterConfig) http.Handler {
	origins := cfg.CORSOrigins
	if cfg.Development {
		origins = []string{"*"}
	}

	throttle := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		throttle = cfg.Limiter.Handler
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(newCORS(origins).Handler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "Method Not Allowed"})
	})

	r.Get("/", h.Root)
	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.With(throttle).Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.Get("/check-username/{username}", h.CheckUsername)
			r.Post("/identity/start", h.StartIdentity)
			r.Post("/identity/complete", h.CompleteIdentity)
			r.Get("/login/{provider}/url", h.SocialLoginURL)
			r.With(throttle).Post("/login/{provider}", h.SocialLogin)

			r.Group(func(r chi.Router) {
				r.Use(h.authenticate)
				r.Post("/logout", h.Logout)
				r.Get("/me", h.Me)
				r.Get("/social-accounts", h.SocialAccounts)
				r.Post("/link/{provider}", h.LinkSocial)

				r.With(throttle).Post("/pin/verify", h.VerifyPin)
				r.Post("/pin/change", h.ChangePin)
				r.Post("/pin/setup", h.SetupPin)
				r.Post("/pin/reset", h.ResetPin)
			})
		})

		r.Route("/customers", func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/data/template", h.CustomerTemplate)
			r.Get("/data/export", h.ExportCustomers)
			r.Post("/data/import", h.ImportCustomers)
			r.Get("/{customerID}", h.GetCustomer)
			r.With(h.requirePin).Put("/{customerID}", h.UpdateCustomer)
			r.With(h.requirePin).Delete("/{customerID}", h.DeleteCustomer)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/", h.ListTransactions)
			r.Group(func(r chi.Router) {
				r.Use(h.requireActive)
				r.Post("/charge", h.Charge)
				r.Post("/deduct", h.Deduct)
				r.With(h.requirePin).Post("/cancel", h.CancelTransaction)
			})
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/summary", h.DashboardSummary)
			r.Get("/analytics/period", h.PeriodAnalytics)
			r.Get("/analytics/top-customers", h.TopCustomers)
			r.Get("/analytics/payment-methods", h.PaymentMethodStats)
			r.Get("/analytics/popular-menus", h.PopularMenus)
		})

		r.Route("/menus", func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/", h.ListMenus)
			r.Post("/", h.CreateMenu)
			r.Put("/reorder", h.ReorderMenus)
			r.Get("/{menuID}", h.GetMenu)
			r.Put("/{menuID}", h.UpdateMenu)
			r.Delete("/{menuID}", h.DeleteMenu)
		})

		r.Route("/onboarding", func(r chi.Router) {
			r.Post("/verify-business-number", h.VerifyBusinessNumber)
			r.Group(func(r chi.Router) {
				r.Use(h.authenticate)
				r.Get("/check-business-number/{businessNumber}", h.CheckBusinessNumber)
				r.Get("/status", h.OnboardingStatus)
				r.Put("/step1", h.SaveShopInfo)
				r.Put("/step2", h.SaveMenus)
				r.Post("/step3/import", h.OnboardingImport)
				r.Post("/complete", h.CompleteOnboarding)
				r.Get("/template", h.OnboardingTemplate)
			})
		})

		r.Route("/subscription", func(r chi.Router) {
			r.Get("/config", h.SubscriptionConfig)
			r.Post("/webhook", h.PaymentWebhook)
			r.Group(func(r chi.Router) {
				r.Use(h.authenticate)
				r.Get("/", h.GetSubscription)
				r.Post("/billing-key", h.RegisterBillingKey)
				r.Delete("/billing-key", h.RemoveBillingKey)
				r.Post("/subscribe", h.Subscribe)
				r.Post("/cancel", h.CancelSubscription)
				r.Post("/reactivate", h.ReactivateSubscription)
				r.Get("/payments", h.ListPayments)
				r.Put("/phone", h.UpdateSubscriptionPhone)
			})
		})
	})

	return r
}

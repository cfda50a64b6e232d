package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/customers/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/customers/{id}", "404"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/customers/abc", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/customers/{id}", "404")))
}

func TestRecordLedger(t *testing.T) {
	okBefore := testutil.ToFloat64(ledgerOps.WithLabelValues("charge", "ok"))
	amountBefore := testutil.ToFloat64(ledgerAmount.WithLabelValues("charge"))

	RecordLedger("charge", 5000, nil)
	RecordLedger("charge", 5000, errors.New("boom"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ledgerOps.WithLabelValues("charge", "ok")))
	assert.Equal(t, amountBefore+5000, testutil.ToFloat64(ledgerAmount.WithLabelValues("charge")))
}

func TestHandler_Exposes(t *testing.T) {
	RecordSubscriptionTransition("ACTIVE")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "prepaid_subscription_transitions_total"))
}

package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kmalyshev/topup-service/internal/config"
	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/gateways"
	"github.com/kmalyshev/topup-service/internal/gateways/unitpay"
	"github.com/kmalyshev/topup-service/internal/handlers/checkout"
	"github.com/kmalyshev/topup-service/internal/testutil/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHandler(t *testing.T) (*checkout.Handler, *mocks.PaymentStore) {
	t.Helper()

	db := &mocks.StubDB{}
	store := mocks.NewPaymentStore()
	adapter, err := unitpay.New(config.UnitpayConfig{PublicKey: "pk", SecretKey: "sk"}, db, store, zap.NewNop())
	require.NoError(t, err)

	registry := gateways.NewRegistry(adapter)
	frontend := config.FrontendConfig{BaseURL: "https://app.example.com/wallet"}
	return checkout.NewHandler(db, registry, store, frontend, zap.NewNop()), store
}

func newMux(h *checkout.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/topup", h.CreateTopUp)
	mux.HandleFunc("GET /api/v1/payments/{invoice}", h.GetPayment)
	mux.HandleFunc("GET /payments/success", h.Success)
	mux.HandleFunc("GET /payments/fail", h.Fail)
	return mux
}

func TestCreateTopUp(t *testing.T) {
	h, store := newHandler(t)
	mux := newMux(h)

	body := `{"user_id":"user-1","gateway":"unitpay","amount":"149.90","currency":"rub","description":"Wallet top-up"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/topup", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		PaymentID     string `json:"payment_id"`
		RedirectURL   string `json:"redirect_url"`
		InvoiceNumber int64  `json:"invoice_number"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.PaymentID)
	assert.Equal(t, int64(1000), resp.InvoiceNumber)
	assert.True(t, strings.HasPrefix(resp.RedirectURL, "https://unitpay.ru/pay/pk?"))

	stored, err := store.GetByInvoice(context.Background(), nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, "RUB", stored.Currency)
	assert.Equal(t, domain.PurposeDeposit, stored.Purpose)
}

func TestCreateTopUp_Validation(t *testing.T) {
	h, _ := newHandler(t)
	mux := newMux(h)

	cases := []string{
		`{`,
		`{"gateway":"unitpay","amount":"10"}`,
		`{"user_id":"u","gateway":"paypal","amount":"10"}`,
		`{"user_id":"u","gateway":"unitpay","amount":"-10"}`,
		`{"user_id":"u","gateway":"unitpay","amount":"ten"}`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/topup", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestCreateTopUp_UnconfiguredGateway(t *testing.T) {
	h, _ := newHandler(t)
	mux := newMux(h)

	// robokassa is a known gateway but absent from the registry
	body := `{"user_id":"u","gateway":"robokassa","amount":"10"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/topup", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPayment(t *testing.T) {
	h, store := newHandler(t)
	mux := newMux(h)

	store.Seed(&domain.Payment{
		UserID:        "user-1",
		Currency:      "RUB",
		Gateway:       domain.GatewayUnitpay,
		Status:        domain.StatusCompleted,
		Amount:        decimal.RequireFromString("100.00"),
		InvoiceNumber: 42,
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/payments/42", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status        string `json:"status"`
		Amount        string `json:"amount"`
		InvoiceNumber int64  `json:"invoice_number"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "100.00", resp.Amount)
	assert.Equal(t, int64(42), resp.InvoiceNumber)
}

func TestGetPayment_NotFound(t *testing.T) {
	h, _ := newHandler(t)
	mux := newMux(h)

	for _, path := range []string{"/api/v1/payments/7", "/api/v1/payments/abc"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
	}
}

func TestLanding_StatusMapping(t *testing.T) {
	h, store := newHandler(t)
	mux := newMux(h)

	seed := func(invoice int64, status domain.PaymentStatus) {
		store.Seed(&domain.Payment{
			UserID:        "user-1",
			Status:        status,
			Gateway:       domain.GatewayUnitpay,
			Amount:        decimal.NewFromInt(10),
			InvoiceNumber: invoice,
		})
	}
	seed(1, domain.StatusCompleted)
	seed(2, domain.StatusPending)
	seed(3, domain.StatusFailed)

	cases := map[string]string{
		"/payments/success?invoice=1": "payment=success",
		"/payments/success?invoice=2": "payment=pending",
		"/payments/fail?invoice=3":    "payment=failed",
		"/payments/fail?invoice=999":  "payment=error",
		"/payments/success":           "payment=error",
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

		require.Equal(t, http.StatusFound, rec.Code, "path %s", path)
		location := rec.Header().Get("Location")
		assert.True(t, strings.HasPrefix(location, "https://app.example.com/wallet?"), "path %s", path)
		assert.Contains(t, location, want, "path %s", path)
	}
}

func TestLanding_ProviderOrderParams(t *testing.T) {
	h, store := newHandler(t)
	mux := newMux(h)

	store.Seed(&domain.Payment{
		UserID:        "user-1",
		Status:        domain.StatusCompleted,
		Gateway:       domain.GatewayRobokassa,
		Amount:        decimal.NewFromInt(10),
		InvoiceNumber: 42,
	})

	// Each provider echoes the invoice under its own parameter name
	for _, path := range []string{
		"/payments/success?account=42",
		"/payments/success?InvId=42",
		"/payments/success?MERCHANT_ORDER_ID=42",
		"/payments/success?m_orderid=42",
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		require.Equal(t, http.StatusFound, rec.Code, "path %s", path)
		assert.Contains(t, rec.Header().Get("Location"), "payment=success", "path %s", path)
	}
}

func TestLanding_NeverMutates(t *testing.T) {
	h, store := newHandler(t)
	mux := newMux(h)

	store.Seed(&domain.Payment{
		UserID:        "user-1",
		Status:        domain.StatusPending,
		Gateway:       domain.GatewayUnitpay,
		Amount:        decimal.NewFromInt(10),
		InvoiceNumber: 42,
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/payments/success?invoice=42", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	stored, err := store.GetByInvoice(context.Background(), nil, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

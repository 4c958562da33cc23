package payeer

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/kmalyshev/topup-service/internal/config"
	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/kmalyshev/topup-service/internal/testutil/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testShopID = "1873648"
	testSecret = "payeer-secret"
)

func testAdapter(t *testing.T) (*Adapter, *mocks.PaymentStore) {
	t.Helper()
	store := mocks.NewPaymentStore()
	adapter, err := New(config.PayeerConfig{
		ShopID: testShopID,
		Secret: testSecret,
	}, &mocks.StubDB{}, store, zap.NewNop())
	require.NoError(t, err)
	return adapter, store
}

func notificationFields(orderID, amount, status string) map[string]string {
	return map[string]string{
		"m_operation_id":       "111222333",
		"m_operation_ps":       "2609",
		"m_operation_date":     "01.09.2026 10:00:00",
		"m_operation_pay_date": "01.09.2026 10:00:05",
		"m_shop":               testShopID,
		"m_orderid":            orderID,
		"m_amount":             amount,
		"m_curr":               "RUB",
		"m_desc":               base64.StdEncoding.EncodeToString([]byte("Top-up")),
		"m_status":             status,
	}
}

func notificationForm(fields map[string]string, secret string) url.Values {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	form.Set("m_sign", notificationSignature(fields, secret))
	return form
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(config.PayeerConfig{ShopID: testShopID}, &mocks.StubDB{}, mocks.NewPaymentStore(), zap.NewNop())
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
}

func TestSignChain_UppercaseHex(t *testing.T) {
	sig := signChain([]string{"a", "b"}, testSecret)
	assert.Equal(t, strings.ToUpper(sig), sig)
	assert.Len(t, sig, 64)
}

func TestVerifyNotification_RoundTrip(t *testing.T) {
	fields := notificationFields("42", "100.00", "success")
	sig := notificationSignature(fields, testSecret)

	assert.True(t, verifyNotification(fields, testSecret, sig))
	// Lowercased delivery still verifies
	assert.True(t, verifyNotification(fields, testSecret, strings.ToLower(sig)))
}

func TestVerifyNotification_SingleByteFlip(t *testing.T) {
	fields := notificationFields("42", "100.00", "success")
	sig := notificationSignature(fields, testSecret)

	flipped := []byte(sig)
	if flipped[0] == 'A' {
		flipped[0] = 'B'
	} else {
		flipped[0] = 'A'
	}
	assert.False(t, verifyNotification(fields, testSecret, string(flipped)))

	// Changing any chained field invalidates the signature
	fields["m_amount"] = "999.00"
	assert.False(t, verifyNotification(fields, testSecret, sig))
}

func TestAdapter_CreateIntent(t *testing.T) {
	adapter, _ := testAdapter(t)

	intent, err := adapter.CreateIntent(context.Background(), ports.CreateIntentRequest{
		UserID:      "user-1",
		Currency:    "RUB",
		Description: "Wallet top-up",
		Purpose:     domain.PurposeDeposit,
		Amount:      decimal.RequireFromString("100"),
	})
	require.NoError(t, err)

	parsed, err := url.Parse(intent.RedirectURL)
	require.NoError(t, err)
	require.Equal(t, "payeer.com", parsed.Host)

	q := parsed.Query()
	assert.Equal(t, testShopID, q.Get("m_shop"))
	// Amounts are always rendered with two decimals
	assert.Equal(t, "100.00", q.Get("m_amount"))
	assert.Equal(t, "1000", q.Get("m_orderid"))

	desc, err := base64.StdEncoding.DecodeString(q.Get("m_desc"))
	require.NoError(t, err)
	assert.Equal(t, "Wallet top-up", string(desc))

	expected := paymentSignature(testShopID, "1000", "100.00", "RUB", q.Get("m_desc"), testSecret)
	assert.Equal(t, expected, q.Get("m_sign"))
}

func TestAdapter_ParseNotification_Success(t *testing.T) {
	adapter, _ := testAdapter(t)

	form := notificationForm(notificationFields("42", "100.00", "success"), testSecret)
	r := httptest.NewRequest("POST", "/webhooks/payeer", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	n, err := adapter.ParseNotification(r)
	require.NoError(t, err)

	assert.Equal(t, domain.EventPay, n.Event)
	assert.Equal(t, int64(42), n.InvoiceNumber)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, "RUB", n.Currency)
	assert.Equal(t, "111222333", n.ExternalTxID)

	require.NoError(t, adapter.VerifyNotification(n))
}

func TestAdapter_ParseNotification_NonSuccessIsError(t *testing.T) {
	adapter, _ := testAdapter(t)

	form := notificationForm(notificationFields("42", "100.00", "fail"), testSecret)
	r := httptest.NewRequest("POST", "/webhooks/payeer", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	n, err := adapter.ParseNotification(r)
	require.NoError(t, err)
	assert.Equal(t, domain.EventError, n.Event)
}

func TestAdapter_ParseNotification_MissingOrderID(t *testing.T) {
	adapter, _ := testAdapter(t)

	fields := notificationFields("42", "100.00", "success")
	delete(fields, "m_orderid")
	form := notificationForm(fields, testSecret)

	r := httptest.NewRequest("POST", "/webhooks/payeer", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err := adapter.ParseNotification(r)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
}

func TestAdapter_VerifyNotification_Forged(t *testing.T) {
	adapter, _ := testAdapter(t)

	form := notificationForm(notificationFields("42", "100.00", "success"), "wrong-secret")
	r := httptest.NewRequest("POST", "/webhooks/payeer", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	n, err := adapter.ParseNotification(r)
	require.NoError(t, err)

	err = adapter.VerifyNotification(n)
	require.Error(t, err)
	assert.True(t, domain.IsSignatureError(err))
}

package freekassa

import (
	"context"
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
	testMerchantID = "12345"
	testSecret1    = "first-secret"
	testSecret2    = "second-secret"
)

func testAdapter(t *testing.T) (*Adapter, *mocks.PaymentStore) {
	t.Helper()
	store := mocks.NewPaymentStore()
	adapter, err := New(config.FreeKassaConfig{
		MerchantID: testMerchantID,
		Secret1:    testSecret1,
		Secret2:    testSecret2,
	}, &mocks.StubDB{}, store, zap.NewNop())
	require.NoError(t, err)
	return adapter, store
}

func TestNew_RequiresBothSecrets(t *testing.T) {
	for _, cfg := range []config.FreeKassaConfig{
		{MerchantID: testMerchantID, Secret1: testSecret1},
		{MerchantID: testMerchantID, Secret2: testSecret2},
		{Secret1: testSecret1, Secret2: testSecret2},
	} {
		_, err := New(cfg, &mocks.StubDB{}, mocks.NewPaymentStore(), zap.NewNop())
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
	}
}

func TestSignatures_UseDistinctSecrets(t *testing.T) {
	// The checkout signature and the webhook signature differ both in
	// secret and in field set; neither may verify the other
	payment := paymentSignature(testMerchantID, "100.00", testSecret1, "RUB", "42")
	notification := notificationSignature(testMerchantID, "100.00", testSecret2, "42")
	assert.NotEqual(t, payment, notification)

	assert.True(t, verifyNotification(testMerchantID, "100.00", testSecret2, "42", notification))
	assert.False(t, verifyNotification(testMerchantID, "100.00", testSecret2, "42", payment))
}

func TestVerifyNotification_SingleByteFlip(t *testing.T) {
	sig := notificationSignature(testMerchantID, "100.00", testSecret2, "42")

	flipped := []byte(sig)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	assert.False(t, verifyNotification(testMerchantID, "100.00", testSecret2, "42", string(flipped)))
}

func TestVerifyNotification_AmountRenderings(t *testing.T) {
	// Signed over "100" but delivered as "100": verifies as sent
	asSent := notificationSignature(testMerchantID, "100", testSecret2, "42")
	assert.True(t, verifyNotification(testMerchantID, "100", testSecret2, "42", asSent))

	// Signed over the forced two-decimal rendering of the same value
	fixed := notificationSignature(testMerchantID, "100.00", testSecret2, "42")
	assert.True(t, verifyNotification(testMerchantID, "100", testSecret2, "42", fixed))

	// A genuinely different amount still fails both renderings
	assert.False(t, verifyNotification(testMerchantID, "100.50", testSecret2, "42", asSent))
}

func TestVerifyNotification_CaseAndWhitespace(t *testing.T) {
	sig := notificationSignature(testMerchantID, "100.00", testSecret2, "42")
	assert.True(t, verifyNotification(testMerchantID, "100.00", testSecret2, "42", " "+strings.ToUpper(sig)+" "))
}

func TestAdapter_CreateIntent(t *testing.T) {
	adapter, _ := testAdapter(t)

	intent, err := adapter.CreateIntent(context.Background(), ports.CreateIntentRequest{
		UserID:   "user-1",
		Currency: "RUB",
		Purpose:  domain.PurposeDeposit,
		Amount:   decimal.RequireFromString("100"),
	})
	require.NoError(t, err)

	parsed, err := url.Parse(intent.RedirectURL)
	require.NoError(t, err)
	require.Equal(t, "pay.freekassa.ru", parsed.Host)

	q := parsed.Query()
	assert.Equal(t, testMerchantID, q.Get("m"))
	assert.Equal(t, "100.00", q.Get("oa"))
	assert.Equal(t, "1000", q.Get("o"))
	expected := paymentSignature(testMerchantID, "100.00", testSecret1, "RUB", "1000")
	assert.Equal(t, expected, q.Get("s"))
}

func TestAdapter_ParseNotification(t *testing.T) {
	adapter, _ := testAdapter(t)

	form := url.Values{}
	form.Set("MERCHANT_ID", testMerchantID)
	form.Set("MERCHANT_ORDER_ID", "42")
	form.Set("AMOUNT", "100.00")
	form.Set("intid", "555777")
	form.Set("SIGN", notificationSignature(testMerchantID, "100.00", testSecret2, "42"))

	r := httptest.NewRequest("POST", "/webhooks/freekassa", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	n, err := adapter.ParseNotification(r)
	require.NoError(t, err)

	assert.Equal(t, domain.EventPay, n.Event)
	assert.Equal(t, int64(42), n.InvoiceNumber)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, "555777", n.ExternalTxID)
	assert.Empty(t, n.Currency)

	require.NoError(t, adapter.VerifyNotification(n))
}

func TestAdapter_ParseNotification_MissingOrderID(t *testing.T) {
	adapter, _ := testAdapter(t)

	form := url.Values{}
	form.Set("AMOUNT", "100.00")

	r := httptest.NewRequest("POST", "/webhooks/freekassa", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err := adapter.ParseNotification(r)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
}

func TestAdapter_VerifyNotification_WrongSecret(t *testing.T) {
	adapter, _ := testAdapter(t)

	form := url.Values{}
	form.Set("MERCHANT_ORDER_ID", "42")
	form.Set("AMOUNT", "100.00")
	form.Set("SIGN", notificationSignature(testMerchantID, "100.00", "not-the-secret", "42"))

	r := httptest.NewRequest("POST", "/webhooks/freekassa", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	n, err := adapter.ParseNotification(r)
	require.NoError(t, err)

	err = adapter.VerifyNotification(n)
	require.Error(t, err)
	assert.True(t, domain.IsSignatureError(err))
}

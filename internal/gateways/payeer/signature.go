package payeer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signChain computes the uppercase hex SHA-256 of the colon-joined fields
// with the secret appended. Both directions use this scheme, over different
// field sets.
func signChain(fields []string, secret string) string {
	chain := strings.Join(append(fields, secret), ":")
	digest := sha256.Sum256([]byte(chain))
	return strings.ToUpper(hex.EncodeToString(digest[:]))
}

// paymentSignature signs the checkout field set:
// m_shop:m_orderid:m_amount:m_curr:m_desc
func paymentSignature(shop, orderID, amount, currency, desc, secret string) string {
	return signChain([]string{shop, orderID, amount, currency, desc}, secret)
}

// notificationSignature signs the webhook field set:
// m_operation_id:m_operation_ps:m_operation_date:m_operation_pay_date:
// m_shop:m_orderid:m_amount:m_curr:m_desc:m_status
func notificationSignature(fields map[string]string, secret string) string {
	ordered := []string{
		fields["m_operation_id"],
		fields["m_operation_ps"],
		fields["m_operation_date"],
		fields["m_operation_pay_date"],
		fields["m_shop"],
		fields["m_orderid"],
		fields["m_amount"],
		fields["m_curr"],
		fields["m_desc"],
		fields["m_status"],
	}
	return signChain(ordered, secret)
}

// verifyNotification checks a webhook signature in constant time
func verifyNotification(fields map[string]string, secret, candidate string) bool {
	expected := notificationSignature(fields, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToUpper(candidate)))
}

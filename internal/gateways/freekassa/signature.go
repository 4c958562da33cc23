package freekassa

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// paymentSignature signs the checkout URL field set with the first secret:
// MD5(merchantID:amount:secret1:currency:orderID)
func paymentSignature(merchantID, amount, secret1, currency, orderID string) string {
	chain := strings.Join([]string{merchantID, amount, secret1, currency, orderID}, ":")
	digest := md5.Sum([]byte(chain))
	return hex.EncodeToString(digest[:])
}

// notificationSignature signs the webhook field set with the second secret:
// MD5(merchantID:amount:secret2:orderID). Creating and verifying use
// different secrets and different field sets on purpose.
func notificationSignature(merchantID, amount, secret2, orderID string) string {
	chain := strings.Join([]string{merchantID, amount, secret2, orderID}, ":")
	digest := md5.Sum([]byte(chain))
	return hex.EncodeToString(digest[:])
}

// verifyNotification checks a webhook signature in constant time. The
// provider has been observed signing the amount both as sent and rendered
// with forced two decimals; either form is accepted.
func verifyNotification(merchantID, rawAmount, secret2, orderID, candidate string) bool {
	candidate = strings.ToLower(strings.TrimSpace(candidate))

	for _, amount := range amountRenderings(rawAmount) {
		expected := notificationSignature(merchantID, amount, secret2, orderID)
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return true
		}
	}
	return false
}

// amountRenderings returns the candidate amount strings to try: the value as
// sent, and the same value forced to two fraction digits
func amountRenderings(raw string) []string {
	renderings := []string{raw}
	if d, err := decimal.NewFromString(raw); err == nil {
		fixed := d.StringFixed(2)
		if fixed != raw {
			renderings = append(renderings, fixed)
		}
	}
	return renderings
}

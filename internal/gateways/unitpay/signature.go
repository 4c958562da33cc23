package unitpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// delimiter between signature chain members, as defined by the Unitpay protocol
const delimiter = "{up}"

// paymentSignature signs the checkout redirect field set:
// SHA-256(account{up}currency{up}desc{up}sum{up}secret).
// This is a different field set from webhook verification; the two contracts
// must stay separate.
func paymentSignature(account, currency, desc, sum, secret string) string {
	chain := strings.Join([]string{account, currency, desc, sum, secret}, delimiter)
	digest := sha256.Sum256([]byte(chain))
	return hex.EncodeToString(digest[:])
}

// notificationSignature signs a webhook event: the method name, then every
// params[] value ordered by key (signature itself excluded), then the secret,
// all joined with the delimiter.
func notificationSignature(method string, params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "signature" || k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+2)
	parts = append(parts, method)
	for _, k := range keys {
		parts = append(parts, params[k])
	}
	parts = append(parts, secret)

	digest := sha256.Sum256([]byte(strings.Join(parts, delimiter)))
	return hex.EncodeToString(digest[:])
}

// verifyNotification checks a webhook signature in constant time
func verifyNotification(method string, params map[string]string, secret, candidate string) bool {
	expected := notificationSignature(method, params, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(candidate)))
}

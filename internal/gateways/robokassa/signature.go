package robokassa

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// paymentSignature signs the checkout URL with the first password:
// MD5(login:outSum:invID[:receipt]:password1)
func paymentSignature(login, outSum, invID, receipt, password1 string) string {
	parts := []string{login, outSum, invID}
	if receipt != "" {
		parts = append(parts, receipt)
	}
	parts = append(parts, password1)
	digest := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(digest[:])
}

// notificationSignature signs the Result webhook with the second password:
// MD5(outSum:invID:password2)
func notificationSignature(outSum, invID, password2 string) string {
	digest := md5.Sum([]byte(strings.Join([]string{outSum, invID, password2}, ":")))
	return hex.EncodeToString(digest[:])
}

// verifyNotification compares in constant time; the provider sends the hex
// digest uppercased
func verifyNotification(outSum, invID, password2, candidate string) bool {
	expected := notificationSignature(outSum, invID, password2)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(candidate)))
}

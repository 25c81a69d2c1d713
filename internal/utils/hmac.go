package utils

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// SignHMACSHA512Hex returns the hex encoded HMAC-SHA512 of body, the scheme
// Paystack uses for webhook signatures.
func SignHMACSHA512Hex(body []byte, secret string) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMACSHA512Hex checks a hex encoded HMAC-SHA512 signature in constant time
func VerifyHMACSHA512Hex(body []byte, signature, secret string) bool {
	expected := SignHMACSHA512Hex(body, secret)
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// SecureCompare compares two secrets in constant time
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

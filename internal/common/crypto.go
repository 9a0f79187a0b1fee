package common

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// CalculateHash returns a hex-encoded HMAC-SHA256 over the inputs in order.
func CalculateHash(key string, inputs ...string) string {
	if len(inputs) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(key))
	for _, input := range inputs {
		mac.Write([]byte(input))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateSecret returns n characters of URL-safe random text.
func GenerateSecret(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:n], nil
}

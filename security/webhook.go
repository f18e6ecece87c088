package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const sigPrefix = "sha256="

// VerifyWebhookSignature reports whether header is a valid
// "sha256=<hex>" HMAC-SHA256 signature of body under secret. It rejects
// empty or malformed headers before ever touching hmac.Equal, and uses
// hmac.Equal (not bytes.Equal) for the actual comparison so the check
// runs in constant time regardless of where the first mismatching byte
// falls.
func VerifyWebhookSignature(body []byte, header, secret string) bool {
	if secret == "" || !strings.HasPrefix(header, sigPrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, sigPrefix))
	if err != nil || len(got) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := mac.Sum(nil)

	return hmac.Equal(got, want)
}

// SignWebhookBody computes the "sha256=<hex>" header value a caller
// would need to send for body to verify under secret. It exists for
// tests and for agentmesh's own outbound webhook retries.
func SignWebhookBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return sigPrefix + hex.EncodeToString(mac.Sum(nil))
}

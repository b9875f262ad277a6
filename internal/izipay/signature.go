package izipay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Signer computes and checks the HMAC-SHA256 signature Izipay attaches to
// the kr-answer payload. Which secret applies depends on the kr-hash-key
// hint: browser-originated answers are signed with the SHA key, server
// notifications may be signed with the REST API password instead.
type Signer struct {
	APIPassword string
	SHAKey      string
}

func (s *Signer) secret(hashKey string) string {
	switch strings.ToLower(hashKey) {
	case "password":
		if s.APIPassword != "" {
			return s.APIPassword
		}
		return s.SHAKey
	case "sha-256", "sha256", "sha-256-hmac", "sha256_hmac":
		return s.SHAKey
	default:
		return s.SHAKey
	}
}

// Compute returns the hex HMAC-SHA256 of payload under the secret selected
// by hashKey.
func (s *Signer) Compute(payload, hashKey string) string {
	mac := hmac.New(sha256.New, []byte(s.secret(hashKey)))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature (hex, case-insensitive) against a fresh HMAC over
// payload. An absent or malformed signature is always rejected. The compare
// runs in constant time.
func (s *Signer) Verify(payload, signature, hashKey string) bool {
	if signature == "" {
		return false
	}
	supplied, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.secret(hashKey)))
	mac.Write([]byte(payload))
	return hmac.Equal(supplied, mac.Sum(nil))
}

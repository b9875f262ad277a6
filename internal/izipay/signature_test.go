package izipay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyAcceptsFreshSignature(t *testing.T) {
	signer := &Signer{APIPassword: "testpassword_123", SHAKey: "testsha_456"}
	payload := `{"orderStatus":"PAID","orderDetails":{"orderId":"EVT-ABC-1"}}`

	sig := signer.Compute(payload, "sha-256")
	assert.True(t, signer.Verify(payload, sig, "sha-256"))
}

func TestVerifyIsCaseInsensitiveOnSignature(t *testing.T) {
	signer := &Signer{SHAKey: "testsha_456"}
	payload := `{"orderStatus":"PAID"}`

	sig := strings.ToUpper(signer.Compute(payload, "sha256"))
	assert.True(t, signer.Verify(payload, sig, "sha256"))
	assert.True(t, signer.Verify(payload, "  "+sig+"  ", "sha256"))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	signer := &Signer{SHAKey: "testsha_456"}
	payload := `{"orderStatus":"PAID","amount":1000}`

	sig := signer.Compute(payload, "sha-256")
	tampered := strings.Replace(payload, "1000", "1", 1)
	assert.False(t, signer.Verify(tampered, sig, "sha-256"))
}

func TestVerifyRejectsEmptyOrMalformedSignature(t *testing.T) {
	signer := &Signer{SHAKey: "testsha_456"}
	payload := `{"orderStatus":"PAID"}`

	assert.False(t, signer.Verify(payload, "", "sha-256"))
	assert.False(t, signer.Verify(payload, "not-hex-at-all", "sha-256"))
	assert.False(t, signer.Verify(payload, "abc", "sha-256"))
}

func TestHashKeySelectsSecret(t *testing.T) {
	signer := &Signer{APIPassword: "testpassword_123", SHAKey: "testsha_456"}
	payload := `{"orderStatus":"PAID"}`

	passwordSig := signer.Compute(payload, "password")
	shaSig := signer.Compute(payload, "sha-256")
	assert.NotEqual(t, passwordSig, shaSig)

	// a signature minted under one secret must not verify under the other
	assert.True(t, signer.Verify(payload, passwordSig, "password"))
	assert.False(t, signer.Verify(payload, passwordSig, "sha-256"))
	assert.True(t, signer.Verify(payload, shaSig, "sha-256"))

	// unknown hint falls back to the SHA key
	assert.True(t, signer.Verify(payload, shaSig, "something-new"))
	assert.True(t, signer.Verify(payload, shaSig, ""))
}

func TestPasswordHintFallsBackToSHAKey(t *testing.T) {
	signer := &Signer{SHAKey: "testsha_456"}
	payload := `{"orderStatus":"PAID"}`

	sig := signer.Compute(payload, "sha-256")
	assert.True(t, signer.Verify(payload, sig, "password"))
}

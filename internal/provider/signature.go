package provider

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
)

// Validator verifies provider webhook signatures.
type Validator interface {
	ValidateSignature(requestURL, signature string, params url.Values) bool
}

// SignatureValidator implements the provider's webhook signing scheme:
// HMAC-SHA1 over the full request URL followed by every form parameter's
// key+value in key order, base64-encoded.
type SignatureValidator struct {
	authToken string
}

func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{authToken: authToken}
}

func (v *SignatureValidator) ValidateSignature(requestURL, signature string, params url.Values) bool {
	if signature == "" {
		return false
	}
	expected := v.sign(requestURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (v *SignatureValidator) sign(requestURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(v.authToken))
	mac.Write([]byte(requestURL))
	for _, k := range keys {
		// The scheme concatenates key and first value per parameter.
		mac.Write([]byte(k))
		mac.Write([]byte(params.Get(k)))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Sign is exposed for tests and for local tooling that replays webhooks.
func (v *SignatureValidator) Sign(requestURL string, params url.Values) string {
	return v.sign(requestURL, params)
}

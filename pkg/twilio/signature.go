package twilio

import (
	"errors"
	"net/url"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

var (
	ErrMissingSignature = errors.New("missing twilio signature")
	ErrInvalidSignature = errors.New("invalid twilio signature")
)

// Verifier checks X-Twilio-Signature against the signed URL and form.
type Verifier struct {
	validator client.RequestValidator
}

// NewVerifier returns a Verifier for the account's auth token.
func NewVerifier(authToken string) *Verifier {
	return &Verifier{validator: client.NewRequestValidator(authToken)}
}

// Verify validates signature for a POST to fullURL. Twilio webhooks send
// each parameter once, so only the first value of a key is signed.
func (v *Verifier) Verify(signature, fullURL string, params url.Values) error {
	if signature == "" {
		return ErrMissingSignature
	}
	flat := make(map[string]string, len(params))
	for k := range params {
		flat[k] = params.Get(k)
	}
	if !v.validator.Validate(fullURL, flat, signature) {
		return ErrInvalidSignature
	}
	return nil
}

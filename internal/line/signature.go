package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// SignatureHeader carries the webhook body signature.
const SignatureHeader = "X-Line-Signature"

// ErrInvalidSignature is returned (wrapped) for every verification failure.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Verifier authenticates webhook deliveries against the channel secret.
type Verifier struct {
	secret string
}

// NewVerifier returns a verifier for the given channel secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks that signature is base64(HMAC-SHA256(secret, body)) over the
// raw body bytes. The expected value never appears in the returned error.
func (v *Verifier) Verify(body []byte, signature string) error {
	if v.secret == "" {
		return fmt.Errorf("%w: channel secret is empty", ErrInvalidSignature)
	}
	if signature == "" {
		return fmt.Errorf("%w: signature header missing", ErrInvalidSignature)
	}
	if !webhook.ValidateSignature(v.secret, signature, body) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

// Sign returns the header value LINE would send for body. The SDK only
// validates, so signing for tests and the CLI is done here.
func (v *Verifier) Sign(body []byte) string {
	m := hmac.New(sha256.New, []byte(v.secret))
	m.Write(body)
	return base64.StdEncoding.EncodeToString(m.Sum(nil))
}

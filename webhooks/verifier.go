package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

// Verifier checks a signature header value against the raw request body.
// SignatureVerifier is the single-secret implementation; rotation-aware
// implementations wrap it.
type Verifier interface {
	Verify(ctx context.Context, rawBody []byte, signatureHeader string) error
}

// SignatureVerifier validates webhook authenticity with HMAC-SHA256 over the
// raw request body, hex encoded. It fails closed: a missing header, an empty
// secret, or an undecodable signature all reject the request.
type SignatureVerifier struct {
	Secret string
	Header string
	// Prefix is stripped from the header value before decoding, e.g.
	// "sha256=" for GitHub-style signatures.
	Prefix string
}

func NewSignatureVerifier(secret string, header string) SignatureVerifier {
	return SignatureVerifier{
		Secret: strings.TrimSpace(secret),
		Header: strings.TrimSpace(header),
	}
}

// Verify checks the signature header value against the raw body. Error
// messages stay generic so callers leak nothing about which check failed.
func (v SignatureVerifier) Verify(_ context.Context, rawBody []byte, signatureHeader string) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return invalidSignatureError()
	}
	signature := strings.TrimSpace(signatureHeader)
	if prefix := strings.TrimSpace(v.Prefix); prefix != "" {
		signature = strings.TrimPrefix(signature, prefix)
		signature = strings.TrimSpace(signature)
	}
	if signature == "" {
		return invalidSignatureError()
	}

	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return invalidSignatureError()
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	expected := mac.Sum(nil)

	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return invalidSignatureError()
	}
	return nil
}

// Valid is the boolean form of Verify.
func (v SignatureVerifier) Valid(ctx context.Context, rawBody []byte, signatureHeader string) bool {
	return v.Verify(ctx, rawBody, signatureHeader) == nil
}

// Sign computes the hex HMAC-SHA256 digest of body under secret. The inverse
// of Verify; used by the forwarder and by tests.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ Verifier = SignatureVerifier{}

func invalidSignatureError() error {
	return goerrors.New("webhooks: invalid webhook signature", goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.ServiceErrorInvalidSignature)
}

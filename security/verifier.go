package security

import (
	"context"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
	"github.com/singularitybridge/sb-api-services-v2-sub008/webhooks"
)

// RotationDiagnostic is emitted when a signature verifies under a key other
// than the first active one, which means senders are still signing with a
// retired secret.
type RotationDiagnostic struct {
	OccurredAt time.Time
	KeyID      string
	Position   int
}

type RotationDiagnosticHook func(event RotationDiagnostic)

// KeyringVerifier verifies webhook signatures against every active key on
// the ring, so a secret rotation never drops deliveries signed with the
// previous secret. It fails closed: no active key, no match.
type KeyringVerifier struct {
	Keys Keyring
	// Prefix is stripped from the header value before decoding, matching
	// webhooks.SignatureVerifier.
	Prefix     string
	Diagnostic RotationDiagnosticHook
	Now        func() time.Time
}

func NewKeyringVerifier(keys Keyring) KeyringVerifier {
	return KeyringVerifier{Keys: keys}
}

func (v KeyringVerifier) Verify(ctx context.Context, rawBody []byte, signatureHeader string) error {
	now := v.now()
	for position, key := range v.Keys.Active(now) {
		check := webhooks.SignatureVerifier{Secret: key.Secret, Prefix: v.Prefix}
		if check.Verify(ctx, rawBody, signatureHeader) == nil {
			if position > 0 && v.Diagnostic != nil {
				v.Diagnostic(RotationDiagnostic{
					OccurredAt: now,
					KeyID:      key.KeyID,
					Position:   position,
				})
			}
			return nil
		}
	}
	return goerrors.New("security: invalid webhook signature", goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.ServiceErrorInvalidSignature)
}

func (v KeyringVerifier) Valid(ctx context.Context, rawBody []byte, signatureHeader string) bool {
	return v.Verify(ctx, rawBody, signatureHeader) == nil
}

func (v KeyringVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now().UTC()
	}
	return time.Now().UTC()
}

var _ webhooks.Verifier = KeyringVerifier{}

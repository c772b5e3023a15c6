// Package security manages webhook signing secrets across rotation windows.
package security

import (
	"fmt"
	"strings"
	"time"
)

// SigningKey is one shared secret with an optional validity window. A zero
// NotBefore/NotAfter leaves that bound open.
type SigningKey struct {
	KeyID     string
	Secret    string
	NotBefore time.Time
	NotAfter  time.Time
}

// Allows reports whether the key may verify signatures at the given instant.
func (k SigningKey) Allows(at time.Time) bool {
	ts := at.UTC()
	if !k.NotBefore.IsZero() && ts.Before(k.NotBefore.UTC()) {
		return false
	}
	if !k.NotAfter.IsZero() && ts.After(k.NotAfter.UTC()) {
		return false
	}
	return true
}

// Keyring holds signing keys in precedence order: the current key first,
// retired keys after it. During a rotation both the new and the previous
// secret stay on the ring until the old window closes.
type Keyring struct {
	keys []SigningKey
}

func NewKeyring(keys ...SigningKey) (Keyring, error) {
	if len(keys) == 0 {
		return Keyring{}, fmt.Errorf("security: at least one signing key is required")
	}
	normalized := make([]SigningKey, 0, len(keys))
	seen := map[string]struct{}{}
	for i, key := range keys {
		key.KeyID = strings.TrimSpace(key.KeyID)
		key.Secret = strings.TrimSpace(key.Secret)
		if key.Secret == "" {
			return Keyring{}, fmt.Errorf("security: signing key %d has an empty secret", i)
		}
		if key.KeyID != "" {
			if _, dup := seen[key.KeyID]; dup {
				return Keyring{}, fmt.Errorf("security: duplicate signing key id %q", key.KeyID)
			}
			seen[key.KeyID] = struct{}{}
		}
		if !key.NotBefore.IsZero() && !key.NotAfter.IsZero() && key.NotAfter.Before(key.NotBefore) {
			return Keyring{}, fmt.Errorf("security: signing key %q window ends before it starts", key.KeyID)
		}
		normalized = append(normalized, key)
	}
	return Keyring{keys: normalized}, nil
}

// SingleKey builds a ring around one always-valid secret.
func SingleKey(secret string) (Keyring, error) {
	return NewKeyring(SigningKey{KeyID: "primary", Secret: secret})
}

// Active returns the keys whose windows allow the given instant, in
// precedence order.
func (r Keyring) Active(at time.Time) []SigningKey {
	active := make([]SigningKey, 0, len(r.keys))
	for _, key := range r.keys {
		if key.Allows(at) {
			active = append(active, key)
		}
	}
	return active
}

// Len reports the total number of keys on the ring, expired ones included.
func (r Keyring) Len() int {
	return len(r.keys)
}

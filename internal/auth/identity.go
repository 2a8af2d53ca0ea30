package auth

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrInvalidCredential means the credential is structurally invalid;
	// it never reaches the downstream dependency and is never cached.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrCredentialRejected means the identity service examined the
	// credential and rejected it.
	ErrCredentialRejected = errors.New("credential rejected")
)

// maxCredentialLength bounds what we are willing to cache and forward.
const maxCredentialLength = 4096

// Identity is a validated principal.
type Identity struct {
	ID     string         `json:"id"`
	Email  string         `json:"email,omitempty"`
	Role   string         `json:"role,omitempty"`
	Claims map[string]any `json:"claims,omitempty"`

	// CachedAt is when this identity was validated and stored; zero for
	// an identity that never passed through the cache.
	CachedAt time.Time `json:"cached_at,omitzero"`

	// Stale marks an identity served from an expired cache entry while
	// the identity dependency was unreachable. Callers must apply
	// reduced trust, e.g. allow read-only operations only.
	Stale bool `json:"stale,omitempty"`
}

// checkCredential rejects structurally invalid credentials before any
// downstream traffic.
func checkCredential(credential string) error {
	if credential == "" {
		return ErrInvalidCredential
	}
	if len(credential) > maxCredentialLength {
		return ErrInvalidCredential
	}
	if strings.IndexFunc(credential, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return ErrInvalidCredential
	}
	return nil
}

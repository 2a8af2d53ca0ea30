package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pulseform/servicecore/internal/auth"
)

// identityKey is the gin context key carrying the validated identity.
const identityKey = "servicecore.identity"

// CredentialValidator resolves a credential to an identity; satisfied by
// *auth.Validator.
type CredentialValidator interface {
	Validate(ctx context.Context, credential string) (*auth.Identity, error)
}

// Auth creates the authentication boundary middleware. It extracts the
// bearer credential from the Authorization header and validates it.
//
// Outage-class failures (circuit open, timeout, transport) surface as 503
// so clients can tell a retry-worthy outage apart from a rejected
// credential, which stays a 401.
func Auth(validator CredentialValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := bearerCredential(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		identity, err := validator.Validate(c.Request.Context(), credential)
		if err != nil {
			if auth.IsUnavailable(err) {
				c.Header("Retry-After", "30")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error": "authentication temporarily unavailable",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication rejected",
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the validated identity attached by Auth.
func IdentityFrom(c *gin.Context) (*auth.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*auth.Identity)
	return identity, ok
}

// bearerCredential extracts the credential from an Authorization header.
func bearerCredential(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	scheme, credential, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	credential = strings.TrimSpace(credential)
	return credential, credential != ""
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseform/servicecore/internal/auth"
	"github.com/pulseform/servicecore/internal/infrastructure/resilience"
)

type stubValidator struct {
	identity *auth.Identity
	err      error
	calls    int
}

func (s *stubValidator) Validate(_ context.Context, _ string) (*auth.Identity, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

func protectedRouter(t *testing.T, validator CredentialValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", Auth(validator), func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": identity.ID})
	})
	return router
}

func TestAuthMissingHeader(t *testing.T) {
	validator := &stubValidator{}
	router := protectedRouter(t, validator)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "bearer without credential", header: "Bearer "},
		{name: "scheme only", header: "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	// Structurally absent credentials never reach the validator.
	assert.Zero(t, validator.calls)
}

func TestAuthValidCredential(t *testing.T) {
	validator := &stubValidator{
		identity: &auth.Identity{ID: "user-1", Email: "u@example.com", Role: "admin"},
	}
	router := protectedRouter(t, validator)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-credential")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
	assert.Equal(t, 1, validator.calls)
}

func TestAuthRejectedCredential(t *testing.T) {
	validator := &stubValidator{err: auth.ErrCredentialRejected}
	router := protectedRouter(t, validator)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bad-credential")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestAuthValidatorUnavailable(t *testing.T) {
	validator := &stubValidator{err: resilience.ErrCircuitOpen}
	router := protectedRouter(t, validator)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer any-credential")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestBearerCredential(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		credential string
		ok         bool
	}{
		{name: "standard", header: "Bearer abc123", credential: "abc123", ok: true},
		{name: "lowercase scheme", header: "bearer abc123", credential: "abc123", ok: true},
		{name: "extra whitespace", header: "Bearer   abc123", credential: "abc123", ok: true},
		{name: "empty", header: "", ok: false},
		{name: "no scheme", header: "abc123", ok: false},
		{name: "basic scheme", header: "Basic abc123", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credential, ok := bearerCredential(tt.header)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.credential, credential)
			}
		})
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pulseform/servicecore/internal/client"
	"github.com/pulseform/servicecore/internal/infrastructure/logging"
	"github.com/pulseform/servicecore/internal/infrastructure/monitoring"
)

// Caller performs outbound calls; satisfied by *client.Client.
type Caller interface {
	Call(ctx context.Context, dependency string, req client.Request) (*client.Response, error)
}

// Config defines validator behavior.
type Config struct {
	// Dependency is the breaker name of the identity service
	Dependency string
	// ValidateURL is the identity service's validation endpoint
	ValidateURL string
	// CacheTTL is how long a validated identity stays fresh
	CacheTTL time.Duration
	// SweepInterval is how often expired entries are swept
	SweepInterval time.Duration
	// AllowStaleOnCircuitOpen enables serving expired entries, tagged
	// Stale, while the identity dependency is unreachable
	AllowStaleOnCircuitOpen bool
	// StaleGrace bounds how far past its TTL an entry may still be
	// served as a stale fallback
	StaleGrace time.Duration
	// ValidationBudget caps one detached validation run end to end
	ValidationBudget time.Duration
}

func (c Config) withDefaults() Config {
	if c.Dependency == "" {
		c.Dependency = "identity"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 15 * time.Minute
	}
	if c.StaleGrace <= 0 {
		c.StaleGrace = 5 * time.Minute
	}
	if c.ValidationBudget <= 0 {
		c.ValidationBudget = 30 * time.Second
	}
	return c
}

// Validator resolves opaque credentials to validated identities, calling
// the downstream identity service at most once per credential per cache
// generation regardless of concurrency.
type Validator struct {
	cfg     Config
	caller  Caller
	cache   *Cache
	gate    *gate
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewValidator creates a validator and starts the cache sweeper
func NewValidator(cfg Config, caller Caller, logger *logging.Logger) *Validator {
	cfg = cfg.withDefaults()

	cache := NewCache(cfg.CacheTTL)
	cache.StartSweeper(cfg.SweepInterval, cfg.StaleGrace)

	return &Validator{
		cfg:    cfg,
		caller: caller,
		cache:  cache,
		gate:   newGate(),
		logger: logger,
	}
}

// WithMetrics attaches a metrics collector
func (v *Validator) WithMetrics(m *monitoring.Metrics) *Validator {
	v.metrics = m
	if m != nil {
		v.cache.OnEvict(m.RecordCacheEvictions)
	}
	return v
}

// Cache exposes the underlying cache for ops endpoints
func (v *Validator) Cache() *Cache {
	return v.cache
}

// Close stops the background sweeper
func (v *Validator) Close() {
	v.cache.Stop()
}

// Validate resolves a credential to an identity.
//
// Fresh cache hits return immediately. On a miss, the first caller for a
// credential performs the downstream validation while concurrent callers
// for the same credential wait for that single result. The waiting is the
// only blocking point: a cancelled waiter leaves the queue alone, and the
// in-flight validation is aborted only when no interested callers remain.
func (v *Validator) Validate(ctx context.Context, credential string) (*Identity, error) {
	if err := checkCredential(credential); err != nil {
		v.recordValidation("invalid")
		return nil, err
	}

	if identity, ok := v.cache.Get(credential); ok {
		if v.metrics != nil {
			v.metrics.RecordCacheHit()
		}
		v.recordValidation("cache_hit")
		return &identity, nil
	}
	if v.metrics != nil {
		v.metrics.RecordCacheMiss()
	}

	ch, owner, runCtx := v.gate.join(credential)
	if owner {
		go v.run(runCtx, credential)
	}

	select {
	case result := <-ch:
		if result.err != nil {
			return nil, result.err
		}
		identity := result.identity
		return &identity, nil
	case <-ctx.Done():
		v.gate.leave(credential, ch)
		return nil, ctx.Err()
	}
}

// run performs the downstream validation as the owner and publishes the
// result to every waiter.
func (v *Validator) run(runCtx context.Context, credential string) {
	ctx, cancel := context.WithTimeout(runCtx, v.cfg.ValidationBudget)
	defer cancel()

	// A validation finished between this owner's cache miss and its
	// arrival here; reuse the fresh entry instead of revalidating.
	if identity, ok := v.cache.Get(credential); ok {
		v.recordValidation("cache_hit")
		v.gate.publish(credential, outcome{identity: identity})
		return
	}

	identity, err := v.fetch(ctx, credential)
	switch {
	case err == nil:
		identity = v.cache.Set(credential, identity)
		if v.metrics != nil {
			v.metrics.SetCacheEntries(v.cache.Len())
		}
		v.recordValidation("success")
	case v.cfg.AllowStaleOnCircuitOpen && client.IsUnavailable(err):
		if stale, ok := v.cache.GetExpired(credential, v.cfg.StaleGrace); ok {
			stale.Stale = true
			identity, err = stale, nil
			if v.metrics != nil {
				v.metrics.RecordStaleServed()
			}
			v.recordValidation("stale_fallback")
			v.logger.Warn("serving stale identity during dependency outage",
				zap.String("dependency", v.cfg.Dependency),
				zap.String("subject", stale.ID),
			)
		} else {
			v.recordValidation("unavailable")
		}
	case client.IsUnavailable(err):
		v.recordValidation("unavailable")
	default:
		v.recordValidation("rejected")
	}

	v.gate.publish(credential, outcome{identity: identity, err: err})
}

// validateResponse is the identity service's wire shape.
type validateResponse struct {
	Valid bool     `json:"valid"`
	User  Identity `json:"user"`
	Error string   `json:"error,omitempty"`
}

// fetch calls the identity dependency through the resilient client.
func (v *Validator) fetch(ctx context.Context, credential string) (Identity, error) {
	resp, err := v.caller.Call(ctx, v.cfg.Dependency, client.Request{
		Method: http.MethodPost,
		URL:    v.cfg.ValidateURL,
		Headers: map[string]string{
			"Authorization": "Bearer " + credential,
		},
	})
	if err != nil {
		var statusErr *client.StatusError
		if errors.As(err, &statusErr) && statusErr.Status >= 400 && statusErr.Status < 500 {
			return Identity{}, fmt.Errorf("%w: %v", ErrCredentialRejected, err)
		}
		return Identity{}, err
	}

	var payload validateResponse
	if err := resp.Decode(&payload); err != nil {
		return Identity{}, fmt.Errorf("decode identity response: %w: %v", client.ErrTransport, err)
	}
	if !payload.Valid || payload.User.ID == "" {
		reason := payload.Error
		if reason == "" {
			reason = "credential not accepted"
		}
		return Identity{}, fmt.Errorf("%w: %s", ErrCredentialRejected, reason)
	}
	return payload.User, nil
}

// IsUnavailable reports whether a Validate error represents a temporary
// outage of the identity dependency rather than a rejected credential.
// Boundaries translate these into a retry-worthy 503 instead of a 401.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrCredentialRejected) {
		return false
	}
	return client.IsUnavailable(err) || errors.Is(err, context.DeadlineExceeded)
}

func (v *Validator) recordValidation(result string) {
	if v.metrics != nil {
		v.metrics.RecordValidation(result)
	}
}

// PendingValidations reports in-flight validations, exposed for ops
func (v *Validator) PendingValidations() int {
	return v.gate.pendingCount()
}

// normalizeBaseURL joins the configured base URL with the validate path.
func normalizeBaseURL(base string) string {
	return strings.TrimRight(base, "/") + "/auth/validate"
}

// NewValidatorForService builds a validator pointed at a service base URL
func NewValidatorForService(cfg Config, baseURL string, caller Caller, logger *logging.Logger) *Validator {
	cfg.ValidateURL = normalizeBaseURL(baseURL)
	return NewValidator(cfg, caller, logger)
}

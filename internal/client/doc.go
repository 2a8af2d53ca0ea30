// Package client implements the resilient HTTP client used for every
// outbound service-to-service call.
//
// Each call is guarded by the per-dependency circuit breaker: a denied
// call fails immediately with resilience.ErrCircuitOpen and performs no
// network I/O. Admitted calls run a bounded retry loop with a fixed
// per-attempt timeout. Only the final outcome is reported to the breaker,
// so transient blips absorbed by the retry loop never inflate the failure
// count.
//
// Retry policy follows idempotency: transport errors, timeouts, and 5xx
// responses are retried for idempotent methods; non-idempotent methods are
// retried only on failures that clearly occurred before the request reached
// the dependency (connection refused, DNS resolution failure). 4xx
// responses are never retried and never count against the breaker.
//
// The client keeps a pooled keep-alive transport toward every dependency
// since it is the single chokepoint for outbound calls.
package client

// Package auth implements credential validation with a TTL cache and
// per-credential single-flight concurrency control.
//
// A validated identity is cached for a fixed TTL; within it, repeat
// validations of the same credential are served from memory with no
// downstream traffic. On a miss, exactly one caller becomes the owner of
// the validation for that credential: concurrent callers enqueue behind it
// and receive the owner's result in the order they joined, so K concurrent
// requests for one credential cost exactly one downstream call.
//
// The downstream identity service is reached through the resilient client
// under its circuit breaker. When the circuit is open the validator can,
// if configured, serve an expired cache entry tagged Stale for a bounded
// grace period so callers may apply reduced trust instead of failing the
// request outright.
package auth

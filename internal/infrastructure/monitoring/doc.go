// Package monitoring provides Prometheus metrics for the resilience core.
//
// Collected metrics cover:
//   - inbound HTTP requests (count, duration) via gin middleware
//   - outbound calls per dependency (count, duration, retries)
//   - circuit breaker state and transitions per dependency
//   - credential validation outcomes and cache effectiveness
//
// A JSON snapshot of headline numbers is kept alongside the Prometheus
// collectors for the ops API.
package monitoring

// Package main is the entry point for the servicecore gateway.
//
// The server fronts downstream dependencies with a resilient HTTP client:
// per-dependency circuit breakers, idempotency-aware retries, and a cached
// credential validator that collapses concurrent validations of the same
// credential into a single downstream call.
//
// Endpoints:
//   - REST API for breaker and cache introspection under /api/v1
//   - Prometheus scrape endpoint at /metrics
//   - Authenticated demo route at /api/v1/me
//
// Configuration:
//   - Environment variables (12-factor)
//   - Defaults suitable for development
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main

/*
Package resilience implements the circuit breaker guarding outbound
service-to-service calls.

# Overview

Each downstream dependency gets its own breaker, created lazily by the
Registry on first use. A breaker prevents cascading failures by failing fast
once a dependency is known to be unhealthy, instead of letting every request
wait out a timeout against a dead service.

# States

- Closed: normal operation, calls pass through
- Open: dependency failing, calls rejected immediately with ErrCircuitOpen
- Half-Open: reset timeout elapsed, a single probe call is admitted

A breaker trips from Closed to Open when consecutive failures reach the
configured threshold, or when the error rate over a sliding window exceeds
the configured percentage. After the reset timeout, exactly one caller is
admitted as a probe; everyone else keeps being rejected until the probe
resolves. A successful probe closes the circuit, a failed one reopens it.

# Usage

	registry := resilience.NewRegistry(resilience.Settings{
		Threshold:    3,
		ResetTimeout: 30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			log.Printf("breaker %s: %s -> %s", name, from, to)
		},
	})

	br := registry.Get("identity")
	ok, _, gen := br.Allow()
	if !ok {
		return resilience.ErrCircuitOpen
	}
	// Make the call...
	if err != nil {
		br.RecordFailure(gen)
	} else {
		br.RecordSuccess(gen)
	}

# Pattern

	Closed --[failures]-> Open --[timeout]-> Half-Open --[probe success]-> Closed
	                                           |
	                                    [probe failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience

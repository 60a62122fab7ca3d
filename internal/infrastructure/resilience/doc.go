/*
Package resilience provides a circuit breaker and a sink guarded by one.

# Overview

A sink runs synchronously on the flow that emitted the event, so a sink that
panics would take the instrumented program down with it. Guard recovers the
panic, logs it, and after repeated failures stops calling the sink for a
while.

# Usage

	guarded := resilience.Guard("custom", mySink, resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}, logger)

	// Or use the breaker directly
	breaker := resilience.New("uploader", resilience.Settings{})
	err := breaker.Do(func() error {
		return upload()
	})

# States

  - Closed: calls pass through
  - Open: calls fail immediately with ErrCircuitOpen
  - Half-Open: up to MaxRequests trial calls are let through

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience

// Package worker implements C11: the pool of goroutines that claims
// jobs from the queue, dispatches them to the agent runner, researcher,
// or webhook handler, and drives the task state machine to a terminal
// state with lease renewal and a bounded retry ladder.
package worker

import "time"

// Defaults from spec §4.11: a handful of claimer goroutines, a short
// long-poll claim timeout so shutdown is responsive, and a lease long
// enough that a slow agent turn survives a couple of heartbeat misses.
const (
	DefaultPoolSize     = 8
	DefaultClaimTimeout = 5 * time.Second
	DefaultLeaseTTL     = 30 * time.Second
)

// Package arg implements the Argument Processor strategies: the six ways a
// queue can bind tasks to arguments, crossing concurrency (single/multi) with
// provisioning (static/reuse/one-time), plus the activation and throttling
// capabilities an argument may optionally declare.
package arg

import (
	"context"
	"time"
)

// Activatable is declared by arguments that need an explicit lifecycle
// transition before first use and after going idle. Processors branch on
// this capability via a type assertion, never runtime reflection (§9 DESIGN
// NOTES).
type Activatable interface {
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
}

// Throttleable is declared by arguments that impose a minimum interval
// between successive uses.
type Throttleable interface {
	ThrottleInterval() time.Duration
}

package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/kahoon/engine/telemetry"
)

// StartupFunc is a single boot-time hook. It receives the host's startup
// context and reports an error if it could not complete its work.
type StartupFunc func(ctx context.Context) error

type namedHook struct {
	name     string
	critical bool
	fn       StartupFunc
}

// StartupRunner runs a set of named startup hooks in registration order,
// stopping at the first critical failure. Non-critical failures are logged
// through the telemetry sink but do not halt the run — the same
// log-and-continue idiom the teacher uses for best-effort cleanup steps in
// Manager.Shutdown.
type StartupRunner struct {
	mu    sync.Mutex
	hooks []namedHook
	sink  telemetry.Sink
}

// NewStartupRunner builds a StartupRunner. sink may be nil.
func NewStartupRunner(sink telemetry.Sink) *StartupRunner {
	return newStartupRunner(sink)
}

func newStartupRunner(sink telemetry.Sink) *StartupRunner {
	return &StartupRunner{sink: telemetry.OrNop(sink)}
}

// Register adds a named hook to be run by the next call to Run. Critical
// hooks abort the run on failure; non-critical hooks only log their error.
func (r *StartupRunner) Register(name string, critical bool, fn StartupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, namedHook{name: name, critical: critical, fn: fn})
}

// Run executes every registered hook in registration order, returning the
// first critical failure. It races each hook's completion against ctx so a
// blocked hook cannot hang the boot sequence past the caller's deadline.
func (r *StartupRunner) Run(ctx context.Context) error {
	r.mu.Lock()
	hooks := make([]namedHook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	for _, h := range hooks {
		errCh := make(chan error, 1)
		go func(h namedHook) {
			errCh <- h.fn(ctx)
		}(h)

		var err error
		select {
		case err = <-errCh:
		case <-ctx.Done():
			return ctx.Err()
		}

		if err != nil {
			if h.critical {
				r.sink.Error("engine: critical startup hook failed", err, telemetry.F("hook", h.name))
				return fmt.Errorf("startup hook %q: %w", h.name, err)
			}
			r.sink.Warn("engine: non-critical startup hook failed", telemetry.F("hook", h.name), telemetry.F("error", err))
			continue
		}
		r.sink.Info("engine: startup hook completed", telemetry.F("hook", h.name))
	}

	return nil
}

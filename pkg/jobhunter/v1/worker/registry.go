package worker

import (
	"context"

	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
)

// Worker is a named external step of a career pipeline: profile analysis,
// job search, materials drafting, ATS scoring and so on. Its result is written
// to the StateStore by the stage runner.
type Worker interface {
	// Perform runs the worker.
	//
	// params are the stage parameters with string values already rendered.
	// input holds the values of the keys listed in the stage's inputs, read
	// from the stage's application namespace (falling back to global).
	// reader gives read-only access to the rest of the store.
	//
	// The returned value is stored under the stage's output key. A non-nil
	// error fails the stage.
	Perform(ctx context.Context, params map[string]interface{}, input map[string]interface{}, reader state.StateReader) (interface{}, error)
}

// EventEmitter is implemented by workers that publish domain events. The
// stage runner calls SetEventBus before Perform with a bus that stamps the
// pipeline, run, stage and application identifiers on every event.
type EventEmitter interface {
	SetEventBus(bus events.Bus)
}

// Factory creates a fresh Worker instance.
type Factory func() Worker

// Registry maps worker type names to factories.
type Registry interface {
	// Get returns the factory for name or a WorkerNotFoundError.
	Get(name string) (Factory, error)
	// Register adds a factory. It fails for empty names, nil factories and
	// duplicate names.
	Register(name string, factory Factory) error
	// List returns the registered names in sorted order.
	List() []string
}

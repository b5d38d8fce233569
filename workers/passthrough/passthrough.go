// Package passthrough provides the "passthrough" worker. It seeds static
// values into the state store and is handy for wiring pipelines in tests.
package passthrough

import (
	"context"

	intworker "github.com/jobhunter-labs/jobhunter/internal/worker"
	"github.com/jobhunter-labs/jobhunter/internal/util"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/worker"
)

// Name is the worker type used in pipeline definitions.
const Name = "passthrough"

// ValueParam, when present, is returned verbatim instead of the merged map.
const ValueParam = "value"

func init() {
	intworker.Register(Name, NewWorker)
}

// Worker returns its input with the params merged over it.
type Worker struct{}

// NewWorker is the registered factory.
func NewWorker() worker.Worker {
	return &Worker{}
}

// Perform implements worker.Worker.
func (w *Worker) Perform(ctx context.Context, params map[string]interface{}, input map[string]interface{}, _ state.StateReader) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v, ok := params[ValueParam]; ok {
		return util.DeepCopy(v), nil
	}
	out := util.DeepCopyMap(input)
	for k, v := range params {
		out[k] = util.DeepCopy(v)
	}
	return out, nil
}

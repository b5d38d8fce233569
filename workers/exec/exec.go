// Package exec provides the "exec" worker, which runs an external agent
// process and captures its JSON answer.
//
// The process receives {"params": ..., "input": ...} as JSON on stdin and is
// expected to print a JSON document on stdout. Markdown code fences around
// the document are tolerated.
package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jobhunter-labs/jobhunter/internal/command"
	"github.com/jobhunter-labs/jobhunter/internal/paramutil"
	intworker "github.com/jobhunter-labs/jobhunter/internal/worker"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/worker"
)

// Name is the worker type used in pipeline definitions.
const Name = "exec"

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

const stderrTail = 512

func init() {
	intworker.Register(Name, NewWorker)
}

var allowedParams = []string{"command", "args", "working_dir", "environment", "output_format", "payload"}

// Worker runs commands through a command.Runner.
type Worker struct {
	runner command.Runner
}

// New creates an exec worker using runner.
func New(runner command.Runner) *Worker {
	return &Worker{runner: runner}
}

// NewWorker is the registered factory.
func NewWorker() worker.Worker {
	return New(command.NewRunner())
}

// Perform implements worker.Worker.
func (w *Worker) Perform(ctx context.Context, params map[string]interface{}, input map[string]interface{}, _ state.StateReader) (interface{}, error) {
	if err := paramutil.CheckAllowed(params, allowedParams); err != nil {
		return nil, err
	}
	cmd, err := paramutil.GetRequiredString(params, "command")
	if err != nil {
		return nil, err
	}
	args, _, err := paramutil.GetOptionalStringSlice(params, "args")
	if err != nil {
		return nil, err
	}
	workingDir, _, err := paramutil.GetOptionalString(params, "working_dir")
	if err != nil {
		return nil, err
	}
	env, _, err := paramutil.GetOptionalEnv(params, "environment")
	if err != nil {
		return nil, err
	}
	format, found, err := paramutil.GetOptionalString(params, "output_format")
	if err != nil {
		return nil, err
	}
	if !found {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatText {
		return nil, fmt.Errorf("parameter 'output_format' must be '%s' or '%s', got '%s'", FormatJSON, FormatText, format)
	}

	payloadParams, _, err := paramutil.GetOptionalMap(params, "payload")
	if err != nil {
		return nil, err
	}
	if payloadParams == nil {
		payloadParams = map[string]interface{}{}
	}
	stdin, err := json.Marshal(map[string]interface{}{"params": payloadParams, "input": input})
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent payload: %w", err)
	}

	res, err := w.runner.Run(ctx, command.Request{
		Command:     cmd,
		Args:        args,
		WorkingDir:  workingDir,
		Environment: env,
		Stdin:       bytes.NewReader(stdin),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute '%s': %w", cmd, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("'%s' exited with status %d: %s", cmd, res.ExitCode, tail(res.Stderr, stderrTail))
	}

	if format == FormatText {
		return strings.TrimSpace(res.Stdout), nil
	}
	return ParseOutput(res.Stdout), nil
}

// ParseOutput decodes an agent answer. Surrounding ```json fences are
// removed first; if the remainder is not valid JSON the trimmed text is
// returned as is.
func ParseOutput(stdout string) interface{} {
	clean := CleanJSON(stdout)
	if clean == "" {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal([]byte(clean), &v); err != nil {
		return clean
	}
	return v
}

// CleanJSON strips a leading ```json (or ```) fence and a trailing ``` fence.
func CleanJSON(input string) string {
	clean := strings.TrimSpace(input)
	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jobhunter-labs/jobhunter/internal/template"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
)

var stageNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// runFields are the fields of the "run" template root set by the stage runner.
var runFields = map[string]struct{}{
	"id":             {},
	"pipeline":       {},
	"application_id": {},
	"stage":          {},
}

// ValidatePipelineStructure checks the rules the JSON schema cannot express:
// unique stage names and outputs, retry and timeout formats, and that every
// template in stage params references a declared var, one of the stage's
// inputs, or a run field.
func ValidatePipelineStructure(p *Pipeline) []error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, jherrors.NewValidationError(fmt.Sprintf(format, args...), nil))
	}

	if strings.TrimSpace(p.Name) == "" {
		add("pipeline 'name' is required")
	}
	if len(p.Stages) == 0 {
		add("pipeline must contain at least one stage in 'stages' list")
	}

	names := make(map[string]int)
	outputs := make(map[string]string)
	renderer := template.NewGoRenderer()

	for i := range p.Stages {
		stage := &p.Stages[i]
		display := fmt.Sprintf("stage %d", i)
		if stage.Name != "" {
			display = fmt.Sprintf("stage %d ('%s')", i, stage.Name)
		}

		switch {
		case stage.Name == "":
			add("%s: 'name' is required", display)
		case !stageNameRegex.MatchString(stage.Name):
			add("%s: name contains invalid characters (allowed: alphanumeric, underscore, hyphen)", display)
		default:
			if prev, dup := names[stage.Name]; dup {
				add("%s: duplicate stage name (first used by stage %d)", display, prev)
			} else {
				names[stage.Name] = i
			}
		}

		if stage.Worker == "" {
			add("%s: 'worker' is required", display)
		}

		inputs := make(map[string]struct{}, len(stage.Inputs))
		for _, in := range stage.Inputs {
			if strings.TrimSpace(in) == "" {
				add("%s: 'inputs' contains an empty key", display)
				continue
			}
			if _, dup := inputs[in]; dup {
				add("%s: input '%s' is listed more than once", display, in)
			}
			inputs[in] = struct{}{}
		}

		if stage.Output != "" {
			if owner, used := outputs[stage.Output]; used {
				add("%s: output key '%s' is already written by stage '%s'", display, stage.Output, owner)
			} else {
				outputs[stage.Output] = stage.Name
			}
			if _, self := inputs[stage.Output]; self {
				add("%s: output key '%s' cannot also be an input of the same stage", display, stage.Output)
			}
		}

		errs = append(errs, validateRetry(display, stage.Retry)...)

		if stage.Timeout != "" {
			if d, err := time.ParseDuration(stage.Timeout); err != nil {
				add("%s: invalid format for 'timeout': %v", display, err)
			} else if d < 0 {
				add("%s: 'timeout' cannot be negative", display)
			}
		}

		for _, tmpl := range collectTemplates(stage.Params) {
			vars, err := renderer.ExtractVariables(tmpl)
			if err != nil {
				errs = append(errs, jherrors.NewValidationError(
					fmt.Sprintf("%s: error parsing template [%s]: %v", display, tmpl, err), err))
				continue
			}
			for _, path := range vars {
				if msg := checkReference(path, p.Vars, inputs); msg != "" {
					add("%s: template [%s] %s", display, tmpl, msg)
				}
			}
		}
	}

	return errs
}

func validateRetry(display string, r *RetryConfig) []error {
	if r == nil {
		return nil
	}
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, jherrors.NewValidationError(fmt.Sprintf(format, args...), nil))
	}

	if r.Attempts < 1 {
		add("%s: 'retry.attempts' must be at least 1", display)
	}
	var baseDelay time.Duration
	var delayErr error
	if r.Delay != "" {
		baseDelay, delayErr = time.ParseDuration(r.Delay)
		if delayErr != nil {
			add("%s: invalid format for 'retry.delay': %v", display, delayErr)
		} else if baseDelay < 0 {
			add("%s: 'retry.delay' cannot be negative", display)
		}
	}
	if r.MaxDelay != "" {
		maxDelay, err := time.ParseDuration(r.MaxDelay)
		if err != nil {
			add("%s: invalid format for 'retry.max_delay': %v", display, err)
		} else if maxDelay > 0 && delayErr == nil && maxDelay < baseDelay {
			add("%s: 'retry.max_delay' (%v) cannot be less than 'retry.delay' (%v)", display, maxDelay, baseDelay)
		}
	}
	if r.BackoffFactor != nil && *r.BackoffFactor < 1.0 {
		add("%s: 'retry.backoff_factor' must be at least 1.0", display)
	}
	if r.Jitter != nil && (*r.Jitter < 0 || *r.Jitter > 1) {
		add("%s: 'retry.jitter' must be between 0 and 1", display)
	}
	return errs
}

// checkReference returns a description of what is wrong with a template
// field path, or "" when it resolves.
func checkReference(path string, vars map[string]interface{}, inputs map[string]struct{}) string {
	parts := strings.SplitN(path, ".", 3)
	root := parts[0]
	if len(parts) < 2 {
		return fmt.Sprintf("references '.%s'; use .%s.<name>, .%s.<key> or .%s.<field>",
			path, template.VarsKey, template.InputKey, template.RunKey)
	}
	name := parts[1]
	switch root {
	case template.VarsKey:
		if _, ok := vars[name]; !ok {
			return fmt.Sprintf("references undefined var '%s'", name)
		}
	case template.InputKey:
		if _, ok := inputs[name]; !ok {
			return fmt.Sprintf("references '%s' which is not listed in the stage inputs", name)
		}
	case template.RunKey:
		if _, ok := runFields[name]; !ok {
			return fmt.Sprintf("references unknown run field '%s' (known: %s)", name, strings.Join(sortedRunFields(), ", "))
		}
	default:
		return fmt.Sprintf("references unknown root '.%s'", root)
	}
	return ""
}

func sortedRunFields() []string {
	out := make([]string, 0, len(runFields))
	for k := range runFields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// collectTemplates gathers every templated string in params, recursing into
// nested maps and lists.
func collectTemplates(v interface{}) []string {
	var out []string
	switch val := v.(type) {
	case string:
		if template.IsTemplate(val) {
			out = append(out, val)
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, collectTemplates(val[k])...)
		}
	case []interface{}:
		for _, item := range val {
			out = append(out, collectTemplates(item)...)
		}
	}
	return out
}

// Package template renders stage parameters with Go's text/template against
// the pipeline variables and the stage inputs.
package template

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"text/template"
	"text/template/parse"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
)

// Top level names of the render data built by the stage runner.
const (
	VarsKey  = "vars"
	InputKey = "input"
	RunKey   = "run"
)

var simpleVarRegex = regexp.MustCompile(`^\s*\{\{\s*\.([a-zA-Z0-9_.]+)\s*\}\}\s*$`)

// Renderer is the templating engine used for stage parameters.
type Renderer interface {
	Render(templateString string, data interface{}) (string, error)
	Resolve(templateString string, data interface{}) (interface{}, error)
	ExtractVariables(templateString string) ([]string, error)
	GetFuncMap() template.FuncMap
}

// GoRenderer implements Renderer with text/template. Parsed templates and
// extracted variables are cached; it is safe for concurrent use.
type GoRenderer struct {
	funcs         template.FuncMap
	templateCache map[string]*template.Template
	varCache      map[string][]string
	mu            sync.Mutex
}

// NewGoRenderer creates a GoRenderer with the standard function map.
func NewGoRenderer() *GoRenderer {
	return &GoRenderer{
		funcs:         GetFuncMap(),
		templateCache: make(map[string]*template.Template),
		varCache:      make(map[string][]string),
	}
}

// GetFuncMap returns the function map templates are parsed with.
func (r *GoRenderer) GetFuncMap() template.FuncMap {
	return r.funcs
}

// Render executes templateString against data. Missing keys are errors.
func (r *GoRenderer) Render(templateString string, data interface{}) (string, error) {
	t, err := r.getOrParseTemplate(templateString)
	if err != nil {
		return "", jherrors.NewValidationError(fmt.Sprintf("template parse error: %s", err.Error()), err)
	}

	var buf bytes.Buffer
	if execErr := t.Execute(&buf, data); execErr != nil {
		return "", jherrors.NewValidationError(fmt.Sprintf("template execution error: %s", execErr.Error()), execErr)
	}
	return buf.String(), nil
}

// Resolve returns the referenced value itself when templateString is a single
// field reference such as "{{ .input.career_profile_output }}", which keeps
// maps and lists intact. Anything else is rendered to a string.
func (r *GoRenderer) Resolve(templateString string, data interface{}) (interface{}, error) {
	matches := simpleVarRegex.FindStringSubmatch(templateString)
	if len(matches) == 2 {
		if mapData, ok := data.(map[string]interface{}); ok {
			if value, found := lookup(mapData, matches[1]); found {
				return value, nil
			}
		}
	}
	return r.Render(templateString, data)
}

// ExtractVariables returns the sorted field paths referenced by
// templateString. Unparsable templates yield an error.
func (r *GoRenderer) ExtractVariables(templateString string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.varCache[templateString]; ok {
		return cached, nil
	}

	t, err := template.New("extract").Funcs(r.funcs).Parse(templateString)
	if err != nil {
		return nil, err
	}

	found := make(map[string]struct{})
	if t.Root != nil {
		extractNodeVariables(t.Root, found, r.funcs)
	}
	variables := make([]string, 0, len(found))
	for v := range found {
		variables = append(variables, v)
	}
	sort.Strings(variables)

	r.varCache[templateString] = variables
	return variables, nil
}

// RenderParams renders every string value of params (recursing into nested
// maps and lists) that contains a template action. Other values are copied
// unchanged.
func (r *GoRenderer) RenderParams(params map[string]interface{}, data interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		rendered, err := r.renderValue(v, data)
		if err != nil {
			return nil, fmt.Errorf("parameter '%s': %w", k, err)
		}
		out[k] = rendered
	}
	return out, nil
}

func (r *GoRenderer) renderValue(v interface{}, data interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		if !IsTemplate(val) {
			return val, nil
		}
		return r.Resolve(val, data)
	case map[string]interface{}:
		return r.RenderParams(val, data)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			rendered, err := r.renderValue(item, data)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

// IsTemplate reports whether s contains a template action.
func IsTemplate(s string) bool {
	return strings.Contains(s, "{{") && strings.Contains(s, "}}")
}

func (r *GoRenderer) getOrParseTemplate(templateString string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.templateCache[templateString]; ok {
		return cached, nil
	}
	t, err := template.New("param").Option("missingkey=error").Funcs(r.funcs).Parse(templateString)
	if err != nil {
		return nil, err
	}
	r.templateCache[templateString] = t
	return t, nil
}

func lookup(data map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func fieldPath(node parse.Node, funcs template.FuncMap) string {
	switch n := node.(type) {
	case *parse.FieldNode:
		if len(n.Ident) > 0 {
			if _, isFunc := funcs[n.Ident[0]]; !isFunc {
				return strings.Join(n.Ident, ".")
			}
		}
	case *parse.ChainNode:
		if field, ok := n.Node.(*parse.FieldNode); ok {
			return fieldPath(field, funcs)
		}
	}
	return ""
}

func extractNodeVariables(node parse.Node, vars map[string]struct{}, funcs template.FuncMap) {
	if node == nil {
		return
	}
	if path := fieldPath(node, funcs); path != "" {
		vars[path] = struct{}{}
	}

	switch n := node.(type) {
	case *parse.ListNode:
		if n != nil {
			for _, sub := range n.Nodes {
				extractNodeVariables(sub, vars, funcs)
			}
		}
	case *parse.ActionNode:
		if n.Pipe != nil {
			extractNodeVariables(n.Pipe, vars, funcs)
		}
	case *parse.IfNode:
		extractBranch(&n.BranchNode, vars, funcs)
	case *parse.RangeNode:
		extractBranch(&n.BranchNode, vars, funcs)
	case *parse.WithNode:
		extractBranch(&n.BranchNode, vars, funcs)
	case *parse.PipeNode:
		for _, cmd := range n.Cmds {
			for _, arg := range cmd.Args {
				extractNodeVariables(arg, vars, funcs)
			}
		}
	}
}

func extractBranch(b *parse.BranchNode, vars map[string]struct{}, funcs template.FuncMap) {
	if b.Pipe != nil {
		extractNodeVariables(b.Pipe, vars, funcs)
	}
	if b.List != nil {
		extractNodeVariables(b.List, vars, funcs)
	}
	if b.ElseList != nil {
		extractNodeVariables(b.ElseList, vars, funcs)
	}
}

package template

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
	"text/template"
)

// GetFuncMap returns the functions available to stage parameter templates.
func GetFuncMap() template.FuncMap {
	return template.FuncMap{
		"env": os.Getenv,
		"eq": func(a, b interface{}) bool {
			return reflect.DeepEqual(a, b)
		},
		"default": funcDefault,
		"toJSON":  funcToJSON,
		"join":    funcJoin,
		"lower":   strings.ToLower,
		"upper":   strings.ToUpper,
		"trim":    strings.TrimSpace,
	}
}

// funcDefault returns value unless it is nil or an empty string, in which case
// def is returned. Usage: {{ .vars.location | default "remote" }}.
func funcDefault(def, value interface{}) interface{} {
	if value == nil {
		return def
	}
	if s, ok := value.(string); ok && s == "" {
		return def
	}
	return value
}

func funcToJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("toJSON: %w", err)
	}
	return string(b), nil
}

// funcJoin joins a list of values with sep. Non-string elements are
// formatted with %v.
func funcJoin(sep string, list interface{}) (string, error) {
	switch l := list.(type) {
	case []string:
		return strings.Join(l, sep), nil
	case []interface{}:
		parts := make([]string, len(l))
		for i, item := range l {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("join: expected a list, got %T", list)
	}
}

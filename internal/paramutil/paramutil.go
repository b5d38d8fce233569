// Package paramutil reads typed values out of worker parameter maps.
// Every accessor returns a ValidationError naming the offending parameter.
package paramutil

import (
	"fmt"
	"sort"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
)

func missing(key string) error {
	return jherrors.NewValidationError(fmt.Sprintf("missing required parameter '%s'", key), nil)
}

func wrongType(key, want string, got interface{}) error {
	return jherrors.NewValidationError(fmt.Sprintf("parameter '%s' must be %s, got %T", key, want, got), nil)
}

// GetRequiredString returns params[key] as a non-empty string.
func GetRequiredString(params map[string]interface{}, key string) (string, error) {
	s, found, err := GetOptionalString(params, key)
	if err != nil {
		return "", err
	}
	if !found || s == "" {
		return "", missing(key)
	}
	return s, nil
}

// GetOptionalString returns params[key] and whether it was present.
func GetOptionalString(params map[string]interface{}, key string) (string, bool, error) {
	value, exists := params[key]
	if !exists || value == nil {
		return "", false, nil
	}
	s, ok := value.(string)
	if !ok {
		return "", false, wrongType(key, "a string", value)
	}
	return s, true, nil
}

// GetOptionalStringSlice accepts []string or a []interface{} of strings
// (the shape YAML and JSON decoding produce).
func GetOptionalStringSlice(params map[string]interface{}, key string) ([]string, bool, error) {
	value, exists := params[key]
	if !exists || value == nil {
		return nil, false, nil
	}
	switch v := value.(type) {
	case []string:
		return v, true, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false, jherrors.NewValidationError(
					fmt.Sprintf("parameter '%s' must be a list of strings, found %T at index %d", key, item, i), nil)
			}
			out = append(out, s)
		}
		return out, true, nil
	default:
		return nil, false, wrongType(key, "a list", value)
	}
}

// GetOptionalMap returns params[key] as a map with string keys.
func GetOptionalMap(params map[string]interface{}, key string) (map[string]interface{}, bool, error) {
	value, exists := params[key]
	if !exists || value == nil {
		return nil, false, nil
	}
	switch v := value.(type) {
	case map[string]interface{}:
		return v, true, nil
	case map[string]string:
		out := make(map[string]interface{}, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, true, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			sk, ok := k.(string)
			if !ok {
				return nil, false, jherrors.NewValidationError(
					fmt.Sprintf("parameter '%s' must be a map with string keys, found key of type %T", key, k), nil)
			}
			out[sk] = item
		}
		return out, true, nil
	default:
		return nil, false, wrongType(key, "a map", value)
	}
}

// GetOptionalEnv reads a map parameter as "KEY=value" entries sorted by key.
// Scalar values are formatted with %v.
func GetOptionalEnv(params map[string]interface{}, key string) ([]string, bool, error) {
	m, found, err := GetOptionalMap(params, key)
	if err != nil || !found {
		return nil, found, err
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	env := make([]string, 0, len(m))
	for _, k := range names {
		switch v := m[k].(type) {
		case map[string]interface{}, []interface{}:
			return nil, false, jherrors.NewValidationError(
				fmt.Sprintf("parameter '%s' entry '%s' must be a scalar, got %T", key, k, v), nil)
		default:
			env = append(env, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return env, true, nil
}

// GetOptionalInt accepts integer kinds and whole floats (JSON numbers).
func GetOptionalInt(params map[string]interface{}, key string) (int, bool, error) {
	value, exists := params[key]
	if !exists || value == nil {
		return 0, false, nil
	}
	switch v := value.(type) {
	case int:
		return v, true, nil
	case int32:
		return int(v), true, nil
	case int64:
		if int64(int(v)) != v {
			return 0, false, jherrors.NewValidationError(fmt.Sprintf("parameter '%s' value %v overflows int", key, v), nil)
		}
		return int(v), true, nil
	case float64:
		if v != float64(int(v)) {
			return 0, false, jherrors.NewValidationError(fmt.Sprintf("parameter '%s' is a non-integer number (%v)", key, v), nil)
		}
		return int(v), true, nil
	default:
		return 0, false, wrongType(key, "an integer", value)
	}
}

// GetOptionalBool returns params[key] as a bool.
func GetOptionalBool(params map[string]interface{}, key string) (bool, bool, error) {
	value, exists := params[key]
	if !exists || value == nil {
		return false, false, nil
	}
	b, ok := value.(bool)
	if !ok {
		return false, false, wrongType(key, "a boolean", value)
	}
	return b, true, nil
}

// CheckAllowed rejects keys not listed in allowed. An empty list allows all.
func CheckAllowed(params map[string]interface{}, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		set[k] = struct{}{}
	}
	var unknown []string
	for k := range params {
		if _, ok := set[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return jherrors.NewValidationError(fmt.Sprintf("unknown parameter '%s' provided", unknown[0]), nil)
	}
	return nil
}

// CheckExclusive fails when more than one of keys is present.
func CheckExclusive(params map[string]interface{}, keys []string) error {
	first := ""
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			continue
		}
		if first != "" {
			return jherrors.NewValidationError(fmt.Sprintf("parameters '%s' and '%s' are mutually exclusive", first, k), nil)
		}
		first = k
	}
	return nil
}

// Package variant generates experiment variants, every combination of
// the values of a number of named axes.
package variant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// HiddenKeys is the key under which a Variant lists its hidden axes
const HiddenKeys string = "_hidden_keys"

// Variant is one combination of axis values
type Variant map[string]interface{}

// Get returns the value of key, or an error if there is none
func (v Variant) Get(key string) (interface{}, error) {
	value, ok := v[key]
	if !ok {
		return nil, fmt.Errorf("get: variant has no key %q", key)
	}
	return value, nil
}

// Int returns the value of key as an int. It panics if key is missing
// or is not an integer.
func (v Variant) Int(key string) int {
	switch value := v.mustGet(key).(type) {
	case int:
		return value
	case int64:
		return int(value)
	case uint64:
		return int(value)
	case float64:
		if value == float64(int(value)) {
			return int(value)
		}
	}
	panic(fmt.Sprintf("int: value %v of %q is not an integer", v[key], key))
}

// Float returns the value of key as a float64. It panics if key is
// missing or is not a number.
func (v Variant) Float(key string) float64 {
	switch value := v.mustGet(key).(type) {
	case float64:
		return value
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case uint64:
		return float64(value)
	}
	panic(fmt.Sprintf("float: value %v of %q is not a number", v[key], key))
}

// String returns the value of key formatted as a string
func (v Variant) String(key string) string {
	if s, ok := v.mustGet(key).(string); ok {
		return s
	}
	return fmt.Sprint(v[key])
}

// Bool returns the value of key as a bool. It panics if key is missing
// or is not a bool.
func (v Variant) Bool(key string) bool {
	b, ok := v.mustGet(key).(bool)
	if !ok {
		panic(fmt.Sprintf("bool: value %v of %q is not a bool", v[key], key))
	}
	return b
}

func (v Variant) mustGet(key string) interface{} {
	value, err := v.Get(key)
	if err != nil {
		panic(err)
	}
	return value
}

// Hidden returns the hidden keys of the Variant
func (v Variant) Hidden() []string {
	switch keys := v[HiddenKeys].(type) {
	case []string:
		return keys
	case []interface{}:
		hidden := make([]string, 0, len(keys))
		for _, k := range keys {
			hidden = append(hidden, fmt.Sprint(k))
		}
		return hidden
	}
	return nil
}

// Name returns a name for the Variant built from the values of keys. If
// no keys are given, all visible keys are used in sorted order.
func (v Variant) Name(keys ...string) string {
	if len(keys) == 0 {
		hidden := make(map[string]bool)
		for _, k := range v.Hidden() {
			hidden[k] = true
		}
		for k := range v {
			if k != HiddenKeys && !hidden[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
	}

	parts := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		parts = append(parts, k, fmt.Sprint(v[k]))
	}
	return strings.Join(parts, "_")
}

// Copy returns a shallow copy of the Variant
func (v Variant) Copy() Variant {
	c := make(Variant, len(v))
	for k, value := range v {
		c[k] = value
	}
	return c
}

// Decode decodes the Variant into the struct pointed to by out, matching
// keys to JSON field names
func (v Variant) Decode(out interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

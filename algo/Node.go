// Package algo implements the typed configuration tree of a training
// run: the environment, policy, baseline, optimizer, bonus evaluator and
// algorithm settings handed to the training framework. Every node can be
// stored as JSON in a Typed wrapper, which records the node's Type so
// that the node can be restored into its concrete type.
package algo

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidConfig is returned when a node fails validation
var ErrInvalidConfig = errors.New("invalid config")

// Type names a kind of node, for example TRPO or CategoricalMLP
type Type string

// Node is a node of the configuration tree
type Node interface {
	Type() Type

	// Validate returns an error describing why the node is invalid, or
	// nil if the node is valid
	Validate() error
}

// Registered types with the package. Once a Type has been registered
// with this map, a Typed node of that type can be unmarshalled.
var registeredTypes map[Type]reflect.Type

func init() {
	registeredTypes = make(map[Type]reflect.Type)
}

// Register registers the concrete type of node under t
func Register(t Type, node Node) {
	ty := reflect.TypeOf(node)
	if ty.Kind() == reflect.Ptr {
		ty = ty.Elem()
	}
	registeredTypes[t] = ty
}

// Registered returns whether t has been registered
func Registered(t Type) bool {
	_, ok := registeredTypes[t]
	return ok
}

// Typed wraps a Node to enable it to be JSON marshalled and
// unmarshalled into its underlying concrete type
type Typed struct {
	Type
	Node
}

// NewTyped types the argument Node
func NewTyped(n Node) Typed {
	return Typed{Type: n.Type(), Node: n}
}

// NewTypedPtr is like NewTyped but returns a pointer, for optional
// nodes
func NewTypedPtr(n Node) *Typed {
	t := NewTyped(n)
	return &t
}

// Validate validates the wrapped node
func (t Typed) Validate() error {
	if t.Node == nil {
		return fmt.Errorf("validate: %w: missing node of type %q",
			ErrInvalidConfig, t.Type)
	}
	if t.Node.Type() != t.Type {
		return fmt.Errorf("validate: %w: node of type %q typed as %q",
			ErrInvalidConfig, t.Node.Type(), t.Type)
	}
	return t.Node.Validate()
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (t *Typed) UnmarshalJSON(data []byte) error {
	node, typeName, err := unmarshalNode(data, "Type", "Node")
	if err != nil {
		return err
	}

	t.Type = typeName
	t.Node = node

	return nil
}

// unmarshalNode uses reflection to unmarshal a Node into its concrete
// type. Both the Node and its Type are returned.
func unmarshalNode(data []byte, typeJSONField,
	valueJSONField string) (Node, Type, error) {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", fmt.Errorf("unmarshalNode: %w", err)
	}

	var typeName Type
	if err := json.Unmarshal(m[typeJSONField], &typeName); err != nil {
		return nil, "", fmt.Errorf("unmarshalNode: could not read type: %w",
			err)
	}
	ty, found := registeredTypes[typeName]
	if !found {
		return nil, "", fmt.Errorf("unmarshalNode: %w: unregistered type %q",
			ErrInvalidConfig, typeName)
	}

	value := reflect.New(ty).Interface().(Node)
	if raw, ok := m[valueJSONField]; ok {
		if err := json.Unmarshal(raw, value); err != nil {
			return nil, "", fmt.Errorf("unmarshalNode: %w", err)
		}
	}
	concreteValue := reflect.ValueOf(value).Elem().Interface().(Node)

	return concreteValue, typeName, nil
}

// Decode unmarshals a Typed node from data and validates it
func Decode(data []byte) (Typed, error) {
	var t Typed
	if err := json.Unmarshal(data, &t); err != nil {
		return Typed{}, fmt.Errorf("decode: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Typed{}, fmt.Errorf("decode: %w", err)
	}
	return t, nil
}

func invalid(op, format string, args ...interface{}) error {
	return fmt.Errorf("%v: %w: %v", op, ErrInvalidConfig,
		fmt.Sprintf(format, args...))
}

func positiveInts(op, name string, values []int) error {
	for _, v := range values {
		if v < 1 {
			return invalid(op, "%v must be positive, got %v", name, values)
		}
	}
	return nil
}

package variant

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/exp/rand"
)

// axis is a named list of values. The values may depend on the values
// already chosen for earlier axes.
type axis struct {
	name   string
	values func(Variant) []interface{}
	hidden bool
}

// Generator generates Variants from an ordered list of axes. Variants
// are every combination of axis values, with the last axis varying
// fastest.
type Generator struct {
	axes []axis
}

// New returns a new Generator with no axes
func New() *Generator {
	return &Generator{}
}

func (g *Generator) add(a axis) *Generator {
	if a.name == HiddenKeys {
		panic(fmt.Sprintf("add: axis name %q is reserved", HiddenKeys))
	}
	for _, existing := range g.axes {
		if existing.name == a.name {
			panic(fmt.Sprintf("add: duplicate axis %q", a.name))
		}
	}
	g.axes = append(g.axes, a)
	return g
}

func static(values []interface{}) func(Variant) []interface{} {
	return func(Variant) []interface{} {
		return values
	}
}

// Add adds an axis with the given values
func (g *Generator) Add(name string, values ...interface{}) *Generator {
	return g.add(axis{name: name, values: static(values)})
}

// AddHidden adds an axis whose values are left out of Variant names
func (g *Generator) AddHidden(name string, values ...interface{}) *Generator {
	return g.add(axis{name: name, values: static(values), hidden: true})
}

// AddFunc adds an axis whose values are computed from the values chosen
// for earlier axes
func (g *Generator) AddFunc(name string,
	values func(Variant) []interface{}) *Generator {
	return g.add(axis{name: name, values: values})
}

// Axes returns the names of the axes in order
func (g *Generator) Axes() []string {
	names := make([]string, len(g.axes))
	for i, a := range g.axes {
		names[i] = a.name
	}
	return names
}

// Variants returns every combination of axis values. The first axis
// varies slowest and the last axis fastest.
func (g *Generator) Variants() []Variant {
	var hidden []string
	for _, a := range g.axes {
		if a.hidden {
			hidden = append(hidden, a.name)
		}
	}

	variants := []Variant{{}}
	for _, a := range g.axes {
		var next []Variant
		for _, v := range variants {
			for _, value := range a.values(v) {
				c := v.Copy()
				c[a.name] = value
				next = append(next, c)
			}
		}
		variants = next
	}

	if len(hidden) > 0 {
		for _, v := range variants {
			v[HiddenKeys] = hidden
		}
	}
	return variants
}

// Shuffled returns the Variants in a random order determined by seed
func (g *Generator) Shuffled(seed uint64) []Variant {
	variants := g.Variants()
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(variants), func(i, j int) {
		variants[i], variants[j] = variants[j], variants[i]
	})
	return variants
}

// FromList returns a Generator with one axis per field of list, which
// must be a struct whose fields are all slices. Axes are named by the
// fields' JSON names and ordered as the fields are declared. Fields
// tagged `variant:"hidden"` become hidden axes.
func FromList(list interface{}) (*Generator, error) {
	v := reflect.ValueOf(list)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("fromList: expected a struct, got %v",
			v.Kind())
	}

	g := New()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Type.Kind() != reflect.Slice {
			return nil, fmt.Errorf("fromList: field %v is not a slice",
				field.Name)
		}

		name := field.Name
		if tag := strings.Split(field.Tag.Get("json"), ",")[0]; tag != "" {
			name = tag
		}

		values := make([]interface{}, v.Field(i).Len())
		for j := range values {
			values[j] = v.Field(i).Index(j).Interface()
		}

		if field.Tag.Get("variant") == "hidden" {
			g.AddHidden(name, values...)
		} else {
			g.Add(name, values...)
		}
	}
	return g, nil
}

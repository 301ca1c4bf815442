// Package property holds the configurable parameters of a node.
//
// A Store is owned by exactly one node and is not safe for concurrent use;
// callers serialise access the same way they serialise graph evaluation.
package property

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AaronLay10/Cadence/internal/value"
)

// ChangeFunc is invoked after a property value was stored.
type ChangeFunc func(name string, v any)

type entry struct {
	name        string
	constraints Constraints
	value       any
}

// Spec is a read-only view of one declared property.
type Spec struct {
	Name        string      `json:"name"`
	Value       any         `json:"value"`
	Constraints Constraints `json:"constraints"`
}

// Store maps property names to constrained values.
type Store struct {
	entries  map[string]*entry
	order    []string
	onChange ChangeFunc
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// OnChange installs the hook called after every successful Set.
func (s *Store) OnChange(fn ChangeFunc) {
	s.onChange = fn
}

// Declare registers name with a default value. Declaring an existing name
// replaces its constraints and re-validates the current value against them:
// numbers are clamped into the new range, and a value the new constraints
// reject is replaced by def. An invalid default is a programming error and
// panics.
func (s *Store) Declare(name string, def any, c Constraints) {
	v, err := normalize(name, def, c)
	if err != nil {
		panic(fmt.Sprintf("property %s: invalid default: %v", name, err))
	}
	if e, ok := s.entries[name]; ok {
		e.constraints = c
		if cur, err := normalize(name, e.value, c); err == nil {
			e.value = cur
		} else {
			e.value = v
		}
		return
	}
	s.entries[name] = &entry{name: name, constraints: c, value: v}
	s.order = append(s.order, name)
}

// Has reports whether name was declared.
func (s *Store) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Get returns the current value of name.
func (s *Store) Get(name string) (any, error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, &UnknownPropertyError{Name: name}
	}
	return e.value, nil
}

// Set validates v against the property's constraints and stores it.
// Numeric values outside the range are clamped. Enum values outside the
// option set are rejected and the previous value is kept.
func (s *Store) Set(name string, v any) error {
	e, ok := s.entries[name]
	if !ok {
		return &UnknownPropertyError{Name: name}
	}
	nv, err := normalize(name, v, e.constraints)
	if err != nil {
		return err
	}
	e.value = nv
	if s.onChange != nil {
		s.onChange(name, nv)
	}
	return nil
}

// SetAll applies overrides in declaration order and joins any errors.
// Unknown names are reported but do not stop the remaining overrides.
func (s *Store) SetAll(overrides map[string]any) error {
	var errs []error
	for _, name := range s.order {
		if v, ok := overrides[name]; ok {
			if err := s.Set(name, v); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for name := range overrides {
		if !s.Has(name) {
			errs = append(errs, &UnknownPropertyError{Name: name})
		}
	}
	return errors.Join(errs...)
}

// Specs returns every property in declaration order.
func (s *Store) Specs() []Spec {
	out := make([]Spec, 0, len(s.order))
	for _, name := range s.order {
		e := s.entries[name]
		out = append(out, Spec{Name: name, Value: e.value, Constraints: e.constraints})
	}
	return out
}

// Values returns a copy of all current values keyed by name.
func (s *Store) Values() map[string]any {
	out := make(map[string]any, len(s.entries))
	for name, e := range s.entries {
		out[name] = e.value
	}
	return out
}

// Float returns a numeric property, or 0 if undeclared.
func (s *Store) Float(name string) float64 {
	if e, ok := s.entries[name]; ok {
		if f, ok := e.value.(float64); ok {
			return f
		}
	}
	return 0
}

// Int returns a numeric property rounded to an int.
func (s *Store) Int(name string) int {
	return int(math.Round(s.Float(name)))
}

func (s *Store) Bool(name string) bool {
	if e, ok := s.entries[name]; ok {
		b, _ := e.value.(bool)
		return b
	}
	return false
}

func (s *Store) String(name string) string {
	if e, ok := s.entries[name]; ok {
		str, _ := e.value.(string)
		return str
	}
	return ""
}

// Floats returns a copy of an array property.
func (s *Store) Floats(name string) []float64 {
	if e, ok := s.entries[name]; ok {
		if a, ok := e.value.([]float64); ok {
			return append([]float64(nil), a...)
		}
	}
	return nil
}

// Color returns a color property parsed from its hex form.
func (s *Store) Color(name string) value.Color {
	c, err := ParseColor(s.String(name))
	if err != nil {
		return value.Color{A: 1}
	}
	return c
}

func normalize(name string, v any, c Constraints) (any, error) {
	invalid := func(reason string) error {
		return &InvalidPropertyValueError{Name: name, Value: v, Reason: reason}
	}

	switch c.Kind {
	case KindNumber, KindInteger:
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) {
			return nil, invalid("not a number")
		}
		if c.Kind == KindInteger {
			f = math.Round(f)
		}
		return c.clamp(f), nil

	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, invalid("not a boolean")
		}
		return b, nil

	case KindString:
		str, ok := v.(string)
		if !ok {
			return nil, invalid("not a string")
		}
		return str, nil

	case KindEnum:
		str, ok := v.(string)
		if !ok {
			return nil, invalid("not a string")
		}
		for _, opt := range c.Options {
			if opt == str {
				return str, nil
			}
		}
		return nil, invalid("not one of " + strings.Join(c.Options, ", "))

	case KindColor:
		str, ok := v.(string)
		if !ok {
			return nil, invalid("not a color string")
		}
		if _, err := ParseColor(str); err != nil {
			return nil, invalid(err.Error())
		}
		return strings.ToLower(str), nil

	case KindArray:
		arr, ok := toFloats(v)
		if !ok {
			return nil, invalid("not a numeric array")
		}
		for i := range arr {
			arr[i] = c.clamp(arr[i])
		}
		return arr, nil
	}
	return nil, invalid("unsupported property kind " + string(c.Kind))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toFloats(v any) ([]float64, bool) {
	switch a := v.(type) {
	case []float64:
		return append([]float64(nil), a...), true
	case []int:
		out := make([]float64, len(a))
		for i, n := range a {
			out[i] = float64(n)
		}
		return out, true
	case []any:
		out := make([]float64, len(a))
		for i, el := range a {
			f, ok := toFloat(el)
			if !ok {
				if b, isBool := el.(bool); isBool {
					if b {
						f = 1
					}
				} else {
					return nil, false
				}
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// ParseColor parses #rgb, #rrggbb or #rrggbbaa.
func ParseColor(s string) (value.Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 || !strings.HasPrefix(s, "#") {
		return value.Color{}, fmt.Errorf("malformed color %q", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return value.Color{}, fmt.Errorf("malformed color %q", s)
	}
	return value.Color{
		R: float64((n>>24)&0xff) / 255,
		G: float64((n>>16)&0xff) / 255,
		B: float64((n>>8)&0xff) / 255,
		A: float64(n&0xff) / 255,
	}, nil
}

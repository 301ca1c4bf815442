package property

// Kind is the value kind a property stores.
type Kind string

const (
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindString  Kind = "string"
	KindEnum    Kind = "enum"
	KindColor   Kind = "color"
	KindArray   Kind = "array"
)

// Constraints is the validation metadata for a property.
// A numeric range applies only when Min < Max. Step is a UI hint.
type Constraints struct {
	Kind     Kind     `json:"kind" yaml:"kind"`
	Min      float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max      float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Step     float64  `json:"step,omitempty" yaml:"step,omitempty"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
}

func (c Constraints) hasRange() bool {
	return c.Min < c.Max
}

func (c Constraints) clamp(f float64) float64 {
	if !c.hasRange() {
		return f
	}
	if f < c.Min {
		return c.Min
	}
	if f > c.Max {
		return c.Max
	}
	return f
}

// Number returns constraints for a ranged float property.
func Number(min, max, step float64) Constraints {
	return Constraints{Kind: KindNumber, Min: min, Max: max, Step: step}
}

// Integer returns constraints for a ranged integer property.
func Integer(min, max int) Constraints {
	return Constraints{Kind: KindInteger, Min: float64(min), Max: float64(max), Step: 1}
}

func Boolean() Constraints { return Constraints{Kind: KindBoolean} }

func Text() Constraints { return Constraints{Kind: KindString} }

func Color() Constraints { return Constraints{Kind: KindColor} }

// Enum returns constraints restricting a string property to options.
func Enum(options ...string) Constraints {
	return Constraints{Kind: KindEnum, Options: options}
}

// Array returns constraints for a numeric array whose elements are clamped to [min, max].
func Array(min, max float64) Constraints {
	return Constraints{Kind: KindArray, Min: min, Max: max}
}

// In sets the UI category and returns the constraints.
func (c Constraints) In(category string) Constraints {
	c.Category = category
	return c
}

package property

import "fmt"

// UnknownPropertyError is returned when a property name was never declared.
type UnknownPropertyError struct {
	Name string
}

func (e *UnknownPropertyError) Error() string {
	return "unknown property: " + e.Name
}

// InvalidPropertyValueError is returned when a value cannot be stored under
// a property's constraints. The previous value is kept.
type InvalidPropertyValueError struct {
	Name   string
	Value  any
	Reason string
}

func (e *InvalidPropertyValueError) Error() string {
	return fmt.Sprintf("invalid value %v for property %s: %s", e.Value, e.Name, e.Reason)
}

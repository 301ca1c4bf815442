package value

// coercions lists the implicit conversions an edge may perform, keyed by
// source type. Identical types always connect.
var coercions = map[Type][]Type{
	TypeNumber:  {TypeArray, TypeBoolean, TypeString},
	TypeBoolean: {TypeNumber, TypeEvent, TypeString},
	TypeEvent:   {TypeBoolean, TypeNumber},
	TypeColor:   {TypeArray},
	TypeTexture: {TypeString},
}

// Compatible reports whether an output of type from may feed an input of type to.
func Compatible(from, to Type) bool {
	if from == to {
		return true
	}
	for _, t := range coercions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Coerce converts v to type to. The second result is false when no
// coercion exists. Error sentinels keep their error and take the target type.
func Coerce(v Value, to Type) (Value, bool) {
	if v.Type == to {
		return v, true
	}
	if !Compatible(v.Type, to) {
		return Value{}, false
	}
	if v.IsError() {
		return Error(to, v.err), true
	}

	switch to {
	case TypeArray:
		if v.Type == TypeColor {
			return Array([]float64{v.color.R, v.color.G, v.color.B, v.color.A}), true
		}
		return Array([]float64{v.num}), true
	case TypeBoolean:
		return Bool(v.Bool()), true
	case TypeNumber:
		return Number(v.Float()), true
	case TypeEvent:
		return Event(v.flag), true
	case TypeString:
		return String(v.Str()), true
	}
	return Value{}, false
}

package expr

import (
	"errors"
	"math"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

var errNotANumber = errors.New("result is not a number")

func numberResult(f float64) (cty.Value, error) {
	if math.IsNaN(f) {
		return cty.UnknownVal(cty.Number), errNotANumber
	}
	return cty.NumberFloatVal(f), nil
}

func args64(args []cty.Value) []float64 {
	out := make([]float64, len(args))
	for i, a := range args {
		out[i], _ = a.AsBigFloat().Float64()
	}
	return out
}

func numberParams(names ...string) []function.Parameter {
	params := make([]function.Parameter, len(names))
	for i, n := range names {
		params[i] = function.Parameter{Name: n, Type: cty.Number}
	}
	return params
}

func unary(fn func(float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: numberParams("x"),
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			x := args64(args)
			return numberResult(fn(x[0]))
		},
	})
}

func binary(fn func(a, b float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: numberParams("a", "b"),
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			x := args64(args)
			return numberResult(fn(x[0], x[1]))
		},
	})
}

func ternary(fn func(a, b, c float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: numberParams("a", "b", "c"),
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			x := args64(args)
			return numberResult(fn(x[0], x[1], x[2]))
		},
	})
}

// Package expr compiles and evaluates the arithmetic expressions typed into
// expression nodes.
//
// Expressions use HCL expression syntax: arithmetic, comparison, logical and
// conditional operators plus a fixed set of numeric functions. Only the
// variables a, b, c, d, t and dt exist. Nothing else is reachable from user
// text.
package expr

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Variables lists the names an expression may reference.
var Variables = []string{"a", "b", "c", "d", "t", "dt"}

var functions = map[string]function.Function{
	"abs":   stdlib.AbsoluteFunc,
	"ceil":  stdlib.CeilFunc,
	"floor": stdlib.FloorFunc,
	"log":   stdlib.LogFunc,
	"max":   stdlib.MaxFunc,
	"min":   stdlib.MinFunc,
	"pow":   stdlib.PowFunc,
	"sign":  stdlib.SignumFunc,

	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"sqrt":  unary(math.Sqrt),
	"exp":   unary(math.Exp),
	"round": unary(math.Round),
	"fract": unary(func(x float64) float64 { return x - math.Floor(x) }),
	"clamp": ternary(func(x, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, x)) }),
	"mix":   ternary(func(a, b, t float64) float64 { return a + (b-a)*t }),
	"step": binary(func(edge, x float64) float64 {
		if x < edge {
			return 0
		}
		return 1
	}),
}

// Functions returns the sorted names of the callable functions.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Program is a compiled expression.
type Program struct {
	src  string
	expr hclsyntax.Expression
}

// Compile parses src and checks that it only references known variables
// and functions.
func Compile(src string) (*Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	e, diags := hclsyntax.ParseExpression([]byte(src), "expression", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %q: %s", src, diags.Error())
	}

	for _, tr := range e.Variables() {
		name := tr.RootName()
		if !isVariable(name) {
			return nil, fmt.Errorf("unknown variable %q (allowed: %s)", name, strings.Join(Variables, ", "))
		}
	}

	var unknown string
	hclsyntax.VisitAll(e, func(n hclsyntax.Node) hcl.Diagnostics {
		if call, ok := n.(*hclsyntax.FunctionCallExpr); ok && unknown == "" {
			if _, known := functions[call.Name]; !known {
				unknown = call.Name
			}
		}
		return nil
	})
	if unknown != "" {
		return nil, fmt.Errorf("unknown function %q", unknown)
	}

	return &Program{src: src, expr: e}, nil
}

func (p *Program) String() string { return p.src }

// Eval evaluates the program. Missing variables read as 0. Booleans
// evaluate to 1 or 0.
func (p *Program) Eval(vars map[string]float64) (float64, error) {
	ctxVars := make(map[string]cty.Value, len(Variables))
	for _, name := range Variables {
		f := vars[name]
		if math.IsNaN(f) || math.IsInf(f, 0) {
			f = 0
		}
		ctxVars[name] = cty.NumberFloatVal(f)
	}

	v, diags := p.expr.Value(&hcl.EvalContext{Variables: ctxVars, Functions: functions})
	if diags.HasErrors() {
		return 0, fmt.Errorf("evaluate %q: %s", p.src, diags.Error())
	}
	if v.IsNull() || !v.IsKnown() {
		return 0, fmt.Errorf("evaluate %q: no value", p.src)
	}

	switch v.Type() {
	case cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return 0, fmt.Errorf("evaluate %q: %w", p.src, err)
		}
		return f, nil
	case cty.Bool:
		if v.True() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("evaluate %q: result is %s, want number", p.src, v.Type().FriendlyName())
}

func isVariable(name string) bool {
	for _, v := range Variables {
		if v == name {
			return true
		}
	}
	return false
}

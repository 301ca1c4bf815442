package expr

import (
	"math"
	"strings"
	"testing"
)

func TestEval(t *testing.T) {
	vars := map[string]float64{"a": 2, "b": 3, "t": 0.5}
	tests := []struct {
		src  string
		want float64
	}{
		{"a + b * 2", 8},
		{"(a + b) * 2", 10},
		{"a - b", -1},
		{"b % a", 1},
		{"-a", -2},
		{"a > b ? 1 : 0", 0},
		{"a < b", 1},
		{"max(a, b, 7)", 7},
		{"min(a, b)", 2},
		{"abs(a - b)", 1},
		{"pow(a, 3)", 8},
		{"sqrt(16)", 4},
		{"clamp(a * 10, 0, 5)", 5},
		{"mix(0, 10, t)", 5},
		{"step(0.5, t)", 1},
		{"floor(2.7) + ceil(0.2)", 3},
		{"round(fract(3.75) * 4)", 3},
		{"c + d", 0},
		{"sin(0) + cos(0)", 1},
	}
	for _, tt := range tests {
		p, err := Compile(tt.src)
		if err != nil {
			t.Errorf("Compile(%q): %v", tt.src, err)
			continue
		}
		got, err := p.Eval(vars)
		if err != nil {
			t.Errorf("Eval(%q): %v", tt.src, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Eval(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestCompileRejectsUnknownNames(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"x + 1", "unknown variable"},
		{"env.HOME", "unknown variable"},
		{"file(\"/etc/passwd\")", "unknown function"},
		{"upper(a)", "unknown function"},
		{"a +", "parse"},
		{"   ", "empty"},
	}
	for _, tt := range tests {
		_, err := Compile(tt.src)
		if err == nil {
			t.Errorf("Compile(%q) should fail", tt.src)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Compile(%q) error %q should mention %q", tt.src, err, tt.want)
		}
	}
}

func TestEvalRejectsNonNumericResult(t *testing.T) {
	p, err := Compile(`"text"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := p.Eval(nil); err == nil {
		t.Error("expected error for string result")
	}
}

func TestEvalNaNFromFunction(t *testing.T) {
	p, err := Compile("sqrt(a)")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Eval(map[string]float64{"a": -1}); err == nil {
		t.Error("expected error for sqrt of negative number")
	}
}

func TestEvalSanitisesNonFiniteInputs(t *testing.T) {
	p, err := Compile("a + 1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Eval(map[string]float64{"a": math.NaN()})
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("expected NaN input to read as 0, got %v", got)
	}
}

package graphfile

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/AaronLay10/Cadence/internal/graph"
	"github.com/AaronLay10/Cadence/internal/node"
)

// hclRoot is the top level of an HCL graph file:
//
//	version = 1
//
//	node "osc" {
//	  type       = "audio/oscillator"
//	  position   = [120, 40]
//	  properties = { frequency = 220 }
//	}
//
//	edge {
//	  from = "osc:audio"
//	  to   = "fft:audio"
//	}
type hclRoot struct {
	Version *int       `hcl:"version,optional"`
	Nodes   []*hclNode `hcl:"node,block"`
	Edges   []*hclEdge `hcl:"edge,block"`
	Remain  hcl.Body   `hcl:",remain"`
}

type hclNode struct {
	ID         string         `hcl:"id,label"`
	Type       string         `hcl:"type"`
	Title      *string        `hcl:"title,optional"`
	Position   []float64      `hcl:"position,optional"`
	Properties hcl.Expression `hcl:"properties,optional"`
}

type hclEdge struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

func decodeHCL(data []byte, name string) (graph.Description, int, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, name)
	if diags.HasErrors() {
		return graph.Description{}, 0, fmt.Errorf("failed to parse HCL file %s: %w", name, diags)
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return graph.Description{}, 0, fmt.Errorf("failed to decode HCL file %s: %w", name, diags)
	}

	d := graph.Description{
		Nodes: make([]graph.NodeDescription, 0, len(root.Nodes)),
		Edges: make([]graph.EdgeDescription, 0, len(root.Edges)),
	}
	for _, n := range root.Nodes {
		nd := graph.NodeDescription{ID: n.ID, Type: n.Type}
		if n.Title != nil {
			nd.Title = *n.Title
		}
		switch len(n.Position) {
		case 0:
		case 2:
			nd.Position = node.Position{X: n.Position[0], Y: n.Position[1]}
		default:
			return graph.Description{}, 0, fmt.Errorf("node %s: position needs two numbers, got %d", n.ID, len(n.Position))
		}
		props, err := decodeProperties(n.Properties)
		if err != nil {
			return graph.Description{}, 0, fmt.Errorf("node %s: %w", n.ID, err)
		}
		nd.Properties = props
		d.Nodes = append(d.Nodes, nd)
	}
	for _, e := range root.Edges {
		d.Edges = append(d.Edges, graph.EdgeDescription{From: e.From, To: e.To})
	}

	version := 0
	if root.Version != nil {
		version = *root.Version
	}
	return d, version, nil
}

func decodeProperties(expr hcl.Expression) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("properties: %w", diags)
	}
	if v.IsNull() {
		return nil, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, fmt.Errorf("properties must be an object, got %s", v.Type().FriendlyName())
	}
	native, err := ctyToNative(v)
	if err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}
	props, _ := native.(map[string]any)
	return props, nil
}

// ctyToNative converts a cty value to plain Go values: string, float64,
// bool, []any and map[string]any.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number to float64: %w", err)
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			nv, err := ctyToNative(el)
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, el := it.Element()
			nv, err := ctyToNative(el)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", k.AsString(), err)
			}
			out[k.AsString()] = nv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}

// nativeToCty is the inverse of ctyToNative for the values property stores
// hold.
func nativeToCty(v any) (cty.Value, error) {
	switch x := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(x), nil
	case bool:
		return cty.BoolVal(x), nil
	case float64:
		return cty.NumberFloatVal(x), nil
	case int:
		return cty.NumberIntVal(int64(x)), nil
	case []float64:
		if len(x) == 0 {
			return cty.EmptyTupleVal, nil
		}
		vals := make([]cty.Value, len(x))
		for i, f := range x {
			vals[i] = cty.NumberFloatVal(f)
		}
		return cty.TupleVal(vals), nil
	case []any:
		if len(x) == 0 {
			return cty.EmptyTupleVal, nil
		}
		vals := make([]cty.Value, len(x))
		for i, el := range x {
			cv, err := nativeToCty(el)
			if err != nil {
				return cty.NilVal, err
			}
			vals[i] = cv
		}
		return cty.TupleVal(vals), nil
	case map[string]any:
		if len(x) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(x))
		for k, el := range x {
			cv, err := nativeToCty(el)
			if err != nil {
				return cty.NilVal, fmt.Errorf("%s: %w", k, err)
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported property value %T", v)
}

func encodeHCL(d graph.Description) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("version", cty.NumberIntVal(Version))

	for _, n := range d.Nodes {
		body.AppendNewline()
		nb := body.AppendNewBlock("node", []string{n.ID}).Body()
		nb.SetAttributeValue("type", cty.StringVal(n.Type))
		if n.Title != "" {
			nb.SetAttributeValue("title", cty.StringVal(n.Title))
		}
		nb.SetAttributeValue("position", cty.TupleVal([]cty.Value{
			cty.NumberFloatVal(n.Position.X),
			cty.NumberFloatVal(n.Position.Y),
		}))
		if len(n.Properties) > 0 {
			props, err := nativeToCty(n.Properties)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", n.ID, err)
			}
			nb.SetAttributeValue("properties", props)
		}
	}

	for _, e := range d.Edges {
		body.AppendNewline()
		eb := body.AppendNewBlock("edge", nil).Body()
		eb.SetAttributeValue("from", cty.StringVal(e.From))
		eb.SetAttributeValue("to", cty.StringVal(e.To))
	}
	return f.Bytes(), nil
}

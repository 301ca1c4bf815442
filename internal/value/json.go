package value

import "encoding/json"

type wireValue struct {
	Type  Type   `json:"type"`
	Value any    `json:"value"`
	Error string `json:"error,omitempty"`
}

// MarshalJSON encodes v as {"type", "value"} for the operator API.
// Audio samples are not encoded, only the window metadata.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Type: v.Type}
	if v.err != nil {
		w.Error = v.err.Error()
		return json.Marshal(w)
	}
	switch v.Type {
	case TypeNumber:
		w.Value = v.num
	case TypeBoolean, TypeEvent:
		w.Value = v.flag
	case TypeString, TypeTexture:
		w.Value = v.str
	case TypeArray:
		w.Value = v.arr
	case TypeAudio:
		w.Value = v.audio
	case TypeVisual:
		w.Value = v.visual
	case TypeColor:
		w.Value = v.color
	}
	return json.Marshal(w)
}

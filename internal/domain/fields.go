package domain

import (
	"fmt"
	"slices"
)

// TypedField is the JSON form of a point field. Exactly one value pointer
// is set so integers and floats stay distinct after decoding.
type TypedField struct {
	Key   string   `json:"key"`
	Int   *int64   `json:"i,omitempty"`
	Float *float64 `json:"f,omitempty"`
	Str   *string  `json:"s,omitempty"`
	Bool  *bool    `json:"b,omitempty"`
}

// EncodeFields converts a field map into key-ordered typed fields.
// Unknown value types are stored as their string form.
func EncodeFields(fields map[string]any) []TypedField {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]TypedField, 0, len(keys))
	for _, k := range keys {
		f := TypedField{Key: k}
		switch v := fields[k].(type) {
		case int64:
			f.Int = &v
		case float64:
			f.Float = &v
		case bool:
			f.Bool = &v
		case string:
			f.Str = &v
		default:
			s := fmt.Sprint(v)
			f.Str = &s
		}
		out = append(out, f)
	}
	return out
}

// DecodeFields is the inverse of EncodeFields.
func DecodeFields(typed []TypedField) map[string]any {
	out := make(map[string]any, len(typed))
	for _, f := range typed {
		switch {
		case f.Int != nil:
			out[f.Key] = *f.Int
		case f.Float != nil:
			out[f.Key] = *f.Float
		case f.Bool != nil:
			out[f.Key] = *f.Bool
		case f.Str != nil:
			out[f.Key] = *f.Str
		default:
			out[f.Key] = nil
		}
	}
	return out
}

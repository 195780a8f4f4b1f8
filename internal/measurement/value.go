package measurement

import (
	"fmt"
	"math"
)

// ValueType enumerates the field value types understood by the line protocol.
type ValueType uint8

const (
	TypeInteger ValueType = iota + 1
	TypeFloat
	TypeString
	TypeBoolean
)

// Value is a typed field value.
type Value struct {
	s    string
	i    int64
	f    float64
	bits int
	t    ValueType
	b    bool
}

func Int(v int64) Value         { return Value{t: TypeInteger, i: v} }
func Float(v float64) Value     { return Value{t: TypeFloat, f: v, bits: 64} }
func Float32(v float32) Value   { return Value{t: TypeFloat, f: float64(v), bits: 32} }
func String(v string) Value     { return Value{t: TypeString, s: v} }
func Bool(v bool) Value         { return Value{t: TypeBoolean, b: v} }
func (v Value) Type() ValueType { return v.t }

// Integer returns the integer payload; zero for other types.
func (v Value) Integer() int64 { return v.i }

// Float returns the float payload together with its bit size (32 or 64).
func (v Value) Float() (float64, int) { return v.f, v.bits }

func (v Value) Str() string   { return v.s }
func (v Value) Boolean() bool { return v.b }

// Finite reports whether the value is not a NaN or infinite float.
func (v Value) Finite() bool {
	if v.t != TypeFloat {
		return true
	}
	return !math.IsNaN(v.f) && !math.IsInf(v.f, 0)
}

// Any unwraps the value into a plain Go value.
func (v Value) Any() any {
	switch v.t {
	case TypeInteger:
		return v.i
	case TypeFloat:
		return v.f
	case TypeBoolean:
		return v.b
	default:
		return v.s
	}
}

// unsigned keeps values that do not fit int64 as floats instead of letting
// them wrap negative.
func unsigned(n uint64) Value {
	if n > math.MaxInt64 {
		return Float(float64(n))
	}
	return Int(int64(n))
}

// ValueOf boxes x into a Value. Whole numbers become integers, floats keep
// their bit size, and anything else is carried as its string form.
func ValueOf(x any) Value {
	switch n := x.(type) {
	case Value:
		return n
	case int:
		return Int(int64(n))
	case int8:
		return Int(int64(n))
	case int16:
		return Int(int64(n))
	case int32:
		return Int(int64(n))
	case int64:
		return Int(n)
	case uint:
		return unsigned(uint64(n))
	case uint8:
		return Int(int64(n))
	case uint16:
		return Int(int64(n))
	case uint32:
		return Int(int64(n))
	case uint64:
		return unsigned(n)
	case float32:
		return Float32(n)
	case float64:
		return Float(n)
	case bool:
		return Bool(n)
	case string:
		return String(n)
	case fmt.Stringer:
		return String(n.String())
	default:
		return String(fmt.Sprint(x))
	}
}

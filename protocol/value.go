// Package protocol implements the telemetry wire protocol: the binary
// framing, the compiled-in message schema catalog and the reflection layer
// that lets generic code inspect and mutate arbitrary message types by
// numeric ID or field name without per-type code.
package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FieldType enumerates the primitive wire types a field may carry.
type FieldType int

const (
	TypeUint8 FieldType = iota
	TypeUint16
	TypeUint32
	TypeUint64
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat
	TypeDouble
	TypeChar
)

var fieldTypeNames = map[FieldType]string{
	TypeUint8:  "uint8",
	TypeUint16: "uint16",
	TypeUint32: "uint32",
	TypeUint64: "uint64",
	TypeInt8:   "int8",
	TypeInt16:  "int16",
	TypeInt32:  "int32",
	TypeInt64:  "int64",
	TypeFloat:  "float",
	TypeDouble: "double",
	TypeChar:   "char",
}

// String returns the wire name of the type as used in the dialect schema.
func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Size returns the encoded size of one scalar of this type in bytes.
func (t FieldType) Size() int {
	switch t {
	case TypeUint8, TypeInt8, TypeChar:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	case TypeUint32, TypeInt32, TypeFloat:
		return 4
	case TypeUint64, TypeInt64, TypeDouble:
		return 8
	default:
		return 0
	}
}

// Numeric reports whether the type is plottable (integer or float).
func (t FieldType) Numeric() bool {
	switch t {
	case TypeChar:
		return false
	default:
		return true
	}
}

// MarshalJSON encodes the type as its wire name.
func (t FieldType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a wire name into a FieldType.
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for ft, n := range fieldTypeNames {
		if n == name {
			*t = ft
			return nil
		}
	}
	return fmt.Errorf("unknown field type %q", name)
}

// Value is the generic representation of one field's content: a scalar or
// a fixed-length array of scalars of a single primitive wire type. Typed
// accessors panic on a declared-type mismatch - the caller is expected to
// have chosen the accessor from the field's schema type, so a mismatch is
// a programming error, not a runtime condition.
type Value struct {
	typ      FieldType
	arrayLen int      // 0 for scalars
	bits     []uint64 // raw scalar bits, one entry per element
}

// Type returns the declared wire type of the value.
func (v Value) Type() FieldType { return v.typ }

// ArrayLen returns the declared array length, 0 for scalars.
func (v Value) ArrayLen() int { return v.arrayLen }

// IsArray reports whether the value is an array.
func (v Value) IsArray() bool { return v.arrayLen > 0 }

func (v Value) scalar(want FieldType, as string) uint64 {
	if v.typ != want || v.arrayLen != 0 {
		panic(fmt.Sprintf("protocol: cannot extract %s %s as %s",
			v.describe(), v.typ, as))
	}
	return v.bits[0]
}

func (v Value) describe() string {
	if v.arrayLen > 0 {
		return fmt.Sprintf("array[%d]", v.arrayLen)
	}
	return "scalar"
}

// AsUint8 extracts the value as an unsigned 8-bit integer.
func (v Value) AsUint8() uint8 { return uint8(v.scalar(TypeUint8, "uint8")) }

// AsUint16 extracts the value as an unsigned 16-bit integer.
func (v Value) AsUint16() uint16 { return uint16(v.scalar(TypeUint16, "uint16")) }

// AsUint32 extracts the value as an unsigned 32-bit integer.
func (v Value) AsUint32() uint32 { return uint32(v.scalar(TypeUint32, "uint32")) }

// AsUint64 extracts the value as an unsigned 64-bit integer.
func (v Value) AsUint64() uint64 { return v.scalar(TypeUint64, "uint64") }

// AsInt8 extracts the value as a signed 8-bit integer.
func (v Value) AsInt8() int8 { return int8(v.scalar(TypeInt8, "int8")) }

// AsInt16 extracts the value as a signed 16-bit integer.
func (v Value) AsInt16() int16 { return int16(v.scalar(TypeInt16, "int16")) }

// AsInt32 extracts the value as a signed 32-bit integer.
func (v Value) AsInt32() int32 { return int32(v.scalar(TypeInt32, "int32")) }

// AsInt64 extracts the value as a signed 64-bit integer.
func (v Value) AsInt64() int64 { return int64(v.scalar(TypeInt64, "int64")) }

// AsFloat extracts the value as a 32-bit float.
func (v Value) AsFloat() float32 {
	return math.Float32frombits(uint32(v.scalar(TypeFloat, "float")))
}

// AsDouble extracts the value as a 64-bit float.
func (v Value) AsDouble() float64 {
	return math.Float64frombits(v.scalar(TypeDouble, "double"))
}

// AsChar extracts the value as a single character.
func (v Value) AsChar() byte { return byte(v.scalar(TypeChar, "char")) }

// AsFloat64 widens any numeric scalar to float64 for plotting. Panics on
// arrays and char values, which are not plottable.
func (v Value) AsFloat64() float64 {
	if v.arrayLen != 0 || !v.typ.Numeric() {
		panic(fmt.Sprintf("protocol: %s %s is not plottable", v.describe(), v.typ))
	}
	switch v.typ {
	case TypeFloat:
		return float64(math.Float32frombits(uint32(v.bits[0])))
	case TypeDouble:
		return math.Float64frombits(v.bits[0])
	case TypeInt8:
		return float64(int8(v.bits[0]))
	case TypeInt16:
		return float64(int16(v.bits[0]))
	case TypeInt32:
		return float64(int32(v.bits[0]))
	case TypeInt64:
		return float64(int64(v.bits[0]))
	default:
		return float64(v.bits[0])
	}
}

// AsString formats any value as text. Char arrays render as a string
// (trailing NULs stripped), other arrays as a bracketed element list.
// This is the fallback representation for array types.
func (v Value) AsString() string {
	if v.arrayLen == 0 {
		return v.elemString(0)
	}
	if v.typ == TypeChar {
		raw := make([]byte, 0, v.arrayLen)
		for _, b := range v.bits {
			if b == 0 {
				break
			}
			raw = append(raw, byte(b))
		}
		return string(raw)
	}
	parts := make([]string, len(v.bits))
	for i := range v.bits {
		parts[i] = v.elemString(i)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (v Value) elemString(i int) string {
	switch v.typ {
	case TypeFloat:
		return fmt.Sprintf("%g", math.Float32frombits(uint32(v.bits[i])))
	case TypeDouble:
		return fmt.Sprintf("%g", math.Float64frombits(v.bits[i]))
	case TypeInt8:
		return fmt.Sprintf("%d", int8(v.bits[i]))
	case TypeInt16:
		return fmt.Sprintf("%d", int16(v.bits[i]))
	case TypeInt32:
		return fmt.Sprintf("%d", int32(v.bits[i]))
	case TypeInt64:
		return fmt.Sprintf("%d", int64(v.bits[i]))
	case TypeChar:
		return string(byte(v.bits[i]))
	default:
		return fmt.Sprintf("%d", v.bits[i])
	}
}

// Equal reports whether two values have identical type, shape and content.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ || v.arrayLen != other.arrayLen || len(v.bits) != len(other.bits) {
		return false
	}
	for i := range v.bits {
		if v.bits[i] != other.bits[i] {
			return false
		}
	}
	return true
}

// Scalar constructors.

// NewUint8 builds a uint8 scalar value.
func NewUint8(v uint8) Value { return Value{typ: TypeUint8, bits: []uint64{uint64(v)}} }

// NewUint16 builds a uint16 scalar value.
func NewUint16(v uint16) Value { return Value{typ: TypeUint16, bits: []uint64{uint64(v)}} }

// NewUint32 builds a uint32 scalar value.
func NewUint32(v uint32) Value { return Value{typ: TypeUint32, bits: []uint64{uint64(v)}} }

// NewUint64 builds a uint64 scalar value.
func NewUint64(v uint64) Value { return Value{typ: TypeUint64, bits: []uint64{v}} }

// NewInt8 builds an int8 scalar value.
func NewInt8(v int8) Value { return Value{typ: TypeInt8, bits: []uint64{uint64(uint8(v))}} }

// NewInt16 builds an int16 scalar value.
func NewInt16(v int16) Value { return Value{typ: TypeInt16, bits: []uint64{uint64(uint16(v))}} }

// NewInt32 builds an int32 scalar value.
func NewInt32(v int32) Value { return Value{typ: TypeInt32, bits: []uint64{uint64(uint32(v))}} }

// NewInt64 builds an int64 scalar value.
func NewInt64(v int64) Value { return Value{typ: TypeInt64, bits: []uint64{uint64(v)}} }

// NewFloat builds a float scalar value.
func NewFloat(v float32) Value {
	return Value{typ: TypeFloat, bits: []uint64{uint64(math.Float32bits(v))}}
}

// NewDouble builds a double scalar value.
func NewDouble(v float64) Value {
	return Value{typ: TypeDouble, bits: []uint64{math.Float64bits(v)}}
}

// NewChar builds a char scalar value.
func NewChar(v byte) Value { return Value{typ: TypeChar, bits: []uint64{uint64(v)}} }

// NewCharArray builds a char array value of the given length from s,
// truncating or NUL-padding as needed.
func NewCharArray(s string, length int) Value {
	bits := make([]uint64, length)
	for i := 0; i < length && i < len(s); i++ {
		bits[i] = uint64(s[i])
	}
	return Value{typ: TypeChar, arrayLen: length, bits: bits}
}

// NewArray builds an array value of the given type and length with all
// elements zero.
func NewArray(typ FieldType, length int) Value {
	return Value{typ: typ, arrayLen: length, bits: make([]uint64, length)}
}

// zeroValue builds the zero value for a field definition.
func zeroValue(def FieldDef) Value {
	if def.ArrayLen > 0 {
		return NewArray(def.Type, def.ArrayLen)
	}
	return Value{typ: def.Type, bits: []uint64{0}}
}

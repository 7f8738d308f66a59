package protocol

import (
	"fmt"

	"github.com/skyward-er/segs-sub000/errors"
)

// FieldLocator identifies a field within a message: by schema index, by
// name, or by an already-resolved IndexedField.
type FieldLocator interface {
	resolve(def *MessageDef) (IndexedField, error)
}

// FieldIndex locates a field by its position in the schema field list.
type FieldIndex int

func (i FieldIndex) resolve(def *MessageDef) (IndexedField, error) {
	if int(i) < 0 || int(i) >= len(def.Fields) {
		return IndexedField{}, errors.WrapInvalid(
			fmt.Errorf("field %d in message %s: %w", i, def.Name, errors.ErrUnknownField),
			"FieldIndex", "resolve", "field lookup")
	}
	return IndexedField{MessageID: def.ID, Index: int(i), Field: def.Fields[i]}, nil
}

// FieldName locates a field by its schema name.
type FieldName string

func (n FieldName) resolve(def *MessageDef) (IndexedField, error) {
	for i, f := range def.Fields {
		if f.Name == string(n) {
			return IndexedField{MessageID: def.ID, Index: i, Field: f}, nil
		}
	}
	return IndexedField{}, errors.WrapInvalid(
		fmt.Errorf("field %q in message %s: %w", n, def.Name, errors.ErrUnknownField),
		"FieldName", "resolve", "field lookup")
}

// IndexedField is a resolved reference into the schema: a message ID, a
// field index and the field definition. It enables typed extraction from a
// Message and typed mutation of a MessageMap. Typed accessors panic on a
// message or declared-type mismatch, which indicates a programming error.
type IndexedField struct {
	MessageID uint32
	Index     int
	Field     FieldDef
}

// An IndexedField resolves to itself, provided it belongs to the message.
func (f IndexedField) resolve(def *MessageDef) (IndexedField, error) {
	if f.MessageID != def.ID {
		return IndexedField{}, errors.WrapInvalid(
			fmt.Errorf("field %s belongs to message %d, not %d",
				f.Field.Name, f.MessageID, def.ID),
			"IndexedField", "resolve", "message check")
	}
	return f, nil
}

// Value extracts the field's generic value from a decoded message.
func (f IndexedField) Value(m Message) Value {
	if m.ID() != f.MessageID {
		panic(fmt.Sprintf("protocol: field %s of message %d extracted from message %d",
			f.Field.Name, f.MessageID, m.ID()))
	}
	return m.Field(f.Index)
}

// Typed extraction. The accessor must match the field's declared schema
// type; a mismatch panics.

// Uint8 extracts the field as an unsigned 8-bit integer.
func (f IndexedField) Uint8(m Message) uint8 { return f.Value(m).AsUint8() }

// Uint16 extracts the field as an unsigned 16-bit integer.
func (f IndexedField) Uint16(m Message) uint16 { return f.Value(m).AsUint16() }

// Uint32 extracts the field as an unsigned 32-bit integer.
func (f IndexedField) Uint32(m Message) uint32 { return f.Value(m).AsUint32() }

// Uint64 extracts the field as an unsigned 64-bit integer.
func (f IndexedField) Uint64(m Message) uint64 { return f.Value(m).AsUint64() }

// Int8 extracts the field as a signed 8-bit integer.
func (f IndexedField) Int8(m Message) int8 { return f.Value(m).AsInt8() }

// Int16 extracts the field as a signed 16-bit integer.
func (f IndexedField) Int16(m Message) int16 { return f.Value(m).AsInt16() }

// Int32 extracts the field as a signed 32-bit integer.
func (f IndexedField) Int32(m Message) int32 { return f.Value(m).AsInt32() }

// Int64 extracts the field as a signed 64-bit integer.
func (f IndexedField) Int64(m Message) int64 { return f.Value(m).AsInt64() }

// Float extracts the field as a 32-bit float.
func (f IndexedField) Float(m Message) float32 { return f.Value(m).AsFloat() }

// Double extracts the field as a 64-bit float.
func (f IndexedField) Double(m Message) float64 { return f.Value(m).AsDouble() }

// Char extracts the field as a single character.
func (f IndexedField) Char(m Message) byte { return f.Value(m).AsChar() }

// Text extracts the field formatted as a string; the fallback
// representation for array-typed fields.
func (f IndexedField) Text(m Message) string { return f.Value(m).AsString() }

// SetValue stores a generic value into a MessageMap. The value's type and
// shape must match the field's declared schema type; a mismatch panics.
func (f IndexedField) SetValue(mm *MessageMap, v Value) {
	if mm.MessageID() != f.MessageID {
		panic(fmt.Sprintf("protocol: field %s of message %d set on message %d",
			f.Field.Name, f.MessageID, mm.MessageID()))
	}
	if v.Type() != f.Field.Type || v.ArrayLen() != f.Field.ArrayLen {
		panic(fmt.Sprintf("protocol: field %s declared %s[%d], set with %s[%d]",
			f.Field.Name, f.Field.Type, f.Field.ArrayLen, v.Type(), v.ArrayLen()))
	}
	mm.values[f.Index] = v
}

// Typed mutation, symmetric to the extraction accessors.

// SetUint8 stores an unsigned 8-bit integer into the field.
func (f IndexedField) SetUint8(mm *MessageMap, v uint8) { f.SetValue(mm, NewUint8(v)) }

// SetUint16 stores an unsigned 16-bit integer into the field.
func (f IndexedField) SetUint16(mm *MessageMap, v uint16) { f.SetValue(mm, NewUint16(v)) }

// SetUint32 stores an unsigned 32-bit integer into the field.
func (f IndexedField) SetUint32(mm *MessageMap, v uint32) { f.SetValue(mm, NewUint32(v)) }

// SetUint64 stores an unsigned 64-bit integer into the field.
func (f IndexedField) SetUint64(mm *MessageMap, v uint64) { f.SetValue(mm, NewUint64(v)) }

// SetInt8 stores a signed 8-bit integer into the field.
func (f IndexedField) SetInt8(mm *MessageMap, v int8) { f.SetValue(mm, NewInt8(v)) }

// SetInt16 stores a signed 16-bit integer into the field.
func (f IndexedField) SetInt16(mm *MessageMap, v int16) { f.SetValue(mm, NewInt16(v)) }

// SetInt32 stores a signed 32-bit integer into the field.
func (f IndexedField) SetInt32(mm *MessageMap, v int32) { f.SetValue(mm, NewInt32(v)) }

// SetInt64 stores a signed 64-bit integer into the field.
func (f IndexedField) SetInt64(mm *MessageMap, v int64) { f.SetValue(mm, NewInt64(v)) }

// SetFloat stores a 32-bit float into the field.
func (f IndexedField) SetFloat(mm *MessageMap, v float32) { f.SetValue(mm, NewFloat(v)) }

// SetDouble stores a 64-bit float into the field.
func (f IndexedField) SetDouble(mm *MessageMap, v float64) { f.SetValue(mm, NewDouble(v)) }

// SetChar stores a single character into the field.
func (f IndexedField) SetChar(mm *MessageMap, v byte) { f.SetValue(mm, NewChar(v)) }

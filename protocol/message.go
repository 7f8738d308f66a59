package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/skyward-er/segs-sub000/errors"
)

// Message is a decoded protocol payload: a numeric message ID plus typed
// field values in schema order. Immutable once constructed.
type Message struct {
	def    *MessageDef
	values []Value
}

// NewMessage builds a message from a definition and field values in schema
// order. Values must match the definition's types and shapes.
func NewMessage(def *MessageDef, values []Value) (Message, error) {
	if len(values) != len(def.Fields) {
		return Message{}, errors.WrapInvalid(
			fmt.Errorf("message %s expects %d fields, got %d", def.Name, len(def.Fields), len(values)),
			"Message", "NewMessage", "field count validation")
	}
	for i, v := range values {
		f := def.Fields[i]
		if v.Type() != f.Type || v.ArrayLen() != f.ArrayLen {
			return Message{}, errors.WrapInvalid(
				fmt.Errorf("field %s.%s expects %s[%d], got %s[%d]",
					def.Name, f.Name, f.Type, f.ArrayLen, v.Type(), v.ArrayLen()),
				"Message", "NewMessage", "field type validation")
		}
	}
	return Message{def: def, values: values}, nil
}

// DefaultMessage builds a message with every field set to its zero value.
func DefaultMessage(def *MessageDef) Message {
	values := make([]Value, len(def.Fields))
	for i, f := range def.Fields {
		values[i] = zeroValue(f)
	}
	return Message{def: def, values: values}
}

// ID returns the numeric message ID.
func (m Message) ID() uint32 { return m.def.ID }

// Name returns the message name.
func (m Message) Name() string { return m.def.Name }

// Def returns the schema definition of the message.
func (m Message) Def() *MessageDef { return m.def }

// NumFields returns the number of fields.
func (m Message) NumFields() int { return len(m.values) }

// Field returns the value at the given schema index.
// Panics if the index is out of range (programming error).
func (m Message) Field(i int) Value {
	return m.values[i]
}

// MarshalJSON encodes the message as a JSON object keyed by field name.
// Char arrays encode as strings, other arrays as element lists.
func (m Message) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m.def.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(f.Name)
		buf.Write(name)
		buf.WriteByte(':')
		elem, err := marshalValueJSON(m.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(elem)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValueJSON(v Value) ([]byte, error) {
	if v.IsArray() {
		if v.Type() == TypeChar {
			return json.Marshal(v.AsString())
		}
		elems := make([]json.RawMessage, v.ArrayLen())
		for i := range elems {
			elems[i] = json.RawMessage(marshalScalarJSON(v, i))
		}
		return json.Marshal(elems)
	}
	if v.Type() == TypeChar {
		return json.Marshal(string(v.AsChar()))
	}
	return marshalScalarJSON(v, 0), nil
}

func marshalScalarJSON(v Value, i int) []byte {
	s := v.elemString(i)
	if v.Type() == TypeFloat || v.Type() == TypeDouble {
		// JSON has no literal for NaN or the infinities; quote them.
		switch s {
		case "NaN", "+Inf", "-Inf":
			return []byte(strconv.Quote(s))
		}
	}
	return []byte(s)
}

// Map round-trips the message through its JSON encoding into the generic,
// mutable MessageMap representation used for reflective field editing.
func (m Message) Map() (*MessageMap, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Message", "Map", "structural serialization")
	}
	return MessageMapFromJSON(m.def, data)
}

// TimedMessage pairs a decoded message with its reception instant.
// Never mutated; cheap to copy.
type TimedMessage struct {
	Message Message
	Time    time.Time
}

// JustReceived stamps a freshly decoded message with the current instant.
func JustReceived(message Message) TimedMessage {
	return TimedMessage{Message: message, Time: time.Now()}
}

// ID returns the numeric ID of the carried message.
func (t TimedMessage) ID() uint32 { return t.Message.ID() }

// MessageMap is the dynamically-typed, mutable representation of a message,
// produced by round-tripping a Message through its structural encoding.
// It lets consumers edit arbitrary fields of arbitrary message types
// without per-type code; convert back with Message().
type MessageMap struct {
	def    *MessageDef
	values []Value
}

// MessageMapFromJSON decodes a JSON object into a MessageMap against the
// given definition. Missing fields keep their zero value; unknown keys are
// rejected.
func MessageMapFromJSON(def *MessageDef, data []byte) (*MessageMap, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber() // keep 64-bit integers exact

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.WrapInvalid(err, "MessageMap", "MessageMapFromJSON", "structural deserialization")
	}

	byName := make(map[string]int, len(def.Fields))
	for i, f := range def.Fields {
		byName[f.Name] = i
	}

	mm := &MessageMap{def: def, values: make([]Value, len(def.Fields))}
	for i, f := range def.Fields {
		mm.values[i] = zeroValue(f)
	}

	for name, rawVal := range raw {
		i, ok := byName[name]
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("field %q: %w", name, errors.ErrUnknownField),
				"MessageMap", "MessageMapFromJSON", "field lookup")
		}
		v, err := valueFromJSON(def.Fields[i], rawVal)
		if err != nil {
			return nil, err
		}
		mm.values[i] = v
	}
	return mm, nil
}

func valueFromJSON(def FieldDef, raw any) (Value, error) {
	if def.ArrayLen > 0 {
		if def.Type == TypeChar {
			s, ok := raw.(string)
			if !ok {
				return Value{}, errors.WrapInvalid(
					fmt.Errorf("field %s: expected string", def.Name),
					"MessageMap", "valueFromJSON", "char array decoding")
			}
			return NewCharArray(s, def.ArrayLen), nil
		}
		elems, ok := raw.([]any)
		if !ok || len(elems) != def.ArrayLen {
			return Value{}, errors.WrapInvalid(
				fmt.Errorf("field %s: expected array of %d elements", def.Name, def.ArrayLen),
				"MessageMap", "valueFromJSON", "array decoding")
		}
		v := NewArray(def.Type, def.ArrayLen)
		for i, e := range elems {
			bits, err := scalarBitsFromJSON(def, e)
			if err != nil {
				return Value{}, err
			}
			v.bits[i] = bits
		}
		return v, nil
	}

	if def.Type == TypeChar {
		s, ok := raw.(string)
		if !ok || len(s) != 1 {
			return Value{}, errors.WrapInvalid(
				fmt.Errorf("field %s: expected single character", def.Name),
				"MessageMap", "valueFromJSON", "char decoding")
		}
		return NewChar(s[0]), nil
	}

	bits, err := scalarBitsFromJSON(def, raw)
	if err != nil {
		return Value{}, err
	}
	return Value{typ: def.Type, bits: []uint64{bits}}, nil
}

func scalarBitsFromJSON(def FieldDef, raw any) (uint64, error) {
	switch def.Type {
	case TypeFloat:
		f, err := floatFromJSON(def, raw)
		if err != nil {
			return 0, err
		}
		return uint64(math.Float32bits(float32(f))), nil
	case TypeDouble:
		f, err := floatFromJSON(def, raw)
		if err != nil {
			return 0, err
		}
		return math.Float64bits(f), nil
	}

	num, ok := raw.(json.Number)
	if !ok {
		return 0, errors.WrapInvalid(
			fmt.Errorf("field %s: expected number", def.Name),
			"MessageMap", "scalarBitsFromJSON", "numeric decoding")
	}
	switch def.Type {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		i, err := num.Int64()
		if err != nil {
			return 0, errors.WrapInvalid(err, "MessageMap", "scalarBitsFromJSON", "integer decoding")
		}
		switch def.Type {
		case TypeInt8:
			return uint64(uint8(int8(i))), nil
		case TypeInt16:
			return uint64(uint16(int16(i))), nil
		case TypeInt32:
			return uint64(uint32(int32(i))), nil
		default:
			return uint64(i), nil
		}
	default:
		// Unsigned types: parse as uint64 to keep full range
		u, err := parseUint(num)
		if err != nil {
			return 0, errors.WrapInvalid(err, "MessageMap", "scalarBitsFromJSON", "unsigned decoding")
		}
		return u, nil
	}
}

func parseUint(num json.Number) (uint64, error) {
	return strconv.ParseUint(num.String(), 10, 64)
}

// floatFromJSON accepts plain numbers plus the quoted non-finite forms
// the encoder emits for NaN and the infinities.
func floatFromJSON(def FieldDef, raw any) (float64, error) {
	switch val := raw.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, errors.WrapInvalid(
				fmt.Errorf("field %s: %w", def.Name, err),
				"MessageMap", "floatFromJSON", "float decoding")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, errors.WrapInvalid(
				fmt.Errorf("field %s: %w", def.Name, err),
				"MessageMap", "floatFromJSON", "float decoding")
		}
		return f, nil
	}
	return 0, errors.WrapInvalid(
		fmt.Errorf("field %s: expected number", def.Name),
		"MessageMap", "floatFromJSON", "float decoding")
}

// MessageID returns the numeric ID of the represented message.
func (mm *MessageMap) MessageID() uint32 { return mm.def.ID }

// Get returns the value of a field by name.
func (mm *MessageMap) Get(name string) (Value, bool) {
	for i, f := range mm.def.Fields {
		if f.Name == name {
			return mm.values[i], true
		}
	}
	return Value{}, false
}

// Message converts the map back into an immutable Message.
func (mm *MessageMap) Message() (Message, error) {
	values := make([]Value, len(mm.values))
	copy(values, mm.values)
	return NewMessage(mm.def, values)
}

package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/skyward-er/segs-sub000/errors"
)

// Frame layout on the wire:
//
//	magic(0xFE) | payload_len | sequence | system_id | component_id |
//	message_id | payload | crc_lo | crc_hi
//
// The checksum is X.25 over everything after the magic byte, seeded with
// the message's CRC extra. Payload fields are little-endian in schema
// order; arrays element-wise.

const (
	// FrameMagic marks the start of a frame on the wire.
	FrameMagic byte = 0xFE

	frameHeaderLen   = 6 // magic..message_id
	frameChecksumLen = 2
)

// Header carries the fixed per-frame routing fields.
type Header struct {
	SystemID    uint8
	ComponentID uint8
	Sequence    uint8
}

// Frame is one complete protocol unit: header plus message payload.
type Frame struct {
	Header  Header
	Message Message
}

// Codec encodes and decodes frames against a schema catalog.
type Codec struct {
	catalog *Catalog
}

// NewCodec creates a codec bound to a catalog.
func NewCodec(catalog *Catalog) *Codec {
	return &Codec{catalog: catalog}
}

// Encode serializes a frame into its wire representation.
func (c *Codec) Encode(f Frame) ([]byte, error) {
	def := f.Message.Def()
	payload := encodePayload(f.Message)

	buf := make([]byte, 0, frameHeaderLen+len(payload)+frameChecksumLen)
	buf = append(buf,
		FrameMagic,
		byte(len(payload)),
		f.Header.Sequence,
		f.Header.SystemID,
		f.Header.ComponentID,
		byte(def.ID),
	)
	buf = append(buf, payload...)

	crc := crcCalculate(buf[1:], def.CRCExtra)
	buf = binary.LittleEndian.AppendUint16(buf, crc)
	return buf, nil
}

// DecodeBody decodes the frame bytes following the magic byte: length,
// sequence, system and component IDs, message ID, payload and checksum.
func (c *Codec) DecodeBody(body []byte) (Frame, error) {
	if len(body) < frameHeaderLen-1+frameChecksumLen {
		return Frame{}, errors.WrapInvalid(
			fmt.Errorf("frame body of %d bytes: %w", len(body), errors.ErrBadFrame),
			"Codec", "DecodeBody", "length check")
	}

	payloadLen := int(body[0])
	header := Header{
		Sequence:    body[1],
		SystemID:    body[2],
		ComponentID: body[3],
	}
	msgID := uint32(body[4])

	want := frameHeaderLen - 1 + payloadLen + frameChecksumLen
	if len(body) != want {
		return Frame{}, errors.WrapInvalid(
			fmt.Errorf("frame body of %d bytes, expected %d: %w", len(body), want, errors.ErrBadFrame),
			"Codec", "DecodeBody", "length check")
	}

	def, err := c.catalog.MessageByID(msgID)
	if err != nil {
		return Frame{}, err
	}
	if payloadLen != def.PayloadSize() {
		return Frame{}, errors.WrapInvalid(
			fmt.Errorf("message %s payload of %d bytes, schema says %d: %w",
				def.Name, payloadLen, def.PayloadSize(), errors.ErrShortPayload),
			"Codec", "DecodeBody", "payload length check")
	}

	crcGot := binary.LittleEndian.Uint16(body[len(body)-frameChecksumLen:])
	crcWant := crcCalculate(body[:len(body)-frameChecksumLen], def.CRCExtra)
	if crcGot != crcWant {
		return Frame{}, errors.WrapInvalid(
			fmt.Errorf("message %s crc %04x, expected %04x: %w",
				def.Name, crcGot, crcWant, errors.ErrChecksumFailed),
			"Codec", "DecodeBody", "checksum validation")
	}

	payload := body[frameHeaderLen-1 : frameHeaderLen-1+payloadLen]
	msg, err := decodePayload(def, payload)
	if err != nil {
		return Frame{}, err
	}

	return Frame{Header: header, Message: msg}, nil
}

func encodePayload(m Message) []byte {
	def := m.Def()
	out := make([]byte, 0, def.PayloadSize())
	for i, f := range def.Fields {
		v := m.Field(i)
		n := 1
		if f.ArrayLen > 0 {
			n = f.ArrayLen
		}
		for e := 0; e < n; e++ {
			out = appendScalar(out, f.Type, v.bits[e])
		}
	}
	return out
}

func appendScalar(out []byte, typ FieldType, bits uint64) []byte {
	switch typ.Size() {
	case 1:
		return append(out, byte(bits))
	case 2:
		return binary.LittleEndian.AppendUint16(out, uint16(bits))
	case 4:
		return binary.LittleEndian.AppendUint32(out, uint32(bits))
	default:
		return binary.LittleEndian.AppendUint64(out, bits)
	}
}

func decodePayload(def *MessageDef, payload []byte) (Message, error) {
	values := make([]Value, len(def.Fields))
	off := 0
	for i, f := range def.Fields {
		n := 1
		if f.ArrayLen > 0 {
			n = f.ArrayLen
		}
		bits := make([]uint64, n)
		for e := 0; e < n; e++ {
			bits[e] = readScalar(f.Type, payload[off:])
			off += f.Type.Size()
		}
		values[i] = Value{typ: f.Type, arrayLen: f.ArrayLen, bits: bits}
	}
	return NewMessage(def, values)
}

func readScalar(typ FieldType, buf []byte) uint64 {
	switch typ.Size() {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf))
	default:
		return binary.LittleEndian.Uint64(buf)
	}
}

// Decoder reads frames from a byte stream, scanning for frame boundaries.
type Decoder struct {
	codec *Codec
	r     *bufio.Reader
}

// NewDecoder creates a stream decoder over r using the given catalog.
func NewDecoder(catalog *Catalog, r io.Reader) *Decoder {
	return &Decoder{
		codec: NewCodec(catalog),
		r:     bufio.NewReader(r),
	}
}

// Next reads one frame from the stream. I/O errors from the underlying
// reader are returned as-is; framing errors (bad magic resync is silent,
// bad length, unknown message, checksum failure) return classified
// invalid errors that the caller may log and skip.
func (d *Decoder) Next() (Frame, error) {
	// Scan to the next magic byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		if b == FrameMagic {
			break
		}
	}

	payloadLen, err := d.r.ReadByte()
	if err != nil {
		return Frame{}, err
	}

	rest := make([]byte, 4+int(payloadLen)+frameChecksumLen)
	if _, err := io.ReadFull(d.r, rest); err != nil {
		return Frame{}, err
	}

	body := make([]byte, 0, 1+len(rest))
	body = append(body, payloadLen)
	body = append(body, rest...)
	return d.codec.DecodeBody(body)
}

// ByteParser decodes every valid frame contained in buf, silently
// skipping malformed ones.
func ByteParser(catalog *Catalog, buf []byte) []Frame {
	d := NewDecoder(catalog, bytes.NewReader(buf))
	var frames []Frame
	for {
		f, err := d.Next()
		if err == nil {
			frames = append(frames, f)
			continue
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return frames
		}
		if errors.IsInvalid(err) {
			continue
		}
		return frames
	}
}

package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyward-er/segs-sub000/errors"
)

func TestCodecRoundTripAllMessages(t *testing.T) {
	codec := NewCodec(DefaultCatalog())
	header := Header{SystemID: 1, ComponentID: 96, Sequence: 7}

	for _, def := range DefaultCatalog().Messages() {
		t.Run(def.Name, func(t *testing.T) {
			msg := sampleMessage(t, def)

			wire, err := codec.Encode(Frame{Header: header, Message: msg})
			require.NoError(t, err)
			require.Equal(t, FrameMagic, wire[0])
			require.Len(t, wire, frameHeaderLen+def.PayloadSize()+frameChecksumLen)

			decoded, err := codec.DecodeBody(wire[1:])
			require.NoError(t, err)
			assert.Equal(t, header, decoded.Header)
			assert.Equal(t, def.ID, decoded.Message.ID())
			for i := range def.Fields {
				assert.True(t, msg.Field(i).Equal(decoded.Message.Field(i)),
					"field %s changed on the wire", def.Fields[i].Name)
			}
		})
	}
}

func TestDecodeBodyRejectsCorruptedChecksum(t *testing.T) {
	codec := NewCodec(DefaultCatalog())
	def, err := DefaultCatalog().MessageByName("GPS_TM")
	require.NoError(t, err)

	wire, err := codec.Encode(Frame{Message: sampleMessage(t, def)})
	require.NoError(t, err)

	wire[len(wire)-1] ^= 0xFF
	_, err = codec.DecodeBody(wire[1:])
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrChecksumFailed)
	assert.True(t, errors.IsInvalid(err))
}

func TestDecodeBodyRejectsUnknownMessage(t *testing.T) {
	codec := NewCodec(DefaultCatalog())
	body := []byte{0, 0, 1, 96, 250, 0, 0} // len=0, id=250, crc
	_, err := codec.DecodeBody(body)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownMessage)
}

func TestDecodeBodyRejectsTruncatedBody(t *testing.T) {
	codec := NewCodec(DefaultCatalog())
	_, err := codec.DecodeBody([]byte{0, 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBadFrame)
}

func TestDecoderResyncsAcrossGarbage(t *testing.T) {
	codec := NewCodec(DefaultCatalog())
	def, err := DefaultCatalog().MessageByName("ACK_TM")
	require.NoError(t, err)

	wire, err := codec.Encode(Frame{Message: sampleMessage(t, def)})
	require.NoError(t, err)

	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x13, 0x37})
	stream.Write(wire)
	stream.Write([]byte{0xAB, 0xCD})
	stream.Write(wire)

	d := NewDecoder(DefaultCatalog(), &stream)

	f1, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, def.ID, f1.Message.ID())

	f2, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, def.ID, f2.Message.ID())

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderPropagatesIOError(t *testing.T) {
	d := NewDecoder(DefaultCatalog(), iotest{})
	_, err := d.Next()
	assert.Equal(t, io.ErrClosedPipe, err)
}

type iotest struct{}

func (iotest) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestByteParserSkipsMalformedFrames(t *testing.T) {
	codec := NewCodec(DefaultCatalog())
	ping, err := DefaultCatalog().MessageByName("PING_TC")
	require.NoError(t, err)
	gps, err := DefaultCatalog().MessageByName("GPS_TM")
	require.NoError(t, err)

	good1, err := codec.Encode(Frame{Message: sampleMessage(t, ping)})
	require.NoError(t, err)
	good2, err := codec.Encode(Frame{Message: sampleMessage(t, gps)})
	require.NoError(t, err)

	bad := append([]byte(nil), good2...)
	bad[len(bad)-2] ^= 0x55 // corrupt the checksum

	var buf []byte
	buf = append(buf, good1...)
	buf = append(buf, bad...)
	buf = append(buf, 0x42) // stray byte between frames
	buf = append(buf, good2...)

	frames := ByteParser(DefaultCatalog(), buf)
	require.Len(t, frames, 2)
	assert.Equal(t, ping.ID, frames[0].Message.ID())
	assert.Equal(t, gps.ID, frames[1].Message.ID())
}

func TestByteParserEmptyAndGarbageOnly(t *testing.T) {
	assert.Empty(t, ByteParser(DefaultCatalog(), nil))
	assert.Empty(t, ByteParser(DefaultCatalog(), []byte{1, 2, 3, 4}))
}

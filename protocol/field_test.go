package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexedFieldTypedExtraction(t *testing.T) {
	cat := DefaultCatalog()

	gps, err := cat.MessageByName("GPS_TM")
	require.NoError(t, err)
	msg := sampleMessage(t, gps)

	lat, err := cat.ResolveField(MessageName("GPS_TM"), FieldName("latitude"))
	require.NoError(t, err)
	assert.Equal(t, msg.Field(lat.Index).AsDouble(), lat.Double(msg))

	fix, err := cat.ResolveField(MessageName("GPS_TM"), FieldName("fix_status"))
	require.NoError(t, err)
	assert.Equal(t, msg.Field(fix.Index).AsUint8(), fix.Uint8(msg))
}

func TestIndexedFieldPanicsOnWrongMessage(t *testing.T) {
	cat := DefaultCatalog()

	lat, err := cat.ResolveField(MessageName("GPS_TM"), FieldName("latitude"))
	require.NoError(t, err)

	ping, err := cat.MessageByName("PING_TC")
	require.NoError(t, err)

	assert.Panics(t, func() { lat.Double(DefaultMessage(ping)) })
}

func TestIndexedFieldPanicsOnWrongType(t *testing.T) {
	cat := DefaultCatalog()

	lat, err := cat.ResolveField(MessageName("GPS_TM"), FieldName("latitude"))
	require.NoError(t, err)

	gps, err := cat.MessageByName("GPS_TM")
	require.NoError(t, err)
	msg := DefaultMessage(gps)

	// latitude is declared double
	assert.Panics(t, func() { lat.Float(msg) })
}

func TestIndexedFieldTextFallback(t *testing.T) {
	cat := DefaultCatalog()

	name, err := cat.ResolveField(MessageName("PRESSURE_TM"), FieldName("sensor_name"))
	require.NoError(t, err)

	def, err := cat.MessageByName("PRESSURE_TM")
	require.NoError(t, err)
	msg := sampleMessage(t, def)

	assert.Equal(t, "probe-1", name.Text(msg))
	assert.Panics(t, func() { name.Char(msg) }, "arrays have no scalar accessor")
}

func TestSetValueRejectsMismatches(t *testing.T) {
	cat := DefaultCatalog()

	gps, err := cat.MessageByName("GPS_TM")
	require.NoError(t, err)
	ping, err := cat.MessageByName("PING_TC")
	require.NoError(t, err)

	lat, err := cat.ResolveField(MessageName("GPS_TM"), FieldName("latitude"))
	require.NoError(t, err)

	mm, err := DefaultMessage(gps).Map()
	require.NoError(t, err)
	other, err := DefaultMessage(ping).Map()
	require.NoError(t, err)

	assert.Panics(t, func() { lat.SetValue(other, NewDouble(1)) }, "wrong message")
	assert.Panics(t, func() { lat.SetValue(mm, NewFloat(1)) }, "wrong type")

	lat.SetDouble(mm, 45.5)
	v, ok := mm.Get("latitude")
	require.True(t, ok)
	assert.Equal(t, 45.5, v.AsDouble())
}

// Extracting every field of every message as its declared type and writing
// it back through the structural mutation path must reproduce the original
// message exactly.
func TestExtractSetRoundTripAllMessages(t *testing.T) {
	cat := DefaultCatalog()

	for _, def := range cat.Messages() {
		t.Run(def.Name, func(t *testing.T) {
			msg := sampleMessage(t, def)

			mm, err := DefaultMessage(def).Map()
			require.NoError(t, err)

			for i, fd := range def.Fields {
				field, err := cat.ResolveField(MessageID(def.ID), FieldIndex(i))
				require.NoError(t, err)

				if fd.ArrayLen > 0 {
					field.SetValue(mm, field.Value(msg))
					continue
				}
				switch fd.Type {
				case TypeUint8:
					field.SetUint8(mm, field.Uint8(msg))
				case TypeUint16:
					field.SetUint16(mm, field.Uint16(msg))
				case TypeUint32:
					field.SetUint32(mm, field.Uint32(msg))
				case TypeUint64:
					field.SetUint64(mm, field.Uint64(msg))
				case TypeInt8:
					field.SetInt8(mm, field.Int8(msg))
				case TypeInt16:
					field.SetInt16(mm, field.Int16(msg))
				case TypeInt32:
					field.SetInt32(mm, field.Int32(msg))
				case TypeInt64:
					field.SetInt64(mm, field.Int64(msg))
				case TypeFloat:
					field.SetFloat(mm, field.Float(msg))
				case TypeDouble:
					field.SetDouble(mm, field.Double(msg))
				case TypeChar:
					field.SetChar(mm, field.Char(msg))
				}
			}

			back, err := mm.Message()
			require.NoError(t, err)
			for i := range def.Fields {
				assert.True(t, msg.Field(i).Equal(back.Field(i)),
					"field %s changed across extract/set", def.Fields[i].Name)
			}
		})
	}
}

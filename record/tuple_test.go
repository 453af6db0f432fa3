package record

import (
	"testing"

	is "github.com/stretchr/testify/require"

	"minirel/common"
)

func testSchema() *Schema {
	return NewSchema([]*Column{
		NewColumn("id", TypeInt, 0, false, true),
		NewCharColumn("name", 64, 1, true, false),
		NewColumn("account", TypeFloat, 2, true, false),
	}, []uint32{0})
}

func TestColumnRoundTrip(t *testing.T) {
	col := NewCharColumn("name", 64, 1, true, false)

	buf := make([]byte, col.SerializedSize())
	n := col.SerializeTo(buf)
	is.Equal(t, len(buf), n)

	got, m, err := DeserializeColumn(buf)
	is.NoError(t, err)
	is.Equal(t, n, m)
	is.Equal(t, col, got)
}

func TestColumnBadMagic(t *testing.T) {
	col := NewColumn("id", TypeInt, 0, false, true)
	buf := make([]byte, col.SerializedSize())
	col.SerializeTo(buf)
	buf[0] ^= 0xff

	_, _, err := DeserializeColumn(buf)
	is.ErrorIs(t, err, common.ErrBadMagic)
}

func TestSchemaRoundTrip(t *testing.T) {
	schema := testSchema()

	buf := make([]byte, schema.SerializedSize())
	n := schema.SerializeTo(buf)
	is.Equal(t, len(buf), n)

	got, m, err := DeserializeSchema(buf)
	is.NoError(t, err)
	is.Equal(t, n, m)
	is.Equal(t, schema, got)
}

func TestRowRoundTrip(t *testing.T) {
	schema := testSchema()
	row := NewRow([]*Field{
		NewIntField(188),
		NewCharField("minirel"),
		NewFloatField(19.99),
	})

	buf := make([]byte, row.SerializedSize())
	n := row.SerializeTo(buf)
	is.Equal(t, len(buf), n)

	// All three fields present: the null bitmap byte is 0b00000111.
	is.Equal(t, byte(0b00000111), buf[4])

	got, m := DeserializeRow(buf, schema)
	is.Equal(t, n, m)
	is.True(t, row.FieldEqual(got))
}

func TestRowWithNulls(t *testing.T) {
	schema := testSchema()
	row := NewRow([]*Field{
		NewIntField(7),
		NewNullField(TypeChar),
		NewNullField(TypeFloat),
	})

	buf := make([]byte, row.SerializedSize())
	n := row.SerializeTo(buf)
	is.Equal(t, byte(0b00000001), buf[4])

	got, m := DeserializeRow(buf, schema)
	is.Equal(t, n, m)
	is.Equal(t, 3, got.FieldCount())
	is.False(t, got.Fields[0].IsNull())
	is.True(t, got.Fields[1].IsNull())
	is.Equal(t, TypeChar, got.Fields[1].Type())
	is.True(t, got.Fields[2].IsNull())
	is.True(t, row.FieldEqual(got))
}

func TestFieldCompare(t *testing.T) {
	cmp, ok := NewIntField(1).CompareTo(NewIntField(2))
	is.True(t, ok)
	is.Equal(t, -1, cmp)

	cmp, ok = NewCharField("abc").CompareTo(NewCharField("abd"))
	is.True(t, ok)
	is.Equal(t, -1, cmp)

	cmp, ok = NewFloatField(2.5).CompareTo(NewFloatField(2.5))
	is.True(t, ok)
	is.Equal(t, 0, cmp)

	// NULL makes any comparison UNKNOWN.
	_, ok = NewNullField(TypeInt).CompareTo(NewIntField(1))
	is.False(t, ok)
	_, ok = NewIntField(1).CompareTo(NewNullField(TypeInt))
	is.False(t, ok)

	// So does a type mismatch.
	_, ok = NewIntField(1).CompareTo(NewFloatField(1))
	is.False(t, ok)
}

func TestKeyEncodingOrder(t *testing.T) {
	keySchema := NewSchema([]*Column{NewColumn("id", TypeInt, 0, false, true)}, nil)
	cmp := NewComparator(keySchema)

	encode := func(v int32) []byte {
		return EncodeKey(NewRow([]*Field{NewIntField(v)}), keySchema)
	}

	is.Negative(t, cmp(encode(-5), encode(3)))
	is.Positive(t, cmp(encode(10), encode(2)))
	is.Zero(t, cmp(encode(42), encode(42)))

	decoded := DecodeKey(encode(42), keySchema)
	is.Equal(t, int32(42), decoded.Fields[0].Int())
}

func TestCompositeKeyOrder(t *testing.T) {
	keySchema := NewSchema([]*Column{
		NewCharColumn("name", 16, 0, false, false),
		NewColumn("id", TypeInt, 1, false, false),
	}, nil)
	cmp := NewComparator(keySchema)

	encode := func(name string, id int32) []byte {
		return EncodeKey(NewRow([]*Field{NewCharField(name), NewIntField(id)}), keySchema)
	}

	is.Negative(t, cmp(encode("a", 9), encode("b", 1)))
	is.Negative(t, cmp(encode("a", 1), encode("a", 2)))
	is.Zero(t, cmp(encode("a", 1), encode("a", 1)))
}

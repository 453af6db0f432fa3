package record

import (
	"encoding/binary"

	"minirel/common"
)

// Row is an ordered list of fields plus the row id of its current
// location in a table heap.
type Row struct {
	RowID  common.RowID
	Fields []*Field
}

// NewRow builds a row over the given fields with no location yet.
func NewRow(fields []*Field) *Row {
	return &Row{RowID: common.InvalidRowID, Fields: fields}
}

// FieldCount returns the number of fields.
func (r *Row) FieldCount() int {
	return len(r.Fields)
}

// SerializedSize returns the encoded size of the row: field count,
// null bitmap, then the non-null payloads in declaration order.
func (r *Row) SerializedSize() int {
	size := 4 + (len(r.Fields)+7)/8
	for _, f := range r.Fields {
		size += f.SerializedSize()
	}
	return size
}

// SerializeTo encodes the row into buf and returns the bytes written.
// Bit i of the null bitmap is set when field i is present (non-null);
// NULL payloads are omitted.
func (r *Row) SerializeTo(buf []byte) int {
	binary.BigEndian.PutUint32(buf, uint32(len(r.Fields)))
	move := 4
	bitmapLen := (len(r.Fields) + 7) / 8
	bitmap := buf[move : move+bitmapLen]
	for i := range bitmap {
		bitmap[i] = 0
	}
	for i, f := range r.Fields {
		if !f.IsNull() {
			bitmap[i/8] |= 1 << (i % 8)
		}
	}
	move += bitmapLen
	for _, f := range r.Fields {
		move += f.SerializeTo(buf[move:])
	}
	return move
}

// DeserializeRow decodes a row using the schema for field types,
// reconstructing NULL fields from the bitmap. Returns the row and the
// bytes consumed.
func DeserializeRow(buf []byte, schema *Schema) (*Row, int) {
	count := binary.BigEndian.Uint32(buf)
	move := 4
	bitmapLen := (int(count) + 7) / 8
	bitmap := buf[move : move+bitmapLen]
	move += bitmapLen
	fields := make([]*Field, count)
	for i := uint32(0); i < count; i++ {
		isNull := bitmap[i/8]&(1<<(i%8)) == 0
		f, n := deserializeField(buf[move:], schema.Column(i).Type, isNull)
		fields[i] = f
		move += n
	}
	return &Row{RowID: common.InvalidRowID, Fields: fields}, move
}

// FieldEqual reports whether two rows have pairwise definitely-equal
// fields. Rows containing NULL in the same position compare equal here
// when both sides are NULL of the same type.
func (r *Row) FieldEqual(o *Row) bool {
	if len(r.Fields) != len(o.Fields) {
		return false
	}
	for i, f := range r.Fields {
		g := o.Fields[i]
		if f.IsNull() || g.IsNull() {
			if f.IsNull() != g.IsNull() || f.Type() != g.Type() {
				return false
			}
			continue
		}
		if !f.Equal(g) {
			return false
		}
	}
	return true
}

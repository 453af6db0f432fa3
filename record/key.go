package record

// Index keys are rows of the indexed columns encoded into fixed-width
// buffers, so B+ tree pages can hold them in flat arrays. The width is
// the maximum serialized size of a row of the key schema; shorter
// encodings are zero-padded.

// KeySize returns the fixed key width for a key schema.
func KeySize(keySchema *Schema) int {
	size := 4 + (len(keySchema.Columns)+7)/8
	for _, c := range keySchema.Columns {
		switch c.Type {
		case TypeChar:
			size += 4 + int(c.Length)
		default:
			size += 4
		}
	}
	return size
}

// EncodeKey serializes a key row into a fresh fixed-width buffer.
func EncodeKey(row *Row, keySchema *Schema) []byte {
	buf := make([]byte, KeySize(keySchema))
	row.SerializeTo(buf)
	return buf
}

// DecodeKey reconstructs the key row from its fixed-width encoding.
func DecodeKey(key []byte, keySchema *Schema) *Row {
	row, _ := DeserializeRow(key, keySchema)
	return row
}

// Comparator orders two encoded keys.
type Comparator func(a, b []byte) int

// NewComparator builds a typed comparator for keys of the given
// schema. Fields compare with their natural ordering; a NULL orders
// before any value so the ordering stays total. Nothing on the insert
// path rejects NULL in an indexed column.
func NewComparator(keySchema *Schema) Comparator {
	return func(a, b []byte) int {
		ra, _ := DeserializeRow(a, keySchema)
		rb, _ := DeserializeRow(b, keySchema)
		for i := range ra.Fields {
			fa, fb := ra.Fields[i], rb.Fields[i]
			if cmp, ok := fa.CompareTo(fb); ok {
				if cmp != 0 {
					return cmp
				}
				continue
			}
			switch {
			case fa.IsNull() && fb.IsNull():
				continue
			case fa.IsNull():
				return -1
			case fb.IsNull():
				return 1
			}
			return 0
		}
		return 0
	}
}

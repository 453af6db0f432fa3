package record

import (
	"bytes"
	"encoding/binary"
	"math"
)

// TypeID tags the concrete type of a column or field value.
type TypeID uint8

const (
	TypeInvalid TypeID = iota
	TypeInt
	TypeFloat
	TypeChar
)

// Field is a single tagged value inside a row: either NULL of some
// type, or a concrete INT, FLOAT, or CHAR value. CHAR carries its
// actual byte length, which may be shorter than the column maximum.
type Field struct {
	typ    TypeID
	isNull bool
	i      int32
	f      float32
	chars  []byte
}

// NewIntField returns a non-null INT field.
func NewIntField(v int32) *Field {
	return &Field{typ: TypeInt, i: v}
}

// NewFloatField returns a non-null FLOAT field.
func NewFloatField(v float32) *Field {
	return &Field{typ: TypeFloat, f: v}
}

// NewCharField returns a non-null CHAR field holding the given bytes.
func NewCharField(v string) *Field {
	return &Field{typ: TypeChar, chars: []byte(v)}
}

// NewNullField returns the NULL value of the given type.
func NewNullField(typ TypeID) *Field {
	return &Field{typ: typ, isNull: true}
}

// Type returns the field's type tag.
func (f *Field) Type() TypeID {
	return f.typ
}

// IsNull reports whether the field is NULL.
func (f *Field) IsNull() bool {
	return f.isNull
}

// Int returns the INT payload.
func (f *Field) Int() int32 {
	return f.i
}

// Float returns the FLOAT payload.
func (f *Field) Float() float32 {
	return f.f
}

// Chars returns the CHAR payload.
func (f *Field) Chars() string {
	return string(f.chars)
}

// SerializedSize returns the payload size in bytes. NULL fields occupy
// no space; the row's null bitmap records their absence.
func (f *Field) SerializedSize() int {
	if f.isNull {
		return 0
	}
	switch f.typ {
	case TypeInt, TypeFloat:
		return 4
	case TypeChar:
		return 4 + len(f.chars)
	}
	return 0
}

// SerializeTo writes the payload into buf and returns the bytes
// written. The type tag is not written; the enclosing row's null
// bitmap plus the schema determine interpretation on read.
func (f *Field) SerializeTo(buf []byte) int {
	if f.isNull {
		return 0
	}
	switch f.typ {
	case TypeInt:
		binary.BigEndian.PutUint32(buf, uint32(f.i))
		return 4
	case TypeFloat:
		binary.BigEndian.PutUint32(buf, math.Float32bits(f.f))
		return 4
	case TypeChar:
		binary.BigEndian.PutUint32(buf, uint32(len(f.chars)))
		copy(buf[4:], f.chars)
		return 4 + len(f.chars)
	}
	return 0
}

// deserializeField reads one payload of the given type from buf.
func deserializeField(buf []byte, typ TypeID, isNull bool) (*Field, int) {
	if isNull {
		return NewNullField(typ), 0
	}
	switch typ {
	case TypeInt:
		return NewIntField(int32(binary.BigEndian.Uint32(buf))), 4
	case TypeFloat:
		return NewFloatField(math.Float32frombits(binary.BigEndian.Uint32(buf))), 4
	case TypeChar:
		n := binary.BigEndian.Uint32(buf)
		chars := make([]byte, n)
		copy(chars, buf[4:4+n])
		return &Field{typ: TypeChar, chars: chars}, int(4 + n)
	}
	return NewNullField(typ), 0
}

// CompareTo orders two fields. The second result is false when the
// comparison is UNKNOWN: either side NULL, or mismatched types.
func (f *Field) CompareTo(o *Field) (int, bool) {
	if f.isNull || o.isNull || f.typ != o.typ {
		return 0, false
	}
	switch f.typ {
	case TypeInt:
		switch {
		case f.i < o.i:
			return -1, true
		case f.i > o.i:
			return 1, true
		}
		return 0, true
	case TypeFloat:
		switch {
		case f.f < o.f:
			return -1, true
		case f.f > o.f:
			return 1, true
		}
		return 0, true
	case TypeChar:
		return bytes.Compare(f.chars, o.chars), true
	}
	return 0, false
}

// Equal reports definite equality. Comparisons involving NULL are
// UNKNOWN and therefore not equal.
func (f *Field) Equal(o *Field) bool {
	cmp, ok := f.CompareTo(o)
	return ok && cmp == 0
}

package record

import (
	"encoding/binary"
	"fmt"

	"minirel/common"
)

// ColumnMagic guards serialized column definitions.
const ColumnMagic uint32 = 210928

// Column describes one attribute of a table schema.
type Column struct {
	Name       string
	Type       TypeID
	Length     uint32 // byte length; CHAR maximum, 4 for INT/FLOAT
	TableIndex uint32 // position within the table schema
	Nullable   bool
	Unique     bool
}

// NewColumn builds an INT or FLOAT column (fixed 4-byte length).
func NewColumn(name string, typ TypeID, index uint32, nullable, unique bool) *Column {
	return &Column{
		Name:       name,
		Type:       typ,
		Length:     4,
		TableIndex: index,
		Nullable:   nullable,
		Unique:     unique,
	}
}

// NewCharColumn builds a CHAR column with the given maximum byte
// length.
func NewCharColumn(name string, length, index uint32, nullable, unique bool) *Column {
	return &Column{
		Name:       name,
		Type:       TypeChar,
		Length:     length,
		TableIndex: index,
		Nullable:   nullable,
		Unique:     unique,
	}
}

// SerializedSize returns the encoded size of the column definition.
func (c *Column) SerializedSize() int {
	// magic + nameLen + name + type + length + tableIndex + 2 flags
	return 4 + 4 + len(c.Name) + 1 + 4 + 4 + 2
}

// SerializeTo encodes the column definition into buf and returns the
// bytes written.
func (c *Column) SerializeTo(buf []byte) int {
	binary.BigEndian.PutUint32(buf, ColumnMagic)
	move := 4
	binary.BigEndian.PutUint32(buf[move:], uint32(len(c.Name)))
	move += 4
	move += copy(buf[move:], c.Name)
	buf[move] = byte(c.Type)
	move++
	binary.BigEndian.PutUint32(buf[move:], c.Length)
	move += 4
	binary.BigEndian.PutUint32(buf[move:], c.TableIndex)
	move += 4
	buf[move] = boolByte(c.Nullable)
	move++
	buf[move] = boolByte(c.Unique)
	move++
	return move
}

// DeserializeColumn decodes a column definition, returning it and the
// bytes consumed. A wrong magic number aborts.
func DeserializeColumn(buf []byte) (*Column, int, error) {
	if magic := binary.BigEndian.Uint32(buf); magic != ColumnMagic {
		return nil, 0, fmt.Errorf("column: got magic %d: %w", magic, common.ErrBadMagic)
	}
	move := 4
	nameLen := binary.BigEndian.Uint32(buf[move:])
	move += 4
	name := string(buf[move : move+int(nameLen)])
	move += int(nameLen)
	c := &Column{Name: name, Type: TypeID(buf[move])}
	move++
	c.Length = binary.BigEndian.Uint32(buf[move:])
	move += 4
	c.TableIndex = binary.BigEndian.Uint32(buf[move:])
	move += 4
	c.Nullable = buf[move] != 0
	move++
	c.Unique = buf[move] != 0
	move++
	return c, move, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

package record

import (
	"encoding/binary"

	"minirel/common"
)

// Schema is an ordered list of columns plus the positions of the
// primary-key columns.
type Schema struct {
	Columns     []*Column
	PrimaryKeys []uint32
}

// NewSchema builds a schema over the given columns.
func NewSchema(columns []*Column, primaryKeys []uint32) *Schema {
	return &Schema{Columns: columns, PrimaryKeys: primaryKeys}
}

// ColumnCount returns the number of columns.
func (s *Schema) ColumnCount() int {
	return len(s.Columns)
}

// Column returns the column at the given position.
func (s *Schema) Column(i uint32) *Column {
	return s.Columns[i]
}

// ColumnIndex resolves a column name to its position.
func (s *Schema) ColumnIndex(name string) (uint32, error) {
	for i, c := range s.Columns {
		if c.Name == name {
			return uint32(i), nil
		}
	}
	return 0, common.ErrColumnNameNotExist
}

// Project builds the key schema for the given column positions. The
// projected columns keep their original definitions but are renumbered
// to their position in the key.
func (s *Schema) Project(positions []uint32) *Schema {
	cols := make([]*Column, 0, len(positions))
	for i, pos := range positions {
		c := *s.Columns[pos]
		c.TableIndex = uint32(i)
		cols = append(cols, &c)
	}
	return &Schema{Columns: cols}
}

// SerializedSize returns the encoded size of the schema.
func (s *Schema) SerializedSize() int {
	size := 4 // column count
	for _, c := range s.Columns {
		size += c.SerializedSize()
	}
	size += 4 + 4*len(s.PrimaryKeys)
	return size
}

// SerializeTo encodes the schema into buf and returns the bytes
// written.
func (s *Schema) SerializeTo(buf []byte) int {
	binary.BigEndian.PutUint32(buf, uint32(len(s.Columns)))
	move := 4
	for _, c := range s.Columns {
		move += c.SerializeTo(buf[move:])
	}
	binary.BigEndian.PutUint32(buf[move:], uint32(len(s.PrimaryKeys)))
	move += 4
	for _, pk := range s.PrimaryKeys {
		binary.BigEndian.PutUint32(buf[move:], pk)
		move += 4
	}
	return move
}

// DeserializeSchema decodes a schema, returning it and the bytes
// consumed.
func DeserializeSchema(buf []byte) (*Schema, int, error) {
	count := binary.BigEndian.Uint32(buf)
	move := 4
	s := &Schema{Columns: make([]*Column, 0, count)}
	for i := uint32(0); i < count; i++ {
		c, n, err := DeserializeColumn(buf[move:])
		if err != nil {
			return nil, 0, err
		}
		s.Columns = append(s.Columns, c)
		move += n
	}
	pkCount := binary.BigEndian.Uint32(buf[move:])
	move += 4
	s.PrimaryKeys = make([]uint32, pkCount)
	for i := uint32(0); i < pkCount; i++ {
		s.PrimaryKeys[i] = binary.BigEndian.Uint32(buf[move:])
		move += 4
	}
	return s, move, nil
}

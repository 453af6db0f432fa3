package catalog

import (
	"encoding/binary"
	"fmt"

	"minirel/common"
	"minirel/heap"
	"minirel/record"
)

// TableMetadataMagic guards serialized table metadata.
const TableMetadataMagic uint32 = 344528

// TableMetadata is the persistent description of one table: identity,
// heap root, and schema. It lives on its own catalog page.
type TableMetadata struct {
	TableID     common.TableID
	Name        string
	FirstPageID common.PageID
	Schema      *record.Schema
}

// SerializedSize returns the encoded size of the metadata.
func (m *TableMetadata) SerializedSize() int {
	return 4 + 4 + 4 + len(m.Name) + 4 + m.Schema.SerializedSize()
}

// SerializeTo encodes the metadata into buf and returns the bytes
// written.
func (m *TableMetadata) SerializeTo(buf []byte) int {
	binary.BigEndian.PutUint32(buf, TableMetadataMagic)
	move := 4
	binary.BigEndian.PutUint32(buf[move:], uint32(m.TableID))
	move += 4
	binary.BigEndian.PutUint32(buf[move:], uint32(len(m.Name)))
	move += 4
	move += copy(buf[move:], m.Name)
	binary.BigEndian.PutUint32(buf[move:], uint32(m.FirstPageID))
	move += 4
	move += m.Schema.SerializeTo(buf[move:])
	return move
}

// DeserializeTableMetadata decodes table metadata. A wrong magic
// number aborts.
func DeserializeTableMetadata(buf []byte) (*TableMetadata, error) {
	if magic := binary.BigEndian.Uint32(buf); magic != TableMetadataMagic {
		return nil, fmt.Errorf("table metadata: got magic %d: %w", magic, common.ErrBadMagic)
	}
	move := 4
	m := &TableMetadata{TableID: common.TableID(binary.BigEndian.Uint32(buf[move:]))}
	move += 4
	nameLen := binary.BigEndian.Uint32(buf[move:])
	move += 4
	m.Name = string(buf[move : move+int(nameLen)])
	move += int(nameLen)
	m.FirstPageID = common.PageID(int32(binary.BigEndian.Uint32(buf[move:])))
	move += 4
	schema, _, err := record.DeserializeSchema(buf[move:])
	if err != nil {
		return nil, err
	}
	m.Schema = schema
	return m, nil
}

// TableInfo bundles a table's metadata with its open heap.
type TableInfo struct {
	Meta *TableMetadata
	Heap *heap.TableHeap
}

// TableID returns the table's id.
func (t *TableInfo) TableID() common.TableID {
	return t.Meta.TableID
}

// Name returns the table's name.
func (t *TableInfo) Name() string {
	return t.Meta.Name
}

// Schema returns the table's schema.
func (t *TableInfo) Schema() *record.Schema {
	return t.Meta.Schema
}

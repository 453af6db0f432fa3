package catalog

import (
	"encoding/binary"
	"fmt"

	"minirel/common"
	"minirel/index"
	"minirel/record"
)

// IndexMetadataMagic guards serialized index metadata.
const IndexMetadataMagic uint32 = 344528

// IndexMetadata is the persistent description of one index: identity,
// owning table, and the positions of the indexed columns in the
// table's schema.
type IndexMetadata struct {
	IndexID common.IndexID
	Name    string
	TableID common.TableID
	KeyMap  []uint32
}

// SerializedSize returns the encoded size of the metadata.
func (m *IndexMetadata) SerializedSize() int {
	return 4 + 4 + 4 + len(m.Name) + 4 + 4 + 4*len(m.KeyMap)
}

// SerializeTo encodes the metadata into buf and returns the bytes
// written.
func (m *IndexMetadata) SerializeTo(buf []byte) int {
	binary.BigEndian.PutUint32(buf, IndexMetadataMagic)
	move := 4
	binary.BigEndian.PutUint32(buf[move:], uint32(m.IndexID))
	move += 4
	binary.BigEndian.PutUint32(buf[move:], uint32(len(m.Name)))
	move += 4
	move += copy(buf[move:], m.Name)
	binary.BigEndian.PutUint32(buf[move:], uint32(m.TableID))
	move += 4
	binary.BigEndian.PutUint32(buf[move:], uint32(len(m.KeyMap)))
	move += 4
	for _, k := range m.KeyMap {
		binary.BigEndian.PutUint32(buf[move:], k)
		move += 4
	}
	return move
}

// DeserializeIndexMetadata decodes index metadata. A wrong magic
// number aborts.
func DeserializeIndexMetadata(buf []byte) (*IndexMetadata, error) {
	if magic := binary.BigEndian.Uint32(buf); magic != IndexMetadataMagic {
		return nil, fmt.Errorf("index metadata: got magic %d: %w", magic, common.ErrBadMagic)
	}
	move := 4
	m := &IndexMetadata{IndexID: common.IndexID(binary.BigEndian.Uint32(buf[move:]))}
	move += 4
	nameLen := binary.BigEndian.Uint32(buf[move:])
	move += 4
	m.Name = string(buf[move : move+int(nameLen)])
	move += int(nameLen)
	m.TableID = common.TableID(binary.BigEndian.Uint32(buf[move:]))
	move += 4
	keyCount := binary.BigEndian.Uint32(buf[move:])
	move += 4
	m.KeyMap = make([]uint32, keyCount)
	for i := range m.KeyMap {
		m.KeyMap[i] = binary.BigEndian.Uint32(buf[move:])
		move += 4
	}
	return m, nil
}

// IndexInfo bundles an index's metadata with its open B+ tree and the
// projected key schema.
type IndexInfo struct {
	Meta      *IndexMetadata
	Tree      *index.BTree
	KeySchema *record.Schema
}

// IndexID returns the index's id.
func (i *IndexInfo) IndexID() common.IndexID {
	return i.Meta.IndexID
}

// Name returns the index's name.
func (i *IndexInfo) Name() string {
	return i.Meta.Name
}

// EncodeKey projects a table row onto the index's key columns and
// encodes it.
func (i *IndexInfo) EncodeKey(row *record.Row) []byte {
	fields := make([]*record.Field, len(i.Meta.KeyMap))
	for pos, col := range i.Meta.KeyMap {
		fields[pos] = row.Fields[col]
	}
	return record.EncodeKey(record.NewRow(fields), i.KeySchema)
}

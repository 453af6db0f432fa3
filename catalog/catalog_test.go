package catalog

import (
	"testing"

	"github.com/dsnet/golib/memfile"
	is "github.com/stretchr/testify/require"

	"minirel/buffer"
	"minirel/common"
	"minirel/disk"
	"minirel/record"
)

func testSchema() *record.Schema {
	return record.NewSchema([]*record.Column{
		record.NewColumn("id", record.TypeInt, 0, false, true),
		record.NewCharColumn("name", 64, 1, true, false),
		record.NewColumn("account", record.TypeFloat, 2, true, false),
	}, []uint32{0})
}

func setupTestCatalog(t *testing.T) (*Manager, *buffer.Pool, *memfile.File) {
	f := memfile.New(nil)
	pool := buffer.NewPool(64, disk.NewManagerWithFile(f), nil)
	m, err := NewManager(pool, true)
	is.NoError(t, err)
	return m, pool, f
}

func TestTableMetadataRoundTrip(t *testing.T) {
	meta := &TableMetadata{
		TableID:     3,
		Name:        "accounts",
		FirstPageID: 17,
		Schema:      testSchema(),
	}
	buf := make([]byte, meta.SerializedSize())
	n := meta.SerializeTo(buf)
	is.Equal(t, len(buf), n)

	got, err := DeserializeTableMetadata(buf)
	is.NoError(t, err)
	is.Equal(t, meta, got)

	buf[0] ^= 0xff
	_, err = DeserializeTableMetadata(buf)
	is.ErrorIs(t, err, common.ErrBadMagic)
}

func TestIndexMetadataRoundTrip(t *testing.T) {
	meta := &IndexMetadata{
		IndexID: 9,
		Name:    "accounts__primary",
		TableID: 3,
		KeyMap:  []uint32{0, 2},
	}
	buf := make([]byte, meta.SerializedSize())
	n := meta.SerializeTo(buf)
	is.Equal(t, len(buf), n)

	got, err := DeserializeIndexMetadata(buf)
	is.NoError(t, err)
	is.Equal(t, meta, got)

	buf[0] ^= 0xff
	_, err = DeserializeIndexMetadata(buf)
	is.ErrorIs(t, err, common.ErrBadMagic)
}

func TestCatalogMetaRoundTrip(t *testing.T) {
	meta := NewCatalogMeta()
	meta.TableMetaPages[1] = 10
	meta.TableMetaPages[2] = 11
	meta.IndexMetaPages[7] = 12

	var buf [common.PageSize]byte
	meta.SerializeTo(buf[:])

	got, err := DeserializeCatalogMeta(buf[:])
	is.NoError(t, err)
	is.Equal(t, meta, got)

	buf[0] ^= 0xff
	_, err = DeserializeCatalogMeta(buf[:])
	is.ErrorIs(t, err, common.ErrBadMagic)
}

func TestCreateTable(t *testing.T) {
	m, pool, _ := setupTestCatalog(t)

	info, err := m.CreateTable("accounts", testSchema())
	is.NoError(t, err)
	is.Equal(t, "accounts", info.Name())

	// Creating it again collides.
	_, err = m.CreateTable("accounts", testSchema())
	is.ErrorIs(t, err, common.ErrTableAlreadyExist)

	got, err := m.GetTable("accounts")
	is.NoError(t, err)
	is.Equal(t, info, got)

	_, err = m.GetTable("nope")
	is.ErrorIs(t, err, common.ErrTableNotExist)

	// The primary index and the unique-column index exist.
	indexes, err := m.GetTableIndexes("accounts")
	is.NoError(t, err)
	is.Len(t, indexes, 2)
	is.True(t, pool.CheckAllUnpinned())
}

func TestCreateTableRequiresPrimaryKey(t *testing.T) {
	m, _, _ := setupTestCatalog(t)

	schema := record.NewSchema([]*record.Column{
		record.NewColumn("id", record.TypeInt, 0, false, false),
	}, nil)
	_, err := m.CreateTable("bare", schema)
	is.ErrorIs(t, err, common.ErrPrimaryKeyRequired)
}

func TestCreateIndexRules(t *testing.T) {
	m, _, _ := setupTestCatalog(t)
	_, err := m.CreateTable("accounts", testSchema())
	is.NoError(t, err)

	// Non-unique, non-primary column is rejected.
	_, err = m.CreateIndex("accounts", "by_name", []string{"name"})
	is.ErrorIs(t, err, common.ErrColumnNotUnique)

	// Unknown column is rejected.
	_, err = m.CreateIndex("accounts", "by_ghost", []string{"ghost"})
	is.ErrorIs(t, err, common.ErrColumnNameNotExist)

	// Duplicate index name is rejected.
	_, err = m.CreateIndex("accounts", "accounts__primary", []string{"id"})
	is.ErrorIs(t, err, common.ErrIndexAlreadyExist)

	// Unknown table is rejected.
	_, err = m.CreateIndex("nope", "idx", []string{"id"})
	is.ErrorIs(t, err, common.ErrTableNotExist)
}

func TestIndexBackfillAndLookup(t *testing.T) {
	m, pool, _ := setupTestCatalog(t)
	info, err := m.CreateTable("accounts", testSchema())
	is.NoError(t, err)

	for i := int32(0); i < 100; i++ {
		row := record.NewRow([]*record.Field{
			record.NewIntField(i),
			record.NewCharField("user"),
			record.NewFloatField(float32(i)),
		})
		is.NoError(t, info.Heap.InsertRow(row))
	}

	// A fresh index over existing rows is back-filled.
	idx, err := m.CreateIndex("accounts", "id_again", []string{"id"})
	is.NoError(t, err)

	row := record.NewRow([]*record.Field{
		record.NewIntField(42),
		record.NewCharField("user"),
		record.NewFloatField(42),
	})
	rid, err := idx.Tree.GetValue(idx.EncodeKey(row))
	is.NoError(t, err)

	stored, err := info.Heap.GetRow(rid)
	is.NoError(t, err)
	is.Equal(t, int32(42), stored.Fields[0].Int())
	is.True(t, pool.CheckAllUnpinned())
}

func TestDropIndexAndTable(t *testing.T) {
	m, pool, _ := setupTestCatalog(t)
	_, err := m.CreateTable("accounts", testSchema())
	is.NoError(t, err)

	is.NoError(t, m.DropIndex("accounts", "accounts__primary"))
	_, err = m.GetIndex("accounts", "accounts__primary")
	is.ErrorIs(t, err, common.ErrIndexNotFound)

	is.NoError(t, m.DropTable("accounts"))
	_, err = m.GetTable("accounts")
	is.ErrorIs(t, err, common.ErrTableNotExist)

	is.ErrorIs(t, m.DropTable("accounts"), common.ErrTableNotExist)
	is.True(t, pool.CheckAllUnpinned())
}

func TestCatalogReload(t *testing.T) {
	m, pool, f := setupTestCatalog(t)

	info, err := m.CreateTable("accounts", testSchema())
	is.NoError(t, err)
	var rids []common.RowID
	for i := int32(0); i < 50; i++ {
		row := record.NewRow([]*record.Field{
			record.NewIntField(i),
			record.NewCharField("user"),
			record.NewFloatField(float32(i)),
		})
		is.NoError(t, info.Heap.InsertRow(row))
		rids = append(rids, row.RowID)
	}

	// Index the rows, then simulate a restart.
	idx, err := m.GetIndex("accounts", "accounts__primary")
	is.NoError(t, err)
	it := info.Heap.Begin()
	for it.Next() {
		is.NoError(t, idx.Tree.Insert(idx.EncodeKey(it.Row()), it.RowID()))
	}
	is.NoError(t, it.Error())
	pool.FlushAll()

	pool2 := buffer.NewPool(64, disk.NewManagerWithFile(f), nil)
	m2, err := NewManager(pool2, false)
	is.NoError(t, err)

	info2, err := m2.GetTable("accounts")
	is.NoError(t, err)
	is.Equal(t, info.TableID(), info2.TableID())
	for i, rid := range rids {
		row, err := info2.Heap.GetRow(rid)
		is.NoError(t, err)
		is.Equal(t, int32(i), row.Fields[0].Int())
	}

	idx2, err := m2.GetIndex("accounts", "accounts__primary")
	is.NoError(t, err)
	probe := record.NewRow([]*record.Field{
		record.NewIntField(17),
		record.NewCharField("user"),
		record.NewFloatField(17),
	})
	rid, err := idx2.Tree.GetValue(idx2.EncodeKey(probe))
	is.NoError(t, err)
	is.Equal(t, rids[17], rid)
	is.True(t, pool2.CheckAllUnpinned())
}

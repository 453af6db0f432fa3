package db

import (
	"testing"

	is "github.com/stretchr/testify/require"

	"minirel/common"
	"minirel/common/testutil"
	"minirel/record"
)

func accountSchema() *record.Schema {
	return record.NewSchema([]*record.Column{
		record.NewColumn("id", record.TypeInt, 0, false, true),
		record.NewCharColumn("name", 64, 1, true, false),
		record.NewColumn("account", record.TypeFloat, 2, true, false),
	}, []uint32{0})
}

func accountRow(i int32) *record.Row {
	return record.NewRow([]*record.Field{
		record.NewIntField(i),
		record.NewCharField("holder"),
		record.NewFloatField(float32(i) * 1.5),
	})
}

func TestDatabaseEndToEnd(t *testing.T) {
	path := testutil.TempFile(t, "test.db")

	database, err := Open(DefaultConfig(path))
	is.NoError(t, err)

	table, err := database.Catalog.CreateTable("accounts", accountSchema())
	is.NoError(t, err)
	idx, err := database.Catalog.GetIndex("accounts", "accounts__primary")
	is.NoError(t, err)

	const n = 1000
	for i := int32(0); i < n; i++ {
		row := accountRow(i)
		is.NoError(t, table.Heap.InsertRow(row))
		is.NoError(t, idx.Tree.Insert(idx.EncodeKey(row), row.RowID))
	}
	is.NoError(t, database.Close())

	// Reopen: every key must still resolve through the index to its
	// row.
	database, err = Open(DefaultConfig(path))
	is.NoError(t, err)
	defer database.Close()

	table, err = database.Catalog.GetTable("accounts")
	is.NoError(t, err)
	idx, err = database.Catalog.GetIndex("accounts", "accounts__primary")
	is.NoError(t, err)

	for i := int32(0); i < n; i++ {
		rid, err := idx.Tree.GetValue(idx.EncodeKey(accountRow(i)))
		is.NoError(t, err)
		row, err := table.Heap.GetRow(rid)
		is.NoError(t, err)
		is.True(t, accountRow(i).FieldEqual(row))
	}
	is.True(t, database.Pool.CheckAllUnpinned())
}

func TestDatabaseClockPolicy(t *testing.T) {
	path := testutil.TempFile(t, "clock.db")
	cfg := DefaultConfig(path)
	cfg.Policy = PolicyClock
	cfg.PoolSize = 16

	database, err := Open(cfg)
	is.NoError(t, err)
	defer database.Close()

	table, err := database.Catalog.CreateTable("accounts", accountSchema())
	is.NoError(t, err)

	// More pages than frames: the CLOCK replacer has to evict.
	for i := int32(0); i < 2000; i++ {
		is.NoError(t, table.Heap.InsertRow(accountRow(i)))
	}
	count := 0
	it := table.Heap.Begin()
	for it.Next() {
		count++
	}
	is.NoError(t, it.Error())
	is.Equal(t, 2000, count)
}

func TestDatabaseUnknownPolicy(t *testing.T) {
	cfg := DefaultConfig(testutil.TempFile(t, "bad.db"))
	cfg.Policy = "fifo"
	_, err := Open(cfg)
	is.ErrorIs(t, err, common.ErrFailed)
}

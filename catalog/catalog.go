package catalog

import (
	"encoding/binary"
	"fmt"

	"minirel/buffer"
	"minirel/common"
	"minirel/heap"
	"minirel/index"
	"minirel/record"
)

// CatalogMetadataMagic guards the serialized catalog directory.
const CatalogMetadataMagic uint32 = 89849

// CatalogMeta is the persistent catalog directory on the well-known
// catalog meta page: which page each table's and index's metadata
// lives on.
type CatalogMeta struct {
	TableMetaPages map[common.TableID]common.PageID
	IndexMetaPages map[common.IndexID]common.PageID
}

// NewCatalogMeta returns an empty directory.
func NewCatalogMeta() *CatalogMeta {
	return &CatalogMeta{
		TableMetaPages: make(map[common.TableID]common.PageID),
		IndexMetaPages: make(map[common.IndexID]common.PageID),
	}
}

// SerializeTo encodes the directory into a page image.
func (m *CatalogMeta) SerializeTo(buf []byte) {
	binary.BigEndian.PutUint32(buf, CatalogMetadataMagic)
	move := 4
	binary.BigEndian.PutUint32(buf[move:], uint32(len(m.TableMetaPages)))
	move += 4
	for id, page := range m.TableMetaPages {
		binary.BigEndian.PutUint32(buf[move:], uint32(id))
		binary.BigEndian.PutUint32(buf[move+4:], uint32(page))
		move += 8
	}
	binary.BigEndian.PutUint32(buf[move:], uint32(len(m.IndexMetaPages)))
	move += 4
	for id, page := range m.IndexMetaPages {
		binary.BigEndian.PutUint32(buf[move:], uint32(id))
		binary.BigEndian.PutUint32(buf[move+4:], uint32(page))
		move += 8
	}
}

// DeserializeCatalogMeta decodes the directory. A wrong magic number
// aborts.
func DeserializeCatalogMeta(buf []byte) (*CatalogMeta, error) {
	if magic := binary.BigEndian.Uint32(buf); magic != CatalogMetadataMagic {
		return nil, fmt.Errorf("catalog metadata: got magic %d: %w", magic, common.ErrBadMagic)
	}
	m := NewCatalogMeta()
	move := 4
	tableCount := binary.BigEndian.Uint32(buf[move:])
	move += 4
	for i := uint32(0); i < tableCount; i++ {
		id := common.TableID(binary.BigEndian.Uint32(buf[move:]))
		m.TableMetaPages[id] = common.PageID(int32(binary.BigEndian.Uint32(buf[move+4:])))
		move += 8
	}
	indexCount := binary.BigEndian.Uint32(buf[move:])
	move += 4
	for i := uint32(0); i < indexCount; i++ {
		id := common.IndexID(binary.BigEndian.Uint32(buf[move:]))
		m.IndexMetaPages[id] = common.PageID(int32(binary.BigEndian.Uint32(buf[move+4:])))
		move += 8
	}
	return m, nil
}

// Manager is the catalog: the directory of tables and indexes layered
// on the storage core, serving the executor.
type Manager struct {
	pool *buffer.Pool
	meta *CatalogMeta

	tables     map[common.TableID]*TableInfo
	tableNames map[string]common.TableID
	indexes    map[common.IndexID]*IndexInfo
	indexNames map[common.TableID]map[string]common.IndexID

	nextTableID common.TableID
	nextIndexID common.IndexID
}

// NewManager bootstraps (init=true) or reloads (init=false) the
// catalog. Bootstrapping claims the two well-known pages of a fresh
// database; reloading deserializes the directory and reopens every
// table and index.
func NewManager(pool *buffer.Pool, init bool) (*Manager, error) {
	m := &Manager{
		pool:       pool,
		tables:     make(map[common.TableID]*TableInfo),
		tableNames: make(map[string]common.TableID),
		indexes:    make(map[common.IndexID]*IndexInfo),
		indexNames: make(map[common.TableID]map[string]common.IndexID),
	}
	if init {
		metaPage, err := pool.NewPage()
		if err != nil {
			return nil, err
		}
		rootsPage, err := pool.NewPage()
		if err != nil {
			return nil, err
		}
		if metaPage.ID() != common.CatalogMetaPageID || rootsPage.ID() != common.IndexRootsPageID {
			return nil, fmt.Errorf("catalog bootstrap on a non-empty database: %w", common.ErrFailed)
		}
		pool.UnpinPage(metaPage.ID(), true)
		pool.UnpinPage(rootsPage.ID(), true)
		m.meta = NewCatalogMeta()
		return m, m.flushCatalogMeta()
	}

	page, err := pool.FetchPage(common.CatalogMetaPageID)
	if err != nil {
		return nil, err
	}
	meta, err := DeserializeCatalogMeta(page.Data())
	pool.UnpinPage(common.CatalogMetaPageID, false)
	if err != nil {
		return nil, err
	}
	m.meta = meta
	for id, pageID := range meta.TableMetaPages {
		if err := m.loadTable(pageID); err != nil {
			return nil, err
		}
		if id >= m.nextTableID {
			m.nextTableID = id + 1
		}
	}
	for id, pageID := range meta.IndexMetaPages {
		if err := m.loadIndex(pageID); err != nil {
			return nil, err
		}
		if id >= m.nextIndexID {
			m.nextIndexID = id + 1
		}
	}
	return m, nil
}

func (m *Manager) loadTable(metaPageID common.PageID) error {
	page, err := m.pool.FetchPage(metaPageID)
	if err != nil {
		return err
	}
	meta, err := DeserializeTableMetadata(page.Data())
	m.pool.UnpinPage(metaPageID, false)
	if err != nil {
		return err
	}
	tableHeap, err := heap.OpenTableHeap(m.pool, meta.Schema, meta.FirstPageID)
	if err != nil {
		return err
	}
	info := &TableInfo{Meta: meta, Heap: tableHeap}
	m.tables[meta.TableID] = info
	m.tableNames[meta.Name] = meta.TableID
	return nil
}

func (m *Manager) loadIndex(metaPageID common.PageID) error {
	page, err := m.pool.FetchPage(metaPageID)
	if err != nil {
		return err
	}
	meta, err := DeserializeIndexMetadata(page.Data())
	m.pool.UnpinPage(metaPageID, false)
	if err != nil {
		return err
	}
	table, ok := m.tables[meta.TableID]
	if !ok {
		return common.ErrTableNotExist
	}
	keySchema := table.Schema().Project(meta.KeyMap)
	tree, err := index.NewBTree(meta.IndexID, m.pool, record.NewComparator(keySchema), record.KeySize(keySchema), 0, 0)
	if err != nil {
		return err
	}
	info := &IndexInfo{Meta: meta, Tree: tree, KeySchema: keySchema}
	m.indexes[meta.IndexID] = info
	if m.indexNames[meta.TableID] == nil {
		m.indexNames[meta.TableID] = make(map[string]common.IndexID)
	}
	m.indexNames[meta.TableID][meta.Name] = meta.IndexID
	return nil
}

// CreateTable registers a table and builds its primary-key index plus
// one index per unique column. The schema must name an explicit
// primary key.
func (m *Manager) CreateTable(name string, schema *record.Schema) (*TableInfo, error) {
	if _, ok := m.tableNames[name]; ok {
		return nil, common.ErrTableAlreadyExist
	}
	if len(schema.PrimaryKeys) == 0 {
		return nil, common.ErrPrimaryKeyRequired
	}
	for _, pk := range schema.PrimaryKeys {
		if int(pk) >= schema.ColumnCount() {
			return nil, common.ErrColumnNameNotExist
		}
	}

	tableHeap, err := heap.NewTableHeap(m.pool, schema)
	if err != nil {
		return nil, err
	}
	meta := &TableMetadata{
		TableID:     m.nextTableID,
		Name:        name,
		FirstPageID: tableHeap.FirstPageID(),
		Schema:      schema,
	}
	metaPage, err := m.pool.NewPage()
	if err != nil {
		return nil, err
	}
	meta.SerializeTo(metaPage.Data())
	m.pool.UnpinPage(metaPage.ID(), true)

	info := &TableInfo{Meta: meta, Heap: tableHeap}
	m.tables[meta.TableID] = info
	m.tableNames[name] = meta.TableID
	m.meta.TableMetaPages[meta.TableID] = metaPage.ID()
	m.nextTableID++

	// Secondary structures: one index per unique column, then the
	// primary-key index.
	for i, col := range schema.Columns {
		if col.Unique {
			indexName := fmt.Sprintf("%s__unique__%d", name, i)
			if _, err := m.CreateIndex(name, indexName, []string{col.Name}); err != nil {
				return nil, err
			}
		}
	}
	pkNames := make([]string, len(schema.PrimaryKeys))
	for i, pk := range schema.PrimaryKeys {
		pkNames[i] = schema.Column(pk).Name
	}
	if _, err := m.CreateIndex(name, name+"__primary", pkNames); err != nil {
		return nil, err
	}

	return info, m.flushCatalogMeta()
}

// GetTable looks a table up by name.
func (m *Manager) GetTable(name string) (*TableInfo, error) {
	id, ok := m.tableNames[name]
	if !ok {
		return nil, common.ErrTableNotExist
	}
	return m.tables[id], nil
}

// GetTableByID looks a table up by id.
func (m *Manager) GetTableByID(id common.TableID) (*TableInfo, error) {
	info, ok := m.tables[id]
	if !ok {
		return nil, common.ErrTableNotExist
	}
	return info, nil
}

// GetTables returns every table.
func (m *Manager) GetTables() []*TableInfo {
	out := make([]*TableInfo, 0, len(m.tables))
	for _, info := range m.tables {
		out = append(out, info)
	}
	return out
}

// CreateIndex registers an ordered secondary index over the named
// columns and back-fills it from the table's rows. Indexes are only
// allowed on a unique column or on the table's primary key.
func (m *Manager) CreateIndex(tableName, indexName string, keyColumns []string) (*IndexInfo, error) {
	table, err := m.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	if names := m.indexNames[table.TableID()]; names != nil {
		if _, ok := names[indexName]; ok {
			return nil, common.ErrIndexAlreadyExist
		}
	}
	schema := table.Schema()
	keyMap := make([]uint32, len(keyColumns))
	for i, colName := range keyColumns {
		pos, err := schema.ColumnIndex(colName)
		if err != nil {
			return nil, err
		}
		keyMap[i] = pos
	}
	if !m.indexableKey(schema, keyMap) {
		return nil, common.ErrColumnNotUnique
	}

	meta := &IndexMetadata{
		IndexID: m.nextIndexID,
		Name:    indexName,
		TableID: table.TableID(),
		KeyMap:  keyMap,
	}
	keySchema := schema.Project(keyMap)
	tree, err := index.NewBTree(meta.IndexID, m.pool, record.NewComparator(keySchema), record.KeySize(keySchema), 0, 0)
	if err != nil {
		return nil, err
	}
	info := &IndexInfo{Meta: meta, Tree: tree, KeySchema: keySchema}

	// Back-fill from existing rows.
	it := table.Heap.Begin()
	for it.Next() {
		if err := tree.Insert(info.EncodeKey(it.Row()), it.RowID()); err != nil {
			tree.Destroy()
			return nil, err
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	metaPage, err := m.pool.NewPage()
	if err != nil {
		return nil, err
	}
	meta.SerializeTo(metaPage.Data())
	m.pool.UnpinPage(metaPage.ID(), true)

	m.indexes[meta.IndexID] = info
	if m.indexNames[meta.TableID] == nil {
		m.indexNames[meta.TableID] = make(map[string]common.IndexID)
	}
	m.indexNames[meta.TableID][indexName] = meta.IndexID
	m.meta.IndexMetaPages[meta.IndexID] = metaPage.ID()
	m.nextIndexID++
	return info, m.flushCatalogMeta()
}

// indexableKey reports whether the key columns contain a unique column
// or exactly cover the primary key.
func (m *Manager) indexableKey(schema *record.Schema, keyMap []uint32) bool {
	for _, pos := range keyMap {
		if schema.Column(pos).Unique {
			return true
		}
	}
	if len(keyMap) != len(schema.PrimaryKeys) {
		return false
	}
	for i, pos := range keyMap {
		if schema.PrimaryKeys[i] != pos {
			return false
		}
	}
	return true
}

// GetIndex looks an index up by table and name.
func (m *Manager) GetIndex(tableName, indexName string) (*IndexInfo, error) {
	table, err := m.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	names := m.indexNames[table.TableID()]
	if names == nil {
		return nil, common.ErrIndexNotFound
	}
	id, ok := names[indexName]
	if !ok {
		return nil, common.ErrIndexNotFound
	}
	return m.indexes[id], nil
}

// GetTableIndexes returns every index of a table.
func (m *Manager) GetTableIndexes(tableName string) ([]*IndexInfo, error) {
	table, err := m.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	out := make([]*IndexInfo, 0)
	for _, id := range m.indexNames[table.TableID()] {
		out = append(out, m.indexes[id])
	}
	return out, nil
}

// DropIndex removes an index: its tree pages, its root directory
// entry, and its metadata page.
func (m *Manager) DropIndex(tableName, indexName string) error {
	info, err := m.GetIndex(tableName, indexName)
	if err != nil {
		return err
	}
	if err := info.Tree.Destroy(); err != nil {
		return err
	}
	if err := m.deleteRootEntry(info.IndexID()); err != nil {
		return err
	}
	if _, err := m.pool.DeletePage(m.meta.IndexMetaPages[info.IndexID()]); err != nil {
		return err
	}
	delete(m.meta.IndexMetaPages, info.IndexID())
	delete(m.indexes, info.IndexID())
	delete(m.indexNames[info.Meta.TableID], indexName)
	return m.flushCatalogMeta()
}

// DropTable removes a table, its indexes, its heap pages, and its
// metadata page.
func (m *Manager) DropTable(tableName string) error {
	table, err := m.GetTable(tableName)
	if err != nil {
		return err
	}
	for name := range m.indexNames[table.TableID()] {
		if err := m.DropIndex(tableName, name); err != nil {
			return err
		}
	}
	if err := table.Heap.FreeHeap(); err != nil {
		return err
	}
	if _, err := m.pool.DeletePage(m.meta.TableMetaPages[table.TableID()]); err != nil {
		return err
	}
	delete(m.meta.TableMetaPages, table.TableID())
	delete(m.tables, table.TableID())
	delete(m.tableNames, tableName)
	delete(m.indexNames, table.TableID())
	return m.flushCatalogMeta()
}

func (m *Manager) deleteRootEntry(id common.IndexID) error {
	page, err := m.pool.FetchPage(common.IndexRootsPageID)
	if err != nil {
		return err
	}
	(index.RootsPage{Page: page}).DeleteRootID(id)
	m.pool.UnpinPage(common.IndexRootsPageID, true)
	return nil
}

// flushCatalogMeta re-serializes the directory and persists it in a
// single flush. Called after every create/drop.
func (m *Manager) flushCatalogMeta() error {
	page, err := m.pool.FetchPage(common.CatalogMetaPageID)
	if err != nil {
		return err
	}
	m.meta.SerializeTo(page.Data())
	m.pool.UnpinPage(common.CatalogMetaPageID, true)
	if !m.pool.FlushPage(common.CatalogMetaPageID) {
		return common.ErrFailed
	}
	return nil
}

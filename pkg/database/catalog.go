package database

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/syloe1/lightDb/pkg/index"
	"github.com/syloe1/lightDb/pkg/logger"
	"github.com/syloe1/lightDb/pkg/query"
	"github.com/syloe1/lightDb/pkg/storage"
)

// TableInfo binds a table name and schema to its heap file
type TableInfo struct {
	Name    string
	Columns []query.ColumnDef
	Heap    *storage.HeapFile
}

// ColumnIndex returns the ordinal of a column in the schema
func (t *TableInfo) ColumnIndex(name string) (int, bool) {
	for i, col := range t.Columns {
		if col.Name == name {
			return i, true
		}
	}
	return -1, false
}

// IndexInfo binds an indexed (table, column) pair to its B+tree
type IndexInfo struct {
	Name   string
	Table  string
	Column string
	Tree   *index.BTree
}

// Catalog maps table names to heap files and (table, column) pairs to
// B+tree indexes. Every heap file and every tree gets a private buffer
// pool and page store: both allocate page ids from zero, so sharing a
// pool would collide their namespaces.
type Catalog struct {
	mu           sync.RWMutex
	poolCapacity int
	indexOrder   int
	tables       map[string]*TableInfo
	indexes      map[string]*IndexInfo // key: "table.column"
}

// NewCatalog creates an empty catalog. Pools created for tables and
// indexes hold poolCapacity frames; trees are built with indexOrder.
func NewCatalog(poolCapacity, indexOrder int) *Catalog {
	return &Catalog{
		poolCapacity: poolCapacity,
		indexOrder:   indexOrder,
		tables:       make(map[string]*TableInfo),
		indexes:      make(map[string]*IndexInfo),
	}
}

// CreateTable registers a new table with its schema
func (c *Catalog) CreateTable(name string, columns []query.ColumnDef) (*TableInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[name]; exists {
		return nil, fmt.Errorf("table %s already exists", name)
	}

	pool := storage.NewBufferPool(c.poolCapacity, storage.NewPageStore())
	info := &TableInfo{
		Name:    name,
		Columns: columns,
		Heap:    storage.NewHeapFile(pool),
	}
	c.tables[name] = info
	logger.Infof("created table %s with %d columns", name, len(columns))
	return info, nil
}

// Table returns the table registration
func (c *Catalog) Table(name string) (*TableInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.tables[name]
	return info, ok
}

// CreateIndex builds a B+tree over an int column, backfilling it from the
// table's current contents
func (c *Catalog) CreateIndex(table, column string) (*IndexInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tbl, ok := c.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	colIdx, ok := tbl.ColumnIndex(column)
	if !ok {
		return nil, fmt.Errorf("column %s does not exist in table %s", column, table)
	}
	if tbl.Columns[colIdx].Type != "int" {
		return nil, fmt.Errorf("column %s.%s is not indexable: only int columns carry indexes", table, column)
	}

	key := table + "." + column
	if _, exists := c.indexes[key]; exists {
		return nil, fmt.Errorf("index on %s already exists", key)
	}

	pool := storage.NewBufferPool(c.poolCapacity, storage.NewPageStore())
	tree, err := index.New(pool, c.indexOrder)
	if err != nil {
		return nil, err
	}

	// Backfill from the live records.
	for _, rec := range tbl.Heap.SeqScan() {
		fields := decodeRow(rec.Data)
		if colIdx >= len(fields) {
			continue
		}
		k, err := strconv.ParseInt(fields[colIdx], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("cannot index %s: row %s has non-integer %s value %q",
				key, rec.RID, column, fields[colIdx])
		}
		if !tree.Insert(int32(k), rec.RID) {
			return nil, fmt.Errorf("cannot index %s: duplicate key %d", key, k)
		}
	}

	info := &IndexInfo{
		Name:   "idx_" + table + "_" + column,
		Table:  table,
		Column: column,
		Tree:   tree,
	}
	c.indexes[key] = info
	logger.Infof("created index %s", info.Name)
	return info, nil
}

// Index returns the index registered for (table, column)
func (c *Catalog) Index(table, column string) (*IndexInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.indexes[table+"."+column]
	return info, ok
}

// TableIndexes returns every index registered on the table
func (c *Catalog) TableIndexes(table string) []*IndexInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var result []*IndexInfo
	for _, info := range c.indexes {
		if info.Table == table {
			result = append(result, info)
		}
	}
	return result
}

// LookupIndex implements query.IndexLookup for the planner
func (c *Catalog) LookupIndex(table, column string) (string, bool) {
	info, ok := c.Index(table, column)
	if !ok {
		return "", false
	}
	return info.Name, true
}

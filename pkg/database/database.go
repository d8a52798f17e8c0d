package database

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/syloe1/lightDb/pkg/config"
	"github.com/syloe1/lightDb/pkg/logger"
	"github.com/syloe1/lightDb/pkg/query"
	"github.com/syloe1/lightDb/pkg/storage"
)

// DB wires the SQL frontend to the storage engine
type DB struct {
	cfg     *config.Config
	catalog *Catalog
	planner *query.Planner
}

// Result is the outcome of one executed statement
type Result struct {
	Columns  []string
	Rows     [][]string
	Affected int
	Message  string
}

// Open creates a database from configuration
func Open(cfg *config.Config) *DB {
	catalog := NewCatalog(cfg.BufferPool.Capacity, cfg.Index.Order)
	return &DB{
		cfg:     cfg,
		catalog: catalog,
		planner: query.NewPlanner(catalog),
	}
}

// Catalog exposes the catalog for index management and tooling
func (db *DB) Catalog() *Catalog {
	return db.catalog
}

// Execute parses, plans, and runs one SQL statement
func (db *DB) Execute(sql string) (*Result, error) {
	stmt, err := query.Parse(sql)
	if err != nil {
		return nil, err
	}
	plan, err := db.planner.Plan(stmt)
	if err != nil {
		return nil, err
	}
	return db.run(plan)
}

func (db *DB) run(plan query.Plan) (*Result, error) {
	switch p := plan.(type) {
	case *query.CreateTablePlan:
		if _, err := db.catalog.CreateTable(p.Table, p.Columns); err != nil {
			return nil, err
		}
		return &Result{Message: fmt.Sprintf("table %s created", p.Table)}, nil
	case *query.InsertPlan:
		return db.runInsert(p)
	case *query.SeqScanPlan, *query.IndexScanPlan:
		return db.runSelect(plan)
	case *query.DeletePlan:
		return db.runDelete(p)
	case *query.UpdatePlan:
		return db.runUpdate(p)
	}
	return nil, fmt.Errorf("unsupported plan type %T", plan)
}

func (db *DB) runInsert(p *query.InsertPlan) (*Result, error) {
	tbl, ok := db.catalog.Table(p.Table)
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", p.Table)
	}
	if len(p.Values) != len(tbl.Columns) {
		return nil, fmt.Errorf("table %s has %d columns, got %d values", p.Table, len(tbl.Columns), len(p.Values))
	}

	fields := make([]string, len(p.Values))
	for i, v := range p.Values {
		if tbl.Columns[i].Type == "int" && v.Type != query.ValueInt {
			return nil, fmt.Errorf("column %s expects an integer", tbl.Columns[i].Name)
		}
		fields[i] = v.Raw
	}

	// Reject index key duplicates up front so a failed insert leaves no
	// orphan heap record behind.
	indexes := db.catalog.TableIndexes(p.Table)
	keys := make(map[string]int32, len(indexes))
	for _, idx := range indexes {
		colIdx, _ := tbl.ColumnIndex(idx.Column)
		k, err := strconv.ParseInt(fields[colIdx], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("column %s is indexed and expects an integer", idx.Column)
		}
		if _, found := idx.Tree.Search(int32(k)); found {
			return nil, fmt.Errorf("duplicate key %d for index %s", k, idx.Name)
		}
		keys[idx.Column] = int32(k)
	}

	rid := tbl.Heap.Insert(storage.Record{Data: encodeRow(fields)})
	if !rid.Valid() {
		return nil, fmt.Errorf("insert into %s failed", p.Table)
	}
	for _, idx := range indexes {
		idx.Tree.Insert(keys[idx.Column], rid)
	}
	return &Result{Affected: 1, Message: fmt.Sprintf("inserted 1 row at %s", rid)}, nil
}

func (db *DB) runSelect(plan query.Plan) (*Result, error) {
	rows, tbl, wanted, err := db.scan(plan)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if len(wanted) == 1 && wanted[0] == "*" {
		for _, col := range tbl.Columns {
			res.Columns = append(res.Columns, col.Name)
		}
		for _, row := range rows {
			res.Rows = append(res.Rows, row.fields)
		}
		return res, nil
	}

	positions := make([]int, len(wanted))
	for i, name := range wanted {
		pos, ok := tbl.ColumnIndex(name)
		if !ok {
			return nil, fmt.Errorf("column %s does not exist in table %s", name, tbl.Name)
		}
		positions[i] = pos
	}
	res.Columns = wanted
	for _, row := range rows {
		projected := make([]string, len(positions))
		for i, pos := range positions {
			projected[i] = row.fields[pos]
		}
		res.Rows = append(res.Rows, projected)
	}
	return res, nil
}

func (db *DB) runDelete(p *query.DeletePlan) (*Result, error) {
	rows, tbl, _, err := db.scan(p.Source)
	if err != nil {
		return nil, err
	}

	indexes := db.catalog.TableIndexes(tbl.Name)
	deleted := 0
	for _, row := range rows {
		if !tbl.Heap.Delete(row.rid) {
			continue
		}
		deleted++
		for _, idx := range indexes {
			colIdx, _ := tbl.ColumnIndex(idx.Column)
			if k, err := strconv.ParseInt(row.fields[colIdx], 10, 32); err == nil {
				idx.Tree.Delete(int32(k))
			}
		}
	}
	return &Result{Affected: deleted, Message: fmt.Sprintf("deleted %d rows", deleted)}, nil
}

func (db *DB) runUpdate(p *query.UpdatePlan) (*Result, error) {
	rows, tbl, _, err := db.scan(p.Source)
	if err != nil {
		return nil, err
	}

	sets := make(map[int]query.Value, len(p.Sets))
	for _, a := range p.Sets {
		pos, ok := tbl.ColumnIndex(a.Column)
		if !ok {
			return nil, fmt.Errorf("column %s does not exist in table %s", a.Column, tbl.Name)
		}
		if tbl.Columns[pos].Type == "int" && a.Value.Type != query.ValueInt {
			return nil, fmt.Errorf("column %s expects an integer", a.Column)
		}
		sets[pos] = a.Value
	}

	indexes := db.catalog.TableIndexes(tbl.Name)
	updated := 0
	for _, row := range rows {
		// Rewrite as tombstone + append; indexes follow the key change.
		if !tbl.Heap.Delete(row.rid) {
			continue
		}
		for _, idx := range indexes {
			colIdx, _ := tbl.ColumnIndex(idx.Column)
			if k, err := strconv.ParseInt(row.fields[colIdx], 10, 32); err == nil {
				idx.Tree.Delete(int32(k))
			}
		}

		fields := append([]string(nil), row.fields...)
		for pos, v := range sets {
			fields[pos] = v.Raw
		}
		rid := tbl.Heap.Insert(storage.Record{Data: encodeRow(fields)})
		if !rid.Valid() {
			return nil, fmt.Errorf("update of %s failed mid-way after %d rows", tbl.Name, updated)
		}
		for _, idx := range indexes {
			colIdx, _ := tbl.ColumnIndex(idx.Column)
			if k, err := strconv.ParseInt(fields[colIdx], 10, 32); err == nil {
				idx.Tree.Insert(int32(k), rid)
			}
		}
		updated++
	}
	return &Result{Affected: updated, Message: fmt.Sprintf("updated %d rows", updated)}, nil
}

// matchedRow is a decoded live record plus its location
type matchedRow struct {
	rid    storage.RID
	fields []string
}

// scan materializes the rows a scan plan matches
func (db *DB) scan(plan query.Plan) ([]matchedRow, *TableInfo, []string, error) {
	switch p := plan.(type) {
	case *query.SeqScanPlan:
		tbl, ok := db.catalog.Table(p.Table)
		if !ok {
			return nil, nil, nil, fmt.Errorf("table %s does not exist", p.Table)
		}
		var rows []matchedRow
		for _, rec := range tbl.Heap.SeqScan() {
			fields := decodeRow(rec.Data)
			match, err := matchesAll(tbl, fields, p.Predicates)
			if err != nil {
				return nil, nil, nil, err
			}
			if match {
				rows = append(rows, matchedRow{rid: rec.RID, fields: fields})
			}
		}
		return rows, tbl, p.Columns, nil

	case *query.IndexScanPlan:
		tbl, ok := db.catalog.Table(p.Table)
		if !ok {
			return nil, nil, nil, fmt.Errorf("table %s does not exist", p.Table)
		}
		idx, ok := db.catalog.Index(p.Table, p.Column)
		if !ok {
			return nil, nil, nil, fmt.Errorf("index on %s.%s disappeared", p.Table, p.Column)
		}
		k, err := strconv.ParseInt(p.Value.Raw, 10, 32)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("index scan on %s needs an integer, got %q", p.Column, p.Value.Raw)
		}
		rids := indexProbe(idx, int32(k), p.Op)

		var rows []matchedRow
		for _, rid := range rids {
			rec := tbl.Heap.Read(rid)
			if rec.Data == nil {
				logger.Warnf("index %s points at missing record %s", idx.Name, rid)
				continue
			}
			fields := decodeRow(rec.Data)
			match, err := matchesAll(tbl, fields, p.Residual)
			if err != nil {
				return nil, nil, nil, err
			}
			if match {
				rows = append(rows, matchedRow{rid: rid, fields: fields})
			}
		}
		return rows, tbl, p.Columns, nil
	}
	return nil, nil, nil, fmt.Errorf("unsupported scan plan %T", plan)
}

// indexProbe turns a comparison against a key into tree operations
func indexProbe(idx *IndexInfo, key int32, op string) []storage.RID {
	switch op {
	case "=":
		if rid, ok := idx.Tree.Search(key); ok {
			return []storage.RID{rid}
		}
		return nil
	case ">":
		if key == math.MaxInt32 {
			return nil
		}
		return idx.Tree.RangeScan(key+1, math.MaxInt32)
	case ">=":
		return idx.Tree.RangeScan(key, math.MaxInt32)
	case "<":
		if key == math.MinInt32 {
			return nil
		}
		return idx.Tree.RangeScan(math.MinInt32, key-1)
	case "<=":
		return idx.Tree.RangeScan(math.MinInt32, key)
	}
	return nil
}

// matchesAll evaluates AND-joined predicates against a decoded row
func matchesAll(tbl *TableInfo, fields []string, conds []query.Condition) (bool, error) {
	for _, cond := range conds {
		pos, ok := tbl.ColumnIndex(cond.Column)
		if !ok {
			return false, fmt.Errorf("column %s does not exist in table %s", cond.Column, tbl.Name)
		}
		if pos >= len(fields) {
			return false, nil
		}
		if !compare(fields[pos], cond.Op, cond.Value.Raw) {
			return false, nil
		}
	}
	return true, nil
}

// compare applies op between a stored field and a literal. Both sides
// numeric compares as integers, anything else bytewise.
func compare(field, op, literal string) bool {
	var cmp int
	a, errA := strconv.ParseInt(field, 10, 64)
	b, errB := strconv.ParseInt(literal, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(field, literal)
	}

	switch op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	}
	return false
}

// encodeRow packs field values into a heap record payload
func encodeRow(fields []string) []byte {
	return []byte(strings.Join(fields, ","))
}

// decodeRow splits a heap record payload back into fields
func decodeRow(data []byte) []string {
	return strings.Split(string(data), ",")
}

package database

import (
	"fmt"
	"io"
	"strconv"

	"github.com/syloe1/lightDb/pkg/impex"
	"github.com/syloe1/lightDb/pkg/storage"
)

// ExportTable writes the table's live records to w as a snapshot
func (db *DB) ExportTable(table string, w io.Writer) (impex.Info, error) {
	tbl, ok := db.catalog.Table(table)
	if !ok {
		return impex.Info{}, fmt.Errorf("table %s does not exist", table)
	}

	records := tbl.Heap.SeqScan()
	payloads := make([][]byte, len(records))
	for i, rec := range records {
		payloads[i] = rec.Data
	}
	return impex.Export(w, payloads, db.cfg.SnapshotAlgorithm())
}

// ImportTable bulk-loads a snapshot into an existing table, maintaining
// its indexes. Rows violating an index (duplicate or non-integer keys)
// are skipped and counted.
func (db *DB) ImportTable(table string, r io.Reader) (imported, skipped int, err error) {
	tbl, ok := db.catalog.Table(table)
	if !ok {
		return 0, 0, fmt.Errorf("table %s does not exist", table)
	}

	payloads, _, err := impex.Import(r)
	if err != nil {
		return 0, 0, err
	}

	indexes := db.catalog.TableIndexes(table)
	for _, payload := range payloads {
		fields := decodeRow(payload)
		if len(fields) != len(tbl.Columns) {
			skipped++
			continue
		}
		keys, ok := indexKeysFor(tbl, indexes, fields)
		if !ok {
			skipped++
			continue
		}

		rid := tbl.Heap.Insert(storage.Record{Data: payload})
		if !rid.Valid() {
			return imported, skipped, fmt.Errorf("import into %s failed after %d rows", table, imported)
		}
		for _, idx := range indexes {
			idx.Tree.Insert(keys[idx.Column], rid)
		}
		imported++
	}
	return imported, skipped, nil
}

// indexKeysFor extracts and pre-checks every index key of a row
func indexKeysFor(tbl *TableInfo, indexes []*IndexInfo, fields []string) (map[string]int32, bool) {
	keys := make(map[string]int32, len(indexes))
	for _, idx := range indexes {
		colIdx, ok := tbl.ColumnIndex(idx.Column)
		if !ok || colIdx >= len(fields) {
			return nil, false
		}
		k, ok := parseKey(fields[colIdx])
		if !ok {
			return nil, false
		}
		if _, found := idx.Tree.Search(k); found {
			return nil, false
		}
		keys[idx.Column] = k
	}
	return keys, true
}

func parseKey(s string) (int32, bool) {
	k, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(k), true
}

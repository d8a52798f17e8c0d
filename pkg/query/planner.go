package query

import (
	"fmt"

	"github.com/syloe1/lightDb/pkg/logger"
)

// IndexLookup is the catalog surface the planner consults
type IndexLookup interface {
	LookupIndex(table, column string) (name string, ok bool)
}

// Planner turns statements into physical plans with one rule: a predicate
// over an indexed column becomes an index scan, everything else a
// sequential scan.
type Planner struct {
	catalog IndexLookup
}

// NewPlanner creates a planner over the given catalog
func NewPlanner(catalog IndexLookup) *Planner {
	return &Planner{catalog: catalog}
}

// Plan converts a parsed statement into a physical plan
func (pl *Planner) Plan(stmt Statement) (Plan, error) {
	switch s := stmt.(type) {
	case *SelectStatement:
		return pl.planScan(s.Table, s.Columns, s.Where), nil
	case *InsertStatement:
		return &InsertPlan{Table: s.Table, Values: s.Values}, nil
	case *DeleteStatement:
		return &DeletePlan{Source: pl.planScan(s.Table, []string{"*"}, s.Where)}, nil
	case *UpdateStatement:
		return &UpdatePlan{
			Source: pl.planScan(s.Table, []string{"*"}, s.Where),
			Sets:   s.Sets,
		}, nil
	case *CreateTableStatement:
		return &CreateTablePlan{Table: s.Table, Columns: s.Columns}, nil
	}
	return nil, fmt.Errorf("unsupported statement type %T", stmt)
}

// planScan picks an index scan when some WHERE condition names an indexed
// column with a sargable operator; the remaining conditions become
// residual filters. Otherwise it falls back to a sequential scan.
func (pl *Planner) planScan(table string, columns []string, where []Condition) Plan {
	for i, cond := range where {
		if !sargable(cond.Op) || cond.Value.Type == ValueColumnRef {
			continue
		}
		idxName, ok := pl.catalog.LookupIndex(table, cond.Column)
		if !ok {
			continue
		}
		residual := make([]Condition, 0, len(where)-1)
		residual = append(residual, where[:i]...)
		residual = append(residual, where[i+1:]...)
		logger.Infof("planner: index %s on %s.%s, using index scan", idxName, table, cond.Column)
		return &IndexScanPlan{
			Table:     table,
			IndexName: idxName,
			Column:    cond.Column,
			Op:        cond.Op,
			Value:     cond.Value,
			Columns:   columns,
			Residual:  residual,
		}
	}
	logger.Infof("planner: no usable index on %s, using seq scan", table)
	return &SeqScanPlan{Table: table, Columns: columns, Predicates: where}
}

// sargable reports whether the operator can drive an index scan
func sargable(op string) bool {
	switch op {
	case "=", ">", "<", ">=", "<=":
		return true
	}
	return false
}

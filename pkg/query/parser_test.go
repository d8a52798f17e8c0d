package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE users (id INT, name VARCHAR(50));")
	require.NoError(t, err)

	create, ok := stmt.(*CreateTableStatement)
	require.True(t, ok, "expected CreateTableStatement, got %T", stmt)
	assert.Equal(t, "users", create.Table)
	require.Len(t, create.Columns, 2)
	assert.Equal(t, ColumnDef{Name: "id", Type: "int"}, create.Columns[0])
	assert.Equal(t, ColumnDef{Name: "name", Type: "varchar", Length: 50}, create.Columns[1])
}

func TestParseInsert(t *testing.T) {
	stmt, err := Parse("INSERT INTO users VALUES (1, 'Alice');")
	require.NoError(t, err)

	insert, ok := stmt.(*InsertStatement)
	require.True(t, ok)
	assert.Equal(t, "users", insert.Table)
	require.Len(t, insert.Values, 2)
	assert.Equal(t, Value{Type: ValueInt, Raw: "1"}, insert.Values[0])
	assert.Equal(t, Value{Type: ValueString, Raw: "Alice"}, insert.Values[1])
}

func TestParseSelect(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users WHERE id = 1;")
	require.NoError(t, err)

	sel, ok := stmt.(*SelectStatement)
	require.True(t, ok)
	assert.Equal(t, "users", sel.Table)
	assert.Equal(t, []string{"*"}, sel.Columns)
	require.Len(t, sel.Where, 1)
	assert.Equal(t, Condition{Column: "id", Op: "=", Value: Value{Type: ValueInt, Raw: "1"}}, sel.Where[0])
}

func TestParseSelectColumnsAndConjunction(t *testing.T) {
	stmt, err := Parse("SELECT id, name FROM users WHERE id >= 10 AND name = 'Bob';")
	require.NoError(t, err)

	sel := stmt.(*SelectStatement)
	assert.Equal(t, []string{"id", "name"}, sel.Columns)
	require.Len(t, sel.Where, 2)
	assert.Equal(t, ">=", sel.Where[0].Op)
	assert.Equal(t, Condition{Column: "name", Op: "=", Value: Value{Type: ValueString, Raw: "Bob"}}, sel.Where[1])
}

func TestParseUpdate(t *testing.T) {
	stmt, err := Parse("UPDATE users SET name = 'Bob', age = 30 WHERE id = 1;")
	require.NoError(t, err)

	update, ok := stmt.(*UpdateStatement)
	require.True(t, ok)
	assert.Equal(t, "users", update.Table)
	require.Len(t, update.Sets, 2)
	assert.Equal(t, Assignment{Column: "name", Value: Value{Type: ValueString, Raw: "Bob"}}, update.Sets[0])
	assert.Equal(t, Assignment{Column: "age", Value: Value{Type: ValueInt, Raw: "30"}}, update.Sets[1])
	require.Len(t, update.Where, 1)
}

func TestParseDelete(t *testing.T) {
	stmt, err := Parse("DELETE FROM users WHERE id != 5;")
	require.NoError(t, err)

	del, ok := stmt.(*DeleteStatement)
	require.True(t, ok)
	assert.Equal(t, "users", del.Table)
	require.Len(t, del.Where, 1)
	assert.Equal(t, "!=", del.Where[0].Op)
}

func TestParseDeleteWithoutWhere(t *testing.T) {
	stmt, err := Parse("DELETE FROM users;")
	require.NoError(t, err)
	assert.Empty(t, stmt.(*DeleteStatement).Where)
}

func TestParseMissingTableName(t *testing.T) {
	_, err := Parse("SELECT * FROM ;")
	require.Error(t, err)
	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Msg, "table name")
}

func TestParseTrailingGarbage(t *testing.T) {
	_, err := Parse("SELECT * FROM users; SELECT")
	require.Error(t, err)
}

func TestParseNotAStatement(t *testing.T) {
	_, err := Parse("EXPLAIN SELECT 1;")
	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Msg, "statement keyword")
}

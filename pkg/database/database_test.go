package database

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syloe1/lightDb/pkg/config"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db := Open(config.Default())
	_, err := db.Execute("CREATE TABLE users (id INT, name VARCHAR(50));")
	require.NoError(t, err)
	return db
}

func seedUsers(t *testing.T, db *DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := db.Execute(fmt.Sprintf("INSERT INTO users VALUES (%d, 'user_%d');", i, i))
		require.NoError(t, err)
	}
}

func TestCreateTableTwice(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Execute("CREATE TABLE users (id INT);")
	assert.ErrorContains(t, err, "already exists")
}

func TestInsertAndSeqScanSelect(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 10)

	res, err := db.Execute("SELECT * FROM users;")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, res.Columns)
	require.Len(t, res.Rows, 10)
	assert.Equal(t, []string{"0", "user_0"}, res.Rows[0])
	assert.Equal(t, []string{"9", "user_9"}, res.Rows[9])
}

func TestSelectWithPredicates(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 20)

	res, err := db.Execute("SELECT name FROM users WHERE id >= 5 AND id < 8;")
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, res.Columns)
	assert.Equal(t, [][]string{{"user_5"}, {"user_6"}, {"user_7"}}, res.Rows)

	res, err = db.Execute("SELECT * FROM users WHERE name = 'user_3';")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"3", "user_3"}, res.Rows[0])
}

func TestIndexScanMatchesSeqScan(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 100)

	// Snapshot the seq-scan answers before the index exists.
	seqEq, err := db.Execute("SELECT * FROM users WHERE id = 42;")
	require.NoError(t, err)
	seqRange, err := db.Execute("SELECT * FROM users WHERE id > 90;")
	require.NoError(t, err)

	_, err = db.Catalog().CreateIndex("users", "id")
	require.NoError(t, err)

	idxEq, err := db.Execute("SELECT * FROM users WHERE id = 42;")
	require.NoError(t, err)
	assert.Equal(t, seqEq.Rows, idxEq.Rows)

	idxRange, err := db.Execute("SELECT * FROM users WHERE id > 90;")
	require.NoError(t, err)
	assert.Equal(t, seqRange.Rows, idxRange.Rows)
	assert.Len(t, idxRange.Rows, 9)

	res, err := db.Execute("SELECT * FROM users WHERE id <= 2;")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
}

func TestIndexRejectsDuplicateKey(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 5)
	_, err := db.Catalog().CreateIndex("users", "id")
	require.NoError(t, err)

	_, err = db.Execute("INSERT INTO users VALUES (3, 'imposter');")
	assert.ErrorContains(t, err, "duplicate key")

	// The failed insert must not leave an orphan row behind.
	res, err := db.Execute("SELECT * FROM users WHERE id = 3;")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "user_3", res.Rows[0][1])
}

func TestDeleteMaintainsIndex(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 10)
	_, err := db.Catalog().CreateIndex("users", "id")
	require.NoError(t, err)

	res, err := db.Execute("DELETE FROM users WHERE id = 4;")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)

	res, err = db.Execute("SELECT * FROM users WHERE id = 4;")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)

	// The key can be reused once deleted.
	_, err = db.Execute("INSERT INTO users VALUES (4, 'revenant');")
	require.NoError(t, err)
	res, err = db.Execute("SELECT name FROM users WHERE id = 4;")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"revenant"}}, res.Rows)
}

func TestUpdateRewritesRowAndIndex(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 10)
	_, err := db.Catalog().CreateIndex("users", "id")
	require.NoError(t, err)

	res, err := db.Execute("UPDATE users SET name = 'renamed' WHERE id = 7;")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)

	res, err = db.Execute("SELECT name FROM users WHERE id = 7;")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"renamed"}}, res.Rows)

	// Updating the key column moves the index entry.
	_, err = db.Execute("UPDATE users SET id = 700 WHERE id = 7;")
	require.NoError(t, err)
	res, err = db.Execute("SELECT * FROM users WHERE id = 7;")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	res, err = db.Execute("SELECT name FROM users WHERE id = 700;")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"renamed"}}, res.Rows)
}

func TestDeleteAllWithoutWhere(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 10)

	res, err := db.Execute("DELETE FROM users;")
	require.NoError(t, err)
	assert.Equal(t, 10, res.Affected)

	res, err = db.Execute("SELECT * FROM users;")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestInsertArityAndTypeChecks(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Execute("INSERT INTO users VALUES (1);")
	assert.ErrorContains(t, err, "2 columns")

	_, err = db.Execute("INSERT INTO users VALUES ('one', 'Alice');")
	assert.ErrorContains(t, err, "expects an integer")
}

func TestUnknownTableAndColumn(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 1)

	_, err := db.Execute("SELECT * FROM ghosts;")
	assert.ErrorContains(t, err, "does not exist")

	_, err = db.Execute("SELECT phantom FROM users;")
	assert.ErrorContains(t, err, "does not exist")

	_, err = db.Execute("SELECT * FROM users WHERE phantom = 1;")
	assert.ErrorContains(t, err, "does not exist")
}

func TestSyntaxErrorSurfaces(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Execute("SELECT * FROM ;")
	assert.ErrorContains(t, err, "syntax error")
}

func TestCreateIndexRequiresIntColumn(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Catalog().CreateIndex("users", "name")
	assert.ErrorContains(t, err, "not indexable")
}

func TestCreateIndexBackfillsExistingRows(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 50)

	_, err := db.Catalog().CreateIndex("users", "id")
	require.NoError(t, err)

	res, err := db.Execute("SELECT * FROM users WHERE id = 49;")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"49", "user_49"}, res.Rows[0])
}

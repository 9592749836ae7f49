package migrations

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsPresent(t *testing.T) {
	pg, err := fs.ReadDir(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.NotEmpty(t, pg)

	ch, err := fs.ReadDir(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	assert.NotEmpty(t, ch)

	for _, e := range ch {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+e.Name())
		require.NoError(t, err)
		assert.NoError(t, validateNoSemicolonInStrings(string(data)), e.Name())
		assert.NotEmpty(t, splitStatements(string(data)), e.Name())
	}
}

func TestSplitStatements(t *testing.T) {
	sql := "-- header\nCREATE TABLE a (x Int8);\n\nCREATE TABLE b (y Int8)\nENGINE = Memory;\n"
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int8)", stmts[0])
	assert.Equal(t, "CREATE TABLE b (y Int8)\nENGINE = Memory", stmts[1])
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'it''s'; SELECT 1;"))
	assert.Error(t, validateNoSemicolonInStrings("SELECT 'a;b'"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/thorswap")
	require.NoError(t, err)
	assert.Equal(t, "thorswap", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestLoad_OrdersAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql":   {Data: []byte("CREATE TABLE b (y INT);")},
		"m/001_a.sql":   {Data: []byte("CREATE TABLE a (x INT);")},
		"m/003_c.sql":   {Data: []byte("  \n")},
		"m/README.md":   {Data: []byte("notes")},
		"m/sub/004.sql": {Data: []byte("SELECT 1;")},
	}

	migs, err := Load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "001_a", migs[0].Version)
	assert.Equal(t, "002_b", migs[1].Version)
	assert.Contains(t, migs[1].SQL, "CREATE TABLE b")
}

func TestLoad_Embedded(t *testing.T) {
	pg, err := Load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Equal(t, "001_canonical_records", pg[0].Version)

	ch, err := Load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 1)
	assert.Equal(t, "001_fitted_distributions", ch[0].Version)
}

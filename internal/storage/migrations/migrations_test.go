package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Equal(t, "001_scoreboard.sql", pg[0].name)
	assert.Contains(t, pg[0].sql, "ON scoreboard_snapshots")

	ch, err := load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)

	stmts, err := splitStatements(ch[0].sql)
	require.NoError(t, err)
	assert.Len(t, stmts, 1)
}

func TestSplitStatements(t *testing.T) {
	stmts, err := splitStatements("-- header; ignored\nCREATE TABLE a (x String);\n\nINSERT INTO a VALUES ('it''s');\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TABLE a (x String)", "INSERT INTO a VALUES ('it''s')"}, stmts)

	_, err = splitStatements("INSERT INTO a VALUES ('x;y');")
	assert.Error(t, err)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/scoreloop")
	require.NoError(t, err)
	assert.Equal(t, "scoreloop", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

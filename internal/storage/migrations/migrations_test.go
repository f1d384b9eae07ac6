package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	stmts, err := splitStatements(`
-- header comment
CREATE TABLE a (x String);

CREATE TABLE b (
    y String DEFAULT 'v'
) ENGINE = MergeTree ORDER BY y;
`)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x String)", stmts[0])
	assert.Contains(t, stmts[1], "DEFAULT 'v'")
}

func TestSplitStatementsRejectsQuotedSemicolon(t *testing.T) {
	_, err := splitStatements(`INSERT INTO a VALUES ('x;y');`)
	assert.ErrorIs(t, err, errSemicolonInString)
}

func TestEmbeddedFilesSplitCleanly(t *testing.T) {
	for _, dir := range []string{"postgres", "clickhouse"} {
		fsys := PostgresFS
		if dir == "clickhouse" {
			fsys = ClickhouseFS
		}
		files, err := sqlFiles(fsys, dir)
		require.NoError(t, err)
		assert.NotEmpty(t, files, dir)
		for _, f := range files {
			data, err := fsys.ReadFile(dir + "/" + f)
			require.NoError(t, err)
			_, err = splitStatements(string(data))
			assert.NoError(t, err, f)
		}
	}
}

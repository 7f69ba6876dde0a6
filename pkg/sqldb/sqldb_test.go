package sqldb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	tests := map[string]Dialect{
		"sqlite3":    SQLite,
		"SQLite":     SQLite,
		"postgresql": Postgres,
		"mysql":      MySQL,
	}
	for in, want := range tests {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", Postgres.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, q, MySQL.Rebind(q))
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		dialect Dialect
		dsn     string
	}{
		{"data/budget.db", SQLite, "data/budget.db"},
		{"sqlite://data/budget.db", SQLite, "data/budget.db"},
		{"postgres://u:p@localhost/tally?sslmode=disable", Postgres, "postgres://u:p@localhost/tally?sslmode=disable"},
		{"mysql://u:p@tcp(localhost:3306)/tally", MySQL, "u:p@tcp(localhost:3306)/tally"},
	}
	for _, tt := range tests {
		d, dsn := ParseURL(tt.url)
		assert.Equal(t, tt.dialect, d, tt.url)
		assert.Equal(t, tt.dsn, dsn, tt.url)
	}
}

func TestMySQLConfig_ReportsMatchedRows(t *testing.T) {
	_, dsn := ParseURL("mysql://u:p@tcp(localhost:3306)/tally?parseTime=true")
	cfg, err := mysqlConfig(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ClientFoundRows)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "tally", cfg.DBName)
	assert.Equal(t, "localhost:3306", cfg.Addr)

	_, err = mysqlConfig("u:p@bogus(localhost")
	assert.Error(t, err)
}

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(context.Background(), SQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO t VALUES (1)")
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM t").Scan(&n))
	assert.Equal(t, 1, n)

	_, err = Open(context.Background(), SQLite, "")
	assert.Error(t, err)
}

func TestPool_SharesByURL(t *testing.T) {
	dir := t.TempDir()
	pool := NewPool()
	ctx := context.Background()

	a, dialect, err := pool.Get(ctx, dir+"/ledger.db")
	require.NoError(t, err)
	assert.Equal(t, SQLite, dialect)

	b, _, err := pool.Get(ctx, "sqlite://"+dir+"/ledger.db")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, _, err := pool.Get(ctx, dir+"/sessions.db")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, pool.Len())

	require.NoError(t, pool.Close())
	assert.Zero(t, pool.Len())
	assert.Error(t, a.PingContext(ctx), "closed by the pool")
}

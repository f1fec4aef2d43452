package repository

import (
	"database/sql"
	_ "embed"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

//go:embed schema/postgres.sql
var postgresSchema string

// dialect captures the differences between the SQL backends.
type dialect struct {
	driver    string
	schema    string
	txOptions *sql.TxOptions
	// maxOpenConns of 0 leaves the pool unbounded.
	maxOpenConns int
	numbered     bool
}

func dialectFor(driver string) (dialect, bool) {
	switch driver {
	case DriverSQLite:
		// A single connection keeps per-connection pragmas in force and
		// serializes writers the way SQLite wants them.
		return dialect{driver: DriverSQLite, schema: sqliteSchema, maxOpenConns: 1}, true
	case DriverPostgres:
		return dialect{
			driver:    DriverPostgres,
			schema:    postgresSchema,
			txOptions: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
			numbered:  true,
		}, true
	}
	return dialect{}, false
}

// rebind rewrites "?" placeholders to "$n" for drivers that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// sqliteDSN adds the pragmas the store relies on unless the caller already set some.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

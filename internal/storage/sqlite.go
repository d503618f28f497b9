package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DB wraps a SQL connection and the dialect differences the document store
// cares about: placeholders, upserts and column types.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open connects to driver/dsn and runs the migrations. For sqlite, dsn is a
// file path whose directory is created if needed.
func Open(driver, dsn string) (*DB, error) {
	var conn *sql.DB
	var err error
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
		conn, err = sql.Open("sqlite", dsn+sqliteParams(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY
		conn.SetMaxOpenConns(1)
	case DriverMySQL:
		if !strings.Contains(dsn, "parseTime=") {
			dsn += sep(dsn) + "parseTime=true&charset=utf8mb4"
		}
		conn, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
	case DriverPostgres:
		conn, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db := &DB{conn: conn, driver: driver}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func sqliteParams(dsn string) string {
	if dsn == ":memory:" {
		return ""
	}
	return sep(dsn) + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func sep(dsn string) string {
	if strings.Contains(dsn, "?") {
		return "&"
	}
	return "?"
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Driver returns the driver name the DB was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// rebind rewrites ? placeholders to $n for postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// upsertHead returns the dialect's upsert clause for a table keyed by key,
// setting cols to the inserted values.
func (db *DB) upsertHead(key string, cols ...string) string {
	sets := make([]string, len(cols))
	if db.driver == DriverMySQL {
		for i, c := range cols {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
}

func (db *DB) migrate() error {
	text, key := "TEXT", "TEXT"
	switch db.driver {
	case DriverMySQL:
		text, key = "LONGTEXT", "VARCHAR(191)"
	}
	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id %s PRIMARY KEY,
			revision BIGINT NOT NULL DEFAULT 0,
			updated_at BIGINT NOT NULL DEFAULT 0
		)`, key),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_revisions (
			document_id %s NOT NULL,
			revision BIGINT NOT NULL,
			state_json %s NOT NULL,
			size_bytes BIGINT NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (document_id, revision)
		)`, key, text),
	}
	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %s: %w", strings.Join(strings.Fields(m), " ")[:40], err)
		}
	}
	return nil
}

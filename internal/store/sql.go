package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

// Dialect selects the SQL flavour of a SQLStore.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// SQLStore is a cache backend on a shared SQL database. Rows are scoped by namespace so
// several applications can share one database, and the same namespace is shared by
// every process of one application.
type SQLStore struct {
	db        *sql.DB
	dialect   Dialect
	namespace string
	now       func() time.Time
}

// OpenSQLite opens (creating if needed) dir/namespace/cache.db.
func OpenSQLite(ctx context.Context, dir, namespace string, now func() time.Time) (*SQLStore, error) {
	folder := filepath.Join(dir, namespace)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", folder, err)
	}
	dsn := "file:" + filepath.Join(folder, "cache.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open(string(SQLite), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	return NewSQLStore(ctx, db, SQLite, namespace, now)
}

// OpenPostgres connects to the database at dsn.
func OpenPostgres(ctx context.Context, dsn, namespace string, now func() time.Time) (*SQLStore, error) {
	db, err := sql.Open(string(Postgres), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres cache: %w", err)
	}
	return NewSQLStore(ctx, db, Postgres, namespace, now)
}

// NewSQLStore wraps db and ensures the cache table exists.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, namespace string, now func() time.Time) (*SQLStore, error) {
	if now == nil {
		now = time.Now
	}
	s := &SQLStore{db: db, dialect: dialect, namespace: namespace, now: now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	blob := "BLOB"
	if s.dialect == Postgres {
		blob = "BYTEA"
	}
	stmt := `CREATE TABLE IF NOT EXISTS cache_entries (
		namespace   TEXT NOT NULL,
		location_id TEXT NOT NULL,
		kind        TEXT NOT NULL,
		payload     ` + blob + ` NOT NULL,
		expires_at  BIGINT NOT NULL,
		PRIMARY KEY (namespace, location_id, kind)
	)`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
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

// Save upserts the entry for key in a single statement.
func (s *SQLStore) Save(ctx context.Context, key weather.CacheKey, payload []byte, ttl time.Duration) error {
	q := s.rebind(`INSERT INTO cache_entries (namespace, location_id, kind, payload, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (namespace, location_id, kind)
		DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`)
	expires := s.now().Add(ttl).UnixNano()
	if _, err := s.db.ExecContext(ctx, q, s.namespace, key.LocationID, string(key.Kind), payload, expires); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, key weather.CacheKey) ([]byte, error) {
	q := s.rebind(`SELECT payload FROM cache_entries
		WHERE namespace = ? AND location_id = ? AND kind = ? AND expires_at > ?`)
	var payload []byte
	err := s.db.QueryRowContext(ctx, q, s.namespace, key.LocationID, string(key.Kind), s.now().UnixNano()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, weather.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return payload, nil
}

func (s *SQLStore) Invalidate(ctx context.Context, key weather.CacheKey) error {
	q := s.rebind(`DELETE FROM cache_entries WHERE namespace = ? AND location_id = ? AND kind = ?`)
	if _, err := s.db.ExecContext(ctx, q, s.namespace, key.LocationID, string(key.Kind)); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) InvalidateAll(ctx context.Context) error {
	q := s.rebind(`DELETE FROM cache_entries WHERE namespace = ?`)
	if _, err := s.db.ExecContext(ctx, q, s.namespace); err != nil {
		return fmt.Errorf("invalidate namespace %s: %w", s.namespace, err)
	}
	return nil
}

// Prune deletes expired rows and returns how many were removed.
func (s *SQLStore) Prune(ctx context.Context) (int64, error) {
	q := s.rebind(`DELETE FROM cache_entries WHERE namespace = ? AND expires_at <= ?`)
	res, err := s.db.ExecContext(ctx, q, s.namespace, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune namespace %s: %w", s.namespace, err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite"
)

// SQLite is an embedded document database: one table per collection, each
// row holding a JSON document plus the columns needed for ordering.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database at path and ensures the
// data directory exists.
func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	// Pragmas go in the DSN so every pooled connection gets them: WAL for
	// concurrent readers, a busy timeout so writers wait instead of failing
	// with SQLITE_BUSY, and synchronous=NORMAL which is safe under WAL.
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "cache_size(-8000)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

// Ping checks the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SQLiteCollection is a Collection stored in one SQLite table.
type SQLiteCollection[T any, PT docPtr[T]] struct {
	db     *sql.DB
	schema Schema
	now    func() time.Time
}

// NewSQLiteCollection creates the table and indexes for schema if missing.
func NewSQLiteCollection[T any, PT docPtr[T]](ctx context.Context, s *SQLite, schema Schema) (*SQLiteCollection[T, PT], error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	c := &SQLiteCollection[T, PT]{db: s.db, schema: schema, now: time.Now}
	if err := c.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema %s: %w", schema.Name, err)
	}
	return c, nil
}

func (c *SQLiteCollection[T, PT]) ensureSchema(ctx context.Context) error {
	name := c.schema.Name
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    id TEXT PRIMARY KEY,
    doc TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s(created_at);
`, name))
	if err != nil {
		return err
	}
	for _, field := range c.schema.Unique {
		stmt := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS ux_%[1]s_%[2]s ON %[1]s (json_extract(doc, '$.%[2]s'))`, name, field)
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Insert assigns an id and timestamps to doc and stores it.
func (c *SQLiteCollection[T, PT]) Insert(ctx context.Context, doc *T) error {
	meta := PT(doc).DocumentMeta()
	meta.touch(c.stamp())
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", c.schema.Name, err)
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc, created_at, updated_at) VALUES (?, ?, ?, ?)`, c.schema.Name),
		meta.ID.Hex(), string(body), meta.CreatedAt.UnixNano(), meta.UpdatedAt.UnixNano())
	return c.wrap(err)
}

// Find returns all documents matching opts.Filter in opts.Sort order.
func (c *SQLiteCollection[T, PT]) Find(ctx context.Context, opts FindOptions) ([]T, error) {
	where, args, err := c.where(opts.Filter)
	if err != nil {
		return nil, err
	}
	order, err := c.orderBy(opts.Sort)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s%s%s`, c.schema.Name, where, order), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []T{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", c.schema.Name, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// FindByID returns the document with the given hex id.
func (c *SQLiteCollection[T, PT]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	row := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, c.schema.Name), oid.Hex())
	return c.scanOne(row)
}

// FindOne returns the first document matching filter.
func (c *SQLiteCollection[T, PT]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return nil, err
	}
	row := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s%s ORDER BY rowid LIMIT 1`, c.schema.Name, where), args...)
	return c.scanOne(row)
}

// Replace overwrites the stored document with id by doc.
func (c *SQLiteCollection[T, PT]) Replace(ctx context.Context, id string, doc *T) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	meta := PT(doc).DocumentMeta()
	meta.ID = oid
	meta.touch(c.stamp())
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", c.schema.Name, err)
	}
	res, err := c.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET doc = ?, updated_at = ? WHERE id = ?`, c.schema.Name),
		string(body), meta.UpdatedAt.UnixNano(), oid.Hex())
	if err != nil {
		return c.wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document with id and returns it.
func (c *SQLiteCollection[T, PT]) Delete(ctx context.Context, id string) (*T, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	row := c.db.QueryRowContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ? RETURNING doc`, c.schema.Name), oid.Hex())
	return c.scanOne(row)
}

func (c *SQLiteCollection[T, PT]) scanOne(row *sql.Row) (*T, error) {
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	doc := new(T)
	if err := json.Unmarshal([]byte(body), doc); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", c.schema.Name, err)
	}
	return doc, nil
}

// stamp matches the millisecond precision MongoDB stores dates with.
func (c *SQLiteCollection[T, PT]) stamp() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

func (c *SQLiteCollection[T, PT]) where(filter Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		expr, err := c.fieldExpr(k)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, expr+" = ?")
		args = append(args, sqliteValue(filter[k]))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (c *SQLiteCollection[T, PT]) orderBy(fields []SortField) (string, error) {
	if len(fields) == 0 {
		return " ORDER BY rowid", nil
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		expr, err := c.fieldExpr(f.Field)
		if err != nil {
			return "", err
		}
		if c.schema.isTimeField(f.Field) {
			expr = "julianday(" + expr + ")"
		}
		dir := " ASC"
		if f.Desc {
			dir = " DESC"
		}
		parts = append(parts, expr+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (c *SQLiteCollection[T, PT]) fieldExpr(field string) (string, error) {
	switch field {
	case "_id":
		return "id", nil
	case "createdAt":
		return "created_at", nil
	case "updatedAt":
		return "updated_at", nil
	}
	if !identRe.MatchString(field) {
		return "", fmt.Errorf("store: invalid field name %q", field)
	}
	return fmt.Sprintf("json_extract(doc, '$.%s')", field), nil
}

func (c *SQLiteCollection[T, PT]) wrap(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s: %v", ErrDuplicate, c.schema.Name, err)
	}
	return err
}

// sqliteValue converts filter values to what json_extract yields.
func sqliteValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case primitive.ObjectID:
		return x.Hex()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// Package postgres implements a relational adapter on PostgreSQL using pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/model"
)

// Conn is the subset of *pgxpool.Pool the store uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

var _ Conn = (*pgxpool.Pool)(nil)

// Store is a relational data store and data source backed by PostgreSQL.
type Store struct {
	id     model.AdapterID
	name   string
	schema string
	conn   Conn
}

// Option configures a Store.
type Option func(*Store)

// WithSchema sets the schema allocations are created in. Default is "public".
func WithSchema(schema string) Option {
	return func(s *Store) {
		s.schema = schema
	}
}

// New returns a store using conn.
func New(id model.AdapterID, name string, conn Conn, opts ...Option) *Store {
	s := &Store{id: id, name: name, schema: "public", conn: conn}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a connection pool for dsn and returns a store using it.
func Connect(ctx context.Context, id model.AdapterID, name, dsn string, opts ...Option) (*Store, *pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return New(id, name, pool, opts...), pool, nil
}

func (s *Store) ID() model.AdapterID { return s.id }
func (s *Store) Name() string        { return s.name }

func (s *Store) Supports(m model.DataModel) bool { return m == model.Relational }

func (s *Store) exec(ctx context.Context, op, sql string) error {
	_, err := s.conn.Exec(ctx, sql)
	return adapter.Wrap(s.id, op, err)
}

func (s *Store) CreateTable(ctx context.Context, t adapter.Table) error {
	return s.exec(ctx, "create table", s.createTableSQL(t))
}

func (s *Store) DropTable(ctx context.Context, t adapter.Table) error {
	return s.exec(ctx, "drop table", "DROP TABLE IF EXISTS "+s.ident(t.Name()))
}

func (s *Store) AddColumn(ctx context.Context, t adapter.Table, c adapter.Column) error {
	return s.exec(ctx, "add column", fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", s.ident(t.Name()), columnDef(c)))
}

func (s *Store) DropColumn(ctx context.Context, t adapter.Table, c adapter.Column) error {
	return s.exec(ctx, "drop column", fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", s.ident(t.Name()), quote(c.Name())))
}

func (s *Store) UpdateColumnType(ctx context.Context, t adapter.Table, c adapter.Column) error {
	typ := columnType(c)
	return s.exec(ctx, "update column type", fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
		s.ident(t.Name()), quote(c.Name()), typ, quote(c.Name()), typ))
}

func (s *Store) Truncate(ctx context.Context, t adapter.Table) error {
	return s.exec(ctx, "truncate", "TRUNCATE TABLE "+s.ident(t.Name()))
}

func (s *Store) AddIndex(ctx context.Context, t adapter.Table, idx adapter.Index) error {
	return s.exec(ctx, "add index", s.createIndexSQL(t, idx))
}

func (s *Store) DropIndex(ctx context.Context, _ adapter.Table, idx adapter.Index) error {
	return s.exec(ctx, "drop index", "DROP INDEX IF EXISTS "+s.ident(idx.Name()))
}

func (s *Store) ScanRows(ctx context.Context, t adapter.Table, fn func(adapter.Row) error) error {
	rows, err := s.conn.Query(ctx, s.selectSQL(t))
	if err != nil {
		return adapter.Wrap(s.id, "scan", err)
	}
	defer rows.Close()

	ids := t.ColumnIDs()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return adapter.Wrap(s.id, "scan", err)
		}
		row := make(adapter.Row, len(ids))
		for i, id := range ids {
			row[id] = values[i]
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return adapter.Wrap(s.id, "scan", rows.Err())
}

// WriteRows upserts through a batch when t has a primary key and uses COPY
// otherwise.
func (s *Store) WriteRows(ctx context.Context, t adapter.Table, rows []adapter.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if len(t.PrimaryKey) == 0 {
		return s.copyRows(ctx, t, rows)
	}

	b := &pgx.Batch{}
	for _, r := range rows {
		cols := rowColumns(t, r)
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = r[c]
		}
		b.Queue(s.upsertSQL(t, cols), args...)
	}
	return adapter.Wrap(s.id, "write", s.conn.SendBatch(ctx, b).Close())
}

func (s *Store) copyRows(ctx context.Context, t adapter.Table, rows []adapter.Row) error {
	ids := t.ColumnIDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = adapter.ColumnName(id)
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = make([]any, len(ids))
		for j, id := range ids {
			values[i][j] = r[id]
		}
	}
	_, err := s.conn.CopyFrom(ctx, pgx.Identifier{s.schema, t.Name()}, names, pgx.CopyFromRows(values))
	return adapter.Wrap(s.id, "copy", err)
}

// ExportedColumns lists the tables of the schema with their columns.
func (s *Store) ExportedColumns(ctx context.Context) (map[string][]adapter.ExportedColumn, error) {
	const q = `SELECT c.table_name, c.column_name, c.data_type, c.is_nullable, c.ordinal_position,
       COALESCE(tc.constraint_type = 'PRIMARY KEY', false)
  FROM information_schema.columns c
  LEFT JOIN information_schema.key_column_usage k
    ON k.table_schema = c.table_schema AND k.table_name = c.table_name AND k.column_name = c.column_name
  LEFT JOIN information_schema.table_constraints tc
    ON tc.constraint_name = k.constraint_name AND tc.table_schema = k.table_schema
 WHERE c.table_schema = $1
 ORDER BY c.table_name, c.ordinal_position`

	rows, err := s.conn.Query(ctx, q, s.schema)
	if err != nil {
		return nil, adapter.Wrap(s.id, "exported columns", err)
	}
	defer rows.Close()

	out := make(map[string][]adapter.ExportedColumn)
	for rows.Next() {
		var (
			table, column, dataType, nullable string
			position                          int32
			pk                                bool
		)
		if err := rows.Scan(&table, &column, &dataType, &nullable, &position, &pk); err != nil {
			return nil, adapter.Wrap(s.id, "exported columns", err)
		}
		out[table] = append(out[table], adapter.ExportedColumn{
			Name:       column,
			Type:       polyType(dataType),
			Nullable:   nullable == "YES",
			Position:   int(position),
			PrimaryKey: pk,
		})
	}
	return out, adapter.Wrap(s.id, "exported columns", rows.Err())
}

// polyType maps an information_schema data type back to a PolyType.
func polyType(dataType string) model.PolyType {
	dt := strings.ToLower(dataType)
	switch {
	case dt == "boolean":
		return model.TypeBoolean
	case dt == "smallint":
		return model.TypeSmallInt
	case dt == "integer":
		return model.TypeInteger
	case dt == "bigint":
		return model.TypeBigInt
	case dt == "numeric":
		return model.TypeDecimal
	case dt == "real":
		return model.TypeReal
	case dt == "double precision":
		return model.TypeDouble
	case dt == "date":
		return model.TypeDate
	case strings.HasPrefix(dt, "time "), dt == "time":
		return model.TypeTime
	case strings.HasPrefix(dt, "timestamp"):
		return model.TypeTimestamp
	case dt == "character":
		return model.TypeChar
	case dt == "character varying":
		return model.TypeVarchar
	case dt == "json", dt == "jsonb":
		return model.TypeJSON
	case dt == "bytea":
		return model.TypeBlob
	case strings.HasSuffix(dt, "[]"), dt == "array":
		return model.TypeArray
	default:
		return model.TypeText
	}
}

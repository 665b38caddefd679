// Package mysql implements a relational adapter on MySQL using database/sql
// and go-sql-driver/mysql.
package mysql

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/model"
)

// Store is a relational data store backed by MySQL.
type Store struct {
	id   model.AdapterID
	name string
	db   *sql.DB
}

// New returns a store using db.
func New(id model.AdapterID, name string, db *sql.DB) *Store {
	return &Store{id: id, name: name, db: db}
}

// Config holds MySQL connection parameters.
type Config struct {
	Addr     string
	User     string
	Password string
	Database string
}

// Connect opens and pings a connection pool.
func Connect(ctx context.Context, id model.AdapterID, name string, cfg Config) (*Store, error) {
	dc := mysqldriver.NewConfig()
	dc.Net = "tcp"
	dc.Addr = cfg.Addr
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.DBName = cfg.Database
	dc.ParseTime = true

	db, err := sql.Open("mysql", dc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return New(id, name, db), nil
}

func (s *Store) ID() model.AdapterID { return s.id }
func (s *Store) Name() string        { return s.name }

func (s *Store) Supports(m model.DataModel) bool { return m == model.Relational }

func (s *Store) exec(ctx context.Context, op, q string) error {
	_, err := s.db.ExecContext(ctx, q)
	return adapter.Wrap(s.id, op, err)
}

func (s *Store) CreateTable(ctx context.Context, t adapter.Table) error {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, columnDef(c))
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+quotedColumns(t.PrimaryKey)+")")
	}
	return s.exec(ctx, "create table", fmt.Sprintf("CREATE TABLE %s (%s)", quote(t.Name()), strings.Join(defs, ", ")))
}

func (s *Store) DropTable(ctx context.Context, t adapter.Table) error {
	return s.exec(ctx, "drop table", "DROP TABLE IF EXISTS "+quote(t.Name()))
}

func (s *Store) AddColumn(ctx context.Context, t adapter.Table, c adapter.Column) error {
	c.Nullable = true
	return s.exec(ctx, "add column", fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(t.Name()), columnDef(c)))
}

func (s *Store) DropColumn(ctx context.Context, t adapter.Table, c adapter.Column) error {
	return s.exec(ctx, "drop column", fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quote(t.Name()), quote(c.Name())))
}

func (s *Store) UpdateColumnType(ctx context.Context, t adapter.Table, c adapter.Column) error {
	return s.exec(ctx, "update column type", fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", quote(t.Name()), columnDef(c)))
}

func (s *Store) Truncate(ctx context.Context, t adapter.Table) error {
	return s.exec(ctx, "truncate", "TRUNCATE TABLE "+quote(t.Name()))
}

func (s *Store) AddIndex(ctx context.Context, t adapter.Table, idx adapter.Index) error {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return s.exec(ctx, "add index", fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, quote(idx.Name()), quote(t.Name()), quotedColumns(idx.Columns)))
}

func (s *Store) DropIndex(ctx context.Context, t adapter.Table, idx adapter.Index) error {
	return s.exec(ctx, "drop index", fmt.Sprintf("DROP INDEX %s ON %s", quote(idx.Name()), quote(t.Name())))
}

func (s *Store) ScanRows(ctx context.Context, t adapter.Table, fn func(adapter.Row) error) error {
	ids := t.ColumnIDs()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", quotedColumns(ids), quote(t.Name())))
	if err != nil {
		return adapter.Wrap(s.id, "scan", err)
	}
	defer rows.Close()

	for rows.Next() {
		values := make([]any, len(ids))
		ptrs := make([]any, len(ids))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return adapter.Wrap(s.id, "scan", err)
		}
		row := make(adapter.Row, len(ids))
		for i, id := range ids {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[id] = values[i]
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return adapter.Wrap(s.id, "scan", rows.Err())
}

// WriteRows inserts rows in one transaction. Tables with a primary key use
// ON DUPLICATE KEY UPDATE.
func (s *Store) WriteRows(ctx context.Context, t adapter.Table, rows []adapter.Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return adapter.Wrap(s.id, "write", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		cols := make([]model.ColumnID, 0, len(r))
		args := make([]any, 0, len(r))
		for _, c := range t.Columns {
			if v, ok := r[c.ID]; ok {
				cols = append(cols, c.ID)
				args = append(args, v)
			}
		}
		if _, err := tx.ExecContext(ctx, insertSQL(t, cols), args...); err != nil {
			return adapter.Wrap(s.id, "write", err)
		}
	}
	return adapter.Wrap(s.id, "write", tx.Commit())
}

func insertSQL(t adapter.Table, cols []model.ColumnID) string {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(t.Name()), quotedColumns(cols), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if len(t.PrimaryKey) == 0 {
		return q
	}
	var sets []string
	for _, c := range cols {
		if !isKey(t.PrimaryKey, c) {
			n := quote(adapter.ColumnName(c))
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", n, n))
		}
	}
	if len(sets) == 0 {
		first := quote(adapter.ColumnName(t.PrimaryKey[0]))
		sets = append(sets, first+" = "+first)
	}
	return q + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

func isKey(pk []model.ColumnID, id model.ColumnID) bool {
	for _, c := range pk {
		if c == id {
			return true
		}
	}
	return false
}

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quotedColumns(ids []model.ColumnID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = quote(adapter.ColumnName(id))
	}
	return strings.Join(names, ", ")
}

func columnDef(c adapter.Column) string {
	def := quote(c.Name()) + " " + columnType(c)
	if !c.Nullable {
		def += " NOT NULL"
	}
	if d := c.DefaultSQL(); d != "" {
		def += " DEFAULT " + d
	}
	return def
}

func columnType(c adapter.Column) string {
	switch c.Type {
	case model.TypeBoolean:
		return "BOOLEAN"
	case model.TypeTinyInt:
		return "TINYINT"
	case model.TypeSmallInt:
		return "SMALLINT"
	case model.TypeInteger:
		return "INT"
	case model.TypeBigInt:
		return "BIGINT"
	case model.TypeDecimal:
		if c.Length > 0 {
			return fmt.Sprintf("DECIMAL(%d,%d)", c.Length, c.Scale)
		}
		return "DECIMAL(65,30)"
	case model.TypeReal:
		return "FLOAT"
	case model.TypeDouble:
		return "DOUBLE"
	case model.TypeDate:
		return "DATE"
	case model.TypeTime:
		return "TIME"
	case model.TypeTimestamp:
		return "DATETIME(6)"
	case model.TypeChar:
		return fmt.Sprintf("CHAR(%d)", max(c.Length, 1))
	case model.TypeVarchar:
		return fmt.Sprintf("VARCHAR(%d)", cmp.Or(c.Length, 255))
	case model.TypeJSON, model.TypeArray:
		return "JSON"
	case model.TypeBinary, model.TypeVarbinary, model.TypeBlob:
		return "LONGBLOB"
	default:
		return "LONGTEXT"
	}
}

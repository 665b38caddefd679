package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/model"
)

// columnType maps a PolyType to its PostgreSQL type.
func columnType(c adapter.Column) string {
	switch c.Type {
	case model.TypeBoolean:
		return "BOOLEAN"
	case model.TypeTinyInt, model.TypeSmallInt:
		return "SMALLINT"
	case model.TypeInteger:
		return "INTEGER"
	case model.TypeBigInt:
		return "BIGINT"
	case model.TypeDecimal:
		if c.Length > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", c.Length, c.Scale)
		}
		return "NUMERIC"
	case model.TypeReal:
		return "REAL"
	case model.TypeDouble:
		return "DOUBLE PRECISION"
	case model.TypeDate:
		return "DATE"
	case model.TypeTime:
		return "TIME"
	case model.TypeTimestamp:
		return "TIMESTAMP"
	case model.TypeChar:
		return fmt.Sprintf("CHAR(%d)", max(c.Length, 1))
	case model.TypeVarchar:
		if c.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.Length)
		}
		return "VARCHAR"
	case model.TypeJSON:
		return "JSONB"
	case model.TypeBinary, model.TypeVarbinary, model.TypeBlob:
		return "BYTEA"
	default:
		return "TEXT"
	}
}

func (s *Store) ident(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
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

func (s *Store) createTableSQL(t adapter.Table) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, columnDef(c))
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+quotedColumns(t.PrimaryKey)+")")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", s.ident(t.Name()), strings.Join(defs, ", "))
}

func (s *Store) createIndexSQL(t adapter.Table, idx adapter.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	using := ""
	if idx.Method != "" {
		using = " USING " + idx.Method
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s%s (%s)",
		unique, quote(idx.Name()), s.ident(t.Name()), using, quotedColumns(idx.Columns))
}

func (s *Store) selectSQL(t adapter.Table) string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = quote(c.Name())
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), s.ident(t.Name()))
}

// upsertSQL builds an INSERT that updates the non-key columns on a primary
// key conflict.
func (s *Store) upsertSQL(t adapter.Table, columns []model.ColumnID) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.ident(t.Name()), quotedColumns(columns), strings.Join(placeholders, ", "))

	var sets []string
	for _, c := range columns {
		if !containsColumn(t.PrimaryKey, c) {
			n := quote(adapter.ColumnName(c))
			sets = append(sets, n+" = EXCLUDED."+n)
		}
	}
	if len(sets) == 0 {
		return q + " ON CONFLICT (" + quotedColumns(t.PrimaryKey) + ") DO NOTHING"
	}
	return q + " ON CONFLICT (" + quotedColumns(t.PrimaryKey) + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

func quotedColumns(ids []model.ColumnID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = quote(adapter.ColumnName(id))
	}
	return strings.Join(names, ", ")
}

func containsColumn(ids []model.ColumnID, id model.ColumnID) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}
	return false
}

// rowColumns returns the columns of t set in row, in table order.
func rowColumns(t adapter.Table, row adapter.Row) []model.ColumnID {
	cols := make([]model.ColumnID, 0, len(row))
	for _, c := range t.Columns {
		if _, ok := row[c.ID]; ok {
			cols = append(cols, c.ID)
		}
	}
	return cols
}

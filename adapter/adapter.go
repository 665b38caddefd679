package adapter

import (
	"context"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Adapter is a registered storage engine.
type Adapter interface {
	ID() model.AdapterID
	Name() string
	// Supports reports whether the adapter can store entities of m.
	Supports(m model.DataModel) bool
}

// Row is one relational record keyed by logical column id.
type Row map[model.ColumnID]any

// Document is one document of a collection.
type Document map[string]any

// Node is a graph vertex.
type Node struct {
	ID     string         `json:"id"`
	Labels []string       `json:"labels,omitempty"`
	Props  map[string]any `json:"props,omitempty"`
}

// Edge is a directed, labeled graph relationship.
type Edge struct {
	ID     string         `json:"id"`
	Label  string         `json:"label"`
	Source string         `json:"source"`
	Target string         `json:"target"`
	Props  map[string]any `json:"props,omitempty"`
}

// RowReader reads the rows of a relational allocation.
type RowReader interface {
	// ScanRows calls fn for every row of t. Only the columns of t are set.
	ScanRows(ctx context.Context, t Table, fn func(Row) error) error
}

// RowWriter writes rows into a relational allocation.
type RowWriter interface {
	// WriteRows inserts rows into t. When t has a primary key, rows whose key
	// exists update the given columns instead.
	WriteRows(ctx context.Context, t Table, rows []Row) error
}

// DataStore stores relational allocations.
type DataStore interface {
	Adapter
	RowReader
	RowWriter

	CreateTable(ctx context.Context, t Table) error
	DropTable(ctx context.Context, t Table) error
	AddColumn(ctx context.Context, t Table, c Column) error
	DropColumn(ctx context.Context, t Table, c Column) error
	UpdateColumnType(ctx context.Context, t Table, c Column) error
	Truncate(ctx context.Context, t Table) error
	AddIndex(ctx context.Context, t Table, idx Index) error
	DropIndex(ctx context.Context, t Table, idx Index) error
}

// DocumentStore stores document allocations.
type DocumentStore interface {
	Adapter

	CreateCollection(ctx context.Context, alloc catalog.AllocationEntity) error
	DropCollection(ctx context.Context, alloc catalog.AllocationEntity) error
	TruncateCollection(ctx context.Context, alloc catalog.AllocationEntity) error
	ScanDocuments(ctx context.Context, alloc catalog.AllocationEntity, fn func(Document) error) error
	InsertDocuments(ctx context.Context, alloc catalog.AllocationEntity, docs []Document) error
}

// GraphStore stores graph allocations.
type GraphStore interface {
	Adapter

	CreateGraph(ctx context.Context, alloc catalog.AllocationEntity) error
	DropGraph(ctx context.Context, alloc catalog.AllocationEntity) error
	TruncateGraph(ctx context.Context, alloc catalog.AllocationEntity) error
	ScanGraph(ctx context.Context, alloc catalog.AllocationEntity, nodes func(Node) error, edges func(Edge) error) error
	InsertGraph(ctx context.Context, alloc catalog.AllocationEntity, nodes []Node, edges []Edge) error
}

// ExportedColumn is a column of a table exposed by a data source.
type ExportedColumn struct {
	Name       string
	Type       model.PolyType
	Nullable   bool
	Position   int
	PrimaryKey bool
}

// DataSource is a read-only adapter over an external system. Entities it
// exports are placed with STATIC columns.
type DataSource interface {
	Adapter
	RowReader

	// ExportedColumns returns the columns per exported table name.
	ExportedColumns(ctx context.Context) (map[string][]ExportedColumn, error)
}

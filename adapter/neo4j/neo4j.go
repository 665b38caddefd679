// Package neo4j implements a graph adapter on Neo4j. Every allocation is a
// label on the nodes of its segment; node and edge ids are kept in the _pid
// property.
package neo4j

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

const (
	pidKey    = "_pid"
	labelsKey = "_labels"
)

// Store is a graph store backed by a Neo4j driver.
type Store struct {
	id       model.AdapterID
	name     string
	driver   neo4j.DriverWithContext
	database string
}

// New returns a store using driver. An empty database selects the server
// default.
func New(id model.AdapterID, name string, driver neo4j.DriverWithContext, database string) *Store {
	return &Store{id: id, name: name, driver: driver, database: database}
}

// Connect creates a driver for uri with basic auth and verifies connectivity.
func Connect(ctx context.Context, id model.AdapterID, name, uri, user, password, database string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify connectivity: %w", err)
	}
	return New(id, name, driver, database), nil
}

func (s *Store) ID() model.AdapterID { return s.id }
func (s *Store) Name() string        { return s.name }

func (s *Store) Supports(m model.DataModel) bool { return m == model.Graph }

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func (s *Store) write(ctx context.Context, op string, statements ...statement) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range statements {
			res, err := tx.Run(ctx, st.cypher, st.params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return adapter.Wrap(s.id, op, err)
}

// Schema statements cannot share a transaction with data writes.
func (s *Store) schema(ctx context.Context, op, cypher string) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer func() { _ = session.Close(ctx) }()

	res, err := session.Run(ctx, cypher, nil)
	if err == nil {
		_, err = res.Consume(ctx)
	}
	return adapter.Wrap(s.id, op, err)
}

func (s *Store) CreateGraph(ctx context.Context, alloc catalog.AllocationEntity) error {
	return s.schema(ctx, "create graph", createConstraintCypher(alloc))
}

func (s *Store) DropGraph(ctx context.Context, alloc catalog.AllocationEntity) error {
	if err := s.TruncateGraph(ctx, alloc); err != nil {
		return err
	}
	return s.schema(ctx, "drop graph", fmt.Sprintf("DROP CONSTRAINT %s IF EXISTS", constraintName(alloc)))
}

func (s *Store) TruncateGraph(ctx context.Context, alloc catalog.AllocationEntity) error {
	return s.write(ctx, "truncate graph", statement{
		cypher: fmt.Sprintf("MATCH (n:%s) DETACH DELETE n", label(alloc)),
	})
}

func (s *Store) ScanGraph(ctx context.Context, alloc catalog.AllocationEntity, nodes func(adapter.Node) error, edges func(adapter.Edge) error) error {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer func() { _ = session.Close(ctx) }()

	res, err := session.Run(ctx, fmt.Sprintf("MATCH (n:%s) RETURN n ORDER BY n.%s", label(alloc), pidKey), nil)
	if err != nil {
		return adapter.Wrap(s.id, "scan graph", err)
	}
	for res.Next(ctx) {
		v, _ := res.Record().Get("n")
		n, ok := v.(neo4j.Node)
		if !ok {
			continue
		}
		if err := nodes(toNode(n.Props)); err != nil {
			return err
		}
	}
	if err := res.Err(); err != nil {
		return adapter.Wrap(s.id, "scan graph", err)
	}

	lb := label(alloc)
	res, err = session.Run(ctx, fmt.Sprintf(
		"MATCH (a:%s)-[r]->(b:%s) RETURN r, type(r) AS t, a.%s AS s, b.%s AS d ORDER BY r.%s",
		lb, lb, pidKey, pidKey, pidKey), nil)
	if err != nil {
		return adapter.Wrap(s.id, "scan graph", err)
	}
	for res.Next(ctx) {
		rec := res.Record()
		v, _ := rec.Get("r")
		r, ok := v.(neo4j.Relationship)
		if !ok {
			continue
		}
		typ, _ := rec.Get("t")
		src, _ := rec.Get("s")
		dst, _ := rec.Get("d")
		e := adapter.Edge{
			Label:  fmt.Sprint(typ),
			Source: fmt.Sprint(src),
			Target: fmt.Sprint(dst),
			Props:  make(map[string]any, len(r.Props)),
		}
		for k, pv := range r.Props {
			if k == pidKey {
				e.ID = fmt.Sprint(pv)
				continue
			}
			e.Props[k] = pv
		}
		if err := edges(e); err != nil {
			return err
		}
	}
	return adapter.Wrap(s.id, "scan graph", res.Err())
}

func (s *Store) InsertGraph(ctx context.Context, alloc catalog.AllocationEntity, nodes []adapter.Node, edges []adapter.Edge) error {
	return s.write(ctx, "insert graph", insertStatements(alloc, nodes, edges)...)
}

type statement struct {
	cypher string
	params map[string]any
}

func label(alloc catalog.AllocationEntity) string {
	return quote(alloc.PhysicalName())
}

func constraintName(alloc catalog.AllocationEntity) string {
	return quote(alloc.PhysicalName() + "_pid")
}

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func createConstraintCypher(alloc catalog.AllocationEntity) string {
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		constraintName(alloc), label(alloc), pidKey)
}

// insertStatements merges nodes first and then edges grouped by label.
func insertStatements(alloc catalog.AllocationEntity, nodes []adapter.Node, edges []adapter.Edge) []statement {
	var out []statement
	lb := label(alloc)
	if len(nodes) > 0 {
		params := make([]map[string]any, len(nodes))
		for i, n := range nodes {
			params[i] = map[string]any{
				"id":     n.ID,
				"labels": slices.Clone(n.Labels),
				"props":  props(n.Props),
			}
		}
		out = append(out, statement{
			cypher: fmt.Sprintf("UNWIND $nodes AS n MERGE (x:%s {%s: n.id}) SET x += n.props, x.%s = n.labels",
				lb, pidKey, labelsKey),
			params: map[string]any{"nodes": params},
		})
	}

	byLabel := make(map[string][]map[string]any)
	for _, e := range edges {
		byLabel[e.Label] = append(byLabel[e.Label], map[string]any{
			"id":     e.ID,
			"source": e.Source,
			"target": e.Target,
			"props":  props(e.Props),
		})
	}
	for _, l := range slices.Sorted(maps.Keys(byLabel)) {
		out = append(out, statement{
			cypher: fmt.Sprintf("UNWIND $edges AS e MATCH (a:%s {%s: e.source}), (b:%s {%s: e.target}) "+
				"MERGE (a)-[r:%s {%s: e.id}]->(b) SET r += e.props",
				lb, pidKey, lb, pidKey, quote(l), pidKey),
			params: map[string]any{"edges": byLabel[l]},
		})
	}
	return out
}

func props(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}

func toNode(props map[string]any) adapter.Node {
	n := adapter.Node{Props: make(map[string]any, len(props))}
	for k, v := range props {
		switch k {
		case pidKey:
			n.ID = fmt.Sprint(v)
		case labelsKey:
			if ls, ok := v.([]any); ok {
				for _, l := range ls {
					n.Labels = append(n.Labels, fmt.Sprint(l))
				}
			}
		default:
			n.Props[k] = v
		}
	}
	return n
}

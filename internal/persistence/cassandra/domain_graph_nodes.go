package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"golang.org/x/sync/errgroup"

	"github.com/chronograph-io/chronograph/internal/domain"
)

// domainGraphNodeTable holds the global registry of graph-shape
// descriptors, keyed by descriptor id. Batch operations fan out one
// statement per id; the ids live in different partitions so a logged
// batch would buy nothing.
type domainGraphNodeTable struct {
	table
	insertStmt string
	deleteStmt string
	listStmt   string
}

func newDomainGraphNodeTable(session *gocql.Session, cfg *Config, options string) *domainGraphNodeTable {
	const name = "domain_graph_nodes"
	return &domainGraphNodeTable{
		table: table{
			session: session,
			name:    name,
			schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				dgn_id bigint PRIMARY KEY,
				data blob
			)`, name),
			probeCol:      "dgn_id",
			readCL:        cfg.ReadConsistency,
			writeCL:       cfg.WriteConsistency,
			createMissing: cfg.CreateTables,
			options:       options,
		},
		insertStmt: fmt.Sprintf("INSERT INTO %s (dgn_id, data) VALUES (?, ?)", name),
		deleteStmt: fmt.Sprintf("DELETE FROM %s WHERE dgn_id = ?", name),
		listStmt:   fmt.Sprintf("SELECT dgn_id, data FROM %s", name),
	}
}

// persist writes every descriptor concurrently. Partial failure surfaces
// as an error; descriptors already written stay written.
func (t *domainGraphNodeTable) persist(ctx context.Context, descriptors map[domain.DomainGraphNodeID][]byte) error {
	g, ctx := errgroup.WithContext(ctx)
	for id, data := range descriptors {
		g.Go(func() error {
			err := t.session.Query(t.insertStmt, int64(id), data).
				WithContext(ctx).
				Consistency(t.writeCL).
				Exec()
			if err != nil {
				return fmt.Errorf("persist descriptor %d: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// remove deletes the given descriptors; missing ids are no-ops.
func (t *domainGraphNodeTable) remove(ctx context.Context, ids []domain.DomainGraphNodeID) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			err := t.session.Query(t.deleteStmt, int64(id)).
				WithContext(ctx).
				Consistency(t.writeCL).
				Exec()
			if err != nil {
				return fmt.Errorf("remove descriptor %d: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (t *domainGraphNodeTable) all(ctx context.Context) (map[domain.DomainGraphNodeID][]byte, error) {
	iter := t.session.Query(t.listStmt).
		WithContext(ctx).
		Consistency(t.readCL).
		Iter()

	out := make(map[domain.DomainGraphNodeID][]byte)
	var (
		id   int64
		data []byte
	)
	for iter.Scan(&id, &data) {
		out[domain.DomainGraphNodeID(id)] = data
		data = nil
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list domain graph nodes: %w", err)
	}
	return out, nil
}

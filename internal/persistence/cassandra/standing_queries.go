package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/chronograph-io/chronograph/internal/domain"
)

// standingQueryTable holds the global registry of standing query
// definitions, keyed by query id.
type standingQueryTable struct {
	table
	insertStmt string
	deleteStmt string
	listStmt   string
}

func newStandingQueryTable(session *gocql.Session, cfg *Config, options string) *standingQueryTable {
	const name = "standing_queries"
	return &standingQueryTable{
		table: table{
			session: session,
			name:    name,
			schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				query_id uuid PRIMARY KEY,
				name text,
				definition blob
			)`, name),
			probeCol:      "query_id",
			readCL:        cfg.ReadConsistency,
			writeCL:       cfg.WriteConsistency,
			createMissing: cfg.CreateTables,
			options:       options,
		},
		insertStmt: fmt.Sprintf("INSERT INTO %s (query_id, name, definition) VALUES (?, ?, ?)", name),
		deleteStmt: fmt.Sprintf("DELETE FROM %s WHERE query_id = ?", name),
		listStmt:   fmt.Sprintf("SELECT query_id, name, definition FROM %s", name),
	}
}

func (t *standingQueryTable) persist(ctx context.Context, query domain.StandingQuery) error {
	err := t.session.Query(t.insertStmt, gocql.UUID(query.ID), query.Name, query.Definition).
		WithContext(ctx).
		Consistency(t.writeCL).
		Exec()
	if err != nil {
		return fmt.Errorf("persist standing query %s: %w", query.ID, err)
	}
	return nil
}

// remove deletes the definition row. Removing a query that was never
// registered is a successful no-op.
func (t *standingQueryTable) remove(ctx context.Context, id domain.StandingQueryID) error {
	err := t.session.Query(t.deleteStmt, gocql.UUID(id)).
		WithContext(ctx).
		Consistency(t.writeCL).
		Exec()
	if err != nil {
		return fmt.Errorf("remove standing query %s: %w", id, err)
	}
	return nil
}

func (t *standingQueryTable) list(ctx context.Context) ([]domain.StandingQuery, error) {
	iter := t.session.Query(t.listStmt).
		WithContext(ctx).
		Consistency(t.readCL).
		Iter()

	var (
		out        []domain.StandingQuery
		id         gocql.UUID
		name       string
		definition []byte
	)
	for iter.Scan(&id, &name, &definition) {
		out = append(out, domain.StandingQuery{
			ID:         domain.StandingQueryID(id),
			Name:       name,
			Definition: definition,
		})
		definition = nil
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list standing queries: %w", err)
	}
	return out, nil
}

package cassandra

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/chronograph-io/chronograph/internal/domain"
)

// standingQueryStateTable holds per-node, per-query-part working state.
// Rows are partitioned by node so everything a node owns can be read and
// deleted in one partition operation; bulk removal by query id has to scan.
type standingQueryStateTable struct {
	table
	insertStmt     string
	deleteStmt     string
	byNodeStmt     string
	deleteNodeStmt string
	byQueryStmt    string
	deleteRowStmt  string
}

func newStandingQueryStateTable(session *gocql.Session, cfg *Config, options string) *standingQueryStateTable {
	const name = "standing_query_states"
	return &standingQueryStateTable{
		table: table{
			session: session,
			name:    name,
			schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				node_id blob,
				query_id uuid,
				part_id uuid,
				state blob,
				PRIMARY KEY ((node_id), query_id, part_id)
			)`, name),
			probeCol:      "node_id",
			readCL:        cfg.ReadConsistency,
			writeCL:       cfg.WriteConsistency,
			createMissing: cfg.CreateTables,
			options:       options,
		},
		insertStmt:     fmt.Sprintf("INSERT INTO %s (node_id, query_id, part_id, state) VALUES (?, ?, ?, ?)", name),
		deleteStmt:     fmt.Sprintf("DELETE FROM %s WHERE node_id = ? AND query_id = ? AND part_id = ?", name),
		byNodeStmt:     fmt.Sprintf("SELECT query_id, part_id, state FROM %s WHERE node_id = ?", name),
		deleteNodeStmt: fmt.Sprintf("DELETE FROM %s WHERE node_id = ?", name),
		byQueryStmt:    fmt.Sprintf("SELECT node_id, part_id FROM %s WHERE query_id = ? ALLOW FILTERING", name),
		deleteRowStmt:  fmt.Sprintf("DELETE FROM %s WHERE node_id = ? AND query_id = ? AND part_id = ?", name),
	}
}

// states returns all standing query state held for the node.
func (t *standingQueryStateTable) states(ctx context.Context, id domain.NodeID) (map[domain.StandingQueryStateKey][]byte, error) {
	iter := t.session.Query(t.byNodeStmt, []byte(id)).
		WithContext(ctx).
		Consistency(t.readCL).
		Iter()

	out := make(map[domain.StandingQueryStateKey][]byte)
	var (
		queryID gocql.UUID
		partID  gocql.UUID
		state   []byte
	)
	for iter.Scan(&queryID, &partID, &state) {
		key := domain.StandingQueryStateKey{
			QueryID: domain.StandingQueryID(queryID),
			PartID:  domain.QueryPartID(partID),
		}
		out[key] = state
		state = nil
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("read standing query states: %w", err)
	}
	return out, nil
}

// set stores state for one (query, node, part). A nil state deletes the
// row; "no state" is modeled as absence, not as an empty value.
func (t *standingQueryStateTable) set(ctx context.Context, queryID domain.StandingQueryID, id domain.NodeID, partID domain.QueryPartID, state []byte) error {
	var err error
	if state == nil {
		err = t.session.Query(t.deleteStmt, []byte(id), gocql.UUID(queryID), gocql.UUID(partID)).
			WithContext(ctx).
			Consistency(t.writeCL).
			Exec()
	} else {
		err = t.session.Query(t.insertStmt, []byte(id), gocql.UUID(queryID), gocql.UUID(partID), state).
			WithContext(ctx).
			Consistency(t.writeCL).
			Exec()
	}
	if err != nil {
		return fmt.Errorf("set standing query state (%s, %s): %w", queryID, partID, err)
	}
	return nil
}

// deleteForNode drops every state row in the node's partition.
func (t *standingQueryStateTable) deleteForNode(ctx context.Context, id domain.NodeID) error {
	err := t.session.Query(t.deleteNodeStmt, []byte(id)).
		WithContext(ctx).
		Consistency(t.writeCL).
		Exec()
	if err != nil {
		return fmt.Errorf("delete standing query states for node: %w", err)
	}
	return nil
}

// deleteForQuery removes every node's state rows for one standing query.
// Cost is O(state rows scanned), not O(1): the table is partitioned by
// node, so this scans with filtering and deletes row by row.
func (t *standingQueryStateTable) deleteForQuery(ctx context.Context, queryID domain.StandingQueryID) error {
	iter := t.session.Query(t.byQueryStmt, gocql.UUID(queryID)).
		WithContext(ctx).
		Consistency(t.readCL).
		Iter()

	var (
		deleteErrs []error
		nodeID     []byte
		partID     gocql.UUID
	)
	for iter.Scan(&nodeID, &partID) {
		err := t.session.Query(t.deleteRowStmt, nodeID, gocql.UUID(queryID), partID).
			WithContext(ctx).
			Consistency(t.writeCL).
			Exec()
		if err != nil {
			deleteErrs = append(deleteErrs, fmt.Errorf("delete state (%x, %s): %w", nodeID, partID, err))
		}
		nodeID = nil
	}
	if err := iter.Close(); err != nil {
		deleteErrs = append(deleteErrs, fmt.Errorf("scan states by query id: %w", err))
	}
	if len(deleteErrs) > 0 {
		return fmt.Errorf("delete states for standing query %s: %w", queryID, errors.Join(deleteErrs...))
	}
	return nil
}

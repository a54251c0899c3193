package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/chronograph-io/chronograph/internal/domain"
)

// snapshotTable stores serialized node snapshots split across size-bounded
// part rows. Clustering is newest-first on event time so the latest
// snapshot lookup is a LIMIT 1 read, with parts ascending within one time.
type snapshotTable struct {
	table
	insertStmt     string
	latestTimeStmt string
	partsStmt      string
	deleteStmt     string
	enumerateStmt  string
}

func newSnapshotTable(session *gocql.Session, cfg *Config, options string) *snapshotTable {
	const name = "snapshots"
	return &snapshotTable{
		table: table{
			session: session,
			name:    name,
			schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				node_id blob,
				event_time bigint,
				part_index int,
				part_count int,
				data blob,
				PRIMARY KEY ((node_id), event_time, part_index)
			) WITH CLUSTERING ORDER BY (event_time DESC, part_index ASC)`, name),
			probeCol:      "node_id",
			readCL:        cfg.ReadConsistency,
			writeCL:       cfg.WriteConsistency,
			createMissing: cfg.CreateTables,
			options:       options,
		},
		insertStmt:     fmt.Sprintf("INSERT INTO %s (node_id, event_time, part_index, part_count, data) VALUES (?, ?, ?, ?, ?)", name),
		latestTimeStmt: fmt.Sprintf("SELECT event_time FROM %s WHERE node_id = ? AND event_time <= ? LIMIT 1", name),
		partsStmt:      fmt.Sprintf("SELECT part_index, part_count, data FROM %s WHERE node_id = ? AND event_time = ?", name),
		deleteStmt:     fmt.Sprintf("DELETE FROM %s WHERE node_id = ?", name),
		enumerateStmt:  fmt.Sprintf("SELECT DISTINCT node_id FROM %s", name),
	}
}

// persistParts writes one row per part, all carrying the same part count.
func (t *snapshotTable) persistParts(ctx context.Context, id domain.NodeID, atTime domain.EventTime, parts [][]byte) error {
	count := len(parts)
	if count == 1 {
		err := t.session.Query(t.insertStmt, []byte(id), int64(atTime), 0, 1, parts[0]).
			WithContext(ctx).
			Consistency(t.writeCL).
			Exec()
		if err != nil {
			return fmt.Errorf("persist snapshot part: %w", err)
		}
		return nil
	}
	batch := t.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	batch.Cons = t.writeCL
	for i, part := range parts {
		batch.Query(t.insertStmt, []byte(id), int64(atTime), i, count, part)
	}
	if err := t.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("persist %d snapshot parts: %w", count, err)
	}
	return nil
}

// latestTime returns the greatest snapshot time at or before upToTime for
// the node, or false if the node has no snapshot that old.
func (t *snapshotTable) latestTime(ctx context.Context, id domain.NodeID, upToTime domain.EventTime) (domain.EventTime, bool, error) {
	var ts int64
	err := t.session.Query(t.latestTimeStmt, []byte(id), int64(upToTime)).
		WithContext(ctx).
		Consistency(t.readCL).
		Scan(&ts)
	if err == gocql.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find latest snapshot time: %w", err)
	}
	return domain.EventTime(ts), true, nil
}

// parts fetches every part row for (node, time) in part order, along with
// the part count recorded on the rows.
func (t *snapshotTable) parts(ctx context.Context, id domain.NodeID, atTime domain.EventTime) ([][]byte, int, error) {
	iter := t.session.Query(t.partsStmt, []byte(id), int64(atTime)).
		WithContext(ctx).
		Consistency(t.readCL).
		Iter()

	var (
		out        [][]byte
		idx, count int
		data       []byte
	)
	for iter.Scan(&idx, &count, &data) {
		out = append(out, data)
		data = nil
	}
	if err := iter.Close(); err != nil {
		return nil, 0, fmt.Errorf("read snapshot parts: %w", err)
	}
	return out, count, nil
}

func (t *snapshotTable) deleteNode(ctx context.Context, id domain.NodeID) error {
	err := t.session.Query(t.deleteStmt, []byte(id)).
		WithContext(ctx).
		Consistency(t.writeCL).
		Exec()
	if err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

func (t *snapshotTable) enumerateNodeIDs(ctx context.Context) *nodeIDIter {
	return &nodeIDIter{
		iter: t.session.Query(t.enumerateStmt).
			WithContext(ctx).
			Consistency(t.readCL).
			Iter(),
	}
}

// splitSnapshot cuts a serialized snapshot into parts of at most maxSize
// bytes. The parts are subslices of data, not copies. An empty snapshot
// still produces one (empty) part so the snapshot remains discoverable.
func splitSnapshot(data []byte, maxSize int) [][]byte {
	if len(data) <= maxSize {
		return [][]byte{data}
	}
	parts := make([][]byte, 0, (len(data)+maxSize-1)/maxSize)
	for len(data) > maxSize {
		parts = append(parts, data[:maxSize])
		data = data[maxSize:]
	}
	return append(parts, data)
}

package cassandra

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/chronograph-io/chronograph/internal/domain"
)

// journalTable stores one append-only event stream partitioned by node id
// and clustered ascending by event time. Two instances exist: the node
// change journal and the domain index event stream.
type journalTable struct {
	table
	insertStmt    string
	selectStmt    string
	deleteStmt    string
	enumerateStmt string
}

func newJournalTable(session *gocql.Session, cfg *Config, options, name string) *journalTable {
	return &journalTable{
		table: table{
			session: session,
			name:    name,
			schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				node_id blob,
				event_time bigint,
				data blob,
				PRIMARY KEY ((node_id), event_time)
			) WITH CLUSTERING ORDER BY (event_time ASC)`, name),
			probeCol:      "node_id",
			readCL:        cfg.ReadConsistency,
			writeCL:       cfg.WriteConsistency,
			createMissing: cfg.CreateTables,
			options:       options,
		},
		insertStmt:    fmt.Sprintf("INSERT INTO %s (node_id, event_time, data) VALUES (?, ?, ?)", name),
		selectStmt:    fmt.Sprintf("SELECT event_time, data FROM %s WHERE node_id = ? AND event_time >= ? AND event_time <= ?", name),
		deleteStmt:    fmt.Sprintf("DELETE FROM %s WHERE node_id = ?", name),
		enumerateStmt: fmt.Sprintf("SELECT DISTINCT node_id FROM %s", name),
	}
}

// append writes each event as its own row. Multiple events for one node go
// into a single-partition unlogged batch.
func (t *journalTable) append(ctx context.Context, id domain.NodeID, events []domain.NodeEvent) error {
	switch len(events) {
	case 0:
		return nil
	case 1:
		e := events[0]
		err := t.session.Query(t.insertStmt, []byte(id), int64(e.Time), e.Data).
			WithContext(ctx).
			Consistency(t.writeCL).
			Exec()
		if err != nil {
			return fmt.Errorf("append event to %s: %w", t.name, err)
		}
		return nil
	default:
		batch := t.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
		batch.Cons = t.writeCL
		for _, e := range events {
			batch.Query(t.insertStmt, []byte(id), int64(e.Time), e.Data)
		}
		if err := t.session.ExecuteBatch(batch); err != nil {
			return fmt.Errorf("append %d events to %s: %w", len(events), t.name, err)
		}
		return nil
	}
}

// events returns the node's events with time in [startingAt, endingAt],
// ascending. An empty result is not an error.
func (t *journalTable) events(ctx context.Context, id domain.NodeID, startingAt, endingAt domain.EventTime) ([]domain.NodeEvent, error) {
	iter := t.session.Query(t.selectStmt, []byte(id), int64(startingAt), int64(endingAt)).
		WithContext(ctx).
		Consistency(t.readCL).
		Iter()

	var (
		out  []domain.NodeEvent
		ts   int64
		data []byte
	)
	for iter.Scan(&ts, &data) {
		out = append(out, domain.NodeEvent{Time: domain.EventTime(ts), Data: data})
		data = nil
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("read events from %s: %w", t.name, err)
	}
	return out, nil
}

// deleteNode removes every event in the node's partition. Deleting a node
// with no events is a successful no-op.
func (t *journalTable) deleteNode(ctx context.Context, id domain.NodeID) error {
	err := t.session.Query(t.deleteStmt, []byte(id)).
		WithContext(ctx).
		Consistency(t.writeCL).
		Exec()
	if err != nil {
		return fmt.Errorf("delete events from %s: %w", t.name, err)
	}
	return nil
}

// enumerateNodeIDs starts a lazy scan over the distinct node ids holding
// rows in this table.
func (t *journalTable) enumerateNodeIDs(ctx context.Context) *nodeIDIter {
	return &nodeIDIter{
		iter: t.session.Query(t.enumerateStmt).
			WithContext(ctx).
			Consistency(t.readCL).
			Iter(),
	}
}

// domainIndexTable extends the journal layout with the descriptor id each
// index event references, so descriptor retirement can cascade.
type domainIndexTable struct {
	journalTable
	indexedInsertStmt string
	byDgnStmt         string
	deleteRowStmt     string
}

func newDomainIndexTable(session *gocql.Session, cfg *Config, options string) *domainIndexTable {
	const name = "domain_index_events"
	t := &domainIndexTable{
		journalTable:      *newJournalTable(session, cfg, options, name),
		indexedInsertStmt: fmt.Sprintf("INSERT INTO %s (node_id, event_time, dgn_id, data) VALUES (?, ?, ?, ?)", name),
		byDgnStmt:         fmt.Sprintf("SELECT node_id, event_time FROM %s WHERE dgn_id = ? ALLOW FILTERING", name),
		deleteRowStmt:     fmt.Sprintf("DELETE FROM %s WHERE node_id = ? AND event_time = ?", name),
	}
	t.schema = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		node_id blob,
		event_time bigint,
		dgn_id bigint,
		data blob,
		PRIMARY KEY ((node_id), event_time)
	) WITH CLUSTERING ORDER BY (event_time ASC)`, name)
	return t
}

// appendIndexed writes domain index events, carrying each event's
// descriptor id alongside the payload.
func (t *domainIndexTable) appendIndexed(ctx context.Context, id domain.NodeID, events []domain.DomainIndexEvent) error {
	switch len(events) {
	case 0:
		return nil
	case 1:
		e := events[0]
		err := t.session.Query(t.indexedInsertStmt, []byte(id), int64(e.Time), int64(e.DgnID), e.Data).
			WithContext(ctx).
			Consistency(t.writeCL).
			Exec()
		if err != nil {
			return fmt.Errorf("append event to %s: %w", t.name, err)
		}
		return nil
	default:
		batch := t.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
		batch.Cons = t.writeCL
		for _, e := range events {
			batch.Query(t.indexedInsertStmt, []byte(id), int64(e.Time), int64(e.DgnID), e.Data)
		}
		if err := t.session.ExecuteBatch(batch); err != nil {
			return fmt.Errorf("append %d events to %s: %w", len(events), t.name, err)
		}
		return nil
	}
}

// deleteByDgnID removes every index event referencing the descriptor,
// across all nodes. This is a full-table scan followed by per-row deletes;
// partial failure surfaces as an overall error with no rollback of the
// deletes that already applied.
func (t *domainIndexTable) deleteByDgnID(ctx context.Context, dgnID domain.DomainGraphNodeID) error {
	iter := t.session.Query(t.byDgnStmt, int64(dgnID)).
		WithContext(ctx).
		Consistency(t.readCL).
		Iter()

	var (
		deleteErrs []error
		nodeID     []byte
		ts         int64
	)
	for iter.Scan(&nodeID, &ts) {
		err := t.session.Query(t.deleteRowStmt, nodeID, ts).
			WithContext(ctx).
			Consistency(t.writeCL).
			Exec()
		if err != nil {
			deleteErrs = append(deleteErrs, fmt.Errorf("delete event (%x, %d): %w", nodeID, ts, err))
		}
		nodeID = nil
	}
	if err := iter.Close(); err != nil {
		deleteErrs = append(deleteErrs, fmt.Errorf("scan %s by dgn id: %w", t.name, err))
	}
	if len(deleteErrs) > 0 {
		return fmt.Errorf("delete index events for descriptor %d: %w", dgnID, errors.Join(deleteErrs...))
	}
	return nil
}

// nodeIDIter adapts a gocql iterator to the contract's lazy id sequence.
type nodeIDIter struct {
	iter *gocql.Iter
	err  error
}

func (it *nodeIDIter) Next() (domain.NodeID, bool) {
	var id []byte
	if !it.iter.Scan(&id) {
		// Exhaustion and failure look the same to Scan; Close tells them apart.
		it.err = it.iter.Close()
		return nil, false
	}
	return domain.NodeID(id), true
}

func (it *nodeIDIter) Err() error {
	return it.err
}

func (it *nodeIDIter) Close() error {
	it.err = it.iter.Close()
	return it.err
}

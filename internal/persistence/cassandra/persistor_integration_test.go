package cassandra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronograph-io/chronograph/internal/domain"
)

// Live-cluster tests. They need a reachable Cassandra node and are skipped
// otherwise:
//
//	CHRONOGRAPH_TEST_CQL_HOST=127.0.0.1 go test ./...
//
// Each test bootstraps its own throwaway keyspace and drops it afterwards.
func newTestPersistor(t *testing.T) *Persistor {
	t.Helper()
	host := os.Getenv("CHRONOGRAPH_TEST_CQL_HOST")
	if host == "" {
		t.Skip("CHRONOGRAPH_TEST_CQL_HOST not set; skipping live cluster tests")
	}

	keyspace := fmt.Sprintf("chronograph_test_%d", time.Now().UnixNano())
	p, err := New(context.Background(), Config{
		Keyspace:         keyspace,
		Hosts:            []string{host},
		ReadConsistency:  gocql.One,
		WriteConsistency: gocql.One,
		CreateKeyspace:   true,
		CreateTables:     true,
		// Small enough that snapshot tests exercise multipart writes.
		SnapshotPartMaxSize: 100,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = p.session.Query("DROP KEYSPACE IF EXISTS " + keyspace).Exec()
		p.Shutdown()
	})
	return p
}

func newNodeID() domain.NodeID {
	id := uuid.New()
	return domain.NodeID(id[:])
}

func TestJournalRangeRead(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()
	node := newNodeID()

	// Appended out of order; reads must come back ordered by time.
	events := []domain.NodeEvent{
		{Time: 30, Data: []byte("third")},
		{Time: 10, Data: []byte("first")},
		{Time: 20, Data: []byte("second")},
	}
	require.NoError(t, p.PersistNodeChangeEvents(ctx, node, events))

	got, err := p.GetNodeChangeEvents(ctx, node, 15, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.EventTime(20), got[0].Time)
	assert.Equal(t, []byte("second"), got[0].Data)
	assert.Equal(t, domain.EventTime(30), got[1].Time)
	assert.Equal(t, []byte("third"), got[1].Data)

	full, err := p.GetNodeChangeEvents(ctx, node, domain.MinEventTime, domain.MaxEventTime)
	require.NoError(t, err)
	assert.Len(t, full, 3)

	empty, err := p.GetNodeChangeEvents(ctx, node, 31, 40)
	require.NoError(t, err)
	assert.Empty(t, empty, "an empty range is not an error")

	other, err := p.GetNodeChangeEvents(ctx, newNodeID(), domain.MinEventTime, domain.MaxEventTime)
	require.NoError(t, err)
	assert.Empty(t, other, "an unknown node reads as empty")
}

func TestSnapshotRoundTrip(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()

	// Part max size is 100 in the test config, so these exercise single,
	// two-part and ten-part snapshots.
	for _, size := range []int{80, 200, 1000} {
		t.Run(fmt.Sprintf("%d_bytes", size), func(t *testing.T) {
			node := newNodeID()
			snapshot := bytes.Repeat([]byte{0xAB}, size-1)
			snapshot = append(snapshot, 0xCD)

			require.NoError(t, p.PersistSnapshot(ctx, node, 100, snapshot))

			got, err := p.LatestSnapshot(ctx, node, 100)
			require.NoError(t, err)
			assert.Equal(t, snapshot, got, "reassembled snapshot must be byte-identical")
		})
	}
}

func TestLatestSnapshotSelection(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()
	node := newNodeID()

	require.NoError(t, p.PersistSnapshot(ctx, node, 10, []byte("at-10")))
	require.NoError(t, p.PersistSnapshot(ctx, node, 20, []byte("at-20")))
	require.NoError(t, p.PersistSnapshot(ctx, node, 30, []byte("at-30")))

	got, err := p.LatestSnapshot(ctx, node, 25)
	require.NoError(t, err)
	assert.Equal(t, []byte("at-20"), got, "greatest time at or before the bound wins")

	got, err = p.LatestSnapshot(ctx, node, 30)
	require.NoError(t, err)
	assert.Equal(t, []byte("at-30"), got, "bound is inclusive")

	got, err = p.LatestSnapshot(ctx, node, 5)
	require.NoError(t, err)
	assert.Nil(t, got, "nothing that old")
}

func TestDeleteIdempotence(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()
	node := newNodeID()

	require.NoError(t, p.PersistNodeChangeEvents(ctx, node, []domain.NodeEvent{{Time: 1, Data: []byte("x")}}))
	require.NoError(t, p.PersistSnapshot(ctx, node, 1, []byte("snap")))
	queryID := domain.NewStandingQueryID()
	require.NoError(t, p.SetStandingQueryState(ctx, queryID, node, domain.NewQueryPartID(), []byte("state")))

	for i := 0; i < 2; i++ {
		require.NoError(t, p.DeleteNodeChangeEvents(ctx, node), "pass %d", i)
		require.NoError(t, p.DeleteSnapshots(ctx, node), "pass %d", i)
		require.NoError(t, p.DeleteStandingQueryStates(ctx, node), "pass %d", i)
	}

	events, err := p.GetNodeChangeEvents(ctx, node, domain.MinEventTime, domain.MaxEventTime)
	require.NoError(t, err)
	assert.Empty(t, events)

	snap, err := p.LatestSnapshot(ctx, node, domain.MaxEventTime)
	require.NoError(t, err)
	assert.Nil(t, snap)

	states, err := p.StandingQueryStates(ctx, node)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestEmptyOfGraphData(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()

	empty, err := p.EmptyOfGraphData(ctx)
	require.NoError(t, err)
	assert.True(t, empty, "fresh store is empty")

	// Metadata does not count as graph data.
	require.NoError(t, p.SetMetaData(ctx, "schema_version", []byte("1")))
	empty, err = p.EmptyOfGraphData(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, p.PersistNodeChangeEvents(ctx, newNodeID(), []domain.NodeEvent{{Time: 1, Data: []byte("e")}}))
	empty, err = p.EmptyOfGraphData(ctx)
	require.NoError(t, err)
	assert.False(t, empty, "one journal row is enough")
}

func TestDeleteDomainIndexEventsByDgnID(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()
	nodeA, nodeB := newNodeID(), newNodeID()

	require.NoError(t, p.PersistDomainIndexEvents(ctx, nodeA, []domain.DomainIndexEvent{
		{NodeEvent: domain.NodeEvent{Time: 1, Data: []byte("a1")}, DgnID: 7},
		{NodeEvent: domain.NodeEvent{Time: 2, Data: []byte("a2")}, DgnID: 8},
	}))
	require.NoError(t, p.PersistDomainIndexEvents(ctx, nodeB, []domain.DomainIndexEvent{
		{NodeEvent: domain.NodeEvent{Time: 3, Data: []byte("b1")}, DgnID: 7},
	}))

	require.NoError(t, p.DeleteDomainIndexEventsByDgnID(ctx, 7))

	remainingA, err := p.GetDomainIndexEvents(ctx, nodeA, domain.MinEventTime, domain.MaxEventTime)
	require.NoError(t, err)
	require.Len(t, remainingA, 1, "only the descriptor-8 event survives")
	assert.Equal(t, []byte("a2"), remainingA[0].Data)

	remainingB, err := p.GetDomainIndexEvents(ctx, nodeB, domain.MinEventTime, domain.MaxEventTime)
	require.NoError(t, err)
	assert.Empty(t, remainingB, "the cascade crosses partitions")
}

func TestStandingQueryLifecycle(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()

	query := domain.StandingQuery{
		ID:         domain.NewStandingQueryID(),
		Name:       "watch-red-nodes",
		Definition: []byte("match (n) where n.color = 'red'"),
	}
	require.NoError(t, p.PersistStandingQuery(ctx, query))

	listed, err := p.StandingQueries(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, query, listed[0])

	node := newNodeID()
	partID := domain.NewQueryPartID()
	require.NoError(t, p.SetStandingQueryState(ctx, query.ID, node, partID, []byte("progress")))

	require.NoError(t, p.RemoveStandingQuery(ctx, query))

	listed, err = p.StandingQueries(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed, "definition is gone as soon as removal returns")

	// State cleanup is detached and best-effort; give it a bounded window.
	assert.Eventually(t, func() bool {
		states, err := p.StandingQueryStates(ctx, node)
		return err == nil && len(states) == 0
	}, 10*time.Second, 250*time.Millisecond, "per-node state is eventually cleaned up")
}

func TestRemoveStandingQueryNotFound(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()

	unknown := domain.StandingQuery{ID: domain.NewStandingQueryID(), Name: "ghost"}
	require.NoError(t, p.RemoveStandingQuery(ctx, unknown), "removing an unknown query is a no-op")
}

func TestSetStandingQueryStateNilDeletes(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()
	node := newNodeID()
	queryID := domain.NewStandingQueryID()
	partID := domain.NewQueryPartID()

	require.NoError(t, p.SetStandingQueryState(ctx, queryID, node, partID, []byte("s1")))
	states, err := p.StandingQueryStates(ctx, node)
	require.NoError(t, err)
	require.Len(t, states, 1)

	require.NoError(t, p.SetStandingQueryState(ctx, queryID, node, partID, nil))
	states, err = p.StandingQueryStates(ctx, node)
	require.NoError(t, err)
	assert.Empty(t, states, "nil state means absence, not an empty value")
}

func TestEnumerateNodeIDs(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()

	want := map[string]bool{}
	for i := 0; i < 5; i++ {
		node := newNodeID()
		want[node.String()] = true
		require.NoError(t, p.PersistNodeChangeEvents(ctx, node, []domain.NodeEvent{
			{Time: 1, Data: []byte("a")},
			{Time: 2, Data: []byte("b")},
		}))
	}

	it, err := p.EnumerateJournalNodeIDs(ctx)
	require.NoError(t, err)
	defer it.Close()

	got := map[string]bool{}
	for {
		id, ok := it.Next()
		if !ok {
			break
		}
		assert.False(t, got[id.String()], "no id may repeat within one enumeration")
		got[id.String()] = true
	}
	require.NoError(t, it.Err())
	assert.Equal(t, want, got)

	snapIt, err := p.EnumerateSnapshotNodeIDs(ctx)
	require.NoError(t, err)
	defer snapIt.Close()
	_, ok := snapIt.Next()
	assert.False(t, ok, "no snapshots were written")
	require.NoError(t, snapIt.Err())
}

func TestMetaData(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()

	missing, err := p.MetaData(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing, "absent key reads as nil, not an error")

	require.NoError(t, p.SetMetaData(ctx, "build", []byte("v1.2.3")))
	require.NoError(t, p.SetMetaData(ctx, "owner", []byte("graph-team")))

	value, err := p.MetaData(ctx, "build")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1.2.3"), value)

	all, err := p.AllMetaData(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"build": []byte("v1.2.3"),
		"owner": []byte("graph-team"),
	}, all)

	require.NoError(t, p.SetMetaData(ctx, "build", nil))
	value, err = p.MetaData(ctx, "build")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestDomainGraphNodes(t *testing.T) {
	p := newTestPersistor(t)
	ctx := context.Background()

	descriptors := map[domain.DomainGraphNodeID][]byte{
		1: []byte("shape-one"),
		2: []byte("shape-two"),
		3: []byte("shape-three"),
	}
	require.NoError(t, p.PersistDomainGraphNodes(ctx, descriptors))

	all, err := p.DomainGraphNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, descriptors, all)

	require.NoError(t, p.RemoveDomainGraphNodes(ctx, []domain.DomainGraphNodeID{2, 99}))

	all, err = p.DomainGraphNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.DomainGraphNodeID][]byte{
		1: []byte("shape-one"),
		3: []byte("shape-three"),
	}, all)
}

package persistence

import (
	"context"

	"github.com/chronograph-io/chronograph/internal/domain"
)

// Agent defines the storage operations the graph engine depends on. Every
// method is context-bound and independently failable; implementations
// dispatch each call to the table owning the entity.
type Agent interface {
	// Event journals
	PersistNodeChangeEvents(ctx context.Context, id domain.NodeID, events []domain.NodeEvent) error
	GetNodeChangeEvents(ctx context.Context, id domain.NodeID, startingAt, endingAt domain.EventTime) ([]domain.NodeEvent, error)
	DeleteNodeChangeEvents(ctx context.Context, id domain.NodeID) error

	PersistDomainIndexEvents(ctx context.Context, id domain.NodeID, events []domain.DomainIndexEvent) error
	GetDomainIndexEvents(ctx context.Context, id domain.NodeID, startingAt, endingAt domain.EventTime) ([]domain.NodeEvent, error)
	DeleteDomainIndexEvents(ctx context.Context, id domain.NodeID) error
	// DeleteDomainIndexEventsByDgnID removes every node's index events
	// referencing the descriptor. This scans the whole table, not a single
	// partition; expect it to be slow on large stores.
	DeleteDomainIndexEventsByDgnID(ctx context.Context, dgnID domain.DomainGraphNodeID) error

	// Snapshots
	PersistSnapshot(ctx context.Context, id domain.NodeID, atTime domain.EventTime, snapshot []byte) error
	// LatestSnapshot returns the most recent complete snapshot taken at or
	// before upToTime, reassembled from its parts, or nil if none exists.
	LatestSnapshot(ctx context.Context, id domain.NodeID, upToTime domain.EventTime) ([]byte, error)
	DeleteSnapshots(ctx context.Context, id domain.NodeID) error

	// Standing queries
	PersistStandingQuery(ctx context.Context, query domain.StandingQuery) error
	// RemoveStandingQuery deletes the definition and kicks off a best-effort
	// background cleanup of per-node state. The caller observes only the
	// definition delete; stale state rows may remain visible for a while.
	RemoveStandingQuery(ctx context.Context, query domain.StandingQuery) error
	StandingQueries(ctx context.Context) ([]domain.StandingQuery, error)

	// Standing query state
	StandingQueryStates(ctx context.Context, id domain.NodeID) (map[domain.StandingQueryStateKey][]byte, error)
	// SetStandingQueryState stores state for one (query, node, part); a nil
	// state deletes the row.
	SetStandingQueryState(ctx context.Context, queryID domain.StandingQueryID, id domain.NodeID, partID domain.QueryPartID, state []byte) error
	DeleteStandingQueryStates(ctx context.Context, id domain.NodeID) error

	// Metadata
	MetaData(ctx context.Context, key string) ([]byte, error)
	// SetMetaData stores a value under key; a nil value deletes the entry.
	SetMetaData(ctx context.Context, key string, value []byte) error
	AllMetaData(ctx context.Context) (map[string][]byte, error)

	// Domain graph nodes
	PersistDomainGraphNodes(ctx context.Context, descriptors map[domain.DomainGraphNodeID][]byte) error
	RemoveDomainGraphNodes(ctx context.Context, ids []domain.DomainGraphNodeID) error
	DomainGraphNodes(ctx context.Context) (map[domain.DomainGraphNodeID][]byte, error)

	// Enumeration. Each call starts a fresh scan; sequences are lazy and may
	// be abandoned by closing the iterator.
	EnumerateJournalNodeIDs(ctx context.Context) (NodeIDIter, error)
	EnumerateSnapshotNodeIDs(ctx context.Context) (NodeIDIter, error)

	// EmptyOfGraphData reports whether all six data tables are empty.
	// Metadata does not count.
	EmptyOfGraphData(ctx context.Context) (bool, error)

	// Shutdown releases the database session. Call at most once.
	Shutdown()
}

// NodeIDIter walks a lazy, possibly very large sequence of node ids.
// Next returns false once the sequence is exhausted or a read fails; check
// Err after. Close releases the underlying query resources and is safe to
// call before exhaustion.
type NodeIDIter interface {
	Next() (domain.NodeID, bool)
	Err() error
	Close() error
}

package domain

import (
	"encoding/hex"
	"math"
)

// NodeID is the opaque fixed-width byte key identifying a graph node.
// The engine assigns it; the persistence layer only ever treats it as
// raw bytes and a partition key.
type NodeID []byte

func (id NodeID) String() string {
	return hex.EncodeToString(id)
}

// Equal reports whether two node ids refer to the same node.
func (id NodeID) Equal(other NodeID) bool {
	return string(id) == string(other)
}

// EventTime is the totally ordered logical timestamp assigned to journal
// events and snapshots. Ordering within one node's journal is defined by
// EventTime alone, never by write order.
type EventTime int64

const (
	MinEventTime EventTime = math.MinInt64
	MaxEventTime EventTime = math.MaxInt64
)

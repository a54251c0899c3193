package domain

// NodeEvent is one entry in a node's change journal: an opaque serialized
// event payload at a logical timestamp. Append-only; events are never
// rewritten in place.
type NodeEvent struct {
	Time EventTime
	Data []byte
}

// DomainGraphNodeID addresses a globally shared graph-shape descriptor.
// Domain index events reference descriptors by this id.
type DomainGraphNodeID int64

// DomainIndexEvent is structurally a journal event that additionally
// records which domain graph node descriptor produced it. The descriptor
// id is what makes cascade deletion by descriptor possible.
type DomainIndexEvent struct {
	NodeEvent
	DgnID DomainGraphNodeID
}

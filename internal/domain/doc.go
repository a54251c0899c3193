// Package domain defines the core types shared between the graph engine
// and its persistence backends.
//
// Everything here is deliberately thin: node ids, event times, serialized
// event envelopes, standing-query identity, and domain graph node
// descriptor ids. The engine owns the encodings; persistence treats the
// payloads as opaque bytes.
//
// # Identity
//
// NodeID is the opaque byte key of a graph node, EventTime the totally
// ordered logical timestamp on journal entries and snapshots.
//
// # Events
//
// NodeEvent is one serialized journal entry. DomainIndexEvent extends it
// with the DomainGraphNodeID that produced it, so index entries can be
// removed in bulk when a descriptor is retired.
//
// # Standing queries
//
// StandingQuery carries a registered query's identity and serialized
// definition; StandingQueryStateKey addresses the per-node progress
// records a query accumulates.
//
// The package has no external dependencies beyond uuid generation and no
// infrastructure concerns.
package domain

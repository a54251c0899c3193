// Package persistence defines the storage contract for the graph engine.
//
// This package provides the abstraction layer for persisting and
// retrieving engine entities: per-node event journals, multipart node
// snapshots, standing queries and their per-node state, domain graph node
// descriptors, and free-form metadata. The wide-column implementations
// live in the cassandra and keyspaces subpackages.
//
// # Agent Interface
//
// The Agent interface defines all data access methods. Operations are
// context-bound and fail independently; there are no cross-table
// transactions, so multi-table effects (cascading deletes, the emptiness
// check) are composed from independent per-table calls.
//
// # Backends
//
// The cassandra subpackage implements Agent against a self-managed
// Apache Cassandra cluster. The keyspaces subpackage reuses the same
// orchestrator against Amazon Keyspaces, overriding endpoint resolution,
// authentication, consistency policy, and node-id enumeration.
package persistence

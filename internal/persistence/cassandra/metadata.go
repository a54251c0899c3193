package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
)

// metaDataTable is a global string-keyed blob store. It is deliberately
// excluded from the emptiness check: housekeeping keys survive a logically
// empty graph.
type metaDataTable struct {
	table
	getStmt    string
	setStmt    string
	deleteStmt string
	listStmt   string
}

func newMetaDataTable(session *gocql.Session, cfg *Config, options string) *metaDataTable {
	const name = "meta_data"
	return &metaDataTable{
		table: table{
			session: session,
			name:    name,
			schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				key text PRIMARY KEY,
				value blob
			)`, name),
			probeCol:      "key",
			readCL:        cfg.ReadConsistency,
			writeCL:       cfg.WriteConsistency,
			createMissing: cfg.CreateTables,
			options:       options,
		},
		getStmt:    fmt.Sprintf("SELECT value FROM %s WHERE key = ?", name),
		setStmt:    fmt.Sprintf("INSERT INTO %s (key, value) VALUES (?, ?)", name),
		deleteStmt: fmt.Sprintf("DELETE FROM %s WHERE key = ?", name),
		listStmt:   fmt.Sprintf("SELECT key, value FROM %s", name),
	}
}

// get returns the value stored under key, or nil if the key is absent.
func (t *metaDataTable) get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := t.session.Query(t.getStmt, key).
		WithContext(ctx).
		Consistency(t.readCL).
		Scan(&value)
	if err == gocql.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// set stores value under key; a nil value deletes the entry.
func (t *metaDataTable) set(ctx context.Context, key string, value []byte) error {
	var err error
	if value == nil {
		err = t.session.Query(t.deleteStmt, key).
			WithContext(ctx).
			Consistency(t.writeCL).
			Exec()
	} else {
		err = t.session.Query(t.setStmt, key, value).
			WithContext(ctx).
			Consistency(t.writeCL).
			Exec()
	}
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

func (t *metaDataTable) all(ctx context.Context) (map[string][]byte, error) {
	iter := t.session.Query(t.listStmt).
		WithContext(ctx).
		Consistency(t.readCL).
		Iter()

	out := make(map[string][]byte)
	var (
		key   string
		value []byte
	)
	for iter.Scan(&key, &value) {
		out[key] = value
		value = nil
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	return out, nil
}

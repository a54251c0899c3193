package cassandra

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocql/gocql"
)

// table holds what every entity table shares: the session, the schema
// statement, consistency levels, and the bootstrap/emptiness probes.
// Entity-specific CRUD lives on the embedding types.
type table struct {
	session *gocql.Session
	name    string
	// schema is the full CREATE TABLE IF NOT EXISTS statement, without
	// advisory options.
	schema string
	// probeCol is the partition key column used for existence and
	// emptiness probes.
	probeCol string

	readCL  gocql.Consistency
	writeCL gocql.Consistency

	createMissing bool
	options       string
}

// createStmt is the schema statement with any advisory options appended.
func (t *table) createStmt() string {
	stmt := t.schema
	if t.options != "" {
		if strings.Contains(stmt, " WITH ") {
			stmt += " AND " + t.options
		} else {
			stmt += " WITH " + t.options
		}
	}
	return stmt
}

// create brings the table up at bootstrap: issues the schema statement if
// auto-creation is on, then probes the table. The probe doubles as the
// existence check when auto-creation is off.
func (t *table) create(ctx context.Context) error {
	if t.createMissing {
		if err := t.session.Query(t.createStmt()).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	if _, err := t.nonEmpty(ctx); err != nil {
		return fmt.Errorf("verify table %s: %w", t.name, err)
	}
	return nil
}

// nonEmpty reports whether the table holds at least one row.
func (t *table) nonEmpty(ctx context.Context) (bool, error) {
	iter := t.session.Query("SELECT "+t.probeCol+" FROM "+t.name+" LIMIT 1").
		WithContext(ctx).
		Consistency(t.readCL).
		Iter()
	n := iter.NumRows()
	if err := iter.Close(); err != nil {
		return false, fmt.Errorf("probe table %s: %w", t.name, err)
	}
	return n > 0, nil
}

package cassandra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateStmtAppendsOptions(t *testing.T) {
	plain := table{
		name:   "meta_data",
		schema: "CREATE TABLE IF NOT EXISTS meta_data (key text PRIMARY KEY, value blob)",
	}
	assert.Equal(t, plain.schema, plain.createStmt(), "no options leaves the schema untouched")

	plain.options = "bloom_filter_fp_chance = 0.01"
	assert.Equal(t,
		plain.schema+" WITH bloom_filter_fp_chance = 0.01",
		plain.createStmt())

	clustered := table{
		name:    "journals",
		schema:  "CREATE TABLE IF NOT EXISTS journals (node_id blob, PRIMARY KEY ((node_id))) WITH CLUSTERING ORDER BY (event_time ASC)",
		options: "bloom_filter_fp_chance = 0.01",
	}
	assert.Equal(t,
		clustered.schema+" AND bloom_filter_fp_chance = 0.01",
		clustered.createStmt(),
		"a schema that already has WITH gets AND")
}

func TestIsKeyspaceMissing(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want bool
	}{
		{name: "cassandra wording", msg: "Keyspace 'chronograph' does not exist", want: true},
		{name: "lowercase wording", msg: "keyspace chronograph does not exist", want: true},
		{name: "table missing", msg: "table journals does not exist", want: false},
		{name: "unrelated error", msg: "no connections were made when creating the session", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isKeyspaceMissing(errMsg(tt.msg)))
		})
	}
}

type errMsg string

func (e errMsg) Error() string { return string(e) }

package cassandra

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

const (
	// DefaultPort is the native protocol port of a self-managed cluster.
	DefaultPort = 9042

	// DefaultSnapshotPartMaxSize bounds one snapshot row's payload. Large
	// serialized nodes are split across rows at this size.
	DefaultSnapshotPartMaxSize = 1000 * 1000

	// bootstrapTimeout bounds the joint creation of all tables at
	// construction. Exceeding it fails construction outright.
	bootstrapTimeout = 5 * time.Second
)

// Config carries everything needed to reach a keyspace and tune the
// persistor. Zero values are filled in by applyDefaults at construction.
type Config struct {
	Keyspace        string
	Hosts           []string
	Port            int
	LocalDatacenter string

	Username string
	Password string

	ReadConsistency  gocql.Consistency
	WriteConsistency gocql.Consistency

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// CreateKeyspace enables the create-then-retry sequence when the
	// initial session open fails because the keyspace does not exist.
	CreateKeyspace bool
	// CreateTables enables CREATE TABLE IF NOT EXISTS at bootstrap. When
	// false, construction fails if any table is missing.
	CreateTables bool

	// ReplicationFactor is used only when this layer creates the keyspace.
	ReplicationFactor int

	SnapshotPartMaxSize int

	// BloomFilterFPChance is an advisory table-creation hint; backends that
	// do not accept table tuning ignore it. Zero leaves the server default.
	BloomFilterFPChance float64
}

func (c *Config) applyDefaults() {
	if c.Keyspace == "" {
		c.Keyspace = "chronograph"
	}
	if len(c.Hosts) == 0 {
		c.Hosts = []string{"127.0.0.1"}
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	// gocql's zero Consistency is ANY, which servers reject for reads.
	if c.ReadConsistency == gocql.Any {
		c.ReadConsistency = gocql.LocalQuorum
	}
	if c.WriteConsistency == gocql.Any {
		c.WriteConsistency = gocql.LocalQuorum
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReplicationFactor == 0 {
		c.ReplicationFactor = 1
	}
	if c.SnapshotPartMaxSize == 0 {
		c.SnapshotPartMaxSize = DefaultSnapshotPartMaxSize
	}
}

func (c *Config) validate() error {
	if c.SnapshotPartMaxSize < 1 {
		return fmt.Errorf("snapshot part max size must be positive, got %d", c.SnapshotPartMaxSize)
	}
	if c.BloomFilterFPChance < 0 || c.BloomFilterFPChance > 1 {
		return fmt.Errorf("bloom filter fp chance must be in [0,1], got %g", c.BloomFilterFPChance)
	}
	return nil
}

package cassandra

import (
	"fmt"

	"github.com/gocql/gocql"

	"github.com/chronograph-io/chronograph/internal/persistence"
)

// Backend is the small policy surface that distinguishes a self-managed
// cluster from a managed cloud service: endpoint and auth setup, keyspace
// replication, table tuning, and enumeration post-processing. Everything
// else is shared by the orchestrator.
type Backend interface {
	// Configure applies endpoint, authentication and connection policy to
	// the cluster config before a session is opened.
	Configure(cluster *gocql.ClusterConfig, cfg *Config) error

	// KeyspaceReplication returns the replication clause used if this layer
	// has to create the keyspace on first use.
	KeyspaceReplication(cfg *Config) string

	// TableOptions returns advisory options appended to CREATE TABLE
	// statements, or "" for none.
	TableOptions(cfg *Config) string

	// FilterNodeIDs post-processes an enumeration sequence. Backends whose
	// scans can surface duplicate partition keys wrap the iterator here.
	FilterNodeIDs(it persistence.NodeIDIter) persistence.NodeIDIter
}

// selfManaged is the default backend policy for a plain Cassandra cluster:
// configured consistency is honored as-is, SimpleStrategy replication, and
// enumeration results pass through untouched.
type selfManaged struct{}

// SelfManaged returns the backend policy for a self-managed cluster.
func SelfManaged() Backend {
	return selfManaged{}
}

func (selfManaged) Configure(cluster *gocql.ClusterConfig, cfg *Config) error {
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	if cfg.LocalDatacenter != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(
			gocql.DCAwareRoundRobinPolicy(cfg.LocalDatacenter))
	}
	return nil
}

func (selfManaged) KeyspaceReplication(cfg *Config) string {
	return fmt.Sprintf("{'class': 'SimpleStrategy', 'replication_factor': %d}", cfg.ReplicationFactor)
}

func (selfManaged) TableOptions(cfg *Config) string {
	if cfg.BloomFilterFPChance > 0 {
		return fmt.Sprintf("bloom_filter_fp_chance = %g", cfg.BloomFilterFPChance)
	}
	return ""
}

func (selfManaged) FilterNodeIDs(it persistence.NodeIDIter) persistence.NodeIDIter {
	return it
}

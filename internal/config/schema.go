package config

import "time"

// BackendKind selects which persistence backend to build.
type BackendKind string

const (
	BackendCassandra BackendKind = "cassandra"
	BackendKeyspaces BackendKind = "keyspaces"
)

// Config is the root configuration structure.
type Config struct {
	Version  int         `yaml:"version"`
	Backend  BackendKind `yaml:"backend"`
	Keyspace string      `yaml:"keyspace"`

	Cassandra CassandraConfig `yaml:"cassandra"`
	Keyspaces KeyspacesConfig `yaml:"keyspaces"`

	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`

	CreateKeyspace bool `yaml:"create_keyspace"`
	CreateTables   bool `yaml:"create_tables"`

	SnapshotPartMaxSize int `yaml:"snapshot_part_max_size"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the wrapped standard duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// CassandraConfig configures a self-managed cluster backend.
type CassandraConfig struct {
	Hosts           []string `yaml:"hosts"`
	Port            int      `yaml:"port"`
	LocalDatacenter string   `yaml:"local_datacenter,omitempty"`

	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	ReadConsistency  string `yaml:"read_consistency"`
	WriteConsistency string `yaml:"write_consistency"`

	ReplicationFactor int `yaml:"replication_factor"`

	// BloomFilterFPChance is an advisory table tuning hint; zero leaves the
	// server default.
	BloomFilterFPChance float64 `yaml:"bloom_filter_fp_chance,omitempty"`
}

// KeyspacesConfig configures the Amazon Keyspaces backend. Credentials come
// from the standard AWS chain, never from this file, and write consistency
// is pinned by the service.
type KeyspacesConfig struct {
	Region          string `yaml:"region"`
	ReadConsistency string `yaml:"read_consistency"`
}

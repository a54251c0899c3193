// Package keyspaces adapts the cassandra persistor to Amazon Keyspaces.
//
// Keyspaces speaks CQL but is not a Cassandra cluster: endpoints are fixed
// per region on port 9142, authentication is SigV4 request signing, write
// consistency is not negotiable, and a full scan over a table's partition
// keys can surface the same key more than once. This package carries those
// differences as a backend policy; everything else is the shared
// orchestrator.
package keyspaces

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sigv4-auth-cassandra-gocql-driver-plugin/sigv4"
	"github.com/gocql/gocql"

	"github.com/chronograph-io/chronograph/internal/domain"
	"github.com/chronograph-io/chronograph/internal/persistence"
	"github.com/chronograph-io/chronograph/internal/persistence/cassandra"
)

// Port is the CQL port of every Keyspaces endpoint (TLS only).
const Port = 9142

var (
	// ErrUnsupportedRegion is returned for regions Keyspaces does not serve.
	ErrUnsupportedRegion = errors.New("keyspaces: unsupported region")

	// ErrInvalidReadConsistency is returned when the configured read
	// consistency is outside what Keyspaces accepts.
	ErrInvalidReadConsistency = errors.New("keyspaces: read consistency must be ONE, LOCAL_ONE or LOCAL_QUORUM")
)

// endpoints maps each served region to its fixed hostname.
var endpoints = map[string]string{
	"us-east-1":      "cassandra.us-east-1.amazonaws.com",
	"us-east-2":      "cassandra.us-east-2.amazonaws.com",
	"us-west-1":      "cassandra.us-west-1.amazonaws.com",
	"us-west-2":      "cassandra.us-west-2.amazonaws.com",
	"ap-east-1":      "cassandra.ap-east-1.amazonaws.com",
	"ap-south-1":     "cassandra.ap-south-1.amazonaws.com",
	"ap-northeast-1": "cassandra.ap-northeast-1.amazonaws.com",
	"ap-northeast-2": "cassandra.ap-northeast-2.amazonaws.com",
	"ap-southeast-1": "cassandra.ap-southeast-1.amazonaws.com",
	"ap-southeast-2": "cassandra.ap-southeast-2.amazonaws.com",
	"ca-central-1":   "cassandra.ca-central-1.amazonaws.com",
	"eu-central-1":   "cassandra.eu-central-1.amazonaws.com",
	"eu-west-1":      "cassandra.eu-west-1.amazonaws.com",
	"eu-west-2":      "cassandra.eu-west-2.amazonaws.com",
	"eu-west-3":      "cassandra.eu-west-3.amazonaws.com",
	"eu-north-1":     "cassandra.eu-north-1.amazonaws.com",
	"me-south-1":     "cassandra.me-south-1.amazonaws.com",
	"sa-east-1":      "cassandra.sa-east-1.amazonaws.com",
	"cn-north-1":     "cassandra.cn-north-1.amazonaws.com.cn",
	"cn-northwest-1": "cassandra.cn-northwest-1.amazonaws.com.cn",
}

// Config carries the Keyspaces-specific configuration surface. Write
// consistency is absent on purpose: Keyspaces only accepts LOCAL_QUORUM
// writes, so it is pinned rather than configured.
type Config struct {
	Region   string
	Keyspace string

	ReadConsistency gocql.Consistency

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	CreateKeyspace bool
	CreateTables   bool

	SnapshotPartMaxSize int
}

// New resolves the regional endpoint, wires SigV4 signing from the default
// AWS credential chain, and builds the shared orchestrator with the
// Keyspaces backend policy. Unsupported regions and disallowed read
// consistency levels fail here, before any connection is attempted.
func New(ctx context.Context, cfg Config, opts ...cassandra.Option) (*cassandra.Persistor, error) {
	host, err := Endpoint(cfg.Region)
	if err != nil {
		return nil, err
	}
	if !validReadConsistency(cfg.ReadConsistency) {
		return nil, fmt.Errorf("%w, got %s", ErrInvalidReadConsistency, cfg.ReadConsistency)
	}

	awscfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}
	creds, err := awscfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve aws credentials: %w", err)
	}

	auth := sigv4.NewAwsAuthenticator()
	auth.Region = cfg.Region
	auth.AccessKeyId = creds.AccessKeyID
	auth.SecretAccessKey = creds.SecretAccessKey
	auth.SessionToken = creds.SessionToken

	ccfg := cassandra.Config{
		Keyspace:        cfg.Keyspace,
		Hosts:           []string{host},
		Port:            Port,
		LocalDatacenter: cfg.Region,
		ReadConsistency: cfg.ReadConsistency,
		// Keyspaces does not let clients pick write consistency.
		WriteConsistency:    gocql.LocalQuorum,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		CreateKeyspace:      cfg.CreateKeyspace,
		CreateTables:        cfg.CreateTables,
		SnapshotPartMaxSize: cfg.SnapshotPartMaxSize,
	}

	opts = append([]cassandra.Option{cassandra.WithBackend(&backend{auth: auth})}, opts...)
	return cassandra.New(ctx, ccfg, opts...)
}

// Endpoint returns the fixed hostname serving the region.
func Endpoint(region string) (string, error) {
	host, ok := endpoints[region]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRegion, region)
	}
	return host, nil
}

func validReadConsistency(cl gocql.Consistency) bool {
	switch cl {
	case gocql.One, gocql.LocalOne, gocql.LocalQuorum:
		return true
	}
	return false
}

// backend is the cassandra.Backend policy for Keyspaces.
type backend struct {
	auth sigv4.AwsAuthenticator
}

func (b *backend) Configure(cluster *gocql.ClusterConfig, cfg *cassandra.Config) error {
	cluster.Authenticator = b.auth
	cluster.SslOpts = &gocql.SslOptions{}
	cluster.PoolConfig.HostSelectionPolicy = gocql.DCAwareRoundRobinPolicy(cfg.LocalDatacenter)
	// The fixed endpoint is the only contact point; peer discovery would
	// return unroutable internal addresses.
	cluster.DisableInitialHostLookup = true
	return nil
}

func (b *backend) KeyspaceReplication(cfg *cassandra.Config) string {
	return "{'class': 'SingleRegionStrategy'}"
}

// TableOptions suppresses advisory tuning; Keyspaces rejects most table
// options, including bloom filter settings.
func (b *backend) TableOptions(cfg *cassandra.Config) string {
	return ""
}

// FilterNodeIDs deduplicates enumeration output. Keyspaces' distributed
// index can report a partition key more than once during a full scan, so
// every id seen is remembered for the lifetime of the enumeration. Memory
// grows with the number of distinct ids produced; on very large graphs
// that is unbounded.
func (b *backend) FilterNodeIDs(it persistence.NodeIDIter) persistence.NodeIDIter {
	return &distinctIter{inner: it, seen: make(map[string]struct{})}
}

type distinctIter struct {
	inner persistence.NodeIDIter
	seen  map[string]struct{}
}

func (it *distinctIter) Next() (domain.NodeID, bool) {
	for {
		id, ok := it.inner.Next()
		if !ok {
			return nil, false
		}
		key := string(id)
		if _, dup := it.seen[key]; dup {
			continue
		}
		it.seen[key] = struct{}{}
		return id, true
	}
}

func (it *distinctIter) Err() error { return it.inner.Err() }

func (it *distinctIter) Close() error { return it.inner.Close() }

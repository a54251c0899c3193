package cassandra

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gocql/gocql"
	"golang.org/x/sync/errgroup"

	"github.com/chronograph-io/chronograph/internal/domain"
	"github.com/chronograph-io/chronograph/internal/persistence"
)

// Persistor implements persistence.Agent on top of a wide-column store.
// It owns the session and the seven table handles for its whole lifetime;
// Shutdown closes the session exactly once.
type Persistor struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger
	session *gocql.Session

	journals          *journalTable
	domainIndexEvents *domainIndexTable
	snapshots         *snapshotTable
	standingQueries   *standingQueryTable
	queryStates       *standingQueryStateTable
	metaData          *metaDataTable
	domainGraphNodes  *domainGraphNodeTable
}

var _ persistence.Agent = (*Persistor)(nil)

// Option adjusts persistor construction.
type Option func(*Persistor)

// WithBackend swaps the backend policy. The keyspaces package uses this to
// reuse the orchestrator against Amazon Keyspaces.
func WithBackend(b Backend) Option {
	return func(p *Persistor) { p.backend = b }
}

// WithLogger sets the logger used for background cleanup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Persistor) { p.logger = logger }
}

// New connects to the cluster, creates the keyspace if permitted and
// missing, and bootstraps all seven tables concurrently. Construction is
// all-or-nothing: any table failing, or the bootstrap barrier timing out,
// fails New and no partially usable persistor is returned.
func New(ctx context.Context, cfg Config, opts ...Option) (*Persistor, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("cassandra config: %w", err)
	}

	p := &Persistor{
		cfg:     cfg,
		backend: SelfManaged(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	session, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	p.session = session

	options := p.backend.TableOptions(&p.cfg)
	p.journals = newJournalTable(session, &p.cfg, options, "journals")
	p.domainIndexEvents = newDomainIndexTable(session, &p.cfg, options)
	p.snapshots = newSnapshotTable(session, &p.cfg, options)
	p.standingQueries = newStandingQueryTable(session, &p.cfg, options)
	p.queryStates = newStandingQueryStateTable(session, &p.cfg, options)
	p.metaData = newMetaDataTable(session, &p.cfg, options)
	p.domainGraphNodes = newDomainGraphNodeTable(session, &p.cfg, options)

	if err := p.bootstrap(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return p, nil
}

// connect opens a session scoped to the keyspace. If that fails because
// the keyspace does not exist and creation is enabled, it creates the
// keyspace through an unscoped session and retries the scoped open once.
// Creation may not be immediately visible on eventually consistent
// backends; a second keyspace-not-found is fatal.
func (p *Persistor) connect(ctx context.Context) (*gocql.Session, error) {
	cluster := gocql.NewCluster(p.cfg.Hosts...)
	cluster.Port = p.cfg.Port
	cluster.Keyspace = p.cfg.Keyspace
	// gocql carries a single request timeout; the larger configured bound
	// applies driver-wide and callers tighten reads through their contexts.
	cluster.Timeout = max(p.cfg.ReadTimeout, p.cfg.WriteTimeout)
	if err := p.backend.Configure(cluster, &p.cfg); err != nil {
		return nil, fmt.Errorf("configure cluster: %w", err)
	}

	session, err := cluster.CreateSession()
	if err == nil {
		return session, nil
	}
	if !isKeyspaceMissing(err) || !p.cfg.CreateKeyspace {
		return nil, fmt.Errorf("open session for keyspace %q: %w", p.cfg.Keyspace, err)
	}

	if err := p.createKeyspace(ctx, cluster); err != nil {
		return nil, err
	}

	session, err = cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("open session for keyspace %q after creating it: %w", p.cfg.Keyspace, err)
	}
	return session, nil
}

func (p *Persistor) createKeyspace(ctx context.Context, scoped *gocql.ClusterConfig) error {
	unscoped := *scoped
	unscoped.Keyspace = ""
	session, err := unscoped.CreateSession()
	if err != nil {
		return fmt.Errorf("open unscoped session: %w", err)
	}
	defer session.Close()

	stmt := fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH replication = %s",
		p.cfg.Keyspace, p.backend.KeyspaceReplication(&p.cfg))
	if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace %q: %w", p.cfg.Keyspace, err)
	}
	p.logger.Info("created keyspace", "keyspace", p.cfg.Keyspace)
	return nil
}

// isKeyspaceMissing matches the server's keyspace-not-found message; gocql
// exposes it only as error text.
func isKeyspaceMissing(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "keyspace") && strings.Contains(msg, "does not exist")
}

// bootstrap creates all seven tables concurrently under one bounded
// barrier. A timeout here is unrecoverable: there is no partial-success
// mode where only some tables are usable.
func (p *Persistor) bootstrap(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range p.allTables() {
		g.Go(func() error { return t.create(ctx) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("bootstrap tables: %w", err)
	}
	return nil
}

func (p *Persistor) allTables() []*table {
	return append(p.dataTables(), &p.metaData.table)
}

// dataTables are the six tables that count toward EmptyOfGraphData.
func (p *Persistor) dataTables() []*table {
	return []*table{
		&p.journals.table,
		&p.domainIndexEvents.table,
		&p.snapshots.table,
		&p.standingQueries.table,
		&p.queryStates.table,
		&p.domainGraphNodes.table,
	}
}

func (p *Persistor) PersistNodeChangeEvents(ctx context.Context, id domain.NodeID, events []domain.NodeEvent) error {
	return p.journals.append(ctx, id, events)
}

func (p *Persistor) GetNodeChangeEvents(ctx context.Context, id domain.NodeID, startingAt, endingAt domain.EventTime) ([]domain.NodeEvent, error) {
	return p.journals.events(ctx, id, startingAt, endingAt)
}

func (p *Persistor) DeleteNodeChangeEvents(ctx context.Context, id domain.NodeID) error {
	return p.journals.deleteNode(ctx, id)
}

func (p *Persistor) PersistDomainIndexEvents(ctx context.Context, id domain.NodeID, events []domain.DomainIndexEvent) error {
	return p.domainIndexEvents.appendIndexed(ctx, id, events)
}

func (p *Persistor) GetDomainIndexEvents(ctx context.Context, id domain.NodeID, startingAt, endingAt domain.EventTime) ([]domain.NodeEvent, error) {
	return p.domainIndexEvents.events(ctx, id, startingAt, endingAt)
}

func (p *Persistor) DeleteDomainIndexEvents(ctx context.Context, id domain.NodeID) error {
	return p.domainIndexEvents.deleteNode(ctx, id)
}

func (p *Persistor) DeleteDomainIndexEventsByDgnID(ctx context.Context, dgnID domain.DomainGraphNodeID) error {
	return p.domainIndexEvents.deleteByDgnID(ctx, dgnID)
}

// PersistSnapshot splits the serialized snapshot into parts no larger than
// the configured maximum and writes one row per part.
func (p *Persistor) PersistSnapshot(ctx context.Context, id domain.NodeID, atTime domain.EventTime, snapshot []byte) error {
	parts := splitSnapshot(snapshot, p.cfg.SnapshotPartMaxSize)
	return p.snapshots.persistParts(ctx, id, atTime, parts)
}

// LatestSnapshot finds the newest snapshot at or before upToTime and
// reassembles it by concatenating its parts in part order.
func (p *Persistor) LatestSnapshot(ctx context.Context, id domain.NodeID, upToTime domain.EventTime) ([]byte, error) {
	atTime, found, err := p.snapshots.latestTime(ctx, id, upToTime)
	if err != nil || !found {
		return nil, err
	}
	parts, partCount, err := p.snapshots.parts(ctx, id, atTime)
	if err != nil {
		return nil, err
	}
	if len(parts) != partCount {
		// A write that crashed between part inserts leaves fewer rows than
		// the recorded count. The truncated snapshot is still returned;
		// callers treating snapshots as a cache re-derive from the journal.
		p.logger.Warn("snapshot part count mismatch",
			"node", id.String(), "time", int64(atTime), "have", len(parts), "want", partCount)
	}
	var size int
	for _, part := range parts {
		size += len(part)
	}
	snapshot := make([]byte, 0, size)
	for _, part := range parts {
		snapshot = append(snapshot, part...)
	}
	return snapshot, nil
}

func (p *Persistor) DeleteSnapshots(ctx context.Context, id domain.NodeID) error {
	return p.snapshots.deleteNode(ctx, id)
}

func (p *Persistor) PersistStandingQuery(ctx context.Context, query domain.StandingQuery) error {
	return p.standingQueries.persist(ctx, query)
}

// RemoveStandingQuery deletes the query definition and spawns a detached
// best-effort cleanup of the query's per-node state. The caller awaits
// only the definition delete, so stale state rows can remain visible
// until the background task catches up; its failure is logged, never
// surfaced.
func (p *Persistor) RemoveStandingQuery(ctx context.Context, query domain.StandingQuery) error {
	cleanupCtx := context.WithoutCancel(ctx)
	go func() {
		if err := p.queryStates.deleteForQuery(cleanupCtx, query.ID); err != nil {
			p.logger.Error("standing query state cleanup failed",
				"query", query.ID, "error", err)
		}
	}()
	return p.standingQueries.remove(ctx, query.ID)
}

func (p *Persistor) StandingQueries(ctx context.Context) ([]domain.StandingQuery, error) {
	return p.standingQueries.list(ctx)
}

func (p *Persistor) StandingQueryStates(ctx context.Context, id domain.NodeID) (map[domain.StandingQueryStateKey][]byte, error) {
	return p.queryStates.states(ctx, id)
}

func (p *Persistor) SetStandingQueryState(ctx context.Context, queryID domain.StandingQueryID, id domain.NodeID, partID domain.QueryPartID, state []byte) error {
	return p.queryStates.set(ctx, queryID, id, partID, state)
}

func (p *Persistor) DeleteStandingQueryStates(ctx context.Context, id domain.NodeID) error {
	return p.queryStates.deleteForNode(ctx, id)
}

func (p *Persistor) MetaData(ctx context.Context, key string) ([]byte, error) {
	return p.metaData.get(ctx, key)
}

func (p *Persistor) SetMetaData(ctx context.Context, key string, value []byte) error {
	return p.metaData.set(ctx, key, value)
}

func (p *Persistor) AllMetaData(ctx context.Context) (map[string][]byte, error) {
	return p.metaData.all(ctx)
}

func (p *Persistor) PersistDomainGraphNodes(ctx context.Context, descriptors map[domain.DomainGraphNodeID][]byte) error {
	return p.domainGraphNodes.persist(ctx, descriptors)
}

func (p *Persistor) RemoveDomainGraphNodes(ctx context.Context, ids []domain.DomainGraphNodeID) error {
	return p.domainGraphNodes.remove(ctx, ids)
}

func (p *Persistor) DomainGraphNodes(ctx context.Context) (map[domain.DomainGraphNodeID][]byte, error) {
	return p.domainGraphNodes.all(ctx)
}

func (p *Persistor) EnumerateJournalNodeIDs(ctx context.Context) (persistence.NodeIDIter, error) {
	return p.backend.FilterNodeIDs(p.journals.enumerateNodeIDs(ctx)), nil
}

func (p *Persistor) EnumerateSnapshotNodeIDs(ctx context.Context) (persistence.NodeIDIter, error) {
	return p.backend.FilterNodeIDs(p.snapshots.enumerateNodeIDs(ctx)), nil
}

// EmptyOfGraphData probes the six data tables concurrently and reports
// true only if none holds a row. Metadata does not count.
func (p *Persistor) EmptyOfGraphData(ctx context.Context) (bool, error) {
	g, ctx := errgroup.WithContext(ctx)
	var nonEmpty atomic.Bool
	for _, t := range p.dataTables() {
		g.Go(func() error {
			ne, err := t.nonEmpty(ctx)
			if err != nil {
				return err
			}
			if ne {
				nonEmpty.Store(true)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("emptiness check: %w", err)
	}
	return !nonEmpty.Load(), nil
}

// Shutdown closes the session. Call at most once; operations issued after
// Shutdown fail.
func (p *Persistor) Shutdown() {
	p.session.Close()
}

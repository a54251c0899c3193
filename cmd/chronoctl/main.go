// Command chronoctl is a small operator tool for a Chronograph store:
// it reports bootstrap/emptiness status, enumerates node ids, and reads
// and writes metadata keys.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gocql/gocql"

	"github.com/chronograph-io/chronograph/internal/config"
	"github.com/chronograph-io/chronograph/internal/persistence"
	"github.com/chronograph-io/chronograph/internal/persistence/cassandra"
	"github.com/chronograph-io/chronograph/internal/persistence/keyspaces"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if path != "" {
		logger.Info("loaded config", "path", path)
	}

	agent, err := openAgent(ctx, cfg, logger)
	if err != nil {
		logger.Error("open persistor", "error", err)
		os.Exit(1)
	}
	defer agent.Shutdown()

	if err := run(ctx, agent, flag.Args()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: chronoctl [-config path] <command> [args]

Commands:
  status                  report backend reachability and emptiness
  nodes journals          list node ids present in the event journal
  nodes snapshots         list node ids holding snapshots
  meta list               print all metadata keys and value sizes
  meta get <key>          print a metadata value
  meta set <key> <value>  store a metadata value
  meta del <key>          delete a metadata key
`)
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func openAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger) (persistence.Agent, error) {
	switch cfg.Backend {
	case config.BackendCassandra:
		readCL, err := gocql.ParseConsistencyWrapper(cfg.Cassandra.ReadConsistency)
		if err != nil {
			return nil, fmt.Errorf("read consistency: %w", err)
		}
		writeCL, err := gocql.ParseConsistencyWrapper(cfg.Cassandra.WriteConsistency)
		if err != nil {
			return nil, fmt.Errorf("write consistency: %w", err)
		}
		return cassandra.New(ctx, cassandra.Config{
			Keyspace:            cfg.Keyspace,
			Hosts:               cfg.Cassandra.Hosts,
			Port:                cfg.Cassandra.Port,
			LocalDatacenter:     cfg.Cassandra.LocalDatacenter,
			Username:            cfg.Cassandra.Username,
			Password:            cfg.Cassandra.Password,
			ReadConsistency:     readCL,
			WriteConsistency:    writeCL,
			ReadTimeout:         cfg.ReadTimeout.Duration(),
			WriteTimeout:        cfg.WriteTimeout.Duration(),
			CreateKeyspace:      cfg.CreateKeyspace,
			CreateTables:        cfg.CreateTables,
			ReplicationFactor:   cfg.Cassandra.ReplicationFactor,
			SnapshotPartMaxSize: cfg.SnapshotPartMaxSize,
			BloomFilterFPChance: cfg.Cassandra.BloomFilterFPChance,
		}, cassandra.WithLogger(logger))

	case config.BackendKeyspaces:
		readCL, err := gocql.ParseConsistencyWrapper(cfg.Keyspaces.ReadConsistency)
		if err != nil {
			return nil, fmt.Errorf("read consistency: %w", err)
		}
		return keyspaces.New(ctx, keyspaces.Config{
			Region:              cfg.Keyspaces.Region,
			Keyspace:            cfg.Keyspace,
			ReadConsistency:     readCL,
			ReadTimeout:         cfg.ReadTimeout.Duration(),
			WriteTimeout:        cfg.WriteTimeout.Duration(),
			CreateKeyspace:      cfg.CreateKeyspace,
			CreateTables:        cfg.CreateTables,
			SnapshotPartMaxSize: cfg.SnapshotPartMaxSize,
		}, cassandra.WithLogger(logger))

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func run(ctx context.Context, agent persistence.Agent, args []string) error {
	switch args[0] {
	case "status":
		return statusCmd(ctx, agent)
	case "nodes":
		if len(args) != 2 {
			return fmt.Errorf("usage: nodes journals|snapshots")
		}
		return nodesCmd(ctx, agent, args[1])
	case "meta":
		if len(args) < 2 {
			return fmt.Errorf("usage: meta list|get|set|del")
		}
		return metaCmd(ctx, agent, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func statusCmd(ctx context.Context, agent persistence.Agent) error {
	empty, err := agent.EmptyOfGraphData(ctx)
	if err != nil {
		return err
	}
	queries, err := agent.StandingQueries(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("reachable: yes\nempty of graph data: %v\nstanding queries: %d\n", empty, len(queries))
	return nil
}

func nodesCmd(ctx context.Context, agent persistence.Agent, table string) error {
	var (
		it  persistence.NodeIDIter
		err error
	)
	switch table {
	case "journals":
		it, err = agent.EnumerateJournalNodeIDs(ctx)
	case "snapshots":
		it, err = agent.EnumerateSnapshotNodeIDs(ctx)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
	if err != nil {
		return err
	}
	defer it.Close()

	count := 0
	for {
		id, ok := it.Next()
		if !ok {
			break
		}
		fmt.Println(id)
		count++
	}
	if err := it.Err(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d node ids\n", count)
	return nil
}

func metaCmd(ctx context.Context, agent persistence.Agent, args []string) error {
	switch args[0] {
	case "list":
		all, err := agent.AllMetaData(ctx)
		if err != nil {
			return err
		}
		for key, value := range all {
			fmt.Printf("%s\t%d bytes\n", key, len(value))
		}
		return nil
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: meta get <key>")
		}
		value, err := agent.MetaData(ctx, args[1])
		if err != nil {
			return err
		}
		if value == nil {
			return fmt.Errorf("key %q not found", args[1])
		}
		os.Stdout.Write(value)
		return nil
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: meta set <key> <value>")
		}
		return agent.SetMetaData(ctx, args[1], []byte(args[2]))
	case "del":
		if len(args) != 2 {
			return fmt.Errorf("usage: meta del <key>")
		}
		return agent.SetMetaData(ctx, args[1], nil)
	default:
		return fmt.Errorf("unknown meta subcommand %q", args[0])
	}
}

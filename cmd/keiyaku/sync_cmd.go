package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hakenworks/keiyaku/pkg/artifacts"
	"github.com/hakenworks/keiyaku/pkg/domain"
	"github.com/hakenworks/keiyaku/pkg/reconcile"
)

// overrideFlags collects repeated --override pairs. Keys follow the
// conflict key format "<entity key>:<field>".
type overrideFlags map[string]domain.ConflictStrategy

func (o overrideFlags) String() string { return fmt.Sprintf("%v", map[string]domain.ConflictStrategy(o)) }

func (o overrideFlags) Set(v string) error {
	key, strategy, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("expected key=strategy, got %q", v)
	}
	o[key] = domain.ConflictStrategy(strategy)
	return nil
}

func newResolver(ctx context.Context, e *env, stderr io.Writer) (*reconcile.Resolver, error) {
	snapshots, err := artifacts.NewStoreFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	opts := []reconcile.Option{
		reconcile.WithSnapshots(snapshots),
		reconcile.WithMetrics(e.metrics),
		reconcile.WithLogger(newLogger(stderr, e.cfg.LogLevel)),
	}
	if lock := e.runLock(); lock != nil {
		opts = append(opts, reconcile.WithRunLock(lock))
	}
	return reconcile.New(e.store, opts...), nil
}

func runSyncCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sync", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		batchPath  string
		apply      bool
		strategy   string
		jsonOutput bool
	)
	overrides := overrideFlags{}
	cmd.StringVar(&batchPath, "batch", "", "Path to the extracted batch JSON (REQUIRED)")
	cmd.BoolVar(&apply, "apply", false, "Apply the changes; default is analyze only")
	cmd.StringVar(&strategy, "strategy", string(domain.StrategyManual), "Conflict strategy (source_wins, db_wins, newest_wins, manual)")
	cmd.Var(overrides, "override", "Per-conflict strategy, e.g. --override W-001:hourly_rate=db_wins (repeatable)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if batchPath == "" {
		fmt.Fprintln(stderr, "Error: --batch is required")
		cmd.Usage()
		return 2
	}

	data, err := os.ReadFile(batchPath)
	if err != nil {
		fmt.Fprintf(stderr, "Read batch: %v\n", err)
		return 2
	}
	var batch reconcile.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		fmt.Fprintf(stderr, "Parse batch: %v\n", err)
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer func() { _ = e.Close() }()

	resolver, err := newResolver(ctx, e, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	analysis, err := resolver.Analyze(ctx, &batch)
	if err != nil {
		fmt.Fprintf(stderr, "Analyze failed: %v\n", err)
		return 1
	}

	if !apply {
		if jsonOutput {
			return printJSON(stdout, stderr, analysis)
		}
		renderAnalysis(stdout, analysis)
		return 0
	}

	result, err := resolver.Resolve(ctx, analysis, domain.ConflictStrategy(strategy), overrides)
	if err != nil {
		fmt.Fprintf(stderr, "Resolve failed: %v\n", err)
		return 1
	}
	if jsonOutput {
		return printJSON(stdout, stderr, result)
	}
	fmt.Fprintf(stdout, "Sync %s: %d created, %d updated, %d skipped, %d conflicts resolved\n",
		result.Collection, result.Created, result.Updated, result.Skipped, result.Resolved)
	if result.SnapshotID != "" {
		fmt.Fprintf(stdout, "Snapshot: %s\n", result.SnapshotID)
	}
	for _, c := range result.Pending {
		fmt.Fprintf(stdout, "  pending %s: stored %q, source %q\n", c.Key, c.Stored, c.Source)
	}
	if len(result.Pending) > 0 {
		return 1
	}
	return 0
}

func renderAnalysis(w io.Writer, a *reconcile.SyncAnalysis) {
	fmt.Fprintf(w, "Analysis %s: %d create, %d update, %d unchanged, %d store-only\n",
		a.Collection, a.Creates, a.Updates, a.Unchanged, len(a.StoreOnly))
	for _, ch := range a.Changes {
		if len(ch.Fills) == 0 && len(ch.Conflicts) == 0 {
			continue
		}
		if len(ch.Conflicts) > 0 {
			fmt.Fprintf(w, "  %s (%s, worst %s)\n", ch.Key, ch.Class, ch.MaxSeverity())
		} else {
			fmt.Fprintf(w, "  %s (%s)\n", ch.Key, ch.Class)
		}
		for _, f := range ch.Fills {
			fmt.Fprintf(w, "    fill %s: %q\n", f.Field, f.Value)
		}
		for _, c := range ch.Conflicts {
			fmt.Fprintf(w, "    conflict %s [%s]: stored %q, source %q (recommended %s)\n",
				c.Field, c.Severity, c.Stored, c.Source, c.Default)
		}
	}
	if n := a.TotalConflicts(); n > 0 {
		fmt.Fprintf(w, "%d conflicts need a strategy\n", n)
	}
}

func runSnapshotsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("snapshots", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOutput := cmd.Bool("json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer func() { _ = e.Close() }()

	resolver, err := newResolver(ctx, e, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	infos, err := resolver.ListSnapshots(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "List snapshots: %v\n", err)
		return 1
	}
	if *jsonOutput {
		return printJSON(stdout, stderr, infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(stdout, "No snapshots.")
		return 0
	}
	for _, info := range infos {
		fmt.Fprintf(stdout, "  %-32s %s\n", info.SnapshotID, info.Collection)
	}
	return 0
}

func runRestoreCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("restore", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	id := cmd.String("id", "", "Snapshot ID to restore (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *id == "" {
		fmt.Fprintln(stderr, "Error: --id is required")
		cmd.Usage()
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer func() { _ = e.Close() }()

	resolver, err := newResolver(ctx, e, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	if err := resolver.Restore(ctx, *id); err != nil {
		fmt.Fprintf(stderr, "Restore failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Restored %s\n", *id)
	return 0
}

func runNextNumberCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("next-number", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	month := cmd.String("month", time.Now().UTC().Format("2006-01"), "Target month (YYYY-MM)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if _, err := time.Parse("2006-01", *month); err != nil {
		fmt.Fprintf(stderr, "Invalid --month: %v\n", err)
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer func() { _ = e.Close() }()

	n, err := e.store.NextContractNumber(ctx, *month)
	if err != nil {
		fmt.Fprintf(stderr, "Next number: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, n)
	return 0
}

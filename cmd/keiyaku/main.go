package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "audit":
		return runAuditCmd(args[2:], stdout, stderr)
	case "summary":
		return runSummaryCmd(args[2:], stdout, stderr)
	case "sweep":
		return runSweepCmd(args[2:], stdout, stderr)
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "sync":
		return runSyncCmd(args[2:], stdout, stderr)
	case "snapshots":
		return runSnapshotsCmd(args[2:], stdout, stderr)
	case "restore":
		return runRestoreCmd(args[2:], stdout, stderr)
	case "next-number":
		return runNextNumberCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "keiyaku - dispatch contract compliance core")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  keiyaku <command> [flags]")
	fmt.Fprintln(w, "")
	printSection(w, "COMPLIANCE")
	printCommand(w, "audit", "Run a compliance audit (--contracts-only, --worksite, --json)")
	printCommand(w, "summary", "Quick compliance summary (--json)")
	printCommand(w, "sweep", "Sweep for actionable alerts (--daily, --entity, --json)")
	printCommand(w, "validate", "Validate one contract record (--contract, --json)")
	printSection(w, "RECONCILIATION")
	printCommand(w, "sync", "Reconcile an extracted batch (--batch, --apply, --strategy)")
	printCommand(w, "snapshots", "List pre-sync snapshots")
	printCommand(w, "restore", "Restore a snapshot (--id)")
	printSection(w, "UTILITIES")
	printCommand(w, "next-number", "Draw the next contract number (--month)")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s:\n", title)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %-12s %s\n", name, desc)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

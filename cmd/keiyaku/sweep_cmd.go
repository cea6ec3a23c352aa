package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/hakenworks/keiyaku/pkg/alerts"
)

func runSweepCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sweep", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		daily      bool
		entityType string
		entityID   int64
		jsonOutput bool
	)
	cmd.BoolVar(&daily, "daily", false, "Print the daily summary instead of the full alert list")
	cmd.StringVar(&entityType, "entity", "", "Restrict to one entity type (contract, worksite, worker)")
	cmd.Int64Var(&entityID, "id", 0, "Entity ID, used with --entity")
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if (entityType == "") != (entityID == 0) {
		fmt.Fprintln(stderr, "Error: --entity and --id must be used together")
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer func() { _ = e.Close() }()

	sweeper := alerts.New(e.store,
		alerts.WithMetrics(e.metrics),
		alerts.WithLogger(newLogger(stderr, e.cfg.LogLevel)),
	)

	switch {
	case daily:
		sum, err := sweeper.DailySummary(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Sweep failed: %v\n", err)
			return 1
		}
		if jsonOutput {
			return printJSON(stdout, stderr, sum)
		}
		fmt.Fprintf(stdout, "Alerts: %d total, %d need action\n", sum.TotalAlerts, sum.ActionRequired)
		fmt.Fprintf(stdout, "Expiring this week: %d  expired: %d  unassigned: %d\n",
			sum.ExpiringThisWeek, sum.ExpiredContracts, sum.UnassignedWorkers)
		for _, a := range sum.MostUrgent {
			printAlert(stdout, a)
		}
		return 0

	case entityType != "":
		found, err := sweeper.ForEntity(ctx, entityType, entityID)
		if err != nil {
			fmt.Fprintf(stderr, "Sweep failed: %v\n", err)
			return 1
		}
		if jsonOutput {
			return printJSON(stdout, stderr, found)
		}
		if len(found) == 0 {
			fmt.Fprintf(stdout, "No alerts for %s #%d\n", entityType, entityID)
			return 0
		}
		for _, a := range found {
			printAlert(stdout, a)
		}
		return 0

	default:
		sum, err := sweeper.Sweep(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Sweep failed: %v\n", err)
			return 1
		}
		if jsonOutput {
			return printJSON(stdout, stderr, sum)
		}
		if sum.Total == 0 {
			fmt.Fprintln(stdout, "No alerts.")
			return 0
		}
		fmt.Fprintf(stdout, "%d alerts\n", sum.Total)
		for _, a := range sum.All() {
			printAlert(stdout, a)
		}
		for _, ce := range sum.Errors {
			fmt.Fprintf(stdout, "  check %s failed: %s\n", ce.Check, ce.Message)
		}
		return 0
	}
}

func printAlert(w io.Writer, a alerts.Alert) {
	fmt.Fprintf(w, "  [%s] %s %s #%d: %s", a.Priority, a.Type, a.EntityType, a.EntityID, a.Message)
	if a.RemainingDays != nil {
		fmt.Fprintf(w, " (%dd)", *a.RemainingDays)
	}
	fmt.Fprintln(w)
	if a.Action != "" {
		fmt.Fprintf(w, "      action: %s\n", a.Action)
	}
}

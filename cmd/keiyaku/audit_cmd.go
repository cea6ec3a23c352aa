package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hakenworks/keiyaku/pkg/auditor"
	"github.com/hakenworks/keiyaku/pkg/config"
	"github.com/hakenworks/keiyaku/pkg/domain"
	"github.com/hakenworks/keiyaku/pkg/store"
	"github.com/hakenworks/keiyaku/pkg/validator"
)

func runAuditCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("audit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		contractsOnly bool
		worksiteID    int64
		from, until   string
		status        string
		jsonOutput    bool
	)
	cmd.BoolVar(&contractsOnly, "contracts-only", false, "Audit contracts only, skip worksite and worker phases")
	cmd.Int64Var(&worksiteID, "worksite", 0, "Restrict the audit to one worksite")
	cmd.StringVar(&from, "from", "", "Only contracts starting on or after this date (YYYY-MM-DD)")
	cmd.StringVar(&until, "until", "", "Only contracts ending on or before this date (YYYY-MM-DD)")
	cmd.StringVar(&status, "status", "", "Restrict to one contract status")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	scope := auditor.Scope{}
	if worksiteID != 0 {
		scope.WorksiteID = &worksiteID
	}
	if status != "" {
		st := domain.ContractStatus(status)
		if !st.IsValid() {
			fmt.Fprintf(stderr, "Invalid status: %s\n", status)
			return 2
		}
		scope.Status = &st
	}
	var err error
	if scope.From, err = parseDayFlag(from); err != nil {
		fmt.Fprintf(stderr, "Invalid --from: %v\n", err)
		return 2
	}
	if scope.Until, err = parseDayFlag(until); err != nil {
		fmt.Fprintf(stderr, "Invalid --until: %v\n", err)
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer func() { _ = e.Close() }()

	aud := auditor.New(e.store,
		auditor.WithMetrics(e.metrics),
		auditor.WithLogger(newLogger(stderr, e.cfg.LogLevel)),
	)

	var rep *auditor.Report
	if contractsOnly {
		rep, err = aud.ContractsOnly(ctx, scope)
	} else {
		rep, err = aud.Audit(ctx, scope)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Audit failed: %v\n", err)
		return 1
	}

	if jsonOutput {
		return printJSON(stdout, stderr, rep)
	}
	renderReport(stdout, rep)
	if len(rep.Violations) > 0 {
		return 1
	}
	return 0
}

func renderReport(w io.Writer, rep *auditor.Report) {
	fmt.Fprintf(w, "Report %s  score %d/100\n", rep.ReportID, rep.Score)
	fmt.Fprintf(w, "Audited: %d contracts (%d compliant), %d worksites (%d compliant), %d workers\n",
		rep.ContractsAudited, rep.ContractsCompliant,
		rep.WorksitesAudited, rep.WorksitesCompliant, rep.WorkersAudited)
	if len(rep.Violations) == 0 && len(rep.Advisories) == 0 {
		fmt.Fprintln(w, "No findings.")
	}
	for _, v := range rep.Violations {
		fmt.Fprintf(w, "  [%s] %s %s #%d: %s\n", v.Severity, v.ViolationType, v.EntityType, v.EntityID, v.Message)
		if v.LegalReference != "" {
			fmt.Fprintf(w, "      ref: %s\n", v.LegalReference)
		}
		if v.Remediation != "" {
			fmt.Fprintf(w, "      fix: %s\n", v.Remediation)
		}
	}
	for _, v := range rep.Advisories {
		fmt.Fprintf(w, "  (advisory) %s %s #%d: %s\n", v.ViolationType, v.EntityType, v.EntityID, v.Message)
	}
	for _, ce := range rep.Errors {
		fmt.Fprintf(w, "  check %s failed: %s\n", ce.Check, ce.Message)
	}
}

func runSummaryCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("summary", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOutput := cmd.Bool("json", false, "Output the summary as JSON")
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

	sum, err := auditor.New(e.store, auditor.WithMetrics(e.metrics)).Summary(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Summary failed: %v\n", err)
		return 1
	}

	if *jsonOutput {
		return printJSON(stdout, stderr, sum)
	}
	fmt.Fprintf(stdout, "Quick score: %d/100\n", sum.QuickScore)
	fmt.Fprintf(stdout, "Active contracts:     %d\n", sum.ActiveContracts)
	fmt.Fprintf(stdout, "Expired but active:   %d\n", sum.ExpiredButActive)
	fmt.Fprintf(stdout, "Incomplete worksites: %d\n", sum.IncompleteWorksites)
	if sum.Compliant {
		fmt.Fprintln(stdout, "Status: compliant")
		return 0
	}
	fmt.Fprintln(stdout, "Status: action required")
	return 1
}

func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		contractID   int64
		withDefaults bool
		jsonOutput   bool
	)
	cmd.Int64Var(&contractID, "contract", 0, "Contract ID to validate (REQUIRED)")
	cmd.BoolVar(&withDefaults, "with-defaults", false, "Fill blank fields from the defaults file before validating")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if contractID == 0 {
		fmt.Fprintln(stderr, "Error: --contract is required")
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

	c, err := e.store.GetContract(ctx, contractID)
	if err != nil {
		fmt.Fprintf(stderr, "Load contract: %v\n", err)
		return 1
	}

	if withDefaults && e.cfg.DefaultsPath != "" {
		defaults, err := config.LoadDefaults(e.cfg.DefaultsPath)
		if err != nil {
			fmt.Fprintf(stderr, "Load defaults: %v\n", err)
			return 1
		}
		defaults.Apply(c)
	}

	opts := validator.Options{}
	if ws, err := e.store.GetWorksite(ctx, c.WorksiteID); err == nil {
		opts.Worksite = ws
	} else if !errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(stderr, "Load worksite: %v\n", err)
		return 1
	}
	workers, err := e.store.ListContractWorkers(ctx, c.ID)
	if err != nil {
		fmt.Fprintf(stderr, "Load workers: %v\n", err)
		return 1
	}
	for _, w := range workers {
		others, err := e.store.ListWorkerContracts(ctx, w.ID)
		if err != nil {
			fmt.Fprintf(stderr, "Load worker contracts: %v\n", err)
			return 1
		}
		opts.Workers = append(opts.Workers, validator.WorkerAssignment{
			Ref:            w.WorkerNumber,
			Worker:         w,
			OtherContracts: others,
		})
	}

	res := validator.Validate(c, opts)
	if jsonOutput {
		return printJSON(stdout, stderr, res)
	}
	fmt.Fprintf(stdout, "Contract %s: score %d/100, %d/%d fields valid\n",
		c.ContractNumber, res.Score, res.FieldsValid, res.FieldsChecked)
	for _, i := range res.Errors {
		fmt.Fprintf(stdout, "  error   %s: %s\n", i.Field, i.Message)
	}
	for _, i := range res.Warnings {
		fmt.Fprintf(stdout, "  warning %s: %s\n", i.Field, i.Message)
	}
	if res.IsValid {
		return 0
	}
	return 1
}

func parseDayFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func printJSON(stdout, stderr io.Writer, v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Encode output: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(data))
	return 0
}

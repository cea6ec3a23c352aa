// Package auditor runs batch compliance audits across every contract,
// worksite and worker in scope and scores the whole portfolio.
//
// Audit is read-only over the store. Each check phase runs in
// isolation: a failing phase is recorded on the report instead of
// aborting the sweep, and the run errors out only when every phase
// failed.
package auditor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hakenworks/keiyaku/pkg/audit"
	"github.com/hakenworks/keiyaku/pkg/domain"
	"github.com/hakenworks/keiyaku/pkg/observability"
	"github.com/hakenworks/keiyaku/pkg/store"
	"github.com/hakenworks/keiyaku/pkg/validator"
)

const (
	cutoffAdvisoryDays = 30
	docExpiryAdvisory  = 30
	maxDurationDays    = 365 * 3
)

// Scope restricts which entities an audit covers. Zero value means the
// full portfolio.
type Scope struct {
	From       *time.Time
	Until      *time.Time
	WorksiteID *int64
	Status     *domain.ContractStatus
}

// Auditor runs compliance audits over a store.
type Auditor struct {
	store   store.Store
	trail   *audit.Trail
	metrics *observability.Metrics
	clock   func() time.Time
	log     *slog.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithTrail records every completed audit on the tamper-evident trail.
func WithTrail(t *audit.Trail) Option {
	return func(a *Auditor) { a.trail = t }
}

// WithMetrics emits violation and run metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Auditor) { a.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(a *Auditor) { a.clock = clock }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Auditor) { a.log = l }
}

// New builds an Auditor over the given store.
func New(s store.Store, opts ...Option) *Auditor {
	a := &Auditor{
		store: s,
		clock: time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Audit runs the full compliance audit: contracts, worksites, workers.
func (a *Auditor) Audit(ctx context.Context, scope Scope) (*Report, error) {
	return a.run(ctx, scope, "full")
}

// ContractsOnly audits only the contracts in scope, skipping the
// worksite and worker phases.
func (a *Auditor) ContractsOnly(ctx context.Context, scope Scope) (*Report, error) {
	return a.run(ctx, scope, "contracts")
}

func (a *Auditor) run(ctx context.Context, scope Scope, scopeName string) (*Report, error) {
	started := a.clock()
	ctx, end := a.metrics.StartSpan(ctx, "auditor.run")
	defer end()

	rep := &Report{
		ReportID:    "AUDIT-" + started.UTC().Format("20060102-150405"),
		GeneratedAt: started.UTC(),
		PeriodStart: scope.From,
		PeriodEnd:   scope.Until,
		Scope:       scopeName,
	}

	type phase struct {
		name string
		fn   func(context.Context, Scope, *Report) error
	}
	phases := []phase{{"contracts", a.auditContracts}}
	if scopeName == "full" {
		phases = append(phases,
			phase{"worksites", a.auditWorksites},
			phase{"workers", a.auditWorkers},
		)
	}

	failed := 0
	var phaseErrs []error
	for _, p := range phases {
		if err := a.runPhase(ctx, p.name, p.fn, scope, rep); err != nil {
			failed++
			phaseErrs = append(phaseErrs, fmt.Errorf("%s: %w", p.name, err))
			rep.Errors = append(rep.Errors, CheckError{Check: p.name, Message: err.Error()})
			a.log.Error("audit phase failed", "phase", p.name, "error", err)
		}
	}
	if failed == len(phases) {
		return nil, errors.Join(phaseErrs...)
	}

	rep.TotalAudited = rep.ContractsAudited + rep.WorksitesAudited + rep.WorkersAudited
	rep.Score = scoreReport(rep)
	sortViolations(rep.Violations)
	sortViolations(rep.Advisories)

	a.record(ctx, rep, started)
	return rep, nil
}

func (a *Auditor) runPhase(ctx context.Context, name string, fn func(context.Context, Scope, *Report) error, scope Scope, rep *Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, scope, rep)
}

func (a *Auditor) record(ctx context.Context, rep *Report, started time.Time) {
	if a.metrics != nil {
		for sev, n := range rep.BySeverity() {
			a.metrics.RecordViolations(ctx, sev.String(), n)
		}
		a.metrics.RecordAdvisories(ctx, len(rep.Advisories))
		a.metrics.RecordRun(ctx, "audit", a.clock().Sub(started))
	}
	if a.trail != nil {
		if _, err := a.trail.Record(audit.EventComplianceAudit, rep.ReportID, "audit.completed", map[string]any{
			"score":      rep.Score,
			"audited":    rep.TotalAudited,
			"violations": len(rep.Violations),
			"advisories": len(rep.Advisories),
		}); err != nil {
			a.log.Error("audit trail record failed", "error", err)
		}
	}
	a.log.Info("compliance audit completed",
		"report_id", rep.ReportID,
		"score", rep.Score,
		"audited", rep.TotalAudited,
		"violations", len(rep.Violations),
		"advisories", len(rep.Advisories))
}

func (a *Auditor) auditContracts(ctx context.Context, scope Scope, rep *Report) error {
	filter := store.ContractFilter{
		WorksiteID: scope.WorksiteID,
		StartFrom:  scope.From,
		EndUntil:   scope.Until,
		Status:     scope.Status,
	}
	contracts, err := a.store.ListContracts(ctx, filter)
	if err != nil {
		return fmt.Errorf("list contracts: %w", err)
	}
	today := a.clock()

	for _, c := range contracts {
		rep.ContractsAudited++
		before := len(rep.Violations)

		worksite, err := a.store.GetWorksite(ctx, c.WorksiteID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("get worksite %d: %w", c.WorksiteID, err)
			}
			if c.WorksiteID != 0 {
				// A dangling worksite reference is a finding, not a
				// lookup to skip silently.
				rep.Violations = append(rep.Violations, Violation{
					ViolationID:   fmt.Sprintf("CONTRACT-%d-WORKSITE_NOT_FOUND", c.ID),
					Severity:      domain.SeverityHigh,
					Category:      "contract",
					EntityType:    "contract",
					EntityID:      c.ID,
					EntityName:    c.ContractNumber,
					ViolationType: "WORKSITE_NOT_FOUND",
					Message:       fmt.Sprintf("Contract references worksite %d which does not exist", c.WorksiteID),
					Field:         "worksite_id",
					Value:         fmt.Sprintf("%d", c.WorksiteID),
					Remediation:   "Restore the worksite record or repoint the contract at an existing worksite",
				})
			}
		}
		workers, err := a.assignments(ctx, c)
		if err != nil {
			return err
		}

		res := validator.Validate(c, validator.Options{Worksite: worksite, Workers: workers})
		for _, issue := range res.Errors {
			rep.Violations = append(rep.Violations, Violation{
				ViolationID:    fmt.Sprintf("CONTRACT-%d-%s", c.ID, issue.Code),
				Severity:       domain.SeverityHigh,
				Category:       "contract",
				EntityType:     "contract",
				EntityID:       c.ID,
				EntityName:     c.ContractNumber,
				ViolationType:  issue.Code,
				Message:        issue.Message,
				LegalReference: validator.LegalReference(issue.Code),
				Field:          issue.Field,
				Value:          issue.Value,
				Remediation:    issue.Suggestion,
			})
		}
		for _, issue := range res.Warnings {
			rep.Advisories = append(rep.Advisories, Violation{
				ViolationID:   fmt.Sprintf("CONTRACT-%d-%s", c.ID, issue.Code),
				Severity:      domain.SeverityLow,
				Category:      "contract",
				EntityType:    "contract",
				EntityID:      c.ID,
				EntityName:    c.ContractNumber,
				ViolationType: issue.Code,
				Message:       issue.Message,
				Field:         issue.Field,
				Value:         issue.Value,
				Remediation:   issue.Suggestion,
			})
		}

		a.checkContractState(c, today, rep)

		if len(rep.Violations) == before {
			rep.ContractsCompliant++
		}
	}
	return nil
}

// checkContractState covers the portfolio-level checks the single
// contract validator cannot see: a contract still marked active past
// its end date, and a period which could never have been legal.
func (a *Auditor) checkContractState(c *domain.Contract, today time.Time, rep *Report) {
	if c.Status == domain.ContractActive && c.DispatchEnd != nil &&
		domain.Day(*c.DispatchEnd).Before(domain.Day(today)) {
		rep.Violations = append(rep.Violations, Violation{
			ViolationID:   fmt.Sprintf("CONTRACT-%d-EXPIRED_BUT_ACTIVE", c.ID),
			Severity:      domain.SeverityCritical,
			Category:      "contract",
			EntityType:    "contract",
			EntityID:      c.ID,
			EntityName:    c.ContractNumber,
			ViolationType: "EXPIRED_BUT_ACTIVE",
			Message:       fmt.Sprintf("contract ended %s but is still marked active", c.DispatchEnd.Format("2006-01-02")),
			Remediation:   "expire or renew the contract",
			Field:         "status",
		})
	}
	if days := c.DurationDays(); days > maxDurationDays {
		rep.Violations = append(rep.Violations, Violation{
			ViolationID:    fmt.Sprintf("CONTRACT-%d-%s", c.ID, validator.CodeDurationExceeded),
			Severity:       domain.SeverityCritical,
			Category:       "contract",
			EntityType:     "contract",
			EntityID:       c.ID,
			EntityName:     c.ContractNumber,
			ViolationType:  validator.CodeDurationExceeded,
			Message:        fmt.Sprintf("dispatch period is %d days, past the 3-year ceiling", days),
			LegalReference: validator.LegalReference(validator.CodeDurationExceeded),
			Field:          "dispatch_end_date",
		})
	}
}

func (a *Auditor) assignments(ctx context.Context, c *domain.Contract) ([]validator.WorkerAssignment, error) {
	workers, err := a.store.ListContractWorkers(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list contract workers %d: %w", c.ID, err)
	}
	out := make([]validator.WorkerAssignment, 0, len(workers))
	for _, w := range workers {
		others, err := a.store.ListWorkerContracts(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("list worker contracts %d: %w", w.ID, err)
		}
		out = append(out, validator.WorkerAssignment{
			Ref:            w.WorkerNumber,
			Worker:         w,
			OtherContracts: others,
		})
	}
	return out, nil
}

// worksiteRequired maps the worksite fields a complete record must
// carry to the severity of leaving them blank.
var worksiteRequired = []struct {
	field    string
	label    string
	severity domain.Severity
	get      func(*domain.Worksite) string
}{
	{"client_responsible_name", "client responsible person", domain.SeverityHigh, func(w *domain.Worksite) string { return w.ClientResponsibleName }},
	{"client_responsible_department", "client responsible department", domain.SeverityMedium, func(w *domain.Worksite) string { return w.ClientResponsibleDepartment }},
	{"client_complaint_name", "client complaint contact", domain.SeverityHigh, func(w *domain.Worksite) string { return w.ClientComplaintName }},
	{"agency_responsible_name", "agency responsible person", domain.SeverityHigh, func(w *domain.Worksite) string { return w.AgencyResponsibleName }},
	{"agency_complaint_name", "agency complaint contact", domain.SeverityMedium, func(w *domain.Worksite) string { return w.AgencyComplaintName }},
	{"company_address", "company address", domain.SeverityMedium, func(w *domain.Worksite) string { return w.CompanyAddress }},
	{"plant_address", "plant address", domain.SeverityMedium, func(w *domain.Worksite) string { return w.PlantAddress }},
}

func (a *Auditor) auditWorksites(ctx context.Context, scope Scope, rep *Report) error {
	worksites, err := a.store.ListWorksites(ctx, store.WorksiteFilter{ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("list worksites: %w", err)
	}
	today := a.clock()

	for _, w := range worksites {
		if scope.WorksiteID != nil && w.ID != *scope.WorksiteID {
			continue
		}
		rep.WorksitesAudited++
		before := len(rep.Violations)

		for _, req := range worksiteRequired {
			if req.get(w) != "" {
				continue
			}
			rep.Violations = append(rep.Violations, Violation{
				ViolationID:    fmt.Sprintf("WORKSITE-%d-%s", w.ID, req.field),
				Severity:       req.severity,
				Category:       "worksite",
				EntityType:     "worksite",
				EntityID:       w.ID,
				EntityName:     w.DisplayName(),
				ViolationType:  validator.CodeWorksiteIncomplete,
				Message:        fmt.Sprintf("worksite %q has no %s configured", w.DisplayName(), req.label),
				LegalReference: validator.LegalReference(validator.CodeWorksiteIncomplete),
				Remediation:    "complete the worksite record",
				Field:          req.field,
			})
		}

		if w.CutoffDate != nil {
			days := domain.DaysUntil(today, *w.CutoffDate)
			switch {
			case days < 0:
				rep.Violations = append(rep.Violations, Violation{
					ViolationID:    fmt.Sprintf("WORKSITE-%d-CUTOFF_PASSED", w.ID),
					Severity:       domain.SeverityCritical,
					Category:       "worksite",
					EntityType:     "worksite",
					EntityID:       w.ID,
					EntityName:     w.DisplayName(),
					ViolationType:  "CUTOFF_PASSED",
					Message:        fmt.Sprintf("dispatch period limit passed %d days ago (%s)", -days, w.CutoffDate.Format("2006-01-02")),
					LegalReference: "Worker Dispatch Act Art. 40-2",
					Remediation:    "stop dispatching to this unit or complete the rotation procedure",
					Field:          "cutoff_date",
				})
			case days <= cutoffAdvisoryDays:
				rep.Advisories = append(rep.Advisories, Violation{
					ViolationID:   fmt.Sprintf("WORKSITE-%d-CUTOFF_NEAR", w.ID),
					Severity:      domain.SeverityHigh,
					Category:      "worksite",
					EntityType:    "worksite",
					EntityID:      w.ID,
					EntityName:    w.DisplayName(),
					ViolationType: "CUTOFF_APPROACHING",
					Message:       fmt.Sprintf("dispatch period limit in %d days (%s)", days, w.CutoffDate.Format("2006-01-02")),
					Field:         "cutoff_date",
				})
			}
		}

		if len(rep.Violations) == before {
			rep.WorksitesCompliant++
		}
	}
	return nil
}

func (a *Auditor) auditWorkers(ctx context.Context, scope Scope, rep *Report) error {
	active := domain.WorkerActive
	workers, err := a.store.ListWorkers(ctx, store.WorkerFilter{
		Status:     &active,
		WorksiteID: scope.WorksiteID,
	})
	if err != nil {
		return fmt.Errorf("list workers: %w", err)
	}
	today := a.clock()

	for _, w := range workers {
		rep.WorkersAudited++
		if !w.Foreign() {
			continue
		}

		if w.ResidencyType == "" {
			rep.Advisories = append(rep.Advisories, Violation{
				ViolationID:   fmt.Sprintf("WORKER-%d-NO_RESIDENCY_TYPE", w.ID),
				Severity:      domain.SeverityMedium,
				Category:      "worker",
				EntityType:    "worker",
				EntityID:      w.ID,
				EntityName:    w.Name,
				ViolationType: "MISSING_RESIDENCY_TYPE",
				Message:       fmt.Sprintf("foreign worker %q has no residency status on file", w.Name),
				Field:         "residency_type",
			})
		}
		if w.DocumentExpiry == nil {
			continue
		}
		days := domain.DaysUntil(today, *w.DocumentExpiry)
		switch {
		case days < 0:
			rep.Violations = append(rep.Violations, Violation{
				ViolationID:    fmt.Sprintf("WORKER-%d-DOCUMENT_EXPIRED", w.ID),
				Severity:       domain.SeverityCritical,
				Category:       "worker",
				EntityType:     "worker",
				EntityID:       w.ID,
				EntityName:     w.Name,
				ViolationType:  "DOCUMENT_EXPIRED",
				Message:        fmt.Sprintf("residency document of %q expired %d days ago", w.Name, -days),
				LegalReference: "Immigration Control Act Art. 19",
				Remediation:    "suspend the assignment until renewal is confirmed",
				Field:          "document_expiry",
			})
		case days <= docExpiryAdvisory:
			rep.Advisories = append(rep.Advisories, Violation{
				ViolationID:   fmt.Sprintf("WORKER-%d-DOCUMENT_EXPIRING", w.ID),
				Severity:      domain.SeverityHigh,
				Category:      "worker",
				EntityType:    "worker",
				EntityID:      w.ID,
				EntityName:    w.Name,
				ViolationType: "DOCUMENT_EXPIRING",
				Message:       fmt.Sprintf("residency document of %q expires in %d days", w.Name, days),
				Field:         "document_expiry",
			})
		}
	}
	return nil
}

// Summary computes the cheap dashboard score without running the full
// per-contract validation pass.
func (a *Auditor) Summary(ctx context.Context) (*Summary, error) {
	today := a.clock()
	active := domain.ContractActive
	contracts, err := a.store.ListContracts(ctx, store.ContractFilter{Status: &active})
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	expired := 0
	for _, c := range contracts {
		if c.DispatchEnd != nil && domain.Day(*c.DispatchEnd).Before(domain.Day(today)) {
			expired++
		}
	}

	worksites, err := a.store.ListWorksites(ctx, store.WorksiteFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list worksites: %w", err)
	}
	incomplete := 0
	for _, w := range worksites {
		if w.ClientResponsibleName == "" || w.AgencyResponsibleName == "" {
			incomplete++
		}
	}

	issues := expired*20 + incomplete*10
	score := 100 - issues
	if score < 0 {
		score = 0
	}
	return &Summary{
		QuickScore:          score,
		ActiveContracts:     len(contracts),
		ExpiredButActive:    expired,
		IncompleteWorksites: incomplete,
		Compliant:           expired == 0 && incomplete == 0,
		GeneratedAt:         today.UTC(),
	}, nil
}

// scoreReport implements 100 - clamp(weighted penalty / max penalty)
// where the max penalty assumes every audited entity at the critical
// weight.
func scoreReport(rep *Report) int {
	if rep.TotalAudited == 0 {
		return 100
	}
	penalty := 0
	for _, v := range rep.Violations {
		penalty += v.Severity.Weight()
	}
	penalty += len(rep.Advisories)
	maxPenalty := rep.TotalAudited * domain.SeverityCritical.Weight()
	if penalty > maxPenalty {
		penalty = maxPenalty
	}
	score := 100 - int(float64(penalty)/float64(maxPenalty)*100)
	if score < 0 {
		return 0
	}
	return score
}

// sortViolations orders findings worst-first, then by entity for a
// stable report layout.
func sortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Severity.Rank() != vs[j].Severity.Rank() {
			return vs[i].Severity.Rank() > vs[j].Severity.Rank()
		}
		if vs[i].EntityType != vs[j].EntityType {
			return vs[i].EntityType < vs[j].EntityType
		}
		return vs[i].EntityID < vs[j].EntityID
	})
}

// Package alerts sweeps the store for time-driven compliance risks:
// contracts about to lapse, worksite cutoff dates closing in, residency
// documents running out, workers left without a placement.
//
// A sweep is read-only and recomputed from current data on every call;
// alerts are never persisted, so resolving the underlying record makes
// the alert disappear on the next sweep.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hakenworks/keiyaku/pkg/audit"
	"github.com/hakenworks/keiyaku/pkg/domain"
	"github.com/hakenworks/keiyaku/pkg/observability"
	"github.com/hakenworks/keiyaku/pkg/store"
)

// Exact-day expiry thresholds for active contracts, remaining days to
// the priority raised when the sweep lands on that day.
var expiryThresholds = []struct {
	days     int
	priority domain.Priority
}{
	{1, domain.PriorityCritical},
	{7, domain.PriorityHigh},
	{15, domain.PriorityHigh},
	{30, domain.PriorityMedium},
}

// Alert is one actionable finding from a sweep.
type Alert struct {
	AlertID       string           `json:"alert_id"`
	Type          domain.AlertType `json:"alert_type"`
	Priority      domain.Priority  `json:"priority"`
	EntityType    string           `json:"entity_type"`
	EntityID      int64            `json:"entity_id"`
	EntityName    string           `json:"entity_name"`
	Message       string           `json:"message"`
	Action        string           `json:"action,omitempty"`
	RemainingDays *int             `json:"remaining_days,omitempty"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
}

// CheckError records a sweep check that failed without stopping the
// other checks.
type CheckError struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}

// AlertSummary is the result of one sweep, bucketed by priority.
type AlertSummary struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Total       int                         `json:"total"`
	Buckets     map[domain.Priority][]Alert `json:"alerts"`
	Errors      []CheckError                `json:"check_errors,omitempty"`
}

// All returns every alert, most urgent bucket first.
func (s *AlertSummary) All() []Alert {
	var out []Alert
	for _, p := range []domain.Priority{
		domain.PriorityCritical, domain.PriorityHigh,
		domain.PriorityMedium, domain.PriorityLow, domain.PriorityInfo,
	} {
		out = append(out, s.Buckets[p]...)
	}
	return out
}

// DailySummary is the morning digest derived from a sweep.
type DailySummary struct {
	GeneratedAt       time.Time `json:"generated_at"`
	TotalAlerts       int       `json:"total_alerts"`
	ActionRequired    int       `json:"action_required"`
	MostUrgent        []Alert   `json:"most_urgent"`
	ExpiringThisWeek  int       `json:"expiring_this_week"`
	ExpiredContracts  int       `json:"expired_contracts"`
	UnassignedWorkers int       `json:"unassigned_workers"`
}

// Sweeper runs alert sweeps over a store.
type Sweeper struct {
	store   store.Store
	trail   *audit.Trail
	metrics *observability.Metrics
	clock   func() time.Time
	log     *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithTrail records every completed sweep on the tamper-evident trail.
func WithTrail(t *audit.Trail) Option {
	return func(s *Sweeper) { s.trail = t }
}

// WithMetrics emits alert counts per priority.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) { s.clock = clock }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.log = l }
}

// New builds a Sweeper over the given store.
func New(st store.Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		store: st,
		clock: time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs every threshold check and buckets the merged alerts by
// priority. Each check runs in isolation; a failing check becomes a
// CheckError entry and the sweep errors out only when every check
// failed.
func (s *Sweeper) Sweep(ctx context.Context) (*AlertSummary, error) {
	started := s.clock()
	ctx, end := s.metrics.StartSpan(ctx, "alerts.sweep")
	defer end()

	sum := &AlertSummary{
		GeneratedAt: started.UTC(),
		Buckets:     map[domain.Priority][]Alert{},
	}

	checks := []struct {
		name string
		fn   func(context.Context, time.Time) ([]Alert, error)
	}{
		{"expiring_contracts", s.checkExpiringContracts},
		{"expired_contracts", s.checkExpiredContracts},
		{"unassigned_workers", s.checkUnassignedWorkers},
		{"incomplete_worksites", s.checkIncompleteWorksites},
		{"cutoff_dates", s.checkCutoffDates},
		{"expiring_documents", s.checkExpiringDocuments},
	}

	failed := 0
	var checkErrs []error
	for _, c := range checks {
		alerts, err := s.runCheck(ctx, c.name, c.fn, started)
		if err != nil {
			failed++
			checkErrs = append(checkErrs, fmt.Errorf("%s: %w", c.name, err))
			sum.Errors = append(sum.Errors, CheckError{Check: c.name, Message: err.Error()})
			// The failure itself is actionable: part of the portfolio
			// went unswept.
			sum.Buckets[domain.PriorityHigh] = append(sum.Buckets[domain.PriorityHigh], Alert{
				AlertID:    fmt.Sprintf("%s-%s", domain.AlertCheckFailed, c.name),
				Type:       domain.AlertCheckFailed,
				Priority:   domain.PriorityHigh,
				EntityType: "sweep",
				EntityName: c.name,
				Message:    fmt.Sprintf("sweep check %s failed: %v", c.name, err),
				Action:     "fix the failing check and rerun the sweep",
			})
			sum.Total++
			s.log.Error("alert check failed", "check", c.name, "error", err)
			continue
		}
		for _, a := range alerts {
			sum.Buckets[a.Priority] = append(sum.Buckets[a.Priority], a)
			sum.Total++
		}
	}
	if failed == len(checks) {
		return nil, errors.Join(checkErrs...)
	}

	sortByUrgency(sum.Buckets[domain.PriorityCritical])
	sortByUrgency(sum.Buckets[domain.PriorityHigh])

	s.record(ctx, sum, started)
	return sum, nil
}

func (s *Sweeper) runCheck(ctx context.Context, name string, fn func(context.Context, time.Time) ([]Alert, error), now time.Time) (alerts []Alert, err error) {
	defer func() {
		if r := recover(); r != nil {
			alerts, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, now)
}

func (s *Sweeper) record(ctx context.Context, sum *AlertSummary, started time.Time) {
	if s.metrics != nil {
		for p, bucket := range sum.Buckets {
			s.metrics.RecordAlerts(ctx, p.String(), len(bucket))
		}
		s.metrics.RecordRun(ctx, "sweep", s.clock().Sub(started))
	}
	if s.trail != nil {
		if _, err := s.trail.Record(audit.EventAlertSweep, "sweep", "sweep.completed", map[string]any{
			"total":    sum.Total,
			"critical": len(sum.Buckets[domain.PriorityCritical]),
			"high":     len(sum.Buckets[domain.PriorityHigh]),
		}); err != nil {
			s.log.Error("audit trail record failed", "error", err)
		}
	}
	s.log.Info("alert sweep completed",
		"total", sum.Total,
		"critical", len(sum.Buckets[domain.PriorityCritical]),
		"high", len(sum.Buckets[domain.PriorityHigh]),
		"check_errors", len(sum.Errors))
}

// DailySummary condenses a sweep into the morning digest.
func (s *Sweeper) DailySummary(ctx context.Context) (*DailySummary, error) {
	sum, err := s.Sweep(ctx)
	if err != nil {
		return nil, err
	}

	urgent := append([]Alert{}, sum.Buckets[domain.PriorityCritical]...)
	urgent = append(urgent, sum.Buckets[domain.PriorityHigh]...)
	top := urgent
	if len(top) > 10 {
		top = top[:10]
	}

	expiringWeek := 0
	expired := 0
	unassigned := 0
	for _, a := range sum.All() {
		switch a.Type {
		case domain.AlertContractExpiring:
			if a.RemainingDays != nil && *a.RemainingDays <= 7 {
				expiringWeek++
			}
		case domain.AlertContractExpired:
			expired++
		case domain.AlertWorkerUnassigned:
			unassigned++
		}
	}

	return &DailySummary{
		GeneratedAt:       sum.GeneratedAt,
		TotalAlerts:       sum.Total,
		ActionRequired:    len(urgent),
		MostUrgent:        top,
		ExpiringThisWeek:  expiringWeek,
		ExpiredContracts:  expired,
		UnassignedWorkers: unassigned,
	}, nil
}

// ForEntity narrows a sweep to the alerts of one entity.
func (s *Sweeper) ForEntity(ctx context.Context, entityType string, id int64) ([]Alert, error) {
	sum, err := s.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	var out []Alert
	for _, a := range sum.All() {
		if a.EntityType == entityType && a.EntityID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Sweeper) checkExpiringContracts(ctx context.Context, now time.Time) ([]Alert, error) {
	active := domain.ContractActive
	contracts, err := s.store.ListContracts(ctx, store.ContractFilter{Status: &active})
	if err != nil {
		return nil, err
	}
	var out []Alert
	for _, c := range contracts {
		if c.DispatchEnd == nil {
			continue
		}
		days := domain.DaysUntil(now, *c.DispatchEnd)
		for _, th := range expiryThresholds {
			if days != th.days {
				continue
			}
			d := days
			out = append(out, Alert{
				AlertID:       fmt.Sprintf("%s-contract-%d-%dd", domain.AlertContractExpiring, c.ID, th.days),
				Type:          domain.AlertContractExpiring,
				Priority:      th.priority,
				EntityType:    "contract",
				EntityID:      c.ID,
				EntityName:    c.ContractNumber,
				Message:       fmt.Sprintf("contract %s ends in %d days (%s)", c.ContractNumber, days, c.DispatchEnd.Format("2006-01-02")),
				Action:        "renew or close out the contract",
				RemainingDays: &d,
				DueDate:       c.DispatchEnd,
			})
			break
		}
	}
	return out, nil
}

func (s *Sweeper) checkExpiredContracts(ctx context.Context, now time.Time) ([]Alert, error) {
	active := domain.ContractActive
	today := domain.Day(now)
	contracts, err := s.store.ListContracts(ctx, store.ContractFilter{Status: &active, EndBefore: &today})
	if err != nil {
		return nil, err
	}
	var out []Alert
	for _, c := range contracts {
		if c.DispatchEnd == nil {
			continue
		}
		d := domain.DaysUntil(now, *c.DispatchEnd)
		out = append(out, Alert{
			AlertID:       fmt.Sprintf("%s-contract-%d", domain.AlertContractExpired, c.ID),
			Type:          domain.AlertContractExpired,
			Priority:      domain.PriorityCritical,
			EntityType:    "contract",
			EntityID:      c.ID,
			EntityName:    c.ContractNumber,
			Message:       fmt.Sprintf("contract %s ended %d days ago but is still active", c.ContractNumber, -d),
			Action:        "expire or renew the contract",
			RemainingDays: &d,
			DueDate:       c.DispatchEnd,
		})
	}
	return out, nil
}

func (s *Sweeper) checkUnassignedWorkers(ctx context.Context, now time.Time) ([]Alert, error) {
	activeW := domain.WorkerActive
	workers, err := s.store.ListWorkers(ctx, store.WorkerFilter{Status: &activeW})
	if err != nil {
		return nil, err
	}
	var out []Alert
	for _, w := range workers {
		contracts, err := s.store.ListWorkerContracts(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		placed := false
		for _, c := range contracts {
			if c.Status == domain.ContractActive && c.Covers(now) {
				placed = true
				break
			}
		}
		if placed {
			continue
		}
		out = append(out, Alert{
			AlertID:    fmt.Sprintf("%s-worker-%d", domain.AlertWorkerUnassigned, w.ID),
			Type:       domain.AlertWorkerUnassigned,
			Priority:   domain.PriorityHigh,
			EntityType: "worker",
			EntityID:   w.ID,
			EntityName: w.Name,
			Message:    fmt.Sprintf("active worker %s (%s) has no current placement", w.Name, w.WorkerNumber),
			Action:     "assign the worker or update their status",
		})
	}
	return out, nil
}

// worksiteGaps maps missing worksite fields to the priority of the gap.
// One alert per worksite at the worst priority found.
var worksiteGaps = []struct {
	label    string
	priority domain.Priority
	missing  func(*domain.Worksite) bool
}{
	{"client responsible person", domain.PriorityHigh, func(w *domain.Worksite) bool { return w.ClientResponsibleName == "" }},
	{"client complaint contact", domain.PriorityMedium, func(w *domain.Worksite) bool { return w.ClientComplaintName == "" }},
	{"agency responsible person", domain.PriorityMedium, func(w *domain.Worksite) bool { return w.AgencyResponsibleName == "" }},
	{"company address", domain.PriorityLow, func(w *domain.Worksite) bool { return w.CompanyAddress == "" }},
}

func (s *Sweeper) checkIncompleteWorksites(ctx context.Context, now time.Time) ([]Alert, error) {
	worksites, err := s.store.ListWorksites(ctx, store.WorksiteFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	var out []Alert
	for _, w := range worksites {
		var labels []string
		priority := domain.PriorityInfo
		for _, gap := range worksiteGaps {
			if !gap.missing(w) {
				continue
			}
			labels = append(labels, gap.label)
			priority = domain.MaxPriority(priority, gap.priority)
		}
		if len(labels) == 0 {
			continue
		}
		out = append(out, Alert{
			AlertID:    fmt.Sprintf("%s-worksite-%d", domain.AlertWorksiteIncomplete, w.ID),
			Type:       domain.AlertWorksiteIncomplete,
			Priority:   priority,
			EntityType: "worksite",
			EntityID:   w.ID,
			EntityName: w.DisplayName(),
			Message:    fmt.Sprintf("worksite %s is missing: %s", w.DisplayName(), strings.Join(labels, ", ")),
			Action:     "complete the worksite record",
		})
	}
	return out, nil
}

func (s *Sweeper) checkCutoffDates(ctx context.Context, now time.Time) ([]Alert, error) {
	worksites, err := s.store.ListWorksites(ctx, store.WorksiteFilter{ActiveOnly: true, RequireCutoff: true})
	if err != nil {
		return nil, err
	}
	var out []Alert
	for _, w := range worksites {
		days := domain.DaysUntil(now, *w.CutoffDate)
		if days < 0 || days > 90 {
			continue
		}
		priority := domain.PriorityMedium
		switch {
		case days <= 30:
			priority = domain.PriorityCritical
		case days <= 60:
			priority = domain.PriorityHigh
		}
		d := days
		out = append(out, Alert{
			AlertID:       fmt.Sprintf("%s-worksite-%d", domain.AlertCutoffApproaching, w.ID),
			Type:          domain.AlertCutoffApproaching,
			Priority:      priority,
			EntityType:    "worksite",
			EntityID:      w.ID,
			EntityName:    w.DisplayName(),
			Message:       fmt.Sprintf("dispatch period limit for %s in %d days (%s)", w.DisplayName(), days, w.CutoffDate.Format("2006-01-02")),
			Action:        "plan the rotation or direct-hire transition",
			RemainingDays: &d,
			DueDate:       w.CutoffDate,
		})
	}
	return out, nil
}

func (s *Sweeper) checkExpiringDocuments(ctx context.Context, now time.Time) ([]Alert, error) {
	activeW := domain.WorkerActive
	workers, err := s.store.ListWorkers(ctx, store.WorkerFilter{Status: &activeW})
	if err != nil {
		return nil, err
	}
	var out []Alert
	for _, w := range workers {
		if !w.Foreign() || w.DocumentExpiry == nil {
			continue
		}
		days := domain.DaysUntil(now, *w.DocumentExpiry)
		if days > 60 {
			continue
		}
		priority := domain.PriorityMedium
		switch {
		case days <= 14:
			priority = domain.PriorityCritical
		case days <= 30:
			priority = domain.PriorityHigh
		}
		d := days
		msg := fmt.Sprintf("residency document of %s expires in %d days (%s)", w.Name, days, w.DocumentExpiry.Format("2006-01-02"))
		if days < 0 {
			msg = fmt.Sprintf("residency document of %s expired %d days ago (%s)", w.Name, -days, w.DocumentExpiry.Format("2006-01-02"))
		}
		out = append(out, Alert{
			AlertID:       fmt.Sprintf("%s-worker-%d", domain.AlertDocumentExpiring, w.ID),
			Type:          domain.AlertDocumentExpiring,
			Priority:      priority,
			EntityType:    "worker",
			EntityID:      w.ID,
			EntityName:    w.Name,
			Message:       msg,
			Action:        "confirm the renewal application status",
			RemainingDays: &d,
			DueDate:       w.DocumentExpiry,
		})
	}
	return out, nil
}

// sortByUrgency orders alerts ascending by remaining days; alerts
// without a deadline go last. The sort is stable so check order breaks
// ties.
func sortByUrgency(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		di, dj := alerts[i].RemainingDays, alerts[j].RemainingDays
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})
}

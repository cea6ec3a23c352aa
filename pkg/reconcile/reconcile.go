// Package reconcile merges periodic extracts from the agency's roster
// system into the store. Analyze classifies every source record without
// touching data; Resolve applies the decided changes in one transaction
// with a snapshot written first so any run can be rolled back.
//
// Stored records are never deleted by a sync: a record missing from the
// source is classified store-only and left alone.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hakenworks/keiyaku/pkg/artifacts"
	"github.com/hakenworks/keiyaku/pkg/audit"
	"github.com/hakenworks/keiyaku/pkg/domain"
	"github.com/hakenworks/keiyaku/pkg/observability"
	"github.com/hakenworks/keiyaku/pkg/store"
)

// Collection names the record family a batch reconciles.
type Collection string

const (
	CollectionWorkers   Collection = "workers"
	CollectionWorksites Collection = "worksites"
)

// Batch is one source extract. Workers and Worksites are keyed by
// their natural keys (worker number, worksite key); ExtractedAt feeds
// the newest-wins strategy.
type Batch struct {
	Collection  Collection         `json:"collection"`
	Workers     []*domain.Worker   `json:"workers,omitempty"`
	Worksites   []*domain.Worksite `json:"worksites,omitempty"`
	ExtractedAt *time.Time         `json:"extracted_at,omitempty"`
}

// FieldFill is a stored blank the source can fill without conflict.
type FieldFill struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Conflict is one field where source and store disagree and both hold
// a real value. Default is the recommended strategy surfaced to the
// operator; it never decides the conflict on its own.
type Conflict struct {
	Key       string                  `json:"key"` // "<entity key>:<field>"
	EntityKey string                  `json:"entity_key"`
	Field     string                  `json:"field"`
	Label     string                  `json:"label"`
	Severity  domain.Severity         `json:"severity"`
	Stored    string                  `json:"stored_value"`
	Source    string                  `json:"source_value"`
	Default   domain.ConflictStrategy `json:"default_strategy,omitempty"`
}

// RecordChange is the analyzer's verdict for one source record.
type RecordChange struct {
	Key       string           `json:"key"`
	Class     domain.SyncClass `json:"class"`
	Fills     []FieldFill      `json:"fills,omitempty"`
	Conflicts []Conflict       `json:"conflicts,omitempty"`

	srcWorker   *domain.Worker
	srcWorksite *domain.Worksite
}

// MaxSeverity returns the worst severity across the change's conflicts,
// or the zero severity when the change carries none.
func (c RecordChange) MaxSeverity() domain.Severity {
	var worst domain.Severity
	for _, conflict := range c.Conflicts {
		worst = domain.MaxSeverity(worst, conflict.Severity)
	}
	return worst
}

// SyncAnalysis is the read-only classification of a batch. Resolve
// consumes the analysis produced by the same Resolver in the same
// process.
type SyncAnalysis struct {
	Collection  Collection     `json:"collection"`
	GeneratedAt time.Time      `json:"generated_at"`
	Changes     []RecordChange `json:"changes"`
	StoreOnly   []string       `json:"store_only,omitempty"`

	Creates   int `json:"creates"`
	Updates   int `json:"updates"`
	Unchanged int `json:"unchanged"`

	extractedAt *time.Time
}

// TotalConflicts counts conflicts across all changes.
func (a *SyncAnalysis) TotalConflicts() int {
	n := 0
	for _, c := range a.Changes {
		n += len(c.Conflicts)
	}
	return n
}

// SyncResult is the outcome of a Resolve run.
type SyncResult struct {
	Collection     Collection `json:"collection"`
	SnapshotID     string     `json:"snapshot_id,omitempty"`
	SnapshotSHA256 string     `json:"snapshot_sha256,omitempty"` // hash of the canonical snapshot bytes

	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`  // conflicts where the stored value was kept
	Resolved int `json:"resolved"` // conflicts where a value was applied

	Pending []Conflict `json:"pending,omitempty"` // manual conflicts awaiting a decision
}

// Resolver reconciles source batches against the store.
type Resolver struct {
	store   store.Store
	snaps   artifacts.Store
	lock    *store.RunLock
	trail   *audit.Trail
	metrics *observability.Metrics
	clock   func() time.Time
	log     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSnapshots sets the artifact store receiving pre-mutation
// snapshots. Without it Resolve refuses to mutate.
func WithSnapshots(s artifacts.Store) Option {
	return func(r *Resolver) { r.snaps = s }
}

// WithRunLock serializes Resolve runs per collection through Redis.
func WithRunLock(l *store.RunLock) Option {
	return func(r *Resolver) { r.lock = l }
}

// WithTrail records every sync run on the tamper-evident trail.
func WithTrail(t *audit.Trail) Option {
	return func(r *Resolver) { r.trail = t }
}

// WithMetrics emits per-disposition sync counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) { r.clock = clock }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// New builds a Resolver over the given store.
func New(st store.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store: st,
		clock: time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Analyze classifies every record of the batch against the store
// without writing anything.
func (r *Resolver) Analyze(ctx context.Context, batch *Batch) (*SyncAnalysis, error) {
	if batch == nil {
		return nil, fmt.Errorf("nil batch")
	}
	analysis := &SyncAnalysis{
		Collection:  batch.Collection,
		GeneratedAt: r.clock().UTC(),
		extractedAt: batch.ExtractedAt,
	}

	switch batch.Collection {
	case CollectionWorkers:
		if err := r.analyzeWorkers(ctx, batch.Workers, analysis); err != nil {
			return nil, err
		}
	case CollectionWorksites:
		if err := r.analyzeWorksites(ctx, batch.Worksites, analysis); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown collection: %q", batch.Collection)
	}

	for _, c := range analysis.Changes {
		switch c.Class {
		case domain.SyncCreate:
			analysis.Creates++
		case domain.SyncUpdate:
			analysis.Updates++
		case domain.SyncUnchanged:
			analysis.Unchanged++
		}
	}
	return analysis, nil
}

func (r *Resolver) analyzeWorkers(ctx context.Context, srcs []*domain.Worker, analysis *SyncAnalysis) error {
	seen := map[string]bool{}
	for _, src := range srcs {
		key := strings.TrimSpace(src.WorkerNumber)
		if key == "" {
			continue
		}
		seen[key] = true

		stored, err := r.store.GetWorkerByNumber(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			analysis.Changes = append(analysis.Changes, RecordChange{
				Key: key, Class: domain.SyncCreate, srcWorker: src,
			})
			continue
		}
		if err != nil {
			return fmt.Errorf("lookup worker %s: %w", key, err)
		}

		change := RecordChange{Key: key, Class: domain.SyncUnchanged, srcWorker: src}
		for _, f := range workerFields {
			srcVal := normalize(f.get(src))
			dbVal := normalize(f.get(stored))
			switch {
			case srcVal == "" || srcVal == dbVal:
			case dbVal == "":
				change.Fills = append(change.Fills, FieldFill{Field: f.name, Label: f.label, Value: srcVal})
			default:
				change.Conflicts = append(change.Conflicts, Conflict{
					Key:       key + ":" + f.name,
					EntityKey: key,
					Field:     f.name,
					Label:     f.label,
					Severity:  f.severity,
					Stored:    dbVal,
					Source:    srcVal,
					Default:   workerRecommendation(f, src),
				})
			}
		}
		if len(change.Fills) > 0 || len(change.Conflicts) > 0 {
			change.Class = domain.SyncUpdate
		}
		analysis.Changes = append(analysis.Changes, change)
	}
	return r.collectStoreOnlyWorkers(ctx, seen, analysis)
}

// workerRecommendation returns the table recommendation with one
// exception: for a resignation reported by the source the recommended
// move is to accept it rather than queue a manual decision.
func workerRecommendation(f workerField, src *domain.Worker) domain.ConflictStrategy {
	if f.name == "status" && src.Status == domain.WorkerResigned {
		return domain.StrategySourceWins
	}
	return f.recommended
}

func (r *Resolver) collectStoreOnlyWorkers(ctx context.Context, seen map[string]bool, analysis *SyncAnalysis) error {
	all, err := r.store.ListWorkers(ctx, store.WorkerFilter{})
	if err != nil {
		return fmt.Errorf("list workers: %w", err)
	}
	for _, w := range all {
		if !seen[w.WorkerNumber] {
			analysis.StoreOnly = append(analysis.StoreOnly, w.WorkerNumber)
		}
	}
	return nil
}

func (r *Resolver) analyzeWorksites(ctx context.Context, srcs []*domain.Worksite, analysis *SyncAnalysis) error {
	seen := map[string]bool{}
	for _, src := range srcs {
		key := strings.TrimSpace(src.WorksiteKey)
		if key == "" {
			continue
		}
		seen[key] = true

		stored, err := r.store.GetWorksiteByKey(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			analysis.Changes = append(analysis.Changes, RecordChange{
				Key: key, Class: domain.SyncCreate, srcWorksite: src,
			})
			continue
		}
		if err != nil {
			return fmt.Errorf("lookup worksite %s: %w", key, err)
		}

		change := RecordChange{Key: key, Class: domain.SyncUnchanged, srcWorksite: src}
		for _, f := range worksiteFields {
			srcVal := normalize(f.get(src))
			dbVal := normalize(f.get(stored))
			switch {
			case srcVal == "" || srcVal == dbVal:
			case dbVal == "":
				change.Fills = append(change.Fills, FieldFill{Field: f.name, Label: f.label, Value: srcVal})
			default:
				change.Conflicts = append(change.Conflicts, Conflict{
					Key:       key + ":" + f.name,
					EntityKey: key,
					Field:     f.name,
					Label:     f.label,
					Severity:  f.severity,
					Stored:    dbVal,
					Source:    srcVal,
					Default:   domain.StrategySourceWins,
				})
			}
		}
		if len(change.Fills) > 0 || len(change.Conflicts) > 0 {
			change.Class = domain.SyncUpdate
		}
		analysis.Changes = append(analysis.Changes, change)
	}

	all, err := r.store.ListWorksites(ctx, store.WorksiteFilter{})
	if err != nil {
		return fmt.Errorf("list worksites: %w", err)
	}
	for _, w := range all {
		if !seen[w.WorksiteKey] {
			analysis.StoreOnly = append(analysis.StoreOnly, w.WorksiteKey)
		}
	}
	return nil
}

// Resolve applies an analysis. Each conflict follows the override for
// its key when one is given, otherwise the run strategy. Every write
// happens inside one store transaction, after a snapshot of the
// collection has been persisted.
func (r *Resolver) Resolve(ctx context.Context, analysis *SyncAnalysis, runStrategy domain.ConflictStrategy, overrides map[string]domain.ConflictStrategy) (*SyncResult, error) {
	if analysis == nil {
		return nil, fmt.Errorf("nil analysis")
	}
	if !runStrategy.IsValid() {
		return nil, fmt.Errorf("invalid strategy: %q", runStrategy)
	}
	for key, s := range overrides {
		if !s.IsValid() {
			return nil, fmt.Errorf("invalid override for %s: %q", key, s)
		}
	}

	if r.lock != nil {
		token, err := r.lock.Acquire(ctx, string(analysis.Collection))
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := r.lock.Release(ctx, string(analysis.Collection), token); err != nil {
				r.log.Error("run lock release failed", "error", err)
			}
		}()
	}

	started := r.clock()
	ctx, end := r.metrics.StartSpan(ctx, "reconcile.resolve")
	defer end()

	result := &SyncResult{Collection: analysis.Collection}

	if r.mutates(analysis) {
		if r.snaps == nil {
			return nil, fmt.Errorf("no snapshot store configured")
		}
		id, hash, err := r.writeSnapshot(ctx, analysis.Collection)
		if err != nil {
			return nil, fmt.Errorf("write snapshot: %w", err)
		}
		result.SnapshotID = id
		result.SnapshotSHA256 = hash
	}

	err := r.store.WithTx(ctx, func(tx store.Store) error {
		for _, change := range analysis.Changes {
			if err := r.applyChange(ctx, tx, analysis, change, runStrategy, overrides, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply sync: %w", err)
	}

	r.record(ctx, result, started)
	return result, nil
}

// mutates reports whether the analysis will write anything at all.
func (r *Resolver) mutates(analysis *SyncAnalysis) bool {
	for _, c := range analysis.Changes {
		if c.Class == domain.SyncCreate || c.Class == domain.SyncUpdate {
			return true
		}
	}
	return false
}

func (r *Resolver) applyChange(ctx context.Context, tx store.Store, analysis *SyncAnalysis, change RecordChange, runStrategy domain.ConflictStrategy, overrides map[string]domain.ConflictStrategy, result *SyncResult) error {
	switch change.Class {
	case domain.SyncCreate:
		if change.srcWorker != nil {
			if err := tx.PutWorker(ctx, change.srcWorker); err != nil {
				return fmt.Errorf("create worker %s: %w", change.Key, err)
			}
		}
		if change.srcWorksite != nil {
			if err := tx.PutWorksite(ctx, change.srcWorksite); err != nil {
				return fmt.Errorf("create worksite %s: %w", change.Key, err)
			}
		}
		result.Created++
		return nil
	case domain.SyncUpdate:
		if change.srcWorker != nil {
			return r.applyWorker(ctx, tx, analysis, change, runStrategy, overrides, result)
		}
		return r.applyWorksite(ctx, tx, analysis, change, runStrategy, overrides, result)
	default:
		return nil
	}
}

// decide picks the strategy for one conflict: an override by conflict
// key, otherwise the run strategy. The per-field recommendation is
// advice for the operator, not a decision.
func decide(c Conflict, runStrategy domain.ConflictStrategy, overrides map[string]domain.ConflictStrategy) domain.ConflictStrategy {
	if s, ok := overrides[c.Key]; ok {
		return s
	}
	return runStrategy
}

// sourceIsNewer implements newest-wins: the source side wins only when
// the extract postdates the stored record's last update.
func sourceIsNewer(extractedAt *time.Time, updatedAt time.Time) bool {
	return extractedAt != nil && extractedAt.After(updatedAt)
}

func (r *Resolver) applyWorker(ctx context.Context, tx store.Store, analysis *SyncAnalysis, change RecordChange, runStrategy domain.ConflictStrategy, overrides map[string]domain.ConflictStrategy, result *SyncResult) error {
	stored, err := tx.GetWorkerByNumber(ctx, change.Key)
	if err != nil {
		return fmt.Errorf("lookup worker %s: %w", change.Key, err)
	}

	byName := map[string]workerField{}
	for _, f := range workerFields {
		byName[f.name] = f
	}

	dirty := false
	for _, fill := range change.Fills {
		byName[fill.Field].set(stored, change.srcWorker)
		dirty = true
	}
	for _, c := range change.Conflicts {
		switch decide(c, runStrategy, overrides) {
		case domain.StrategySourceWins:
			byName[c.Field].set(stored, change.srcWorker)
			dirty = true
			result.Resolved++
		case domain.StrategyDBWins:
			result.Skipped++
		case domain.StrategyNewestWins:
			if sourceIsNewer(analysis.extractedAt, stored.UpdatedAt) {
				byName[c.Field].set(stored, change.srcWorker)
				dirty = true
				result.Resolved++
			} else {
				result.Skipped++
			}
		case domain.StrategyManual:
			result.Pending = append(result.Pending, c)
		}
	}

	if dirty {
		if err := tx.UpdateWorker(ctx, stored); err != nil {
			return fmt.Errorf("update worker %s: %w", change.Key, err)
		}
		result.Updated++
	}
	return nil
}

func (r *Resolver) applyWorksite(ctx context.Context, tx store.Store, analysis *SyncAnalysis, change RecordChange, runStrategy domain.ConflictStrategy, overrides map[string]domain.ConflictStrategy, result *SyncResult) error {
	stored, err := tx.GetWorksiteByKey(ctx, change.Key)
	if err != nil {
		return fmt.Errorf("lookup worksite %s: %w", change.Key, err)
	}

	byName := map[string]worksiteField{}
	for _, f := range worksiteFields {
		byName[f.name] = f
	}

	dirty := false
	for _, fill := range change.Fills {
		byName[fill.Field].set(stored, change.srcWorksite)
		dirty = true
	}
	for _, c := range change.Conflicts {
		switch decide(c, runStrategy, overrides) {
		case domain.StrategySourceWins:
			byName[c.Field].set(stored, change.srcWorksite)
			dirty = true
			result.Resolved++
		case domain.StrategyDBWins:
			result.Skipped++
		case domain.StrategyNewestWins:
			if sourceIsNewer(analysis.extractedAt, stored.UpdatedAt) {
				byName[c.Field].set(stored, change.srcWorksite)
				dirty = true
				result.Resolved++
			} else {
				result.Skipped++
			}
		case domain.StrategyManual:
			result.Pending = append(result.Pending, c)
		}
	}

	if dirty {
		if err := tx.UpdateWorksite(ctx, stored); err != nil {
			return fmt.Errorf("update worksite %s: %w", change.Key, err)
		}
		result.Updated++
	}
	return nil
}

func (r *Resolver) record(ctx context.Context, result *SyncResult, started time.Time) {
	if r.metrics != nil {
		r.metrics.RecordSync(ctx, "created", result.Created)
		r.metrics.RecordSync(ctx, "updated", result.Updated)
		r.metrics.RecordSync(ctx, "skipped", result.Skipped)
		r.metrics.RecordSync(ctx, "resolved", result.Resolved)
		r.metrics.RecordSync(ctx, "pending", len(result.Pending))
		r.metrics.RecordRun(ctx, "sync", r.clock().Sub(started))
	}
	if r.trail != nil {
		if _, err := r.trail.Record(audit.EventSyncRun, string(result.Collection), "sync.resolved", map[string]any{
			"created":         result.Created,
			"updated":         result.Updated,
			"skipped":         result.Skipped,
			"resolved":        result.Resolved,
			"pending":         len(result.Pending),
			"snapshot":        result.SnapshotID,
			"snapshot_sha256": result.SnapshotSHA256,
		}); err != nil {
			r.log.Error("audit trail record failed", "error", err)
		}
	}
	r.log.Info("sync resolved",
		"collection", result.Collection,
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"resolved", result.Resolved,
		"pending", len(result.Pending),
		"snapshot", result.SnapshotID)
}

package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hakenworks/keiyaku/pkg/artifacts"
	"github.com/hakenworks/keiyaku/pkg/audit"
	"github.com/hakenworks/keiyaku/pkg/domain"
	"github.com/hakenworks/keiyaku/pkg/store"
)

var testNow = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func floatPtr(v float64) *float64 { return &v }

func newResolver(t *testing.T, s store.Store) *Resolver {
	t.Helper()
	snaps, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return New(s, WithSnapshots(snaps), WithClock(fixedClock))
}

func storedWorker(num, name string) *domain.Worker {
	return &domain.Worker{
		WorkerNumber: num,
		Name:         name,
		Status:       domain.WorkerActive,
		CompanyName:  "Meihan Industries",
		Department:   "Assembly",
		HourlyRate:   floatPtr(1200),
		UpdatedAt:    testNow.AddDate(0, 0, -10),
	}
}

func sourceWorker(num, name string) *domain.Worker {
	w := storedWorker(num, name)
	w.UpdatedAt = time.Time{}
	return w
}

func workerBatch(extracted *time.Time, workers ...*domain.Worker) *Batch {
	return &Batch{Collection: CollectionWorkers, Workers: workers, ExtractedAt: extracted}
}

func TestAnalyzeClassification(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.PutWorker(ctx, storedWorker("W-001", "Tanaka Jiro")))
	require.NoError(t, s.PutWorker(ctx, storedWorker("W-002", "Sato Kenta")))
	require.NoError(t, s.PutWorker(ctx, storedWorker("W-003", "Mori Aki")))

	unchanged := sourceWorker("W-001", "Tanaka Jiro")
	conflicted := sourceWorker("W-002", "Satou Kenta")
	fresh := sourceWorker("W-900", "Nguyen Van A")

	r := newResolver(t, s)
	analysis, err := r.Analyze(ctx, workerBatch(nil, unchanged, conflicted, fresh))
	require.NoError(t, err)

	require.Equal(t, 1, analysis.Creates)
	require.Equal(t, 1, analysis.Updates)
	require.Equal(t, 1, analysis.Unchanged)
	require.Equal(t, []string{"W-003"}, analysis.StoreOnly)
	require.Equal(t, 1, analysis.TotalConflicts())

	byKey := map[string]RecordChange{}
	for _, c := range analysis.Changes {
		byKey[c.Key] = c
	}
	require.Equal(t, domain.SyncCreate, byKey["W-900"].Class)
	require.Equal(t, domain.SyncUnchanged, byKey["W-001"].Class)
	require.Equal(t, domain.SyncUpdate, byKey["W-002"].Class)

	require.Equal(t, domain.SeverityHigh, byKey["W-002"].MaxSeverity())

	conflict := byKey["W-002"].Conflicts[0]
	require.Equal(t, "W-002:name", conflict.Key)
	require.Equal(t, domain.SeverityHigh, conflict.Severity)
	require.Equal(t, "Sato Kenta", conflict.Stored)
	require.Equal(t, "Satou Kenta", conflict.Source)
}

func TestAnalyzeNormalization(t *testing.T) {
	ctx := context.Background()

	t.Run("width folding makes values equal", func(t *testing.T) {
		s := store.NewMemory()
		stored := storedWorker("W-001", "Tanaka Jiro")
		stored.Department = "Ｌｉｎｅ３"
		require.NoError(t, s.PutWorker(ctx, stored))

		src := sourceWorker("W-001", "Tanaka Jiro")
		src.Department = "Line3"

		r := newResolver(t, s)
		analysis, err := r.Analyze(ctx, workerBatch(nil, src))
		require.NoError(t, err)
		require.Equal(t, 1, analysis.Unchanged)
		require.Zero(t, analysis.TotalConflicts())
	})

	t.Run("no-data markers carry no opinion", func(t *testing.T) {
		s := store.NewMemory()
		require.NoError(t, s.PutWorker(ctx, storedWorker("W-001", "Tanaka Jiro")))

		src := sourceWorker("W-001", "none")
		src.Department = "0"
		src.CompanyName = "nan"
		src.HourlyRate = floatPtr(0)

		r := newResolver(t, s)
		analysis, err := r.Analyze(ctx, workerBatch(nil, src))
		require.NoError(t, err)
		require.Equal(t, 1, analysis.Unchanged)
		require.Zero(t, analysis.TotalConflicts())
	})

	t.Run("blank stored value becomes a fill not a conflict", func(t *testing.T) {
		s := store.NewMemory()
		stored := storedWorker("W-001", "Tanaka Jiro")
		stored.LineName = ""
		require.NoError(t, s.PutWorker(ctx, stored))

		src := sourceWorker("W-001", "Tanaka Jiro")
		src.LineName = "Line 3"

		r := newResolver(t, s)
		analysis, err := r.Analyze(ctx, workerBatch(nil, src))
		require.NoError(t, err)
		require.Equal(t, 1, analysis.Updates)
		require.Zero(t, analysis.TotalConflicts())
		require.Len(t, analysis.Changes[0].Fills, 1)
		require.Equal(t, "line_name", analysis.Changes[0].Fills[0].Field)
	})
}

func TestAnalyzeRecommendations(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.PutWorker(ctx, storedWorker("W-001", "Tanaka Jiro")))

	src := sourceWorker("W-001", "Tanaka Ziro")
	src.Department = "Welding"
	src.HourlyRate = floatPtr(1350)
	src.Status = domain.WorkerResigned

	r := newResolver(t, s)
	analysis, err := r.Analyze(ctx, workerBatch(nil, src))
	require.NoError(t, err)

	require.Equal(t, domain.SeverityCritical, analysis.Changes[0].MaxSeverity())

	recommended := map[string]domain.ConflictStrategy{}
	for _, c := range analysis.Changes[0].Conflicts {
		recommended[c.Field] = c.Default
	}
	require.Equal(t, domain.StrategyNewestWins, recommended["name"])
	require.Equal(t, domain.StrategyNewestWins, recommended["department"])
	require.Equal(t, domain.StrategySourceWins, recommended["hourly_rate"])
	// A resignation from the source is recommended for acceptance
	// instead of the usual manual review on status.
	require.Equal(t, domain.StrategySourceWins, recommended["status"])
}

func TestResolveStrategies(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*store.Memory, *Resolver, *SyncAnalysis) {
		s := store.NewMemory()
		require.NoError(t, s.PutWorker(ctx, storedWorker("W-001", "Tanaka Jiro")))

		src := sourceWorker("W-001", "Tanaka Ziro")
		extracted := testNow.AddDate(0, 0, -1)
		r := newResolver(t, s)
		analysis, err := r.Analyze(ctx, workerBatch(&extracted, src))
		require.NoError(t, err)
		require.Equal(t, 1, analysis.TotalConflicts())
		return s, r, analysis
	}

	t.Run("source wins applies the source value", func(t *testing.T) {
		s, r, analysis := setup(t)
		res, err := r.Resolve(ctx, analysis, domain.StrategySourceWins, nil)
		require.NoError(t, err)
		require.Equal(t, 1, res.Resolved)
		require.Equal(t, 1, res.Updated)

		w, err := s.GetWorkerByNumber(ctx, "W-001")
		require.NoError(t, err)
		require.Equal(t, "Tanaka Ziro", w.Name)
	})

	t.Run("db wins leaves the store untouched", func(t *testing.T) {
		s, r, analysis := setup(t)
		res, err := r.Resolve(ctx, analysis, domain.StrategyDBWins, nil)
		require.NoError(t, err)
		require.Equal(t, 1, res.Skipped)
		require.Zero(t, res.Updated)

		w, err := s.GetWorkerByNumber(ctx, "W-001")
		require.NoError(t, err)
		require.Equal(t, "Tanaka Jiro", w.Name)
	})

	t.Run("newest wins takes a fresher extract", func(t *testing.T) {
		s, r, analysis := setup(t)
		res, err := r.Resolve(ctx, analysis, domain.StrategyNewestWins, nil)
		require.NoError(t, err)
		require.Equal(t, 1, res.Resolved)

		w, err := s.GetWorkerByNumber(ctx, "W-001")
		require.NoError(t, err)
		require.Equal(t, "Tanaka Ziro", w.Name)
	})

	t.Run("newest wins keeps a fresher stored record", func(t *testing.T) {
		s := store.NewMemory()
		stored := storedWorker("W-001", "Tanaka Jiro")
		stored.UpdatedAt = testNow
		require.NoError(t, s.PutWorker(ctx, stored))

		extracted := testNow.AddDate(0, 0, -5)
		r := newResolver(t, s)
		analysis, err := r.Analyze(ctx, workerBatch(&extracted, sourceWorker("W-001", "Tanaka Ziro")))
		require.NoError(t, err)

		res, err := r.Resolve(ctx, analysis, domain.StrategyNewestWins, nil)
		require.NoError(t, err)
		require.Equal(t, 1, res.Skipped)

		w, err := s.GetWorkerByNumber(ctx, "W-001")
		require.NoError(t, err)
		require.Equal(t, "Tanaka Jiro", w.Name)
	})

	t.Run("manual without a decision stays pending", func(t *testing.T) {
		s, r, analysis := setup(t)
		res, err := r.Resolve(ctx, analysis, domain.StrategyManual, nil)
		require.NoError(t, err)
		require.Len(t, res.Pending, 1)
		require.Equal(t, "W-001:name", res.Pending[0].Key)

		w, err := s.GetWorkerByNumber(ctx, "W-001")
		require.NoError(t, err)
		require.Equal(t, "Tanaka Jiro", w.Name)
	})

	t.Run("override by key beats the run strategy", func(t *testing.T) {
		s, r, analysis := setup(t)
		res, err := r.Resolve(ctx, analysis, domain.StrategyDBWins, map[string]domain.ConflictStrategy{
			"W-001:name": domain.StrategySourceWins,
		})
		require.NoError(t, err)
		require.Equal(t, 1, res.Resolved)

		w, err := s.GetWorkerByNumber(ctx, "W-001")
		require.NoError(t, err)
		require.Equal(t, "Tanaka Ziro", w.Name)
	})

	t.Run("rejects an invalid strategy", func(t *testing.T) {
		_, r, analysis := setup(t)
		_, err := r.Resolve(ctx, analysis, domain.ConflictStrategy("coinflip"), nil)
		require.Error(t, err)
	})
}

func TestResolveRecommendationNeverApplies(t *testing.T) {
	ctx := context.Background()

	t.Run("db wins keeps the stored rate", func(t *testing.T) {
		s := store.NewMemory()
		stored := storedWorker("W-001", "Tanaka Jiro")
		stored.HourlyRate = floatPtr(1000)
		require.NoError(t, s.PutWorker(ctx, stored))

		src := sourceWorker("W-001", "Tanaka Jiro")
		src.HourlyRate = floatPtr(1500)

		r := newResolver(t, s)
		analysis, err := r.Analyze(ctx, workerBatch(nil, src))
		require.NoError(t, err)
		require.Equal(t, domain.StrategySourceWins, analysis.Changes[0].Conflicts[0].Default)

		// The source-wins recommendation on the rate column is
		// advisory; the run strategy still rules.
		res, err := r.Resolve(ctx, analysis, domain.StrategyDBWins, nil)
		require.NoError(t, err)
		require.Equal(t, 1, res.Skipped)
		require.Zero(t, res.Resolved)

		w, err := s.GetWorkerByNumber(ctx, "W-001")
		require.NoError(t, err)
		require.Equal(t, 1000.0, *w.HourlyRate)
	})

	t.Run("db wins keeps the stored address", func(t *testing.T) {
		s := store.NewMemory()
		require.NoError(t, s.PutWorksite(ctx, &domain.Worksite{
			WorksiteKey:    "meihan_aichi",
			CompanyName:    "Meihan Industries",
			PlantName:      "Aichi Plant",
			IsActive:       true,
			CompanyAddress: "Old Town 1",
		}))

		src := &domain.Worksite{
			WorksiteKey:    "meihan_aichi",
			CompanyName:    "Meihan Industries",
			CompanyAddress: "New Town 2",
		}

		r := newResolver(t, s)
		analysis, err := r.Analyze(ctx, &Batch{Collection: CollectionWorksites, Worksites: []*domain.Worksite{src}})
		require.NoError(t, err)
		require.Equal(t, 1, analysis.TotalConflicts())

		res, err := r.Resolve(ctx, analysis, domain.StrategyDBWins, nil)
		require.NoError(t, err)
		require.Equal(t, 1, res.Skipped)

		w, err := s.GetWorksiteByKey(ctx, "meihan_aichi")
		require.NoError(t, err)
		require.Equal(t, "Old Town 1", w.CompanyAddress)
	})
}

func TestResolveCreatesAndFills(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	stored := storedWorker("W-001", "Tanaka Jiro")
	stored.LineName = ""
	require.NoError(t, s.PutWorker(ctx, stored))

	src := sourceWorker("W-001", "Tanaka Jiro")
	src.LineName = "Line 3"
	fresh := sourceWorker("W-900", "Nguyen Van A")

	r := newResolver(t, s)
	analysis, err := r.Analyze(ctx, workerBatch(nil, src, fresh))
	require.NoError(t, err)

	// Fills apply regardless of the run strategy.
	res, err := r.Resolve(ctx, analysis, domain.StrategyDBWins, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)
	require.Equal(t, 1, res.Updated)
	require.NotEmpty(t, res.SnapshotID)
	require.Len(t, res.SnapshotSHA256, 64)

	w, err := s.GetWorkerByNumber(ctx, "W-001")
	require.NoError(t, err)
	require.Equal(t, "Line 3", w.LineName)

	created, err := s.GetWorkerByNumber(ctx, "W-900")
	require.NoError(t, err)
	require.Equal(t, "Nguyen Van A", created.Name)
}

func TestResolveWorksites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	cutoff := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutWorksite(ctx, &domain.Worksite{
		WorksiteKey:    "meihan_aichi",
		CompanyName:    "Meihan Industries",
		PlantName:      "Aichi Plant",
		IsActive:       true,
		CompanyAddress: "old address",
		CutoffDate:     &cutoff,
	}))

	newCutoff := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	src := &domain.Worksite{
		WorksiteKey:    "meihan_aichi",
		CompanyName:    "Meihan Industries",
		CompanyAddress: "2-4 Chuo, Nagoya, Aichi",
		CutoffDate:     &newCutoff,
	}

	r := newResolver(t, s)
	analysis, err := r.Analyze(ctx, &Batch{Collection: CollectionWorksites, Worksites: []*domain.Worksite{src}})
	require.NoError(t, err)
	require.Equal(t, 2, analysis.TotalConflicts())
	for _, c := range analysis.Changes[0].Conflicts {
		require.Equal(t, domain.StrategySourceWins, c.Default)
	}

	res, err := r.Resolve(ctx, analysis, domain.StrategySourceWins, nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.Resolved)
	require.Empty(t, res.Pending)

	w, err := s.GetWorksiteByKey(ctx, "meihan_aichi")
	require.NoError(t, err)
	require.Equal(t, "2-4 Chuo, Nagoya, Aichi", w.CompanyAddress)
	require.True(t, newCutoff.Equal(*w.CutoffDate))
}

func TestSnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.PutWorker(ctx, storedWorker("W-001", "Tanaka Jiro")))

	r := newResolver(t, s)

	src := sourceWorker("W-001", "Tanaka Ziro")
	analysis, err := r.Analyze(ctx, workerBatch(nil, src))
	require.NoError(t, err)
	res, err := r.Resolve(ctx, analysis, domain.StrategySourceWins, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.SnapshotID)

	changed, err := s.GetWorkerByNumber(ctx, "W-001")
	require.NoError(t, err)
	require.Equal(t, "Tanaka Ziro", changed.Name)

	// A record created after the snapshot must survive the restore.
	require.NoError(t, s.PutWorker(ctx, storedWorker("W-999", "Mori Aki")))

	snaps, err := r.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, res.SnapshotID, snaps[0].SnapshotID)
	require.Equal(t, CollectionWorkers, snaps[0].Collection)

	require.NoError(t, r.Restore(ctx, res.SnapshotID))

	restored, err := s.GetWorkerByNumber(ctx, "W-001")
	require.NoError(t, err)
	require.Equal(t, "Tanaka Jiro", restored.Name)

	survivor, err := s.GetWorkerByNumber(ctx, "W-999")
	require.NoError(t, err)
	require.Equal(t, "Mori Aki", survivor.Name)
}

func TestRestoreUnknownSnapshot(t *testing.T) {
	r := newResolver(t, store.NewMemory())
	err := r.Restore(context.Background(), "SNAP-00000000-000000-ffffffff")
	require.ErrorIs(t, err, artifacts.ErrNotFound)
}

func TestResolveNoMutationSkipsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.PutWorker(ctx, storedWorker("W-001", "Tanaka Jiro")))

	r := newResolver(t, s)
	analysis, err := r.Analyze(ctx, workerBatch(nil, sourceWorker("W-001", "Tanaka Jiro")))
	require.NoError(t, err)

	res, err := r.Resolve(ctx, analysis, domain.StrategySourceWins, nil)
	require.NoError(t, err)
	require.Empty(t, res.SnapshotID)

	snaps, err := r.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Empty(t, snaps)
}

func TestResolveTrail(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.PutWorker(ctx, storedWorker("W-001", "Tanaka Jiro")))

	snaps, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)
	trail := audit.NewTrail()
	r := New(s, WithSnapshots(snaps), WithClock(fixedClock), WithTrail(trail))

	analysis, err := r.Analyze(ctx, workerBatch(nil, sourceWorker("W-001", "Tanaka Ziro")))
	require.NoError(t, err)
	res, err := r.Resolve(ctx, analysis, domain.StrategySourceWins, nil)
	require.NoError(t, err)

	require.Len(t, trail.ByType(audit.EventSyncRun), 1)
	require.NoError(t, r.Restore(ctx, res.SnapshotID))
	require.Len(t, trail.ByType(audit.EventSnapshotRestore), 1)
	require.NoError(t, trail.Verify())
}

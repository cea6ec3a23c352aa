//go:build property
// +build property

// Package reconcile_test contains property-based tests for the
// resolver's invariants.
package reconcile_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/hakenworks/keiyaku/pkg/artifacts"
	"github.com/hakenworks/keiyaku/pkg/domain"
	"github.com/hakenworks/keiyaku/pkg/reconcile"
	"github.com/hakenworks/keiyaku/pkg/store"
)

// genWorkerPair produces a stored worker and a source worker under the
// same worker number with independently generated field values, both
// fully populated so a db-wins run has nothing to fill in.
func genWorkerPair() gopter.Gen {
	// The "x" prefix keeps generated values clear of the source
	// system's no-data markers, so nothing classifies as a fill.
	nonEmpty := gen.AlphaString().Map(func(s string) string { return "x" + s })
	return gopter.CombineGens(
		nonEmpty, nonEmpty, nonEmpty, nonEmpty, nonEmpty, nonEmpty,
		gen.Float64Range(900, 3000),
		gen.Float64Range(900, 3000),
	).Map(func(vals []any) [2]*domain.Worker {
		dbRate := vals[6].(float64)
		srcRate := vals[7].(float64)
		stored := &domain.Worker{
			WorkerNumber: "W-001",
			Name:         vals[0].(string),
			NameKana:     vals[1].(string),
			CompanyName:  vals[2].(string),
			Department:   "Assembly",
			LineName:     "Line 1",
			Status:       domain.WorkerActive,
			HourlyRate:   &dbRate,
		}
		src := &domain.Worker{
			WorkerNumber: "W-001",
			Name:         vals[3].(string),
			NameKana:     vals[4].(string),
			CompanyName:  vals[5].(string),
			Department:   "Assembly",
			LineName:     "Line 1",
			Status:       domain.WorkerActive,
			HourlyRate:   &srcRate,
		}
		return [2]*domain.Worker{stored, src}
	})
}

// TestDBWinsInvariance verifies a db-wins run without overrides never
// changes any stored value.
func TestDBWinsInvariance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("db-wins keeps every stored field", prop.ForAll(
		func(pair [2]*domain.Worker) bool {
			ctx := context.Background()
			s := store.NewMemory()
			if err := s.PutWorker(ctx, pair[0]); err != nil {
				return false
			}
			before, err := s.GetWorkerByNumber(ctx, "W-001")
			if err != nil {
				return false
			}

			snaps, err := artifacts.NewFileStore(t.TempDir())
			if err != nil {
				return false
			}
			r := reconcile.New(s, reconcile.WithSnapshots(snaps))

			analysis, err := r.Analyze(ctx, &reconcile.Batch{
				Collection: reconcile.CollectionWorkers,
				Workers:    []*domain.Worker{pair[1]},
			})
			if err != nil {
				return false
			}
			if _, err := r.Resolve(ctx, analysis, domain.StrategyDBWins, nil); err != nil {
				return false
			}

			after, err := s.GetWorkerByNumber(ctx, "W-001")
			if err != nil {
				return false
			}
			return after.Name == before.Name &&
				after.NameKana == before.NameKana &&
				after.CompanyName == before.CompanyName &&
				after.Department == before.Department &&
				after.LineName == before.LineName &&
				after.Status == before.Status &&
				*after.HourlyRate == *before.HourlyRate
		},
		genWorkerPair(),
	))

	properties.TestingRun(t)
}

// TestAnalyzeIdempotent verifies analysis is a pure read: running it
// twice yields identical classifications and conflict sets.
func TestAnalyzeIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated analysis is identical", prop.ForAll(
		func(pair [2]*domain.Worker) bool {
			ctx := context.Background()
			s := store.NewMemory()
			if err := s.PutWorker(ctx, pair[0]); err != nil {
				return false
			}
			r := reconcile.New(s)

			batch := &reconcile.Batch{
				Collection: reconcile.CollectionWorkers,
				Workers:    []*domain.Worker{pair[1]},
			}
			a1, err1 := r.Analyze(ctx, batch)
			a2, err2 := r.Analyze(ctx, batch)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return a1.Creates == a2.Creates &&
				a1.Updates == a2.Updates &&
				a1.Unchanged == a2.Unchanged &&
				a1.TotalConflicts() == a2.TotalConflicts()
		},
		genWorkerPair(),
	))

	properties.TestingRun(t)
}

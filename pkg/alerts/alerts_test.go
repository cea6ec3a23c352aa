package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hakenworks/keiyaku/pkg/audit"
	"github.com/hakenworks/keiyaku/pkg/domain"
	"github.com/hakenworks/keiyaku/pkg/store"
)

var testNow = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func inDays(n int) *time.Time {
	t := domain.Day(testNow).AddDate(0, 0, n)
	return &t
}

func activeContract(num string, end *time.Time) *domain.Contract {
	start := domain.Day(testNow).AddDate(0, -6, 0)
	return &domain.Contract{
		ContractNumber: num,
		Status:         domain.ContractActive,
		DispatchStart:  &start,
		DispatchEnd:    end,
	}
}

func fullWorksite(key string) *domain.Worksite {
	return &domain.Worksite{
		WorksiteKey:           key,
		CompanyName:           "Meihan Industries",
		PlantName:             "Aichi Plant",
		IsActive:              true,
		CompanyAddress:        "2-4 Chuo, Nagoya, Aichi",
		ClientResponsibleName: "Ito Kenji",
		ClientComplaintName:   "Suzuki Mari",
		AgencyResponsibleName: "Yamada Taro",
	}
}

func TestSweepContractExpiry(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	cases := []struct {
		num      string
		end      *time.Time
		priority domain.Priority
		hit      bool
	}{
		{"K-2026-03-0001", inDays(1), domain.PriorityCritical, true},
		{"K-2026-03-0002", inDays(7), domain.PriorityHigh, true},
		{"K-2026-03-0003", inDays(15), domain.PriorityHigh, true},
		{"K-2026-03-0004", inDays(30), domain.PriorityMedium, true},
		{"K-2026-03-0005", inDays(14), "", false}, // between thresholds
		{"K-2026-03-0006", inDays(90), "", false},
	}
	for _, c := range cases {
		require.NoError(t, s.PutContract(ctx, activeContract(c.num, c.end)))
	}

	sw := New(s, WithClock(fixedClock))
	sum, err := sw.Sweep(ctx)
	require.NoError(t, err)
	require.Empty(t, sum.Errors)

	byNum := map[string]Alert{}
	for _, a := range sum.All() {
		if a.Type == domain.AlertContractExpiring {
			byNum[a.EntityName] = a
		}
	}
	for _, c := range cases {
		a, ok := byNum[c.num]
		if !c.hit {
			require.False(t, ok, c.num)
			continue
		}
		require.True(t, ok, c.num)
		require.Equal(t, c.priority, a.Priority, c.num)
		require.NotNil(t, a.RemainingDays)
	}
}

func TestSweepExpiredContracts(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.PutContract(ctx, activeContract("K-2025-12-0001", inDays(-10))))

	closed := activeContract("K-2025-11-0001", inDays(-40))
	closed.Status = domain.ContractExpired
	require.NoError(t, s.PutContract(ctx, closed))

	sw := New(s, WithClock(fixedClock))
	sum, err := sw.Sweep(ctx)
	require.NoError(t, err)

	bucket := sum.Buckets[domain.PriorityCritical]
	require.Len(t, bucket, 1)
	require.Equal(t, domain.AlertContractExpired, bucket[0].Type)
	require.Equal(t, "K-2025-12-0001", bucket[0].EntityName)
	require.NotNil(t, bucket[0].RemainingDays)
	require.Equal(t, -10, *bucket[0].RemainingDays)
}

func TestSweepUnassignedWorkers(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	placed := &domain.Worker{WorkerNumber: "W-001", Name: "Yamamoto Ken", Status: domain.WorkerActive}
	require.NoError(t, s.PutWorker(ctx, placed))
	idle := &domain.Worker{WorkerNumber: "W-002", Name: "Tanaka Jiro", Status: domain.WorkerActive}
	require.NoError(t, s.PutWorker(ctx, idle))
	resigned := &domain.Worker{WorkerNumber: "W-003", Name: "Mori Aki", Status: domain.WorkerResigned}
	require.NoError(t, s.PutWorker(ctx, resigned))

	c := activeContract("K-2026-01-0001", inDays(60))
	require.NoError(t, s.PutContract(ctx, c))
	require.NoError(t, s.AssignWorker(ctx, c.ID, placed.ID))

	sw := New(s, WithClock(fixedClock))
	sum, err := sw.Sweep(ctx)
	require.NoError(t, err)

	var names []string
	for _, a := range sum.All() {
		if a.Type == domain.AlertWorkerUnassigned {
			names = append(names, a.EntityName)
			require.Equal(t, domain.PriorityHigh, a.Priority)
		}
	}
	require.Equal(t, []string{"Tanaka Jiro"}, names)
}

func TestSweepWorksites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	incomplete := fullWorksite("incomplete")
	incomplete.ClientResponsibleName = ""
	incomplete.CompanyAddress = ""
	require.NoError(t, s.PutWorksite(ctx, incomplete))

	cutoffSoon := fullWorksite("soon")
	cutoffSoon.CutoffDate = inDays(20)
	require.NoError(t, s.PutWorksite(ctx, cutoffSoon))

	cutoffMid := fullWorksite("mid")
	cutoffMid.CutoffDate = inDays(50)
	require.NoError(t, s.PutWorksite(ctx, cutoffMid))

	cutoffFar := fullWorksite("far")
	cutoffFar.CutoffDate = inDays(80)
	require.NoError(t, s.PutWorksite(ctx, cutoffFar))

	cutoffDistant := fullWorksite("distant")
	cutoffDistant.CutoffDate = inDays(120)
	require.NoError(t, s.PutWorksite(ctx, cutoffDistant))

	inactive := fullWorksite("inactive")
	inactive.IsActive = false
	inactive.ClientResponsibleName = ""
	require.NoError(t, s.PutWorksite(ctx, inactive))

	sw := New(s, WithClock(fixedClock))
	sum, err := sw.Sweep(ctx)
	require.NoError(t, err)

	byEntity := map[int64][]Alert{}
	for _, a := range sum.All() {
		byEntity[a.EntityID] = append(byEntity[a.EntityID], a)
	}

	t.Run("incomplete worksite merges gaps at worst priority", func(t *testing.T) {
		alerts := byEntity[incomplete.ID]
		require.Len(t, alerts, 1)
		require.Equal(t, domain.AlertWorksiteIncomplete, alerts[0].Type)
		require.Equal(t, domain.PriorityHigh, alerts[0].Priority)
		require.Contains(t, alerts[0].Message, "client responsible person")
		require.Contains(t, alerts[0].Message, "company address")
	})

	t.Run("cutoff priorities by distance", func(t *testing.T) {
		require.Equal(t, domain.PriorityCritical, byEntity[cutoffSoon.ID][0].Priority)
		require.Equal(t, domain.PriorityHigh, byEntity[cutoffMid.ID][0].Priority)
		require.Equal(t, domain.PriorityMedium, byEntity[cutoffFar.ID][0].Priority)
		require.Empty(t, byEntity[cutoffDistant.ID])
	})

	t.Run("inactive worksites skipped", func(t *testing.T) {
		require.Empty(t, byEntity[inactive.ID])
	})
}

func TestSweepDocuments(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	add := func(num, name, nationality string, expiry *time.Time) *domain.Worker {
		w := &domain.Worker{
			WorkerNumber: num, Name: name, Status: domain.WorkerActive,
			Nationality: nationality, DocumentExpiry: expiry,
		}
		// Give everyone a current placement so the unassigned check
		// stays quiet.
		require.NoError(t, s.PutWorker(ctx, w))
		c := activeContract("K-"+num, inDays(100))
		require.NoError(t, s.PutContract(ctx, c))
		require.NoError(t, s.AssignWorker(ctx, c.ID, w.ID))
		return w
	}

	urgent := add("W-001", "Nguyen Van A", "VN", inDays(10))
	soon := add("W-002", "Silva Jose", "BR", inDays(25))
	later := add("W-003", "Chen Wei", "CN", inDays(55))
	add("W-004", "Kim Min", "KR", inDays(200))
	add("W-005", "Yamamoto Ken", "JP", inDays(5)) // domestic, no documents tracked

	sw := New(s, WithClock(fixedClock))
	sum, err := sw.Sweep(ctx)
	require.NoError(t, err)

	byWorker := map[int64]Alert{}
	for _, a := range sum.All() {
		if a.Type == domain.AlertDocumentExpiring {
			byWorker[a.EntityID] = a
		}
	}
	require.Len(t, byWorker, 3)
	require.Equal(t, domain.PriorityCritical, byWorker[urgent.ID].Priority)
	require.Equal(t, domain.PriorityHigh, byWorker[soon.ID].Priority)
	require.Equal(t, domain.PriorityMedium, byWorker[later.ID].Priority)
}

func TestSweepOrdering(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	// Two critical alerts with different urgency plus one without a
	// deadline-bearing check result.
	require.NoError(t, s.PutContract(ctx, activeContract("K-2026-03-0001", inDays(1))))
	require.NoError(t, s.PutContract(ctx, activeContract("K-2025-12-0001", inDays(-20))))

	w := fullWorksite("soon")
	w.CutoffDate = inDays(5)
	require.NoError(t, s.PutWorksite(ctx, w))

	sw := New(s, WithClock(fixedClock))
	sum, err := sw.Sweep(ctx)
	require.NoError(t, err)

	crit := sum.Buckets[domain.PriorityCritical]
	require.Len(t, crit, 3)
	require.Equal(t, -20, *crit[0].RemainingDays)
	require.Equal(t, 1, *crit[1].RemainingDays)
	require.Equal(t, 5, *crit[2].RemainingDays)
}

func TestDailySummary(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.PutContract(ctx, activeContract("K-2026-03-0001", inDays(1))))
	require.NoError(t, s.PutContract(ctx, activeContract("K-2026-03-0002", inDays(7))))
	require.NoError(t, s.PutContract(ctx, activeContract("K-2025-12-0001", inDays(-3))))

	idle := &domain.Worker{WorkerNumber: "W-001", Name: "Tanaka Jiro", Status: domain.WorkerActive}
	require.NoError(t, s.PutWorker(ctx, idle))

	sw := New(s, WithClock(fixedClock))
	sum, err := sw.DailySummary(ctx)
	require.NoError(t, err)

	require.Equal(t, 4, sum.TotalAlerts)
	require.Equal(t, 4, sum.ActionRequired) // 2 critical + 2 high
	require.Equal(t, 2, sum.ExpiringThisWeek)
	require.Equal(t, 1, sum.ExpiredContracts)
	require.Equal(t, 1, sum.UnassignedWorkers)
	require.NotEmpty(t, sum.MostUrgent)
	require.Equal(t, domain.PriorityCritical, sum.MostUrgent[0].Priority)
}

func TestForEntity(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	c1 := activeContract("K-2026-03-0001", inDays(1))
	require.NoError(t, s.PutContract(ctx, c1))
	c2 := activeContract("K-2026-03-0002", inDays(7))
	require.NoError(t, s.PutContract(ctx, c2))

	sw := New(s, WithClock(fixedClock))
	alerts, err := sw.ForEntity(ctx, "contract", c1.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, c1.ID, alerts[0].EntityID)
}

func TestSweepTrail(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	trail := audit.NewTrail()

	sw := New(s, WithClock(fixedClock), WithTrail(trail))
	_, err := sw.Sweep(ctx)
	require.NoError(t, err)

	entries := trail.ByType(audit.EventAlertSweep)
	require.Len(t, entries, 1)
	require.NoError(t, trail.Verify())
}

func TestSweepEmptyStore(t *testing.T) {
	sw := New(store.NewMemory(), WithClock(fixedClock))
	sum, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, sum.Total)
	require.Empty(t, sum.Errors)
}

// brokenWorksiteStore fails every worksite listing so the worksite
// checks error out while the rest of the sweep proceeds.
type brokenWorksiteStore struct {
	*store.Memory
}

func (b *brokenWorksiteStore) ListWorksites(ctx context.Context, f store.WorksiteFilter) ([]*domain.Worksite, error) {
	return nil, errors.New("worksites table offline")
}

func TestSweepCheckFailure(t *testing.T) {
	ctx := context.Background()
	s := &brokenWorksiteStore{Memory: store.NewMemory()}
	require.NoError(t, s.Memory.PutContract(ctx, activeContract("K-2026-03-0001", inDays(1))))

	sw := New(s, WithClock(fixedClock))
	sum, err := sw.Sweep(ctx)
	require.NoError(t, err)

	// Both worksite-backed checks fail; each failure surfaces as a
	// high-priority alert alongside its CheckError entry.
	require.Len(t, sum.Errors, 2)
	var failures []Alert
	for _, a := range sum.Buckets[domain.PriorityHigh] {
		if a.Type == domain.AlertCheckFailed {
			failures = append(failures, a)
		}
	}
	require.Len(t, failures, 2)
	checks := []string{failures[0].EntityName, failures[1].EntityName}
	require.ElementsMatch(t, []string{"incomplete_worksites", "cutoff_dates"}, checks)

	// The healthy checks still deliver their alerts.
	require.Len(t, sum.Buckets[domain.PriorityCritical], 1)
	require.Equal(t, domain.AlertContractExpiring, sum.Buckets[domain.PriorityCritical][0].Type)
}

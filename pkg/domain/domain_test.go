package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContactBlock(t *testing.T) {
	var nilBlock *ContactBlock
	require.True(t, nilBlock.Empty())
	require.False(t, nilBlock.Incomplete())

	require.True(t, (&ContactBlock{}).Empty())
	require.True(t, (&ContactBlock{Phone: "052-000-0000"}).Incomplete())
	require.False(t, (&ContactBlock{Name: "Sato"}).Empty())
	require.False(t, (&ContactBlock{Name: "Sato"}).Incomplete())
}

func TestContractPeriod(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	c := &Contract{DispatchStart: &start, DispatchEnd: &end}

	t.Run("duration", func(t *testing.T) {
		require.Equal(t, 89, c.DurationDays())
		require.Equal(t, -1, (&Contract{DispatchStart: &start}).DurationDays())
	})

	t.Run("covers is inclusive on both ends", func(t *testing.T) {
		require.True(t, c.Covers(start))
		require.True(t, c.Covers(end))
		require.True(t, c.Covers(time.Date(2026, 2, 15, 23, 59, 0, 0, time.UTC)))
		require.False(t, c.Covers(end.AddDate(0, 0, 1)))
		require.False(t, (&Contract{}).Covers(start))
	})
}

func TestWorkerForeign(t *testing.T) {
	for _, nat := range []string{"", "JP", "Japan", "Japanese"} {
		require.False(t, (&Worker{Nationality: nat}).Foreign(), nat)
	}
	require.True(t, (&Worker{Nationality: "Vietnam"}).Foreign())
	require.True(t, (&Worker{Nationality: "Brazil"}).Foreign())
}

func TestWorksiteDisplayName(t *testing.T) {
	require.Equal(t, "Acme", (&Worksite{CompanyName: "Acme"}).DisplayName())
	require.Equal(t, "Acme Nagoya", (&Worksite{CompanyName: "Acme", PlantName: "Nagoya"}).DisplayName())
}

func TestTimeOfDay(t *testing.T) {
	require.True(t, TimeOfDay{Hour: 8, Minute: 30}.Valid())
	require.False(t, TimeOfDay{Hour: 25}.Valid())
	require.False(t, TimeOfDay{Hour: 8, Minute: 60}.Valid())
	require.Equal(t, "08:30", TimeOfDay{Hour: 8, Minute: 30}.String())
}

func TestDayArithmetic(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	late := time.Date(2026, 3, 16, 1, 30, 0, 0, jst) // still the 15th in UTC

	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), Day(late))

	today := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	require.Equal(t, 16, DaysUntil(today, time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)))
	require.Equal(t, -5, DaysUntil(today, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 0, DaysUntil(today, today.Add(2*time.Hour)))
}

func TestEnumValidity(t *testing.T) {
	require.True(t, ContractActive.IsValid())
	require.False(t, ContractStatus("archived").IsValid())
	require.True(t, WorkerResigned.IsValid())
	require.False(t, WorkerStatus("fired").IsValid())
	require.Equal(t, "active", ContractActive.String())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hakenworks/keiyaku/pkg/domain"
)

func TestLoad(t *testing.T) {
	t.Run("development defaults", func(t *testing.T) {
		cfg := Load()
		require.Equal(t, "sqlite", cfg.StoreDriver)
		require.Equal(t, "data/keiyaku.db", cfg.SQLitePath)
		require.Equal(t, "INFO", cfg.LogLevel)
		require.Equal(t, "development", cfg.Environment)
		require.NotZero(t, cfg.RunLockTTL)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "postgres")
		t.Setenv("DATABASE_URL", "postgres://keiyaku@localhost:5432/keiyaku?sslmode=disable")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("REDIS_DB", "3")
		t.Setenv("RUN_LOCK_TTL", "90s")

		cfg := Load()
		require.Equal(t, "postgres", cfg.StoreDriver)
		require.NotEmpty(t, cfg.PostgresURL)
		require.Equal(t, "localhost:6379", cfg.RedisAddr)
		require.Equal(t, 3, cfg.RedisDB)
		require.Equal(t, "1m30s", cfg.RunLockTTL.String())
	})
}

const defaultsYAML = `
agency_manager:
  name: Yamada Taro
  department: Dispatch Division
  phone: 052-000-0000
agency_complaint_contact:
  name: Sato Yumi
  department: HR
work_start_time: "08:30"
work_end_time: "17:30"
break_minutes: 60
safety_measures: standard plant safety training and protective gear
termination_measures: 30 days notice with reassignment support
`

func writeDefaults(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(defaultsYAML), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	d, err := LoadDefaults(writeDefaults(t))
	require.NoError(t, err)
	require.Equal(t, "Yamada Taro", d.AgencyManager.Name)
	require.Equal(t, "HR", d.AgencyComplaint.Department)
	require.Equal(t, 60, d.BreakMinutes)

	_, err = LoadDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultsApply(t *testing.T) {
	d, err := LoadDefaults(writeDefaults(t))
	require.NoError(t, err)

	t.Run("fills blank fields", func(t *testing.T) {
		c := &domain.Contract{}
		d.Apply(c)
		require.Equal(t, "Yamada Taro", c.AgencyManager.Name)
		require.Equal(t, "Sato Yumi", c.AgencyComplaint.Name)
		require.Equal(t, &domain.TimeOfDay{Hour: 8, Minute: 30}, c.WorkStartTime)
		require.Equal(t, &domain.TimeOfDay{Hour: 17, Minute: 30}, c.WorkEndTime)
		require.Equal(t, 60, *c.BreakMinutes)
		require.NotEmpty(t, c.SafetyMeasures)
		require.NotEmpty(t, c.TerminationMeasures)
	})

	t.Run("never overwrites existing values", func(t *testing.T) {
		breakMin := 45
		c := &domain.Contract{
			AgencyManager:  &domain.ContactBlock{Name: "Kimura Ken", Department: "Sales"},
			WorkStartTime:  &domain.TimeOfDay{Hour: 6, Minute: 0},
			BreakMinutes:   &breakMin,
			SafetyMeasures: "site specific plan",
		}
		d.Apply(c)
		require.Equal(t, "Kimura Ken", c.AgencyManager.Name)
		require.Equal(t, 6, c.WorkStartTime.Hour)
		require.Equal(t, 45, *c.BreakMinutes)
		require.Equal(t, "site specific plan", c.SafetyMeasures)
	})

	t.Run("nil contract is a no-op", func(t *testing.T) {
		d.Apply(nil)
	})
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"08:30", true},
		{"0:00", true},
		{"23:59", true},
		{"24:00", false},
		{"8", false},
		{"", false},
		{"aa:bb", false},
	}
	for _, c := range cases {
		_, ok := parseTimeOfDay(c.in)
		require.Equal(t, c.ok, ok, c.in)
	}
}

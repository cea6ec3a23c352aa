package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hakenworks/keiyaku/pkg/domain"
)

func TestRunDispatch(t *testing.T) {
	t.Run("no arguments prints usage", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := Run([]string{"keiyaku"}, &out, &errOut)
		require.Equal(t, 2, code)
		require.Contains(t, errOut.String(), "USAGE")
	})

	t.Run("unknown command", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := Run([]string{"keiyaku", "frobnicate"}, &out, &errOut)
		require.Equal(t, 2, code)
		require.Contains(t, errOut.String(), "Unknown command")
	})

	t.Run("help", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := Run([]string{"keiyaku", "help"}, &out, &errOut)
		require.Equal(t, 0, code)
		require.Contains(t, out.String(), "audit")
		require.Contains(t, out.String(), "sync")
		require.Empty(t, errOut.String())
	})
}

func TestRequiredFlags(t *testing.T) {
	t.Run("validate needs a contract", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := Run([]string{"keiyaku", "validate"}, &out, &errOut)
		require.Equal(t, 2, code)
		require.Contains(t, errOut.String(), "--contract")
	})

	t.Run("sync needs a batch", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := Run([]string{"keiyaku", "sync"}, &out, &errOut)
		require.Equal(t, 2, code)
		require.Contains(t, errOut.String(), "--batch")
	})

	t.Run("restore needs an id", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := Run([]string{"keiyaku", "restore"}, &out, &errOut)
		require.Equal(t, 2, code)
		require.Contains(t, errOut.String(), "--id")
	})

	t.Run("sweep entity flags go together", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := Run([]string{"keiyaku", "sweep", "--entity", "contract"}, &out, &errOut)
		require.Equal(t, 2, code)
	})
}

func TestOverrideFlags(t *testing.T) {
	o := overrideFlags{}
	require.NoError(t, o.Set("W-001:hourly_rate=db_wins"))
	require.NoError(t, o.Set("W-002:status=source_wins"))
	require.Error(t, o.Set("no-equals-sign"))
	require.Equal(t, domain.StrategyDBWins, o["W-001:hourly_rate"])
	require.Equal(t, domain.StrategySourceWins, o["W-002:status"])
}

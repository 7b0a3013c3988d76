package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/podkeeper/cmd/podkeeper/handlers"
)

func TestEnsure(t *testing.T) {
	cmd := Ensure(&handlers.Options{})

	require.NotNil(t, cmd)
	assert.Equal(t, "ensure", cmd.Use)
	assert.Equal(t, "Make sure the pod exists, runs and is reachable", cmd.Short)
	assert.Contains(t, cmd.Long, "Ensure brings each configured pod to a ready state")
	assert.NotNil(t, cmd.RunE, "Ensure command should have RunE function")
}

func TestEnsure_Flags(t *testing.T) {
	cmd := Ensure(&handlers.Options{})

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "watch", shorthand: "w", defValue: "false"},
		{name: "interval", defValue: time.Minute.String()},
		{name: "metrics-addr", defValue: ""},
		{name: "parallel", defValue: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := cmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag, "%s flag should exist", tt.name)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.defValue, flag.DefValue)
		})
	}
}

func TestEnsure_ParseFlags(t *testing.T) {
	cmd := Ensure(&handlers.Options{})

	require.NoError(t, cmd.ParseFlags([]string{"--watch", "--interval", "5m", "--parallel", "2"}))

	interval, err := cmd.Flags().GetDuration("interval")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, interval)

	parallel, err := cmd.Flags().GetInt("parallel")
	require.NoError(t, err)
	assert.Equal(t, 2, parallel)
}

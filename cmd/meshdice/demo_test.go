package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshdice/consensus/log"
)

func TestResolvePresetKnownNetworks(t *testing.T) {
	for _, name := range []string{"mainnet", "testnet", "local", "single"} {
		cfg, err := resolvePreset(name)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())
	}
}

func TestResolvePresetUnknownNetwork(t *testing.T) {
	_, err := resolvePreset("not-a-real-network")
	require.Error(t, err)
}

func TestRunDemoEndToEnd(t *testing.T) {
	opts := demoOptions{network: "single", peers: 3, rounds: 1, logLevel: "info"}
	require.NoError(t, runDemo(opts, log.NewNoOp()))
}

func TestRunDemoRejectsTooFewPeers(t *testing.T) {
	opts := demoOptions{network: "local", peers: 1, rounds: 1, logLevel: "info"}
	require.Error(t, runDemo(opts, log.NewNoOp()))
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meshdice/consensus/config"
)

// demoOptions is what the demo subcommand's flags resolve to, after
// viper has merged flag and MESHDICE_* environment sources (spec §6.4 presets
// selected by name, never hand-built here).
type demoOptions struct {
	network  string
	peers    int
	rounds   int
	logLevel string
}

// bindDemoFlags wires cmd's flags through viper, so MESHDICE_NETWORK,
// MESHDICE_PEERS, etc. resolve the same options a bare flag would. No
// config file is read.
func bindDemoFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().String("network", "local", "parameter preset: mainnet, testnet, local, or single")
	cmd.Flags().Int("peers", 4, "number of simulated participants")
	cmd.Flags().Int("rounds", 1, "number of dice rounds to play")
	cmd.Flags().String("log-level", "info", "zap log level: debug, info, warn, error")

	v.SetEnvPrefix("meshdice")
	v.AutomaticEnv()
	_ = v.BindPFlag("network", cmd.Flags().Lookup("network"))
	_ = v.BindPFlag("peers", cmd.Flags().Lookup("peers"))
	_ = v.BindPFlag("rounds", cmd.Flags().Lookup("rounds"))
	_ = v.BindPFlag("log-level", cmd.Flags().Lookup("log-level"))
}

func resolveDemoOptions(v *viper.Viper) demoOptions {
	return demoOptions{
		network:  v.GetString("network"),
		peers:    v.GetInt("peers"),
		rounds:   v.GetInt("rounds"),
		logLevel: v.GetString("log-level"),
	}
}

// resolvePreset maps a --network name to the matching config.ConsensusConfig
// preset constructor (config/config.go's Mainnet/Testnet/Local/SingleGame
// presets).
func resolvePreset(network string) (config.ConsensusConfig, error) {
	switch network {
	case "mainnet":
		return config.MainnetParams(), nil
	case "testnet":
		return config.TestnetParams(), nil
	case "local":
		return config.LocalParams(), nil
	case "single":
		return config.SingleGameParams(), nil
	default:
		return config.ConsensusConfig{}, fmt.Errorf("unknown network preset %q (want mainnet, testnet, local, or single)", network)
	}
}

// Command meshdice is a demonstration CLI: it wires engine.Engine up to
// an in-process transport, Ed25519 identities, and the system clock to
// run a local N-peer dice game end to end, the way a real host process
// would drive the core facade.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meshdice/consensus/log"
)

var rootCmd = &cobra.Command{
	Use:   "meshdice",
	Short: "Peer-to-peer dice consensus engine demo and tooling",
	Long: `meshdice drives the consensus engine's replicated dice game core
(package engine) to demonstrate commit-reveal randomness and BFT
proposal quorum across a local simulated peer set.`,
}

func main() {
	v := viper.New()
	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a local multi-peer dice game over an in-process transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := resolveDemoOptions(v)
			logger, err := newZapLogger(opts.logLevel)
			if err != nil {
				return err
			}
			return runDemo(opts, logger)
		},
	}
	bindDemoFlags(demoCmd, v)
	rootCmd.AddCommand(demoCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newZapLogger builds a development zap logger at the requested level,
// wrapped as a log.Logger (log/zap.go's documented entry point for CLI
// callers).
func newZapLogger(level string) (log.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.NewZap(zl), nil
}

// Package config carries the tunable defaults and environment presets
// for a consensus engine instance, following the teacher's
// config/parameters.go Mainnet()/Testnet()/Local() preset pattern.
package config

import (
	"github.com/meshdice/consensus/replication"
	"github.com/meshdice/consensus/round"
	"github.com/meshdice/consensus/types"
)

// ConsensusConfig is the full set of tunables from spec §6.4, plus the
// resource ceilings (§5's backpressure, §7's timestamp drift) the
// distilled spec names without grouping under one config type.
type ConsensusConfig struct {
	MinConfirmations      int
	MaxByzantineRatio     float64
	ConsensusTimeout      uint64
	CommitRevealTimeout   uint64
	ForkResolutionTimeout uint64
	MaxPlayersPerGame     int
	MaxActiveRounds       int
	MerkleCacheSize       int
	EntropyReseedInterval uint64
	MaxTimestampDrift     uint64
	MaxBet                types.CrapTokens
	FramesPerTick         int
}

// MainnetParams matches spec.md §6.4's defaults exactly: the
// production-safe configuration.
func MainnetParams() ConsensusConfig {
	return ConsensusConfig{
		MinConfirmations:      2,
		MaxByzantineRatio:     0.33,
		ConsensusTimeout:      30,
		CommitRevealTimeout:   round.DefaultCommitRevealTimeout,
		ForkResolutionTimeout: 60,
		MaxPlayersPerGame:     20,
		MaxActiveRounds:       10,
		MerkleCacheSize:       100,
		EntropyReseedInterval: 300,
		MaxTimestampDrift:     300,
		MaxBet:                1_000_000,
		FramesPerTick:         64,
	}
}

// TestnetParams shortens every timeout for fast-iterating integration
// tests while keeping the same BFT-safe quorum math.
func TestnetParams() ConsensusConfig {
	p := MainnetParams()
	p.ConsensusTimeout = 5
	p.CommitRevealTimeout = 3
	p.ForkResolutionTimeout = 10
	p.EntropyReseedInterval = 30
	p.MaxTimestampDrift = 30
	return p
}

// LocalParams is for a single-process multi-peer demo (cmd/meshdice):
// small player cap, aggressive timeouts, no meaningful network drift.
func LocalParams() ConsensusConfig {
	p := TestnetParams()
	p.MaxPlayersPerGame = 8
	p.MaxActiveRounds = 2
	p.MaxTimestampDrift = 5
	return p
}

// SingleGameParams is LocalParams further bounded to exactly one active
// round, for unit tests that only ever drive one game/round at a time.
func SingleGameParams() ConsensusConfig {
	p := LocalParams()
	p.MaxActiveRounds = 1
	return p
}

// ReplicationConfig projects the subset of fields replication.Ledger
// needs into its own Config type.
func (c ConsensusConfig) ReplicationConfig() replication.Config {
	return replication.Config{
		MinConfirmations:      c.MinConfirmations,
		MaxByzantineRatio:     c.MaxByzantineRatio,
		ConsensusTimeout:      c.ConsensusTimeout,
		ForkResolutionTimeout: c.ForkResolutionTimeout,
		MaxBet:                c.MaxBet,
	}
}

// Validate enforces the defaults' own internal consistency: every
// timeout positive, ratios in range, caps positive.
func (c ConsensusConfig) Validate() error {
	switch {
	case c.MaxByzantineRatio <= 0 || c.MaxByzantineRatio >= 1:
		return types.NewError(types.KindInvalidInput, "max_byzantine_ratio must be in (0,1)", nil)
	case c.ConsensusTimeout == 0 || c.CommitRevealTimeout == 0 || c.ForkResolutionTimeout == 0:
		return types.NewError(types.KindInvalidInput, "timeouts must be > 0", nil)
	case c.MaxPlayersPerGame <= 0 || c.MaxActiveRounds <= 0:
		return types.NewError(types.KindInvalidInput, "player/round caps must be > 0", nil)
	case c.FramesPerTick <= 0:
		return types.NewError(types.KindInvalidInput, "frames_per_tick must be > 0", nil)
	}
	return nil
}

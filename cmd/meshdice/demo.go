package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meshdice/consensus/crypto"
	"github.com/meshdice/consensus/engine"
	"github.com/meshdice/consensus/log"
	"github.com/meshdice/consensus/types"
)

// buildGenesis seeds a fresh ConsensusState: every player at an equal
// starting balance, table at come-out, sequence_number 0.
func buildGenesis(players []types.PeerId) *types.ConsensusState {
	gs := types.NewGameState(players)
	bal := make(types.Balances, len(players))
	for _, p := range players {
		bal[p] = 10_000
	}
	state := &types.ConsensusState{GameState: gs, Balances: bal}
	state.StateHash = crypto.Hash(state.CanonicalBytes())
	return state
}

// awaitFinalized polls every engine's current sequence_number until all
// of them reach target or the deadline passes. The demo's transport is
// asynchronous (bus.run dispatches off a channel on its own goroutine),
// so Propose/StartRound return before quorum is actually reached.
func awaitFinalized(engines map[types.PeerId]*engine.Engine, target uint64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		allCaughtUp := true
		for _, e := range engines {
			if e.CurrentState().SequenceNumber < target {
				allCaughtUp = false
				break
			}
		}
		if allCaughtUp {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func awaitRoundStatus(engines map[types.PeerId]*engine.Engine, roundID [16]byte, want types.RoundStatus, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		allThere := true
		for _, e := range engines {
			status, ok := e.RoundStatus(roundID)
			if !ok || status != want {
				allThere = false
				break
			}
		}
		if allThere {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// runDemo builds an N-peer cluster over an in-process bus and plays
// opts.rounds dice rounds, printing the resulting balances. It
// demonstrates engine.Engine end-to-end exactly the way a host process
// would drive it: Propose/StartRound calls queue wire frames, a
// transport delivers them asynchronously, and OnFrame/Tick advance
// state as frames and time arrive.
func runDemo(opts demoOptions, logger log.Logger) error {
	cfg, err := resolvePreset(opts.network)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.peers < 2 || opts.peers > cfg.MaxPlayersPerGame {
		return fmt.Errorf("peers must be in [2, %d] for network %q", cfg.MaxPlayersPerGame, opts.network)
	}

	kps := make([]*crypto.KeyPair, opts.peers)
	ids := make([]types.PeerId, opts.peers)
	for i := range kps {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			return err
		}
		kps[i] = kp
		ids[i] = kp.LocalId()
	}
	genesis := buildGenesis(ids)

	b := newBus(logger)
	engines := make(map[types.PeerId]*engine.Engine, opts.peers)
	for i, id := range ids {
		transport := &peerTransport{self: id, peers: ids, b: b}
		e, err := engine.New(ids, genesis, cfg, transport, kps[i], systemClock{}, logger.With("peer", id), prometheus.NewRegistry())
		if err != nil {
			return err
		}
		engines[id] = e
		b.register(id, e)
	}
	go b.run()
	defer b.stop()

	fmt.Printf("meshdice demo: %d peers, %q preset, %d round(s)\n", opts.peers, opts.network, opts.rounds)
	fmt.Printf("genesis state_hash %s\n", genesis.StateHash)

	dealer := ids[0]
	if _, err := engines[dealer].Propose(types.GameOperation{
		Kind: types.OpPlaceBet, Bettor: dealer, Bet: types.PassLine, Amount: 100,
	}); err != nil {
		return fmt.Errorf("place bet: %w", err)
	}
	if !awaitFinalized(engines, 1, 2*time.Second) {
		return fmt.Errorf("bet proposal did not reach quorum in time")
	}
	fmt.Println("pass-line bet placed and finalized across all peers")

	for round := 0; round < opts.rounds; round++ {
		id := uuid.New()
		var roundID [16]byte
		copy(roundID[:], id[:])
		for _, id := range ids {
			if err := engines[id].StartRound(roundID, ids); err != nil {
				return fmt.Errorf("start round: %w", err)
			}
		}
		if !awaitRoundStatus(engines, roundID, types.RoundCompleted, 2*time.Second) {
			return fmt.Errorf("round %s did not complete in time", roundID)
		}
		if !awaitFinalized(engines, uint64(round+2), 2*time.Second) {
			logger.Warn("roll finalized on some replicas but not all within the demo's wait window", "round", round)
		}

		state := engines[dealer].CurrentState()
		fmt.Printf("round %d complete: state_hash=%s phase=%v sequence=%d\n",
			round, state.StateHash, state.GameState.Phase.Kind, state.SequenceNumber)
	}

	fmt.Println("final balances:")
	for _, id := range ids {
		fmt.Printf("  %s: %d\n", id, engines[dealer].CurrentState().Balances[id])
	}
	return nil
}

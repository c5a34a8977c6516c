package replication

import "github.com/meshdice/consensus/types"

// OpenForkCount reports how many forks are still unresolved.
func (l *Ledger) OpenForkCount() int { return len(l.forks) }

func (l *Ledger) isAncestor(hash types.Hash32) bool {
	for _, h := range l.chain {
		if h == hash {
			return true
		}
	}
	return false
}

// HandleForkingProposal records a proposal whose previous_state_hash
// isn't the current tip but is a known ancestor, opening a Fork entry
// keyed by that ancestor if one doesn't already exist (spec §4.8 "fork
// handling"). Returns ErrStaleState if previous_state_hash isn't even
// an ancestor.
func (l *Ledger) HandleForkingProposal(p *types.Proposal, now uint64) (*types.Fork, error) {
	if !l.isAncestor(p.PreviousStateHash) {
		return nil, types.ErrStaleState
	}
	fork, ok := l.forks[p.PreviousStateHash]
	if !ok {
		fork = types.NewFork(p.PreviousStateHash, now+l.Config.ForkResolutionTimeout)
		l.forks[p.PreviousStateHash] = fork
	}
	fork.Children[p.ProposedState.StateHash] = p.ProposedState
	fork.Support(p.ProposedState.StateHash, p.Proposer)
	return fork, nil
}

// ResolveForks checks every open fork for a branch reaching quorum, or
// for expiry (in which case the branch with the most supporters wins;
// ties go to the lowest state_hash). A resolved fork is removed even
// when adoptBranch declines its winner, and l.State then stays as it
// was. An adopted branch becomes canonical and re-synced local state is
// exactly l.State after this call, per spec §4.8/§7.
func (l *Ledger) ResolveForks(now uint64) (resolved int) {
	required := RequiredFor(len(l.Participants), l.Config.MinConfirmations)
	for parent, fork := range l.forks {
		winner, won := fork.WinningBranch(required)
		if !won && now < fork.ResolutionDeadln {
			continue
		}
		if !won {
			winner, won = fork.MostSupported()
		}
		adopted := won && l.adoptBranch(fork, winner)
		delete(l.forks, parent)
		if adopted {
			l.Metrics.ForksResolved.Inc()
			resolved++
		}
	}
	return resolved
}

// adoptBranch makes branch canonical, but only if its recorded
// ConsensusState is fully populated. A branch entered via a remote
// Proposal frame carries only a state_hash (see DecodedProposal): the
// full game_state/balances graph is never shipped over the wire, so a
// winning remote branch cannot be adopted directly — it requires a
// follow-up StateSync/FullState fetch (spec §6.2's reserved msg_types)
// that this engine iteration does not yet implement. Declining to
// adopt keeps the last-known-good state standing rather than installing
// a ConsensusState with a nil GameState, which would panic the next
// time anything clones or serializes it.
func (l *Ledger) adoptBranch(fork *types.Fork, branch types.Hash32) bool {
	state, ok := fork.Children[branch]
	if !ok || state.GameState == nil || state.Balances == nil {
		return false
	}
	state.IsFinalized = true
	l.State = state
	l.chain = append(l.chain, state.StateHash)
	return true
}

package replication

import "github.com/meshdice/consensus/types"

// OpenDisputeCount reports how many disputes are still unresolved.
func (l *Ledger) OpenDisputeCount() int { return len(l.disputes) }

// RaiseDispute opens a new Dispute against a (possibly already
// finalized) disputed state hash, with its own deadline independent of
// any proposal (spec §4.8 "dispute flow").
func (l *Ledger) RaiseDispute(id [32]byte, disputer types.PeerId, disputedState types.Hash32, claim types.DisputeClaim, evidence []types.Evidence, now uint64) *types.Dispute {
	d := types.NewDispute(id, disputer, disputedState, claim, evidence, now+l.Config.ConsensusTimeout)
	l.disputes[id] = d
	return d
}

// RecordDisputeVote tallies peer's Uphold/Dismiss/Abstain vote.
// Resolution triggers at ⌊2N/3⌋+1 uphold or dismiss votes; an upheld
// dispute's corrective action is left to the caller (engine.Engine),
// since the action depends on claim and is applied as a direct state
// mutation outside the proposal/vote-quorum path, not as a new
// GameOperation (see DESIGN.md: ResolvePhase scoping).
func (l *Ledger) RecordDisputeVote(id [32]byte, peer types.PeerId, decision types.DisputeVoteDecision) (resolved bool, upheld bool, err error) {
	d, ok := l.disputes[id]
	if !ok {
		return false, false, types.NewError(types.KindValidationError, "no such dispute", nil)
	}
	if d.Resolved {
		return true, d.Upheld, nil
	}
	if _, voted := d.Votes[peer]; voted {
		return false, false, types.ErrDuplicateVote
	}
	d.Votes[peer] = decision

	required := RequiredFor(len(l.Participants), l.Config.MinConfirmations)
	uphold, dismiss := 0, 0
	for _, v := range d.Votes {
		switch v {
		case types.Uphold:
			uphold++
		case types.Dismiss:
			dismiss++
		}
	}
	switch {
	case uphold >= required:
		d.Resolved, d.Upheld = true, true
	case dismiss >= required:
		d.Resolved, d.Upheld = true, false
	default:
		return false, false, nil
	}
	delete(l.disputes, id)
	l.Metrics.DisputesResolved.Inc()
	return true, d.Upheld, nil
}

// SweepDisputeTimeouts drops unresolved disputes past their deadline,
// counting them as dismissed (no corrective action taken).
func (l *Ledger) SweepDisputeTimeouts(now uint64) (dropped int) {
	for id, d := range l.disputes {
		if now >= d.Deadline {
			delete(l.disputes, id)
			dropped++
		}
	}
	return dropped
}

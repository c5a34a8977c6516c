package wire

import (
	"encoding/binary"

	"github.com/meshdice/consensus/types"
)

// EncodeCommit serializes a RandomnessCommit as TLV fields, payload for
// an Envelope with MsgType MsgCommit.
func EncodeCommit(c types.RandomnessCommit) []byte {
	return EncodeTLVs([]TLV{
		{Type: TLVPeerID, Value: c.Peer[:]},
		{Type: TLVRoundID, Value: c.RoundId[:]},
		{Type: TLVHash, Value: c.Commitment[:]},
		{Type: TLVSignature, Value: c.Signature[:]},
	})
}

// DecodeCommit parses a MsgCommit payload.
func DecodeCommit(buf []byte) (types.RandomnessCommit, error) {
	fields, err := ParseTLVs(buf, DefaultParseLimits)
	if err != nil {
		return types.RandomnessCommit{}, err
	}
	var c types.RandomnessCommit
	if v := Find(fields, TLVPeerID); v != nil {
		copy(c.Peer[:], v)
	} else {
		return types.RandomnessCommit{}, types.NewError(types.KindInvalidData, "commit missing peer_id", nil)
	}
	if v := Find(fields, TLVRoundID); v != nil {
		copy(c.RoundId[:], v)
	} else {
		return types.RandomnessCommit{}, types.NewError(types.KindInvalidData, "commit missing round_id", nil)
	}
	if v := Find(fields, TLVHash); v != nil {
		copy(c.Commitment[:], v)
	} else {
		return types.RandomnessCommit{}, types.NewError(types.KindInvalidData, "commit missing commitment", nil)
	}
	if v := Find(fields, TLVSignature); v != nil {
		copy(c.Signature[:], v)
	} else {
		return types.RandomnessCommit{}, types.NewError(types.KindInvalidData, "commit missing signature", nil)
	}
	return c, nil
}

// EncodeReveal serializes a RandomnessReveal, payload for MsgReveal.
func EncodeReveal(r types.RandomnessReveal) []byte {
	return EncodeTLVs([]TLV{
		{Type: TLVPeerID, Value: r.Peer[:]},
		{Type: TLVRoundID, Value: r.RoundId[:]},
		{Type: TLVHash, Value: r.Nonce[:]}, // nonce is 32 bytes, same fixed size as a hash
		{Type: TLVSignature, Value: r.Signature[:]},
	})
}

// DecodeReveal parses a MsgReveal payload.
func DecodeReveal(buf []byte) (types.RandomnessReveal, error) {
	fields, err := ParseTLVs(buf, DefaultParseLimits)
	if err != nil {
		return types.RandomnessReveal{}, err
	}
	var r types.RandomnessReveal
	if v := Find(fields, TLVPeerID); v != nil {
		copy(r.Peer[:], v)
	} else {
		return types.RandomnessReveal{}, types.NewError(types.KindInvalidData, "reveal missing peer_id", nil)
	}
	if v := Find(fields, TLVRoundID); v != nil {
		copy(r.RoundId[:], v)
	} else {
		return types.RandomnessReveal{}, types.NewError(types.KindInvalidData, "reveal missing round_id", nil)
	}
	if v := Find(fields, TLVHash); v != nil {
		copy(r.Nonce[:], v)
	} else {
		return types.RandomnessReveal{}, types.NewError(types.KindInvalidData, "reveal missing nonce", nil)
	}
	if v := Find(fields, TLVSignature); v != nil {
		copy(r.Signature[:], v)
	} else {
		return types.RandomnessReveal{}, types.NewError(types.KindInvalidData, "reveal missing signature", nil)
	}
	return r, nil
}

// EncodeVote serializes a proposal vote, payload for MsgVote.
func EncodeVote(proposalId [32]byte, peer types.PeerId, decision types.VoteDecision) []byte {
	return EncodeTLVs([]TLV{
		{Type: TLVMsgID, Value: proposalId[:]},
		{Type: TLVPeerID, Value: peer[:]},
		{Type: TLVDecision, Value: []byte{byte(decision)}},
	})
}

// DecodeVote parses a MsgVote payload.
func DecodeVote(buf []byte) (proposalId [32]byte, peer types.PeerId, decision types.VoteDecision, err error) {
	fields, err := ParseTLVs(buf, DefaultParseLimits)
	if err != nil {
		return proposalId, peer, 0, err
	}
	v := Find(fields, TLVMsgID)
	if v == nil {
		return proposalId, peer, 0, types.NewError(types.KindInvalidData, "vote missing msg_id", nil)
	}
	copy(proposalId[:], v)
	p := Find(fields, TLVPeerID)
	if p == nil {
		return proposalId, peer, 0, types.NewError(types.KindInvalidData, "vote missing peer_id", nil)
	}
	copy(peer[:], p)
	d := Find(fields, TLVDecision)
	if d == nil {
		return proposalId, peer, 0, types.NewError(types.KindInvalidData, "vote missing decision", nil)
	}
	return proposalId, peer, types.VoteDecision(d[0]), nil
}

// EncodeGameOperation serializes the closed operation union to a flat
// buffer: one kind byte followed by kind-specific fields.
func EncodeGameOperation(op types.GameOperation) []byte {
	buf := []byte{byte(op.Kind)}
	switch op.Kind {
	case types.OpPlaceBet:
		buf = append(buf, op.Bettor[:]...)
		buf = append(buf, byte(op.Bet))
		buf = PutUvarint(buf, uint64(op.Amount))

	case types.OpCommitRandomness:
		buf = append(buf, op.RoundId[:]...)
		buf = append(buf, op.Commit[:]...)
		buf = append(buf, op.Committer[:]...)

	case types.OpRevealRandomness:
		buf = append(buf, op.RoundId[:]...)
		buf = append(buf, op.Nonce[:]...)
		buf = append(buf, op.Committer[:]...)

	case types.OpProcessRoll:
		buf = append(buf, op.RoundId[:]...)
		buf = append(buf, op.Dice.Die1, op.Dice.Die2)
		buf = PutUvarint(buf, uint64(len(op.EntropyProof)))
		for _, e := range op.EntropyProof {
			buf = append(buf, e.Peer[:]...)
			buf = append(buf, e.Commitment[:]...)
			buf = PutUvarint(buf, uint64(len(e.Siblings)))
			for _, s := range e.Siblings {
				buf = append(buf, s[:]...)
			}
			var dirBuf [8]byte
			binary.BigEndian.PutUint64(dirBuf[:], e.Directions)
			buf = append(buf, dirBuf[:]...)
			buf = append(buf, e.PathLen)
		}

	case types.OpResolvePhase:
		// no payload fields beyond the kind byte

	case types.OpUpdateBalances:
		buf = PutUvarint(buf, uint64(len(op.Deltas)))
		peers := make([]types.PeerId, 0, len(op.Deltas))
		for p := range op.Deltas {
			peers = append(peers, p)
		}
		sortPeers(peers)
		for _, p := range peers {
			buf = append(buf, p[:]...)
			buf = PutUvarint(buf, ZigZagEncode(op.Deltas[p]))
		}
	}
	return buf
}

func sortPeers(peers []types.PeerId) {
	for i := 1; i < len(peers); i++ {
		for j := i; j > 0 && peers[j].Less(peers[j-1]); j-- {
			peers[j], peers[j-1] = peers[j-1], peers[j]
		}
	}
}

// DecodeGameOperation parses a buffer produced by EncodeGameOperation.
func DecodeGameOperation(buf []byte) (types.GameOperation, error) {
	if len(buf) < 1 {
		return types.GameOperation{}, types.NewError(types.KindInvalidData, "empty operation buffer", nil)
	}
	op := types.GameOperation{Kind: types.OperationKind(buf[0])}
	buf = buf[1:]

	need := func(n int) error {
		if len(buf) < n {
			return types.NewError(types.KindInvalidData, "truncated operation buffer", nil)
		}
		return nil
	}

	switch op.Kind {
	case types.OpPlaceBet:
		if err := need(32 + 1); err != nil {
			return types.GameOperation{}, err
		}
		copy(op.Bettor[:], buf[:32])
		op.Bet = types.BetType(buf[32])
		buf = buf[33:]
		amt, _, err := ReadUvarint(buf)
		if err != nil {
			return types.GameOperation{}, err
		}
		op.Amount = types.CrapTokens(amt)

	case types.OpCommitRandomness:
		if err := need(16 + 32 + 32); err != nil {
			return types.GameOperation{}, err
		}
		copy(op.RoundId[:], buf[:16])
		copy(op.Commit[:], buf[16:48])
		copy(op.Committer[:], buf[48:80])

	case types.OpRevealRandomness:
		if err := need(16 + 32 + 32); err != nil {
			return types.GameOperation{}, err
		}
		copy(op.RoundId[:], buf[:16])
		copy(op.Nonce[:], buf[16:48])
		copy(op.Committer[:], buf[48:80])

	case types.OpProcessRoll:
		if err := need(16 + 2); err != nil {
			return types.GameOperation{}, err
		}
		copy(op.RoundId[:], buf[:16])
		op.Dice.Die1, op.Dice.Die2 = buf[16], buf[17]
		buf = buf[18:]
		count, n, err := ReadUvarint(buf)
		if err != nil {
			return types.GameOperation{}, err
		}
		buf = buf[n:]
		op.EntropyProof = make([]types.EntropyProofEntry, count)
		for i := uint64(0); i < count; i++ {
			if err := need2(buf, 64); err != nil {
				return types.GameOperation{}, err
			}
			var e types.EntropyProofEntry
			copy(e.Peer[:], buf[:32])
			copy(e.Commitment[:], buf[32:64])
			buf = buf[64:]
			sibCount, n, err := ReadUvarint(buf)
			if err != nil {
				return types.GameOperation{}, err
			}
			buf = buf[n:]
			e.Siblings = make([]types.Hash32, sibCount)
			for j := uint64(0); j < sibCount; j++ {
				if err := need2(buf, 32); err != nil {
					return types.GameOperation{}, err
				}
				copy(e.Siblings[j][:], buf[:32])
				buf = buf[32:]
			}
			if err := need2(buf, 9); err != nil {
				return types.GameOperation{}, err
			}
			e.Directions = binary.BigEndian.Uint64(buf[:8])
			e.PathLen = buf[8]
			buf = buf[9:]
			op.EntropyProof[i] = e
		}

	case types.OpResolvePhase:
		// no fields

	case types.OpUpdateBalances:
		count, n, err := ReadUvarint(buf)
		if err != nil {
			return types.GameOperation{}, err
		}
		buf = buf[n:]
		op.Deltas = make(map[types.PeerId]int64, count)
		for i := uint64(0); i < count; i++ {
			if err := need2(buf, 32); err != nil {
				return types.GameOperation{}, err
			}
			var p types.PeerId
			copy(p[:], buf[:32])
			buf = buf[32:]
			zz, n, err := ReadUvarint(buf)
			if err != nil {
				return types.GameOperation{}, err
			}
			buf = buf[n:]
			op.Deltas[p] = ZigZagDecode(zz)
		}

	default:
		return types.GameOperation{}, types.ErrUnknownMsgType
	}
	return op, nil
}

func need2(buf []byte, n int) error {
	if len(buf) < n {
		return types.NewError(types.KindInvalidData, "truncated operation buffer", nil)
	}
	return nil
}

// EncodeProposal serializes a Proposal for MsgProposal. Only the
// proposed state's hash travels on the wire, not the full
// ConsensusState: a receiving peer recomputes the transition itself
// from Operation and compares hashes (replication.Ledger.Validate),
// so shipping the full game_state/balances graph would be redundant.
func EncodeProposal(p *types.Proposal) []byte {
	opBytes := EncodeGameOperation(p.Operation)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], p.ProposedState.SequenceNumber)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], p.Timestamp)

	return EncodeTLVs([]TLV{
		{Type: TLVMsgID, Value: p.Id[:]},
		{Type: TLVPeerID, Value: p.Proposer[:]},
		{Type: TLVPrevStateHash, Value: p.PreviousStateHash[:]},
		{Type: TLVProposedStateHash, Value: p.ProposedState.StateHash[:]},
		{Type: TLVSequenceNumber, Value: seq[:]},
		{Type: TLVTimestamp, Value: ts[:]},
		{Type: TLVSignature, Value: p.Signature[:]},
		{Type: TLVPayload, Value: opBytes},
	})
}

// DecodedProposal is what a receiving peer can recover from the wire
// without re-deriving the full ConsensusState: the peer reconstructs
// ProposedState itself via Ledger.Validate, using ProposedStateHash
// only as the value to compare against.
type DecodedProposal struct {
	Id                 [32]byte
	Proposer           types.PeerId
	PreviousStateHash  types.Hash32
	ProposedStateHash  types.Hash32
	ProposedSequenceNo uint64
	Timestamp          uint64
	Signature          types.Sig64
	Operation          types.GameOperation
}

// DecodeProposal parses a MsgProposal payload.
func DecodeProposal(buf []byte) (DecodedProposal, error) {
	fields, err := ParseTLVs(buf, DefaultParseLimits)
	if err != nil {
		return DecodedProposal{}, err
	}
	var d DecodedProposal
	get := func(t TLVType, name string) ([]byte, error) {
		v := Find(fields, t)
		if v == nil {
			return nil, types.NewError(types.KindInvalidData, "proposal missing "+name, nil)
		}
		return v, nil
	}
	if v, err := get(TLVMsgID, "msg_id"); err != nil {
		return DecodedProposal{}, err
	} else {
		copy(d.Id[:], v)
	}
	if v, err := get(TLVPeerID, "peer_id"); err != nil {
		return DecodedProposal{}, err
	} else {
		copy(d.Proposer[:], v)
	}
	if v, err := get(TLVPrevStateHash, "prev_state_hash"); err != nil {
		return DecodedProposal{}, err
	} else {
		copy(d.PreviousStateHash[:], v)
	}
	if v, err := get(TLVProposedStateHash, "proposed_state_hash"); err != nil {
		return DecodedProposal{}, err
	} else {
		copy(d.ProposedStateHash[:], v)
	}
	if v, err := get(TLVSequenceNumber, "sequence_number"); err != nil {
		return DecodedProposal{}, err
	} else if len(v) == 8 {
		d.ProposedSequenceNo = binary.BigEndian.Uint64(v)
	}
	if v, err := get(TLVTimestamp, "timestamp"); err != nil {
		return DecodedProposal{}, err
	} else if len(v) == 8 {
		d.Timestamp = binary.BigEndian.Uint64(v)
	}
	if v, err := get(TLVSignature, "signature"); err != nil {
		return DecodedProposal{}, err
	} else {
		copy(d.Signature[:], v)
	}
	opBytes, err := get(TLVPayload, "operation")
	if err != nil {
		return DecodedProposal{}, err
	}
	d.Operation, err = DecodeGameOperation(opBytes)
	if err != nil {
		return DecodedProposal{}, err
	}
	return d, nil
}

// EncodeDispute serializes a Dispute for MsgDispute.
func EncodeDispute(d *types.Dispute) []byte {
	var evidence []byte
	evidence = PutUvarint(evidence, uint64(len(d.Evidence)))
	for _, e := range d.Evidence {
		evidence = PutUvarint(evidence, uint64(len(e.Kind)))
		evidence = append(evidence, e.Kind...)
		evidence = PutUvarint(evidence, uint64(len(e.Data)))
		evidence = append(evidence, e.Data...)
	}
	return EncodeTLVs([]TLV{
		{Type: TLVMsgID, Value: d.Id[:]},
		{Type: TLVPeerID, Value: d.Disputer[:]},
		{Type: TLVProposedStateHash, Value: d.DisputedState[:]},
		{Type: TLVClaim, Value: []byte{byte(d.Claim)}},
		{Type: TLVEvidence, Value: evidence},
	})
}

// DecodeDispute parses a MsgDispute payload.
func DecodeDispute(buf []byte) (id [32]byte, disputer types.PeerId, disputedState types.Hash32, claim types.DisputeClaim, evidence []types.Evidence, err error) {
	fields, err := ParseTLVs(buf, DefaultParseLimits)
	if err != nil {
		return id, disputer, disputedState, 0, nil, err
	}
	if v := Find(fields, TLVMsgID); v != nil {
		copy(id[:], v)
	}
	if v := Find(fields, TLVPeerID); v != nil {
		copy(disputer[:], v)
	}
	if v := Find(fields, TLVProposedStateHash); v != nil {
		copy(disputedState[:], v)
	}
	if v := Find(fields, TLVClaim); v != nil {
		claim = types.DisputeClaim(v[0])
	}
	evBuf := Find(fields, TLVEvidence)
	if evBuf != nil {
		count, n, err := ReadUvarint(evBuf)
		if err != nil {
			return id, disputer, disputedState, 0, nil, err
		}
		evBuf = evBuf[n:]
		evidence = make([]types.Evidence, count)
		for i := uint64(0); i < count; i++ {
			klen, n, err := ReadUvarint(evBuf)
			if err != nil {
				return id, disputer, disputedState, 0, nil, err
			}
			evBuf = evBuf[n:]
			if err := need2(evBuf, int(klen)); err != nil {
				return id, disputer, disputedState, 0, nil, err
			}
			kind := string(evBuf[:klen])
			evBuf = evBuf[klen:]
			dlen, n, err := ReadUvarint(evBuf)
			if err != nil {
				return id, disputer, disputedState, 0, nil, err
			}
			evBuf = evBuf[n:]
			if err := need2(evBuf, int(dlen)); err != nil {
				return id, disputer, disputedState, 0, nil, err
			}
			data := append([]byte(nil), evBuf[:dlen]...)
			evBuf = evBuf[dlen:]
			evidence[i] = types.Evidence{Kind: kind, Data: data}
		}
	}
	return id, disputer, disputedState, claim, evidence, nil
}

// EncodeDisputeVote serializes a dispute vote for MsgDisputeVote.
func EncodeDisputeVote(disputeId [32]byte, peer types.PeerId, decision types.DisputeVoteDecision) []byte {
	return EncodeTLVs([]TLV{
		{Type: TLVMsgID, Value: disputeId[:]},
		{Type: TLVPeerID, Value: peer[:]},
		{Type: TLVDecision, Value: []byte{byte(decision)}},
	})
}

// DecodeDisputeVote parses a MsgDisputeVote payload.
func DecodeDisputeVote(buf []byte) (disputeId [32]byte, peer types.PeerId, decision types.DisputeVoteDecision, err error) {
	fields, err := ParseTLVs(buf, DefaultParseLimits)
	if err != nil {
		return disputeId, peer, 0, err
	}
	v := Find(fields, TLVMsgID)
	if v == nil {
		return disputeId, peer, 0, types.NewError(types.KindInvalidData, "dispute vote missing msg_id", nil)
	}
	copy(disputeId[:], v)
	p := Find(fields, TLVPeerID)
	if p == nil {
		return disputeId, peer, 0, types.NewError(types.KindInvalidData, "dispute vote missing peer_id", nil)
	}
	copy(peer[:], p)
	d := Find(fields, TLVDecision)
	if d == nil {
		return disputeId, peer, 0, types.NewError(types.KindInvalidData, "dispute vote missing decision", nil)
	}
	return disputeId, peer, types.DisputeVoteDecision(d[0]), nil
}

package types

import "sort"

// BetType enumerates the normative betting-rule table (spec §6.1). The
// numeric value is also the on-wire bet_type (packed into 6 bits by the
// compact codec), so it must stay within 0..63.
type BetType uint8

const (
	PassLine BetType = iota
	DontPass
	Come
	DontCome
	Field
	Place4
	Place5
	Place6
	Place8
	Place9
	Place10
	Hard4
	Hard6
	Hard8
	Hard10
	Any7
	AnyCraps
	Craps2
	Craps3
	Yo11
	Craps12
	Big6
	Big8
	Buy4
	Buy5
	Buy6
	Buy8
	Buy9
	Buy10
	Lay4
	Lay5
	Lay6
	Lay8
	Lay9
	Lay10
	numBetTypes
)

// Valid reports whether b is a known bet type.
func (b BetType) Valid() bool { return b < numBetTypes }

// PhaseKind is the coarse game phase.
type PhaseKind uint8

const (
	ComeOut PhaseKind = iota
	PointPhase
	Ended
)

// Phase is the current phase plus, for PointPhase, the established point.
type Phase struct {
	Kind  PhaseKind
	Point uint8 // valid only when Kind == PointPhase; one of 4,5,6,8,9,10
}

// BetKey identifies one player's stake on one bet type.
type BetKey struct {
	Peer PeerId
	Bet  BetType
}

// Less gives BetKey the canonical (PeerId, then BetType) ordering that
// the betting-rules determinism rule requires for map iteration and
// output ordering.
func (k BetKey) Less(o BetKey) bool {
	if k.Peer != o.Peer {
		return k.Peer.Less(o.Peer)
	}
	return k.Bet < o.Bet
}

// GameState is the deterministic function of the ordered operations
// applied to a game: active bets, travelling come/don't-come points,
// and roll history.
type GameState struct {
	Phase          Phase
	ActiveBets     map[BetKey]CrapTokens
	ComePoints     map[PeerId]map[uint8]CrapTokens
	DontComePoints map[PeerId]map[uint8]CrapTokens
	History        []DiceRoll
	RollCount      uint16
	HotStreak      uint8
	Players        []PeerId
}

// NewGameState returns an empty ComeOut-phase state for the given
// participant set.
func NewGameState(players []PeerId) *GameState {
	ps := make([]PeerId, len(players))
	copy(ps, players)
	sort.Slice(ps, func(i, j int) bool { return ps[i].Less(ps[j]) })
	return &GameState{
		Phase:          Phase{Kind: ComeOut},
		ActiveBets:     make(map[BetKey]CrapTokens),
		ComePoints:     make(map[PeerId]map[uint8]CrapTokens),
		DontComePoints: make(map[PeerId]map[uint8]CrapTokens),
		Players:        ps,
	}
}

// Clone returns a deep copy so a proposer can mutate a working copy
// without disturbing the finalized state until the proposal commits.
func (s *GameState) Clone() *GameState {
	out := &GameState{
		Phase:          s.Phase,
		ActiveBets:     make(map[BetKey]CrapTokens, len(s.ActiveBets)),
		ComePoints:     make(map[PeerId]map[uint8]CrapTokens, len(s.ComePoints)),
		DontComePoints: make(map[PeerId]map[uint8]CrapTokens, len(s.DontComePoints)),
		History:        append([]DiceRoll(nil), s.History...),
		RollCount:      s.RollCount,
		HotStreak:      s.HotStreak,
		Players:        append([]PeerId(nil), s.Players...),
	}
	for k, v := range s.ActiveBets {
		out.ActiveBets[k] = v
	}
	for p, m := range s.ComePoints {
		nm := make(map[uint8]CrapTokens, len(m))
		for pt, amt := range m {
			nm[pt] = amt
		}
		out.ComePoints[p] = nm
	}
	for p, m := range s.DontComePoints {
		nm := make(map[uint8]CrapTokens, len(m))
		for pt, amt := range m {
			nm[pt] = amt
		}
		out.DontComePoints[p] = nm
	}
	return out
}

// sortedBetKeys returns the ActiveBets keys in canonical order, used by
// both the canonical serializer and resolve_roll's deterministic
// iteration.
func (s *GameState) sortedBetKeys() []BetKey {
	keys := make([]BetKey, 0, len(s.ActiveBets))
	for k := range s.ActiveBets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// SortedBetKeys exposes the canonical iteration order to other packages
// (betting, consensus) so every replica resolves bets in the same order.
func (s *GameState) SortedBetKeys() []BetKey { return s.sortedBetKeys() }

// CanonicalBytes is the deterministic serialization state_hash is a
// SHA-256 digest of; it must not depend on map iteration order.
func (s *GameState) CanonicalBytes() []byte {
	var buf []byte
	buf = append(buf, byte(s.Phase.Kind), s.Phase.Point)
	buf = appendU16(buf, s.RollCount)
	buf = append(buf, s.HotStreak)

	for _, k := range s.sortedBetKeys() {
		buf = append(buf, k.Peer[:]...)
		buf = append(buf, byte(k.Bet))
		buf = appendU64(buf, uint64(s.ActiveBets[k]))
	}

	peers := make([]PeerId, 0, len(s.ComePoints))
	for p := range s.ComePoints {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Less(peers[j]) })
	for _, p := range peers {
		buf = append(buf, p[:]...)
		pts := s.ComePoints[p]
		nums := sortedU8Keys(pts)
		for _, n := range nums {
			buf = append(buf, n)
			buf = appendU64(buf, uint64(pts[n]))
		}
	}

	dcPeers := make([]PeerId, 0, len(s.DontComePoints))
	for p := range s.DontComePoints {
		dcPeers = append(dcPeers, p)
	}
	sort.Slice(dcPeers, func(i, j int) bool { return dcPeers[i].Less(dcPeers[j]) })
	for _, p := range dcPeers {
		buf = append(buf, p[:]...)
		pts := s.DontComePoints[p]
		nums := sortedU8Keys(pts)
		for _, n := range nums {
			buf = append(buf, n)
			buf = appendU64(buf, uint64(pts[n]))
		}
	}

	for _, r := range s.History {
		buf = append(buf, r.Die1, r.Die2)
	}
	return buf
}

func sortedU8Keys(m map[uint8]CrapTokens) []uint8 {
	out := make([]uint8, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func appendU16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

func appendU64(buf []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}

// Balances is the canonical per-peer token balance map, serialized
// alongside GameState to produce state_hash.
type Balances map[PeerId]CrapTokens

// CanonicalBytes serializes balances in canonical PeerId order.
func (b Balances) CanonicalBytes() []byte {
	peers := make([]PeerId, 0, len(b))
	for p := range b {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Less(peers[j]) })
	var buf []byte
	for _, p := range peers {
		buf = append(buf, p[:]...)
		buf = appendU64(buf, uint64(b[p]))
	}
	return buf
}

// Clone returns a shallow copy (values are plain uint64s).
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for p, v := range b {
		out[p] = v
	}
	return out
}

package config

import "testing"

func TestPresetsValidate(t *testing.T) {
	presets := []ConsensusConfig{MainnetParams(), TestnetParams(), LocalParams(), SingleGameParams()}
	for i, p := range presets {
		if err := p.Validate(); err != nil {
			t.Fatalf("preset %d failed validation: %v", i, err)
		}
	}
}

func TestLocalParamsTighterThanMainnet(t *testing.T) {
	m, l := MainnetParams(), LocalParams()
	if l.MaxPlayersPerGame >= m.MaxPlayersPerGame {
		t.Fatalf("local max players %d should be below mainnet %d", l.MaxPlayersPerGame, m.MaxPlayersPerGame)
	}
	if l.ConsensusTimeout >= m.ConsensusTimeout {
		t.Fatalf("local consensus timeout %d should be below mainnet %d", l.ConsensusTimeout, m.ConsensusTimeout)
	}
}

func TestSingleGameParamsCapsOneRound(t *testing.T) {
	if SingleGameParams().MaxActiveRounds != 1 {
		t.Fatalf("expected exactly one active round")
	}
}

func TestValidateRejectsBadRatio(t *testing.T) {
	p := MainnetParams()
	p.MaxByzantineRatio = 1.2
	if err := p.Validate(); err == nil {
		t.Fatalf("expected validation error for out-of-range ratio")
	}
}

func TestReplicationConfigProjection(t *testing.T) {
	p := MainnetParams()
	rc := p.ReplicationConfig()
	if rc.MinConfirmations != p.MinConfirmations || rc.MaxBet != p.MaxBet {
		t.Fatalf("replication config projection mismatch: %+v vs %+v", rc, p)
	}
}

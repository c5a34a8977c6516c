/*
Package consensus implements a peer-to-peer, Byzantine-fault-tolerant
engine for adversarial multi-party dice gaming.

# Overview

A game session is an open set of mutually distrusting peers (2 ≤ N ≤
~20, tolerating f < N/3 Byzantine) that must agree on every dice roll —
produced by an unbiasable commit-reveal protocol among all
participants — and on the ordered sequence of state transitions (bets,
phase changes, balance updates) that make up the game.

# Components

  - crypto    Ed25519 signing behind a bounded verify cache, SHA-256
              hashing, and the CSPRNG-backed entropy pool
  - safemath  overflow-checked token arithmetic and payout math
  - merkle    commitment trees and inclusion proofs over round commitments
  - dice      commit-reveal entropy aggregation and dice extraction
  - wire      the compact, versioned on-wire codec: varint, TLV, the
              bit-packed compact state format, and delta encoding
  - betting   the deterministic bet-resolution table and phase
              transition rules
  - round     the per-round commit/reveal state machine and Byzantine
              fault detection
  - replication proposal/vote/quorum, fork resolution, and disputes
  - engine    the facade binding Transport/Signer/Clock into a single
              cooperatively-scheduled core
  - config    tunable defaults and environment presets
  - cmd/meshdice a local multi-peer demo CLI

# Determinism

Every replica must reach the same state_hash from the same sequence of
operations: no floating point in bet resolution, no map-iteration-order
dependence, canonical (PeerId, BetType) ordering throughout.
*/
package consensus

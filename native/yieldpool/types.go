package yieldpool

import (
	"math/big"

	"yieldedu/crypto"
)

// Position is a single stake deposit with its own lock and yield accounting.
// Positions are never deleted; a withdrawn position stays queryable as an
// audit record.
type Position struct {
	// ID is the 1-based, monotonically increasing position identifier.
	ID uint64 `json:"id"`
	// Owner is the principal that funded the position.
	Owner crypto.Address `json:"owner"`
	// Token is the staked asset.
	Token crypto.Address `json:"token"`
	// Amount is the escrowed principal in wei.
	Amount *big.Int `json:"amount"`
	// LockDuration is the lock length in seconds.
	LockDuration uint64 `json:"lockDuration"`
	// StartTime is the unix timestamp at creation.
	StartTime int64 `json:"startTime"`
	// Withdrawn flips to true exactly once, on withdraw or unstake.
	Withdrawn bool `json:"withdrawn"`
}

// Unlocked reports whether the lock has expired at the given time.
func (p *Position) Unlocked(now int64) bool {
	if p == nil {
		return false
	}
	return now >= p.StartTime+int64(p.LockDuration)
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	}
	return &clone
}

// Params holds the pool-wide yield settings controlled by the owner.
type Params struct {
	// YieldRate is the annual yield in whole percent.
	YieldRate uint64 `json:"yieldRate"`
	// MinDuration is the shortest accepted lock in seconds.
	MinDuration uint64 `json:"minDuration"`
	// MaxDuration is the longest accepted lock in seconds.
	MaxDuration uint64 `json:"maxDuration"`
}

// Defaults applied when the pool has never been configured: 10% annual yield,
// locks between one day and one year.
const (
	DefaultYieldRate   = 10
	DefaultMinDuration = 86_400
	DefaultMaxDuration = SecondsPerYear
)

// EnsureDefaults initialises zero-value fields after decoding.
func (p *Params) EnsureDefaults() {
	if p.YieldRate == 0 {
		p.YieldRate = DefaultYieldRate
	}
	if p.MinDuration == 0 {
		p.MinDuration = DefaultMinDuration
	}
	if p.MaxDuration == 0 {
		p.MaxDuration = DefaultMaxDuration
	}
}

// Stats aggregates the pool counters kept alongside positions so reads do not
// scan the whole position set.
type Stats struct {
	// NextPositionID is the id assigned to the next deposit, starting at 1.
	NextPositionID uint64 `json:"nextPositionId"`
	// TotalStakers counts principals with at least one deposit ever made.
	TotalStakers uint64 `json:"totalStakers"`
	// TotalValueLocked sums the principal of all non-withdrawn positions.
	TotalValueLocked *big.Int `json:"totalValueLocked"`
}

// EnsureDefaults initialises zero-value fields after decoding.
func (s *Stats) EnsureDefaults() {
	if s.NextPositionID == 0 {
		s.NextPositionID = 1
	}
	if s.TotalValueLocked == nil {
		s.TotalValueLocked = big.NewInt(0)
	}
}

// TokenBalance pairs a staked token with the owner's non-withdrawn principal.
type TokenBalance struct {
	Token   crypto.Address `json:"token"`
	Balance *big.Int       `json:"balance"`
}

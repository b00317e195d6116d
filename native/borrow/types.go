package borrow

import (
	"math/big"

	"yieldedu/crypto"
)

// Loan is a single borrow collateralized by one asset, repayable in another.
// Loans are append-only; repayment flips Active to false and the record stays
// as an audit entry.
type Loan struct {
	// ID is the 0-based, deployment-scoped loan counter value.
	ID uint64 `json:"loanId"`
	// User is the borrower.
	User crypto.Address `json:"userAddress"`
	// CollateralToken is the escrowed asset.
	CollateralToken crypto.Address `json:"collateralToken"`
	// CollateralAmount is the escrowed wei amount, fixed at creation.
	CollateralAmount *big.Int `json:"collateralAmount"`
	// BorrowToken is the asset lent out.
	BorrowToken crypto.Address `json:"borrowToken"`
	// BorrowAmount is the principal lent, fixed at creation.
	BorrowAmount *big.Int `json:"borrowAmount"`
	// Duration is the repayment window in seconds.
	Duration uint64 `json:"duration"`
	// InterestRate is the simple annual interest in whole percent.
	InterestRate uint64 `json:"interestRate"`
	// StartTime is the unix timestamp at creation.
	StartTime int64 `json:"startTime"`
	// Active flips to false exactly once, on repayment.
	Active bool `json:"active"`
}

// Expired reports whether the repayment window has closed at the given time.
// The boundary instant itself is still payable.
func (l *Loan) Expired(now int64) bool {
	if l == nil {
		return false
	}
	return now > l.StartTime+int64(l.Duration)
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	if l.CollateralAmount != nil {
		clone.CollateralAmount = new(big.Int).Set(l.CollateralAmount)
	}
	if l.BorrowAmount != nil {
		clone.BorrowAmount = new(big.Int).Set(l.BorrowAmount)
	}
	return &clone
}

// Params groups the owner-controlled risk settings. Per-token entries fall
// back to the defaults when unset.
type Params struct {
	// MinHealthFactor is the floor applied to new loans.
	MinHealthFactor uint64 `json:"minHealthFactor"`
	// MinimumDuration is the pool-wide shortest loan term in seconds.
	MinimumDuration uint64 `json:"minimumDuration"`
	// LiquidationThresholds maps token address to threshold percent (<= 100).
	LiquidationThresholds map[string]uint64 `json:"liquidationThresholds"`
	// MinCollateralAmounts maps token address to the smallest accepted
	// collateral in wei.
	MinCollateralAmounts map[string]*big.Int `json:"minCollateralAmounts"`
}

// Defaults applied when a token has no explicit entry: threshold 80%, minimum
// collateral one whole token, one-day terms, health factor floor of 1.
const (
	DefaultLiquidationThreshold = 80
	DefaultMinimumDuration      = 86_400
	DefaultMinHealthFactor      = 1
)

// DefaultMinCollateral is 1e18 wei, one whole 18-decimal token.
var DefaultMinCollateral = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// EnsureDefaults initialises zero-value fields after decoding.
func (p *Params) EnsureDefaults() {
	if p.MinHealthFactor == 0 {
		p.MinHealthFactor = DefaultMinHealthFactor
	}
	if p.MinimumDuration == 0 {
		p.MinimumDuration = DefaultMinimumDuration
	}
	if p.LiquidationThresholds == nil {
		p.LiquidationThresholds = make(map[string]uint64)
	}
	if p.MinCollateralAmounts == nil {
		p.MinCollateralAmounts = make(map[string]*big.Int)
	}
}

// ThresholdFor returns the liquidation threshold percent for a token.
func (p *Params) ThresholdFor(token crypto.Address) uint64 {
	if p == nil || p.LiquidationThresholds == nil {
		return DefaultLiquidationThreshold
	}
	if pct, ok := p.LiquidationThresholds[token.String()]; ok {
		return pct
	}
	return DefaultLiquidationThreshold
}

// MinCollateralFor returns the smallest accepted collateral for a token.
func (p *Params) MinCollateralFor(token crypto.Address) *big.Int {
	if p == nil || p.MinCollateralAmounts == nil {
		return new(big.Int).Set(DefaultMinCollateral)
	}
	if amt, ok := p.MinCollateralAmounts[token.String()]; ok && amt != nil {
		return new(big.Int).Set(amt)
	}
	return new(big.Int).Set(DefaultMinCollateral)
}

package borrow

import (
	"strconv"

	"yieldedu/core/types"
	"yieldedu/crypto"
)

const (
	EventTypeCollateralDeposited = "borrow.collateral_deposited"
	EventTypeLoanCreated         = "borrow.loan_created"
	EventTypeLoanRepaid          = "borrow.loan_repaid"
	EventTypeActiveLoanUpdated   = "borrow.active_loan_updated"
	EventTypePoolFunded          = "borrow.pool_funded"
)

// NewCollateralDepositedEvent returns the canonical payload emitted when
// collateral is escrowed for a new loan.
func NewCollateralDepositedEvent(user, token crypto.Address, amount string) *types.Event {
	evt := types.NewEvent(EventTypeCollateralDeposited)
	evt.Attributes["user"] = user.String()
	evt.Attributes["collateralToken"] = token.String()
	evt.Attributes["collateralAmount"] = amount
	return evt
}

// NewLoanCreatedEvent returns the canonical payload for a new loan.
func NewLoanCreatedEvent(user crypto.Address, loanID uint64, borrowAmount string, borrowToken crypto.Address, duration uint64) *types.Event {
	evt := types.NewEvent(EventTypeLoanCreated)
	evt.Attributes["user"] = user.String()
	evt.Attributes["loanId"] = strconv.FormatUint(loanID, 10)
	evt.Attributes["borrowAmount"] = borrowAmount
	evt.Attributes["borrowToken"] = borrowToken.String()
	evt.Attributes["duration"] = strconv.FormatUint(duration, 10)
	return evt
}

// NewLoanRepaidEvent returns the canonical payload for a settled loan.
func NewLoanRepaidEvent(user crypto.Address, loanID uint64, totalDue string) *types.Event {
	evt := types.NewEvent(EventTypeLoanRepaid)
	evt.Attributes["user"] = user.String()
	evt.Attributes["loanId"] = strconv.FormatUint(loanID, 10)
	evt.Attributes["totalDue"] = totalDue
	return evt
}

// NewActiveLoanUpdatedEvent returns the canonical payload emitted when a
// loan's active flag changes.
func NewActiveLoanUpdatedEvent(loanID uint64, active bool) *types.Event {
	evt := types.NewEvent(EventTypeActiveLoanUpdated)
	evt.Attributes["loanId"] = strconv.FormatUint(loanID, 10)
	evt.Attributes["active"] = strconv.FormatBool(active)
	return evt
}

// NewPoolFundedEvent returns the canonical payload for a liquidity top-up.
func NewPoolFundedEvent(funder, token crypto.Address, amount string) *types.Event {
	evt := types.NewEvent(EventTypePoolFunded)
	evt.Attributes["funder"] = funder.String()
	evt.Attributes["token"] = token.String()
	evt.Attributes["amount"] = amount
	return evt
}

package yieldpool

import (
	"strconv"

	"yieldedu/core/types"
	"yieldedu/crypto"
)

const (
	EventTypeDeposited         = "yieldpool.deposited"
	EventTypeWithdrawn         = "yieldpool.withdrawn"
	EventTypeParametersUpdated = "yieldpool.parameters_updated"
	EventTypeAllowListUpdated  = "yieldpool.allowlist_updated"
)

// NewDepositedEvent returns the canonical payload for a new stake position.
func NewDepositedEvent(owner, token crypto.Address, amount string, lockDuration uint64) *types.Event {
	evt := types.NewEvent(EventTypeDeposited)
	evt.Attributes["owner"] = owner.String()
	evt.Attributes["token"] = token.String()
	evt.Attributes["amount"] = amount
	evt.Attributes["lockDuration"] = strconv.FormatUint(lockDuration, 10)
	return evt
}

// NewWithdrawnEvent returns the canonical payload for a payout. Early unstakes
// reuse this event with a zero yield component.
func NewWithdrawnEvent(owner, token crypto.Address, amountPaid, yieldPaid string) *types.Event {
	evt := types.NewEvent(EventTypeWithdrawn)
	evt.Attributes["owner"] = owner.String()
	evt.Attributes["token"] = token.String()
	evt.Attributes["amountPaid"] = amountPaid
	evt.Attributes["yieldPaid"] = yieldPaid
	return evt
}

// NewParametersUpdatedEvent returns the canonical payload for a yield
// parameter change.
func NewParametersUpdatedEvent(rate, minDuration, maxDuration uint64) *types.Event {
	evt := types.NewEvent(EventTypeParametersUpdated)
	evt.Attributes["yieldRate"] = strconv.FormatUint(rate, 10)
	evt.Attributes["minDuration"] = strconv.FormatUint(minDuration, 10)
	evt.Attributes["maxDuration"] = strconv.FormatUint(maxDuration, 10)
	return evt
}

// NewAllowListUpdatedEvent returns the canonical payload for an allow-list
// membership change.
func NewAllowListUpdatedEvent(token crypto.Address, allowed bool) *types.Event {
	evt := types.NewEvent(EventTypeAllowListUpdated)
	evt.Attributes["token"] = token.String()
	evt.Attributes["allowed"] = strconv.FormatBool(allowed)
	return evt
}

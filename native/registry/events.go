package registry

import (
	"strconv"

	"yieldedu/core/types"
	"yieldedu/crypto"
)

const (
	EventTypeTokensMinted = "token.minted"
	EventTypeTokensBurned = "token.burned"
	EventTypeMinterSet    = "token.minter_set"
)

// NewMintedEvent returns the canonical payload emitted when tokens are minted.
func NewMintedEvent(to crypto.Address, amount string, minter crypto.Address) *types.Event {
	evt := types.NewEvent(EventTypeTokensMinted)
	evt.Attributes["to"] = to.String()
	evt.Attributes["amount"] = amount
	evt.Attributes["minter"] = minter.String()
	return evt
}

// NewBurnedEvent returns the canonical payload emitted when tokens are burned.
func NewBurnedEvent(from crypto.Address, amount string) *types.Event {
	evt := types.NewEvent(EventTypeTokensBurned)
	evt.Attributes["from"] = from.String()
	evt.Attributes["amount"] = amount
	return evt
}

// NewMinterSetEvent returns the canonical payload emitted when a minter is
// added or removed.
func NewMinterSetEvent(minter crypto.Address, authorized bool) *types.Event {
	evt := types.NewEvent(EventTypeMinterSet)
	evt.Attributes["minter"] = minter.String()
	evt.Attributes["authorized"] = strconv.FormatBool(authorized)
	return evt
}

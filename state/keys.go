package state

import (
	"strconv"

	"yieldedu/crypto"
)

// Key layout for the ledger database. Every record is a JSON document under a
// short, prefixed key so unrelated modules never collide.
const (
	keyAccountPrefix      = "acct/"
	keyPositionPrefix     = "pos/"
	keyUserPositionPrefix = "pos/user/"
	keyPoolParams         = "pool/params"
	keyPoolStats          = "pool/stats"
	keyPoolAllowList      = "pool/allowlist"
	keyLoanPrefix         = "loan/"
	keyUserLoanPrefix     = "loan/user/"
	keyLoanCount          = "loan/count"
	keyBorrowParams       = "borrow/params"
	keyBorrowPoolPrefix   = "borrow/pool/"
	keyGenesisSeeded      = "genesis/seeded"
	keyMinters            = "registry/minters"
	keyStudentPrefix      = "registry/student/"
	keySupplyPrefix       = "registry/supply/"
)

func accountKey(addr crypto.Address) []byte {
	return []byte(keyAccountPrefix + addr.String())
}

func positionKey(id uint64) []byte {
	return []byte(keyPositionPrefix + strconv.FormatUint(id, 10))
}

func userPositionsKey(owner crypto.Address) []byte {
	return []byte(keyUserPositionPrefix + owner.String())
}

func loanKey(id uint64) []byte {
	return []byte(keyLoanPrefix + strconv.FormatUint(id, 10))
}

func userLoansKey(user crypto.Address) []byte {
	return []byte(keyUserLoanPrefix + user.String())
}

func borrowPoolKey(token crypto.Address) []byte {
	return []byte(keyBorrowPoolPrefix + token.String())
}

func studentKey(addr crypto.Address) []byte {
	return []byte(keyStudentPrefix + addr.String())
}

func supplyKey(token crypto.Address) []byte {
	return []byte(keySupplyPrefix + token.String())
}

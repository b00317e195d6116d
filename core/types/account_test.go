package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBalanceOfNeverReturnsNil(t *testing.T) {
	account := NewAccount()
	balance := account.BalanceOf("unknown")
	require.NotNil(t, balance)
	require.Zero(t, balance.Sign())
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	account := NewAccount()
	account.SetBalance("tok", big.NewInt(100))

	balance := account.BalanceOf("tok")
	balance.SetInt64(0)

	require.Equal(t, "100", account.BalanceOf("tok").String())
}

func TestAccountJSONRoundTrip(t *testing.T) {
	account := NewAccount()
	account.SetBalance("tok", big.NewInt(12345))

	raw, err := json.Marshal(account)
	require.NoError(t, err)

	decoded := NewAccount()
	require.NoError(t, json.Unmarshal(raw, decoded))
	require.Equal(t, "12345", decoded.BalanceOf("tok").String())
}

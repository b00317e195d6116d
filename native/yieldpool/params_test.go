package yieldpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"yieldedu/core/types"
	"yieldedu/crypto"
	"yieldedu/native/registry"
)

// bareState persists nothing and returns nil records, like a state layer that
// does not default parameters on read.
type bareState struct{}

func (bareState) GetAccount(crypto.Address) (*types.Account, error) { return nil, nil }
func (bareState) PutAccount(crypto.Address, *types.Account) error { return nil }
func (bareState) GetPosition(uint64) (*Position, error) { return nil, nil }
func (bareState) PutPosition(*Position) error { return nil }
func (bareState) UserPositionIDs(crypto.Address) ([]uint64, error) { return nil, nil }
func (bareState) AppendUserPositionID(crypto.Address, uint64) error { return nil }
func (bareState) GetPoolParams() (*Params, error) { return nil, nil }
func (bareState) PutPoolParams(*Params) error { return nil }
func (bareState) GetPoolStats() (*Stats, error) { return nil, nil }
func (bareState) PutPoolStats(*Stats) error { return nil }
func (bareState) GetAllowList() (*registry.AllowList, error) { return nil, nil }
func (bareState) PutAllowList(*registry.AllowList) error { return nil }

func TestLoadParamsDefaultsMissingRecord(t *testing.T) {
	var addr [20]byte
	owner := crypto.MustNewAddress(addr)
	engine := NewEngine(owner, owner)
	engine.SetState(bareState{})

	params, err := engine.loadParams()
	require.NoError(t, err)
	require.Equal(t, uint64(DefaultYieldRate), params.YieldRate)
	require.Equal(t, uint64(DefaultMinDuration), params.MinDuration)
	require.Equal(t, uint64(DefaultMaxDuration), params.MaxDuration)

	min, err := engine.MinStakeDuration()
	require.NoError(t, err)
	require.Equal(t, uint64(DefaultMinDuration), min)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"yieldedu/config"
	"yieldedu/state"
	"yieldedu/storage"
)

func seedConfig() *config.Config {
	return &config.Config{
		Token: config.TokenConfig{Name: "EduToken", Symbol: "YDU"},
		Pool:  config.PoolConfig{YieldRate: 10, MinDuration: 86_400, MaxDuration: 31_536_000},
		Borrow: config.BorrowConfig{
			MinHealthFactor: 1,
			MinimumDuration: 86_400,
		},
	}
}

func TestSeedParametersAllowListsProtocolToken(t *testing.T) {
	ledger, err := state.NewLedgerState(storage.NewMemDB())
	require.NoError(t, err)

	cfg := seedConfig()
	token := tokenAddress(cfg)
	require.NoError(t, seedParameters(ledger, cfg, token))

	list, err := ledger.GetAllowList()
	require.NoError(t, err)
	require.True(t, list.Contains(token))

	params, err := ledger.GetPoolParams()
	require.NoError(t, err)
	require.Equal(t, uint64(10), params.YieldRate)
	require.Equal(t, uint64(86_400), params.MinDuration)
	require.Equal(t, uint64(31_536_000), params.MaxDuration)

	borrowParams, err := ledger.GetBorrowParams()
	require.NoError(t, err)
	require.Equal(t, uint64(1), borrowParams.MinHealthFactor)
	require.Equal(t, uint64(86_400), borrowParams.MinimumDuration)

	seeded, err := ledger.Seeded()
	require.NoError(t, err)
	require.True(t, seeded)
}

func TestSeedParametersRunsOnce(t *testing.T) {
	ledger, err := state.NewLedgerState(storage.NewMemDB())
	require.NoError(t, err)

	cfg := seedConfig()
	token := tokenAddress(cfg)
	require.NoError(t, seedParameters(ledger, cfg, token))

	// A later boot with different settings must not clobber the live state.
	cfg.Pool.YieldRate = 25
	require.NoError(t, seedParameters(ledger, cfg, token))

	params, err := ledger.GetPoolParams()
	require.NoError(t, err)
	require.Equal(t, uint64(10), params.YieldRate)
}

func TestTokenAddressFallsBackToDerivedAccount(t *testing.T) {
	cfg := seedConfig()

	derived := tokenAddress(cfg)
	require.Equal(t, state.ModuleAddress("token/YDU"), derived)
	require.Equal(t, derived, tokenAddress(cfg))

	cfg.Token.Address = derived.String()
	require.Equal(t, derived, tokenAddress(cfg))
}

package registry_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"yieldedu/core/events"
	"yieldedu/crypto"
	"yieldedu/native/registry"
	"yieldedu/state"
	"yieldedu/storage"
)

func addr(b byte) crypto.Address {
	var raw [20]byte
	raw[19] = b
	return crypto.MustNewAddress(raw)
}

var (
	owner    = addr(1)
	token    = addr(2)
	minter   = addr(3)
	student  = addr(4)
	stranger = addr(5)
)

func newEngine(t *testing.T) (*registry.Engine, *events.Recorder) {
	t.Helper()
	ledger, err := state.NewLedgerState(storage.NewMemDB())
	require.NoError(t, err)
	recorder := events.NewRecorder()
	engine := registry.NewEngine(owner, token, "EduToken", "YDU")
	engine.SetState(ledger)
	engine.SetEmitter(recorder)
	return engine, recorder
}

func TestMintOwnerCreditsAndGrowsSupply(t *testing.T) {
	engine, recorder := newEngine(t)

	require.NoError(t, engine.Mint(owner, student, big.NewInt(1000)))

	balance, err := engine.BalanceOf(student)
	require.NoError(t, err)
	require.Equal(t, "1000", balance.String())

	supply, err := engine.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, "1000", supply.String())

	emitted := recorder.Events()
	require.Len(t, emitted, 1)
	require.Equal(t, registry.EventTypeTokensMinted, emitted[0].Type)
	require.Equal(t, "1000", emitted[0].Attributes["amount"])
}

func TestMintRejectsUnauthorizedCaller(t *testing.T) {
	engine, _ := newEngine(t)

	err := engine.Mint(stranger, student, big.NewInt(1))
	require.ErrorIs(t, err, registry.ErrUnauthorizedMinter)
}

func TestMintRejectsNonPositiveAmount(t *testing.T) {
	engine, _ := newEngine(t)

	require.ErrorIs(t, engine.Mint(owner, student, big.NewInt(0)), registry.ErrInvalidAmount)
	require.ErrorIs(t, engine.Mint(owner, student, big.NewInt(-5)), registry.ErrInvalidAmount)
	require.ErrorIs(t, engine.Mint(owner, student, nil), registry.ErrInvalidAmount)
}

func TestMinterRoleLifecycle(t *testing.T) {
	engine, _ := newEngine(t)

	require.ErrorIs(t, engine.SetMinter(stranger, minter, true), registry.ErrUnauthorized)

	require.NoError(t, engine.SetMinter(owner, minter, true))
	require.NoError(t, engine.Mint(minter, student, big.NewInt(42)))

	minters, err := engine.Minters()
	require.NoError(t, err)
	require.Len(t, minters, 1)
	require.True(t, minters[0].Equal(minter))

	require.NoError(t, engine.RemoveMinter(owner, minter))
	require.ErrorIs(t, engine.Mint(minter, student, big.NewInt(1)), registry.ErrUnauthorizedMinter)

	require.ErrorIs(t, engine.RemoveMinter(owner, minter), registry.ErrNotAMinter)
}

func TestSetMinterIdempotent(t *testing.T) {
	engine, _ := newEngine(t)

	require.NoError(t, engine.SetMinter(owner, minter, true))
	require.NoError(t, engine.SetMinter(owner, minter, true))

	minters, err := engine.Minters()
	require.NoError(t, err)
	require.Len(t, minters, 1)
}

func TestMintToPoolSeedsFixedAllocation(t *testing.T) {
	engine, _ := newEngine(t)
	pool := addr(9)

	require.ErrorIs(t, engine.MintToPool(stranger, pool), registry.ErrUnauthorized)
	require.NoError(t, engine.MintToPool(owner, pool))

	balance, err := engine.BalanceOf(pool)
	require.NoError(t, err)
	require.Equal(t, registry.PoolSeedAmount.String(), balance.String())
	require.Equal(t, "10000000000000000000000000", balance.String())
}

func TestBurnReducesBalanceAndSupply(t *testing.T) {
	engine, recorder := newEngine(t)

	require.NoError(t, engine.Mint(owner, student, big.NewInt(1000)))
	require.NoError(t, engine.Burn(owner, student, big.NewInt(400)))

	balance, err := engine.BalanceOf(student)
	require.NoError(t, err)
	require.Equal(t, "600", balance.String())

	supply, err := engine.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, "600", supply.String())

	emitted := recorder.Events()
	require.Equal(t, registry.EventTypeTokensBurned, emitted[len(emitted)-1].Type)
}

func TestBurnRejectsOverdraw(t *testing.T) {
	engine, _ := newEngine(t)

	require.NoError(t, engine.Mint(owner, student, big.NewInt(100)))
	require.ErrorIs(t, engine.Burn(owner, student, big.NewInt(101)), registry.ErrInsufficientBalance)
	require.ErrorIs(t, engine.Burn(stranger, student, big.NewInt(1)), registry.ErrUnauthorized)

	balance, err := engine.BalanceOf(student)
	require.NoError(t, err)
	require.Equal(t, "100", balance.String())
}

func TestStudentFlag(t *testing.T) {
	engine, _ := newEngine(t)

	flag, err := engine.IsStudent(student)
	require.NoError(t, err)
	require.False(t, flag)

	require.ErrorIs(t, engine.SetStudentStatus(stranger, student, true), registry.ErrUnauthorized)
	require.NoError(t, engine.SetStudentStatus(owner, student, true))

	flag, err = engine.IsStudent(student)
	require.NoError(t, err)
	require.True(t, flag)

	require.NoError(t, engine.SetStudentStatus(owner, student, false))
	flag, err = engine.IsStudent(student)
	require.NoError(t, err)
	require.False(t, flag)
}

func TestTokenMetadata(t *testing.T) {
	engine, _ := newEngine(t)

	require.Equal(t, "EduToken", engine.Name())
	require.Equal(t, "YDU", engine.Symbol())
	require.Equal(t, uint8(18), engine.Decimals())
	require.True(t, engine.Token().Equal(token))
}

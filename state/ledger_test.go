package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"yieldedu/crypto"
	"yieldedu/native/borrow"
	"yieldedu/native/registry"
	"yieldedu/native/yieldpool"
	"yieldedu/storage"
)

func testAddr(t *testing.T, b byte) crypto.Address {
	t.Helper()
	var raw [20]byte
	raw[19] = b
	return crypto.MustNewAddress(raw)
}

func newTestLedger(t *testing.T) *LedgerState {
	t.Helper()
	ledger, err := NewLedgerState(storage.NewMemDB())
	require.NoError(t, err)
	return ledger
}

func TestLedgerAccountRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	addr := testAddr(t, 1)
	token := testAddr(t, 2)

	account, err := ledger.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, account.BalanceOf(token.String()).Sign())

	account.SetBalance(token.String(), big.NewInt(12345))
	require.NoError(t, ledger.PutAccount(addr, account))

	reloaded, err := ledger.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, "12345", reloaded.BalanceOf(token.String()).String())
}

func TestLedgerPositionRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	owner := testAddr(t, 3)
	token := testAddr(t, 4)

	missing, err := ledger.GetPosition(7)
	require.NoError(t, err)
	require.Nil(t, missing)

	position := &yieldpool.Position{
		ID:           7,
		Owner:        owner,
		Token:        token,
		Amount:       big.NewInt(1_000_000),
		LockDuration: 604_800,
		StartTime:    1_700_000_000,
	}
	require.NoError(t, ledger.PutPosition(position))
	require.NoError(t, ledger.AppendUserPositionID(owner, 7))

	reloaded, err := ledger.GetPosition(7)
	require.NoError(t, err)
	require.Equal(t, position.ID, reloaded.ID)
	require.True(t, reloaded.Owner.Equal(owner))
	require.Equal(t, "1000000", reloaded.Amount.String())
	require.False(t, reloaded.Withdrawn)

	ids, err := ledger.UserPositionIDs(owner)
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, ids)
}

func TestLedgerLoanRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	user := testAddr(t, 5)
	collateral := testAddr(t, 6)
	borrowed := testAddr(t, 7)

	count, err := ledger.LoanCount()
	require.NoError(t, err)
	require.Zero(t, count)

	loan := &borrow.Loan{
		ID:               0,
		User:             user,
		CollateralToken:  collateral,
		CollateralAmount: big.NewInt(5_000),
		BorrowToken:      borrowed,
		BorrowAmount:     big.NewInt(1_000),
		Duration:         86_400,
		InterestRate:     10,
		StartTime:        1_700_000_000,
		Active:           true,
	}
	require.NoError(t, ledger.PutLoan(loan))
	require.NoError(t, ledger.PutLoanCount(1))
	require.NoError(t, ledger.AppendUserLoanID(user, 0))

	reloaded, err := ledger.GetLoan(0)
	require.NoError(t, err)
	require.True(t, reloaded.Active)
	require.Equal(t, "5000", reloaded.CollateralAmount.String())

	ids, err := ledger.UserLoanIDs(user)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, ids)

	count, err = ledger.LoanCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestLedgerDefaultsApplied(t *testing.T) {
	ledger := newTestLedger(t)

	poolParams, err := ledger.GetPoolParams()
	require.NoError(t, err)
	require.Equal(t, uint64(yieldpool.DefaultYieldRate), poolParams.YieldRate)

	stats, err := ledger.GetPoolStats()
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.NextPositionID)

	borrowParams, err := ledger.GetBorrowParams()
	require.NoError(t, err)
	require.Equal(t, uint64(borrow.DefaultMinimumDuration), borrowParams.MinimumDuration)

	list, err := ledger.GetAllowList()
	require.NoError(t, err)
	require.Empty(t, list.List())
}

func TestLedgerSupplyAndPoolBalance(t *testing.T) {
	ledger := newTestLedger(t)
	token := testAddr(t, 8)

	supply, err := ledger.GetTokenSupply(token)
	require.NoError(t, err)
	require.Zero(t, supply.Sign())

	require.NoError(t, ledger.PutTokenSupply(token, big.NewInt(999)))
	supply, err = ledger.GetTokenSupply(token)
	require.NoError(t, err)
	require.Equal(t, "999", supply.String())

	require.NoError(t, ledger.PutPoolBalance(token, big.NewInt(42)))
	balance, err := ledger.GetPoolBalance(token)
	require.NoError(t, err)
	require.Equal(t, "42", balance.String())
}

func TestLedgerMintersAndStudents(t *testing.T) {
	ledger := newTestLedger(t)
	minter := testAddr(t, 9)
	student := testAddr(t, 10)

	minters, err := ledger.GetMinters()
	require.NoError(t, err)
	require.Empty(t, minters)

	require.NoError(t, ledger.PutMinters([]crypto.Address{minter}))
	minters, err = ledger.GetMinters()
	require.NoError(t, err)
	require.Len(t, minters, 1)
	require.True(t, minters[0].Equal(minter))

	flag, err := ledger.GetStudentFlag(student)
	require.NoError(t, err)
	require.False(t, flag)
	require.NoError(t, ledger.PutStudentFlag(student, true))
	flag, err = ledger.GetStudentFlag(student)
	require.NoError(t, err)
	require.True(t, flag)
}

func TestLedgerAllowListRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	token := testAddr(t, 11)

	list := registry.NewAllowList(token)
	require.NoError(t, ledger.PutAllowList(list))

	reloaded, err := ledger.GetAllowList()
	require.NoError(t, err)
	require.True(t, reloaded.Contains(token))
}

func TestModuleAddressDeterministic(t *testing.T) {
	first := ModuleAddress("yieldpool")
	second := ModuleAddress("yieldpool")
	require.True(t, first.Equal(second))
	require.False(t, first.Equal(ModuleAddress("borrow")))
	require.False(t, first.IsZero())
}

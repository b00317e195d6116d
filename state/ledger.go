package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"yieldedu/core/types"
	"yieldedu/crypto"
	"yieldedu/native/borrow"
	"yieldedu/native/registry"
	"yieldedu/native/yieldpool"
	"yieldedu/storage"
)

// ErrNilDatabase is returned when a ledger is constructed without a backing
// store.
var ErrNilDatabase = errors.New("state: database not configured")

// LedgerState is the single persistence layer shared by the registry, yield
// pool and borrow engines. All records are JSON documents in the underlying
// key-value store, and a single RWMutex serialises mutating operations so a
// whole engine call commits or fails as a unit.
type LedgerState struct {
	mu sync.RWMutex
	db storage.Database
}

// NewLedgerState wraps a key-value store in a ledger.
func NewLedgerState(db storage.Database) (*LedgerState, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	return &LedgerState{db: db}, nil
}

// Mutate runs fn while holding the write lock. Engine calls that change state
// must go through here so concurrent RPC requests observe a serial order.
func (l *LedgerState) Mutate(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}

// View runs fn while holding the read lock.
func (l *LedgerState) View(fn func() error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn()
}

// ModuleAddress derives the deterministic ledger account for a named module.
// The same name always yields the same address, so module funds survive
// restarts without any stored mapping.
func ModuleAddress(name string) crypto.Address {
	hash := gethcrypto.Keccak256([]byte("yieldedu/module/" + name))
	var raw [20]byte
	copy(raw[:], hash[len(hash)-20:])
	return crypto.MustNewAddress(raw)
}

func (l *LedgerState) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := l.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", string(key), err)
	}
	return true, nil
}

func (l *LedgerState) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", string(key), err)
	}
	return l.db.Put(key, raw)
}

// Seeded reports whether first-boot parameter seeding already ran.
func (l *LedgerState) Seeded() (bool, error) {
	var done bool
	if _, err := l.getJSON([]byte(keyGenesisSeeded), &done); err != nil {
		return false, err
	}
	return done, nil
}

// MarkSeeded records that first-boot parameter seeding ran.
func (l *LedgerState) MarkSeeded() error {
	return l.putJSON([]byte(keyGenesisSeeded), true)
}

// GetAccount loads the balance record for an address. Unknown addresses get a
// fresh empty account rather than an error.
func (l *LedgerState) GetAccount(addr crypto.Address) (*types.Account, error) {
	account := types.NewAccount()
	if _, err := l.getJSON(accountKey(addr), account); err != nil {
		return nil, err
	}
	if account.Balances == nil {
		account.Balances = make(map[string]*big.Int)
	}
	return account, nil
}

// PutAccount persists the balance record for an address.
func (l *LedgerState) PutAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	return l.putJSON(accountKey(addr), account)
}

// GetMinters returns the registry's authorised minter set.
func (l *LedgerState) GetMinters() ([]crypto.Address, error) {
	var minters []crypto.Address
	if _, err := l.getJSON([]byte(keyMinters), &minters); err != nil {
		return nil, err
	}
	return minters, nil
}

// PutMinters persists the registry's authorised minter set.
func (l *LedgerState) PutMinters(minters []crypto.Address) error {
	if minters == nil {
		minters = []crypto.Address{}
	}
	return l.putJSON([]byte(keyMinters), minters)
}

// GetStudentFlag reports whether an address is flagged as a student.
func (l *LedgerState) GetStudentFlag(addr crypto.Address) (bool, error) {
	var flag bool
	if _, err := l.getJSON(studentKey(addr), &flag); err != nil {
		return false, err
	}
	return flag, nil
}

// PutStudentFlag persists the student flag for an address.
func (l *LedgerState) PutStudentFlag(addr crypto.Address, isStudent bool) error {
	return l.putJSON(studentKey(addr), isStudent)
}

// GetTokenSupply returns the minted supply of a token, zero when untracked.
func (l *LedgerState) GetTokenSupply(token crypto.Address) (*big.Int, error) {
	var supply bigIntJSON
	found, err := l.getJSON(supplyKey(token), &supply)
	if err != nil {
		return nil, err
	}
	if !found || supply.Int == nil {
		return big.NewInt(0), nil
	}
	return supply.Int, nil
}

// PutTokenSupply persists the minted supply of a token.
func (l *LedgerState) PutTokenSupply(token crypto.Address, supply *big.Int) error {
	if supply == nil {
		supply = big.NewInt(0)
	}
	return l.putJSON(supplyKey(token), bigIntJSON{Int: supply})
}

// GetPosition returns a stake position, or nil when the id is unknown.
func (l *LedgerState) GetPosition(id uint64) (*yieldpool.Position, error) {
	position := new(yieldpool.Position)
	found, err := l.getJSON(positionKey(id), position)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return position, nil
}

// PutPosition persists a stake position under its id.
func (l *LedgerState) PutPosition(position *yieldpool.Position) error {
	if position == nil {
		return errors.New("state: nil position")
	}
	return l.putJSON(positionKey(position.ID), position)
}

// UserPositionIDs returns the position ids ever opened by an owner, oldest
// first.
func (l *LedgerState) UserPositionIDs(owner crypto.Address) ([]uint64, error) {
	var ids []uint64
	if _, err := l.getJSON(userPositionsKey(owner), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// AppendUserPositionID records a new position id under its owner.
func (l *LedgerState) AppendUserPositionID(owner crypto.Address, id uint64) error {
	ids, err := l.UserPositionIDs(owner)
	if err != nil {
		return err
	}
	return l.putJSON(userPositionsKey(owner), append(ids, id))
}

// GetPoolParams returns the yield pool parameters with defaults applied.
func (l *LedgerState) GetPoolParams() (*yieldpool.Params, error) {
	params := new(yieldpool.Params)
	if _, err := l.getJSON([]byte(keyPoolParams), params); err != nil {
		return nil, err
	}
	params.EnsureDefaults()
	return params, nil
}

// PutPoolParams persists the yield pool parameters.
func (l *LedgerState) PutPoolParams(params *yieldpool.Params) error {
	if params == nil {
		return errors.New("state: nil pool params")
	}
	return l.putJSON([]byte(keyPoolParams), params)
}

// GetPoolStats returns the pool aggregates with defaults applied.
func (l *LedgerState) GetPoolStats() (*yieldpool.Stats, error) {
	stats := new(yieldpool.Stats)
	if _, err := l.getJSON([]byte(keyPoolStats), stats); err != nil {
		return nil, err
	}
	stats.EnsureDefaults()
	return stats, nil
}

// PutPoolStats persists the pool aggregates.
func (l *LedgerState) PutPoolStats(stats *yieldpool.Stats) error {
	if stats == nil {
		return errors.New("state: nil pool stats")
	}
	return l.putJSON([]byte(keyPoolStats), stats)
}

// GetAllowList returns the staking allow-list, empty when never written.
func (l *LedgerState) GetAllowList() (*registry.AllowList, error) {
	list := registry.NewAllowList()
	if _, err := l.getJSON([]byte(keyPoolAllowList), list); err != nil {
		return nil, err
	}
	return list, nil
}

// PutAllowList persists the staking allow-list.
func (l *LedgerState) PutAllowList(list *registry.AllowList) error {
	if list == nil {
		list = registry.NewAllowList()
	}
	return l.putJSON([]byte(keyPoolAllowList), list)
}

// GetLoan returns a loan record, or nil when the id is unknown.
func (l *LedgerState) GetLoan(id uint64) (*borrow.Loan, error) {
	loan := new(borrow.Loan)
	found, err := l.getJSON(loanKey(id), loan)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return loan, nil
}

// PutLoan persists a loan record under its id.
func (l *LedgerState) PutLoan(loan *borrow.Loan) error {
	if loan == nil {
		return errors.New("state: nil loan")
	}
	return l.putJSON(loanKey(loan.ID), loan)
}

// LoanCount returns how many loans have ever been opened.
func (l *LedgerState) LoanCount() (uint64, error) {
	var count uint64
	if _, err := l.getJSON([]byte(keyLoanCount), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// PutLoanCount persists the global loan counter.
func (l *LedgerState) PutLoanCount(count uint64) error {
	return l.putJSON([]byte(keyLoanCount), count)
}

// UserLoanIDs returns the loan ids ever opened by a borrower, oldest first.
func (l *LedgerState) UserLoanIDs(user crypto.Address) ([]uint64, error) {
	var ids []uint64
	if _, err := l.getJSON(userLoansKey(user), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// AppendUserLoanID records a new loan id under its borrower.
func (l *LedgerState) AppendUserLoanID(user crypto.Address, id uint64) error {
	ids, err := l.UserLoanIDs(user)
	if err != nil {
		return err
	}
	return l.putJSON(userLoansKey(user), append(ids, id))
}

// GetBorrowParams returns the borrow risk settings with defaults applied.
func (l *LedgerState) GetBorrowParams() (*borrow.Params, error) {
	params := new(borrow.Params)
	if _, err := l.getJSON([]byte(keyBorrowParams), params); err != nil {
		return nil, err
	}
	params.EnsureDefaults()
	return params, nil
}

// PutBorrowParams persists the borrow risk settings.
func (l *LedgerState) PutBorrowParams(params *borrow.Params) error {
	if params == nil {
		return errors.New("state: nil borrow params")
	}
	return l.putJSON([]byte(keyBorrowParams), params)
}

// GetPoolBalance returns the borrowable liquidity tracked for a token.
func (l *LedgerState) GetPoolBalance(token crypto.Address) (*big.Int, error) {
	var balance bigIntJSON
	found, err := l.getJSON(borrowPoolKey(token), &balance)
	if err != nil {
		return nil, err
	}
	if !found || balance.Int == nil {
		return big.NewInt(0), nil
	}
	return balance.Int, nil
}

// PutPoolBalance persists the borrowable liquidity tracked for a token.
func (l *LedgerState) PutPoolBalance(token crypto.Address, balance *big.Int) error {
	if balance == nil {
		balance = big.NewInt(0)
	}
	return l.putJSON(borrowPoolKey(token), bigIntJSON{Int: balance})
}

// bigIntJSON stores big integers as decimal strings so records stay readable
// in database dumps.
type bigIntJSON struct {
	Int *big.Int
}

func (b bigIntJSON) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return json.Marshal("0")
	}
	return json.Marshal(b.Int.String())
}

func (b *bigIntJSON) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	value, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return fmt.Errorf("state: invalid big integer %q", text)
	}
	b.Int = value
	return nil
}

package yieldpool

import (
	"errors"
	"math/big"
	"time"

	"yieldedu/core/events"
	"yieldedu/core/types"
	"yieldedu/crypto"
	nativecommon "yieldedu/native/common"
	"yieldedu/native/registry"
)

var (
	ErrNilState             = errors.New("yield pool: state not configured")
	ErrUnauthorized         = errors.New("yield pool: caller is not the owner")
	ErrUnsupportedToken     = errors.New("yield pool: token is not supported for staking")
	ErrZeroAmount           = errors.New("yield pool: amount must be greater than zero")
	ErrInvalidDuration      = errors.New("yield pool: lock duration out of range")
	ErrInsufficientBalance  = errors.New("yield pool: insufficient balance")
	ErrInsufficientReserves = errors.New("yield pool: pool reserves cannot cover payout")
	ErrPositionNotFound     = errors.New("yield pool: position does not exist")
	ErrStillLocked          = errors.New("yield pool: position is still locked")
	ErrNotPositionOwner     = errors.New("yield pool: caller is not the position owner")
	ErrAlreadyWithdrawn     = errors.New("yield pool: position already withdrawn")
)

const moduleName = "yieldpool"

// SecondsPerYear is the accrual base for the linear yield formula.
const SecondsPerYear = 31_536_000

// unstakePenaltyDivisor gives the fixed 10% early-exit penalty.
const unstakePenaltyDivisor = 10

type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	GetPosition(id uint64) (*Position, error)
	PutPosition(position *Position) error
	UserPositionIDs(owner crypto.Address) ([]uint64, error)
	AppendUserPositionID(owner crypto.Address, id uint64) error
	GetPoolParams() (*Params, error)
	PutPoolParams(params *Params) error
	GetPoolStats() (*Stats, error)
	PutPoolStats(stats *Stats) error
	GetAllowList() (*registry.AllowList, error)
	PutAllowList(list *registry.AllowList) error
}

type poolEvent struct {
	evt *types.Event
}

func (e poolEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e poolEvent) Event() *types.Event { return e.evt }

// Engine runs the fixed-duration staking pool: deposits escrow an allowed
// token under a lock, withdrawals after expiry pay principal plus linear
// yield, early unstakes pay principal minus a 10% penalty and forfeit yield.
type Engine struct {
	state         engineState
	emitter       events.Emitter
	owner         crypto.Address
	moduleAddress crypto.Address
	pauses        nativecommon.PauseView
	nowFn         func() int64
}

// NewEngine constructs a yield pool engine. The module address is the escrow
// account holding all staked principal.
func NewEngine(owner, moduleAddr crypto.Address) *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		owner:         owner,
		moduleAddress: moduleAddr,
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses installs the module pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// ModuleAddress returns the escrow account holding staked principal.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(poolEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Deposit escrows an allowed token under a lock and opens a new position. The
// returned id is 1-based and strictly increasing across the pool's lifetime.
func (e *Engine) Deposit(caller, token crypto.Address, amount *big.Int, lockDuration uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	list, err := e.state.GetAllowList()
	if err != nil {
		return 0, err
	}
	if !list.Contains(token) {
		return 0, ErrUnsupportedToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrZeroAmount
	}
	params, err := e.loadParams()
	if err != nil {
		return 0, err
	}
	if lockDuration < params.MinDuration || lockDuration > params.MaxDuration {
		return 0, ErrInvalidDuration
	}

	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return 0, err
	}
	if callerAcc.BalanceOf(token.String()).Cmp(amount) < 0 {
		return 0, ErrInsufficientBalance
	}

	now := e.now()

	stats, err := e.loadStats()
	if err != nil {
		return 0, err
	}
	existing, err := e.state.UserPositionIDs(caller)
	if err != nil {
		return 0, err
	}

	if err := e.transfer(caller, e.moduleAddress, token, amount); err != nil {
		return 0, err
	}

	position := &Position{
		ID:           stats.NextPositionID,
		Owner:        caller,
		Token:        token,
		Amount:       new(big.Int).Set(amount),
		LockDuration: lockDuration,
		StartTime:    now,
	}
	if err := e.state.PutPosition(position); err != nil {
		return 0, err
	}
	if err := e.state.AppendUserPositionID(caller, position.ID); err != nil {
		return 0, err
	}

	stats.NextPositionID++
	if len(existing) == 0 {
		stats.TotalStakers++
	}
	stats.TotalValueLocked = new(big.Int).Add(stats.TotalValueLocked, amount)
	if err := e.state.PutPoolStats(stats); err != nil {
		return 0, err
	}

	e.emit(NewDepositedEvent(caller, token, amount.String(), lockDuration))
	return position.ID, nil
}

// Withdraw closes a matured position, paying principal plus accrued yield.
func (e *Engine) Withdraw(caller crypto.Address, positionID uint64) (payout, yield *big.Int, err error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	position, err := e.state.GetPosition(positionID)
	if err != nil {
		return nil, nil, err
	}
	if position == nil {
		return nil, nil, ErrPositionNotFound
	}
	if !position.Owner.Equal(caller) {
		return nil, nil, ErrNotPositionOwner
	}
	now := e.now()
	if !position.Unlocked(now) {
		return nil, nil, ErrStillLocked
	}
	if position.Withdrawn {
		return nil, nil, ErrAlreadyWithdrawn
	}

	params, err := e.loadParams()
	if err != nil {
		return nil, nil, err
	}
	yield = computeYield(position.Amount, position.LockDuration, params.YieldRate)
	payout = new(big.Int).Add(position.Amount, yield)

	if err := e.payOut(position, payout); err != nil {
		return nil, nil, err
	}

	e.emit(NewWithdrawnEvent(position.Owner, position.Token, payout.String(), yield.String()))
	return payout, yield, nil
}

// Unstake exits a position before lock expiry. The payout is the principal
// minus a flat 10% penalty; accrued yield is forfeited entirely. The stored
// owner is checked first, so an unknown id surfaces the ownership error.
func (e *Engine) Unstake(caller crypto.Address, positionID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	position, err := e.state.GetPosition(positionID)
	if err != nil {
		return nil, err
	}
	if position == nil || !position.Owner.Equal(caller) {
		return nil, ErrNotPositionOwner
	}
	if position.Withdrawn {
		return nil, ErrAlreadyWithdrawn
	}

	penalty := new(big.Int).Quo(position.Amount, big.NewInt(unstakePenaltyDivisor))
	payout := new(big.Int).Sub(position.Amount, penalty)

	if err := e.payOut(position, payout); err != nil {
		return nil, err
	}

	e.emit(NewWithdrawnEvent(position.Owner, position.Token, payout.String(), "0"))
	return payout, nil
}

// payOut marks the position terminal, releases funds from the pool escrow and
// maintains the TVL aggregate.
func (e *Engine) payOut(position *Position, payout *big.Int) error {
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	if moduleAcc.BalanceOf(position.Token.String()).Cmp(payout) < 0 {
		return ErrInsufficientReserves
	}
	if err := e.transfer(e.moduleAddress, position.Owner, position.Token, payout); err != nil {
		return err
	}
	position.Withdrawn = true
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	stats, err := e.loadStats()
	if err != nil {
		return err
	}
	stats.TotalValueLocked = new(big.Int).Sub(stats.TotalValueLocked, position.Amount)
	if stats.TotalValueLocked.Sign() < 0 {
		stats.TotalValueLocked = big.NewInt(0)
	}
	return e.state.PutPoolStats(stats)
}

// CalculateExpectedYield previews the yield for a hypothetical deposit using
// the current pool rate. Pure; no state is touched beyond reading parameters.
func (e *Engine) CalculateExpectedYield(amount *big.Int, lockDuration uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	return computeYield(amount, lockDuration, params.YieldRate), nil
}

// computeYield implements floor(amount * duration * rate / (secondsPerYear * 100)).
func computeYield(amount *big.Int, lockDuration, yieldRate uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	yield := new(big.Int).Mul(amount, new(big.Int).SetUint64(lockDuration))
	yield.Mul(yield, new(big.Int).SetUint64(yieldRate))
	return yield.Quo(yield, big.NewInt(SecondsPerYear*100))
}

// UpdateYieldParameters replaces the pool-wide rate and lock bounds. Owner
// only.
func (e *Engine) UpdateYieldParameters(caller crypto.Address, yieldRate, minDuration, maxDuration uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !caller.Equal(e.owner) {
		return ErrUnauthorized
	}
	params := &Params{YieldRate: yieldRate, MinDuration: minDuration, MaxDuration: maxDuration}
	if err := e.state.PutPoolParams(params); err != nil {
		return err
	}
	e.emit(NewParametersUpdatedEvent(yieldRate, minDuration, maxDuration))
	return nil
}

// AddAllowedTokens allow-lists a token for staking. Adding an already-listed
// token is a no-op. Owner only.
func (e *Engine) AddAllowedTokens(caller, token crypto.Address) error {
	return e.mutateAllowList(caller, func(list *registry.AllowList) error {
		list.Add(token)
		e.emit(NewAllowListUpdatedEvent(token, true))
		return nil
	})
}

// RemoveAllowedToken drops a token from the allow-list, failing when it is not
// listed. Owner only.
func (e *Engine) RemoveAllowedToken(caller, token crypto.Address) error {
	return e.mutateAllowList(caller, func(list *registry.AllowList) error {
		if err := list.Remove(token); err != nil {
			return err
		}
		e.emit(NewAllowListUpdatedEvent(token, false))
		return nil
	})
}

// ModifyAllowedTokens forces a token's membership regardless of prior state.
// Owner only.
func (e *Engine) ModifyAllowedTokens(caller, token crypto.Address, allowed bool) error {
	return e.mutateAllowList(caller, func(list *registry.AllowList) error {
		list.Set(token, allowed)
		e.emit(NewAllowListUpdatedEvent(token, allowed))
		return nil
	})
}

func (e *Engine) mutateAllowList(caller crypto.Address, mutate func(*registry.AllowList) error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !caller.Equal(e.owner) {
		return ErrUnauthorized
	}
	list, err := e.state.GetAllowList()
	if err != nil {
		return err
	}
	if list == nil {
		list = registry.NewAllowList()
	}
	if err := mutate(list); err != nil {
		return err
	}
	return e.state.PutAllowList(list)
}

// GetPosition returns the position record for an id.
func (e *Engine) GetPosition(id uint64) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	position, err := e.state.GetPosition(id)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrPositionNotFound
	}
	return position.Clone(), nil
}

// GetUserTokenBalances sums the caller's non-withdrawn principal per token, in
// first-use order.
func (e *Engine) GetUserTokenBalances(owner crypto.Address) ([]TokenBalance, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	ids, err := e.state.UserPositionIDs(owner)
	if err != nil {
		return nil, err
	}
	var balances []TokenBalance
	index := make(map[string]int)
	for _, id := range ids {
		position, err := e.state.GetPosition(id)
		if err != nil {
			return nil, err
		}
		if position == nil || position.Withdrawn {
			continue
		}
		key := position.Token.String()
		if i, ok := index[key]; ok {
			balances[i].Balance = new(big.Int).Add(balances[i].Balance, position.Amount)
			continue
		}
		index[key] = len(balances)
		balances = append(balances, TokenBalance{
			Token:   position.Token,
			Balance: new(big.Int).Set(position.Amount),
		})
	}
	return balances, nil
}

// TotalStakers returns the number of principals that have ever deposited.
func (e *Engine) TotalStakers() (uint64, error) {
	stats, err := e.statsForRead()
	if err != nil {
		return 0, err
	}
	return stats.TotalStakers, nil
}

// TotalValueLocked returns the outstanding principal across all non-withdrawn
// positions.
func (e *Engine) TotalValueLocked() (*big.Int, error) {
	stats, err := e.statsForRead()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(stats.TotalValueLocked), nil
}

// AllowedTokens returns the staking allow-list in insertion order.
func (e *Engine) AllowedTokens() ([]crypto.Address, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	list, err := e.state.GetAllowList()
	if err != nil {
		return nil, err
	}
	return list.List(), nil
}

// IsTokenAllowed reports whether a token may be staked.
func (e *Engine) IsTokenAllowed(token crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	list, err := e.state.GetAllowList()
	if err != nil {
		return false, err
	}
	return list.Contains(token), nil
}

// YieldRate returns the current annual yield in whole percent.
func (e *Engine) YieldRate() (uint64, error) {
	params, err := e.paramsForRead()
	if err != nil {
		return 0, err
	}
	return params.YieldRate, nil
}

// MinStakeDuration returns the shortest accepted lock in seconds.
func (e *Engine) MinStakeDuration() (uint64, error) {
	params, err := e.paramsForRead()
	if err != nil {
		return 0, err
	}
	return params.MinDuration, nil
}

// MaxStakeDuration returns the longest accepted lock in seconds.
func (e *Engine) MaxStakeDuration() (uint64, error) {
	params, err := e.paramsForRead()
	if err != nil {
		return 0, err
	}
	return params.MaxDuration, nil
}

func (e *Engine) paramsForRead() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.loadParams()
}

func (e *Engine) statsForRead() (*Stats, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.loadStats()
}

func (e *Engine) loadParams() (*Params, error) {
	params, err := e.state.GetPoolParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = &Params{}
	}
	params.EnsureDefaults()
	return params, nil
}

func (e *Engine) loadStats() (*Stats, error) {
	stats, err := e.state.GetPoolStats()
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &Stats{}
	}
	stats.EnsureDefaults()
	return stats, nil
}

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = types.NewAccount()
	}
	return acc, nil
}

func (e *Engine) transfer(from, to crypto.Address, token crypto.Address, amount *big.Int) error {
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	key := token.String()
	fromBal := fromAcc.BalanceOf(key)
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.SetBalance(key, new(big.Int).Sub(fromBal, amount))
	toAcc.SetBalance(key, new(big.Int).Add(toAcc.BalanceOf(key), amount))
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

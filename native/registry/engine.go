package registry

import (
	"errors"
	"math/big"

	"yieldedu/core/events"
	"yieldedu/core/types"
	"yieldedu/crypto"
	nativecommon "yieldedu/native/common"
)

var (
	ErrNilState            = errors.New("token registry: state not configured")
	ErrUnauthorized        = errors.New("token registry: caller is not the owner")
	ErrUnauthorizedMinter  = errors.New("token registry: caller is not an authorized minter")
	ErrNotAMinter          = errors.New("token registry: address is not a minter")
	ErrInvalidAmount       = errors.New("token registry: amount must be positive")
	ErrInsufficientBalance = errors.New("token registry: insufficient balance")
)

const moduleName = "registry"

// PoolSeedAmount is the fixed mint paid into a pool by MintToPool:
// 10,000,000 whole tokens at 18 decimals.
var PoolSeedAmount, _ = new(big.Int).SetString("10000000000000000000000000", 10)

type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	GetMinters() ([]crypto.Address, error)
	PutMinters([]crypto.Address) error
	GetStudentFlag(addr crypto.Address) (bool, error)
	PutStudentFlag(addr crypto.Address, isStudent bool) error
	GetTokenSupply(token crypto.Address) (*big.Int, error)
	PutTokenSupply(token crypto.Address, supply *big.Int) error
}

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// Engine tracks the protocol token: metadata, balances, the minter role set
// and the per-address student flag. Mutations are owner- or minter-gated.
type Engine struct {
	state   engineState
	emitter events.Emitter
	owner   crypto.Address
	token   crypto.Address
	name    string
	symbol  string
	pauses  nativecommon.PauseView
}

// NewEngine constructs a registry engine for the protocol token identified by
// the given address.
func NewEngine(owner, token crypto.Address, name, symbol string) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		owner:   owner,
		token:   token,
		name:    name,
		symbol:  symbol,
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

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(registryEvent{evt: evt})
}

// Token returns the protocol token address.
func (e *Engine) Token() crypto.Address { return e.token }

// Name returns the token name.
func (e *Engine) Name() string { return e.name }

// Symbol returns the token symbol.
func (e *Engine) Symbol() string { return e.symbol }

// Decimals returns the fixed-point scale of all token amounts.
func (e *Engine) Decimals() uint8 { return 18 }

// Mint credits newly created protocol tokens to the recipient. The caller must
// be the owner or a registered minter.
func (e *Engine) Mint(caller, to crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	authorized, err := e.isMinter(caller)
	if err != nil {
		return err
	}
	if !caller.Equal(e.owner) && !authorized {
		return ErrUnauthorizedMinter
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.credit(to, amount); err != nil {
		return err
	}
	supply, err := e.state.GetTokenSupply(e.token)
	if err != nil {
		return err
	}
	if supply == nil {
		supply = big.NewInt(0)
	}
	if err := e.state.PutTokenSupply(e.token, new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	e.emit(NewMintedEvent(to, amount.String(), caller))
	return nil
}

// MintToPool seeds a pool account with the fixed launch allocation. Owner only.
func (e *Engine) MintToPool(caller, pool crypto.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !caller.Equal(e.owner) {
		return ErrUnauthorized
	}
	return e.Mint(caller, pool, new(big.Int).Set(PoolSeedAmount))
}

// Burn destroys protocol tokens held by an account. Owner only.
func (e *Engine) Burn(caller, from crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !caller.Equal(e.owner) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	acc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	balance := acc.BalanceOf(e.token.String())
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	acc.SetBalance(e.token.String(), new(big.Int).Sub(balance, amount))
	if err := e.state.PutAccount(from, acc); err != nil {
		return err
	}
	supply, err := e.state.GetTokenSupply(e.token)
	if err != nil {
		return err
	}
	if supply == nil {
		supply = big.NewInt(0)
	}
	supply = new(big.Int).Sub(supply, amount)
	if supply.Sign() < 0 {
		supply = big.NewInt(0)
	}
	if err := e.state.PutTokenSupply(e.token, supply); err != nil {
		return err
	}
	e.emit(NewBurnedEvent(from, amount.String()))
	return nil
}

// SetMinter grants or revokes the minter role. Owner only.
func (e *Engine) SetMinter(caller, minter crypto.Address, authorized bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !caller.Equal(e.owner) {
		return ErrUnauthorized
	}
	minters, err := e.state.GetMinters()
	if err != nil {
		return err
	}
	idx := -1
	for i, m := range minters {
		if m.Equal(minter) {
			idx = i
			break
		}
	}
	switch {
	case authorized && idx < 0:
		minters = append(minters, minter)
	case !authorized && idx >= 0:
		minters = append(minters[:idx], minters[idx+1:]...)
	}
	if err := e.state.PutMinters(minters); err != nil {
		return err
	}
	e.emit(NewMinterSetEvent(minter, authorized))
	return nil
}

// RemoveMinter revokes the minter role, failing when the address does not hold
// it. Owner only.
func (e *Engine) RemoveMinter(caller, minter crypto.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !caller.Equal(e.owner) {
		return ErrUnauthorized
	}
	authorized, err := e.isMinter(minter)
	if err != nil {
		return err
	}
	if !authorized {
		return ErrNotAMinter
	}
	return e.SetMinter(caller, minter, false)
}

// Minters returns the registered minter set in insertion order.
func (e *Engine) Minters() ([]crypto.Address, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.GetMinters()
}

// SetStudentStatus flags an address as a verified student. Owner only. The
// flag is informational and has no effect on ledger arithmetic.
func (e *Engine) SetStudentStatus(caller, addr crypto.Address, isStudent bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !caller.Equal(e.owner) {
		return ErrUnauthorized
	}
	return e.state.PutStudentFlag(addr, isStudent)
}

// IsStudent reports the student flag for an address.
func (e *Engine) IsStudent(addr crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	return e.state.GetStudentFlag(addr)
}

// BalanceOf returns the protocol token balance held by an address.
func (e *Engine) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	acc, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.BalanceOf(e.token.String()), nil
}

// TotalSupply returns the outstanding protocol token supply.
func (e *Engine) TotalSupply() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	supply, err := e.state.GetTokenSupply(e.token)
	if err != nil {
		return nil, err
	}
	if supply == nil {
		return big.NewInt(0), nil
	}
	return supply, nil
}

func (e *Engine) isMinter(addr crypto.Address) (bool, error) {
	minters, err := e.state.GetMinters()
	if err != nil {
		return false, err
	}
	for _, m := range minters {
		if m.Equal(addr) {
			return true, nil
		}
	}
	return false, nil
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

func (e *Engine) credit(addr crypto.Address, amount *big.Int) error {
	acc, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	balance := acc.BalanceOf(e.token.String())
	acc.SetBalance(e.token.String(), new(big.Int).Add(balance, amount))
	return e.state.PutAccount(addr, acc)
}

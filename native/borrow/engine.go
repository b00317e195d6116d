package borrow

import (
	"errors"
	"math/big"
	"time"

	"yieldedu/core/events"
	"yieldedu/core/types"
	"yieldedu/crypto"
	nativecommon "yieldedu/native/common"
)

var (
	ErrNilState              = errors.New("borrow protocol: state not configured")
	ErrNilAllowance          = errors.New("borrow protocol: token allowance source not configured")
	ErrUnauthorized          = errors.New("borrow protocol: caller is not the owner")
	ErrTokenNotAllowed       = errors.New("borrow protocol: token not allowed")
	ErrInvalidInterestRate   = errors.New("borrow protocol: interest rate must be positive")
	ErrCollateralTooLow      = errors.New("borrow protocol: collateral below required minimum")
	ErrZeroBorrowAmount      = errors.New("borrow protocol: borrow amount must be positive")
	ErrDurationTooShort      = errors.New("borrow protocol: duration below pool minimum")
	ErrHealthFactorTooLow    = errors.New("borrow protocol: health factor below minimum")
	ErrInsufficientLiquidity = errors.New("borrow protocol: not enough pool liquidity")
	ErrInsufficientBalance   = errors.New("borrow protocol: insufficient balance")
	ErrInvalidAmount         = errors.New("borrow protocol: amount must be positive")
	ErrLoanNotFound          = errors.New("borrow protocol: loan not found")
	ErrLoanNotActive         = errors.New("borrow protocol: loan already repaid")
	ErrLoanExpired           = errors.New("borrow protocol: loan expired")
	ErrThresholdTooHigh      = errors.New("borrow protocol: threshold must be <= 100%")
)

const moduleName = "borrow"

// SecondsPerYear is the accrual base for the simple interest formula.
const SecondsPerYear = 31_536_000

// TokenAllowance reports whether an asset is accepted by the protocol. In
// production this is the yield pool's allow-list, mirroring the on-chain
// coupling between the two pools.
type TokenAllowance interface {
	IsTokenAllowed(token crypto.Address) (bool, error)
}

type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	GetLoan(id uint64) (*Loan, error)
	PutLoan(loan *Loan) error
	LoanCount() (uint64, error)
	PutLoanCount(count uint64) error
	UserLoanIDs(user crypto.Address) ([]uint64, error)
	AppendUserLoanID(user crypto.Address, id uint64) error
	GetBorrowParams() (*Params, error)
	PutBorrowParams(params *Params) error
	GetPoolBalance(token crypto.Address) (*big.Int, error)
	PutPoolBalance(token crypto.Address, balance *big.Int) error
}

type borrowEvent struct {
	evt *types.Event
}

func (e borrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e borrowEvent) Event() *types.Event { return e.evt }

// Engine runs the collateralized borrow protocol: collateral in one allowed
// asset secures a loan of another, gated by a health-factor floor and pooled
// liquidity, settled by full repayment with simple interest.
type Engine struct {
	state             engineState
	emitter           events.Emitter
	allowance         TokenAllowance
	owner             crypto.Address
	moduleAddress     crypto.Address
	collateralAddress crypto.Address
	treasuryAddress   crypto.Address
	pauses            nativecommon.PauseView
	nowFn             func() int64
}

// NewEngine constructs a borrow engine. The module address holds borrowable
// liquidity, the collateral address escrows collateral, and the treasury
// receives repayments.
func NewEngine(owner, moduleAddr, collateralAddr, treasuryAddr crypto.Address) *Engine {
	return &Engine{
		emitter:           events.NoopEmitter{},
		owner:             owner,
		moduleAddress:     moduleAddr,
		collateralAddress: collateralAddr,
		treasuryAddress:   treasuryAddr,
		nowFn:             func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAllowance wires the asset allow-list consulted on borrow and funding.
func (e *Engine) SetAllowance(allowance TokenAllowance) { e.allowance = allowance }

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

// ModuleAddress returns the account holding borrowable liquidity.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

// CollateralAddress returns the collateral escrow account.
func (e *Engine) CollateralAddress() crypto.Address { return e.collateralAddress }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(borrowEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Borrow opens a loan: escrows collateral, pays the borrow amount from pool
// liquidity and records the loan under the caller. Precondition failures are
// checked in a fixed order so callers observe deterministic errors.
func (e *Engine) Borrow(caller, collateralToken crypto.Address, collateralAmount *big.Int, borrowToken crypto.Address, borrowAmount *big.Int, duration uint64, interestRate uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if e.allowance == nil {
		return 0, ErrNilAllowance
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if err := e.requireAllowed(collateralToken); err != nil {
		return 0, err
	}
	if err := e.requireAllowed(borrowToken); err != nil {
		return 0, err
	}
	if interestRate == 0 {
		return 0, ErrInvalidInterestRate
	}
	params, err := e.loadParams()
	if err != nil {
		return 0, err
	}
	if collateralAmount == nil || collateralAmount.Cmp(params.MinCollateralFor(collateralToken)) < 0 {
		return 0, ErrCollateralTooLow
	}
	if borrowAmount == nil || borrowAmount.Sign() <= 0 {
		return 0, ErrZeroBorrowAmount
	}
	if duration < params.MinimumDuration {
		return 0, ErrDurationTooShort
	}
	health := healthFactor(collateralAmount, borrowAmount, params.ThresholdFor(collateralToken))
	if health.Cmp(new(big.Int).SetUint64(params.MinHealthFactor)) < 0 {
		return 0, ErrHealthFactorTooLow
	}
	liquidity, err := e.loadPoolBalance(borrowToken)
	if err != nil {
		return 0, err
	}
	if liquidity.Cmp(borrowAmount) < 0 {
		return 0, ErrInsufficientLiquidity
	}

	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return 0, err
	}
	if callerAcc.BalanceOf(collateralToken.String()).Cmp(collateralAmount) < 0 {
		return 0, ErrInsufficientBalance
	}

	now := e.now()
	loanID, err := e.state.LoanCount()
	if err != nil {
		return 0, err
	}

	if err := e.transfer(caller, e.collateralAddress, collateralToken, collateralAmount); err != nil {
		return 0, err
	}
	if err := e.transfer(e.moduleAddress, caller, borrowToken, borrowAmount); err != nil {
		return 0, err
	}
	if err := e.state.PutPoolBalance(borrowToken, new(big.Int).Sub(liquidity, borrowAmount)); err != nil {
		return 0, err
	}

	loan := &Loan{
		ID:               loanID,
		User:             caller,
		CollateralToken:  collateralToken,
		CollateralAmount: new(big.Int).Set(collateralAmount),
		BorrowToken:      borrowToken,
		BorrowAmount:     new(big.Int).Set(borrowAmount),
		Duration:         duration,
		InterestRate:     interestRate,
		StartTime:        now,
		Active:           true,
	}
	if err := e.state.PutLoan(loan); err != nil {
		return 0, err
	}
	if err := e.state.AppendUserLoanID(caller, loanID); err != nil {
		return 0, err
	}
	if err := e.state.PutLoanCount(loanID + 1); err != nil {
		return 0, err
	}

	e.emit(NewCollateralDepositedEvent(caller, collateralToken, collateralAmount.String()))
	e.emit(NewLoanCreatedEvent(caller, loanID, borrowAmount.String(), borrowToken, duration))
	return loanID, nil
}

// PayLoan settles a loan in full: the borrower pays principal plus full-term
// interest into the treasury and the collateral is returned. Repayment does
// not replenish borrowable liquidity; only FundPool does.
func (e *Engine) PayLoan(caller crypto.Address, loanID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	loan, err := e.loadUserLoan(caller, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.Active {
		return nil, ErrLoanNotActive
	}
	now := e.now()
	if loan.Expired(now) {
		return nil, ErrLoanExpired
	}

	due := totalDue(loan)

	borrowerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}
	if borrowerAcc.BalanceOf(loan.BorrowToken.String()).Cmp(due) < 0 {
		return nil, ErrInsufficientBalance
	}

	if err := e.transfer(caller, e.treasuryAddress, loan.BorrowToken, due); err != nil {
		return nil, err
	}
	if err := e.transfer(e.collateralAddress, caller, loan.CollateralToken, loan.CollateralAmount); err != nil {
		return nil, err
	}

	loan.Active = false
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}

	e.emit(NewLoanRepaidEvent(caller, loanID, due.String()))
	e.emit(NewActiveLoanUpdatedEvent(loanID, false))
	return due, nil
}

// FundPool adds borrowable liquidity for an allowed token. Anyone may fund.
func (e *Engine) FundPool(caller, token crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.allowance == nil {
		return ErrNilAllowance
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireAllowed(token); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	if callerAcc.BalanceOf(token.String()).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.transfer(caller, e.moduleAddress, token, amount); err != nil {
		return err
	}
	balance, err := e.loadPoolBalance(token)
	if err != nil {
		return err
	}
	if err := e.state.PutPoolBalance(token, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	e.emit(NewPoolFundedEvent(caller, token, amount.String()))
	return nil
}

// SetMinHealthFactor updates the health-factor floor. Owner only.
func (e *Engine) SetMinHealthFactor(caller crypto.Address, min uint64) error {
	return e.mutateParams(caller, func(params *Params) error {
		params.MinHealthFactor = min
		return nil
	})
}

// SetLiquidationThreshold updates a token's threshold percent. Owner only;
// values above 100 are rejected.
func (e *Engine) SetLiquidationThreshold(caller, token crypto.Address, pct uint64) error {
	if pct > 100 {
		return ErrThresholdTooHigh
	}
	return e.mutateParams(caller, func(params *Params) error {
		params.LiquidationThresholds[token.String()] = pct
		return nil
	})
}

// SetMinCollateralAmount updates a token's minimum collateral. Owner only.
func (e *Engine) SetMinCollateralAmount(caller, token crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return e.mutateParams(caller, func(params *Params) error {
		params.MinCollateralAmounts[token.String()] = new(big.Int).Set(amount)
		return nil
	})
}

// SetMinimumDuration updates the pool-wide shortest loan term. Owner only.
func (e *Engine) SetMinimumDuration(caller crypto.Address, seconds uint64) error {
	return e.mutateParams(caller, func(params *Params) error {
		params.MinimumDuration = seconds
		return nil
	})
}

func (e *Engine) mutateParams(caller crypto.Address, mutate func(*Params) error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !caller.Equal(e.owner) {
		return ErrUnauthorized
	}
	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := mutate(params); err != nil {
		return err
	}
	return e.state.PutBorrowParams(params)
}

// UserLoans returns the caller's loans in append order.
func (e *Engine) UserLoans(user crypto.Address) ([]*Loan, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	ids, err := e.state.UserLoanIDs(user)
	if err != nil {
		return nil, err
	}
	loans := make([]*Loan, 0, len(ids))
	for _, id := range ids {
		loan, err := e.state.GetLoan(id)
		if err != nil {
			return nil, err
		}
		if loan == nil {
			continue
		}
		loans = append(loans, loan.Clone())
	}
	return loans, nil
}

// AllLoans returns every loan ever created in creation order, repaid ones
// included; callers filter on Active as needed.
func (e *Engine) AllLoans() ([]*Loan, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	count, err := e.state.LoanCount()
	if err != nil {
		return nil, err
	}
	loans := make([]*Loan, 0, count)
	for id := uint64(0); id < count; id++ {
		loan, err := e.state.GetLoan(id)
		if err != nil {
			return nil, err
		}
		if loan == nil {
			continue
		}
		loans = append(loans, loan.Clone())
	}
	return loans, nil
}

// HealthFactorSimulated previews the health factor for a hypothetical loan
// using the collateral token's current threshold. Pure.
func (e *Engine) HealthFactorSimulated(collateralAmount, borrowAmount *big.Int, collateralToken crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	return healthFactor(collateralAmount, borrowAmount, params.ThresholdFor(collateralToken)), nil
}

// TotalDue quotes the full repayment amount for a loan: principal plus simple
// interest over the whole term. The quote is time-independent, so repaying
// early never discounts interest.
func (e *Engine) TotalDue(user crypto.Address, loanID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	loan, err := e.loadUserLoan(user, loanID)
	if err != nil {
		return nil, err
	}
	return totalDue(loan), nil
}

// PoolBalance returns the borrowable liquidity recorded for a token.
func (e *Engine) PoolBalance(token crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.loadPoolBalance(token)
}

// MinHealthFactor returns the current health-factor floor.
func (e *Engine) MinHealthFactor() (uint64, error) {
	params, err := e.paramsForRead()
	if err != nil {
		return 0, err
	}
	return params.MinHealthFactor, nil
}

// LiquidationThreshold returns a token's threshold percent.
func (e *Engine) LiquidationThreshold(token crypto.Address) (uint64, error) {
	params, err := e.paramsForRead()
	if err != nil {
		return 0, err
	}
	return params.ThresholdFor(token), nil
}

// MinCollateralAmount returns a token's minimum collateral in wei.
func (e *Engine) MinCollateralAmount(token crypto.Address) (*big.Int, error) {
	params, err := e.paramsForRead()
	if err != nil {
		return nil, err
	}
	return params.MinCollateralFor(token), nil
}

// MinimumDuration returns the pool-wide shortest loan term in seconds.
func (e *Engine) MinimumDuration() (uint64, error) {
	params, err := e.paramsForRead()
	if err != nil {
		return 0, err
	}
	return params.MinimumDuration, nil
}

// healthFactor implements floor(collateral * threshold / borrow). The raw
// threshold percent multiplies the collateral without /100 normalisation,
// reproducing the deployed contract's arithmetic: collateral=1e18,
// borrow=5e18, threshold=80 gives 16.
func healthFactor(collateralAmount, borrowAmount *big.Int, threshold uint64) *big.Int {
	if collateralAmount == nil || borrowAmount == nil || borrowAmount.Sign() <= 0 {
		return big.NewInt(0)
	}
	health := new(big.Int).Mul(collateralAmount, new(big.Int).SetUint64(threshold))
	return health.Quo(health, borrowAmount)
}

// totalDue implements principal + floor(principal * rate * duration /
// (secondsPerYear * 100)).
func totalDue(loan *Loan) *big.Int {
	interest := new(big.Int).Mul(loan.BorrowAmount, new(big.Int).SetUint64(loan.InterestRate))
	interest.Mul(interest, new(big.Int).SetUint64(loan.Duration))
	interest.Quo(interest, big.NewInt(SecondsPerYear*100))
	return interest.Add(interest, loan.BorrowAmount)
}

func (e *Engine) requireAllowed(token crypto.Address) error {
	allowed, err := e.allowance.IsTokenAllowed(token)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrTokenNotAllowed
	}
	return nil
}

func (e *Engine) loadUserLoan(user crypto.Address, loanID uint64) (*Loan, error) {
	loan, err := e.state.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil || !loan.User.Equal(user) {
		return nil, ErrLoanNotFound
	}
	return loan, nil
}

func (e *Engine) loadParams() (*Params, error) {
	params, err := e.state.GetBorrowParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = &Params{}
	}
	params.EnsureDefaults()
	return params, nil
}

func (e *Engine) paramsForRead() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.loadParams()
}

func (e *Engine) loadPoolBalance(token crypto.Address) (*big.Int, error) {
	balance, err := e.state.GetPoolBalance(token)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
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

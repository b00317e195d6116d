package rpc

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"yieldedu/crypto"
)

type depositParams struct {
	Caller       string `json:"caller"`
	Token        string `json:"token"`
	Amount       string `json:"amount"`
	LockDuration uint64 `json:"lockDuration"`
}

type positionRefParams struct {
	Caller     string `json:"caller"`
	PositionID uint64 `json:"positionId"`
}

type yieldParamsUpdate struct {
	Caller      string `json:"caller"`
	YieldRate   uint64 `json:"yieldRate"`
	MinDuration uint64 `json:"minDuration"`
	MaxDuration uint64 `json:"maxDuration"`
}

type allowListUpdate struct {
	Caller  string `json:"caller"`
	Token   string `json:"token"`
	Allowed bool   `json:"allowed"`
}

type allowListEntry struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
}

type depositResult struct {
	PositionID uint64 `json:"positionId"`
}

type withdrawResult struct {
	Payout string `json:"payout"`
	Yield  string `json:"yield"`
}

type positionResult struct {
	ID           uint64 `json:"id"`
	Owner        string `json:"owner"`
	Token        string `json:"token"`
	Amount       string `json:"amount"`
	LockDuration uint64 `json:"lockDuration"`
	StartTime    int64  `json:"startTime"`
	Withdrawn    bool   `json:"withdrawn"`
}

type poolStatsResult struct {
	TotalStakers     uint64 `json:"totalStakers"`
	TotalValueLocked string `json:"totalValueLocked"`
}

type poolParamsResult struct {
	YieldRate   uint64 `json:"yieldRate"`
	MinDuration uint64 `json:"minDuration"`
	MaxDuration uint64 `json:"maxDuration"`
}

type tokenBalanceResult struct {
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var params depositParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var positionID uint64
	if err := s.ledger.Mutate(func() error {
		var err error
		positionID, err = s.pool.Deposit(caller, token, amount, params.LockDuration)
		return err
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, depositResult{PositionID: positionID})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var params positionRefParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var result withdrawResult
	if err := s.ledger.Mutate(func() error {
		payout, yield, err := s.pool.Withdraw(caller, params.PositionID)
		if err != nil {
			return err
		}
		result = withdrawResult{Payout: payout.String(), Yield: yield.String()}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var params positionRefParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var result withdrawResult
	if err := s.ledger.Mutate(func() error {
		payout, err := s.pool.Unstake(caller, params.PositionID)
		if err != nil {
			return err
		}
		result = withdrawResult{Payout: payout.String(), Yield: "0"}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateYieldParameters(w http.ResponseWriter, r *http.Request) {
	var params yieldParamsUpdate
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Mutate(func() error {
		return s.pool.UpdateYieldParameters(caller, params.YieldRate, params.MinDuration, params.MaxDuration)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

func (s *Server) handleModifyAllowList(w http.ResponseWriter, r *http.Request) {
	var params allowListUpdate
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Mutate(func() error {
		return s.pool.ModifyAllowedTokens(caller, token, params.Allowed)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

func (s *Server) handleAddAllowedToken(w http.ResponseWriter, r *http.Request) {
	s.mutateAllowList(w, r, s.pool.AddAllowedTokens)
}

func (s *Server) handleRemoveAllowedToken(w http.ResponseWriter, r *http.Request) {
	s.mutateAllowList(w, r, s.pool.RemoveAllowedToken)
}

func (s *Server) mutateAllowList(w http.ResponseWriter, r *http.Request, op func(caller, token crypto.Address) error) {
	var params allowListEntry
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Mutate(func() error {
		return op(caller, token)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

func (s *Server) handlePoolParams(w http.ResponseWriter, _ *http.Request) {
	var result poolParamsResult
	if err := s.ledger.View(func() error {
		rate, err := s.pool.YieldRate()
		if err != nil {
			return err
		}
		min, err := s.pool.MinStakeDuration()
		if err != nil {
			return err
		}
		max, err := s.pool.MaxStakeDuration()
		if err != nil {
			return err
		}
		result = poolParamsResult{YieldRate: rate, MinDuration: min, MaxDuration: max}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var result positionResult
	if err := s.ledger.View(func() error {
		position, err := s.pool.GetPosition(id)
		if err != nil {
			return err
		}
		result = positionResult{
			ID:           position.ID,
			Owner:        position.Owner.String(),
			Token:        position.Token.String(),
			Amount:       position.Amount.String(),
			LockDuration: position.LockDuration,
			StartTime:    position.StartTime,
			Withdrawn:    position.Withdrawn,
		}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUserTokenBalances(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	results := []tokenBalanceResult{}
	if err := s.ledger.View(func() error {
		balances, err := s.pool.GetUserTokenBalances(owner)
		if err != nil {
			return err
		}
		for _, balance := range balances {
			results = append(results, tokenBalanceResult{
				Token:   balance.Token.String(),
				Balance: balance.Balance.String(),
			})
		}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handlePoolStats(w http.ResponseWriter, _ *http.Request) {
	var result poolStatsResult
	if err := s.ledger.View(func() error {
		stakers, err := s.pool.TotalStakers()
		if err != nil {
			return err
		}
		tvl, err := s.pool.TotalValueLocked()
		if err != nil {
			return err
		}
		result = poolStatsResult{TotalStakers: stakers, TotalValueLocked: tvl.String()}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAllowedTokens(w http.ResponseWriter, _ *http.Request) {
	tokens := []string{}
	if err := s.ledger.View(func() error {
		allowed, err := s.pool.AllowedTokens()
		if err != nil {
			return err
		}
		for _, token := range allowed {
			tokens = append(tokens, token.String())
		}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tokens": tokens})
}

func (s *Server) handleIsTokenAllowed(w http.ResponseWriter, r *http.Request) {
	token, err := parseAddress(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var allowed bool
	if err := s.ledger.View(func() error {
		allowed, err = s.pool.IsTokenAllowed(token)
		return err
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (s *Server) handleExpectedYield(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	duration, err := strconv.ParseUint(r.URL.Query().Get("duration"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var yield string
	if err := s.ledger.View(func() error {
		expected, err := s.pool.CalculateExpectedYield(amount, duration)
		if err != nil {
			return err
		}
		yield = expected.String()
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"yield": yield})
}

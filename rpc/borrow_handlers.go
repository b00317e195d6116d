package rpc

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"yieldedu/native/borrow"
)

type borrowParams struct {
	Caller           string `json:"caller"`
	CollateralToken  string `json:"collateralToken"`
	CollateralAmount string `json:"collateralAmount"`
	BorrowToken      string `json:"borrowToken"`
	BorrowAmount     string `json:"borrowAmount"`
	Duration         uint64 `json:"duration"`
	InterestRate     uint64 `json:"interestRate"`
}

type repayParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
}

type fundParams struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type borrowParamsUpdate struct {
	Caller          string `json:"caller"`
	MinHealthFactor uint64 `json:"minHealthFactor,omitempty"`
	MinimumDuration uint64 `json:"minimumDuration,omitempty"`
	Token           string `json:"token,omitempty"`
	Threshold       uint64 `json:"liquidationThreshold,omitempty"`
	MinCollateral   string `json:"minCollateralAmount,omitempty"`
}

type borrowResult struct {
	LoanID uint64 `json:"loanId"`
}

type repayResult struct {
	TotalDue string `json:"totalDue"`
}

type loanResult struct {
	ID               uint64 `json:"loanId"`
	User             string `json:"user"`
	CollateralToken  string `json:"collateralToken"`
	CollateralAmount string `json:"collateralAmount"`
	BorrowToken      string `json:"borrowToken"`
	BorrowAmount     string `json:"borrowAmount"`
	Duration         uint64 `json:"duration"`
	InterestRate     uint64 `json:"interestRate"`
	StartTime        int64  `json:"startTime"`
	Active           bool   `json:"active"`
}

func loanToResult(loan *borrow.Loan) loanResult {
	return loanResult{
		ID:               loan.ID,
		User:             loan.User.String(),
		CollateralToken:  loan.CollateralToken.String(),
		CollateralAmount: loan.CollateralAmount.String(),
		BorrowToken:      loan.BorrowToken.String(),
		BorrowAmount:     loan.BorrowAmount.String(),
		Duration:         loan.Duration,
		InterestRate:     loan.InterestRate,
		StartTime:        loan.StartTime,
		Active:           loan.Active,
	}
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var params borrowParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	collateralToken, err := parseAddress(params.CollateralToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	collateralAmount, err := parseAmount(params.CollateralAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	borrowToken, err := parseAddress(params.BorrowToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	borrowAmount, err := parseAmount(params.BorrowAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var loanID uint64
	if err := s.ledger.Mutate(func() error {
		var err error
		loanID, err = s.borrow.Borrow(caller, collateralToken, collateralAmount, borrowToken, borrowAmount, params.Duration, params.InterestRate)
		return err
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, borrowResult{LoanID: loanID})
}

func (s *Server) handlePayLoan(w http.ResponseWriter, r *http.Request) {
	var params repayParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var result repayResult
	if err := s.ledger.Mutate(func() error {
		due, err := s.borrow.PayLoan(caller, params.LoanID)
		if err != nil {
			return err
		}
		result = repayResult{TotalDue: due.String()}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFundPool(w http.ResponseWriter, r *http.Request) {
	var params fundParams
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
	if err := s.ledger.Mutate(func() error {
		return s.borrow.FundPool(caller, token, amount)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

// handleSetBorrowParams applies the provided risk settings one at a time, in a
// fixed order, so a validation failure on a later field leaves earlier fields
// applied. Callers wanting atomicity send one field per request.
func (s *Server) handleSetBorrowParams(w http.ResponseWriter, r *http.Request) {
	var params borrowParamsUpdate
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Mutate(func() error {
		if params.MinHealthFactor > 0 {
			if err := s.borrow.SetMinHealthFactor(caller, params.MinHealthFactor); err != nil {
				return err
			}
		}
		if params.MinimumDuration > 0 {
			if err := s.borrow.SetMinimumDuration(caller, params.MinimumDuration); err != nil {
				return err
			}
		}
		if params.Token != "" {
			token, err := parseAddress(params.Token)
			if err != nil {
				return err
			}
			if params.Threshold > 0 {
				if err := s.borrow.SetLiquidationThreshold(caller, token, params.Threshold); err != nil {
					return err
				}
			}
			if params.MinCollateral != "" {
				amount, err := parseAmount(params.MinCollateral)
				if err != nil {
					return err
				}
				if err := s.borrow.SetMinCollateralAmount(caller, token, amount); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

func (s *Server) handleBorrowParams(w http.ResponseWriter, r *http.Request) {
	type result struct {
		MinHealthFactor      uint64 `json:"minHealthFactor"`
		MinimumDuration      uint64 `json:"minimumDuration"`
		LiquidationThreshold uint64 `json:"liquidationThreshold,omitempty"`
		MinCollateralAmount  string `json:"minCollateralAmount,omitempty"`
	}
	tokenRaw := r.URL.Query().Get("token")
	var out result
	if err := s.ledger.View(func() error {
		minHealth, err := s.borrow.MinHealthFactor()
		if err != nil {
			return err
		}
		minDuration, err := s.borrow.MinimumDuration()
		if err != nil {
			return err
		}
		out = result{MinHealthFactor: minHealth, MinimumDuration: minDuration}
		if tokenRaw != "" {
			token, err := parseAddress(tokenRaw)
			if err != nil {
				return err
			}
			threshold, err := s.borrow.LiquidationThreshold(token)
			if err != nil {
				return err
			}
			minCollateral, err := s.borrow.MinCollateralAmount(token)
			if err != nil {
				return err
			}
			out.LiquidationThreshold = threshold
			out.MinCollateralAmount = minCollateral.String()
		}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAllLoans(w http.ResponseWriter, _ *http.Request) {
	results := []loanResult{}
	if err := s.ledger.View(func() error {
		loans, err := s.borrow.AllLoans()
		if err != nil {
			return err
		}
		for _, loan := range loans {
			results = append(results, loanToResult(loan))
		}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleUserLoans(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	results := []loanResult{}
	if err := s.ledger.View(func() error {
		loans, err := s.borrow.UserLoans(user)
		if err != nil {
			return err
		}
		for _, loan := range loans {
			results = append(results, loanToResult(loan))
		}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleTotalDue(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := parseAddress(r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var due string
	if err := s.ledger.View(func() error {
		amount, err := s.borrow.TotalDue(user, id)
		if err != nil {
			return err
		}
		due = amount.String()
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repayResult{TotalDue: due})
}

func (s *Server) handlePoolBalance(w http.ResponseWriter, r *http.Request) {
	token, err := parseAddress(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var balance string
	if err := s.ledger.View(func() error {
		amount, err := s.borrow.PoolBalance(token)
		if err != nil {
			return err
		}
		balance = amount.String()
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResult{Amount: balance})
}

func (s *Server) handleHealthFactor(w http.ResponseWriter, r *http.Request) {
	collateralToken, err := parseAddress(r.URL.Query().Get("collateralToken"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	collateralAmount, err := parseAmount(r.URL.Query().Get("collateralAmount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	borrowAmount, err := parseAmount(r.URL.Query().Get("borrowAmount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var health string
	if err := s.ledger.View(func() error {
		factor, err := s.borrow.HealthFactorSimulated(collateralAmount, borrowAmount, collateralToken)
		if err != nil {
			return err
		}
		health = factor.String()
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"healthFactor": health})
}

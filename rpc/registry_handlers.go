package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type mintParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type mintToPoolParams struct {
	Caller string `json:"caller"`
	Pool   string `json:"pool"`
}

type burnParams struct {
	Caller string `json:"caller"`
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type minterParams struct {
	Caller string `json:"caller"`
	Minter string `json:"minter"`
}

type studentParams struct {
	Caller    string `json:"caller"`
	Address   string `json:"address"`
	IsStudent bool   `json:"isStudent"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

type statusResult struct {
	Status string `json:"status"`
}

var okResult = statusResult{Status: "ok"}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var params mintParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseAddress(params.To)
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
		return s.registry.Mint(caller, to, amount)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

func (s *Server) handleMintToPool(w http.ResponseWriter, r *http.Request) {
	var params mintToPoolParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Mutate(func() error {
		return s.registry.MintToPool(caller, pool)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var params burnParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	from, err := parseAddress(params.From)
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
		return s.registry.Burn(caller, from, amount)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

func (s *Server) handleSetMinter(w http.ResponseWriter, r *http.Request) {
	var params minterParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	minter, err := parseAddress(params.Minter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Mutate(func() error {
		return s.registry.SetMinter(caller, minter, true)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

func (s *Server) handleRemoveMinter(w http.ResponseWriter, r *http.Request) {
	var params minterParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	minter, err := parseAddress(params.Minter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Mutate(func() error {
		return s.registry.RemoveMinter(caller, minter)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

func (s *Server) handleMinters(w http.ResponseWriter, _ *http.Request) {
	var minters []string
	if err := s.ledger.View(func() error {
		addrs, err := s.registry.Minters()
		if err != nil {
			return err
		}
		minters = make([]string, 0, len(addrs))
		for _, addr := range addrs {
			minters = append(minters, addr.String())
		}
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"minters": minters})
}

func (s *Server) handleSetStudentStatus(w http.ResponseWriter, r *http.Request) {
	var params studentParams
	if !decodeBody(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ledger.Mutate(func() error {
		return s.registry.SetStudentStatus(caller, addr, params.IsStudent)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResult)
}

func (s *Server) handleIsStudent(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var isStudent bool
	if err := s.ledger.View(func() error {
		isStudent, err = s.registry.IsStudent(addr)
		return err
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isStudent": isStudent})
}

func (s *Server) handleBalanceOf(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var balance string
	if err := s.ledger.View(func() error {
		amount, err := s.registry.BalanceOf(addr)
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

func (s *Server) handleTotalSupply(w http.ResponseWriter, _ *http.Request) {
	var supply string
	if err := s.ledger.View(func() error {
		amount, err := s.registry.TotalSupply()
		if err != nil {
			return err
		}
		supply = amount.String()
		return nil
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResult{Amount: supply})
}

type tokenInfoResult struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Address  string `json:"address"`
}

func (s *Server) handleTokenInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, tokenInfoResult{
		Name:     s.registry.Name(),
		Symbol:   s.registry.Symbol(),
		Decimals: s.registry.Decimals(),
		Address:  s.registry.Token().String(),
	})
}

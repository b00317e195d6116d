package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"yieldedu/crypto"
	"yieldedu/native/borrow"
	nativecommon "yieldedu/native/common"
	"yieldedu/native/registry"
	"yieldedu/native/yieldpool"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, errorStatus(err), err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, params interface{}) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(params); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func parseAddress(raw string) (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(raw))
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount must not be empty")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, errors.New("amount must be a base-10 integer")
	}
	return amount, nil
}

// errorStatus maps engine sentinel errors onto HTTP status codes. Ownership
// failures are forbidden, missing records are not found, terminal or temporal
// state conflicts are conflicts, balance shortfalls are unprocessable, and
// everything else that validates input is a bad request.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnauthorized),
		errors.Is(err, registry.ErrUnauthorizedMinter),
		errors.Is(err, yieldpool.ErrUnauthorized),
		errors.Is(err, yieldpool.ErrNotPositionOwner),
		errors.Is(err, borrow.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, yieldpool.ErrPositionNotFound),
		errors.Is(err, borrow.ErrLoanNotFound),
		errors.Is(err, registry.ErrNotAMinter),
		errors.Is(err, registry.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, yieldpool.ErrStillLocked),
		errors.Is(err, yieldpool.ErrAlreadyWithdrawn),
		errors.Is(err, borrow.ErrLoanNotActive),
		errors.Is(err, borrow.ErrLoanExpired):
		return http.StatusConflict
	case errors.Is(err, registry.ErrInsufficientBalance),
		errors.Is(err, yieldpool.ErrInsufficientBalance),
		errors.Is(err, yieldpool.ErrInsufficientReserves),
		errors.Is(err, borrow.ErrInsufficientBalance),
		errors.Is(err, borrow.ErrInsufficientLiquidity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, registry.ErrInvalidAmount),
		errors.Is(err, yieldpool.ErrUnsupportedToken),
		errors.Is(err, yieldpool.ErrZeroAmount),
		errors.Is(err, yieldpool.ErrInvalidDuration),
		errors.Is(err, borrow.ErrTokenNotAllowed),
		errors.Is(err, borrow.ErrInvalidInterestRate),
		errors.Is(err, borrow.ErrCollateralTooLow),
		errors.Is(err, borrow.ErrZeroBorrowAmount),
		errors.Is(err, borrow.ErrDurationTooShort),
		errors.Is(err, borrow.ErrHealthFactorTooLow),
		errors.Is(err, borrow.ErrInvalidAmount),
		errors.Is(err, borrow.ErrThresholdTooHigh):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

package gpv2

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParam represents an invalid parameter error
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrUnsupportedNetwork is returned for chains without an orderbook
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrOrderbook represents a request rejected by the orderbook
	ErrOrderbook = errors.New("orderbook error")

	// ErrNoAccounts is returned when the wallet exposes no account
	ErrNoAccounts = errors.New("wallet returned no accounts")

	// ErrNoContracts is returned when an operation needs chain access
	// but the client was built without contracts
	ErrNoContracts = errors.New("contracts not configured")
)

// InvalidParamError represents an invalid parameter error with context
type InvalidParamError struct {
	Message string
}

func (e *InvalidParamError) Error() string {
	return e.Message
}

func (e *InvalidParamError) Unwrap() error {
	return ErrInvalidParam
}

// OrderbookError is a non-2xx orderbook response. Its message is the
// server supplied description so it can be shown to users unchanged.
type OrderbookError struct {
	StatusCode  int
	ErrorType   string
	Description string
}

func (e *OrderbookError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.ErrorType != "" {
		return e.ErrorType
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *OrderbookError) Unwrap() error {
	return ErrOrderbook
}

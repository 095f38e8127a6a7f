package app

import (
	"errors"
	"fmt"

	"github.com/transfa/bank-service/internal/store"
)

var (
	// Both wrap store.ErrAccountNotFound so callers can match either the side or the kind.
	ErrSourceAccountNotFound      = fmt.Errorf("source %w", store.ErrAccountNotFound)
	ErrDestinationAccountNotFound = fmt.Errorf("destination %w", store.ErrAccountNotFound)

	ErrNotEnoughBalance       = errors.New("not enough balance")
	ErrUnsupportedCurrency    = errors.New("transfers between accounts in different currencies are not supported")
	ErrSameAccount            = errors.New("source and destination accounts must differ")
	ErrAccountClosed          = errors.New("account is closed")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrAccountNumberExhausted = errors.New("could not generate a unique account number")
)

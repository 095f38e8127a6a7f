/**
 * @description
 * This file defines the account-side domain models for the bank-service: bank
 * accounts, the account types that carry commission rates, and currencies.
 * These structs map directly to the `accounts`, `account_types` and `currencies`
 * tables.
 *
 * @notes
 * - Money is held in `decimal.Decimal` at a fixed scale of two places; floats are
 *   never used for balances or rates.
 * - Relationships are plain foreign-key fields. Nothing here navigates to another
 *   entity; cross-entity reads go through the store.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// AccountNumberLength is the fixed length of an externally visible account number.
	AccountNumberLength = 20
	// MoneyScale is the number of decimal places every monetary value is kept at.
	MoneyScale = 2
)

// BankAccount represents a customer account in the ledger.
type BankAccount struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	OwnerID       int64           `json:"owner"`
	AccountTypeID int64           `json:"accountTypeId"`
	CurrencyCode  string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	Closed        bool            `json:"closed"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	// TransactionCommission is loaded from the account type together with the
	// account so the transfer engine never has to follow a reference.
	TransactionCommission decimal.Decimal `json:"-"`
}

// SameCurrency reports whether both accounts hold the same currency.
func (a *BankAccount) SameCurrency(other *BankAccount) bool {
	return a.CurrencyCode == other.CurrencyCode
}

// Ref returns the compact account reference embedded in transaction views.
func (a *BankAccount) Ref() AccountRef {
	return AccountRef{
		ID:      a.ID,
		Number:  a.Number,
		OwnerID: a.OwnerID,
		Balance: a.Balance,
	}
}

// AccountRef is the account summary rendered inside a transaction.
type AccountRef struct {
	ID      int64           `json:"id"`
	Number  string          `json:"number"`
	OwnerID int64           `json:"owner"`
	Balance decimal.Decimal `json:"balance"`
}

// AccountType groups accounts under a shared commission policy.
type AccountType struct {
	ID                    int64           `json:"id"`
	Name                  string          `json:"name"`
	TransactionCommission decimal.Decimal `json:"transactionCommission"`
	ExchangeCommission    decimal.Decimal `json:"currencyExchangeCommission"`
}

// Currency is an ISO-4217 currency an account can be opened in.
type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateAccountRequest is the DTO for provisioning a new bank account.
type CreateAccountRequest struct {
	OwnerID       int64  `json:"ownerId"`
	AccountTypeID int64  `json:"accountTypeId"`
	CurrencyCode  string `json:"currency"`
}

// BalanceAdjustmentRequest is the DTO for an administrative credit (positive
// amount) or debit (negative amount).
type BalanceAdjustmentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// AccountTypeRequest is the DTO for creating or updating an account type.
type AccountTypeRequest struct {
	Name                  string          `json:"name"`
	TransactionCommission decimal.Decimal `json:"transactionCommission"`
	ExchangeCommission    decimal.Decimal `json:"currencyExchangeCommission"`
}

// CurrencyRequest is the DTO for registering a currency.
type CurrencyRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

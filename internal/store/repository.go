/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the bank-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/shopspring/decimal: For balance values.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/transfa/bank-service/internal/domain"
)

var (
	ErrAccountNotFound          = errors.New("account not found")
	ErrAccountTypeNotFound      = errors.New("account type not found")
	ErrAccountTypeInUse         = errors.New("account type is in use by at least one account")
	ErrDuplicateAccountNumber   = errors.New("account number already exists")
	ErrDuplicateAccountTypeName = errors.New("account type name already exists")
	ErrDuplicateCurrency        = errors.New("currency already exists")
	ErrInvalidReference         = errors.New("referenced owner, account type or currency does not exist")
	ErrNegativeBalance          = errors.New("balance would become negative")

	// ErrConcurrencyConflict marks a transient failure caused by contention on the
	// same rows (deadlock, serialization failure, lock timeout). No write of the
	// failed unit of work has been applied, so the caller may retry.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)

// Repository defines the set of methods for interacting with the ledger.
type Repository interface {
	// WithinTransaction runs fn as one atomic unit of work. Every write made
	// through the LedgerTx commits together when fn returns nil and is rolled
	// back on any error.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error

	// Account methods
	FindAccountByID(ctx context.Context, id int64) (*domain.BankAccount, error)
	FindAccountByNumber(ctx context.Context, number string) (*domain.BankAccount, error)
	FindAccountsByOwner(ctx context.Context, ownerID int64) ([]domain.BankAccount, error)
	CreateAccount(ctx context.Context, account *domain.BankAccount) error
	CloseAccount(ctx context.Context, id int64) (*domain.BankAccount, error)
	FindNegativeBalanceAccounts(ctx context.Context) ([]domain.BankAccount, error)

	// Account type methods
	ListAccountTypes(ctx context.Context) ([]domain.AccountType, error)
	FindAccountTypeByID(ctx context.Context, id int64) (*domain.AccountType, error)
	CreateAccountType(ctx context.Context, accountType *domain.AccountType) error
	UpdateAccountType(ctx context.Context, accountType *domain.AccountType) error
	DeleteAccountType(ctx context.Context, id int64) error

	// Currency methods
	ListCurrencies(ctx context.Context) ([]domain.Currency, error)
	CreateCurrency(ctx context.Context, currency *domain.Currency) error

	// Transaction history methods, newest first
	FindAllTransactions(ctx context.Context) ([]domain.Transaction, error)
	FindTransactionsByAccountID(ctx context.Context, accountID int64) ([]domain.Transaction, error)
}

// LedgerTx is the view of the ledger available inside a unit of work.
type LedgerTx interface {
	FindAccountIDByNumber(ctx context.Context, number string) (int64, error)
	// LockAccounts locks the given accounts for the rest of the unit of work,
	// always in ascending id order, and returns them in that order.
	LockAccounts(ctx context.Context, ids ...int64) ([]*domain.BankAccount, error)
	UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	// InsertTransaction appends a ledger row and fills in its ID and CreatedAt.
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
}

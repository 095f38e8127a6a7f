/**
 * @description
 * This file contains the business logic for account provisioning and reference data,
 * implemented as an `AccountService`. It keeps the API handlers thin by owning
 * account number generation, administrative balance adjustments, and the account
 * type and currency catalogues.
 *
 * @notes
 * - Accounts are never hard-deleted; `CloseAccount` only flags them so their
 *   transaction history stays intact.
 * - `AdjustBalance` runs on a row-locked account inside a unit of work, the same
 *   way the transfer engine moves money.
 */
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/transfa/bank-service/internal/domain"
	"github.com/transfa/bank-service/internal/store"
)

const maxAccountNumberAttempts = 5

// AccountNumberGenerator produces candidate account numbers.
type AccountNumberGenerator func() (string, error)

// AccountService provides methods for managing accounts, account types and currencies.
type AccountService struct {
	repo           store.Repository
	generateNumber AccountNumberGenerator
}

// NewAccountService creates a new instance of AccountService.
func NewAccountService(repo store.Repository) *AccountService {
	return &AccountService{
		repo:           repo,
		generateNumber: RandomAccountNumber,
	}
}

// WithNumberGenerator replaces the account number source. Used by tests.
func (s *AccountService) WithNumberGenerator(gen AccountNumberGenerator) *AccountService {
	s.generateNumber = gen
	return s
}

// RandomAccountNumber returns a uniformly random 20-digit account number.
func RandomAccountNumber() (string, error) {
	buf := make([]byte, domain.AccountNumberLength)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	var sb strings.Builder
	sb.Grow(domain.AccountNumberLength)
	for _, b := range buf {
		// 250 is the largest multiple of 10 below 256; rejecting above it keeps digits uniform.
		for b >= 250 {
			var one [1]byte
			if _, err := io.ReadFull(rand.Reader, one[:]); err != nil {
				return "", fmt.Errorf("failed to read random bytes: %w", err)
			}
			b = one[0]
		}
		sb.WriteByte('0' + b%10)
	}
	return sb.String(), nil
}

// CreateAccount opens a zero-balance account with a freshly generated number.
func (s *AccountService) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.BankAccount, error) {
	if _, err := s.repo.FindAccountTypeByID(ctx, req.AccountTypeID); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxAccountNumberAttempts; attempt++ {
		number, err := s.generateNumber()
		if err != nil {
			return nil, err
		}

		account := &domain.BankAccount{
			Number:        number,
			OwnerID:       req.OwnerID,
			AccountTypeID: req.AccountTypeID,
			CurrencyCode:  req.CurrencyCode,
			Balance:       decimal.Zero,
		}
		err = s.repo.CreateAccount(ctx, account)
		if err == nil {
			log.Printf("level=info component=accounts msg=\"account created\" account_id=%d owner_id=%d currency=%s", account.ID, account.OwnerID, account.CurrencyCode)
			return account, nil
		}
		if !errors.Is(err, store.ErrDuplicateAccountNumber) {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		log.Printf("level=warn component=accounts msg=\"account number collision; regenerating\" attempt=%d", attempt)
	}
	return nil, ErrAccountNumberExhausted
}

// GetAccount returns the account with the given id.
func (s *AccountService) GetAccount(ctx context.Context, id int64) (*domain.BankAccount, error) {
	return s.repo.FindAccountByID(ctx, id)
}

// GetAccountByNumber returns the account with the given 20-digit number.
func (s *AccountService) GetAccountByNumber(ctx context.Context, number string) (*domain.BankAccount, error) {
	return s.repo.FindAccountByNumber(ctx, number)
}

// ListAccountsByOwner returns every account owned by the user, ordered by id.
func (s *AccountService) ListAccountsByOwner(ctx context.Context, ownerID int64) ([]domain.BankAccount, error) {
	return s.repo.FindAccountsByOwner(ctx, ownerID)
}

// CloseAccount marks an account as closed. Closed accounts cannot send or receive.
func (s *AccountService) CloseAccount(ctx context.Context, id int64) (*domain.BankAccount, error) {
	account, err := s.repo.CloseAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=accounts msg=\"account closed\" account_id=%d", id)
	return account, nil
}

// AdjustBalance applies an administrative credit (positive delta) or debit
// (negative delta) to an open account.
func (s *AccountService) AdjustBalance(ctx context.Context, id int64, req domain.BalanceAdjustmentRequest) (*domain.BankAccount, error) {
	var adjusted *domain.BankAccount

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		locked, err := tx.LockAccounts(ctx, id)
		if err != nil {
			return err
		}
		account := locked[0]
		if account.Closed {
			return ErrAccountClosed
		}

		next := account.Balance.Add(req.Amount)
		if next.IsNegative() {
			return ErrNotEnoughBalance
		}
		if err := tx.UpdateAccountBalance(ctx, account.ID, next); err != nil {
			return fmt.Errorf("failed to adjust balance: %w", err)
		}
		account.Balance = next
		adjusted = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=accounts msg=\"balance adjusted\" account_id=%d delta=%s reason=%q", id, req.Amount, req.Reason)
	return adjusted, nil
}

// ListAccountTypes returns every account type ordered by name.
func (s *AccountService) ListAccountTypes(ctx context.Context) ([]domain.AccountType, error) {
	return s.repo.ListAccountTypes(ctx)
}

// CreateAccountType registers a new commission policy.
func (s *AccountService) CreateAccountType(ctx context.Context, req domain.AccountTypeRequest) (*domain.AccountType, error) {
	accountType := &domain.AccountType{
		Name:                  strings.TrimSpace(req.Name),
		TransactionCommission: req.TransactionCommission,
		ExchangeCommission:    req.ExchangeCommission,
	}
	if err := s.repo.CreateAccountType(ctx, accountType); err != nil {
		return nil, err
	}
	return accountType, nil
}

// UpdateAccountType replaces the name and rates of an existing account type.
// New rates apply to transfers started after the update commits.
func (s *AccountService) UpdateAccountType(ctx context.Context, id int64, req domain.AccountTypeRequest) (*domain.AccountType, error) {
	accountType := &domain.AccountType{
		ID:                    id,
		Name:                  strings.TrimSpace(req.Name),
		TransactionCommission: req.TransactionCommission,
		ExchangeCommission:    req.ExchangeCommission,
	}
	if err := s.repo.UpdateAccountType(ctx, accountType); err != nil {
		return nil, err
	}
	return accountType, nil
}

// DeleteAccountType removes an account type no account refers to.
func (s *AccountService) DeleteAccountType(ctx context.Context, id int64) error {
	return s.repo.DeleteAccountType(ctx, id)
}

// ListCurrencies returns every registered currency ordered by code.
func (s *AccountService) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	return s.repo.ListCurrencies(ctx)
}

// CreateCurrency registers a currency accounts can be opened in.
func (s *AccountService) CreateCurrency(ctx context.Context, req domain.CurrencyRequest) (*domain.Currency, error) {
	currency := &domain.Currency{Code: req.Code, Name: strings.TrimSpace(req.Name)}
	if err := s.repo.CreateCurrency(ctx, currency); err != nil {
		return nil, err
	}
	return currency, nil
}

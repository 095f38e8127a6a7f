/**
 * @description
 * This file contains the transfer engine: the only code path that moves money
 * between two bank accounts. `TransferService` validates a transfer against both
 * accounts, computes the sender's commission and applies the debit, the credit and
 * the ledger insert as one unit of work.
 *
 * Key features:
 * - All business-rule checks run before the first write, on row-locked accounts.
 * - Locks are taken in ascending account id order (see store.LedgerTx).
 * - Contention failures (deadlock, lock timeout) are retried a bounded number of
 *   times; business failures are never retried.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/shopspring/decimal: For exact money arithmetic.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/bank-service/internal/domain"
	"github.com/transfa/bank-service/internal/store"
)

// TransferService provides the core money movement logic.
type TransferService struct {
	repo         store.Repository
	maxRetries   int
	retryBackoff time.Duration
}

// NewTransferService creates a new transfer engine. maxRetries bounds how many times
// a unit of work that lost a lock race is re-run before the conflict is surfaced.
func NewTransferService(repo store.Repository, maxRetries int, retryBackoff time.Duration) *TransferService {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TransferService{
		repo:         repo,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
	}
}

// CreateTransaction moves amount from the source account to the destination account.
// The sender pays amount plus commission; the destination receives exactly amount.
func (s *TransferService) CreateTransaction(ctx context.Context, amount decimal.Decimal, sourceNumber, destinationNumber string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	for attempt := 1; ; attempt++ {
		record, err := s.transfer(ctx, amount, sourceNumber, destinationNumber)
		if err == nil {
			log.Printf("level=info component=transfer msg=\"transfer committed\" transaction_id=%d source_account_id=%d destination_account_id=%d amount=%s commission=%s attempt=%d",
				record.ID, record.SourceAccount.ID, record.DestinationAccount.ID, record.Amount, record.Commission, attempt)
			return record, nil
		}
		if !errors.Is(err, store.ErrConcurrencyConflict) || attempt > s.maxRetries {
			return nil, err
		}

		log.Printf("level=warn component=transfer msg=\"transfer conflicted; retrying\" attempt=%d max_retries=%d err=%v", attempt, s.maxRetries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryBackoff * time.Duration(attempt)):
		}
	}
}

func (s *TransferService) transfer(ctx context.Context, amount decimal.Decimal, sourceNumber, destinationNumber string) (*domain.Transaction, error) {
	var record *domain.Transaction

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		// 1-2. Resolve both sides.
		sourceID, err := tx.FindAccountIDByNumber(ctx, sourceNumber)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				return ErrSourceAccountNotFound
			}
			return fmt.Errorf("failed to resolve source account: %w", err)
		}
		destinationID, err := tx.FindAccountIDByNumber(ctx, destinationNumber)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				return ErrDestinationAccountNotFound
			}
			return fmt.Errorf("failed to resolve destination account: %w", err)
		}
		if sourceID == destinationID {
			return ErrSameAccount
		}

		locked, err := tx.LockAccounts(ctx, sourceID, destinationID)
		if err != nil {
			return fmt.Errorf("failed to lock accounts: %w", err)
		}
		source, destination := pickAccounts(locked, sourceID, destinationID)
		if source == nil || destination == nil {
			return fmt.Errorf("failed to lock accounts: %w", store.ErrAccountNotFound)
		}
		if source.Closed || destination.Closed {
			return ErrAccountClosed
		}

		// 3. Cross-currency transfers fail closed.
		if !source.SameCurrency(destination) {
			return ErrUnsupportedCurrency
		}

		// 4-5. Commission is charged on the source side only.
		commission := Commission(amount, source.TransactionCommission)
		debit := amount.Add(commission)
		if source.Balance.LessThan(debit) {
			return ErrNotEnoughBalance
		}

		// 6. Debit, credit and ledger row commit together or not at all.
		source.Balance = source.Balance.Sub(debit)
		destination.Balance = destination.Balance.Add(amount)
		if err := tx.UpdateAccountBalance(ctx, source.ID, source.Balance); err != nil {
			return fmt.Errorf("failed to debit source account: %w", err)
		}
		if err := tx.UpdateAccountBalance(ctx, destination.ID, destination.Balance); err != nil {
			return fmt.Errorf("failed to credit destination account: %w", err)
		}

		record = &domain.Transaction{
			Amount:             amount,
			ReceivedAmount:     amount,
			Commission:         commission,
			SourceAccount:      source.Ref(),
			DestinationAccount: destination.Ref(),
		}
		if err := tx.InsertTransaction(ctx, record); err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func pickAccounts(accounts []*domain.BankAccount, sourceID, destinationID int64) (source, destination *domain.BankAccount) {
	for _, account := range accounts {
		switch account.ID {
		case sourceID:
			source = account
		case destinationID:
			destination = account
		}
	}
	return source, destination
}

// FindAll returns every transaction in the ledger, newest first.
func (s *TransferService) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.FindAllTransactions(ctx)
}

// FindAllByAccount returns the transactions in which the account is either the source
// or the destination, newest first.
func (s *TransferService) FindAllByAccount(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	if _, err := s.repo.FindAccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.FindTransactionsByAccountID(ctx, accountID)
}

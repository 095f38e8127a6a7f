/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed to read and mutate the `accounts`, `account_types`,
 * `currencies` and `transactions` tables.
 *
 * @dependencies
 * - context, errors, fmt, sort, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: NUMERIC columns are scanned into decimals.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/bank-service/internal/domain"
)

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

const accountColumns = `
	a.id, a.number, a.owner_id, a.account_type_id, a.currency_code, a.balance, a.closed,
	a.created_at, a.updated_at, t.transaction_commission
`

const transactionColumns = `
	tr.id, tr.created_at, tr.amount, tr.received_amount, tr.commission,
	s.id, s.number, s.owner_id, s.balance,
	d.id, d.number, d.owner_id, d.balance
`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresRepository creates a new instance of PostgresRepository. lockTimeout bounds
// how long a unit of work waits on a row lock; zero leaves the server default.
func NewPostgresRepository(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, lockTimeout: lockTimeout}
}

// WithinTransaction runs fn inside one read-committed database transaction.
func (r *PostgresRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classifyError(err))
	}
	// Rollback is a no-op once Commit succeeded.
	defer tx.Rollback(context.WithoutCancel(ctx))

	if r.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", classifyError(err))
		}
	}

	if err := fn(ctx, &pgLedgerTx{tx: tx}); err != nil {
		return classifyError(err)
	}

	// Once we get here the unit of work is no longer cancellable.
	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classifyError(err))
	}
	return nil
}

type pgLedgerTx struct {
	tx pgx.Tx
}

// FindAccountIDByNumber resolves an account number without taking a lock.
func (t *pgLedgerTx) FindAccountIDByNumber(ctx context.Context, number string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, "SELECT id FROM accounts WHERE number = $1", number).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return id, nil
}

// LockAccounts takes row locks one account at a time in ascending id order so two
// transfers over the same pair of accounts can never wait on each other in a cycle.
func (t *pgLedgerTx) LockAccounts(ctx context.Context, ids ...int64) ([]*domain.BankAccount, error) {
	ordered := uniqueSorted(ids)
	query := `SELECT ` + accountColumns + `
		FROM accounts a
		JOIN account_types t ON t.id = a.account_type_id
		WHERE a.id = $1
		FOR UPDATE OF a`

	accounts := make([]*domain.BankAccount, 0, len(ordered))
	for _, id := range ordered {
		account, err := scanAccount(t.tx.QueryRow(ctx, query, id))
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// UpdateAccountBalance writes a new balance for a locked account.
func (t *pgLedgerTx) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrNegativeBalance
	}
	result, err := t.tx.Exec(ctx, "UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2", balance, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// InsertTransaction appends a new row to the transaction ledger.
func (t *pgLedgerTx) InsertTransaction(ctx context.Context, record *domain.Transaction) error {
	query := `
		INSERT INTO transactions (amount, received_amount, commission, source_account_id, destination_account_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return t.tx.QueryRow(ctx, query,
		record.Amount,
		record.ReceivedAmount,
		record.Commission,
		record.SourceAccount.ID,
		record.DestinationAccount.ID,
	).Scan(&record.ID, &record.CreatedAt)
}

// FindAccountByID retrieves an account together with its commission rate.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, id int64) (*domain.BankAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a JOIN account_types t ON t.id = a.account_type_id WHERE a.id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// FindAccountByNumber retrieves an account by its external number.
func (r *PostgresRepository) FindAccountByNumber(ctx context.Context, number string) (*domain.BankAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a JOIN account_types t ON t.id = a.account_type_id WHERE a.number = $1`
	return scanAccount(r.db.QueryRow(ctx, query, number))
}

// FindAccountsByOwner lists every account held by one user.
func (r *PostgresRepository) FindAccountsByOwner(ctx context.Context, ownerID int64) ([]domain.BankAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts a
		JOIN account_types t ON t.id = a.account_type_id
		WHERE a.owner_id = $1
		ORDER BY a.id`
	return r.queryAccounts(ctx, query, ownerID)
}

// FindNegativeBalanceAccounts returns accounts violating the non-negative balance invariant.
// The table CHECK constraint should keep this empty; the audit job reports anything found.
func (r *PostgresRepository) FindNegativeBalanceAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts a
		JOIN account_types t ON t.id = a.account_type_id
		WHERE a.balance < 0
		ORDER BY a.id`
	return r.queryAccounts(ctx, query)
}

func (r *PostgresRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]domain.BankAccount, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []domain.BankAccount{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// CreateAccount inserts a new zero-balance account record into the database.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.BankAccount) error {
	query := `
		INSERT INTO accounts (number, owner_id, account_type_id, currency_code, balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		account.Number,
		account.OwnerID,
		account.AccountTypeID,
		account.CurrencyCode,
		account.Balance,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return ErrDuplicateAccountNumber
			case pgForeignKeyViolation:
				return ErrInvalidReference
			}
		}
		return err
	}
	return nil
}

// CloseAccount flags an account as closed. Closed accounts are kept for history.
func (r *PostgresRepository) CloseAccount(ctx context.Context, id int64) (*domain.BankAccount, error) {
	result, err := r.db.Exec(ctx, "UPDATE accounts SET closed = true, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		return nil, ErrAccountNotFound
	}
	return r.FindAccountByID(ctx, id)
}

// ListAccountTypes returns all account types ordered by name.
func (r *PostgresRepository) ListAccountTypes(ctx context.Context) ([]domain.AccountType, error) {
	query := `SELECT id, name, transaction_commission, exchange_commission FROM account_types ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := []domain.AccountType{}
	for rows.Next() {
		var at domain.AccountType
		if err := rows.Scan(&at.ID, &at.Name, &at.TransactionCommission, &at.ExchangeCommission); err != nil {
			return nil, err
		}
		types = append(types, at)
	}
	return types, rows.Err()
}

// FindAccountTypeByID retrieves one account type.
func (r *PostgresRepository) FindAccountTypeByID(ctx context.Context, id int64) (*domain.AccountType, error) {
	var at domain.AccountType
	query := `SELECT id, name, transaction_commission, exchange_commission FROM account_types WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&at.ID, &at.Name, &at.TransactionCommission, &at.ExchangeCommission)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountTypeNotFound
		}
		return nil, err
	}
	return &at, nil
}

// CreateAccountType inserts a new account type.
func (r *PostgresRepository) CreateAccountType(ctx context.Context, at *domain.AccountType) error {
	query := `
		INSERT INTO account_types (name, transaction_commission, exchange_commission)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, at.Name, at.TransactionCommission, at.ExchangeCommission).Scan(&at.ID)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return ErrDuplicateAccountTypeName
		}
		return err
	}
	return nil
}

// UpdateAccountType replaces the name and commission rates of an account type.
func (r *PostgresRepository) UpdateAccountType(ctx context.Context, at *domain.AccountType) error {
	query := `UPDATE account_types SET name = $1, transaction_commission = $2, exchange_commission = $3 WHERE id = $4`
	result, err := r.db.Exec(ctx, query, at.Name, at.TransactionCommission, at.ExchangeCommission, at.ID)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return ErrDuplicateAccountTypeName
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountTypeNotFound
	}
	return nil
}

// DeleteAccountType removes an account type that no account references.
func (r *PostgresRepository) DeleteAccountType(ctx context.Context, id int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var inUse bool
	err = tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE account_type_id = $1)", id).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse {
		return ErrAccountTypeInUse
	}

	result, err := tx.Exec(ctx, "DELETE FROM account_types WHERE id = $1", id)
	if err != nil {
		// An account created between the check and the delete trips the FK.
		if isPgCode(err, pgForeignKeyViolation) {
			return ErrAccountTypeInUse
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountTypeNotFound
	}
	return tx.Commit(ctx)
}

// ListCurrencies returns all registered currencies ordered by code.
func (r *PostgresRepository) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	rows, err := r.db.Query(ctx, "SELECT code, name FROM currencies ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	currencies := []domain.Currency{}
	for rows.Next() {
		var c domain.Currency
		if err := rows.Scan(&c.Code, &c.Name); err != nil {
			return nil, err
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}

// CreateCurrency registers a currency code.
func (r *PostgresRepository) CreateCurrency(ctx context.Context, currency *domain.Currency) error {
	_, err := r.db.Exec(ctx, "INSERT INTO currencies (code, name) VALUES ($1, $2)", currency.Code, currency.Name)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return ErrDuplicateCurrency
		}
		return err
	}
	return nil
}

// FindAllTransactions retrieves the whole transaction ledger, newest first.
func (r *PostgresRepository) FindAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions tr
		JOIN accounts s ON s.id = tr.source_account_id
		JOIN accounts d ON d.id = tr.destination_account_id
		ORDER BY tr.created_at DESC, tr.id DESC`
	return r.queryTransactions(ctx, query)
}

// FindTransactionsByAccountID retrieves all transactions where the account is the
// source or the destination, newest first.
func (r *PostgresRepository) FindTransactionsByAccountID(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions tr
		JOIN accounts s ON s.id = tr.source_account_id
		JOIN accounts d ON d.id = tr.destination_account_id
		WHERE tr.source_account_id = $1 OR tr.destination_account_id = $1
		ORDER BY tr.created_at DESC, tr.id DESC`
	return r.queryTransactions(ctx, query, accountID)
}

func (r *PostgresRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(
			&tx.ID, &tx.CreatedAt, &tx.Amount, &tx.ReceivedAmount, &tx.Commission,
			&tx.SourceAccount.ID, &tx.SourceAccount.Number, &tx.SourceAccount.OwnerID, &tx.SourceAccount.Balance,
			&tx.DestinationAccount.ID, &tx.DestinationAccount.Number, &tx.DestinationAccount.OwnerID, &tx.DestinationAccount.Balance,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.BankAccount, error) {
	var account domain.BankAccount
	err := row.Scan(
		&account.ID,
		&account.Number,
		&account.OwnerID,
		&account.AccountTypeID,
		&account.CurrencyCode,
		&account.Balance,
		&account.Closed,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.TransactionCommission,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// classifyError maps contention failures onto ErrConcurrencyConflict and a
// violated balance CHECK onto ErrNegativeBalance. Other errors pass through.
func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return fmt.Errorf("%w: %s (sqlstate %s)", ErrConcurrencyConflict, pgErr.Message, pgErr.Code)
	case pgCheckViolation:
		if pgErr.ConstraintName == "accounts_balance_check" {
			return fmt.Errorf("%w: %s", ErrNegativeBalance, pgErr.Message)
		}
	}
	return err
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

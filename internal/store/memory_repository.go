package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/bank-service/internal/domain"
)

// MemoryRepository is an in-process Repository. Units of work are serialized by a
// single mutex and their writes are staged until fn returns, so a failing unit of
// work leaves no trace. Owners are not tracked; any positive owner id is accepted.
type MemoryRepository struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	nextAccountID     int64
	nextAccountTypeID int64
	nextTransactionID int64

	accounts     map[int64]domain.BankAccount
	byNumber     map[string]int64
	accountTypes map[int64]domain.AccountType
	currencies   map[string]domain.Currency
	transactions []memTransaction
}

type memTransaction struct {
	id            int64
	createdAt     time.Time
	amount        decimal.Decimal
	received      decimal.Decimal
	commission    decimal.Decimal
	sourceID      int64
	destinationID int64
}

// NewMemoryRepository returns an empty in-memory ledger.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:     map[int64]domain.BankAccount{},
		byNumber:     map[string]int64{},
		accountTypes: map[int64]domain.AccountType{},
		currencies:   map[string]domain.Currency{},
	}
}

// WithinTransaction runs fn with exclusive access to the ledger and applies its
// staged writes only when fn succeeds.
func (r *MemoryRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memLedgerTx{repo: r, balances: map[int64]decimal.Decimal{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for id, balance := range tx.balances {
		account := r.accounts[id]
		account.Balance = balance
		account.UpdatedAt = now
		r.accounts[id] = account
	}
	r.transactions = append(r.transactions, tx.inserts...)
	return nil
}

type memLedgerTx struct {
	repo     *MemoryRepository
	balances map[int64]decimal.Decimal
	inserts  []memTransaction
}

func (t *memLedgerTx) FindAccountIDByNumber(ctx context.Context, number string) (int64, error) {
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	id, ok := t.repo.byNumber[number]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return id, nil
}

func (t *memLedgerTx) LockAccounts(ctx context.Context, ids ...int64) ([]*domain.BankAccount, error) {
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()

	ordered := uniqueSorted(ids)
	accounts := make([]*domain.BankAccount, 0, len(ordered))
	for _, id := range ordered {
		account, ok := t.repo.accountLocked(id)
		if !ok {
			return nil, ErrAccountNotFound
		}
		if staged, ok := t.balances[id]; ok {
			account.Balance = staged
		}
		accounts = append(accounts, &account)
	}
	return accounts, nil
}

func (t *memLedgerTx) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrNegativeBalance
	}
	t.repo.mu.RLock()
	_, ok := t.repo.accounts[id]
	t.repo.mu.RUnlock()
	if !ok {
		return ErrAccountNotFound
	}
	t.balances[id] = balance
	return nil
}

func (t *memLedgerTx) InsertTransaction(ctx context.Context, record *domain.Transaction) error {
	t.repo.mu.Lock()
	t.repo.nextTransactionID++
	id := t.repo.nextTransactionID
	t.repo.mu.Unlock()

	record.ID = id
	record.CreatedAt = time.Now().UTC()
	t.inserts = append(t.inserts, memTransaction{
		id:            record.ID,
		createdAt:     record.CreatedAt,
		amount:        record.Amount,
		received:      record.ReceivedAmount,
		commission:    record.Commission,
		sourceID:      record.SourceAccount.ID,
		destinationID: record.DestinationAccount.ID,
	})
	return nil
}

// accountLocked returns a copy of the account with its type's commission; r.mu must be held.
func (r *MemoryRepository) accountLocked(id int64) (domain.BankAccount, bool) {
	account, ok := r.accounts[id]
	if !ok {
		return domain.BankAccount{}, false
	}
	account.TransactionCommission = r.accountTypes[account.AccountTypeID].TransactionCommission
	return account, true
}

func (r *MemoryRepository) FindAccountByID(ctx context.Context, id int64) (*domain.BankAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accountLocked(id)
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (r *MemoryRepository) FindAccountByNumber(ctx context.Context, number string) (*domain.BankAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byNumber[number]
	if !ok {
		return nil, ErrAccountNotFound
	}
	account, _ := r.accountLocked(id)
	return &account, nil
}

func (r *MemoryRepository) FindAccountsByOwner(ctx context.Context, ownerID int64) ([]domain.BankAccount, error) {
	return r.filterAccounts(func(a domain.BankAccount) bool { return a.OwnerID == ownerID }), nil
}

func (r *MemoryRepository) FindNegativeBalanceAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	return r.filterAccounts(func(a domain.BankAccount) bool { return a.Balance.IsNegative() }), nil
}

func (r *MemoryRepository) filterAccounts(keep func(domain.BankAccount) bool) []domain.BankAccount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.BankAccount{}
	for id := range r.accounts {
		account, _ := r.accountLocked(id)
		if keep(account) {
			out = append(out, account)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, account *domain.BankAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byNumber[account.Number]; ok {
		return ErrDuplicateAccountNumber
	}
	if _, ok := r.accountTypes[account.AccountTypeID]; !ok {
		return ErrInvalidReference
	}
	if _, ok := r.currencies[account.CurrencyCode]; !ok {
		return ErrInvalidReference
	}
	if account.OwnerID <= 0 {
		return ErrInvalidReference
	}
	if account.Balance.IsNegative() {
		return ErrNegativeBalance
	}

	r.nextAccountID++
	now := time.Now().UTC()
	account.ID = r.nextAccountID
	account.CreatedAt = now
	account.UpdatedAt = now
	account.TransactionCommission = r.accountTypes[account.AccountTypeID].TransactionCommission
	r.accounts[account.ID] = *account
	r.byNumber[account.Number] = account.ID
	return nil
}

func (r *MemoryRepository) CloseAccount(ctx context.Context, id int64) (*domain.BankAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	account.Closed = true
	account.UpdatedAt = time.Now().UTC()
	r.accounts[id] = account
	closed, _ := r.accountLocked(id)
	return &closed, nil
}

func (r *MemoryRepository) ListAccountTypes(ctx context.Context) ([]domain.AccountType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AccountType, 0, len(r.accountTypes))
	for _, at := range r.accountTypes {
		out = append(out, at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) FindAccountTypeByID(ctx context.Context, id int64) (*domain.AccountType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	at, ok := r.accountTypes[id]
	if !ok {
		return nil, ErrAccountTypeNotFound
	}
	return &at, nil
}

func (r *MemoryRepository) CreateAccountType(ctx context.Context, at *domain.AccountType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.accountTypeNameTakenLocked(at.Name, 0) {
		return ErrDuplicateAccountTypeName
	}
	r.nextAccountTypeID++
	at.ID = r.nextAccountTypeID
	r.accountTypes[at.ID] = *at
	return nil
}

func (r *MemoryRepository) UpdateAccountType(ctx context.Context, at *domain.AccountType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accountTypes[at.ID]; !ok {
		return ErrAccountTypeNotFound
	}
	if r.accountTypeNameTakenLocked(at.Name, at.ID) {
		return ErrDuplicateAccountTypeName
	}
	r.accountTypes[at.ID] = *at
	return nil
}

func (r *MemoryRepository) accountTypeNameTakenLocked(name string, exceptID int64) bool {
	for id, existing := range r.accountTypes {
		if id != exceptID && strings.EqualFold(existing.Name, name) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) DeleteAccountType(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accountTypes[id]; !ok {
		return ErrAccountTypeNotFound
	}
	for _, account := range r.accounts {
		if account.AccountTypeID == id {
			return ErrAccountTypeInUse
		}
	}
	delete(r.accountTypes, id)
	return nil
}

func (r *MemoryRepository) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *MemoryRepository) CreateCurrency(ctx context.Context, currency *domain.Currency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.currencies[currency.Code]; ok {
		return ErrDuplicateCurrency
	}
	r.currencies[currency.Code] = *currency
	return nil
}

func (r *MemoryRepository) FindAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return r.filterTransactions(func(memTransaction) bool { return true }), nil
}

func (r *MemoryRepository) FindTransactionsByAccountID(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	return r.filterTransactions(func(t memTransaction) bool {
		return t.sourceID == accountID || t.destinationID == accountID
	}), nil
}

func (r *MemoryRepository) filterTransactions(keep func(memTransaction) bool) []domain.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Transaction{}
	for _, t := range r.transactions {
		if !keep(t) {
			continue
		}
		source := r.accounts[t.sourceID]
		destination := r.accounts[t.destinationID]
		out = append(out, domain.Transaction{
			ID:                 t.id,
			CreatedAt:          t.createdAt,
			Amount:             t.amount,
			ReceivedAmount:     t.received,
			Commission:         t.commission,
			SourceAccount:      source.Ref(),
			DestinationAccount: destination.Ref(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

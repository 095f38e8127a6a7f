package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/transfa/bank-service/internal/domain"
	"github.com/transfa/bank-service/internal/store"
)

const (
	ownerAlice int64 = 1
	ownerBob   int64 = 2
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger(t *testing.T) *store.MemoryRepository {
	t.Helper()
	repo := store.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreateCurrency(ctx, &domain.Currency{Code: "USD", Name: "US Dollar"}))
	require.NoError(t, repo.CreateCurrency(ctx, &domain.Currency{Code: "EUR", Name: "Euro"}))
	return repo
}

func addAccountType(t *testing.T, repo store.Repository, name, rate string) int64 {
	t.Helper()
	at := &domain.AccountType{Name: name, TransactionCommission: dec(rate), ExchangeCommission: decimal.Zero}
	require.NoError(t, repo.CreateAccountType(context.Background(), at))
	return at.ID
}

func addAccount(t *testing.T, repo store.Repository, number string, owner, typeID int64, currency, balance string) *domain.BankAccount {
	t.Helper()
	account := &domain.BankAccount{
		Number:        number,
		OwnerID:       owner,
		AccountTypeID: typeID,
		CurrencyCode:  currency,
		Balance:       dec(balance),
	}
	require.NoError(t, repo.CreateAccount(context.Background(), account))
	return account
}

func balanceOf(t *testing.T, repo store.Repository, id int64) string {
	t.Helper()
	account, err := repo.FindAccountByID(context.Background(), id)
	require.NoError(t, err)
	return account.Balance.StringFixed(domain.MoneyScale)
}

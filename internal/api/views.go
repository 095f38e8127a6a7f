package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/bank-service/internal/domain"
)

// Response views render money as fixed two-place strings so clients never see
// float rounding or varying scale.

type accountRefView struct {
	ID      int64  `json:"id"`
	Number  string `json:"number"`
	Owner   int64  `json:"owner"`
	Balance string `json:"balance"`
}

type transactionView struct {
	ID                     int64          `json:"id"`
	Datetime               time.Time      `json:"datetime"`
	Amount                 string         `json:"amount"`
	ReceivedAmount         string         `json:"receivedAmount"`
	Commission             string         `json:"commission"`
	SourceBankAccount      accountRefView `json:"sourceBankAccount"`
	DestinationBankAccount accountRefView `json:"destinationBankAccount"`
}

type accountView struct {
	ID            int64     `json:"id"`
	Number        string    `json:"number"`
	Owner         int64     `json:"owner"`
	AccountTypeID int64     `json:"accountTypeId"`
	Currency      string    `json:"currency"`
	Balance       string    `json:"balance"`
	Closed        bool      `json:"closed"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type accountTypeView struct {
	ID                         int64  `json:"id"`
	Name                       string `json:"name"`
	TransactionCommission      string `json:"transactionCommission"`
	CurrencyExchangeCommission string `json:"currencyExchangeCommission"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}

func newAccountRefView(ref domain.AccountRef) accountRefView {
	return accountRefView{
		ID:      ref.ID,
		Number:  ref.Number,
		Owner:   ref.OwnerID,
		Balance: money(ref.Balance),
	}
}

func newTransactionView(tx domain.Transaction) transactionView {
	return transactionView{
		ID:                     tx.ID,
		Datetime:               tx.CreatedAt,
		Amount:                 money(tx.Amount),
		ReceivedAmount:         money(tx.ReceivedAmount),
		Commission:             money(tx.Commission),
		SourceBankAccount:      newAccountRefView(tx.SourceAccount),
		DestinationBankAccount: newAccountRefView(tx.DestinationAccount),
	}
}

func newTransactionViews(txs []domain.Transaction) []transactionView {
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, newTransactionView(tx))
	}
	return views
}

func newAccountView(a *domain.BankAccount) accountView {
	return accountView{
		ID:            a.ID,
		Number:        a.Number,
		Owner:         a.OwnerID,
		AccountTypeID: a.AccountTypeID,
		Currency:      a.CurrencyCode,
		Balance:       money(a.Balance),
		Closed:        a.Closed,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func newAccountViews(accounts []domain.BankAccount) []accountView {
	views := make([]accountView, 0, len(accounts))
	for i := range accounts {
		views = append(views, newAccountView(&accounts[i]))
	}
	return views
}

func newAccountTypeView(at *domain.AccountType) accountTypeView {
	return accountTypeView{
		ID:                         at.ID,
		Name:                       at.Name,
		TransactionCommission:      at.TransactionCommission.String(),
		CurrencyExchangeCommission: at.ExchangeCommission.String(),
	}
}

func newAccountTypeViews(types []domain.AccountType) []accountTypeView {
	views := make([]accountTypeView, 0, len(types))
	for i := range types {
		views = append(views, newAccountTypeView(&types[i]))
	}
	return views
}

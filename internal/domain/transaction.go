/**
 * @description
 * This file defines the transaction ledger models: the immutable record of a
 * completed transfer and the transfer request DTO accepted from the API layer.
 *
 * @notes
 * - A Transaction is append-only. Nothing in the service updates a persisted row.
 * - `ReceivedAmount` always equals `Amount`; the commission is borne by the
 *   source account and recorded separately in `Commission`.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one completed transfer between two bank accounts.
// This struct maps to the `transactions` table; the account references are
// filled from a join when the row is read back.
type Transaction struct {
	ID                 int64           `json:"id"`
	CreatedAt          time.Time       `json:"datetime"`
	Amount             decimal.Decimal `json:"amount"`
	ReceivedAmount     decimal.Decimal `json:"receivedAmount"`
	Commission         decimal.Decimal `json:"commission"`
	SourceAccount      AccountRef      `json:"sourceBankAccount"`
	DestinationAccount AccountRef      `json:"destinationBankAccount"`
}

// Involves reports whether the account is either side of the transaction.
func (t *Transaction) Involves(accountID int64) bool {
	return t.SourceAccount.ID == accountID || t.DestinationAccount.ID == accountID
}

// TransferRequest is the DTO for incoming transfer API requests.
type TransferRequest struct {
	Amount                       decimal.Decimal `json:"amount"`
	SourceBankAccountNumber      string          `json:"sourceBankAccountNumber"`
	DestinationBankAccountNumber string          `json:"destinationBankAccountNumber"`
}

// TransactionCreatedEvent is the message payload published after a transfer commits.
type TransactionCreatedEvent struct {
	EventID              string          `json:"event_id"`
	TransactionID        int64           `json:"transaction_id"`
	SourceAccountID      int64           `json:"source_account_id"`
	DestinationAccountID int64           `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Commission           decimal.Decimal `json:"commission"`
	CreatedAt            time.Time       `json:"created_at"`
}

package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/bank-service/internal/app"
	"github.com/transfa/bank-service/internal/domain"
	"github.com/transfa/bank-service/internal/store"
)

const (
	transferRateLimitScope = "transfer"
	eventPublishTimeout    = 5 * time.Second
)

// CreateTransactionHandler handles POST /transactions. The caller must own the
// source account or be an admin.
func (h *Handlers) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		log.Printf("level=warn component=api endpoint=create_transaction outcome=reject reason=validation user_id=%d err=%q", principal.UserID, err)
		writeServiceError(w, "create_transaction", err)
		return
	}

	source, err := h.accounts.GetAccountByNumber(r.Context(), req.SourceBankAccountNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			err = app.ErrSourceAccountNotFound
		}
		writeServiceError(w, "create_transaction", err)
		return
	}
	if !principal.CanAccessAccount(source.OwnerID) {
		log.Printf("level=warn component=api endpoint=create_transaction outcome=reject reason=not_owner user_id=%d account_id=%d", principal.UserID, source.ID)
		writeError(w, http.StatusForbidden, "You are not allowed to transfer from this account")
		return
	}

	if !h.allowTransfer(w, r, principal) {
		return
	}

	tx, err := h.transfers.CreateTransaction(r.Context(), req.Amount, req.SourceBankAccountNumber, req.DestinationBankAccountNumber)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_transaction outcome=failed user_id=%d err=%v", principal.UserID, err)
		writeServiceError(w, "create_transaction", err)
		return
	}

	h.publishTransactionCreated(r.Context(), tx)
	writeJSON(w, http.StatusCreated, newTransactionView(*tx))
}

// allowTransfer consumes one unit of the caller's transfer budget. Limiter
// failures are logged and let the request through.
func (h *Handlers) allowTransfer(w http.ResponseWriter, r *http.Request, principal Principal) bool {
	if h.limiter == nil || h.transferRateLimitPerMinute <= 0 {
		return true
	}

	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), transferRateLimitScope, strconv.FormatInt(principal.UserID, 10), h.transferRateLimitPerMinute, time.Minute)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_transaction msg=\"rate limiter unavailable; allowing request\" user_id=%d err=%v", principal.UserID, err)
		return true
	}
	if count > h.transferRateLimitPerMinute {
		log.Printf("level=warn component=api endpoint=create_transaction outcome=reject reason=rate_limited user_id=%d count=%d", principal.UserID, count)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "Too many transfer requests, please slow down")
		return false
	}
	return true
}

// publishTransactionCreated emits the event for a committed transfer. The transfer
// has already succeeded, so a publish failure is only logged.
func (h *Handlers) publishTransactionCreated(ctx context.Context, tx *domain.Transaction) {
	event := domain.TransactionCreatedEvent{
		EventID:              uuid.NewString(),
		TransactionID:        tx.ID,
		SourceAccountID:      tx.SourceAccount.ID,
		DestinationAccountID: tx.DestinationAccount.ID,
		Amount:               tx.Amount,
		Commission:           tx.Commission,
		CreatedAt:            tx.CreatedAt,
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := h.publisher.Publish(publishCtx, h.eventsExchange, TransactionCreatedRoutingKey, event); err != nil {
		log.Printf("level=error component=api msg=\"failed to publish transaction event\" transaction_id=%d event_id=%s err=%v", tx.ID, event.EventID, err)
	}
}

// ListTransactionsHandler handles GET /transactions (admin only).
func (h *Handlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transfers.FindAll(r.Context())
	if err != nil {
		writeServiceError(w, "list_transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionViews(txs))
}

// ListAccountTransactionsHandler handles GET /accounts/{id}/transactions.
func (h *Handlers) ListAccountTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.authorizeAccount(w, r, principal, id, "list_account_transactions"); !ok {
		return
	}

	txs, err := h.transfers.FindAllByAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, "list_account_transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionViews(txs))
}

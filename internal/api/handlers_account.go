package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/transfa/bank-service/internal/domain"
)

// authorizeAccount loads the account and checks the principal may see it. It writes
// the response itself when access is refused.
func (h *Handlers) authorizeAccount(w http.ResponseWriter, r *http.Request, principal Principal, id int64, endpoint string) (*domain.BankAccount, bool) {
	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, endpoint, err)
		return nil, false
	}
	if !principal.CanAccessAccount(account.OwnerID) {
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=not_owner user_id=%d account_id=%d", endpoint, principal.UserID, id)
		writeError(w, http.StatusForbidden, "You are not allowed to access this account")
		return nil, false
	}
	return account, true
}

// CreateAccountHandler handles POST /accounts (admin only).
func (h *Handlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(w, "create_account", err)
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), req)
	if err != nil {
		writeServiceError(w, "create_account", err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountView(account))
}

// ListAccountsHandler handles GET /accounts. Callers see their own accounts; an
// admin may pass ?ownerId= to list another user's accounts.
func (h *Handlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	ownerID := principal.UserID
	if raw := r.URL.Query().Get("ownerId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid ownerId")
			return
		}
		if parsed != principal.UserID && !principal.IsAdmin() {
			writeError(w, http.StatusForbidden, "You are not allowed to list these accounts")
			return
		}
		ownerID = parsed
	}

	accounts, err := h.accounts.ListAccountsByOwner(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, "list_accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountViews(accounts))
}

// GetAccountHandler handles GET /accounts/{id}.
func (h *Handlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	account, ok := h.authorizeAccount(w, r, principal, id, "get_account")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(account))
}

// CloseAccountHandler handles POST /accounts/{id}/close (admin only).
func (h *Handlers) CloseAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	account, err := h.accounts.CloseAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, "close_account", err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(account))
}

// AdjustBalanceHandler handles POST /accounts/{id}/adjustments (admin only).
func (h *Handlers) AdjustBalanceHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req domain.BalanceAdjustmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(w, "adjust_balance", err)
		return
	}

	account, err := h.accounts.AdjustBalance(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, "adjust_balance", err)
		return
	}
	log.Printf("level=info component=api endpoint=adjust_balance outcome=applied admin_id=%d account_id=%d", principal.UserID, id)
	writeJSON(w, http.StatusOK, newAccountView(account))
}

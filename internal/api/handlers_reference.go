package api

import (
	"net/http"

	"github.com/transfa/bank-service/internal/domain"
)

// ListAccountTypesHandler handles GET /account-types.
func (h *Handlers) ListAccountTypesHandler(w http.ResponseWriter, r *http.Request) {
	types, err := h.accounts.ListAccountTypes(r.Context())
	if err != nil {
		writeServiceError(w, "list_account_types", err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountTypeViews(types))
}

// CreateAccountTypeHandler handles POST /account-types (admin only).
func (h *Handlers) CreateAccountTypeHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.AccountTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(w, "create_account_type", err)
		return
	}

	accountType, err := h.accounts.CreateAccountType(r.Context(), req)
	if err != nil {
		writeServiceError(w, "create_account_type", err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountTypeView(accountType))
}

// UpdateAccountTypeHandler handles PUT /account-types/{id} (admin only).
func (h *Handlers) UpdateAccountTypeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req domain.AccountTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(w, "update_account_type", err)
		return
	}

	accountType, err := h.accounts.UpdateAccountType(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, "update_account_type", err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountTypeView(accountType))
}

// DeleteAccountTypeHandler handles DELETE /account-types/{id} (admin only).
func (h *Handlers) DeleteAccountTypeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.accounts.DeleteAccountType(r.Context(), id); err != nil {
		writeServiceError(w, "delete_account_type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCurrenciesHandler handles GET /currencies.
func (h *Handlers) ListCurrenciesHandler(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.accounts.ListCurrencies(r.Context())
	if err != nil {
		writeServiceError(w, "list_currencies", err)
		return
	}
	writeJSON(w, http.StatusOK, currencies)
}

// CreateCurrencyHandler handles POST /currencies (admin only).
func (h *Handlers) CreateCurrencyHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CurrencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(w, "create_currency", err)
		return
	}

	currency, err := h.accounts.CreateCurrency(r.Context(), req)
	if err != nil {
		writeServiceError(w, "create_currency", err)
		return
	}
	writeJSON(w, http.StatusCreated, currency)
}

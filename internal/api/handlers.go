/**
 * @description
 * This file contains the HTTP handler set for the bank-service's API endpoints and
 * the helpers they share: JSON encoding, request decoding, and the mapping from
 * service errors to HTTP status codes. Handlers parse requests, authorize the
 * caller, call the application services, and write the response.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and errors.
 * - pkg/rabbitmq: For publishing transaction events.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/transfa/bank-service/internal/app"
	"github.com/transfa/bank-service/internal/domain"
	"github.com/transfa/bank-service/internal/store"
	"github.com/transfa/bank-service/pkg/rabbitmq"
)

// TransactionCreatedRoutingKey is the routing key of the event published after a
// transfer commits.
const TransactionCreatedRoutingKey = "transaction.created"

// HandlerOptions carries the optional collaborators of the handler set.
type HandlerOptions struct {
	Publisher                  rabbitmq.Publisher
	EventsExchange             string
	RateLimiter                app.RateLimiter
	TransferRateLimitPerMinute int
}

// Handlers holds the application services that handlers will use.
type Handlers struct {
	transfers *app.TransferService
	accounts  *app.AccountService

	publisher                  rabbitmq.Publisher
	eventsExchange             string
	limiter                    app.RateLimiter
	transferRateLimitPerMinute int
}

// NewHandlers creates a new instance of Handlers. A nil publisher falls back to a
// no-op publisher; a nil rate limiter disables transfer rate limiting.
func NewHandlers(transfers *app.TransferService, accounts *app.AccountService, opts HandlerOptions) *Handlers {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{}
	}
	return &Handlers{
		transfers:                  transfers,
		accounts:                   accounts,
		publisher:                  publisher,
		eventsExchange:             opts.EventsExchange,
		limiter:                    opts.RateLimiter,
		transferRateLimitPerMinute: opts.TransferRateLimitPerMinute,
	}
}

type validationErrorResponse struct {
	Error  string                  `json:"error"`
	Fields domain.ValidationErrors `json:"fields"`
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func requirePrincipal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return Principal{}, false
	}
	return principal, true
}

// writeServiceError maps an error returned by the application layer to a response.
// Anything unrecognised is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, validationErrorResponse{Error: "validation failed", Fields: verrs})
	case errors.Is(err, app.ErrSourceAccountNotFound):
		writeError(w, http.StatusNotFound, "Source account not found")
	case errors.Is(err, app.ErrDestinationAccountNotFound):
		writeError(w, http.StatusNotFound, "Destination account not found")
	case errors.Is(err, store.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrAccountTypeNotFound):
		writeError(w, http.StatusNotFound, "Account type not found")
	case errors.Is(err, app.ErrNotEnoughBalance):
		writeError(w, http.StatusBadRequest, "Not enough balance")
	case errors.Is(err, app.ErrUnsupportedCurrency),
		errors.Is(err, app.ErrSameAccount),
		errors.Is(err, app.ErrAccountClosed),
		errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, store.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrAccountTypeInUse),
		errors.Is(err, store.ErrDuplicateAccountTypeName),
		errors.Is(err, store.ErrDuplicateCurrency):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrConcurrencyConflict),
		errors.Is(err, app.ErrAccountNumberExhausted):
		writeError(w, http.StatusServiceUnavailable, "The request could not be completed right now, please retry")
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"request failed\" err=%v", endpoint, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

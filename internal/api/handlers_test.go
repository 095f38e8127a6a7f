package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transfa/bank-service/internal/app"
	"github.com/transfa/bank-service/internal/domain"
	"github.com/transfa/bank-service/internal/store"
)

const (
	testSecret = "test-secret"

	aliceID int64 = 1
	bobID   int64 = 2
	adminID int64 = 99

	aliceUSD = "11111111111111111111"
	bobUSD   = "22222222222222222222"
	aliceEUR = "33333333333333333333"
	unknown  = "44444444444444444444"
)

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return p.err
}

func (p *recordingPublisher) Close() {}

type limiterStub struct {
	count      int
	retryAfter int
	err        error
	calls      int
}

func (l *limiterStub) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	l.calls++
	return l.count, l.retryAfter, l.err
}

type testServer struct {
	router    http.Handler
	repo      *store.MemoryRepository
	publisher *recordingPublisher
	accounts  map[string]*domain.BankAccount
	typeIDs   map[string]int64
}

func newTestServer(t *testing.T, limiter app.RateLimiter, limit int) *testServer {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	require.NoError(t, repo.CreateCurrency(ctx, &domain.Currency{Code: "USD", Name: "US Dollar"}))
	require.NoError(t, repo.CreateCurrency(ctx, &domain.Currency{Code: "EUR", Name: "Euro"}))

	typeIDs := map[string]int64{}
	for name, rate := range map[string]string{"free": "0", "standard": "0.01"} {
		at := &domain.AccountType{Name: name, TransactionCommission: decimal.RequireFromString(rate)}
		require.NoError(t, repo.CreateAccountType(ctx, at))
		typeIDs[name] = at.ID
	}

	accounts := map[string]*domain.BankAccount{}
	for _, seed := range []struct {
		number, currency, balance string
		owner                     int64
	}{
		{aliceUSD, "USD", "2000.00", aliceID},
		{bobUSD, "USD", "500.00", bobID},
		{aliceEUR, "EUR", "100.00", aliceID},
	} {
		account := &domain.BankAccount{
			Number:        seed.number,
			OwnerID:       seed.owner,
			AccountTypeID: typeIDs["free"],
			CurrencyCode:  seed.currency,
			Balance:       decimal.RequireFromString(seed.balance),
		}
		require.NoError(t, repo.CreateAccount(ctx, account))
		accounts[seed.number] = account
	}

	publisher := &recordingPublisher{}
	handlers := NewHandlers(
		app.NewTransferService(repo, 1, time.Millisecond),
		app.NewAccountService(repo),
		HandlerOptions{
			Publisher:                  publisher,
			EventsExchange:             "bank_events",
			RateLimiter:                limiter,
			TransferRateLimitPerMinute: limit,
		},
	)

	return &testServer{
		router:    NewRouter(handlers, JWTAuthMiddleware(testSecret, ""), []string{"*"}),
		repo:      repo,
		publisher: publisher,
		accounts:  accounts,
		typeIDs:   typeIDs,
	}
}

func signToken(t *testing.T, userID int64, ttl time.Duration, roles ...string) string {
	t.Helper()
	claims := TokenClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func aliceToken(t *testing.T) string { return signToken(t, aliceID, time.Hour) }
func bobToken(t *testing.T) string   { return signToken(t, bobID, time.Hour) }
func adminToken(t *testing.T) string { return signToken(t, adminID, time.Hour, RoleAdmin) }

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), "body: %s", rec.Body.String())
}

func transferBody(amount, from, to string) string {
	return fmt.Sprintf(`{"amount":%q,"sourceBankAccountNumber":%q,"destinationBankAccountNumber":%q}`, amount, from, to)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, nil, 0)

	rec := s.do(t, http.MethodGet, "/currencies", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/currencies", "", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/currencies", "", signToken(t, aliceID, -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("another-secret"))
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/currencies", "", other)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	nonNumeric, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user_abc",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/currencies", "", nonNumeric)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/currencies", "", aliceToken(t))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTransaction_Success(t *testing.T) {
	s := newTestServer(t, nil, 0)

	rec := s.do(t, http.MethodPost, "/transactions", transferBody("1000.00", aliceUSD, bobUSD), aliceToken(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view transactionView
	decodeBody(t, rec, &view)
	assert.NotZero(t, view.ID)
	assert.Equal(t, "1000.00", view.Amount)
	assert.Equal(t, "1000.00", view.ReceivedAmount)
	assert.Equal(t, "0.00", view.Commission)
	assert.Equal(t, aliceUSD, view.SourceBankAccount.Number)
	assert.Equal(t, "1000.00", view.SourceBankAccount.Balance)
	assert.Equal(t, aliceID, view.SourceBankAccount.Owner)
	assert.Equal(t, "1500.00", view.DestinationBankAccount.Balance)

	require.Len(t, s.publisher.events, 1)
	event := s.publisher.events[0]
	assert.Equal(t, "bank_events", event.exchange)
	assert.Equal(t, TransactionCreatedRoutingKey, event.routingKey)
	payload, ok := event.body.(domain.TransactionCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, view.ID, payload.TransactionID)
	assert.NotEmpty(t, payload.EventID)
}

func TestCreateTransaction_PublishFailureDoesNotFailTransfer(t *testing.T) {
	s := newTestServer(t, nil, 0)
	s.publisher.err = errors.New("broker down")

	rec := s.do(t, http.MethodPost, "/transactions", transferBody("1.00", aliceUSD, bobUSD), aliceToken(t))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateTransaction_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		token     func(t *testing.T) string
		wantCode  int
		wantError string
	}{
		{name: "malformed body", body: `{"amount":`, token: aliceToken, wantCode: http.StatusBadRequest, wantError: "Invalid request body"},
		{name: "validation", body: transferBody("-1", "123", bobUSD), token: aliceToken, wantCode: http.StatusBadRequest, wantError: "validation failed"},
		{name: "not the owner", body: transferBody("1.00", aliceUSD, bobUSD), token: bobToken, wantCode: http.StatusForbidden},
		{name: "unknown source", body: transferBody("1.00", unknown, bobUSD), token: aliceToken, wantCode: http.StatusNotFound, wantError: "Source account not found"},
		{name: "unknown destination", body: transferBody("1.00", aliceUSD, unknown), token: aliceToken, wantCode: http.StatusNotFound, wantError: "Destination account not found"},
		{name: "not enough balance", body: transferBody("1000.00", bobUSD, aliceUSD), token: bobToken, wantCode: http.StatusBadRequest, wantError: "Not enough balance"},
		{name: "currency mismatch", body: transferBody("1.00", aliceUSD, aliceEUR), token: aliceToken, wantCode: http.StatusBadRequest, wantError: app.ErrUnsupportedCurrency.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, 0)
			rec := s.do(t, http.MethodPost, "/transactions", tt.body, tt.token(t))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantError != "" {
				var body map[string]interface{}
				decodeBody(t, rec, &body)
				assert.Equal(t, tt.wantError, body["error"])
			}
			assert.Empty(t, s.publisher.events)
			assert.Equal(t, "2000.00", s.balance(t, aliceUSD))
			assert.Equal(t, "500.00", s.balance(t, bobUSD))
		})
	}
}

func TestCreateTransaction_ValidationListsFields(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(t, http.MethodPost, "/transactions", transferBody("0.001", aliceUSD, aliceUSD), aliceToken(t))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body validationErrorResponse
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Fields, "amount")
	assert.Contains(t, body.Fields, "destinationBankAccountNumber")
}

func TestCreateTransaction_AdminMayMoveAnyAccount(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(t, http.MethodPost, "/transactions", transferBody("100.00", bobUSD, aliceUSD), adminToken(t))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "400.00", s.balance(t, bobUSD))
}

func TestCreateTransaction_RateLimited(t *testing.T) {
	limiter := &limiterStub{count: 6, retryAfter: 42}
	s := newTestServer(t, limiter, 5)

	rec := s.do(t, http.MethodPost, "/transactions", transferBody("1.00", aliceUSD, bobUSD), aliceToken(t))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Equal(t, "2000.00", s.balance(t, aliceUSD))
	assert.Equal(t, 1, limiter.calls)
}

func TestCreateTransaction_LimiterFailureAllowsTransfer(t *testing.T) {
	limiter := &limiterStub{err: errors.New("redis down")}
	s := newTestServer(t, limiter, 5)

	rec := s.do(t, http.MethodPost, "/transactions", transferBody("1.00", aliceUSD, bobUSD), aliceToken(t))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestListTransactions(t *testing.T) {
	s := newTestServer(t, nil, 0)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/transactions", transferBody("1.00", aliceUSD, bobUSD), aliceToken(t)).Code)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/transactions", transferBody("2.00", bobUSD, aliceUSD), bobToken(t)).Code)

	rec := s.do(t, http.MethodGet, "/transactions", "", aliceToken(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/transactions", "", adminToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	var views []transactionView
	decodeBody(t, rec, &views)
	require.Len(t, views, 2)
	assert.Equal(t, "2.00", views[0].Amount)
	assert.Equal(t, "1.00", views[1].Amount)
}

func TestListAccountTransactions(t *testing.T) {
	s := newTestServer(t, nil, 0)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/transactions", transferBody("1.00", aliceUSD, bobUSD), aliceToken(t)).Code)
	aliceAccount := s.accounts[aliceUSD]
	path := fmt.Sprintf("/accounts/%d/transactions", aliceAccount.ID)

	rec := s.do(t, http.MethodGet, path, "", aliceToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	var views []transactionView
	decodeBody(t, rec, &views)
	assert.Len(t, views, 1)

	eurPath := fmt.Sprintf("/accounts/%d/transactions", s.accounts[aliceEUR].ID)
	rec = s.do(t, http.MethodGet, eurPath, "", aliceToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, path, "", bobToken(t)).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, "", adminToken(t)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/accounts/999/transactions", "", adminToken(t)).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/accounts/abc/transactions", "", adminToken(t)).Code)
}

func (s *testServer) balance(t *testing.T, number string) string {
	t.Helper()
	account, err := s.repo.FindAccountByNumber(context.Background(), number)
	require.NoError(t, err)
	return account.Balance.StringFixed(2)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
	}{
		{store.ErrConcurrencyConflict, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", store.ErrConcurrencyConflict), http.StatusServiceUnavailable},
		{store.ErrAccountTypeInUse, http.StatusConflict},
		{store.ErrDuplicateCurrency, http.StatusConflict},
		{app.ErrSameAccount, http.StatusBadRequest},
		{app.ErrAccountClosed, http.StatusBadRequest},
		{store.ErrAccountNotFound, http.StatusNotFound},
		{domain.ValidationErrors{"amount": "bad"}, http.StatusBadRequest},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, "test", tt.err)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

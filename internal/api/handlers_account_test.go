package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transfa/bank-service/internal/domain"
)

func TestCreateAccount(t *testing.T) {
	s := newTestServer(t, nil, 0)
	body := fmt.Sprintf(`{"ownerId":%d,"accountTypeId":%d,"currency":"USD"}`, bobID, s.typeIDs["standard"])

	rec := s.do(t, http.MethodPost, "/accounts", body, bobToken(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/accounts", body, adminToken(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var view accountView
	decodeBody(t, rec, &view)
	assert.True(t, domain.IsValidAccountNumber(view.Number))
	assert.Equal(t, bobID, view.Owner)
	assert.Equal(t, "USD", view.Currency)
	assert.Equal(t, "0.00", view.Balance)
	assert.False(t, view.Closed)

	rec = s.do(t, http.MethodPost, "/accounts", `{"ownerId":0,"currency":"usd"}`, adminToken(t))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var verr validationErrorResponse
	decodeBody(t, rec, &verr)
	assert.Contains(t, verr.Fields, "ownerId")
	assert.Contains(t, verr.Fields, "accountTypeId")
	assert.Contains(t, verr.Fields, "currency")

	rec = s.do(t, http.MethodPost, "/accounts", fmt.Sprintf(`{"ownerId":%d,"accountTypeId":999,"currency":"USD"}`, bobID), adminToken(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/accounts", fmt.Sprintf(`{"ownerId":%d,"accountTypeId":%d,"currency":"GBP"}`, bobID, s.typeIDs["free"]), adminToken(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAccounts(t *testing.T) {
	s := newTestServer(t, nil, 0)

	rec := s.do(t, http.MethodGet, "/accounts", "", aliceToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	var views []accountView
	decodeBody(t, rec, &views)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, aliceID, v.Owner)
	}

	path := fmt.Sprintf("/accounts?ownerId=%d", bobID)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, path, "", aliceToken(t)).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/accounts?ownerId=x", "", aliceToken(t)).Code)

	rec = s.do(t, http.MethodGet, path, "", adminToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	views = nil
	decodeBody(t, rec, &views)
	require.Len(t, views, 1)
	assert.Equal(t, bobUSD, views[0].Number)
	assert.Equal(t, "500.00", views[0].Balance)
}

func TestGetAccount(t *testing.T) {
	s := newTestServer(t, nil, 0)
	path := fmt.Sprintf("/accounts/%d", s.accounts[bobUSD].ID)

	rec := s.do(t, http.MethodGet, path, "", bobToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	var view accountView
	decodeBody(t, rec, &view)
	assert.Equal(t, bobUSD, view.Number)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, path, "", aliceToken(t)).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, "", adminToken(t)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/accounts/999", "", adminToken(t)).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/accounts/0", "", adminToken(t)).Code)
}

func TestCloseAccount_BlocksTransfers(t *testing.T) {
	s := newTestServer(t, nil, 0)
	path := fmt.Sprintf("/accounts/%d/close", s.accounts[bobUSD].ID)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, path, "", bobToken(t)).Code)

	rec := s.do(t, http.MethodPost, path, "", adminToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	var view accountView
	decodeBody(t, rec, &view)
	assert.True(t, view.Closed)

	rec = s.do(t, http.MethodPost, "/transactions", transferBody("1.00", aliceUSD, bobUSD), aliceToken(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "2000.00", s.balance(t, aliceUSD))
}

func TestAdjustBalance(t *testing.T) {
	s := newTestServer(t, nil, 0)
	path := fmt.Sprintf("/accounts/%d/adjustments", s.accounts[bobUSD].ID)

	rec := s.do(t, http.MethodPost, path, `{"amount":"25.50","reason":"branch deposit"}`, adminToken(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view accountView
	decodeBody(t, rec, &view)
	assert.Equal(t, "525.50", view.Balance)

	rec = s.do(t, http.MethodPost, path, `{"amount":"-600.00","reason":"correction"}`, adminToken(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "525.50", s.balance(t, bobUSD))

	rec = s.do(t, http.MethodPost, path, `{"amount":"0","reason":""}`, adminToken(t))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var verr validationErrorResponse
	decodeBody(t, rec, &verr)
	assert.Contains(t, verr.Fields, "amount")
	assert.Contains(t, verr.Fields, "reason")

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, path, `{"amount":"1.00","reason":"gift"}`, bobToken(t)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/accounts/999/adjustments", `{"amount":"1.00","reason":"x"}`, adminToken(t)).Code)
}

func TestAccountTypes(t *testing.T) {
	s := newTestServer(t, nil, 0)

	rec := s.do(t, http.MethodGet, "/account-types", "", aliceToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	var types []accountTypeView
	decodeBody(t, rec, &types)
	require.Len(t, types, 2)
	assert.Equal(t, "free", types[0].Name)
	assert.Equal(t, "standard", types[1].Name)
	assert.Equal(t, "0.01", types[1].TransactionCommission)

	createBody := `{"name":"premium","transactionCommission":"0.005","currencyExchangeCommission":"0.02"}`
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/account-types", createBody, aliceToken(t)).Code)

	rec = s.do(t, http.MethodPost, "/account-types", createBody, adminToken(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created accountTypeView
	decodeBody(t, rec, &created)
	assert.Equal(t, "premium", created.Name)
	assert.Equal(t, "0.005", created.TransactionCommission)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/account-types", `{"name":"Premium"}`, adminToken(t)).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/account-types", `{"name":"x","transactionCommission":"1.5"}`, adminToken(t)).Code)

	updatePath := fmt.Sprintf("/account-types/%d", created.ID)
	rec = s.do(t, http.MethodPut, updatePath, `{"name":"premium","transactionCommission":"0.003"}`, adminToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	var updated accountTypeView
	decodeBody(t, rec, &updated)
	assert.Equal(t, "0.003", updated.TransactionCommission)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/account-types/999", `{"name":"ghost"}`, adminToken(t)).Code)

	inUse := fmt.Sprintf("/account-types/%d", s.typeIDs["free"])
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodDelete, inUse, "", adminToken(t)).Code)

	rec = s.do(t, http.MethodDelete, updatePath, "", adminToken(t))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, updatePath, "", adminToken(t)).Code)
}

func TestCurrencies(t *testing.T) {
	s := newTestServer(t, nil, 0)

	rec := s.do(t, http.MethodGet, "/currencies", "", bobToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	var currencies []domain.Currency
	decodeBody(t, rec, &currencies)
	require.Len(t, currencies, 2)
	assert.Equal(t, "EUR", currencies[0].Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/currencies", `{"code":"GBP","name":"Pound"}`, bobToken(t)).Code)
	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/currencies", `{"code":"GBP","name":"Pound"}`, adminToken(t)).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/currencies", `{"code":"GBP","name":"Pound"}`, adminToken(t)).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/currencies", `{"code":"gb","name":""}`, adminToken(t)).Code)
}

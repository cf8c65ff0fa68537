package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/app"
	"github.com/transfa/wallet-desk/internal/domain"
	"github.com/transfa/wallet-desk/internal/store"
)

const (
	testJWTSecret  = "jwt-secret"
	testCSRFSecret = "csrf-secret"
)

type walletServiceStub struct {
	WalletService

	snapshot    *domain.WalletSnapshot
	record      *domain.Transaction
	transfer    *domain.TransferResult
	err         error
	lastSession domain.Session
	lastContact int64
	lastDate    string
	lastFunds   domain.FundsRequest
}

func (s *walletServiceStub) GetWallet(_ context.Context, contactID int64) (*domain.WalletSnapshot, error) {
	s.lastContact = contactID
	return s.snapshot, s.err
}

func (s *walletServiceStub) ListTransactions(_ context.Context, contactID int64, date string) ([]domain.Transaction, error) {
	s.lastContact, s.lastDate = contactID, date
	return nil, s.err
}

func (s *walletServiceStub) AddFunds(_ context.Context, session domain.Session, contactID int64, req domain.FundsRequest) (*domain.Transaction, error) {
	s.lastSession, s.lastContact, s.lastFunds = session, contactID, req
	return s.record, s.err
}

func (s *walletServiceStub) DeductFunds(_ context.Context, session domain.Session, contactID int64, req domain.FundsRequest) (*domain.Transaction, error) {
	s.lastSession, s.lastContact, s.lastFunds = session, contactID, req
	return s.record, s.err
}

func (s *walletServiceStub) Transfer(_ context.Context, session domain.Session, _ domain.TransferRequest) (*domain.TransferResult, error) {
	s.lastSession = session
	return s.transfer, s.err
}

func newTestRouter(service WalletService) http.Handler {
	handlers := NewWalletHandlers(service, testCSRFSecret, zap.NewNop())
	return WalletRoutes(handlers, RouterOptions{JWTSecret: testJWTSecret, AllowedOrigins: []string{"*"}, Logger: zap.NewNop()})
}

func bearer(t *testing.T, id string, roles ...string) string {
	t.Helper()
	token, err := IssueSessionToken(testJWTSecret, domain.Session{TeamMemberID: id, Name: "Ana", Roles: roles}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, h http.Handler, method, path, auth, csrf, body string) (*httptest.ResponseRecorder, domain.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if csrf != "" {
		req.Header.Set(CSRFHeader, csrf)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var envelope domain.Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec, envelope
}

func TestHealth(t *testing.T) {
	rec, _ := do(t, newTestRouter(&walletServiceStub{}), http.MethodGet, "/health", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", rec.Body.String())
}

func TestSessionAuth(t *testing.T) {
	router := newTestRouter(&walletServiceStub{})

	rec, envelope := do(t, router, http.MethodGet, "/contacts/list", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, envelope.Success)

	rec, _ = do(t, router, http.MethodGet, "/contacts/list", "Bearer not-a-token", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := IssueSessionToken("other-secret", domain.Session{TeamMemberID: "tm-1"}, time.Hour)
	require.NoError(t, err)
	rec, _ = do(t, router, http.MethodGet, "/contacts/list", "Bearer "+forged, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionHandler_ReturnsCSRFToken(t *testing.T) {
	rec, envelope := do(t, newTestRouter(&walletServiceStub{}), http.MethodGet, "/session", bearer(t, "tm-1", "Admin"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info domain.SessionInfo
	require.NoError(t, json.Unmarshal(envelope.Data, &info))
	assert.Equal(t, CSRFToken(testCSRFSecret, "tm-1"), info.CSRFToken)
	assert.Equal(t, "tm-1", info.TeamMember.TeamMemberID)
	assert.Equal(t, []string{"Admin"}, info.TeamMember.Roles)
}

func TestAddFunds_RequiresCSRF(t *testing.T) {
	service := &walletServiceStub{record: &domain.Transaction{}}
	router := newTestRouter(service)
	body := `{"amount":"10.00"}`

	rec, envelope := do(t, router, http.MethodPost, "/contacts/1/wallet/add-funds", bearer(t, "tm-1", "admin"), "", body)
	assert.Equal(t, StatusCSRFMismatch, rec.Code)
	assert.False(t, envelope.Success)

	rec, _ = do(t, router, http.MethodPost, "/contacts/1/wallet/add-funds", bearer(t, "tm-1", "admin"), CSRFToken(testCSRFSecret, "tm-2"), body)
	assert.Equal(t, StatusCSRFMismatch, rec.Code)
	assert.Equal(t, int64(0), service.lastContact)
}

func TestAddFunds_RequiresRole(t *testing.T) {
	service := &walletServiceStub{record: &domain.Transaction{}}
	rec, envelope := do(t, newTestRouter(service), http.MethodPost, "/contacts/1/wallet/add-funds",
		bearer(t, "tm-1", domain.RoleMember), CSRFToken(testCSRFSecret, "tm-1"), `{"amount":"10.00"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, envelope.Success)
	assert.Equal(t, int64(0), service.lastContact)
}

func TestAddFunds_Success(t *testing.T) {
	service := &walletServiceStub{record: &domain.Transaction{
		Type:         domain.TransactionTypeCredit,
		Amount:       decimal.RequireFromString("10.50"),
		BalanceAfter: decimal.RequireFromString("110.50"),
	}}
	rec, envelope := do(t, newTestRouter(service), http.MethodPost, "/contacts/7/wallet/add-funds",
		bearer(t, "tm-1", "Manager"), CSRFToken(testCSRFSecret, "tm-1"), `{"amount":10.5,"description":"cash","reference":"OR-9"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)
	assert.Equal(t, "Funds added successfully", envelope.Message)
	assert.Equal(t, int64(7), service.lastContact)
	assert.Equal(t, "tm-1", service.lastSession.TeamMemberID)
	assert.True(t, service.lastFunds.Amount.Equal(decimal.RequireFromString("10.5")))

	var result domain.MutationResult
	require.NoError(t, json.Unmarshal(envelope.Data, &result))
	assert.True(t, result.Transaction.BalanceAfter.Equal(decimal.RequireFromString("110.50")))
}

func TestServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{app.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("%w: 1.005", app.ErrInvalidAmount), http.StatusBadRequest},
		{store.ErrContactNotFound, http.StatusNotFound},
		{store.ErrWalletNotFound, http.StatusNotFound},
		{store.ErrWalletInactive, http.StatusConflict},
		{fmt.Errorf("debit wallet: %w", store.ErrInsufficientFunds), http.StatusUnprocessableEntity},
		{&app.RateLimitError{RetryAfterSeconds: 12}, http.StatusTooManyRequests},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			service := &walletServiceStub{err: tc.err}
			rec, envelope := do(t, newTestRouter(service), http.MethodPost, "/contacts/1/wallet/deduct-funds",
				bearer(t, "tm-1", "admin"), CSRFToken(testCSRFSecret, "tm-1"), `{"amount":"1"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, envelope.Success)
			assert.NotEmpty(t, envelope.Message)
		})
	}
}

func TestRateLimitedResponseSetsRetryAfter(t *testing.T) {
	service := &walletServiceStub{err: &app.RateLimitError{RetryAfterSeconds: 12}}
	rec, envelope := do(t, newTestRouter(service), http.MethodPost, "/contacts/wallets/transfer",
		bearer(t, "tm-1"), CSRFToken(testCSRFSecret, "tm-1"), `{"from_contact_id":1,"to_contact_id":2,"amount":"5"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "12", rec.Header().Get("Retry-After"))
	assert.Equal(t, app.ErrRateLimited.Error(), envelope.Message)
}

func TestTransfer_AllowsAnyAuthenticatedMember(t *testing.T) {
	service := &walletServiceStub{transfer: &domain.TransferResult{Reference: "TRF-ABCDEF123456"}}
	rec, envelope := do(t, newTestRouter(service), http.MethodPost, "/contacts/wallets/transfer",
		bearer(t, "tm-3", domain.RoleMember), CSRFToken(testCSRFSecret, "tm-3"), `{"from_contact_id":1,"to_contact_id":2,"amount":"5"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var result domain.TransferResult
	require.NoError(t, json.Unmarshal(envelope.Data, &result))
	assert.Equal(t, "TRF-ABCDEF123456", result.Reference)
}

func TestTransactions_PassesDateAndReturnsEmptyList(t *testing.T) {
	service := &walletServiceStub{}
	rec, envelope := do(t, newTestRouter(service), http.MethodGet, "/contacts/4/wallet/transactions?date=2024-03-05", bearer(t, "tm-1"), "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), service.lastContact)
	assert.Equal(t, "2024-03-05", service.lastDate)
	assert.JSONEq(t, `[]`, string(envelope.Data))
}

func TestInvalidContactID(t *testing.T) {
	rec, envelope := do(t, newTestRouter(&walletServiceStub{}), http.MethodGet, "/contacts/abc/wallet/balance", bearer(t, "tm-1"), "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid contact ID", envelope.Message)
}

func TestInvalidBody(t *testing.T) {
	rec, _ := do(t, newTestRouter(&walletServiceStub{}), http.MethodPost, "/contacts/wallets/transfer",
		bearer(t, "tm-1"), CSRFToken(testCSRFSecret, "tm-1"), `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

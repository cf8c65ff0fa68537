/**
 * @description
 * This file contains the HTTP handlers for walletd. Handlers decode requests,
 * call the wallet service, and translate its errors into enveloped responses
 * with the matching status code.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/app"
	"github.com/transfa/wallet-desk/internal/domain"
	"github.com/transfa/wallet-desk/internal/store"
)

// WalletService is the slice of app.Service the handlers depend on.
type WalletService interface {
	GetWallet(ctx context.Context, contactID int64) (*domain.WalletSnapshot, error)
	ListTransactions(ctx context.Context, contactID int64, date string) ([]domain.Transaction, error)
	ListContacts(ctx context.Context) ([]domain.Contact, error)
	AddFunds(ctx context.Context, session domain.Session, contactID int64, req domain.FundsRequest) (*domain.Transaction, error)
	DeductFunds(ctx context.Context, session domain.Session, contactID int64, req domain.FundsRequest) (*domain.Transaction, error)
	Transfer(ctx context.Context, session domain.Session, req domain.TransferRequest) (*domain.TransferResult, error)
}

// WalletHandlers holds the dependencies for the wallet HTTP handlers.
type WalletHandlers struct {
	service    WalletService
	csrfSecret string
	logger     *zap.Logger
}

// NewWalletHandlers creates a new WalletHandlers.
func NewWalletHandlers(service WalletService, csrfSecret string, logger *zap.Logger) *WalletHandlers {
	return &WalletHandlers{service: service, csrfSecret: csrfSecret, logger: logger}
}

// SessionHandler returns the authenticated team member and their CSRF token.
func (h *WalletHandlers) SessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeEnvelope(w, http.StatusOK, "", domain.SessionInfo{
		CSRFToken:  CSRFToken(h.csrfSecret, session.TeamMemberID),
		TeamMember: session,
	})
}

// GetBalanceHandler returns the wallet snapshot of a contact.
func (h *WalletHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	contactID, ok := contactIDParam(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.GetWallet(r.Context(), contactID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "", snapshot)
}

// ListTransactionsHandler returns the contact's transactions for one day.
func (h *WalletHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	contactID, ok := contactIDParam(w, r)
	if !ok {
		return
	}
	transactions, err := h.service.ListTransactions(r.Context(), contactID, r.URL.Query().Get("date"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	writeEnvelope(w, http.StatusOK, "", transactions)
}

// AddFundsHandler credits a contact's wallet.
func (h *WalletHandlers) AddFundsHandler(w http.ResponseWriter, r *http.Request) {
	h.handleFunds(w, r, h.service.AddFunds, "Funds added successfully")
}

// DeductFundsHandler debits a contact's wallet.
func (h *WalletHandlers) DeductFundsHandler(w http.ResponseWriter, r *http.Request) {
	h.handleFunds(w, r, h.service.DeductFunds, "Funds deducted successfully")
}

type fundsFunc func(ctx context.Context, session domain.Session, contactID int64, req domain.FundsRequest) (*domain.Transaction, error)

func (h *WalletHandlers) handleFunds(w http.ResponseWriter, r *http.Request, apply fundsFunc, message string) {
	contactID, ok := contactIDParam(w, r)
	if !ok {
		return
	}
	var req domain.FundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	session, _ := SessionFromContext(r.Context())

	record, err := apply(r.Context(), session, contactID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, message, domain.MutationResult{Transaction: *record})
}

// TransferHandler moves funds between two contacts.
func (h *WalletHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	session, _ := SessionFromContext(r.Context())

	result, err := h.service.Transfer(r.Context(), session, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "Transfer completed successfully", result)
}

// ListContactsHandler returns the contact directory.
func (h *WalletHandlers) ListContactsHandler(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.service.ListContacts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}
	writeEnvelope(w, http.StatusOK, "", contacts)
}

func contactIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid contact ID")
		return 0, false
	}
	return id, true
}

func (h *WalletHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rateErr *app.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		writeRateLimited(w, rateErr.RetryAfterSeconds, app.ErrRateLimited.Error())
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidDescription),
		errors.Is(err, app.ErrInvalidReference),
		errors.Is(err, app.ErrInvalidContact),
		errors.Is(err, app.ErrSelfTransfer),
		errors.Is(err, app.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, rootMessage(err))
	case errors.Is(err, store.ErrSameWallet):
		writeError(w, http.StatusBadRequest, store.ErrSameWallet.Error())
	case errors.Is(err, store.ErrContactNotFound):
		writeError(w, http.StatusNotFound, "Contact not found")
	case errors.Is(err, store.ErrWalletNotFound):
		writeError(w, http.StatusNotFound, "Wallet not found")
	case errors.Is(err, store.ErrWalletInactive):
		writeError(w, http.StatusConflict, "Wallet is inactive")
	case errors.Is(err, store.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "Insufficient wallet balance")
	default:
		h.logger.Error("wallet request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// rootMessage strips wrapping detail so clients see the sentinel's text.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

/**
 * @description
 * This file defines the core domain models shared by the wallet API and the
 * operator console: wallets, their immutable transaction records, and the
 * contact directory used for transfers.
 *
 * @notes
 * - Amounts are `decimal.Decimal` scaled to two places. They never pass through
 *   float64 on either side of the wire.
 * - Transactions are append-only. The console never edits them; it re-fetches.
 */

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountPlaces is the currency scale used for balances and amounts.
const AmountPlaces = 2

// Wallet statuses.
const (
	WalletStatusActive   = "active"
	WalletStatusInactive = "inactive"
)

// Transaction types.
const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"

	// EventTypeLedgerDrift marks reconciliation events; it never appears on a transaction.
	EventTypeLedgerDrift = "ledger_drift"
)

// Wallet is the balance holder owned by a contact.
type Wallet struct {
	ID                  int64           `json:"id"`
	ContactID           int64           `json:"contact_id"`
	Balance             decimal.Decimal `json:"balance"`
	Currency            string          `json:"currency"`
	Status              string          `json:"status"`
	LastTransactionDate *time.Time      `json:"last_transaction_date"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// IsActive reports whether the wallet accepts mutations.
func (w Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// Transaction is one immutable ledger entry.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	WalletID        int64           `json:"wallet_id"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	TransactionDate time.Time       `json:"transaction_date"`
}

// IsCredit reports whether the entry increased the balance.
func (t Transaction) IsCredit() bool {
	return t.Type == TransactionTypeCredit
}

// Contact is a directory entry. Only the fields the wallet screens need are carried.
type Contact struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	SMSNumber string `json:"sms_number"`
	Email     string `json:"email,omitempty"`
}

// FullName joins first and last name, skipping empty parts.
func (c Contact) FullName() string {
	return strings.Join(strings.Fields(c.FirstName+" "+c.LastName), " ")
}

// WalletSnapshot is the payload of the balance endpoint.
type WalletSnapshot struct {
	Wallet  Wallet  `json:"wallet"`
	Contact Contact `json:"contact"`
}

// FundsRequest is the body of the add-funds and deduct-funds endpoints.
type FundsRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
}

// TransferRequest is the body of the transfer endpoint.
type TransferRequest struct {
	FromContactID int64           `json:"from_contact_id"`
	ToContactID   int64           `json:"to_contact_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// MutationResult is returned by add-funds and deduct-funds.
type MutationResult struct {
	Transaction Transaction `json:"transaction"`
}

// TransferResult carries the server-generated reference shared by both legs.
type TransferResult struct {
	Reference string      `json:"reference"`
	Debit     Transaction `json:"debit"`
	Credit    Transaction `json:"credit"`
}

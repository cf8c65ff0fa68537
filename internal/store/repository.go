/**
 * @description
 * This file defines the `Repository` interface, the contract for every data
 * access operation the wallet service needs. The application layer depends on
 * this interface only, which keeps it testable with in-memory stubs.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/transfa/wallet-desk/internal/domain"
)

var (
	ErrContactNotFound   = errors.New("contact not found")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletInactive    = errors.New("wallet is inactive")
	ErrSameWallet        = errors.New("cannot transfer to the same wallet")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Directory methods
	FindContactByID(ctx context.Context, contactID int64) (*domain.Contact, error)
	ListContacts(ctx context.Context) ([]domain.Contact, error)

	// Wallet methods
	FindWalletByContactID(ctx context.Context, contactID int64) (*domain.Wallet, error)
	EnsureWallet(ctx context.Context, contactID int64, currency string) (*domain.Wallet, error)

	// Ledger methods. Each runs in its own database transaction and returns the
	// entries it appended.
	CreditWallet(ctx context.Context, contactID int64, entry LedgerEntry) (*domain.Transaction, error)
	DebitWallet(ctx context.Context, contactID int64, entry LedgerEntry) (*domain.Transaction, error)
	TransferFunds(ctx context.Context, fromContactID, toContactID int64, entry LedgerEntry) (debit *domain.Transaction, credit *domain.Transaction, err error)
	FindTransactionsByWalletID(ctx context.Context, walletID int64, from, to time.Time) ([]domain.Transaction, error)

	// Reconciliation
	FindLedgerDrift(ctx context.Context, limit int) ([]LedgerDrift, error)
}

// LedgerEntry carries the caller-controlled fields of a new transaction.
type LedgerEntry struct {
	Amount      decimal.Decimal
	Description string
	Reference   string
	At          time.Time
}

// LedgerDrift is a wallet whose stored balance disagrees with the balance_after
// snapshot of its most recent transaction.
type LedgerDrift struct {
	WalletID     int64
	ContactID    int64
	Balance      decimal.Decimal
	BalanceAfter decimal.Decimal
}

// Difference returns Balance - BalanceAfter.
func (d LedgerDrift) Difference() decimal.Decimal {
	return d.Balance.Sub(d.BalanceAfter)
}

/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * Every balance change happens inside one database transaction that locks the
 * wallet row with FOR UPDATE, so the stored balance and the appended ledger entry
 * can never disagree and the balance can never go negative.
 *
 * @notes
 * - NUMERIC columns are read as text and parsed into decimal.Decimal, and written
 *   as text cast to numeric, so amounts never pass through float64.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/transfa/wallet-desk/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const contactColumns = `id, first_name, last_name, sms_number, COALESCE(email, '')`

const walletColumns = `id, contact_id, balance::text, currency, status, last_transaction_date, created_at, updated_at`

const transactionColumns = `id, wallet_id, type, amount::text, COALESCE(description, ''), COALESCE(reference, ''), balance_after::text, transaction_date`

// FindContactByID retrieves one directory entry.
func (r *PostgresRepository) FindContactByID(ctx context.Context, contactID int64) (*domain.Contact, error) {
	var c domain.Contact
	err := r.db.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, contactID).
		Scan(&c.ID, &c.FirstName, &c.LastName, &c.SMSNumber, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListContacts returns the whole directory ordered by name.
func (r *PostgresRepository) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	rows, err := r.db.Query(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY first_name, last_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []domain.Contact{}
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.SMSNumber, &c.Email); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// FindWalletByContactID retrieves the wallet owned by a contact.
func (r *PostgresRepository) FindWalletByContactID(ctx context.Context, contactID int64) (*domain.Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE contact_id = $1`, contactID)
	return scanWallet(row)
}

// EnsureWallet provisions an empty active wallet for the contact if none exists yet.
func (r *PostgresRepository) EnsureWallet(ctx context.Context, contactID int64, currency string) (*domain.Wallet, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO wallets (contact_id, currency)
		SELECT id, $2 FROM contacts WHERE id = $1
		ON CONFLICT (contact_id) DO NOTHING
	`, contactID, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to provision wallet: %w", err)
	}
	return r.FindWalletByContactID(ctx, contactID)
}

// CreditWallet adds entry.Amount to the contact's wallet and appends a credit entry.
func (r *PostgresRepository) CreditWallet(ctx context.Context, contactID int64, entry LedgerEntry) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	wallet, err := lockWallet(ctx, tx, contactID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive() {
		return nil, ErrWalletInactive
	}

	record, err := appendEntry(ctx, tx, wallet, domain.TransactionTypeCredit, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// DebitWallet subtracts entry.Amount from the contact's wallet and appends a debit entry.
func (r *PostgresRepository) DebitWallet(ctx context.Context, contactID int64, entry LedgerEntry) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	wallet, err := lockWallet(ctx, tx, contactID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive() {
		return nil, ErrWalletInactive
	}
	if wallet.Balance.LessThan(entry.Amount) {
		return nil, ErrInsufficientFunds
	}

	record, err := appendEntry(ctx, tx, wallet, domain.TransactionTypeDebit, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// TransferFunds moves entry.Amount between two wallets as a paired debit and credit
// sharing entry.Reference. Both wallets are locked in ascending contact id order.
func (r *PostgresRepository) TransferFunds(ctx context.Context, fromContactID, toContactID int64, entry LedgerEntry) (*domain.Transaction, *domain.Transaction, error) {
	if fromContactID == toContactID {
		return nil, nil, ErrSameWallet
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	locked := make(map[int64]*domain.Wallet, 2)
	for _, contactID := range lockOrder(fromContactID, toContactID) {
		w, err := lockWallet(ctx, tx, contactID)
		if err != nil {
			return nil, nil, err
		}
		locked[contactID] = w
	}
	sender, recipient := locked[fromContactID], locked[toContactID]

	if !sender.IsActive() || !recipient.IsActive() {
		return nil, nil, ErrWalletInactive
	}
	if sender.Balance.LessThan(entry.Amount) {
		return nil, nil, ErrInsufficientFunds
	}

	debit, err := appendEntry(ctx, tx, sender, domain.TransactionTypeDebit, entry)
	if err != nil {
		return nil, nil, err
	}
	credit, err := appendEntry(ctx, tx, recipient, domain.TransactionTypeCredit, entry)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return debit, credit, nil
}

// FindTransactionsByWalletID returns entries with from <= transaction_date < to, newest first.
func (r *PostgresRepository) FindTransactionsByWalletID(ctx context.Context, walletID int64, from, to time.Time) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE wallet_id = $1 AND transaction_date >= $2 AND transaction_date < $3
		ORDER BY transaction_date DESC, seq DESC
	`, walletID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// FindLedgerDrift lists wallets whose balance differs from their latest balance_after.
func (r *PostgresRepository) FindLedgerDrift(ctx context.Context, limit int) ([]LedgerDrift, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT w.id, w.contact_id, w.balance::text, last.balance_after::text
		FROM wallets w
		JOIN LATERAL (
			SELECT balance_after
			FROM wallet_transactions
			WHERE wallet_id = w.id
			ORDER BY transaction_date DESC, seq DESC
			LIMIT 1
		) last ON true
		WHERE w.balance <> last.balance_after
		ORDER BY w.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []LedgerDrift
	for rows.Next() {
		var d LedgerDrift
		var balance, after string
		if err := rows.Scan(&d.WalletID, &d.ContactID, &balance, &after); err != nil {
			return nil, err
		}
		if d.Balance, err = parseAmount(balance); err != nil {
			return nil, err
		}
		if d.BalanceAfter, err = parseAmount(after); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

func lockWallet(ctx context.Context, tx pgx.Tx, contactID int64) (*domain.Wallet, error) {
	row := tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE contact_id = $1 FOR UPDATE`, contactID)
	return scanWallet(row)
}

// appendEntry applies the entry to the locked wallet and inserts the ledger row.
func appendEntry(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, kind string, entry LedgerEntry) (*domain.Transaction, error) {
	balanceAfter := nextBalance(wallet.Balance, kind, entry.Amount)
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = $1::numeric, last_transaction_date = $2, updated_at = now()
		WHERE id = $3
	`, balanceAfter.StringFixed(domain.AmountPlaces), at, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", err)
	}

	record := &domain.Transaction{
		ID:              uuid.New(),
		WalletID:        wallet.ID,
		Type:            kind,
		Amount:          entry.Amount,
		Description:     entry.Description,
		Reference:       entry.Reference,
		BalanceAfter:    balanceAfter,
		TransactionDate: at,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, type, amount, description, reference, balance_after, transaction_date)
		VALUES ($1, $2, $3, $4::numeric, NULLIF($5, ''), NULLIF($6, ''), $7::numeric, $8)
	`, record.ID, record.WalletID, record.Type, record.Amount.StringFixed(domain.AmountPlaces),
		record.Description, record.Reference, record.BalanceAfter.StringFixed(domain.AmountPlaces), record.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("failed to insert wallet transaction: %w", err)
	}

	wallet.Balance = balanceAfter
	wallet.LastTransactionDate = &at
	return record, nil
}

func nextBalance(balance decimal.Decimal, kind string, amount decimal.Decimal) decimal.Decimal {
	if kind == domain.TransactionTypeDebit {
		return balance.Sub(amount)
	}
	return balance.Add(amount)
}

// lockOrder returns the two contact ids in the order their wallets must be locked.
func lockOrder(a, b int64) []int64 {
	if a <= b {
		return []int64{a, b}
	}
	return []int64{b, a}
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	var balance string
	err := row.Scan(&w.ID, &w.ContactID, &balance, &w.Currency, &w.Status, &w.LastTransactionDate, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	if w.Balance, err = parseAmount(balance); err != nil {
		return nil, err
	}
	return &w, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var amount, after string
	err := row.Scan(&t.ID, &t.WalletID, &t.Type, &amount, &t.Description, &t.Reference, &after, &t.TransactionDate)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if t.BalanceAfter, err = parseAmount(after); err != nil {
		return nil, err
	}
	return &t, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numeric value %q: %w", raw, err)
	}
	return d, nil
}

/**
 * @description
 * This file contains the core business logic of walletd. The `Service` struct
 * orchestrates every wallet read and mutation, coordinating between the
 * repository, the mutation rate limiter and the event publisher.
 *
 * Key features:
 * - Credit, debit and paired transfer with server-side balance enforcement.
 * - Day-filtered transaction history in the configured ledger timezone.
 * - Lazy wallet provisioning for contacts that have none yet.
 * - One wallet event per affected contact after every successful mutation.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/domain"
	"github.com/transfa/wallet-desk/internal/store"
	"github.com/transfa/wallet-desk/pkg/rabbitmq"
)

const (
	// DateLayout is the format of the transactions date filter.
	DateLayout = "2006-01-02"

	maxDescriptionLength = 255
	maxReferenceLength   = 100
	mutationScope        = "wallet_mutation"
)

// Service provides the core business logic for wallets.
type Service struct {
	repo           store.Repository
	publisher      rabbitmq.Publisher
	limiter        RateLimiter
	mutationsPerMn int
	currency       string
	location       *time.Location
	logger         *zap.Logger
	now            func() time.Time
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, publisher rabbitmq.Publisher, currency string, location *time.Location, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		currency:  currency,
		location:  location,
		logger:    logger.With(zap.String("component", "app")),
		now:       time.Now,
	}
}

// SetRateLimiter enables per-team-member mutation limiting.
func (s *Service) SetRateLimiter(limiter RateLimiter, perMinute int) {
	s.limiter = limiter
	s.mutationsPerMn = perMinute
}

// Location returns the timezone used to interpret date filters.
func (s *Service) Location() *time.Location {
	return s.location
}

// ListContacts returns the directory used for recipient resolution.
func (s *Service) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	return s.repo.ListContacts(ctx)
}

// GetWallet returns the balance snapshot of a contact, provisioning the wallet on first access.
func (s *Service) GetWallet(ctx context.Context, contactID int64) (*domain.WalletSnapshot, error) {
	contact, wallet, err := s.walletFor(ctx, contactID)
	if err != nil {
		return nil, err
	}
	return &domain.WalletSnapshot{Wallet: *wallet, Contact: *contact}, nil
}

// ListTransactions returns the contact's transactions on the given day (YYYY-MM-DD in
// the ledger timezone), newest first. An empty date means today.
func (s *Service) ListTransactions(ctx context.Context, contactID int64, date string) ([]domain.Transaction, error) {
	from, to, err := s.dayBounds(date)
	if err != nil {
		return nil, err
	}
	_, wallet, err := s.walletFor(ctx, contactID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindTransactionsByWalletID(ctx, wallet.ID, from, to)
}

// AddFunds credits the contact's wallet.
func (s *Service) AddFunds(ctx context.Context, session domain.Session, contactID int64, req domain.FundsRequest) (*domain.Transaction, error) {
	entry, err := s.prepareMutation(ctx, session, contactID, req)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.CreditWallet(ctx, contactID, entry)
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet credited",
		zap.Int64("contact_id", contactID),
		zap.String("amount", record.Amount.String()),
		zap.String("team_member_id", session.TeamMemberID),
	)
	s.publish(ctx, rabbitmq.RoutingKeyCredited, contactID, 0, record)
	return record, nil
}

// DeductFunds debits the contact's wallet. The repository rejects debits that would
// make the balance negative.
func (s *Service) DeductFunds(ctx context.Context, session domain.Session, contactID int64, req domain.FundsRequest) (*domain.Transaction, error) {
	entry, err := s.prepareMutation(ctx, session, contactID, req)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.DebitWallet(ctx, contactID, entry)
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet debited",
		zap.Int64("contact_id", contactID),
		zap.String("amount", record.Amount.String()),
		zap.String("team_member_id", session.TeamMemberID),
	)
	s.publish(ctx, rabbitmq.RoutingKeyDebited, contactID, 0, record)
	return record, nil
}

// Transfer moves funds between two contacts as a paired debit/credit with a
// server-generated reference.
func (s *Service) Transfer(ctx context.Context, session domain.Session, req domain.TransferRequest) (*domain.TransferResult, error) {
	if req.FromContactID <= 0 || req.ToContactID <= 0 {
		return nil, ErrInvalidContact
	}
	if req.FromContactID == req.ToContactID {
		return nil, ErrSelfTransfer
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return nil, ErrInvalidDescription
	}
	if err := s.consumeRateLimit(ctx, session); err != nil {
		return nil, err
	}
	if _, _, err := s.walletFor(ctx, req.FromContactID); err != nil {
		return nil, err
	}
	if _, _, err := s.walletFor(ctx, req.ToContactID); err != nil {
		return nil, err
	}

	entry := store.LedgerEntry{
		Amount:      req.Amount,
		Description: description,
		Reference:   NewTransferReference(),
		At:          s.now().UTC(),
	}
	debit, credit, err := s.repo.TransferFunds(ctx, req.FromContactID, req.ToContactID, entry)
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet transfer completed",
		zap.Int64("from_contact_id", req.FromContactID),
		zap.Int64("to_contact_id", req.ToContactID),
		zap.String("amount", req.Amount.String()),
		zap.String("reference", entry.Reference),
		zap.String("team_member_id", session.TeamMemberID),
	)
	s.publish(ctx, rabbitmq.RoutingKeyTransferComplete, req.FromContactID, req.ToContactID, debit)
	s.publish(ctx, rabbitmq.RoutingKeyTransferComplete, req.ToContactID, req.FromContactID, credit)

	return &domain.TransferResult{Reference: entry.Reference, Debit: *debit, Credit: *credit}, nil
}

// NewTransferReference returns an opaque reference such as "TRF-1A2B3C4D5E6F".
func NewTransferReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TRF-" + strings.ToUpper(id[:12])
}

func (s *Service) prepareMutation(ctx context.Context, session domain.Session, contactID int64, req domain.FundsRequest) (store.LedgerEntry, error) {
	if contactID <= 0 {
		return store.LedgerEntry{}, ErrInvalidContact
	}
	if err := validateAmount(req.Amount); err != nil {
		return store.LedgerEntry{}, err
	}
	description := strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return store.LedgerEntry{}, ErrInvalidDescription
	}
	reference := strings.TrimSpace(req.Reference)
	if utf8.RuneCountInString(reference) > maxReferenceLength {
		return store.LedgerEntry{}, ErrInvalidReference
	}
	if err := s.consumeRateLimit(ctx, session); err != nil {
		return store.LedgerEntry{}, err
	}
	if _, _, err := s.walletFor(ctx, contactID); err != nil {
		return store.LedgerEntry{}, err
	}
	return store.LedgerEntry{
		Amount:      req.Amount,
		Description: description,
		Reference:   reference,
		At:          s.now().UTC(),
	}, nil
}

// walletFor resolves the contact and its wallet, provisioning the wallet if missing.
func (s *Service) walletFor(ctx context.Context, contactID int64) (*domain.Contact, *domain.Wallet, error) {
	if contactID <= 0 {
		return nil, nil, ErrInvalidContact
	}
	contact, err := s.repo.FindContactByID(ctx, contactID)
	if err != nil {
		return nil, nil, err
	}
	wallet, err := s.repo.FindWalletByContactID(ctx, contactID)
	if errors.Is(err, store.ErrWalletNotFound) {
		s.logger.Info("provisioning wallet", zap.Int64("contact_id", contactID), zap.String("currency", s.currency))
		wallet, err = s.repo.EnsureWallet(ctx, contactID, s.currency)
	}
	if err != nil {
		return nil, nil, err
	}
	return contact, wallet, nil
}

func (s *Service) consumeRateLimit(ctx context.Context, session domain.Session) error {
	if s.limiter == nil || s.mutationsPerMn <= 0 {
		return nil
	}
	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, mutationScope, session.TeamMemberID, s.mutationsPerMn, time.Minute)
	if err != nil {
		// Fail open: a limiter outage must not block the ledger.
		s.logger.Warn("rate limiter unavailable", zap.Error(err))
		return nil
	}
	if count > s.mutationsPerMn {
		return &RateLimitError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

func (s *Service) dayBounds(date string) (time.Time, time.Time, error) {
	date = strings.TrimSpace(date)
	var day time.Time
	if date == "" {
		now := s.now().In(s.location)
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	} else {
		parsed, err := time.ParseInLocation(DateLayout, date, s.location)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidDate
		}
		day = parsed
	}
	return day, day.AddDate(0, 0, 1), nil
}

func (s *Service) publish(ctx context.Context, routingKey string, contactID, counterpartID int64, record *domain.Transaction) {
	event := rabbitmq.WalletEvent{
		Type:          record.Type,
		ContactID:     contactID,
		WalletID:      record.WalletID,
		CounterpartID: counterpartID,
		Amount:        record.Amount,
		BalanceAfter:  record.BalanceAfter,
		Reference:     record.Reference,
		OccurredAt:    record.TransactionDate,
	}
	if err := s.publisher.PublishWalletEvent(ctx, routingKey, event); err != nil {
		s.logger.Warn("wallet event publish failed",
			zap.String("routing_key", routingKey),
			zap.Int64("contact_id", contactID),
			zap.Error(err),
		)
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(domain.AmountPlaces)) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	return nil
}

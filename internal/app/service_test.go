package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/domain"
	"github.com/transfa/wallet-desk/internal/store"
	"github.com/transfa/wallet-desk/pkg/rabbitmq"
)

type memoryRepo struct {
	store.Repository

	mu       sync.Mutex
	contacts map[int64]domain.Contact
	wallets  map[int64]*domain.Wallet
	entries  map[int64][]domain.Transaction
	drift    []store.LedgerDrift
	ensured  []int64
	listFrom time.Time
	listTo   time.Time
}

func newMemoryRepo(contacts ...domain.Contact) *memoryRepo {
	r := &memoryRepo{
		contacts: map[int64]domain.Contact{},
		wallets:  map[int64]*domain.Wallet{},
		entries:  map[int64][]domain.Transaction{},
	}
	for _, c := range contacts {
		r.contacts[c.ID] = c
	}
	return r
}

func (r *memoryRepo) FindContactByID(_ context.Context, contactID int64) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[contactID]
	if !ok {
		return nil, store.ErrContactNotFound
	}
	return &c, nil
}

func (r *memoryRepo) ListContacts(context.Context) ([]domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Contact, 0, len(r.contacts))
	for _, c := range r.contacts {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryRepo) FindWalletByContactID(_ context.Context, contactID int64) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[contactID]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	out := *w
	return &out, nil
}

func (r *memoryRepo) EnsureWallet(_ context.Context, contactID int64, currency string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensured = append(r.ensured, contactID)
	if _, ok := r.wallets[contactID]; !ok {
		r.wallets[contactID] = &domain.Wallet{
			ID:        contactID * 100,
			ContactID: contactID,
			Balance:   decimal.Zero,
			Currency:  currency,
			Status:    domain.WalletStatusActive,
		}
	}
	out := *r.wallets[contactID]
	return &out, nil
}

func (r *memoryRepo) apply(contactID int64, kind string, entry store.LedgerEntry) (*domain.Transaction, error) {
	w, ok := r.wallets[contactID]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	if !w.IsActive() {
		return nil, store.ErrWalletInactive
	}
	next := w.Balance.Add(entry.Amount)
	if kind == domain.TransactionTypeDebit {
		next = w.Balance.Sub(entry.Amount)
		if next.IsNegative() {
			return nil, store.ErrInsufficientFunds
		}
	}
	w.Balance = next
	record := domain.Transaction{
		ID:              uuid.New(),
		WalletID:        w.ID,
		Type:            kind,
		Amount:          entry.Amount,
		Description:     entry.Description,
		Reference:       entry.Reference,
		BalanceAfter:    next,
		TransactionDate: entry.At,
	}
	r.entries[contactID] = append(r.entries[contactID], record)
	return &record, nil
}

func (r *memoryRepo) CreditWallet(_ context.Context, contactID int64, entry store.LedgerEntry) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apply(contactID, domain.TransactionTypeCredit, entry)
}

func (r *memoryRepo) DebitWallet(_ context.Context, contactID int64, entry store.LedgerEntry) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apply(contactID, domain.TransactionTypeDebit, entry)
}

func (r *memoryRepo) TransferFunds(_ context.Context, from, to int64, entry store.LedgerEntry) (*domain.Transaction, *domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	debit, err := r.apply(from, domain.TransactionTypeDebit, entry)
	if err != nil {
		return nil, nil, err
	}
	credit, err := r.apply(to, domain.TransactionTypeCredit, entry)
	if err != nil {
		return nil, nil, err
	}
	return debit, credit, nil
}

func (r *memoryRepo) FindTransactionsByWalletID(_ context.Context, walletID int64, from, to time.Time) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listFrom, r.listTo = from, to
	var out []domain.Transaction
	for _, list := range r.entries {
		for i := len(list) - 1; i >= 0; i-- {
			tx := list[i]
			if tx.WalletID == walletID && !tx.TransactionDate.Before(from) && tx.TransactionDate.Before(to) {
				out = append(out, tx)
			}
		}
	}
	return out, nil
}

func (r *memoryRepo) FindLedgerDrift(_ context.Context, limit int) ([]store.LedgerDrift, error) {
	if len(r.drift) > limit {
		return r.drift[:limit], nil
	}
	return r.drift, nil
}

type publishedEvent struct {
	routingKey string
	event      rabbitmq.WalletEvent
}

type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *publisherStub) PublishWalletEvent(_ context.Context, routingKey string, event rabbitmq.WalletEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{routingKey: routingKey, event: event})
	return p.err
}

func (p *publisherStub) Close() {}

type limiterStub struct {
	count      int
	retryAfter int
	err        error
	calls      int
	subject    string
}

func (l *limiterStub) ConsumeRateLimit(_ context.Context, _ string, subject string, _ int, _ time.Duration) (int, int, error) {
	l.calls++
	l.subject = subject
	return l.count, l.retryAfter, l.err
}

var (
	juan  = domain.Contact{ID: 1, FirstName: "Juan", LastName: "Delacruz", SMSNumber: "09171234567"}
	maria = domain.Contact{ID: 2, FirstName: "Maria", LastName: "Santos", SMSNumber: "09181234567"}
	admin = domain.Session{TeamMemberID: "tm-1", Name: "Ana", Roles: []string{domain.RoleAdmin}}
)

func newTestService(repo store.Repository, publisher rabbitmq.Publisher) *Service {
	svc := NewService(repo, publisher, "PHP", time.UTC, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC) }
	return svc
}

func TestGetWallet_ProvisionsMissingWallet(t *testing.T) {
	repo := newMemoryRepo(juan)
	svc := newTestService(repo, &publisherStub{})

	snapshot, err := svc.GetWallet(context.Background(), juan.ID)
	require.NoError(t, err)

	assert.Equal(t, []int64{juan.ID}, repo.ensured)
	assert.True(t, snapshot.Wallet.Balance.IsZero())
	assert.Equal(t, "PHP", snapshot.Wallet.Currency)
	assert.Equal(t, "Juan Delacruz", snapshot.Contact.FullName())
}

func TestGetWallet_UnknownContact(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &publisherStub{})

	_, err := svc.GetWallet(context.Background(), 42)
	assert.ErrorIs(t, err, store.ErrContactNotFound)

	_, err = svc.GetWallet(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidContact)
}

func TestAddFunds_IncreasesBalanceAndPublishes(t *testing.T) {
	repo := newMemoryRepo(juan)
	publisher := &publisherStub{}
	svc := newTestService(repo, publisher)

	record, err := svc.AddFunds(context.Background(), admin, juan.ID, domain.FundsRequest{
		Amount:      decimal.RequireFromString("150.25"),
		Description: "  top-up  ",
		Reference:   "OR-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionTypeCredit, record.Type)
	assert.Equal(t, "top-up", record.Description)
	assert.True(t, record.BalanceAfter.Equal(decimal.RequireFromString("150.25")))

	snapshot, err := svc.GetWallet(context.Background(), juan.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Wallet.Balance.Equal(decimal.RequireFromString("150.25")))

	require.Len(t, publisher.events, 1)
	assert.Equal(t, rabbitmq.RoutingKeyCredited, publisher.events[0].routingKey)
	assert.Equal(t, juan.ID, publisher.events[0].event.ContactID)
}

func TestAddFunds_RejectsInvalidInput(t *testing.T) {
	svc := newTestService(newMemoryRepo(juan), &publisherStub{})
	long := make([]rune, maxDescriptionLength+1)
	for i := range long {
		long[i] = 'a'
	}

	cases := []struct {
		name string
		req  domain.FundsRequest
		want error
	}{
		{"zero amount", domain.FundsRequest{Amount: decimal.Zero}, ErrInvalidAmount},
		{"negative amount", domain.FundsRequest{Amount: decimal.NewFromInt(-5)}, ErrInvalidAmount},
		{"three decimals", domain.FundsRequest{Amount: decimal.RequireFromString("1.005")}, ErrInvalidAmount},
		{"long description", domain.FundsRequest{Amount: decimal.NewFromInt(1), Description: string(long)}, ErrInvalidDescription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddFunds(context.Background(), admin, juan.ID, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDeductFunds_InsufficientBalanceLeavesWalletUntouched(t *testing.T) {
	repo := newMemoryRepo(juan)
	publisher := &publisherStub{}
	svc := newTestService(repo, publisher)
	ctx := context.Background()

	_, err := svc.AddFunds(ctx, admin, juan.ID, domain.FundsRequest{Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)

	_, err = svc.DeductFunds(ctx, admin, juan.ID, domain.FundsRequest{Amount: decimal.RequireFromString("100.01")})
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)

	snapshot, err := svc.GetWallet(ctx, juan.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Wallet.Balance.Equal(decimal.NewFromInt(100)))
	assert.Len(t, publisher.events, 1)

	record, err := svc.DeductFunds(ctx, admin, juan.ID, domain.FundsRequest{Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.True(t, record.BalanceAfter.IsZero())
	assert.Equal(t, rabbitmq.RoutingKeyDebited, publisher.events[1].routingKey)
}

func TestTransfer_MovesFundsWithSharedReference(t *testing.T) {
	repo := newMemoryRepo(juan, maria)
	publisher := &publisherStub{}
	svc := newTestService(repo, publisher)
	ctx := context.Background()

	_, err := svc.AddFunds(ctx, admin, juan.ID, domain.FundsRequest{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	result, err := svc.Transfer(ctx, admin, domain.TransferRequest{
		FromContactID: juan.ID,
		ToContactID:   maria.ID,
		Amount:        decimal.RequireFromString("120.50"),
		Description:   "rent share",
	})
	require.NoError(t, err)

	assert.Regexp(t, `^TRF-[0-9A-F]{12}$`, result.Reference)
	assert.Equal(t, result.Reference, result.Debit.Reference)
	assert.Equal(t, result.Reference, result.Credit.Reference)
	assert.True(t, result.Debit.BalanceAfter.Equal(decimal.RequireFromString("379.50")))
	assert.True(t, result.Credit.BalanceAfter.Equal(decimal.RequireFromString("120.50")))

	require.Len(t, publisher.events, 3)
	assert.Equal(t, rabbitmq.RoutingKeyTransferComplete, publisher.events[1].routingKey)
	assert.Equal(t, juan.ID, publisher.events[1].event.ContactID)
	assert.Equal(t, maria.ID, publisher.events[1].event.CounterpartID)
	assert.Equal(t, maria.ID, publisher.events[2].event.ContactID)
	assert.Equal(t, juan.ID, publisher.events[2].event.CounterpartID)
}

func TestTransfer_Validation(t *testing.T) {
	svc := newTestService(newMemoryRepo(juan, maria), &publisherStub{})
	ctx := context.Background()

	_, err := svc.Transfer(ctx, admin, domain.TransferRequest{FromContactID: juan.ID, ToContactID: juan.ID, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrSelfTransfer)

	_, err = svc.Transfer(ctx, admin, domain.TransferRequest{FromContactID: juan.ID, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalidContact)

	_, err = svc.Transfer(ctx, admin, domain.TransferRequest{FromContactID: juan.ID, ToContactID: 99, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, store.ErrContactNotFound)

	_, err = svc.Transfer(ctx, admin, domain.TransferRequest{FromContactID: juan.ID, ToContactID: maria.ID, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)
}

func TestMutation_PublishFailureDoesNotFailRequest(t *testing.T) {
	publisher := &publisherStub{err: errors.New("broker down")}
	svc := newTestService(newMemoryRepo(juan), publisher)

	_, err := svc.AddFunds(context.Background(), admin, juan.ID, domain.FundsRequest{Amount: decimal.NewFromInt(1)})
	assert.NoError(t, err)
	assert.Len(t, publisher.events, 1)
}

func TestListTransactions_FiltersByLedgerDay(t *testing.T) {
	manila := time.FixedZone("PHT", 8*60*60)
	repo := newMemoryRepo(juan)
	svc := NewService(repo, &publisherStub{}, "PHP", manila, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	_, err := svc.AddFunds(ctx, admin, juan.ID, domain.FundsRequest{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	today, err := svc.ListTransactions(ctx, juan.ID, "")
	require.NoError(t, err)
	assert.Len(t, today, 1)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, manila), repo.listFrom)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, manila), repo.listTo)

	yesterday, err := svc.ListTransactions(ctx, juan.ID, "2024-03-04")
	require.NoError(t, err)
	assert.Empty(t, yesterday)

	_, err = svc.ListTransactions(ctx, juan.ID, "05/03/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	svc := newTestService(newMemoryRepo(juan), &publisherStub{})
	limiter := &limiterStub{count: 4, retryAfter: 17}
	svc.SetRateLimiter(limiter, 3)

	_, err := svc.AddFunds(context.Background(), admin, juan.ID, domain.FundsRequest{Amount: decimal.NewFromInt(1)})

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 17, rateErr.RetryAfterSeconds)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, admin.TeamMemberID, limiter.subject)
}

func TestRateLimit_FailsOpenOnLimiterError(t *testing.T) {
	svc := newTestService(newMemoryRepo(juan), &publisherStub{})
	limiter := &limiterStub{err: errors.New("redis unreachable")}
	svc.SetRateLimiter(limiter, 3)

	_, err := svc.AddFunds(context.Background(), admin, juan.ID, domain.FundsRequest{Amount: decimal.NewFromInt(1)})
	assert.NoError(t, err)
	assert.Equal(t, 1, limiter.calls)
}

func TestNewTransferReference_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref := NewTransferReference()
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

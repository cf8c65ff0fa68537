/**
 * @description
 * This package holds the console's wallet ledger view-model and its mutation
 * dialogs. The view-model owns the balance, the day-filtered transaction list
 * and the page cursor for one contact. Mutations never touch local state
 * directly: a successful credit, debit or transfer is followed by a refetch.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Exact amounts for local balance checks.
 */
package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/transfa/wallet-desk/internal/currency"
	"github.com/transfa/wallet-desk/internal/domain"
	"github.com/transfa/wallet-desk/internal/notify"
	"github.com/transfa/wallet-desk/internal/paginate"
	"github.com/transfa/wallet-desk/pkg/walletclient"
)

const (
	// PageSize is the number of transactions shown per page.
	PageSize = 10

	// DateLayout is the format of the transaction date filter.
	DateLayout = "2006-01-02"

	keyWallet       = "wallet"
	keyTransactions = "transactions"
)

// Gateway is the remote API the view-model talks to. walletclient.Client implements it.
type Gateway interface {
	GetWallet(ctx context.Context, contactID int64) (*domain.WalletSnapshot, error)
	ListTransactions(ctx context.Context, contactID int64, date string) ([]domain.Transaction, error)
	AddFunds(ctx context.Context, contactID int64, req domain.FundsRequest) (*domain.Transaction, error)
	DeductFunds(ctx context.Context, contactID int64, req domain.FundsRequest) (*domain.Transaction, error)
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
	ListContacts(ctx context.Context) ([]domain.Contact, error)
}

// Options configures a ViewModel.
type Options struct {
	Session   domain.Session
	Notifier  notify.Notifier
	Formatter currency.Formatter
	Location  *time.Location
	Now       func() time.Time
}

// State is an immutable copy of the view-model for rendering.
type State struct {
	Wallet              *domain.Wallet
	Contact             *domain.Contact
	Transactions        []domain.Transaction
	TransactionCount    int
	SelectedDate        string
	Page                int
	TotalPages          int
	LoadingWallet       bool
	LoadingTransactions bool
	UI                  UIState
}

// ViewModel is the ledger screen of one contact's wallet.
type ViewModel struct {
	gateway   Gateway
	contactID int64
	session   domain.Session
	notifier  notify.Notifier
	formatter currency.Formatter
	seq       *walletclient.Sequencer

	mu                  sync.Mutex
	wallet              *domain.Wallet
	contact             *domain.Contact
	transactions        []domain.Transaction
	selectedDate        string
	page                int
	loadingWallet       bool
	loadingTransactions bool
	ui                  UIState
}

// NewViewModel binds a view-model to contactID. The date filter starts at today.
func NewViewModel(gateway Gateway, contactID int64, opts Options) *ViewModel {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	if opts.Formatter == (currency.Formatter{}) {
		opts.Formatter = currency.Default
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ViewModel{
		gateway:      gateway,
		contactID:    contactID,
		session:      opts.Session,
		notifier:     opts.Notifier,
		formatter:    opts.Formatter,
		seq:          walletclient.NewSequencer(),
		selectedDate: opts.Now().In(opts.Location).Format(DateLayout),
		page:         1,
	}
}

// ContactID returns the contact whose wallet is shown.
func (vm *ViewModel) ContactID() int64 { return vm.contactID }

// Session returns the team member operating the screen.
func (vm *ViewModel) Session() domain.Session { return vm.session }

// Formatter returns the currency formatter used for messages.
func (vm *ViewModel) Formatter() currency.Formatter { return vm.formatter }

// LoadWallet fetches the balance snapshot. Superseded responses are dropped.
func (vm *ViewModel) LoadWallet(ctx context.Context) error {
	ctx, ticket := vm.seq.Begin(ctx, keyWallet)
	defer ticket.Done()

	vm.mu.Lock()
	vm.loadingWallet = true
	vm.mu.Unlock()

	snapshot, err := vm.gateway.GetWallet(ctx, vm.contactID)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !ticket.Current() {
		return nil
	}
	vm.loadingWallet = false
	if err != nil {
		return err
	}
	wallet, contact := snapshot.Wallet, snapshot.Contact
	vm.wallet = &wallet
	vm.contact = &contact
	return nil
}

// LoadTransactions fetches the transactions of date (YYYY-MM-DD). An empty
// date reloads the current filter. Changing the date resets the page to 1
// before the request goes out.
func (vm *ViewModel) LoadTransactions(ctx context.Context, date string) error {
	date = strings.TrimSpace(date)

	vm.mu.Lock()
	if date == "" {
		date = vm.selectedDate
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		vm.mu.Unlock()
		return vm.reject(ctx, ErrInvalidDate)
	}
	if date != vm.selectedDate {
		vm.selectedDate = date
		vm.page = 1
	}
	vm.loadingTransactions = true
	vm.mu.Unlock()

	ctx, ticket := vm.seq.Begin(ctx, keyTransactions)
	defer ticket.Done()

	transactions, err := vm.gateway.ListTransactions(ctx, vm.contactID, date)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !ticket.Current() {
		return nil
	}
	vm.loadingTransactions = false
	if err != nil {
		return err
	}
	vm.transactions = transactions
	vm.page = paginate.Clamp(vm.page, len(transactions), PageSize)
	return nil
}

// Invalidate refetches the wallet and then the transactions of the current date.
func (vm *ViewModel) Invalidate(ctx context.Context) error {
	walletErr := vm.LoadWallet(ctx)
	transactionsErr := vm.LoadTransactions(ctx, "")
	return errors.Join(walletErr, transactionsErr)
}

// Credit adds funds to the wallet.
func (vm *ViewModel) Credit(ctx context.Context, amount decimal.Decimal, description, reference string) error {
	if !amount.IsPositive() {
		return vm.reject(ctx, ErrInvalidAmount)
	}
	if _, err := vm.gateway.AddFunds(ctx, vm.contactID, domain.FundsRequest{
		Amount:      amount,
		Description: description,
		Reference:   reference,
	}); err != nil {
		return err
	}
	vm.notifier.Notify(ctx, notify.Success("Added %s to the wallet", vm.formatter.Format(amount)))
	vm.refresh(ctx)
	return nil
}

// Debit removes funds from the wallet. The amount must not exceed the loaded balance.
func (vm *ViewModel) Debit(ctx context.Context, amount decimal.Decimal, description, reference string) error {
	if err := vm.checkSpend(ctx, amount); err != nil {
		return err
	}
	if _, err := vm.gateway.DeductFunds(ctx, vm.contactID, domain.FundsRequest{
		Amount:      amount,
		Description: description,
		Reference:   reference,
	}); err != nil {
		return err
	}
	vm.notifier.Notify(ctx, notify.Success("Deducted %s from the wallet", vm.formatter.Format(amount)))
	vm.refresh(ctx)
	return nil
}

// Transfer sends funds to another contact. toContactID comes from recipient resolution.
func (vm *ViewModel) Transfer(ctx context.Context, toContactID string, amount decimal.Decimal, description string) error {
	to, err := parseContactID(toContactID)
	if err != nil {
		return vm.reject(ctx, ErrRecipientRequired)
	}
	if err := vm.checkSpend(ctx, amount); err != nil {
		return err
	}
	result, err := vm.gateway.Transfer(ctx, domain.TransferRequest{
		FromContactID: vm.contactID,
		ToContactID:   to,
		Amount:        amount,
		Description:   description,
	})
	if err != nil {
		return err
	}
	vm.notifier.Notify(ctx, notify.Success("Transferred %s. Reference: %s", vm.formatter.Format(amount), result.Reference))
	vm.refresh(ctx)
	return nil
}

// refresh reloads after a successful mutation. Load failures were already
// reported by the gateway and do not undo the mutation.
func (vm *ViewModel) refresh(ctx context.Context) {
	_ = vm.Invalidate(ctx)
}

func (vm *ViewModel) checkSpend(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return vm.reject(ctx, ErrInvalidAmount)
	}
	vm.mu.Lock()
	balance := decimal.Zero
	if vm.wallet != nil {
		balance = vm.wallet.Balance
	}
	vm.mu.Unlock()
	if amount.GreaterThan(balance) {
		return vm.reject(ctx, ErrInsufficientBalance)
	}
	return nil
}

func (vm *ViewModel) reject(ctx context.Context, err error) error {
	vm.notifier.Notify(ctx, notify.Error(err.Error()))
	return &ValidationError{Err: err}
}

func parseContactID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrRecipientRequired
	}
	return id, nil
}

// SetPage moves to page n, clamped to the available pages.
func (vm *ViewModel) SetPage(n int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.page = paginate.Clamp(n, len(vm.transactions), PageSize)
}

// NextPage advances one page if possible.
func (vm *ViewModel) NextPage() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.page = paginate.Clamp(vm.page+1, len(vm.transactions), PageSize)
}

// PrevPage goes back one page if possible.
func (vm *ViewModel) PrevPage() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.page = paginate.Clamp(vm.page-1, len(vm.transactions), PageSize)
}

// Page returns the current 1-based page.
func (vm *ViewModel) Page() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.page
}

// TotalPages returns the number of pages of the loaded transactions.
func (vm *ViewModel) TotalPages() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return paginate.TotalPages(len(vm.transactions), PageSize)
}

// Snapshot copies the current state.
func (vm *ViewModel) Snapshot() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	state := State{
		Transactions:        append([]domain.Transaction(nil), paginate.Page(vm.transactions, vm.page, PageSize)...),
		TransactionCount:    len(vm.transactions),
		SelectedDate:        vm.selectedDate,
		Page:                vm.page,
		TotalPages:          paginate.TotalPages(len(vm.transactions), PageSize),
		LoadingWallet:       vm.loadingWallet,
		LoadingTransactions: vm.loadingTransactions,
		UI:                  vm.ui,
	}
	if vm.wallet != nil {
		wallet := *vm.wallet
		state.Wallet = &wallet
	}
	if vm.contact != nil {
		contact := *vm.contact
		state.Contact = &contact
	}
	return state
}

// UI returns the dialog state.
func (vm *ViewModel) UI() UIState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.ui
}

// transitionUI moves from one dialog state to another and reports whether the
// current state was from.
func (vm *ViewModel) transitionUI(from, to UIState) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.ui != from {
		return false
	}
	vm.ui = to
	return true
}

func (vm *ViewModel) setUI(state UIState) {
	vm.mu.Lock()
	vm.ui = state
	vm.mu.Unlock()
}

// Close aborts every in-flight request.
func (vm *ViewModel) Close() {
	vm.seq.CancelAll()
}

package ledger

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/transfa/wallet-desk/internal/domain"
	"github.com/transfa/wallet-desk/internal/recipient"
)

// FundsForm is the add-funds and deduct-funds dialog form.
type FundsForm struct {
	Amount      string
	Description string
	Reference   string
}

// TransferForm is the transfer dialog form.
type TransferForm struct {
	Phone       string
	Amount      string
	Description string
	Recipient   recipient.Resolution
}

// Dialogs drives the mutation dialogs of a ViewModel. Only one dialog is open
// at a time and every submission ends in either idle (success) or the same
// dialog with its form intact (failure).
type Dialogs struct {
	vm *ViewModel

	mu       sync.Mutex
	funds    FundsForm
	transfer TransferForm
	resolver *recipient.Resolver
}

// NewDialogs creates the dialog controllers of vm.
func NewDialogs(vm *ViewModel) *Dialogs {
	return &Dialogs{vm: vm}
}

// LoadDirectory fetches the contact directory used to resolve transfer recipients.
func (d *Dialogs) LoadDirectory(ctx context.Context) error {
	contacts, err := d.vm.gateway.ListContacts(ctx)
	if err != nil {
		return err
	}
	resolver := recipient.NewResolver(contacts, d.vm.contactID)

	d.mu.Lock()
	d.resolver = resolver
	d.mu.Unlock()
	return nil
}

// Open shows the dialog of kind. Add and deduct require an admin or manager.
func (d *Dialogs) Open(ctx context.Context, kind DialogKind) error {
	if err := d.permitted(kind); err != nil {
		return d.vm.reject(ctx, err)
	}
	if !d.vm.transitionUI(Idle(), DialogOpen(kind)) {
		return ErrDialogBusy
	}
	d.clearForms()
	return nil
}

func (d *Dialogs) permitted(kind DialogKind) error {
	session := d.vm.session
	switch kind {
	case DialogAddFunds, DialogDeductFunds:
		if !domain.CanAdjustFunds(session) {
			return ErrNotPermitted
		}
	case DialogTransfer:
		if !session.Authenticated() {
			return ErrNotPermitted
		}
	default:
		return ErrNotPermitted
	}
	return nil
}

// Cancel closes any open dialog and clears its form.
func (d *Dialogs) Cancel() {
	d.vm.setUI(Idle())
	d.clearForms()
}

// SetFunds replaces the funds form.
func (d *Dialogs) SetFunds(form FundsForm) {
	d.mu.Lock()
	d.funds = form
	d.mu.Unlock()
}

// Funds returns the funds form.
func (d *Dialogs) Funds() FundsForm {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.funds
}

// SetTransferAmount sets the amount and description of the transfer form.
func (d *Dialogs) SetTransferAmount(amount, description string) {
	d.mu.Lock()
	d.transfer.Amount = amount
	d.transfer.Description = description
	d.mu.Unlock()
}

// SetPhone updates the recipient number and resolves it against the directory.
func (d *Dialogs) SetPhone(input string) recipient.Resolution {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transfer.Phone = input
	d.transfer.Recipient = d.resolver.Lookup(input, d.transfer.Recipient)
	return d.transfer.Recipient
}

// Transfer returns the transfer form.
func (d *Dialogs) Transfer() TransferForm {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transfer
}

// Submit sends the open dialog's form.
func (d *Dialogs) Submit(ctx context.Context) error {
	state := d.vm.UI()
	if state.Phase != PhaseDialogOpen {
		return ErrDialogBusy
	}
	kind := state.Kind

	d.mu.Lock()
	funds, transfer := d.funds, d.transfer
	d.mu.Unlock()

	rawAmount := funds.Amount
	if kind == DialogTransfer {
		rawAmount = transfer.Amount
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(rawAmount))
	if err != nil {
		return d.vm.reject(ctx, ErrInvalidAmount)
	}

	if !d.vm.transitionUI(DialogOpen(kind), Submitting(kind)) {
		return ErrDialogBusy
	}

	switch kind {
	case DialogAddFunds:
		err = d.vm.Credit(ctx, amount, funds.Description, funds.Reference)
	case DialogDeductFunds:
		err = d.vm.Debit(ctx, amount, funds.Description, funds.Reference)
	case DialogTransfer:
		err = d.vm.Transfer(ctx, transfer.Recipient.ToContactID, amount, transfer.Description)
	}

	if err != nil {
		d.vm.setUI(DialogOpen(kind))
		return err
	}
	d.vm.setUI(Idle())
	d.clearForms()
	return nil
}

func (d *Dialogs) clearForms() {
	d.mu.Lock()
	d.funds = FundsForm{}
	d.transfer = TransferForm{}
	d.mu.Unlock()
}

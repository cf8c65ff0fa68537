package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/transfa/wallet-desk/internal/currency"
	"github.com/transfa/wallet-desk/internal/domain"
	"github.com/transfa/wallet-desk/internal/ledger"
	"github.com/transfa/wallet-desk/internal/recipient"
)

func renderBalance(w io.Writer, state ledger.State, f currency.Formatter) {
	if state.Wallet == nil {
		fmt.Fprintln(w, "Wallet not loaded")
		return
	}
	name := ""
	if state.Contact != nil {
		name = state.Contact.FullName()
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Contact\t%s\n", name)
	fmt.Fprintf(tw, "Balance\t%s\n", f.Format(state.Wallet.Balance))
	fmt.Fprintf(tw, "Status\t%s\n", state.Wallet.Status)
	if state.Wallet.LastTransactionDate != nil {
		fmt.Fprintf(tw, "Last activity\t%s\n", state.Wallet.LastTransactionDate.Format(time.RFC1123))
	}
	tw.Flush()
}

func renderTransactions(w io.Writer, state ledger.State, f currency.Formatter, loc *time.Location) {
	fmt.Fprintf(w, "Transactions on %s (page %d of %d, %d total)\n", state.SelectedDate, state.Page, max(state.TotalPages, 1), state.TransactionCount)
	if len(state.Transactions) == 0 {
		fmt.Fprintln(w, "No transactions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tAMOUNT\tBALANCE\tREFERENCE\tDESCRIPTION")
	for _, tx := range state.Transactions {
		amount := f.Format(tx.Amount)
		if !tx.IsCredit() {
			amount = f.Format(tx.Amount.Neg())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.TransactionDate.In(loc).Format("15:04:05"),
			tx.Type,
			amount,
			f.Format(tx.BalanceAfter),
			tx.Reference,
			tx.Description,
		)
	}
	tw.Flush()
}

func renderContacts(w io.Writer, contacts []domain.Contact) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSMS")
	for _, c := range contacts {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, recipient.MaskName(c.FullName()), c.SMSNumber)
	}
	tw.Flush()
}

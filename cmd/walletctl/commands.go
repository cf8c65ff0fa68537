package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/ledger"
	"github.com/transfa/wallet-desk/pkg/rabbitmq"
)

func newBalanceCmd(c *console) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet balance of a contact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vm, err := c.viewModel(cmd.Context())
			if err != nil {
				return err
			}
			defer vm.Close()
			if err := vm.LoadWallet(cmd.Context()); err != nil {
				return err
			}
			renderBalance(cmd.OutOrStdout(), vm.Snapshot(), c.formatter)
			return nil
		},
	}
}

func newHistoryCmd(c *console) *cobra.Command {
	var date string
	var page int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the transactions of one day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vm, err := c.viewModel(cmd.Context())
			if err != nil {
				return err
			}
			defer vm.Close()
			if err := vm.LoadTransactions(cmd.Context(), date); err != nil {
				return err
			}
			vm.SetPage(page)
			renderTransactions(cmd.OutOrStdout(), vm.Snapshot(), c.formatter, c.cfg.Location())
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to show (YYYY-MM-DD), defaults to today")
	cmd.Flags().IntVar(&page, "page", 1, "page of results")
	return cmd
}

func newFundsCmd(c *console, kind ledger.DialogKind) *cobra.Command {
	use, short := "credit", "Add funds to a wallet"
	if kind == ledger.DialogDeductFunds {
		use, short = "debit", "Deduct funds from a wallet"
	}
	var form ledger.FundsForm
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			vm, err := c.viewModel(ctx)
			if err != nil {
				return err
			}
			defer vm.Close()
			if err := vm.LoadWallet(ctx); err != nil {
				return err
			}

			dialogs := ledger.NewDialogs(vm)
			if err := dialogs.Open(ctx, kind); err != nil {
				return err
			}
			dialogs.SetFunds(form)
			if err := dialogs.Submit(ctx); err != nil {
				return err
			}
			renderBalance(cmd.OutOrStdout(), vm.Snapshot(), c.formatter)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Amount, "amount", "", "amount, e.g. 1500.00")
	cmd.Flags().StringVar(&form.Description, "description", "", "optional description")
	cmd.Flags().StringVar(&form.Reference, "reference", "", "optional external reference")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newTransferCmd(c *console) *cobra.Command {
	var phone, amount, description string
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer funds to the contact with the given SMS number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			vm, err := c.viewModel(ctx)
			if err != nil {
				return err
			}
			defer vm.Close()
			if err := vm.LoadWallet(ctx); err != nil {
				return err
			}

			dialogs := ledger.NewDialogs(vm)
			if err := dialogs.LoadDirectory(ctx); err != nil {
				return err
			}
			if err := dialogs.Open(ctx, ledger.DialogTransfer); err != nil {
				return err
			}
			resolution := dialogs.SetPhone(phone)
			if resolution.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", phone, resolution.Err)
			} else if resolution.Resolved() {
				fmt.Fprintf(cmd.OutOrStdout(), "Recipient: %s\n", resolution.Name)
			}
			dialogs.SetTransferAmount(amount, description)
			if err := dialogs.Submit(ctx); err != nil {
				return err
			}
			renderBalance(cmd.OutOrStdout(), vm.Snapshot(), c.formatter)
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "to-phone", "", "recipient SMS number")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 250.00")
	cmd.Flags().StringVar(&description, "description", "", "optional description")
	_ = cmd.MarkFlagRequired("to-phone")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newContactsCmd(c *console) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List the contact directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			contacts, err := c.client.ListContacts(cmd.Context())
			if err != nil {
				return err
			}
			renderContacts(cmd.OutOrStdout(), contacts)
			return nil
		},
	}
}

func newWatchCmd(c *console) *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the balance and refresh it whenever a wallet event arrives",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.RabbitMQURL == "" {
				return fmt.Errorf("RABBITMQ_URL is required for watch")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			vm, err := c.viewModel(ctx)
			if err != nil {
				return err
			}
			defer vm.Close()
			out := cmd.OutOrStdout()
			if err := vm.Invalidate(ctx); err != nil {
				return err
			}
			renderBalance(out, vm.Snapshot(), c.formatter)

			consumer, err := rabbitmq.NewConsumer(c.cfg.RabbitMQURL, c.logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			refresh := make(chan struct{}, 1)
			handler := func(body []byte) bool {
				var event rabbitmq.WalletEvent
				if err := json.Unmarshal(body, &event); err != nil {
					c.logger.Warn("malformed wallet event dropped", zap.Error(err))
					return true
				}
				if event.ContactID != vm.ContactID() {
					return true
				}
				select {
				case refresh <- struct{}{}:
				default:
				}
				return true
			}
			bindings := map[string]func([]byte) bool{
				rabbitmq.RoutingKeyCredited:         handler,
				rabbitmq.RoutingKeyDebited:          handler,
				rabbitmq.RoutingKeyTransferComplete: handler,
				rabbitmq.RoutingKeyLedgerDrift:      handler,
			}
			if err := consumer.ConsumeWithBindings(c.cfg.WalletEventsExchange, queue, bindings); err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-refresh:
					if err := vm.Invalidate(ctx); err != nil {
						continue
					}
					renderBalance(out, vm.Snapshot(), c.formatter)
				}
			}
		},
	}
	cmd.Flags().StringVar(&queue, "queue", "", "durable queue name; empty uses a private queue")
	return cmd
}


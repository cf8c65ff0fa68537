package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/config"
	"github.com/transfa/wallet-desk/internal/currency"
	"github.com/transfa/wallet-desk/internal/domain"
	"github.com/transfa/wallet-desk/internal/ledger"
	"github.com/transfa/wallet-desk/internal/logging"
	"github.com/transfa/wallet-desk/internal/notify"
	"github.com/transfa/wallet-desk/pkg/walletclient"
)

var errContactRequired = errors.New("--contact is required")

// console is the state shared by every subcommand.
type console struct {
	configDir string
	contactID int64

	cfg       config.ConsoleConfig
	logger    *zap.Logger
	notifier  notify.Notifier
	formatter currency.Formatter
	client    *walletclient.Client
}

func newRootCmd() *cobra.Command {
	c := &console{}
	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "Operate contact wallets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configDir, "config-dir", ".", "directory holding an optional .env file")
	root.PersistentFlags().Int64Var(&c.contactID, "contact", 0, "contact whose wallet to operate on")

	root.AddCommand(
		newBalanceCmd(c),
		newHistoryCmd(c),
		newFundsCmd(c, ledger.DialogAddFunds),
		newFundsCmd(c, ledger.DialogDeductFunds),
		newTransferCmd(c),
		newContactsCmd(c),
		newWatchCmd(c),
	)
	return root
}

func (c *console) init() error {
	_ = godotenv.Load()

	cfg, err := config.LoadConsoleConfig(c.configDir)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger.With(zap.String("service", "walletctl"))
	c.notifier = notify.Multi{notify.NewConsole(os.Stderr), notify.NewLogNotifier(c.logger)}
	c.formatter = currency.Formatter{
		Symbol:    cfg.CurrencySymbol,
		Thousands: cfg.ThousandsSeparator,
		Decimal:   cfg.DecimalSeparator,
		Places:    domain.AmountPlaces,
	}

	opts := []walletclient.Option{
		walletclient.WithNotifier(c.notifier),
		walletclient.WithTimeout(cfg.RequestTimeout()),
		walletclient.WithLogger(c.logger.With(zap.String("component", "walletclient"))),
	}
	if cfg.WalletCSRFToken != "" {
		opts = append(opts, walletclient.WithCSRF(walletclient.StaticCSRF(cfg.WalletCSRFToken)))
	}
	c.client = walletclient.NewClient(cfg.WalletAPIURL, cfg.WalletAPIToken, opts...)
	return nil
}

// viewModel resolves the session and binds a view-model to --contact.
func (c *console) viewModel(ctx context.Context) (*ledger.ViewModel, error) {
	if c.contactID <= 0 {
		return nil, errContactRequired
	}
	info, err := c.client.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.NewViewModel(c.client, c.contactID, ledger.Options{
		Session:   info.TeamMember,
		Notifier:  c.notifier,
		Formatter: c.formatter,
		Location:  c.cfg.Location(),
	}), nil
}

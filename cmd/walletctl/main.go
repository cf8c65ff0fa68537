/**
 * @description
 * walletctl is the operator console for contact wallets. It drives the ledger
 * view-model against walletd: balance and history views, the add/deduct/transfer
 * dialogs, and a live view refreshed by wallet events from RabbitMQ.
 *
 * @dependencies
 * - github.com/spf13/cobra: Command tree and flags.
 * - github.com/joho/godotenv: For loading .env files during local development.
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/transfa/wallet-desk/internal/ledger"
	"github.com/transfa/wallet-desk/pkg/walletclient"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !alreadyReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// alreadyReported is true for failures the notifier has shown to the operator.
func alreadyReported(err error) bool {
	var validation *ledger.ValidationError
	var business *walletclient.BusinessError
	var transport *walletclient.TransportError
	return errors.As(err, &validation) || errors.As(err, &business) || errors.As(err, &transport)
}

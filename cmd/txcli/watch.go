package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hedisam/txledger/internal/identity"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the ledger and print records as they are appended",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := opts.logger()

			client := opts.ledgerClient(logger)
			wallet, err := openWallet(opts, logger, client, from, identity.AutoApprove)
			if err != nil {
				return err
			}

			engine, stop, err := opts.startEngine(ctx, logger, client, wallet)
			if err != nil {
				return err
			}
			defer stop()

			err = engine.Connect(ctx)
			if err != nil {
				return fmt.Errorf("could not connect account: %w", err)
			}
			go engine.Watch(ctx, client.StreamCount(ctx, opts.PollInterval))

			view := engine.Snapshot()
			err = printRecords(cmd.OutOrStdout(), view.Entries, true)
			if err != nil {
				return err
			}
			printed := len(view.Entries)

			t := time.NewTicker(opts.PollInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
				}

				view = engine.Snapshot()
				if len(view.Entries) <= printed {
					continue
				}
				err = printRecords(cmd.OutOrStdout(), view.Entries[printed:], false)
				if err != nil {
					return err
				}
				printed = len(view.Entries)
				logger.WithFields(logrus.Fields{
					"count": view.Count,
					"state": view.State,
				}).Debug("Ledger view updated")
			}
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Account name or address to follow the ledger as, defaults to the first keyring account")

	return cmd
}

func openWallet(opts *rootOptions, logger *logrus.Logger, submitter identity.Submitter, from string, approve identity.Approver) (*identity.Wallet, error) {
	accounts, err := identity.LoadKeyring(opts.KeyringPath)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("keyring %s has no accounts, run `txcli keygen` first", opts.KeyringPath)
	}

	wallet := identity.NewWallet(logger, submitter, accounts, identity.WithApprover(approve))
	if from != "" {
		err = wallet.SwitchAccount(from)
		if err != nil {
			return nil, err
		}
	}
	return wallet, nil
}

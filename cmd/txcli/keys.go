package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hedisam/txledger/internal/identity"
)

func newKeygenCommand(opts *rootOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new account and add it to the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := identity.LoadKeyring(opts.KeyringPath)
			if err != nil {
				return err
			}
			if name == "" {
				name = fmt.Sprintf("account-%d", len(accounts)+1)
			}
			if slices.ContainsFunc(accounts, func(acc *identity.Account) bool { return acc.Name == name }) {
				return fmt.Errorf("account %q already exists", name)
			}

			acc, err := identity.NewAccount(name)
			if err != nil {
				return err
			}
			err = identity.SaveKeyring(opts.KeyringPath, append(accounts, acc))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", acc.Name, acc.Address())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Account name, defaults to account-N")

	return cmd
}

func newAccountsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the keyring's accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := identity.LoadKeyring(opts.KeyringPath)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts, run `txcli keygen` to create one")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tADDRESS")
			for _, acc := range accounts {
				fmt.Fprintf(w, "%s\t%s\n", acc.Name, acc.Address())
			}
			return w.Flush()
		},
	}
}

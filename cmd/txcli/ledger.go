package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hedisam/txledger/internal/ledger"
	"github.com/hedisam/txledger/internal/units"
)

func newCountCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of records in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := opts.ledgerClient(opts.logger()).Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every record in append order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := opts.ledgerClient(opts.logger()).All(cmd.Context())
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), records, true)
		},
	}
}

func printRecords(out io.Writer, records []*ledger.Record, header bool) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if header {
		fmt.Fprintln(w, "INDEX\tTIME\tSENDER\tRECEIVER\tAMOUNT (ETH)\tKEYWORD\tMESSAGE")
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Index,
			rec.Timestamp.Format(time.RFC3339),
			rec.Sender,
			rec.Receiver,
			units.FormatEther(rec.Amount),
			rec.Keyword,
			rec.Message,
		)
	}
	return w.Flush()
}

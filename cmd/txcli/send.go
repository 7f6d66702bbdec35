package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hedisam/txledger/internal/identity"
	"github.com/hedisam/txledger/internal/ledger"
	"github.com/hedisam/txledger/internal/syncengine"
	"github.com/hedisam/txledger/internal/units"
)

type sendOptions struct {
	*rootOptions
	From string
	Yes  bool
	Form syncengine.TransferForm
}

func newSendCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &sendOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sign and submit a transfer",
		Long: `Sign a transfer with a keyring account, submit it to the ledger and wait for it to be confirmed.

Example:
  txcli send --from alice --to 0x00000000219ab540356cbb839cbe05303d7705fa --amount 0.01 --message "Hello" --keyword Test1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "Sending account name or address, defaults to the first keyring account")
	cmd.Flags().StringVar(&opts.Form.Receiver, "to", "", "Receiver address (required)")
	cmd.Flags().StringVar(&opts.Form.Amount, "amount", "", "Amount in ether (required)")
	cmd.Flags().StringVar(&opts.Form.Message, "message", "", "Message (required)")
	cmd.Flags().StringVar(&opts.Form.Keyword, "keyword", "", "Keyword (required)")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Sign without asking for confirmation")
	for _, name := range []string{"to", "amount", "message", "keyword"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runSend(cmd *cobra.Command, opts *sendOptions) error {
	ctx := cmd.Context()
	logger := opts.logger()

	client := opts.ledgerClient(logger)
	wallet, err := openWallet(opts.rootOptions, logger, client, opts.From, opts.approver(cmd.InOrStdin(), cmd.ErrOrStderr()))
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

	rec, err := engine.Submit(ctx, opts.Form)
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Transfer confirmed at index %d\n", rec.Index)
	return printRecords(cmd.OutOrStdout(), []*ledger.Record{rec}, true)
}

// approver asks for confirmation on in before signing, unless --yes was given. Connecting never asks: choosing the
// account with --from already is the user's consent.
func (o *sendOptions) approver(in io.Reader, out io.Writer) identity.Approver {
	if o.Yes {
		return identity.AutoApprove
	}

	reader := bufio.NewReader(in)
	return func(_ context.Context, req identity.ApprovalRequest) bool {
		if req.Kind != identity.ApproveSign {
			return true
		}
		fmt.Fprintf(out, "Sign transfer of %s ETH from %s to %s? [y/N] ",
			units.FormatEther(req.Transfer.Amount), req.Address, req.Transfer.Receiver)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

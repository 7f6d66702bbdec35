package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hedisam/txledger/internal/hint"
	"github.com/hedisam/txledger/internal/ledgerclient"
	"github.com/hedisam/txledger/internal/syncengine"
)

type rootOptions struct {
	LedgerAddr   string
	KeyringPath  string
	RedisAddr    string
	PollInterval time.Duration
	Verbose      bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "txcli",
		Short:         "Transaction ledger client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.LedgerAddr == "" {
				return fmt.Errorf("--ledger-addr is required")
			}
			if opts.KeyringPath == "" {
				return fmt.Errorf("--keyring is required")
			}
			if opts.PollInterval < 100*time.Millisecond {
				return fmt.Errorf("--poll-interval is too small, it cannot be less than 100ms")
			}
			return nil
		},
	}

	pollInterval, err := time.ParseDuration(envOr("TXLEDGER_POLL_INTERVAL", "2s"))
	if err != nil {
		pollInterval = 2 * time.Second
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.LedgerAddr, "ledger-addr", envOr("TXLEDGER_LEDGER_ADDR", "http://localhost:8080"), "Ledger server address")
	flags.StringVar(&opts.KeyringPath, "keyring", envOr("TXLEDGER_KEYRING", "txledger-keyring.yaml"), "Path to the YAML keyring")
	flags.StringVar(&opts.RedisAddr, "redis-addr", envOr("TXLEDGER_REDIS_ADDR", ""), "Redis address used to persist the ledger count hint. Kept in memory when empty")
	flags.DurationVar(&opts.PollInterval, "poll-interval", pollInterval, "Ledger count polling interval")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose output")

	cmd.AddCommand(newKeygenCommand(opts))
	cmd.AddCommand(newAccountsCommand(opts))
	cmd.AddCommand(newCountCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newSendCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))

	return cmd
}

func (o *rootOptions) logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if o.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func (o *rootOptions) ledgerClient(logger *logrus.Logger) *ledgerclient.Client {
	httpClient := &http.Client{Timeout: time.Second * 10}
	return ledgerclient.New(logger, httpClient, o.LedgerAddr)
}

// hintStore returns the count hint store and a func releasing it.
func (o *rootOptions) hintStore() (syncengine.HintStore, func()) {
	if o.RedisAddr == "" {
		return hint.NewMemStore(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: o.RedisAddr})
	return hint.NewRedisStore(rdb, hint.DefaultKey, 0), func() { _ = rdb.Close() }
}

// startEngine builds a sync engine over the ledger and wallet and starts it. The caller must call the returned
// func once done.
func (o *rootOptions) startEngine(ctx context.Context, logger *logrus.Logger, client *ledgerclient.Client, provider syncengine.IdentityProvider) (*syncengine.Engine, func(), error) {
	hints, closeHints := o.hintStore()
	engine := syncengine.New(logger, client, provider, syncengine.WithHintStore(hints))
	err := engine.Start(ctx)
	if err != nil {
		engine.Close()
		closeHints()
		return nil, nil, fmt.Errorf("could not start sync engine: %w", err)
	}
	return engine, func() {
		engine.Close()
		closeHints()
	}, nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	restapi "github.com/hedisam/txledger/api/rest"
	"github.com/hedisam/txledger/internal/custompromauto"
	"github.com/hedisam/txledger/internal/ledger"
	"github.com/hedisam/txledger/internal/store/memdb"
	"github.com/hedisam/txledger/internal/store/sqlite"
)

type Options struct {
	ServerAddr string
	DBPath     string
	Verbose    bool
}

func main() {
	_ = godotenv.Load()

	var opts Options
	flag.StringVar(&opts.ServerAddr, "server-addr", envOr("TXLEDGER_SERVER_ADDR", "localhost:8080"), "Server addr to serve the http server on")
	flag.StringVar(&opts.DBPath, "db-path", envOr("TXLEDGER_DB_PATH", ""), "SQLite database file to persist the ledger in. The ledger is kept in memory when empty")
	flag.BoolVar(&opts.Verbose, "v", false, "Verbose output")
	flag.Parse()

	logger := logrus.New()
	ensureValidOpts(logger, opts)

	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var store ledger.Store
	if opts.DBPath != "" {
		sqliteStore, err := sqlite.Open(opts.DBPath)
		if err != nil {
			logger.WithError(err).WithField("db_path", opts.DBPath).Fatal("Failed to open ledger database")
		}
		defer sqliteStore.Close()
		store = sqliteStore
		logger.WithField("db_path", opts.DBPath).Info("Persisting ledger in sqlite")
	} else {
		store = memdb.NewRecordStore()
		logger.Warn("No --db-path given, the ledger is kept in memory only")
	}

	txLedger := ledger.New(logger, store)

	mux := http.NewServeMux()
	restapi.NewServer(logger, txLedger).Register(mux)

	// use a custom prom registry to avoid recording the default http handler metrics
	mux.Handle("/metrics", custompromauto.Handler())

	mustListenAndServe(ctx, logger, opts.ServerAddr, mux)
}

func mustListenAndServe(ctx context.Context, logger *logrus.Logger, addr string, handler http.Handler) {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		logger.WithField("addr", addr).Info("Serving server...")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed with error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	logger.Info("Shutting down server...")
	err := srv.Shutdown(shutdownCtx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.WithError(err).Error("Failed to shutdown server gracefully")
	}
}

func ensureValidOpts(logger *logrus.Logger, opts Options) {
	if opts.ServerAddr == "" {
		logger.Error("--server-addr is required")
		flag.Usage()
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

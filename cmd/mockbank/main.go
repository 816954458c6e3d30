package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"banktransfer/internal/logging"
	"banktransfer/internal/mockbank"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		addr     string
		accounts int
		opening  string
		secret   string
		tokenTTL time.Duration
		level    string
	)
	cmd := &cobra.Command{
		Use:           "mockbank",
		Short:         "Serve an in-memory banking API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bal, err := decimal.NewFromString(opening)
			if err != nil {
				return fmt.Errorf("--opening-balance: %w", err)
			}
			log, err := logging.New(level, "")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			srv := mockbank.New(mockbank.Config{
				Accounts:       accounts,
				OpeningBalance: bal,
				Secret:         []byte(secret),
				TokenTTL:       tokenTTL,
				Logger:         log,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, log, addr, srv.Handler())
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8123", "listen address")
	f.IntVar(&accounts, "accounts", mockbank.DefaultAccounts, "number of seeded accounts")
	f.StringVar(&opening, "opening-balance", mockbank.DefaultOpeningBalance.StringFixed(2), "starting balance of each account")
	f.StringVar(&secret, "secret", "", "HMAC secret for issued tokens (development default when empty)")
	f.DurationVar(&tokenTTL, "token-ttl", mockbank.DefaultTokenTTL, "lifetime of issued tokens")
	f.StringVar(&level, "log-level", "info", "log level")
	return cmd
}

func serve(ctx context.Context, log *zap.Logger, addr string, h http.Handler) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("mockbank listening", zap.String("addr", addr))
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
